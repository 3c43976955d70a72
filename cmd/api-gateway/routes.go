package main

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-tenant-api/internal/handler"
	"github.com/noah-isme/sma-tenant-api/internal/middleware"
	"github.com/noah-isme/sma-tenant-api/internal/models"
	"github.com/noah-isme/sma-tenant-api/internal/tenant"
	"github.com/noah-isme/sma-tenant-api/pkg/config"
	"github.com/noah-isme/sma-tenant-api/pkg/session"
)

type routeDeps struct {
	auth       *handler.AuthHandler
	session    *handler.SessionHandler
	community  *handler.CommunityHandler
	access     *handler.AccessHandler
	activities *handler.ActivityHandler
	metrics    *handler.MetricsHandler

	tokens interface {
		ValidateToken(token string) (*models.JWTClaims, error)
	}
	sessions session.Store
	roles    interface {
		ListActive(ctx context.Context, userID, schoolID string) ([]models.UserSchoolRole, error)
	}
	guard interface {
		Allow(ctx context.Context, scope tenant.Scope, kind models.ResourceKind, id string) bool
	}
	observer interface {
		ObserveHTTPRequest(method, path string, status int, duration time.Duration)
	}
}

var (
	schoolManagers = []models.UserRole{models.RoleSchoolAdmin, models.RoleAdmin, models.RolePrincipal}
	schoolReaders  = append([]models.UserRole{models.RoleStaff, models.RoleTeacher}, schoolManagers...)
)

func registerRoutes(r *gin.Engine, cfg *config.Config, logr *zap.Logger, deps routeDeps) {
	r.Use(middleware.Metrics(deps.observer))

	r.GET("/health", deps.metrics.Health)
	r.GET("/ready", deps.metrics.Ready)
	r.GET("/metrics", deps.metrics.Prometheus)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.Session(deps.sessions, cfg.Session, logr))

	api.POST("/auth/login", deps.auth.Login)

	authed := api.Group("")
	authed.Use(middleware.JWT(deps.tokens))
	authed.POST("/auth/logout", deps.auth.Logout)
	authed.GET("/auth/me", deps.auth.Me)

	sessionRoutes := authed.Group("/session")
	sessionRoutes.GET("/schools", deps.session.Schools)
	sessionRoutes.GET("/school", deps.session.Current)
	sessionRoutes.PUT("/school", deps.session.SelectSchool)
	sessionRoutes.DELETE("/school", deps.session.Clear)
	sessionRoutes.PUT("/role", deps.session.SelectRole)

	scoped := authed.Group("")
	scoped.Use(middleware.Tenant(true, deps.roles))

	scoped.GET("/access/:kind/:id", deps.access.Check)

	readers := middleware.RequireRoles(schoolReaders...)
	managers := middleware.RequireRoles(schoolManagers...)
	scoped.GET("/staff", readers, deps.community.ListStaff)
	scoped.POST("/staff", managers, deps.community.SaveStaff)
	scoped.PUT("/staff/:id", managers, middleware.RequireAccess(deps.guard, models.KindStaff, "id", logr), deps.community.SaveStaff)
	scoped.GET("/students", readers, deps.community.ListStudents)
	scoped.POST("/students", managers, deps.community.SaveStudent)
	scoped.PUT("/students/:id", managers, middleware.RequireAccess(deps.guard, models.KindStudent, "id", logr), deps.community.SaveStudent)
	scoped.GET("/parents", readers, deps.community.ListParents)
	scoped.POST("/parents", managers, deps.community.SaveParent)
	scoped.PUT("/parents/:id", managers, middleware.RequireAccess(deps.guard, models.KindParent, "id", logr), deps.community.SaveParent)

	activities := scoped.Group("/activities")
	activities.GET("", managers, deps.activities.List)
	activities.POST("", readers, deps.activities.Record)
	activities.GET("/recent", readers, deps.activities.Recent)
	activities.GET("/stats", managers, deps.activities.Stats)
	activities.GET("/users/:userId", managers, deps.activities.ForUser)
	activities.GET("/export", managers, deps.activities.Export)
	activities.POST("/backfill", middleware.RequireRoles(models.RoleSchoolAdmin), deps.activities.Backfill)
	activities.POST("/initialize", middleware.RequireRoles(models.RoleSchoolAdmin), deps.activities.InitializeSystem)
}
