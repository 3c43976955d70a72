package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-tenant-api/api/swagger"
	"github.com/noah-isme/sma-tenant-api/internal/audit"
	"github.com/noah-isme/sma-tenant-api/internal/handler"
	"github.com/noah-isme/sma-tenant-api/internal/repository"
	"github.com/noah-isme/sma-tenant-api/internal/service"
	"github.com/noah-isme/sma-tenant-api/pkg/cache"
	"github.com/noah-isme/sma-tenant-api/pkg/config"
	"github.com/noah-isme/sma-tenant-api/pkg/database"
	"github.com/noah-isme/sma-tenant-api/pkg/jobs"
	"github.com/noah-isme/sma-tenant-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-tenant-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-tenant-api/pkg/middleware/requestid"
	"github.com/noah-isme/sma-tenant-api/pkg/session"
)

// @title School Tenant API
// @version 1.0.0
// @description Multi-school core: school selection, tenant-scoped records and activity logging
// @BasePath /api/v1
// @schemes http https

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Fatal("failed to connect redis", zap.Error(err))
	}
	defer redisClient.Close() //nolint:errcheck

	validate := validator.New()
	metrics := service.NewMetricsService()

	// Repositories.
	users := repository.NewUserRepository(db)
	schoolRoles := repository.NewUserSchoolRoleRepository(db)
	staffRepo := repository.NewStaffRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	parentRepo := repository.NewParentRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, "cache:", logr)
	sessions := session.NewRedisStore(redisClient, "session:")

	// Services.
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Activity.StatsCacheTTL, logr, true)
	activitySvc := service.NewActivityLogService(activityRepo, users, cacheSvc, validate, logr, service.ActivityLogServiceConfig{
		RecentWindow:  cfg.Activity.RecentWindow,
		StatsCacheTTL: cfg.Activity.StatsCacheTTL,
	}).WithMetrics(metrics)

	authz := service.NewAuthorizationService(service.AuthorizationLookups{
		Students:         studentRepo,
		Parents:          parentRepo,
		Staff:            staffRepo,
		Subjects:         repository.NewSubjectFinder(db),
		Classes:          repository.NewSchoolClassFinder(db),
		Examinations:     repository.NewExaminationFinder(db),
		FeeItems:         repository.NewFeeItemFinder(db),
		AcademicSessions: repository.NewAcademicSessionFinder(db),
		Terms:            repository.NewTermFinder(db),
		Departments:      repository.NewDepartmentFinder(db),
		Tracks:           repository.NewEducationTrackFinder(db),
		ParentStudents:   repository.NewParentStudentRepository(db),
	}, logr)
	guard := service.NewAccessGuard(authz, metrics, logr)

	diagnostics := audit.NewLogDiagnostics(logr, metrics)
	var (
		dispatcher audit.Dispatcher
		auditQueue *jobs.Queue
	)
	if cfg.Audit.Sync {
		dispatcher = audit.NewSyncDispatcher(activitySvc)
	} else {
		auditQueue = jobs.NewQueue("activity-audit",
			audit.QueueHandler(activitySvc, diagnostics, 5*time.Second),
			jobs.QueueConfig{
				Workers:    cfg.Audit.Workers,
				BufferSize: cfg.Audit.BufferSize,
				MaxRetries: cfg.Audit.MaxRetries,
				RetryDelay: cfg.Audit.RetryDelay,
				Logger:     logr,
				OnGiveUp:   audit.GiveUpReporter(diagnostics),
			})
		metrics.RegisterQueue(auditQueue)
		auditQueue.Start(context.Background())
		dispatcher = audit.NewQueueDispatcher(auditQueue)
	}
	recorder := audit.NewRecorder(dispatcher, diagnostics, validate, logr)

	schoolSelection := service.NewSchoolSelectionService(schoolRoles, logr)
	authSvc := service.NewAuthService(users, schoolSelection, activitySvc, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	communitySvc := service.NewCommunityService(staffRepo, studentRepo, parentRepo, authz, recorder, validate, logr)
	backfillSvc := service.NewActivityBackfillService(staffRepo, studentRepo, parentRepo, activityRepo, activitySvc, logr)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	registerRoutes(r, cfg, logr, routeDeps{
		auth:       handler.NewAuthHandler(authSvc),
		session:    handler.NewSessionHandler(schoolSelection, validate),
		community:  handler.NewCommunityHandler(communitySvc),
		access:     handler.NewAccessHandler(guard),
		activities: handler.NewActivityHandler(activitySvc, backfillSvc, validate, cfg.Activity.ExportEnabled),
		metrics: handler.NewMetricsHandler(metrics, map[string]handler.Pinger{
			"postgres": db,
			"redis":    handler.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }),
		}),
		tokens:     authSvc,
		sessions:   sessions,
		roles:      schoolRoles,
		guard:      guard,
		observer:   metrics,
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "audit_sync", cfg.Audit.Sync)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("http shutdown", zap.Error(err))
	}
	if auditQueue != nil {
		if err := auditQueue.Stop(cfg.Audit.StopTimeout); err != nil {
			logr.Warn("audit queue did not drain", zap.Error(err), zap.Int("pending", auditQueue.Stats().Pending))
		}
	}
}
