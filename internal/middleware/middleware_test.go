package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/sma-tenant-api/internal/models"
	"github.com/noah-isme/sma-tenant-api/internal/tenant"
	"github.com/noah-isme/sma-tenant-api/pkg/config"
	appErrors "github.com/noah-isme/sma-tenant-api/pkg/errors"
	"github.com/noah-isme/sma-tenant-api/pkg/session"
)

const schoolID = "0b8f0f6e-5c8c-4d53-9b0c-8a3c4f1f2a10"

type stubValidator struct {
	claims *models.JWTClaims
}

func (s stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return s.claims, nil
}

type denyGuard struct {
	mu    sync.Mutex
	seen  []tenant.Scope
	allow bool
}

func (g *denyGuard) Allow(_ context.Context, scope tenant.Scope, _ models.ResourceKind, _ string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seen = append(g.seen, scope)
	return g.allow
}

type recordingObserver struct {
	method string
	path   string
	status int
}

func (r *recordingObserver) ObserveHTTPRequest(method, path string, status int, _ time.Duration) {
	r.method, r.path, r.status = method, path, status
}

func teacherClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "user-1", Role: models.RoleTeacher, Email: "t@example.com", FirstName: "Tia", LastName: "Putri"}
}

func newSessionStore(t *testing.T) session.Store {
	t.Helper()
	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return session.NewRedisStore(client, "test:session:")
}

func decodeCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code
}

func TestJWTRejectsMissingAndInvalidTokens(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(JWT(stubValidator{claims: teacherClaims()}))
	router.GET("/", func(c *gin.Context) {
		principal := PrincipalFrom(c)
		require.NotNil(t, principal)
		c.String(http.StatusOK, principal.UserID)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer bad")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", rec.Body.String())
}

func TestSessionCarriesSelectedSchoolAcrossRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := newSessionStore(t)
	cfg := config.SessionConfig{CookieName: "sid", TTL: time.Hour}

	router := gin.New()
	router.Use(JWT(stubValidator{claims: teacherClaims()}), Session(store, cfg, zap.NewNop()))
	router.POST("/select", func(c *gin.Context) {
		sess := SessionFrom(c)
		sess.Set(tenant.SessionAttribute, schoolID)
		sess.Set(tenant.UserSessionAttribute, PrincipalFrom(c).UserID)
		sess.Set(tenant.RoleSessionAttribute, "PRINCIPAL")
		c.Status(http.StatusNoContent)
	})
	router.GET("/scoped", Tenant(true, nil), func(c *gin.Context) {
		scope := ScopeFrom(c)
		fromCtx, err := tenant.FromContext(c.Request.Context())
		require.NoError(t, err)
		assert.Equal(t, scope.TenantID, fromCtx)
		assert.Equal(t, "PRINCIPAL", scope.Principal.Authority)
		c.String(http.StatusOK, scope.TenantID)
	})

	req := httptest.NewRequest(http.MethodGet, "/scoped", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, appErrors.ErrNoTenantSelected.Code, decodeCode(t, rec))

	req = httptest.NewRequest(http.MethodPost, "/select", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, "sid", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	req = httptest.NewRequest(http.MethodGet, "/scoped", nil)
	req.Header.Set("Authorization", "Bearer good")
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, schoolID, rec.Body.String())
}

type tokenTable map[string]*models.JWTClaims

func (t tokenTable) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := t[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

type grantTable struct {
	mu     sync.Mutex
	grants map[string][]models.UserSchoolRole
}

func (g *grantTable) ListActive(_ context.Context, userID, school string) ([]models.UserSchoolRole, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []models.UserSchoolRole
	for _, r := range g.grants[userID] {
		if r.SchoolID == school {
			out = append(out, r)
		}
	}
	return out, nil
}

func (g *grantTable) revoke(userID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.grants, userID)
}

func sharedSessionRouter(t *testing.T, grants *grantTable) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	tokens := tokenTable{
		"token-a": {UserID: "user-a", Role: models.RoleTeacher},
		"token-b": {UserID: "user-b", Role: models.RoleTeacher},
	}
	router := gin.New()
	router.Use(Session(newSessionStore(t), config.SessionConfig{CookieName: "sid", TTL: time.Hour}, zap.NewNop()), JWT(tokens))
	router.POST("/select", func(c *gin.Context) {
		sess := SessionFrom(c)
		sess.Set(tenant.SessionAttribute, schoolID)
		sess.Set(tenant.UserSessionAttribute, PrincipalFrom(c).UserID)
		sess.Set(tenant.RoleSessionAttribute, string(models.RoleSchoolAdmin))
		c.Status(http.StatusNoContent)
	})
	var roles activeRoles
	if grants != nil {
		roles = grants
	}
	router.GET("/admin", Tenant(true, roles), RequireRoles(models.RoleSchoolAdmin), func(c *gin.Context) {
		scope := ScopeFrom(c)
		c.String(http.StatusOK, scope.Principal.UserID+"@"+scope.TenantID+" as "+scope.Principal.Authority)
	})
	return router
}

func serve(router *gin.Engine, method, path, token string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestTenantIgnoresSelectionMadeByAnotherUser(t *testing.T) {
	router := sharedSessionRouter(t, nil)

	rec := serve(router, http.MethodPost, "/select", "token-a", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	cookie := rec.Result().Cookies()[0]

	rec = serve(router, http.MethodGet, "/admin", "token-a", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-a@"+schoolID+" as SCHOOL_ADMIN", rec.Body.String())

	rec = serve(router, http.MethodGet, "/admin", "token-b", cookie)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, appErrors.ErrNoTenantSelected.Code, decodeCode(t, rec))
	assert.NotContains(t, rec.Body.String(), "SCHOOL_ADMIN")
}

func TestTenantRechecksRoleGrantEachRequest(t *testing.T) {
	grants := &grantTable{grants: map[string][]models.UserSchoolRole{
		"user-a": {{UserID: "user-a", SchoolID: schoolID, RoleName: models.RoleSchoolAdmin, Active: true}},
	}}
	router := sharedSessionRouter(t, grants)

	rec := serve(router, http.MethodPost, "/select", "token-a", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	cookie := rec.Result().Cookies()[0]

	rec = serve(router, http.MethodGet, "/admin", "token-a", cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	grants.revoke("user-a")
	rec = serve(router, http.MethodGet, "/admin", "token-a", cookie)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, appErrors.ErrNoTenantSelected.Code, decodeCode(t, rec))
}

func TestOptionalTenantLeavesScopeEmpty(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Tenant(false, nil))
	router.GET("/", func(c *gin.Context) {
		scope := ScopeFrom(c)
		assert.Empty(t, scope.TenantID)
		assert.Nil(t, scope.Principal)
		c.Status(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRequireAccessDeniesWithNotFoundAndWarns(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.WarnLevel)
	guard := &denyGuard{}

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(ContextScopeKey, tenant.Scope{TenantID: schoolID, Principal: &models.Principal{UserID: "user-1"}})
		c.Next()
	})
	router.GET("/students/:id", RequireAccess(guard, models.KindStudent, "id", zap.New(core)), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/students/other-school-student", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, appErrors.ErrResourceNotFound.Code, decodeCode(t, rec))
	require.Equal(t, 1, logs.FilterMessage("potential IDOR attempt").Len())
	entry := logs.All()[0]
	assert.Equal(t, "other-school-student", entry.ContextMap()["resource_id"])
	assert.Equal(t, "user-1", entry.ContextMap()["principal_id"])

	guard.allow = true
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/students/mine", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, schoolID, guard.seen[1].TenantID)
}

func TestRBACUsesSelectedRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	withScope := func(role string, global models.UserRole) gin.HandlerFunc {
		return func(c *gin.Context) {
			p := &models.Principal{UserID: "user-1", Authority: role, User: &models.User{ID: "user-1", Role: global}}
			c.Set(ContextScopeKey, tenant.Scope{TenantID: schoolID, Principal: p})
			c.Next()
		}
	}
	ok := func(c *gin.Context) { c.Status(http.StatusNoContent) }

	router := gin.New()
	router.GET("/principal", withScope("PRINCIPAL", models.RoleTeacher), RequireRoles(models.RolePrincipal), ok)
	router.GET("/teacher", withScope("TEACHER", models.RoleTeacher), RequireRoles(models.RolePrincipal), ok)
	router.GET("/admin", withScope("SYSTEM_ADMIN", models.RoleSystemAdmin), RequireRoles(models.RolePrincipal), ok)
	router.GET("/users/:id", withScope("TEACHER", models.RoleTeacher), RBAC("ADMIN", "SELF"), ok)
	router.GET("/anon", RequireRoles(models.RolePrincipal), ok)

	cases := map[string]int{
		"/principal":    http.StatusNoContent,
		"/teacher":      http.StatusForbidden,
		"/admin":        http.StatusNoContent,
		"/users/user-1": http.StatusNoContent,
		"/users/user-2": http.StatusForbidden,
		"/anon":         http.StatusUnauthorized,
	}
	for path, want := range cases {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, rec.Code, path)
	}
}

func TestClientIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = "10.0.0.9:5123"
	assert.Equal(t, "10.0.0.9", ClientIP(c))

	c.Request.Header.Set("X-Real-IP", "172.16.0.4")
	assert.Equal(t, "172.16.0.4", ClientIP(c))

	c.Request.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", ClientIP(c))
}

func TestMetricsObservesRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	obs := &recordingObserver{}
	router := gin.New()
	router.Use(Metrics(obs))
	router.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusAccepted) })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/42", nil))
	assert.Equal(t, http.MethodGet, obs.method)
	assert.Equal(t, "/items/:id", obs.path)
	assert.Equal(t, http.StatusAccepted, obs.status)
}
