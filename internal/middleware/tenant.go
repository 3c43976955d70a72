package middleware

import (
	"context"
	"net"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-tenant-api/internal/models"
	"github.com/noah-isme/sma-tenant-api/internal/tenant"
	appErrors "github.com/noah-isme/sma-tenant-api/pkg/errors"
	"github.com/noah-isme/sma-tenant-api/pkg/logger"
	"github.com/noah-isme/sma-tenant-api/pkg/response"
)

// ContextScopeKey is the gin context key holding the resolved tenant.Scope.
const ContextScopeKey = "tenantScope"

type activeRoles interface {
	ListActive(ctx context.Context, userID, schoolID string) ([]models.UserSchoolRole, error)
}

// Tenant resolves the selected school once per request and threads it, with the
// principal and request metadata, through the request context. A selection counts only
// for the user who made it, and when roles is set the selected role must still be
// active in that school. With required set a request without a usable selection is
// rejected.
func Tenant(required bool, roles activeRoles) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := PrincipalFrom(c)
		scope := tenant.Scope{Request: RequestContext(c)}

		var attrs tenant.Attributes
		if sess := SessionFrom(c); sess != nil {
			attrs = sess
		}
		var userID string
		if principal != nil {
			userID = principal.UserID
		}
		tenantID, err := tenant.ResolveFor(attrs, userID)
		if err == nil {
			role := tenant.SelectedRole(attrs)
			if !principal.IsSystemAdmin() && roles != nil {
				err = verifyRole(c.Request.Context(), roles, userID, tenantID, role)
			}
			if err == nil {
				principal = principal.WithAuthority(role)
			} else {
				tenantID = ""
			}
		}
		if err != nil && required {
			response.Error(c, err)
			return
		}

		scope.TenantID = tenantID
		scope.Principal = principal
		if tenantID != "" {
			c.Set(logger.TenantKey, tenantID)
		}
		c.Set(ContextScopeKey, scope)
		c.Request = c.Request.WithContext(tenant.WithScope(c.Request.Context(), scope))
		c.Next()
	}
}

func verifyRole(ctx context.Context, roles activeRoles, userID, schoolID, selected string) error {
	active, err := roles.ListActive(ctx, userID, schoolID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school roles")
	}
	for _, r := range active {
		if selected == "" || strings.EqualFold(string(r.RoleName), selected) {
			return nil
		}
	}
	return appErrors.ErrNoTenantSelected
}

// ScopeFrom returns the scope resolved by Tenant. Without it, only the principal is set.
func ScopeFrom(c *gin.Context) tenant.Scope {
	if value, ok := c.Get(ContextScopeKey); ok {
		if scope, ok := value.(tenant.Scope); ok {
			return scope
		}
	}
	return tenant.Scope{Principal: PrincipalFrom(c), Request: RequestContext(c)}
}

// RequestContext extracts the caller's address and agent for activity entries.
func RequestContext(c *gin.Context) *models.RequestContext {
	return &models.RequestContext{IPAddress: ClientIP(c), UserAgent: c.GetHeader("User-Agent")}
}

// ClientIP prefers the first X-Forwarded-For entry, then X-Real-IP, then the peer address.
func ClientIP(c *gin.Context) string {
	if forwarded := c.GetHeader("X-Forwarded-For"); strings.TrimSpace(forwarded) != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	if realIP := strings.TrimSpace(c.GetHeader("X-Real-IP")); realIP != "" {
		return realIP
	}
	if c.Request == nil || c.Request.RemoteAddr == "" {
		return "unknown"
	}
	host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return c.Request.RemoteAddr
	}
	return host
}
