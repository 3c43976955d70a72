package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-tenant-api/internal/models"
	appErrors "github.com/noah-isme/sma-tenant-api/pkg/errors"
	"github.com/noah-isme/sma-tenant-api/pkg/response"
)

// RBAC allows the request when the acting role is one of allowed. The acting role is the
// role selected for the school when Tenant ran, else the account role. "SELF" admits a
// caller whose id equals the :id path parameter. System admins always pass.
func RBAC(allowed ...string) gin.HandlerFunc {
	allowSelf := false
	allowedRoles := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		if a == "SELF" {
			allowSelf = true
			continue
		}
		allowedRoles[a] = struct{}{}
	}

	return func(c *gin.Context) {
		principal := ScopeFrom(c).Principal
		if principal == nil {
			response.Error(c, appErrors.ErrUnauthenticated)
			return
		}
		if principal.IsSystemAdmin() {
			c.Next()
			return
		}
		if _, ok := allowedRoles[principal.Authority]; ok {
			c.Next()
			return
		}
		if allowSelf {
			if targetID := c.Param("id"); targetID != "" && targetID == principal.UserID {
				c.Next()
				return
			}
		}
		response.Error(c, appErrors.ErrForbidden)
	}
}

// RequireRoles is a helper that accepts a list of roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make([]string, len(roles))
	for i, r := range roles {
		allowed[i] = string(r)
	}
	return RBAC(allowed...)
}
