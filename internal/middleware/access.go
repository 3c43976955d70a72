package middleware

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-tenant-api/internal/models"
	"github.com/noah-isme/sma-tenant-api/internal/tenant"
	appErrors "github.com/noah-isme/sma-tenant-api/pkg/errors"
	"github.com/noah-isme/sma-tenant-api/pkg/response"
)

type accessGuard interface {
	Allow(ctx context.Context, scope tenant.Scope, kind models.ResourceKind, id string) bool
}

// RequireAccess guards a route on the resource named by the path parameter param. A
// denied request gets the same 404 as a missing resource.
func RequireAccess(guard accessGuard, kind models.ResourceKind, param string, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		scope := ScopeFrom(c)
		id := c.Param(param)
		if guard != nil && guard.Allow(c.Request.Context(), scope, kind, id) {
			c.Next()
			return
		}

		fields := []zap.Field{
			zap.String("kind", string(kind)),
			zap.String("resource_id", id),
			zap.String("tenant_id", scope.TenantID),
			zap.String("path", c.FullPath()),
			zap.String("ip", ClientIP(c)),
		}
		if scope.Principal != nil {
			fields = append(fields, zap.String("principal_id", scope.Principal.UserID))
		}
		log.Warn("potential IDOR attempt", fields...)

		response.Error(c, appErrors.Clone(appErrors.ErrResourceNotFound, fmt.Sprintf("%s not found or unauthorized access", kind.Label())))
	}
}
