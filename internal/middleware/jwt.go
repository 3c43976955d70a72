package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-tenant-api/internal/models"
	appErrors "github.com/noah-isme/sma-tenant-api/pkg/errors"
	"github.com/noah-isme/sma-tenant-api/pkg/logger"
	"github.com/noah-isme/sma-tenant-api/pkg/response"
)

// Gin context keys set by the auth middleware.
const (
	ContextUserKey      = "currentUser"
	ContextPrincipalKey = "currentPrincipal"
)

type tokenValidator interface {
	ValidateToken(token string) (*models.JWTClaims, error)
}

func bearer(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

func attach(c *gin.Context, claims *models.JWTClaims) {
	c.Set(ContextUserKey, claims)
	if principal := models.PrincipalFromClaims(claims); principal != nil {
		c.Set(ContextPrincipalKey, principal)
		c.Set(logger.PrincipalKey, principal.UserID)
	}
}

// JWT protects routes by requiring a valid access token.
func JWT(auth tokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			response.Error(c, appErrors.ErrUnauthenticated)
			return
		}
		token, ok := bearer(c)
		if !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			return
		}

		claims, err := auth.ValidateToken(token)
		if err != nil {
			response.Error(c, err)
			return
		}

		attach(c, claims)
		c.Next()
	}
}

// PrincipalFrom returns the authenticated principal, or nil.
func PrincipalFrom(c *gin.Context) *models.Principal {
	value, ok := c.Get(ContextPrincipalKey)
	if !ok {
		return nil
	}
	principal, _ := value.(*models.Principal)
	return principal
}
