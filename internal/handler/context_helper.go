package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-tenant-api/internal/middleware"
	"github.com/noah-isme/sma-tenant-api/internal/models"
	appErrors "github.com/noah-isme/sma-tenant-api/pkg/errors"
	"github.com/noah-isme/sma-tenant-api/pkg/response"
	"github.com/noah-isme/sma-tenant-api/pkg/session"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

func sessionFromContext(c *gin.Context) (*session.Session, error) {
	sess := middleware.SessionFrom(c)
	if sess == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "session unavailable")
	}
	return sess, nil
}

// saveSession persists session changes before the response is written and reports a
// failed write as a 500.
func saveSession(c *gin.Context) bool {
	if err := middleware.SaveSession(c); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save session"))
		return false
	}
	return true
}

func bindError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message)
}
