package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-tenant-api/internal/middleware"
	"github.com/noah-isme/sma-tenant-api/internal/models"
	"github.com/noah-isme/sma-tenant-api/internal/service"
	appErrors "github.com/noah-isme/sma-tenant-api/pkg/errors"
	"github.com/noah-isme/sma-tenant-api/pkg/response"
)

type authService interface {
	Login(ctx context.Context, req models.LoginRequest, sess service.AuthSession, rc *models.RequestContext) (*models.LoginResponse, error)
	Logout(ctx context.Context, principal *models.Principal, sess service.AuthSession, rc *models.RequestContext) error
}

// AuthHandler wires HTTP endpoints to the auth service.
type AuthHandler struct {
	service authService
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc authService) *AuthHandler {
	return &AuthHandler{service: svc}
}

// Login godoc
// @Summary Authenticate user
// @Description Authenticate user by email and password. A user belonging to one school has it selected.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid login payload"))
		return
	}
	sess, err := sessionFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	res, err := h.service.Login(c.Request.Context(), req, sess, middleware.RequestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if !saveSession(c) {
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// Logout godoc
// @Summary Logout current session
// @Description Records the sign-out in the selected school and destroys the session
// @Tags Authentication
// @Produce json
// @Success 204 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	principal := middleware.PrincipalFrom(c)
	if principal == nil {
		response.Error(c, appErrors.ErrUnauthenticated)
		return
	}
	sess, err := sessionFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.service.Logout(c.Request.Context(), principal, sess, middleware.RequestContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	if !saveSession(c) {
		return
	}

	response.NoContent(c)
}

// Me godoc
// @Summary Get current user
// @Description Returns the authenticated user's info
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthenticated)
		return
	}

	info := models.UserInfo{
		ID:        claims.UserID,
		Email:     claims.Email,
		FirstName: claims.FirstName,
		LastName:  claims.LastName,
		Role:      claims.Role,
	}

	response.JSON(c, http.StatusOK, info, nil)
}
