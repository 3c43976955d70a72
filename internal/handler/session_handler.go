package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/sma-tenant-api/internal/dto"
	"github.com/noah-isme/sma-tenant-api/internal/middleware"
	"github.com/noah-isme/sma-tenant-api/internal/models"
	"github.com/noah-isme/sma-tenant-api/internal/service"
	appErrors "github.com/noah-isme/sma-tenant-api/pkg/errors"
	"github.com/noah-isme/sma-tenant-api/pkg/response"
)

type schoolSelection interface {
	Schools(ctx context.Context, principal *models.Principal) ([]string, error)
	SelectSchool(ctx context.Context, principal *models.Principal, sess service.SessionAttributes, schoolID string) (*dto.SessionSchool, error)
	SelectRole(ctx context.Context, principal *models.Principal, sess service.SessionAttributes, role string) (*dto.SessionSchool, error)
	Current(principal *models.Principal, sess service.SessionAttributes) (*dto.SessionSchool, error)
	Clear(sess service.SessionAttributes)
}

// SessionHandler manages the school selected for the caller's session.
type SessionHandler struct {
	schools   schoolSelection
	validator *validator.Validate
}

// NewSessionHandler constructs SessionHandler.
func NewSessionHandler(schools schoolSelection, validate *validator.Validate) *SessionHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &SessionHandler{schools: schools, validator: validate}
}

// Schools godoc
// @Summary List selectable schools
// @Tags Session
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /session/schools [get]
func (h *SessionHandler) Schools(c *gin.Context) {
	schools, err := h.schools.Schools(c.Request.Context(), middleware.PrincipalFrom(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if schools == nil {
		schools = []string{}
	}
	response.JSON(c, http.StatusOK, schools, nil)
}

// Current godoc
// @Summary Get the selected school
// @Tags Session
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /session/school [get]
func (h *SessionHandler) Current(c *gin.Context) {
	sess, err := sessionFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	current, err := h.schools.Current(middleware.PrincipalFrom(c), sess)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, current, nil)
}

// SelectSchool godoc
// @Summary Select the school the session acts for
// @Tags Session
// @Accept json
// @Produce json
// @Param payload body dto.SelectSchoolRequest true "School selection"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /session/school [put]
func (h *SessionHandler) SelectSchool(c *gin.Context) {
	var req dto.SelectSchoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid school selection"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.Error(c, bindError(err, "invalid school selection"))
		return
	}
	sess, err := sessionFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	selected, err := h.schools.SelectSchool(c.Request.Context(), middleware.PrincipalFrom(c), sess, req.SchoolID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !saveSession(c) {
		return
	}
	response.JSON(c, http.StatusOK, selected, nil)
}

// SelectRole godoc
// @Summary Select the acting role in the selected school
// @Tags Session
// @Accept json
// @Produce json
// @Param payload body dto.SelectRoleRequest true "Role selection"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /session/role [put]
func (h *SessionHandler) SelectRole(c *gin.Context) {
	var req dto.SelectRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid role selection"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.Error(c, bindError(err, "invalid role selection"))
		return
	}
	sess, err := sessionFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	selected, err := h.schools.SelectRole(c.Request.Context(), middleware.PrincipalFrom(c), sess, req.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !saveSession(c) {
		return
	}
	response.JSON(c, http.StatusOK, selected, nil)
}

// Clear godoc
// @Summary Clear the selected school
// @Tags Session
// @Success 204 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /session/school [delete]
func (h *SessionHandler) Clear(c *gin.Context) {
	sess, err := sessionFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if middleware.PrincipalFrom(c) == nil {
		response.Error(c, appErrors.ErrUnauthenticated)
		return
	}
	h.schools.Clear(sess)
	if !saveSession(c) {
		return
	}
	response.NoContent(c)
}
