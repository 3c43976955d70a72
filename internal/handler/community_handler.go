package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-tenant-api/internal/dto"
	"github.com/noah-isme/sma-tenant-api/internal/middleware"
	"github.com/noah-isme/sma-tenant-api/internal/models"
	"github.com/noah-isme/sma-tenant-api/internal/tenant"
	"github.com/noah-isme/sma-tenant-api/pkg/response"
)

type communityService interface {
	SaveStaff(ctx context.Context, scope tenant.Scope, id string, req dto.SaveStaffRequest) (*models.Staff, error)
	SaveStudent(ctx context.Context, scope tenant.Scope, id string, req dto.SaveStudentRequest) (*models.Student, error)
	SaveParent(ctx context.Context, scope tenant.Scope, id string, req dto.SaveParentRequest) (*models.Parent, error)
	ListStaff(ctx context.Context, scope tenant.Scope) ([]models.Staff, error)
	ListStudents(ctx context.Context, scope tenant.Scope) ([]models.Student, error)
	ListParents(ctx context.Context, scope tenant.Scope) ([]models.Parent, error)
}

// CommunityHandler exposes staff, student and parent records of the selected school.
type CommunityHandler struct {
	community communityService
}

// NewCommunityHandler constructs CommunityHandler.
func NewCommunityHandler(community communityService) *CommunityHandler {
	return &CommunityHandler{community: community}
}

func saved[T any](c *gin.Context, id string, result *T, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	if id == "" {
		response.Created(c, result)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

func listed[T any](c *gin.Context, items []T, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	if items == nil {
		items = []T{}
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// ListStaff godoc
// @Summary List staff of the selected school
// @Tags Community
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /staff [get]
func (h *CommunityHandler) ListStaff(c *gin.Context) {
	items, err := h.community.ListStaff(c.Request.Context(), middleware.ScopeFrom(c))
	listed(c, items, err)
}

// SaveStaff godoc
// @Summary Create or update a staff member
// @Tags Community
// @Accept json
// @Produce json
// @Param id path string false "Staff ID"
// @Param payload body dto.SaveStaffRequest true "Staff payload"
// @Success 200 {object} response.Envelope
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /staff [post]
// @Router /staff/{id} [put]
func (h *CommunityHandler) SaveStaff(c *gin.Context) {
	var req dto.SaveStaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid staff payload"))
		return
	}
	id := c.Param("id")
	staff, err := h.community.SaveStaff(c.Request.Context(), middleware.ScopeFrom(c), id, req)
	saved(c, id, staff, err)
}

// ListStudents godoc
// @Summary List students of the selected school
// @Tags Community
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /students [get]
func (h *CommunityHandler) ListStudents(c *gin.Context) {
	items, err := h.community.ListStudents(c.Request.Context(), middleware.ScopeFrom(c))
	listed(c, items, err)
}

// SaveStudent godoc
// @Summary Create or update a student
// @Tags Community
// @Accept json
// @Produce json
// @Param id path string false "Student ID"
// @Param payload body dto.SaveStudentRequest true "Student payload"
// @Success 200 {object} response.Envelope
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students [post]
// @Router /students/{id} [put]
func (h *CommunityHandler) SaveStudent(c *gin.Context) {
	var req dto.SaveStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid student payload"))
		return
	}
	id := c.Param("id")
	student, err := h.community.SaveStudent(c.Request.Context(), middleware.ScopeFrom(c), id, req)
	saved(c, id, student, err)
}

// ListParents godoc
// @Summary List parents of the selected school
// @Tags Community
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /parents [get]
func (h *CommunityHandler) ListParents(c *gin.Context) {
	items, err := h.community.ListParents(c.Request.Context(), middleware.ScopeFrom(c))
	listed(c, items, err)
}

// SaveParent godoc
// @Summary Create or update a parent
// @Tags Community
// @Accept json
// @Produce json
// @Param id path string false "Parent ID"
// @Param payload body dto.SaveParentRequest true "Parent payload"
// @Success 200 {object} response.Envelope
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /parents [post]
// @Router /parents/{id} [put]
func (h *CommunityHandler) SaveParent(c *gin.Context) {
	var req dto.SaveParentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid parent payload"))
		return
	}
	id := c.Param("id")
	parent, err := h.community.SaveParent(c.Request.Context(), middleware.ScopeFrom(c), id, req)
	saved(c, id, parent, err)
}
