package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/sma-tenant-api/internal/dto"
	"github.com/noah-isme/sma-tenant-api/internal/middleware"
	"github.com/noah-isme/sma-tenant-api/internal/models"
	"github.com/noah-isme/sma-tenant-api/internal/service"
	appErrors "github.com/noah-isme/sma-tenant-api/pkg/errors"
	"github.com/noah-isme/sma-tenant-api/pkg/export"
	"github.com/noah-isme/sma-tenant-api/pkg/response"
)

type activityService interface {
	List(ctx context.Context, tenantID string, filter models.ActivityFilter) ([]models.ActivityLog, *models.Pagination, error)
	Recent(ctx context.Context, tenantID string, limit int) ([]models.ActivityLog, error)
	RelatedToUser(ctx context.Context, tenantID, userID string, page, size int) ([]models.ActivityLog, *models.Pagination, error)
	Stats(ctx context.Context, tenantID string, days int) ([]models.ActivityStat, error)
	LogManualActivity(ctx context.Context, tenantID string, principal *models.Principal, req service.ManualActivityRequest, rc *models.RequestContext) (*models.ActivityLog, error)
	ExportDataset(ctx context.Context, tenantID string, filter models.ActivityFilter) (export.Dataset, error)
}

type activityBackfiller interface {
	Backfill(ctx context.Context, tenantID, systemUserID string) (*dto.BackfillResult, error)
	InitializeSystem(ctx context.Context, tenantID, systemUserID string) error
}

// ActivityHandler exposes the activity log of the selected school.
type ActivityHandler struct {
	activities    activityService
	backfill      activityBackfiller
	validator     *validator.Validate
	exportEnabled bool
}

// NewActivityHandler constructs ActivityHandler.
func NewActivityHandler(activities activityService, backfill activityBackfiller, validate *validator.Validate, exportEnabled bool) *ActivityHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &ActivityHandler{activities: activities, backfill: backfill, validator: validate, exportEnabled: exportEnabled}
}

func (h *ActivityHandler) filter(c *gin.Context) (models.ActivityFilter, *dto.ActivityQuery, error) {
	var query dto.ActivityQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		return models.ActivityFilter{}, nil, bindError(err, "invalid activity query")
	}
	if err := h.validator.Struct(query); err != nil {
		return models.ActivityFilter{}, nil, bindError(err, "invalid activity query")
	}

	filter := models.ActivityFilter{Role: query.Role, Page: query.Page, PageSize: query.PageSize}
	if query.Type != "" {
		activityType := models.ActivityType(query.Type)
		if !activityType.Valid() {
			return models.ActivityFilter{}, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown activity type %q", query.Type))
		}
		filter.Type = &activityType
	}
	if query.Days > 0 {
		since := time.Now().UTC().AddDate(0, 0, -query.Days)
		filter.Since = &since
	}
	return filter, &query, nil
}

// List godoc
// @Summary List activities
// @Tags Activities
// @Produce json
// @Param type query string false "Activity type"
// @Param role query string false "Actor role"
// @Param days query int false "Only the last N days"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /activities [get]
func (h *ActivityHandler) List(c *gin.Context) {
	filter, _, err := h.filter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	entries, pagination, err := h.activities.List(c.Request.Context(), middleware.ScopeFrom(c).TenantID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, pagination)
}

// Recent godoc
// @Summary Recent activities
// @Tags Activities
// @Produce json
// @Param limit query int false "Maximum entries"
// @Success 200 {object} response.Envelope
// @Router /activities/recent [get]
func (h *ActivityHandler) Recent(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	entries, err := h.activities.Recent(c.Request.Context(), middleware.ScopeFrom(c).TenantID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// ForUser godoc
// @Summary Activities performed by or about a user
// @Tags Activities
// @Produce json
// @Param userId path string true "User ID"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /activities/users/{userId} [get]
func (h *ActivityHandler) ForUser(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	entries, pagination, err := h.activities.RelatedToUser(c.Request.Context(), middleware.ScopeFrom(c).TenantID, c.Param("userId"), page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, pagination)
}

// Stats godoc
// @Summary Activity counts per type
// @Tags Activities
// @Produce json
// @Param days query int false "Window in days"
// @Success 200 {object} response.Envelope
// @Router /activities/stats [get]
func (h *ActivityHandler) Stats(c *gin.Context) {
	days, _ := strconv.Atoi(c.Query("days"))
	stats, err := h.activities.Stats(c.Request.Context(), middleware.ScopeFrom(c).TenantID, days)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil, map[string]interface{}{"days": days})
}

// Export godoc
// @Summary Export activities
// @Tags Activities
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /activities/export [get]
func (h *ActivityHandler) Export(c *gin.Context) {
	if !h.exportEnabled {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "activity export is disabled"))
		return
	}
	filter, query, err := h.filter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	format, err := export.ParseFormat(query.Format)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}

	scope := middleware.ScopeFrom(c)
	dataset, err := h.activities.ExportDataset(c.Request.Context(), scope.TenantID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	renderer := export.RendererFor(format)
	body, err := renderer.Render(dataset)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export"))
		return
	}
	filename := fmt.Sprintf("activities-%s.%s", time.Now().UTC().Format("20060102"), renderer.Extension())
	response.Attachment(c, filename, renderer.ContentType(), body)
}

// Record godoc
// @Summary Record an activity
// @Tags Activities
// @Accept json
// @Produce json
// @Param payload body service.ManualActivityRequest true "Activity"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /activities [post]
func (h *ActivityHandler) Record(c *gin.Context) {
	var req service.ManualActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid activity payload"))
		return
	}
	scope := middleware.ScopeFrom(c)
	if scope.Principal == nil {
		response.Error(c, appErrors.ErrUnauthenticated)
		return
	}
	entry, err := h.activities.LogManualActivity(c.Request.Context(), scope.TenantID, scope.Principal, req, scope.Request)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// Backfill godoc
// @Summary Backfill historical activities
// @Description Writes one historical entry per staff, student and parent that has none yet.
// @Tags Activities
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /activities/backfill [post]
func (h *ActivityHandler) Backfill(c *gin.Context) {
	scope := middleware.ScopeFrom(c)
	if scope.Principal == nil {
		response.Error(c, appErrors.ErrUnauthenticated)
		return
	}
	result, err := h.backfill.Backfill(c.Request.Context(), scope.TenantID, scope.Principal.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// InitializeSystem godoc
// @Summary Record activity logging initialisation
// @Tags Activities
// @Success 204 {object} response.Envelope
// @Router /activities/initialize [post]
func (h *ActivityHandler) InitializeSystem(c *gin.Context) {
	scope := middleware.ScopeFrom(c)
	if scope.Principal == nil {
		response.Error(c, appErrors.ErrUnauthenticated)
		return
	}
	if err := h.backfill.InitializeSystem(c.Request.Context(), scope.TenantID, scope.Principal.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
