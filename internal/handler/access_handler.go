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

type accessChecker interface {
	Allow(ctx context.Context, scope tenant.Scope, kind models.ResourceKind, id string) bool
}

// AccessHandler answers whether the caller may touch a resource in the selected school.
type AccessHandler struct {
	guard accessChecker
}

func NewAccessHandler(guard accessChecker) *AccessHandler {
	return &AccessHandler{guard: guard}
}

// Check godoc
// @Summary Check access to a resource
// @Description Unknown kinds, missing resources and resources of other schools all answer false.
// @Tags Access
// @Produce json
// @Param kind path string true "Resource kind"
// @Param id path string true "Resource ID"
// @Success 200 {object} response.Envelope
// @Router /access/{kind}/{id} [get]
func (h *AccessHandler) Check(c *gin.Context) {
	raw := c.Param("kind")
	id := c.Param("id")
	out := dto.AccessResponse{Kind: raw, ID: id}
	if kind, ok := models.ParseResourceKind(raw); ok {
		out.Allowed = h.guard.Allow(c.Request.Context(), middleware.ScopeFrom(c), kind, id)
	}
	response.JSON(c, http.StatusOK, out, nil)
}
