package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/possync/backend/internal/domain/mapping"
)

// MappingHandler exposes the product code registry
type MappingHandler struct {
	BaseHandler
	mappings mapping.Repository
	logger   *zap.Logger
}

// NewMappingHandler creates a new mapping handler
func NewMappingHandler(mappings mapping.Repository, logger *zap.Logger) *MappingHandler {
	return &MappingHandler{
		mappings: mappings,
		logger:   logger,
	}
}

// RegisterRoutes registers mapping routes
func (h *MappingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/mappings/unmapped", h.ListUnmapped)
}

// ListUnmapped handles GET /api/v1/mappings/unmapped
// Returns product codes seen in sales that have no menu item yet, most
// frequently sold first, so staff know which mappings to fix first.
func (h *MappingHandler) ListUnmapped(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "invalid tenant ID")
		return
	}
	branchID, err := uuid.Parse(c.Query("branch_id"))
	if err != nil {
		h.BadRequest(c, "invalid branch ID")
		return
	}

	unmapped, err := h.mappings.FindUnmapped(c.Request.Context(), tenantID, branchID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, unmapped)
}
