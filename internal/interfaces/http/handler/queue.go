package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/possync/backend/internal/application/queue"
)

// QueueHandler exposes processing queue statistics
type QueueHandler struct {
	BaseHandler
	queue  *queue.Service
	logger *zap.Logger
}

// NewQueueHandler creates a new queue handler
func NewQueueHandler(queueService *queue.Service, logger *zap.Logger) *QueueHandler {
	return &QueueHandler{
		queue:  queueService,
		logger: logger,
	}
}

// RegisterRoutes registers queue routes
func (h *QueueHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/queue/stats", h.GetStats)
}

// GetStats handles GET /api/v1/queue/stats
// Returns sale counts per processing status. Scoped to the tenant from
// the X-Tenant-ID header when present, global otherwise.
func (h *QueueHandler) GetStats(c *gin.Context) {
	var tenantID *uuid.UUID
	if c.GetHeader(TenantIDHeader) != "" {
		id, err := getTenantID(c)
		if err != nil {
			h.BadRequest(c, "invalid tenant ID")
			return
		}
		tenantID = &id
	}

	stats, err := h.queue.GetStats(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}
