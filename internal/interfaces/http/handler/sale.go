package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/possync/backend/internal/application/ingestion"
	"github.com/possync/backend/internal/domain/sale"
	"github.com/possync/backend/internal/interfaces/http/dto"
)

// SaleHandler receives POS webhook pushes and exposes sale lookups
type SaleHandler struct {
	BaseHandler
	ingestion *ingestion.Service
	sales     sale.Repository
	logger    *zap.Logger
}

// NewSaleHandler creates a new sale handler
func NewSaleHandler(ingestionService *ingestion.Service, sales sale.Repository, logger *zap.Logger) *SaleHandler {
	return &SaleHandler{
		ingestion: ingestionService,
		sales:     sales,
		logger:    logger,
	}
}

// SaleResponse is the webhook acknowledgement payload
type SaleResponse struct {
	ID           uuid.UUID       `json:"id"`
	Folio        string          `json:"folio"`
	Status       string          `json:"status"`
	RetryCount   int             `json:"retry_count"`
	ErrorMessage string          `json:"error_message,omitempty"`
	OrderID      *uuid.UUID      `json:"order_id,omitempty"`
	ProcessedAt  *time.Time      `json:"processed_at,omitempty"`
	Total        decimal.Decimal `json:"total"`
	CreatedAt    time.Time       `json:"created_at"`
}

func toSaleResponse(s *sale.Sale) SaleResponse {
	return SaleResponse{
		ID:           s.ID,
		Folio:        s.Folio,
		Status:       string(s.Status),
		RetryCount:   s.RetryCount,
		ErrorMessage: s.ErrorMessage,
		OrderID:      s.OrderID,
		ProcessedAt:  s.ProcessedAt,
		Total:        s.Total,
		CreatedAt:    s.CreatedAt,
	}
}

// RegisterRoutes registers sale routes
func (h *SaleHandler) RegisterRoutes(rg *gin.RouterGroup) {
	sales := rg.Group("/sales")
	{
		sales.POST("/webhook", h.Ingest)
		sales.GET("/:id", h.GetSale)
	}
}

// Ingest handles POST /api/v1/sales/webhook
// Accepts a pushed sale, persists it and queues it for asynchronous
// processing. A duplicate folio is acknowledged with 200 and duplicate
// status so the POS does not keep retrying it.
func (h *SaleHandler) Ingest(c *gin.Context) {
	var req ingestion.SaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, err.Error())
		return
	}

	record, err := h.ingestion.IngestSale(c.Request.Context(), &req)
	if err != nil {
		if record == nil {
			h.HandleError(c, err)
			return
		}
		// The sale was stored but could not be queued. It will be picked
		// up later; a 5xx here would make the POS re-push the same folio.
		h.logger.Error("sale accepted but not queued",
			zap.String("sale_id", record.ID.String()),
			zap.String("folio", record.Folio),
			zap.Error(err))
		h.Accepted(c, toSaleResponse(record))
		return
	}

	if record.Status == sale.StatusDuplicate {
		h.Success(c, toSaleResponse(record))
		return
	}
	h.Accepted(c, toSaleResponse(record))
}

// GetSale handles GET /api/v1/sales/:id
func (h *SaleHandler) GetSale(c *gin.Context) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.BadRequest(c, "invalid sale ID")
		return
	}
	id, err := uuid.Parse(req.ID)
	if err != nil {
		h.BadRequest(c, "invalid sale ID")
		return
	}

	record, err := h.sales.FindWithLineItems(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, record)
}
