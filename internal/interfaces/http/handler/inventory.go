package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/possync/backend/internal/application/alerting"
	inventoryapp "github.com/possync/backend/internal/application/inventory"
	"github.com/possync/backend/internal/domain/inventory"
	"github.com/possync/backend/internal/domain/shared"
	"github.com/possync/backend/internal/interfaces/http/dto"
)

// InventoryHandler exposes the stock ledger, manual adjustments and
// low-stock alerts
type InventoryHandler struct {
	BaseHandler
	movements inventory.MovementRepository
	stock     *inventoryapp.StockService
	alerts    *alerting.LowStockService
	logger    *zap.Logger
}

// NewInventoryHandler creates a new inventory handler
func NewInventoryHandler(movements inventory.MovementRepository, stock *inventoryapp.StockService, alerts *alerting.LowStockService, logger *zap.Logger) *InventoryHandler {
	return &InventoryHandler{
		movements: movements,
		stock:     stock,
		alerts:    alerts,
		logger:    logger,
	}
}

// RegisterRoutes registers inventory routes
func (h *InventoryHandler) RegisterRoutes(rg *gin.RouterGroup) {
	inv := rg.Group("/inventory")
	{
		inv.GET("/movements", h.ListMovements)
		inv.GET("/movements/summary", h.GetMovementSummary)
		inv.POST("/adjustments", h.AdjustStock)
		inv.GET("/low-stock", h.GetLowStock)
	}
}

// AdjustStockRequest is a manual stock correction. Quantity is signed:
// positive replenishes, negative removes.
type AdjustStockRequest struct {
	ItemID   uuid.UUID       `json:"item_id" binding:"required"`
	Quantity decimal.Decimal `json:"quantity" binding:"required"`
	Notes    string          `json:"notes" binding:"max=500"`
}

// AdjustStock handles POST /api/v1/inventory/adjustments
// Applies the correction and returns the resulting ledger movement.
func (h *InventoryHandler) AdjustStock(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "invalid tenant ID")
		return
	}

	var req AdjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	movement, err := h.stock.AdjustStock(c.Request.Context(), tenantID, req.ItemID, req.Quantity, req.Notes)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, movement)
}

// MovementListRequest filters the movement history query
type MovementListRequest struct {
	dto.ListRequest
	ItemID string `form:"item_id" binding:"omitempty,uuid"`
	Type   string `form:"type" binding:"omitempty,oneof=deduction adjustment"`
	From   string `form:"from" binding:"omitempty"`
	To     string `form:"to" binding:"omitempty"`
}

// ListMovements handles GET /api/v1/inventory/movements
// Returns the append-only movement history, newest first.
func (h *InventoryHandler) ListMovements(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "invalid tenant ID")
		return
	}

	req := MovementListRequest{ListRequest: dto.DefaultListRequest()}
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	filter := inventory.MovementFilter{}
	if req.ItemID != "" {
		id, err := uuid.Parse(req.ItemID)
		if err != nil {
			h.BadRequest(c, "invalid item ID")
			return
		}
		filter.InventoryItemID = &id
	}
	if req.Type != "" {
		filter.Types = []inventory.MovementType{inventory.MovementType(req.Type)}
	}
	if req.From != "" {
		from, err := time.Parse(time.RFC3339, req.From)
		if err != nil {
			h.BadRequest(c, "invalid from timestamp, expected RFC3339")
			return
		}
		filter.From = &from
	}
	if req.To != "" {
		to, err := time.Parse(time.RFC3339, req.To)
		if err != nil {
			h.BadRequest(c, "invalid to timestamp, expected RFC3339")
			return
		}
		filter.To = &to
	}

	page := shared.Filter{
		Page:     req.Page,
		PageSize: req.PageSize,
		OrderBy:  req.OrderBy,
		OrderDir: req.OrderDir,
	}

	movements, total, err := h.movements.FindByFilter(c.Request.Context(), tenantID, filter, page)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, movements, total, page.Page, page.PageSize)
}

// MovementSummaryResponse aggregates ledger flow over a date range
type MovementSummaryResponse struct {
	From     time.Time       `json:"from"`
	To       time.Time       `json:"to"`
	StockIn  decimal.Decimal `json:"stock_in"`
	StockOut decimal.Decimal `json:"stock_out"`
}

// GetMovementSummary handles GET /api/v1/inventory/movements/summary
// Defaults to the last 30 days when no range is given.
func (h *InventoryHandler) GetMovementSummary(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "invalid tenant ID")
		return
	}

	now := time.Now().UTC()
	from := now.AddDate(0, 0, -30)
	to := now
	if v := c.Query("from"); v != "" {
		if from, err = time.Parse(time.RFC3339, v); err != nil {
			h.BadRequest(c, "invalid from timestamp, expected RFC3339")
			return
		}
	}
	if v := c.Query("to"); v != "" {
		if to, err = time.Parse(time.RFC3339, v); err != nil {
			h.BadRequest(c, "invalid to timestamp, expected RFC3339")
			return
		}
	}

	var itemID *uuid.UUID
	if v := c.Query("item_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			h.BadRequest(c, "invalid item ID")
			return
		}
		itemID = &id
	}

	stockIn, stockOut, err := h.movements.SumInOut(c.Request.Context(), tenantID, itemID, from, to)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, MovementSummaryResponse{
		From:     from,
		To:       to,
		StockIn:  stockIn,
		StockOut: stockOut,
	})
}

// GetLowStock handles GET /api/v1/inventory/low-stock
// Evaluates every item in the branch against its minimum threshold.
func (h *InventoryHandler) GetLowStock(c *gin.Context) {
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

	alerts, err := h.alerts.CheckBranch(c.Request.Context(), tenantID, branchID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, alerts)
}
