package inventory

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/possync/backend/internal/domain/shared"
)

// Event types for the inventory aggregate
const (
	EventTypeStockDeducted    = "inventory.stock_deducted"
	EventTypeLowStockDetected = "inventory.low_stock_detected"
)

// StockDeductedEvent is emitted after a deduction was applied and recorded
type StockDeductedEvent struct {
	shared.BaseDomainEvent
	SaleID        uuid.UUID       `json:"sale_id"`
	Quantity      decimal.Decimal `json:"quantity"`
	PreviousStock decimal.Decimal `json:"previous_stock"`
	NewStock      decimal.Decimal `json:"new_stock"`
}

// NewStockDeductedEvent creates a new StockDeductedEvent
func NewStockDeductedEvent(item *InventoryItem, saleID uuid.UUID, quantity, previousStock, newStock decimal.Decimal) *StockDeductedEvent {
	return &StockDeductedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockDeducted, "InventoryItem", item.ID, item.TenantID),
		SaleID:          saleID,
		Quantity:        quantity,
		PreviousStock:   previousStock,
		NewStock:        newStock,
	}
}

// LowStockDetectedEvent is emitted when an item is found at or below its
// minimum stock threshold
type LowStockDetectedEvent struct {
	shared.BaseDomainEvent
	Alert LowStockAlert `json:"alert"`
}

// NewLowStockDetectedEvent creates a new LowStockDetectedEvent
func NewLowStockDetectedEvent(tenantID uuid.UUID, alert LowStockAlert) *LowStockDetectedEvent {
	return &LowStockDetectedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLowStockDetected, "InventoryItem", alert.InventoryItemID, tenantID),
		Alert:           alert,
	}
}
