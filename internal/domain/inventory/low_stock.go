package inventory

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AlertSeverity tiers low-stock alerts by how far below minimum an item sits
type AlertSeverity string

const (
	SeverityCritical AlertSeverity = "critical"
	SeverityWarning  AlertSeverity = "warning"
	SeverityLow      AlertSeverity = "low"
)

// Severity thresholds over (current / minimum * 100)
var (
	criticalThreshold = decimal.NewFromInt(50)
	warningThreshold  = decimal.NewFromInt(75)
	hundred           = decimal.NewFromInt(100)
)

// LowStockAlert is a derived, non-persisted report of an item at or below
// its minimum stock threshold
type LowStockAlert struct {
	InventoryItemID  uuid.UUID       `json:"inventory_item_id"`
	Name             string          `json:"name"`
	Unit             string          `json:"unit"`
	CurrentStock     decimal.Decimal `json:"current_stock"`
	MinimumStock     decimal.Decimal `json:"minimum_stock"`
	PercentRemaining decimal.Decimal `json:"percent_remaining"`
	Severity         AlertSeverity   `json:"severity"`
}

// EvaluateStockLevel computes the low-stock alert for an item, if any.
// Items with a positive minimum are only reported when current stock is at
// or below it. A non-positive minimum is always critical regardless of
// current stock, guarding the division by zero.
func EvaluateStockLevel(item *InventoryItem) (*LowStockAlert, bool) {
	alert := &LowStockAlert{
		InventoryItemID: item.ID,
		Name:            item.Name,
		Unit:            item.Unit,
		CurrentStock:    item.CurrentStock,
		MinimumStock:    item.MinimumStock,
	}

	if !item.MinimumStock.IsPositive() {
		alert.PercentRemaining = decimal.Zero
		alert.Severity = SeverityCritical
		return alert, true
	}

	if item.CurrentStock.GreaterThan(item.MinimumStock) {
		return nil, false
	}

	pct := item.CurrentStock.Div(item.MinimumStock).Mul(hundred)
	alert.PercentRemaining = pct

	switch {
	case pct.LessThan(criticalThreshold):
		alert.Severity = SeverityCritical
	case pct.LessThan(warningThreshold):
		alert.Severity = SeverityWarning
	default:
		alert.Severity = SeverityLow
	}
	return alert, true
}
