package inventory

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/possync/backend/internal/domain/shared"
)

// InventoryItem is stock of one ingredient at a branch. CurrentStock is the
// single hot contended resource in the system: it is mutated exclusively
// through compare-and-swap updates keyed on the previously-read value, never
// through unconditional writes.
type InventoryItem struct {
	shared.TenantAggregateRoot
	BranchID uuid.UUID `gorm:"type:uuid;not null;index"`
	Name     string    `gorm:"not null;index"`
	Unit     string    `gorm:"not null"`

	CurrentStock decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	MinimumStock decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	MaximumStock decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	UnitCost     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (InventoryItem) TableName() string {
	return "inventory_items"
}

// NewInventoryItem creates a new inventory item
func NewInventoryItem(tenantID, branchID uuid.UUID, name, unit string) (*InventoryItem, error) {
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Inventory item name cannot be empty")
	}

	return &InventoryItem{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		BranchID:            branchID,
		Name:                name,
		Unit:                unit,
		CurrentStock:        decimal.Zero,
		MinimumStock:        decimal.Zero,
		MaximumStock:        decimal.Zero,
		UnitCost:            decimal.Zero,
	}, nil
}

// IsBelowMinimum returns true if current stock is at or below the minimum threshold
func (i *InventoryItem) IsBelowMinimum() bool {
	return i.CurrentStock.LessThanOrEqual(i.MinimumStock)
}

// CanDeduct returns true if deducting quantity would not take stock negative
func (i *InventoryItem) CanDeduct(quantity decimal.Decimal) bool {
	return i.CurrentStock.GreaterThanOrEqual(quantity)
}
