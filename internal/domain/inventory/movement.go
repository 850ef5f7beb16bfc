package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/possync/backend/internal/domain/shared"
)

// MovementType classifies a stock movement
type MovementType string

const (
	MovementTypeDeduction  MovementType = "deduction"
	MovementTypeAdjustment MovementType = "adjustment"
)

// ReferenceType links a movement to the action that caused it
type ReferenceType string

const (
	ReferenceTypeSale   ReferenceType = "sale"
	ReferenceTypeManual ReferenceType = "manual"
)

// Movement is one append-only entry in the stock ledger. Every accepted stock
// change has exactly one movement recording the before/after snapshot and a
// reference back to the causing sale or manual action. Movements are never
// updated or deleted.
type Movement struct {
	shared.BaseEntity
	TenantID        uuid.UUID    `gorm:"type:uuid;not null;index"`
	InventoryItemID uuid.UUID    `gorm:"type:uuid;not null;index"`
	MovementType    MovementType `gorm:"not null;index"`

	// Quantity is signed: negative for deductions, positive for replenishment
	Quantity      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	PreviousStock decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	NewStock      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UnitCost      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	TotalCost     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`

	ReferenceType ReferenceType `gorm:"not null;index"`
	ReferenceID   *uuid.UUID    `gorm:"type:uuid;index"`
	Notes         string
	PerformedAt   time.Time `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (Movement) TableName() string {
	return "inventory_movements"
}

// NewDeduction records stock consumed by a sale
func NewDeduction(item *InventoryItem, quantity, previousStock, newStock decimal.Decimal, saleID uuid.UUID) *Movement {
	return newMovement(item, MovementTypeDeduction, quantity.Neg(), previousStock, newStock, ReferenceTypeSale, &saleID, "")
}

// NewAdjustment records a manual stock correction
func NewAdjustment(item *InventoryItem, quantity, previousStock, newStock decimal.Decimal, notes string) *Movement {
	return newMovement(item, MovementTypeAdjustment, quantity, previousStock, newStock, ReferenceTypeManual, nil, notes)
}

func newMovement(item *InventoryItem, mt MovementType, quantity, previousStock, newStock decimal.Decimal, rt ReferenceType, refID *uuid.UUID, notes string) *Movement {
	return &Movement{
		BaseEntity:      shared.NewBaseEntity(),
		TenantID:        item.TenantID,
		InventoryItemID: item.ID,
		MovementType:    mt,
		Quantity:        quantity,
		PreviousStock:   previousStock,
		NewStock:        newStock,
		UnitCost:        item.UnitCost,
		TotalCost:       quantity.Abs().Mul(item.UnitCost),
		ReferenceType:   rt,
		ReferenceID:     refID,
		Notes:           notes,
		PerformedAt:     time.Now(),
	}
}

// MovementFilter narrows ledger history queries
type MovementFilter struct {
	InventoryItemID *uuid.UUID
	Types           []MovementType
	From            *time.Time
	To              *time.Time
}
