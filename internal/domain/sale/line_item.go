package sale

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/possync/backend/internal/domain/shared"
)

// LineItem is one sold item within a sale. It is created with the sale and
// mutated exactly once, by the product mapper attaching a menu item mapping.
type LineItem struct {
	shared.BaseEntity
	SaleID      uuid.UUID `gorm:"type:uuid;not null;index"`
	ProductCode string    `gorm:"not null;index"`
	ProductName string    `gorm:"not null"`

	Quantity       decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UnitPrice      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	TaxAmount      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Modifiers      string

	MappedMenuItemID *uuid.UUID `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (LineItem) TableName() string {
	return "sale_line_items"
}

// NewLineItem creates a new sale line item
func NewLineItem(productCode, productName string, quantity, unitPrice decimal.Decimal) (*LineItem, error) {
	if productCode == "" {
		return nil, shared.NewDomainError("INVALID_PRODUCT_CODE", "Product code cannot be empty")
	}
	if !quantity.IsPositive() {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
	}

	return &LineItem{
		BaseEntity:     shared.NewBaseEntity(),
		ProductCode:    productCode,
		ProductName:    productName,
		Quantity:       quantity,
		UnitPrice:      unitPrice,
		TaxAmount:      decimal.Zero,
		DiscountAmount: decimal.Zero,
	}, nil
}

// AttachMapping records the menu item this line item resolved to
func (li *LineItem) AttachMapping(menuItemID uuid.UUID) {
	li.MappedMenuItemID = &menuItemID
	li.UpdatedAt = time.Now()
}

// IsMapped returns true if the line item resolved to a menu item
func (li *LineItem) IsMapped() bool {
	return li.MappedMenuItemID != nil
}

// Payment is one payment applied to a sale
type Payment struct {
	shared.BaseEntity
	SaleID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	Method    string          `gorm:"not null"`
	Amount    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	TipAmount decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (Payment) TableName() string {
	return "sale_payments"
}
