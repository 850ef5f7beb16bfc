package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/possync/backend/internal/domain/shared"
)

// Order is the finalized record materialized from a processed sale.
// SourceSaleID is the idempotency key: at most one order ever exists per sale.
type Order struct {
	shared.TenantAggregateRoot
	BranchID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_orders_branch_day_number,priority:2"`

	// OrderNumber is sequential per branch per day
	OrderNumber int       `gorm:"not null;uniqueIndex:idx_orders_branch_day_number,priority:4"`
	OrderDate   time.Time `gorm:"type:date;not null;uniqueIndex:idx_orders_branch_day_number,priority:3"`

	OrderType     Type       `gorm:"not null;default:dine_in"`
	TableID       *uuid.UUID `gorm:"type:uuid"`
	PaymentMethod string
	SourceSaleID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`

	Subtotal       decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	TaxAmount      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Total          decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`

	LineItems []LineItem `gorm:"foreignKey:OrderID;references:ID"`
}

// TableName returns the table name for GORM
func (Order) TableName() string {
	return "orders"
}

// NewOrder creates a new order materialized from a sale
func NewOrder(tenantID, branchID, sourceSaleID uuid.UUID, orderType Type) (*Order, error) {
	if sourceSaleID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_SOURCE_SALE", "Source sale ID cannot be empty")
	}

	return &Order{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		BranchID:            branchID,
		OrderDate:           time.Now().Truncate(24 * time.Hour),
		OrderType:           orderType,
		SourceSaleID:        sourceSaleID,
		Subtotal:            decimal.Zero,
		TaxAmount:           decimal.Zero,
		DiscountAmount:      decimal.Zero,
		Total:               decimal.Zero,
		LineItems:           make([]LineItem, 0),
	}, nil
}

// AddLineItem appends a line item and recalculates totals. Unmapped items are
// still recorded so nothing sold is silently dropped; they carry the unmapped
// flag for downstream display.
func (o *Order) AddLineItem(item LineItem) {
	item.OrderID = o.ID
	o.LineItems = append(o.LineItems, item)
	o.Subtotal = o.Subtotal.Add(item.UnitPrice.Mul(item.Quantity))
	o.TaxAmount = o.TaxAmount.Add(item.TaxAmount)
	o.DiscountAmount = o.DiscountAmount.Add(item.DiscountAmount)
	o.Total = o.Subtotal.Add(o.TaxAmount).Sub(o.DiscountAmount)
}

// LineItem is one line of a materialized order
type LineItem struct {
	shared.BaseEntity
	OrderID    uuid.UUID  `gorm:"type:uuid;not null;index"`
	MenuItemID *uuid.UUID `gorm:"type:uuid;index"`
	Name       string     `gorm:"not null"`

	Quantity       decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UnitPrice      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	TaxAmount      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`

	// IsUnmapped flags items sold under a product code with no menu item
	// mapping at processing time
	IsUnmapped bool `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (LineItem) TableName() string {
	return "order_line_items"
}

// DiningTable is a physical table at a branch, referenced by POS table number
type DiningTable struct {
	shared.TenantAggregateRoot
	BranchID    uuid.UUID `gorm:"type:uuid;not null;index"`
	TableNumber string    `gorm:"not null;index"`
	IsActive    bool      `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (DiningTable) TableName() string {
	return "dining_tables"
}
