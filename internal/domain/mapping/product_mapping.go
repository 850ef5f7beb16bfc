package mapping

import (
	"time"

	"github.com/google/uuid"

	"github.com/possync/backend/internal/domain/shared"
)

// Confidence grades how a mapping between a POS product code and a menu item
// was established
type Confidence string

const (
	// ConfidenceHigh is assigned to existing lookups and exact name matches
	ConfidenceHigh Confidence = "high"
	// ConfidenceMedium is assigned to substring name matches, which are
	// inherently less certain than exact matches
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
	// ConfidenceManual marks mappings resolved by an operator
	ConfidenceManual Confidence = "manual"
)

// ProductMapping resolves an external POS product code to an internal menu
// item within a tenant/branch scope. Unmapped registry entries carry a nil
// menu item id and are inactive, awaiting manual resolution.
type ProductMapping struct {
	shared.TenantAggregateRoot
	BranchID    uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_product_mappings_scope_code,priority:2"`
	ProductCode string    `gorm:"not null;uniqueIndex:idx_product_mappings_scope_code,priority:3"`
	ProductName string

	MenuItemID *uuid.UUID `gorm:"type:uuid;index"`
	Confidence Confidence `gorm:"not null;default:low"`
	IsActive   bool       `gorm:"not null;default:false"`

	TimesSold  int64 `gorm:"not null;default:0"`
	LastSoldAt *time.Time
}

// TableName returns the table name for GORM
func (ProductMapping) TableName() string {
	return "product_mappings"
}

// NewMapping creates an active mapping to a resolved menu item
func NewMapping(tenantID, branchID uuid.UUID, productCode, productName string, menuItemID uuid.UUID, confidence Confidence) (*ProductMapping, error) {
	if productCode == "" {
		return nil, shared.NewDomainError("INVALID_PRODUCT_CODE", "Product code cannot be empty")
	}
	if menuItemID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_MENU_ITEM", "Menu item ID cannot be empty")
	}

	return &ProductMapping{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		BranchID:            branchID,
		ProductCode:         productCode,
		ProductName:         productName,
		MenuItemID:          &menuItemID,
		Confidence:          confidence,
		IsActive:            true,
	}, nil
}

// NewUnmapped creates an inactive registry entry for a product code that
// could not be resolved. Null menu item is a valid, expected state meaning
// "needs manual review".
func NewUnmapped(tenantID, branchID uuid.UUID, productCode, productName string) (*ProductMapping, error) {
	if productCode == "" {
		return nil, shared.NewDomainError("INVALID_PRODUCT_CODE", "Product code cannot be empty")
	}

	return &ProductMapping{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		BranchID:            branchID,
		ProductCode:         productCode,
		ProductName:         productName,
		Confidence:          ConfidenceLow,
		IsActive:            false,
	}, nil
}

// RecordSale bumps usage statistics. Called on every sale containing this
// product code, mapped or not.
func (m *ProductMapping) RecordSale() {
	now := time.Now()
	m.TimesSold++
	m.LastSoldAt = &now
	m.UpdatedAt = now
	m.IncrementVersion()
}

// Resolve attaches a menu item to an unmapped entry and activates it
func (m *ProductMapping) Resolve(menuItemID uuid.UUID, confidence Confidence) error {
	if menuItemID == uuid.Nil {
		return shared.NewDomainError("INVALID_MENU_ITEM", "Menu item ID cannot be empty")
	}
	m.MenuItemID = &menuItemID
	m.Confidence = confidence
	m.IsActive = true
	m.UpdatedAt = time.Now()
	m.IncrementVersion()
	return nil
}

// Deactivate disables the mapping without deleting its statistics
func (m *ProductMapping) Deactivate() {
	m.IsActive = false
	m.UpdatedAt = time.Now()
	m.IncrementVersion()
}

// IsMapped returns true if the entry resolves to a menu item
func (m *ProductMapping) IsMapped() bool {
	return m.IsActive && m.MenuItemID != nil
}
