package menu

import (
	"time"

	"github.com/google/uuid"

	"github.com/possync/backend/internal/domain/shared"
)

// MenuItem is a sellable item on a branch menu
type MenuItem struct {
	shared.TenantAggregateRoot
	BranchID uuid.UUID `gorm:"type:uuid;not null;index"`
	Name     string    `gorm:"not null;index"`
	IsActive bool      `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (MenuItem) TableName() string {
	return "menu_items"
}

// NewMenuItem creates a new active menu item
func NewMenuItem(tenantID, branchID uuid.UUID, name string) (*MenuItem, error) {
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Menu item name cannot be empty")
	}

	return &MenuItem{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		BranchID:            branchID,
		Name:                name,
		IsActive:            true,
	}, nil
}

// Deactivate soft-disables the menu item
func (m *MenuItem) Deactivate() {
	m.IsActive = false
	m.UpdatedAt = time.Now()
	m.IncrementVersion()
}
