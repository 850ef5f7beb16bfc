package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/possync/backend/internal/domain/inventory"
	"github.com/possync/backend/internal/domain/shared"
)

// GormInventoryItemRepository implements inventory.ItemRepository using GORM
type GormInventoryItemRepository struct {
	db *gorm.DB
}

// NewGormInventoryItemRepository creates a new GormInventoryItemRepository
func NewGormInventoryItemRepository(db *gorm.DB) *GormInventoryItemRepository {
	return &GormInventoryItemRepository{db: db}
}

// FindByID finds an inventory item by its ID
func (r *GormInventoryItemRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.InventoryItem, error) {
	var item inventory.InventoryItem
	if err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

// FindByIDs finds multiple inventory items by their IDs
func (r *GormInventoryItemRepository) FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]inventory.InventoryItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var items []inventory.InventoryItem
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id IN ?", tenantID, ids).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// FindBelowMinimum finds all items at or below their minimum threshold
// within a branch
func (r *GormInventoryItemRepository) FindBelowMinimum(ctx context.Context, tenantID, branchID uuid.UUID) ([]inventory.InventoryItem, error) {
	var items []inventory.InventoryItem
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND branch_id = ? AND current_stock <= minimum_stock", tenantID, branchID).
		Order("name ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Save creates or updates an inventory item's non-stock fields. Stock only
// moves through UpdateStockCAS.
func (r *GormInventoryItemRepository) Save(ctx context.Context, item *inventory.InventoryItem) error {
	if item.CreatedAt.IsZero() {
		return r.db.WithContext(ctx).Create(item).Error
	}
	return r.db.WithContext(ctx).
		Model(item).
		Updates(map[string]interface{}{
			"name":          item.Name,
			"unit":          item.Unit,
			"minimum_stock": item.MinimumStock,
			"maximum_stock": item.MaximumStock,
			"unit_cost":     item.UnitCost,
			"updated_at":    time.Now(),
		}).Error
}

// UpdateStockCAS sets current_stock to newStock only if it still equals
// expectedStock. Zero rows affected means a concurrent writer got there
// first; callers must re-read before retrying.
func (r *GormInventoryItemRepository) UpdateStockCAS(ctx context.Context, itemID uuid.UUID, expectedStock, newStock decimal.Decimal) error {
	result := r.db.WithContext(ctx).
		Model(&inventory.InventoryItem{}).
		Where("id = ? AND current_stock = ?", itemID, expectedStock).
		Updates(map[string]interface{}{
			"current_stock": newStock,
			"version":       gorm.Expr("version + 1"),
			"updated_at":    time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}
