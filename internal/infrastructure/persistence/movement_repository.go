package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/possync/backend/internal/domain/inventory"
	"github.com/possync/backend/internal/domain/shared"
)

// GormMovementRepository implements inventory.MovementRepository using GORM.
// The movements table is append-only; nothing here updates or deletes rows.
type GormMovementRepository struct {
	db *gorm.DB
}

// NewGormMovementRepository creates a new GormMovementRepository
func NewGormMovementRepository(db *gorm.DB) *GormMovementRepository {
	return &GormMovementRepository{db: db}
}

// Append persists a movement
func (r *GormMovementRepository) Append(ctx context.Context, m *inventory.Movement) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// FindByFilter returns movement history matching the filter, newest first
func (r *GormMovementRepository) FindByFilter(ctx context.Context, tenantID uuid.UUID, filter inventory.MovementFilter, page shared.Filter) ([]inventory.Movement, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&inventory.Movement{}).
		Where("tenant_id = ?", tenantID)

	if filter.InventoryItemID != nil {
		query = query.Where("inventory_item_id = ?", *filter.InventoryItemID)
	}
	if len(filter.Types) > 0 {
		query = query.Where("movement_type IN ?", filter.Types)
	}
	if filter.From != nil {
		query = query.Where("performed_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("performed_at <= ?", *filter.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if page.Page < 1 {
		page.Page = 1
	}
	if page.PageSize < 1 {
		page.PageSize = shared.DefaultFilter().PageSize
	}

	orderBy := ValidateSortField(page.OrderBy, MovementSortFields, "performed_at")
	orderDir := ValidateSortOrder(page.OrderDir)

	var movements []inventory.Movement
	if err := query.
		Order(orderBy + " " + orderDir).
		Offset((page.Page - 1) * page.PageSize).
		Limit(page.PageSize).
		Find(&movements).Error; err != nil {
		return nil, 0, err
	}
	return movements, total, nil
}

// SumInOut returns aggregate inbound and outbound quantities over a date
// range, optionally scoped to one item
func (r *GormMovementRepository) SumInOut(ctx context.Context, tenantID uuid.UUID, itemID *uuid.UUID, from, to time.Time) (decimal.Decimal, decimal.Decimal, error) {
	type sums struct {
		StockIn  decimal.Decimal
		StockOut decimal.Decimal
	}
	var result sums

	query := r.db.WithContext(ctx).
		Model(&inventory.Movement{}).
		Select(
			"COALESCE(SUM(CASE WHEN quantity > 0 THEN quantity ELSE 0 END), 0) as stock_in, "+
				"COALESCE(SUM(CASE WHEN quantity < 0 THEN -quantity ELSE 0 END), 0) as stock_out",
		).
		Where("tenant_id = ? AND performed_at >= ? AND performed_at <= ?", tenantID, from, to)
	if itemID != nil {
		query = query.Where("inventory_item_id = ?", *itemID)
	}

	if err := query.Scan(&result).Error; err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return result.StockIn, result.StockOut, nil
}
