package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/possync/backend/internal/domain/order"
	"github.com/possync/backend/internal/domain/shared"
)

// GormOrderRepository implements order.Repository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// FindByID finds an order by its ID with line items preloaded
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	var o order.Order
	if err := r.db.WithContext(ctx).
		Preload("LineItems").
		First(&o, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

// FindBySourceSale finds the order materialized from a sale, if any
func (r *GormOrderRepository) FindBySourceSale(ctx context.Context, tenantID, sourceSaleID uuid.UUID) (*order.Order, error) {
	var o order.Order
	if err := r.db.WithContext(ctx).
		Preload("LineItems").
		Where("tenant_id = ? AND source_sale_id = ?", tenantID, sourceSaleID).
		First(&o).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

// NextOrderNumber returns the next sequential order number for a branch on
// the given date
func (r *GormOrderRepository) NextOrderNumber(ctx context.Context, tenantID, branchID uuid.UUID, date time.Time) (int, error) {
	return r.nextOrderNumber(r.db.WithContext(ctx), tenantID, branchID, date)
}

func (r *GormOrderRepository) nextOrderNumber(tx *gorm.DB, tenantID, branchID uuid.UUID, date time.Time) (int, error) {
	var last int
	err := tx.Model(&order.Order{}).
		Select("COALESCE(MAX(order_number), 0)").
		Where("tenant_id = ? AND branch_id = ? AND order_date = ?", tenantID, branchID, date).
		Scan(&last).Error
	if err != nil {
		return 0, err
	}
	return last + 1, nil
}

// CreateWithNumber assigns the order number and inserts the order with its
// line items in one transaction. A losing concurrent insert hits the unique
// branch/day/number index and surfaces as shared.ErrAlreadyExists.
func (r *GormOrderRepository) CreateWithNumber(ctx context.Context, o *order.Order) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := r.nextOrderNumber(tx, o.TenantID, o.BranchID, o.OrderDate)
		if err != nil {
			return err
		}
		o.OrderNumber = number
		return tx.Create(o).Error
	})

	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return shared.ErrAlreadyExists
	}
	return err
}

// GormDiningTableRepository implements order.TableRepository using GORM
type GormDiningTableRepository struct {
	db *gorm.DB
}

// NewGormDiningTableRepository creates a new GormDiningTableRepository
func NewGormDiningTableRepository(db *gorm.DB) *GormDiningTableRepository {
	return &GormDiningTableRepository{db: db}
}

// FindByNumber finds an active table by its POS table number within a
// tenant/branch scope
func (r *GormDiningTableRepository) FindByNumber(ctx context.Context, tenantID, branchID uuid.UUID, tableNumber string) (*order.DiningTable, error) {
	var table order.DiningTable
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND branch_id = ? AND table_number = ? AND is_active = true",
			tenantID, branchID, tableNumber).
		First(&table).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &table, nil
}
