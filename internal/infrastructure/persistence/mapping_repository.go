package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/possync/backend/internal/domain/mapping"
	"github.com/possync/backend/internal/domain/shared"
)

// GormProductMappingRepository implements mapping.Repository using GORM
type GormProductMappingRepository struct {
	db *gorm.DB
}

// NewGormProductMappingRepository creates a new GormProductMappingRepository
func NewGormProductMappingRepository(db *gorm.DB) *GormProductMappingRepository {
	return &GormProductMappingRepository{db: db}
}

// FindByCode finds the mapping entry for a product code within a tenant/branch
// scope, active or not
func (r *GormProductMappingRepository) FindByCode(ctx context.Context, tenantID, branchID uuid.UUID, productCode string) (*mapping.ProductMapping, error) {
	var m mapping.ProductMapping
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND branch_id = ? AND product_code = ?", tenantID, branchID, productCode).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// FindUnmapped returns inactive registry entries awaiting manual resolution,
// most sold first
func (r *GormProductMappingRepository) FindUnmapped(ctx context.Context, tenantID, branchID uuid.UUID) ([]mapping.ProductMapping, error) {
	var entries []mapping.ProductMapping
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND branch_id = ? AND is_active = false", tenantID, branchID).
		Order("times_sold DESC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// Save creates or updates a mapping entry
func (r *GormProductMappingRepository) Save(ctx context.Context, m *mapping.ProductMapping) error {
	return r.db.WithContext(ctx).Save(m).Error
}
