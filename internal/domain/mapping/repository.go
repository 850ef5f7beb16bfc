package mapping

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the persistence interface for product mappings
type Repository interface {
	// FindByCode finds the mapping entry for a product code within a
	// tenant/branch scope, active or not. Returns shared.ErrNotFound when no
	// entry exists.
	FindByCode(ctx context.Context, tenantID, branchID uuid.UUID, productCode string) (*ProductMapping, error)

	// FindUnmapped returns inactive registry entries awaiting manual
	// resolution for a branch
	FindUnmapped(ctx context.Context, tenantID, branchID uuid.UUID) ([]ProductMapping, error)

	// Save creates or updates a mapping entry
	Save(ctx context.Context, m *ProductMapping) error
}
