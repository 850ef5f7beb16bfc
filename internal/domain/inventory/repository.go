package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/possync/backend/internal/domain/shared"
)

// ItemRepository defines the persistence interface for inventory items
type ItemRepository interface {
	// FindByID finds an inventory item by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*InventoryItem, error)

	// FindByIDs finds multiple inventory items by their IDs
	FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]InventoryItem, error)

	// FindBelowMinimum finds all items at or below their minimum threshold
	// within a branch
	FindBelowMinimum(ctx context.Context, tenantID, branchID uuid.UUID) ([]InventoryItem, error)

	// Save creates or updates an inventory item (non-stock fields)
	Save(ctx context.Context, item *InventoryItem) error

	// UpdateStockCAS sets current_stock to newStock only if it still equals
	// expectedStock (compare-and-swap). Returns shared.ErrConcurrencyConflict
	// when zero rows were affected, meaning a concurrent writer got there
	// first; the caller must re-read before retrying.
	UpdateStockCAS(ctx context.Context, itemID uuid.UUID, expectedStock, newStock decimal.Decimal) error
}

// MovementRepository defines the append-only persistence interface for the
// stock ledger
type MovementRepository interface {
	// Append persists a movement. Movements are never updated or deleted.
	Append(ctx context.Context, m *Movement) error

	// FindByFilter returns movement history matching the filter, newest first
	FindByFilter(ctx context.Context, tenantID uuid.UUID, filter MovementFilter, page shared.Filter) ([]Movement, int64, error)

	// SumInOut returns aggregate inbound and outbound quantities over a date
	// range, optionally scoped to one item
	SumInOut(ctx context.Context, tenantID uuid.UUID, itemID *uuid.UUID, from, to time.Time) (in decimal.Decimal, out decimal.Decimal, err error)
}
