package order

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the persistence interface for orders
type Repository interface {
	// FindByID finds an order by its ID with line items preloaded
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)

	// FindBySourceSale finds the order materialized from a sale, if any.
	// Returns shared.ErrNotFound when the sale has no order yet.
	FindBySourceSale(ctx context.Context, tenantID, sourceSaleID uuid.UUID) (*Order, error)

	// NextOrderNumber returns the next sequential order number for a branch
	// on the given date. Must be called inside CreateWithNumber's transaction
	// to avoid gaps under concurrency; exposed separately for previews.
	NextOrderNumber(ctx context.Context, tenantID, branchID uuid.UUID, date time.Time) (int, error)

	// CreateWithNumber assigns the order number and inserts the order with
	// its line items in one transaction
	CreateWithNumber(ctx context.Context, o *Order) error
}

// TableRepository defines the persistence interface for dining tables
type TableRepository interface {
	// FindByNumber finds an active table by its POS table number within a
	// tenant/branch scope
	FindByNumber(ctx context.Context, tenantID, branchID uuid.UUID, tableNumber string) (*DiningTable, error)
}
