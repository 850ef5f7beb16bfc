package sale

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the persistence interface for sales.
// Transition methods are conditional writes: they only succeed when the row is
// still in the expected source status, so concurrent workers coordinate purely
// through the backing store.
type Repository interface {
	// Create persists a new sale with its line items and payments
	Create(ctx context.Context, s *Sale) error

	// FindByID finds a sale by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Sale, error)

	// FindWithLineItems finds a sale with line items and payments preloaded
	FindWithLineItems(ctx context.Context, id uuid.UUID) (*Sale, error)

	// FindByFolio finds a sale by its external id within a tenant/branch scope
	FindByFolio(ctx context.Context, tenantID, branchID uuid.UUID, folio string) (*Sale, error)

	// TransitionToQueued moves a sale from pending to queued.
	// Returns false when the sale was not in pending status - a benign
	// race outcome when another worker already queued it, not an error.
	TransitionToQueued(ctx context.Context, saleID uuid.UUID) (bool, error)

	// ClaimNextBatch atomically claims up to limit queued sales that are due
	// (next_retry_at unset or elapsed) and marks them processing. Concurrent
	// calls never return overlapping sales (lock and skip already-locked rows).
	ClaimNextBatch(ctx context.Context, limit int) ([]*Sale, error)

	// MarkProcessed records terminal success, clearing error fields
	MarkProcessed(ctx context.Context, saleID uuid.UUID, orderID *uuid.UUID) error

	// Update persists the current state of a sale (retry bookkeeping,
	// dead-letter transition, duplicate flag)
	Update(ctx context.Context, s *Sale) error

	// UpdateLineItemMapping attaches a menu item mapping to a line item
	UpdateLineItemMapping(ctx context.Context, lineItemID, menuItemID uuid.UUID) error

	// RecoverStale requeues sales stuck in processing since before cutoff,
	// along with pending sales whose enqueue never completed, returning the
	// number of reclaimed sales
	RecoverStale(ctx context.Context, cutoff time.Time) (int64, error)

	// CountByStatus returns the number of sales per status, optionally
	// scoped to a tenant
	CountByStatus(ctx context.Context, tenantID *uuid.UUID) (map[Status]int64, error)
}
