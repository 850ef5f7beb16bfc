package inventory

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReconciliationError is raised when a stock write and its ledger append
// diverged and the compensating rollback also failed. The affected item
// requires manual reconciliation; retrying blind could double-deduct.
type ReconciliationError struct {
	InventoryItemID uuid.UUID
	SaleID          uuid.UUID
	Delta           decimal.Decimal
	ExpectedStock   decimal.Decimal
	Cause           error
}

// Error implements the error interface
func (e *ReconciliationError) Error() string {
	return fmt.Sprintf(
		"CRITICAL: stock and ledger diverged for inventory item %s (sale %s, delta %s, expected stock %s): %v",
		e.InventoryItemID, e.SaleID, e.Delta, e.ExpectedStock, e.Cause,
	)
}

// Unwrap returns the underlying failure
func (e *ReconciliationError) Unwrap() error {
	return e.Cause
}
