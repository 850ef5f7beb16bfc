package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/possync/backend/internal/domain/inventory"
	"github.com/possync/backend/internal/domain/shared"
)

// StockService applies manual stock corrections against the ledger. As with
// sale deductions, every accepted correction pairs one compare-and-swap stock
// write with exactly one movement append; an append failure rolls the stock
// back so stock and ledger never diverge.
type StockService struct {
	items     inventory.ItemRepository
	movements inventory.MovementRepository
	logger    *zap.Logger
}

// NewStockService creates a new StockService
func NewStockService(items inventory.ItemRepository, movements inventory.MovementRepository, logger *zap.Logger) *StockService {
	return &StockService{
		items:     items,
		movements: movements,
		logger:    logger,
	}
}

// AdjustStock applies a signed manual correction to an item's stock and
// records an adjustment movement. Corrections cannot drive stock negative:
// they record counted reality, and counts are never below zero. A CAS
// conflict is returned as-is; the operator re-reads and retries.
func (s *StockService) AdjustStock(ctx context.Context, tenantID, itemID uuid.UUID, quantity decimal.Decimal, notes string) (*inventory.Movement, error) {
	if quantity.IsZero() {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Adjustment quantity must be non-zero")
	}

	item, err := s.items.FindByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("fetch inventory item %s: %w", itemID, err)
	}
	if item.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}

	previous := item.CurrentStock
	newStock := previous.Add(quantity)
	if newStock.IsNegative() {
		return nil, shared.NewDomainError("INSUFFICIENT_STOCK", fmt.Sprintf(
			"adjustment of %s would drive %q below zero (current %s)", quantity, item.Name, previous,
		))
	}

	if err := s.items.UpdateStockCAS(ctx, item.ID, previous, newStock); err != nil {
		if errors.Is(err, shared.ErrConcurrencyConflict) {
			return nil, shared.ErrConcurrencyConflict
		}
		return nil, fmt.Errorf("update stock of %s: %w", item.ID, err)
	}

	movement := inventory.NewAdjustment(item, quantity, previous, newStock, notes)
	if err := s.movements.Append(ctx, movement); err != nil {
		if rbErr := s.items.UpdateStockCAS(ctx, item.ID, newStock, previous); rbErr != nil {
			s.logger.Error("adjustment rollback failed, manual reconciliation required",
				zap.String("inventory_item_id", item.ID.String()),
				zap.String("expected_stock", previous.String()),
				zap.NamedError("append_error", err),
				zap.NamedError("rollback_error", rbErr),
			)
			return nil, fmt.Errorf("record adjustment for %s: %w (stock rollback also failed: %v)", item.ID, err, rbErr)
		}
		s.logger.Warn("ledger append failed, adjustment rolled back",
			zap.String("inventory_item_id", item.ID.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("record adjustment for %s: %w", item.ID, err)
	}

	item.CurrentStock = newStock
	s.logger.Info("stock adjusted",
		zap.String("inventory_item_id", item.ID.String()),
		zap.String("name", item.Name),
		zap.String("quantity", quantity.String()),
		zap.String("new_stock", newStock.String()),
	)
	return movement, nil
}
