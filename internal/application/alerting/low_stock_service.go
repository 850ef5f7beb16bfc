package alerting

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/possync/backend/internal/domain/inventory"
	"github.com/possync/backend/internal/domain/shared"
)

// LowStockService evaluates stock levels and emits low-stock alerts.
// Evaluation itself is pure; the only side effects are logging and event
// publication, so callers may treat failures here as non-fatal.
type LowStockService struct {
	items  inventory.ItemRepository
	events shared.EventPublisher
	logger *zap.Logger
}

// NewLowStockService creates a new LowStockService
func NewLowStockService(items inventory.ItemRepository, logger *zap.Logger) *LowStockService {
	return &LowStockService{
		items:  items,
		logger: logger,
	}
}

// SetEventPublisher sets the publisher for low-stock events
func (s *LowStockService) SetEventPublisher(publisher shared.EventPublisher) {
	s.events = publisher
}

// CheckItems evaluates only the given items - the cheap, targeted check run
// after every deduction batch against the items it touched
func (s *LowStockService) CheckItems(ctx context.Context, tenantID uuid.UUID, itemIDs []uuid.UUID) ([]inventory.LowStockAlert, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}

	items, err := s.items.FindByIDs(ctx, tenantID, itemIDs)
	if err != nil {
		return nil, fmt.Errorf("fetch items for low-stock check: %w", err)
	}

	return s.evaluate(ctx, tenantID, items), nil
}

// CheckBranch evaluates an entire branch's inventory - the expensive full
// scan used by scheduled audits
func (s *LowStockService) CheckBranch(ctx context.Context, tenantID, branchID uuid.UUID) ([]inventory.LowStockAlert, error) {
	items, err := s.items.FindBelowMinimum(ctx, tenantID, branchID)
	if err != nil {
		return nil, fmt.Errorf("scan branch %s for low stock: %w", branchID, err)
	}

	return s.evaluate(ctx, tenantID, items), nil
}

func (s *LowStockService) evaluate(ctx context.Context, tenantID uuid.UUID, items []inventory.InventoryItem) []inventory.LowStockAlert {
	alerts := make([]inventory.LowStockAlert, 0)

	for i := range items {
		alert, ok := inventory.EvaluateStockLevel(&items[i])
		if !ok {
			continue
		}
		alerts = append(alerts, *alert)

		s.logger.Warn("low stock detected",
			zap.String("inventory_item_id", alert.InventoryItemID.String()),
			zap.String("name", alert.Name),
			zap.String("severity", string(alert.Severity)),
			zap.String("current_stock", alert.CurrentStock.String()),
			zap.String("minimum_stock", alert.MinimumStock.String()),
		)

		if s.events != nil {
			event := inventory.NewLowStockDetectedEvent(tenantID, *alert)
			if err := s.events.Publish(ctx, event); err != nil {
				s.logger.Warn("failed to publish low stock event", zap.Error(err))
			}
		}
	}

	return alerts
}
