package deduction

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/possync/backend/internal/domain/inventory"
	"github.com/possync/backend/internal/domain/menu"
	"github.com/possync/backend/internal/domain/sale"
	"github.com/possync/backend/internal/domain/shared"
)

// Engine explodes sold menu items into ingredient deductions and applies them
// against inventory. Stock writes are compare-and-swap; each applied write is
// paired with exactly one ledger movement, with a compensating rollback when
// the movement append fails. A failed rollback escalates as
// *inventory.ReconciliationError.
type Engine struct {
	menuItems menu.MenuItemRepository
	recipes   menu.RecipeRepository
	items     inventory.ItemRepository
	movements inventory.MovementRepository
	events    shared.EventPublisher
	logger    *zap.Logger

	// wasteMultiplier scales every ingredient deduction. The recipe data
	// model carries per-ingredient waste percentages; until those are
	// rolled out this engine-wide hook stays at 1.0.
	wasteMultiplier decimal.Decimal
}

// NewEngine creates a new deduction engine
func NewEngine(
	menuItems menu.MenuItemRepository,
	recipes menu.RecipeRepository,
	items inventory.ItemRepository,
	movements inventory.MovementRepository,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		menuItems:       menuItems,
		recipes:         recipes,
		items:           items,
		movements:       movements,
		logger:          logger,
		wasteMultiplier: decimal.NewFromInt(1),
	}
}

// SetEventPublisher sets the publisher for stock events
func (e *Engine) SetEventPublisher(publisher shared.EventPublisher) {
	e.events = publisher
}

// SetWasteMultiplier overrides the engine-wide waste multiplier
func (e *Engine) SetWasteMultiplier(m decimal.Decimal) {
	if m.IsPositive() {
		e.wasteMultiplier = m
	}
}

// DeduceForMenuItem deducts the recipe ingredients for quantitySold portions
// of one menu item. Per-ingredient failures are collected, not short-circuited:
// every ingredient is attempted and the combined result reported.
func (e *Engine) DeduceForMenuItem(ctx context.Context, tenantID, menuItemID uuid.UUID, quantitySold decimal.Decimal, saleID uuid.UUID, allowNegativeStock bool) (*ItemResult, error) {
	result := NewItemResult(menuItemID, quantitySold)

	if !quantitySold.IsPositive() {
		result.AddError(fmt.Sprintf("invalid quantity sold: %s", quantitySold))
		return result, nil
	}

	item, err := e.menuItems.FindByID(ctx, menuItemID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			result.AddError(fmt.Sprintf("menu item %s not found", menuItemID))
			return result, nil
		}
		return nil, fmt.Errorf("fetch menu item %s: %w", menuItemID, err)
	}

	recipe, err := e.recipes.FindActiveByMenuItem(ctx, tenantID, item.ID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			// No recipe defined is a skip, not a failure
			result.AddWarning(fmt.Sprintf("menu item %q has no active recipe, nothing deducted", item.Name))
			return result, nil
		}
		return nil, fmt.Errorf("fetch recipe for menu item %s: %w", menuItemID, err)
	}

	if !recipe.YieldQuantity.IsPositive() {
		result.AddError(fmt.Sprintf("recipe for %q has non-positive yield quantity %s", item.Name, recipe.YieldQuantity))
		return result, nil
	}

	scale := recipe.ScaleFactor(quantitySold)
	result.ScaleFactor = scale

	for _, ing := range recipe.Ingredients {
		outcome, err := e.applyIngredient(ctx, ing, scale, saleID, allowNegativeStock)
		if err != nil {
			return nil, err
		}
		result.AddIngredient(*outcome)
	}

	return result, nil
}

// applyIngredient performs the two-step stock write + ledger append for one
// ingredient. Escalation errors propagate; everything else is recorded on the
// returned outcome.
func (e *Engine) applyIngredient(ctx context.Context, ing menu.RecipeIngredient, scale decimal.Decimal, saleID uuid.UUID, allowNegativeStock bool) (*IngredientOutcome, error) {
	actual := ing.Quantity.Mul(scale).Mul(e.wasteMultiplier)

	outcome := &IngredientOutcome{
		InventoryItemID: ing.InventoryItemID,
		Requested:       actual,
	}

	item, err := e.items.FindByID(ctx, ing.InventoryItemID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			outcome.Fail(fmt.Sprintf("inventory item %s not found", ing.InventoryItemID))
			return outcome, nil
		}
		return nil, fmt.Errorf("fetch inventory item %s: %w", ing.InventoryItemID, err)
	}

	outcome.Name = item.Name
	previous := item.CurrentStock
	newStock := previous.Sub(actual)
	outcome.PreviousStock = previous
	outcome.NewStock = newStock

	if newStock.IsNegative() {
		if !allowNegativeStock {
			outcome.Fail(fmt.Sprintf(
				"insufficient stock for %q: have %s, need %s", item.Name, previous, actual,
			))
			return outcome, nil
		}
		outcome.Warning = fmt.Sprintf("stock for %q went negative: %s", item.Name, newStock)
	}

	if err := e.items.UpdateStockCAS(ctx, item.ID, previous, newStock); err != nil {
		if errors.Is(err, shared.ErrConcurrencyConflict) {
			// A concurrent writer changed the stock between our read and
			// write. Do not retry in place; the outer job retry re-reads.
			outcome.Fail(fmt.Sprintf("concurrent stock modification on %q", item.Name))
			outcome.Conflict = true
			return outcome, nil
		}
		return nil, fmt.Errorf("update stock of %s: %w", item.ID, err)
	}

	movement := inventory.NewDeduction(item, actual, previous, newStock, saleID)
	if err := e.movements.Append(ctx, movement); err != nil {
		return outcome, e.rollbackStock(ctx, item, previous, newStock, actual, saleID, outcome, err)
	}

	outcome.Applied = true
	item.CurrentStock = newStock

	if e.events != nil {
		event := inventory.NewStockDeductedEvent(item, saleID, actual, previous, newStock)
		if err := e.events.Publish(ctx, event); err != nil {
			e.logger.Warn("failed to publish stock deducted event", zap.Error(err))
		}
	}

	return outcome, nil
}

// rollbackStock compensates a stock write whose ledger append failed. Stock
// and ledger must never silently diverge: either the stock returns to its
// pre-deduction value or the failure escalates for manual reconciliation.
func (e *Engine) rollbackStock(ctx context.Context, item *inventory.InventoryItem, previous, newStock, actual decimal.Decimal, saleID uuid.UUID, outcome *IngredientOutcome, appendErr error) error {
	if err := e.items.UpdateStockCAS(ctx, item.ID, newStock, previous); err != nil {
		recErr := &inventory.ReconciliationError{
			InventoryItemID: item.ID,
			SaleID:          saleID,
			Delta:           actual.Neg(),
			ExpectedStock:   previous,
			Cause:           appendErr,
		}
		e.logger.Error("stock rollback failed, manual reconciliation required",
			zap.String("inventory_item_id", item.ID.String()),
			zap.String("sale_id", saleID.String()),
			zap.String("expected_stock", previous.String()),
			zap.NamedError("append_error", appendErr),
			zap.NamedError("rollback_error", err),
		)
		return recErr
	}

	e.logger.Warn("ledger append failed, stock deduction rolled back",
		zap.String("inventory_item_id", item.ID.String()),
		zap.String("sale_id", saleID.String()),
		zap.Error(appendErr),
	)
	outcome.Fail(fmt.Sprintf("ledger append failed, deduction rolled back: %v", appendErr))
	return nil
}

// DeduceForSale fans the deduction out across all mapped line items of a
// sale. Unmapped items are skipped with a warning; sibling items are always
// attempted regardless of earlier failures.
func (e *Engine) DeduceForSale(ctx context.Context, s *sale.Sale, allowNegativeStock bool) (*SaleResult, error) {
	result := NewSaleResult(s.ID)

	for _, li := range s.LineItems {
		if li.MappedMenuItemID == nil {
			result.SkippedUnmapped++
			result.AddWarning(fmt.Sprintf("line item %q (%s) has no menu item mapping, skipped", li.ProductName, li.ProductCode))
			continue
		}

		itemResult, err := e.DeduceForMenuItem(ctx, s.TenantID, *li.MappedMenuItemID, li.Quantity, s.ID, allowNegativeStock)
		if err != nil {
			return nil, err
		}
		result.AddItem(*itemResult)
	}

	return result, nil
}

// PreviewForMenuItem computes the deductions for a menu item without writing
// anything, for operator-facing "what would happen" views
func (e *Engine) PreviewForMenuItem(ctx context.Context, tenantID, menuItemID uuid.UUID, quantitySold decimal.Decimal) (*Preview, error) {
	if !quantitySold.IsPositive() {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity sold must be positive")
	}

	item, err := e.menuItems.FindByID(ctx, menuItemID)
	if err != nil {
		return nil, fmt.Errorf("fetch menu item %s: %w", menuItemID, err)
	}

	preview := &Preview{MenuItemID: menuItemID, MenuItemName: item.Name, QuantitySold: quantitySold}

	recipe, err := e.recipes.FindActiveByMenuItem(ctx, tenantID, item.ID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return preview, nil
		}
		return nil, fmt.Errorf("fetch recipe for menu item %s: %w", menuItemID, err)
	}
	if !recipe.YieldQuantity.IsPositive() {
		return nil, shared.NewDomainError("INVALID_YIELD", "Recipe yield quantity must be positive")
	}

	scale := recipe.ScaleFactor(quantitySold)
	preview.ScaleFactor = scale

	for _, ing := range recipe.Ingredients {
		actual := ing.Quantity.Mul(scale).Mul(e.wasteMultiplier)

		line := PlannedDeduction{InventoryItemID: ing.InventoryItemID, Quantity: actual}
		invItem, err := e.items.FindByID(ctx, ing.InventoryItemID)
		if err == nil {
			line.Name = invItem.Name
			line.CurrentStock = invItem.CurrentStock
			line.ResultingStock = invItem.CurrentStock.Sub(actual)
			line.Sufficient = !line.ResultingStock.IsNegative()
		} else if !errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("fetch inventory item %s: %w", ing.InventoryItemID, err)
		}
		preview.Deductions = append(preview.Deductions, line)
	}

	return preview, nil
}
