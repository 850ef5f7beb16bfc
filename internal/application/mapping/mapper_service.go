package mapping

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/possync/backend/internal/domain/mapping"
	"github.com/possync/backend/internal/domain/menu"
	"github.com/possync/backend/internal/domain/shared"
)

// Scope identifies the tenant/branch a mapping lookup runs in
type Scope struct {
	TenantID uuid.UUID
	BranchID uuid.UUID
}

// MapperService resolves POS product codes to internal menu items.
// Resolution order: existing active mapping, exact case-insensitive name
// match, substring name match, unmapped registry entry. A nil result is the
// valid "needs manual review" outcome, never an error.
type MapperService struct {
	mappings  mapping.Repository
	menuItems menu.MenuItemRepository
	logger    *zap.Logger
}

// NewMapperService creates a new MapperService
func NewMapperService(mappings mapping.Repository, menuItems menu.MenuItemRepository, logger *zap.Logger) *MapperService {
	return &MapperService{
		mappings:  mappings,
		menuItems: menuItems,
		logger:    logger,
	}
}

// FindOrCreateMapping resolves a product code to a menu item id, creating or
// updating the mapping entry as a side effect. Every call bumps the entry's
// usage statistics.
func (s *MapperService) FindOrCreateMapping(ctx context.Context, scope Scope, productCode, productName string) (*uuid.UUID, error) {
	existing, err := s.mappings.FindByCode(ctx, scope.TenantID, scope.BranchID, productCode)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("lookup mapping for %q: %w", productCode, err)
	}

	if existing != nil && existing.IsMapped() {
		existing.RecordSale()
		if err := s.mappings.Save(ctx, existing); err != nil {
			return nil, fmt.Errorf("update mapping stats for %q: %w", productCode, err)
		}
		return existing.MenuItemID, nil
	}

	// No active mapping: try to auto-match against the menu by name
	menuItemID, confidence, err := s.matchByName(ctx, scope, productName)
	if err != nil {
		return nil, err
	}

	if menuItemID != nil {
		return s.saveResolved(ctx, scope, existing, productCode, productName, *menuItemID, confidence)
	}

	return nil, s.saveUnmapped(ctx, scope, existing, productCode, productName)
}

// matchByName attempts exact then substring name matching against active
// menu items. Exact matches are high confidence; substring matches medium.
func (s *MapperService) matchByName(ctx context.Context, scope Scope, productName string) (*uuid.UUID, mapping.Confidence, error) {
	if productName == "" {
		return nil, "", nil
	}

	item, err := s.menuItems.FindActiveByExactName(ctx, scope.TenantID, scope.BranchID, productName)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, "", fmt.Errorf("exact name match for %q: %w", productName, err)
	}
	if item != nil {
		return &item.ID, mapping.ConfidenceHigh, nil
	}

	item, err = s.menuItems.FindActiveByNameContains(ctx, scope.TenantID, scope.BranchID, productName)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, "", fmt.Errorf("substring name match for %q: %w", productName, err)
	}
	if item != nil {
		return &item.ID, mapping.ConfidenceMedium, nil
	}

	return nil, "", nil
}

func (s *MapperService) saveResolved(ctx context.Context, scope Scope, existing *mapping.ProductMapping, productCode, productName string, menuItemID uuid.UUID, confidence mapping.Confidence) (*uuid.UUID, error) {
	entry := existing
	if entry == nil {
		created, err := mapping.NewMapping(scope.TenantID, scope.BranchID, productCode, productName, menuItemID, confidence)
		if err != nil {
			return nil, err
		}
		entry = created
	} else if err := entry.Resolve(menuItemID, confidence); err != nil {
		return nil, err
	}

	entry.RecordSale()
	if err := s.mappings.Save(ctx, entry); err != nil {
		return nil, fmt.Errorf("save mapping for %q: %w", productCode, err)
	}

	s.logger.Info("product mapping auto-created",
		zap.String("product_code", productCode),
		zap.String("product_name", productName),
		zap.String("menu_item_id", menuItemID.String()),
		zap.String("confidence", string(confidence)),
	)
	return entry.MenuItemID, nil
}

// saveUnmapped upserts the unmapped registry entry. Nil menu item id is the
// expected result for codes needing manual review.
func (s *MapperService) saveUnmapped(ctx context.Context, scope Scope, existing *mapping.ProductMapping, productCode, productName string) error {
	entry := existing
	if entry == nil {
		created, err := mapping.NewUnmapped(scope.TenantID, scope.BranchID, productCode, productName)
		if err != nil {
			return err
		}
		entry = created
	}

	entry.RecordSale()
	if err := s.mappings.Save(ctx, entry); err != nil {
		return fmt.Errorf("save unmapped entry for %q: %w", productCode, err)
	}

	s.logger.Warn("unmapped product code, awaiting manual review",
		zap.String("product_code", productCode),
		zap.String("product_name", productName),
		zap.Int64("times_sold", entry.TimesSold),
	)
	return nil
}
