package menu

import (
	"context"

	"github.com/google/uuid"
)

// MenuItemRepository defines the persistence interface for menu items
type MenuItemRepository interface {
	// FindByID finds a menu item by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*MenuItem, error)

	// FindActiveByExactName finds an active menu item whose name matches
	// case-insensitively within a tenant/branch scope
	FindActiveByExactName(ctx context.Context, tenantID, branchID uuid.UUID, name string) (*MenuItem, error)

	// FindActiveByNameContains finds the first active menu item whose name
	// contains the given fragment, case-insensitively
	FindActiveByNameContains(ctx context.Context, tenantID, branchID uuid.UUID, fragment string) (*MenuItem, error)

	// Save creates or updates a menu item
	Save(ctx context.Context, item *MenuItem) error
}

// RecipeRepository defines the persistence interface for recipes
type RecipeRepository interface {
	// FindActiveByMenuItem finds the active recipe for a menu item with
	// ingredients preloaded in display order. Returns shared.ErrNotFound
	// when the menu item has no active recipe.
	FindActiveByMenuItem(ctx context.Context, tenantID, menuItemID uuid.UUID) (*Recipe, error)

	// Save creates or updates a recipe with its ingredients
	Save(ctx context.Context, recipe *Recipe) error
}
