package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/possync/backend/internal/domain/menu"
	"github.com/possync/backend/internal/domain/shared"
)

// GormMenuItemRepository implements menu.MenuItemRepository using GORM
type GormMenuItemRepository struct {
	db *gorm.DB
}

// NewGormMenuItemRepository creates a new GormMenuItemRepository
func NewGormMenuItemRepository(db *gorm.DB) *GormMenuItemRepository {
	return &GormMenuItemRepository{db: db}
}

// FindByID finds a menu item by its ID
func (r *GormMenuItemRepository) FindByID(ctx context.Context, id uuid.UUID) (*menu.MenuItem, error) {
	var item menu.MenuItem
	if err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

// FindActiveByExactName finds an active menu item whose name matches
// case-insensitively within a tenant/branch scope
func (r *GormMenuItemRepository) FindActiveByExactName(ctx context.Context, tenantID, branchID uuid.UUID, name string) (*menu.MenuItem, error) {
	var item menu.MenuItem
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND branch_id = ? AND is_active = true AND LOWER(name) = ?",
			tenantID, branchID, strings.ToLower(name)).
		First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

// FindActiveByNameContains finds the first active menu item whose name
// contains the given fragment, case-insensitively. Shortest name wins so the
// closest match is preferred over longer composites.
func (r *GormMenuItemRepository) FindActiveByNameContains(ctx context.Context, tenantID, branchID uuid.UUID, fragment string) (*menu.MenuItem, error) {
	var item menu.MenuItem
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND branch_id = ? AND is_active = true AND name ILIKE ?",
			tenantID, branchID, "%"+fragment+"%").
		Order("LENGTH(name) ASC").
		First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

// Save creates or updates a menu item
func (r *GormMenuItemRepository) Save(ctx context.Context, item *menu.MenuItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

// GormRecipeRepository implements menu.RecipeRepository using GORM
type GormRecipeRepository struct {
	db *gorm.DB
}

// NewGormRecipeRepository creates a new GormRecipeRepository
func NewGormRecipeRepository(db *gorm.DB) *GormRecipeRepository {
	return &GormRecipeRepository{db: db}
}

// FindActiveByMenuItem finds the active recipe for a menu item with
// ingredients preloaded in display order
func (r *GormRecipeRepository) FindActiveByMenuItem(ctx context.Context, tenantID, menuItemID uuid.UUID) (*menu.Recipe, error) {
	var recipe menu.Recipe
	if err := r.db.WithContext(ctx).
		Preload("Ingredients", func(db *gorm.DB) *gorm.DB {
			return db.Order("display_order ASC")
		}).
		Where("tenant_id = ? AND menu_item_id = ? AND is_active = true", tenantID, menuItemID).
		First(&recipe).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &recipe, nil
}

// Save creates or updates a recipe with its ingredients
func (r *GormRecipeRepository) Save(ctx context.Context, recipe *menu.Recipe) error {
	return r.db.WithContext(ctx).Save(recipe).Error
}
