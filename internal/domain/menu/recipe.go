package menu

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/possync/backend/internal/domain/shared"
)

// Recipe declares the ingredients consumed when one yield of a menu item is
// sold. Inactive or soft-deleted recipes are treated as "no recipe" by the
// deduction engine: the item is skipped, not failed.
type Recipe struct {
	shared.TenantAggregateRoot
	MenuItemID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	YieldQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	YieldUnit     string          `gorm:"not null"`
	IsActive      bool            `gorm:"not null;default:true"`
	DeletedAt     gorm.DeletedAt  `gorm:"index"`

	Ingredients []RecipeIngredient `gorm:"foreignKey:RecipeID;references:ID"`
}

// TableName returns the table name for GORM
func (Recipe) TableName() string {
	return "recipes"
}

// NewRecipe creates a new recipe for a menu item
func NewRecipe(tenantID, menuItemID uuid.UUID, yieldQuantity decimal.Decimal, yieldUnit string) (*Recipe, error) {
	if menuItemID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_MENU_ITEM", "Menu item ID cannot be empty")
	}
	if !yieldQuantity.IsPositive() {
		return nil, shared.NewDomainError("INVALID_YIELD", "Yield quantity must be positive")
	}

	return &Recipe{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		MenuItemID:          menuItemID,
		YieldQuantity:       yieldQuantity,
		YieldUnit:           yieldUnit,
		IsActive:            true,
		Ingredients:         make([]RecipeIngredient, 0),
	}, nil
}

// AddIngredient appends an ingredient line to the recipe
func (r *Recipe) AddIngredient(inventoryItemID uuid.UUID, quantity decimal.Decimal, displayOrder int) error {
	if !quantity.IsPositive() {
		return shared.NewDomainError("INVALID_QUANTITY", "Ingredient quantity must be positive")
	}
	r.Ingredients = append(r.Ingredients, RecipeIngredient{
		BaseEntity:      shared.NewBaseEntity(),
		RecipeID:        r.ID,
		InventoryItemID: inventoryItemID,
		Quantity:        quantity,
		DisplayOrder:    displayOrder,
		WastePercent:    decimal.Zero,
	})
	return nil
}

// ScaleFactor returns the portion multiplier for the given quantity sold
func (r *Recipe) ScaleFactor(quantitySold decimal.Decimal) decimal.Decimal {
	return quantitySold.Div(r.YieldQuantity)
}

// RecipeIngredient is one (recipe, inventory item) pair with the quantity
// consumed per recipe yield. WastePercent is carried in the data model but
// applied through the engine's waste multiplier hook.
type RecipeIngredient struct {
	shared.BaseEntity
	RecipeID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	InventoryItemID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Quantity        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	DisplayOrder    int             `gorm:"not null;default:0"`
	WastePercent    decimal.Decimal `gorm:"type:decimal(8,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (RecipeIngredient) TableName() string {
	return "recipe_ingredients"
}
