package deduction

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// IngredientOutcome is the result of one ingredient deduction attempt
type IngredientOutcome struct {
	InventoryItemID uuid.UUID       `json:"inventory_item_id"`
	Name            string          `json:"name"`
	Requested       decimal.Decimal `json:"requested"`
	PreviousStock   decimal.Decimal `json:"previous_stock"`
	NewStock        decimal.Decimal `json:"new_stock"`

	// Applied is true when the stock write and its ledger movement both landed
	Applied bool `json:"applied"`
	// Conflict marks an optimistic-lock failure, retryable by the outer job
	Conflict bool   `json:"conflict,omitempty"`
	Error    string `json:"error,omitempty"`
	Warning  string `json:"warning,omitempty"`
}

// Fail records a terminal error for this ingredient
func (o *IngredientOutcome) Fail(msg string) {
	o.Applied = false
	o.Error = msg
}

// ItemResult aggregates the ingredient outcomes for one sold menu item
type ItemResult struct {
	MenuItemID   uuid.UUID           `json:"menu_item_id"`
	QuantitySold decimal.Decimal     `json:"quantity_sold"`
	ScaleFactor  decimal.Decimal     `json:"scale_factor"`
	Ingredients  []IngredientOutcome `json:"ingredients"`
	Warnings     []string            `json:"warnings,omitempty"`
	Errors       []string            `json:"errors,omitempty"`
}

// NewItemResult creates an empty result for one menu item
func NewItemResult(menuItemID uuid.UUID, quantitySold decimal.Decimal) *ItemResult {
	return &ItemResult{
		MenuItemID:   menuItemID,
		QuantitySold: quantitySold,
		Ingredients:  make([]IngredientOutcome, 0),
	}
}

// AddIngredient records an ingredient outcome, folding its error and warning
// into the item-level aggregates
func (r *ItemResult) AddIngredient(o IngredientOutcome) {
	r.Ingredients = append(r.Ingredients, o)
	if o.Error != "" {
		r.Errors = append(r.Errors, o.Error)
	}
	if o.Warning != "" {
		r.Warnings = append(r.Warnings, o.Warning)
	}
}

// AddError records an item-level error
func (r *ItemResult) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
}

// AddWarning records an item-level warning
func (r *ItemResult) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// Success is true when no ingredient or item-level error was recorded
func (r *ItemResult) Success() bool {
	return len(r.Errors) == 0
}

// ProcessedCount returns the number of ingredients actually applied
func (r *ItemResult) ProcessedCount() int {
	n := 0
	for _, o := range r.Ingredients {
		if o.Applied {
			n++
		}
	}
	return n
}

// SaleResult aggregates item results across a whole sale
type SaleResult struct {
	SaleID          uuid.UUID    `json:"sale_id"`
	Items           []ItemResult `json:"items"`
	SkippedUnmapped int          `json:"skipped_unmapped"`
	Warnings        []string     `json:"warnings,omitempty"`
}

// NewSaleResult creates an empty result for one sale
func NewSaleResult(saleID uuid.UUID) *SaleResult {
	return &SaleResult{
		SaleID: saleID,
		Items:  make([]ItemResult, 0),
	}
}

// AddItem records the result of one sold menu item
func (r *SaleResult) AddItem(item ItemResult) {
	r.Items = append(r.Items, item)
}

// AddWarning records a sale-level warning
func (r *SaleResult) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// Success is true when every processed item succeeded
func (r *SaleResult) Success() bool {
	for _, item := range r.Items {
		if !item.Success() {
			return false
		}
	}
	return true
}

// Errors flattens all item errors for reporting
func (r *SaleResult) Errors() []string {
	all := make([]string, 0)
	for _, item := range r.Items {
		all = append(all, item.Errors...)
	}
	return all
}

// AffectedItemIDs returns the distinct inventory items whose stock was
// actually changed, for targeted low-stock checks
func (r *SaleResult) AffectedItemIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]struct{})
	ids := make([]uuid.UUID, 0)
	for _, item := range r.Items {
		for _, o := range item.Ingredients {
			if !o.Applied {
				continue
			}
			if _, ok := seen[o.InventoryItemID]; ok {
				continue
			}
			seen[o.InventoryItemID] = struct{}{}
			ids = append(ids, o.InventoryItemID)
		}
	}
	return ids
}

// Preview is the dry-run counterpart of an item deduction: the same
// computation with no writes
type Preview struct {
	MenuItemID   uuid.UUID          `json:"menu_item_id"`
	MenuItemName string             `json:"menu_item_name"`
	QuantitySold decimal.Decimal    `json:"quantity_sold"`
	ScaleFactor  decimal.Decimal    `json:"scale_factor"`
	Deductions   []PlannedDeduction `json:"deductions"`
}

// PlannedDeduction is one ingredient line of a preview
type PlannedDeduction struct {
	InventoryItemID uuid.UUID       `json:"inventory_item_id"`
	Name            string          `json:"name"`
	Quantity        decimal.Decimal `json:"quantity"`
	CurrentStock    decimal.Decimal `json:"current_stock"`
	ResultingStock  decimal.Decimal `json:"resulting_stock"`
	Sufficient      bool            `json:"sufficient"`
}
