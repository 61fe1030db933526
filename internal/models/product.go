// Package models defines data structures and domain types.
package models

// Category identifies which consumable slot a product fills.
type Category string

const (
	// CategoryPrimary is the consumable used by every dose (syringes).
	CategoryPrimary Category = "primary"
	// CategorySecondary is only used by base+accessory doses (cannulas).
	CategorySecondary Category = "secondary"
	// CategoryAccessory is used by every dose (adapters).
	CategoryAccessory Category = "accessory"
)

// Categories lists every category in display order.
var Categories = []Category{CategoryPrimary, CategorySecondary, CategoryAccessory}

// legacyCategories maps the fixed product ids of bundles written before
// products carried a category.
var legacyCategories = map[string]Category{
	"siringhe":   CategoryPrimary,
	"canule":     CategorySecondary,
	"adattatori": CategoryAccessory,
}

// IsValid reports whether c is one of Categories.
func (c Category) IsValid() bool {
	switch c {
	case CategoryPrimary, CategorySecondary, CategoryAccessory:
		return true
	default:
		return false
	}
}

// LegacyCategory returns the category implied by one of the original fixed
// product ids.
func LegacyCategory(id string) (Category, bool) {
	c, ok := legacyCategories[id]
	return c, ok
}

// String returns the display name for a category.
func (c Category) String() string {
	switch c {
	case CategoryPrimary:
		return "Primary"
	case CategorySecondary:
		return "Secondary"
	case CategoryAccessory:
		return "Accessory"
	default:
		return "Unknown"
	}
}

// Product is a tracked consumable with its remaining stock.
type Product struct {
	ID           string   `json:"id" yaml:"id"`
	Name         string   `json:"name" yaml:"name"`
	Code         string   `json:"code" yaml:"code"`
	Category     Category `json:"category" yaml:"category"`
	Stock        int      `json:"stock" yaml:"stock"`
	MinThreshold int      `json:"minThreshold" yaml:"minThreshold"`
}

// IsLow reports whether the product is at or below its minimum threshold.
func (p Product) IsLow() bool {
	return p.Stock <= p.MinThreshold
}

// ProductPatch holds the editable product fields. Nil fields are left unchanged.
type ProductPatch struct {
	Name         *string `mapstructure:"name"`
	Code         *string `mapstructure:"code"`
	MinThreshold *int    `mapstructure:"minThreshold"`
}

// IsEmpty reports whether the patch changes nothing.
func (p ProductPatch) IsEmpty() bool {
	return p.Name == nil && p.Code == nil && p.MinThreshold == nil
}

// Apply returns a copy of product with the patch merged in.
func (p ProductPatch) Apply(product Product) Product {
	if p.Name != nil {
		product.Name = *p.Name
	}
	if p.Code != nil {
		product.Code = *p.Code
	}
	if p.MinThreshold != nil {
		product.MinThreshold = *p.MinThreshold
	}
	return product
}
