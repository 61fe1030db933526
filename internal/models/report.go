package models

import (
	"fmt"
	"time"
)

// Consumption is a per-category quantity of consumables.
type Consumption struct {
	Primary   int `json:"primary" yaml:"primary"`
	Secondary int `json:"secondary" yaml:"secondary"`
	Accessory int `json:"accessory" yaml:"accessory"`
}

// Of returns the quantity for a category.
func (c Consumption) Of(cat Category) int {
	switch cat {
	case CategoryPrimary:
		return c.Primary
	case CategorySecondary:
		return c.Secondary
	case CategoryAccessory:
		return c.Accessory
	default:
		return 0
	}
}

// Plus returns the element-wise sum of c and o.
func (c Consumption) Plus(o Consumption) Consumption {
	return Consumption{
		Primary:   c.Primary + o.Primary,
		Secondary: c.Secondary + o.Secondary,
		Accessory: c.Accessory + o.Accessory,
	}
}

// UsageReport aggregates consumables counted for one month.
type UsageReport struct {
	Month       string `json:"month" yaml:"month"`
	Year        int    `json:"year" yaml:"year"`
	Consumption `yaml:",inline"`
}

// MonthKey formats t as "YYYY-MM".
func MonthKey(t time.Time) string {
	return fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month()))
}
