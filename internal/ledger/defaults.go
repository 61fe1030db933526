package ledger

import "github.com/j-veylop/parkinfusion/internal/models"

// DefaultProducts returns the product set seeded on first use.
func DefaultProducts() []models.Product {
	return []models.Product{
		{
			ID:           "siringhe",
			Name:         "Siringhe Duodopa 20ml",
			Code:         "SIR001",
			Category:     models.CategoryPrimary,
			Stock:        10,
			MinThreshold: 5,
		},
		{
			ID:           "canule",
			Name:         "Canule Sottocute 27G",
			Code:         "CAN001",
			Category:     models.CategorySecondary,
			Stock:        15,
			MinThreshold: 8,
		},
		{
			ID:           "adattatori",
			Name:         "Adattatori Luer Lock",
			Code:         "ADA001",
			Category:     models.CategoryAccessory,
			Stock:        20,
			MinThreshold: 10,
		},
	}
}
