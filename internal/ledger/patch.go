package ledger

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/j-veylop/parkinfusion/internal/models"
)

// ParseProductPatch builds a patch from loosely typed input such as parsed
// key=value pairs. Unknown fields are rejected and numbers may be strings.
func ParseProductPatch(input map[string]any) (models.ProductPatch, error) {
	var patch models.ProductPatch

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &patch,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return models.ProductPatch{}, err
	}

	if err := dec.Decode(input); err != nil {
		return models.ProductPatch{}, fmt.Errorf("invalid product update: %w", err)
	}

	if patch.MinThreshold != nil && *patch.MinThreshold < 0 {
		return models.ProductPatch{}, fmt.Errorf("minThreshold must not be negative, got %d", *patch.MinThreshold)
	}
	if patch.IsEmpty() {
		return models.ProductPatch{}, fmt.Errorf("no fields to update")
	}

	return patch, nil
}
