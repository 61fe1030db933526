package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/j-veylop/parkinfusion/internal/models"
)

const monthLayout = "2006-01"

// Format is an export bundle encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat converts a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown format %q (want json or yaml)", s)
	}
}

// FormatFromPath picks a format from a file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// EncodeUserData writes a bundle in the given format.
func EncodeUserData(w io.Writer, data models.UserData, format Format) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(data); err != nil {
			return fmt.Errorf("failed to encode json: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

// DecodeUserData reads a bundle in the given format.
func DecodeUserData(r io.Reader, format Format) (models.UserData, error) {
	var data models.UserData

	switch format {
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&data); err != nil {
			return models.UserData{}, fmt.Errorf("failed to decode yaml: %w", err)
		}
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&data); err != nil {
			return models.UserData{}, fmt.Errorf("failed to decode json: %w", err)
		}
	default:
		return models.UserData{}, fmt.Errorf("unsupported format %q", format)
	}

	return data, nil
}

// ValidateUserData checks a bundle before it replaces stored data. Every
// product must fill a distinct known category so doses can find their stock.
func ValidateUserData(data models.UserData) error {
	seenIDs := make(map[string]bool, len(data.Products))
	seenCats := make(map[models.Category]string, len(data.Products))
	for _, p := range data.Products {
		if p.ID == "" {
			return fmt.Errorf("product %q has no id", p.Name)
		}
		if seenIDs[p.ID] {
			return fmt.Errorf("duplicate product id %q", p.ID)
		}
		seenIDs[p.ID] = true
		if p.Stock < 0 || p.MinThreshold < 0 {
			return fmt.Errorf("product %q has negative stock or threshold", p.ID)
		}
		if !p.Category.IsValid() {
			return fmt.Errorf("product %q has unknown category %q", p.ID, p.Category)
		}
		if other, ok := seenCats[p.Category]; ok {
			return fmt.Errorf("products %q and %q share category %s", other, p.ID, p.Category)
		}
		seenCats[p.Category] = p.ID
	}

	seenDates := make(map[string]bool, len(data.Events))
	for _, e := range data.Events {
		if _, err := time.Parse(models.DateLayout, e.Date); err != nil {
			return fmt.Errorf("therapy event %q has invalid date %q", e.ID, e.Date)
		}
		if !slices.Contains(models.TherapyTypes, e.Type) {
			return fmt.Errorf("therapy event on %s has unknown type %q", e.Date, e.Type)
		}
		if seenDates[e.Date] {
			return fmt.Errorf("more than one therapy event on %s", e.Date)
		}
		seenDates[e.Date] = true
	}

	seenMonths := make(map[string]bool, len(data.UsageReports))
	for _, r := range data.UsageReports {
		if _, err := time.Parse(monthLayout, r.Month); err != nil {
			return fmt.Errorf("usage report has invalid month %q", r.Month)
		}
		if seenMonths[r.Month] {
			return fmt.Errorf("more than one usage report for %s", r.Month)
		}
		seenMonths[r.Month] = true
	}

	return data.Reminder.Validate()
}

// inferCategories fills in the category of products from bundles that
// predate categories, keyed on the original fixed ids.
func inferCategories(products []models.Product) []models.Product {
	out := slices.Clone(products)
	for i := range out {
		if out[i].Category != "" {
			continue
		}
		if c, ok := models.LegacyCategory(out[i].ID); ok {
			out[i].Category = c
		}
	}
	return out
}

// Export collects everything stored for the user. Missing or corrupt values
// are exported as empty.
func (s *Session) Export(ctx context.Context) models.UserData {
	data := models.UserData{User: s.user}

	if s.Load(ctx, KeyProducts, &data.Products) != Loaded {
		data.Products = nil
	}
	if s.Load(ctx, KeyTherapy, &data.Events) != Loaded {
		data.Events = nil
	}
	if s.Load(ctx, KeyUsageReports, &data.UsageReports) != Loaded {
		data.UsageReports = nil
	}
	data.Reminder, _ = s.ReminderSettings(ctx)
	data.LastSync = s.LastSync(ctx)

	return data
}

// Import validates a bundle and replaces the user's stored data with it.
// The bundle's user field is informational; data lands in this session.
func (s *Session) Import(ctx context.Context, data models.UserData) error {
	if data.Reminder.Time == "" {
		data.Reminder = models.DefaultReminderSettings()
	}
	data.Products = inferCategories(data.Products)
	if err := ValidateUserData(data); err != nil {
		return fmt.Errorf("invalid import: %w", err)
	}

	if err := s.Save(ctx, KeyProducts, nonNil(data.Products)); err != nil {
		return err
	}
	if err := s.Save(ctx, KeyTherapy, nonNil(data.Events)); err != nil {
		return err
	}
	if err := s.Save(ctx, KeyUsageReports, nonNil(data.UsageReports)); err != nil {
		return err
	}
	return s.Save(ctx, KeyNotifications, data.Reminder)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
