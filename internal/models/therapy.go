package models

import (
	"fmt"
	"strings"
	"time"
)

// TherapyType is the kind of dose logged for a day.
type TherapyType string

const (
	// TherapyBase uses one primary and one accessory consumable.
	TherapyBase TherapyType = "base"
	// TherapyBaseAccessory additionally uses one secondary consumable.
	TherapyBaseAccessory TherapyType = "base+accessory"
)

// TherapyTypes lists the valid therapy types.
var TherapyTypes = []TherapyType{TherapyBase, TherapyBaseAccessory}

// ParseTherapyType converts user input or a stored value to a TherapyType.
// Values written by older installs ("duodopa", "duodopa-canula") are accepted.
func ParseTherapyType(s string) (TherapyType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "base", "duodopa":
		return TherapyBase, nil
	case "base+accessory", "base-accessory", "duodopa-canula", "duodopa_canula":
		return TherapyBaseAccessory, nil
	default:
		return "", fmt.Errorf("unknown therapy type %q (want base or base+accessory)", s)
	}
}

// UnmarshalText lets stored legacy values decode into the current names.
func (t *TherapyType) UnmarshalText(text []byte) error {
	parsed, err := ParseTherapyType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// DateLayout is the calendar-day format used for event dates.
const DateLayout = "2006-01-02"

// TherapyEvent records the single dose logged on a calendar day.
type TherapyEvent struct {
	ID        string      `json:"id" yaml:"id"`
	Date      string      `json:"date" yaml:"date"`
	Type      TherapyType `json:"type" yaml:"type"`
	Timestamp int64       `json:"timestamp" yaml:"timestamp"` // unix milliseconds
}

// Time returns the event timestamp as a time.Time.
func (e TherapyEvent) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// Month returns the "YYYY-MM" key of the event date.
func (e TherapyEvent) Month() string {
	if len(e.Date) >= 7 {
		return e.Date[:7]
	}
	return e.Date
}
