package models

import (
	"fmt"
	"time"
)

// DefaultReminderText is shown when the user has not customised the reminder.
const DefaultReminderText = "È ora della terapia! Ricorda di prendere i tuoi farmaci per il Parkinson."

// SnoozeDuration is how long a snoozed reminder stays quiet.
const SnoozeDuration = 15 * time.Minute

// ReminderSettings are the persisted daily reminder preferences.
type ReminderSettings struct {
	Enabled      bool       `json:"enabled" yaml:"enabled"`
	Time         string     `json:"time" yaml:"time"` // HH:MM, local time
	Text         string     `json:"customText" yaml:"customText"`
	SnoozedUntil *time.Time `json:"snoozedUntil,omitempty" yaml:"snoozedUntil,omitempty"`
	LastNotified string     `json:"lastNotified,omitempty" yaml:"lastNotified,omitempty"` // YYYY-MM-DD
}

// DefaultReminderSettings returns the settings used before the user saves any.
func DefaultReminderSettings() ReminderSettings {
	return ReminderSettings{
		Enabled: true,
		Time:    "08:15",
		Text:    DefaultReminderText,
	}
}

// Validate checks that the reminder time is a valid HH:MM clock time.
func (r ReminderSettings) Validate() error {
	if _, err := time.Parse("15:04", r.Time); err != nil || len(r.Time) != 5 {
		return fmt.Errorf("invalid reminder time %q (want HH:MM)", r.Time)
	}
	if r.LastNotified != "" {
		if _, err := time.Parse(DateLayout, r.LastNotified); err != nil {
			return fmt.Errorf("invalid last notified date %q", r.LastNotified)
		}
	}
	return nil
}

// Due reports whether the reminder should fire at now. now must already be
// in the user's time zone. A reminder fires at most once per calendar day,
// from its time onwards, and never while snoozed.
func (r ReminderSettings) Due(now time.Time) bool {
	if !r.Enabled {
		return false
	}
	if r.LastNotified == now.Format(DateLayout) {
		return false
	}
	if r.SnoozedUntil != nil && now.Before(*r.SnoozedUntil) {
		return false
	}
	return now.Format("15:04") >= r.Time
}

// Snooze returns a copy that stays quiet for SnoozeDuration and then fires
// again, even if today's reminder was already delivered.
func (r ReminderSettings) Snooze(now time.Time) ReminderSettings {
	until := now.Add(SnoozeDuration)
	r.SnoozedUntil = &until
	r.LastNotified = ""
	return r
}

// MarkNotified returns a copy recording delivery on now's calendar day.
func (r ReminderSettings) MarkNotified(now time.Time) ReminderSettings {
	r.LastNotified = now.Format(DateLayout)
	r.SnoozedUntil = nil
	return r
}
