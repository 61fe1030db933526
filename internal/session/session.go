// Package session scopes key-value persistence to a single user.
//
// A Session owns the key naming scheme ("parkinfusion_<user>_<name>") and the
// JSON encoding of stored values. Reads never fail: a missing or unreadable
// value is reported through LoadResult so callers can fall back to defaults.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/j-veylop/parkinfusion/internal/logger"
	"github.com/j-veylop/parkinfusion/internal/models"
	"github.com/j-veylop/parkinfusion/internal/store"
)

// Stored value names.
const (
	KeyProducts      = "products"
	KeyTherapy       = "therapy"
	KeyUsageReports  = "usage_reports"
	KeyNotifications = "notifications"
	KeyLastSync      = "lastSync"
)

var allKeys = []string{KeyProducts, KeyTherapy, KeyUsageReports, KeyNotifications, KeyLastSync}

const keyPrefix = "parkinfusion_"

// LoadResult tells how a value was obtained.
type LoadResult int

const (
	// Loaded means the stored value was read and decoded.
	Loaded LoadResult = iota
	// Absent means nothing was stored; the caller used its default.
	Absent
	// Corrupt means a stored value could not be decoded; the caller used
	// its default.
	Corrupt
	// Unavailable means the store could not be read. The caller used its
	// default and must not write it back over data it never saw.
	Unavailable
)

// String returns the display name for a load result.
func (r LoadResult) String() string {
	switch r {
	case Loaded:
		return "loaded"
	case Absent:
		return "absent"
	case Corrupt:
		return "corrupt"
	case Unavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Session is the persistence port for one user.
type Session struct {
	user string
	kv   store.KV
	now  func() time.Time
}

// Option configures a Session.
type Option func(*Session)

// WithClock sets the clock used for lastSync stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// New creates a session for user on top of kv.
func New(user string, kv store.KV, opts ...Option) *Session {
	s := &Session{user: user, kv: kv, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// User returns the user this session is scoped to.
func (s *Session) User() string {
	return s.user
}

// Key returns the store key for a value name.
func (s *Session) Key(name string) string {
	return keyPrefix + s.user + "_" + name
}

// Load decodes the value stored under name into dst. On anything other than
// Loaded, dst may be partially written and should be reset by the caller.
func (s *Session) Load(ctx context.Context, name string, dst any) LoadResult {
	key := s.Key(name)

	raw, err := s.kv.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return Absent
	}
	if err != nil {
		logger.Warn("failed to read stored value", "key", key, "error", err)
		return Unavailable
	}

	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		logger.Warn("failed to decode stored value", "key", key, "error", err)
		return Corrupt
	}
	return Loaded
}

// Save encodes v as JSON under name and stamps lastSync.
func (s *Session) Save(ctx context.Context, name string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}

	if err := s.kv.Set(ctx, s.Key(name), string(raw)); err != nil {
		return fmt.Errorf("failed to save %s: %w", name, err)
	}

	if name != KeyLastSync {
		s.touch(ctx)
	}
	return nil
}

func (s *Session) touch(ctx context.Context) {
	stamp := s.now().UTC().Format(time.RFC3339)
	if err := s.kv.Set(ctx, s.Key(KeyLastSync), stamp); err != nil {
		logger.Warn("failed to update last sync", "user", s.user, "error", err)
	}
}

// LastSync returns the time of the last successful save, or "" if none.
func (s *Session) LastSync(ctx context.Context) string {
	stamp, err := s.kv.Get(ctx, s.Key(KeyLastSync))
	if err != nil {
		return ""
	}
	return stamp
}

// ReminderSettings returns the stored reminder settings, or the defaults.
func (s *Session) ReminderSettings(ctx context.Context) (models.ReminderSettings, LoadResult) {
	settings := models.DefaultReminderSettings()
	res := s.Load(ctx, KeyNotifications, &settings)
	if res != Loaded {
		return models.DefaultReminderSettings(), res
	}
	if settings.Text == "" {
		settings.Text = models.DefaultReminderText
	}
	return settings, res
}

// SaveReminderSettings validates and stores reminder settings.
func (s *Session) SaveReminderSettings(ctx context.Context, settings models.ReminderSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	return s.Save(ctx, KeyNotifications, settings)
}

// Clear deletes every value stored for the user.
func (s *Session) Clear(ctx context.Context) error {
	var errs []error
	for _, name := range allKeys {
		if err := s.kv.Delete(ctx, s.Key(name)); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to clear user data: %w", errors.Join(errs...))
	}
	return nil
}
