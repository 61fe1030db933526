// Package services wires storage, the ledger and notifications together.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/j-veylop/parkinfusion/internal/config"
	"github.com/j-veylop/parkinfusion/internal/db"
	"github.com/j-veylop/parkinfusion/internal/ledger"
	"github.com/j-veylop/parkinfusion/internal/logger"
	"github.com/j-veylop/parkinfusion/internal/models"
	"github.com/j-veylop/parkinfusion/internal/session"
	"github.com/j-veylop/parkinfusion/internal/store"
)

const redisConnectTimeout = 5 * time.Second

type (
	// LowStockEvent is emitted when a product drops to its minimum threshold.
	LowStockEvent struct {
		Product models.Product
	}

	// StoreReloadedEvent is emitted when the data file was replaced externally.
	StoreReloadedEvent struct {
		Path string
	}

	// ReminderEvent is emitted when the daily reminder is delivered.
	ReminderEvent struct {
		Text string
	}

	// ErrorEvent is emitted when an error occurs in any service.
	ErrorEvent struct {
		Service string
		Error   error
	}
)

// ServiceEvent is the interface implemented by all service events.
type ServiceEvent interface {
	isServiceEvent()
}

func (LowStockEvent) isServiceEvent()      {}
func (StoreReloadedEvent) isServiceEvent() {}
func (ReminderEvent) isServiceEvent()      {}
func (ErrorEvent) isServiceEvent()         {}

// Notifier delivers user-facing alerts.
type Notifier interface {
	Notify(title, message string) error
}

// DesktopNotifier sends alerts as desktop notifications.
type DesktopNotifier struct{}

// Notify shows a desktop notification.
func (DesktopNotifier) Notify(title, message string) error {
	return beeep.Notify(title, message, "")
}

type nopNotifier struct{}

func (nopNotifier) Notify(string, string) error { return nil }

// Option configures a Manager.
type Option func(*Manager)

// WithNotifier overrides the notifier chosen from config.
func WithNotifier(n Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

// WithClock sets the clock used by the ledger and session.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager owns the store connection and the ledger for the configured user.
type Manager struct {
	mu          sync.Mutex // serialises ledger mutations
	subMu       sync.RWMutex
	cfg         *config.Config
	kv          store.KV
	session     *session.Session
	ledger      *ledger.Ledger
	notifier    Notifier
	now         func() time.Time
	stopChan    chan struct{}
	subscribers []chan ServiceEvent
	closeOnce   sync.Once
}

// NewManager opens the configured store and builds the ledger on top of it.
func NewManager(cfg *config.Config, opts ...Option) (*Manager, error) {
	m := &Manager{
		cfg:      cfg,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
	if cfg.DesktopNotifications {
		m.notifier = DesktopNotifier{}
	} else {
		m.notifier = nopNotifier{}
	}
	for _, opt := range opts {
		opt(m)
	}

	ids, err := ledger.NewSnowflakeIDs(cfg.NodeID)
	if err != nil {
		return nil, fmt.Errorf("invalid node id: %w", err)
	}

	m.kv, err = openStore(cfg)
	if err != nil {
		return nil, err
	}

	m.session = session.New(cfg.User, m.kv, session.WithClock(m.now))
	m.ledger = ledger.New(m.session,
		ledger.WithClock(m.now),
		ledger.WithLocation(cfg.Location),
		ledger.WithIDGenerator(ids),
	)

	if fk, ok := m.kv.(*store.FileKV); ok {
		go m.routeFileEvents(fk)
	}

	return m, nil
}

func openStore(cfg *config.Config) (store.KV, error) {
	switch cfg.StoreBackend {
	case config.BackendSQLite, "":
		database, err := db.New(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return database, nil

	case config.BackendBolt:
		kv, err := store.NewBolt(cfg.BoltPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open bolt store: %w", err)
		}
		return kv, nil

	case config.BackendFile:
		kv, err := store.NewFile(cfg.DataFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open data file: %w", err)
		}
		return kv, nil

	case config.BackendRedis:
		ctx, cancel := context.WithTimeout(context.Background(), redisConnectTimeout)
		defer cancel()
		kv, err := store.NewRedis(ctx, store.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		return kv, nil

	case config.BackendMemory:
		return store.NewMemory(), nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// routeFileEvents forwards data file watcher events to subscribers.
func (m *Manager) routeFileEvents(fk *store.FileKV) {
	for {
		select {
		case event := <-fk.Events():
			switch event.Type {
			case store.EventReloaded:
				m.broadcast(StoreReloadedEvent{Path: fk.Path()})
			case store.EventError:
				m.broadcast(ErrorEvent{Service: "store", Error: event.Error})
			}
		case <-m.stopChan:
			return
		}
	}
}

// broadcast sends an event to all subscribers.
func (m *Manager) broadcast(event ServiceEvent) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for _, sub := range m.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber channel full, skip
		}
	}
}

// Subscribe creates a channel for receiving service events.
func (m *Manager) Subscribe() chan ServiceEvent {
	ch := make(chan ServiceEvent, 50)

	m.subMu.Lock()
	m.subscribers = append(m.subscribers, ch)
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscriber channel.
func (m *Manager) Unsubscribe(ch chan ServiceEvent) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for i, sub := range m.subscribers {
		if sub == ch {
			m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

// withLowStockCheck runs fn and alerts for every product that fn pushed to
// or below its threshold. Products that were already low stay quiet.
func (m *Manager) withLowStockCheck(ctx context.Context, fn func()) {
	wasLow := make(map[string]bool)
	for _, p := range m.ledger.LowStockProducts(ctx) {
		wasLow[p.ID] = true
	}

	fn()

	for _, p := range m.ledger.LowStockProducts(ctx) {
		if wasLow[p.ID] {
			continue
		}
		m.broadcast(LowStockEvent{Product: p})

		title := fmt.Sprintf("Low stock: %s", p.Name)
		body := fmt.Sprintf("%d left (minimum %d)", p.Stock, p.MinThreshold)
		if err := m.notifier.Notify(title, body); err != nil {
			logger.Warn("failed to send low stock notification", "product", p.ID, "error", err)
		}
	}
}

// LogDose logs today's dose and alerts on products that became low.
func (m *Manager) LogDose(ctx context.Context, t models.TherapyType) ledger.DoseOutcome {
	m.mu.Lock()
	defer m.mu.Unlock()

	var outcome ledger.DoseOutcome
	m.withLowStockCheck(ctx, func() {
		outcome = m.ledger.LogDose(ctx, t)
	})
	return outcome
}

// AdjustStock changes a product's stock and alerts if it became low.
func (m *Manager) AdjustStock(ctx context.Context, id string, delta int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.withLowStockCheck(ctx, func() {
		m.ledger.AdjustStock(ctx, id, delta)
	})
}

// UpdateProduct applies patch to a product and alerts if a raised
// threshold made it low.
func (m *Manager) UpdateProduct(ctx context.Context, id string, patch models.ProductPatch) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.withLowStockCheck(ctx, func() {
		m.ledger.UpdateProduct(ctx, id, patch)
	})
}

// DeleteEvent removes the events on date.
func (m *Manager) DeleteEvent(ctx context.Context, date string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.ledger.DeleteEvent(ctx, date)
}

// SnoozeReminder silences the daily reminder for models.SnoozeDuration,
// after which it fires again.
func (m *Manager) SnoozeReminder(ctx context.Context) (models.ReminderSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	settings, _ := m.session.ReminderSettings(ctx)
	settings = settings.Snooze(m.now())
	if err := m.session.SaveReminderSettings(ctx, settings); err != nil {
		return models.ReminderSettings{}, err
	}
	return settings, nil
}

// CheckReminder delivers the daily reminder if it is due and records the
// delivery so it fires once per day.
func (m *Manager) CheckReminder(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	settings, _ := m.session.ReminderSettings(ctx)
	now := m.now().In(m.Location())
	if !settings.Due(now) {
		return false, nil
	}

	if err := m.notifier.Notify("Parkinfusion", settings.Text); err != nil {
		return false, fmt.Errorf("failed to send reminder: %w", err)
	}
	if err := m.session.SaveReminderSettings(ctx, settings.MarkNotified(now)); err != nil {
		return true, err
	}

	logger.Info("reminder delivered", "user", m.cfg.User, "time", settings.Time)
	m.broadcast(ReminderEvent{Text: settings.Text})
	return true, nil
}

// Location returns the time zone calendar days and reminders use.
func (m *Manager) Location() *time.Location {
	if m.cfg.Location == nil {
		return time.Local
	}
	return m.cfg.Location
}

// Export returns everything stored for the current user.
func (m *Manager) Export(ctx context.Context) models.UserData {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.session.Export(ctx)
}

// Import replaces the current user's data with data.
func (m *Manager) Import(ctx context.Context, data models.UserData) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.session.Import(ctx, data)
}

// ClearUserData deletes everything stored for the current user and compacts
// the SQLite file when that backend is in use.
func (m *Manager) ClearUserData(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.session.Clear(ctx); err != nil {
		return err
	}

	if database, ok := m.kv.(*db.DB); ok {
		if err := database.Vacuum(); err != nil {
			logger.Warn("vacuum after clear failed", "path", database.Path(), "error", err)
		}
	}
	return nil
}

// Ledger returns the ledger for read operations.
func (m *Manager) Ledger() *ledger.Ledger {
	return m.ledger
}

// Session returns the user session.
func (m *Manager) Session() *session.Session {
	return m.session
}

// Store returns the underlying key-value store.
func (m *Manager) Store() store.KV {
	return m.kv
}

// Close stops background routing and closes the store.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		close(m.stopChan)

		m.subMu.Lock()
		for _, sub := range m.subscribers {
			close(sub)
		}
		m.subscribers = nil
		m.subMu.Unlock()

		if cerr := m.kv.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	})
	return err
}
