// Package ledger tracks therapy doses and the consumable stock they use.
//
// The ledger enforces at most one therapy event per calendar day, decrements
// product stock for each logged dose and keeps a running monthly usage report.
// Operations never return errors: missing or unreadable data falls back to
// defaults and write failures are logged.
package ledger

import (
	"context"
	"math"
	"slices"
	"sort"
	"time"

	"github.com/j-veylop/parkinfusion/internal/logger"
	"github.com/j-veylop/parkinfusion/internal/models"
	"github.com/j-veylop/parkinfusion/internal/session"
)

// Ledger is the therapy and stock ledger for one user session.
type Ledger struct {
	session *session.Session
	now     func() time.Time
	loc     *time.Location
	ids     IDGenerator
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock sets the clock used to decide "today".
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithLocation sets the time zone calendar days are computed in.
func WithLocation(loc *time.Location) Option {
	return func(l *Ledger) {
		if loc != nil {
			l.loc = loc
		}
	}
}

// WithIDGenerator sets the event id generator.
func WithIDGenerator(ids IDGenerator) Option {
	return func(l *Ledger) { l.ids = ids }
}

// New creates a ledger over sess.
func New(sess *session.Session, opts ...Option) *Ledger {
	l := &Ledger{
		session: sess,
		now:     time.Now,
		loc:     time.Local,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.ids == nil {
		// Node 0 is always in range.
		l.ids, _ = NewSnowflakeIDs(0)
	}
	return l
}

// DoseOutcome describes what LogDose did.
type DoseOutcome struct {
	Logged bool
	Event  models.TherapyEvent

	// Decremented lists categories whose stock went down.
	Decremented []models.Category
	// Skipped lists categories the dose consumed but whose stock was
	// already zero or which had no product. They are still counted in
	// the usage report.
	Skipped []models.Category

	Reported models.Consumption
}

// Diverged reports whether the usage report counted consumables that were
// not taken from stock.
func (o DoseOutcome) Diverged() bool {
	return len(o.Skipped) > 0
}

// Today returns the current calendar day as "YYYY-MM-DD".
func (l *Ledger) Today() string {
	return l.now().In(l.loc).Format(models.DateLayout)
}

// LoadProducts returns the stored products and how they were obtained. An
// absent or empty product list is seeded with DefaultProducts and persisted.
// A corrupt or unreadable list yields the defaults without overwriting what
// is stored.
func (l *Ledger) LoadProducts(ctx context.Context) ([]models.Product, session.LoadResult) {
	var products []models.Product
	res := l.session.Load(ctx, session.KeyProducts, &products)

	switch {
	case res == session.Corrupt || res == session.Unavailable:
		return DefaultProducts(), res
	case res == session.Absent || len(products) == 0:
		products = DefaultProducts()
		l.save(ctx, session.KeyProducts, products)
		return products, res
	default:
		return products, res
	}
}

// Products returns all products in stored order.
func (l *Ledger) Products(ctx context.Context) []models.Product {
	products, _ := l.LoadProducts(ctx)
	return products
}

// Product returns the product with id.
func (l *Ledger) Product(ctx context.Context, id string) (models.Product, bool) {
	for _, p := range l.Products(ctx) {
		if p.ID == id {
			return p, true
		}
	}
	return models.Product{}, false
}

// ProductByCategory returns the first product in category.
func (l *Ledger) ProductByCategory(ctx context.Context, cat models.Category) (models.Product, bool) {
	return findByCategory(l.Products(ctx), cat)
}

func findByCategory(products []models.Product, cat models.Category) (models.Product, bool) {
	for _, p := range products {
		if p.Category == cat {
			return p, true
		}
	}
	return models.Product{}, false
}

// AdjustStock adds delta to a product's stock, clamping at zero. Unknown ids
// are ignored.
func (l *Ledger) AdjustStock(ctx context.Context, id string, delta int) {
	products, res := l.LoadProducts(ctx)
	if res == session.Unavailable {
		logger.Warn("adjust stock: products unavailable, nothing changed", "id", id)
		return
	}

	i := slices.IndexFunc(products, func(p models.Product) bool { return p.ID == id })
	if i < 0 {
		logger.Warn("adjust stock: unknown product", "id", id)
		return
	}

	products[i].Stock = addStock(products[i].Stock, delta)
	l.save(ctx, session.KeyProducts, products)
}

// addStock returns stock+delta clamped to [0, math.MaxInt].
func addStock(stock, delta int) int {
	if delta > 0 && stock > math.MaxInt-delta {
		return math.MaxInt
	}
	if delta < 0 && stock < math.MinInt-delta {
		return 0
	}
	return max(0, stock+delta)
}

// UpdateProduct merges patch into the product with id. Stock and category
// are never changed. Unknown ids are ignored.
func (l *Ledger) UpdateProduct(ctx context.Context, id string, patch models.ProductPatch) {
	products, res := l.LoadProducts(ctx)
	if res == session.Unavailable {
		logger.Warn("update product: products unavailable, nothing changed", "id", id)
		return
	}

	i := slices.IndexFunc(products, func(p models.Product) bool { return p.ID == id })
	if i < 0 {
		logger.Warn("update product: unknown product", "id", id)
		return
	}

	updated := patch.Apply(products[i])
	if updated.MinThreshold < 0 {
		updated.MinThreshold = 0
	}
	products[i] = updated
	l.save(ctx, session.KeyProducts, products)
}

// LowStockProducts returns products at or below their minimum threshold.
func (l *Ledger) LowStockProducts(ctx context.Context) []models.Product {
	var low []models.Product
	for _, p := range l.Products(ctx) {
		if p.IsLow() {
			low = append(low, p)
		}
	}
	return low
}

// LoadEvents returns the stored therapy events and how they were obtained.
func (l *Ledger) LoadEvents(ctx context.Context) ([]models.TherapyEvent, session.LoadResult) {
	var events []models.TherapyEvent
	res := l.session.Load(ctx, session.KeyTherapy, &events)
	if res != session.Loaded {
		return nil, res
	}
	return events, res
}

// Events returns all therapy events in stored order.
func (l *Ledger) Events(ctx context.Context) []models.TherapyEvent {
	events, _ := l.LoadEvents(ctx)
	return events
}

// TodayEvent returns the event logged today, if any.
func (l *Ledger) TodayEvent(ctx context.Context) (models.TherapyEvent, bool) {
	today := l.Today()
	for _, e := range l.Events(ctx) {
		if e.Date == today {
			return e, true
		}
	}
	return models.TherapyEvent{}, false
}

// CanLogToday reports whether no dose has been logged today.
func (l *Ledger) CanLogToday(ctx context.Context) bool {
	_, found := l.TodayEvent(ctx)
	return !found
}

// TodayType returns the therapy type logged today.
func (l *Ledger) TodayType(ctx context.Context) (models.TherapyType, bool) {
	e, found := l.TodayEvent(ctx)
	return e.Type, found
}

// LogDose records today's dose of therapy type t. If a dose was already
// logged today, or t is unknown, nothing changes.
//
// Each consumable is taken from stock only while that stock is above zero,
// but the usage report always counts the full dose.
func (l *Ledger) LogDose(ctx context.Context, t models.TherapyType) DoseOutcome {
	vector, ok := ConsumptionFor(t)
	if !ok {
		logger.Warn("log dose: unknown therapy type", "type", t)
		return DoseOutcome{}
	}

	now := l.now()
	today := now.In(l.loc).Format(models.DateLayout)

	events, res := l.LoadEvents(ctx)
	if res == session.Unavailable || !l.writable(ctx) {
		logger.Warn("log dose: stored data unavailable, nothing logged", "date", today)
		return DoseOutcome{}
	}
	for _, e := range events {
		if e.Date == today {
			logger.Debug("log dose: already logged today", "date", today)
			return DoseOutcome{}
		}
	}

	event := models.TherapyEvent{
		ID:        l.ids.NextID(),
		Date:      today,
		Type:      t,
		Timestamp: now.UnixMilli(),
	}
	l.save(ctx, session.KeyTherapy, append(events, event))

	outcome := DoseOutcome{Logged: true, Event: event, Reported: vector}

	products := l.Products(ctx)
	for _, cat := range models.Categories {
		qty := vector.Of(cat)
		if qty == 0 {
			continue
		}

		p, found := findByCategory(products, cat)
		if !found || p.Stock <= 0 {
			outcome.Skipped = append(outcome.Skipped, cat)
			continue
		}

		l.AdjustStock(ctx, p.ID, -qty)
		outcome.Decremented = append(outcome.Decremented, cat)
	}

	if outcome.Diverged() {
		logger.Info("dose logged with empty stock", "date", today, "skipped", outcome.Skipped)
	}

	l.addUsage(ctx, now.In(l.loc), vector)

	return outcome
}

func (l *Ledger) addUsage(ctx context.Context, at time.Time, c models.Consumption) {
	reports, res := l.loadReports(ctx)
	if res == session.Unavailable {
		logger.Warn("usage reports unavailable, dose not counted", "month", models.MonthKey(at))
		return
	}
	month := models.MonthKey(at)

	i := slices.IndexFunc(reports, func(r models.UsageReport) bool { return r.Month == month })
	if i < 0 {
		reports = append(reports, models.UsageReport{Month: month, Year: at.Year()})
		i = len(reports) - 1
	}

	reports[i].Consumption = reports[i].Consumption.Plus(c)
	l.save(ctx, session.KeyUsageReports, reports)
}

// DeleteEvent removes every event dated date and returns how many were
// removed. Stock and usage reports are left as they are.
func (l *Ledger) DeleteEvent(ctx context.Context, date string) int {
	events, res := l.LoadEvents(ctx)
	if res == session.Unavailable {
		logger.Warn("delete event: therapy history unavailable", "date", date)
		return 0
	}

	kept := events[:0]
	for _, e := range events {
		if e.Date != date {
			kept = append(kept, e)
		}
	}

	removed := len(events) - len(kept)
	if removed > 0 {
		l.save(ctx, session.KeyTherapy, kept)
	}
	return removed
}

// UsageReports returns the monthly usage reports in stored order.
func (l *Ledger) UsageReports(ctx context.Context) []models.UsageReport {
	reports, _ := l.loadReports(ctx)
	return reports
}

func (l *Ledger) loadReports(ctx context.Context) ([]models.UsageReport, session.LoadResult) {
	var reports []models.UsageReport
	res := l.session.Load(ctx, session.KeyUsageReports, &reports)
	if res != session.Loaded {
		return nil, res
	}
	return reports, res
}

// writable reports whether products and usage reports can be read, so a
// dose does not overwrite them with defaults.
func (l *Ledger) writable(ctx context.Context) bool {
	if _, res := l.LoadProducts(ctx); res == session.Unavailable {
		return false
	}
	_, res := l.loadReports(ctx)
	return res != session.Unavailable
}

// SortReports orders reports newest month first.
func SortReports(reports []models.UsageReport) {
	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].Month > reports[j].Month
	})
}

// MonthlyDays counts logged therapy days per "YYYY-MM" month.
func (l *Ledger) MonthlyDays(ctx context.Context) map[string]int {
	days := make(map[string]int)
	for _, e := range l.Events(ctx) {
		days[e.Month()]++
	}
	return days
}

func (l *Ledger) save(ctx context.Context, name string, v any) {
	if err := l.session.Save(ctx, name, v); err != nil {
		logger.Error("failed to persist ledger data", "name", name, "error", err)
	}
}
