package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"testing"
	"time"

	"github.com/j-veylop/parkinfusion/internal/models"
	"github.com/j-veylop/parkinfusion/internal/session"
	"github.com/j-veylop/parkinfusion/internal/store"
)

type testClock struct {
	t time.Time
}

func (c *testClock) Now() time.Time { return c.t }

func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type counterIDs struct {
	n int
}

func (c *counterIDs) NextID() string {
	c.n++
	return fmt.Sprintf("ev-%d", c.n)
}

type fixture struct {
	ledger  *Ledger
	session *session.Session
	kv      *store.MemoryKV
	clock   *testClock
}

func newFixture(t *testing.T, start time.Time) *fixture {
	t.Helper()
	kv := store.NewMemory()
	clock := &testClock{t: start}
	sess := session.New("mario", kv, session.WithClock(clock.Now))
	l := New(sess,
		WithClock(clock.Now),
		WithLocation(time.UTC),
		WithIDGenerator(&counterIDs{}),
	)
	return &fixture{ledger: l, session: sess, kv: kv, clock: clock}
}

func march10() time.Time {
	return time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
}

func stocks(t *testing.T, l *Ledger) map[string]int {
	t.Helper()
	out := make(map[string]int)
	for _, p := range l.Products(context.Background()) {
		out[p.ID] = p.Stock
	}
	return out
}

func assertStocks(t *testing.T, l *Ledger, siringhe, canule, adattatori int) {
	t.Helper()
	got := stocks(t, l)
	if got["siringhe"] != siringhe || got["canule"] != canule || got["adattatori"] != adattatori {
		t.Errorf("stocks = %v, want siringhe=%d canule=%d adattatori=%d", got, siringhe, canule, adattatori)
	}
}

func TestProducts_SeedsDefaults(t *testing.T) {
	f := newFixture(t, march10())
	ctx := context.Background()

	products, res := f.ledger.LoadProducts(ctx)
	if res != session.Absent {
		t.Errorf("LoadProducts() result = %v, want absent", res)
	}
	if len(products) != 3 {
		t.Fatalf("got %d products, want 3", len(products))
	}

	wantIDs := []string{"siringhe", "canule", "adattatori"}
	for i, p := range products {
		if p.ID != wantIDs[i] {
			t.Errorf("products[%d].ID = %q, want %q", i, p.ID, wantIDs[i])
		}
	}
	if p := products[0]; p.Name != "Siringhe Duodopa 20ml" || p.Code != "SIR001" || p.Stock != 10 || p.MinThreshold != 5 {
		t.Errorf("unexpected primary product %+v", p)
	}

	if _, err := f.kv.Get(ctx, "parkinfusion_mario_products"); err != nil {
		t.Errorf("seeded products were not persisted: %v", err)
	}
	if _, res := f.ledger.LoadProducts(ctx); res != session.Loaded {
		t.Errorf("second LoadProducts() result = %v, want loaded", res)
	}
}

func TestProducts_EmptyListReseeds(t *testing.T) {
	f := newFixture(t, march10())
	ctx := context.Background()
	_ = f.kv.Set(ctx, "parkinfusion_mario_products", "[]")

	if got := f.ledger.Products(ctx); len(got) != 3 {
		t.Errorf("got %d products, want the 3 defaults", len(got))
	}
}

func TestProducts_CorruptKeepsStoredValue(t *testing.T) {
	f := newFixture(t, march10())
	ctx := context.Background()
	_ = f.kv.Set(ctx, "parkinfusion_mario_products", "{oops")

	products, res := f.ledger.LoadProducts(ctx)
	if res != session.Corrupt {
		t.Errorf("LoadProducts() result = %v, want corrupt", res)
	}
	if len(products) != 3 {
		t.Errorf("got %d products, want defaults", len(products))
	}
	if raw, _ := f.kv.Get(ctx, "parkinfusion_mario_products"); raw != "{oops" {
		t.Errorf("corrupt value was overwritten on read: %q", raw)
	}
}

func TestAdjustStock(t *testing.T) {
	tests := []struct {
		name  string
		id    string
		delta int
		want  int
	}{
		{"restock", "siringhe", 5, 15},
		{"use", "siringhe", -3, 7},
		{"clamps at zero", "siringhe", -100, 0},
		{"zero delta", "siringhe", 0, 10},
		{"unknown id", "nope", -1, 10},
		{"saturates at max", "siringhe", math.MaxInt, math.MaxInt},
		{"min int clamps at zero", "siringhe", math.MinInt, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, march10())
			f.ledger.AdjustStock(context.Background(), tt.id, tt.delta)

			if got := stocks(t, f.ledger)["siringhe"]; got != tt.want {
				t.Errorf("siringhe stock = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAddStock(t *testing.T) {
	tests := []struct {
		stock, delta, want int
	}{
		{10, 5, 15},
		{10, -15, 0},
		{10, math.MaxInt, math.MaxInt},
		{math.MaxInt, 1, math.MaxInt},
		{0, math.MinInt, 0},
		{math.MaxInt, math.MinInt, 0},
		{math.MaxInt, -math.MaxInt, 0},
	}

	for _, tt := range tests {
		if got := addStock(tt.stock, tt.delta); got != tt.want {
			t.Errorf("addStock(%d, %d) = %d, want %d", tt.stock, tt.delta, got, tt.want)
		}
	}
}

func TestUpdateProduct(t *testing.T) {
	f := newFixture(t, march10())
	ctx := context.Background()

	name := "Siringhe 50ml"
	min := 3
	f.ledger.UpdateProduct(ctx, "siringhe", models.ProductPatch{Name: &name, MinThreshold: &min})

	p, ok := f.ledger.Product(ctx, "siringhe")
	if !ok {
		t.Fatal("Product() did not find siringhe")
	}
	if p.Name != name || p.MinThreshold != 3 {
		t.Errorf("UpdateProduct() = %+v", p)
	}
	if p.Stock != 10 || p.Code != "SIR001" || p.Category != models.CategoryPrimary {
		t.Errorf("UpdateProduct() touched fields outside the patch: %+v", p)
	}

	negative := -4
	f.ledger.UpdateProduct(ctx, "canule", models.ProductPatch{MinThreshold: &negative})
	if p, _ := f.ledger.Product(ctx, "canule"); p.MinThreshold != 0 {
		t.Errorf("negative threshold stored as %d, want 0", p.MinThreshold)
	}

	before := f.ledger.Products(ctx)
	f.ledger.UpdateProduct(ctx, "missing", models.ProductPatch{Name: &name})
	if !slices.Equal(before, f.ledger.Products(ctx)) {
		t.Error("UpdateProduct() on unknown id changed products")
	}
}

func TestLowStockProducts(t *testing.T) {
	f := newFixture(t, march10())
	ctx := context.Background()

	if low := f.ledger.LowStockProducts(ctx); len(low) != 0 {
		t.Errorf("fresh ledger has low stock: %+v", low)
	}

	f.ledger.AdjustStock(ctx, "siringhe", -5) // 5, equal to threshold
	f.ledger.AdjustStock(ctx, "canule", -6)   // 9, above 8

	low := f.ledger.LowStockProducts(ctx)
	if len(low) != 1 || low[0].ID != "siringhe" {
		t.Errorf("LowStockProducts() = %+v, want only siringhe", low)
	}
}

func TestLogDose_Base(t *testing.T) {
	f := newFixture(t, march10())
	ctx := context.Background()

	if !f.ledger.CanLogToday(ctx) {
		t.Fatal("CanLogToday() = false on a fresh ledger")
	}
	if _, ok := f.ledger.TodayType(ctx); ok {
		t.Error("TodayType() should report nothing before logging")
	}

	out := f.ledger.LogDose(ctx, models.TherapyBase)
	if !out.Logged {
		t.Fatal("LogDose() did not log")
	}
	if out.Event.Date != "2025-03-10" || out.Event.Type != models.TherapyBase || out.Event.ID != "ev-1" {
		t.Errorf("event = %+v", out.Event)
	}
	if out.Event.Timestamp != march10().UnixMilli() {
		t.Errorf("timestamp = %d", out.Event.Timestamp)
	}
	if out.Diverged() {
		t.Errorf("unexpected divergence: %+v", out.Skipped)
	}

	assertStocks(t, f.ledger, 9, 15, 19)

	if f.ledger.CanLogToday(ctx) {
		t.Error("CanLogToday() = true after logging")
	}
	if typ, ok := f.ledger.TodayType(ctx); !ok || typ != models.TherapyBase {
		t.Errorf("TodayType() = %q, %v", typ, ok)
	}

	reports := f.ledger.UsageReports(ctx)
	want := models.UsageReport{Month: "2025-03", Year: 2025, Consumption: models.Consumption{Primary: 1, Secondary: 0, Accessory: 1}}
	if len(reports) != 1 || reports[0] != want {
		t.Errorf("UsageReports() = %+v, want [%+v]", reports, want)
	}
}

func TestLogDose_BaseAccessory(t *testing.T) {
	f := newFixture(t, march10())
	ctx := context.Background()

	out := f.ledger.LogDose(ctx, models.TherapyBaseAccessory)
	if !out.Logged {
		t.Fatal("LogDose() did not log")
	}

	assertStocks(t, f.ledger, 9, 14, 19)

	want := []models.Category{models.CategoryPrimary, models.CategorySecondary, models.CategoryAccessory}
	if !slices.Equal(out.Decremented, want) {
		t.Errorf("Decremented = %v, want %v", out.Decremented, want)
	}
	if r := f.ledger.UsageReports(ctx)[0]; r.Primary != 1 || r.Secondary != 1 || r.Accessory != 1 {
		t.Errorf("report = %+v", r)
	}
}

func TestLogDose_OncePerDay(t *testing.T) {
	f := newFixture(t, march10())
	ctx := context.Background()

	f.ledger.LogDose(ctx, models.TherapyBase)
	f.clock.Advance(8 * time.Hour)

	out := f.ledger.LogDose(ctx, models.TherapyBaseAccessory)
	if out.Logged {
		t.Error("second LogDose() on the same day should not log")
	}

	assertStocks(t, f.ledger, 9, 15, 19)
	if events := f.ledger.Events(ctx); len(events) != 1 {
		t.Errorf("got %d events, want 1", len(events))
	}
	if r := f.ledger.UsageReports(ctx)[0]; r.Primary != 1 {
		t.Errorf("report primary = %d, want 1", r.Primary)
	}
	if typ, _ := f.ledger.TodayType(ctx); typ != models.TherapyBase {
		t.Errorf("TodayType() = %q, want base", typ)
	}
}

func TestLogDose_NextDay(t *testing.T) {
	f := newFixture(t, march10())
	ctx := context.Background()

	f.ledger.LogDose(ctx, models.TherapyBase)
	f.clock.Advance(24 * time.Hour)

	if !f.ledger.CanLogToday(ctx) {
		t.Fatal("CanLogToday() = false on a new day")
	}
	if out := f.ledger.LogDose(ctx, models.TherapyBase); !out.Logged {
		t.Fatal("LogDose() on a new day did not log")
	}

	assertStocks(t, f.ledger, 8, 15, 18)
	if r := f.ledger.UsageReports(ctx); len(r) != 1 || r[0].Primary != 2 {
		t.Errorf("UsageReports() = %+v, want one month with primary 2", r)
	}
}

func TestLogDose_TwoMonths(t *testing.T) {
	f := newFixture(t, time.Date(2025, time.January, 31, 20, 0, 0, 0, time.UTC))
	ctx := context.Background()

	f.ledger.LogDose(ctx, models.TherapyBase)
	f.clock.Advance(24 * time.Hour)
	f.ledger.LogDose(ctx, models.TherapyBaseAccessory)

	reports := f.ledger.UsageReports(ctx)
	if len(reports) != 2 {
		t.Fatalf("got %d reports, want 2", len(reports))
	}
	if reports[0].Month != "2025-01" || reports[0].Secondary != 0 {
		t.Errorf("january report = %+v", reports[0])
	}
	if reports[1].Month != "2025-02" || reports[1].Secondary != 1 || reports[1].Year != 2025 {
		t.Errorf("february report = %+v", reports[1])
	}
}

func TestLogDose_EmptyStockStillReported(t *testing.T) {
	f := newFixture(t, march10())
	ctx := context.Background()

	f.ledger.AdjustStock(ctx, "siringhe", -10)

	out := f.ledger.LogDose(ctx, models.TherapyBase)
	if !out.Logged {
		t.Fatal("LogDose() should log even with empty stock")
	}
	if !out.Diverged() || !slices.Equal(out.Skipped, []models.Category{models.CategoryPrimary}) {
		t.Errorf("Skipped = %v, want [primary]", out.Skipped)
	}
	if !slices.Equal(out.Decremented, []models.Category{models.CategoryAccessory}) {
		t.Errorf("Decremented = %v, want [accessory]", out.Decremented)
	}

	assertStocks(t, f.ledger, 0, 15, 19)
	if r := f.ledger.UsageReports(ctx)[0]; r.Primary != 1 || r.Accessory != 1 {
		t.Errorf("report = %+v, want the full dose counted", r)
	}
}

func TestLogDose_MissingCategoryIsSkipped(t *testing.T) {
	f := newFixture(t, march10())
	ctx := context.Background()

	only := []models.Product{{ID: "siringhe", Category: models.CategoryPrimary, Stock: 3, MinThreshold: 1}}
	if err := f.session.Save(ctx, session.KeyProducts, only); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	out := f.ledger.LogDose(ctx, models.TherapyBaseAccessory)
	want := []models.Category{models.CategorySecondary, models.CategoryAccessory}
	if !slices.Equal(out.Skipped, want) {
		t.Errorf("Skipped = %v, want %v", out.Skipped, want)
	}
	if got := stocks(t, f.ledger)["siringhe"]; got != 2 {
		t.Errorf("siringhe = %d, want 2", got)
	}
}

func TestLogDose_UnknownType(t *testing.T) {
	f := newFixture(t, march10())
	ctx := context.Background()

	if out := f.ledger.LogDose(ctx, models.TherapyType("triple")); out.Logged {
		t.Error("LogDose() logged an unknown therapy type")
	}
	if !f.ledger.CanLogToday(ctx) {
		t.Error("unknown type should not consume today's slot")
	}
	if f.kv.Len() != 0 {
		t.Errorf("unknown type wrote %d keys", f.kv.Len())
	}
}

func TestLogDose_UsesLocalCalendarDay(t *testing.T) {
	kv := store.NewMemory()
	clock := &testClock{t: time.Date(2025, time.March, 10, 23, 30, 0, 0, time.UTC)}
	rome := time.FixedZone("CET", 2*60*60)
	l := New(session.New("mario", kv), WithClock(clock.Now), WithLocation(rome))

	out := l.LogDose(context.Background(), models.TherapyBase)
	if out.Event.Date != "2025-03-11" {
		t.Errorf("event date = %q, want the local day 2025-03-11", out.Event.Date)
	}
}

func TestStockNeverNegative(t *testing.T) {
	f := newFixture(t, march10())
	ctx := context.Background()

	types := []models.TherapyType{models.TherapyBase, models.TherapyBaseAccessory}
	for day := 0; day < 40; day++ {
		f.ledger.LogDose(ctx, types[day%2])
		f.ledger.AdjustStock(ctx, "canule", -day)
		f.clock.Advance(24 * time.Hour)
	}

	f.ledger.AdjustStock(ctx, "siringhe", math.MaxInt)
	f.ledger.AdjustStock(ctx, "siringhe", math.MaxInt)
	if got := stocks(t, f.ledger)["siringhe"]; got != math.MaxInt {
		t.Errorf("siringhe stock after repeated restock = %d, want MaxInt", got)
	}
	f.ledger.AdjustStock(ctx, "adattatori", math.MinInt)

	for _, p := range f.ledger.Products(ctx) {
		if p.Stock < 0 {
			t.Errorf("%s stock = %d", p.ID, p.Stock)
		}
	}

	r := f.ledger.UsageReports(ctx)
	total := models.Consumption{}
	for _, m := range r {
		total = total.Plus(m.Consumption)
	}
	if total.Primary != 40 || total.Secondary != 20 || total.Accessory != 40 {
		t.Errorf("total usage = %+v, want every dose counted", total)
	}
}

func TestDeleteEvent_DoesNotReverseStockOrReports(t *testing.T) {
	f := newFixture(t, march10())
	ctx := context.Background()

	f.ledger.LogDose(ctx, models.TherapyBase)

	if n := f.ledger.DeleteEvent(ctx, "2025-03-10"); n != 1 {
		t.Fatalf("DeleteEvent() = %d, want 1", n)
	}
	if !f.ledger.CanLogToday(ctx) {
		t.Error("CanLogToday() = false after deleting today's event")
	}
	assertStocks(t, f.ledger, 9, 15, 19)
	if r := f.ledger.UsageReports(ctx)[0]; r.Primary != 1 {
		t.Errorf("report primary = %d, want 1", r.Primary)
	}

	f.ledger.LogDose(ctx, models.TherapyBase)
	assertStocks(t, f.ledger, 8, 15, 18)
	if r := f.ledger.UsageReports(ctx)[0]; r.Primary != 2 {
		t.Errorf("report primary after relog = %d, want 2", r.Primary)
	}
}

func TestDeleteEvent_Counts(t *testing.T) {
	f := newFixture(t, march10())
	ctx := context.Background()

	events := []models.TherapyEvent{
		{ID: "a", Date: "2025-03-01", Type: models.TherapyBase},
		{ID: "b", Date: "2025-03-02", Type: models.TherapyBase},
		{ID: "c", Date: "2025-03-01", Type: models.TherapyBaseAccessory},
	}
	if err := f.session.Save(ctx, session.KeyTherapy, events); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	if n := f.ledger.DeleteEvent(ctx, "2025-03-05"); n != 0 {
		t.Errorf("DeleteEvent(missing) = %d, want 0", n)
	}
	if n := f.ledger.DeleteEvent(ctx, "2025-03-01"); n != 2 {
		t.Errorf("DeleteEvent() = %d, want 2", n)
	}

	left := f.ledger.Events(ctx)
	if len(left) != 1 || left[0].ID != "b" {
		t.Errorf("remaining events = %+v", left)
	}
}

func TestMonthlyDays(t *testing.T) {
	f := newFixture(t, time.Date(2025, time.February, 27, 8, 0, 0, 0, time.UTC))
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		f.ledger.LogDose(ctx, models.TherapyBase)
		f.clock.Advance(24 * time.Hour)
	}

	days := f.ledger.MonthlyDays(ctx)
	if days["2025-02"] != 2 || days["2025-03"] != 2 {
		t.Errorf("MonthlyDays() = %v", days)
	}
}

func TestSortReports(t *testing.T) {
	reports := []models.UsageReport{{Month: "2024-12"}, {Month: "2025-02"}, {Month: "2025-01"}}
	SortReports(reports)

	got := []string{reports[0].Month, reports[1].Month, reports[2].Month}
	if !slices.Equal(got, []string{"2025-02", "2025-01", "2024-12"}) {
		t.Errorf("SortReports() = %v", got)
	}
}

func TestConsumptionFor(t *testing.T) {
	tests := []struct {
		typ  models.TherapyType
		want models.Consumption
		ok   bool
	}{
		{models.TherapyBase, models.Consumption{Primary: 1, Accessory: 1}, true},
		{models.TherapyBaseAccessory, models.Consumption{Primary: 1, Secondary: 1, Accessory: 1}, true},
		{"other", models.Consumption{}, false},
	}
	for _, tt := range tests {
		got, ok := ConsumptionFor(tt.typ)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ConsumptionFor(%q) = %+v, %v; want %+v, %v", tt.typ, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseProductPatch(t *testing.T) {
	tests := []struct {
		name    string
		input   map[string]any
		wantErr bool
		check   func(models.ProductPatch) bool
	}{
		{
			name:  "string threshold",
			input: map[string]any{"minThreshold": "7"},
			check: func(p models.ProductPatch) bool { return p.MinThreshold != nil && *p.MinThreshold == 7 && p.Name == nil },
		},
		{
			name:  "case insensitive keys",
			input: map[string]any{"NAME": "Canule 30G", "code": "CAN002"},
			check: func(p models.ProductPatch) bool { return *p.Name == "Canule 30G" && *p.Code == "CAN002" },
		},
		{name: "unknown field", input: map[string]any{"stock": 3}, wantErr: true},
		{name: "negative threshold", input: map[string]any{"minThreshold": -1}, wantErr: true},
		{name: "not a number", input: map[string]any{"minThreshold": "lots"}, wantErr: true},
		{name: "empty", input: map[string]any{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseProductPatch(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseProductPatch() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && !tt.check(got) {
				t.Errorf("ParseProductPatch() = %+v", got)
			}
		})
	}
}

func TestSnowflakeIDs(t *testing.T) {
	ids, err := NewSnowflakeIDs(7)
	if err != nil {
		t.Fatalf("NewSnowflakeIDs() failed: %v", err)
	}

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := ids.NextID()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}

	if _, err := NewSnowflakeIDs(5000); err == nil {
		t.Error("NewSnowflakeIDs() should reject an out of range node")
	}
}

func TestNew_DefaultIDs(t *testing.T) {
	l := New(session.New("mario", store.NewMemory()))
	out := l.LogDose(context.Background(), models.TherapyBase)
	if out.Event.ID == "" {
		t.Error("default generator produced an empty id")
	}
}

// flakyKV fails every read while down.
type flakyKV struct {
	*store.MemoryKV
	down bool
}

func (f *flakyKV) Get(ctx context.Context, key string) (string, error) {
	if f.down {
		return "", errors.New("i/o timeout")
	}
	return f.MemoryKV.Get(ctx, key)
}

func TestUnavailableStoreIsNotOverwritten(t *testing.T) {
	ctx := context.Background()
	kv := &flakyKV{MemoryKV: store.NewMemory()}
	clock := &testClock{t: march10()}
	sess := session.New("mario", kv, session.WithClock(clock.Now))
	l := New(sess, WithClock(clock.Now), WithLocation(time.UTC), WithIDGenerator(&counterIDs{}))

	l.LogDose(ctx, models.TherapyBase)
	clock.Advance(24 * time.Hour)
	l.LogDose(ctx, models.TherapyBaseAccessory)
	l.AdjustStock(ctx, "siringhe", 30)

	snapshot := make(map[string]string)
	for _, name := range []string{session.KeyProducts, session.KeyTherapy, session.KeyUsageReports} {
		snapshot[name], _ = kv.MemoryKV.Get(ctx, sess.Key(name))
	}

	kv.down = true
	clock.Advance(24 * time.Hour)

	if out := l.LogDose(ctx, models.TherapyBase); out.Logged {
		t.Error("LogDose() logged while the store was unreadable")
	}
	l.AdjustStock(ctx, "siringhe", -1)
	l.UpdateProduct(ctx, "canule", models.ProductPatch{})
	if n := l.DeleteEvent(ctx, "2025-03-10"); n != 0 {
		t.Errorf("DeleteEvent() = %d while unreadable, want 0", n)
	}
	if _, res := l.LoadProducts(ctx); res != session.Unavailable {
		t.Errorf("LoadProducts() result = %v, want unavailable", res)
	}

	for name, want := range snapshot {
		if got, _ := kv.MemoryKV.Get(ctx, sess.Key(name)); got != want {
			t.Errorf("%s changed while unreadable:\n got %s\nwant %s", name, got, want)
		}
	}

	kv.down = false
	if got := len(l.Events(ctx)); got != 2 {
		t.Errorf("events after recovery = %d, want 2", got)
	}
	if out := l.LogDose(ctx, models.TherapyBase); !out.Logged {
		t.Error("LogDose() should work once the store recovers")
	}
}
