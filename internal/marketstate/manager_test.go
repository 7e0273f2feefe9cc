package marketstate

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"QuantPull/internal/domain/models"
	domsvc "QuantPull/internal/domain/service"
	"QuantPull/internal/registry"
	"QuantPull/pkg/logger"
)

type memBarStore struct {
	mu      sync.Mutex
	bars    map[string][]models.Bar // ticker|interval
	queryEr error
}

func newMemBarStore() *memBarStore {
	return &memBarStore{bars: make(map[string][]models.Bar)}
}

func (s *memBarStore) Init(context.Context) error   { return nil }
func (s *memBarStore) Health(context.Context) error { return nil }
func (s *memBarStore) Close() error                 { return nil }

func (s *memBarStore) Upsert(_ context.Context, bars []models.Bar) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range bars {
		key := b.Ticker + "|" + b.Interval
		replaced := false
		for i, have := range s.bars[key] {
			if have.Timestamp.Equal(b.Timestamp) {
				s.bars[key][i] = b
				replaced = true
				break
			}
		}
		if !replaced {
			s.bars[key] = append(s.bars[key], b)
		}
	}
	return len(bars), nil
}

func (s *memBarStore) Query(_ context.Context, ticker, interval string, from, to time.Time) ([]models.Bar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queryEr != nil {
		return nil, s.queryEr
	}
	var out []models.Bar
	for _, b := range s.bars[ticker+"|"+interval] {
		if !b.Timestamp.Before(from) && !b.Timestamp.After(to) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

type fakeConnector struct {
	id    string
	bars  []models.Bar
	err   error
	calls atomic.Int32
	delay time.Duration
}

func (c *fakeConnector) ID() string { return c.id }

func (c *fakeConnector) FetchHistorical(ctx context.Context, ticker, interval string, _ time.Duration) ([]models.Bar, error) {
	c.calls.Add(1)
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if c.err != nil {
		return nil, c.err
	}
	out := make([]models.Bar, len(c.bars))
	for i, b := range c.bars {
		b.Ticker = ticker
		b.Interval = interval
		b.Source = c.id
		out[i] = b
	}
	return out, nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func goodBars(base time.Time, n int) []models.Bar {
	bars := make([]models.Bar, n)
	for i := range bars {
		p := 100 + float64(i)
		bars[i] = models.Bar{
			Timestamp: base.Add(time.Duration(i) * 24 * time.Hour),
			Open:      p, High: p + 1, Low: p - 1, Close: p, Volume: 1000,
		}
	}
	return bars
}

// clock fixed to a Monday inside trading hours
var testNow = time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

func buildManager(t *testing.T, store *memBarStore, policies PolicySet, connectors ...*fakeConnector) *Manager {
	t.Helper()
	cm := make(map[string]domsvc.SourceConnector)
	for _, c := range connectors {
		cm[c.id] = c
	}
	reg := registry.New(nil, nil, registry.WithClock(func() time.Time { return testNow }))
	return NewManager(store, reg, cm, policies, NewWindowCalendar(), testLogger(t),
		WithManagerClock(func() time.Time { return testNow }),
		WithSourceTimeout(200*time.Millisecond),
		WithSourceRateLimit(1000, 1000),
	)
}

func TestCacheHitSkipsSources(t *testing.T) {
	store := newMemBarStore()
	fresh := goodBars(testNow.Add(-5*24*time.Hour), 5)
	// only the most recent bar needs to be inside the TTL
	fresh[len(fresh)-1].Timestamp = testNow.Add(-5 * time.Minute)
	for i := range fresh {
		fresh[i].Ticker = "AAPL"
		fresh[i].Interval = "1d"
		fresh[i].Source = "yahoo"
	}
	if _, err := store.Upsert(context.Background(), fresh); err != nil {
		t.Fatalf("seed: %v", err)
	}

	primary := &fakeConnector{id: "yahoo", bars: goodBars(testNow.Add(-24*time.Hour), 2)}
	policies := PolicySet{models.AssetEquity: {
		TradingHoursTTL: 15 * time.Minute, OffHoursTTL: 24 * time.Hour, PrimarySource: "yahoo",
	}}
	m := buildManager(t, store, policies, primary)

	bars, err := m.GetMarketData(context.Background(), "AAPL", models.AssetEquity, "1d", 30*24*time.Hour, false)
	if err != nil {
		t.Fatalf("GetMarketData: %v", err)
	}
	if len(bars) != len(fresh) {
		t.Fatalf("got %d bars, want %d", len(bars), len(fresh))
	}
	if primary.calls.Load() != 0 {
		t.Fatalf("cache hit should make zero external calls, got %d", primary.calls.Load())
	}
}

func TestFallbackChainCarriesSource(t *testing.T) {
	store := newMemBarStore()
	primary := &fakeConnector{id: "yahoo", err: errors.New("timeout")}
	fallback := &fakeConnector{id: "binance", bars: goodBars(testNow.Add(-10*24*time.Hour), 10)}
	policies := PolicySet{models.AssetEquity: {
		TradingHoursTTL: 15 * time.Minute, OffHoursTTL: 24 * time.Hour,
		PrimarySource: "yahoo", FallbackSources: []string{"binance"},
	}}
	m := buildManager(t, store, policies, primary, fallback)

	bars, err := m.GetMarketData(context.Background(), "AAPL", models.AssetEquity, "1d", 30*24*time.Hour, false)
	if err != nil {
		t.Fatalf("GetMarketData: %v", err)
	}
	if len(bars) == 0 {
		t.Fatalf("expected bars from fallback")
	}
	for _, b := range bars {
		if b.Source != "binance" {
			t.Fatalf("bar source = %q, want binance", b.Source)
		}
	}
	if primary.calls.Load() != 1 {
		t.Fatalf("primary called %d times, want exactly 1", primary.calls.Load())
	}
	if fallback.calls.Load() != 1 {
		t.Fatalf("fallback called %d times, want exactly 1", fallback.calls.Load())
	}
	// fetched bars were upserted
	stored, err := store.Query(context.Background(), "AAPL", "1d", testNow.Add(-30*24*time.Hour), testNow)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(stored) != len(bars) {
		t.Fatalf("stored %d bars, want %d", len(stored), len(bars))
	}
}

func TestUpsertSameBarsTwiceIsIdempotent(t *testing.T) {
	store := newMemBarStore()
	bars := goodBars(testNow.Add(-5*24*time.Hour), 5)
	for i := range bars {
		bars[i].Ticker = "AAPL"
		bars[i].Interval = "1d"
		bars[i].Source = "yahoo"
	}
	if _, err := store.Upsert(context.Background(), bars); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if _, err := store.Upsert(context.Background(), bars); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	from, to := testNow.Add(-30*24*time.Hour), testNow
	stored, err := store.Query(context.Background(), "AAPL", "1d", from, to)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(stored) != len(bars) {
		t.Fatalf("double upsert stored %d bars, want %d", len(stored), len(bars))
	}
	for i, b := range stored {
		if b != bars[i] {
			t.Fatalf("bar %d changed by re-upsert: %+v != %+v", i, b, bars[i])
		}
	}

	// last writer wins on price fields for the same key
	bars[2].Close = 999
	if _, err := store.Upsert(context.Background(), bars[2:3]); err != nil {
		t.Fatalf("overwrite upsert: %v", err)
	}
	stored, err = store.Query(context.Background(), "AAPL", "1d", from, to)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(stored) != len(bars) {
		t.Fatalf("overwrite grew the store to %d bars, want %d", len(stored), len(bars))
	}
	if stored[2].Close != 999 {
		t.Fatalf("stored[2].Close = %v, want 999", stored[2].Close)
	}
}

func TestAllSourcesFailReturnsEmptyNotError(t *testing.T) {
	store := newMemBarStore()
	primary := &fakeConnector{id: "yahoo", err: errors.New("down")}
	fallback := &fakeConnector{id: "binance", err: errors.New("down too")}
	policies := PolicySet{models.AssetEquity: {
		TradingHoursTTL: 15 * time.Minute, OffHoursTTL: 24 * time.Hour,
		PrimarySource: "yahoo", FallbackSources: []string{"binance"},
	}}
	m := buildManager(t, store, policies, primary, fallback)

	bars, err := m.GetMarketData(context.Background(), "AAPL", models.AssetEquity, "1d", 30*24*time.Hour, false)
	if err != nil {
		t.Fatalf("all-sources-fail must not be an error, got %v", err)
	}
	if bars == nil || len(bars) != 0 {
		t.Fatalf("want empty non-nil result, got %v", bars)
	}
}

func TestStoreErrorIsHardFailure(t *testing.T) {
	store := newMemBarStore()
	store.queryEr = errors.New("connection refused")
	primary := &fakeConnector{id: "yahoo", bars: goodBars(testNow.Add(-24*time.Hour), 2)}
	m := buildManager(t, store, DefaultPolicies(), primary)

	if _, err := m.GetMarketData(context.Background(), "AAPL", models.AssetEquity, "1d", 30*24*time.Hour, false); err == nil {
		t.Fatalf("expected error when bar store is unavailable")
	}
}

func TestForceRefreshBypassesCache(t *testing.T) {
	store := newMemBarStore()
	fresh := goodBars(testNow.Add(-24*time.Hour), 1)
	fresh[0].Timestamp = testNow.Add(-time.Minute)
	fresh[0].Ticker = "AAPL"
	fresh[0].Interval = "1d"
	fresh[0].Source = "yahoo"
	if _, err := store.Upsert(context.Background(), fresh); err != nil {
		t.Fatalf("seed: %v", err)
	}

	primary := &fakeConnector{id: "yahoo", bars: goodBars(testNow.Add(-10*24*time.Hour), 10)}
	m := buildManager(t, store, DefaultPolicies(), primary)

	if _, err := m.GetMarketData(context.Background(), "AAPL", models.AssetEquity, "1d", 30*24*time.Hour, true); err != nil {
		t.Fatalf("GetMarketData: %v", err)
	}
	if primary.calls.Load() != 1 {
		t.Fatalf("force refresh should hit the source, calls = %d", primary.calls.Load())
	}
}

func TestMalformedBarsDropped(t *testing.T) {
	store := newMemBarStore()
	bars := goodBars(testNow.Add(-3*24*time.Hour), 3)
	bars[1].High = bars[1].Low - 10 // violates high >= low
	primary := &fakeConnector{id: "yahoo", bars: bars}
	m := buildManager(t, store, DefaultPolicies(), primary)

	got, err := m.GetMarketData(context.Background(), "AAPL", models.AssetEquity, "1d", 30*24*time.Hour, false)
	if err != nil {
		t.Fatalf("GetMarketData: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d bars, want 2 after dropping the malformed one", len(got))
	}
}

func TestConcurrentMissesCollapse(t *testing.T) {
	store := newMemBarStore()
	bars := goodBars(testNow.Add(-10*24*time.Hour), 10)
	bars[len(bars)-1].Timestamp = testNow.Add(-time.Minute)
	primary := &fakeConnector{id: "yahoo", bars: bars, delay: 50 * time.Millisecond}
	m := buildManager(t, store, DefaultPolicies(), primary)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.GetMarketData(context.Background(), "AAPL", models.AssetEquity, "1d", 30*24*time.Hour, false); err != nil {
				t.Errorf("GetMarketData: %v", err)
			}
		}()
	}
	wg.Wait()
	if primary.calls.Load() != 1 {
		t.Fatalf("concurrent misses should collapse to one fetch, got %d", primary.calls.Load())
	}

	// lock entries are released with their last holder
	m.mu.Lock()
	held := len(m.inflight)
	m.mu.Unlock()
	if held != 0 {
		t.Fatalf("inflight lock map holds %d entries after all calls returned", held)
	}
}

func TestTTLPolicyCryptoAlwaysTrading(t *testing.T) {
	policies := DefaultPolicies()
	cal := NewWindowCalendar()
	weekend := time.Date(2025, 6, 7, 3, 0, 0, 0, time.UTC) // Saturday
	if got := policies.TTL(models.AssetCrypto, weekend, cal); got != 2*time.Minute {
		t.Fatalf("crypto weekend TTL = %v, want trading-hours 2m", got)
	}
	if got := policies.TTL(models.AssetEquity, weekend, cal); got != 24*time.Hour {
		t.Fatalf("equity weekend TTL = %v, want off-hours 24h", got)
	}
	monday := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	if got := policies.TTL(models.AssetEquity, monday, cal); got != 15*time.Minute {
		t.Fatalf("equity trading-hours TTL = %v, want 15m", got)
	}
}

func TestWindowCalendar(t *testing.T) {
	cal := NewWindowCalendar()
	cases := []struct {
		t    time.Time
		want bool
	}{
		{time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC), true},  // Monday 10:00
		{time.Date(2025, 6, 2, 8, 59, 0, 0, time.UTC), false}, // Monday before open
		{time.Date(2025, 6, 2, 17, 30, 0, 0, time.UTC), true}, // Monday 17:30, close inclusive
		{time.Date(2025, 6, 2, 18, 0, 0, 0, time.UTC), false}, // Monday after close
		{time.Date(2025, 6, 7, 12, 0, 0, 0, time.UTC), false}, // Saturday
	}
	for _, c := range cases {
		if got := cal.IsTradingTime(c.t); got != c.want {
			t.Fatalf("IsTradingTime(%v) = %v, want %v", c.t, got, c.want)
		}
	}
}

func TestUnknownSourceSkipped(t *testing.T) {
	store := newMemBarStore()
	fallback := &fakeConnector{id: "binance", bars: goodBars(testNow.Add(-5*24*time.Hour), 5)}
	policies := PolicySet{models.AssetEquity: {
		TradingHoursTTL: 15 * time.Minute, OffHoursTTL: 24 * time.Hour,
		PrimarySource: "nonexistent", FallbackSources: []string{"binance"},
	}}
	m := buildManager(t, store, policies, fallback)

	bars, err := m.GetMarketData(context.Background(), "AAPL", models.AssetEquity, "1d", 30*24*time.Hour, false)
	if err != nil {
		t.Fatalf("GetMarketData: %v", err)
	}
	if len(bars) == 0 || bars[0].Source != "binance" {
		t.Fatalf("expected fallback to serve when primary is unknown, got %v", bars)
	}
}
