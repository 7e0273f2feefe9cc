package usecase

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"QuantPull/internal/domain/models"
	domsvc "QuantPull/internal/domain/service"
	"QuantPull/internal/marketstate"
	"QuantPull/internal/registry"
	applogger "QuantPull/pkg/logger"
)

// noopStore always misses so every GetBars call walks the source chain.
type noopStore struct{}

func (noopStore) Init(context.Context) error   { return nil }
func (noopStore) Health(context.Context) error { return nil }
func (noopStore) Close() error                 { return nil }

func (noopStore) Upsert(_ context.Context, bars []models.Bar) (int, error) { return len(bars), nil }

func (noopStore) Query(context.Context, string, string, time.Time, time.Time) ([]models.Bar, error) {
	return nil, nil
}

type classConnector struct {
	id    string
	calls atomic.Int32
}

func (c *classConnector) ID() string { return c.id }

func (c *classConnector) FetchHistorical(_ context.Context, ticker, interval string, _ time.Duration) ([]models.Bar, error) {
	c.calls.Add(1)
	return []models.Bar{{
		Timestamp: time.Now(),
		Ticker:    ticker,
		Interval:  interval,
		Open:      1, High: 2, Low: 0.5, Close: 1, Volume: 1,
		Source: c.id,
	}}, nil
}

// classTestMarket gives equity and crypto disjoint source chains so a
// test can tell which policy served the call.
func classTestMarket(t *testing.T) (*MarketData, *classConnector, *classConnector) {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	yahoo := &classConnector{id: "yahoo"}
	binance := &classConnector{id: "binance"}
	policies := marketstate.PolicySet{
		models.AssetEquity: {TradingHoursTTL: time.Minute, OffHoursTTL: time.Minute, PrimarySource: "yahoo"},
		models.AssetCrypto: {TradingHoursTTL: time.Minute, OffHoursTTL: time.Minute, PrimarySource: "binance"},
	}
	m := marketstate.NewManager(noopStore{}, registry.New(nil, l),
		map[string]domsvc.SourceConnector{"yahoo": yahoo, "binance": binance},
		policies, marketstate.NewWindowCalendar(), l,
		marketstate.WithSourceRateLimit(1000, 1000),
	)
	return NewMarketData(m), yahoo, binance
}

func TestGetBarsInfersAssetClass(t *testing.T) {
	market, yahoo, binance := classTestMarket(t)

	bars, class, err := market.GetBars(context.Background(), "AAPL", "", "1d", 5, false)
	if err != nil {
		t.Fatalf("GetBars: %v", err)
	}
	if class != models.AssetEquity {
		t.Fatalf("class = %q, want equity", class)
	}
	if len(bars) != 1 || bars[0].Source != "yahoo" {
		t.Fatalf("bars = %+v, want one yahoo bar", bars)
	}
	if yahoo.calls.Load() != 1 || binance.calls.Load() != 0 {
		t.Fatalf("calls yahoo=%d binance=%d, want 1/0", yahoo.calls.Load(), binance.calls.Load())
	}
}

func TestGetBarsHonorsCallerAssetClass(t *testing.T) {
	market, yahoo, binance := classTestMarket(t)

	// AAPL would infer equity; the caller pins crypto
	bars, class, err := market.GetBars(context.Background(), "AAPL", "crypto", "1d", 5, false)
	if err != nil {
		t.Fatalf("GetBars: %v", err)
	}
	if class != models.AssetCrypto {
		t.Fatalf("class = %q, want crypto", class)
	}
	if len(bars) != 1 || bars[0].Source != "binance" {
		t.Fatalf("bars = %+v, want one binance bar", bars)
	}
	if binance.calls.Load() != 1 || yahoo.calls.Load() != 0 {
		t.Fatalf("calls binance=%d yahoo=%d, want 1/0", binance.calls.Load(), yahoo.calls.Load())
	}
}
