package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestYahooParseChart(t *testing.T) {
	const body = `{"chart":{"result":[{"timestamp":[1717286400,1717372800,1717459200],
		"indicators":{"quote":[{"open":[100,101,null],"high":[102,103,104],
		"low":[99,100,101],"close":[101,102,103],"volume":[1000,2000,3000]}],
		"adjclose":[{"adjclose":[100.5,101.5,102.5]}]}}],"error":null}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("interval") != "1d" {
			t.Errorf("interval query = %q", r.URL.Query().Get("interval"))
		}
		w.Write([]byte(body))
	}))
	defer srv.Close()

	c := NewYahooConnector(nil, time.Second, WithYahooBaseURL(srv.URL))
	bars, err := c.FetchHistorical(context.Background(), "AAPL", "1d", 30*24*time.Hour)
	if err != nil {
		t.Fatalf("FetchHistorical: %v", err)
	}
	// the row with a null open is dropped
	if len(bars) != 2 {
		t.Fatalf("got %d bars, want 2", len(bars))
	}
	b := bars[0]
	if b.Ticker != "AAPL" || b.Source != "yahoo" || b.Close != 101 || b.AdjClose != 100.5 {
		t.Fatalf("unexpected first bar: %+v", b)
	}
	if !b.Timestamp.Equal(time.Unix(1717286400, 0).UTC()) {
		t.Fatalf("timestamp = %v", b.Timestamp)
	}
}

func TestYahooChartError(t *testing.T) {
	const body = `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	c := NewYahooConnector(nil, time.Second, WithYahooBaseURL(srv.URL))
	if _, err := c.FetchHistorical(context.Background(), "NOPE", "1d", 24*time.Hour); err == nil {
		t.Fatalf("expected chart error")
	}
}

func TestYahooIntervalMapping(t *testing.T) {
	if got := yahooInterval("1h"); got != "60m" {
		t.Fatalf("1h -> %q, want 60m", got)
	}
	if got := yahooInterval("1d"); got != "1d" {
		t.Fatalf("1d -> %q", got)
	}
	if got := yahooRange(30 * 24 * time.Hour); got != "30d" {
		t.Fatalf("30d lookback -> %q", got)
	}
	if got := yahooRange(1000 * 24 * time.Hour); got != "max" {
		t.Fatalf("long lookback -> %q, want max", got)
	}
}

func TestBinanceParseKlines(t *testing.T) {
	const body = `[
		[1717286400000,"70000.1","70500.2","69800.3","70200.4","123.45",1717372799999],
		[1717372800000,"70200.4","71000.0","70000.0","70900.9","234.56",1717459199999],
		[1717459200000,"bad","71000.0","70000.0","70900.9","234.56",1717545599999]
	]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbol") != "BTCUSDT" {
			t.Errorf("symbol query = %q", r.URL.Query().Get("symbol"))
		}
		w.Write([]byte(body))
	}))
	defer srv.Close()

	c := NewBinanceConnector(nil, time.Second, WithBinanceBaseURL(srv.URL))
	bars, err := c.FetchHistorical(context.Background(), "BTCUSDT", "1d", 7*24*time.Hour)
	if err != nil {
		t.Fatalf("FetchHistorical: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("got %d bars, want 2 (malformed row dropped)", len(bars))
	}
	b := bars[0]
	if b.Open != 70000.1 || b.High != 70500.2 || b.Low != 69800.3 || b.Close != 70200.4 || b.Volume != 123.45 {
		t.Fatalf("unexpected bar: %+v", b)
	}
	if b.Source != "binance" {
		t.Fatalf("source = %q", b.Source)
	}
}

func TestFredParseObservations(t *testing.T) {
	const body = `{"observations":[
		{"date":"2025-05-01","value":"3.2"},
		{"date":"2025-06-01","value":"."},
		{"date":"2025-07-01","value":"3.4"}
	]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("series_id") != "CPI" {
			t.Errorf("series_id query = %q", r.URL.Query().Get("series_id"))
		}
		if r.URL.Query().Get("api_key") != "test-key" {
			t.Errorf("api_key query = %q", r.URL.Query().Get("api_key"))
		}
		w.Write([]byte(body))
	}))
	defer srv.Close()

	c := NewFredConnector(nil, "test-key", time.Second, WithFredBaseURL(srv.URL))
	bars, err := c.FetchHistorical(context.Background(), "CPI", "1d", 365*24*time.Hour)
	if err != nil {
		t.Fatalf("FetchHistorical: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("got %d bars, want 2 (missing observation skipped)", len(bars))
	}
	if bars[0].Close != 3.2 || bars[0].Open != 3.2 || bars[0].High != 3.2 {
		t.Fatalf("close-only mapping broken: %+v", bars[0])
	}
	if bars[1].Close != 3.4 {
		t.Fatalf("second bar close = %v", bars[1].Close)
	}
}

func TestBuildRegistry(t *testing.T) {
	y := NewYahooConnector(nil, time.Second)
	b := NewBinanceConnector(nil, time.Second)
	reg := BuildRegistry(y, b, nil)
	if len(reg) != 2 {
		t.Fatalf("registry size = %d, want 2", len(reg))
	}
	if reg["yahoo"] != y || reg["binance"] != b {
		t.Fatalf("registry mapping wrong: %v", reg)
	}
}
