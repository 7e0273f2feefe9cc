package usecase

import (
	"math"
	"testing"
	"time"

	"QuantPull/internal/domain/models"
)

func analysisBars(n int) []models.Bar {
	base := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, n)
	for i := range bars {
		price := 100 + 10*math.Sin(float64(i)/7) + float64(i)*0.05
		bars[i] = models.Bar{
			Timestamp: base.Add(time.Duration(i) * 24 * time.Hour),
			Ticker:    "AAPL",
			Interval:  "1d",
			Open:      price - 0.5,
			High:      price + 1,
			Low:       price - 1,
			Close:     price,
			Volume:    1000 + float64(i),
			AdjClose:  price,
			Source:    "yahoo",
		}
	}
	return bars
}

func TestAnalyzeBarsFullWarmup(t *testing.T) {
	bars := analysisBars(120)
	ta := AnalyzeBars(bars)

	if ta.Ticker != "AAPL" {
		t.Fatalf("ticker = %q", ta.Ticker)
	}
	if !ta.Timestamp.Equal(bars[119].Timestamp) {
		t.Fatalf("timestamp = %v, want last bar", ta.Timestamp)
	}
	if ta.Price != bars[119].Close {
		t.Fatalf("price = %v, want %v", ta.Price, bars[119].Close)
	}
	for name, v := range map[string]float64{
		"ema20": ta.EMA20, "ema50": ta.EMA50, "rsi14": ta.RSI14,
		"macd_line": ta.MACDLine, "macd_signal": ta.MACDSignal,
		"bb_upper": ta.BBUpper, "bb_middle": ta.BBMiddle, "bb_lower": ta.BBLower,
		"atr14": ta.ATR14,
	} {
		if math.IsNaN(v) {
			t.Errorf("%s is NaN after 120 bars", name)
		}
	}
	if ta.BBUpper <= ta.BBMiddle || ta.BBMiddle <= ta.BBLower {
		t.Fatalf("band ordering broken: %v %v %v", ta.BBUpper, ta.BBMiddle, ta.BBLower)
	}
	if ta.Regime.Volatility == "" || ta.Regime.Trend == "" {
		t.Fatalf("regime not populated: %+v", ta.Regime)
	}
	if len(ta.Composite.Components) == 0 {
		t.Fatalf("composite has no components")
	}
}

func TestAnalyzeBarsShortHistory(t *testing.T) {
	ta := AnalyzeBars(analysisBars(10))

	if !math.IsNaN(ta.EMA20) || !math.IsNaN(ta.RSI14) || !math.IsNaN(ta.ATR14) {
		t.Fatalf("indicators should be NaN inside warm-up: ema20=%v rsi=%v atr=%v",
			ta.EMA20, ta.RSI14, ta.ATR14)
	}
	if ta.Composite.Signal != models.SignalHold {
		t.Fatalf("signal = %v, want HOLD with no warm indicators", ta.Composite.Signal)
	}
	if len(ta.Composite.Components) != 0 {
		t.Fatalf("components = %v, want none", ta.Composite.Components)
	}
	if ta.Regime.Volatility != models.VolNormal {
		t.Fatalf("volatility = %v, want normal default", ta.Regime.Volatility)
	}
}

func TestUpdatePriceWarmup(t *testing.T) {
	q := NewQuant(nil, nil, nil)

	snap := q.UpdatePrice("AAPL", 100)
	if snap.Ticker != "AAPL" {
		t.Fatalf("ticker = %q", snap.Ticker)
	}
	if !math.IsNaN(snap.EMA20) || !math.IsNaN(snap.RSI14) || snap.MACD != nil {
		t.Fatalf("first update should be fully undefined: %+v", snap)
	}

	for i := 1; i < 121; i++ {
		snap = q.UpdatePrice("AAPL", 100+float64(i%5))
	}
	if math.IsNaN(snap.EMA20) || math.IsNaN(snap.EMA50) || math.IsNaN(snap.RSI14) {
		t.Fatalf("indicators undefined after 121 updates: %+v", snap)
	}
	if snap.MACD == nil {
		t.Fatalf("macd nil after 121 updates")
	}
}

func TestUpdatePriceIsolatedPerTicker(t *testing.T) {
	q := NewQuant(nil, nil, nil)

	for i := 0; i < 60; i++ {
		q.UpdatePrice("AAPL", 100+float64(i))
	}
	snap := q.UpdatePrice("MSFT", 300)
	if !math.IsNaN(snap.EMA20) {
		t.Fatalf("fresh ticker inherited state: %+v", snap)
	}

	tracked := q.TrackedTickers()
	if len(tracked) != 2 {
		t.Fatalf("tracked = %v, want 2 tickers", tracked)
	}
}

func TestEvictState(t *testing.T) {
	q := NewQuant(nil, nil, nil)

	for i := 0; i < 60; i++ {
		q.UpdatePrice("AAPL", 100+float64(i))
	}
	q.EvictState("AAPL")

	snap := q.UpdatePrice("AAPL", 100)
	if !math.IsNaN(snap.EMA20) {
		t.Fatalf("state survived eviction: %+v", snap)
	}
}

func TestUpdatePriceConcurrent(t *testing.T) {
	q := NewQuant(nil, nil, nil)
	done := make(chan struct{})

	for g := 0; g < 8; g++ {
		go func(g int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 50; i++ {
				q.UpdatePrice("AAPL", 100+float64(g+i))
			}
		}(g)
	}
	for g := 0; g < 8; g++ {
		<-done
	}

	snap := q.UpdatePrice("AAPL", 105)
	if math.IsNaN(snap.EMA50) {
		t.Fatalf("ema50 undefined after 401 updates")
	}
}
