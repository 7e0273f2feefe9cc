package indicators

import (
	"math"
	"reflect"
	"testing"

	"QuantPull/internal/domain/models"
)

// Zig-zag uptrend, ~+1/bar net: 100 -> 128 over 30 bars.
var uptrendPrices = []float64{
	100, 102, 101, 103, 105,
	104, 106, 108, 107, 109,
	111, 110, 112, 114, 113,
	115, 117, 116, 118, 120,
	119, 121, 123, 122, 124,
	126, 125, 127, 129, 128,
}

func TestCompositeDeterminism(t *testing.T) {
	macd := &models.MACDValue{Line: 1.4, Signal: 1.1, Histogram: 0.3}
	a := CompositeScore(128, 55, macd, 0.1, 120, 115)
	b := CompositeScore(128, 55, macd, 0.1, 120, 115)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("identical inputs gave different results:\n%+v\n%+v", a, b)
	}
}

func TestCompositeUptrendSignalsBuy(t *testing.T) {
	rsi := RSI(uptrendPrices, 14)
	ema20 := EMA(uptrendPrices, 20)
	lastRSI := rsi[len(rsi)-1]
	lastEMA20 := ema20[len(ema20)-1]
	price := uptrendPrices[len(uptrendPrices)-1]
	if math.IsNaN(lastRSI) || math.IsNaN(lastEMA20) {
		t.Fatalf("fixture too short to warm rsi/ema20")
	}
	if price <= lastEMA20 {
		t.Fatalf("fixture should close above ema20: price=%v ema20=%v", price, lastEMA20)
	}

	// ema50 below ema20 and a bullish MACD, consistent with the uptrend.
	ema50 := lastEMA20 - 4
	macd := &models.MACDValue{Line: 1.6, Signal: 1.2, Histogram: 0.4}

	result := CompositeScore(price, lastRSI, macd, 0.2, lastEMA20, ema50)
	if result.Signal != models.SignalBuy && result.Signal != models.SignalStrongBuy {
		t.Fatalf("signal = %v (score %v), want buy or strong_buy", result.Signal, result.Score)
	}
	if len(result.Components) != 3 {
		t.Fatalf("expected 3 contributing components, got %d", len(result.Components))
	}
}

func TestCompositeFreshCrossoverScoresHigher(t *testing.T) {
	macd := &models.MACDValue{Line: 1.0, Signal: 0.8, Histogram: 0.2}
	fresh := CompositeScore(100, math.NaN(), macd, -0.1, math.NaN(), math.NaN())
	stale := CompositeScore(100, math.NaN(), macd, 0.1, math.NaN(), math.NaN())
	if fresh.Components["macd"].Score != 0.9 {
		t.Fatalf("fresh crossover score = %v, want 0.9", fresh.Components["macd"].Score)
	}
	if stale.Components["macd"].Score != 0.6 {
		t.Fatalf("established crossover score = %v, want 0.6", stale.Components["macd"].Score)
	}
	if fresh.Score <= stale.Score {
		t.Fatalf("fresh crossover should outscore an established one: %v vs %v", fresh.Score, stale.Score)
	}
}

func TestCompositeMissingComponentsExcluded(t *testing.T) {
	// Only the EMA component is available: score is its full 0.7, not
	// diluted by absent indicators.
	result := CompositeScore(110, math.NaN(), nil, math.NaN(), 105, 100)
	if len(result.Components) != 1 {
		t.Fatalf("expected 1 component, got %d", len(result.Components))
	}
	if !almostEqual(result.Score, 0.7, 1e-12) {
		t.Fatalf("score = %v, want 0.7", result.Score)
	}
	if result.Signal != models.SignalStrongBuy {
		t.Fatalf("signal = %v, want strong_buy", result.Signal)
	}
	if !almostEqual(result.Confidence, 0.7, 1e-12) {
		t.Fatalf("confidence = %v, want 0.7", result.Confidence)
	}
}

func TestCompositeNoComponentsHolds(t *testing.T) {
	result := CompositeScore(100, math.NaN(), nil, math.NaN(), math.NaN(), math.NaN())
	if result.Signal != models.SignalHold || result.Score != 0 || result.Confidence != 0 {
		t.Fatalf("got %+v, want hold with zero score and confidence", result)
	}
}

func TestCompositeConfidenceIsMeanAbsScore(t *testing.T) {
	macd := &models.MACDValue{Line: 1.0, Signal: 0.8, Histogram: 0.2}
	// rsi 25 -> +0.8, macd -> +0.6, ema uptrend -> +0.7
	result := CompositeScore(110, 25, macd, 0.1, 105, 100)
	want := (0.8 + 0.6 + 0.7) / 3
	if !almostEqual(result.Confidence, want, 1e-12) {
		t.Fatalf("confidence = %v, want %v", result.Confidence, want)
	}
}

func TestSignalThresholds(t *testing.T) {
	cases := []struct {
		score float64
		want  models.Signal
	}{
		{0.6, models.SignalStrongBuy},
		{0.59, models.SignalBuy},
		{0.2, models.SignalBuy},
		{0.19, models.SignalHold},
		{-0.19, models.SignalHold},
		{-0.2, models.SignalSell},
		{-0.59, models.SignalSell},
		{-0.6, models.SignalStrongSell},
	}
	for _, c := range cases {
		if got := signalForScore(c.score); got != c.want {
			t.Fatalf("signalForScore(%v) = %v, want %v", c.score, got, c.want)
		}
	}
}
