package indicators

import (
	"math"
	"testing"
)

func testPrices(n int) []float64 {
	prices := make([]float64, n)
	for i := range prices {
		prices[i] = 100 + float64(i)*0.2 + 8*math.Sin(float64(i)*0.35) + 2*math.Cos(float64(i)*1.1)
	}
	return prices
}

// The incremental state machines must agree with the batch functions at
// every warmed-up index.
func TestIncrementalMatchesBatchEMA(t *testing.T) {
	prices := testPrices(120)
	for _, period := range []int{20, 50} {
		batch := EMA(prices, period)
		state := NewEMAState(period)
		for i, p := range prices {
			got := state.Update(p)
			if math.IsNaN(batch[i]) != math.IsNaN(got) {
				t.Fatalf("period %d index %d: NaN mismatch batch=%v incremental=%v", period, i, batch[i], got)
			}
			if !math.IsNaN(got) && !almostEqual(got, batch[i], 1e-9) {
				t.Fatalf("period %d index %d: batch=%v incremental=%v", period, i, batch[i], got)
			}
		}
	}
}

func TestIncrementalMatchesBatchRSI(t *testing.T) {
	prices := testPrices(120)
	batch := RSI(prices, 14)
	state := NewRSIState(14)
	for i, p := range prices {
		got := state.Update(p)
		if math.IsNaN(batch[i]) != math.IsNaN(got) {
			t.Fatalf("index %d: NaN mismatch batch=%v incremental=%v", i, batch[i], got)
		}
		if !math.IsNaN(got) && !almostEqual(got, batch[i], 1e-9) {
			t.Fatalf("index %d: batch=%v incremental=%v", i, batch[i], got)
		}
	}
}

func TestIncrementalMatchesBatchMACD(t *testing.T) {
	prices := testPrices(120)
	line, signal, hist := MACD(prices, 12, 26, 9)
	state := NewMACDState(12, 26, 9)
	for i, p := range prices {
		got := state.Update(p)
		if (got == nil) != math.IsNaN(signal[i]) {
			t.Fatalf("index %d: defined mismatch batch signal=%v incremental=%v", i, signal[i], got)
		}
		if got == nil {
			continue
		}
		if !almostEqual(got.Line, line[i], 1e-9) {
			t.Fatalf("index %d line: batch=%v incremental=%v", i, line[i], got.Line)
		}
		if !almostEqual(got.Signal, signal[i], 1e-9) {
			t.Fatalf("index %d signal: batch=%v incremental=%v", i, signal[i], got.Signal)
		}
		if !almostEqual(got.Histogram, hist[i], 1e-9) {
			t.Fatalf("index %d histogram: batch=%v incremental=%v", i, hist[i], got.Histogram)
		}
	}
}

func TestRSIStateNoLossSeries(t *testing.T) {
	state := NewRSIState(14)
	var last float64
	for i := 0; i < 20; i++ {
		last = state.Update(100 + float64(i))
	}
	if last != 100 {
		t.Fatalf("incremental RSI on no-loss series = %v, want exactly 100", last)
	}
}

func TestMACDStatePrevHistogram(t *testing.T) {
	state := NewMACDState(3, 5, 2)
	if !math.IsNaN(state.PrevHistogram()) {
		t.Fatalf("PrevHistogram should start NaN")
	}
	prices := testPrices(30)
	var lastHist float64 = math.NaN()
	for _, p := range prices {
		prevBefore := lastHist
		v := state.Update(p)
		if v == nil {
			continue
		}
		got := state.PrevHistogram()
		if math.IsNaN(prevBefore) {
			if !math.IsNaN(got) {
				t.Fatalf("PrevHistogram = %v before a second defined update", got)
			}
		} else if got != prevBefore {
			t.Fatalf("PrevHistogram = %v, want %v", got, prevBefore)
		}
		lastHist = v.Histogram
	}
}

func TestIndicatorStateWarmup(t *testing.T) {
	state := NewIndicatorState()
	var snap = state.Update(100)
	if !math.IsNaN(snap.EMA20) || !math.IsNaN(snap.EMA50) || !math.IsNaN(snap.RSI14) || snap.MACD != nil {
		t.Fatalf("everything should be undefined after one update: %+v", snap)
	}
	prices := testPrices(120)
	for _, p := range prices {
		snap = state.Update(p)
	}
	if math.IsNaN(snap.EMA20) || math.IsNaN(snap.EMA50) || math.IsNaN(snap.RSI14) || snap.MACD == nil {
		t.Fatalf("everything should be defined after 121 updates: %+v", snap)
	}
}
