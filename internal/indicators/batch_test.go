package indicators

import (
	"math"
	"testing"
)

func almostEqual(a, b, tol float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return false
	}
	diff := math.Abs(a - b)
	if diff <= tol {
		return true
	}
	return diff <= tol*math.Max(math.Abs(a), math.Abs(b))
}

func TestSMAWarmupAndValues(t *testing.T) {
	prices := []float64{1, 2, 3, 4, 5}
	out := SMA(prices, 3)
	if !math.IsNaN(out[0]) || !math.IsNaN(out[1]) {
		t.Fatalf("expected NaN during warm-up, got %v %v", out[0], out[1])
	}
	want := []float64{2, 3, 4}
	for i, w := range want {
		if !almostEqual(out[i+2], w, 1e-12) {
			t.Fatalf("sma[%d] = %v, want %v", i+2, out[i+2], w)
		}
	}
}

func TestEMASeedAndRecurrence(t *testing.T) {
	prices := []float64{10, 11, 12, 13}
	out := EMA(prices, 2)
	if !math.IsNaN(out[0]) {
		t.Fatalf("expected NaN at index 0, got %v", out[0])
	}
	// alpha = 2/3, seeded from prices[0]
	alpha := 2.0 / 3.0
	v := 10.0
	for i := 1; i < len(prices); i++ {
		v = alpha*prices[i] + (1-alpha)*v
		if !almostEqual(out[i], v, 1e-12) {
			t.Fatalf("ema[%d] = %v, want %v", i, out[i], v)
		}
	}
}

func TestEMAShortInput(t *testing.T) {
	out := EMA([]float64{1, 2}, 5)
	for i, v := range out {
		if !math.IsNaN(v) {
			t.Fatalf("expected all NaN for short input, got %v at %d", v, i)
		}
	}
}

func TestRSIBounds(t *testing.T) {
	prices := make([]float64, 120)
	for i := range prices {
		prices[i] = 100 + 10*math.Sin(float64(i)*0.7) + float64(i%5)
	}
	out := RSI(prices, 14)
	for i, v := range out {
		if math.IsNaN(v) {
			if i >= 14 {
				t.Fatalf("unexpected NaN at %d", i)
			}
			continue
		}
		if v < 0 || v > 100 {
			t.Fatalf("rsi[%d] = %v out of [0,100]", i, v)
		}
	}
}

func TestRSIAllGainsIs100(t *testing.T) {
	prices := make([]float64, 20)
	for i := range prices {
		prices[i] = 100 + float64(i)
	}
	out := RSI(prices, 14)
	for i := 14; i < len(out); i++ {
		if out[i] != 100 {
			t.Fatalf("rsi[%d] = %v, want exactly 100 on no-loss series", i, out[i])
		}
	}
}

func TestMACDHistogramConsistency(t *testing.T) {
	prices := make([]float64, 80)
	for i := range prices {
		prices[i] = 50 + float64(i)*0.3 + 3*math.Sin(float64(i)*0.4)
	}
	line, signal, hist := MACD(prices, 12, 26, 9)
	defined := 0
	for i := range prices {
		if math.IsNaN(hist[i]) {
			continue
		}
		defined++
		if !almostEqual(hist[i], line[i]-signal[i], 1e-12) {
			t.Fatalf("histogram[%d] = %v, want %v", i, hist[i], line[i]-signal[i])
		}
	}
	if defined == 0 {
		t.Fatalf("expected defined MACD values for 80 bars")
	}
	// warm-up: signal line undefined before slow+signal-2
	if !math.IsNaN(signal[32]) {
		t.Fatalf("signal[32] should be NaN, got %v", signal[32])
	}
	if math.IsNaN(signal[33]) {
		t.Fatalf("signal[33] should be defined")
	}
}

func TestBollingerConstantSeries(t *testing.T) {
	prices := make([]float64, 30)
	for i := range prices {
		prices[i] = 42
	}
	upper, middle, lower := BollingerBands(prices, 20, 2.0)
	for i := 19; i < len(prices); i++ {
		if !almostEqual(upper[i], 42, 1e-12) || !almostEqual(middle[i], 42, 1e-12) || !almostEqual(lower[i], 42, 1e-12) {
			t.Fatalf("bands at %d = (%v, %v, %v), want all 42", i, upper[i], middle[i], lower[i])
		}
	}
}

func TestATRTrueRange(t *testing.T) {
	high := []float64{12, 13, 15}
	low := []float64{10, 11, 12}
	close := []float64{11, 12, 14}
	out := ATR(high, low, close, 2)
	// tr = [2, 2, 3]; ema(period 2, alpha 2/3): 2, 2, 8/3
	if !math.IsNaN(out[0]) {
		t.Fatalf("atr[0] should be NaN, got %v", out[0])
	}
	if !almostEqual(out[1], 2, 1e-12) {
		t.Fatalf("atr[1] = %v, want 2", out[1])
	}
	if !almostEqual(out[2], 8.0/3.0, 1e-12) {
		t.Fatalf("atr[2] = %v, want %v", out[2], 8.0/3.0)
	}
}

func TestVWAPSingleBar(t *testing.T) {
	out := VWAP([]float64{12}, []float64{10}, []float64{11}, []float64{100})
	if !almostEqual(out[0], 11, 1e-12) {
		t.Fatalf("vwap[0] = %v, want 11", out[0])
	}
}

func TestOBVDirection(t *testing.T) {
	close := []float64{10, 11, 11, 9}
	volume := []float64{100, 200, 300, 400}
	out := OBV(close, volume)
	want := []float64{0, 200, 200, -200}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("obv[%d] = %v, want %v", i, out[i], want[i])
		}
	}
}

func TestLogReturnsLength(t *testing.T) {
	rets := LogReturns([]float64{100, 110, 105})
	if len(rets) != 2 {
		t.Fatalf("expected 2 returns, got %d", len(rets))
	}
	if !almostEqual(rets[0], math.Log(1.1), 1e-12) {
		t.Fatalf("rets[0] = %v", rets[0])
	}
}

func TestBatchDeterminism(t *testing.T) {
	prices := make([]float64, 60)
	for i := range prices {
		prices[i] = 100 + 5*math.Sin(float64(i)*0.3)
	}
	a := EMA(prices, 20)
	b := EMA(prices, 20)
	for i := range a {
		if math.IsNaN(a[i]) != math.IsNaN(b[i]) {
			t.Fatalf("determinism mismatch at %d", i)
		}
		if !math.IsNaN(a[i]) && a[i] != b[i] {
			t.Fatalf("ema not deterministic at %d: %v vs %v", i, a[i], b[i])
		}
	}
}
