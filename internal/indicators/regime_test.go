package indicators

import (
	"math"
	"testing"

	"QuantPull/internal/domain/models"
)

func TestVolatilityRegimeInsufficientHistory(t *testing.T) {
	regime, pct := DetectVolatilityRegime([]float64{0.01, -0.02}, 20)
	if regime != models.VolNormal || pct != 50.0 {
		t.Fatalf("got (%v, %v), want (normal, 50)", regime, pct)
	}
}

func TestVolatilityRegimeCalmAfterStorm(t *testing.T) {
	// 50 noisy returns followed by 30 quiet ones: the trailing window sits
	// at the bottom of the rolling-vol distribution.
	returns := make([]float64, 80)
	for i := 0; i < 50; i++ {
		returns[i] = 0.05
		if i%2 == 1 {
			returns[i] = -0.05
		}
	}
	for i := 50; i < 80; i++ {
		returns[i] = 0.001
		if i%2 == 1 {
			returns[i] = -0.001
		}
	}
	regime, pct := DetectVolatilityRegime(returns, 20)
	if regime != models.VolLow {
		t.Fatalf("regime = %v (pct %v), want low", regime, pct)
	}
	if pct <= 0 || pct > 25 {
		t.Fatalf("percentile = %v, want in (0, 25]", pct)
	}
}

func TestVolatilityRegimeStormAfterCalm(t *testing.T) {
	returns := make([]float64, 80)
	for i := 0; i < 50; i++ {
		returns[i] = 0.001
		if i%2 == 1 {
			returns[i] = -0.001
		}
	}
	for i := 50; i < 80; i++ {
		returns[i] = 0.05
		if i%2 == 1 {
			returns[i] = -0.05
		}
	}
	regime, pct := DetectVolatilityRegime(returns, 20)
	if regime != models.VolExtreme {
		t.Fatalf("regime = %v (pct %v), want extreme", regime, pct)
	}
}

func TestTrendRegimeStrongUptrend(t *testing.T) {
	regime, strength := DetectTrendRegime(
		[]float64{100, 110},
		[]float64{105},
		[]float64{95},
	)
	if regime != models.TrendStrongUp {
		t.Fatalf("regime = %v, want strong_uptrend", regime)
	}
	if strength != 1 {
		t.Fatalf("strength = %v, want 1 (capped)", strength)
	}
}

func TestTrendRegimeWeakUptrend(t *testing.T) {
	// spread = 3%, strength = 0.3
	regime, strength := DetectTrendRegime(
		[]float64{100, 104},
		[]float64{103},
		[]float64{100},
	)
	if regime != models.TrendUp {
		t.Fatalf("regime = %v, want uptrend", regime)
	}
	if !almostEqual(strength, 0.3, 1e-9) {
		t.Fatalf("strength = %v, want 0.3", strength)
	}
}

func TestTrendRegimeStrongDowntrend(t *testing.T) {
	regime, strength := DetectTrendRegime(
		[]float64{100, 90},
		[]float64{94},
		[]float64{100},
	)
	if regime != models.TrendStrongDown {
		t.Fatalf("regime = %v, want strong_downtrend", regime)
	}
	if !almostEqual(strength, 0.6, 1e-9) {
		t.Fatalf("strength = %v, want 0.6", strength)
	}
}

func TestTrendRegimeUndefinedEMA(t *testing.T) {
	regime, strength := DetectTrendRegime(
		[]float64{100, 101},
		[]float64{math.NaN()},
		[]float64{math.NaN()},
	)
	if regime != models.TrendSideways || strength != 0 {
		t.Fatalf("got (%v, %v), want (sideways, 0)", regime, strength)
	}
}

func TestTrendRegimeSmallSpreadIsSideways(t *testing.T) {
	// spread = 1%, under the 2% threshold
	regime, _ := DetectTrendRegime(
		[]float64{100, 102},
		[]float64{101},
		[]float64{100},
	)
	if regime != models.TrendSideways {
		t.Fatalf("regime = %v, want sideways", regime)
	}
}
