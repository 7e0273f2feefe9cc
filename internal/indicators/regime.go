package indicators

import (
	"math"

	"QuantPull/internal/domain/models"
)

// Volatility percentile thresholds: low <= 25th, normal <= 75th, high <= 95th.
const (
	volLowPercentile    = 25
	volNormalPercentile = 75
	volHighPercentile   = 95
)

const tradingDaysPerYear = 252

// DetectVolatilityRegime classifies volatility from log returns: the
// annualized rolling standard deviation over the trailing lookback window
// is percentile-ranked against the full historical distribution of the
// same rolling statistic. With fewer than lookback returns it reports
// normal at the 50th percentile.
func DetectVolatilityRegime(returns []float64, lookback int) (models.VolatilityRegime, float64) {
	if len(returns) < lookback || lookback <= 1 {
		return models.VolNormal, 50.0
	}

	rollingVols := make([]float64, 0, len(returns)-lookback+1)
	for i := lookback; i <= len(returns); i++ {
		rollingVols = append(rollingVols, annualizedVol(returns[i-lookback:i]))
	}
	currentVol := rollingVols[len(rollingVols)-1]

	below := 0
	for _, v := range rollingVols {
		if v <= currentVol {
			below++
		}
	}
	percentile := float64(below) / float64(len(rollingVols)) * 100

	switch {
	case percentile <= volLowPercentile:
		return models.VolLow, percentile
	case percentile <= volNormalPercentile:
		return models.VolNormal, percentile
	case percentile <= volHighPercentile:
		return models.VolHigh, percentile
	default:
		return models.VolExtreme, percentile
	}
}

func annualizedVol(returns []float64) float64 {
	n := float64(len(returns))
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / n
	var ss float64
	for _, r := range returns {
		d := r - mean
		ss += d * d
	}
	return math.Sqrt(ss/n) * math.Sqrt(tradingDaysPerYear) * 100
}

// DetectTrendRegime classifies trend from the latest price and EMA values.
// Strength is min(1, 10*|emaShort-emaLong|/emaLong). Undefined inputs
// default to sideways with zero strength.
func DetectTrendRegime(prices, emaShort, emaLong []float64) (models.TrendRegime, float64) {
	if len(prices) < 2 || len(emaShort) == 0 || len(emaLong) == 0 {
		return models.TrendSideways, 0
	}
	price := prices[len(prices)-1]
	short := emaShort[len(emaShort)-1]
	long := emaLong[len(emaLong)-1]
	if math.IsNaN(short) || math.IsNaN(long) || long == 0 {
		return models.TrendSideways, 0
	}

	spread := (short - long) / long
	strength := math.Min(1, math.Abs(spread)*10)

	switch {
	case price > short && short > long && spread > 0.02:
		if strength > 0.5 {
			return models.TrendStrongUp, strength
		}
		return models.TrendUp, strength
	case price < short && short < long && spread < -0.02:
		if strength > 0.5 {
			return models.TrendStrongDown, strength
		}
		return models.TrendDown, strength
	default:
		return models.TrendSideways, strength
	}
}
