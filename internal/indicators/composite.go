package indicators

import (
	"math"

	"QuantPull/internal/domain/models"
)

// Default component weights for the composite score.
const (
	WeightRSI  = 0.25
	WeightMACD = 0.35
	WeightEMA  = 0.40
)

// RSIScore maps an RSI value to a directional score: oversold readings are
// bullish, overbought bearish.
func RSIScore(rsi float64) (float64, string) {
	switch {
	case rsi < 30:
		return 0.8, "oversold"
	case rsi < 40:
		return 0.4, "near_oversold"
	case rsi > 70:
		return -0.8, "overbought"
	case rsi > 60:
		return -0.4, "near_overbought"
	default:
		return 0, "neutral"
	}
}

// MACDScore maps a MACD reading to a directional score. A crossover where
// the histogram just flipped sign this bar scores higher ("fresh").
// prevHistogram may be NaN when unknown.
func MACDScore(line, signal, histogram, prevHistogram float64) (float64, string) {
	switch {
	case line > signal && histogram > 0:
		if !math.IsNaN(prevHistogram) && prevHistogram <= 0 {
			return 0.9, "fresh_bullish_crossover"
		}
		return 0.6, "bullish_crossover"
	case line < signal && histogram < 0:
		if !math.IsNaN(prevHistogram) && prevHistogram >= 0 {
			return -0.9, "fresh_bearish_crossover"
		}
		return -0.6, "bearish_crossover"
	default:
		return 0, "neutral"
	}
}

// EMAScore maps the price position relative to the 20/50 EMAs to a
// directional score.
func EMAScore(price, ema20, ema50 float64) (float64, string) {
	switch {
	case price > ema20 && ema20 > ema50:
		return 0.7, "uptrend"
	case price < ema20 && ema20 < ema50:
		return -0.7, "downtrend"
	case price > ema20:
		return 0.3, "above_ema20"
	case price < ema20:
		return -0.3, "below_ema20"
	default:
		return 0, "neutral"
	}
}

// CompositeScore blends the available indicator scores into one signal.
// Missing indicators (NaN/nil) are excluded from both the numerator and the
// denominator; confidence is the mean absolute score of the contributing
// components. Identical inputs always produce the identical result.
func CompositeScore(price, rsi float64, macd *models.MACDValue, prevHistogram, ema20, ema50 float64) models.CompositeScore {
	components := make(map[string]models.ScoreComponent)
	var totalScore, totalWeight, confidenceSum float64
	contributing := 0

	if !math.IsNaN(rsi) {
		score, reason := RSIScore(rsi)
		components["rsi"] = models.ScoreComponent{
			Score:  score,
			Reason: reason,
			Values: map[string]float64{"rsi": rsi},
		}
		totalScore += score * WeightRSI
		totalWeight += WeightRSI
		confidenceSum += math.Abs(score)
		contributing++
	}

	if macd != nil {
		score, reason := MACDScore(macd.Line, macd.Signal, macd.Histogram, prevHistogram)
		components["macd"] = models.ScoreComponent{
			Score:  score,
			Reason: reason,
			Values: map[string]float64{
				"line":      macd.Line,
				"signal":    macd.Signal,
				"histogram": macd.Histogram,
			},
		}
		totalScore += score * WeightMACD
		totalWeight += WeightMACD
		confidenceSum += math.Abs(score)
		contributing++
	}

	if !math.IsNaN(ema20) && !math.IsNaN(ema50) {
		score, reason := EMAScore(price, ema20, ema50)
		components["ema"] = models.ScoreComponent{
			Score:  score,
			Reason: reason,
			Values: map[string]float64{"ema_20": ema20, "ema_50": ema50},
		}
		totalScore += score * WeightEMA
		totalWeight += WeightEMA
		confidenceSum += math.Abs(score)
		contributing++
	}

	var score float64
	if totalWeight > 0 {
		score = totalScore / totalWeight
	}
	var confidence float64
	if contributing > 0 {
		confidence = confidenceSum / float64(contributing)
	}

	return models.CompositeScore{
		Signal:     signalForScore(score),
		Score:      score,
		Confidence: confidence,
		Components: components,
	}
}

func signalForScore(score float64) models.Signal {
	switch {
	case score >= 0.6:
		return models.SignalStrongBuy
	case score >= 0.2:
		return models.SignalBuy
	case score <= -0.6:
		return models.SignalStrongSell
	case score <= -0.2:
		return models.SignalSell
	default:
		return models.SignalHold
	}
}
