package models

import "time"

type VolatilityRegime string

const (
	VolLow     VolatilityRegime = "low"
	VolNormal  VolatilityRegime = "normal"
	VolHigh    VolatilityRegime = "high"
	VolExtreme VolatilityRegime = "extreme"
)

type TrendRegime string

const (
	TrendStrongUp   TrendRegime = "strong_uptrend"
	TrendUp         TrendRegime = "uptrend"
	TrendSideways   TrendRegime = "sideways"
	TrendDown       TrendRegime = "downtrend"
	TrendStrongDown TrendRegime = "strong_downtrend"
)

// RegimeState is the current market regime. Recomputed on every analysis
// call, never persisted.
type RegimeState struct {
	Volatility           VolatilityRegime `json:"volatility"`
	Trend                TrendRegime      `json:"trend"`
	VolatilityPercentile float64          `json:"volatility_percentile"` // 0-100
	TrendStrength        float64          `json:"trend_strength"`        // 0-1
}

type Signal string

const (
	SignalStrongBuy  Signal = "STRONG_BUY"
	SignalBuy        Signal = "BUY"
	SignalHold       Signal = "HOLD"
	SignalSell       Signal = "SELL"
	SignalStrongSell Signal = "STRONG_SELL"
)

// ScoreComponent is one sub-indicator's contribution to the composite.
type ScoreComponent struct {
	Score  float64            `json:"score"` // -1..1
	Reason string             `json:"reason"`
	Values map[string]float64 `json:"values,omitempty"`
}

// CompositeScore is the weighted blend of indicator signals. Purely a
// function of the current indicator values.
type CompositeScore struct {
	Signal     Signal                    `json:"signal"`
	Score      float64                   `json:"score"`      // -1..1
	Confidence float64                   `json:"confidence"` // 0..1
	Components map[string]ScoreComponent `json:"components"`
}

// MACDValue groups the three MACD outputs for one bar.
type MACDValue struct {
	Line      float64 `json:"line"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// TechnicalAnalysis is the full batch analysis result for a ticker.
// Indicator fields are NaN while inside their warm-up period; JSON encoding
// uses pointers so warm-up values serialize as null.
type TechnicalAnalysis struct {
	Ticker    string    `json:"ticker"`
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`

	EMA20         float64 `json:"-"`
	EMA50         float64 `json:"-"`
	RSI14         float64 `json:"-"`
	MACDLine      float64 `json:"-"`
	MACDSignal    float64 `json:"-"`
	MACDHistogram float64 `json:"-"`
	BBUpper       float64 `json:"-"`
	BBMiddle      float64 `json:"-"`
	BBLower       float64 `json:"-"`
	ATR14         float64 `json:"-"`

	Regime    RegimeState    `json:"regime"`
	Composite CompositeScore `json:"composite"`
}

// IndicatorSnapshot is one incremental update's output. Fields are NaN
// until the corresponding indicator's warm-up elapses.
type IndicatorSnapshot struct {
	Ticker string     `json:"ticker"`
	EMA20  float64    `json:"-"`
	EMA50  float64    `json:"-"`
	RSI14  float64    `json:"-"`
	MACD   *MACDValue `json:"macd,omitempty"`
}
