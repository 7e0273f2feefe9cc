package models

import (
	"math"
	"time"
)

// Requests and responses for the market HTTP endpoints. Defined in domain for
// consistency and reuse; indicator values inside warm-up serialize as null.

type MarketDataRequest struct {
	Ticker       string `query:"ticker" json:"ticker" validate:"required"`
	AssetClass   string `query:"asset_class" json:"asset_class" validate:"omitempty,oneof=equity crypto forex macro fundamentals news"`
	Interval     string `query:"interval" json:"interval" default:"1d" validate:"oneof=1m 5m 1h 1d"`
	LookbackDays int    `query:"lookback_days" json:"lookback_days" default:"30" validate:"gte=1,lte=3650"`
	ForceRefresh bool   `query:"force_refresh" json:"force_refresh"`
}

type AnalyzeRequest struct {
	Ticker string    `json:"ticker" validate:"required"`
	Prices []float64 `json:"prices" validate:"required,min=2"`
	Highs  []float64 `json:"highs" validate:"omitempty"`
	Lows   []float64 `json:"lows" validate:"omitempty"`
}

type UpdatePriceRequest struct {
	Ticker string  `json:"ticker" validate:"required"`
	Price  float64 `json:"price" validate:"required,gt=0"`
}

type TiersRequest struct {
	Tier string `query:"tier" json:"tier" default:"hot" validate:"oneof=hot warm cold frozen"`
}

// AnalysisResponse mirrors TechnicalAnalysis with nullable indicator fields.
type AnalysisResponse struct {
	Ticker    string         `json:"ticker"`
	Timestamp string         `json:"timestamp"`
	Price     float64        `json:"price"`
	EMA20     *float64       `json:"ema_20"`
	EMA50     *float64       `json:"ema_50"`
	RSI14     *float64       `json:"rsi_14"`
	MACD      *MACDValue     `json:"macd"`
	BBUpper   *float64       `json:"bb_upper"`
	BBMiddle  *float64       `json:"bb_middle"`
	BBLower   *float64       `json:"bb_lower"`
	ATR14     *float64       `json:"atr_14"`
	Regime    RegimeState    `json:"regime"`
	Composite CompositeScore `json:"composite"`
}

// SnapshotResponse mirrors IndicatorSnapshot with nullable fields.
type SnapshotResponse struct {
	Ticker string     `json:"ticker"`
	EMA20  *float64   `json:"ema_20"`
	EMA50  *float64   `json:"ema_50"`
	RSI14  *float64   `json:"rsi_14"`
	MACD   *MACDValue `json:"macd"`
}

// Fptr converts a possibly-NaN value to a nullable pointer for JSON.
func Fptr(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

// ToResponse converts a TechnicalAnalysis into its transport shape.
func (a *TechnicalAnalysis) ToResponse() *AnalysisResponse {
	resp := &AnalysisResponse{
		Ticker:    a.Ticker,
		Timestamp: a.Timestamp.UTC().Format(time.RFC3339),
		Price:     a.Price,
		EMA20:     Fptr(a.EMA20),
		EMA50:     Fptr(a.EMA50),
		RSI14:     Fptr(a.RSI14),
		BBUpper:   Fptr(a.BBUpper),
		BBMiddle:  Fptr(a.BBMiddle),
		BBLower:   Fptr(a.BBLower),
		ATR14:     Fptr(a.ATR14),
		Regime:    a.Regime,
		Composite: a.Composite,
	}
	if !math.IsNaN(a.MACDLine) && !math.IsNaN(a.MACDSignal) {
		resp.MACD = &MACDValue{Line: a.MACDLine, Signal: a.MACDSignal, Histogram: a.MACDHistogram}
	}
	return resp
}

// ToResponse converts an IndicatorSnapshot into its transport shape.
func (s *IndicatorSnapshot) ToResponse() *SnapshotResponse {
	return &SnapshotResponse{
		Ticker: s.Ticker,
		EMA20:  Fptr(s.EMA20),
		EMA50:  Fptr(s.EMA50),
		RSI14:  Fptr(s.RSI14),
		MACD:   s.MACD,
	}
}
