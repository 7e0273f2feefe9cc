package usecase

import (
	"context"
	"math"
	"sync"
	"time"

	"QuantPull/internal/domain/models"
	domrepo "QuantPull/internal/domain/repository"
	"QuantPull/internal/indicators"
	applogger "QuantPull/pkg/logger"
)

const (
	bollingerPeriod = 20
	bollingerK      = 2.0
	atrPeriod       = 14
	volLookback     = 20
)

// Quant runs the technical analysis engine: batch analysis over cached
// bars and O(1) incremental updates from the live tick flow.
type Quant struct {
	market  *MarketData
	metrics domrepo.Metrics
	log     *applogger.Logger

	mu     sync.Mutex
	states map[string]*tickerState
}

// tickerState owns one ticker's incremental indicators. The inner mutex
// serializes updates; IndicatorState itself is not concurrency-safe.
type tickerState struct {
	mu sync.Mutex
	st *indicators.IndicatorState
}

func NewQuant(market *MarketData, metrics domrepo.Metrics, log *applogger.Logger) *Quant {
	return &Quant{
		market:  market,
		metrics: metrics,
		log:     log,
		states:  make(map[string]*tickerState),
	}
}

// Analyze fetches bars through the cache manager and computes the full
// batch analysis: indicators, regime, and composite signal.
func (q *Quant) Analyze(ctx context.Context, ticker, interval string, lookbackDays int, forceRefresh bool) (*models.TechnicalAnalysis, error) {
	bars, _, err := q.market.GetBars(ctx, ticker, "", interval, lookbackDays, forceRefresh)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, ErrNoData
	}
	return AnalyzeBars(bars), nil
}

// AnalyzeSeries computes the batch analysis over a caller-supplied price
// series. Highs and lows are optional; missing ones fall back to the
// close so ATR degrades to a close-range estimate instead of failing.
func (q *Quant) AnalyzeSeries(ticker string, prices, highs, lows []float64) (*models.TechnicalAnalysis, error) {
	if len(prices) < 2 {
		return nil, ErrNoData
	}
	now := timeNow()
	bars := make([]models.Bar, len(prices))
	for i, p := range prices {
		h, l := p, p
		if i < len(highs) {
			h = highs[i]
		}
		if i < len(lows) {
			l = lows[i]
		}
		bars[i] = models.Bar{
			Timestamp: now.Add(-time.Duration(len(prices)-1-i) * 24 * time.Hour),
			Ticker:    ticker,
			Open:      p,
			High:      h,
			Low:       l,
			Close:     p,
			Volume:    0,
			AdjClose:  p,
		}
	}
	return AnalyzeBars(bars), nil
}

// timeNow is swapped in tests.
var timeNow = time.Now

// AnalyzeBars computes the batch analysis over an ascending bar series.
// Pure; exported for reuse by the refresh path and tests.
func AnalyzeBars(bars []models.Bar) *models.TechnicalAnalysis {
	n := len(bars)
	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	for i, b := range bars {
		closes[i] = b.Close
		highs[i] = b.High
		lows[i] = b.Low
	}

	ema20 := indicators.EMA(closes, 20)
	ema50 := indicators.EMA(closes, 50)
	rsi14 := indicators.RSI(closes, 14)
	macdLine, macdSignal, macdHist := indicators.MACD(closes, 12, 26, 9)
	bbUpper, bbMiddle, bbLower := indicators.BollingerBands(closes, bollingerPeriod, bollingerK)
	atr14 := indicators.ATR(highs, lows, closes, atrPeriod)

	last := n - 1
	price := closes[last]

	volRegime, volPct := indicators.DetectVolatilityRegime(indicators.LogReturns(closes), volLookback)
	trendRegime, trendStrength := indicators.DetectTrendRegime(closes, ema20, ema50)

	var macd *models.MACDValue
	if !math.IsNaN(macdSignal[last]) {
		macd = &models.MACDValue{
			Line:      macdLine[last],
			Signal:    macdSignal[last],
			Histogram: macdHist[last],
		}
	}
	prevHist := math.NaN()
	if last >= 1 {
		prevHist = macdHist[last-1]
	}

	composite := indicators.CompositeScore(price, rsi14[last], macd, prevHist, ema20[last], ema50[last])

	ta := &models.TechnicalAnalysis{
		Ticker:    bars[last].Ticker,
		Timestamp: bars[last].Timestamp,
		Price:     price,
		EMA20:     ema20[last],
		EMA50:     ema50[last],
		RSI14:     rsi14[last],
		MACDLine:  macdLine[last],
		BBUpper:   bbUpper[last],
		BBMiddle:  bbMiddle[last],
		BBLower:   bbLower[last],
		ATR14:     atr14[last],
		Regime: models.RegimeState{
			Volatility:           volRegime,
			Trend:                trendRegime,
			VolatilityPercentile: volPct,
			TrendStrength:        trendStrength,
		},
		Composite: composite,
	}
	ta.MACDSignal = macdSignal[last]
	ta.MACDHistogram = macdHist[last]
	return ta
}

// UpdatePrice advances the ticker's incremental indicators with a new
// price. State is created lazily on first update and lives for the
// process lifetime; updates for the same ticker are serialized.
func (q *Quant) UpdatePrice(ticker string, price float64) models.IndicatorSnapshot {
	ts := q.state(ticker)

	ts.mu.Lock()
	snap := ts.st.Update(price)
	ts.mu.Unlock()

	snap.Ticker = ticker
	if q.metrics != nil {
		q.metrics.RecordLastPrice(ticker, price)
	}
	return snap
}

// EvictState drops a ticker's incremental state.
func (q *Quant) EvictState(ticker string) {
	q.mu.Lock()
	delete(q.states, ticker)
	q.mu.Unlock()
}

// TrackedTickers returns the tickers with live incremental state.
func (q *Quant) TrackedTickers() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, 0, len(q.states))
	for t := range q.states {
		out = append(out, t)
	}
	return out
}

func (q *Quant) state(ticker string) *tickerState {
	q.mu.Lock()
	defer q.mu.Unlock()
	ts, ok := q.states[ticker]
	if !ok {
		ts = &tickerState{st: indicators.NewIndicatorState()}
		q.states[ticker] = ts
	}
	return ts
}
