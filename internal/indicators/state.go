package indicators

import (
	"math"

	"QuantPull/internal/domain/models"
)

// EMAState is an incrementally updated EMA. Update is O(1); the value is
// NaN until period samples have been observed.
type EMAState struct {
	period int
	alpha  float64
	value  float64
	count  int
}

func NewEMAState(period int) *EMAState {
	return &EMAState{period: period, alpha: 2.0 / float64(period+1)}
}

func (s *EMAState) Update(price float64) float64 {
	s.count++
	if s.count == 1 {
		s.value = price
	} else {
		s.value = s.alpha*price + (1-s.alpha)*s.value
	}
	if s.count < s.period {
		return math.NaN()
	}
	return s.value
}

// RSIState is an incrementally updated Wilder RSI. The first period deltas
// are buffered; at the warm-up boundary the averages seed from their simple
// mean, identically to the batch algorithm, then the recurrence takes over.
type RSIState struct {
	period    int
	avgGain   float64
	avgLoss   float64
	prevPrice float64
	seen      bool
	count     int
	gainBuf   []float64
	lossBuf   []float64
}

func NewRSIState(period int) *RSIState {
	return &RSIState{period: period}
}

func (s *RSIState) Update(price float64) float64 {
	if !s.seen {
		s.seen = true
		s.prevPrice = price
		return math.NaN()
	}
	change := price - s.prevPrice
	gain := math.Max(0, change)
	loss := math.Max(0, -change)
	s.prevPrice = price
	s.count++

	if s.count <= s.period {
		s.gainBuf = append(s.gainBuf, gain)
		s.lossBuf = append(s.lossBuf, loss)
		if s.count < s.period {
			return math.NaN()
		}
		for i := 0; i < s.period; i++ {
			s.avgGain += s.gainBuf[i]
			s.avgLoss += s.lossBuf[i]
		}
		s.avgGain /= float64(s.period)
		s.avgLoss /= float64(s.period)
		s.gainBuf, s.lossBuf = nil, nil
		return rsiFromAverages(s.avgGain, s.avgLoss)
	}

	s.avgGain = (s.avgGain*float64(s.period-1) + gain) / float64(s.period)
	s.avgLoss = (s.avgLoss*float64(s.period-1) + loss) / float64(s.period)
	return rsiFromAverages(s.avgGain, s.avgLoss)
}

// MACDState nests three EMA states. Update returns nil until both the
// slow EMA and the signal EMA have warmed up.
type MACDState struct {
	fastEMA   *EMAState
	slowEMA   *EMAState
	signalEMA *EMAState
	prevHist  float64 // histogram one defined update ago
	lastHist  float64
}

func NewMACDState(fast, slow, signal int) *MACDState {
	return &MACDState{
		fastEMA:   NewEMAState(fast),
		slowEMA:   NewEMAState(slow),
		signalEMA: NewEMAState(signal),
		prevHist:  math.NaN(),
		lastHist:  math.NaN(),
	}
}

func (s *MACDState) Update(price float64) *models.MACDValue {
	fast := s.fastEMA.Update(price)
	slow := s.slowEMA.Update(price)
	if math.IsNaN(fast) || math.IsNaN(slow) {
		return nil
	}
	line := fast - slow
	signal := s.signalEMA.Update(line)
	if math.IsNaN(signal) {
		return nil
	}
	hist := line - signal
	s.prevHist = s.lastHist
	s.lastHist = hist
	return &models.MACDValue{Line: line, Signal: signal, Histogram: hist}
}

// PrevHistogram returns the histogram of the update before the most recent
// one, for fresh-crossover detection. NaN until two defined updates.
func (s *MACDState) PrevHistogram() float64 {
	return s.prevHist
}

// IndicatorState holds every incremental indicator for one ticker. Created
// lazily on first streaming update and mutated only through Update. Not
// safe for concurrent use; callers serialize per ticker.
type IndicatorState struct {
	ema20 *EMAState
	ema50 *EMAState
	rsi14 *RSIState
	macd  *MACDState
}

func NewIndicatorState() *IndicatorState {
	return &IndicatorState{
		ema20: NewEMAState(20),
		ema50: NewEMAState(50),
		rsi14: NewRSIState(14),
		macd:  NewMACDState(12, 26, 9),
	}
}

// Update advances all indicators with a new price in O(1).
func (s *IndicatorState) Update(price float64) models.IndicatorSnapshot {
	return models.IndicatorSnapshot{
		EMA20: s.ema20.Update(price),
		EMA50: s.ema50.Update(price),
		RSI14: s.rsi14.Update(price),
		MACD:  s.macd.Update(price),
	}
}
