// Package indicators implements the deterministic technical-indicator
// engine: pure batch functions over price slices, O(1) incremental state
// machines, regime detection, and composite signal scoring. No I/O.
package indicators

import "math"

// SMA computes the trailing simple moving average. Output has the same
// length as prices with NaN for the first period-1 entries.
func SMA(prices []float64, period int) []float64 {
	out := nanSlice(len(prices))
	if period <= 0 || len(prices) < period {
		return out
	}
	sum := 0.0
	for i, p := range prices {
		sum += p
		if i >= period {
			sum -= prices[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA computes the exponential moving average seeded from the first price,
// alpha = 2/(period+1). The first period-1 outputs are NaN by convention
// even though the recurrence runs from index 0.
func EMA(prices []float64, period int) []float64 {
	out := nanSlice(len(prices))
	if period <= 0 || len(prices) < period {
		return out
	}
	alpha := 2.0 / float64(period+1)
	v := prices[0]
	if period == 1 {
		out[0] = v
	}
	for i := 1; i < len(prices); i++ {
		v = alpha*prices[i] + (1-alpha)*v
		if i >= period-1 {
			out[i] = v
		}
	}
	return out
}

// RSI computes the Wilder-smoothed relative strength index. The seed
// average gain/loss is the simple mean of the first period deltas; when
// the average loss is zero, RSI is 100.
func RSI(prices []float64, period int) []float64 {
	out := nanSlice(len(prices))
	if period <= 0 || len(prices) < period+1 {
		return out
	}
	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		d := prices[i] - prices[i-1]
		if d > 0 {
			avgGain += d
		} else {
			avgLoss -= d
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiFromAverages(avgGain, avgLoss)

	for i := period + 1; i < len(prices); i++ {
		d := prices[i] - prices[i-1]
		gain, loss := 0.0, 0.0
		if d > 0 {
			gain = d
		} else {
			loss = -d
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiFromAverages(avgGain, avgLoss)
	}
	return out
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// MACD returns the MACD line, signal line, and histogram for the given
// fast/slow/signal periods. The signal EMA is seeded from the first defined
// MACD value so batch output matches the incremental state machine.
func MACD(prices []float64, fast, slow, signal int) (line, signalLine, histogram []float64) {
	n := len(prices)
	line = nanSlice(n)
	signalLine = nanSlice(n)
	histogram = nanSlice(n)
	if n < slow {
		return line, signalLine, histogram
	}

	emaFast := EMA(prices, fast)
	emaSlow := EMA(prices, slow)
	for i := slow - 1; i < n; i++ {
		line[i] = emaFast[i] - emaSlow[i]
	}

	sig := EMA(line[slow-1:], signal)
	for i, v := range sig {
		signalLine[slow-1+i] = v
		if !math.IsNaN(v) {
			histogram[slow-1+i] = line[slow-1+i] - v
		}
	}
	return line, signalLine, histogram
}

// BollingerBands returns upper, middle, lower bands: middle is the SMA,
// upper/lower are middle +/- k population standard deviations of the window.
func BollingerBands(prices []float64, period int, k float64) (upper, middle, lower []float64) {
	middle = SMA(prices, period)
	upper = nanSlice(len(prices))
	lower = nanSlice(len(prices))
	if period <= 0 || len(prices) < period {
		return upper, middle, lower
	}
	for i := period - 1; i < len(prices); i++ {
		mean := middle[i]
		var ss float64
		for j := i - period + 1; j <= i; j++ {
			d := prices[j] - mean
			ss += d * d
		}
		sd := math.Sqrt(ss / float64(period))
		upper[i] = mean + k*sd
		lower[i] = mean - k*sd
	}
	return upper, middle, lower
}

// ATR computes the average true range as an EMA over the true-range series.
// True range is max(high-low, |high-prevClose|, |low-prevClose|).
func ATR(high, low, close []float64, period int) []float64 {
	if len(high) < 2 || len(high) != len(low) || len(high) != len(close) {
		return nanSlice(len(high))
	}
	tr := make([]float64, len(high))
	tr[0] = high[0] - low[0]
	for i := 1; i < len(high); i++ {
		prevClose := close[i-1]
		tr[i] = math.Max(high[i]-low[i],
			math.Max(math.Abs(high[i]-prevClose), math.Abs(low[i]-prevClose)))
	}
	return EMA(tr, period)
}

// VWAP computes the cumulative volume-weighted average price over typical
// prices (H+L+C)/3.
func VWAP(high, low, close, volume []float64) []float64 {
	out := nanSlice(len(close))
	var cumTPV, cumVol float64
	for i := range close {
		tp := (high[i] + low[i] + close[i]) / 3
		cumTPV += tp * volume[i]
		cumVol += volume[i]
		if cumVol != 0 {
			out[i] = cumTPV / cumVol
		}
	}
	return out
}

// OBV computes on-balance volume: signed cumulative volume by close-to-close
// direction. The first entry contributes zero.
func OBV(close, volume []float64) []float64 {
	out := make([]float64, len(close))
	if len(close) == 0 {
		return out
	}
	for i := 1; i < len(close); i++ {
		switch {
		case close[i] > close[i-1]:
			out[i] = out[i-1] + volume[i]
		case close[i] < close[i-1]:
			out[i] = out[i-1] - volume[i]
		default:
			out[i] = out[i-1]
		}
	}
	return out
}

// LogReturns computes r_t = ln(C_t / C_{t-1}); length is len(prices)-1.
// Non-positive prices yield a zero return for that step.
func LogReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev, cur := prices[i-1], prices[i]
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
