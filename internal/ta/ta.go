package ta

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// All functions return a slice aligned with their input; rows without enough
// history are NaN.

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func firstDefined(x []float64) int {
	for i, v := range x {
		if !math.IsNaN(v) {
			return i
		}
	}
	return len(x)
}

// EMA is an exponential moving average seeded with the simple mean of the
// first n defined values. Leading NaNs in x are skipped.
func EMA(x []float64, n int) []float64 {
	out := nanSlice(len(x))
	if n <= 0 {
		return out
	}
	start := firstDefined(x)
	seed := start + n - 1
	if seed >= len(x) {
		return out
	}
	out[seed] = stat.Mean(x[start:seed+1], nil)
	alpha := 2.0 / float64(n+1)
	for i := seed + 1; i < len(x); i++ {
		out[i] = alpha*x[i] + (1-alpha)*out[i-1]
	}
	return out
}

// MACD returns the line (fast EMA minus slow EMA), its signal EMA and the
// histogram (line minus signal).
func MACD(closes []float64, fast, slow, signal int) (line, sig, hist []float64) {
	ef := EMA(closes, fast)
	es := EMA(closes, slow)
	line = make([]float64, len(closes))
	for i := range closes {
		line[i] = ef[i] - es[i]
	}
	sig = EMA(line, signal)
	hist = make([]float64, len(closes))
	for i := range closes {
		hist[i] = line[i] - sig[i]
	}
	return line, sig, hist
}

// TrueRange is undefined on the first row since it needs a previous close.
func TrueRange(highs, lows, closes []float64) []float64 {
	out := nanSlice(len(closes))
	if len(highs) != len(closes) || len(lows) != len(closes) {
		return out
	}
	for i := 1; i < len(closes); i++ {
		tr1 := highs[i] - lows[i]
		tr2 := math.Abs(highs[i] - closes[i-1])
		tr3 := math.Abs(lows[i] - closes[i-1])
		out[i] = math.Max(tr1, math.Max(tr2, tr3))
	}
	return out
}

// ATR is Wilder's average true range: the first value is the mean of n true
// ranges, later values use (prev*(n-1) + tr) / n.
func ATR(highs, lows, closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	if period <= 0 || len(highs) != len(closes) || len(lows) != len(closes) {
		return out
	}
	tr := TrueRange(highs, lows, closes)
	if len(closes) < period+1 {
		return out
	}
	out[period] = stat.Mean(tr[1:period+1], nil)
	n := float64(period)
	for i := period + 1; i < len(closes); i++ {
		out[i] = (out[i-1]*(n-1) + tr[i]) / n
	}
	return out
}

func EMAWarmUp(n int) int { return n }

func MACDWarmUp(slow, signal int) int { return slow + signal - 1 }

func ATRWarmUp(period int) int { return period + 1 }
