package ta

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestEMASeedAndRecursion(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	got := EMA(x, 3)

	for i := 0; i < 2; i++ {
		if !math.IsNaN(got[i]) {
			t.Errorf("Expected NaN warm-up at %d, got %f", i, got[i])
		}
	}
	if !almostEqual(got[2], 2) {
		t.Errorf("Expected seed 2, got %f", got[2])
	}
	// alpha = 0.5
	if !almostEqual(got[3], 3) {
		t.Errorf("Expected 3 at index 3, got %f", got[3])
	}
	if !almostEqual(got[4], 4) {
		t.Errorf("Expected 4 at index 4, got %f", got[4])
	}
}

func TestEMASkipsLeadingNaN(t *testing.T) {
	x := []float64{math.NaN(), math.NaN(), 2, 4, 6}
	got := EMA(x, 2)

	if !math.IsNaN(got[2]) {
		t.Errorf("Expected NaN at index 2, got %f", got[2])
	}
	if !almostEqual(got[3], 3) {
		t.Errorf("Expected seed 3 at index 3, got %f", got[3])
	}
	// alpha = 2/3
	if !almostEqual(got[4], 2.0/3.0*6+1.0/3.0*3) {
		t.Errorf("Unexpected EMA at index 4: %f", got[4])
	}
}

func TestEMAShortInput(t *testing.T) {
	got := EMA([]float64{1, 2}, 5)
	if len(got) != 2 {
		t.Fatalf("Expected aligned output of length 2, got %d", len(got))
	}
	for i, v := range got {
		if !math.IsNaN(v) {
			t.Errorf("Expected NaN at %d, got %f", i, v)
		}
	}
}

func TestMACDWarmUp(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	_, _, hist := MACD(closes, 12, 26, 9)

	first := MACDWarmUp(26, 9) - 1
	if !math.IsNaN(hist[first-1]) {
		t.Errorf("Expected NaN histogram before index %d, got %f", first, hist[first-1])
	}
	if math.IsNaN(hist[first]) {
		t.Errorf("Expected defined histogram at index %d", first)
	}
}

func TestMACDRisingSeriesHasPositiveLine(t *testing.T) {
	closes := make([]float64, 80)
	for i := range closes {
		closes[i] = 100 * math.Pow(1.01, float64(i))
	}
	line, _, hist := MACD(closes, 12, 26, 9)

	last := len(closes) - 1
	if line[last] <= 0 {
		t.Errorf("Expected positive MACD line on an accelerating series, got %f", line[last])
	}
	if hist[last] <= 0 {
		t.Errorf("Expected positive histogram on an accelerating series, got %f", hist[last])
	}
}

func TestATRWilder(t *testing.T) {
	highs := []float64{10, 12, 13, 12, 15}
	lows := []float64{8, 9, 11, 10, 12}
	closes := []float64{9, 11, 12, 11, 14}
	got := ATR(highs, lows, closes, 2)

	// TR: -, 3, 2, 2, 4
	if !math.IsNaN(got[1]) {
		t.Errorf("Expected NaN at index 1, got %f", got[1])
	}
	if !almostEqual(got[2], 2.5) {
		t.Errorf("Expected seed 2.5, got %f", got[2])
	}
	if !almostEqual(got[3], 2.25) {
		t.Errorf("Expected 2.25, got %f", got[3])
	}
	if !almostEqual(got[4], 3.125) {
		t.Errorf("Expected 3.125, got %f", got[4])
	}
}

func TestATRMismatchedInputs(t *testing.T) {
	got := ATR([]float64{1, 2}, []float64{1}, []float64{1, 2}, 1)
	for i, v := range got {
		if !math.IsNaN(v) {
			t.Errorf("Expected NaN at %d for mismatched input, got %f", i, v)
		}
	}
}
