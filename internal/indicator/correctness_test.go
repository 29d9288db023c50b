package indicator

import (
	"math"
	"testing"
)

// ────────────────────────────────────────────────────────────
// Helpers
// ────────────────────────────────────────────────────────────

func assertClose(t *testing.T, label string, got Value, want, tol float64) {
	t.Helper()
	if !got.Ok() {
		t.Errorf("%s: undefined, want %.6f", label, want)
		return
	}
	if math.Abs(got.Float()-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f)", label, got.Float(), want, tol)
	}
}

func assertUndefined(t *testing.T, label string, got Value) {
	t.Helper()
	if got.Ok() {
		t.Errorf("%s: got %.6f, want undefined", label, got.Float())
	}
}

// ────────────────────────────────────────────────────────────
// SMA Correctness
// ────────────────────────────────────────────────────────────

func TestSMA_Correctness_Period3(t *testing.T) {
	// Hand-calculated SMA(3) for a known price series:
	// Prices: 100, 102, 104, 103, 105
	// SMA after bar 3: (100+102+104)/3 = 102.0
	// SMA after bar 4: (102+104+103)/3 = 103.0
	// SMA after bar 5: (104+103+105)/3 = 104.0

	sma := NewSMA(3)
	prices := []float64{100, 102, 104, 103, 105}
	expected := []float64{0, 0, 102.0, 103.0, 104.0}
	ready := []bool{false, false, true, true, true}

	for i, p := range prices {
		sma.Update(p)
		if sma.Ready() != ready[i] {
			t.Errorf("bar %d: Ready()=%v, want %v", i, sma.Ready(), ready[i])
		}
		if ready[i] {
			assertClose(t, "SMA(3)", sma.Value(), expected[i], 0.0001)
		} else {
			assertUndefined(t, "SMA(3) warmup", sma.Value())
		}
	}
}

func TestSMA_Correctness_Period5(t *testing.T) {
	// Prices 1..15: the final window is 11..15, mean 13.0.
	sma := NewSMA(5)
	for p := 1.0; p <= 15.0; p++ {
		sma.Update(p)
	}
	assertClose(t, "SMA(5) over 1..15", sma.Value(), 13.0, 0.0001)
}

func TestSMA_WindowSlides(t *testing.T) {
	// After far more values than the period, only the window matters.
	sma := NewSMA(2)
	for _, p := range []float64{1, 1000, 2000, 10, 20} {
		sma.Update(p)
	}
	assertClose(t, "SMA(2) last window", sma.Value(), 15.0, 0.0001)
}

// ────────────────────────────────────────────────────────────
// EMA Correctness
// ────────────────────────────────────────────────────────────

func TestEMA_Correctness_Period3(t *testing.T) {
	// EMA(3), k = 2/(3+1) = 0.5.
	// Seed after 3 bars: (10+11+12)/3 = 11.0
	// Bar 4: 13*0.5 + 11*0.5 = 12.0
	// Bar 5: 14*0.5 + 12*0.5 = 13.0

	ema := NewEMA(3)
	prices := []float64{10, 11, 12, 13, 14}
	expected := []float64{0, 0, 11.0, 12.0, 13.0}

	for i, p := range prices {
		ema.Update(p)
		if i < 2 {
			assertUndefined(t, "EMA(3) warmup", ema.Value())
			continue
		}
		assertClose(t, "EMA(3)", ema.Value(), expected[i], 0.0001)
	}
}

// ────────────────────────────────────────────────────────────
// RSI Correctness
// ────────────────────────────────────────────────────────────

func TestRSI_Correctness_Period3(t *testing.T) {
	// Closes: 10, 11, 12, 11, 12. Deltas: +1, +1, -1, +1.
	// Seed over the first 3 deltas: avgGain=(1+1+0)/3, avgLoss=(0+0+1)/3.
	// RSI = 100 - 100/(1+2) = 66.6667
	// Next delta +1 with Wilder smoothing:
	// avgGain=(0.6667*2+1)/3=0.7778, avgLoss=(0.3333*2+0)/3=0.2222
	// RSI = 100 - 100/(1+3.5) = 77.7778

	rsi := NewRSI(3)
	closes := []float64{10, 11, 12, 11, 12}
	for i, c := range closes {
		rsi.Update(c)
		if i < 3 {
			assertUndefined(t, "RSI(3) warmup", rsi.Value())
		}
	}
	assertClose(t, "RSI(3)", rsi.Value(), 77.7778, 0.001)
}

func TestRSI_SaturatesAt100_OnPureUptrend(t *testing.T) {
	// A strictly rising series has zero average loss; RSI must report
	// exactly 100 instead of dividing by zero.
	rsi := NewRSI(14)
	for p := 1.0; p <= 30.0; p++ {
		rsi.Update(p)
	}
	assertClose(t, "RSI uptrend", rsi.Value(), 100.0, 0.0001)
}

func TestRSI_PureDowntrend_NearZero(t *testing.T) {
	rsi := NewRSI(14)
	for p := 30.0; p >= 1.0; p-- {
		rsi.Update(p)
	}
	v := rsi.Value()
	if !v.Ok() || v.Float() > 0.0001 {
		t.Errorf("RSI downtrend: got %v, want ~0", v)
	}
}

// ────────────────────────────────────────────────────────────
// MACD Correctness
// ────────────────────────────────────────────────────────────

func TestMACD_Correctness_SmallPeriods(t *testing.T) {
	// MACD(2,3,2) over 10, 11, 12, 13, 14.
	// EMA2 (k=2/3): seed 10.5, then 11.5, 12.5, 13.5
	// EMA3 (k=1/2): seed 11, then 12, 13
	// Line defined from bar 3: 11.5-11=0.5, then 0.5, 0.5
	// Signal EMA2 of the line: seed after bars 3-4 = 0.5, then 0.5
	// Histogram defined from bar 4: 0.0

	macd := NewMACD(2, 3, 2)
	closes := []float64{10, 11, 12, 13, 14}
	for i, c := range closes {
		macd.Update(c)

		if i < 2 {
			assertUndefined(t, "MACD line warmup", macd.Line())
		}
		if i == 2 {
			assertClose(t, "MACD line bar3", macd.Line(), 0.5, 0.0001)
			assertUndefined(t, "MACD hist bar3", macd.Histogram())
		}
		if i == 3 {
			assertClose(t, "MACD signal bar4", macd.Signal(), 0.5, 0.0001)
			assertClose(t, "MACD hist bar4", macd.Histogram(), 0.0, 0.0001)
		}
	}
	assertClose(t, "MACD line final", macd.Line(), 0.5, 0.0001)
	assertClose(t, "MACD hist final", macd.Histogram(), 0.0, 0.0001)
}

func TestMACD_DefaultWarmup(t *testing.T) {
	// With 12/26/9 the histogram needs 26+9-1 = 34 bars.
	macd := NewMACD(12, 26, 9)
	for i := 1; i <= 33; i++ {
		macd.Update(float64(100 + i))
	}
	assertUndefined(t, "MACD hist at 33 bars", macd.Histogram())

	macd.Update(134)
	if !macd.Histogram().Ok() {
		t.Error("MACD hist at 34 bars: want defined")
	}
	if !macd.Ready() {
		t.Error("MACD Ready at 34 bars: want true")
	}
}
