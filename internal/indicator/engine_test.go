package indicator

import (
	"errors"
	"testing"
	"time"

	"signal-enginev1/internal/model"
)

func bar(symbol string, minute int, close float64) model.Bar {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	return model.Bar{
		Symbol:    symbol,
		Timeframe: model.TFM1,
		TS:        base.Add(time.Duration(minute) * time.Minute),
		Open:      close,
		High:      close + 0.5,
		Low:       close - 0.5,
		Close:     close,
	}
}

func TestEngine_SnapshotPerBar(t *testing.T) {
	eng := NewEngine(Config{SMAPeriod: 3, RSIPeriod: 3, MACDFast: 2, MACDSlow: 3, MACDSignal: 2})

	var snap Snapshot
	var err error
	for i, c := range []float64{100, 102, 104, 103, 105} {
		snap, err = eng.Update(bar("EURUSD", i, c))
		if err != nil {
			t.Fatalf("bar %d: unexpected error: %v", i, err)
		}
	}

	if snap.Close != 105 {
		t.Errorf("snapshot close: got %v, want 105", snap.Close)
	}
	assertClose(t, "engine SMA", snap.SMA, 104.0, 0.0001)
	if !snap.RSI.Ok() {
		t.Error("engine RSI: want defined after 5 bars with period 3")
	}
	if !snap.MACD.Line.Ok() {
		t.Error("engine MACD line: want defined after 5 bars with slow 3")
	}
}

func TestEngine_StaleBarRejected_StateIntact(t *testing.T) {
	eng := NewEngine(Config{SMAPeriod: 2})

	if _, err := eng.Update(bar("EURUSD", 0, 100)); err != nil {
		t.Fatalf("bar 0: %v", err)
	}
	if _, err := eng.Update(bar("EURUSD", 1, 101)); err != nil {
		t.Fatalf("bar 1: %v", err)
	}

	// Duplicate timestamp
	if _, err := eng.Update(bar("EURUSD", 1, 999)); !errors.Is(err, ErrStaleBar) {
		t.Fatalf("duplicate ts: got %v, want ErrStaleBar", err)
	}
	// Regressing timestamp
	if _, err := eng.Update(bar("EURUSD", 0, 999)); !errors.Is(err, ErrStaleBar) {
		t.Fatalf("old ts: got %v, want ErrStaleBar", err)
	}

	// The rejected bars must not have touched the window.
	snap, err := eng.Update(bar("EURUSD", 2, 102))
	if err != nil {
		t.Fatalf("bar 2: %v", err)
	}
	assertClose(t, "SMA after stale rejects", snap.SMA, 101.5, 0.0001)
}

func TestEngine_KeysIsolated(t *testing.T) {
	eng := NewEngine(Config{SMAPeriod: 2})

	eng.Update(bar("EURUSD", 0, 100))
	eng.Update(bar("EURUSD", 1, 102))
	eng.Update(bar("GBPUSD", 0, 200))
	snapG, _ := eng.Update(bar("GBPUSD", 1, 202))
	snapE, _ := eng.Update(bar("EURUSD", 2, 104))

	assertClose(t, "EURUSD SMA", snapE.SMA, 103.0, 0.0001)
	assertClose(t, "GBPUSD SMA", snapG.SMA, 201.0, 0.0001)
}

func TestEngine_LastTSAndRelease(t *testing.T) {
	eng := NewEngine(Config{})
	b := bar("EURUSD", 5, 100)
	key := b.Key()

	if got := eng.LastTS(key); !got.IsZero() {
		t.Errorf("LastTS before first bar: got %v, want zero", got)
	}
	eng.Update(b)
	if got := eng.LastTS(key); !got.Equal(b.TS) {
		t.Errorf("LastTS: got %v, want %v", got, b.TS)
	}

	eng.Release(key)
	if got := eng.LastTS(key); !got.IsZero() {
		t.Errorf("LastTS after release: got %v, want zero", got)
	}
	// A fresh bar at an older timestamp must be accepted after release.
	if _, err := eng.Update(bar("EURUSD", 0, 100)); err != nil {
		t.Errorf("update after release: %v", err)
	}
}

func TestConfig_MaxPeriod(t *testing.T) {
	// Defaults: MACD slow 26 + signal 9 = 35 dominates SMA 20 and RSI 15.
	if got := DefaultConfig().MaxPeriod(); got != 35 {
		t.Errorf("default MaxPeriod: got %d, want 35", got)
	}
	cfg := Config{SMAPeriod: 200, RSIPeriod: 14, MACDFast: 12, MACDSlow: 26, MACDSignal: 9}
	if got := cfg.MaxPeriod(); got != 200 {
		t.Errorf("MaxPeriod with SMA 200: got %d, want 200", got)
	}
}
