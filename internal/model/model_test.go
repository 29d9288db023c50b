package model

import (
	"context"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
)

func TestParseTimeframe(t *testing.T) {
	for _, tf := range Timeframes() {
		got, ok := ParseTimeframe(string(tf))
		if !ok || got != tf {
			t.Errorf("ParseTimeframe(%q) = %q, %v", tf, got, ok)
		}
	}
	for _, bad := range []string{"", "h1", "M2", "W1", "1H"} {
		if _, ok := ParseTimeframe(bad); ok {
			t.Errorf("ParseTimeframe(%q) accepted", bad)
		}
	}
}

func TestTimeframe_Durations(t *testing.T) {
	if TFM1.Duration() != time.Minute {
		t.Errorf("M1 duration = %v", TFM1.Duration())
	}
	if TFH4.Duration() != 4*time.Hour {
		t.Errorf("H4 duration = %v", TFH4.Duration())
	}
	if d := Timeframe("X9").Duration(); d != 0 {
		t.Errorf("unknown timeframe duration = %v, want 0", d)
	}

	// Timeframes() is sorted by bar duration.
	tfs := Timeframes()
	for i := 1; i < len(tfs); i++ {
		if tfs[i].Duration() <= tfs[i-1].Duration() {
			t.Errorf("Timeframes() not ascending at %s", tfs[i])
		}
	}
}

func TestCombinedSignal_KeyAndJSON(t *testing.T) {
	sig := &CombinedSignal{
		Symbol:    "EURUSD",
		Timeframe: TFH1,
		TS:        time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		Final:     ActionBuy,
		Strength:  0.625,
		Close:     1.0841,
		Contributing: map[string]ElementarySignal{
			"rsi":  {Action: ActionBuy, Confidence: 0.5},
			"sma":  {Action: ActionBuy, Confidence: 0.75},
			"macd": Hold(),
		},
	}

	if sig.Key() != "EURUSD@H1" {
		t.Errorf("Key() = %q", sig.Key())
	}

	var back CombinedSignal
	if err := json.Unmarshal(sig.JSON(), &back); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if back.Final != ActionBuy || back.Strength != 0.625 {
		t.Errorf("round trip lost fields: %+v", back)
	}
	if v := back.Contributing["macd"]; v.Action != ActionHold || v.Confidence != 0 {
		t.Errorf("macd vote = %+v, want zero-confidence HOLD", v)
	}
}

func TestSymbolRecord_OmitsEmptySides(t *testing.T) {
	ts := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	errRec, _ := json.Marshal(SymbolRecord{Error: "fetch exhausted", TS: ts})
	if strings.Contains(string(errRec), `"signal"`) {
		t.Errorf("error record should omit signal: %s", errRec)
	}

	okRec, _ := json.Marshal(SymbolRecord{
		Signal: &CombinedSignal{Symbol: "EURUSD", Timeframe: TFH1, TS: ts, Final: ActionHold},
		TS:     ts,
	})
	if strings.Contains(string(okRec), `"error"`) {
		t.Errorf("signal record should omit error: %s", okRec)
	}
}

func TestMultiBroadcaster_SkipsNil(t *testing.T) {
	var got int
	fn := BroadcasterFunc(func(context.Context, StreamUpdate) { got++ })
	mb := MultiBroadcaster{nil, fn, nil, fn}
	mb.Emit(context.Background(), StreamUpdate{SessionID: "x"})
	if got != 2 {
		t.Errorf("emitted to %d sinks, want 2", got)
	}
}
