package model

import (
	"time"

	json "github.com/goccy/go-json"
)

// Action is a trading decision.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// ElementarySignal is one indicator's independent vote: an action plus a
// confidence in [0, 1]. An indicator without enough history votes HOLD with
// confidence 0.
type ElementarySignal struct {
	Action     Action  `json:"action"`
	Confidence float64 `json:"confidence"`
}

// Hold is the zero-confidence HOLD vote used for undefined indicators.
func Hold() ElementarySignal {
	return ElementarySignal{Action: ActionHold}
}

// CombinedSignal is the fused decision across all indicators for one bar.
// Immutable once constructed; a new value is produced for every bar.
type CombinedSignal struct {
	Symbol       string                      `json:"symbol"`
	Timeframe    Timeframe                   `json:"timeframe"`
	TS           time.Time                   `json:"ts"` // timestamp of the bar that produced it
	Final        Action                      `json:"final_signal"`
	Strength     float64                     `json:"strength"`
	Close        float64                     `json:"close"`
	Contributing map[string]ElementarySignal `json:"contributing"` // indicator name to vote
}

// Key returns "symbol@timeframe".
func (s *CombinedSignal) Key() string {
	return s.Symbol + "@" + string(s.Timeframe)
}

// JSON returns the JSON-encoded signal.
func (s *CombinedSignal) JSON() []byte {
	out, _ := json.Marshal(s)
	return out
}

// SymbolRecord is one symbol's entry in a streamed update: either a signal
// or a per-symbol error, never both.
type SymbolRecord struct {
	Signal *CombinedSignal `json:"signal,omitempty"`
	Error  string          `json:"error,omitempty"`
	TS     time.Time       `json:"ts"`
}

// StreamUpdate is the per-cycle emission of a streaming session: a mapping
// from symbol to its record for this cycle.
type StreamUpdate struct {
	SessionID string                  `json:"session_id"`
	Timeframe Timeframe               `json:"timeframe"`
	TS        time.Time               `json:"ts"`
	Signals   map[string]SymbolRecord `json:"signals"`
}

// JSON returns the JSON-encoded update.
func (u *StreamUpdate) JSON() []byte {
	out, _ := json.Marshal(u)
	return out
}
