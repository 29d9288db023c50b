package model

import (
	"time"

	json "github.com/goccy/go-json"
)

// Bar represents one OHLCV sample for a symbol at a given timeframe.
// Bars for a (symbol, timeframe) pair are totally ordered by TS; no two
// bars share a timestamp.
type Bar struct {
	Symbol    string    `json:"symbol"`
	Timeframe Timeframe `json:"timeframe"`
	TS        time.Time `json:"ts"` // bucket start time (UTC, timeframe-aligned)
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Key returns a unique key for this bar's stream: "symbol@timeframe".
func (b *Bar) Key() string {
	return b.Symbol + "@" + string(b.Timeframe)
}

// JSON returns the JSON-encoded bar (ignoring errors for hot-path usage).
func (b *Bar) JSON() []byte {
	out, _ := json.Marshal(b)
	return out
}
