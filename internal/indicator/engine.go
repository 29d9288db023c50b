// Package indicator provides incremental technical indicator computation
// over streaming bar data.
//
// Each indicator maintains the minimal sufficient statistics to extend
// itself one bar at a time (sliding sums, smoothed averages, EMA seeds);
// no indicator ever rescans its window. Outputs are tagged Values that
// stay Undefined during warmup instead of reporting placeholder zeros.
package indicator

import (
	"errors"
	"time"

	"signal-enginev1/internal/model"
)

// Config holds the indicator periods for an engine instance.
type Config struct {
	SMAPeriod  int
	RSIPeriod  int
	MACDFast   int
	MACDSlow   int
	MACDSignal int
}

// DefaultConfig returns the standard periods: SMA 20, RSI 14, MACD 12/26/9.
func DefaultConfig() Config {
	return Config{
		SMAPeriod:  20,
		RSIPeriod:  14,
		MACDFast:   12,
		MACDSlow:   26,
		MACDSignal: 9,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.SMAPeriod <= 0 {
		c.SMAPeriod = def.SMAPeriod
	}
	if c.RSIPeriod <= 0 {
		c.RSIPeriod = def.RSIPeriod
	}
	if c.MACDFast <= 0 {
		c.MACDFast = def.MACDFast
	}
	if c.MACDSlow <= 0 {
		c.MACDSlow = def.MACDSlow
	}
	if c.MACDSignal <= 0 {
		c.MACDSignal = def.MACDSignal
	}
	return c
}

// MaxPeriod returns the largest lookback any indicator needs, used to size
// initial bar windows.
func (c Config) MaxPeriod() int {
	c = c.withDefaults()
	max := c.SMAPeriod
	if c.RSIPeriod+1 > max {
		max = c.RSIPeriod + 1
	}
	if c.MACDSlow+c.MACDSignal > max {
		max = c.MACDSlow + c.MACDSignal
	}
	return max
}

// MACDValue bundles the three MACD outputs for one bar.
type MACDValue struct {
	Line      Value `json:"line"`
	Signal    Value `json:"signal"`
	Histogram Value `json:"histogram"`
}

// Snapshot holds all indicator outputs after applying one bar.
type Snapshot struct {
	TS    time.Time `json:"ts"`
	Close float64   `json:"close"`
	SMA   Value     `json:"sma"`
	RSI   Value     `json:"rsi"`
	MACD  MACDValue `json:"macd"`
}

// ErrStaleBar is returned when a bar's timestamp is not strictly newer than
// the last applied bar for its key. The bar is dropped; state is untouched.
var ErrStaleBar = errors.New("indicator: bar timestamp not newer than last applied")

// keyState holds the live indicators for one (symbol, timeframe) key.
type keyState struct {
	lastTS time.Time
	sma    *SMA
	rsi    *RSI
	macd   *MACD
}

// Engine maintains per-(symbol, timeframe) indicator state and computes
// SMA, RSI and MACD incrementally as bars arrive.
//
// An Engine is owned by a single streaming session and is not safe for
// concurrent use; each session owns its own instance, so no locks are
// needed.
type Engine struct {
	cfg   Config
	state map[string]*keyState
}

// NewEngine creates an indicator engine with the given periods. Zero
// periods fall back to DefaultConfig.
func NewEngine(cfg Config) *Engine {
	return &Engine{
		cfg:   cfg.withDefaults(),
		state: make(map[string]*keyState, 8),
	}
}

// Config returns the engine's effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// Update applies one bar to the state for its (symbol, timeframe) key and
// returns the resulting indicator snapshot. State is created on the first
// bar for a key. Bars must arrive in strictly increasing timestamp order
// per key; out-of-order or duplicate bars return ErrStaleBar and leave the
// state fully intact.
func (e *Engine) Update(bar model.Bar) (Snapshot, error) {
	key := bar.Key()
	ks, exists := e.state[key]
	if !exists {
		ks = &keyState{
			sma:  NewSMA(e.cfg.SMAPeriod),
			rsi:  NewRSI(e.cfg.RSIPeriod),
			macd: NewMACD(e.cfg.MACDFast, e.cfg.MACDSlow, e.cfg.MACDSignal),
		}
		e.state[key] = ks
	}

	if !ks.lastTS.IsZero() && !bar.TS.After(ks.lastTS) {
		return Snapshot{}, ErrStaleBar
	}

	ks.sma.Update(bar.Close)
	ks.rsi.Update(bar.Close)
	ks.macd.Update(bar.Close)
	ks.lastTS = bar.TS

	return Snapshot{
		TS:    bar.TS,
		Close: bar.Close,
		SMA:   ks.sma.Value(),
		RSI:   ks.rsi.Value(),
		MACD: MACDValue{
			Line:      ks.macd.Line(),
			Signal:    ks.macd.Signal(),
			Histogram: ks.macd.Histogram(),
		},
	}, nil
}

// LastTS returns the timestamp of the last applied bar for a key, or the
// zero time if the key has no state yet.
func (e *Engine) LastTS(key string) time.Time {
	if ks, ok := e.state[key]; ok {
		return ks.lastTS
	}
	return time.Time{}
}

// Release discards the state for a key. Sessions call this on close so
// indicator state never outlives its subscription.
func (e *Engine) Release(key string) {
	delete(e.state, key)
}
