// Package signal maps indicator outputs to elementary buy/sell/hold votes
// and fuses them into one combined decision per bar.
//
// Vote mapping holds small per-key state (previous histogram sign for
// crossover detection, a rolling histogram magnitude window for confidence
// normalization). Fusion itself is a pure function of the three votes.
package signal

import (
	"math"

	"signal-enginev1/internal/indicator"
	"signal-enginev1/internal/model"
)

// Indicator names used as keys in CombinedSignal.Contributing.
const (
	IndSMA  = "SMA"
	IndRSI  = "RSI"
	IndMACD = "MACD"
)

// Thresholds holds the fixed cut-offs for vote mapping.
type Thresholds struct {
	RSIOversold   float64 // BUY below this (default 30)
	RSIOverbought float64 // SELL above this (default 70)
	HistWindow    int     // rolling |histogram| window for confidence normalization
}

// DefaultThresholds returns the standard cut-offs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		RSIOversold:   30,
		RSIOverbought: 70,
		HistWindow:    50,
	}
}

func (t Thresholds) withDefaults() Thresholds {
	def := DefaultThresholds()
	if t.RSIOversold <= 0 {
		t.RSIOversold = def.RSIOversold
	}
	if t.RSIOverbought <= 0 {
		t.RSIOverbought = def.RSIOverbought
	}
	if t.HistWindow <= 0 {
		t.HistWindow = def.HistWindow
	}
	return t
}

// histTracker keeps the per-key MACD crossover state: the previous
// histogram sign and a rolling window of absolute histogram values.
type histTracker struct {
	prevSet bool
	prevNeg bool
	window  []float64 // circular buffer of |histogram|
	idx     int
	count   int
	sum     float64
}

func (h *histTracker) push(abs float64) {
	if h.count >= len(h.window) {
		h.sum -= h.window[h.idx]
	}
	h.window[h.idx] = abs
	h.sum += abs
	h.idx = (h.idx + 1) % len(h.window)
	h.count++
}

func (h *histTracker) mean() float64 {
	n := h.count
	if n > len(h.window) {
		n = len(h.window)
	}
	if n == 0 {
		return 0
	}
	return h.sum / float64(n)
}

// Combiner maps indicator snapshots to elementary votes and fuses them.
// Like the indicator engine, a Combiner is owned by one session and is
// not safe for concurrent use.
type Combiner struct {
	thresholds Thresholds
	trackers   map[string]*histTracker
}

// NewCombiner creates a Combiner with the given thresholds. Zero fields
// fall back to DefaultThresholds.
func NewCombiner(t Thresholds) *Combiner {
	return &Combiner{
		thresholds: t.withDefaults(),
		trackers:   make(map[string]*histTracker, 8),
	}
}

// Evaluate produces the combined signal for one bar from its indicator
// snapshot. Undefined indicators vote HOLD with confidence 0 and still
// participate in the count.
func (c *Combiner) Evaluate(symbol string, tf model.Timeframe, snap indicator.Snapshot) model.CombinedSignal {
	key := symbol + "@" + string(tf)

	smaVote := smaVote(snap.Close, snap.SMA)
	rsiVote := c.rsiVote(snap.RSI)
	macdVote := c.macdVote(key, snap.MACD.Histogram)

	final, strength := Fuse(smaVote, rsiVote, macdVote)

	return model.CombinedSignal{
		Symbol:    symbol,
		Timeframe: tf,
		TS:        snap.TS,
		Final:     final,
		Strength:  strength,
		Close:     snap.Close,
		Contributing: map[string]model.ElementarySignal{
			IndSMA:  smaVote,
			IndRSI:  rsiVote,
			IndMACD: macdVote,
		},
	}
}

// Release discards crossover state for a key when its session ends.
func (c *Combiner) Release(symbol string, tf model.Timeframe) {
	delete(c.trackers, symbol+"@"+string(tf))
}

// smaVote compares the close to the SMA. Confidence scales with the
// normalized distance |close-SMA|/SMA, capped at 1.
func smaVote(close float64, sma indicator.Value) model.ElementarySignal {
	if !sma.Ok() || sma.Float() == 0 {
		return model.Hold()
	}
	v := sma.Float()
	conf := math.Min(math.Abs(close-v)/math.Abs(v), 1.0)
	switch {
	case close > v:
		return model.ElementarySignal{Action: model.ActionBuy, Confidence: conf}
	case close < v:
		return model.ElementarySignal{Action: model.ActionSell, Confidence: conf}
	default:
		return model.Hold()
	}
}

// rsiVote votes BUY when oversold, SELL when overbought. Confidence
// scales with the distance past the nearest threshold, capped at 1.
func (c *Combiner) rsiVote(rsi indicator.Value) model.ElementarySignal {
	if !rsi.Ok() {
		return model.Hold()
	}
	v := rsi.Float()
	t := c.thresholds
	switch {
	case v < t.RSIOversold:
		conf := math.Min((t.RSIOversold-v)/t.RSIOversold, 1.0)
		return model.ElementarySignal{Action: model.ActionBuy, Confidence: conf}
	case v > t.RSIOverbought:
		conf := math.Min((v-t.RSIOverbought)/(100-t.RSIOverbought), 1.0)
		return model.ElementarySignal{Action: model.ActionSell, Confidence: conf}
	default:
		return model.Hold()
	}
}

// macdVote detects histogram sign crossings for the key: negative to
// non-negative votes BUY, non-negative to negative votes SELL, anything
// else HOLD. Confidence is |histogram| normalized by the rolling mean
// absolute histogram, capped at 1. A crossing is reported exactly once.
func (c *Combiner) macdVote(key string, hist indicator.Value) model.ElementarySignal {
	if !hist.Ok() {
		return model.Hold()
	}

	tr, ok := c.trackers[key]
	if !ok {
		tr = &histTracker{window: make([]float64, c.thresholds.HistWindow)}
		c.trackers[key] = tr
	}

	h := hist.Float()
	neg := h < 0

	// Confidence normalization uses the window mean before this bar's
	// value is pushed, so a large crossing bar stands out against its past.
	mean := tr.mean()
	conf := 1.0
	if mean > 0 {
		conf = math.Min(math.Abs(h)/mean, 1.0)
	} else if h == 0 {
		conf = 0
	}

	crossedUp := tr.prevSet && tr.prevNeg && !neg
	crossedDown := tr.prevSet && !tr.prevNeg && neg

	tr.prevSet = true
	tr.prevNeg = neg
	tr.push(math.Abs(h))

	switch {
	case crossedUp:
		return model.ElementarySignal{Action: model.ActionBuy, Confidence: conf}
	case crossedDown:
		return model.ElementarySignal{Action: model.ActionSell, Confidence: conf}
	default:
		return model.Hold()
	}
}

// Fuse combines three elementary votes by majority with explicit deadlock
// resolution:
//
//   - two or three matching non-HOLD votes win with strength = mean
//     confidence of the agreeing votes
//   - one non-HOLD vote and two HOLDs is insufficient consensus: HOLD, 0
//   - one BUY and one SELL present simultaneously is a deadlock: HOLD, 0
//
// Fuse is a pure function: identical inputs always produce the identical
// result, independent of argument order.
func Fuse(votes ...model.ElementarySignal) (model.Action, float64) {
	var buys, sells int
	var buyConf, sellConf float64
	for _, v := range votes {
		switch v.Action {
		case model.ActionBuy:
			buys++
			buyConf += v.Confidence
		case model.ActionSell:
			sells++
			sellConf += v.Confidence
		}
	}

	// Conflicting directions never resolve to a guess.
	if buys > 0 && sells > 0 {
		return model.ActionHold, 0
	}
	if buys >= 2 {
		return model.ActionBuy, buyConf / float64(buys)
	}
	if sells >= 2 {
		return model.ActionSell, sellConf / float64(sells)
	}
	return model.ActionHold, 0
}
