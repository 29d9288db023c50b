// Package sim provides a deterministic synthetic BarSource for local
// development and demos. Prices follow a smooth oscillating walk around a
// per-symbol base, so consecutive fetches agree on overlapping history.
package sim

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"time"

	"signal-enginev1/internal/fetch"
	"signal-enginev1/internal/model"
)

// defaultUniverse maps known symbols to base prices.
var defaultUniverse = map[string]float64{
	"EURUSD": 1.085,
	"GBPUSD": 1.272,
	"USDJPY": 155.40,
	"AUDUSD": 0.665,
	"XAUUSD": 2412.0,
	"BTCUSD": 64250.0,
}

// Source is a synthetic bar generator. Safe for concurrent use: it holds
// no mutable state, every bar is a pure function of (symbol, bucket).
type Source struct {
	universe map[string]float64
	now      func() time.Time // overridable for tests
}

// New creates a simulator over the default symbol universe.
func New() *Source {
	return &Source{universe: defaultUniverse, now: time.Now}
}

// NewWithUniverse creates a simulator over a custom symbol-to-base-price map.
func NewWithUniverse(universe map[string]float64) *Source {
	return &Source{universe: universe, now: time.Now}
}

// Symbols returns the known symbol universe.
func (s *Source) Symbols() []string {
	out := make([]string, 0, len(s.universe))
	for sym := range s.universe {
		out = append(out, sym)
	}
	return out
}

// Fetch returns the count most recent completed bars, oldest first.
// Unknown symbols and invalid timeframes are permanent errors.
func (s *Source) Fetch(ctx context.Context, symbol string, tf model.Timeframe, count int) ([]model.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, fetch.Transient(err)
	}
	base, ok := s.universe[symbol]
	if !ok {
		return nil, fetch.Permanent(fmt.Errorf("unknown symbol %q", symbol))
	}
	if !tf.Valid() {
		return nil, fetch.Permanent(fmt.Errorf("invalid timeframe %q", tf))
	}
	if count <= 0 {
		return nil, fetch.Permanent(fmt.Errorf("invalid bar count %d", count))
	}

	d := tf.Duration()
	// Latest completed bucket: the one before the bucket containing now.
	end := s.now().UTC().Truncate(d)
	bars := make([]model.Bar, 0, count)
	for i := count; i >= 1; i-- {
		ts := end.Add(-time.Duration(i) * d)
		bars = append(bars, s.bar(symbol, base, tf, ts, d))
	}
	return bars, nil
}

// bar deterministically synthesizes one OHLCV bar for a bucket.
func (s *Source) bar(symbol string, base float64, tf model.Timeframe, ts time.Time, d time.Duration) model.Bar {
	idx := float64(ts.UnixNano() / int64(d))
	n := noise(symbol, ts.Unix())

	// Two slow sine components give trends; the hash noise adds texture.
	drift := 0.012*math.Sin(idx/9.3) + 0.006*math.Sin(idx/3.1)
	prevDrift := 0.012*math.Sin((idx-1)/9.3) + 0.006*math.Sin((idx-1)/3.1)
	closeP := base * (1 + drift + 0.002*n)
	openP := base * (1 + prevDrift + 0.002*noise(symbol, ts.Unix()-1))
	hi := math.Max(openP, closeP) * (1 + 0.0008*math.Abs(n))
	lo := math.Min(openP, closeP) * (1 - 0.0008*math.Abs(n))

	return model.Bar{
		Symbol:    symbol,
		Timeframe: tf,
		TS:        ts,
		Open:      openP,
		High:      hi,
		Low:       lo,
		Close:     closeP,
		Volume:    100 + 50*math.Abs(n),
	}
}

// noise maps (symbol, bucket) to a stable value in [-1, 1].
func noise(symbol string, bucket int64) float64 {
	h := fnv.New64a()
	h.Write([]byte(symbol))
	var b [8]byte
	for i := 0; i < 8; i++ {
		b[i] = byte(bucket >> (8 * i))
	}
	h.Write(b[:])
	return float64(int64(h.Sum64())) / math.MaxInt64
}
