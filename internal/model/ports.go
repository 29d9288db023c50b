package model

import "context"

// ── Port Interfaces ──
// These interfaces decouple the engine from concrete collaborators
// (market data providers, transports). Each implementation satisfies
// one of these at the system boundary.

// BarSource supplies ordered OHLCV bars for a (symbol, timeframe) pair on
// request. Implementations must return the most recent count bars in
// ascending timestamp order. Failures are classified by the fetch package:
// transient errors are retried, permanent ones (unknown symbol, invalid
// timeframe) surface immediately.
type BarSource interface {
	// Fetch returns up to count most recent bars, oldest first.
	Fetch(ctx context.Context, symbol string, tf Timeframe, count int) ([]Bar, error)
}

// Broadcaster receives per-cycle stream updates from a streaming session
// and delivers them to subscribers. Emit must not block indefinitely;
// implementations drop or buffer under backpressure.
type Broadcaster interface {
	Emit(ctx context.Context, update StreamUpdate)
}

// BroadcasterFunc adapts a function to the Broadcaster interface.
type BroadcasterFunc func(ctx context.Context, update StreamUpdate)

func (f BroadcasterFunc) Emit(ctx context.Context, update StreamUpdate) {
	f(ctx, update)
}

// MultiBroadcaster fans one update out to several sinks in order. Nil
// entries are skipped so optional sinks (cache, notifier) wire in cleanly.
type MultiBroadcaster []Broadcaster

func (m MultiBroadcaster) Emit(ctx context.Context, update StreamUpdate) {
	for _, b := range m {
		if b != nil {
			b.Emit(ctx, update)
		}
	}
}
