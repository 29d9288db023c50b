// Package session runs the per-subscription control loop: it repeatedly
// pulls new bars through the retrying fetcher, feeds the indicator engine,
// evaluates the signal combiner, and emits one update per cycle to the
// session's broadcaster.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"signal-enginev1/internal/indicator"
	"signal-enginev1/internal/model"
	"signal-enginev1/internal/signal"
)

// State is the session lifecycle state.
type State int32

const (
	StateInit      State = 0
	StateStreaming State = 1
	StateClosed    State = 2
	StateFailed    State = 3
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Config holds session tuning, passed in explicitly rather than read
// from globals.
type Config struct {
	PollInterval time.Duration     // delay between fetch cycles (default 2s)
	RefreshBars  int               // bars fetched per refresh cycle after the initial window (default 5)
	Indicators   indicator.Config  // periods for the per-symbol engines
	Thresholds   signal.Thresholds // combiner cut-offs
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.RefreshBars <= 0 {
		c.RefreshBars = 5
	}
	return c
}

// symbolRunner holds one symbol's independent fetch/compute state. Each
// runner owns its own engine and combiner, so symbol cycles never share
// mutable state and need no locking.
type symbolRunner struct {
	symbol   string
	engine   *indicator.Engine
	combiner *signal.Combiner
	lastSeen time.Time
	seeded   bool // initial window already fetched
	failed   bool // permanent fetch failure, excluded from further cycles
}

// Session is the per-subscription state machine:
//
//	INIT -> STREAMING -> (CLOSED | FAILED)
//
// INIT validates parameters and probes each symbol; STREAMING polls until
// the context is cancelled (CLOSED) or every symbol has failed (FAILED).
type Session struct {
	ID  string
	req Request
	cfg Config

	fetcher model.BarSource
	sink    model.Broadcaster
	log     *slog.Logger

	state   atomic.Int32
	runners []*symbolRunner

	// Hooks for metrics; may be nil.
	OnEmit    func(update model.StreamUpdate)
	OnBarDrop func(symbol string)
}

// New creates a session in INIT state. fetcher is normally a
// *fetch.Retrying wrapping the concrete BarSource.
func New(id string, req Request, cfg Config, fetcher model.BarSource, sink model.Broadcaster, log *slog.Logger) *Session {
	cfg = cfg.withDefaults()
	s := &Session{
		ID:      id,
		req:     req,
		cfg:     cfg,
		fetcher: fetcher,
		sink:    sink,
		log:     log.With(slog.String("session_id", id)),
	}
	for _, sym := range req.Symbols {
		s.runners = append(s.runners, &symbolRunner{
			symbol:   sym,
			engine:   indicator.NewEngine(cfg.Indicators),
			combiner: signal.NewCombiner(cfg.Thresholds),
		})
	}
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Run drives the session to termination. It returns nil on normal close
// (context cancelled by client disconnect) and the terminal error on
// validation or whole-session fetch failure. Nothing is emitted before
// validation passes.
func (s *Session) Run(ctx context.Context) error {
	if err := s.init(ctx); err != nil {
		s.state.Store(int32(StateFailed))
		s.log.Warn("session failed at init", slog.String("error", err.Error()))
		return err
	}
	s.state.Store(int32(StateStreaming))
	s.log.Info("session streaming",
		slog.Any("symbols", s.req.Symbols),
		slog.String("timeframe", string(s.req.Timeframe)),
		slog.Int("num_bars", s.req.NumBars))

	defer s.release()

	// First cycle runs immediately; the ticker paces the rest.
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		s.cycle(ctx)

		if s.allFailed() {
			s.state.Store(int32(StateFailed))
			err := fmt.Errorf("session %s: all %d symbol(s) failed", s.ID, len(s.runners))
			s.log.Warn("session failed", slog.String("error", err.Error()))
			return err
		}

		select {
		case <-ctx.Done():
			s.state.Store(int32(StateClosed))
			s.log.Info("session closed")
			return nil
		case <-ticker.C:
		}
	}
}

// init validates the request and probes every symbol with a single-bar
// fetch. An unknown symbol (permanent error) fails the whole session
// before any emission.
func (s *Session) init(ctx context.Context) error {
	if err := s.req.Validate(); err != nil {
		return err
	}
	for _, r := range s.runners {
		if _, err := s.fetcher.Fetch(ctx, r.symbol, s.req.Timeframe, 1); err != nil {
			return &ValidationError{Reason: fmt.Sprintf("symbol %s: %v", r.symbol, err)}
		}
	}
	return nil
}

// cycle runs one fetch/compute pass for every active symbol concurrently
// and emits a single update. Symbols share the emission cadence but
// nothing else; a failure on one symbol only produces an error record
// for that symbol.
func (s *Session) cycle(ctx context.Context) {
	type result struct {
		symbol string
		rec    model.SymbolRecord
		ok     bool
	}

	results := make(chan result, len(s.runners))
	var wg sync.WaitGroup
	for _, r := range s.runners {
		if r.failed {
			continue
		}
		wg.Add(1)
		go func(r *symbolRunner) {
			defer wg.Done()
			rec, ok := s.advance(ctx, r)
			results <- result{symbol: r.symbol, rec: rec, ok: ok}
		}(r)
	}
	wg.Wait()
	close(results)

	now := time.Now().UTC()
	update := model.StreamUpdate{
		SessionID: s.ID,
		Timeframe: s.req.Timeframe,
		TS:        now,
		Signals:   make(map[string]model.SymbolRecord, len(s.runners)),
	}
	for res := range results {
		if res.ok {
			update.Signals[res.symbol] = res.rec
		}
	}
	if len(update.Signals) == 0 {
		return // no new bars and no errors this cycle
	}

	s.sink.Emit(ctx, update)
	if s.OnEmit != nil {
		s.OnEmit(update)
	}
}

// advance fetches new bars for one symbol, applies them in order and
// returns the record for this cycle. ok=false means nothing to report
// (no new bars). An indicator update either fully applies or not at all;
// there is no suspension point between engine and combiner.
func (s *Session) advance(ctx context.Context, r *symbolRunner) (model.SymbolRecord, bool) {
	count := s.cfg.RefreshBars
	if !r.seeded {
		count = s.req.NumBars
	}

	bars, err := s.fetcher.Fetch(ctx, r.symbol, s.req.Timeframe, count)
	if err != nil {
		if ctx.Err() != nil {
			return model.SymbolRecord{}, false
		}
		// Terminal for this symbol only: report once, stop fetching it.
		r.failed = true
		s.log.Warn("symbol fetch failed",
			slog.String("symbol", r.symbol),
			slog.String("error", err.Error()))
		return model.SymbolRecord{Error: err.Error(), TS: time.Now().UTC()}, true
	}
	r.seeded = true

	var last *model.CombinedSignal
	for _, bar := range bars {
		if !bar.TS.After(r.lastSeen) {
			continue // already applied or out of order from the source
		}
		snap, err := r.engine.Update(bar)
		if err != nil {
			// Duplicate or regressing timestamp inside the batch, drop it.
			if s.OnBarDrop != nil {
				s.OnBarDrop(r.symbol)
			}
			continue
		}
		r.lastSeen = bar.TS
		sig := r.combiner.Evaluate(r.symbol, s.req.Timeframe, snap)
		last = &sig
	}
	if last == nil {
		return model.SymbolRecord{}, false
	}
	return model.SymbolRecord{Signal: last, TS: last.TS}, true
}

// allFailed reports whether every symbol has hit a terminal fetch error.
func (s *Session) allFailed() bool {
	for _, r := range s.runners {
		if !r.failed {
			return false
		}
	}
	return true
}

// release drops all indicator and combiner state. Called exactly once
// when the session leaves STREAMING; no state survives the session.
func (s *Session) release() {
	for _, r := range s.runners {
		key := r.symbol + "@" + string(s.req.Timeframe)
		r.engine.Release(key)
		r.combiner.Release(r.symbol, s.req.Timeframe)
	}
}
