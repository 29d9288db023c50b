package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-enginev1/internal/fetch"
	"signal-enginev1/internal/indicator"
	"signal-enginev1/internal/model"
	"signal-enginev1/internal/signal"
)

// fakeSource serves a growing synthetic bar series per symbol, one new bar
// per Fetch call. Symbols listed in failAfterProbe succeed on their first
// call (the session's probe) and fail afterwards.
type fakeSource struct {
	mu             sync.Mutex
	step           map[string]int
	probed         map[string]bool
	rejectAlways   map[string]error
	failAfterProbe map[string]error
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		step:           make(map[string]int),
		probed:         make(map[string]bool),
		rejectAlways:   make(map[string]error),
		failAfterProbe: make(map[string]error),
	}
}

func (f *fakeSource) Fetch(ctx context.Context, symbol string, tf model.Timeframe, count int) ([]model.Bar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.rejectAlways[symbol]; ok {
		return nil, err
	}
	if err, ok := f.failAfterProbe[symbol]; ok && f.probed[symbol] {
		return nil, err
	}
	f.probed[symbol] = true

	// The series grows by one bar per call; a fetch returns its last
	// count bars, so refresh windows overlap previously seen bars.
	f.step[symbol]++
	end := 30 + f.step[symbol]
	base := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	bars := make([]model.Bar, 0, count)
	for i := end - count + 1; i <= end; i++ {
		c := 100.0 + float64(i%7)
		bars = append(bars, model.Bar{
			Symbol:    symbol,
			Timeframe: tf,
			TS:        base.Add(time.Duration(i) * tf.Duration()),
			Open:      c,
			High:      c + 0.5,
			Low:       c - 0.5,
			Close:     c,
		})
	}
	return bars, nil
}

// recordSink captures emitted updates.
type recordSink struct {
	mu      sync.Mutex
	updates []model.StreamUpdate
}

func (r *recordSink) Emit(_ context.Context, update model.StreamUpdate) {
	r.mu.Lock()
	r.updates = append(r.updates, update)
	r.mu.Unlock()
}

func (r *recordSink) snapshot() []model.StreamUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.StreamUpdate(nil), r.updates...)
}

func (r *recordSink) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.updates)
}

func testConfig() Config {
	return Config{
		PollInterval: 5 * time.Millisecond,
		RefreshBars:  3,
		Indicators:   indicator.Config{SMAPeriod: 3, RSIPeriod: 3, MACDFast: 2, MACDSlow: 3, MACDSignal: 2},
		Thresholds:   signal.DefaultThresholds(),
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func TestSession_UnknownSymbolFailsBeforeEmission(t *testing.T) {
	src := newFakeSource()
	src.rejectAlways["NOPE"] = fetch.Permanent(errors.New("unknown symbol NOPE"))
	sink := &recordSink{}

	req := Request{Symbols: []string{"NOPE"}, Timeframe: model.TFH1, NumBars: 50}
	s := New("t1", req, testConfig(), fetch.NewRetrying(src, fetch.Policy{BackoffBase: time.Millisecond}), sink, testLogger())

	err := s.Run(context.Background())
	require.Error(t, err)

	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
	assert.Equal(t, StateFailed, s.State())
	assert.Zero(t, sink.len(), "nothing may be emitted before validation passes")
}

func TestSession_InvalidRequestFails(t *testing.T) {
	sink := &recordSink{}
	req := Request{Symbols: []string{"EURUSD"}, Timeframe: "X7", NumBars: 50}
	s := New("t2", req, testConfig(), newFakeSource(), sink, testLogger())

	err := s.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateFailed, s.State())
	assert.Zero(t, sink.len())
}

func TestSession_StreamsAndClosesOnCancel(t *testing.T) {
	src := newFakeSource()
	sink := &recordSink{}

	req := Request{Symbols: []string{"EURUSD"}, Timeframe: model.TFM1, NumBars: 20}
	s := New("t3", req, testConfig(), src, sink, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	waitFor(t, func() bool { return sink.len() >= 3 })
	assert.Equal(t, StateStreaming, s.State())
	cancel()

	require.NoError(t, <-done)
	assert.Equal(t, StateClosed, s.State())

	for _, u := range sink.snapshot() {
		assert.Equal(t, "t3", u.SessionID)
		assert.Equal(t, model.TFM1, u.Timeframe)
		rec, ok := u.Signals["EURUSD"]
		require.True(t, ok)
		require.NotNil(t, rec.Signal)
		assert.Empty(t, rec.Error)
		assert.Equal(t, "EURUSD", rec.Signal.Symbol)
		assert.Len(t, rec.Signal.Contributing, 3)
	}
}

func TestSession_PerSymbolFailureIsolation(t *testing.T) {
	src := newFakeSource()
	src.failAfterProbe["GBPUSD"] = fetch.Permanent(errors.New("feed revoked"))
	sink := &recordSink{}

	req := Request{Symbols: []string{"EURUSD", "GBPUSD"}, Timeframe: model.TFM1, NumBars: 20}
	s := New("t4", req, testConfig(), src, sink, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	waitFor(t, func() bool { return sink.len() >= 3 })
	cancel()
	require.NoError(t, <-done, "one healthy symbol keeps the session alive")

	updates := sink.snapshot()

	// The failing symbol reports exactly one error record, then disappears.
	errorRecords := 0
	for _, u := range updates {
		if rec, ok := u.Signals["GBPUSD"]; ok {
			require.NotEmpty(t, rec.Error)
			assert.Nil(t, rec.Signal)
			errorRecords++
		}
	}
	assert.Equal(t, 1, errorRecords)

	// The healthy symbol streams throughout.
	for _, u := range updates {
		if rec, ok := u.Signals["EURUSD"]; ok {
			require.NotNil(t, rec.Signal)
		}
	}
}

func TestSession_AllSymbolsFailedTerminates(t *testing.T) {
	src := newFakeSource()
	src.failAfterProbe["EURUSD"] = fetch.Permanent(errors.New("feed revoked"))
	sink := &recordSink{}

	req := Request{Symbols: []string{"EURUSD"}, Timeframe: model.TFM1, NumBars: 20}
	s := New("t5", req, testConfig(), src, sink, testLogger())

	err := s.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateFailed, s.State())

	// The terminal error was still reported to the subscriber first.
	updates := sink.snapshot()
	require.NotEmpty(t, updates)
	rec := updates[len(updates)-1].Signals["EURUSD"]
	assert.NotEmpty(t, rec.Error)
}

func TestSession_StaleBarsSkipped(t *testing.T) {
	// RefreshBars overlaps the already-seen window; lastSeen filtering must
	// keep indicator state consistent without OnBarDrop firing.
	src := newFakeSource()
	sink := &recordSink{}

	req := Request{Symbols: []string{"EURUSD"}, Timeframe: model.TFM1, NumBars: 20}
	s := New("t6", req, testConfig(), src, sink, testLogger())

	drops := 0
	s.OnBarDrop = func(string) { drops++ }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	waitFor(t, func() bool { return sink.len() >= 4 })
	cancel()
	require.NoError(t, <-done)
	assert.Zero(t, drops, "overlapping refresh windows are filtered before the engine")
}

func TestParseRequest(t *testing.T) {
	req, err := ParseRequest("eurusd, gbpusd", "h1", 0, 100)
	require.NoError(t, err)
	assert.Equal(t, []string{"EURUSD", "GBPUSD"}, req.Symbols)
	assert.Equal(t, model.TFH1, req.Timeframe)
	assert.Equal(t, 100, req.NumBars, "zero num_bars selects the default")

	_, err = ParseRequest("EURUSD", "H7", 0, 100)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)

	_, err = ParseRequest("", "H1", 0, 100)
	require.Error(t, err, "at least one symbol required")

	_, err = ParseRequest("EURUSD", "H1", 5000, 100)
	require.Error(t, err, "num_bars above the cap rejected")

	_, err = ParseRequest("EUR/USD", "H1", 0, 100)
	require.Error(t, err, "non-alphanumeric symbol rejected")
}
