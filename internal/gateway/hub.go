// Package gateway is the WebSocket boundary of the signal engine. Each
// connection on /ws/signal gets its own streaming session; the hub tracks
// connected clients, the latest signal per (symbol, timeframe), and a
// per-session replay buffer for gap backfill.
package gateway

import (
	"log"
	"strconv"
	"sync"
	"time"

	"signal-enginev1/internal/model"
)

// latestEntry is the cached most-recent signal for one symbol@timeframe.
type latestEntry struct {
	Data []byte
	TS   time.Time
}

// Hub manages WebSocket clients and emission bookkeeping. Sessions write
// through per-client sinks; the hub only owns the shared caches.
type Hub struct {
	mu          sync.RWMutex
	clients     map[*Client]bool
	latest      map[string]latestEntry   // symbol@tf to last signal JSON
	channelSeqs map[string]int64         // session channel to seq
	replayBufs  map[string]*ReplayBuffer // session channel to recent envelopes

	// Latency tracks bar-timestamp-to-emit latency across all sessions.
	Latency *LatencyTracker
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients:     make(map[*Client]bool),
		latest:      make(map[string]latestEntry),
		channelSeqs: make(map[string]int64),
		replayBufs:  make(map[string]*ReplayBuffer),
		Latency:     NewLatencyTracker(10000),
	}
}

// Register adds a connected client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	count := len(h.clients)
	h.mu.Unlock()
	log.Printf("[gateway] ws client connected (%d total)", count)
}

// RemoveClient removes a client and drops its replay buffer. The send
// channel is closed under the hub lock so Deliver, which sends under the
// same lock, can never race with the close.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	delete(h.replayBufs, c.channel)
	delete(h.channelSeqs, c.channel)
	count := len(h.clients)
	close(c.send)
	h.mu.Unlock()
	log.Printf("[gateway] ws client disconnected (%d total)", count)
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Deliver builds the envelope for one stream update and queues it on the
// client. Envelope JSON is hand-crafted on the hot path; the update
// payload itself is already encoded.
func (h *Hub) Deliver(c *Client, update model.StreamUpdate) {
	now := time.Now().UTC()
	data := update.JSON()

	// Record bar-to-emit latency against the freshest signal in the update.
	if h.Latency != nil {
		for _, rec := range update.Signals {
			if rec.Signal == nil {
				continue
			}
			if ms := float64(now.Sub(rec.Signal.TS).Microseconds()) / 1000.0; ms >= 0 {
				h.Latency.Record(ms)
			}
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	// Sessions keep running for a grace period after a disconnect (a fetch
	// with backoff can outlive the socket). A client no longer registered
	// has a closed send channel; drop the update instead of touching it.
	if !h.clients[c] {
		return
	}

	for symbol, rec := range update.Signals {
		if rec.Signal != nil {
			h.latest[symbol+"@"+string(update.Timeframe)] = latestEntry{
				Data: rec.Signal.JSON(),
				TS:   rec.Signal.TS,
			}
		}
	}
	h.channelSeqs[c.channel]++
	seq := h.channelSeqs[c.channel]
	rb, ok := h.replayBufs[c.channel]
	if !ok {
		rb = NewReplayBuffer(256)
		h.replayBufs[c.channel] = rb
	}

	buf := make([]byte, 0, len(c.channel)+len(data)+96)
	buf = append(buf, `{"channel":"`...)
	buf = append(buf, c.channel...)
	buf = append(buf, `","data":`...)
	buf = append(buf, data...)
	buf = append(buf, `,"ts":"`...)
	buf = now.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	buf = append(buf, '}')

	rb.Push(seq, buf)

	select {
	case c.send <- buf:
	default:
		// client too slow, envelope stays available via the replay buffer
	}
}

// LatestAll returns a copy of the latest-signal cache.
func (h *Hub) LatestAll() map[string][]byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	cp := make(map[string][]byte, len(h.latest))
	for k, v := range h.latest {
		cp[k] = v.Data
	}
	return cp
}

// ReplayRange returns buffered envelopes for a session channel with seq
// in [fromSeq, toSeq], for the /api/v1/missed gap-backfill endpoint.
func (h *Hub) ReplayRange(channel string, fromSeq, toSeq int64) [][]byte {
	h.mu.RLock()
	rb, ok := h.replayBufs[channel]
	h.mu.RUnlock()
	if !ok {
		return nil
	}
	entries := rb.Range(fromSeq, toSeq)
	out := make([][]byte, len(entries))
	for i, e := range entries {
		out[i] = e.Data
	}
	return out
}
