package gateway

import "sync"

// replayEntry holds one emitted envelope for gap backfill.
type replayEntry struct {
	Seq  int64
	Data []byte
}

// ReplayBuffer is a fixed-size ring of recent envelopes for one session
// channel. A reconnecting client asks /api/v1/missed for the seq range it
// did not see and gets the buffered envelopes back in order.
//
// Safe for concurrent use.
type ReplayBuffer struct {
	mu   sync.RWMutex
	ring []replayEntry
	size int
	next int // next write slot
	full bool
}

// NewReplayBuffer creates a buffer holding up to capacity envelopes.
func NewReplayBuffer(capacity int) *ReplayBuffer {
	if capacity <= 0 {
		capacity = 256
	}
	return &ReplayBuffer{
		ring: make([]replayEntry, capacity),
		size: capacity,
	}
}

// Push stores an envelope, evicting the oldest when full. The data is
// copied so the caller may reuse its slice.
func (rb *ReplayBuffer) Push(seq int64, data []byte) {
	cp := make([]byte, len(data))
	copy(cp, data)

	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.ring[rb.next] = replayEntry{Seq: seq, Data: cp}
	rb.next = (rb.next + 1) % rb.size
	if rb.next == 0 {
		rb.full = true
	}
}

// Range returns buffered entries with seq in [fromSeq, toSeq], oldest first.
func (rb *ReplayBuffer) Range(fromSeq, toSeq int64) []replayEntry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	var out []replayEntry
	n := rb.count()
	for i := 0; i < n; i++ {
		e := rb.ring[rb.physical(i)]
		if e.Seq >= fromSeq && e.Seq <= toSeq {
			out = append(out, e)
		}
	}
	return out
}

// OldestSeq returns the smallest buffered seq, or 0 when empty.
func (rb *ReplayBuffer) OldestSeq() int64 {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	if rb.count() == 0 {
		return 0
	}
	return rb.ring[rb.physical(0)].Seq
}

// Len returns the number of buffered entries.
func (rb *ReplayBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count()
}

func (rb *ReplayBuffer) count() int {
	if rb.full {
		return rb.size
	}
	return rb.next
}

// physical maps a logical index (0 = oldest) to a ring slot.
func (rb *ReplayBuffer) physical(logical int) int {
	if rb.full {
		return (rb.next + logical) % rb.size
	}
	return logical
}
