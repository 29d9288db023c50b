package gateway

import (
	"math"
	"sort"
	"sync"
)

// LatencyTracker keeps a sliding window of bar-to-emit latency samples and
// reports p50/p95/p99 over the window. Safe for concurrent use.
type LatencyTracker struct {
	mu      sync.Mutex
	window  []float64 // ms
	pos     int
	count   int
	size    int
	maxSeen float64
}

// NewLatencyTracker creates a tracker over the last `capacity` samples.
func NewLatencyTracker(capacity int) *LatencyTracker {
	if capacity <= 0 {
		capacity = 10000
	}
	return &LatencyTracker{
		window: make([]float64, capacity),
		size:   capacity,
	}
}

// Record adds one latency sample in milliseconds.
func (lt *LatencyTracker) Record(ms float64) {
	lt.mu.Lock()
	lt.window[lt.pos] = ms
	lt.pos = (lt.pos + 1) % lt.size
	if lt.count < lt.size {
		lt.count++
	}
	if ms > lt.maxSeen {
		lt.maxSeen = ms
	}
	lt.mu.Unlock()
}

// Percentiles returns p50, p95 and p99 in milliseconds, or zeros when no
// sample has been recorded yet.
func (lt *LatencyTracker) Percentiles() (p50, p95, p99 float64) {
	lt.mu.Lock()
	n := lt.count
	if n == 0 {
		lt.mu.Unlock()
		return 0, 0, 0
	}

	sorted := make([]float64, n)
	if n == lt.size {
		copy(sorted, lt.window[lt.pos:])
		copy(sorted[lt.size-lt.pos:], lt.window[:lt.pos])
	} else {
		copy(sorted, lt.window[:n])
	}
	lt.mu.Unlock()

	sort.Float64s(sorted)
	return quantile(sorted, 0.50), quantile(sorted, 0.95), quantile(sorted, 0.99)
}

// Max returns the largest sample ever recorded.
func (lt *LatencyTracker) Max() float64 {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	return lt.maxSeen
}

// Count returns the number of samples in the window.
func (lt *LatencyTracker) Count() int {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	return lt.count
}

// quantile interpolates the q-th quantile (0..1) of a sorted slice.
func quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	rank := q * float64(n-1)
	lo := int(math.Floor(rank))
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
