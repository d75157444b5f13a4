package testutil

import "sync"

// ClusterClock provides a thread-safe deterministic millisecond clock for
// tests. It stands in for the consensus-supplied cluster time: commands
// applied at the same ClusterClock readings produce identical state on
// every run.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type ClusterClock struct {
	mu    sync.Mutex
	nowMs int64
}

// NewClusterClock creates a clock starting at startMs.
func NewClusterClock(startMs int64) *ClusterClock {
	return &ClusterClock{nowMs: startMs}
}

// NowMs returns the current cluster time without advancing it.
func (c *ClusterClock) NowMs() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nowMs
}

// Advance moves the clock forward by deltaMs and returns the new time.
// Time never moves backward; a negative delta is ignored.
func (c *ClusterClock) Advance(deltaMs int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if deltaMs > 0 {
		c.nowMs += deltaMs
	}
	return c.nowMs
}

// Set jumps the clock to nowMs if that is not in the past.
func (c *ClusterClock) Set(nowMs int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if nowMs > c.nowMs {
		c.nowMs = nowMs
	}
}
