package lint

import (
	"sync"

	"cortex/internal/types"
)

// recentRing is a fixed-capacity ring buffer of recently linted outputs.
// Push evicts the oldest entry in O(1); Snapshot returns entries oldest
// first. Reads tolerate staleness, writes are serialized.
type recentRing struct {
	mu    sync.RWMutex
	buf   []*types.Output
	head  int // next write position
	count int
}

func newRecentRing(capacity int) *recentRing {
	if capacity <= 0 {
		capacity = 1
	}
	return &recentRing{buf: make([]*types.Output, capacity)}
}

func (r *recentRing) Push(o *types.Output) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.head] = o
	r.head = (r.head + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

func (r *recentRing) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// Snapshot copies the live entries, oldest first.
func (r *recentRing) Snapshot() []*types.Output {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*types.Output, 0, r.count)
	start := r.head - r.count
	if start < 0 {
		start += len(r.buf)
	}
	for i := 0; i < r.count; i++ {
		out = append(out, r.buf[(start+i)%len(r.buf)])
	}
	return out
}
