package scheduler

import (
	"sync"
	"sync/atomic"

	"github.com/vk/framegrid/internal/frame"
)

// inbox is the single-slot hand-off from a parent chain to a branch.
type inbox struct {
	mu    sync.Mutex
	slot  frame.Frame
	fresh bool
	wake  chan struct{}

	released atomic.Uint64
	woken    atomic.Uint64
}

func newInbox() *inbox {
	return &inbox{wake: make(chan struct{}, 1)}
}

// put stores a full copy of f, replacing any frame not yet taken, and
// wakes the branch without blocking.
func (b *inbox) put(f *frame.Frame) {
	b.mu.Lock()
	b.slot.CopyFrom(f)
	b.fresh = true
	b.mu.Unlock()
	b.released.Add(1)
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// take copies the pending frame into dst. It reports false when nothing
// new arrived since the last take.
func (b *inbox) take(dst *frame.Frame) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.fresh {
		return false
	}
	dst.CopyFrom(&b.slot)
	b.fresh = false
	return true
}
