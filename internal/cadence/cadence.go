// Package cadence holds the per-edge firing intervals of a pipeline graph.
//
// An entry (src, dst) -> n means the edge src->dst fires every n-th frame
// and marks that edge as a branch edge. An edge without an entry fires on
// every frame.
package cadence

import (
	"sort"
	"sync"
)

// Edge is a directed pair of node names.
type Edge struct {
	Src string
	Dst string
}

// Entry is a single table row.
type Entry struct {
	Edge
	N int
}

// Table is a concurrency-safe map from edge to cadence.
type Table struct {
	mu      sync.RWMutex
	entries map[Edge]int
}

// New creates an empty table.
func New() *Table {
	return &Table{entries: make(map[Edge]int)}
}

// Set records a cadence. n <= 0 is stored as 1.
func (t *Table) Set(src, dst string, n int) {
	if n <= 0 {
		n = 1
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[Edge{src, dst}] = n
}

// Get returns the cadence of src->dst, or 0 when the edge fires every frame
// without being a branch edge.
func (t *Table) Get(src, dst string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.entries[Edge{src, dst}]
}

// Has reports whether src->dst has an entry.
func (t *Table) Has(src, dst string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.entries[Edge{src, dst}]
	return ok
}

// Fires reports whether src->dst fires on the 1-based frame number.
func (t *Table) Fires(src, dst string, frame uint64) bool {
	return Due(t.Get(src, dst), frame)
}

// Due reports whether an edge with cadence every fires on the 1-based
// frame number.
func Due(every int, frame uint64) bool {
	return every <= 1 || frame%uint64(every) == 0
}

// Delete removes the entry for src->dst.
func (t *Table) Delete(src, dst string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, Edge{src, dst})
}

// DeleteAll removes every entry whose source is src.
func (t *Table) DeleteAll(src string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for e := range t.entries {
		if e.Src == src {
			delete(t.entries, e)
		}
	}
}

// RenameSource rewrites every entry leaving old to leave new.
func (t *Table) RenameSource(old, new string) {
	t.rename(func(e Edge) (Edge, bool) {
		if e.Src != old {
			return e, false
		}
		return Edge{new, e.Dst}, true
	})
}

// RenameDestination rewrites every entry entering old to enter new.
func (t *Table) RenameDestination(old, new string) {
	t.rename(func(e Edge) (Edge, bool) {
		if e.Dst != old {
			return e, false
		}
		return Edge{e.Src, new}, true
	})
}

// RenameDestinationFrom rewrites src->old into src->new.
func (t *Table) RenameDestinationFrom(src, old, new string) {
	t.rename(func(e Edge) (Edge, bool) {
		if e.Src != src || e.Dst != old {
			return e, false
		}
		return Edge{src, new}, true
	})
}

// MoveSource moves src->dst to newSrc->dst, keeping its cadence.
func (t *Table) MoveSource(src, dst, newSrc string) {
	t.rename(func(e Edge) (Edge, bool) {
		if e.Src != src || e.Dst != dst {
			return e, false
		}
		return Edge{newSrc, dst}, true
	})
}

func (t *Table) rename(fn func(Edge) (Edge, bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	moved := make(map[Edge]int)
	for e, n := range t.entries {
		if ne, ok := fn(e); ok {
			delete(t.entries, e)
			moved[ne] = n
		}
	}
	for e, n := range moved {
		t.entries[e] = n
	}
}

// Entries returns a snapshot of the table sorted by source then
// destination.
func (t *Table) Entries() []Entry {
	t.mu.RLock()
	out := make([]Entry, 0, len(t.entries))
	for e, n := range t.entries {
		out = append(out, Entry{Edge: e, N: n})
	}
	t.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Src != out[j].Src {
			return out[i].Src < out[j].Src
		}
		return out[i].Dst < out[j].Dst
	})
	return out
}

// Len returns the number of entries.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
