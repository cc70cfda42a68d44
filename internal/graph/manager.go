package graph

import (
	"context"
	"fmt"
	"sync"

	"github.com/vk/framegrid/internal/cadence"
	"github.com/vk/framegrid/internal/ctxlog"
	"github.com/vk/framegrid/internal/plugin"
)

// Options bounds the plugin interface versions the manager accepts.
type Options struct {
	MinVersion int
	MaxVersion int
}

func (o Options) withDefaults() Options {
	if o.MinVersion <= 0 {
		o.MinVersion = 1
	}
	if o.MaxVersion <= 0 {
		o.MaxVersion = plugin.APIVersion
	}
	return o
}

// Manager exclusively owns the nodes and edges of one pipeline graph.
type Manager struct {
	mu       sync.RWMutex
	registry *plugin.Registry
	opts     Options

	nodes   map[string]*Node
	order   []string
	root    *Node
	cadence *cadence.Table
	// clones holds the last clone index handed out per origin.
	clones map[string]int
}

// New creates an empty manager resolving implementations through reg.
func New(reg *plugin.Registry, opts Options) *Manager {
	return &Manager{
		registry: reg,
		opts:     opts.withDefaults(),
		nodes:    make(map[string]*Node),
		cadence:  cadence.New(),
		clones:   make(map[string]int),
	}
}

// Registry returns the registry the manager instantiates from.
func (m *Manager) Registry() *plugin.Registry { return m.registry }

// Cadence returns the cadence table of the graph.
func (m *Manager) Cadence() *cadence.Table { return m.cadence }

// Node looks up a node by name.
func (m *Manager) Node(name string) (*Node, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[name]
	return n, ok
}

// Nodes returns every node in load order.
func (m *Manager) Nodes() []*Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Node, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.nodes[name])
	}
	return out
}

// Root returns the entry node, or nil.
func (m *Manager) Root() *Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.root
}

// SetRoot makes name the entry node. The node must not have a predecessor.
func (m *Manager) SetRoot(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[name]
	if !ok {
		return unknown("", name)
	}
	if n.prev != nil {
		return &ConnectionError{From: n.prev.name, To: name, Reason: ReasonInUse}
	}
	m.root = n
	ctxlog.FromContext(ctx).Debug("Root set.", "node", name)
	return nil
}

// Next returns a snapshot of the ordered successors of n.
func (m *Manager) Next(n *Node) []*Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*Node(nil), n.next...)
}

// Prev returns the predecessor of n, or nil.
func (m *Manager) Prev(n *Node) *Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return n.prev
}

// Split separates the successors of n into the one carrying the main flow
// and the branches. The first successor without a cadence entry is
// primary; when every successor has one, the first successor is.
func (m *Manager) Split(n *Node) (primary *Node, branches []*Node) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.split(n)
}

func (m *Manager) split(n *Node) (*Node, []*Node) {
	if len(n.next) == 0 {
		return nil, nil
	}
	pi := 0
	for i, c := range n.next {
		if !m.cadence.Has(n.name, c.name) {
			pi = i
			break
		}
	}
	branches := make([]*Node, 0, len(n.next)-1)
	for i, c := range n.next {
		if i != pi {
			branches = append(branches, c)
		}
	}
	return n.next[pi], branches
}

// MainChain returns the nodes of the main flow starting at start.
func (m *Manager) MainChain(start *Node) []*Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var chain []*Node
	for n := start; n != nil; n, _ = m.split(n) {
		chain = append(chain, n)
	}
	return chain
}

// SetActiveOutput selects output idx of name.
func (m *Manager) SetActiveOutput(ctx context.Context, name string, idx int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[name]
	if !ok {
		return fmt.Errorf("set active output of %s: %w", name, ErrUnknownNode)
	}
	if idx < 0 || idx >= len(n.outputs) {
		return fmt.Errorf("set active output of %s: index %d out of range [0,%d)", name, idx, len(n.outputs))
	}
	n.active = idx
	for _, c := range n.next {
		m.resolveSubtree(c)
	}
	ctxlog.FromContext(ctx).Debug("Active output set.", "node", name, "format", n.ActiveFormat())
	return nil
}

// SetCycle sets the cadence of the existing edge src->dst.
func (m *Manager) SetCycle(ctx context.Context, src, dst string, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.nodes[src]
	if !ok {
		return unknown(src, dst)
	}
	d, ok := m.nodes[dst]
	if !ok {
		return unknown(src, dst)
	}
	if s.indexOf(d) < 0 {
		return &ConnectionError{From: src, To: dst, Reason: ReasonNotSuccessor}
	}
	m.cadence.Set(src, dst, n)
	ctxlog.FromContext(ctx).Debug("Cadence set.", "edge", src+"->"+dst, "every", m.cadence.Get(src, dst))
	return nil
}

func (m *Manager) add(n *Node) {
	m.nodes[n.name] = n
	m.order = append(m.order, n.name)
}

func (m *Manager) remove(n *Node) {
	delete(m.nodes, n.name)
	for i, name := range m.order {
		if name == n.name {
			m.order = append(m.order[:i:i], m.order[i+1:]...)
			break
		}
	}
}

// ImportSettings hands settings lines to the plugin of name.
func (m *Manager) ImportSettings(ctx context.Context, name string, lines []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[name]
	if !ok {
		return fmt.Errorf("import settings into %s: %w", name, ErrUnknownNode)
	}
	if err := n.plugin.ImportSettings(lines); err != nil {
		return fmt.Errorf("import settings into %s: %w", name, err)
	}
	ctxlog.FromContext(ctx).Debug("Settings imported.", "node", name, "lines", len(lines))
	return nil
}
