package graph

import (
	"context"
	"fmt"

	"github.com/vk/framegrid/internal/ctxlog"
	"github.com/vk/framegrid/internal/nodeid"
	"github.com/vk/framegrid/internal/plugin"
)

// Clone creates a detached copy of name from the same factory with the
// same settings and returns its name.
func (m *Manager) Clone(ctx context.Context, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[name]
	if !ok {
		return "", fmt.Errorf("clone %s: %w", name, ErrUnknownNode)
	}
	c, err := m.clone(ctx, n)
	if err != nil {
		return "", err
	}
	return c.name, nil
}

func cloneable(n *Node) error {
	if n.category == plugin.Source {
		return &CloneError{Node: n.name, Reason: "source nodes cannot be cloned"}
	}
	if !n.factory.Cloneable {
		return &CloneError{Node: n.name, Reason: "implementation does not allow several instances"}
	}
	return nil
}

func (m *Manager) clone(ctx context.Context, n *Node) (*Node, error) {
	if err := cloneable(n); err != nil {
		return nil, err
	}
	origin := n
	if n.clone {
		if o, ok := m.nodes[n.origin]; ok {
			origin = o
		}
	}
	id, err := nodeid.Parse(origin.name)
	if err != nil {
		return nil, &CloneError{Node: n.name, Reason: err.Error()}
	}

	p := n.factory.New()
	if err := p.ImportSettings(n.plugin.ExportSettings()); err != nil {
		n.factory.Destroy(p)
		return nil, &CloneError{Node: n.name, Reason: fmt.Sprintf("copying settings: %v", err)}
	}

	m.clones[origin.name]++
	name := id.WithClone(m.clones[origin.name]).String()
	c := newNode(name, origin.base, origin.description, n.factory, p)
	c.clone = true
	c.origin = origin.name
	if n.active >= 0 && n.active < len(c.outputs) {
		c.active = n.active
	}
	m.add(c)
	ctxlog.FromContext(ctx).Debug("Node cloned.", "node", name, "origin", origin.name)
	return c, nil
}

// Release destroys a detached clone through its factory destructor.
func (m *Manager) Release(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[name]
	if !ok {
		return fmt.Errorf("release %s: %w", name, ErrUnknownNode)
	}
	if !n.clone {
		return &CloneError{Node: name, Reason: "only clones can be released"}
	}
	if n.attached(m.root) || len(n.next) > 0 {
		return &CloneError{Node: name, Reason: "clone is still attached"}
	}
	m.remove(n)
	n.factory.Destroy(n.plugin)
	ctxlog.FromContext(ctx).Debug("Clone released.", "node", name)
	return nil
}
