package graph

import (
	"context"

	"github.com/vk/framegrid/internal/ctxlog"
	"github.com/vk/framegrid/internal/plugin"
)

// Connect inserts target after prev. With nexts, target is spliced in
// between prev and each of nexts, which must currently be successors of
// prev; target takes the position of the first of them. Without nexts,
// target is appended, and becomes a branch when prev already had a
// successor. A target that is already attached is cloned first.
//
// On failure Connect returns a *ConnectionError and leaves the graph
// untouched.
func (m *Manager) Connect(ctx context.Context, prevName, targetName string, nexts []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	logger := ctxlog.FromContext(ctx)

	prev, ok := m.nodes[prevName]
	if !ok {
		return unknown(prevName, targetName)
	}
	target, ok := m.nodes[targetName]
	if !ok {
		return unknown(prevName, targetName)
	}
	succ, err := m.lookupAll(targetName, nexts)
	if err != nil {
		return err
	}

	if err := checkAttach(prev, target); err != nil {
		logger.Debug("Connect rejected.", "error", err)
		return err
	}
	if err := checkSuccessors(prev, target, succ); err != nil {
		logger.Debug("Connect rejected.", "error", err)
		return err
	}
	needClone, err := m.placement(prev, target)
	if err != nil {
		logger.Debug("Connect rejected.", "error", err)
		return err
	}
	if !needClone && (target == prev || reaches(target, prev)) {
		return &ConnectionError{From: prevName, To: targetName, Reason: ReasonCycle}
	}

	if needClone {
		if target, err = m.clone(ctx, target); err != nil {
			return err
		}
	}

	idx, inherited := -1, 0
	for i, c := range prev.next {
		if containsNode(succ, c) {
			idx, inherited = i, m.cadence.Get(prev.name, c.name)
			break
		}
	}
	succ = inOrder(prev.next, succ)
	for _, s := range succ {
		prev.removeNext(s)
		m.cadence.MoveSource(prev.name, s.name, target.name)
		s.prev = target
		target.next = append(target.next, s)
	}
	prev.insertNext(idx, target)
	target.prev = prev

	switch {
	case inherited > 0:
		m.cadence.Set(prev.name, target.name, inherited)
	case len(succ) == 0 && len(prev.next) > 1:
		m.cadence.Set(prev.name, target.name, 1)
	}

	m.settle(prev, append([]*Node{prev, target}, succ...)...)
	logger.Info("Nodes connected.", "edge", prev.name+"->"+target.name, "successors", len(succ))
	return nil
}

// Replace swaps old for new below prev; an empty prev replaces the root.
// new takes old's position and adopts nexts, which must be successors of
// old. old's remaining successors are detached, and old is left detached.
func (m *Manager) Replace(ctx context.Context, prevName, oldName, newName string, nexts []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	logger := ctxlog.FromContext(ctx)

	old, ok := m.nodes[oldName]
	if !ok {
		return unknown(prevName, oldName)
	}
	nw, ok := m.nodes[newName]
	if !ok {
		return unknown(prevName, newName)
	}
	var prev *Node
	if prevName == "" {
		if m.root != old {
			return &ConnectionError{From: prevName, To: oldName, Reason: ReasonNotSuccessor}
		}
	} else {
		if prev, ok = m.nodes[prevName]; !ok {
			return unknown(prevName, oldName)
		}
		if prev.indexOf(old) < 0 {
			return &ConnectionError{From: prevName, To: oldName, Reason: ReasonNotSuccessor}
		}
		if err := checkAttach(prev, nw); err != nil {
			logger.Debug("Replace rejected.", "error", err)
			return err
		}
	}
	succ, err := m.lookupAll(newName, nexts)
	if err != nil {
		return err
	}
	if err := checkSuccessors(old, nw, succ); err != nil {
		logger.Debug("Replace rejected.", "error", err)
		return err
	}
	needClone, err := m.placement(prev, nw)
	if err != nil {
		logger.Debug("Replace rejected.", "error", err)
		return err
	}
	if !needClone && prev != nil && (nw == prev || reaches(nw, prev)) {
		return &ConnectionError{From: prevName, To: newName, Reason: ReasonCycle}
	}

	if needClone {
		if nw, err = m.clone(ctx, nw); err != nil {
			return err
		}
	}

	if prev != nil {
		prev.next[prev.indexOf(old)] = nw
		nw.prev = prev
	} else {
		m.root = nw
	}
	old.prev = nil

	succ = inOrder(old.next, succ)
	for _, s := range succ {
		old.removeNext(s)
		s.prev = nw
		nw.next = append(nw.next, s)
	}
	for _, c := range old.next {
		m.cadence.Delete(old.name, c.name)
		m.detach(c)
	}
	old.next = nil

	m.cadence.RenameSource(old.name, nw.name)
	if prev != nil {
		m.cadence.RenameDestinationFrom(prev.name, old.name, nw.name)
	}

	top := prev
	if top == nil {
		top = nw
	}
	m.settle(top, append([]*Node{prev, nw}, succ...)...)
	m.settle(old, old)
	logger.Info("Node replaced.", "old", old.name, "new", nw.name, "prev", prevName)
	return nil
}

// DisconnectAll removes every outgoing edge of name and detaches the
// subtrees below it.
func (m *Manager) DisconnectAll(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[name]
	if !ok {
		return unknown(name, "")
	}
	for _, c := range n.next {
		m.cadence.Delete(n.name, c.name)
		m.detach(c)
	}
	n.next = nil
	m.settle(n, n)
	ctxlog.FromContext(ctx).Info("Node disconnected.", "node", name)
	return nil
}

// Disconnect removes the edge name->branch and detaches the subtree below
// branch.
func (m *Manager) Disconnect(ctx context.Context, name, branch string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[name]
	if !ok {
		return unknown(name, branch)
	}
	b, ok := m.nodes[branch]
	if !ok {
		return unknown(name, branch)
	}
	if n.removeNext(b) < 0 {
		return &ConnectionError{From: name, To: branch, Reason: ReasonNotSuccessor}
	}
	m.cadence.Delete(n.name, b.name)
	m.detach(b)
	m.settle(n, n)
	ctxlog.FromContext(ctx).Info("Edge removed.", "edge", name+"->"+branch)
	return nil
}

// detach cuts n loose and recursively dissolves its subtree.
func (m *Manager) detach(n *Node) {
	for _, c := range n.next {
		m.cadence.Delete(n.name, c.name)
		m.detach(c)
	}
	n.next = nil
	n.prev = nil
	n.outputs.SetAll(true)
}

// settle recomputes availability of touched and re-resolves every active
// output below top.
func (m *Manager) settle(top *Node, touched ...*Node) {
	for _, n := range touched {
		if n != nil {
			m.updateAvailability(n)
		}
	}
	m.resolveSubtree(top)
}

func (m *Manager) resolveSubtree(n *Node) {
	m.resolveActive(n)
	for _, c := range n.next {
		m.resolveSubtree(c)
	}
}

func (m *Manager) lookupAll(from string, names []string) ([]*Node, error) {
	out := make([]*Node, 0, len(names))
	for _, name := range names {
		n, ok := m.nodes[name]
		if !ok {
			return nil, unknown(from, name)
		}
		if !containsNode(out, n) {
			out = append(out, n)
		}
	}
	return out, nil
}

// checkAttach validates the edge from->to on formats alone.
func checkAttach(from, to *Node) error {
	if len(from.outputs) == 0 {
		return &ConnectionError{From: from.name, To: to.name, Reason: ReasonTerminalNode}
	}
	if !to.inputs.Intersects(from.outputs.Formats()) {
		return &ConnectionError{From: from.name, To: to.name, Reason: ReasonIncompatibleInput}
	}
	return nil
}

// checkSuccessors validates that every node of succ is a successor of
// parent and accepts some output of to.
func checkSuccessors(parent, to *Node, succ []*Node) error {
	for _, s := range succ {
		if parent.indexOf(s) < 0 {
			return &ConnectionError{From: parent.name, To: s.name, Reason: ReasonNotSuccessor}
		}
		if len(to.outputs) == 0 {
			return &ConnectionError{From: to.name, To: s.name, Reason: ReasonTerminalNode}
		}
		if !s.inputs.Intersects(to.outputs.Formats()) {
			return &ConnectionError{From: to.name, To: s.name, Reason: ReasonIncompatibleSuccessor}
		}
	}
	return nil
}

// placement reports whether n must be cloned before it can be attached
// below prev.
func (m *Manager) placement(prev, n *Node) (bool, error) {
	if !n.attached(m.root) {
		return false, nil
	}
	from := ""
	if prev != nil {
		from = prev.name
	}
	if n.category == plugin.Source {
		return false, &ConnectionError{From: from, To: n.name, Reason: ReasonSourceInUse}
	}
	if err := cloneable(n); err != nil {
		return false, &ConnectionError{From: from, To: n.name, Reason: ReasonInUse}
	}
	return true, nil
}

// reaches reports whether to is reachable from from along outgoing edges.
func reaches(from, to *Node) bool {
	visited := make(map[*Node]bool)
	var visit func(n *Node) bool
	visit = func(n *Node) bool {
		if n == to {
			return true
		}
		if visited[n] {
			return false
		}
		visited[n] = true
		for _, c := range n.next {
			if visit(c) {
				return true
			}
		}
		return false
	}
	return visit(from)
}

// inOrder returns the members of subset in the order they appear in all.
func inOrder(all, subset []*Node) []*Node {
	out := make([]*Node, 0, len(subset))
	for _, n := range all {
		if containsNode(subset, n) {
			out = append(out, n)
		}
	}
	return out
}

func containsNode(nodes []*Node, n *Node) bool {
	for _, c := range nodes {
		if c == n {
			return true
		}
	}
	return false
}
