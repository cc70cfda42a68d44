package graph

import (
	"context"

	"github.com/vk/framegrid/internal/ctxlog"
	"github.com/vk/framegrid/internal/port"
)

// CheckExecutable walks the tree below rootName breadth first and verifies
// every edge: the target must accept the source's active output format,
// and a target that can produce something from it must have an active
// output that follows from that format and is available. An empty
// rootName checks the current root.
func (m *Manager) CheckExecutable(ctx context.Context, rootName string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	logger := ctxlog.FromContext(ctx)

	root := m.root
	if rootName != "" {
		var ok bool
		if root, ok = m.nodes[rootName]; !ok {
			return unknown("", rootName)
		}
	}
	if root == nil {
		return unknown("", "<root>")
	}

	queue := []*Node{root}
	visited := map[*Node]bool{root: true}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		format := u.ActiveFormat()
		for _, v := range u.next {
			if err := checkEdge(u, v, format); err != nil {
				logger.Error("Graph is not executable.", "edge", u.name+"->"+v.name, "error", err)
				return err
			}
			if !visited[v] {
				visited[v] = true
				queue = append(queue, v)
			}
		}
	}
	logger.Debug("Graph is executable.", "root", root.name)
	return nil
}

func checkEdge(u, v *Node, format port.Format) error {
	if !v.inputs.Has(format) {
		return &ConnectionError{From: u.name, To: v.name, Reason: ReasonFormatMismatch}
	}
	if len(v.outputs) == 0 {
		return nil
	}
	candidates := candidatesFor(v, format)
	active := v.ActiveFormat()
	if len(candidates) == 0 || !port.Contains(candidates, active) || !v.outputs[v.active].Available() {
		return &PortAvailabilityConflict{From: u.name, To: v.name, Format: format, Active: active, Candidates: candidates}
	}
	return nil
}
