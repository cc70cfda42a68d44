package graph

import "github.com/vk/framegrid/internal/port"

// UpdateAvailability recomputes which outputs of name some successor
// accepts.
func (m *Manager) UpdateAvailability(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[name]
	if !ok {
		return unknown(name, "")
	}
	m.updateAvailability(n)
	m.resolveSubtree(n)
	return nil
}

// updateAvailability marks every output of a leaf available; otherwise an
// output is available iff some successor accepts its format.
func (m *Manager) updateAvailability(n *Node) {
	if len(n.next) == 0 {
		n.outputs.SetAll(true)
		return
	}
	for _, out := range n.outputs {
		accepted := false
		for _, c := range n.next {
			if c.inputs.Has(out.Format()) {
				accepted = true
				break
			}
		}
		out.SetAvailable(accepted)
	}
}

// resolveActive keeps the active output of n valid: it must follow from
// the incoming format under n's relations and should be available.
func (m *Manager) resolveActive(n *Node) {
	if len(n.outputs) == 0 {
		n.active = -1
		return
	}
	candidates := make([]int, 0, len(n.outputs))
	if n.relations.Constrained() && n.prev != nil {
		candidates = n.relations.Candidates(n.prev.ActiveFormat(), n.outputs)
	} else {
		for i := range n.outputs {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return
	}
	if n.active >= 0 && contains(candidates, n.active) && n.outputs[n.active].Available() {
		return
	}
	for _, i := range candidates {
		if n.outputs[i].Available() {
			n.active = i
			return
		}
	}
	if !contains(candidates, n.active) {
		n.active = candidates[0]
	}
}

func contains(idx []int, i int) bool {
	for _, v := range idx {
		if v == i {
			return true
		}
	}
	return false
}

// candidatesFor is the list of output formats n may produce from input.
func candidatesFor(n *Node, input port.Format) []port.Format {
	return n.relations.OutputsFor(input, n.outputs.Formats())
}
