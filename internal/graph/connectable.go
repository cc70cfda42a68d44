package graph

import (
	"sort"

	"github.com/vk/framegrid/internal/port"
)

// GetConnectableNames lists, sorted, every non-clone node other than prev
// whose inputs accept some output of prev and, when nexts are given, whose
// outputs are accepted by every one of them.
func (m *Manager) GetConnectableNames(prevName string, nexts ...string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	prev, ok := m.nodes[prevName]
	if !ok {
		return nil, unknown(prevName, "")
	}
	succ, err := m.lookupAll(prevName, nexts)
	if err != nil {
		return nil, err
	}
	prevOut := prev.outputs.Formats()

	var names []string
	for _, n := range m.nodes {
		if n.clone || n == prev || !n.inputs.Intersects(prevOut) {
			continue
		}
		if !acceptsAll(n.outputs, succ) {
			continue
		}
		names = append(names, n.name)
	}
	sort.Strings(names)
	return names, nil
}

func acceptsAll(outputs port.Specs, succ []*Node) bool {
	for _, s := range succ {
		if !s.inputs.Intersects(outputs.Formats()) {
			return false
		}
	}
	return true
}
