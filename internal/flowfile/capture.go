package flowfile

import (
	"fmt"

	"github.com/vk/framegrid/internal/graph"
)

// Capture describes the tree below the manager's root.
func Capture(m *graph.Manager) (*Flow, error) {
	root := m.Root()
	if root == nil {
		return nil, fmt.Errorf("capturing flow: %w", graph.ErrUnknownNode)
	}

	f := &Flow{Main: MainFlow{Root: root.Name(), RootClone: root.IsClone()}}
	inTree := map[string]bool{}
	var order []*graph.Node

	var branchEdges [][2]*graph.Node
	chain := func(start *graph.Node) []Link {
		var links []Link
		for n := start; n != nil; {
			inTree[n.Name()] = true
			order = append(order, n)
			primary, branches := m.Split(n)
			for _, b := range branches {
				branchEdges = append(branchEdges, [2]*graph.Node{n, b})
			}
			if primary == nil {
				break
			}
			links = append(links, link(n, primary))
			n = primary
		}
		return links
	}

	f.Main.Links = chain(root)
	for len(branchEdges) > 0 {
		edge := branchEdges[0]
		branchEdges = branchEdges[1:]
		sub := SubFlow{Links: []Link{link(edge[0], edge[1])}}
		sub.Links = append(sub.Links, chain(edge[1])...)
		f.Sub = append(f.Sub, sub)
	}

	for _, n := range order {
		s := NodeSettings{Name: n.Name(), Clone: n.IsClone(), ActiveOutput: n.ActiveFormat().String()}
		s.Lines = n.Plugin().ExportSettings()
		if s.Lines == nil {
			s.Lines = []string{}
		}
		f.Settings = append(f.Settings, s)
	}

	for _, e := range m.Cadence().Entries() {
		if inTree[e.Src] && inTree[e.Dst] {
			f.Cycles = append(f.Cycles, Cycle{Src: e.Src, Dst: e.Dst, Every: e.N})
		}
	}
	return f, nil
}

func link(from, to *graph.Node) Link {
	return Link{Node: from.Name(), Clone: from.IsClone(), Next: to.Name(), NextClone: to.IsClone()}
}
