package scheduler

import (
	"context"

	"github.com/vk/framegrid/internal/cadence"
	"github.com/vk/framegrid/internal/graph"
)

// Graph is the view of the graph manager the scheduler needs to build and
// drive a run.
//
// The scheduler never mutates the graph. It reads the topology once at
// Start to build the task tree and afterwards only touches the nodes it
// was handed: their plugins and their duration averages.
//
// *graph.Manager implements Graph.
type Graph interface {
	// CheckExecutable verifies the tree below root before anything runs.
	CheckExecutable(ctx context.Context, root string) error
	// Root returns the current entry node, or nil.
	Root() *graph.Node
	// Node looks a node up by name.
	Node(name string) (*graph.Node, bool)
	// Split separates the successors of a node into the primary one and
	// the branches.
	Split(n *graph.Node) (primary *graph.Node, branches []*graph.Node)
	// MainChain follows primary edges from start.
	MainChain(start *graph.Node) []*graph.Node
	// Cadence returns the live cadence table.
	Cadence() *cadence.Table
}

var _ Graph = (*graph.Manager)(nil)
