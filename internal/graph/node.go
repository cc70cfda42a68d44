package graph

import (
	"sync/atomic"
	"time"

	"github.com/vk/framegrid/internal/plugin"
	"github.com/vk/framegrid/internal/port"
)

// Node is one plugin instance in the graph.
type Node struct {
	name        string
	base        string
	description string
	category    plugin.Category
	factory     *plugin.Factory
	plugin      plugin.Plugin

	inputs    port.Specs
	outputs   port.Specs
	relations port.Relations
	active    int // -1 when the node has no outputs

	prev *Node
	next []*Node

	clone  bool
	origin string

	avgNanos atomic.Int64
}

func newNode(name, base, description string, f *plugin.Factory, p plugin.Plugin) *Node {
	n := &Node{
		name:        name,
		base:        base,
		description: description,
		category:    f.Category,
		factory:     f,
		plugin:      p,
		inputs:      port.DeclareAll(p.InputFormats()),
		outputs:     port.DeclareAll(p.OutputFormats()),
		relations:   plugin.RelationsOf(p),
		active:      -1,
	}
	if n.description == "" {
		n.description = plugin.DescriptionOf(p)
	}
	if len(n.outputs) > 0 {
		n.active = 0
	}
	return n
}

func (n *Node) Name() string                { return n.name }
func (n *Node) Base() string                { return n.base }
func (n *Node) Description() string         { return n.description }
func (n *Node) Category() plugin.Category   { return n.category }
func (n *Node) Implementation() string      { return n.factory.Name }
func (n *Node) Version() int                { return n.factory.Version }
func (n *Node) Plugin() plugin.Plugin       { return n.plugin }
func (n *Node) Inputs() port.Specs          { return n.inputs }
func (n *Node) Outputs() port.Specs         { return n.outputs }
func (n *Node) Relations() port.Relations   { return n.relations }
func (n *Node) IsClone() bool               { return n.clone }
func (n *Node) UsesDestinationBuffer() bool { return n.plugin.UsesDestinationBuffer() }

// Origin is the name of the non-clone node this one was cloned from, or
// the node's own name.
func (n *Node) Origin() string {
	if n.clone {
		return n.origin
	}
	return n.name
}

// ActiveOutput returns the index of the active output, -1 for sinks.
func (n *Node) ActiveOutput() int { return n.active }

// ActiveFormat returns the format of the active output, or "" for sinks.
func (n *Node) ActiveFormat() port.Format {
	if n.active < 0 || n.active >= len(n.outputs) {
		return ""
	}
	return n.outputs[n.active].Format()
}

// ObserveDuration feeds one processing time into the node's rolling
// average. Safe for concurrent use.
func (n *Node) ObserveDuration(d time.Duration) {
	for {
		old := n.avgNanos.Load()
		next := int64(d)
		if old != 0 {
			next = old + (int64(d)-old)/8
		}
		if n.avgNanos.CompareAndSwap(old, next) {
			return
		}
	}
}

// AverageDuration is the exponential moving average of processing time
// with smoothing factor 1/8.
func (n *Node) AverageDuration() time.Duration {
	return time.Duration(n.avgNanos.Load())
}

func (n *Node) attached(root *Node) bool {
	return n.prev != nil || n == root
}

func (n *Node) indexOf(child *Node) int {
	for i, c := range n.next {
		if c == child {
			return i
		}
	}
	return -1
}

func (n *Node) removeNext(child *Node) int {
	i := n.indexOf(child)
	if i >= 0 {
		n.next = append(n.next[:i:i], n.next[i+1:]...)
	}
	return i
}

func (n *Node) insertNext(i int, child *Node) {
	if i < 0 || i >= len(n.next) {
		n.next = append(n.next, child)
		return
	}
	n.next = append(n.next[:i], append([]*Node{child}, n.next[i:]...)...)
}
