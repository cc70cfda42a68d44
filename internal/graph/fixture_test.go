package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/framegrid/internal/manifest"
	"github.com/vk/framegrid/internal/plugin"
	"github.com/vk/framegrid/internal/port"
	"github.com/vk/framegrid/internal/testutil"
)

type fixture struct {
	t         *testing.T
	ctx       context.Context
	m         *Manager
	factories map[string]*testutil.FakeFactory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx, _ := testutil.LogContext(t)
	f := &fixture{t: t, ctx: ctx, factories: make(map[string]*testutil.FakeFactory)}

	add := func(name string, cat plugin.Category, spec testutil.FakeSpec) {
		f.factories[name] = testutil.NewFakeFactory(name, cat, spec)
	}
	add("src", plugin.Source, testutil.FakeSpec{Out: []port.Format{port.RGB24, port.Gray8}, Dest: true})
	add("yuvsrc", plugin.Source, testutil.FakeSpec{Out: []port.Format{port.YUYV}})
	add("conv", plugin.Transform, testutil.FakeSpec{
		In:  []port.Format{port.YUYV, port.RGB24},
		Out: []port.Format{port.RGB24, port.Gray8},
		Relations: port.Relations{
			{Input: port.YUYV, Output: port.RGB24},
			{Input: port.YUYV, Output: port.Gray8},
			{Input: port.RGB24, Output: port.Gray8},
		},
		Dest:      true,
		Cloneable: true,
	})
	add("inv", plugin.Transform, testutil.FakeSpec{
		In:  []port.Format{port.Gray8, port.RGB24},
		Out: []port.Format{port.Gray8, port.RGB24},
		Relations: port.Relations{
			{Input: port.Gray8, Output: port.Gray8},
			{Input: port.RGB24, Output: port.RGB24},
		},
		Settings:  []string{"gain=2"},
		Cloneable: true,
	})
	add("graysink", plugin.Sink, testutil.FakeSpec{In: []port.Format{port.Gray8}, Cloneable: true})
	add("rgbsink", plugin.Sink, testutil.FakeSpec{In: []port.Format{port.RGB24}, Cloneable: true})
	add("solo", plugin.Sink, testutil.FakeSpec{In: []port.Format{port.Gray8}})
	add("future", plugin.Sink, testutil.FakeSpec{In: []port.Format{port.Gray8}, Version: 9})

	reg := plugin.NewRegistry()
	for _, ff := range f.factories {
		reg.Register(ff.Factory)
	}
	f.m = New(reg, Options{})
	return f
}

// load loads implementation impl under label and returns the node name.
func (f *fixture) load(label, impl string) string {
	f.t.Helper()
	ff, ok := f.factories[impl]
	require.True(f.t, ok, "unknown fake %s", impl)
	name, err := f.m.Load(f.ctx, manifest.Plugin{Label: label, Implementation: impl, Category: ff.Category})
	require.NoError(f.t, err)
	return name
}

func (f *fixture) node(name string) *Node {
	f.t.Helper()
	n, ok := f.m.Node(name)
	require.True(f.t, ok, "node %s not found", name)
	return n
}

func (f *fixture) connect(prev, target string, nexts ...string) {
	f.t.Helper()
	require.NoError(f.t, f.m.Connect(f.ctx, prev, target, nexts))
}

func names(nodes []*Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Name())
	}
	return out
}

// shape renders the edges below n as "a->b" strings, depth first.
func shape(m *Manager, n *Node) []string {
	var out []string
	for _, c := range m.Next(n) {
		out = append(out, n.Name()+"->"+c.Name())
		out = append(out, shape(m, c)...)
	}
	return out
}
