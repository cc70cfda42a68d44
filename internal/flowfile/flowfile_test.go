package flowfile

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/framegrid/internal/graph"
	"github.com/vk/framegrid/internal/manifest"
	"github.com/vk/framegrid/internal/plugin"
	"github.com/vk/framegrid/internal/port"
	"github.com/vk/framegrid/internal/testutil"
)

// newManager loads src, inv and graysink into a fresh manager.
func newManager(t *testing.T, ctx context.Context) *graph.Manager {
	t.Helper()
	module := &testutil.SimpleModule{Factories: []*plugin.Factory{
		testutil.NewFakeFactory("src", plugin.Source, testutil.FakeSpec{Out: []port.Format{port.RGB24, port.Gray8}}).Factory,
		testutil.NewFakeFactory("inv", plugin.Transform, testutil.FakeSpec{
			In: []port.Format{port.Gray8}, Out: []port.Format{port.Gray8}, Cloneable: true,
		}).Factory,
		testutil.NewFakeFactory("graysink", plugin.Sink, testutil.FakeSpec{In: []port.Format{port.Gray8}, Cloneable: true}).Factory,
	}}
	reg := plugin.NewRegistry()
	module.Register(reg)
	m := graph.New(reg, graph.Options{})
	for _, p := range []manifest.Plugin{
		{Label: "src", Implementation: "src", Category: plugin.Source},
		{Label: "inv", Implementation: "inv", Category: plugin.Transform},
		{Label: "graysink", Implementation: "graysink", Category: plugin.Sink},
	} {
		_, err := m.Load(ctx, p)
		require.NoError(t, err)
	}
	return m
}

// buildBranched builds src -> inv -> graysink with a branch
// src -> inv[1] -> graysink[1] every 4th frame.
func buildBranched(t *testing.T, ctx context.Context, m *graph.Manager) {
	t.Helper()
	require.NoError(t, m.SetRoot(ctx, "src@v2"))
	require.NoError(t, m.SetActiveOutput(ctx, "src@v2", 1))
	require.NoError(t, m.Connect(ctx, "src@v2", "inv@v2", nil))
	require.NoError(t, m.Connect(ctx, "inv@v2", "graysink@v2", nil))
	clone, err := m.Clone(ctx, "inv@v2")
	require.NoError(t, err)
	require.NoError(t, m.Connect(ctx, "src@v2", clone, nil))
	require.NoError(t, m.Connect(ctx, clone, "graysink@v2", nil))
	require.NoError(t, m.SetCycle(ctx, "src@v2", clone, 4))
	require.NoError(t, m.ImportSettings(ctx, "inv@v2", []string{"gain=3"}))
	require.NoError(t, m.ImportSettings(ctx, clone, []string{"gain=5", "mode=soft"}))
}

func TestCapture(t *testing.T) {
	ctx, _ := testutil.LogContext(t)
	m := newManager(t, ctx)
	buildBranched(t, ctx, m)

	f, err := Capture(m)
	require.NoError(t, err)

	assert.Equal(t, "src@v2", f.Main.Root)
	assert.Equal(t, []Link{
		{Node: "src@v2", Next: "inv@v2"},
		{Node: "inv@v2", Next: "graysink@v2"},
	}, f.Main.Links)
	require.Len(t, f.Sub, 1)
	assert.Equal(t, []Link{
		{Node: "src@v2", Next: "inv@v2[1]", NextClone: true},
		{Node: "inv@v2[1]", Clone: true, Next: "graysink@v2[1]", NextClone: true},
	}, f.Sub[0].Links)
	assert.Equal(t, []Cycle{{Src: "src@v2", Dst: "inv@v2[1]", Every: 4}}, f.Cycles)
	require.Len(t, f.Settings, 5)
	assert.Equal(t, NodeSettings{Name: "src@v2", ActiveOutput: "gray8", Lines: []string{}}, f.Settings[0])
}

func TestRoundTrip(t *testing.T) {
	ctx, _ := testutil.LogContext(t)
	original := newManager(t, ctx)
	buildBranched(t, ctx, original)
	saved, err := Capture(original)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, saved))
	text := buf.String()
	assert.Contains(t, text, "[main_flow]")
	assert.Contains(t, text, "[[sub_flow]]")
	assert.Contains(t, text, "[[settings]]")
	assert.Contains(t, text, "[[cycle]]")

	decoded, err := Decode(strings.NewReader(text))
	require.NoError(t, err)

	fresh := newManager(t, ctx)
	names, err := Replay(ctx, fresh, decoded)
	require.NoError(t, err)
	assert.Equal(t, "inv@v2[1]", names["inv@v2[1]"])

	replayed, err := Capture(fresh)
	require.NoError(t, err)
	assert.Equal(t, saved, replayed)

	clone, ok := fresh.Node(names["inv@v2[1]"])
	require.True(t, ok)
	assert.Equal(t, []string{"gain=5", "mode=soft"}, clone.Plugin().ExportSettings())
	assert.NoError(t, fresh.CheckExecutable(ctx, ""))
}

func TestFileRoundTrip(t *testing.T) {
	ctx, _ := testutil.LogContext(t)
	m := newManager(t, ctx)
	buildBranched(t, ctx, m)
	saved, err := Capture(m)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "flow.toml")
	require.NoError(t, WriteFile(path, saved))
	loaded, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, saved.Main, loaded.Main)
	assert.Equal(t, saved.Cycles, loaded.Cycles)
}

func TestDecode_UnknownKeys(t *testing.T) {
	_, err := Decode(strings.NewReader("[main_flow]\nroot = \"a@v1\"\ncolour = \"red\"\n"))
	assert.Error(t, err)
}

func TestReplay_UnknownNode(t *testing.T) {
	ctx, _ := testutil.LogContext(t)
	m := newManager(t, ctx)
	_, err := Replay(ctx, m, &Flow{Main: MainFlow{Root: "camera@v2"}})
	assert.ErrorIs(t, err, graph.ErrUnknownNode)

	_, err = Replay(ctx, m, &Flow{Main: MainFlow{
		Root:  "src@v2",
		Links: []Link{{Node: "src@v2", Next: "ghost@v2[1]", NextClone: true}},
	}})
	assert.ErrorIs(t, err, graph.ErrUnknownNode)
}
