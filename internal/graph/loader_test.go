package graph

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/framegrid/internal/manifest"
	"github.com/vk/framegrid/internal/plugin"
	"github.com/vk/framegrid/internal/testutil"
)

func TestLoadAll(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{
		"source/src.hcl":      `plugin "src" {}`,
		"transform/conv.hcl":  `plugin "conv" { description = "converter" }`,
		"transform/more.hcl":  "plugin \"conv\" {}\nplugin \"ghost\" {}\n",
		"transform/inv.hcl":   `plugin "inv" { params = { gain = 4 } }`,
		"sink/mixed.hcl":      "plugin \"wrongcat\" { implementation = \"src\" }\nplugin \"future\" {}\n",
		"sink/broken.hcl":     `plugin "graysink" {`,
		"sink/graysink.hcl":   `plugin "graysink" {}`,
		"unrelated/skip.hcl":  `plugin "rgbsink" {}`,
	})

	report, err := f.m.LoadAll(f.ctx, dir)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"src@v2", "conv@v2", "inv@v2", "graysink@v2"}, report.Loaded)
	assert.Equal(t, "converter", f.node("conv@v2").Description())
	assert.Equal(t, []string{"gain=4"}, f.node("inv@v2").Plugin().ExportSettings())

	reasons := map[LoadReason]int{}
	for _, w := range report.Warnings() {
		var le *LoadError
		require.ErrorAs(t, w, &le)
		reasons[le.Reason]++
	}
	assert.Equal(t, map[LoadReason]int{
		LoadDuplicate:          1,
		LoadUnknownImpl:        1,
		LoadCategoryMismatch:   1,
		LoadUnsupportedVersion: 1,
		LoadManifest:           1,
	}, reasons)
	assert.Error(t, report.Err())
}

func TestLoadAll_UnreadableDirIsFatal(t *testing.T) {
	f := newFixture(t)
	_, err := f.m.LoadAll(f.ctx, filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestLoad_VersionRange(t *testing.T) {
	f := newFixture(t)
	f.m.opts = Options{MinVersion: 3, MaxVersion: 9}

	_, err := f.m.Load(f.ctx, manifest.Plugin{Label: "g", Implementation: "graysink", Category: plugin.Sink})
	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, LoadUnsupportedVersion, le.Reason)

	name, err := f.m.Load(f.ctx, manifest.Plugin{Label: "future", Implementation: "future", Category: plugin.Sink})
	require.NoError(t, err)
	assert.Equal(t, "future@v9", name)
}

func TestLoad_SettingsRejected(t *testing.T) {
	f := newFixture(t)
	_, err := f.m.Load(f.ctx, manifest.Plugin{
		Label: "inv", Implementation: "inv", Category: plugin.Transform, Settings: []string{"broken"},
	})
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, LoadSettings, le.Reason)
	assert.Len(t, f.factories["inv"].Released(), 1)
	_, ok := f.m.Node("inv@v2")
	assert.False(t, ok)
}

func TestUnloadAll(t *testing.T) {
	f := newFixture(t)
	src, inv := f.load("src", "src"), f.load("inv", "inv")
	require.NoError(t, f.m.SetRoot(f.ctx, src))
	f.connect(src, inv)
	_, err := f.m.Clone(f.ctx, inv)
	require.NoError(t, err)

	f.m.UnloadAll(f.ctx)

	assert.Len(t, f.factories["src"].Released(), 1)
	assert.Len(t, f.factories["inv"].Released(), 2)
	assert.Empty(t, f.m.Nodes())
	assert.Nil(t, f.m.Root())
	assert.Zero(t, f.m.Cadence().Len())
}
