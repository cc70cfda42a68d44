package manifest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/framegrid/internal/plugin"
)

func TestParse(t *testing.T) {
	src := `
plugin "gray" {
  implementation = "colorconv"
  description    = "to gray"
  params = {
    quality = 90
    mode    = "fast"
    strict  = true
  }
}

plugin "invert" {}
`
	plugins, err := Parse([]byte(src), "t.hcl", plugin.Transform)
	require.NoError(t, err)
	require.Len(t, plugins, 2)

	assert.Equal(t, "gray", plugins[0].Label)
	assert.Equal(t, "colorconv", plugins[0].Implementation)
	assert.Equal(t, "to gray", plugins[0].Description)
	assert.Equal(t, plugin.Transform, plugins[0].Category)
	assert.Equal(t, []string{"mode=fast", "quality=90", "strict=true"}, plugins[0].Settings)

	assert.Equal(t, "invert", plugins[1].Implementation)
	assert.Empty(t, plugins[1].Settings)
}

func TestParse_Errors(t *testing.T) {
	testCases := []struct {
		name string
		src  string
	}{
		{name: "syntax", src: `plugin "x" {`},
		{name: "params not object", src: `plugin "x" { params = 3 }`},
		{name: "nested param", src: `plugin "x" { params = { a = [1, 2] } }`},
		{name: "unknown attribute", src: `plugin "x" { colour = "red" }`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.src), "t.hcl", plugin.Sink)
			assert.Error(t, err)
		})
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestFind(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "source", "pattern.hcl"), `plugin "testpattern" {}`)
	writeFile(t, filepath.Join(dir, "sink", "out.hcl"), `plugin "pngsink" { params = { every = 5 } }`)
	writeFile(t, filepath.Join(dir, "sink", "broken.hcl"), `plugin "stats" {`)
	writeFile(t, filepath.Join(dir, "sink", "readme.md"), `ignored`)

	res, err := Find(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, res.Plugins, 2)
	assert.Equal(t, plugin.Source, res.Plugins[0].Category)
	assert.Equal(t, plugin.Sink, res.Plugins[1].Category)
	assert.Equal(t, []string{"every=5"}, res.Plugins[1].Settings)

	require.Len(t, res.Warnings, 1)
	var fe *FileError
	require.ErrorAs(t, res.Warnings[0], &fe)
	assert.Equal(t, filepath.Join(dir, "sink", "broken.hcl"), fe.Path)
}

func TestFind_MissingDirIsFatal(t *testing.T) {
	_, err := Find(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
