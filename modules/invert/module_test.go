package invert

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/framegrid/internal/frame"
	"github.com/vk/framegrid/internal/plugin"
	"github.com/vk/framegrid/internal/port"
)

func TestRegister(t *testing.T) {
	r := plugin.NewRegistry()
	(&Module{}).Register(r)
	f, ok := r.Lookup(Name)
	require.True(t, ok)
	p := f.New()
	assert.False(t, p.UsesDestinationBuffer())
	assert.Equal(t, []port.Format{port.Gray8}, plugin.RelationsOf(p).OutputsFor(port.Gray8, p.OutputFormats()))
}

func TestProcessInPlace(t *testing.T) {
	f := &Filter{enabled: true}
	fr := &frame.Frame{Geometry: frame.Geometry{Width: 3, Height: 1, Format: port.Gray8}, Data: []byte{0, 100, 255}}
	data := fr.Data
	require.NoError(t, f.Process(context.Background(), fr, fr))
	assert.Equal(t, []byte{255, 155, 0}, fr.Data)
	assert.Same(t, &data[0], &fr.Data[0])

	require.NoError(t, f.ImportSettings([]string{"enabled=false"}))
	require.NoError(t, f.Process(context.Background(), fr, fr))
	assert.Equal(t, []byte{255, 155, 0}, fr.Data)
	assert.Equal(t, []string{"enabled=false"}, f.ExportSettings())

	assert.Error(t, f.ImportSettings([]string{"enabled=maybe"}))
	assert.Equal(t, []string{"enabled=false"}, f.ExportSettings())
}
