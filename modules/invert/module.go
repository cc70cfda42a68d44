// Package invert provides an in-place negative filter.
package invert

import (
	"context"
	"fmt"
	"sync"

	"github.com/vk/framegrid/internal/frame"
	"github.com/vk/framegrid/internal/plugin"
	"github.com/vk/framegrid/internal/port"
)

// Name is the implementation name manifests refer to.
const Name = "invert"

// Module implements the plugin.Module interface for this package.
type Module struct{}

// Register registers the invert factory.
func (m *Module) Register(r *plugin.Registry) {
	r.Register(&plugin.Factory{
		Name:      Name,
		Category:  plugin.Transform,
		Version:   plugin.APIVersion,
		New:       func() plugin.Plugin { return &Filter{enabled: true} },
		Cloneable: true,
	})
}

// Filter negates every sample of the frame it is handed.
type Filter struct {
	plugin.Base

	mu      sync.Mutex
	enabled bool
}

var _ plugin.Plugin = (*Filter)(nil)

func (f *Filter) Process(_ context.Context, in, _ *frame.Frame) error {
	f.mu.Lock()
	enabled := f.enabled
	f.mu.Unlock()
	if !enabled {
		return nil
	}
	for i, v := range in.Data {
		in.Data[i] = 255 - v
	}
	return nil
}

func (f *Filter) InputFormats() []port.Format  { return []port.Format{port.Gray8, port.RGB24} }
func (f *Filter) OutputFormats() []port.Format { return []port.Format{port.Gray8, port.RGB24} }
func (f *Filter) UsesDestinationBuffer() bool  { return false }

func (f *Filter) Relations() port.Relations {
	return port.Relations{
		{Input: port.Gray8, Output: port.Gray8},
		{Input: port.RGB24, Output: port.RGB24},
	}
}

func (f *Filter) Description() string { return "in-place negative" }

func (f *Filter) ExportSettings() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return []string{fmt.Sprintf("enabled=%t", f.enabled)}
}

func (f *Filter) ImportSettings(lines []string) error {
	set, err := plugin.ParseSettings(lines)
	if err != nil {
		return err
	}
	enabled := f.enabled
	switch v := set.String("enabled", ""); v {
	case "":
	case "true":
		enabled = true
	case "false":
		enabled = false
	default:
		return fmt.Errorf("setting \"enabled\": invalid boolean %q", v)
	}
	f.mu.Lock()
	f.enabled = enabled
	f.mu.Unlock()
	return nil
}
