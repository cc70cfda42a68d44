package testutil

import (
	"context"
	"sync"

	"github.com/vk/framegrid/internal/frame"
	"github.com/vk/framegrid/internal/plugin"
	"github.com/vk/framegrid/internal/port"
)

// FakeSpec configures the plugins a FakeFactory builds.
type FakeSpec struct {
	In        []port.Format
	Out       []port.Format
	Relations port.Relations
	// Dest selects destination-buffer processing.
	Dest bool
	// Geometry is filled into an empty output frame by the default
	// Process, which lets fakes act as sources.
	Geometry  frame.Geometry
	InitErr   error
	ProcessFn func(ctx context.Context, in, out *frame.Frame) error
	// Settings are the initial exported settings lines.
	Settings  []string
	Cloneable bool
	Version   int
}

// Calls counts lifecycle invocations of one FakePlugin.
type Calls struct {
	Init        int
	Process     int
	PostProcess int
	Finalize    int
}

// FakePlugin is a configurable plugin.Plugin that records how it is
// driven.
type FakePlugin struct {
	spec FakeSpec

	mu       sync.Mutex
	name     string
	settings []string
	calls    Calls
	ins      []*frame.Frame
	outs     []*frame.Frame
	seqs     []uint64
}

var _ plugin.Plugin = (*FakePlugin)(nil)

func (p *FakePlugin) Init(_ context.Context, pc *plugin.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls.Init++
	p.name = pc.Name
	return p.spec.InitErr
}

func (p *FakePlugin) Process(ctx context.Context, in, out *frame.Frame) error {
	p.mu.Lock()
	p.calls.Process++
	p.ins = append(p.ins, in)
	p.outs = append(p.outs, out)
	if in != nil {
		p.seqs = append(p.seqs, in.Seq)
	}
	p.mu.Unlock()

	if p.spec.ProcessFn != nil {
		return p.spec.ProcessFn(ctx, in, out)
	}
	if out != nil && out.Empty() && p.spec.Geometry.Size() > 0 {
		out.Ensure(p.spec.Geometry)
	}
	return nil
}

func (p *FakePlugin) PostProcess(context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls.PostProcess++
}

func (p *FakePlugin) Finalize(context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls.Finalize++
}

func (p *FakePlugin) InputFormats() []port.Format  { return p.spec.In }
func (p *FakePlugin) OutputFormats() []port.Format { return p.spec.Out }
func (p *FakePlugin) UsesDestinationBuffer() bool  { return p.spec.Dest }
func (p *FakePlugin) Relations() port.Relations    { return p.spec.Relations }

func (p *FakePlugin) ExportSettings() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.settings...)
}

func (p *FakePlugin) ImportSettings(lines []string) error {
	if _, err := plugin.ParseSettings(lines); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settings = append([]string(nil), lines...)
	return nil
}

// Name is the node name handed to Init.
func (p *FakePlugin) Name() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.name
}

// Calls returns a snapshot of the lifecycle counters.
func (p *FakePlugin) Calls() Calls {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// Buffers returns the in and out frame pointers of every Process call.
func (p *FakePlugin) Buffers() (ins, outs []*frame.Frame) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*frame.Frame(nil), p.ins...), append([]*frame.Frame(nil), p.outs...)
}

// Seqs returns the sequence numbers of the input frames seen.
func (p *FakePlugin) Seqs() []uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]uint64(nil), p.seqs...)
}

// FakeFactory builds FakePlugins and remembers them.
type FakeFactory struct {
	*plugin.Factory

	mu        sync.Mutex
	instances []*FakePlugin
	released  []*FakePlugin
}

// NewFakeFactory creates a factory registering under name.
func NewFakeFactory(name string, cat plugin.Category, spec FakeSpec) *FakeFactory {
	if spec.Version == 0 {
		spec.Version = plugin.APIVersion
	}
	ff := &FakeFactory{}
	ff.Factory = &plugin.Factory{
		Name:      name,
		Category:  cat,
		Version:   spec.Version,
		Cloneable: spec.Cloneable,
		New: func() plugin.Plugin {
			p := &FakePlugin{spec: spec, settings: append([]string(nil), spec.Settings...)}
			ff.mu.Lock()
			ff.instances = append(ff.instances, p)
			ff.mu.Unlock()
			return p
		},
		Release: func(p plugin.Plugin) {
			ff.mu.Lock()
			ff.released = append(ff.released, p.(*FakePlugin))
			ff.mu.Unlock()
		},
	}
	return ff
}

// Instances returns every plugin built so far.
func (ff *FakeFactory) Instances() []*FakePlugin {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	return append([]*FakePlugin(nil), ff.instances...)
}

// Released returns every plugin passed to the destructor.
func (ff *FakeFactory) Released() []*FakePlugin {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	return append([]*FakePlugin(nil), ff.released...)
}

// SimpleModule is a test helper for easily creating a mock module that
// registers a fixed set of factories.
type SimpleModule struct {
	Factories []*plugin.Factory
}

// Register implements the plugin.Module interface.
func (m *SimpleModule) Register(r *plugin.Registry) {
	for _, f := range m.Factories {
		r.Register(f)
	}
}
