package plugin

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vk/framegrid/internal/frame"
	"github.com/vk/framegrid/internal/port"
)

// APIVersion is the newest plugin interface version this host implements.
const APIVersion = 2

// Category classifies a pipeline stage.
type Category int

const (
	// Source nodes produce frames and have no inputs.
	Source Category = iota
	// Transform nodes consume and produce frames.
	Transform
	// Sink nodes consume frames and have no outputs.
	Sink
)

// Categories lists every category in discovery order.
var Categories = []Category{Source, Transform, Sink}

// String returns the category's directory name.
func (c Category) String() string {
	switch c {
	case Source:
		return "source"
	case Transform:
		return "transform"
	case Sink:
		return "sink"
	default:
		return "unknown"
	}
}

// ParseCategory is the inverse of Category.String.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if c.String() == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown plugin category %q", s)
}

// Context is handed to Init. It belongs to one node instance and replaces
// any process-wide state a plugin might be tempted to keep.
type Context struct {
	// Name is the unique node name the instance runs under.
	Name string
	// Logger is pre-tagged with the node name.
	Logger *slog.Logger
	// Geometry is the pipeline's nominal frame geometry, a hint for sources.
	Geometry frame.Geometry
}

// Plugin is the capability set of a pipeline stage.
type Plugin interface {
	// Init prepares the instance for a run.
	Init(ctx context.Context, pc *Context) error
	// Process handles one frame. For nodes that use a destination buffer, in
	// and out are distinct and in must not be modified. For in-place nodes
	// in and out are the same buffer.
	Process(ctx context.Context, in, out *frame.Frame) error
	// PostProcess runs once per frame after the whole chain has run.
	PostProcess(ctx context.Context)
	// Finalize releases run resources.
	Finalize(ctx context.Context)

	InputFormats() []port.Format
	OutputFormats() []port.Format
	UsesDestinationBuffer() bool

	ExportSettings() []string
	ImportSettings(lines []string) error
}

// Relator is implemented by format-converting plugins whose output format
// depends on the input format.
type Relator interface {
	Relations() port.Relations
}

// Sizer is implemented by plugins whose output geometry differs from their
// input geometry. Without it the output keeps the input's size and takes
// the active output format.
type Sizer interface {
	OutputGeometry(in frame.Geometry, out port.Format) frame.Geometry
}

// Describer provides a one-line human description.
type Describer interface {
	Description() string
}

// RelationsOf returns p's relation table or nil.
func RelationsOf(p Plugin) port.Relations {
	if r, ok := p.(Relator); ok {
		return r.Relations()
	}
	return nil
}

// OutputGeometry computes the geometry of p's destination buffer.
func OutputGeometry(p Plugin, in frame.Geometry, out port.Format) frame.Geometry {
	if s, ok := p.(Sizer); ok {
		return s.OutputGeometry(in, out)
	}
	return frame.Geometry{Width: in.Width, Height: in.Height, Format: out}
}

// DescriptionOf returns p's description or an empty string.
func DescriptionOf(p Plugin) string {
	if d, ok := p.(Describer); ok {
		return d.Description()
	}
	return ""
}

// Base implements the optional lifecycle hooks as no-ops. Plugins embed it
// and override what they need.
type Base struct{}

// Init implements Plugin.
func (Base) Init(context.Context, *Context) error { return nil }

// PostProcess implements Plugin.
func (Base) PostProcess(context.Context) {}

// Finalize implements Plugin.
func (Base) Finalize(context.Context) {}

// ExportSettings implements Plugin.
func (Base) ExportSettings() []string { return nil }

// ImportSettings implements Plugin.
func (Base) ImportSettings([]string) error { return nil }
