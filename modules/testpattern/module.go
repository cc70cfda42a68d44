// Package testpattern provides a synthetic frame source.
package testpattern

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vk/framegrid/internal/frame"
	"github.com/vk/framegrid/internal/plugin"
	"github.com/vk/framegrid/internal/port"
)

// Name is the implementation name manifests refer to.
const Name = "testpattern"

const (
	PatternGradient = "gradient"
	PatternChecker  = "checker"
)

// Module implements the plugin.Module interface for this package.
type Module struct{}

// Register registers the testpattern factory.
func (m *Module) Register(r *plugin.Registry) {
	r.Register(&plugin.Factory{
		Name:      Name,
		Category:  plugin.Source,
		Version:   plugin.APIVersion,
		New:       func() plugin.Plugin { return New() },
		Cloneable: true,
	})
}

// Source draws a moving gradient or checkerboard into a destination
// buffer.
type Source struct {
	plugin.Base

	mu      sync.Mutex
	width   int
	height  int
	pattern string

	logger *slog.Logger
	tick   int
}

var (
	_ plugin.Plugin    = (*Source)(nil)
	_ plugin.Sizer     = (*Source)(nil)
	_ plugin.Describer = (*Source)(nil)
)

// New returns a source with default settings. A zero size follows the
// pipeline geometry.
func New() *Source {
	return &Source{pattern: PatternGradient}
}

func (s *Source) Init(_ context.Context, pc *plugin.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = pc.Logger
	if s.width == 0 {
		s.width = pc.Geometry.Width
	}
	if s.height == 0 {
		s.height = pc.Geometry.Height
	}
	if s.width <= 0 || s.height <= 0 {
		return fmt.Errorf("no frame size configured")
	}
	s.tick = 0
	s.logger.Debug("Test pattern ready.", "width", s.width, "height", s.height, "pattern", s.pattern)
	return nil
}

func (s *Source) Process(_ context.Context, _, out *frame.Frame) error {
	s.mu.Lock()
	pattern, tick := s.pattern, s.tick
	s.tick++
	s.mu.Unlock()

	bpp := frame.BytesPerPixel(out.Format)
	stride := out.Stride()
	for y := 0; y < out.Height; y++ {
		row := out.Data[y*stride : (y+1)*stride]
		for x := 0; x < out.Width; x++ {
			v := sample(pattern, x, y, tick, out.Width)
			px := row[x*bpp : (x+1)*bpp]
			switch out.Format {
			case port.RGB24:
				px[0], px[1], px[2] = v, byte(y*255/max(out.Height-1, 1)), 255-v
			default:
				for i := range px {
					px[i] = v
				}
			}
		}
	}
	out.Timestamp = time.Now()
	return nil
}

func sample(pattern string, x, y, tick, width int) byte {
	if pattern == PatternChecker {
		if ((x+tick)/8+y/8)%2 == 0 {
			return 255
		}
		return 0
	}
	return byte(((x + tick) % width) * 255 / max(width-1, 1))
}

func (s *Source) InputFormats() []port.Format  { return nil }
func (s *Source) OutputFormats() []port.Format { return []port.Format{port.RGB24, port.Gray8} }
func (s *Source) UsesDestinationBuffer() bool  { return true }

// OutputGeometry implements plugin.Sizer.
func (s *Source) OutputGeometry(in frame.Geometry, out port.Format) frame.Geometry {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := frame.Geometry{Width: s.width, Height: s.height, Format: out}
	if g.Width == 0 {
		g.Width = in.Width
	}
	if g.Height == 0 {
		g.Height = in.Height
	}
	return g
}

func (s *Source) Description() string { return "synthetic gradient or checkerboard frames" }

func (s *Source) ExportSettings() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return plugin.Settings{
		"width":   fmt.Sprint(s.width),
		"height":  fmt.Sprint(s.height),
		"pattern": s.pattern,
	}.Lines()
}

func (s *Source) ImportSettings(lines []string) error {
	set, err := plugin.ParseSettings(lines)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	w, err := set.Int("width", s.width)
	if err != nil {
		return err
	}
	h, err := set.Int("height", s.height)
	if err != nil {
		return err
	}
	if w < 0 || h < 0 {
		return fmt.Errorf("negative frame size %dx%d", w, h)
	}
	pattern := set.String("pattern", s.pattern)
	if pattern != PatternGradient && pattern != PatternChecker {
		return fmt.Errorf("unknown pattern %q", pattern)
	}
	s.width, s.height, s.pattern = w, h, pattern
	return nil
}
