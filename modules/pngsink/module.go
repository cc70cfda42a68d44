// Package pngsink writes frames to disk as PNG files.
package pngsink

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/vk/framegrid/internal/frame"
	"github.com/vk/framegrid/internal/plugin"
	"github.com/vk/framegrid/internal/port"
)

// Name is the implementation name manifests refer to.
const Name = "pngsink"

// Module implements the plugin.Module interface for this package.
type Module struct{}

// Register registers the pngsink factory.
func (m *Module) Register(r *plugin.Registry) {
	r.Register(&plugin.Factory{
		Name:      Name,
		Category:  plugin.Sink,
		Version:   plugin.APIVersion,
		New:       func() plugin.Plugin { return &Sink{dir: "frames", every: 1} },
		Cloneable: true,
	})
}

// Sink writes every Nth frame it receives into a directory.
type Sink struct {
	plugin.Base

	mu    sync.Mutex
	dir   string
	every int

	prefix  string
	logger  *slog.Logger
	seen    int
	written []string
}

var _ plugin.Plugin = (*Sink)(nil)

func (s *Sink) Init(_ context.Context, pc *plugin.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	s.prefix = sanitize(pc.Name)
	s.logger = pc.Logger
	s.seen = 0
	s.written = nil
	return nil
}

func (s *Sink) Process(_ context.Context, in, _ *frame.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen++
	if s.seen%s.every != 0 {
		return nil
	}
	img, err := toImage(in)
	if err != nil {
		return err
	}
	path := filepath.Join(s.dir, fmt.Sprintf("%s_%06d.png", s.prefix, in.Seq))
	if err := writePNG(path, img); err != nil {
		return err
	}
	s.written = append(s.written, path)
	s.logger.Debug("Frame written.", "path", path, "frame", in.Seq)
	return nil
}

// Written returns the files written since Init.
func (s *Sink) Written() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.written...)
}

func (s *Sink) InputFormats() []port.Format {
	return []port.Format{port.Gray8, port.Gray16, port.RGB24, port.RGBA32}
}

func (s *Sink) OutputFormats() []port.Format { return nil }
func (s *Sink) UsesDestinationBuffer() bool  { return false }
func (s *Sink) Description() string          { return "writes frames as PNG files" }

func (s *Sink) ExportSettings() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return plugin.Settings{"dir": s.dir, "every": fmt.Sprint(s.every)}.Lines()
}

func (s *Sink) ImportSettings(lines []string) error {
	set, err := plugin.ParseSettings(lines)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	every, err := set.Int("every", s.every)
	if err != nil {
		return err
	}
	if every < 1 {
		return fmt.Errorf("setting \"every\" must be at least 1")
	}
	dir := set.String("dir", s.dir)
	if dir == "" {
		return fmt.Errorf("setting \"dir\" must not be empty")
	}
	s.dir, s.every = dir, every
	return nil
}

func writePNG(path string, img image.Image) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	w := bufio.NewWriter(f)
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return w.Flush()
}

// toImage wraps or converts the frame into an image the encoder accepts.
func toImage(f *frame.Frame) (image.Image, error) {
	if len(f.Data) < f.Size() {
		return nil, fmt.Errorf("short frame: %d of %d bytes", len(f.Data), f.Size())
	}
	rect := image.Rect(0, 0, f.Width, f.Height)
	switch f.Format {
	case port.Gray8:
		return &image.Gray{Pix: f.Data, Stride: f.Stride(), Rect: rect}, nil
	case port.RGBA32:
		return &image.NRGBA{Pix: f.Data, Stride: f.Stride(), Rect: rect}, nil
	case port.Gray16:
		// Frames carry native little-endian samples; the image package wants
		// big-endian.
		img := image.NewGray16(rect)
		for i := 0; i+1 < f.Size(); i += 2 {
			img.Pix[i], img.Pix[i+1] = f.Data[i+1], f.Data[i]
		}
		return img, nil
	case port.RGB24:
		img := image.NewNRGBA(rect)
		for i, j := 0, 0; i+2 < f.Size(); i, j = i+3, j+4 {
			img.Pix[j], img.Pix[j+1], img.Pix[j+2], img.Pix[j+3] = f.Data[i], f.Data[i+1], f.Data[i+2], 255
		}
		return img, nil
	default:
		return nil, fmt.Errorf("cannot encode %s as PNG", f.Format)
	}
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
