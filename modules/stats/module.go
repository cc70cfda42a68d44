// Package stats logs frame statistics.
package stats

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vk/framegrid/internal/frame"
	"github.com/vk/framegrid/internal/plugin"
	"github.com/vk/framegrid/internal/port"
)

// Name is the implementation name manifests refer to.
const Name = "stats"

// Module implements the plugin.Module interface for this package.
type Module struct{}

// Register registers the stats factory.
func (m *Module) Register(r *plugin.Registry) {
	r.Register(&plugin.Factory{
		Name:      Name,
		Category:  plugin.Sink,
		Version:   plugin.APIVersion,
		New:       func() plugin.Plugin { return &Meter{every: 30} },
		Cloneable: true,
	})
}

// Meter logs the mean intensity of every Nth frame.
type Meter struct {
	plugin.Base

	mu     sync.Mutex
	every  int
	logger *slog.Logger
	seen   int
	mean   float64
}

var _ plugin.Plugin = (*Meter)(nil)

func (m *Meter) Init(_ context.Context, pc *plugin.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger = pc.Logger
	m.seen = 0
	return nil
}

func (m *Meter) Process(_ context.Context, in, _ *frame.Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen++
	if m.seen%m.every != 0 {
		return nil
	}
	m.mean = meanIntensity(in)
	m.logger.Info("Frame statistics.", "frame", in.Seq, "geometry", in.Geometry.String(), "mean", fmt.Sprintf("%.2f", m.mean))
	return nil
}

// Mean returns the last measured mean intensity.
func (m *Meter) Mean() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mean
}

func (m *Meter) InputFormats() []port.Format {
	return []port.Format{port.Gray8, port.RGB24, port.YUYV}
}

func (m *Meter) OutputFormats() []port.Format { return nil }
func (m *Meter) UsesDestinationBuffer() bool  { return false }
func (m *Meter) Description() string          { return "logs mean frame intensity" }

func (m *Meter) ExportSettings() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return []string{fmt.Sprintf("every=%d", m.every)}
}

func (m *Meter) ImportSettings(lines []string) error {
	set, err := plugin.ParseSettings(lines)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	every, err := set.Int("every", m.every)
	if err != nil {
		return err
	}
	if every < 1 {
		return fmt.Errorf("setting \"every\" must be at least 1")
	}
	m.every = every
	return nil
}

// meanIntensity averages the luma samples of f. For YUYV only the Y bytes
// count.
func meanIntensity(f *frame.Frame) float64 {
	step := 1
	if f.Format == port.YUYV {
		step = 2
	}
	var sum, n uint64
	for i := 0; i < len(f.Data); i += step {
		sum += uint64(f.Data[i])
		n++
	}
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}
