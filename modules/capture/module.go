// Package capture simulates a camera that delivers YUYV frames from its own
// goroutine.
//
// A real driver calls back into the host whenever the hardware finishes a
// frame. The callback here is a closure bound to the plugin instance at
// Init, so two cameras in one process never share delivery state.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vk/framegrid/internal/frame"
	"github.com/vk/framegrid/internal/plugin"
	"github.com/vk/framegrid/internal/port"
)

// Name is the implementation name manifests refer to.
const Name = "capture"

// ErrNoFrame is returned when the device delivers nothing within the
// frame timeout.
var ErrNoFrame = errors.New("capture: no frame delivered")

// Module implements the plugin.Module interface for this package.
type Module struct{}

// Register registers the capture factory. A device can only be opened
// once, so the factory is not cloneable.
func (m *Module) Register(r *plugin.Registry) {
	r.Register(&plugin.Factory{
		Name:     Name,
		Category: plugin.Source,
		Version:  plugin.APIVersion,
		New:      func() plugin.Plugin { return New() },
		Release:  func(p plugin.Plugin) { p.(*Camera).close() },
	})
}

// Callback receives one finished frame from the device.
type Callback func(data []byte, ts time.Time)

// Camera is an in-place source.
type Camera struct {
	plugin.Base

	mu      sync.Mutex
	width   int
	height  int
	fps     int
	timeout time.Duration

	logger *slog.Logger
	geo    frame.Geometry

	latest   []byte
	latestTS time.Time
	fresh    bool
	ready    chan struct{}

	cancel context.CancelFunc
	done   chan struct{}
}

var _ plugin.Plugin = (*Camera)(nil)

// New returns a camera with default settings.
func New() *Camera {
	return &Camera{width: 64, height: 48, fps: 30, timeout: time.Second}
}

// Init starts the simulated device.
func (c *Camera) Init(ctx context.Context, pc *plugin.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return fmt.Errorf("device already open")
	}
	c.logger = pc.Logger
	c.geo = frame.Geometry{Width: c.width &^ 1, Height: c.height, Format: port.YUYV}
	if c.geo.Width <= 0 || c.geo.Height <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", c.width, c.height)
	}
	c.ready = make(chan struct{}, 1)
	c.fresh = false

	devCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.device(devCtx, c.geo, time.Second/time.Duration(max(c.fps, 1)), c.deliver, c.done)
	c.logger.Debug("Capture device opened.", "geometry", c.geo.String(), "fps", c.fps)
	return nil
}

// device produces frames until ctx ends, handing each to cb.
func (c *Camera) device(ctx context.Context, g frame.Geometry, period time.Duration, cb Callback, done chan struct{}) {
	defer close(done)
	t := time.NewTicker(period)
	defer t.Stop()
	buf := make([]byte, g.Size())
	var n int
	for {
		select {
		case <-ctx.Done():
			return
		case ts := <-t.C:
			fillYUYV(buf, g, n)
			n++
			cb(buf, ts)
		}
	}
}

// deliver is the callback bound to this instance.
func (c *Camera) deliver(data []byte, ts time.Time) {
	c.mu.Lock()
	c.latest = append(c.latest[:0], data...)
	c.latestTS = ts
	c.fresh = true
	ready := c.ready
	c.mu.Unlock()
	select {
	case ready <- struct{}{}:
	default:
	}
}

// Process waits for the next delivered frame and copies it into f.
func (c *Camera) Process(ctx context.Context, f, _ *frame.Frame) error {
	c.mu.Lock()
	ready, timeout := c.ready, c.timeout
	c.mu.Unlock()
	if ready == nil {
		return fmt.Errorf("device not open")
	}

	t := time.NewTimer(timeout)
	defer t.Stop()
	for {
		c.mu.Lock()
		if c.fresh {
			f.Ensure(c.geo)
			copy(f.Data, c.latest)
			f.Timestamp = c.latestTS
			c.fresh = false
			c.mu.Unlock()
			return nil
		}
		c.mu.Unlock()
		select {
		case <-ready:
		case <-t.C:
			return ErrNoFrame
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Finalize stops the device.
func (c *Camera) Finalize(context.Context) {
	c.close()
}

func (c *Camera) close() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done, c.ready = nil, nil, nil
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	if c.logger != nil {
		c.logger.Debug("Capture device closed.")
	}
}

func (c *Camera) InputFormats() []port.Format  { return nil }
func (c *Camera) OutputFormats() []port.Format { return []port.Format{port.YUYV} }
func (c *Camera) UsesDestinationBuffer() bool  { return false }

func (c *Camera) Description() string { return "simulated YUYV camera" }

func (c *Camera) ExportSettings() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return plugin.Settings{
		"width":      fmt.Sprint(c.width),
		"height":     fmt.Sprint(c.height),
		"fps":        fmt.Sprint(c.fps),
		"timeout_ms": fmt.Sprint(c.timeout.Milliseconds()),
	}.Lines()
}

func (c *Camera) ImportSettings(lines []string) error {
	set, err := plugin.ParseSettings(lines)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	vals := map[string]int{"width": c.width, "height": c.height, "fps": c.fps, "timeout_ms": int(c.timeout.Milliseconds())}
	for key, def := range vals {
		v, err := set.Int(key, def)
		if err != nil {
			return err
		}
		if v <= 0 {
			return fmt.Errorf("setting %q must be positive", key)
		}
		vals[key] = v
	}
	c.width, c.height, c.fps = vals["width"], vals["height"], vals["fps"]
	c.timeout = time.Duration(vals["timeout_ms"]) * time.Millisecond
	return nil
}

// fillYUYV draws moving vertical luma bars with neutral chroma.
func fillYUYV(buf []byte, g frame.Geometry, n int) {
	stride := g.Stride()
	for y := 0; y < g.Height; y++ {
		row := buf[y*stride : (y+1)*stride]
		for x := 0; x+1 < g.Width; x += 2 {
			i := x * 2
			row[i] = byte(16 + ((x+n)%g.Width)*219/max(g.Width-1, 1))
			row[i+1] = 128
			row[i+2] = byte(16 + ((x+1+n)%g.Width)*219/max(g.Width-1, 1))
			row[i+3] = 128
		}
	}
}
