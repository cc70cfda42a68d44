package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/vk/framegrid/internal/ctxlog"
	"github.com/vk/framegrid/internal/editorbridge"
	"github.com/vk/framegrid/internal/flowfile"
	"github.com/vk/framegrid/internal/frame"
	"github.com/vk/framegrid/internal/graph"
	"github.com/vk/framegrid/internal/plugin"
	"github.com/vk/framegrid/internal/port"
	"github.com/vk/framegrid/internal/scheduler"
)

// ErrNotLoaded is returned when the pipeline is driven before Load.
var ErrNotLoaded = errors.New("pipeline not loaded")

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	config   *Config
	registry *plugin.Registry

	// mu guards the pipeline, which Load replaces wholesale.
	mu     sync.Mutex
	graph  *graph.Manager
	sched  *scheduler.Scheduler
	report *graph.LoadReport

	events     chan scheduler.Event
	bridge     atomic.Pointer[editorbridge.Bridge]
	httpServer *http.Server
}

var _ editorbridge.Runner = (*App)(nil)

// NewApp is the constructor for the main application. It returns an App
// with its own isolated logger and a registry holding the given modules,
// or the compiled-in ones when none are given.
func NewApp(outW io.Writer, cfg *Config, modules ...plugin.Module) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	logger.Debug("Logger configured successfully.")

	reg := plugin.NewRegistry()
	if len(modules) == 0 {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All Go modules registered.", "count", len(modules), "implementations", reg.Names())

	return &App{
		outW:     outW,
		logger:   logger,
		config:   cfg,
		registry: reg,
		events:   make(chan scheduler.Event, 32),
	}
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *plugin.Registry {
	return a.registry
}

// Graph returns the current graph, or nil before Load.
func (a *App) Graph() *graph.Manager {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.graph
}

// Scheduler returns the current scheduler, or nil before Load.
func (a *App) Scheduler() *scheduler.Scheduler {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sched
}

// Report returns the warnings of the last Load.
func (a *App) Report() *graph.LoadReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.report
}

func (a *App) withLogger(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, a.logger)
}

// Load discovers the plugins, replays the flow file and prepares a fresh
// scheduler. On error the previous pipeline, if any, stays in place;
// otherwise its plugins are destroyed. Load must not be called while a run
// is in progress.
func (a *App) Load(ctx context.Context) error {
	ctx = a.withLogger(ctx)
	if s := a.Scheduler(); s != nil && s.IsRunning() {
		return scheduler.ErrRunning
	}

	m := graph.New(a.registry, graph.Options{
		MinVersion: a.config.MinVersion,
		MaxVersion: a.config.MaxVersion,
	})
	report, err := m.LoadAll(ctx, a.config.PluginsPath)
	if err != nil {
		m.UnloadAll(ctx)
		return err
	}
	sched, err := a.prepare(ctx, m)
	if err != nil {
		m.UnloadAll(ctx)
		return err
	}

	a.mu.Lock()
	prev := a.graph
	a.graph, a.sched, a.report = m, sched, report
	a.mu.Unlock()
	if prev != nil {
		prev.UnloadAll(ctx)
	}
	return nil
}

// prepare replays the flow file into m and builds a scheduler over it.
func (a *App) prepare(ctx context.Context, m *graph.Manager) (*scheduler.Scheduler, error) {
	if a.config.FlowPath != "" {
		flow, err := flowfile.ReadFile(a.config.FlowPath)
		if err != nil {
			return nil, err
		}
		if _, err := flowfile.Replay(ctx, m, flow); err != nil {
			return nil, fmt.Errorf("replaying %s: %w", a.config.FlowPath, err)
		}
		a.logger.Info("Flow file replayed.", "path", a.config.FlowPath, "nodes", len(m.Nodes()))
	}

	sched, err := scheduler.New(m, scheduler.Options{
		FramePeriod: a.config.FramePeriod,
		MaxFrames:   a.config.MaxFrames,
		FirstNode:   a.config.FirstNode,
		LastNode:    a.config.LastNode,
		Geometry: frame.Geometry{
			Width:  a.config.FrameWidth,
			Height: a.config.FrameHeight,
			Format: port.RGB24,
		},
		OnEvent: a.onEvent,
	})
	if err != nil {
		return nil, fmt.Errorf("creating scheduler: %w", err)
	}
	return sched, nil
}

// Check verifies that the loaded graph can run from its root.
func (a *App) Check(ctx context.Context) error {
	m := a.Graph()
	if m == nil {
		return ErrNotLoaded
	}
	return m.CheckExecutable(a.withLogger(ctx), "")
}

// SaveFlow writes the current graph to path as a flow file.
func (a *App) SaveFlow(path string) error {
	m := a.Graph()
	if m == nil {
		return ErrNotLoaded
	}
	flow, err := flowfile.Capture(m)
	if err != nil {
		return err
	}
	if err := flowfile.WriteFile(path, flow); err != nil {
		return err
	}
	a.logger.Info("Flow file saved.", "path", path)
	return nil
}

// Start starts a run from the graph's root.
func (a *App) Start(ctx context.Context) error {
	s := a.Scheduler()
	if s == nil {
		return ErrNotLoaded
	}
	return s.Start(a.withLogger(ctx), "")
}

// Stop stops the current run, if any, and waits for every node to be
// finalized.
func (a *App) Stop() {
	if s := a.Scheduler(); s != nil {
		s.Stop(true)
	}
}

// Pause asks the current run to capture its snapshot frames and halt.
func (a *App) Pause() error {
	s := a.Scheduler()
	if s == nil {
		return ErrNotLoaded
	}
	return s.Pause()
}

// Running reports whether a run is in progress.
func (a *App) Running() bool {
	s := a.Scheduler()
	return s != nil && s.IsRunning()
}

// onEvent is called from scheduler goroutines and must not block.
func (a *App) onEvent(ev scheduler.Event) {
	if b := a.bridge.Load(); b != nil {
		b.NotifyState(ev)
	}
	select {
	case a.events <- ev:
	default:
		a.logger.Warn("Dropping scheduler event.", "kind", ev.Kind.String(), "run_id", ev.RunID)
	}
}

// Plugins describes every loaded node in load order.
func (a *App) Plugins() ([]editorbridge.PluginInfo, error) {
	m := a.Graph()
	if m == nil {
		return nil, ErrNotLoaded
	}
	return editorbridge.NewDispatcher(m, a).Plugins(), nil
}
