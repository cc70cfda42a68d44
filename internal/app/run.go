package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/framegrid/internal/editorbridge"
	"github.com/vk/framegrid/internal/scheduler"
)

// Run executes the main application logic based on the provided configuration.
// It loads the pipeline unless Load was already called.
func (a *App) Run(ctx context.Context) error {
	ctx = a.withLogger(ctx)
	a.logger.Debug("App.Run method started.")

	if a.Graph() == nil {
		if err := a.Load(ctx); err != nil {
			return fmt.Errorf("loading pipeline: %w", err)
		}
	}

	if a.config.HealthcheckPort > 0 {
		a.startHealthcheckServer(ctx)
		defer a.closeHealthcheckServer(ctx)
	}

	var err error
	if a.config.EditorURL != "" {
		err = a.serveEditor(ctx)
	} else {
		err = a.runHeadless(ctx)
	}
	a.logger.Debug("App.Run method finished.")
	return err
}

// runHeadless starts the pipeline right away and returns when it ends.
func (a *App) runHeadless(ctx context.Context) error {
	var changes <-chan struct{}
	if a.config.Watch {
		w, err := watchFlow(ctx, a.config.FlowPath)
		if err != nil {
			return err
		}
		defer w.Close()
		changes = w.Changes()
	}

	if err := a.Start(ctx); err != nil {
		return fmt.Errorf("starting pipeline: %w", err)
	}
	runID := a.Scheduler().RunID()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("Shutdown requested, stopping pipeline.")
			a.Stop()
			return a.runErr()
		case ev := <-a.events:
			if ev.RunID != runID {
				continue
			}
			switch ev.Kind {
			case scheduler.EventPaused:
				return a.writeSnapshot()
			case scheduler.EventStopped:
				return nil
			case scheduler.EventFatal:
				return ev.Err
			}
		case <-changes:
			if err := a.reload(ctx); err != nil {
				return err
			}
			runID = a.Scheduler().RunID()
		}
	}
}

// reload swaps in a freshly loaded pipeline. A flow file that fails to
// load is reported and the previous pipeline is restarted.
func (a *App) reload(ctx context.Context) error {
	a.logger.Info("🔄 Flow file changed, reloading pipeline.", "path", a.config.FlowPath)
	a.Stop()
	if err := a.Load(ctx); err != nil {
		a.logger.Error("Reload failed, keeping previous pipeline.", "error", err)
	}
	if err := a.Start(ctx); err != nil {
		return fmt.Errorf("restarting pipeline: %w", err)
	}
	return nil
}

// serveEditor hands control of the graph to the editor until ctx ends.
func (a *App) serveEditor(ctx context.Context) error {
	d := editorbridge.NewDispatcher(a.Graph(), a)
	b, err := editorbridge.Dial(ctx, editorbridge.Options{
		URL:                a.config.EditorURL,
		Namespace:          a.config.EditorNamespace,
		InsecureSkipVerify: a.config.EditorInsecure,
	}, d)
	if err != nil {
		return err
	}
	a.bridge.Store(b)
	defer func() {
		a.bridge.Store(nil)
		b.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("Shutdown requested, stopping pipeline.")
			a.Stop()
			return a.runErr()
		case ev := <-a.events:
			if ev.Kind == scheduler.EventPaused {
				if err := a.writeSnapshot(); err != nil {
					a.logger.Error("Snapshot not written.", "error", err)
				}
			}
		}
	}
}

// runErr is the error of the last run, ignoring the cancellation that
// ended it.
func (a *App) runErr() error {
	s := a.Scheduler()
	if s == nil {
		return nil
	}
	if err := s.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
