package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/vk/framegrid/internal/ctxlog"
)

// Health is the body served at /health.
type Health struct {
	Status string `json:"status"`
	State  string `json:"state"`
	RunID  string `json:"run_id,omitempty"`
	Frames uint64 `json:"frames"`
	Nodes  int    `json:"nodes"`
	Root   string `json:"root,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Health reports the pipeline state.
func (a *App) Health() Health {
	h := Health{Status: "ok", State: "unloaded"}
	if m := a.Graph(); m != nil {
		h.Nodes = len(m.Nodes())
		if r := m.Root(); r != nil {
			h.Root = r.Name()
		}
	}
	if s := a.Scheduler(); s != nil {
		h.State = s.State().String()
		h.RunID = s.RunID()
		h.Frames = s.Frames()
		if err := s.Err(); err != nil {
			h.Status = "failed"
			h.Error = err.Error()
		}
	}
	return h
}

// healthHandler serves Health as JSON. A failed run answers 503.
func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	a.logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	h := a.Health()
	w.Header().Set("Content-Type", "application/json")
	if h.Error != "" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	if err := json.NewEncoder(w).Encode(h); err != nil {
		a.logger.Debug("Health response not written.", "error", err)
	}
}

// startHealthcheckServer initializes and runs the health check HTTP server.
func (a *App) startHealthcheckServer(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Configuring health check server.")

	mux := http.NewServeMux()
	mux.HandleFunc("/health", a.healthHandler)

	addr := fmt.Sprintf(":%d", a.config.HealthcheckPort)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	a.httpServer = srv

	go func() {
		logger.Info("🩺 Health check server starting", "address", fmt.Sprintf("http://localhost%s/health", addr))
		// ListenAndServe returns ErrServerClosed on graceful shutdown.
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Health check server failed unexpectedly", "error", err)
		}
	}()
}

func (a *App) closeHealthcheckServer(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	if a.httpServer == nil {
		logger.Debug("Health check server was not running.")
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	logger.Info("🩺 Shutting down health check server...")
	if err := a.httpServer.Shutdown(ctx); err != nil {
		logger.Error("Health check server shutdown failed", "error", err)
		return
	}
	a.httpServer = nil
	logger.Debug("Health check server shut down gracefully.")
}
