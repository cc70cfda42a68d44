package app

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/vk/framegrid/internal/plugin"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	PluginsPath string // category subdirectories of .hcl manifests
	FlowPath    string // TOML flow file, optional

	LogFormat       string
	LogLevel        string
	HealthcheckPort int

	FramePeriod time.Duration
	MaxFrames   uint64
	FrameWidth  int
	FrameHeight int

	// MinVersion and MaxVersion bound the plugin interface versions
	// accepted from manifests. Zero means 1 and the current version.
	MinVersion int
	MaxVersion int

	// FirstNode and LastNode pick the nodes a pause captures.
	FirstNode    string
	LastNode     string
	SnapshotPath string

	EditorURL       string
	EditorNamespace string
	EditorInsecure  bool

	// Watch reloads the pipeline whenever the flow file changes.
	Watch bool
}

// Default frame geometry handed to sources that do not set their own.
const (
	DefaultFrameWidth  = 640
	DefaultFrameHeight = 480
)

// NewConfig fills defaults into cfg and validates it.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.PluginsPath == "" {
		return nil, errors.New("PluginsPath is a required configuration field and cannot be empty")
	}

	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("invalid log format %q: must be 'text' or 'json'", cfg.LogFormat)
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return nil, err
	}

	if cfg.HealthcheckPort < 0 || cfg.HealthcheckPort > 65535 {
		return nil, fmt.Errorf("invalid health check port %d", cfg.HealthcheckPort)
	}
	if cfg.FramePeriod < 0 {
		return nil, fmt.Errorf("frame period must not be negative, got %s", cfg.FramePeriod)
	}
	if cfg.FrameWidth == 0 {
		cfg.FrameWidth = DefaultFrameWidth
	}
	if cfg.FrameHeight == 0 {
		cfg.FrameHeight = DefaultFrameHeight
	}
	if cfg.FrameWidth < 0 || cfg.FrameHeight < 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", cfg.FrameWidth, cfg.FrameHeight)
	}

	if cfg.MinVersion < 0 || cfg.MaxVersion < 0 {
		return nil, errors.New("plugin versions must not be negative")
	}
	if cfg.MaxVersion > plugin.APIVersion {
		return nil, fmt.Errorf("max plugin version %d is newer than this host (%d)", cfg.MaxVersion, plugin.APIVersion)
	}
	if cfg.MinVersion > 0 && cfg.MaxVersion > 0 && cfg.MinVersion > cfg.MaxVersion {
		return nil, fmt.Errorf("empty plugin version range [%d, %d]", cfg.MinVersion, cfg.MaxVersion)
	}

	if cfg.EditorURL != "" {
		u, err := url.Parse(cfg.EditorURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid editor URL %q", cfg.EditorURL)
		}
	}
	if cfg.Watch {
		if cfg.FlowPath == "" {
			return nil, errors.New("watching needs a flow file")
		}
		// The editor owns the graph while connected.
		if cfg.EditorURL != "" {
			return nil, errors.New("watching the flow file and connecting an editor are mutually exclusive")
		}
	}
	return &cfg, nil
}
