package graph

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/vk/framegrid/internal/cadence"
	"github.com/vk/framegrid/internal/ctxlog"
	"github.com/vk/framegrid/internal/manifest"
	"github.com/vk/framegrid/internal/nodeid"
	"github.com/vk/framegrid/internal/plugin"
)

// LoadReport summarizes a LoadAll call.
type LoadReport struct {
	// Loaded lists the names of the nodes created, in load order.
	Loaded []string
	errs   *multierror.Error
}

// Err returns every load warning aggregated, or nil.
func (r *LoadReport) Err() error {
	return r.errs.ErrorOrNil()
}

// Warnings returns the individual load warnings.
func (r *LoadReport) Warnings() []error {
	if r.errs == nil {
		return nil
	}
	return r.errs.Errors
}

func (r *LoadReport) warn(err error) {
	r.errs = multierror.Append(r.errs, err)
}

// LoadAll discovers every manifest under the category subdirectories of
// dir and loads its plugins. Per-plugin failures become warnings; only an
// unreadable dir is fatal.
func (m *Manager) LoadAll(ctx context.Context, dir string) (*LoadReport, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Plugin discovery started.", "path", dir)

	found, err := manifest.Find(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("loading plugins: %w", err)
	}

	report := &LoadReport{}
	for _, w := range found.Warnings {
		le := &LoadError{Reason: LoadManifest, Err: w}
		if fe, ok := w.(*manifest.FileError); ok {
			le.File, le.Err = fe.Path, fe.Err
		}
		report.warn(le)
	}
	for _, p := range found.Plugins {
		name, err := m.Load(ctx, p)
		if err != nil {
			logger.Warn("Skipping plugin.", "plugin", p.Label, "file", p.File, "error", err)
			report.warn(err)
			continue
		}
		report.Loaded = append(report.Loaded, name)
	}
	logger.Info("Plugins loaded.", "loaded", len(report.Loaded), "warnings", len(report.Warnings()))
	return report, nil
}

// Load instantiates one manifest entry and names it `label@vN`.
func (m *Manager) Load(ctx context.Context, mp manifest.Plugin) (string, error) {
	fail := func(reason LoadReason, err error) (string, error) {
		return "", &LoadError{Plugin: mp.Label, File: mp.File, Reason: reason, Err: err}
	}

	f, ok := m.registry.Lookup(mp.Implementation)
	if !ok {
		return fail(LoadUnknownImpl, fmt.Errorf("no implementation %q", mp.Implementation))
	}
	if f.Category != mp.Category {
		return fail(LoadCategoryMismatch, fmt.Errorf("%s is a %s, found under %s", f.Name, f.Category, mp.Category))
	}
	if f.Version < m.opts.MinVersion || f.Version > m.opts.MaxVersion {
		return fail(LoadUnsupportedVersion, fmt.Errorf("version %d outside [%d,%d]", f.Version, m.opts.MinVersion, m.opts.MaxVersion))
	}

	name := nodeid.New(mp.Label, f.Version).String()
	if _, err := nodeid.Parse(name); err != nil {
		return fail(LoadInvalidName, err)
	}
	m.mu.RLock()
	_, dup := m.nodes[name]
	m.mu.RUnlock()
	if dup {
		return fail(LoadDuplicate, fmt.Errorf("%s already loaded", name))
	}

	p := f.New()
	if err := checkPorts(f.Category, p); err != nil {
		f.Destroy(p)
		return fail(LoadBadPorts, err)
	}
	if len(mp.Settings) > 0 {
		if err := p.ImportSettings(mp.Settings); err != nil {
			f.Destroy(p)
			return fail(LoadSettings, err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.nodes[name]; dup {
		f.Destroy(p)
		return fail(LoadDuplicate, fmt.Errorf("%s already loaded", name))
	}
	m.add(newNode(name, mp.Label, mp.Description, f, p))
	ctxlog.FromContext(ctx).Debug("Plugin loaded.", "node", name, "implementation", f.Name, "category", f.Category.String())
	return name, nil
}

func checkPorts(c plugin.Category, p plugin.Plugin) error {
	in, out := len(p.InputFormats()), len(p.OutputFormats())
	switch {
	case c == plugin.Source && (in != 0 || out == 0):
		return fmt.Errorf("a source needs outputs and no inputs, has %d in / %d out", in, out)
	case c == plugin.Transform && (in == 0 || out == 0):
		return fmt.Errorf("a transform needs inputs and outputs, has %d in / %d out", in, out)
	case c == plugin.Sink && (in == 0 || out != 0):
		return fmt.Errorf("a sink needs inputs and no outputs, has %d in / %d out", in, out)
	}
	return nil
}

// UnloadAll destroys every node, newest first, and leaves the manager
// empty.
func (m *Manager) UnloadAll(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	logger := ctxlog.FromContext(ctx)
	for i := len(m.order) - 1; i >= 0; i-- {
		n := m.nodes[m.order[i]]
		n.factory.Destroy(n.plugin)
		logger.Debug("Plugin unloaded.", "node", n.name)
	}
	m.nodes = make(map[string]*Node)
	m.order = nil
	m.root = nil
	m.cadence = cadence.New()
}
