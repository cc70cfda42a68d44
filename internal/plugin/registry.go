package plugin

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Module is the interface that all compiled-in modules implement to be
// registered.
type Module interface {
	Register(r *Registry)
}

// Factory is the loadable description of one implementation. New and
// Release are its two entry points.
type Factory struct {
	// Name is the implementation key manifests refer to.
	Name     string
	Category Category
	// Version is the plugin interface version the implementation targets.
	Version int
	// New constructs a fresh, independent instance.
	New func() Plugin
	// Release destroys an instance. Optional.
	Release func(Plugin)
	// Cloneable allows more than one instance in a graph.
	Cloneable bool
}

// Destroy runs the factory destructor on p, if there is one.
func (f *Factory) Destroy(p Plugin) {
	if f.Release != nil && p != nil {
		f.Release(p)
	}
}

// Registry holds every registered factory for a single application
// instance.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]*Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]*Factory)}
}

// Register adds a factory. Registering the same name twice, or a factory
// without a constructor, is a programmer error and panics.
func (r *Registry) Register(f *Factory) {
	if f == nil || f.New == nil {
		panic("plugin factory must have a constructor")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[f.Name]; exists {
		panic(fmt.Sprintf("plugin factory with name '%s' already registered", f.Name))
	}
	slog.Debug("Registering plugin factory.", "name", f.Name, "category", f.Category.String(), "version", f.Version)
	r.factories[f.Name] = f
}

// Lookup returns the factory registered under name.
func (r *Registry) Lookup(name string) (*Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// Names returns the registered implementation names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered factories.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.factories)
}
