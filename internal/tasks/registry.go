package tasks

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pdxmph/todo-tui/internal/config"
)

// BackendFactory opens a store from the application config
type BackendFactory func(cfg *config.Config) (Store, error)

// Registry manages available store backends
type Registry struct {
	mu       sync.RWMutex
	backends map[string]BackendFactory
}

// NewRegistry creates a new backend registry
func NewRegistry() *Registry {
	return &Registry{
		backends: make(map[string]BackendFactory),
	}
}

// Register adds a new backend factory to the registry
func (r *Registry) Register(name string, factory BackendFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.backends[name]; exists {
		return fmt.Errorf("backend %s already registered", name)
	}

	r.backends[name] = factory
	return nil
}

// Create opens the named backend with cfg. An unknown name is reported
// together with the names that would have worked.
func (r *Registry) Create(name string, cfg *config.Config) (Store, error) {
	r.mu.RLock()
	factory, exists := r.backends[name]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unknown store backend %q (available: %s)", name, strings.Join(r.List(), ", "))
	}

	store, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", name, err)
	}
	return store, nil
}

// List returns all registered backend names, sorted
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Global registry instance
var defaultRegistry = NewRegistry()

// Register adds a backend to the global registry
func Register(name string, factory BackendFactory) error {
	return defaultRegistry.Register(name, factory)
}

// ListBackends returns all registered backend names from the global registry
func ListBackends() []string {
	return defaultRegistry.List()
}
