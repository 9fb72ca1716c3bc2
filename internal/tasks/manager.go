package tasks

import (
	"fmt"
	"log/slog"

	"github.com/pdxmph/todo-tui/internal/config"
)

// Manager handles store backend selection
type Manager struct {
	store Store
}

// NewManager opens the backend named in the config.
// If none is named, it tries backends in order of preference.
func NewManager(cfg *config.Config) (*Manager, error) {
	return newManager(defaultRegistry, cfg)
}

func newManager(r *Registry, cfg *config.Config) (*Manager, error) {
	name := cfg.Store.Backend
	if name != "" {
		store, err := r.Create(name, cfg)
		if err != nil {
			return nil, err
		}
		return &Manager{store: store}, nil
	}

	backendPreference := []string{"sqlite", "memory"}
	var lastErr error
	for _, candidate := range backendPreference {
		store, err := r.Create(candidate, cfg)
		if err != nil {
			slog.Warn("backend unavailable", "backend", candidate, "error", err)
			lastErr = err
			continue
		}
		return &Manager{store: store}, nil
	}
	return nil, fmt.Errorf("no usable backend: %w", lastErr)
}

// Store returns the current backend
func (m *Manager) Store() Store {
	return m.store
}

// Name returns the name of the current backend
func (m *Manager) Name() string {
	return m.store.Name()
}

// Close releases the backend
func (m *Manager) Close() error {
	return m.store.Close()
}
