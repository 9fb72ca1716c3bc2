package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("FIRESTORE_EMULATOR_HOST", "")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, "todos", cfg.Store.Collection)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, 2*time.Second, cfg.Firestore.PollInterval.Duration)
}

func TestLoadFromParsesFile(t *testing.T) {
	t.Setenv("FIRESTORE_EMULATOR_HOST", "")
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[store]
backend = "firestore"
collection = "chores"

[database]
path = "~/todos.db"
driver = "sqlite"

[firestore]
project_id = "my-todo-app"
poll_interval = "500ms"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	home, _ := os.UserHomeDir()
	assert.Equal(t, "firestore", cfg.Store.Backend)
	assert.Equal(t, "chores", cfg.Store.Collection)
	assert.Equal(t, filepath.Join(home, "todos.db"), cfg.Database.Path)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "my-todo-app", cfg.Firestore.ProjectID)
	assert.Equal(t, "(default)", cfg.Firestore.DatabaseID)
	assert.Equal(t, 500*time.Millisecond, cfg.Firestore.PollInterval.Duration)
}

func TestLoadFromRejectsUnknownDriver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[database]\ndriver = \"postgres\"\n"), 0644))

	_, err := LoadFrom(path)
	assert.Error(t, err)
}

func TestEmulatorHostOverridesEndpoint(t *testing.T) {
	t.Setenv("FIRESTORE_EMULATOR_HOST", "localhost:8080")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/", cfg.Firestore.Endpoint)
}

func TestSaveToRoundTrip(t *testing.T) {
	t.Setenv("FIRESTORE_EMULATOR_HOST", "")
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.Store.Backend = "memory"
	cfg.Firestore.PollInterval = Duration{5 * time.Second}
	require.NoError(t, cfg.SaveTo(path))

	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "memory", loaded.Store.Backend)
	assert.Equal(t, 5*time.Second, loaded.Firestore.PollInterval.Duration)
}
