package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdxmph/todo-tui/internal/config"
	"github.com/pdxmph/todo-tui/internal/session"
	"github.com/pdxmph/todo-tui/internal/tasks"
)

// writeConfig points the sqlite backend and the log at a temp dir
func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := fmt.Sprintf(`[store]
backend = "sqlite"
collection = "todos"

[database]
path = %q
driver = "sqlite"

[log]
path = %q
level = "debug"
`, filepath.Join(dir, "todos.db"), filepath.Join(dir, "todo.log"))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func execute(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRoot()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func mustExecute(t *testing.T, cfgPath string, args ...string) string {
	t.Helper()
	out, err := execute(t, cfgPath, args...)
	require.NoError(t, err, "todo %s", strings.Join(args, " "))
	return out
}

func listJSON(t *testing.T, cfgPath string, args ...string) []tasks.Task {
	t.Helper()
	out := mustExecute(t, cfgPath, append([]string{"list", "-o", "json"}, args...)...)
	var list []tasks.Task
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	return list
}

func TestRootHasCommands(t *testing.T) {
	cmd := NewRoot()
	assert.Equal(t, "todo", cmd.Use)

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	for _, want := range []string{"tui", "init", "add", "edit", "list", "toggle", "rm", "login", "backends"} {
		assert.Contains(t, names, want)
	}
}

func TestAddThenList(t *testing.T) {
	cfg := writeConfig(t)
	out := mustExecute(t, cfg, "init")
	assert.Contains(t, out, "Created database")
	assert.NotContains(t, out, "Wrote default config")

	id := strings.TrimSpace(mustExecute(t, cfg, "add", "Buy", "milk", "--due", "2030-01-02 15:04"))
	require.NotEmpty(t, id)

	list := listJSON(t, cfg)
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)
	assert.Equal(t, "Buy milk", list[0].Title)
	assert.False(t, list[0].IsDone)

	want, err := tasks.ParseInput("2030-01-02 15:04")
	require.NoError(t, err)
	assert.True(t, want.Equal(list[0].DueDate), "got %v", list[0].DueDate)

	text := mustExecute(t, cfg, "list")
	assert.Contains(t, text, "TITLE")
	assert.Contains(t, text, "Buy milk")
	assert.Contains(t, text, id[:8])
}

func TestAddBlankTitleFails(t *testing.T) {
	cfg := writeConfig(t)
	mustExecute(t, cfg, "init")

	_, err := execute(t, cfg, "add", "   ")
	var verr *session.ValidationError
	require.True(t, errors.As(err, &verr), "got %v", err)
	assert.ErrorIs(t, err, session.ErrEmptyTitle)

	assert.Empty(t, listJSON(t, cfg, "--all"))
}

func TestAddBadDueFails(t *testing.T) {
	cfg := writeConfig(t)
	mustExecute(t, cfg, "init")

	_, err := execute(t, cfg, "add", "x", "--due", "tomorrow-ish")
	assert.Error(t, err)
	assert.Empty(t, listJSON(t, cfg, "--all"))
}

func TestToggleMovesTaskToDone(t *testing.T) {
	cfg := writeConfig(t)
	mustExecute(t, cfg, "init")
	id := strings.TrimSpace(mustExecute(t, cfg, "add", "Water plants"))

	out := mustExecute(t, cfg, "toggle", id[:8])
	assert.Contains(t, out, "Completed: Water plants")

	assert.Contains(t, mustExecute(t, cfg, "list"), "No tasks.")

	yml := mustExecute(t, cfg, "list", "--done", "-o", "yaml")
	assert.Contains(t, yml, "title: Water plants")
	assert.Contains(t, yml, "isDone: true")

	out = mustExecute(t, cfg, "toggle", id)
	assert.Contains(t, out, "Reopened")
	assert.Len(t, listJSON(t, cfg), 1)
}

func TestEditChangesOnlyTitle(t *testing.T) {
	cfg := writeConfig(t)
	mustExecute(t, cfg, "init")
	id := strings.TrimSpace(mustExecute(t, cfg, "add", "Old", "--due", "2030-01-02"))
	before := listJSON(t, cfg)[0]

	mustExecute(t, cfg, "edit", id, "--title", "New")

	after := listJSON(t, cfg)
	require.Len(t, after, 1)
	assert.Equal(t, "New", after[0].Title)
	assert.True(t, before.DueDate.Equal(after[0].DueDate))
	assert.Equal(t, before.CreatedAt, after[0].CreatedAt)
}

func TestEditNeedsAFlag(t *testing.T) {
	cfg := writeConfig(t)
	mustExecute(t, cfg, "init")
	id := strings.TrimSpace(mustExecute(t, cfg, "add", "x"))

	_, err := execute(t, cfg, "edit", id)
	assert.ErrorContains(t, err, "nothing to change")
}

func TestEditMissingTaskIsNotFound(t *testing.T) {
	cfg := writeConfig(t)
	mustExecute(t, cfg, "init")

	_, err := execute(t, cfg, "edit", "nope", "--title", "x")
	assert.ErrorIs(t, err, tasks.ErrNotFound)
	assert.Empty(t, listJSON(t, cfg, "--all"))
}

func TestRmIsIdempotent(t *testing.T) {
	cfg := writeConfig(t)
	mustExecute(t, cfg, "init")
	id := strings.TrimSpace(mustExecute(t, cfg, "add", "x"))

	assert.Contains(t, mustExecute(t, cfg, "rm", id[:8]), "Deleted")
	assert.Empty(t, listJSON(t, cfg, "--all"))

	assert.Contains(t, mustExecute(t, cfg, "rm", id), "Deleted")
}

func TestListRejectsUnknownFormat(t *testing.T) {
	cfg := writeConfig(t)
	mustExecute(t, cfg, "init")

	_, err := execute(t, cfg, "list", "-o", "xml")
	assert.ErrorContains(t, err, "unknown output format")
}

func TestListDoneAndAllAreExclusive(t *testing.T) {
	cfg := writeConfig(t)
	mustExecute(t, cfg, "init")

	_, err := execute(t, cfg, "list", "--done", "--all")
	assert.Error(t, err)
}

func TestInitFixtures(t *testing.T) {
	cfg := writeConfig(t)
	mustExecute(t, cfg, "init", "--fixtures")

	all := listJSON(t, cfg, "--all")
	assert.Len(t, all, 7)
	assert.Len(t, listJSON(t, cfg, "--done"), 2)

	_, err := execute(t, cfg, "init")
	assert.Error(t, err, "init must not overwrite an existing database")
}

func TestMissingDatabaseIsAnError(t *testing.T) {
	cfg := writeConfig(t)

	_, err := execute(t, cfg, "list")
	assert.Error(t, err)

	out := mustExecute(t, cfg, "--store", "memory", "list")
	assert.Contains(t, out, "No tasks.")
}

func TestRootRunsTUI(t *testing.T) {
	cfg := writeConfig(t)
	mustExecute(t, cfg, "init")

	orig := runTUI
	defer func() { runTUI = orig }()

	var backend string
	runTUI = func(ctx context.Context, store tasks.Store) error {
		backend = store.Name()
		return nil
	}

	mustExecute(t, cfg)
	assert.Equal(t, "sqlite", backend)

	mustExecute(t, cfg, "--store", "memory", "tui")
	assert.Equal(t, "memory", backend)

	_, err := os.Stat(filepath.Join(filepath.Dir(cfg), "todo.log"))
	assert.NoError(t, err)
}

func TestBackendsMarksConfigured(t *testing.T) {
	cfg := writeConfig(t)

	out := mustExecute(t, cfg, "backends")
	assert.Contains(t, out, "* sqlite")
	assert.Contains(t, out, "  memory")
	assert.Contains(t, out, "  firestore")
}

func TestFindTask(t *testing.T) {
	list := []tasks.Task{{ID: "abc123"}, {ID: "abd456"}, {ID: "ab"}}

	got, err := findTask(list, "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc123", got.ID)

	got, err = findTask(list, "ab")
	require.NoError(t, err)
	assert.Equal(t, "ab", got.ID, "an exact id wins over prefixes")

	_, err = findTask(list, "a")
	assert.ErrorContains(t, err, "ambiguous")

	_, err = findTask(list, "zzz")
	assert.ErrorIs(t, err, tasks.ErrNotFound)
}

func TestSaveConfigUsesStandardLocation(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg := config.Default()
	cfg.Database.Driver = "sqlite"
	require.NoError(t, saveConfig(cfg, ""))

	opts := &options{}
	require.NoError(t, opts.load())
	assert.Equal(t, "sqlite", opts.cfg.Database.Driver)
	assert.Equal(t, config.Path(), opts.path())
}

func TestSaveConfigCreatesNamedDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := config.Default()
	cfg.Store.Backend = "memory"
	require.NoError(t, saveConfig(cfg, path))

	opts := &options{configPath: path, backend: "firestore"}
	require.NoError(t, opts.load())
	assert.Equal(t, "firestore", opts.cfg.Store.Backend, "--store wins over the file")
}
