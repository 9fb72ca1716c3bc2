package tui

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdxmph/todo-tui/internal/router"
	"github.com/pdxmph/todo-tui/internal/session"
	"github.com/pdxmph/todo-tui/internal/tasks"
	"github.com/pdxmph/todo-tui/internal/tasks/memory"
)

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "end":
		return tea.KeyMsg{Type: tea.KeyEnd}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m Model, s string) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(key(s))
	return next.(Model), cmd
}

// deliver applies the next snapshot from the store
func deliver(t *testing.T, m Model) Model {
	t.Helper()
	done := make(chan tea.Msg, 1)
	go func() { done <- waitForSnapshot(m.sub)() }()
	select {
	case msg := <-done:
		next, _ := m.Update(msg)
		return next.(Model)
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
		return m
	}
}

// run executes a mutation command and feeds its result back
func run(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	require.NotNil(t, cmd)
	msg := cmd()
	done, ok := msg.(mutationDoneMsg)
	require.True(t, ok, "expected mutationDoneMsg, got %T", msg)
	next, _ := m.Update(done)
	return next.(Model)
}

func newTestModel(t *testing.T, store *memory.Store) Model {
	t.Helper()
	m, err := New(context.Background(), store)
	require.NoError(t, err)
	t.Cleanup(m.Close)

	model := *m
	next, _ := model.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return deliver(t, next.(Model))
}

func TestAddTaskFlow(t *testing.T) {
	store := memory.New()
	m := newTestModel(t, store)
	assert.True(t, m.mirror.Loaded())

	m, _ = press(t, m, "a")
	assert.Equal(t, router.Edit, m.router.Active())
	assert.Equal(t, session.Creating, m.router.Session().Mode())

	m, _ = press(t, m, "Buy milk")
	assert.Equal(t, "Buy milk", m.router.Session().Title())

	m, cmd := press(t, m, "enter")
	assert.Equal(t, router.Pending, m.router.Active())
	assert.Equal(t, session.Idle, m.router.Session().Mode())
	assert.Equal(t, 1, m.inFlight)

	// nothing shows until the store confirms
	assert.Empty(t, m.mirror.Pending())

	m = run(t, m, cmd)
	assert.Zero(t, m.inFlight)
	m = deliver(t, m)

	pending := m.mirror.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "Buy milk", pending[0].Title)
	assert.False(t, pending[0].IsDone)
	assert.Contains(t, m.View(), "Buy milk")
}

func TestBlankTitleShowsValidationError(t *testing.T) {
	m := newTestModel(t, memory.New())

	m, _ = press(t, m, "a")
	m, _ = press(t, m, "   ")
	m, cmd := press(t, m, "enter")

	assert.Nil(t, cmd)
	assert.Equal(t, router.Edit, m.router.Active())
	assert.Equal(t, session.Creating, m.router.Session().Mode())
	assert.NotEmpty(t, m.formErr)
}

func TestEditTaskFlow(t *testing.T) {
	store := memory.New()
	due := time.Date(2030, 1, 2, 15, 4, 0, 0, time.Local)
	store.Seed(tasks.Document{ID: "42", Title: "Old", DueDate: tasks.Epoch(due.UnixMilli()), CreatedAt: 1})
	m := newTestModel(t, store)

	m, _ = press(t, m, "e")
	require.Equal(t, router.Edit, m.router.Active())
	assert.Equal(t, "42", m.router.Session().Target())
	assert.Equal(t, "Old", m.formInputs[FormFieldTitle].Value())
	assert.Equal(t, "2030-01-02 15:04", m.formInputs[FormFieldDue].Value())

	m.formInputs[FormFieldTitle].SetValue("New")
	m, cmd := press(t, m, "enter")
	m = run(t, m, cmd)
	m = deliver(t, m)

	got, ok := m.mirror.Lookup("42")
	require.True(t, ok)
	assert.Equal(t, "New", got.Title)
	assert.Equal(t, due.UnixMilli(), got.DueDate.UnixMilli())
}

func TestTitleOnlyEditKeepsExactDueDate(t *testing.T) {
	store := memory.New()
	due := time.Date(2030, 1, 2, 15, 4, 37, 123e6, time.Local)
	store.Seed(tasks.Document{ID: "42", Title: "Old", DueDate: tasks.Epoch(due.UnixMilli()), CreatedAt: 1})
	m := newTestModel(t, store)

	m, _ = press(t, m, "e")
	m.formInputs[FormFieldTitle].SetValue("New")
	m, cmd := press(t, m, "enter")
	m = run(t, m, cmd)
	m = deliver(t, m)

	got, ok := m.mirror.Lookup("42")
	require.True(t, ok)
	assert.Equal(t, "New", got.Title)
	assert.Equal(t, due.UnixMilli(), got.DueDate.UnixMilli())
}

func TestRetypedDueTextKeepsExactDueDate(t *testing.T) {
	store := memory.New()
	due := time.Date(2030, 1, 2, 15, 4, 37, 123e6, time.Local)
	store.Seed(tasks.Document{ID: "42", Title: "Old", DueDate: tasks.Epoch(due.UnixMilli()), CreatedAt: 1})
	m := newTestModel(t, store)

	m, _ = press(t, m, "e")
	m, _ = press(t, m, "tab")
	require.Equal(t, FormFieldDue, m.formField)

	m.formInputs[FormFieldDue].SetValue("2030-01-03 09:00")
	m, _ = press(t, m, "end")
	require.Equal(t, 3, m.router.Session().Due().Day())

	m.formInputs[FormFieldDue].SetValue("2030-01-02 15:04")
	m, _ = press(t, m, "end")
	assert.True(t, due.Equal(m.router.Session().Due()))

	m, cmd := press(t, m, "enter")
	m = run(t, m, cmd)
	m = deliver(t, m)

	got, ok := m.mirror.Lookup("42")
	require.True(t, ok)
	assert.Equal(t, due.UnixMilli(), got.DueDate.UnixMilli())
}

func TestChangedDueTextReplacesDueDate(t *testing.T) {
	store := memory.New()
	due := time.Date(2030, 1, 2, 15, 4, 37, 123e6, time.Local)
	store.Seed(tasks.Document{ID: "42", Title: "Old", DueDate: tasks.Epoch(due.UnixMilli()), CreatedAt: 1})
	m := newTestModel(t, store)

	m, _ = press(t, m, "e")
	m.formInputs[FormFieldDue].SetValue("2030-01-03 09:00")
	m, cmd := press(t, m, "enter")
	m = run(t, m, cmd)
	m = deliver(t, m)

	want := time.Date(2030, 1, 3, 9, 0, 0, 0, time.Local)
	got, ok := m.mirror.Lookup("42")
	require.True(t, ok)
	assert.Equal(t, want.UnixMilli(), got.DueDate.UnixMilli())
}

func TestEditOfDeletedTaskShowsNotice(t *testing.T) {
	store := memory.New()
	store.Seed(tasks.Document{ID: "42", Title: "Old", DueDate: tasks.Epoch(0), CreatedAt: 1})
	m := newTestModel(t, store)

	m, _ = press(t, m, "e")
	require.NoError(t, store.Delete(context.Background(), "42"))

	m, cmd := press(t, m, "enter")
	m = run(t, m, cmd)

	assert.Contains(t, m.notice, "deleted elsewhere")
	assert.Nil(t, m.retry)
	assert.Equal(t, session.Idle, m.router.Session().Mode())

	m = deliver(t, m)
	assert.Zero(t, m.mirror.Len())
}

func TestToggleAndRetryAfterOutage(t *testing.T) {
	store := memory.New()
	store.Seed(tasks.Document{ID: "1", Title: "Water plants", DueDate: tasks.Epoch(0), CreatedAt: 1})
	m := newTestModel(t, store)

	store.SetOffline(true)
	m, cmd := press(t, m, " ")
	m = run(t, m, cmd)
	require.NotNil(t, m.retry)
	assert.Contains(t, m.notice, "retry")

	store.SetOffline(false)
	m = deliver(t, m)

	m, cmd = press(t, m, "r")
	m = run(t, m, cmd)
	assert.Nil(t, m.retry)

	m = deliver(t, m)
	assert.Empty(t, m.mirror.Pending())
	assert.Len(t, m.mirror.Completed(), 1)
}

func TestDeleteAsksForConfirmation(t *testing.T) {
	store := memory.New()
	store.Seed(tasks.Document{ID: "1", Title: "Old news", DueDate: tasks.Epoch(0), CreatedAt: 1})
	m := newTestModel(t, store)

	m, _ = press(t, m, "d")
	assert.True(t, m.deleteConfirmMode)
	assert.Contains(t, m.View(), "Old news")

	m, cmd := press(t, m, "n")
	assert.Nil(t, cmd)
	assert.False(t, m.deleteConfirmMode)

	m, _ = press(t, m, "d")
	m, cmd = press(t, m, "y")
	m = run(t, m, cmd)
	m = deliver(t, m)
	assert.Zero(t, m.mirror.Len())
}

func TestOutageSnapshotKeepsMirror(t *testing.T) {
	store := memory.New()
	store.Seed(tasks.Document{ID: "1", Title: "keep me", DueDate: tasks.Epoch(0), CreatedAt: 1})
	m := newTestModel(t, store)

	next, _ := m.Update(snapshotMsg{snap: tasks.Snapshot{Err: &tasks.TransportError{Op: "list", Err: assert.AnError}}})
	m = next.(Model)

	assert.Error(t, m.offline)
	assert.Equal(t, 1, m.mirror.Len())
	assert.Contains(t, m.View(), "offline")
}

func TestStartsWhileStoreUnreachable(t *testing.T) {
	store := memory.New()
	store.Seed(tasks.Document{ID: "1", Title: "later", DueDate: tasks.Epoch(0), CreatedAt: 1})
	store.SetOffline(true)

	m := newTestModel(t, store)
	assert.Error(t, m.offline)
	assert.False(t, m.mirror.Loaded())

	store.SetOffline(false)
	m = deliver(t, m)
	assert.NoError(t, m.offline)
	assert.Equal(t, 1, m.mirror.Len())
}

func TestTabSwitchToEditStartsFreshCreate(t *testing.T) {
	store := memory.New()
	store.Seed(tasks.Document{ID: "1", Title: "x", DueDate: tasks.Epoch(0), CreatedAt: 1})
	m := newTestModel(t, store)

	m, _ = press(t, m, "e")
	m, _ = press(t, m, "esc")
	assert.Equal(t, router.Pending, m.router.Active())

	m, _ = press(t, m, "2")
	assert.Equal(t, router.Edit, m.router.Active())
	assert.Equal(t, session.Creating, m.router.Session().Mode())
	assert.Equal(t, "", m.formInputs[FormFieldTitle].Value())
}

func TestFuzzyFilterKeepsOrder(t *testing.T) {
	store := memory.New()
	store.Seed(
		tasks.Document{ID: "1", Title: "buy milk", DueDate: tasks.Epoch(0), CreatedAt: 1},
		tasks.Document{ID: "2", Title: "call mum", DueDate: tasks.Epoch(0), CreatedAt: 2},
		tasks.Document{ID: "3", Title: "make lunch", DueDate: tasks.Epoch(0), CreatedAt: 3},
	)
	m := newTestModel(t, store)

	m, _ = press(t, m, "/")
	m, _ = press(t, m, "ml")
	visible := m.visibleTasks()

	var ids []string
	for _, tk := range visible {
		ids = append(ids, tk.ID)
	}
	assert.Equal(t, []string{"1", "3"}, ids)
}

func TestLongTitlesAreTruncatedByWidth(t *testing.T) {
	store := memory.New()
	store.Seed(tasks.Document{ID: "1", Title: strings.Repeat("ä", 300), DueDate: tasks.Epoch(0), CreatedAt: 1})
	m := newTestModel(t, store)

	view := m.View()
	assert.True(t, utf8.ValidString(view))
	assert.Contains(t, view, "…")
	assert.NotContains(t, view, strings.Repeat("ä", 300))
}

func TestQuitCancelsSubscription(t *testing.T) {
	m := newTestModel(t, memory.New())

	_, cmd := press(t, m, "q")
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	select {
	case <-m.sub.Done():
	default:
		t.Fatal("subscription still active")
	}
}
