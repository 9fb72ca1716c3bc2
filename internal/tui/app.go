package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"github.com/pdxmph/todo-tui/internal/mirror"
	"github.com/pdxmph/todo-tui/internal/router"
	"github.com/pdxmph/todo-tui/internal/session"
	"github.com/pdxmph/todo-tui/internal/tasks"
)

// dueLayout is how due dates are shown in the form
const dueLayout = "2006-01-02 15:04"

// Form field indices
const (
	FormFieldTitle = iota
	FormFieldDue
	FormFieldCount
)

// Model represents the main application state
type Model struct {
	ctx    context.Context
	store  tasks.Store
	sub    *tasks.Subscription
	mirror *mirror.Mirror
	router *router.Router

	selected   int
	width      int
	height     int
	filterMode bool
	filter     textinput.Model

	// Edit form
	formField  int
	formInputs []textinput.Model
	formErr    string

	// The due date the form was loaded with and how it was shown. The text
	// is minute precision, so unchanged text keeps the exact seeded value.
	dueSeed time.Time
	dueText string

	// Delete confirmation mode
	deleteConfirmMode bool
	deleteID          string
	deleteTitle       string

	// Store status
	offline  error
	inFlight int
	notice   string
	retry    *tasks.Request
}

// Styles
var (
	selectedStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("62")).
			Foreground(lipgloss.Color("230"))

	overdueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	doneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Strikethrough(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	tabStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Padding(0, 1)

	borderStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("240"))
)

// New subscribes to the store and builds the model. The subscription lives
// until Close.
func New(ctx context.Context, store tasks.Store) (*Model, error) {
	sub, err := store.Subscribe(ctx)
	if err != nil {
		return nil, fmt.Errorf("subscribing to tasks: %w", err)
	}

	ti := textinput.New()
	ti.Placeholder = "Filter tasks..."
	ti.Width = 30
	ti.CharLimit = 50
	ti.Prompt = "> "
	ti.TextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("230"))
	ti.PromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	ti.PlaceholderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))

	formInputs := make([]textinput.Model, FormFieldCount)
	for i := range formInputs {
		formInputs[i] = textinput.New()
		formInputs[i].Width = 40
		formInputs[i].Prompt = ""

		switch i {
		case FormFieldTitle:
			formInputs[i].Placeholder = "What needs doing?"
			formInputs[i].CharLimit = 200
		case FormFieldDue:
			formInputs[i].Placeholder = dueLayout
			formInputs[i].CharLimit = 25
		}
	}

	return &Model{
		ctx:        ctx,
		store:      store,
		sub:        sub,
		mirror:     mirror.New(),
		router:     router.New(session.New()),
		filter:     ti,
		formInputs: formInputs,
	}, nil
}

// Close cancels the subscription. Safe to call more than once.
func (m *Model) Close() {
	m.sub.Cancel()
}

// Init starts listening for snapshots
func (m Model) Init() tea.Cmd {
	return waitForSnapshot(m.sub)
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.width > 0 {
			m.filter.Width = m.width/2 - 4
		}
		return m, nil

	case snapshotMsg:
		if msg.snap.Err != nil {
			// keep showing the last good state
			m.offline = msg.snap.Err
		} else {
			m.offline = nil
			m.mirror.ApplySnapshot(msg.snap.Tasks)
			m.selected = m.ensureValidSelection()
		}
		return m, waitForSnapshot(m.sub)

	case subscriptionClosedMsg:
		if m.offline == nil {
			m.offline = errors.New("subscription closed")
		}
		return m, nil

	case mutationDoneMsg:
		return m.handleMutationDone(msg), nil

	case tea.KeyMsg:
		if m.deleteConfirmMode {
			return m.updateDeleteConfirm(msg)
		}
		if m.router.Active() == router.Edit {
			return m.updateForm(msg)
		}
		if m.filterMode {
			return m.updateFilter(msg)
		}
		return m.updateList(msg)
	}

	return m, nil
}

func (m Model) handleMutationDone(msg mutationDoneMsg) Model {
	m.inFlight--
	switch {
	case msg.err == nil:
		if m.retry != nil && *m.retry == msg.req {
			m.retry = nil
		}
		m.notice = ""
	case tasks.IsNotFound(msg.err):
		// Never turned into a create; the edit is dropped
		m.notice = "Task was deleted elsewhere; edit discarded"
		m.retry = nil
	case tasks.IsTransport(msg.err):
		req := msg.req
		m.retry = &req
		m.notice = fmt.Sprintf("Could not %s task (store unreachable). Press r to retry", msg.req.Op)
	default:
		m.notice = msg.err.Error()
	}
	if msg.err != nil {
		slog.Warn("mutation failed", "op", msg.req.Op.String(), "id", msg.req.ID, "error", msg.err)
	}
	return m
}

func (m Model) send(req tasks.Request) (Model, tea.Cmd) {
	m.inFlight++
	return m, dispatch(m.ctx, m.store, req)
}

func (m Model) updateDeleteConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	id := m.deleteID
	m.deleteConfirmMode = false
	m.deleteID = ""
	m.deleteTitle = ""

	switch msg.String() {
	case "y", "Y":
		return m.send(tasks.Remove(id))
	}
	// Any other key cancels
	return m, nil
}

func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	s := m.router.Session()

	switch msg.String() {
	case "ctrl+c":
		m.Close()
		return m, tea.Quit

	case "esc":
		m.router.Switch(router.Pending)
		m.formErr = ""
		m.blurForm()
		return m, nil

	case "enter":
		if err := m.syncDraft(); err != nil {
			m.formErr = err.Error()
			return m, nil
		}
		req, err := s.Commit()
		if err != nil {
			m.formErr = err.Error()
			return m, nil
		}
		m.formErr = ""
		m.blurForm()
		m.router.Done()
		if req == nil {
			return m, nil
		}
		return m.send(*req)

	case "tab", "down":
		m.focusField((m.formField + 1) % FormFieldCount)
		return m, textinput.Blink

	case "shift+tab", "up":
		m.focusField((m.formField + FormFieldCount - 1) % FormFieldCount)
		return m, textinput.Blink
	}

	var cmd tea.Cmd
	m.formInputs[m.formField], cmd = m.formInputs[m.formField].Update(msg)

	switch m.formField {
	case FormFieldTitle:
		s.UpdateDraftTitle(m.formInputs[FormFieldTitle].Value())
	case FormFieldDue:
		if due, ok, err := m.draftDue(); ok && err == nil {
			s.UpdateDraftDate(due)
		}
	}
	return m, cmd
}

// syncDraft copies the form into the session. An unreadable due date is
// reported rather than replaced.
func (m Model) syncDraft() error {
	s := m.router.Session()
	if err := s.UpdateDraftTitle(m.formInputs[FormFieldTitle].Value()); err != nil {
		return err
	}

	due, ok, err := m.draftDue()
	if err != nil {
		return fmt.Errorf("due date: %w", err)
	}
	if !ok {
		return nil
	}
	return s.UpdateDraftDate(due)
}

// draftDue reads the due field. ok is false when the field is empty.
func (m Model) draftDue() (time.Time, bool, error) {
	text := strings.TrimSpace(m.formInputs[FormFieldDue].Value())
	switch text {
	case "":
		return time.Time{}, false, nil
	case m.dueText:
		return m.dueSeed, true, nil
	}
	due, err := tasks.ParseInput(text)
	if err != nil {
		return time.Time{}, false, err
	}
	return due, true, nil
}

func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.filterMode = false
		m.filter.Reset()
		m.selected = m.ensureValidSelection()
		return m, nil
	case "enter":
		m.filterMode = false
		m.filter.Blur()
		m.selected = m.ensureValidSelection()
		return m, nil
	case "up":
		if m.selected > 0 {
			m.selected--
		}
		return m, nil
	case "down":
		if m.selected < len(m.visibleTasks())-1 {
			m.selected++
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.selected = m.ensureValidSelection()
	return m, cmd
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.Close()
		return m, tea.Quit

	case "j", "down":
		if m.selected < len(m.visibleTasks())-1 {
			m.selected++
		}

	case "k", "up":
		if m.selected > 0 {
			m.selected--
		}

	case "a":
		m.router.StartAdd()
		cmd := m.loadForm()
		return m, cmd

	case "e", "enter":
		if t, ok := m.selectedTask(); ok {
			m.router.StartEdit(t)
			cmd := m.loadForm()
			return m, cmd
		}

	case " ", "space", "x":
		if t, ok := m.selectedTask(); ok {
			return m.send(tasks.Toggle(t))
		}

	case "d":
		if t, ok := m.selectedTask(); ok {
			m.deleteConfirmMode = true
			m.deleteID = t.ID
			m.deleteTitle = t.Title
		}

	case "r":
		if m.retry != nil {
			req := *m.retry
			m.notice = "Retrying..."
			return m.send(req)
		}

	case "tab":
		m.router.Next()
		cmd := m.afterSwitch()
		return m, cmd

	case "shift+tab":
		m.router.Prev()
		cmd := m.afterSwitch()
		return m, cmd

	case "1":
		m.router.Switch(router.Pending)
		cmd := m.afterSwitch()
		return m, cmd

	case "2":
		m.router.Switch(router.Edit)
		cmd := m.afterSwitch()
		return m, cmd

	case "3":
		m.router.Switch(router.Completed)
		cmd := m.afterSwitch()
		return m, cmd

	case "/":
		m.filterMode = true
		m.filter.Reset()
		m.filter.Focus()
		return m, textinput.Blink

	case "esc":
		if m.filter.Value() != "" {
			m.filter.Reset()
			m.selected = m.ensureValidSelection()
		} else {
			m.notice = ""
		}
	}

	return m, nil
}

// afterSwitch prepares whichever view the router just entered
func (m *Model) afterSwitch() tea.Cmd {
	m.selected = 0
	m.filter.Reset()
	if m.router.Active() == router.Edit {
		return m.loadForm()
	}
	return nil
}

// loadForm fills the form from the session's draft
func (m *Model) loadForm() tea.Cmd {
	s := m.router.Session()
	m.formErr = ""
	m.formInputs[FormFieldTitle].SetValue(s.Title())
	due := ""
	if !s.Due().IsZero() {
		due = s.Due().Local().Format(dueLayout)
	}
	m.dueSeed = s.Due()
	m.dueText = due
	m.formInputs[FormFieldDue].SetValue(due)
	m.focusField(FormFieldTitle)
	return textinput.Blink
}

func (m *Model) focusField(field int) {
	for i := range m.formInputs {
		m.formInputs[i].Blur()
	}
	m.formField = field
	m.formInputs[field].Focus()
}

func (m *Model) blurForm() {
	for i := range m.formInputs {
		m.formInputs[i].Blur()
	}
	m.formField = FormFieldTitle
}

// listTasks returns the partition the active view shows
func (m Model) listTasks() []tasks.Task {
	if m.router.Active() == router.Completed {
		return m.mirror.Completed()
	}
	return m.mirror.Pending()
}

// visibleTasks applies the fuzzy filter, keeping mirror order
func (m Model) visibleTasks() []tasks.Task {
	list := m.listTasks()
	query := m.filter.Value()
	if query == "" {
		return list
	}

	titles := make([]string, len(list))
	for i, t := range list {
		titles[i] = t.Title
	}
	matches := fuzzy.Find(query, titles)
	sort.Slice(matches, func(i, j int) bool { return matches[i].Index < matches[j].Index })

	out := make([]tasks.Task, len(matches))
	for i, match := range matches {
		out[i] = list[match.Index]
	}
	return out
}

func (m Model) selectedTask() (tasks.Task, bool) {
	if m.router.Active() == router.Edit {
		return tasks.Task{}, false
	}
	visible := m.visibleTasks()
	if m.selected < 0 || m.selected >= len(visible) {
		return tasks.Task{}, false
	}
	return visible[m.selected], true
}

// ensureValidSelection ensures the current selection is within bounds
func (m Model) ensureValidSelection() int {
	visible := m.visibleTasks()
	if len(visible) == 0 {
		return 0
	}
	if m.selected >= len(visible) {
		return len(visible) - 1
	}
	if m.selected < 0 {
		return 0
	}
	return m.selected
}

// isOverdue reports whether a pending task's due date has passed
func isOverdue(t tasks.Task, now time.Time) bool {
	return !t.IsDone && t.DueDate.Before(now)
}

// Run shows the TUI until the user quits
func Run(ctx context.Context, store tasks.Store) error {
	model, err := New(ctx, store)
	if err != nil {
		return err
	}
	defer model.Close()

	p := tea.NewProgram(*model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running TUI: %w", err)
	}
	return nil
}
