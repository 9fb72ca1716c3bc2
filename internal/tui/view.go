package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/padding"
	"github.com/muesli/reflow/truncate"

	"github.com/pdxmph/todo-tui/internal/router"
	"github.com/pdxmph/todo-tui/internal/session"
)

// View renders the UI
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	if m.deleteConfirmMode {
		return m.renderDeleteConfirmation()
	}

	bodyHeight := m.height - 5

	var body string
	switch m.router.Active() {
	case router.Edit:
		body = m.renderForm(m.width-2, bodyHeight)
	default:
		body = m.renderList(m.width-2, bodyHeight)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderTabs(),
		borderStyle.Width(m.width-2).Height(bodyHeight).Render(body),
		m.renderStatus(),
		m.renderHelp(),
	)
}

func (m Model) renderTabs() string {
	counts := map[router.View]string{
		router.Pending:   fmt.Sprintf(" (%d)", len(m.mirror.Pending())),
		router.Completed: fmt.Sprintf(" (%d)", len(m.mirror.Completed())),
	}

	var tabs []string
	for i, v := range router.Views {
		label := fmt.Sprintf("%d %s%s", i+1, v, counts[v])
		if v == m.router.Active() {
			tabs = append(tabs, activeTabStyle.Render(label))
		} else {
			tabs = append(tabs, tabStyle.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

// renderList renders the pending or completed list
func (m Model) renderList(width, height int) string {
	var lines []string

	if m.filterMode || m.filter.Value() != "" {
		lines = append(lines, m.filter.View())
		lines = append(lines, "")
		height -= 2
	}

	if !m.mirror.Loaded() {
		return strings.Join(append(lines, labelStyle.Render("Loading tasks...")), "\n")
	}

	visible := m.visibleTasks()
	if len(visible) == 0 {
		empty := "Nothing to do. Press a to add a task."
		if m.router.Active() == router.Completed {
			empty = "No completed tasks yet."
		}
		if m.filter.Value() != "" {
			empty = "No tasks match the filter."
		}
		return strings.Join(append(lines, labelStyle.Render(empty)), "\n")
	}

	startIdx := 0
	if m.selected >= height {
		startIdx = m.selected - height + 1
	}

	now := time.Now()
	dueWidth := 18
	titleWidth := width - dueWidth - 6
	if titleWidth < 10 {
		titleWidth = 10
	}

	for i := startIdx; i < len(visible) && i < startIdx+height; i++ {
		t := visible[i]

		box := "[ ] "
		if t.IsDone {
			box = "[x] "
		}

		title := strings.TrimSpace(strings.ReplaceAll(t.Title, "\n", " "))
		title = padding.String(truncate.StringWithTail(title, uint(titleWidth), "…"), uint(titleWidth))
		due := formatDue(t.DueDate, now)
		line := box + title + "  " + due

		switch {
		case i == m.selected:
			line = selectedStyle.Render(line)
		case t.IsDone:
			line = doneStyle.Render(line)
		case isOverdue(t, now):
			line = box + title + "  " + overdueStyle.Render(due)
		}

		lines = append(lines, line)
	}

	return strings.Join(lines, "\n")
}

// formatDue shows nearby dates by weekday and others in full
func formatDue(due, now time.Time) string {
	due = due.Local()
	y1, m1, d1 := due.Date()
	y2, m2, d2 := now.Date()
	switch {
	case y1 == y2 && m1 == m2 && d1 == d2:
		return "today " + due.Format("15:04")
	case due.After(now) && due.Sub(now) < 6*24*time.Hour:
		return due.Format("Mon 15:04")
	case y1 == y2:
		return due.Format("Jan 2 15:04")
	}
	return due.Format("Jan 2 2006")
}

func (m Model) renderForm(width, height int) string {
	s := m.router.Session()

	heading := "New Task"
	if s.Mode() == session.Editing {
		heading = "Edit Task"
	}

	var lines []string
	lines = append(lines, heading)
	lines = append(lines, strings.Repeat("─", min(40, width)))
	lines = append(lines, "")

	fieldLabels := []string{
		"Title:  ",
		"Due:    ",
	}
	for i, label := range fieldLabels {
		var fieldView string
		if i == m.formField {
			fieldView = label + m.formInputs[i].View()
		} else {
			value := m.formInputs[i].Value()
			if value == "" {
				value = labelStyle.Render(m.formInputs[i].Placeholder)
			}
			fieldView = label + value
		}
		lines = append(lines, fieldView)
		lines = append(lines, "")
	}

	if m.formErr != "" {
		lines = append(lines, errorStyle.Render(m.formErr))
	}

	return strings.Join(lines, "\n")
}

// renderStatus shows connectivity, in-flight writes and notices
func (m Model) renderStatus() string {
	var parts []string
	if m.offline != nil {
		parts = append(parts, errorStyle.Render("● offline: "+m.offline.Error()))
	}
	if m.inFlight > 0 {
		parts = append(parts, labelStyle.Render("saving…"))
	}
	if m.notice != "" {
		parts = append(parts, noticeStyle.Render(m.notice))
	}
	return " " + strings.Join(parts, "  ")
}

func (m Model) renderHelp() string {
	if m.router.Active() == router.Edit {
		return " Tab/↓: next field • Shift+Tab/↑: prev • Enter: save • Esc: cancel"
	}

	if m.filterMode {
		return " Type to filter • ↑/↓: navigate • Enter: confirm • Esc: cancel"
	}

	help := " j/k: navigate • a: add • e: edit • space: toggle • d: delete • /: filter • tab/1-3: view"

	if m.retry != nil {
		help += " • r: retry"
	}

	if m.filter.Value() != "" {
		help += " • Esc: clear filter"
	}

	help += " • q: quit"

	return help
}

// renderDeleteConfirmation renders the delete confirmation prompt
func (m Model) renderDeleteConfirmation() string {
	width := 60
	height := 7

	prompt := fmt.Sprintf("Delete task '%s'? (y/n)", m.deleteTitle)

	content := lipgloss.NewStyle().
		Width(width-4).
		Height(height-4).
		Align(lipgloss.Center, lipgloss.Center).
		Render(prompt)

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("63")).
		Width(width).
		Height(height).
		Render(content)

	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(box)
}
