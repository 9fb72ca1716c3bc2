package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pdxmph/todo-tui/internal/tasks"
)

// snapshotMsg carries one snapshot from the subscription
type snapshotMsg struct {
	snap tasks.Snapshot
}

// subscriptionClosedMsg means the store ended the subscription
type subscriptionClosedMsg struct{}

// mutationDoneMsg reports the outcome of a dispatched request
type mutationDoneMsg struct {
	req tasks.Request
	id  string
	err error
}

// waitForSnapshot blocks on the subscription until the next snapshot. The
// model re-issues it after every delivery, so exactly one is outstanding.
func waitForSnapshot(sub *tasks.Subscription) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-sub.Snapshots()
		if !ok {
			return subscriptionClosedMsg{}
		}
		return snapshotMsg{snap: snap}
	}
}

// dispatch sends a request without blocking the event loop. The view only
// changes when the resulting snapshot arrives.
func dispatch(ctx context.Context, store tasks.Store, req tasks.Request) tea.Cmd {
	return func() tea.Msg {
		id, err := req.Dispatch(ctx, store)
		return mutationDoneMsg{req: req, id: id, err: err}
	}
}
