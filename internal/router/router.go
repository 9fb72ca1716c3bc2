// Package router selects the active view and keeps the edit session
// consistent with it.
package router

import (
	"fmt"

	"github.com/pdxmph/todo-tui/internal/session"
	"github.com/pdxmph/todo-tui/internal/tasks"
)

// View is one of the screens
type View int

const (
	Pending View = iota
	Edit
	Completed
)

// Views lists the views in tab order
var Views = []View{Pending, Edit, Completed}

func (v View) String() string {
	switch v {
	case Pending:
		return "Pending"
	case Edit:
		return "Edit"
	case Completed:
		return "Completed"
	}
	return fmt.Sprintf("View(%d)", int(v))
}

// Router holds the active view
type Router struct {
	active  View
	session *session.Session
}

// New starts on the pending list
func New(s *session.Session) *Router {
	return &Router{active: Pending, session: s}
}

// Active returns the current view
func (r *Router) Active() View {
	return r.active
}

// Session returns the edit session the router drives
func (r *Router) Session() *session.Session {
	return r.session
}

// Switch changes view. Entering Edit this way always starts a fresh create,
// so an edit left behind earlier is never resumed. Leaving Edit drops the
// draft.
func (r *Router) Switch(v View) {
	switch {
	case v == Edit:
		r.session.StartCreate()
	case r.active == Edit:
		r.session.Cancel()
	}
	r.active = v
}

// StartAdd opens the form for a new task
func (r *Router) StartAdd() {
	r.session.StartCreate()
	r.active = Edit
}

// StartEdit opens the form on an existing task
func (r *Router) StartEdit(t tasks.Task) {
	r.session.StartEdit(t)
	r.active = Edit
}

// Done returns to the pending list after a commit
func (r *Router) Done() {
	r.session.Cancel()
	r.active = Pending
}

// Next moves one tab right, wrapping
func (r *Router) Next() {
	r.Switch(Views[(r.index()+1)%len(Views)])
}

// Prev moves one tab left, wrapping
func (r *Router) Prev() {
	r.Switch(Views[(r.index()+len(Views)-1)%len(Views)])
}

func (r *Router) index() int {
	for i, v := range Views {
		if v == r.active {
			return i
		}
	}
	return 0
}
