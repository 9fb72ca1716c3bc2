// Package session tracks the task being created or edited and turns a
// commit into exactly one store request.
package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pdxmph/todo-tui/internal/tasks"
)

// Mode is the state of the edit session
type Mode int

const (
	Idle Mode = iota
	Creating
	Editing
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case Creating:
		return "creating"
	case Editing:
		return "editing"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

var (
	// ErrNoDraft is returned when a draft is changed while idle
	ErrNoDraft = errors.New("no task is being edited")

	ErrEmptyTitle = errors.New("title must not be empty")
	ErrNoTarget   = errors.New("no task selected for editing")
)

// ValidationError means a commit was refused. The session is unchanged.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

// Option configures a Session
type Option func(*Session)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// Session is the edit session state machine. It is not safe for concurrent
// use; the UI event loop owns it.
type Session struct {
	mode   Mode
	target string
	title  string
	due    time.Time
	now    func() time.Time
}

// New creates an idle session
func New(opts ...Option) *Session {
	s := &Session{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartCreate begins a new task with an empty title due now
func (s *Session) StartCreate() {
	s.mode = Creating
	s.target = ""
	s.title = ""
	s.due = s.now()
}

// StartEdit begins editing t, seeding the draft from it
func (s *Session) StartEdit(t tasks.Task) {
	s.mode = Editing
	s.target = t.ID
	s.title = t.Title
	s.due = t.DueDate
}

// UpdateDraftTitle sets the draft title
func (s *Session) UpdateDraftTitle(text string) error {
	if s.mode == Idle {
		return ErrNoDraft
	}
	s.title = text
	return nil
}

// UpdateDraftDate sets the draft due date
func (s *Session) UpdateDraftDate(t time.Time) error {
	if s.mode == Idle {
		return ErrNoDraft
	}
	s.due = t
	return nil
}

// Commit validates the draft and returns the request that saves it, then
// goes idle. Committing while idle returns nil and no error. On a
// validation error nothing changes.
func (s *Session) Commit() (*tasks.Request, error) {
	if s.mode == Idle {
		return nil, nil
	}

	title := strings.TrimSpace(s.title)
	if title == "" {
		return nil, &ValidationError{Err: ErrEmptyTitle}
	}

	var req tasks.Request
	switch s.mode {
	case Creating:
		req = tasks.Request{
			Op: tasks.OpCreate,
			Fields: tasks.Fields{
				Title:     title,
				DueDate:   s.due.UnixMilli(),
				IsDone:    false,
				CreatedAt: s.now().UnixMilli(),
			},
		}
	case Editing:
		if s.target == "" {
			return nil, &ValidationError{Err: ErrNoTarget}
		}
		req = tasks.Request{
			Op: tasks.OpUpdate,
			ID: s.target,
			Patch: tasks.Patch{
				Title:   tasks.StringPtr(title),
				DueDate: tasks.Int64Ptr(s.due.UnixMilli()),
			},
		}
	}

	s.reset()
	return &req, nil
}

// Cancel drops the draft and goes idle
func (s *Session) Cancel() {
	s.reset()
}

func (s *Session) reset() {
	s.mode = Idle
	s.target = ""
	s.title = ""
	s.due = time.Time{}
}

// Mode returns the current state
func (s *Session) Mode() Mode { return s.mode }

// Target returns the id being edited, or "" unless Editing
func (s *Session) Target() string { return s.target }

// Title returns the draft title
func (s *Session) Title() string { return s.title }

// Due returns the draft due date
func (s *Session) Due() time.Time { return s.due }

// Editing reports whether an existing task is being edited
func (s *Session) Editing() bool { return s.mode == Editing }
