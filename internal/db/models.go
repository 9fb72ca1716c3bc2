package db

import (
	"github.com/pdxmph/todo-tui/internal/tasks"
)

// Todo is a row of the todos table
type Todo struct {
	ID    string
	Title string
	// DueDate has no column affinity, so it scans as int64 for current rows
	// and as string (or []byte) for rows written by older clients.
	DueDate   interface{}
	IsDone    bool
	CreatedAt int64
}

// Document converts the row to the backend-neutral form
func (t Todo) Document() tasks.Document {
	return tasks.Document{
		ID:        t.ID,
		Title:     t.Title,
		DueDate:   tasks.RawFromValue(t.DueDate),
		IsDone:    t.IsDone,
		CreatedAt: t.CreatedAt,
	}
}
