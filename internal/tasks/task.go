package tasks

import (
	"sort"
	"time"
)

// Task is a to-do item as the rest of the application sees it. The due date
// has already been normalized to a point in time.
type Task struct {
	ID        string    `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	DueDate   time.Time `json:"dueDate" yaml:"dueDate"`
	IsDone    bool      `json:"isDone" yaml:"isDone"`
	CreatedAt int64     `json:"createdAt" yaml:"createdAt"`
}

// Document is a task as read from a backend, before due date normalization.
type Document struct {
	ID        string
	Title     string
	DueDate   RawDueDate
	IsDone    bool
	CreatedAt int64
}

// Task normalizes the document, substituting now for an unreadable due date.
func (d Document) Task(now time.Time) Task {
	return Task{
		ID:        d.ID,
		Title:     d.Title,
		DueDate:   ParseDate(d.DueDate, now),
		IsDone:    d.IsDone,
		CreatedAt: d.CreatedAt,
	}
}

// Fields is the full set of values written when a task is created.
type Fields struct {
	Title     string `json:"title"`
	DueDate   int64  `json:"dueDate"`
	IsDone    bool   `json:"isDone"`
	CreatedAt int64  `json:"createdAt"`
}

// Patch is a partial update. Nil members are left untouched by the store.
// createdAt is deliberately absent: it never changes after creation.
type Patch struct {
	Title   *string `json:"title,omitempty"`
	DueDate *int64  `json:"dueDate,omitempty"`
	IsDone  *bool   `json:"isDone,omitempty"`
}

// Empty reports whether the patch changes nothing
func (p Patch) Empty() bool {
	return p.Title == nil && p.DueDate == nil && p.IsDone == nil
}

// Apply merges the patch into a document
func (p Patch) Apply(d *Document) {
	if p.Title != nil {
		d.Title = *p.Title
	}
	if p.DueDate != nil {
		d.DueDate = Epoch(*p.DueDate)
	}
	if p.IsDone != nil {
		d.IsDone = *p.IsDone
	}
}

// NewDocument builds the document a create request stores
func NewDocument(id string, f Fields) Document {
	return Document{
		ID:        id,
		Title:     f.Title,
		DueDate:   Epoch(f.DueDate),
		IsDone:    f.IsDone,
		CreatedAt: f.CreatedAt,
	}
}

// SortDocuments orders documents by createdAt, breaking ties by id so that
// every backend produces the same order for the same data.
func SortDocuments(docs []Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].CreatedAt != docs[j].CreatedAt {
			return docs[i].CreatedAt < docs[j].CreatedAt
		}
		return docs[i].ID < docs[j].ID
	})
}

// Normalize turns ordered documents into tasks
func Normalize(docs []Document, now time.Time) []Task {
	out := make([]Task, len(docs))
	for i, d := range docs {
		out[i] = d.Task(now)
	}
	return out
}

func StringPtr(s string) *string { return &s }
func Int64Ptr(n int64) *int64    { return &n }
func BoolPtr(b bool) *bool       { return &b }
