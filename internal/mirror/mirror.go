// Package mirror holds the client's copy of the task collection.
package mirror

import (
	"sync"

	"github.com/pdxmph/todo-tui/internal/tasks"
)

// Mirror is the local copy of the store's collection. It only changes when a
// snapshot is applied; readers get copies.
type Mirror struct {
	mu     sync.RWMutex
	tasks  []tasks.Task
	byID   map[string]int
	loaded bool
}

// New creates an empty, not yet loaded mirror
func New() *Mirror {
	return &Mirror{byID: make(map[string]int)}
}

// ApplySnapshot replaces the mirror with the given ordered tasks. Nothing of
// the previous contents survives.
func (m *Mirror) ApplySnapshot(ordered []tasks.Task) {
	next := make([]tasks.Task, len(ordered))
	copy(next, ordered)

	byID := make(map[string]int, len(next))
	for i, t := range next {
		byID[t.ID] = i
	}

	m.mu.Lock()
	m.tasks = next
	m.byID = byID
	m.loaded = true
	m.mu.Unlock()
}

// Tasks returns the whole mirror in order
func (m *Mirror) Tasks() []tasks.Task {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]tasks.Task, len(m.tasks))
	copy(out, m.tasks)
	return out
}

// Pending returns the tasks not yet done, in mirror order
func (m *Mirror) Pending() []tasks.Task {
	return m.filter(false)
}

// Completed returns the done tasks, in mirror order
func (m *Mirror) Completed() []tasks.Task {
	return m.filter(true)
}

func (m *Mirror) filter(done bool) []tasks.Task {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []tasks.Task
	for _, t := range m.tasks {
		if t.IsDone == done {
			out = append(out, t)
		}
	}
	return out
}

// Lookup finds a task by id
func (m *Mirror) Lookup(id string) (tasks.Task, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i, ok := m.byID[id]
	if !ok {
		return tasks.Task{}, false
	}
	return m.tasks[i], true
}

// Loaded reports whether any snapshot has been applied
func (m *Mirror) Loaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loaded
}

// Len returns the number of tasks
func (m *Mirror) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tasks)
}
