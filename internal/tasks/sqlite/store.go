// Package sqlite serves the task collection from a local SQLite file.
// Writes made by other processes (a second todo instance, the CLI) are
// noticed through fsnotify and republished to subscribers.
package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/pdxmph/todo-tui/internal/config"
	"github.com/pdxmph/todo-tui/internal/db"
	"github.com/pdxmph/todo-tui/internal/tasks"
)

const debounce = 150 * time.Millisecond

// Store is the SQLite-backed task store
type Store struct {
	db     *db.DB
	broker *tasks.Broker
	now    func() time.Time

	// mu orders query-then-publish so subscribers never see an older
	// snapshot after a newer one
	mu sync.Mutex

	watcher   *fsnotify.Watcher
	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Open opens the database named in the config and starts watching it
func Open(cfg *config.Config) (*Store, error) {
	database, err := db.Open(cfg.Database.Driver, cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	s, err := New(database)
	if err != nil {
		database.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database. The store owns it from here on.
func New(database *db.DB) (*Store, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(database.Path())); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching database directory: %w", err)
	}

	s := &Store{
		db:      database,
		broker:  tasks.NewBroker(),
		now:     time.Now,
		watcher: watcher,
		stop:    make(chan struct{}),
	}

	s.wg.Add(1)
	go s.watch()

	return s, nil
}

// Name returns the backend identifier
func (s *Store) Name() string {
	return "sqlite"
}

// Subscribe sends the current table contents, then a snapshot per change.
// If the table cannot be read the first snapshot carries the error.
func (s *Store) Subscribe(ctx context.Context) (*tasks.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.snapshotLocked()
	if err != nil {
		slog.Warn("listing tasks", "error", err)
		snap = tasks.Snapshot{Err: err}
	}
	sub := s.broker.Subscribe(snap)
	sub.CancelOnDone(ctx)
	return sub, nil
}

// Create inserts a row under a fresh uuid
func (s *Store) Create(ctx context.Context, f tasks.Fields) (string, error) {
	id := uuid.NewString()
	if err := s.db.AddTodo(tasks.NewDocument(id, f)); err != nil {
		return "", &tasks.TransportError{Op: "create", Err: err}
	}
	s.refresh()
	return id, nil
}

// Update applies the patch to an existing row
func (s *Store) Update(ctx context.Context, id string, p tasks.Patch) error {
	if err := s.db.UpdateTodo(id, p); err != nil {
		if tasks.IsNotFound(err) {
			return err
		}
		return &tasks.TransportError{Op: "update", Err: err}
	}
	s.refresh()
	return nil
}

// Delete removes a row; missing ids are ignored
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.db.DeleteTodo(id); err != nil {
		return &tasks.TransportError{Op: "delete", Err: err}
	}
	s.refresh()
	return nil
}

// Close stops the watcher, ends subscriptions and closes the database
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stop)
		s.watcher.Close()
		s.wg.Wait()
		s.broker.Close()
		err = s.db.Close()
	})
	return err
}

func (s *Store) snapshotLocked() (tasks.Snapshot, error) {
	docs, err := s.db.ListTodos()
	if err != nil {
		return tasks.Snapshot{}, &tasks.TransportError{Op: "list", Err: err}
	}
	tasks.SortDocuments(docs)
	return tasks.Snapshot{Tasks: tasks.Normalize(docs, s.now())}, nil
}

// refresh re-reads the table and publishes it. A failed read is published
// as an outage so subscribers keep their last good state.
func (s *Store) refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.snapshotLocked()
	if err != nil {
		slog.Warn("refreshing tasks", "error", err)
		snap = tasks.Snapshot{Err: err}
	}
	s.broker.Publish(snap)
}

func (s *Store) watch() {
	defer s.wg.Done()

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-s.stop:
			if timer != nil {
				timer.Stop()
			}
			return
		case evt, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if !s.isDatabaseFile(evt.Name) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			s.refresh()
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("database watcher", "error", err)
		}
	}
}

// isDatabaseFile matches the db file and its journal companions
func (s *Store) isDatabaseFile(name string) bool {
	base := filepath.Base(s.db.Path())
	got := filepath.Base(name)
	if got == base {
		return true
	}
	// -shm is skipped; it changes on every read
	for _, suffix := range []string{"-wal", "-journal"} {
		if got == base+suffix {
			return true
		}
	}
	return false
}

func init() {
	tasks.Register("sqlite", func(cfg *config.Config) (tasks.Store, error) {
		return Open(cfg)
	})
}
