// Package memory is an in-process task store. Nothing survives a restart.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pdxmph/todo-tui/internal/config"
	"github.com/pdxmph/todo-tui/internal/tasks"
)

var errOffline = errors.New("memory store set offline")

// Store keeps documents in a map and publishes a snapshot after every change
type Store struct {
	mu      sync.Mutex
	docs    map[string]tasks.Document
	broker  *tasks.Broker
	now     func() time.Time
	offline bool
}

// New creates an empty store
func New() *Store {
	return &Store{
		docs:   make(map[string]tasks.Document),
		broker: tasks.NewBroker(),
		now:    time.Now,
	}
}

// Name returns the backend identifier
func (s *Store) Name() string {
	return "memory"
}

// Seed inserts documents as-is, legacy due dates included
func (s *Store) Seed(docs ...tasks.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range docs {
		if d.ID == "" {
			d.ID = uuid.NewString()
		}
		s.docs[d.ID] = d
	}
	s.publishLocked()
}

// SetOffline makes every operation fail with a transport error until reset
func (s *Store) SetOffline(offline bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offline = offline
	if !offline {
		s.publishLocked()
	}
}

// Subscribe registers a subscriber and sends it the current snapshot. While
// offline the first snapshot reports the outage; going back online
// publishes the contents.
func (s *Store) Subscribe(ctx context.Context) (*tasks.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	first := s.snapshotLocked()
	if s.offline {
		first = tasks.Snapshot{Err: &tasks.TransportError{Op: "list", Err: errOffline}}
	}
	sub := s.broker.Subscribe(first)
	sub.CancelOnDone(ctx)
	return sub, nil
}

// Create stores a new document under a fresh id
func (s *Store) Create(ctx context.Context, f tasks.Fields) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.offline {
		return "", &tasks.TransportError{Op: "create", Err: errOffline}
	}
	id := uuid.NewString()
	s.docs[id] = tasks.NewDocument(id, f)
	s.publishLocked()
	return id, nil
}

// Update merges the patch into an existing document
func (s *Store) Update(ctx context.Context, id string, p tasks.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.offline {
		return &tasks.TransportError{Op: "update", Err: errOffline}
	}
	doc, ok := s.docs[id]
	if !ok {
		return tasks.ErrNotFound
	}
	p.Apply(&doc)
	s.docs[id] = doc
	s.publishLocked()
	return nil
}

// Delete removes a document; absent ids are ignored
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.offline {
		return &tasks.TransportError{Op: "delete", Err: errOffline}
	}
	if _, ok := s.docs[id]; !ok {
		return nil
	}
	delete(s.docs, id)
	s.publishLocked()
	return nil
}

// Close ends all subscriptions
func (s *Store) Close() error {
	s.broker.Close()
	return nil
}

func (s *Store) snapshotLocked() tasks.Snapshot {
	docs := make([]tasks.Document, 0, len(s.docs))
	for _, d := range s.docs {
		docs = append(docs, d)
	}
	tasks.SortDocuments(docs)
	return tasks.Snapshot{Tasks: tasks.Normalize(docs, s.now())}
}

func (s *Store) publishLocked() {
	s.broker.Publish(s.snapshotLocked())
}

func init() {
	tasks.Register("memory", func(*config.Config) (tasks.Store, error) { return New(), nil })
}
