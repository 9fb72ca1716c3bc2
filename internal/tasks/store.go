package tasks

import (
	"context"
	"fmt"
	"sync"
)

// Store is a single task collection in a document store.
type Store interface {
	// Name returns the backend identifier (e.g., "sqlite", "firestore")
	Name() string

	// Subscribe starts delivering full ordered snapshots of the collection.
	// The first snapshot is sent right away, then one per change.
	Subscribe(ctx context.Context) (*Subscription, error)

	// Create stores a new task and returns the id the store assigned.
	Create(ctx context.Context, f Fields) (string, error)

	// Update merges the patch into an existing task. It returns ErrNotFound
	// if the id no longer exists.
	Update(ctx context.Context, id string, p Patch) error

	// Delete removes a task. Deleting an absent id is not an error.
	Delete(ctx context.Context, id string) error

	// Close releases the backend's resources
	Close() error
}

// Snapshot is the whole collection at one moment, ordered by createdAt.
// A snapshot with Err set reports an outage and carries no tasks; the
// previous state should be kept until a good snapshot arrives.
type Snapshot struct {
	Tasks []Task
	Err   error
}

// Subscription is a live stream of snapshots.
type Subscription struct {
	ch     <-chan Snapshot
	cancel func()
	once   sync.Once
	done   chan struct{}
}

// NewSubscription wraps a snapshot channel and the function that tears the
// producer down. The producer must close the channel once cancel returns.
func NewSubscription(ch <-chan Snapshot, cancel func()) *Subscription {
	return &Subscription{ch: ch, cancel: cancel, done: make(chan struct{})}
}

// Snapshots returns the delivery channel. It is closed after Cancel.
func (s *Subscription) Snapshots() <-chan Snapshot {
	return s.ch
}

// Cancel unsubscribes. Safe to call more than once.
func (s *Subscription) Cancel() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		close(s.done)
	})
}

// Done is closed once the subscription has been cancelled
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// CancelOnDone ties the subscription to ctx
func (s *Subscription) CancelOnDone(ctx context.Context) {
	if ctx.Done() == nil {
		return
	}
	go func() {
		select {
		case <-ctx.Done():
			s.Cancel()
		case <-s.done:
		}
	}()
}

// Op is the kind of mutation a Request performs
type Op int

const (
	OpCreate Op = iota
	OpUpdate
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// Request is one mutation against the store.
type Request struct {
	Op     Op
	ID     string
	Fields Fields
	Patch  Patch
}

// Toggle flips a task's completion flag and touches nothing else.
func Toggle(t Task) Request {
	return Request{Op: OpUpdate, ID: t.ID, Patch: Patch{IsDone: BoolPtr(!t.IsDone)}}
}

// Remove deletes a task
func Remove(id string) Request {
	return Request{Op: OpDelete, ID: id}
}

// Dispatch sends the request to the store. For creates it returns the new id;
// for the other ops it returns the request's id.
func (r Request) Dispatch(ctx context.Context, s Store) (string, error) {
	switch r.Op {
	case OpCreate:
		id, err := s.Create(ctx, r.Fields)
		if err != nil {
			return "", fmt.Errorf("creating task: %w", err)
		}
		return id, nil
	case OpUpdate:
		if err := s.Update(ctx, r.ID, r.Patch); err != nil {
			return r.ID, fmt.Errorf("updating task %s: %w", r.ID, err)
		}
		return r.ID, nil
	case OpDelete:
		if err := s.Delete(ctx, r.ID); err != nil {
			return r.ID, fmt.Errorf("deleting task %s: %w", r.ID, err)
		}
		return r.ID, nil
	}
	return "", fmt.Errorf("unknown request op %v", r.Op)
}

// FirstSnapshot subscribes, waits for the first good snapshot and
// unsubscribes. Used by one-shot commands.
func FirstSnapshot(ctx context.Context, s Store) ([]Task, error) {
	sub, err := s.Subscribe(ctx)
	if err != nil {
		return nil, err
	}
	defer sub.Cancel()

	select {
	case snap, ok := <-sub.Snapshots():
		if !ok {
			return nil, fmt.Errorf("subscription closed before first snapshot")
		}
		if snap.Err != nil {
			return nil, snap.Err
		}
		return snap.Tasks, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
