// Package firestore serves the task collection from Cloud Firestore over the
// REST API. The REST surface has no listen stream, so subscriptions poll the
// collection and publish when the result changes.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	fs "google.golang.org/api/firestore/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/pdxmph/todo-tui/internal/auth"
	"github.com/pdxmph/todo-tui/internal/config"
	"github.com/pdxmph/todo-tui/internal/tasks"
)

const pageSize = 300

// Store is a Firestore-backed task store for one collection
type Store struct {
	docs       *fs.ProjectsDatabasesDocumentsService
	parent     string
	collection string
	interval   time.Duration
	now        func() time.Time
	broker     *tasks.Broker

	// mu serializes list-then-publish and guards the poll state below
	mu     sync.Mutex
	last   []tasks.Document
	loaded bool
	failed bool

	nudge     chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Open connects to the database named in the config
func Open(ctx context.Context, cfg *config.Config) (*Store, error) {
	fc := cfg.Firestore
	if fc.ProjectID == "" {
		return nil, fmt.Errorf("firestore.project_id is not set")
	}

	opts, err := clientOptions(ctx, fc)
	if err != nil {
		return nil, err
	}

	svc, err := fs.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating Firestore client: %w", err)
	}

	return New(svc, fc.ProjectID, fc.DatabaseID, cfg.Store.Collection, fc.PollInterval.Duration), nil
}

func clientOptions(ctx context.Context, fc config.FirestoreConfig) ([]option.ClientOption, error) {
	if fc.Endpoint != "" {
		// The emulator accepts any caller
		return []option.ClientOption{
			option.WithEndpoint(fc.Endpoint),
			option.WithoutAuthentication(),
		}, nil
	}

	ts, err := auth.TokenSource(ctx, fc)
	if err != nil {
		return nil, err
	}
	return []option.ClientOption{option.WithTokenSource(ts)}, nil
}

// New wraps a Firestore service. Polling starts right away but only lists the
// collection while someone is subscribed.
func New(svc *fs.Service, projectID, databaseID, collection string, interval time.Duration) *Store {
	if databaseID == "" {
		databaseID = "(default)"
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		docs:       svc.Projects.Databases.Documents,
		parent:     fmt.Sprintf("projects/%s/databases/%s/documents", projectID, databaseID),
		collection: collection,
		interval:   interval,
		now:        time.Now,
		broker:     tasks.NewBroker(),
		nudge:      make(chan struct{}, 1),
		ctx:        ctx,
		cancel:     cancel,
	}

	s.wg.Add(1)
	go s.pollLoop()

	return s
}

// Name returns the backend identifier
func (s *Store) Name() string {
	return "firestore"
}

func (s *Store) documentName(id string) string {
	return s.parent + "/" + s.collection + "/" + id
}

// Subscribe lists the collection and delivers it as the first snapshot. If
// Firestore is unreachable the first snapshot reports the outage and polling
// continues.
func (s *Store) Subscribe(ctx context.Context) (*tasks.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var initial tasks.Snapshot
	docs, err := s.list(ctx)
	if err != nil {
		slog.Warn("listing tasks", "collection", s.collection, "error", err)
		s.failed = true
		initial = tasks.Snapshot{Err: err}
	} else {
		initial = s.snapshot(docs)
		if s.failed {
			// earlier subscribers are still showing the outage
			s.broker.Publish(initial)
		}
		s.remember(docs)
	}

	sub := s.broker.Subscribe(initial)
	sub.CancelOnDone(ctx)
	return sub, nil
}

// Create adds a document; Firestore assigns the id
func (s *Store) Create(ctx context.Context, f tasks.Fields) (string, error) {
	fields, err := createFields(f)
	if err != nil {
		return "", err
	}

	doc, err := s.docs.CreateDocument(s.parent, s.collection, &fs.Document{Fields: fields}).
		Context(ctx).
		Do()
	if err != nil {
		return "", wrapError("create", err)
	}

	s.poke()
	return documentID(doc.Name), nil
}

// Update merges the patch into an existing document. The write is
// conditional on the document existing, so a task deleted elsewhere is
// never recreated.
func (s *Store) Update(ctx context.Context, id string, p tasks.Patch) error {
	if p.Empty() {
		_, err := s.docs.Get(s.documentName(id)).Context(ctx).Do()
		return wrapError("update", err)
	}

	fields, mask, err := patchFields(p)
	if err != nil {
		return err
	}

	_, err = s.docs.Patch(s.documentName(id), &fs.Document{Fields: fields}).
		UpdateMaskFieldPaths(mask...).
		CurrentDocumentExists(true).
		Context(ctx).
		Do()
	if err != nil {
		return wrapError("update", err)
	}

	s.poke()
	return nil
}

// Delete removes a document. Firestore treats deleting a missing document
// as success.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.docs.Delete(s.documentName(id)).Context(ctx).Do()
	if err := wrapError("delete", err); err != nil && !tasks.IsNotFound(err) {
		return err
	}

	s.poke()
	return nil
}

// Close stops polling and ends all subscriptions
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.wg.Wait()
		s.broker.Close()
	})
	return nil
}

// wrapError maps a 404 to tasks.ErrNotFound and anything else to a
// retryable transport error.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
		return tasks.ErrNotFound
	}
	return &tasks.TransportError{Op: op, Err: err}
}

// list reads the whole collection ordered by createdAt
func (s *Store) list(ctx context.Context) ([]tasks.Document, error) {
	var docs []tasks.Document
	err := s.docs.List(s.parent, s.collection).
		OrderBy(fieldCreatedAt).
		PageSize(pageSize).
		Pages(ctx, func(resp *fs.ListDocumentsResponse) error {
			for _, d := range resp.Documents {
				doc, err := decodeDocument(d)
				if err != nil {
					slog.Warn("skipping undecodable document", "name", d.Name, "error", err)
					continue
				}
				docs = append(docs, doc)
			}
			return nil
		})
	if err != nil {
		return nil, wrapError("list", err)
	}

	// Firestore orders missing createdAt values differently; settle ties here
	tasks.SortDocuments(docs)
	return docs, nil
}

func (s *Store) snapshot(docs []tasks.Document) tasks.Snapshot {
	return tasks.Snapshot{Tasks: tasks.Normalize(docs, s.now())}
}

func (s *Store) remember(docs []tasks.Document) {
	s.last = docs
	s.loaded = true
	s.failed = false
}

// poke asks the poller to look now instead of waiting for the next tick
func (s *Store) poke() {
	select {
	case s.nudge <- struct{}{}:
	default:
	}
}

func (s *Store) pollLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		case <-s.nudge:
		}
		s.poll()
	}
}

// poll publishes when the collection changed, on the first good read and on
// recovery. An outage is published once.
func (s *Store) poll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.broker.Len() == 0 {
		return
	}

	docs, err := s.list(s.ctx)
	if err != nil {
		if s.ctx.Err() != nil {
			return
		}
		if !s.failed {
			slog.Warn("polling tasks", "collection", s.collection, "error", err)
			s.failed = true
			s.broker.Publish(tasks.Snapshot{Err: err})
		}
		return
	}

	changed := s.failed || !s.loaded || !slices.Equal(s.last, docs)
	s.remember(docs)
	if changed {
		s.broker.Publish(s.snapshot(docs))
	}
}

func init() {
	tasks.Register("firestore", func(cfg *config.Config) (tasks.Store, error) {
		return Open(context.Background(), cfg)
	})
}
