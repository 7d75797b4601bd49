// Package remote provides the persisted remote document store: one JSON
// document per signed-in user, read once on sign-in, overwritten on every
// push, and observed continuously for changes from other sessions.
package remote

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/hpungsan/rpv/internal/annotations"
	"github.com/hpungsan/rpv/internal/db"
)

// Document is the remote replica of one user's annotation snapshot.
// Origin identifies the device/session that produced the write, letting a
// session skip echoes of its own pushes.
type Document struct {
	annotations.Snapshot
	Origin    string `json:"origin,omitempty"`
	UpdatedAt int64  `json:"updated_at"`
}

// DocStore is the interface the reconciler depends on.
// Get returns (nil, nil) when no document exists yet.
type DocStore interface {
	Get(ctx context.Context, userID string) (*Document, error)
	Set(ctx context.Context, userID string, doc *Document) error
	Subscribe(userID string, onChange func(Document)) (func(), error)
}

// Identity yields an opaque stable user identifier on sign-in.
type Identity interface {
	SignIn(ctx context.Context) (string, error)
}

// StaticIdentity is an Identity that always returns a fixed user id,
// for CLI use and tests.
type StaticIdentity struct {
	UserID string
}

// SignIn returns the fixed user id.
func (s StaticIdentity) SignIn(_ context.Context) (string, error) {
	return s.UserID, nil
}

type event struct {
	userID string
	doc    Document
}

// SQLStore is a DocStore backed by the documents table. Change
// notifications are dispatched by a single goroutine, one at a time, in
// arrival order.
type SQLStore struct {
	db *sql.DB

	mu      sync.Mutex
	subs    map[string]map[int]func(Document)
	nextSub int

	events chan event
	done   chan struct{}
}

// NewSQLStore creates a store and starts its notification dispatcher.
// Callers must Close it when finished.
func NewSQLStore(database *sql.DB) *SQLStore {
	s := &SQLStore{
		db:     database,
		subs:   make(map[string]map[int]func(Document)),
		events: make(chan event, 64),
		done:   make(chan struct{}),
	}
	go s.dispatch()
	return s
}

// Close stops the notification dispatcher. Pending events are dropped.
func (s *SQLStore) Close() {
	close(s.done)
}

func (s *SQLStore) dispatch() {
	for {
		select {
		case <-s.done:
			return
		case ev := <-s.events:
			s.mu.Lock()
			fns := make([]func(Document), 0, len(s.subs[ev.userID]))
			for _, fn := range s.subs[ev.userID] {
				fns = append(fns, fn)
			}
			s.mu.Unlock()

			for _, fn := range fns {
				fn(ev.doc)
			}
		}
	}
}

// Get reads the document for userID, or (nil, nil) if none exists.
func (s *SQLStore) Get(_ context.Context, userID string) (*Document, error) {
	value, ok, err := db.GetDocument(s.db, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	var doc Document
	if err := json.Unmarshal([]byte(value), &doc); err != nil {
		return nil, err
	}
	doc.Normalize()
	return &doc, nil
}

// Set overwrites the document for userID and queues a change notification
// for every subscriber of that user.
func (s *SQLStore) Set(_ context.Context, userID string, doc *Document) error {
	doc.UpdatedAt = time.Now().Unix()

	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	if err := db.SetDocument(s.db, userID, string(data)); err != nil {
		return err
	}

	select {
	case s.events <- event{userID: userID, doc: *doc}:
	case <-s.done:
	}
	return nil
}

// Subscribe registers onChange for every later Set on userID's document.
// The returned function cancels the subscription.
func (s *SQLStore) Subscribe(userID string, onChange func(Document)) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subs[userID] == nil {
		s.subs[userID] = make(map[int]func(Document))
	}
	id := s.nextSub
	s.nextSub++
	s.subs[userID][id] = onChange

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs[userID], id)
	}, nil
}
