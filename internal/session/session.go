// Package session owns the live annotation state for one running viewer:
// the mutation operations, the ephemeral view state, and the sign-in
// lifecycle that reconciles local annotations with the remote replica.
//
// All state-changing intents funnel through Session methods. Each one
// mutates the in-memory snapshot under the session lock, persists it
// locally, recomputes the view, and pushes the full snapshot to the remote
// store in the background. The in-memory snapshot stays authoritative when
// a persistence write fails.
package session

import (
	"context"
	"crypto/rand"
	"log"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/rpv/internal/annotations"
	"github.com/hpungsan/rpv/internal/catalog"
	"github.com/hpungsan/rpv/internal/config"
	"github.com/hpungsan/rpv/internal/errors"
	"github.com/hpungsan/rpv/internal/reconcile"
	"github.com/hpungsan/rpv/internal/remote"
	"github.com/hpungsan/rpv/internal/store"
	"github.com/hpungsan/rpv/internal/view"
)

// SyncState tracks the sign-in lifecycle.
type SyncState string

const (
	StateAnonymous SyncState = "anonymous"
	StateSigningIn SyncState = "signing_in"
	StateSynced    SyncState = "synced"
)

// Session holds one user's annotation state and view selection.
type Session struct {
	mu sync.Mutex

	cfg     *config.Config
	catalog *catalog.Catalog
	local   *store.Store
	remote  remote.DocStore

	// deviceID stamps remote pushes so the subscription can tell this
	// session's own echoes from other-device writes.
	deviceID string

	snap   *annotations.Snapshot
	drafts map[catalog.PaperID]string // ephemeral note previews, never persisted
	state  SyncState
	userID string
	unsub  func()

	viewState view.State

	// onChange is invoked after a remote-origin change replaced local
	// state, with the freshly recomputed view. May be nil.
	onChange func(view.Result)
}

// New creates a session over an already-loaded catalog. The snapshot is
// seeded from the local store (empty defaults on first use).
func New(cfg *config.Config, cat *catalog.Catalog, local *store.Store, rem remote.DocStore) *Session {
	return &Session{
		cfg:       cfg,
		catalog:   cat,
		local:     local,
		remote:    rem,
		deviceID:  newDeviceID(),
		snap:      local.LoadSnapshot(),
		state:     StateAnonymous,
		viewState: view.DefaultState(catalog.ParseLang(cfg.DefaultLang)),
	}
}

func newDeviceID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		// entropy exhaustion is the only failure mode; fall back to a
		// zero-entropy timestamp id rather than aborting the session
		return ulid.MustNew(ulid.Timestamp(time.Now()), nil).String()
	}
	return id.String()
}

// SetOnChange registers the re-render hook for remote-origin changes.
func (s *Session) SetOnChange(fn func(view.Result)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// State returns the current sync state.
func (s *Session) State() SyncState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// UserID returns the signed-in user id, or "" when anonymous.
func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// DeviceID returns this session's origin id.
func (s *Session) DeviceID() string {
	return s.deviceID
}

// Snapshot returns a copy of the current annotation snapshot.
func (s *Session) Snapshot() *annotations.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Clone()
}

// ViewState returns the current view selection.
func (s *Session) ViewState() view.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewState
}

// Render recomputes the current view without changing any state.
func (s *Session) Render() view.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.render()
}

// render computes the view for the current state. Callers hold s.mu.
func (s *Session) render() view.Result {
	return view.ComputeView(s.catalog, s.snap, s.viewState, s.cfg.PageSize)
}

// SignIn reconciles local annotations with the user's remote document and
// opens the standing subscription. The merge runs exactly once per
// sign-in: bookmarks and tags union, diverged notes keep both values,
// checkpoint prefers local. The merged snapshot is persisted locally and
// pushed to the remote store before the subscription opens.
func (s *Session) SignIn(ctx context.Context, userID string) error {
	s.mu.Lock()
	if s.state != StateAnonymous {
		s.mu.Unlock()
		return errors.NewInvalidRequest("already signed in; sign out first")
	}
	s.state = StateSigningIn
	s.mu.Unlock()

	doc, err := s.remote.Get(ctx, userID)
	if err != nil {
		s.mu.Lock()
		s.state = StateAnonymous
		s.mu.Unlock()
		return errors.NewInternal(err)
	}

	s.mu.Lock()
	var remoteSnap *annotations.Snapshot
	if doc != nil {
		remoteSnap = &doc.Snapshot
	}
	merged := reconcile.Merge(s.snap, remoteSnap)
	merged.Normalize()
	s.snap = merged
	s.userID = userID
	s.persistLocked()
	pushDoc := s.pushDocLocked()
	s.mu.Unlock()

	// Push the merged snapshot before opening the subscription so the
	// remote document exists even when it previously did not.
	if err := s.remote.Set(ctx, userID, pushDoc); err != nil {
		log.Printf("warning: initial push for %s failed: %v", userID, err)
	}

	unsub, err := s.remote.Subscribe(userID, s.onRemote)
	if err != nil {
		s.mu.Lock()
		s.state = StateAnonymous
		s.userID = ""
		s.mu.Unlock()
		return errors.NewInternal(err)
	}

	s.mu.Lock()
	s.unsub = unsub
	s.state = StateSynced
	s.mu.Unlock()
	return nil
}

// SignOut tears down the subscription and reverts to local-only mode.
func (s *Session) SignOut() {
	s.mu.Lock()
	unsub := s.unsub
	s.unsub = nil
	s.userID = ""
	s.state = StateAnonymous
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// onRemote applies a remote snapshot change: after the one-time merge the
// remote is authoritative, so the document replaces local state
// field-by-field, no further merging.
func (s *Session) onRemote(doc remote.Document) {
	if doc.Origin == s.deviceID {
		return // echo of our own push
	}

	s.mu.Lock()
	if s.state != StateSynced {
		s.mu.Unlock()
		return
	}
	replaced := doc.Snapshot.Clone()
	replaced.Normalize()
	s.snap = replaced
	s.persistLocked()
	res := s.render()
	fn := s.onChange
	s.mu.Unlock()

	if fn != nil {
		fn(res)
	}
}

// persistLocked saves the snapshot to the local store. Write failures are
// logged and swallowed; the in-memory snapshot stays authoritative.
func (s *Session) persistLocked() {
	if err := s.local.SaveSnapshot(s.snap); err != nil {
		log.Printf("warning: local save failed: %v", err)
	}
}

// pushDocLocked builds the remote document for the current snapshot.
func (s *Session) pushDocLocked() *remote.Document {
	return &remote.Document{
		Snapshot: *s.snap.Clone(),
		Origin:   s.deviceID,
	}
}

// pushAsync pushes the current snapshot to the remote store in the
// background. Fire-and-forget: a failed push is dropped and local state
// remains the source of truth until the next subscription event.
func (s *Session) pushAsync() {
	if s.state != StateSynced {
		return
	}
	userID := s.userID
	doc := s.pushDocLocked()
	go func() {
		if err := s.remote.Set(context.Background(), userID, doc); err != nil {
			log.Printf("warning: remote push for %s failed: %v", userID, err)
		}
	}()
}
