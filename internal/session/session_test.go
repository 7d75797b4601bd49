package session

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/hpungsan/rpv/internal/annotations"
	"github.com/hpungsan/rpv/internal/catalog"
	"github.com/hpungsan/rpv/internal/config"
	"github.com/hpungsan/rpv/internal/db"
	"github.com/hpungsan/rpv/internal/errors"
	"github.com/hpungsan/rpv/internal/remote"
	"github.com/hpungsan/rpv/internal/store"
	"github.com/hpungsan/rpv/internal/view"
)

func testCatalog(n int) *catalog.Catalog {
	papers := make([]catalog.Paper, n)
	for i := range papers {
		papers[i] = catalog.Paper{
			ID:      catalog.PaperID(fmt.Sprintf("p%d", i+1)),
			Title:   fmt.Sprintf("Paper p%d", i+1),
			Authors: "Doe, J.",
			Journal: "CHI",
		}
	}
	return catalog.New(papers)
}

// newRemote creates a shared remote store (one per simulated backend).
func newRemote(t *testing.T) *remote.SQLStore {
	t.Helper()
	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	rem := remote.NewSQLStore(database)
	t.Cleanup(rem.Close)
	return rem
}

// newSession creates a session with its own local store, simulating one
// device. Pass the same remote to simulate multiple devices of one user.
func newSession(t *testing.T, cat *catalog.Catalog, rem remote.DocStore) *Session {
	t.Helper()
	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return New(config.DefaultConfig(), cat, store.New(database), rem)
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestSignIn_MergeScenario(t *testing.T) {
	cat := testCatalog(5)
	rem := newRemote(t)
	ctx := context.Background()

	// Seed the remote document as another device would have left it
	seed := &remote.Document{Origin: "other-device"}
	seed.Snapshot = *annotations.New()
	seed.ToggleBookmark("p2")
	seed.ToggleBookmark("p3")
	seed.SetNote("p1", "b")
	if err := rem.Set(ctx, "alice", seed); err != nil {
		t.Fatalf("seed Set failed: %v", err)
	}

	s := newSession(t, cat, rem)
	if _, _, err := s.ToggleBookmark("p1"); err != nil {
		t.Fatalf("ToggleBookmark failed: %v", err)
	}
	if _, _, err := s.ToggleBookmark("p2"); err != nil {
		t.Fatalf("ToggleBookmark failed: %v", err)
	}
	if _, err := s.CommitNote("p1", "a"); err != nil {
		t.Fatalf("CommitNote failed: %v", err)
	}

	if err := s.SignIn(ctx, "alice"); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if s.State() != StateSynced {
		t.Errorf("State = %q, want synced", s.State())
	}

	snap := s.Snapshot()
	for _, id := range []catalog.PaperID{"p1", "p2", "p3"} {
		if !snap.HasBookmark(id) {
			t.Errorf("merged bookmarks missing %s", id)
		}
	}
	if len(snap.Bookmarks) != 3 {
		t.Errorf("Bookmarks = %v, want union of 3", snap.Bookmarks)
	}

	note := snap.Note("p1")
	if !strings.Contains(note, "a") || !strings.Contains(note, "b") {
		t.Errorf("merged note = %q, want both values", note)
	}
	if !strings.Contains(note, "[remote]") || !strings.Contains(note, "[local]") {
		t.Errorf("merged note = %q, want labeled sides", note)
	}

	// Merged snapshot must be pushed back to remote
	doc, err := rem.Get(ctx, "alice")
	if err != nil || doc == nil {
		t.Fatalf("remote Get after sign-in: doc=%v err=%v", doc, err)
	}
	if len(doc.Bookmarks) != 3 {
		t.Errorf("remote bookmarks = %v, want merged set", doc.Bookmarks)
	}
	if doc.Origin != s.DeviceID() {
		t.Errorf("remote origin = %q, want this device", doc.Origin)
	}
}

func TestSignIn_NoRemoteDocument(t *testing.T) {
	cat := testCatalog(3)
	rem := newRemote(t)
	ctx := context.Background()

	s := newSession(t, cat, rem)
	if _, _, err := s.ToggleBookmark("p1"); err != nil {
		t.Fatalf("ToggleBookmark failed: %v", err)
	}

	if err := s.SignIn(ctx, "bob"); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}

	// The push creates the previously missing remote document
	doc, err := rem.Get(ctx, "bob")
	if err != nil || doc == nil {
		t.Fatalf("remote Get: doc=%v err=%v", doc, err)
	}
	if !doc.HasBookmark("p1") {
		t.Error("remote document missing local bookmark")
	}
}

func TestSignIn_Twice(t *testing.T) {
	s := newSession(t, testCatalog(3), newRemote(t))
	ctx := context.Background()

	if err := s.SignIn(ctx, "alice"); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if err := s.SignIn(ctx, "alice"); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("second SignIn = %v, want INVALID_REQUEST", err)
	}
}

func TestRemoteReplacesLocal_LastWriteWins(t *testing.T) {
	cat := testCatalog(5)
	rem := newRemote(t)
	ctx := context.Background()

	s := newSession(t, cat, rem)
	if err := s.SignIn(ctx, "alice"); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}

	// Local addition the remote never learns about
	if _, err := s.AddTag("p1", "local-only"); err != nil {
		t.Fatalf("AddTag failed: %v", err)
	}

	// A later write from another device fully replaces local tags
	other := &remote.Document{Origin: "other-device"}
	other.Snapshot = *annotations.New()
	other.AddTag("p2", "remote-tag")
	if err := rem.Set(ctx, "alice", other); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	eventually(t, func() bool {
		snap := s.Snapshot()
		_, hasLocal := snap.Tags["p1"]
		return !hasLocal && len(snap.TagsFor("p2")) == 1
	}, "remote write should fully replace local tags")
}

func TestOnChange_FiresForRemoteWrites(t *testing.T) {
	cat := testCatalog(5)
	rem := newRemote(t)
	ctx := context.Background()

	s := newSession(t, cat, rem)
	renders := make(chan view.Result, 4)
	s.SetOnChange(func(r view.Result) { renders <- r })

	if err := s.SignIn(ctx, "alice"); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}

	other := &remote.Document{Origin: "other-device"}
	other.Snapshot = *annotations.New()
	other.ToggleBookmark("p1")
	if err := rem.Set(ctx, "alice", other); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	select {
	case res := <-renders:
		if res.TotalPages < 1 {
			t.Errorf("re-render TotalPages = %d", res.TotalPages)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("onChange was not invoked for a remote write")
	}
}

func TestOwnEchoSkipped(t *testing.T) {
	cat := testCatalog(5)
	rem := newRemote(t)
	ctx := context.Background()

	s := newSession(t, cat, rem)
	renders := make(chan view.Result, 4)
	s.SetOnChange(func(r view.Result) { renders <- r })

	if err := s.SignIn(ctx, "alice"); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}

	if _, _, err := s.ToggleBookmark("p1"); err != nil {
		t.Fatalf("ToggleBookmark failed: %v", err)
	}

	select {
	case <-renders:
		t.Error("session re-rendered on the echo of its own push")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestSignOut_TearsDownSubscription(t *testing.T) {
	cat := testCatalog(5)
	rem := newRemote(t)
	ctx := context.Background()

	s := newSession(t, cat, rem)
	if err := s.SignIn(ctx, "alice"); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	s.SignOut()

	if s.State() != StateAnonymous {
		t.Errorf("State = %q, want anonymous", s.State())
	}

	other := &remote.Document{Origin: "other-device"}
	other.Snapshot = *annotations.New()
	other.ToggleBookmark("p3")
	if err := rem.Set(ctx, "alice", other); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	if s.Snapshot().HasBookmark("p3") {
		t.Error("remote write applied after sign-out")
	}
}

func TestMutations_UnknownPaper(t *testing.T) {
	s := newSession(t, testCatalog(3), newRemote(t))

	if _, _, err := s.ToggleBookmark("ghost"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("ToggleBookmark(ghost) = %v, want NOT_FOUND", err)
	}
	if _, err := s.CommitNote("ghost", "x"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("CommitNote(ghost) = %v, want NOT_FOUND", err)
	}
	if _, err := s.AddTag("ghost", "t"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("AddTag(ghost) = %v, want NOT_FOUND", err)
	}
	if _, err := s.SetCheckpoint("ghost"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("SetCheckpoint(ghost) = %v, want NOT_FOUND", err)
	}
}

func TestPreviewAndCommitNote(t *testing.T) {
	s := newSession(t, testCatalog(3), newRemote(t))

	if err := s.PreviewNote("p1", "draft text"); err != nil {
		t.Fatalf("PreviewNote failed: %v", err)
	}
	if got := s.NoteText("p1"); got != "draft text" {
		t.Errorf("NoteText = %q, want the draft", got)
	}
	if got := s.Snapshot().Note("p1"); got != "" {
		t.Errorf("draft must not be persisted, got %q", got)
	}

	if _, err := s.CommitNote("p1", "final"); err != nil {
		t.Fatalf("CommitNote failed: %v", err)
	}
	if got := s.NoteText("p1"); got != "final" {
		t.Errorf("NoteText after commit = %q", got)
	}

	// Blank commit deletes
	if _, err := s.CommitNote("p1", "   "); err != nil {
		t.Fatalf("CommitNote failed: %v", err)
	}
	if _, ok := s.Snapshot().Notes["p1"]; ok {
		t.Error("blank commit should delete the note")
	}
}

func TestJumpToCheckpoint(t *testing.T) {
	s := newSession(t, testCatalog(45), newRemote(t))

	// Leave the view somewhere else first
	s.SetView(view.ModeTags, "vr")
	s.SetSearch("irrelevant")

	if _, err := s.SetCheckpoint("p25"); err != nil {
		t.Fatalf("SetCheckpoint failed: %v", err)
	}

	res, err := s.JumpToCheckpoint()
	if err != nil {
		t.Fatalf("JumpToCheckpoint failed: %v", err)
	}
	if res.Target != "p25" {
		t.Errorf("Target = %s, want p25", res.Target)
	}
	if res.View.Page != 2 {
		t.Errorf("Page = %d, want 2", res.View.Page)
	}

	st := s.ViewState()
	if st.Mode != view.ModeAll || st.Tag != "" || st.Keywords != nil {
		t.Errorf("jump should reset to all view with no filters, got %+v", st)
	}
}

func TestJumpToCheckpoint_Failures(t *testing.T) {
	s := newSession(t, testCatalog(3), newRemote(t))

	if _, err := s.JumpToCheckpoint(); !errors.Is(err, errors.ErrNoCheckpoint) {
		t.Errorf("no checkpoint: err = %v, want NO_CHECKPOINT", err)
	}

	// Checkpoint referencing a paper that left the catalog
	before := s.ViewState()
	snap := annotations.New()
	snap.Checkpoint = "ghost"
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()

	if _, err := s.JumpToCheckpoint(); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("stale checkpoint: err = %v, want NOT_FOUND", err)
	}
	if !reflect.DeepEqual(s.ViewState(), before) {
		t.Error("failed jump must leave the view untouched")
	}
}

func TestViewStateChanges(t *testing.T) {
	s := newSession(t, testCatalog(45), newRemote(t))

	s.SetPage(3)
	if s.ViewState().Page != 3 {
		t.Errorf("Page = %d, want 3", s.ViewState().Page)
	}

	// View change resets page
	s.SetView(view.ModeBookmarks, "")
	if s.ViewState().Page != 1 {
		t.Error("SetView should reset page to 1")
	}

	s.SetPage(2)
	s.SetSearch("query")
	if s.ViewState().Page != 1 {
		t.Error("SetSearch should reset page to 1")
	}

	// Language change keeps the page
	s.SetView(view.ModeAll, "")
	s.SetPage(2)
	s.SetLanguage("ja")
	if s.ViewState().Page != 2 {
		t.Error("SetLanguage should keep the page")
	}
	if s.ViewState().Lang != catalog.LangJA {
		t.Errorf("Lang = %q, want ja", s.ViewState().Lang)
	}

	// Page requests are clamped through the view engine
	s.SetPage(99)
	if s.ViewState().Page != 3 {
		t.Errorf("Page = %d, want clamped to 3", s.ViewState().Page)
	}
}

func TestPersistence_SurvivesRestart(t *testing.T) {
	cat := testCatalog(5)
	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	defer database.Close()
	local := store.New(database)
	rem := newRemote(t)

	s := New(config.DefaultConfig(), cat, local, rem)
	if _, _, err := s.ToggleBookmark("p1"); err != nil {
		t.Fatalf("ToggleBookmark failed: %v", err)
	}
	if _, err := s.CommitNote("p2", "remember"); err != nil {
		t.Fatalf("CommitNote failed: %v", err)
	}

	// New session over the same local store sees the same annotations
	restarted := New(config.DefaultConfig(), cat, local, rem)
	snap := restarted.Snapshot()
	if !snap.HasBookmark("p1") || snap.Note("p2") != "remember" {
		t.Error("annotations did not survive the restart")
	}
}
