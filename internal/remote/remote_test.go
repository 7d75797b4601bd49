package remote

import (
	"context"
	"testing"
	"time"

	"github.com/hpungsan/rpv/internal/annotations"
	"github.com/hpungsan/rpv/internal/db"
)

func setupStore(t *testing.T) *SQLStore {
	t.Helper()
	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	s := NewSQLStore(database)
	t.Cleanup(s.Close)
	return s
}

func makeDoc(origin string) *Document {
	doc := &Document{Origin: origin}
	doc.Snapshot = *annotations.New()
	doc.ToggleBookmark("p1")
	return doc
}

func TestGet_NoDocument(t *testing.T) {
	s := setupStore(t)

	doc, err := s.Get(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if doc != nil {
		t.Errorf("doc = %v, want nil for absent document", doc)
	}
}

func TestSetGet_RoundTrip(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "user-1", makeDoc("device-a")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	doc, err := s.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if doc == nil {
		t.Fatal("doc is nil")
	}
	if !doc.HasBookmark("p1") {
		t.Error("bookmark lost in round trip")
	}
	if doc.Origin != "device-a" {
		t.Errorf("Origin = %q, want device-a", doc.Origin)
	}
	if doc.UpdatedAt == 0 {
		t.Error("UpdatedAt should be stamped on Set")
	}
}

func TestSubscribe_NotifiesInOrder(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	got := make(chan string, 4)
	unsub, err := s.Subscribe("user-1", func(doc Document) {
		got <- doc.Origin
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer unsub()

	for _, origin := range []string{"a", "b", "c"} {
		if err := s.Set(ctx, "user-1", makeDoc(origin)); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	for _, want := range []string{"a", "b", "c"} {
		select {
		case origin := <-got:
			if origin != want {
				t.Errorf("notification origin = %q, want %q", origin, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for notification %q", want)
		}
	}
}

func TestSubscribe_ScopedToUser(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	got := make(chan Document, 1)
	unsub, err := s.Subscribe("user-1", func(doc Document) { got <- doc })
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer unsub()

	if err := s.Set(ctx, "user-2", makeDoc("other")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	select {
	case doc := <-got:
		t.Errorf("unexpected notification for other user's write: %v", doc)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestUnsubscribe(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	got := make(chan Document, 1)
	unsub, err := s.Subscribe("user-1", func(doc Document) { got <- doc })
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	unsub()

	if err := s.Set(ctx, "user-1", makeDoc("a")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	select {
	case doc := <-got:
		t.Errorf("unexpected notification after unsubscribe: %v", doc)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestStaticIdentity(t *testing.T) {
	id, err := StaticIdentity{UserID: "u1"}.SignIn(context.Background())
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if id != "u1" {
		t.Errorf("SignIn = %q, want u1", id)
	}
}
