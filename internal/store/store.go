// Package store is the local annotation store: four named slots
// (bookmarks, notes, tags, checkpoint) persisted as JSON in sqlite.
//
// Loads fail safe: absent or unparseable data yields the caller-supplied
// default, never an error. Writes can fail and callers must treat that as
// non-fatal; the in-memory state stays authoritative for the session.
package store

import (
	"database/sql"
	"encoding/json"

	"github.com/hpungsan/rpv/internal/annotations"
	"github.com/hpungsan/rpv/internal/catalog"
	"github.com/hpungsan/rpv/internal/db"
	"github.com/hpungsan/rpv/internal/errors"
)

// Slot keys.
const (
	SlotBookmarks  = "bookmarks"
	SlotNotes      = "notes"
	SlotTags       = "tags"
	SlotCheckpoint = "checkpoint"
)

// Store persists annotation slots in the local database.
type Store struct {
	db *sql.DB
}

// New creates a store backed by the given database.
func New(database *sql.DB) *Store {
	return &Store{db: database}
}

// loadSlot reads and decodes one slot, substituting def when the slot is
// absent or its contents fail to parse.
func loadSlot[T any](database *sql.DB, key string, def T) T {
	value, ok, err := db.GetSlot(database, key)
	if err != nil || !ok {
		return def
	}
	var out T
	if err := json.Unmarshal([]byte(value), &out); err != nil {
		return def
	}
	return out
}

// saveSlot encodes and writes one slot.
func saveSlot(database *sql.DB, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.NewWriteFailed(key, err)
	}
	if err := db.SetSlot(database, key, string(data)); err != nil {
		return errors.NewWriteFailed(key, err)
	}
	return nil
}

// LoadBookmarks returns the bookmark set, or an empty set.
func (s *Store) LoadBookmarks() []catalog.PaperID {
	return loadSlot(s.db, SlotBookmarks, []catalog.PaperID{})
}

// LoadNotes returns the note map, or an empty map.
func (s *Store) LoadNotes() map[catalog.PaperID]string {
	return loadSlot(s.db, SlotNotes, map[catalog.PaperID]string{})
}

// LoadTags returns the tag map, or an empty map.
func (s *Store) LoadTags() map[catalog.PaperID][]string {
	return loadSlot(s.db, SlotTags, map[catalog.PaperID][]string{})
}

// LoadCheckpoint returns the checkpoint id, or "" if none.
func (s *Store) LoadCheckpoint() catalog.PaperID {
	return loadSlot(s.db, SlotCheckpoint, catalog.PaperID(""))
}

// LoadSnapshot assembles the full annotation snapshot from the four slots,
// repairing any invariant violations in persisted data.
func (s *Store) LoadSnapshot() *annotations.Snapshot {
	snap := &annotations.Snapshot{
		Bookmarks:  s.LoadBookmarks(),
		Notes:      s.LoadNotes(),
		Tags:       s.LoadTags(),
		Checkpoint: s.LoadCheckpoint(),
	}
	snap.Normalize()
	return snap
}

// SaveSnapshot writes all four slots. The first write failure is returned;
// remaining slots are still attempted so a partial failure loses as little
// as possible.
func (s *Store) SaveSnapshot(snap *annotations.Snapshot) error {
	var firstErr error
	save := func(key string, v any) {
		if err := saveSlot(s.db, key, v); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	save(SlotBookmarks, snap.Bookmarks)
	save(SlotNotes, snap.Notes)
	save(SlotTags, snap.Tags)
	save(SlotCheckpoint, snap.Checkpoint)
	return firstErr
}
