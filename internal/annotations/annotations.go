// Package annotations holds the per-user annotation snapshot: bookmarks,
// notes, tags, and the single checkpoint. The snapshot is the unit of
// persistence, merge, and remote synchronization.
package annotations

import (
	"slices"
	"strings"

	"github.com/hpungsan/rpv/internal/catalog"
)

// Snapshot is the combined annotation state for one user.
//
// Invariants:
//   - Bookmarks holds no duplicates.
//   - Notes never maps an id to a blank string.
//   - Tag sets hold no duplicates and stay sorted.
//   - Checkpoint is at most one paper id ("" means none).
type Snapshot struct {
	Bookmarks  []catalog.PaperID            `json:"bookmarks"`
	Notes      map[catalog.PaperID]string   `json:"notes"`
	Tags       map[catalog.PaperID][]string `json:"tags"`
	Checkpoint catalog.PaperID              `json:"checkpoint"`
}

// New returns an empty snapshot with all collections initialized.
func New() *Snapshot {
	return &Snapshot{
		Bookmarks: []catalog.PaperID{},
		Notes:     map[catalog.PaperID]string{},
		Tags:      map[catalog.PaperID][]string{},
	}
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{
		Bookmarks:  slices.Clone(s.Bookmarks),
		Notes:      make(map[catalog.PaperID]string, len(s.Notes)),
		Tags:       make(map[catalog.PaperID][]string, len(s.Tags)),
		Checkpoint: s.Checkpoint,
	}
	for id, note := range s.Notes {
		out.Notes[id] = note
	}
	for id, tags := range s.Tags {
		out.Tags[id] = slices.Clone(tags)
	}
	return out
}

// HasBookmark reports whether id is bookmarked.
func (s *Snapshot) HasBookmark(id catalog.PaperID) bool {
	return slices.Contains(s.Bookmarks, id)
}

// ToggleBookmark adds the bookmark if absent, removes it if present.
// Returns true if the id is bookmarked after the toggle.
func (s *Snapshot) ToggleBookmark(id catalog.PaperID) bool {
	if i := slices.Index(s.Bookmarks, id); i >= 0 {
		s.Bookmarks = slices.Delete(s.Bookmarks, i, i+1)
		return false
	}
	s.Bookmarks = append(s.Bookmarks, id)
	return true
}

// Note returns the note for id, or "" if none.
func (s *Snapshot) Note(id catalog.PaperID) string {
	return s.Notes[id]
}

// SetNote stores the note for id. Blank text deletes the entry so that
// no key ever maps to a blank string.
func (s *Snapshot) SetNote(id catalog.PaperID, text string) {
	if strings.TrimSpace(text) == "" {
		delete(s.Notes, id)
		return
	}
	s.Notes[id] = text
}

// TagsFor returns the tag set for id (sorted), or nil if none.
func (s *Snapshot) TagsFor(id catalog.PaperID) []string {
	return s.Tags[id]
}

// AddTag adds a tag to id's tag set. Adding an existing tag is a no-op.
// Blank tags are ignored.
func (s *Snapshot) AddTag(id catalog.PaperID, tag string) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return
	}
	set := s.Tags[id]
	if slices.Contains(set, tag) {
		return
	}
	set = append(set, tag)
	slices.Sort(set)
	s.Tags[id] = set
}

// RemoveTag removes a tag from id's tag set. Removing an absent tag is a
// no-op. An emptied set drops its map entry.
func (s *Snapshot) RemoveTag(id catalog.PaperID, tag string) {
	set := s.Tags[id]
	i := slices.Index(set, tag)
	if i < 0 {
		return
	}
	set = slices.Delete(set, i, i+1)
	if len(set) == 0 {
		delete(s.Tags, id)
		return
	}
	s.Tags[id] = set
}

// Normalize repairs invariant violations after decoding external data:
// duplicate bookmarks, blank notes, duplicate or unsorted tags, nil maps.
func (s *Snapshot) Normalize() {
	if s.Notes == nil {
		s.Notes = map[catalog.PaperID]string{}
	}
	if s.Tags == nil {
		s.Tags = map[catalog.PaperID][]string{}
	}

	seen := make(map[catalog.PaperID]bool, len(s.Bookmarks))
	bookmarks := make([]catalog.PaperID, 0, len(s.Bookmarks))
	for _, id := range s.Bookmarks {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		bookmarks = append(bookmarks, id)
	}
	s.Bookmarks = bookmarks

	for id, note := range s.Notes {
		if strings.TrimSpace(note) == "" {
			delete(s.Notes, id)
		}
	}

	for id, tags := range s.Tags {
		cleaned := make([]string, 0, len(tags))
		for _, t := range tags {
			t = strings.TrimSpace(t)
			if t != "" && !slices.Contains(cleaned, t) {
				cleaned = append(cleaned, t)
			}
		}
		if len(cleaned) == 0 {
			delete(s.Tags, id)
			continue
		}
		slices.Sort(cleaned)
		s.Tags[id] = cleaned
	}
}
