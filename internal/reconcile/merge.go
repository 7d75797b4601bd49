// Package reconcile merges a local annotation snapshot with its remote
// replica. The merge runs exactly once per sign-in; afterwards remote
// changes replace local state wholesale (see the session package).
package reconcile

import (
	"fmt"
	"slices"

	"github.com/hpungsan/rpv/internal/annotations"
	"github.com/hpungsan/rpv/internal/catalog"
)

// noteConflictFormat labels both sides of a diverged note, remote value
// first. The conflict is surfaced to the user, not silently resolved.
const noteConflictFormat = "[remote]\n%s\n\n[local]\n%s"

// Merge folds a remote snapshot into a local one:
//
//   - bookmarks: set union
//   - notes: equal values kept as-is; diverged values kept both, labeled
//     remote-then-local; one-sided values kept
//   - tags: per-paper set union
//   - checkpoint: local wins if set, else remote
//
// remote may be nil (no remote document yet), in which case the result is
// a clone of local. Neither input is mutated.
func Merge(local *annotations.Snapshot, remote *annotations.Snapshot) *annotations.Snapshot {
	merged := local.Clone()
	if remote == nil {
		return merged
	}

	for _, id := range remote.Bookmarks {
		if !merged.HasBookmark(id) {
			merged.Bookmarks = append(merged.Bookmarks, id)
		}
	}

	for id, remoteNote := range remote.Notes {
		localNote, ok := local.Notes[id]
		switch {
		case !ok:
			merged.Notes[id] = remoteNote
		case localNote == remoteNote:
			// already present
		default:
			merged.Notes[id] = fmt.Sprintf(noteConflictFormat, remoteNote, localNote)
		}
	}

	for id, remoteTags := range remote.Tags {
		set := slices.Clone(merged.Tags[id])
		for _, t := range remoteTags {
			if !slices.Contains(set, t) {
				set = append(set, t)
			}
		}
		slices.Sort(set)
		merged.Tags[id] = set
	}

	if merged.Checkpoint == "" {
		merged.Checkpoint = remote.Checkpoint
	}

	return merged
}

// Stale returns the annotation ids referencing papers absent from the
// catalog. Stale ids are tolerated (they render to nothing) but callers
// may want to report them.
func Stale(c *catalog.Catalog, snap *annotations.Snapshot) []catalog.PaperID {
	seen := make(map[catalog.PaperID]bool)
	var stale []catalog.PaperID
	check := func(id catalog.PaperID) {
		if id != "" && !seen[id] && c.ByID(id) == nil {
			seen[id] = true
			stale = append(stale, id)
		}
	}
	for _, id := range snap.Bookmarks {
		check(id)
	}
	for id := range snap.Notes {
		check(id)
	}
	for id := range snap.Tags {
		check(id)
	}
	check(snap.Checkpoint)
	slices.Sort(stale)
	return stale
}
