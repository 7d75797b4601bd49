// Package view turns (catalog, annotations, view state) into the exact
// slice of papers to display. ComputeView is pure: no side effects, and
// identical inputs always yield identical output.
package view

import (
	"sort"
	"strings"

	"github.com/hpungsan/rpv/internal/annotations"
	"github.com/hpungsan/rpv/internal/catalog"
)

// Mode selects which subset of the catalog is shown.
type Mode string

const (
	ModeAll       Mode = "all"
	ModeBookmarks Mode = "bookmarks"
	ModeTags      Mode = "tags"
)

// ParseMode normalizes a mode string, falling back to "all".
func ParseMode(s string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeBookmarks:
		return ModeBookmarks
	case ModeTags:
		return ModeTags
	default:
		return ModeAll
	}
}

// State is the ephemeral view selection. It is never persisted.
type State struct {
	Mode     Mode
	Tag      string // meaningful only in ModeTags
	Lang     catalog.Lang
	Keywords []string // lowercase search keywords, AND semantics
	Page     int
}

// DefaultState returns the startup view state.
func DefaultState(lang catalog.Lang) State {
	return State{Mode: ModeAll, Lang: lang, Page: 1}
}

// ParseKeywords splits a raw search string into lowercase keywords.
func ParseKeywords(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// TagCount is one entry of the tag-summary view.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// Result is the computed page. Exactly one of Papers or TagSummary is
// meaningful: TagSummary is set when tags mode has no tag selected.
type Result struct {
	Papers     []*catalog.Paper
	TagSummary []TagCount
	Page       int
	TotalPages int
}

// IsTagSummary reports whether the result is the aggregate tag listing.
func (r Result) IsTagSummary() bool {
	return r.TagSummary != nil
}

// ComputeView filters the catalog by view mode and search keywords, clamps
// the requested page, and slices out the visible papers.
//
// Tags mode with no tag selected short-circuits to the tag summary: the
// distinct tags across the tag map with occurrence counts, sorted
// lexicographically.
func ComputeView(c *catalog.Catalog, snap *annotations.Snapshot, st State, pageSize int) Result {
	if pageSize <= 0 {
		pageSize = 20
	}

	if st.Mode == ModeTags && st.Tag == "" {
		return Result{
			TagSummary: tagSummary(snap),
			Page:       1,
			TotalPages: 1,
		}
	}

	filtered := make([]*catalog.Paper, 0, c.Len())
	papers := c.Papers()
	for i := range papers {
		p := &papers[i]
		if !matchesMode(p, snap, st) {
			continue
		}
		if !matchesKeywords(p, st) {
			continue
		}
		filtered = append(filtered, p)
	}

	totalPages := (len(filtered) + pageSize - 1) / pageSize
	if totalPages < 1 {
		totalPages = 1
	}

	page := st.Page
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * pageSize
	end := min(start+pageSize, len(filtered))

	return Result{
		Papers:     filtered[start:end],
		Page:       page,
		TotalPages: totalPages,
	}
}

// PageOf returns the 1-based page a paper lands on in "all" view with no
// search filter, or 0 if the id is not in the catalog.
func PageOf(c *catalog.Catalog, id catalog.PaperID, pageSize int) int {
	if pageSize <= 0 {
		pageSize = 20
	}
	idx := c.IndexOf(id)
	if idx < 0 {
		return 0
	}
	return idx/pageSize + 1
}

func matchesMode(p *catalog.Paper, snap *annotations.Snapshot, st State) bool {
	switch st.Mode {
	case ModeBookmarks:
		return snap.HasBookmark(p.ID)
	case ModeTags:
		for _, t := range snap.TagsFor(p.ID) {
			if t == st.Tag {
				return true
			}
		}
		return false
	default:
		return true
	}
}

// matchesKeywords applies AND-of-substrings search against the paper's
// search blob for the active language. No keywords means no filter.
func matchesKeywords(p *catalog.Paper, st State) bool {
	if len(st.Keywords) == 0 {
		return true
	}
	blob := p.SearchBlob(st.Lang)
	for _, kw := range st.Keywords {
		if !strings.Contains(blob, kw) {
			return false
		}
	}
	return true
}

func tagSummary(snap *annotations.Snapshot) []TagCount {
	counts := make(map[string]int)
	for _, tags := range snap.Tags {
		for _, t := range tags {
			counts[t]++
		}
	}

	summary := make([]TagCount, 0, len(counts))
	for tag, count := range counts {
		summary = append(summary, TagCount{Tag: tag, Count: count})
	}
	sort.Slice(summary, func(i, j int) bool { return summary[i].Tag < summary[j].Tag })
	return summary
}
