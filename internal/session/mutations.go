package session

import (
	"strings"

	"github.com/hpungsan/rpv/internal/catalog"
	"github.com/hpungsan/rpv/internal/errors"
	"github.com/hpungsan/rpv/internal/view"
)

// JumpResult is the outcome of JumpToCheckpoint: the view repositioned to
// the checkpoint's page, and the target id for the presentation layer to
// scroll to once rendered.
type JumpResult struct {
	Target catalog.PaperID
	View   view.Result
}

// requireReadyLocked rejects operations before the catalog has loaded.
func (s *Session) requireReadyLocked() error {
	if s.catalog == nil {
		return errors.NewNotReady()
	}
	return nil
}

// requirePaperLocked validates that id names a real catalog paper.
func (s *Session) requirePaperLocked(id catalog.PaperID) error {
	if err := s.requireReadyLocked(); err != nil {
		return err
	}
	if s.catalog.ByID(id) == nil {
		return errors.NewNotFound(string(id))
	}
	return nil
}

// ToggleBookmark adds or removes the bookmark for id. Returns whether the
// paper is bookmarked after the toggle, plus the recomputed view.
func (s *Session) ToggleBookmark(id catalog.PaperID) (bool, view.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requirePaperLocked(id); err != nil {
		return false, view.Result{}, err
	}

	bookmarked := s.snap.ToggleBookmark(id)
	s.persistLocked()
	s.pushAsync()
	return bookmarked, s.render(), nil
}

// PreviewNote records an ephemeral, display-only note draft. Drafts are
// never persisted or pushed; the presentation layer calls this on every
// keystroke and CommitNote when the field loses focus.
func (s *Session) PreviewNote(id catalog.PaperID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requirePaperLocked(id); err != nil {
		return err
	}

	if s.drafts == nil {
		s.drafts = make(map[catalog.PaperID]string)
	}
	s.drafts[id] = text
	return nil
}

// NoteText returns the text to display for a note: the pending draft if
// one exists, else the committed note.
func (s *Session) NoteText(id catalog.PaperID) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if draft, ok := s.drafts[id]; ok {
		return draft
	}
	return s.snap.Note(id)
}

// CommitNote durably saves the note for id and discards any draft. Blank
// text deletes the note.
func (s *Session) CommitNote(id catalog.PaperID, text string) (view.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requirePaperLocked(id); err != nil {
		return view.Result{}, err
	}

	delete(s.drafts, id)
	s.snap.SetNote(id, text)
	s.persistLocked()
	s.pushAsync()
	return s.render(), nil
}

// AddTag adds a tag to id's tag set. Adding an existing tag is a no-op.
func (s *Session) AddTag(id catalog.PaperID, tag string) (view.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requirePaperLocked(id); err != nil {
		return view.Result{}, err
	}
	if strings.TrimSpace(tag) == "" {
		return view.Result{}, errors.NewInvalidRequest("tag must not be blank")
	}

	s.snap.AddTag(id, tag)
	s.persistLocked()
	s.pushAsync()
	return s.render(), nil
}

// RemoveTag removes a tag from id's tag set. Removing an absent tag is a
// no-op.
func (s *Session) RemoveTag(id catalog.PaperID, tag string) (view.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requirePaperLocked(id); err != nil {
		return view.Result{}, err
	}

	s.snap.RemoveTag(id, tag)
	s.persistLocked()
	s.pushAsync()
	return s.render(), nil
}

// SetCheckpoint marks id as the single "resume reading here" position.
func (s *Session) SetCheckpoint(id catalog.PaperID) (view.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requirePaperLocked(id); err != nil {
		return view.Result{}, err
	}

	s.snap.Checkpoint = id
	s.persistLocked()
	s.pushAsync()
	return s.render(), nil
}

// JumpToCheckpoint locates the checkpoint's page, switches to the "all"
// view with no tag selected or search active, and returns the target id.
// Fails softly when no checkpoint is set or the checkpointed paper is no
// longer in the catalog; the view is left untouched in that case.
func (s *Session) JumpToCheckpoint() (JumpResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireReadyLocked(); err != nil {
		return JumpResult{}, err
	}

	id := s.snap.Checkpoint
	if id == "" {
		return JumpResult{}, errors.NewNoCheckpoint("no checkpoint set")
	}
	page := view.PageOf(s.catalog, id, s.cfg.PageSize)
	if page == 0 {
		return JumpResult{}, errors.NewNotFound(string(id))
	}

	s.viewState.Mode = view.ModeAll
	s.viewState.Tag = ""
	s.viewState.Keywords = nil
	s.viewState.Page = page

	return JumpResult{Target: id, View: s.render()}, nil
}

// SetLanguage switches the active language. The page is kept.
func (s *Session) SetLanguage(lang string) view.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.viewState.Lang = catalog.ParseLang(lang)
	return s.render()
}

// SetSearch replaces the search keywords and resets to page 1.
func (s *Session) SetSearch(query string) view.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.viewState.Keywords = view.ParseKeywords(query)
	s.viewState.Page = 1
	return s.render()
}

// SetPage moves to the requested page (clamped by the view engine).
func (s *Session) SetPage(page int) view.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.viewState.Page = page
	res := s.render()
	s.viewState.Page = res.Page
	return res
}

// SetView switches the view mode and selected tag, resetting to page 1.
func (s *Session) SetView(mode view.Mode, tag string) view.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.viewState.Mode = mode
	s.viewState.Tag = ""
	if mode == view.ModeTags {
		s.viewState.Tag = strings.TrimSpace(tag)
	}
	s.viewState.Page = 1
	return s.render()
}
