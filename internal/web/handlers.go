package web

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hpungsan/rpv/internal/annotations"
	"github.com/hpungsan/rpv/internal/catalog"
	"github.com/hpungsan/rpv/internal/config"
	"github.com/hpungsan/rpv/internal/errors"
	"github.com/hpungsan/rpv/internal/session"
	"github.com/hpungsan/rpv/internal/view"
)

// Handlers contains HTTP route handlers for the web UI.
//
// The handlers never touch the catalog, annotation snapshot, or view state
// directly: every user intent is raised into a session operation, and the
// page is rendered from the view result the operation returns.
type Handlers struct {
	sess     *session.Session
	cat      *catalog.Catalog
	cfg      *config.Config
	renderer *Renderer
}

// applyViewParams raises view/search/language/page query parameters into
// session intents. Parameters restating the current selection are skipped
// so pagination links do not reset the page.
func (h *Handlers) applyViewParams(r *http.Request) {
	q := r.URL.Query()

	if q.Has("view") || q.Has("tag") {
		mode := view.ParseMode(q.Get("view"))
		tag := q.Get("tag")
		st := h.sess.ViewState()
		if mode != st.Mode || tag != st.Tag {
			h.sess.SetView(mode, tag)
		}
	}

	if q.Has("lang") {
		h.sess.SetLanguage(q.Get("lang"))
	}

	if q.Has("q") {
		keywords := view.ParseKeywords(q.Get("q"))
		st := h.sess.ViewState()
		if strings.Join(keywords, " ") != strings.Join(st.Keywords, " ") {
			h.sess.SetSearch(q.Get("q"))
		}
	}

	if q.Has("page") {
		if page, err := strconv.Atoi(q.Get("page")); err == nil {
			h.sess.SetPage(page)
		}
	}
}

// pageData assembles the layout fields shared by every page.
func (h *Handlers) pageData(r *http.Request, title string) PageData {
	st := h.sess.ViewState()
	return PageData{
		Title:    title,
		Version:  h.renderer.version,
		Lang:     st.Lang,
		Mode:     st.Mode,
		Query:    strings.Join(st.Keywords, " "),
		SignedIn: h.sess.State() == session.StateSynced,
		UserID:   h.sess.UserID(),
		Notice:   r.URL.Query().Get("notice"),
	}
}

// paperItem pairs one paper with its annotation state.
func paperItem(p *catalog.Paper, snap *annotations.Snapshot) PaperItem {
	return PaperItem{
		Paper:      p,
		Bookmarked: snap.HasBookmark(p.ID),
		Tags:       snap.TagsFor(p.ID),
		Note:       snap.Note(p.ID),
		Checkpoint: snap.Checkpoint == p.ID,
	}
}

// HandlePapers handles GET /papers: the list page (or tag summary).
func (h *Handlers) HandlePapers(w http.ResponseWriter, r *http.Request) {
	h.applyViewParams(r)

	res := h.sess.Render()
	snap := h.sess.Snapshot()
	st := h.sess.ViewState()

	items := make([]PaperItem, len(res.Papers))
	for i, p := range res.Papers {
		items[i] = paperItem(p, snap)
	}

	h.renderer.renderPage(w, "papers", PapersPageData{
		PageData:   h.pageData(r, "Papers"),
		Items:      items,
		TagSummary: res.TagSummary,
		IsSummary:  res.IsTagSummary(),
		Tag:        st.Tag,
		Page:       res.Page,
		TotalPages: res.TotalPages,
		ScrollTo:   r.URL.Query().Get("scroll"),
	})
}

// HandleDetail handles GET /papers/{id}: one paper with its annotations.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id := catalog.PaperID(r.PathValue("id"))
	p := h.cat.ByID(id)
	if p == nil {
		h.renderer.renderError(w, r, errors.NewNotFound(string(id)))
		return
	}

	snap := h.sess.Snapshot()
	item := paperItem(p, snap)
	// Show a pending draft over the committed note, if one exists
	item.Note = h.sess.NoteText(id)

	h.renderer.renderPage(w, "paper", DetailPageData{
		PageData: h.pageData(r, p.Title),
		Item:     item,
		NoteHTML: renderMarkdown(item.Note),
	})
}

// redirectBack redirects to the referring page, defaulting to the list.
func redirectBack(w http.ResponseWriter, r *http.Request) {
	target := r.Referer()
	if target == "" {
		target = "/papers"
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// HandleToggleBookmark handles POST /papers/{id}/bookmark.
func (h *Handlers) HandleToggleBookmark(w http.ResponseWriter, r *http.Request) {
	id := catalog.PaperID(r.PathValue("id"))
	if _, _, err := h.sess.ToggleBookmark(id); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	redirectBack(w, r)
}

// HandleCommitNote handles POST /papers/{id}/note, the durable commit of
// the note field. Blank text deletes the note.
func (h *Handlers) HandleCommitNote(w http.ResponseWriter, r *http.Request) {
	id := catalog.PaperID(r.PathValue("id"))
	if _, err := h.sess.CommitNote(id, r.FormValue("note")); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	redirectBack(w, r)
}

// HandleAddTag handles POST /papers/{id}/tags.
func (h *Handlers) HandleAddTag(w http.ResponseWriter, r *http.Request) {
	id := catalog.PaperID(r.PathValue("id"))
	if _, err := h.sess.AddTag(id, r.FormValue("tag")); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	redirectBack(w, r)
}

// HandleRemoveTag handles POST /papers/{id}/tags/remove.
func (h *Handlers) HandleRemoveTag(w http.ResponseWriter, r *http.Request) {
	id := catalog.PaperID(r.PathValue("id"))
	if _, err := h.sess.RemoveTag(id, r.FormValue("tag")); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	redirectBack(w, r)
}

// HandleSetCheckpoint handles POST /papers/{id}/checkpoint.
func (h *Handlers) HandleSetCheckpoint(w http.ResponseWriter, r *http.Request) {
	id := catalog.PaperID(r.PathValue("id"))
	if _, err := h.sess.SetCheckpoint(id); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	redirectBack(w, r)
}

// HandleJump handles POST /checkpoint/jump. A missing or stale checkpoint
// fails softly: the user is sent back to the list with a notice instead of
// an error page.
func (h *Handlers) HandleJump(w http.ResponseWriter, r *http.Request) {
	res, err := h.sess.JumpToCheckpoint()
	if err != nil {
		if errors.Is(err, errors.ErrNoCheckpoint) || errors.Is(err, errors.ErrNotFound) {
			msg := "checkpoint unavailable"
			if e, ok := err.(*errors.RpvError); ok {
				msg = e.Message
			}
			http.Redirect(w, r, "/papers?notice="+url.QueryEscape(msg), http.StatusSeeOther)
			return
		}
		h.renderer.renderError(w, r, err)
		return
	}

	target := fmt.Sprintf("/papers?page=%d&scroll=%s#paper-%s", res.View.Page, url.QueryEscape(string(res.Target)), url.PathEscape(string(res.Target)))
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// HandleSignIn handles POST /signin: reconciles with the remote replica
// for the submitted user id and opens the standing subscription.
func (h *Handlers) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.FormValue("user"))
	if userID == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("user is required"))
		return
	}

	if err := h.sess.SignIn(r.Context(), userID); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	http.Redirect(w, r, "/papers", http.StatusSeeOther)
}

// HandleSignOut handles POST /signout.
func (h *Handlers) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	h.sess.SignOut()
	http.Redirect(w, r, "/papers", http.StatusSeeOther)
}
