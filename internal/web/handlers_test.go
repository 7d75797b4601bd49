package web

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/hpungsan/rpv/internal/catalog"
	"github.com/hpungsan/rpv/internal/config"
	"github.com/hpungsan/rpv/internal/db"
	"github.com/hpungsan/rpv/internal/remote"
	"github.com/hpungsan/rpv/internal/session"
	"github.com/hpungsan/rpv/internal/store"
)

func testCatalog(n int) *catalog.Catalog {
	papers := make([]catalog.Paper, n)
	for i := range papers {
		papers[i] = catalog.Paper{
			ID:        catalog.PaperID(fmt.Sprintf("p%d", i+1)),
			Title:     fmt.Sprintf("Paper p%d", i+1),
			Authors:   "Doe, J.",
			Year:      2024,
			Journal:   "CHI",
			SummaryEN: fmt.Sprintf("a study of topic %d", i+1),
			SummaryJA: fmt.Sprintf("トピック%dの研究", i+1),
		}
	}
	return catalog.New(papers)
}

func setupTest(t *testing.T, n int) *Handlers {
	t.Helper()

	localDB, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("db.Init (local): %v", err)
	}
	t.Cleanup(func() { localDB.Close() })

	remoteDB, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("db.Init (remote): %v", err)
	}
	t.Cleanup(func() { remoteDB.Close() })

	rem := remote.NewSQLStore(remoteDB)
	t.Cleanup(rem.Close)

	cfg := config.DefaultConfig()
	cat := testCatalog(n)
	sess := session.New(cfg, cat, store.New(localDB), rem)

	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		t.Fatalf("template sub-FS: %v", err)
	}
	renderer := NewRenderer(templateSub, "test")

	return &Handlers{
		sess:     sess,
		cat:      cat,
		cfg:      cfg,
		renderer: renderer,
	}
}

func postForm(path string, form url.Values) *http.Request {
	req := httptest.NewRequest("POST", path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// --- HandlePapers ---

func TestHandlePapers_Default(t *testing.T) {
	h := setupTest(t, 3)

	req := httptest.NewRequest("GET", "/papers", nil)
	rec := httptest.NewRecorder()
	h.HandlePapers(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Paper p1") {
		t.Error("expected paper title in response")
	}
	if !strings.Contains(body, "1 / 1") {
		t.Error("expected pagination indicator")
	}
}

func TestHandlePapers_SearchFilters(t *testing.T) {
	h := setupTest(t, 3)

	req := httptest.NewRequest("GET", "/papers?q=topic+2", nil)
	rec := httptest.NewRecorder()
	h.HandlePapers(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Paper p2") {
		t.Error("expected matching paper in results")
	}
	if strings.Contains(body, "Paper p1") {
		t.Error("did not expect non-matching paper in results")
	}
}

func TestHandlePapers_NoMatches(t *testing.T) {
	h := setupTest(t, 3)

	req := httptest.NewRequest("GET", "/papers?q=zzznonexistent", nil)
	rec := httptest.NewRecorder()
	h.HandlePapers(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No papers to show") {
		t.Error("expected empty state message")
	}
}

func TestHandlePapers_BookmarksViewEmpty(t *testing.T) {
	h := setupTest(t, 3)

	req := httptest.NewRequest("GET", "/papers?view=bookmarks", nil)
	rec := httptest.NewRecorder()
	h.HandlePapers(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No papers to show") {
		t.Error("expected empty bookmarks view")
	}
}

func TestHandlePapers_TagSummary(t *testing.T) {
	h := setupTest(t, 3)
	if _, err := h.sess.AddTag("p1", "ml"); err != nil {
		t.Fatalf("AddTag: %v", err)
	}
	if _, err := h.sess.AddTag("p2", "ml"); err != nil {
		t.Fatalf("AddTag: %v", err)
	}

	req := httptest.NewRequest("GET", "/papers?view=tags", nil)
	rec := httptest.NewRecorder()
	h.HandlePapers(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "ml (2)") {
		t.Error("expected tag with count in summary")
	}
}

func TestHandlePapers_TagFilter(t *testing.T) {
	h := setupTest(t, 3)
	if _, err := h.sess.AddTag("p2", "ml"); err != nil {
		t.Fatalf("AddTag: %v", err)
	}

	req := httptest.NewRequest("GET", "/papers?view=tags&tag=ml", nil)
	rec := httptest.NewRecorder()
	h.HandlePapers(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Tag: ml") {
		t.Error("expected tag heading")
	}
	if !strings.Contains(body, "Paper p2") {
		t.Error("expected tagged paper in results")
	}
	if strings.Contains(body, "Paper p1") {
		t.Error("did not expect untagged paper in results")
	}
}

func TestHandlePapers_PageClamped(t *testing.T) {
	h := setupTest(t, 45) // 3 pages at the default page size of 20

	req := httptest.NewRequest("GET", "/papers?page=99", nil)
	rec := httptest.NewRecorder()
	h.HandlePapers(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "3 / 3") {
		t.Error("expected out-of-range page clamped to last page")
	}
}

func TestHandlePapers_LanguageToggle(t *testing.T) {
	h := setupTest(t, 1)

	req := httptest.NewRequest("GET", "/papers?lang=ja", nil)
	rec := httptest.NewRecorder()
	h.HandlePapers(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "トピック1の研究") {
		t.Error("expected Japanese summary after language toggle")
	}
}

// --- HandleDetail ---

func TestHandleDetail_Found(t *testing.T) {
	h := setupTest(t, 2)

	req := httptest.NewRequest("GET", "/papers/p1", nil)
	req.SetPathValue("id", "p1")
	rec := httptest.NewRecorder()
	h.HandleDetail(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Paper p1") {
		t.Error("expected paper title in detail page")
	}
	if !strings.Contains(body, "a study of topic 1") {
		t.Error("expected summary text in detail page")
	}
}

func TestHandleDetail_NotFound(t *testing.T) {
	h := setupTest(t, 2)

	req := httptest.NewRequest("GET", "/papers/nope", nil)
	req.SetPathValue("id", "nope")
	rec := httptest.NewRecorder()
	h.HandleDetail(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleDetail_RendersNoteMarkdown(t *testing.T) {
	h := setupTest(t, 2)
	if _, err := h.sess.CommitNote("p1", "# Heading\n\nsome *emphasis*"); err != nil {
		t.Fatalf("CommitNote: %v", err)
	}

	req := httptest.NewRequest("GET", "/papers/p1", nil)
	req.SetPathValue("id", "p1")
	rec := httptest.NewRecorder()
	h.HandleDetail(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<h1>Heading</h1>") {
		t.Error("expected markdown heading rendered to HTML")
	}
	if !strings.Contains(body, "<em>emphasis</em>") {
		t.Error("expected markdown emphasis rendered to HTML")
	}
}

// --- Mutations ---

func TestHandleToggleBookmark(t *testing.T) {
	h := setupTest(t, 2)

	req := postForm("/papers/p1/bookmark", url.Values{})
	req.SetPathValue("id", "p1")
	rec := httptest.NewRecorder()
	h.HandleToggleBookmark(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if !h.sess.Snapshot().HasBookmark("p1") {
		t.Error("expected p1 bookmarked after toggle")
	}
}

func TestHandleToggleBookmark_UnknownPaper(t *testing.T) {
	h := setupTest(t, 2)

	req := postForm("/papers/ghost/bookmark", url.Values{})
	req.SetPathValue("id", "ghost")
	rec := httptest.NewRecorder()
	h.HandleToggleBookmark(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleCommitNote_BlankDeletes(t *testing.T) {
	h := setupTest(t, 2)
	if _, err := h.sess.CommitNote("p1", "keep this"); err != nil {
		t.Fatalf("CommitNote: %v", err)
	}

	req := postForm("/papers/p1/note", url.Values{"note": {"   "}})
	req.SetPathValue("id", "p1")
	rec := httptest.NewRecorder()
	h.HandleCommitNote(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if got := h.sess.Snapshot().Note("p1"); got != "" {
		t.Errorf("note = %q, want deleted", got)
	}
}

func TestHandleAddTag_Blank(t *testing.T) {
	h := setupTest(t, 2)

	req := postForm("/papers/p1/tags", url.Values{"tag": {"  "}})
	req.SetPathValue("id", "p1")
	rec := httptest.NewRecorder()
	h.HandleAddTag(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleRemoveTag(t *testing.T) {
	h := setupTest(t, 2)
	if _, err := h.sess.AddTag("p1", "ml"); err != nil {
		t.Fatalf("AddTag: %v", err)
	}

	req := postForm("/papers/p1/tags/remove", url.Values{"tag": {"ml"}})
	req.SetPathValue("id", "p1")
	rec := httptest.NewRecorder()
	h.HandleRemoveTag(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if tags := h.sess.Snapshot().TagsFor("p1"); len(tags) != 0 {
		t.Errorf("tags = %v, want none", tags)
	}
}

// --- HandleJump ---

func TestHandleJump_RedirectsToCheckpointPage(t *testing.T) {
	h := setupTest(t, 45)
	if _, err := h.sess.SetCheckpoint("p25"); err != nil {
		t.Fatalf("SetCheckpoint: %v", err)
	}

	req := postForm("/checkpoint/jump", url.Values{})
	rec := httptest.NewRecorder()
	h.HandleJump(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	loc := rec.Header().Get("Location")
	if !strings.Contains(loc, "page=2") {
		t.Errorf("Location = %q, want page=2", loc)
	}
	if !strings.Contains(loc, "#paper-p25") {
		t.Errorf("Location = %q, want #paper-p25 anchor", loc)
	}
}

func TestHandleJump_NoCheckpoint_SoftFails(t *testing.T) {
	h := setupTest(t, 5)

	req := postForm("/checkpoint/jump", url.Values{})
	rec := httptest.NewRecorder()
	h.HandleJump(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	loc := rec.Header().Get("Location")
	if !strings.Contains(loc, "notice=") {
		t.Errorf("Location = %q, want notice parameter", loc)
	}
}

// --- Sign-in lifecycle ---

func TestHandleSignIn_EmptyUser(t *testing.T) {
	h := setupTest(t, 2)

	req := postForm("/signin", url.Values{"user": {"  "}})
	rec := httptest.NewRecorder()
	h.HandleSignIn(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleSignIn_ThenSignOut(t *testing.T) {
	h := setupTest(t, 2)

	req := postForm("/signin", url.Values{"user": {"alice"}})
	rec := httptest.NewRecorder()
	h.HandleSignIn(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("sign-in status = %d, want 303", rec.Code)
	}
	if h.sess.State() != session.StateSynced {
		t.Fatalf("state = %q, want synced", h.sess.State())
	}

	// Signed-in state shows on the list page
	listReq := httptest.NewRequest("GET", "/papers", nil)
	listRec := httptest.NewRecorder()
	h.HandlePapers(listRec, listReq)
	if !strings.Contains(listRec.Body.String(), "alice") {
		t.Error("expected signed-in user id on list page")
	}

	outReq := postForm("/signout", url.Values{})
	outRec := httptest.NewRecorder()
	h.HandleSignOut(outRec, outReq)

	if outRec.Code != http.StatusSeeOther {
		t.Fatalf("sign-out status = %d, want 303", outRec.Code)
	}
	if h.sess.State() != session.StateAnonymous {
		t.Errorf("state = %q, want anonymous", h.sess.State())
	}
}

// --- Error rendering ---

func TestErrorRendering_JSONError(t *testing.T) {
	h := setupTest(t, 2)

	req := httptest.NewRequest("GET", "/papers/nope", nil)
	req.SetPathValue("id", "nope")
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	h.HandleDetail(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	errObj, ok := resp["error"].(map[string]any)
	if !ok {
		t.Fatal("expected error object in JSON response")
	}
	if errObj["status"] != float64(404) {
		t.Errorf("error.status = %v, want 404", errObj["status"])
	}
}

func TestErrorRendering_FullErrorPage(t *testing.T) {
	h := setupTest(t, 2)

	req := httptest.NewRequest("GET", "/papers/nope", nil)
	req.SetPathValue("id", "nope")
	rec := httptest.NewRecorder()
	h.HandleDetail(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<!DOCTYPE html>") {
		t.Error("full error page should contain layout")
	}
	if !strings.Contains(body, "404") {
		t.Error("error page should show status code")
	}
}
