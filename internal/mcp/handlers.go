package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/rpv/internal/catalog"
	"github.com/hpungsan/rpv/internal/config"
	"github.com/hpungsan/rpv/internal/errors"
	"github.com/hpungsan/rpv/internal/session"
	"github.com/hpungsan/rpv/internal/view"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	sess *session.Session
	cat  *catalog.Catalog
	cfg  *config.Config
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(sess *session.Session, cat *catalog.Catalog, cfg *config.Config) *Handlers {
	return &Handlers{sess: sess, cat: cat, cfg: cfg}
}

// Request types for each tool

// ListRequest represents the arguments for paper_list.
type ListRequest struct {
	View string `json:"view,omitempty"`
	Tag  string `json:"tag,omitempty"`
	Lang string `json:"lang,omitempty"`
	Q    string `json:"q,omitempty"`
	Page int    `json:"page,omitempty"`
}

// SearchRequest represents the arguments for paper_search.
type SearchRequest struct {
	Q string `json:"q"`
}

// GetRequest represents the arguments for paper_get.
type GetRequest struct {
	ID string `json:"id"`
}

// NoteRequest represents the arguments for paper_note.
type NoteRequest struct {
	ID      string `json:"id"`
	Text    string `json:"text,omitempty"`
	Preview bool   `json:"preview,omitempty"`
}

// TagRequest represents the arguments for paper_tag_add and paper_tag_remove.
type TagRequest struct {
	ID  string `json:"id"`
	Tag string `json:"tag"`
}

// SignInRequest represents the arguments for sync_signin.
type SignInRequest struct {
	User string `json:"user"`
}

// Response types

// listItem is one paper row in a list response.
type listItem struct {
	ID         catalog.PaperID `json:"id"`
	Title      string          `json:"title"`
	Authors    string          `json:"authors"`
	Year       int             `json:"year,omitempty"`
	Journal    string          `json:"journal,omitempty"`
	Summary    string          `json:"summary,omitempty"`
	Bookmarked bool            `json:"bookmarked,omitempty"`
	Tags       []string        `json:"tags,omitempty"`
	HasNote    bool            `json:"has_note,omitempty"`
	Checkpoint bool            `json:"checkpoint,omitempty"`
}

// listResult is the response for paper_list and paper_search.
type listResult struct {
	View       view.Mode       `json:"view"`
	Tag        string          `json:"tag,omitempty"`
	Lang       catalog.Lang    `json:"lang"`
	Query      string          `json:"query,omitempty"`
	Page       int             `json:"page"`
	TotalPages int             `json:"total_pages"`
	Papers     []listItem      `json:"papers,omitempty"`
	Tags       []view.TagCount `json:"tags,omitempty"`
}

// listResponse renders the current view into a listResult.
func (h *Handlers) listResponse(res view.Result) listResult {
	st := h.sess.ViewState()
	snap := h.sess.Snapshot()

	out := listResult{
		View:       st.Mode,
		Tag:        st.Tag,
		Lang:       st.Lang,
		Query:      strings.Join(st.Keywords, " "),
		Page:       res.Page,
		TotalPages: res.TotalPages,
	}

	if res.IsTagSummary() {
		out.Tags = res.TagSummary
		return out
	}

	out.Papers = make([]listItem, len(res.Papers))
	for i, p := range res.Papers {
		out.Papers[i] = listItem{
			ID:         p.ID,
			Title:      p.Title,
			Authors:    p.Authors,
			Year:       p.Year,
			Journal:    p.Journal,
			Summary:    p.Summary(st.Lang),
			Bookmarked: snap.HasBookmark(p.ID),
			Tags:       snap.TagsFor(p.ID),
			HasNote:    snap.Note(p.ID) != "",
			Checkpoint: snap.Checkpoint == p.ID,
		}
	}
	return out
}

// Handler implementations

// HandleList handles the paper_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	args := req.GetArguments()
	if _, ok := args["view"]; ok {
		h.sess.SetView(view.ParseMode(input.View), input.Tag)
	} else if _, ok := args["tag"]; ok {
		h.sess.SetView(view.ModeTags, input.Tag)
	}
	if _, ok := args["lang"]; ok {
		h.sess.SetLanguage(input.Lang)
	}
	if _, ok := args["q"]; ok {
		h.sess.SetSearch(input.Q)
	}
	if input.Page > 0 {
		h.sess.SetPage(input.Page)
	}

	return successResult(h.listResponse(h.sess.Render()))
}

// HandleSearch handles the paper_search tool call.
func (h *Handlers) HandleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SearchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	res := h.sess.SetSearch(input.Q)
	return successResult(h.listResponse(res))
}

// HandleGet handles the paper_get tool call.
func (h *Handlers) HandleGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GetRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	p := h.cat.ByID(catalog.PaperID(input.ID))
	if p == nil {
		return errorResult(errors.NewNotFound(input.ID)), nil
	}

	st := h.sess.ViewState()
	snap := h.sess.Snapshot()

	return successResult(map[string]any{
		"id":         p.ID,
		"title":      p.Title,
		"authors":    p.Authors,
		"year":       p.Year,
		"journal":    p.Journal,
		"url":        p.URL,
		"lang":       st.Lang,
		"summary":    p.Summary(st.Lang),
		"problem":    p.Problem(st.Lang),
		"method":     p.Method(st.Lang),
		"results":    p.Results(st.Lang),
		"bookmarked": snap.HasBookmark(p.ID),
		"tags":       snap.TagsFor(p.ID),
		"note":       h.sess.NoteText(p.ID),
		"checkpoint": snap.Checkpoint == p.ID,
	})
}

// HandleBookmark handles the paper_bookmark tool call.
func (h *Handlers) HandleBookmark(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GetRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	bookmarked, _, err := h.sess.ToggleBookmark(catalog.PaperID(input.ID))
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(map[string]any{
		"id":         input.ID,
		"bookmarked": bookmarked,
	})
}

// HandleNote handles the paper_note tool call.
func (h *Handlers) HandleNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[NoteRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	id := catalog.PaperID(input.ID)
	if input.Preview {
		if err := h.sess.PreviewNote(id, input.Text); err != nil {
			return errorResult(err), nil
		}
		return successResult(map[string]any{
			"id":      input.ID,
			"preview": true,
			"note":    h.sess.NoteText(id),
		})
	}

	if _, err := h.sess.CommitNote(id, input.Text); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{
		"id":   input.ID,
		"note": h.sess.Snapshot().Note(id),
	})
}

// HandleTagAdd handles the paper_tag_add tool call.
func (h *Handlers) HandleTagAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TagRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	id := catalog.PaperID(input.ID)
	if _, err := h.sess.AddTag(id, input.Tag); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{
		"id":   input.ID,
		"tags": h.sess.Snapshot().TagsFor(id),
	})
}

// HandleTagRemove handles the paper_tag_remove tool call.
func (h *Handlers) HandleTagRemove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TagRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	id := catalog.PaperID(input.ID)
	if _, err := h.sess.RemoveTag(id, input.Tag); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{
		"id":   input.ID,
		"tags": h.sess.Snapshot().TagsFor(id),
	})
}

// HandleTags handles the paper_tags tool call. The summary is computed from
// the live snapshot without touching the view selection.
func (h *Handlers) HandleTags(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st := h.sess.ViewState()
	summary := view.ComputeView(h.cat, h.sess.Snapshot(), view.State{
		Mode: view.ModeTags,
		Lang: st.Lang,
		Page: 1,
	}, h.cfg.PageSize)

	return successResult(map[string]any{
		"tags": summary.TagSummary,
	})
}

// HandleCheckpoint handles the paper_checkpoint tool call.
func (h *Handlers) HandleCheckpoint(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GetRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	if _, err := h.sess.SetCheckpoint(catalog.PaperID(input.ID)); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{
		"id":         input.ID,
		"checkpoint": true,
	})
}

// HandleJump handles the paper_jump tool call.
func (h *Handlers) HandleJump(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := h.sess.JumpToCheckpoint()
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(map[string]any{
		"id":          res.Target,
		"page":        res.View.Page,
		"total_pages": res.View.TotalPages,
	})
}

// HandleSignIn handles the sync_signin tool call.
func (h *Handlers) HandleSignIn(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SignInRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.User == "" {
		return errorResult(errors.NewInvalidRequest("user is required")), nil
	}

	if err := h.sess.SignIn(ctx, input.User); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{
		"state": h.sess.State(),
		"user":  h.sess.UserID(),
	})
}

// HandleSignOut handles the sync_signout tool call.
func (h *Handlers) HandleSignOut(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	h.sess.SignOut()
	return successResult(map[string]any{
		"state": h.sess.State(),
	})
}

// HandleStatus handles the sync_status tool call.
func (h *Handlers) HandleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out := map[string]any{
		"state": h.sess.State(),
	}
	if user := h.sess.UserID(); user != "" {
		out["user"] = user
	}
	return successResult(out)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Note: Internal error details are not exposed to prevent leaking sensitive info.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if rErr, ok := err.(*errors.RpvError); ok {
		errorObj := map[string]any{
			"code":    rErr.Code,
			"message": rErr.Message,
			"status":  rErr.Status,
		}
		if rErr.Code != errors.ErrInternal && rErr.Details != nil {
			errorObj["details"] = rErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
