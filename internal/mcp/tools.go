package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// Tool definitions. One per registry entry; descriptions are what MCP
// clients show the model, so they state behavior rather than mechanism.

func listToolDef() mcp.Tool {
	return mcp.NewTool("paper_list",
		mcp.WithDescription("List papers for the current view selection. Optional parameters change the selection before rendering: view (all, bookmarks, tags), tag (filter within the tags view), lang (en or ja), q (space-separated keywords, AND match), page. Returns one page of papers with their annotations, or the tag summary when the tags view has no tag selected."),
		mcp.WithString("view", mcp.Description("View mode: all, bookmarks, or tags")),
		mcp.WithString("tag", mcp.Description("Tag to filter by (tags view only)")),
		mcp.WithString("lang", mcp.Description("Summary language: en or ja")),
		mcp.WithString("q", mcp.Description("Search keywords, space separated; all must match")),
		mcp.WithNumber("page", mcp.Description("Page number, clamped to the valid range")),
	)
}

func searchToolDef() mcp.Tool {
	return mcp.NewTool("paper_search",
		mcp.WithDescription("Set the search keywords and return the first matching page. Matching is case-insensitive substring containment against the paper text in the active language; every keyword must match."),
		mcp.WithString("q", mcp.Required(), mcp.Description("Search keywords, space separated")),
	)
}

func getToolDef() mcp.Tool {
	return mcp.NewTool("paper_get",
		mcp.WithDescription("Fetch one paper by id with its full text sections in the active language and its annotations (bookmark, tags, note, checkpoint)."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Paper id")),
	)
}

func bookmarkToolDef() mcp.Tool {
	return mcp.NewTool("paper_bookmark",
		mcp.WithDescription("Toggle the bookmark on a paper. Returns the new bookmark state."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Paper id")),
	)
}

func noteToolDef() mcp.Tool {
	return mcp.NewTool("paper_note",
		mcp.WithDescription("Set the note on a paper. Blank text deletes the note. With preview=true the text is held as an uncommitted draft instead of being saved."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Paper id")),
		mcp.WithString("text", mcp.Description("Note text; blank deletes")),
		mcp.WithBoolean("preview", mcp.Description("Hold as an uncommitted draft")),
	)
}

func tagAddToolDef() mcp.Tool {
	return mcp.NewTool("paper_tag_add",
		mcp.WithDescription("Add a tag to a paper. Adding a tag the paper already has is a no-op."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Paper id")),
		mcp.WithString("tag", mcp.Required(), mcp.Description("Tag to add")),
	)
}

func tagRemoveToolDef() mcp.Tool {
	return mcp.NewTool("paper_tag_remove",
		mcp.WithDescription("Remove a tag from a paper. Removing an absent tag is a no-op."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Paper id")),
		mcp.WithString("tag", mcp.Required(), mcp.Description("Tag to remove")),
	)
}

func tagsToolDef() mcp.Tool {
	return mcp.NewTool("paper_tags",
		mcp.WithDescription("List every tag in use with the number of papers carrying it, sorted by tag name."),
	)
}

func checkpointToolDef() mcp.Tool {
	return mcp.NewTool("paper_checkpoint",
		mcp.WithDescription("Set the reading checkpoint to a paper. There is at most one checkpoint; setting it replaces the previous one."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Paper id")),
	)
}

func jumpToolDef() mcp.Tool {
	return mcp.NewTool("paper_jump",
		mcp.WithDescription("Jump to the checkpoint: resets the view to all papers with no search and returns the page containing the checkpointed paper. Fails when no checkpoint is set or the paper is gone from the catalog."),
	)
}

func signinToolDef() mcp.Tool {
	return mcp.NewTool("sync_signin",
		mcp.WithDescription("Sign in and reconcile local annotations with the user's remote copy: bookmarks and tags are combined, diverged notes keep both versions, the local checkpoint wins. Afterwards remote updates replace local state as they arrive."),
		mcp.WithString("user", mcp.Required(), mcp.Description("User id")),
	)
}

func signoutToolDef() mcp.Tool {
	return mcp.NewTool("sync_signout",
		mcp.WithDescription("Sign out and stop receiving remote updates. Annotations remain available locally."),
	)
}

func statusToolDef() mcp.Tool {
	return mcp.NewTool("sync_status",
		mcp.WithDescription("Report the sync state (anonymous, signing_in, or synced) and the signed-in user id, if any."),
	)
}
