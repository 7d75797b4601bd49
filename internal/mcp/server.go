package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/rpv/internal/catalog"
	"github.com/hpungsan/rpv/internal/config"
	"github.com/hpungsan/rpv/internal/session"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"paper_list": {
		def:     listToolDef(),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleList },
	},
	"paper_search": {
		def:     searchToolDef(),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSearch },
	},
	"paper_get": {
		def:     getToolDef(),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGet },
	},
	"paper_bookmark": {
		def:     bookmarkToolDef(),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBookmark },
	},
	"paper_note": {
		def:     noteToolDef(),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleNote },
	},
	"paper_tag_add": {
		def:     tagAddToolDef(),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTagAdd },
	},
	"paper_tag_remove": {
		def:     tagRemoveToolDef(),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTagRemove },
	},
	"paper_tags": {
		def:     tagsToolDef(),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTags },
	},
	"paper_checkpoint": {
		def:     checkpointToolDef(),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCheckpoint },
	},
	"paper_jump": {
		def:     jumpToolDef(),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleJump },
	},
	"sync_signin": {
		def:     signinToolDef(),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSignIn },
	},
	"sync_signout": {
		def:     signoutToolDef(),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSignOut },
	},
	"sync_status": {
		def:     statusToolDef(),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleStatus },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates a new MCP server with rpv tools registered.
// Tools listed in cfg.DisabledTools are excluded from registration.
func NewServer(sess *session.Session, cat *catalog.Catalog, cfg *config.Config, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"rpv",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(sess, cat, cfg)

	disabled := make(map[string]bool)
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(sess *session.Session, cat *catalog.Catalog, cfg *config.Config, version string) error {
	s := NewServer(sess, cat, cfg, version)
	return server.ServeStdio(s)
}

// ToolHandlerFunc is the signature for tool handlers.
type ToolHandlerFunc func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
