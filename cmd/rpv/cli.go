package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/rpv/internal/catalog"
	"github.com/hpungsan/rpv/internal/config"
	"github.com/hpungsan/rpv/internal/errors"
	"github.com/hpungsan/rpv/internal/session"
	"github.com/hpungsan/rpv/internal/view"
	"github.com/hpungsan/rpv/internal/web"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(sess *session.Session, cat *catalog.Catalog, cfg *config.Config) *cli.App {
	app := &cli.App{
		Name:    "rpv",
		Usage:   "Research paper viewer with synced annotations",
		Version: Version,
		Commands: []*cli.Command{
			serveCmd(sess, cat, cfg),
			listCmd(sess, cat),
			searchCmd(sess, cat),
			showCmd(sess, cat),
			bookmarkCmd(sess),
			noteCmd(sess),
			tagCmd(sess),
			tagsCmd(sess, cat),
			checkpointCmd(sess),
			jumpCmd(sess, cat),
			syncCmd(sess),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// paperRow is one paper in CLI list output.
type paperRow struct {
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

// pageOutput is the CLI list/search response.
type pageOutput struct {
	View       view.Mode       `json:"view"`
	Tag        string          `json:"tag,omitempty"`
	Lang       catalog.Lang    `json:"lang"`
	Query      string          `json:"query,omitempty"`
	Page       int             `json:"page"`
	TotalPages int             `json:"total_pages"`
	Papers     []paperRow      `json:"papers,omitempty"`
	Tags       []view.TagCount `json:"tags,omitempty"`
}

// renderPage builds the CLI page output from a view result.
func renderPage(sess *session.Session, res view.Result) pageOutput {
	st := sess.ViewState()
	snap := sess.Snapshot()

	out := pageOutput{
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

	out.Papers = make([]paperRow, len(res.Papers))
	for i, p := range res.Papers {
		out.Papers[i] = paperRow{
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

// serveCmd creates the serve command.
func serveCmd(sess *session.Session, cat *catalog.Catalog, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Aliases: []string{"b"}, Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Value: 8787, Usage: "Port to listen on"},
			&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "Sign in as this user before serving"},
		},
		Action: func(c *cli.Context) error {
			if user := c.String("user"); user != "" {
				if err := sess.SignIn(context.Background(), user); err != nil {
					return outputError(err)
				}
			}
			srv := web.NewServer(sess, cat, cfg, Version, c.String("bind"), c.Int("port"))
			return web.Run(srv)
		},
	}
}

// listCmd creates the list command.
func listCmd(sess *session.Session, _ *catalog.Catalog) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List one page of papers for a view selection",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "view", Value: "all", Usage: "View mode: all|bookmarks|tags"},
			&cli.StringFlag{Name: "tag", Usage: "Tag to filter by (tags view only)"},
			&cli.StringFlag{Name: "lang", Aliases: []string{"l"}, Usage: "Summary language: en|ja"},
			&cli.IntFlag{Name: "page", Aliases: []string{"p"}, Value: 1, Usage: "Page number"},
		},
		Action: func(c *cli.Context) error {
			sess.SetView(view.ParseMode(c.String("view")), c.String("tag"))
			if c.IsSet("lang") {
				sess.SetLanguage(c.String("lang"))
			}
			res := sess.SetPage(c.Int("page"))
			return outputJSON(renderPage(sess, res))
		},
	}
}

// searchCmd creates the search command.
func searchCmd(sess *session.Session, _ *catalog.Catalog) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search papers (all keywords must match)",
		ArgsUsage: "<keywords>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "lang", Aliases: []string{"l"}, Usage: "Summary language: en|ja"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return outputError(errors.NewInvalidRequest("search keywords are required"))
			}
			if c.IsSet("lang") {
				sess.SetLanguage(c.String("lang"))
			}
			res := sess.SetSearch(strings.Join(c.Args().Slice(), " "))
			return outputJSON(renderPage(sess, res))
		},
	}
}

// showCmd creates the show command.
func showCmd(sess *session.Session, cat *catalog.Catalog) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show one paper with its annotations",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "lang", Aliases: []string{"l"}, Usage: "Summary language: en|ja"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return outputError(errors.NewInvalidRequest("paper id is required"))
			}
			id := catalog.PaperID(c.Args().First())
			p := cat.ByID(id)
			if p == nil {
				return outputError(errors.NewNotFound(string(id)))
			}
			if c.IsSet("lang") {
				sess.SetLanguage(c.String("lang"))
			}

			st := sess.ViewState()
			snap := sess.Snapshot()
			return outputJSON(map[string]any{
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
				"note":       snap.Note(p.ID),
				"checkpoint": snap.Checkpoint == p.ID,
			})
		},
	}
}

// bookmarkCmd creates the bookmark command.
func bookmarkCmd(sess *session.Session) *cli.Command {
	return &cli.Command{
		Name:      "bookmark",
		Usage:     "Toggle the bookmark on a paper",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return outputError(errors.NewInvalidRequest("paper id is required"))
			}
			id := catalog.PaperID(c.Args().First())
			bookmarked, _, err := sess.ToggleBookmark(id)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{
				"id":         id,
				"bookmarked": bookmarked,
			})
		},
	}
}

// noteCmd creates the note command.
func noteCmd(sess *session.Session) *cli.Command {
	return &cli.Command{
		Name:      "note",
		Usage:     "Set the note on a paper (reads text from stdin; blank deletes)",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return outputError(errors.NewInvalidRequest("paper id is required"))
			}
			id := catalog.PaperID(c.Args().First())

			var text string
			if stdinHasData() {
				t, err := readStdin()
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
				text = t
			}

			if _, err := sess.CommitNote(id, text); err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{
				"id":   id,
				"note": sess.Snapshot().Note(id),
			})
		},
	}
}

// tagCmd creates the tag command.
func tagCmd(sess *session.Session) *cli.Command {
	return &cli.Command{
		Name:      "tag",
		Usage:     "Add a tag to a paper (or remove with --remove)",
		ArgsUsage: "<id> <tag>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "remove", Aliases: []string{"r"}, Usage: "Remove the tag instead of adding it"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 2 {
				return outputError(errors.NewInvalidRequest("paper id and tag are required"))
			}
			id := catalog.PaperID(c.Args().Get(0))
			tag := c.Args().Get(1)

			var err error
			if c.Bool("remove") {
				_, err = sess.RemoveTag(id, tag)
			} else {
				_, err = sess.AddTag(id, tag)
			}
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{
				"id":   id,
				"tags": sess.Snapshot().TagsFor(id),
			})
		},
	}
}

// tagsCmd creates the tags command.
func tagsCmd(sess *session.Session, _ *catalog.Catalog) *cli.Command {
	return &cli.Command{
		Name:  "tags",
		Usage: "List all tags in use with paper counts",
		Action: func(c *cli.Context) error {
			res := sess.SetView(view.ModeTags, "")
			return outputJSON(map[string]any{
				"tags": res.TagSummary,
			})
		},
	}
}

// checkpointCmd creates the checkpoint command.
func checkpointCmd(sess *session.Session) *cli.Command {
	return &cli.Command{
		Name:      "checkpoint",
		Usage:     "Set the reading checkpoint to a paper",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return outputError(errors.NewInvalidRequest("paper id is required"))
			}
			id := catalog.PaperID(c.Args().First())
			if _, err := sess.SetCheckpoint(id); err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{
				"id":         id,
				"checkpoint": true,
			})
		},
	}
}

// jumpCmd creates the jump command.
func jumpCmd(sess *session.Session, _ *catalog.Catalog) *cli.Command {
	return &cli.Command{
		Name:  "jump",
		Usage: "Jump to the checkpoint and print its page",
		Action: func(c *cli.Context) error {
			res, err := sess.JumpToCheckpoint()
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{
				"id":          res.Target,
				"page":        res.View.Page,
				"total_pages": res.View.TotalPages,
			})
		},
	}
}

// syncCmd creates the sync command.
func syncCmd(sess *session.Session) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Reconcile local annotations with a user's remote copy once",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Required: true, Usage: "User id"},
		},
		Action: func(c *cli.Context) error {
			user := c.String("user")
			if err := sess.SignIn(c.Context, user); err != nil {
				return outputError(err)
			}
			// One-shot: the merged state has been persisted and pushed,
			// nothing to keep listening for.
			sess.SignOut()

			snap := sess.Snapshot()
			return outputJSON(map[string]any{
				"user":      user,
				"bookmarks": len(snap.Bookmarks),
				"notes":     len(snap.Notes),
				"tagged":    len(snap.Tags),
			})
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if rErr, ok := err.(*errors.RpvError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", rErr.Code, rErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all content from stdin.
func readStdin() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
