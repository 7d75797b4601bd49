package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/rpv/internal/catalog"
	"github.com/hpungsan/rpv/internal/config"
	"github.com/hpungsan/rpv/internal/db"
	"github.com/hpungsan/rpv/internal/mcp"
	"github.com/hpungsan/rpv/internal/remote"
	"github.com/hpungsan/rpv/internal/session"
	"github.com/hpungsan/rpv/internal/store"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"serve": true, "list": true, "search": true, "show": true,
	"bookmark": true, "note": true, "tag": true, "tags": true,
	"checkpoint": true, "jump": true, "sync": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	// Known subcommand → CLI
	if cliCommands[arg] {
		return true
	}
	// --help or --version → CLI
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false // Default → MCP server
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   _ __ _ ____ __
  | '__| '_ \ \ / /
  | |  | |_) \ V /
  |_|  | .__/ \_/
       |_|

  Research paper viewer with synced annotations

  Usage: rpv <command> [options]
         rpv --help

  MCP server mode requires piped input.`)
}

// catalogSource resolves the configured catalog path. URLs pass through;
// relative file paths resolve against baseDir.
func catalogSource(baseDir string, cfg *config.Config) string {
	src := cfg.CatalogPath
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		return src
	}
	if !filepath.IsAbs(src) {
		return filepath.Join(baseDir, src)
	}
	return src
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion() {
		app := newCLIApp(nil, nil, nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		os.Exit(1)
	}

	baseDir := filepath.Join(homeDir, ".rpv")

	database, err := db.Init(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	cfg, err := config.Load(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}
	db.ConfigurePool(database, cfg)

	cat, err := catalog.Load(catalogSource(baseDir, cfg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load catalog: %v\n", err)
		os.Exit(1)
	}

	rem := remote.NewSQLStore(database)
	defer rem.Close()

	sess := session.New(cfg, cat, store.New(database), rem)

	// CLI mode: known subcommand
	if isCLIMode() {
		app := newCLIApp(sess, cat, cfg)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'rpv --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default)
	if err := mcp.Run(sess, cat, cfg, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
