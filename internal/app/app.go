// Package app implements the parkinfusion command line interface on top of
// the service manager.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/j-veylop/parkinfusion/internal/services"
	"github.com/j-veylop/parkinfusion/internal/ui/styles"
)

// ErrUsage is returned when a command is called with bad arguments. The
// usage text has already been printed.
var ErrUsage = errors.New("invalid usage")

// App runs commands against a service manager.
type App struct {
	mgr    *services.Manager
	out    io.Writer
	errOut io.Writer
	width  int
}

// New creates an App writing to out and errOut.
func New(mgr *services.Manager, out, errOut io.Writer) *App {
	return &App{mgr: mgr, out: out, errOut: errOut, width: 80}
}

type command struct {
	name string
	args string
	help string
	run  func(a *App, ctx context.Context, args []string) error
}

var commands []command

func init() {
	commands = []command{
		{name: "status", help: "Show today's therapy and current stock", run: (*App).runStatus},
		{name: "log", args: "<base|base+accessory>", help: "Log today's dose", run: (*App).runLog},
		{name: "stock", args: "[list|low|adjust <id> <delta>]", help: "Show or change product stock", run: (*App).runStock},
		{name: "product", args: "update <id> key=value...", help: "Edit name, code or minThreshold", run: (*App).runProduct},
		{name: "events", args: "[list|delete <date>] [-month YYYY-MM]", help: "List or delete therapy events", run: (*App).runEvents},
		{name: "report", args: "[-chart]", help: "Show monthly usage reports", run: (*App).runReport},
		{name: "reminder", args: "[show|set -time HH:MM -text ... -enabled|snooze|check]", help: "Manage the daily reminder", run: (*App).runReminder},
		{name: "export", args: "[-format json|yaml] [-out file]", help: "Export all data for the user", run: (*App).runExport},
		{name: "import", args: "[-format json|yaml] <file>", help: "Replace the user's data from a bundle", run: (*App).runImport},
		{name: "clear", args: "-yes", help: "Delete all data for the user", run: (*App).runClear},
	}
}

// Run executes the command named by args[0]. With no arguments it runs status.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return a.runStatus(ctx, nil)
	}

	name, rest := args[0], args[1:]
	for _, c := range commands {
		if c.name == name {
			return c.run(a, ctx, rest)
		}
	}

	fmt.Fprintf(a.errOut, "Unknown command: %s\n\n", name)
	PrintUsage(a.errOut)
	return ErrUsage
}

// PrintUsage writes the command summary.
func PrintUsage(w io.Writer) {
	fmt.Fprintln(w, styles.TitleStyle.Render("parkinfusion - therapy and supply ledger"))
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  parkinfusion [-user name] <command> [arguments]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %s %s\n", styles.HelpKeyStyle.Render(fmt.Sprintf("%-9s", c.name)), styles.HelpStyle.Render(c.help))
		if c.args != "" {
			fmt.Fprintf(w, "            %s %s\n", c.name, c.args)
		}
	}
	fmt.Fprintln(w, `  version   Show version information
  help      Show this help message

Environment Variables:
  PARKINFUSION_USER       User whose data is used (default: default)
  STORE_BACKEND           sqlite, bolt, file, redis or memory (default: sqlite)
  DATABASE_PATH           SQLite database path
  BOLT_PATH               Bolt database path
  DATA_FILE               JSON data file path (file backend)
  REDIS_ADDR              Redis address (default: localhost:6379)
  REDIS_PASSWORD          Redis password
  REDIS_DB                Redis database number
  NODE_ID                 Event id node, 0-1023 (default: 1)
  TIMEZONE                Zone used to decide the calendar day (default: local)
  DESKTOP_NOTIFICATIONS   Alert when stock runs low (default: true)
  LOG_LEVEL               debug, info, warn or error (default: warn)

Configuration:
  The application looks for .env files in the following locations:
  - Current directory
  - ~/.config/parkinfusion/.env
  - ~/.parkinfusion/.env`)
}

func (a *App) usageError(format string, args ...any) error {
	fmt.Fprintf(a.errOut, format+"\n", args...)
	return ErrUsage
}

func (a *App) openOutput(path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return a.out, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return f, f.Close, nil
}
