// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/workerstitch/workerstitch/internal/issue"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	flags := &rootFlagValues{}

	rootCmd := &cobra.Command{
		Use:   "workerstitch",
		Short: "Stitch a hand-written worker module into an adapter-built worker",
		Long: TitleStyle.Render("workerstitch") + SubtitleStyle.Render(" - stitch your worker into the adapter's worker") + `

workerstitch lets a project export extra worker entry points (queue,
scheduled and email handlers, Durable Object classes) from one module
next to the framework adapter's generated worker.

In development it generates an entry that re-exports your module and
lets your fetch handler run first, falling back to static assets. After
a production build it bundles your module and rewrites the adapter's
default export to include it.

` + SubtitleStyle.Render("Examples:") + `
  workerstitch classify             Show what the worker exports
  workerstitch dev                  Generate the dev entry and start the runtime
  workerstitch dev --watch          Regenerate the entry when the worker changes
  workerstitch build                Run the adapter build, then patch its bundle
  workerstitch config show          Show the effective configuration`,
	}

	rootCmd.PersistentFlags().StringVar(&flags.root, "root", "", "project root (default is the working directory)")
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default is <root>/workerstitch.cue)")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging and full error chains")

	rootCmd.AddCommand(newClassifyCommand(app, flags))
	rootCmd.AddCommand(newDevCommand(app, flags))
	rootCmd.AddCommand(newBuildCommand(app, flags))
	rootCmd.AddCommand(newConfigCommand(app, flags))

	rootCmd.SetIn(app.stdin)
	rootCmd.SetOut(app.stdout)
	rootCmd.SetErr(app.stderr)

	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI and exits the process on failure. It is called by
// main.main().
func Execute() {
	os.Exit(Run(context.Background(), NewApp(Dependencies{})))
}

// Run executes the command tree and returns the process exit code.
func Run(ctx context.Context, app *App) int {
	rootCmd := NewRootCommand(app)
	verbose := func() bool {
		v, _ := rootCmd.PersistentFlags().GetBool("verbose")
		return v
	}

	err := fang.Execute(
		ctx,
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(func(w io.Writer, styles fang.Styles, err error) {
			renderError(w, styles, err, verbose(), glamourStyle(app.stderr))
		}),
	)
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

// formatErrorForDisplay formats an error for user display. ActionableErrors
// list their suggestions, and in verbose mode the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
