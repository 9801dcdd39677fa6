// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"

	"github.com/workerstitch/workerstitch/internal/bundler"
	"github.com/workerstitch/workerstitch/internal/deployconfig"
	"github.com/workerstitch/workerstitch/internal/issue"
	"github.com/workerstitch/workerstitch/internal/jssyntax"
	"github.com/workerstitch/workerstitch/internal/lifecycle"
	"github.com/workerstitch/workerstitch/internal/project"
)

// renderError prints err through fang's error block, then the matching
// issue catalog entry rendered with the glamour style.
func renderError(w io.Writer, styles fang.Styles, err error, verbose bool, style string) {
	fang.DefaultErrorHandler(w, styles, errors.New(formatErrorForDisplay(err, verbose)))

	entry := issueFor(err)
	if entry == nil {
		return
	}
	rendered, renderErr := entry.Render(style)
	if renderErr != nil {
		fmt.Fprintf(w, "(issue %d could not be rendered: %v)\n", entry.Id(), renderErr)
		return
	}
	fmt.Fprint(w, rendered)
}

// issueFor maps err to a catalog entry. Errors built with an issue ID win;
// otherwise the sentinel and typed errors of the pipeline are recognized.
func issueFor(err error) *issue.Issue {
	if entry := issue.Lookup(err); entry != nil {
		return entry
	}

	var (
		parseErr *deployconfig.ParseError
		cycleErr *lifecycle.CycleError
	)
	switch {
	case errors.Is(err, project.ErrWorkerIsDirectory):
		return issue.Get(issue.WorkerIsDirectoryId)
	case errors.As(err, &parseErr), errors.Is(err, deployconfig.ErrNotFound):
		return issue.Get(issue.DeployConfigInvalidId)
	case errors.As(err, &cycleErr):
		return issue.Get(issue.PluginCycleId)
	case errors.Is(err, jssyntax.ErrSyntax):
		return issue.Get(issue.GeneratedSyntaxId)
	case errors.Is(err, bundler.ErrBundleFailed):
		return issue.Get(issue.BundleFailedId)
	}
	return nil
}

// glamourStyle picks plain text unless w is a terminal. fang hands the error
// handler a wrapped writer, so callers pass the underlying stream.
func glamourStyle(w io.Writer) string {
	if f, ok := w.(*os.File); ok {
		if info, err := f.Stat(); err == nil && info.Mode()&os.ModeCharDevice != 0 {
			return "dark"
		}
	}
	return "notty"
}
