// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/workerstitch/workerstitch/internal/exports"
	"github.com/workerstitch/workerstitch/internal/issue"
	"github.com/workerstitch/workerstitch/internal/project"
)

// classifyReport is the --json output of `workerstitch classify`.
type classifyReport struct {
	Worker   string   `json:"worker"`
	Handlers []string `json:"handlers"`
	Classes  []string `json:"classes"`
}

func newClassifyCommand(app *App, flags *rootFlagValues) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "classify [worker]",
		Short: "Show the handlers and classes a worker module exports",
		Long: `Bundle the worker module and list its exports.

Handlers are exports named after a worker event (fetch, scheduled, queue,
email, tail, trace, tailStream). Every other export except default
is listed as a class and re-exported unchanged.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			worker := ""
			if len(args) == 1 {
				worker = args[0]
			}
			return runClassify(cmd.Context(), app, flags, worker, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the record as JSON")

	return cmd
}

func runClassify(ctx context.Context, app *App, flags *rootFlagValues, worker string, asJSON bool) error {
	s, err := app.open(ctx, flags)
	if err != nil {
		return err
	}
	if worker == "" {
		worker = s.cfg.Worker
	}

	w, err := project.ResolveWorker(s.root, worker)
	if err != nil {
		return err
	}
	if !w.Exists {
		return issue.NewErrorContext().
			WithOperation("classify worker exports").
			WithResource(w.Path).
			WithIssue(issue.WorkerNotFoundId).
			Wrap(errors.New("worker module not found")).
			BuildError()
	}

	rec, err := s.classifier(app.Bundler).ClassifyFile(ctx, w.Path)
	if err != nil {
		return issue.NewErrorContext().
			WithOperation("classify worker exports").
			WithResource(w.Path).
			WithIssue(issue.ClassificationFailedId).
			Wrap(err).
			BuildError()
	}

	report := classifyReport{
		Worker:   displayPath(s.root, w.Path),
		Handlers: nonNil(rec.Handlers),
		Classes:  nonNil(rec.Classes),
	}
	if asJSON {
		enc := json.NewEncoder(app.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	printRecord(app, report, rec)
	return nil
}

func printRecord(app *App, report classifyReport, rec exports.Record) {
	fmt.Fprintf(app.stdout, "%s %s\n", TitleStyle.Render("Worker"), KeyStyle.Render(report.Worker))
	fmt.Fprintf(app.stdout, "  handlers: %s\n", joinOrNone(report.Handlers))
	fmt.Fprintf(app.stdout, "  classes:  %s\n", joinOrNone(report.Classes))
	if rec.Empty() {
		fmt.Fprintf(app.stdout, "%s\n", WarningStyle.Render("nothing besides default is exported; build patching will be skipped"))
	}
}

func joinOrNone(names []string) string {
	if len(names) == 0 {
		return SubtitleStyle.Render("(none)")
	}
	styled := make([]string, len(names))
	for i, n := range names {
		styled[i] = KeyStyle.Render(n)
	}
	return strings.Join(styled, ", ")
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// displayPath shows p relative to root when it lies inside it.
func displayPath(root, p string) string {
	rel, err := filepath.Rel(root, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		return p
	}
	return filepath.ToSlash(rel)
}
