// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/workerstitch/workerstitch/internal/issue"
	"github.com/workerstitch/workerstitch/internal/lifecycle"
	"github.com/workerstitch/workerstitch/internal/patcher"
	"github.com/workerstitch/workerstitch/internal/shell"
)

func newBuildCommand(app *App, flags *rootFlagValues) *cobra.Command {
	var skipAdapter, strict bool

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Run the adapter build, then stitch the worker into its bundle",
		Long: `Run the adapter build, then stitch the worker into its bundle.

The worker module is bundled next to the adapter's output and the
bundle's default export is rewritten so the worker's handlers run first
and its classes are exported. script_name entries are removed from
Durable Object bindings in the deploy config afterwards.

A missing worker, a missing bundle, an already patched bundle or a
worker that exports nothing besides default leave everything untouched.
With --strict the first three fail the build instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd.Context(), app, flags, skipAdapter, strict)
		},
	}
	cmd.Flags().BoolVar(&skipAdapter, "skip-adapter", false, "patch the existing bundle without running build.adapter_command")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail when the worker or bundle is missing or the bundle is already patched")

	return cmd
}

func runBuild(ctx context.Context, app *App, flags *rootFlagValues, skipAdapter, strict bool) error {
	s, err := app.open(ctx, flags)
	if err != nil {
		return err
	}

	if command := s.cfg.Build.AdapterCommand; command != "" && !skipAdapter {
		fmt.Fprintf(app.stdout, "%s %s\n", SubtitleStyle.Render("→"), command)
		err := s.runner().Run(ctx, shell.Command{
			Name:   "adapter build",
			Script: command,
			Dir:    s.root,
			IO:     app.streams(),
		})
		if err != nil {
			return adapterError(err)
		}
	}

	p := patcher.New(s.classifier(app.Bundler), app.Bundler, patcher.Options{
		Worker:        s.cfg.Worker,
		DeployConfig:  s.cfg.DeployConfig,
		DefaultBundle: s.cfg.DefaultBundle,
		ArtifactName:  s.cfg.ArtifactName,
		Bundler:       s.cfg.BundlerOptions(),
	}, s.logger.WithPrefix("build"))

	if err := lifecycle.New(s.logger.WithPrefix("lifecycle"), p).RunCloseBundle(ctx, &lifecycle.BuildOutput{Root: s.root}); err != nil {
		return err
	}
	res := p.Last()
	if res == nil {
		return nil
	}
	printPatchResult(app, s.root, *res)
	if strict {
		return strictError(s.root, *res)
	}
	return nil
}

// strictError turns a skipped patch into an error.
func strictError(root string, res patcher.Result) error {
	var (
		id       issue.Id
		resource string
	)
	switch res.Status {
	case patcher.StatusNoWorker:
		id, resource = issue.WorkerNotFoundId, res.Worker
	case patcher.StatusNoBundle:
		id, resource = issue.AdapterBundleNotFoundId, res.Bundle
	case patcher.StatusAlreadyPatched:
		id, resource = issue.AlreadyPatchedId, res.Bundle
	default:
		return nil
	}
	return issue.NewErrorContext().
		WithOperation("patch adapter bundle").
		WithResource(displayPath(root, resource)).
		WithIssue(id).
		Wrap(fmt.Errorf("nothing patched (%s)", res.Status)).
		BuildError()
}

func printPatchResult(app *App, root string, res patcher.Result) {
	bundle := KeyStyle.Render(displayPath(root, res.Bundle))
	switch res.Status {
	case patcher.StatusPatched:
		fmt.Fprintf(app.stdout, "%s patched %s (%s)\n", SuccessStyle.Render("✓"), bundle, res.Record)
		fmt.Fprintf(app.stdout, "%s worker artifact %s\n", SuccessStyle.Render("✓"), KeyStyle.Render(displayPath(root, res.Artifact)))
		if len(res.Externals) > 0 {
			fmt.Fprintf(app.stdout, "  %s\n", SubtitleStyle.Render("host runtime imports: "+strings.Join(res.Externals, ", ")))
		}
		if res.Scrubbed > 0 {
			fmt.Fprintf(app.stdout, "%s removed %d script_name entries from the deploy config\n", SuccessStyle.Render("✓"), res.Scrubbed)
		}
	case patcher.StatusNoWorker:
		fmt.Fprintf(app.stdout, "%s no worker at %s; bundle left as is\n", WarningStyle.Render("!"), KeyStyle.Render(displayPath(root, res.Worker)))
	case patcher.StatusNoBundle:
		fmt.Fprintf(app.stdout, "%s adapter bundle %s not found; nothing patched\n", WarningStyle.Render("!"), bundle)
		fmt.Fprintf(app.stdout, "  %s\n", SubtitleStyle.Render("set main in the deploy config or default_bundle in workerstitch.cue"))
	case patcher.StatusAlreadyPatched:
		fmt.Fprintf(app.stdout, "%s %s is already patched; left as is\n", WarningStyle.Render("!"), bundle)
	case patcher.StatusEmpty:
		fmt.Fprintf(app.stdout, "%s worker exports nothing besides default; bundle left as is\n", WarningStyle.Render("!"))
	}
}

// adapterError attaches the adapter issue and its exit code to err.
func adapterError(err error) error {
	wrapped := issue.WrapWithIssue(err, "run adapter build", issue.AdapterCommandFailedId)
	var exitErr *shell.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Code: exitErr.Code, Err: wrapped}
	}
	return wrapped
}
