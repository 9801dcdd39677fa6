// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/workerstitch/workerstitch/internal/deployconfig"
	"github.com/workerstitch/workerstitch/internal/devruntime"
	"github.com/workerstitch/workerstitch/internal/devserver"
	"github.com/workerstitch/workerstitch/internal/issue"
	"github.com/workerstitch/workerstitch/internal/lifecycle"
	"github.com/workerstitch/workerstitch/internal/shell"
	"github.com/workerstitch/workerstitch/internal/watch"
)

type devFlagValues struct {
	watch    bool
	watchSet bool
	noStart  bool
}

func newDevCommand(app *App, flags *rootFlagValues) *cobra.Command {
	devFlags := &devFlagValues{}

	cmd := &cobra.Command{
		Use:   "dev",
		Short: "Generate the dev entry and start the local runtime",
		Long: `Generate the dev entry and start the local runtime.

The entry re-exports every handler and class of the worker module. Its
fetch handler runs the worker's fetch first and falls back to static
assets when that returns nothing. The runtime configuration is written
next to the entry and handed to the dev command through
$WORKERSTITCH_DEV_CONFIG.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			devFlags.watchSet = cmd.Flags().Changed("watch")
			return runDev(cmd.Context(), app, flags, devFlags)
		},
	}
	cmd.Flags().BoolVarP(&devFlags.watch, "watch", "w", false, "regenerate the entry when worker sources change (default from dev.watch)")
	cmd.Flags().BoolVar(&devFlags.noStart, "no-start", false, "write the entry and runtime config without starting the runtime")

	return cmd
}

func runDev(ctx context.Context, app *App, flags *rootFlagValues, devFlags *devFlagValues) error {
	s, err := app.open(ctx, flags)
	if err != nil {
		return err
	}

	rt, err := deployconfig.Resolve(s.root, s.cfg.DeployConfig)
	if err != nil {
		return issue.NewErrorContext().
			WithOperation("read deployment configuration").
			WithResource(s.cfg.DeployConfig).
			WithIssue(issue.DeployConfigInvalidId).
			Wrap(err).
			BuildError()
	}

	orch := devserver.New(s.classifier(app.Bundler), devserver.Options{
		Worker:        s.cfg.Worker,
		GeneratedDir:  s.cfg.GeneratedDir,
		AssetsBinding: s.cfg.AssetsBinding,
	}, s.logger.WithPrefix("dev"))
	provider := devruntime.New(s.runner(), devruntime.Options{
		GeneratedDir: s.cfg.GeneratedDir,
		Command:      s.cfg.Dev.Command,
	}, s.logger.WithPrefix("runtime"))

	resolved := &lifecycle.ResolvedConfig{Root: s.root, Mode: lifecycle.ModeDev, Runtime: rt}
	if err := lifecycle.New(s.logger.WithPrefix("lifecycle"), orch, provider).RunConfigResolved(ctx, resolved); err != nil {
		return err
	}

	if orch.Worker() != "" {
		fmt.Fprintf(app.stdout, "%s dev entry %s (%s)\n", SuccessStyle.Render("✓"),
			KeyStyle.Render(displayPath(s.root, resolved.Runtime.Main)), orch.Record())
	} else {
		fmt.Fprintf(app.stdout, "%s no worker at %s; serving the adapter entry\n", WarningStyle.Render("!"),
			KeyStyle.Render(s.cfg.Worker))
	}
	fmt.Fprintf(app.stdout, "%s runtime config %s\n", SuccessStyle.Render("✓"),
		KeyStyle.Render(displayPath(s.root, provider.ConfigPath())))

	watching := s.cfg.Dev.Watch
	if devFlags.watchSet {
		watching = devFlags.watch
	}
	if orch.Worker() == "" {
		watching = false
	}
	if devFlags.noStart && !watching {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	if watching {
		w, err := watch.New(watch.Config{
			BaseDir:  s.root,
			Patterns: watch.SourcePatterns,
			Ignore:   []string{path.Join(displayPath(s.root, devserver.GeneratedDir(s.root, s.cfg.GeneratedDir)), "**")},
			Debounce: s.cfg.Dev.Debounce,
			Logger:   s.logger.WithPrefix("watch"),
			OnChange: func(ctx context.Context, changed []string) error {
				entryPath, err := orch.Regenerate(ctx)
				if err != nil {
					return err
				}
				s.logger.Info("dev entry regenerated", "entry", displayPath(s.root, entryPath),
					"changed", len(changed), "record", orch.Record())
				return nil
			},
		})
		if err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
		fmt.Fprintf(app.stdout, "%s watching worker sources (Ctrl+C to stop)\n", SubtitleStyle.Render("→"))
		g.Go(func() error { return w.Run(gctx) })
	}

	if !devFlags.noStart {
		g.Go(func() error {
			// The runtime owns the session; once it exits the watcher stops.
			defer cancel()
			return runtimeError(provider.Start(gctx, app.streams()))
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// runtimeError attaches the dev runtime issue and its exit code to err.
func runtimeError(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return err
	}
	wrapped := issue.WrapWithIssue(err, "run dev runtime", issue.DevCommandFailedId)
	var exitErr *shell.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Code: exitErr.Code, Err: wrapped}
	}
	return wrapped
}
