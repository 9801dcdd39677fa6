// SPDX-License-Identifier: MPL-2.0

// Package devserver provides the dev-mode plugin that stitches the user's
// worker module into the runtime entry before the runtime provider
// configures itself.
package devserver

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/workerstitch/workerstitch/internal/deployconfig"
	"github.com/workerstitch/workerstitch/internal/entry"
	"github.com/workerstitch/workerstitch/internal/exports"
	"github.com/workerstitch/workerstitch/internal/issue"
	"github.com/workerstitch/workerstitch/internal/lifecycle"
	"github.com/workerstitch/workerstitch/internal/project"
)

// PluginName identifies the orchestrator in the lifecycle pipeline.
const PluginName = "workerstitch:dev"

// ErrNotResolved is returned by Regenerate before a worker was resolved.
var ErrNotResolved = errors.New("dev entry has not been generated")

type (
	// Classifier classifies a worker module on disk.
	Classifier interface {
		ClassifyFile(ctx context.Context, path string) (exports.Record, error)
	}

	// Options configures the orchestrator.
	Options struct {
		// Worker is the worker module path, relative to the project root.
		Worker string
		// GeneratedDir holds generated artifacts, relative to the project
		// root.
		GeneratedDir string
		// AssetsBinding names the static-asset binding.
		AssetsBinding string
	}

	// Orchestrator is the dev-mode plugin. It runs in the pre bucket so
	// the runtime provider sees the redirected entry.
	Orchestrator struct {
		classifier Classifier
		opts       Options
		logger     *log.Logger

		mu     sync.Mutex
		worker string
		synth  entry.Synthesizer
		record exports.Record
	}
)

// New creates an orchestrator. A nil logger discards output.
func New(c Classifier, opts Options, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Orchestrator{classifier: c, opts: opts, logger: logger}
}

// Name implements lifecycle.Plugin.
func (o *Orchestrator) Name() string { return PluginName }

// Enforce implements lifecycle.Enforcer.
func (o *Orchestrator) Enforce() lifecycle.Enforce { return lifecycle.EnforcePre }

// ConfigResolved generates the dev entry and points cfg.Runtime at it. A
// missing worker module leaves the runtime entry alone.
func (o *Orchestrator) ConfigResolved(ctx context.Context, cfg *lifecycle.ResolvedConfig) error {
	if cfg.Mode != lifecycle.ModeDev {
		return nil
	}

	w, err := project.ResolveWorker(cfg.Root, o.opts.Worker)
	if err != nil {
		return err
	}
	if !w.Exists {
		o.logger.Info("no worker module; runtime entry unchanged", "path", w.Path)
		deployconfig.PatchRuntime(cfg.Runtime, o.opts.AssetsBinding, false)
		return nil
	}

	// The entry falls back through the binding the runtime will define,
	// which may be one the user named.
	deployconfig.PatchRuntime(cfg.Runtime, o.opts.AssetsBinding, true)
	binding := o.opts.AssetsBinding
	if cfg.Runtime.Assets != nil && cfg.Runtime.Assets.Binding != "" {
		binding = cfg.Runtime.Assets.Binding
	}

	o.mu.Lock()
	o.worker = w.Path
	o.synth = entry.Synthesizer{
		Dir:           GeneratedDir(cfg.Root, o.opts.GeneratedDir),
		AssetsBinding: binding,
	}
	o.mu.Unlock()

	path, err := o.Regenerate(ctx)
	if err != nil {
		return err
	}

	cfg.Runtime.Main = path
	o.logger.Debug("runtime entry redirected", "main", path, "binding", binding)
	return nil
}

// Regenerate reclassifies the worker and rewrites the dev entry at its fixed
// path. It returns the entry path.
func (o *Orchestrator) Regenerate(ctx context.Context) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.worker == "" {
		return "", ErrNotResolved
	}

	rec, err := o.classifier.ClassifyFile(ctx, o.worker)
	if err != nil {
		return "", issue.NewErrorContext().
			WithOperation("classify worker exports").
			WithResource(o.worker).
			WithIssue(issue.ClassificationFailedId).
			Wrap(err).
			BuildError()
	}
	path, err := o.synth.Write(ctx, rec, o.worker)
	if err != nil {
		return "", err
	}

	o.record = rec
	o.logger.Debug("dev entry written", "path", path, "handlers", rec.Handlers, "classes", rec.Classes)
	return path, nil
}

// Worker returns the resolved worker path, or "" when none was found.
func (o *Orchestrator) Worker() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.worker
}

// Record returns the most recent classification.
func (o *Orchestrator) Record() exports.Record {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.record
}
