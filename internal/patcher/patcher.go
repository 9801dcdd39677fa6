// SPDX-License-Identifier: MPL-2.0

package patcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/workerstitch/workerstitch/internal/bundler"
	"github.com/workerstitch/workerstitch/internal/deployconfig"
	"github.com/workerstitch/workerstitch/internal/exports"
	"github.com/workerstitch/workerstitch/internal/issue"
	"github.com/workerstitch/workerstitch/internal/jssyntax"
	"github.com/workerstitch/workerstitch/internal/lifecycle"
	"github.com/workerstitch/workerstitch/internal/project"
)

const (
	// PluginName identifies the patcher in the lifecycle pipeline.
	PluginName = "workerstitch:build"

	// DefaultArtifactName is the worker artifact written next to the bundle.
	DefaultArtifactName = "_worker_exports.js"

	// DefaultBundle is the adapter output used when the deploy config does
	// not name one.
	DefaultBundle = ".svelte-kit/cloudflare/_worker.js"
)

// Status is the outcome of one patch attempt.
type Status string

const (
	// StatusPatched means the bundle was rewritten.
	StatusPatched Status = "patched"
	// StatusNoWorker means no worker module exists.
	StatusNoWorker Status = "no-worker"
	// StatusNoBundle means the adapter bundle was not found.
	StatusNoBundle Status = "no-bundle"
	// StatusAlreadyPatched means the bundle lacks a single default export
	// statement.
	StatusAlreadyPatched Status = "already-patched"
	// StatusEmpty means the worker exports nothing besides default.
	StatusEmpty Status = "empty"
)

type (
	// Classifier classifies a worker module on disk.
	Classifier interface {
		ClassifyFile(ctx context.Context, path string) (exports.Record, error)
	}

	// Bundler builds the standalone worker artifact.
	Bundler interface {
		Bundle(ctx context.Context, req bundler.Request) (*bundler.Result, error)
	}

	// Options configures the patcher.
	Options struct {
		// Worker is the worker module path, relative to the project root.
		Worker string
		// DeployConfig is an explicit deploy config path.
		DeployConfig string
		// DefaultBundle is used when the deploy config names no bundle.
		DefaultBundle string
		// ArtifactName is the worker artifact's file name.
		ArtifactName string
		// Bundler holds the resolution rules for the artifact.
		Bundler bundler.Options
	}

	// Result describes one patch attempt.
	Result struct {
		Status Status
		// Worker is the resolved worker path.
		Worker string
		// Bundle is the adapter bundle that was inspected.
		Bundle string
		// Artifact is the worker artifact path, set when patched.
		Artifact string
		// Externals are the import paths the artifact leaves to the host
		// runtime, such as "cloudflare:workers".
		Externals []string
		// Record is the worker's classification, when one was made.
		Record exports.Record
		// Scrubbed counts script_name entries removed from the deploy
		// config.
		Scrubbed int
	}

	// Patcher is the build-mode plugin. It runs in the post bucket, after
	// the adapter wrote its output.
	Patcher struct {
		classifier Classifier
		bundler    Bundler
		opts       Options
		logger     *log.Logger
		last       *Result
	}
)

// New creates a patcher. A nil logger discards output.
func New(c Classifier, b Bundler, opts Options, logger *log.Logger) *Patcher {
	if opts.ArtifactName == "" {
		opts.ArtifactName = DefaultArtifactName
	}
	if opts.DefaultBundle == "" {
		opts.DefaultBundle = DefaultBundle
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Patcher{classifier: c, bundler: b, opts: opts, logger: logger}
}

// Name implements lifecycle.Plugin.
func (p *Patcher) Name() string { return PluginName }

// Enforce implements lifecycle.Enforcer.
func (p *Patcher) Enforce() lifecycle.Enforce { return lifecycle.EnforcePost }

// CloseBundle implements lifecycle.CloseBundleHook.
func (p *Patcher) CloseBundle(ctx context.Context, out *lifecycle.BuildOutput) error {
	res, err := p.Patch(ctx, out.Root)
	if err != nil {
		return err
	}
	p.last = &res
	return nil
}

// Last returns the result of the most recent CloseBundle, or nil.
func (p *Patcher) Last() *Result { return p.last }

// Patch stitches the worker into the adapter bundle under root.
func (p *Patcher) Patch(ctx context.Context, root string) (Result, error) {
	w, err := project.ResolveWorker(root, p.opts.Worker)
	if err != nil {
		return Result{}, err
	}
	res := Result{Worker: w.Path}
	if !w.Exists {
		p.logger.Info("no worker module; bundle left as is", "path", w.Path)
		res.Status = StatusNoWorker
		return res, nil
	}

	loc := deployconfig.ResolveBundle(root, p.opts.DeployConfig, p.opts.DefaultBundle)
	if !loc.FromConfig() {
		p.logger.Debug("using default bundle path", "path", loc.Path, "reason", loc.Reason)
	}
	res.Bundle = loc.Path

	info, err := os.Stat(loc.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			p.logger.Warn("adapter bundle not found; nothing to patch", "path", loc.Path)
			res.Status = StatusNoBundle
			return res, nil
		}
		return res, fmt.Errorf("stat bundle: %w", err)
	}
	data, err := os.ReadFile(loc.Path)
	if err != nil {
		return res, fmt.Errorf("read bundle: %w", err)
	}
	src := string(data)

	ident, err := DefaultIdent(ctx, src)
	if err != nil {
		if !errors.Is(err, ErrNoDefaultExport) {
			return res, fmt.Errorf("inspect bundle: %w", err)
		}
		p.logger.Info("bundle already patched or not recognized; skipping", "path", loc.Path, "detail", err)
		res.Status = StatusAlreadyPatched
		return res, nil
	}

	rec, err := p.classifier.ClassifyFile(ctx, w.Path)
	if err != nil {
		return res, issue.NewErrorContext().
			WithOperation("classify worker exports").
			WithResource(w.Path).
			WithIssue(issue.ClassificationFailedId).
			Wrap(err).
			BuildError()
	}
	res.Record = rec
	if rec.Empty() {
		p.logger.Warn("worker exports nothing besides default; bundle left as is", "path", w.Path)
		res.Status = StatusEmpty
		return res, nil
	}

	dir := filepath.Dir(loc.Path)
	artifact := filepath.Join(dir, p.opts.ArtifactName)
	built, err := p.bundler.Bundle(ctx, bundler.Request{
		EntryPath: w.Path,
		Outfile:   artifact,
		Options:   p.opts.Bundler,
	})
	if err != nil {
		return res, issue.WrapWithIssue(err, "bundle worker artifact", issue.BundleFailedId)
	}
	res.Artifact = artifact
	for _, warning := range built.Warnings {
		p.logger.Warn("bundler warning in worker artifact", "path", artifact, "warning", warning)
	}
	if built.Metafile != nil {
		res.Externals = built.Metafile.ExternalImports()
		p.logger.Debug("worker artifact bundled", "path", artifact, "externals", res.Externals)
	}

	specifier := "./" + p.opts.ArtifactName
	block := ImportLine(specifier) + Replacement(rec, specifier, ident)
	if err := jssyntax.Validate(ctx, loc.Path, []byte(block)); err != nil {
		return res, issue.NewErrorContext().
			WithOperation("validate generated bundle code").
			WithResource(loc.Path).
			WithIssue(issue.GeneratedSyntaxId).
			Wrap(err).
			BuildError()
	}
	patched, err := PatchText(ctx, src, rec, specifier)
	if err != nil {
		return res, err
	}
	if err := os.WriteFile(loc.Path, []byte(patched), info.Mode().Perm()); err != nil {
		return res, fmt.Errorf("write bundle: %w", err)
	}
	res.Status = StatusPatched
	p.logger.Info("bundle patched", "path", loc.Path, "handlers", rec.Handlers, "classes", rec.Classes)

	res.Scrubbed = p.scrub(root)
	return res, nil
}

// scrub removes script_name from the on-disk deploy config. Failures are
// logged; the bundle is already patched.
func (p *Patcher) scrub(root string) int {
	path, err := deployconfig.Find(root, p.opts.DeployConfig)
	if err != nil {
		return 0
	}
	n, err := deployconfig.Scrub(path)
	if err != nil {
		p.logger.Warn("could not scrub script_name from deploy config", "path", path, "err", err)
		return 0
	}
	if n > 0 {
		p.logger.Info("removed script_name from durable object bindings", "path", path, "count", n)
	}
	return n
}
