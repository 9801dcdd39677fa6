// SPDX-License-Identifier: MPL-2.0

// Package devruntime is the local runtime provider. At its configuration
// phase it snapshots the resolved runtime config into a JSON file next to the
// generated entry, then starts the configured dev command pointing at it.
package devruntime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/workerstitch/workerstitch/internal/deployconfig"
	"github.com/workerstitch/workerstitch/internal/devserver"
	"github.com/workerstitch/workerstitch/internal/lifecycle"
	"github.com/workerstitch/workerstitch/internal/shell"
)

const (
	// PluginName identifies the provider in the lifecycle pipeline.
	PluginName = "workerstitch:runtime"

	// ConfigName is the runtime config file written to the generated
	// directory.
	ConfigName = "wrangler.dev.json"

	// EnvConfig carries the runtime config path to the dev command.
	EnvConfig = "WORKERSTITCH_DEV_CONFIG"
)

var (
	// ErrNotConfigured is returned by Start before ConfigResolved ran.
	ErrNotConfigured = errors.New("runtime config has not been written")

	// ErrNoCommand is returned by Start when no dev command is configured.
	ErrNoCommand = errors.New("no dev command configured")
)

type (
	// Options configures the provider.
	Options struct {
		// GeneratedDir holds generated artifacts, relative to the root.
		GeneratedDir string
		// Command is the shell command line that starts the runtime.
		Command string
	}

	// Provider is the runtime provider plugin. It stays in the normal
	// bucket and reads whatever entry earlier plugins published.
	Provider struct {
		runner *shell.Runner
		opts   Options
		logger *log.Logger

		root       string
		configPath string
	}
)

// New creates a provider. A nil logger discards output.
func New(runner *shell.Runner, opts Options, logger *log.Logger) *Provider {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Provider{runner: runner, opts: opts, logger: logger}
}

// Name implements lifecycle.Plugin.
func (p *Provider) Name() string { return PluginName }

// ConfigResolved writes the runtime config snapshot.
func (p *Provider) ConfigResolved(_ context.Context, cfg *lifecycle.ResolvedConfig) error {
	if cfg.Mode != lifecycle.ModeDev {
		return nil
	}

	dir := devserver.GeneratedDir(cfg.Root, p.opts.GeneratedDir)
	path := filepath.Join(dir, ConfigName)
	data, err := json.MarshalIndent(Snapshot(cfg.Runtime, cfg.Root, dir), "", "  ")
	if err != nil {
		return fmt.Errorf("encode runtime config: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create generated directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write runtime config: %w", err)
	}

	p.root = cfg.Root
	p.configPath = path
	p.logger.Debug("runtime config written", "path", path, "main", cfg.Runtime.Main)
	return nil
}

// ConfigPath returns the written runtime config, or "" before
// ConfigResolved.
func (p *Provider) ConfigPath() string { return p.configPath }

// Start runs the dev command until it exits or ctx is canceled.
func (p *Provider) Start(ctx context.Context, streams shell.IO) error {
	if p.configPath == "" {
		return ErrNotConfigured
	}
	if p.opts.Command == "" {
		return ErrNoCommand
	}
	p.logger.Info("starting runtime", "command", p.opts.Command)
	return p.runner.Run(ctx, shell.Command{
		Name:   "dev command",
		Script: p.opts.Command,
		Dir:    p.root,
		Env:    map[string]string{EnvConfig: p.configPath},
		IO:     streams,
	})
}

// Snapshot renders rt for a config file living in dir. Paths in the deploy
// config are relative to that config's own directory (root when unknown);
// they are rebased onto dir.
func Snapshot(rt *deployconfig.Config, root, dir string) map[string]any {
	base := root
	if rt.Path != "" {
		base = filepath.Dir(rt.Path)
	}

	m := rt.ToMap()
	if rt.Main != "" {
		m["main"] = rebase(rt.Main, base, dir)
	}
	if rt.Assets != nil && rt.Assets.Directory != "" {
		if assets, ok := m["assets"].(map[string]any); ok {
			assets["directory"] = rebase(rt.Assets.Directory, base, dir)
		}
	}
	return m
}

func rebase(p, base, dir string) string {
	abs := filepath.FromSlash(p)
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(base, abs)
	}
	rel, err := filepath.Rel(dir, abs)
	if err != nil {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(rel)
}
