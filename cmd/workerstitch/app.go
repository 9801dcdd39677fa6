// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/workerstitch/workerstitch/internal/bundler"
	"github.com/workerstitch/workerstitch/internal/config"
	"github.com/workerstitch/workerstitch/internal/exports"
	"github.com/workerstitch/workerstitch/internal/project"
	"github.com/workerstitch/workerstitch/internal/shell"
)

type (
	// ConfigProvider loads configuration and reports the file it came from.
	ConfigProvider interface {
		LoadWithSource(ctx context.Context, opts config.LoadOptions) (*config.Config, string, error)
	}

	// Bundler builds worker modules for classification and for the build
	// artifact.
	Bundler interface {
		Bundle(ctx context.Context, req bundler.Request) (*bundler.Result, error)
	}

	// App wires CLI services and shared dependencies. Every command handler
	// receives an App and delegates through it.
	App struct {
		Config  ConfigProvider
		Bundler Bundler
		stdin   io.Reader
		stdout  io.Writer
		stderr  io.Writer
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config  ConfigProvider
		Bundler Bundler
		Stdin   io.Reader
		Stdout  io.Writer
		Stderr  io.Writer
	}

	// rootFlagValues holds the persistent flags shared by every command.
	rootFlagValues struct {
		root       string
		configPath string
		verbose    bool
	}

	// session is one command invocation's resolved project.
	session struct {
		root    string
		cfg     *config.Config
		cfgPath string
		logger  *log.Logger
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdin == nil {
		deps.Stdin = os.Stdin
	}
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Bundler == nil {
		deps.Bundler = bundler.New()
	}
	return &App{
		Config:  deps.Config,
		Bundler: deps.Bundler,
		stdin:   deps.Stdin,
		stdout:  deps.Stdout,
		stderr:  deps.Stderr,
	}
}

// open resolves the project root and loads its configuration.
func (a *App) open(ctx context.Context, flags *rootFlagValues) (*session, error) {
	root, err := project.Root(flags.root)
	if err != nil {
		return nil, err
	}
	cfg, src, err := a.Config.LoadWithSource(ctx, config.LoadOptions{
		ConfigFilePath: flags.configPath,
		Root:           root,
	})
	if err != nil {
		return nil, err
	}

	level := cfg.Log.Level
	if flags.verbose {
		level = config.LogLevelDebug
	}
	logger := newLogger(a.stderr, level)
	logger.Debug("configuration loaded", "root", root, "source", orDefaults(src))

	return &session{root: root, cfg: cfg, cfgPath: src, logger: logger}, nil
}

func (s *session) classifier(b Bundler) *exports.Classifier {
	return exports.NewClassifier(b, s.cfg.BundlerOptions(), s.logger.WithPrefix("classify"))
}

func (s *session) runner() *shell.Runner {
	return shell.New(s.logger.WithPrefix("shell"))
}

func (a *App) streams() shell.IO {
	return shell.IO{Stdin: a.stdin, Stdout: a.stdout, Stderr: a.stderr}
}

// newLogger creates the CLI logger. Unknown levels fall back to info.
func newLogger(w io.Writer, level config.LogLevel) *log.Logger {
	lvl, err := log.ParseLevel(string(level))
	if err != nil {
		lvl = log.InfoLevel
	}
	return log.NewWithOptions(w, log.Options{
		Prefix: "workerstitch",
		Level:  lvl,
	})
}

func orDefaults(path string) string {
	if path == "" {
		return "(defaults)"
	}
	return path
}
