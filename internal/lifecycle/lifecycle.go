// SPDX-License-Identifier: MPL-2.0

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/workerstitch/workerstitch/internal/deployconfig"
)

// Enforce places a plugin in an ordering bucket.
type Enforce int

const (
	// EnforcePre runs before normal plugins.
	EnforcePre Enforce = iota - 1
	// EnforceNormal is the default bucket.
	EnforceNormal
	// EnforcePost runs after normal plugins.
	EnforcePost
)

// Mode is the command the pipeline serves.
type Mode string

const (
	// ModeDev is the live development server.
	ModeDev Mode = "dev"
	// ModeBuild is the one-shot production build.
	ModeBuild Mode = "build"
)

// Phase names a hook phase.
type Phase string

const (
	// PhaseConfigResolved runs once the runtime configuration is known.
	PhaseConfigResolved Phase = "configResolved"
	// PhaseCloseBundle runs after the adapter has written its output.
	PhaseCloseBundle Phase = "closeBundle"
)

var (
	// ErrDuplicatePlugin is returned when two plugins share a name.
	ErrDuplicatePlugin = errors.New("duplicate plugin name")

	// ErrUnknownPlugin is returned when After names an unregistered plugin.
	ErrUnknownPlugin = errors.New("unknown plugin")

	// ErrPhaseRepeated is returned when a phase is run a second time.
	ErrPhaseRepeated = errors.New("phase already ran")
)

type (
	// Plugin is a named participant in the pipeline. It opts into ordering
	// and phases by implementing the interfaces below.
	Plugin interface {
		Name() string
	}

	// Enforcer places a plugin in a bucket other than EnforceNormal.
	Enforcer interface {
		Enforce() Enforce
	}

	// Follower names plugins that must run before it within every phase.
	Follower interface {
		After() []string
	}

	// ConfigResolvedHook observes and adjusts the resolved configuration.
	ConfigResolvedHook interface {
		ConfigResolved(ctx context.Context, cfg *ResolvedConfig) error
	}

	// CloseBundleHook runs after the production bundle was written.
	CloseBundleHook interface {
		CloseBundle(ctx context.Context, out *BuildOutput) error
	}

	// ResolvedConfig is shared by every plugin of a phase. Plugins adjust
	// Runtime in place so later plugins see the changes.
	ResolvedConfig struct {
		// Root is the absolute project root.
		Root string
		// Mode is the command being served.
		Mode Mode
		// Runtime is the resolved deploy configuration. It is never nil.
		Runtime *deployconfig.Config
	}

	// BuildOutput describes a finished adapter build.
	BuildOutput struct {
		// Root is the absolute project root.
		Root string
	}

	// HookError wraps a failure from one plugin hook.
	HookError struct {
		Plugin string
		Phase  Phase
		Err    error
	}

	// Pipeline runs plugin hooks in dependency order.
	Pipeline struct {
		plugins []Plugin
		logger  *log.Logger
		ran     map[Phase]bool
	}
)

func (e *HookError) Error() string {
	return fmt.Sprintf("plugin %s %s: %v", e.Plugin, e.Phase, e.Err)
}

func (e *HookError) Unwrap() error { return e.Err }

// New creates a pipeline for plugins. A nil logger discards output.
func New(logger *log.Logger, plugins ...Plugin) *Pipeline {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Pipeline{
		plugins: plugins,
		logger:  logger,
		ran:     make(map[Phase]bool),
	}
}

// EnforceOf returns the bucket of p.
func EnforceOf(p Plugin) Enforce {
	if e, ok := p.(Enforcer); ok {
		return e.Enforce()
	}
	return EnforceNormal
}

// Order returns the plugins in execution order.
func (p *Pipeline) Order() ([]Plugin, error) {
	byName := make(map[string]Plugin, len(p.plugins))
	g := newGraph()
	for _, pl := range p.plugins {
		name := pl.Name()
		if _, dup := byName[name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePlugin, name)
		}
		byName[name] = pl
		g.addNode(name)
	}

	for _, a := range p.plugins {
		for _, b := range p.plugins {
			if EnforceOf(a) < EnforceOf(b) {
				g.addEdge(a.Name(), b.Name())
			}
		}
		f, ok := a.(Follower)
		if !ok {
			continue
		}
		for _, dep := range f.After() {
			if _, known := byName[dep]; !known {
				return nil, fmt.Errorf("%w %q in After of %s", ErrUnknownPlugin, dep, a.Name())
			}
			g.addEdge(dep, a.Name())
		}
	}

	names, err := g.sort()
	if err != nil {
		return nil, err
	}
	ordered := make([]Plugin, len(names))
	for i, name := range names {
		ordered[i] = byName[name]
	}
	return ordered, nil
}

// RunConfigResolved runs every ConfigResolved hook in order.
func (p *Pipeline) RunConfigResolved(ctx context.Context, cfg *ResolvedConfig) error {
	if cfg == nil || cfg.Runtime == nil {
		return errors.New("resolved config needs a runtime config")
	}
	return p.run(ctx, PhaseConfigResolved, func(pl Plugin) (bool, error) {
		h, ok := pl.(ConfigResolvedHook)
		if !ok {
			return false, nil
		}
		return true, h.ConfigResolved(ctx, cfg)
	})
}

// RunCloseBundle runs every CloseBundle hook in order.
func (p *Pipeline) RunCloseBundle(ctx context.Context, out *BuildOutput) error {
	return p.run(ctx, PhaseCloseBundle, func(pl Plugin) (bool, error) {
		h, ok := pl.(CloseBundleHook)
		if !ok {
			return false, nil
		}
		return true, h.CloseBundle(ctx, out)
	})
}

func (p *Pipeline) run(ctx context.Context, phase Phase, call func(Plugin) (bool, error)) error {
	if p.ran[phase] {
		return fmt.Errorf("%w: %s", ErrPhaseRepeated, phase)
	}
	p.ran[phase] = true

	ordered, err := p.Order()
	if err != nil {
		return err
	}
	for _, pl := range ordered {
		if err := ctx.Err(); err != nil {
			return err
		}
		called, err := call(pl)
		if !called {
			continue
		}
		p.logger.Debug("hook finished", "plugin", pl.Name(), "phase", phase)
		if err != nil {
			return &HookError{Plugin: pl.Name(), Phase: phase, Err: err}
		}
	}
	return nil
}
