// SPDX-License-Identifier: MPL-2.0

// Package shell runs configured command lines (the adapter build and the
// local runtime) with the embedded POSIX shell interpreter, so they behave
// the same on every platform.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// ErrEmptyScript is returned for a command line with no content.
var ErrEmptyScript = errors.New("empty command")

type (
	// IO holds the standard streams of a command. Nil streams are discarded
	// (or empty, for Stdin).
	IO struct {
		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
	}

	// Command is one shell command line to run.
	Command struct {
		// Name labels the command in logs and errors.
		Name string
		// Script is the shell source.
		Script string
		// Dir is the working directory.
		Dir string
		// Env is added on top of the inherited process environment.
		Env map[string]string
		// IO are the command's streams.
		IO IO
	}

	// ExitError reports a command that finished with a non-zero status.
	ExitError struct {
		Name string
		Code int
	}

	// Runner executes commands through the interpreter.
	Runner struct {
		logger *log.Logger
	}
)

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Name, e.Code)
}

// New creates a runner. A nil logger discards output.
func New(logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Runner{logger: logger}
}

// Validate parses script without running it.
func Validate(script string) error {
	if strings.TrimSpace(script) == "" {
		return ErrEmptyScript
	}
	if _, err := syntax.NewParser().Parse(strings.NewReader(script), "command"); err != nil {
		return fmt.Errorf("parse command: %w", err)
	}
	return nil
}

// Run executes cmd and waits for it. A non-zero exit is an *ExitError.
// Canceling ctx stops the command.
func (r *Runner) Run(ctx context.Context, cmd Command) error {
	if strings.TrimSpace(cmd.Script) == "" {
		return ErrEmptyScript
	}
	name := cmd.Name
	if name == "" {
		name = "command"
	}

	prog, err := syntax.NewParser().Parse(strings.NewReader(cmd.Script), name)
	if err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}

	opts := []interp.RunnerOption{
		interp.Env(expand.ListEnviron(environ(cmd.Env)...)),
		interp.StdIO(cmd.IO.Stdin, orDiscard(cmd.IO.Stdout), orDiscard(cmd.IO.Stderr)),
		interp.ExecHandlers(r.execHandler),
	}
	if cmd.Dir != "" {
		opts = append(opts, interp.Dir(cmd.Dir))
	}

	runner, err := interp.New(opts...)
	if err != nil {
		return fmt.Errorf("create interpreter: %w", err)
	}

	r.logger.Debug("running command", "name", name, "dir", cmd.Dir, "script", cmd.Script)
	if err := runner.Run(ctx, prog); err != nil {
		var status interp.ExitStatus
		if errors.As(err, &status) {
			return &ExitError{Name: name, Code: int(status)}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%s failed: %w", name, err)
	}
	return nil
}

// execHandler logs external programs before handing them to the default
// handler.
func (r *Runner) execHandler(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
	return func(ctx context.Context, args []string) error {
		if len(args) > 0 {
			r.logger.Debug("exec", "program", args[0], "args", args[1:])
		}
		return next(ctx, args)
	}
}

// environ merges extra over the process environment. Keys are emitted in
// sorted order so the result is stable.
func environ(extra map[string]string) []string {
	env := os.Environ()
	if len(extra) == 0 {
		return env
	}
	out := make([]string, 0, len(env)+len(extra))
	for _, kv := range env {
		key, _, _ := strings.Cut(kv, "=")
		if _, overridden := extra[key]; overridden {
			continue
		}
		out = append(out, kv)
	}
	for _, key := range slices.Sorted(maps.Keys(extra)) {
		out = append(out, key+"="+extra[key])
	}
	return out
}

func orDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}
