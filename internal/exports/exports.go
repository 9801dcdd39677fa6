// SPDX-License-Identifier: MPL-2.0

package exports

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/workerstitch/workerstitch/internal/bundler"
)

// DefaultExport is the export name that is never classified.
const DefaultExport = "default"

// Recognized lifecycle handler names, in the order the runtime documents them.
const (
	HandlerFetch      = "fetch"
	HandlerScheduled  = "scheduled"
	HandlerQueue      = "queue"
	HandlerEmail      = "email"
	HandlerTail       = "tail"
	HandlerTrace      = "trace"
	HandlerTailStream = "tailStream"
)

var recognizedHandlers = []string{
	HandlerFetch,
	HandlerScheduled,
	HandlerQueue,
	HandlerEmail,
	HandlerTail,
	HandlerTrace,
	HandlerTailStream,
}

type (
	// Record is the result of one classification pass. It is built once and
	// never mutated; callers that need to change it should copy the slices.
	Record struct {
		// Handlers are the exported names found in the recognized handler set,
		// in first-seen order.
		Handlers []string `json:"handlers"`
		// Classes are all other exported names except "default", in export
		// table order. No runtime class semantics are implied.
		Classes []string `json:"classes"`
	}

	// Bundler is the subset of the bundler used for export introspection.
	Bundler interface {
		Bundle(ctx context.Context, req bundler.Request) (*bundler.Result, error)
	}

	// Classifier runs a worker module through the bundler and classifies the
	// export names reported in the bundler's metadata.
	Classifier struct {
		bundler Bundler
		opts    bundler.Options
		logger  *log.Logger
	}
)

// RecognizedHandlers returns a copy of the recognized handler name set.
func RecognizedHandlers() []string {
	return slices.Clone(recognizedHandlers)
}

// IsHandler reports whether name is a recognized lifecycle handler.
func IsHandler(name string) bool {
	return slices.Contains(recognizedHandlers, name)
}

// Classify partitions export names into handlers and classes. "default" is
// dropped and duplicate names are kept only at their first position.
func Classify(names []string) Record {
	rec := Record{Handlers: []string{}, Classes: []string{}}
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if name == DefaultExport || name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		if IsHandler(name) {
			rec.Handlers = append(rec.Handlers, name)
		} else {
			rec.Classes = append(rec.Classes, name)
		}
	}
	return rec
}

// Empty reports whether the record contributes nothing.
func (r Record) Empty() bool {
	return len(r.Handlers) == 0 && len(r.Classes) == 0
}

// HasHandler reports whether name was classified as a handler.
func (r Record) HasHandler(name string) bool {
	return slices.Contains(r.Handlers, name)
}

// String renders the record for diagnostics.
func (r Record) String() string {
	return fmt.Sprintf("handlers=%v classes=%v", r.Handlers, r.Classes)
}

// NewClassifier creates a Classifier backed by b. The bundler options carry
// the externalization and condition rules shared with the build artifact.
// Bundler warnings go to logger; a nil logger discards them.
func NewClassifier(b Bundler, opts bundler.Options, logger *log.Logger) *Classifier {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Classifier{bundler: b, opts: opts, logger: logger}
}

func (c *Classifier) warn(entry string, res *bundler.Result) {
	for _, w := range res.Warnings {
		c.logger.Warn("bundler warning during classification", "entry", entry, "warning", w)
	}
}

// ClassifyFile classifies the module at path. Bundling failures are returned
// unchanged so callers can decide whether to abort.
func (c *Classifier) ClassifyFile(ctx context.Context, path string) (Record, error) {
	res, err := c.bundler.Bundle(ctx, bundler.Request{
		EntryPath: path,
		Options:   c.opts,
	})
	if err != nil {
		return Record{}, err
	}
	c.warn(path, res)
	return Classify(res.Exports), nil
}

// ClassifySource classifies module source text. resolveDir anchors relative
// imports; sourceName selects the loader by extension (".ts", ".js", ...).
func (c *Classifier) ClassifySource(ctx context.Context, source, resolveDir, sourceName string) (Record, error) {
	if resolveDir == "" {
		resolveDir = "."
	}
	abs, err := filepath.Abs(resolveDir)
	if err != nil {
		return Record{}, fmt.Errorf("resolve import directory: %w", err)
	}
	res, err := c.bundler.Bundle(ctx, bundler.Request{
		Source:     source,
		SourceName: sourceName,
		ResolveDir: abs,
		Options:    c.opts,
	})
	if err != nil {
		return Record{}, err
	}
	c.warn(sourceName, res)
	return Classify(res.Exports), nil
}
