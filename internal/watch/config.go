// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
)

// ErrInvalidWatchConfig is returned when a Config fails validation.
var ErrInvalidWatchConfig = errors.New("invalid watch config")

// SourcePatterns selects the module files a worker can import.
var SourcePatterns = []string{"**/*.{ts,mts,cts,tsx,js,mjs,cjs,jsx}"}

type (
	// Config holds the parameters for a Watcher.
	Config struct {
		// Patterns are doublestar globs selecting which files trigger the
		// callback. An empty slice watches every non-ignored file.
		Patterns []string

		// Ignore are extra doublestar globs merged with the default ignores.
		Ignore []string

		// Debounce is the quiet period after the last event before OnChange
		// fires. Zero or negative values fall back to defaultDebounce.
		Debounce time.Duration

		// BaseDir is the root directory to watch. Empty means the working
		// directory.
		BaseDir string

		// OnChange receives the deduplicated changed paths, relative to
		// BaseDir.
		OnChange func(ctx context.Context, changed []string) error

		// Logger receives skip and error diagnostics. nil uses log.Default().
		Logger *log.Logger
	}

	// InvalidWatchConfigError collects every field that failed validation.
	InvalidWatchConfigError struct {
		FieldErrors []error
	}
)

func (e *InvalidWatchConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%s (%d errors): %s", ErrInvalidWatchConfig, len(e.FieldErrors), strings.Join(msgs, "; "))
}

func (e *InvalidWatchConfigError) Unwrap() error { return ErrInvalidWatchConfig }

// Validate checks every pattern and the base directory.
func (c Config) Validate() error {
	var errs []error
	errs = append(errs, patternErrors(c.Patterns, "watch")...)
	errs = append(errs, patternErrors(c.Ignore, "ignore")...)
	if c.BaseDir != "" && strings.TrimSpace(c.BaseDir) == "" {
		errs = append(errs, errors.New("base directory is blank"))
	}
	if len(errs) > 0 {
		return &InvalidWatchConfigError{FieldErrors: errs}
	}
	return nil
}

func patternErrors(patterns []string, label string) []error {
	var errs []error
	for _, pat := range patterns {
		if strings.TrimSpace(pat) == "" {
			errs = append(errs, fmt.Errorf("empty %s pattern", label))
			continue
		}
		if !doublestar.ValidatePattern(pat) {
			errs = append(errs, fmt.Errorf("invalid %s pattern %q", label, pat))
		}
	}
	return errs
}
