// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/workerstitch/workerstitch/internal/bundler"
)

const (
	// LogLevelDebug logs every step.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo logs skips and results.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn logs only problems.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError logs only failures.
	LogLevelError LogLevel = "error"

	// DefaultWorker is the worker module path.
	DefaultWorker = "src/worker.ts"
	// DefaultGeneratedDir holds generated artifacts.
	DefaultGeneratedDir = ".workerstitch"
	// DefaultBundle is the adapter output path.
	DefaultBundle = ".svelte-kit/cloudflare/_worker.js"
	// DefaultAssetsBinding is the static-asset binding name.
	DefaultAssetsBinding = "ASSETS"
	// DefaultArtifactName is the worker artifact file name.
	DefaultArtifactName = "_worker_exports.js"
	// DefaultDevCommand starts the local runtime.
	DefaultDevCommand = `wrangler dev --config "$WORKERSTITCH_DEV_CONFIG"`
	// DefaultDebounce groups bursts of file events in watch mode.
	DefaultDebounce = 150 * time.Millisecond
)

var (
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// LogLevel is the minimum level of log output.
	LogLevel string

	// InvalidLogLevelError is returned when a LogLevel value is not recognized.
	// It wraps ErrInvalidLogLevel for errors.Is() compatibility.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// InvalidConfigError collects field-level validation errors.
	// It wraps ErrInvalidConfig for errors.Is() compatibility.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the workerstitch settings for one project.
	Config struct {
		// Worker is the user's worker module, relative to the project root.
		Worker string `json:"worker" mapstructure:"worker"`
		// GeneratedDir holds the dev entry and runtime config.
		GeneratedDir string `json:"generated_dir" mapstructure:"generated_dir"`
		// DeployConfig forces a deploy config file. Empty means auto-detect.
		DeployConfig string `json:"deploy_config" mapstructure:"deploy_config"`
		// DefaultBundle is the adapter output used without a deploy config.
		DefaultBundle string `json:"default_bundle" mapstructure:"default_bundle"`
		// AssetsBinding names the static-asset binding.
		AssetsBinding string `json:"assets_binding" mapstructure:"assets_binding"`
		// ArtifactName is the worker artifact's file name.
		ArtifactName string `json:"artifact_name" mapstructure:"artifact_name"`
		// Bundler configures module resolution.
		Bundler BundlerConfig `json:"bundler" mapstructure:"bundler"`
		// Build configures the build command.
		Build BuildConfig `json:"build" mapstructure:"build"`
		// Dev configures the dev command.
		Dev DevConfig `json:"dev" mapstructure:"dev"`
		// Log configures log output.
		Log LogConfig `json:"log" mapstructure:"log"`
	}

	// BundlerConfig holds the module resolution rules.
	BundlerConfig struct {
		Externals  []string `json:"externals" mapstructure:"externals"`
		Conditions []string `json:"conditions" mapstructure:"conditions"`
	}

	// BuildConfig configures `workerstitch build`.
	BuildConfig struct {
		// AdapterCommand produces the adapter bundle. Empty skips the step.
		AdapterCommand string `json:"adapter_command" mapstructure:"adapter_command"`
	}

	// DevConfig configures `workerstitch dev`.
	DevConfig struct {
		// Command starts the local runtime.
		Command string `json:"command" mapstructure:"command"`
		// Watch regenerates the dev entry when the worker changes.
		Watch bool `json:"watch" mapstructure:"watch"`
		// Debounce groups file events.
		Debounce time.Duration `json:"debounce" mapstructure:"debounce"`
	}

	// LogConfig configures log output.
	LogConfig struct {
		Level LogLevel `json:"level" mapstructure:"level"`
	}
)

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	opts := bundler.DefaultOptions()
	return &Config{
		Worker:        DefaultWorker,
		GeneratedDir:  DefaultGeneratedDir,
		DefaultBundle: DefaultBundle,
		AssetsBinding: DefaultAssetsBinding,
		ArtifactName:  DefaultArtifactName,
		Bundler: BundlerConfig{
			Externals:  opts.Externals,
			Conditions: opts.Conditions,
		},
		Dev: DevConfig{
			Command:  DefaultDevCommand,
			Debounce: DefaultDebounce,
		},
		Log: LogConfig{Level: LogLevelInfo},
	}
}

// BundlerOptions converts the settings into bundler options.
func (c *Config) BundlerOptions() bundler.Options {
	return bundler.Options{
		Externals:  c.Bundler.Externals,
		Conditions: c.Bundler.Conditions,
	}
}

func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

// Unwrap returns ErrInvalidLogLevel for errors.Is() compatibility.
func (e *InvalidLogLevelError) Unwrap() error { return ErrInvalidLogLevel }

// Validate returns nil if the LogLevel is one of the defined levels.
func (l LogLevel) Validate() error {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return nil
	default:
		return &InvalidLogLevelError{Value: l}
	}
}

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string { return string(l) }

func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig followed by the field errors, so both the
// sentinel and field-level errors match errors.Is().
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

// Validate checks constraints the schema cannot see, such as values that
// arrived through environment variables.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Log.Level.Validate(); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(c.Worker) == "" {
		errs = append(errs, errors.New("worker must not be empty"))
	}
	if strings.TrimSpace(c.GeneratedDir) == "" {
		errs = append(errs, errors.New("generated_dir must not be empty"))
	}
	if strings.ContainsAny(c.ArtifactName, `/\`) || c.ArtifactName == "" {
		errs = append(errs, fmt.Errorf("artifact_name %q must be a plain file name", c.ArtifactName))
	}
	if c.Dev.Debounce < 0 {
		errs = append(errs, fmt.Errorf("dev.debounce %s must not be negative", c.Dev.Debounce))
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}
