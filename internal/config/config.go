// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"

	"github.com/workerstitch/workerstitch/internal/issue"
)

const (
	// AppName is the application name.
	AppName = "workerstitch"
	// ConfigFileName is the project config file name (without extension).
	ConfigFileName = "workerstitch"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment overrides, e.g. WORKERSTITCH_DEV_WATCH.
	EnvPrefix = "WORKERSTITCH"

	maxFileSize = 1 << 20
)

//go:embed config_schema.cue
var configSchema string

// FilePath returns the project config location under root.
func FilePath(root string) string {
	return filepath.Join(root, ConfigFileName+"."+ConfigFileExt)
}

// loadWithOptions performs option-driven config loading. It returns the
// config and the file it came from ("" when only defaults and environment
// applied).
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolvedPath := ""
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithIssue(issue.ConfigLoadFailedId).
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Run 'workerstitch config init' to create a project config").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		resolvedPath = opts.ConfigFilePath
	} else if p := FilePath(opts.Root); fileExists(p) {
		resolvedPath = p
	}

	if resolvedPath != "" {
		if err := loadCUEIntoViper(v, resolvedPath); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithIssue(issue.ConfigLoadFailedId).
				WithResource(resolvedPath).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithSuggestion("Run 'workerstitch config dump' to see every supported key").
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithIssue(issue.ConfigLoadFailedId).
			WithSuggestion("Check WORKERSTITCH_* environment variables for typos").
			Wrap(err).
			BuildError()
	}
	return &cfg, resolvedPath, nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("worker", d.Worker)
	v.SetDefault("generated_dir", d.GeneratedDir)
	v.SetDefault("deploy_config", d.DeployConfig)
	v.SetDefault("default_bundle", d.DefaultBundle)
	v.SetDefault("assets_binding", d.AssetsBinding)
	v.SetDefault("artifact_name", d.ArtifactName)
	v.SetDefault("bundler.externals", d.Bundler.Externals)
	v.SetDefault("bundler.conditions", d.Bundler.Conditions)
	v.SetDefault("build.adapter_command", d.Build.AdapterCommand)
	v.SetDefault("dev.command", d.Dev.Command)
	v.SetDefault("dev.watch", d.Dev.Watch)
	v.SetDefault("dev.debounce", d.Dev.Debounce.String())
	v.SetDefault("log.level", string(d.Log.Level))
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := checkFileSize(data, maxFileSize, path); err != nil {
		return err
	}

	ctx := cuecontext.New()
	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return formatCUEError(userValue.Err(), path)
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return formatCUEError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return formatCUEError(err, path)
	}

	// Merging keeps defaults for absent keys and lets env overrides win.
	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes a default workerstitch.cue under root. An
// existing file is kept unless force is set. It returns the path and whether
// a file was written.
func CreateDefaultConfig(root string, force bool) (string, bool, error) {
	path := FilePath(root)
	if _, err := os.Stat(path); err == nil && !force {
		return path, false, nil
	}
	if err := os.WriteFile(path, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return "", false, fmt.Errorf("failed to write config file: %w", err)
	}
	return path, true, nil
}

// GenerateCUE generates a CUE representation of the configuration
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// workerstitch project configuration\n\n")
	fmt.Fprintf(&sb, "worker:         %q\n", cfg.Worker)
	fmt.Fprintf(&sb, "generated_dir:  %q\n", cfg.GeneratedDir)
	if cfg.DeployConfig != "" {
		fmt.Fprintf(&sb, "deploy_config:  %q\n", cfg.DeployConfig)
	}
	fmt.Fprintf(&sb, "default_bundle: %q\n", cfg.DefaultBundle)
	fmt.Fprintf(&sb, "assets_binding: %q\n", cfg.AssetsBinding)
	fmt.Fprintf(&sb, "artifact_name:  %q\n", cfg.ArtifactName)

	sb.WriteString("\nbundler: {\n")
	fmt.Fprintf(&sb, "\texternals: %s\n", cueList(cfg.Bundler.Externals))
	fmt.Fprintf(&sb, "\tconditions: %s\n", cueList(cfg.Bundler.Conditions))
	sb.WriteString("}\n")

	sb.WriteString("\nbuild: {\n")
	fmt.Fprintf(&sb, "\tadapter_command: %q\n", cfg.Build.AdapterCommand)
	sb.WriteString("}\n")

	sb.WriteString("\ndev: {\n")
	fmt.Fprintf(&sb, "\tcommand:  %q\n", cfg.Dev.Command)
	fmt.Fprintf(&sb, "\twatch:    %v\n", cfg.Dev.Watch)
	fmt.Fprintf(&sb, "\tdebounce: %q\n", cfg.Dev.Debounce.String())
	sb.WriteString("}\n")

	sb.WriteString("\nlog: {\n")
	fmt.Fprintf(&sb, "\tlevel: %q\n", cfg.Log.Level)
	sb.WriteString("}\n")

	return sb.String()
}

func cueList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
