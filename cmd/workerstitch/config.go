// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/workerstitch/workerstitch/internal/config"
	"github.com/workerstitch/workerstitch/internal/deployconfig"
	"github.com/workerstitch/workerstitch/internal/project"
)

// newConfigCommand creates the `workerstitch config` command tree.
func newConfigCommand(app *App, flags *rootFlagValues) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage workerstitch configuration",
		Long: `Manage workerstitch configuration.

Configuration is read from workerstitch.cue in the project root, or from
the file given with --config. Missing fields take their defaults.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(cmd.Context(), app, flags)
		},
	})

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create a default workerstitch.cue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(app, flags, force)
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing workerstitch.cue")
	cfgCmd.AddCommand(initCmd)

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := project.Root(flags.root)
			if err != nil {
				return err
			}
			path := flags.configPath
			if path == "" {
				path = config.FilePath(root)
			}
			fmt.Fprintln(app.stdout, path)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.open(cmd.Context(), flags)
			if err != nil {
				return err
			}
			fmt.Fprint(app.stdout, config.GenerateCUE(s.cfg))
			return nil
		},
	})

	return cfgCmd
}

func showConfig(ctx context.Context, app *App, flags *rootFlagValues) error {
	s, err := app.open(ctx, flags)
	if err != nil {
		return err
	}
	cfg := s.cfg
	key := func(k string) string { return KeyStyle.Render(k) }
	value := func(v any) string { return SuccessStyle.Render(fmt.Sprint(v)) }

	fmt.Fprintln(app.stdout, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(app.stdout)

	if s.cfgPath != "" {
		fmt.Fprintf(app.stdout, "%s: %s\n", key("Config file"), s.cfgPath)
	} else {
		fmt.Fprintf(app.stdout, "%s: %s\n", key("Config file"), SubtitleStyle.Render("(using defaults)"))
	}
	if path, findErr := deployconfig.Find(s.root, cfg.DeployConfig); findErr == nil {
		fmt.Fprintf(app.stdout, "%s: %s\n", key("Deploy config"), displayPath(s.root, path))
	} else {
		fmt.Fprintf(app.stdout, "%s: %s\n", key("Deploy config"), SubtitleStyle.Render("(none found)"))
	}
	fmt.Fprintln(app.stdout)

	fmt.Fprintf(app.stdout, "%s: %s\n", key("worker"), value(cfg.Worker))
	fmt.Fprintf(app.stdout, "%s: %s\n", key("generated_dir"), value(cfg.GeneratedDir))
	fmt.Fprintf(app.stdout, "%s: %s\n", key("deploy_config"), value(orAuto(cfg.DeployConfig)))
	fmt.Fprintf(app.stdout, "%s: %s\n", key("default_bundle"), value(cfg.DefaultBundle))
	fmt.Fprintf(app.stdout, "%s: %s\n", key("assets_binding"), value(cfg.AssetsBinding))
	fmt.Fprintf(app.stdout, "%s: %s\n", key("artifact_name"), value(cfg.ArtifactName))

	fmt.Fprintln(app.stdout)
	fmt.Fprintf(app.stdout, "%s:\n", key("bundler"))
	fmt.Fprintf(app.stdout, "  externals: %s\n", value(strings.Join(cfg.Bundler.Externals, ", ")))
	fmt.Fprintf(app.stdout, "  conditions: %s\n", value(strings.Join(cfg.Bundler.Conditions, ", ")))

	fmt.Fprintln(app.stdout)
	fmt.Fprintf(app.stdout, "%s:\n", key("build"))
	if cfg.Build.AdapterCommand == "" {
		fmt.Fprintf(app.stdout, "  adapter_command: %s\n", SubtitleStyle.Render("(none)"))
	} else {
		fmt.Fprintf(app.stdout, "  adapter_command: %s\n", value(cfg.Build.AdapterCommand))
	}

	fmt.Fprintln(app.stdout)
	fmt.Fprintf(app.stdout, "%s:\n", key("dev"))
	fmt.Fprintf(app.stdout, "  command: %s\n", value(cfg.Dev.Command))
	fmt.Fprintf(app.stdout, "  watch: %s\n", value(cfg.Dev.Watch))
	fmt.Fprintf(app.stdout, "  debounce: %s\n", value(cfg.Dev.Debounce))

	fmt.Fprintln(app.stdout)
	fmt.Fprintf(app.stdout, "%s:\n", key("log"))
	fmt.Fprintf(app.stdout, "  level: %s\n", value(cfg.Log.Level))

	return nil
}

func initConfig(app *App, flags *rootFlagValues, force bool) error {
	root, err := project.Root(flags.root)
	if err != nil {
		return err
	}
	path, created, err := config.CreateDefaultConfig(root, force)
	if err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}
	if !created {
		fmt.Fprintf(app.stdout, "%s %s already exists; use --force to overwrite\n", WarningStyle.Render("!"), path)
		return nil
	}
	fmt.Fprintf(app.stdout, "%s Created default configuration at %s\n", SuccessStyle.Render("✓"), path)
	return nil
}

func orAuto(s string) string {
	if s == "" {
		return "(auto-detect)"
	}
	return s
}
