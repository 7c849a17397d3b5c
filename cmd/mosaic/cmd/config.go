package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mosaicsearch/mosaic/configs"
	"github.com/mosaicsearch/mosaic/internal/config"
	"github.com/mosaicsearch/mosaic/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage the user/global configuration file.

User configuration holds machine-specific settings that apply to every
library on this machine: embedding provider endpoints, cache backend,
worker counts.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/mosaic/config.yaml)
  3. Library config (.mosaic.yaml)
  4. Environment variables (MOSAIC_*)`,
		Example: `  # Create user config from template
  mosaic config init

  # Show effective configuration (merged from all sources)
  mosaic config show

  # Print user config file path
  mosaic config path`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create user configuration file",
		Long: `Create the user configuration file from a template.

The file is created at ~/.config/mosaic/config.yaml
(or $XDG_CONFIG_HOME/mosaic/config.yaml if XDG_CONFIG_HOME is set).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long: `Show the effective configuration after merging all sources:
defaults, user config, library config, and environment variables.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print user config file path",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), config.GetUserConfigPath())
			return nil
		},
	}
}

func runConfigInit(cmd *cobra.Command, force bool) error {
	out := output.New(cmd.OutOrStdout())

	configPath := config.GetUserConfigPath()
	configDir := config.GetUserConfigDir()

	if config.UserConfigExists() && !force {
		out.Warning("User configuration already exists")
		out.Detail("Location: %s", configPath)
		out.Newline()
		out.Info("Use --force to overwrite with the template")
		return nil
	}

	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", configDir, err)
	}
	if err := os.WriteFile(configPath, []byte(configs.UserConfigTemplate), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out.Success("Created user configuration")
	out.Detail("Location: %s", configPath)
	out.Newline()
	out.Info("Next steps:")
	out.Detail("1. Edit the file to set your embedding provider")
	out.Detail("2. Run 'mosaic config show' to verify")

	return nil
}

func runConfigShow(cmd *cobra.Command, jsonOutput bool) error {
	root, err := config.FindLibraryRoot(".")
	if err != nil {
		if root, err = os.Getwd(); err != nil {
			return err
		}
	}

	cfg, err := config.Load(root)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
