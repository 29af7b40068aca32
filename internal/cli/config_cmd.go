package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rshade/tablesync/internal/config"
)

// ErrConfigExists is returned by config init when the target file exists.
var ErrConfigExists = errors.New("configuration file already exists, use --force to overwrite")

// NewConfigInitCmd creates the config init command for writing a default
// configuration file.
func NewConfigInitCmd() *cobra.Command {
	var (
		force   bool
		project bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration file with default values",
		Long: `Creates a new configuration file with default values.

By default the global file ($TABLESYNC_HOME/config.yaml or ~/.tablesync/config.yaml)
is written, or the --config path when given. With --project, a project overlay is
written to .tablesync/config.yaml under --project-dir or the current directory.`,
		Example: `  # Create the global configuration
  tablesync config init

  # Create a project overlay in the current directory
  tablesync config init --project

  # Recreate the configuration, overwriting the existing file
  tablesync config init --force`,
		Annotations: map[string]string{annotationSkipConfig: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := initTarget(cmd, project)
			if err != nil {
				return err
			}

			if !force {
				_, statErr := os.Stat(path)
				if statErr == nil {
					return fmt.Errorf("%w: %s", ErrConfigExists, path)
				}
				if !os.IsNotExist(statErr) {
					return fmt.Errorf("cannot access config path %s: %w", path, statErr)
				}
			}

			if err = config.New().Save(path); err != nil {
				return fmt.Errorf("failed to save configuration: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration initialized at %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing configuration file")
	cmd.Flags().BoolVar(&project, "project", false, "write a project overlay instead of the global file")

	return cmd
}

// initTarget picks the file config init writes.
func initTarget(cmd *cobra.Command, project bool) (string, error) {
	configPath, _ := cmd.Flags().GetString("config")
	projectDir, _ := cmd.Flags().GetString("project-dir")

	if project {
		// --project-dir, then $TABLESYNC_PROJECT_DIR, then the working directory.
		dir := config.ResolveProjectDir(cmd.Context(), projectDir, "")
		if dir == "" {
			wd, err := os.Getwd()
			if err != nil {
				return "", fmt.Errorf("resolving current directory: %w", err)
			}
			dir = config.ResolveProjectDir(cmd.Context(), wd, "")
		}
		return config.ProjectConfigPath(dir), nil
	}
	if configPath != "" {
		return configPath, nil
	}
	return config.DefaultPath()
}

// NewConfigShowCmd creates the config show command, which prints the
// effective configuration with secrets masked.
func NewConfigShowCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long:  "Print the configuration after merging the global file, the project overlay and TABLESYNC_* variables.",
		Example: `  # Show as YAML
  tablesync config show

  # Show as JSON
  tablesync config show --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := configFrom(cmd.Context()).Redacted()
			out := cmd.OutOrStdout()

			switch output {
			case config.FormatJSON:
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(cfg)
			case config.FormatYAML, "":
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(cfg); err != nil {
					return err
				}
				return enc.Close()
			default:
				return fmt.Errorf("%w: %q", config.ErrInvalidOutputFormat, output)
			}
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", config.FormatYAML, "output format: yaml or json")
	return cmd
}

// NewConfigPathCmd creates the config path command, which prints the files
// the configuration is read from.
func NewConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "path",
		Short:       "Print the configuration file locations",
		Annotations: map[string]string{annotationSkipConfig: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			if configPath == "" {
				var err error
				if configPath, err = config.DefaultPath(); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "global:  %s%s\n", configPath, missingSuffix(configPath))

			flagDir, _ := cmd.Flags().GetString("project-dir")
			wd, _ := os.Getwd()
			if dir := config.ResolveProjectDir(cmd.Context(), flagDir, wd); dir != "" {
				overlay := config.ProjectConfigPath(dir)
				fmt.Fprintf(cmd.OutOrStdout(), "project: %s%s\n", overlay, missingSuffix(overlay))
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "project: none")
			}
			return nil
		},
	}
}

func missingSuffix(path string) string {
	if _, err := os.Stat(path); err != nil {
		return " (missing)"
	}
	return ""
}
