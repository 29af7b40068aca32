package cli

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rshade/tablesync/internal/config"
	"github.com/rshade/tablesync/internal/logging"
)

// Command annotations read by the root pre-run hook.
const (
	// annotationSkipConfig makes a command start from defaults instead of
	// loading (and validating) the config file.
	annotationSkipConfig = "tablesync/skip-config"

	// annotationTUI marks full-screen commands; their logs are discarded
	// unless they go to a file.
	annotationTUI = "tablesync/tui"
)

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// logger is the package-level logger for CLI operations.
var logger = zerolog.Nop() //nolint:gochecknoglobals // Required for zerolog context integration

// rootFlags are the persistent flags shared by every command.
type rootFlags struct {
	configPath string
	projectDir string
	debug      bool
	baseURL    string
	route      string
}

type configKey struct{}

// withConfig stores the effective configuration on ctx.
func withConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// configFrom returns the configuration loaded by the root pre-run hook, or
// defaults when the command ran without it.
func configFrom(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(configKey{}).(*config.Config); ok && cfg != nil {
		return cfg
	}
	return config.New()
}

// NewRootCmd creates the root Cobra command for the tablesync CLI.
// It loads configuration, wires up logging and registers the subcommands.
func NewRootCmd(ver string) *cobra.Command {
	var (
		flags     rootFlags
		logResult *logging.Result
	)

	cmd := &cobra.Command{
		Use:   "tablesync",
		Short: "Browse and manage server-paginated admin lists",
		Long: "tablesync keeps a local view of a server-paginated list in sync: debounced search,\n" +
			"load-more pagination with a page cache, watermark polling and bulk actions.",
		Version:       ver,
		Example:       rootCmdExample,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			logResult = setupLogging(cmd, cfg, flags.debug)
			cmd.SetContext(withConfig(cmd.Context(), cfg))
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return cleanupLogging(logResult)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "config file (default $TABLESYNC_HOME/config.yaml or ~/.tablesync/config.yaml)")
	pf.StringVar(&flags.projectDir, "project-dir", "", "project directory holding a .tablesync overlay")
	pf.BoolVar(&flags.debug, "debug", false, "enable debug logging")
	pf.StringVar(&flags.baseURL, "base-url", "", "list server base URL (overrides config and env)")
	pf.StringVar(&flags.route, "route", "", "dotted list route, e.g. admin.products (overrides config and env)")

	cmd.AddCommand(
		NewBrowseCmd(), NewListCmd(), NewWatchCmd(), NewBulkCmd(),
		NewDemoServerCmd(), newConfigCmd(),
	)
	return cmd
}

// loadConfig resolves the global and project config files, applies the
// persistent flag overrides and validates the result.
func loadConfig(cmd *cobra.Command, flags rootFlags) (*config.Config, error) {
	if _, skip := cmd.Annotations[annotationSkipConfig]; skip {
		return config.New(), nil
	}

	wd, _ := os.Getwd()
	projectDir := config.ResolveProjectDir(cmd.Context(), flags.projectDir, wd)

	cfg, err := config.Load(cmd.Context(), flags.configPath, projectDir)
	if err != nil {
		return nil, err
	}
	if flags.baseURL == "" && flags.route == "" {
		return cfg, nil
	}
	if flags.baseURL != "" {
		cfg.Remote.BaseURL = flags.baseURL
	}
	if flags.route != "" {
		cfg.Remote.Route = flags.route
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newConfigCmd creates the config command group.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Configuration management commands"}
	cmd.AddCommand(NewConfigInitCmd(), NewConfigShowCmd(), NewConfigPathCmd())
	return cmd
}

const rootCmdExample = `  # Start the demo list server
  tablesync demo-server --records 500

  # Browse the list interactively
  tablesync browse --base-url http://127.0.0.1:8080

  # Print the first two pages of active products matching "pizza"
  tablesync list --filter status=active --search pizza --pages 2

  # Sort by price, highest first, as JSON
  tablesync list --sort price:desc --output json

  # Print a line whenever the server data changes
  tablesync watch --interval 10s

  # Deactivate three records
  tablesync bulk deactivate --ids 3,5,8

  # Write a default configuration file
  tablesync config init`
