package cli

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/rshade/tablesync/internal/notify"
	"github.com/rshade/tablesync/internal/table"
	"github.com/rshade/tablesync/internal/tui"
)

// NewBrowseCmd creates the "browse" command, an interactive list browser.
func NewBrowseCmd() *cobra.Command {
	var view listFlags

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse the list interactively",
		Long: "Open a full-screen list. Press / to search, 1-9 to sort by a column, n (or scroll\n" +
			"past the end) to load more, space to select, D/A/X to delete, activate or\n" +
			"deactivate the selection, r to reload and q to quit.",
		Example: `  # Browse active products
  tablesync browse --filter status=active

  # Browse with logs written to a file
  tablesync browse --debug`,
		Annotations: map[string]string{annotationTUI: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBrowse(cmd, view)
		},
	}

	addListFlags(cmd, &view)
	return cmd
}

func runBrowse(cmd *cobra.Command, view listFlags) error {
	if !isTerminal(os.Stdin) || !isTerminal(os.Stdout) {
		return ErrNotTerminal
	}

	ctx := cmd.Context()
	cfg := configFrom(ctx)

	tc := cfg.ControllerConfig()
	if err := view.apply(&tc); err != nil {
		return err
	}

	relay := tui.NewRelay()
	ctrl, err := newController(ctx, cfg, tc,
		relay.OnChange(),
		table.WithNotifier(notify.Multi{relay.Notifier(), notify.NewLogNotifier(logger)}),
	)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	columns := cfg.Table.Columns
	if len(columns) == 0 {
		columns = displayColumns
	}
	title := fmt.Sprintf("%s · %s", cfg.Remote.Route, cfg.Remote.BaseURL)

	program := tea.NewProgram(
		tui.NewBrowser(ctx, ctrl, title, columns),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	relay.Attach(program)

	if _, err = program.Run(); err != nil {
		return fmt.Errorf("running browser: %w", err)
	}
	return nil
}
