package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rshade/tablesync/internal/notify"
	"github.com/rshade/tablesync/internal/remote"
	"github.com/rshade/tablesync/internal/table"
)

// Bulk command errors.
var (
	ErrNoIDs                = errors.New("no record ids given; use --ids")
	ErrConfirmationRequired = errors.New("refusing to run a destructive action without --yes in a non-interactive session")
)

// NewBulkCmd creates the "bulk" command group.
func NewBulkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bulk",
		Short: "Apply an action to many records at once",
		Long: "Send one bulk request per batch of ids. On success the page cache is dropped and\n" +
			"page one reloads; on failure the server's message is printed.",
	}
	cmd.AddCommand(
		newBulkActionCmd(table.ActionDelete, "Delete records", `  tablesync bulk delete --ids 4,8,12 --yes`),
		newBulkActionCmd(table.ActionActivate, "Mark records active", `  tablesync bulk activate --ids 4,8,12`),
		newBulkActionCmd(table.ActionDeactivate, "Mark records inactive", `  tablesync bulk deactivate --ids 4 --ids 8`),
	)
	return cmd
}

func newBulkActionCmd(id table.ActionID, short, example string) *cobra.Command {
	var (
		ids []string
		yes bool
	)

	cmd := &cobra.Command{
		Use:     string(id),
		Short:   short,
		Example: example,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBulk(cmd, id, ids, yes)
		},
	}

	cmd.Flags().StringSliceVar(&ids, "ids", nil, "record ids (comma separated or repeated)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")

	return cmd
}

func runBulk(cmd *cobra.Command, id table.ActionID, ids []string, yes bool) error {
	ctx := cmd.Context()
	cfg := configFrom(ctx)
	out := cmd.OutOrStdout()

	ids = cleanIDs(ids)
	if len(ids) == 0 {
		return ErrNoIDs
	}

	var notices []notify.Notification
	ctrl, err := newController(ctx, cfg, cfg.ControllerConfig(),
		table.WithNotifier(notify.Multi{
			notify.NewLogNotifier(logger),
			notify.Func(func(n notify.Notification) { notices = append(notices, n) }),
		}),
	)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	action, ok := ctrl.Action(id)
	if !ok {
		return fmt.Errorf("%w: %q", table.ErrUnknownAction, id)
	}

	if action.Destructive && !yes {
		in := cmd.InOrStdin()
		if f, isFile := in.(*os.File); isFile && !isTerminal(f) {
			return ErrConfirmationRequired
		}
		question := fmt.Sprintf("%s %d %s on %s?", titleCase(string(id)), len(ids), noun(len(ids)), cfg.Remote.Route)
		if !Confirm(out, in, question).Accepted {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	ctrl.Select(ids...)
	var affected int
	err = ctrl.PerformBulkAction(ctx, id, table.BulkCallbacks{
		OnSuccess: func(r *remote.MutationResult) {
			if r != nil {
				affected = r.Affected
			}
		},
	})
	if err != nil {
		return fmt.Errorf("%s failed: %w", id, err)
	}

	for _, n := range notices {
		if n.Variant == notify.VariantSuccess {
			fmt.Fprintln(out, n.Description)
		}
	}
	logger.Debug().Ctx(ctx).Str("action", string(id)).Int("affected", affected).Msg("bulk action finished")
	return nil
}

// cleanIDs trims ids and drops empty and duplicate entries, keeping order.
func cleanIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func noun(n int) string {
	if n == 1 {
		return "record"
	}
	return "records"
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
