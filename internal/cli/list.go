package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rshade/tablesync/internal/config"
	"github.com/rshade/tablesync/internal/pagination"
	"github.com/rshade/tablesync/internal/remote"
	"github.com/rshade/tablesync/internal/table"
)

// listOutput is the json/yaml shape printed by list.
type listOutput struct {
	Rows    []remote.Record `json:"rows"     yaml:"rows"`
	Page    int             `json:"page"     yaml:"page"`
	HasMore bool            `json:"has_more" yaml:"has_more"`
	Meta    pagination.Meta `json:"meta"     yaml:"meta"`
}

// NewListCmd creates the "list" command, which prints one or more pages of
// the configured list.
func NewListCmd() *cobra.Command {
	var (
		view   listFlags
		pages  int
		output string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print pages of the list",
		Long: "Fetch page one of the list with the given filters, search and sort, then load\n" +
			"further pages with load-more until --pages pages are shown or the data runs out.",
		Example: `  # First page with the configured defaults
  tablesync list

  # Active products priced between 10 and 50, three pages
  tablesync list --filter status=active --filter price.min=10 --filter price.max=50 --pages 3

  # YAML output sorted by name, descending
  tablesync list --sort name:desc --output yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd, view, pages, output)
		},
	}

	addListFlags(cmd, &view)
	cmd.Flags().IntVar(&pages, "pages", 1, "number of pages to show")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output format: table, json or yaml (default from config)")

	return cmd
}

func runList(cmd *cobra.Command, view listFlags, pages int, output string) error {
	ctx := cmd.Context()
	cfg := configFrom(ctx)

	if output == "" {
		output = cfg.Output.DefaultFormat
	}
	switch output {
	case config.FormatTable, config.FormatJSON, config.FormatYAML:
	default:
		return fmt.Errorf("%w: %q", config.ErrInvalidOutputFormat, output)
	}
	if pages < 1 {
		return fmt.Errorf("--pages must be at least 1, got %d", pages)
	}

	tc := cfg.ControllerConfig()
	if err := view.apply(&tc); err != nil {
		return err
	}

	ctrl, err := newController(ctx, cfg, tc)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	if err = ctrl.Reload(ctx); err != nil {
		return fmt.Errorf("loading %s: %w", cfg.Remote.Route, err)
	}
	for i := 1; i < pages; i++ {
		result, loadErr := ctrl.LoadMore(ctx)
		if loadErr != nil {
			return fmt.Errorf("loading page %d: %w", i+1, loadErr)
		}
		if result == table.LoadSkipped {
			break
		}
		logger.Debug().Ctx(ctx).Int("page", i+1).Stringer("result", result).Msg("loaded page")
	}

	snap := ctrl.Snapshot()
	out := cmd.OutOrStdout()
	switch output {
	case config.FormatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(newListOutput(snap))
	case config.FormatYAML:
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err = enc.Encode(newListOutput(snap)); err != nil {
			return err
		}
		return enc.Close()
	default:
		return renderTable(out, columnsFor(cfg.Table.Columns, snap.Rows), snap)
	}
}

func newListOutput(snap table.Snapshot) listOutput {
	rows := snap.Rows
	if rows == nil {
		rows = []remote.Record{}
	}
	return listOutput{Rows: rows, Page: snap.Page, HasMore: snap.HasMoreData, Meta: snap.Meta}
}

// renderTable writes rows as an aligned table followed by a summary line.
func renderTable(w io.Writer, columns []string, snap table.Snapshot) error {
	if len(snap.Rows) == 0 {
		_, err := fmt.Fprintln(w, "No records found.")
		return err
	}

	const tabPadding = 2
	tw := tabwriter.NewWriter(w, 0, 0, tabPadding, ' ', 0)

	header := make([]string, len(columns))
	rule := make([]string, len(columns))
	for i, col := range columns {
		header[i] = strings.ToUpper(col)
		rule[i] = strings.Repeat("-", len(col))
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	fmt.Fprintln(tw, strings.Join(rule, "\t"))

	cells := make([]string, len(columns))
	for _, row := range snap.Rows {
		for i, col := range columns {
			cells[i] = row.String(col)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	total := snap.Meta.Total
	if total == 0 {
		total = len(snap.Rows)
	}
	summary := fmt.Sprintf("\nShowing %d of %d records", len(snap.Rows), total)
	if snap.Meta.LastPage > 0 {
		summary += fmt.Sprintf(" (page %d of %d)", snap.Page, snap.Meta.LastPage)
	}
	if snap.HasMoreData {
		summary += "; more available with --pages"
	}
	_, err := fmt.Fprintln(w, summary)
	return err
}
