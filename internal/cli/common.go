package cli

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/rshade/tablesync/internal/config"
	"github.com/rshade/tablesync/internal/logging"
	"github.com/rshade/tablesync/internal/pagination"
	"github.com/rshade/tablesync/internal/remote"
	"github.com/rshade/tablesync/internal/table"
)

// ErrNotTerminal is returned by interactive commands run without a terminal.
var ErrNotTerminal = errors.New("this command needs an interactive terminal")

// displayColumns are shown by browse when the config names no columns.
var displayColumns = []string{"id", "name", "sku", "category", "status", "price", "stock"} //nolint:gochecknoglobals // Read-only default.

// listFlags are the view flags shared by list, watch and browse.
type listFlags struct {
	filters []string
	search  string
	sort    string
	perPage int
}

func addListFlags(cmd *cobra.Command, f *listFlags) {
	cmd.Flags().StringArrayVar(&f.filters, "filter", nil,
		"filter as key=value; repeatable, use key.min=/key.max= for ranges")
	cmd.Flags().StringVar(&f.search, "search", "", "search text")
	cmd.Flags().StringVar(&f.sort, "sort", "", "sort as column or column:asc|desc")
	cmd.Flags().IntVar(&f.perPage, "per-page", 0, "rows per page (0 = config or server default)")
}

// apply layers the flags on top of the configured controller settings.
func (f listFlags) apply(tc *table.Config) error {
	if tc.InitialFilters == nil {
		tc.InitialFilters = map[string]any{}
	}
	for _, expr := range f.filters {
		key, value, err := pagination.ParseFilter(expr)
		if err != nil {
			return err
		}
		pagination.MergeFilter(tc.InitialFilters, key, value)
	}
	if f.search != "" {
		tc.InitialFilters[pagination.ParamSearch] = f.search
	}
	if f.sort != "" {
		state, err := pagination.ParseSort(f.sort)
		if err != nil {
			return err
		}
		tc.InitialSort = state
	}
	if f.perPage != 0 {
		if err := pagination.ValidatePerPage(f.perPage); err != nil {
			return err
		}
		tc.PerPage = f.perPage
	}
	return nil
}

// newController builds an HTTP-backed controller for the configured route.
func newController(ctx context.Context, cfg *config.Config, tc table.Config, opts ...table.Option) (*table.Controller, error) {
	log := *logging.FromContext(ctx)

	client, err := remote.NewHTTPClient(cfg.ClientConfig(logging.ComponentLogger(log, "remote")))
	if err != nil {
		return nil, fmt.Errorf("creating list client: %w", err)
	}

	opts = append([]table.Option{table.WithLogger(logging.ComponentLogger(log, "table"))}, opts...)
	ctrl, err := table.New(tc, client, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating table controller: %w", err)
	}
	return ctrl, nil
}

// columnsFor returns the configured columns, or every field of the first
// row with "id" first and the rest sorted.
func columnsFor(configured []string, rows []remote.Record) []string {
	if len(configured) > 0 {
		return configured
	}
	if len(rows) == 0 {
		return nil
	}
	cols := make([]string, 0, len(rows[0]))
	for k := range rows[0] {
		if k != "id" {
			cols = append(cols, k)
		}
	}
	slices.Sort(cols)
	if _, ok := rows[0]["id"]; ok {
		cols = append([]string{"id"}, cols...)
	}
	return cols
}
