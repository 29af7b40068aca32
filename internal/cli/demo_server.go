package cli

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rshade/tablesync/internal/demo"
	"github.com/rshade/tablesync/internal/logging"
	"github.com/rshade/tablesync/internal/remote"
)

// NewDemoServerCmd creates the "demo-server" command, which serves an
// in-memory product list speaking the list protocol.
func NewDemoServerCmd() *cobra.Command {
	var (
		addr         string
		records      int
		pollInterval time.Duration
		lockedIDs    []int
		rateLimit    int
	)

	cmd := &cobra.Command{
		Use:   "demo-server",
		Short: "Serve an in-memory product list for trying tablesync",
		Long: "Serve seeded products on the configured route. The list endpoint supports search,\n" +
			"status/category/price filters, sorting, paging and partial responses; the bulk\n" +
			"endpoints delete records or change their status.",
		Example: `  # Serve 250 records on 127.0.0.1:8080
  tablesync demo-server

  # Announce a 5s polling interval and refuse to delete records 1 and 2
  tablesync demo-server --poll-interval 5s --locked-ids 1,2`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := configFrom(cmd.Context())
			if !cmd.Flags().Changed("addr") {
				addr = cfg.Demo.Addr
			}
			if !cmd.Flags().Changed("records") {
				records = cfg.Demo.Records
			}
			if !cmd.Flags().Changed("poll-interval") {
				pollInterval = cfg.Demo.PollInterval
			}
			if records < 0 {
				return fmt.Errorf("--records must not be negative, got %d", records)
			}
			if pollInterval < 0 {
				return fmt.Errorf("--poll-interval must not be negative, got %s", pollInterval)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store := demo.NewStore(records)
			srv := demo.NewServer(store, demo.ServerConfig{
				Route:         cfg.Remote.Route,
				DataKey:       cfg.Remote.DataKey,
				PollInterval:  pollInterval,
				MutationLimit: rateLimit,
				LockedIDs:     lockedIDs,
				Logger:        *logging.FromContext(ctx),
			})

			ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", addr)
			if err != nil {
				return fmt.Errorf("listening on %s: %w", addr, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Serving %d records at http://%s%s (Ctrl+C to stop)\n",
				store.Len(), ln.Addr(), remote.RoutePath(cfg.Remote.Route))
			return srv.Serve(ctx, ln)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, 127.0.0.1:8080)")
	cmd.Flags().IntVar(&records, "records", 0, "number of seeded records (default from config)")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", 0, "polling interval announced to clients (0 = none)")
	cmd.Flags().IntSliceVar(&lockedIDs, "locked-ids", nil, "ids that cannot be deleted")
	cmd.Flags().IntVar(&rateLimit, "rate-limit", demo.DefaultMutationLimit, "bulk requests allowed per client per minute")

	return cmd
}
