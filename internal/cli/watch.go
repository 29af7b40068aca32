package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rshade/tablesync/internal/notify"
	"github.com/rshade/tablesync/internal/pagination"
	"github.com/rshade/tablesync/internal/table"
)

// ExitCodeChanged is returned by watch --exit-on-change when the data changed.
const ExitCodeChanged = 3

// defaultWatchInterval is used when neither the flag, the config nor the
// server supplies a polling interval.
const defaultWatchInterval = 5 * time.Second

// ExitError asks main to exit with Code instead of the generic failure code.
type ExitError struct {
	Code   int
	Reason string
}

func (e *ExitError) Error() string {
	return e.Reason
}

// NewWatchCmd creates the "watch" command, which polls the list and prints
// a line each time the server's last_updated watermark changes.
func NewWatchCmd() *cobra.Command {
	var (
		view         listFlags
		interval     time.Duration
		exitOnChange bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll the list and report data changes",
		Long: "Load page one, then poll the server at the configured interval. A server-supplied\n" +
			"polling block takes precedence over --interval. Each new last_updated watermark\n" +
			"reloads the view and prints one line. Stops on Ctrl+C.",
		Example: `  # Poll every 10 seconds
  tablesync watch --interval 10s

  # Wait for the next change to active products, then exit with code 3
  tablesync watch --filter status=active --exit-on-change`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd, view, interval, exitOnChange)
		},
	}

	addListFlags(cmd, &view)
	cmd.Flags().DurationVar(&interval, "interval", 0, "polling interval (default from config, else 5s)")
	cmd.Flags().BoolVar(&exitOnChange, "exit-on-change", false,
		fmt.Sprintf("exit with code %d after the first change", ExitCodeChanged))

	return cmd
}

func runWatch(cmd *cobra.Command, view listFlags, interval time.Duration, exitOnChange bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := configFrom(ctx)
	if interval < 0 {
		return table.ErrInvalidPollDelay
	}

	tc := cfg.ControllerConfig()
	if err := view.apply(&tc); err != nil {
		return err
	}
	switch {
	case interval > 0:
		tc.Polling.Interval = interval
	case tc.Polling.Interval == 0:
		tc.Polling.Interval = defaultWatchInterval
	}

	changed := make(chan struct{}, 1)
	ctrl, err := newController(ctx, cfg, tc,
		table.WithNotifier(notify.NewLogNotifier(logger)),
		table.WithOnChange(func(table.Snapshot) {
			select {
			case changed <- struct{}{}:
			default:
			}
		}),
	)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	if err = ctrl.Start(ctx); err != nil {
		return fmt.Errorf("loading %s: %w", cfg.Remote.Route, err)
	}

	out := cmd.OutOrStdout()
	snap := ctrl.Snapshot()
	seen := snap.Meta.LastUpdated
	fmt.Fprintf(out, "Watching %s every %s (%d records, last_updated=%s)\n",
		cfg.Remote.Route, snap.PollInterval, snap.Meta.Total, seen)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changed:
		}

		snap = ctrl.Snapshot()
		if snap.IsLoading || !watermarkChanged(seen, snap.Meta.LastUpdated) {
			continue
		}
		seen = snap.Meta.LastUpdated
		fmt.Fprintf(out, "%s  last_updated=%s  total=%d\n",
			time.Now().Format(time.RFC3339), seen, snap.Meta.Total)

		if exitOnChange {
			return &ExitError{Code: ExitCodeChanged, Reason: fmt.Sprintf("%s changed", cfg.Remote.Route)}
		}
	}
}

func watermarkChanged(prev, next pagination.Watermark) bool {
	return next != "" && next != prev
}
