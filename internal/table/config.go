package table

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rshade/tablesync/internal/batch"
	"github.com/rshade/tablesync/internal/cache"
	"github.com/rshade/tablesync/internal/notify"
	"github.com/rshade/tablesync/internal/pagination"
	"github.com/rshade/tablesync/internal/remote"
)

// DefaultDebounceDelay is the trailing-edge delay applied to search input.
const DefaultDebounceDelay = 500 * time.Millisecond

// PollingOptions is the client-side polling configuration. A polling
// configuration sent by the server takes precedence.
type PollingOptions struct {
	// Interval between polls. Zero disables polling.
	Interval time.Duration `yaml:"interval" json:"interval"`
}

// Config configures a Controller.
type Config struct {
	// Route identifies the list endpoint, e.g. "admin.products".
	Route string

	// DataKey is the response field holding rows. Defaults to "data".
	DataKey string

	// InitialFilters seeds the filter state and is restored by ResetFilters.
	InitialFilters map[string]any

	// PerPage is sent as per_page when positive.
	PerPage int

	// Columns restricts SetSort to these names. Empty allows any column.
	Columns []string

	// InitialSort seeds the sort state. Zero means unsorted.
	InitialSort pagination.SortState

	Polling PollingOptions

	// EnablePrefetch is reserved; prefetching of the next page is not performed.
	EnablePrefetch bool

	DebounceDelay time.Duration
	CacheTTL      time.Duration
	SweepInterval time.Duration
	BulkBatchSize int
}

func (c Config) withDefaults() Config {
	c.Route = strings.TrimSpace(c.Route)
	if c.DataKey == "" {
		c.DataKey = remote.DefaultDataKey
	}
	if c.DebounceDelay <= 0 {
		c.DebounceDelay = DefaultDebounceDelay
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = cache.DefaultTTL
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = cache.DefaultSweepInterval
	}
	if c.BulkBatchSize <= 0 {
		c.BulkBatchSize = batch.DefaultBatchSize
	}
	return c
}

// Validate checks the configuration after defaults are applied.
func (c Config) Validate() error {
	if c.Route == "" {
		return ErrEmptyRoute
	}
	if err := pagination.ValidatePerPage(c.PerPage); err != nil {
		return err
	}
	if c.Polling.Interval < 0 {
		return ErrInvalidPollDelay
	}
	if c.BulkBatchSize < batch.MinBatchSize || c.BulkBatchSize > batch.MaxBatchSize {
		return fmt.Errorf("%w: got %d", batch.ErrInvalidBatchSize, c.BulkBatchSize)
	}
	if !c.InitialSort.IsZero() {
		if d := c.InitialSort.Direction; d != pagination.SortOrderAsc && d != pagination.SortOrderDesc {
			return fmt.Errorf("%w: got %q", pagination.ErrInvalidSortOrder, d)
		}
		if len(c.Columns) > 0 {
			if err := pagination.NewColumns(c.Columns...).Validate(c.InitialSort.Column); err != nil {
				return err
			}
		}
	}
	return nil
}

// Option configures optional Controller collaborators.
type Option func(*Controller)

// WithNotifier sets the notification sink. Defaults to notify.Discard.
func WithNotifier(n notify.Notifier) Option {
	return func(c *Controller) {
		if n != nil {
			c.notifier = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithOnChange registers fn to receive a Snapshot after every state change.
// fn is called without the controller lock held and may call back into the
// controller, but must not block for long.
func WithOnChange(fn func(Snapshot)) Option {
	return func(c *Controller) {
		c.onChange = fn
	}
}

// WithBulkAction registers or replaces a bulk action.
func WithBulkAction(action BulkAction) Option {
	return func(c *Controller) {
		if action.ID != "" && action.Build != nil {
			c.actions[action.ID] = action
		}
	}
}

// WithClock overrides the time source used by the page cache.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}
