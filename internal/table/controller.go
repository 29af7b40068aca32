package table

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rshade/tablesync/internal/batch"
	"github.com/rshade/tablesync/internal/cache"
	"github.com/rshade/tablesync/internal/logging"
	"github.com/rshade/tablesync/internal/notify"
	"github.com/rshade/tablesync/internal/pagination"
	"github.com/rshade/tablesync/internal/remote"
)

// Controller is the state and data-fetching core of one list view.
// All methods are safe for concurrent use.
type Controller struct {
	cfg       Config
	fetcher   remote.Fetcher
	notifier  notify.Notifier
	logger    zerolog.Logger
	onChange  func(Snapshot)
	now       func() time.Time
	columns   *pagination.Columns
	actions   map[ActionID]BulkAction
	processor *batch.Processor[string]

	pages    *cache.PageStore
	debounce *Debouncer

	// ctx lives until Close; background work derives from it.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu sync.Mutex

	filters   map[string]any
	search    string
	sort      pagination.SortState
	page      int
	rows      []remote.Record
	meta      pagination.Meta
	selection map[string]struct{}

	hasMore     bool
	loading     bool
	loadingMore bool
	bulkBusy    bool
	polling     bool

	// seq numbers view fetches; only the response to the latest is applied.
	seq uint64
	// generation changes whenever the row set is invalidated.
	generation uint64

	clientPoll   time.Duration
	serverPoll   *remote.PollingConfig
	activePoll   time.Duration
	cancelPoller context.CancelFunc
	started      bool
	closed       bool
}

// New creates a controller. It performs no I/O until Start or an operation is called.
func New(cfg Config, fetcher remote.Fetcher, opts ...Option) (*Controller, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if fetcher == nil {
		return nil, ErrNilFetcher
	}

	processor, err := batch.NewProcessor[string](cfg.BulkBatchSize)
	if err != nil {
		return nil, err
	}

	c := &Controller{
		cfg:        cfg,
		fetcher:    fetcher,
		notifier:   notify.Discard,
		logger:     zerolog.Nop(),
		columns:    pagination.NewColumns(cfg.Columns...),
		actions:    DefaultActions(),
		processor:  processor,
		filters:    copyFilters(cfg.InitialFilters),
		sort:       cfg.InitialSort,
		page:       pagination.DefaultPage,
		selection:  make(map[string]struct{}),
		hasMore:    true,
		clientPoll: cfg.Polling.Interval,
	}
	if search, ok := cfg.InitialFilters[pagination.ParamSearch].(string); ok {
		c.search = search
	}
	for _, opt := range opts {
		opt(c)
	}

	c.logger = logging.ComponentLogger(c.logger, "table").With().Str("route", cfg.Route).Logger()
	var storeOpts []cache.StoreOption
	if c.now != nil {
		storeOpts = append(storeOpts, cache.WithClock(c.now))
	}
	c.pages = cache.NewPageStore(cfg.CacheTTL, storeOpts...)
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.debounce = NewDebouncer(cfg.DebounceDelay, c.runDebouncedSearch)

	return c, nil
}

// Start launches the cache sweeper, performs the initial load and starts
// polling when an interval is configured. Cancelling ctx closes the
// controller. The initial load error is returned; the controller stays usable.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		cache.RunSweeper(c.ctx, c.pages, c.cfg.SweepInterval, c.logger)
	}()
	go func() {
		defer c.wg.Done()
		select {
		case <-ctx.Done():
			go c.Close()
		case <-c.ctx.Done():
		}
	}()
	c.mu.Unlock()

	if c.cfg.EnablePrefetch {
		c.logger.Debug().Str("operation", "start").Msg("prefetch requested; next-page prefetch is not performed")
	}

	err := c.fetchView(ctx, "initial", remote.FetchOptions{})

	c.mu.Lock()
	c.applyPollingLocked()
	c.mu.Unlock()

	return err
}

// Close cancels the debounce timer, the sweeper and the poller and waits for
// them to exit. It is idempotent.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.cancelPoller != nil {
		c.cancelPoller()
		c.cancelPoller = nil
	}
	c.mu.Unlock()

	c.debounce.Close()
	c.cancel()
	c.wg.Wait()

	c.logger.Debug().Str("operation", "close").Msg("controller closed")
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// emit publishes a snapshot to the change callback.
func (c *Controller) emit() {
	if c.onChange == nil {
		return
	}
	c.onChange(c.Snapshot())
}

// paramsLocked returns the cleaned request parameters for page.
func (c *Controller) paramsLocked(page int) pagination.RequestParams {
	return pagination.Clean(pagination.Query{
		Filters: c.filters,
		Search:  c.search,
		Sort:    c.sort,
		Page:    page,
		PerPage: c.cfg.PerPage,
	})
}

// invalidateLocked applies the rules shared by every change to the row set:
// back to page one, empty cache, more data assumed, selection cleared.
func (c *Controller) invalidateLocked() {
	c.resetPagesLocked()
	clear(c.selection)
}

// resetPagesLocked drops every cached page and rewinds the cursor to page one.
func (c *Controller) resetPagesLocked() {
	c.page = pagination.DefaultPage
	c.hasMore = true
	c.generation++
	if dropped := c.pages.Clear(); dropped > 0 {
		c.logger.Debug().Str("operation", "invalidate").Int("dropped", dropped).Msg("page cache cleared")
	}
}

// visiblePageLocked returns the last page, up to the cursor, whose rows and
// those of every page before it are still cached. It does not move the cursor.
func (c *Controller) visiblePageLocked() int {
	for p := pagination.DefaultPage + 1; p <= c.page; p++ {
		if _, ok := c.pages.Get(p); !ok {
			return p - 1
		}
	}
	return c.page
}

// only lists the props a partial fetch asks for.
func (c *Controller) only() []string {
	return []string{c.cfg.DataKey, remote.MetaKey}
}

func (c *Controller) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func copyFilters(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		if k == pagination.ParamSearch {
			continue
		}
		out[k] = v
	}
	return out
}
