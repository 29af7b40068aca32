package table

import (
	"context"
	"fmt"

	"github.com/rshade/tablesync/internal/pagination"
	"github.com/rshade/tablesync/internal/remote"
)

// LoadResult describes what LoadMore did.
type LoadResult int

// LoadMore outcomes.
const (
	// LoadSkipped means a load was in flight or there is no more data.
	LoadSkipped LoadResult = iota
	// LoadFromCache means the next page was served from the page cache.
	LoadFromCache
	// LoadFetched means the next page was fetched and cached.
	LoadFetched
	// LoadDiscarded means the view changed while the page was in flight.
	LoadDiscarded
	// LoadFailed means the fetch failed; no further pages will be attempted.
	LoadFailed
)

// String implements fmt.Stringer.
func (r LoadResult) String() string {
	switch r {
	case LoadSkipped:
		return "skipped"
	case LoadFromCache:
		return "cache"
	case LoadFetched:
		return "fetched"
	case LoadDiscarded:
		return "discarded"
	case LoadFailed:
		return "failed"
	default:
		return fmt.Sprintf("LoadResult(%d)", int(r))
	}
}

// LoadMore advances to the next page, from the cache when a fresh copy
// exists. A failed fetch stops pagination until the view changes.
func (c *Controller) LoadMore(ctx context.Context) (LoadResult, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return LoadSkipped, ErrClosed
	}
	if c.loading || c.loadingMore || !c.hasMore {
		c.mu.Unlock()
		return LoadSkipped, nil
	}

	// Expired pages drop out of view; continue after the last one still held.
	c.page = c.visiblePageLocked()
	next := c.page + 1
	if _, ok := c.pages.Get(next); ok {
		c.page = next
		c.mu.Unlock()
		c.logger.Debug().Str("operation", "load_more").Int("page", next).Msg("served from cache")
		c.emit()
		return LoadFromCache, nil
	}

	c.loadingMore = true
	generation := c.generation
	params := c.paramsLocked(next)
	c.mu.Unlock()
	c.emit()

	log := c.logger.With().Str("operation", "load_more").Int("page", next).Logger()
	log.Debug().Str("params", params.Encode()).Msg("fetching page")

	resp, err := c.fetcher.FetchList(ctx, c.cfg.Route, params, remote.FetchOptions{
		Only:           c.only(),
		PreserveState:  true,
		PreserveScroll: true,
	})

	c.mu.Lock()
	c.loadingMore = false

	if generation != c.generation || c.closed {
		c.mu.Unlock()
		log.Debug().Msg("view changed while loading; page discarded")
		c.emit()
		return LoadDiscarded, nil
	}

	if err != nil {
		c.hasMore = false
		c.mu.Unlock()
		log.Warn().Err(err).Msg("load more failed; pagination stopped")
		c.emit()
		return LoadFailed, err
	}

	rows := resp.Rows.Data
	if len(rows) == 0 {
		c.hasMore = false
		c.meta = c.meta.Merge(resp.Meta)
		c.mu.Unlock()
		log.Debug().Msg("empty page; no more data")
		c.emit()
		return LoadFetched, nil
	}

	if putErr := c.pages.Put(next, rows); putErr != nil {
		c.hasMore = false
		c.mu.Unlock()
		c.emit()
		return LoadFailed, putErr
	}
	c.page = next
	c.meta = c.meta.Merge(resp.Meta)
	c.hasMore = pagination.HasMore(resp.Meta, resp.Rows.CurrentPage, resp.Rows.LastPage)
	hasMore := c.hasMore
	c.mu.Unlock()

	log.Debug().Int("rows", len(rows)).Bool("has_more", hasMore).Msg("page cached")
	c.emit()
	return LoadFetched, nil
}

// SeekPage moves the page cursor back to an already loaded page without
// touching the cache. Later LoadMore calls serve the following pages from
// the cache while they are fresh.
func (c *Controller) SeekPage(page int) error {
	if err := pagination.ValidatePage(page); err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	current := c.visiblePageLocked()
	if page > current {
		c.mu.Unlock()
		return fmt.Errorf("%w: %d (loaded through %d)", ErrPageNotLoaded, page, current)
	}
	if page < current {
		c.hasMore = true
	}
	c.page = page
	c.mu.Unlock()

	c.emit()
	return nil
}
