package table

import (
	"context"
	"fmt"

	"github.com/rshade/tablesync/internal/pagination"
	"github.com/rshade/tablesync/internal/remote"
)

// SetFilter sets one filter and refreshes the view from page one. Empty
// values remove the filter. The "search" key is debounced unless immediate
// is true; every other key fetches right away.
func (c *Controller) SetFilter(ctx context.Context, key string, value any, immediate bool) error {
	if key == pagination.ParamSearch {
		return c.setSearch(ctx, searchText(value), immediate)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	setFilterLocked(c.filters, key, value)
	c.invalidateLocked()
	c.mu.Unlock()

	// The fetch below already carries the current search text.
	c.debounce.Stop()
	return c.fetchView(ctx, "filter", remote.FetchOptions{Only: c.only(), PreserveState: true})
}

// SetFilters applies several filters with a single fetch. A "search" entry
// is applied immediately.
func (c *Controller) SetFilters(ctx context.Context, filters map[string]any) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	for key, value := range filters {
		if key == pagination.ParamSearch {
			c.search = searchText(value)
			continue
		}
		setFilterLocked(c.filters, key, value)
	}
	c.invalidateLocked()
	c.mu.Unlock()

	c.debounce.Stop()
	return c.fetchView(ctx, "filter", remote.FetchOptions{Only: c.only(), PreserveState: true})
}

// ResetFilters restores the initial filters, clears the search text and sort,
// and refetches.
func (c *Controller) ResetFilters(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.filters = copyFilters(c.cfg.InitialFilters)
	c.search, _ = c.cfg.InitialFilters[pagination.ParamSearch].(string)
	c.sort = pagination.SortState{}
	c.invalidateLocked()
	c.mu.Unlock()

	c.debounce.Stop()
	return c.fetchView(ctx, "reset", remote.FetchOptions{Only: c.only(), PreserveState: true})
}

// FlushSearch fires a pending debounced search now. It reports whether one was pending.
func (c *Controller) FlushSearch() bool {
	return c.debounce.Flush()
}

func (c *Controller) setSearch(ctx context.Context, text string, immediate bool) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.search = text
	c.invalidateLocked()
	c.mu.Unlock()

	if immediate {
		c.debounce.Stop()
		return c.fetchView(ctx, "search", remote.FetchOptions{Only: c.only(), PreserveState: true})
	}

	c.debounce.Trigger()
	c.emit()
	return nil
}

// runDebouncedSearch is the debouncer's trailing-edge callback.
func (c *Controller) runDebouncedSearch() {
	if c.isClosed() {
		return
	}
	// Errors are already logged and surfaced through the notifier.
	_ = c.fetchView(c.ctx, "search", remote.FetchOptions{Only: c.only(), PreserveState: true})
}

func setFilterLocked(filters map[string]any, key string, value any) {
	if key == "" {
		return
	}
	if pagination.IsEmpty(value) {
		delete(filters, key)
		return
	}
	filters[key] = value
}

func searchText(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
