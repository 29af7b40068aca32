package table

import (
	"context"
	"errors"
	"strings"

	"github.com/rshade/tablesync/internal/notify"
	"github.com/rshade/tablesync/internal/pagination"
	"github.com/rshade/tablesync/internal/remote"
)

// Generic user-facing messages used when the server gives no detail.
const (
	msgLoadFailed = "Failed to load data. Please try again."
	msgBulkFailed = "Something went wrong. Please try again."
)

// SetSort sorts by column. Choosing the current column while ascending flips
// to descending; anything else sorts ascending. The view restarts at page one.
func (c *Controller) SetSort(ctx context.Context, column string) error {
	column = strings.TrimSpace(column)
	if column == "" {
		return pagination.ErrEmptySortField
	}
	if err := c.columns.Validate(column); err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.sort = c.sort.Toggle(column)
	c.invalidateLocked()
	c.mu.Unlock()

	c.debounce.Stop()
	return c.fetchView(ctx, "sort", remote.FetchOptions{Only: c.only(), PreserveState: true})
}

// Reload refetches page one of the current view. Filters, sort, selection,
// the page cursor and cached pages are preserved.
func (c *Controller) Reload(ctx context.Context) error {
	if c.isClosed() {
		return ErrClosed
	}
	return c.fetchView(ctx, "reload", remote.FetchOptions{
		Only:           c.only(),
		PreserveState:  true,
		PreserveScroll: true,
	})
}

// fetchView fetches page one of the current view and applies the response
// if no newer view fetch was issued meanwhile.
func (c *Controller) fetchView(ctx context.Context, reason string, opts remote.FetchOptions) error {
	c.mu.Lock()
	c.seq++
	seq := c.seq
	params := c.paramsLocked(pagination.DefaultPage)
	c.loading = true
	c.mu.Unlock()
	c.emit()

	log := c.logger.With().
		Str("operation", reason).
		Uint64("seq", seq).
		Logger()
	log.Debug().Str("params", params.Encode()).Msg("fetching view")

	resp, err := c.fetcher.FetchList(ctx, c.cfg.Route, params, opts)

	c.mu.Lock()
	if seq != c.seq || c.closed {
		c.mu.Unlock()
		log.Debug().Uint64("latest", c.latestSeq()).Msg("discarding stale view response")
		return nil
	}
	c.loading = false

	if err != nil {
		c.mu.Unlock()
		c.emit()
		if errors.Is(err, context.Canceled) {
			return err
		}
		log.Warn().Err(err).Msg("view fetch failed")
		c.notifyError(err, msgLoadFailed)
		return err
	}

	c.applyViewLocked(resp)
	c.applyServerPollingLocked(resp.Polling)
	c.mu.Unlock()

	log.Debug().
		Int("rows", len(resp.Rows.Data)).
		Str("last_updated", string(resp.Meta.LastUpdated)).
		Msg("view updated")
	c.emit()
	return nil
}

// latestSeq reads the sequence counter.
func (c *Controller) latestSeq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// applyViewLocked replaces page-one rows and metadata with resp. Fields the
// response omits keep their previous values.
func (c *Controller) applyViewLocked(resp *remote.Response) {
	if resp.HasRows {
		c.rows = resp.Rows.Data
	}

	watermark := c.meta.LastUpdated
	c.meta = resp.Meta
	if c.meta.LastUpdated == "" {
		c.meta.LastUpdated = watermark
	}
	if c.meta.CurrentPage == 0 {
		c.meta.CurrentPage = resp.Rows.CurrentPage
	}
	if c.meta.LastPage == 0 {
		c.meta.LastPage = resp.Rows.LastPage
	}
	if c.meta.Total == 0 {
		c.meta.Total = resp.Rows.Total
	}

	// Page one only settles has-more when the server says something about it;
	// the cursor may sit on a later cached page after a reload.
	if c.page == pagination.DefaultPage && hasPagingInfo(resp) {
		c.hasMore = pagination.HasMore(resp.Meta, resp.Rows.CurrentPage, resp.Rows.LastPage)
	}
}

func hasPagingInfo(resp *remote.Response) bool {
	return resp.Meta.HasMorePages != nil || resp.Rows.LastPage > 0 || resp.Meta.LastPage > 0
}

// notifyError surfaces err with the server's message or fallback.
func (c *Controller) notifyError(err error, fallback string) {
	msg := remote.ServerMessage(err)
	if msg == "" {
		msg = fallback
	}
	c.notifier.Notify(notify.Notification{
		Title:       "Error",
		Description: msg,
		Variant:     notify.VariantDestructive,
	})
}
