package table

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rshade/tablesync/internal/pagination"
	"github.com/rshade/tablesync/internal/remote"
)

// SetPollingInterval replaces the client polling interval. Zero disables
// client polling. A server-supplied interval still takes precedence.
func (c *Controller) SetPollingInterval(d time.Duration) error {
	if d < 0 {
		return ErrInvalidPollDelay
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.clientPoll = d
	c.applyPollingLocked()
	c.mu.Unlock()

	c.emit()
	return nil
}

// Poll performs one poll tick. It skips while any load is in flight,
// fetches only rows and meta, and reloads the view when the server
// watermark differs from the one held. It reports whether a reload ran.
func (c *Controller) Poll(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false, ErrClosed
	}
	if c.loading || c.loadingMore || c.polling {
		c.mu.Unlock()
		c.logger.Trace().Str("operation", "poll").Msg("load in flight; tick skipped")
		return false, nil
	}
	c.polling = true
	target := c.pollURLLocked()
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.polling = false
		c.mu.Unlock()
	}()

	headers := http.Header{}
	headers.Set(remote.HeaderPartialData, strings.Join(c.only(), ","))

	resp, err := c.fetcher.FetchListRaw(ctx, target, headers)
	if err != nil {
		c.logger.Debug().Str("operation", "poll").Err(err).Msg("poll failed")
		return false, err
	}

	c.mu.Lock()
	fresh := resp.Meta.LastUpdated
	held := c.meta.LastUpdated
	changed := fresh != "" && fresh != held
	c.applyServerPollingLocked(resp.Polling)
	c.mu.Unlock()

	if !changed {
		return false, nil
	}

	c.logger.Debug().Str("operation", "poll").Str("last_updated", string(fresh)).Msg("server data changed; reloading")
	if err := c.Reload(ctx); err != nil {
		// The held watermark is untouched so the next tick retries.
		return true, err
	}

	// A reload response without a watermark adopts the polled one.
	c.mu.Lock()
	if c.meta.LastUpdated == held {
		c.meta.LastUpdated = fresh
	}
	c.mu.Unlock()
	return true, nil
}

// pollURLLocked returns the URL polled each tick: the server endpoint when
// supplied, else the route path, with the current page-one parameters.
func (c *Controller) pollURLLocked() string {
	base := remote.RoutePath(c.cfg.Route)
	if c.serverPoll != nil && c.serverPoll.Endpoint != "" {
		base = c.serverPoll.Endpoint
	}
	query := c.paramsLocked(pagination.DefaultPage).Encode()
	if query == "" {
		return base
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + query
}

// applyServerPollingLocked records a server polling configuration.
func (c *Controller) applyServerPollingLocked(p *remote.PollingConfig) {
	if p == nil {
		return
	}
	cfg := *p
	c.serverPoll = &cfg
	c.applyPollingLocked()
}

// pollIntervalLocked resolves the effective interval.
func (c *Controller) pollIntervalLocked() time.Duration {
	if c.serverPoll != nil {
		return c.serverPoll.Interval()
	}
	return c.clientPoll
}

// applyPollingLocked (re)starts the poller when the effective interval
// changed. Nothing runs before Start or after Close.
func (c *Controller) applyPollingLocked() {
	if !c.started || c.closed {
		return
	}
	interval := c.pollIntervalLocked()
	if interval == c.activePoll && (interval == 0 || c.cancelPoller != nil) {
		return
	}

	if c.cancelPoller != nil {
		c.cancelPoller()
		c.cancelPoller = nil
	}
	c.activePoll = interval
	if interval <= 0 {
		c.logger.Debug().Str("operation", "poll").Msg("polling disabled")
		return
	}

	ctx, cancel := context.WithCancel(c.ctx)
	c.cancelPoller = cancel
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.runPoller(ctx, interval)
	}()
	c.logger.Debug().Str("operation", "poll").Dur("interval", interval).Msg("polling started")
}

func (c *Controller) runPoller(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Poll errors are background noise; Poll already logged them.
			_, _ = c.Poll(ctx)
		}
	}
}
