package cache

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rshade/tablesync/internal/remote"
)

// Common cache errors.
var (
	ErrInvalidPage = errors.New("cache page must be >= 1")
)

// PageStore is a page-number keyed cache with TTL freshness.
// Safe for concurrent access.
type PageStore struct {
	// ttl is the maximum age of a servable entry.
	ttl time.Duration

	// now returns the current time; replaced in tests.
	now func() time.Time

	// entries maps page number to entry.
	entries map[int]*PageEntry

	// mu protects entries.
	mu sync.RWMutex
}

// StoreOption configures a PageStore.
type StoreOption func(*PageStore)

// WithClock overrides the time source.
func WithClock(now func() time.Time) StoreOption {
	return func(s *PageStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewPageStore creates an empty store. A non-positive ttl uses DefaultTTL.
func NewPageStore(ttl time.Duration, opts ...StoreOption) *PageStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &PageStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[int]*PageEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the entry for page if present and fresh.
func (s *PageStore) Get(page int) (*PageEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[page]
	if !ok || entry.IsExpired(s.now(), s.ttl) {
		return nil, false
	}
	return entry, true
}

// Put stores rows for page, stamped with the current time.
func (s *PageStore) Put(page int, rows []remote.Record) error {
	if page < 1 {
		return ErrInvalidPage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[page] = NewPageEntry(page, rows, s.now())
	return nil
}

// Delete removes page. Missing pages are ignored.
func (s *PageStore) Delete(page int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, page)
}

// Clear removes every entry and returns how many were dropped.
func (s *PageStore) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.entries)
	s.entries = make(map[int]*PageEntry)
	return n
}

// Sweep removes expired entries and returns how many were removed.
func (s *PageStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for page, entry := range s.entries {
		if entry.IsExpired(now, s.ttl) {
			delete(s.entries, page)
			removed++
		}
	}
	return removed
}

// Len returns the number of entries, including expired ones not yet swept.
func (s *PageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Pages returns the cached page numbers in ascending order.
func (s *PageStore) Pages() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pages := make([]int, 0, len(s.entries))
	for page := range s.entries {
		pages = append(pages, page)
	}
	sort.Ints(pages)
	return pages
}

// RowsThrough concatenates the fresh rows of pages from..to inclusive,
// stopping at the first gap.
func (s *PageStore) RowsThrough(from, to int) []remote.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	var rows []remote.Record
	for page := from; page <= to; page++ {
		entry, ok := s.entries[page]
		if !ok || entry.IsExpired(now, s.ttl) {
			break
		}
		rows = append(rows, entry.Rows...)
	}
	return rows
}

// TTL returns the configured freshness window.
func (s *PageStore) TTL() time.Duration {
	return s.ttl
}

// RunSweeper calls Sweep every interval until ctx is cancelled.
func RunSweeper(ctx context.Context, s *PageStore, interval time.Duration, logger zerolog.Logger) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.Sweep(); removed > 0 {
				logger.Debug().
					Str("component", "cache").
					Str("operation", "sweep").
					Int("removed", removed).
					Int("remaining", s.Len()).
					Msg("purged expired pages")
			}
		}
	}
}
