package cache

import (
	"time"

	"github.com/rshade/tablesync/internal/remote"
)

// PageEntry is one cached page of rows.
type PageEntry struct {
	// Page is the 1-based page number.
	Page int `json:"page"`

	// Rows are the records returned for the page.
	Rows []remote.Record `json:"rows"`

	// FetchedAt is when the page was received from the server.
	FetchedAt time.Time `json:"fetched_at"`
}

// NewPageEntry creates an entry stamped with now.
func NewPageEntry(page int, rows []remote.Record, now time.Time) *PageEntry {
	return &PageEntry{
		Page:      page,
		Rows:      rows,
		FetchedAt: now,
	}
}

// Age returns how long ago the page was fetched, relative to now.
func (e *PageEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.FetchedAt)
}

// IsExpired reports whether the entry is older than ttl at now.
// A non-positive ttl never expires.
func (e *PageEntry) IsExpired(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return e.Age(now) > ttl
}

// TimeUntilExpiration returns the remaining lifetime, or 0 if expired.
func (e *PageEntry) TimeUntilExpiration(now time.Time, ttl time.Duration) time.Duration {
	remaining := ttl - e.Age(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}
