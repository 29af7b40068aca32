// Package cache provides the in-memory page cache used by table controllers
// for infinite-scroll "load more" pages.
//
// Entries are keyed by page number and stamped with the time they were
// fetched. Key features:
//   - Fresh-only reads: Get never returns an entry older than the TTL
//   - Sweep-based eviction: a background sweeper purges stale entries periodically
//   - Coarse invalidation: Clear drops every page at once
//   - TTL configuration via environment variable or duration strings
//
// Eviction is a periodic scan rather than LRU. A controller holds at most a
// few dozen pages, so a full scan is cheap.
package cache
