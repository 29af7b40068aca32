package table

import (
	"time"

	"github.com/rshade/tablesync/internal/pagination"
	"github.com/rshade/tablesync/internal/remote"
)

// Snapshot is an immutable view of controller state for rendering.
type Snapshot struct {
	// Rows are page one followed by every cached page up to Page.
	Rows []remote.Record

	Filters   map[string]any
	Search    string
	Sort      pagination.SortState
	Page      int
	Meta      pagination.Meta
	Selection []string
	Params    pagination.RequestParams

	IsLoading     bool
	IsLoadingMore bool
	IsBulkBusy    bool
	HasMoreData   bool
	SearchPending bool

	PollInterval time.Duration
	CachedPages  []int
}

// IsSelected reports whether id is in the selection.
func (s Snapshot) IsSelected(id string) bool {
	for _, sel := range s.Selection {
		if sel == id {
			return true
		}
	}
	return false
}

// Busy reports whether any request is in flight.
func (s Snapshot) Busy() bool {
	return s.IsLoading || s.IsLoadingMore || s.IsBulkBusy
}

func (c *Controller) snapshotLocked() Snapshot {
	page := c.visiblePageLocked()
	filters := make(map[string]any, len(c.filters))
	for k, v := range c.filters {
		filters[k] = v
	}

	return Snapshot{
		Rows:          c.visibleRowsLocked(),
		Filters:       filters,
		Search:        c.search,
		Sort:          c.sort,
		Page:          page,
		Meta:          c.meta,
		Selection:     c.selectionLocked(),
		Params:        c.paramsLocked(pagination.DefaultPage),
		IsLoading:     c.loading,
		IsLoadingMore: c.loadingMore,
		IsBulkBusy:    c.bulkBusy,
		HasMoreData:   c.hasMore,
		SearchPending: c.debounce.Pending(),
		PollInterval:  c.pollIntervalLocked(),
		CachedPages:   c.pages.Pages(),
	}
}

func (c *Controller) visibleRowsLocked() []remote.Record {
	page := c.visiblePageLocked()
	rows := make([]remote.Record, 0, len(c.rows))
	rows = append(rows, c.rows...)
	if page > pagination.DefaultPage {
		rows = append(rows, c.pages.RowsThrough(pagination.DefaultPage+1, page)...)
	}
	return rows
}
