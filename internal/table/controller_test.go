package table

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/tablesync/internal/notify"
	"github.com/rshade/tablesync/internal/pagination"
	"github.com/rshade/tablesync/internal/remote"
)

func newController(t *testing.T, f *fakeFetcher, cfg Config, opts ...Option) *Controller {
	t.Helper()
	if cfg.Route == "" {
		cfg.Route = "admin.products"
	}
	if cfg.DebounceDelay == 0 {
		cfg.DebounceDelay = 30 * time.Millisecond
	}
	c, err := New(cfg, f, opts...)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{}, &fakeFetcher{})
	require.ErrorIs(t, err, ErrEmptyRoute)

	_, err = New(Config{Route: "items"}, nil)
	require.ErrorIs(t, err, ErrNilFetcher)

	_, err = New(Config{Route: "items", PerPage: pagination.MaxPerPage + 1}, &fakeFetcher{})
	require.ErrorIs(t, err, pagination.ErrInvalidPerPage)

	_, err = New(Config{Route: "items", Polling: PollingOptions{Interval: -time.Second}}, &fakeFetcher{})
	require.ErrorIs(t, err, ErrInvalidPollDelay)

	c, err := New(Config{Route: " items ", InitialFilters: map[string]any{"status": "active", "search": "tea"}}, &fakeFetcher{})
	require.NoError(t, err)
	defer c.Close()

	snap := c.Snapshot()
	assert.Equal(t, map[string]any{"status": "active"}, snap.Filters)
	assert.Equal(t, "tea", snap.Search)
	assert.Equal(t, 1, snap.Page)
	assert.True(t, snap.HasMoreData)
}

func TestSetFilter_AlwaysRequestsPageOne(t *testing.T) {
	f := &fakeFetcher{}
	c := newController(t, f, Config{})
	ctx := context.Background()

	steps := []func(){
		func() { _, _ = c.LoadMore(ctx) },
		func() { require.NoError(t, c.SetFilter(ctx, "status", "active", false)) },
		func() { _, _ = c.LoadMore(ctx) },
		func() { _, _ = c.LoadMore(ctx) },
		func() { require.NoError(t, c.SetFilter(ctx, "category", "drinks", false)) },
		func() { _, _ = c.LoadMore(ctx) },
		func() { require.NoError(t, c.SetFilter(ctx, "status", "", false)) },
		func() { require.NoError(t, c.SetFilter(ctx, "search", "tea", true)) },
	}
	for _, step := range steps {
		step()
	}

	var filterCalls int
	for _, call := range f.allLists() {
		if call.Opts.PreserveScroll {
			continue // load-more
		}
		filterCalls++
		assert.Equal(t, 1, call.Params.Page(), "filter fetch must request page 1: %v", call.Params)
	}
	assert.Equal(t, 4, filterCalls)

	snap := c.Snapshot()
	assert.Equal(t, 1, snap.Page)
	assert.Empty(t, snap.CachedPages)
	assert.Equal(t, map[string]any{"category": "drinks"}, snap.Filters)
}

func TestSetFilter_ClearsSelectionAndCache(t *testing.T) {
	f := &fakeFetcher{}
	c := newController(t, f, Config{})
	ctx := context.Background()

	res, err := c.LoadMore(ctx)
	require.NoError(t, err)
	require.Equal(t, LoadFetched, res)
	c.Select("p2-1")

	require.NoError(t, c.SetFilter(ctx, "status", "active", false))

	snap := c.Snapshot()
	assert.Empty(t, snap.CachedPages)
	assert.Empty(t, snap.Selection)
	assert.True(t, snap.HasMoreData)
	assert.Equal(t, "active", f.lastList().Params["status"])
	assert.Equal(t, []string{"data", "meta"}, f.lastList().Opts.Only)
}

func TestSearch_DebounceCoalesces(t *testing.T) {
	f := &fakeFetcher{}
	c := newController(t, f, Config{DebounceDelay: 50 * time.Millisecond})
	ctx := context.Background()

	for _, v := range []string{"p", "pi", "piz", "pizz", "pizza"} {
		require.NoError(t, c.SetFilter(ctx, "search", v, false))
	}
	assert.Equal(t, 0, f.listCount(), "nothing fires inside the debounce window")
	assert.True(t, c.Snapshot().SearchPending)

	require.Eventually(t, func() bool { return f.listCount() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(120 * time.Millisecond)

	assert.Equal(t, 1, f.listCount())
	assert.Equal(t, "pizza", f.lastList().Params[pagination.ParamSearch])
	assert.False(t, c.Snapshot().SearchPending)
}

func TestSearch_ImmediateBypassesDebounce(t *testing.T) {
	f := &fakeFetcher{}
	c := newController(t, f, Config{DebounceDelay: time.Hour})
	ctx := context.Background()

	require.NoError(t, c.SetFilter(ctx, "search", "piz", false))
	require.NoError(t, c.SetFilter(ctx, "search", "pizza", true))

	assert.Equal(t, 1, f.listCount(), "immediate search fetches before returning")
	assert.Equal(t, "pizza", f.lastList().Params[pagination.ParamSearch])
	assert.False(t, c.Snapshot().SearchPending, "immediate search cancels the pending one")
}

func TestSearch_FlushAndBlank(t *testing.T) {
	f := &fakeFetcher{}
	c := newController(t, f, Config{DebounceDelay: time.Hour})
	ctx := context.Background()

	require.NoError(t, c.SetFilter(ctx, "search", "   ", false))
	assert.True(t, c.FlushSearch())
	assert.False(t, c.FlushSearch())

	require.Equal(t, 1, f.listCount())
	assert.NotContains(t, f.lastList().Params, pagination.ParamSearch)
}

func TestPizzaScenario(t *testing.T) {
	f := &fakeFetcher{}
	c := newController(t, f, Config{
		InitialFilters: map[string]any{"status": "active"},
		DebounceDelay:  40 * time.Millisecond,
	})
	ctx := context.Background()

	require.NoError(t, c.SetFilter(ctx, "search", "pizza", false))
	require.Eventually(t, func() bool { return f.listCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, pagination.RequestParams{
		"status": "active",
		"search": "pizza",
		"page":   1,
	}, f.lastList().Params)

	// Scroll once so there is something to discard.
	res, err := c.LoadMore(ctx)
	require.NoError(t, err)
	require.Equal(t, LoadFetched, res)
	require.Equal(t, []int{2}, c.Snapshot().CachedPages)

	require.NoError(t, c.SetSort(ctx, "name"))
	assert.Equal(t, 3, f.listCount())
	assert.Equal(t, pagination.RequestParams{
		"status":    "active",
		"search":    "pizza",
		"page":      1,
		"sort":      "name",
		"direction": "asc",
	}, f.lastList().Params)
	assert.Empty(t, c.Snapshot().CachedPages)
}

func TestSetSort(t *testing.T) {
	f := &fakeFetcher{}
	c := newController(t, f, Config{Columns: []string{"name", "price"}})
	ctx := context.Background()

	require.NoError(t, c.SetSort(ctx, "name"))
	assert.Equal(t, pagination.SortState{Column: "name", Direction: "asc"}, c.Snapshot().Sort)

	require.NoError(t, c.SetSort(ctx, "name"))
	assert.Equal(t, "desc", f.lastList().Params[pagination.ParamDirection])

	require.NoError(t, c.SetSort(ctx, "name"))
	assert.Equal(t, "asc", f.lastList().Params[pagination.ParamDirection])

	require.NoError(t, c.SetSort(ctx, "price"))
	assert.Equal(t, pagination.SortState{Column: "price", Direction: "asc"}, c.Snapshot().Sort)

	require.ErrorIs(t, c.SetSort(ctx, "secret"), pagination.ErrInvalidSortField)
	require.ErrorIs(t, c.SetSort(ctx, " "), pagination.ErrEmptySortField)
	assert.Equal(t, 4, f.listCount())
}

func TestLoadMore_InFlightRequestsOnce(t *testing.T) {
	f := &fakeFetcher{}
	release := make(chan struct{})
	f.setListFn(func(p pagination.RequestParams) (*remote.Response, error) {
		<-release
		return pageResponse(p.Page(), 3, "w1"), nil
	})
	c := newController(t, f, Config{})
	ctx := context.Background()

	done := make(chan LoadResult, 1)
	go func() {
		res, _ := c.LoadMore(ctx)
		done <- res
	}()
	require.Eventually(t, func() bool { return c.Snapshot().IsLoadingMore }, time.Second, time.Millisecond)

	res, err := c.LoadMore(ctx)
	require.NoError(t, err)
	assert.Equal(t, LoadSkipped, res)

	close(release)
	assert.Equal(t, LoadFetched, <-done)
	assert.Equal(t, 1, f.listCount())
	assert.Equal(t, 2, f.lastList().Params.Page())
	assert.False(t, c.Snapshot().IsLoadingMore)
}

func TestLoadMore_CacheRoundTrip(t *testing.T) {
	f := &fakeFetcher{}
	c := newController(t, f, Config{})
	ctx := context.Background()

	res, err := c.LoadMore(ctx)
	require.NoError(t, err)
	require.Equal(t, LoadFetched, res)

	require.NoError(t, c.SeekPage(1))
	res, err = c.LoadMore(ctx)
	require.NoError(t, err)
	assert.Equal(t, LoadFromCache, res)
	assert.Equal(t, 1, f.listCount(), "cached page served without a network call")
	assert.Equal(t, 2, c.Snapshot().Page)

	require.ErrorIs(t, c.SeekPage(5), ErrPageNotLoaded)
	require.ErrorIs(t, c.SeekPage(0), pagination.ErrInvalidPage)
}

func TestLoadMore_NotReusedAfterSort(t *testing.T) {
	f := &fakeFetcher{}
	c := newController(t, f, Config{})
	ctx := context.Background()

	_, err := c.LoadMore(ctx)
	require.NoError(t, err)
	require.NoError(t, c.SetSort(ctx, "name"))

	res, err := c.LoadMore(ctx)
	require.NoError(t, err)
	assert.Equal(t, LoadFetched, res)
	assert.Equal(t, 3, f.listCount())
	assert.Equal(t, "name", f.lastList().Params[pagination.ParamSort])
	assert.Equal(t, 2, f.lastList().Params.Page())
}

func TestLoadMore_HasMore(t *testing.T) {
	tests := []struct {
		name string
		resp *remote.Response
		want bool
	}{
		{"explicit flag wins", &remote.Response{
			Rows:    remote.PagePayload{Data: []remote.Record{{"id": 1}}, CurrentPage: 2, LastPage: 9},
			Meta:    pagination.Meta{HasMorePages: pagination.Bool(false)},
			HasRows: true,
		}, false},
		{"current below last", pageResponse(2, 3, ""), true},
		{"last page reached", pageResponse(2, 2, ""), false},
		{"no paging info", &remote.Response{
			Rows:    remote.PagePayload{Data: []remote.Record{{"id": 1}}},
			HasRows: true,
		}, false},
		{"empty page", &remote.Response{HasRows: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeFetcher{}
			f.setListFn(func(pagination.RequestParams) (*remote.Response, error) { return tt.resp, nil })
			c := newController(t, f, Config{})

			res, err := c.LoadMore(context.Background())
			require.NoError(t, err)
			assert.Equal(t, LoadFetched, res)
			assert.Equal(t, tt.want, c.Snapshot().HasMoreData)
		})
	}
}

func TestLoadMore_FailureStopsPagination(t *testing.T) {
	f := &fakeFetcher{}
	f.setListFn(func(pagination.RequestParams) (*remote.Response, error) {
		return nil, errors.New("connection reset")
	})
	rec := notify.NewRecorder()
	c := newController(t, f, Config{}, WithNotifier(rec))
	ctx := context.Background()

	res, err := c.LoadMore(ctx)
	require.Error(t, err)
	assert.Equal(t, LoadFailed, res)

	snap := c.Snapshot()
	assert.False(t, snap.HasMoreData)
	assert.False(t, snap.IsLoadingMore)
	assert.Empty(t, snap.CachedPages)
	assert.Empty(t, rec.All(), "load-more failures are not surfaced as toasts")

	res, err = c.LoadMore(ctx)
	require.NoError(t, err)
	assert.Equal(t, LoadSkipped, res)
	assert.Equal(t, 1, f.listCount())
}

func TestLoadMore_DiscardedWhenViewChanges(t *testing.T) {
	f := &fakeFetcher{}
	release := make(chan struct{})
	f.setListFn(func(p pagination.RequestParams) (*remote.Response, error) {
		if p.Page() == 2 {
			<-release
		}
		return pageResponse(p.Page(), 3, "w1"), nil
	})
	c := newController(t, f, Config{})
	ctx := context.Background()

	done := make(chan LoadResult, 1)
	go func() {
		res, _ := c.LoadMore(ctx)
		done <- res
	}()
	require.Eventually(t, func() bool { return c.Snapshot().IsLoadingMore }, time.Second, time.Millisecond)

	require.NoError(t, c.SetFilter(ctx, "status", "active", false))
	close(release)

	assert.Equal(t, LoadDiscarded, <-done)
	snap := c.Snapshot()
	assert.Empty(t, snap.CachedPages)
	assert.Equal(t, 1, snap.Page)
}

func TestLoadMore_ExpiredPagesAreRefetched(t *testing.T) {
	f := &fakeFetcher{}
	clock := newFakeClock()
	c := newController(t, f, Config{CacheTTL: time.Minute}, WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, c.Reload(ctx))
	_, err := c.LoadMore(ctx)
	require.NoError(t, err)
	assert.Len(t, c.Snapshot().Rows, 4)

	clock.Advance(2 * time.Minute)

	snap := c.Snapshot()
	assert.Equal(t, 1, snap.Page, "cursor follows expired pages back")
	assert.Len(t, snap.Rows, 2)

	res, err := c.LoadMore(ctx)
	require.NoError(t, err)
	assert.Equal(t, LoadFetched, res)
	assert.Equal(t, 3, f.listCount())
}

func TestViewFetch_StaleResponseDiscarded(t *testing.T) {
	f := &fakeFetcher{}
	release := make(chan struct{})
	f.setListFn(func(p pagination.RequestParams) (*remote.Response, error) {
		resp := pageResponse(1, 1, "")
		if p[pagination.ParamSearch] == "old" {
			<-release
			resp.Rows.Data = []remote.Record{{"id": "old"}}
			return resp, nil
		}
		resp.Rows.Data = []remote.Record{{"id": "new"}}
		return resp, nil
	})
	c := newController(t, f, Config{})
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, c.SetFilter(ctx, "search", "old", true))
	}()
	require.Eventually(t, func() bool { return f.listCount() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, c.SetFilter(ctx, "search", "new", true))
	close(release)
	wg.Wait()

	snap := c.Snapshot()
	require.Len(t, snap.Rows, 1)
	assert.Equal(t, "new", snap.Rows[0].ID())
	assert.Equal(t, "new", snap.Search)
	assert.False(t, snap.IsLoading)
}

func TestViewFetch_ErrorKeepsState(t *testing.T) {
	f := &fakeFetcher{}
	rec := notify.NewRecorder()
	c := newController(t, f, Config{}, WithNotifier(rec))
	ctx := context.Background()

	require.NoError(t, c.Reload(ctx))
	before := c.Snapshot()
	require.Len(t, before.Rows, 2)

	f.setListFn(func(pagination.RequestParams) (*remote.Response, error) {
		return nil, &remote.APIError{StatusCode: 422, Errors: map[string][]string{"sort": {"The sort field is invalid."}}}
	})
	require.Error(t, c.SetSort(ctx, "name"))

	after := c.Snapshot()
	assert.Equal(t, before.Rows, after.Rows)
	assert.Equal(t, before.Meta, after.Meta)
	assert.False(t, after.IsLoading)

	last, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, notify.VariantDestructive, last.Variant)
	assert.Equal(t, "The sort field is invalid.", last.Description)

	f.setListFn(func(pagination.RequestParams) (*remote.Response, error) {
		return nil, errors.New("dial tcp: refused")
	})
	require.Error(t, c.SetFilter(ctx, "status", "x", false))
	last, _ = rec.Last()
	assert.Equal(t, msgLoadFailed, last.Description)
}

func TestViewFetch_PartialResponseKeepsRows(t *testing.T) {
	f := &fakeFetcher{}
	c := newController(t, f, Config{})
	ctx := context.Background()

	require.NoError(t, c.Reload(ctx))
	f.setListFn(func(pagination.RequestParams) (*remote.Response, error) {
		return &remote.Response{Meta: pagination.Meta{Total: 40}}, nil
	})
	require.NoError(t, c.Reload(ctx))

	snap := c.Snapshot()
	assert.Len(t, snap.Rows, 2)
	assert.Equal(t, 40, snap.Meta.Total)
	assert.Equal(t, pagination.Watermark("w1"), snap.Meta.LastUpdated, "watermark survives a response without one")
}

func TestResetFilters(t *testing.T) {
	f := &fakeFetcher{}
	c := newController(t, f, Config{InitialFilters: map[string]any{"status": "active"}})
	ctx := context.Background()

	require.NoError(t, c.SetFilters(ctx, map[string]any{"status": "draft", "search": "tea", "category": "drinks"}))
	assert.Equal(t, 1, f.listCount())
	require.NoError(t, c.SetSort(ctx, "name"))

	require.NoError(t, c.ResetFilters(ctx))
	assert.Equal(t, pagination.RequestParams{"status": "active", "page": 1}, f.lastList().Params)

	snap := c.Snapshot()
	assert.Empty(t, snap.Search)
	assert.True(t, snap.Sort.IsZero())
}

func TestOnChangeAndLifecycle(t *testing.T) {
	f := &fakeFetcher{}
	var mu sync.Mutex
	var snaps []Snapshot
	c := newController(t, f, Config{}, WithOnChange(func(s Snapshot) {
		mu.Lock()
		snaps = append(snaps, s)
		mu.Unlock()
	}))
	ctx := context.Background()

	require.NoError(t, c.Start(ctx))
	require.ErrorIs(t, c.Start(ctx), ErrAlreadyStarted)

	mu.Lock()
	require.GreaterOrEqual(t, len(snaps), 2)
	assert.True(t, snaps[0].IsLoading)
	assert.False(t, snaps[len(snaps)-1].IsLoading)
	mu.Unlock()

	assert.Empty(t, f.lastList().Opts.Only, "initial load asks for every prop")

	c.Close()
	c.Close()
	require.ErrorIs(t, c.SetFilter(ctx, "a", "b", false), ErrClosed)
	require.ErrorIs(t, c.Reload(ctx), ErrClosed)
	_, err := c.LoadMore(ctx)
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, c.Start(ctx), ErrClosed)
}

func TestStart_ContextCancelCloses(t *testing.T) {
	f := &fakeFetcher{}
	c := newController(t, f, Config{})
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, c.Start(ctx))
	cancel()

	require.Eventually(t, func() bool {
		return errors.Is(c.Reload(context.Background()), ErrClosed)
	}, time.Second, 5*time.Millisecond)
}

func TestSnapshot_RowsIncludeCachedPages(t *testing.T) {
	f := &fakeFetcher{}
	c := newController(t, f, Config{})
	ctx := context.Background()

	require.NoError(t, c.Reload(ctx))
	_, err := c.LoadMore(ctx)
	require.NoError(t, err)
	_, err = c.LoadMore(ctx)
	require.NoError(t, err)

	snap := c.Snapshot()
	ids := make([]string, 0, len(snap.Rows))
	for _, r := range snap.Rows {
		ids = append(ids, r.ID())
	}
	assert.Equal(t, []string{"p1-1", "p1-2", "p2-1", "p2-2", "p3-1", "p3-2"}, ids)
	assert.Equal(t, 3, snap.Page)
	assert.False(t, snap.HasMoreData)
	assert.Equal(t, "page 3 of 3", snap.Meta.Summary())
}

func TestNew_InitialSort(t *testing.T) {
	_, err := New(Config{
		Route:       "items",
		Columns:     []string{"name"},
		InitialSort: pagination.SortState{Column: "secret", Direction: pagination.SortOrderAsc},
	}, &fakeFetcher{})
	require.ErrorIs(t, err, pagination.ErrInvalidSortField)

	_, err = New(Config{
		Route:       "items",
		InitialSort: pagination.SortState{Column: "name", Direction: "up"},
	}, &fakeFetcher{})
	require.ErrorIs(t, err, pagination.ErrInvalidSortOrder)

	f := &fakeFetcher{}
	c := newController(t, f, Config{InitialSort: pagination.SortState{Column: "price", Direction: pagination.SortOrderDesc}})
	require.NoError(t, c.Reload(context.Background()))
	params := f.lastList().Params
	assert.Equal(t, "price", params["sort"])
	assert.Equal(t, "desc", params["direction"])

	// Sorting the same column again flips it back to ascending.
	require.NoError(t, c.SetSort(context.Background(), "price"))
	assert.Equal(t, pagination.SortOrderAsc, c.Snapshot().Sort.Direction)
}

func TestStart_PrefetchDoesNotFetchAhead(t *testing.T) {
	f := &fakeFetcher{}
	c := newController(t, f, Config{EnablePrefetch: true})
	ctx := context.Background()

	require.NoError(t, c.Start(ctx))
	assert.Equal(t, 1, f.listCount())
	assert.Equal(t, 1, f.lastList().Params.Page())

	res, err := c.LoadMore(ctx)
	require.NoError(t, err)
	assert.Equal(t, LoadFetched, res, "page two was not prefetched")
}

func TestSnapshot_DoesNotMoveCursor(t *testing.T) {
	f := &fakeFetcher{}
	clock := newFakeClock()
	c := newController(t, f, Config{CacheTTL: time.Minute}, WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, c.Reload(ctx))
	_, err := c.LoadMore(ctx)
	require.NoError(t, err)
	clock.Advance(2 * time.Minute)

	for range 2 {
		assert.Equal(t, 1, c.Snapshot().Page)
	}
	c.mu.Lock()
	cursor := c.page
	c.mu.Unlock()
	assert.Equal(t, 2, cursor, "reading a snapshot leaves the cursor alone")

	res, err := c.LoadMore(ctx)
	require.NoError(t, err)
	assert.Equal(t, LoadFetched, res)
	assert.Equal(t, 2, f.lastList().Params.Page(), "load-more continues after the last page still held")
	assert.Equal(t, 2, c.Snapshot().Page)
}
