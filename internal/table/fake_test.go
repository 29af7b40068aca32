package table

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rshade/tablesync/internal/pagination"
	"github.com/rshade/tablesync/internal/remote"
)

type listCall struct {
	Params pagination.RequestParams
	Opts   remote.FetchOptions
}

type statusCall struct {
	IDs    []string
	Fields map[string]any
}

// fakeFetcher records every call and answers from overridable functions.
type fakeFetcher struct {
	mu       sync.Mutex
	lists    []listCall
	raws     []string
	deletes  [][]string
	statuses []statusCall

	listFn  func(params pagination.RequestParams) (*remote.Response, error)
	rawFn   func(url string) (*remote.Response, error)
	bulkErr error

	// failIDs rejects any bulk chunk holding one of these ids with bulkErr.
	failIDs map[string]bool
}

var _ remote.Fetcher = (*fakeFetcher)(nil)

func (f *fakeFetcher) FetchList(
	_ context.Context,
	_ string,
	params pagination.RequestParams,
	opts remote.FetchOptions,
) (*remote.Response, error) {
	f.mu.Lock()
	f.lists = append(f.lists, listCall{Params: params.Clone(), Opts: opts})
	fn := f.listFn
	f.mu.Unlock()

	if fn != nil {
		return fn(params)
	}
	return pageResponse(params.Page(), 3, "w1"), nil
}

func (f *fakeFetcher) FetchListRaw(_ context.Context, url string, _ http.Header) (*remote.Response, error) {
	f.mu.Lock()
	f.raws = append(f.raws, url)
	fn := f.rawFn
	f.mu.Unlock()

	if fn != nil {
		return fn(url)
	}
	return &remote.Response{Meta: pagination.Meta{LastUpdated: "w1"}}, nil
}

func (f *fakeFetcher) BulkDelete(_ context.Context, _ string, ids []string) (*remote.MutationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, append([]string(nil), ids...))
	if err := f.bulkErrFor(ids); err != nil {
		return nil, err
	}
	return &remote.MutationResult{Affected: len(ids)}, nil
}

func (f *fakeFetcher) BulkUpdateStatus(
	_ context.Context,
	_ string,
	ids []string,
	fields map[string]any,
) (*remote.MutationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, statusCall{IDs: append([]string(nil), ids...), Fields: fields})
	if err := f.bulkErrFor(ids); err != nil {
		return nil, err
	}
	return &remote.MutationResult{Affected: len(ids)}, nil
}

func (f *fakeFetcher) bulkErrFor(ids []string) error {
	if f.failIDs == nil {
		return f.bulkErr
	}
	for _, id := range ids {
		if f.failIDs[id] {
			return f.bulkErr
		}
	}
	return nil
}

func (f *fakeFetcher) setListFn(fn func(pagination.RequestParams) (*remote.Response, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listFn = fn
}

func (f *fakeFetcher) setRawFn(fn func(string) (*remote.Response, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rawFn = fn
}

func (f *fakeFetcher) listCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.lists)
}

func (f *fakeFetcher) rawCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.raws)
}

func (f *fakeFetcher) lastList() listCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.lists) == 0 {
		return listCall{}
	}
	return f.lists[len(f.lists)-1]
}

func (f *fakeFetcher) allLists() []listCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]listCall(nil), f.lists...)
}

// pageResponse builds a two-row page of a result set with last pages.
func pageResponse(page, last int, watermark string) *remote.Response {
	return &remote.Response{
		Rows: remote.PagePayload{
			Data: []remote.Record{
				{"id": fmt.Sprintf("p%d-1", page)},
				{"id": fmt.Sprintf("p%d-2", page)},
			},
			CurrentPage: page,
			LastPage:    last,
		},
		Meta: pagination.Meta{
			CurrentPage: page,
			LastPage:    last,
			LastUpdated: pagination.Watermark(watermark),
		},
		HasRows: true,
	}
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
