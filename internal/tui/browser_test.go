package tui

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/tablesync/internal/notify"
	"github.com/rshade/tablesync/internal/pagination"
	"github.com/rshade/tablesync/internal/remote"
	"github.com/rshade/tablesync/internal/table"
)

type filterCall struct {
	key       string
	value     any
	immediate bool
}

// stubController records calls and serves a fixed snapshot.
type stubController struct {
	mu       sync.Mutex
	snap     table.Snapshot
	calls    []string
	filters  []filterCall
	sorts    []string
	toggled  []string
	bulks    []table.ActionID
	bulkErr  error
	startErr error
}

var _ Controller = (*stubController)(nil)

func (s *stubController) record(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

func (s *stubController) Start(context.Context) error {
	s.record("start")
	return s.startErr
}

func (s *stubController) Snapshot() table.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *stubController) SetFilter(_ context.Context, key string, value any, immediate bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = append(s.filters, filterCall{key: key, value: value, immediate: immediate})
	return nil
}

func (s *stubController) SetSort(_ context.Context, column string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sorts = append(s.sorts, column)
	return nil
}

func (s *stubController) LoadMore(context.Context) (table.LoadResult, error) {
	s.record("load_more")
	return table.LoadFetched, nil
}

func (s *stubController) Reload(context.Context) error {
	s.record("reload")
	return nil
}

func (s *stubController) Toggle(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toggled = append(s.toggled, id)
	return true
}

func (s *stubController) SelectVisible() { s.record("select_visible") }

func (s *stubController) ClearSelection() { s.record("clear_selection") }

func (s *stubController) Action(id table.ActionID) (table.BulkAction, bool) {
	a, ok := table.DefaultActions()[id]
	return a, ok
}

func (s *stubController) PerformBulkAction(_ context.Context, id table.ActionID, _ table.BulkCallbacks) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bulks = append(s.bulks, id)
	return s.bulkErr
}

func (s *stubController) callList() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func sampleSnapshot(n int) table.Snapshot {
	rows := make([]remote.Record, n)
	for i := range rows {
		rows[i] = remote.Record{"id": fmt.Sprint(i + 1), "name": fmt.Sprintf("Product %d", i+1), "price": 9.99}
	}
	return table.Snapshot{
		Rows: rows,
		Page: 1,
		Sort: pagination.SortState{Column: "name", Direction: pagination.SortOrderDesc},
		Meta: pagination.Meta{CurrentPage: 1, LastPage: 3, Total: 1234},
	}
}

func newTestBrowser(t *testing.T, snap table.Snapshot) (Browser, *stubController) {
	t.Helper()
	stub := &stubController{snap: snap}
	m := NewBrowser(context.Background(), stub, "admin.products", []string{"id", "name", "price"})
	return m, stub
}

func press(m Browser, key string) (Browser, tea.Cmd) {
	var msg tea.KeyMsg
	switch key {
	case keyEnter:
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case keyEsc:
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case keySpace:
		msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "end":
		msg = tea.KeyMsg{Type: tea.KeyEnd}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	next, cmd := m.Update(msg)
	return next.(Browser), cmd
}

// runOp executes a controller command and feeds its result back.
func runOp(t *testing.T, m Browser, cmd tea.Cmd) Browser {
	t.Helper()
	require.NotNil(t, cmd)
	msg := cmd()
	done, ok := msg.(opDoneMsg)
	require.True(t, ok, "expected opDoneMsg, got %T", msg)
	next, _ := m.Update(done)
	return next.(Browser)
}

func TestBrowser_InitialRender(t *testing.T) {
	m, _ := newTestBrowser(t, sampleSnapshot(3))
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 30})
	m = next.(Browser)

	view := m.View()
	assert.Contains(t, view, "admin.products")
	assert.Contains(t, view, "2:name ▼")
	assert.Contains(t, view, "Product 3")
	assert.Contains(t, view, "3 of 1,234 records")
	assert.Contains(t, view, "page 1/3")
}

func TestBrowser_Start(t *testing.T) {
	m, stub := newTestBrowser(t, sampleSnapshot(1))
	stub.startErr = table.ErrAlreadyStarted

	cmd := m.run("start", func(ctx context.Context) error {
		if err := m.ctrl.Start(ctx); err != nil && !errors.Is(err, table.ErrAlreadyStarted) {
			return err
		}
		return nil
	})
	m = runOp(t, m, cmd)
	assert.Equal(t, []string{"start"}, stub.callList())
	assert.NoError(t, m.lastErr)
}

func TestBrowser_Keys(t *testing.T) {
	m, stub := newTestBrowser(t, sampleSnapshot(3))

	var cmd tea.Cmd
	m, cmd = press(m, "r")
	m = runOp(t, m, cmd)

	m, cmd = press(m, "n")
	m = runOp(t, m, cmd)

	m, cmd = press(m, "v")
	m = runOp(t, m, cmd)

	m, cmd = press(m, keyEsc)
	m = runOp(t, m, cmd)

	m, cmd = press(m, "3")
	m = runOp(t, m, cmd)

	m, cmd = press(m, "9")
	assert.Nil(t, cmd, "no column bound to 9")

	m, cmd = press(m, keySpace)
	_ = runOp(t, m, cmd)

	assert.Equal(t, []string{"reload", "load_more", "select_visible", "clear_selection"}, stub.callList())
	assert.Equal(t, []string{"price"}, stub.sorts)
	assert.Equal(t, []string{"1"}, stub.toggled)

	_, cmd = press(m, "q")
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func TestBrowser_ScrollingToEndLoadsMore(t *testing.T) {
	snap := sampleSnapshot(5)
	snap.HasMoreData = true
	m, stub := newTestBrowser(t, snap)

	m, cmd := press(m, "end")
	m = runOp(t, m, cmd)
	assert.Equal(t, []string{"load_more"}, stub.callList())

	m.snap.HasMoreData = false
	_, cmd = press(m, "end")
	assert.Nil(t, cmd)
}

func TestBrowser_Search(t *testing.T) {
	m, stub := newTestBrowser(t, sampleSnapshot(3))

	m, _ = press(m, keySlash)
	require.True(t, m.searching)

	for _, r := range "pizza" {
		m, _ = press(m, string(r))
	}
	assert.Equal(t, "pizza", m.input.Value())
	assert.Equal(t, "pizza", m.search.value)

	// Typed changes are debounced by the controller.
	m = runOp(t, m, m.applySearch(m.input.Value(), false))

	m, cmd := press(m, keyEnter)
	assert.False(t, m.searching)
	_ = runOp(t, m, cmd)

	require.GreaterOrEqual(t, len(stub.filters), 2)
	last := stub.filters[len(stub.filters)-1]
	assert.Equal(t, filterCall{key: "search", value: "pizza", immediate: true}, last)
	assert.False(t, stub.filters[len(stub.filters)-2].immediate)
}

func TestBrowser_LatestSearchWins(t *testing.T) {
	m, stub := newTestBrowser(t, sampleSnapshot(0))

	first := m.applySearch("pi", false)
	second := m.applySearch("pizza", false)
	// The older command runs last but still sends the newest text.
	second()
	first()

	require.Len(t, stub.filters, 2)
	assert.Equal(t, "pizza", stub.filters[0].value)
	assert.Equal(t, "pizza", stub.filters[1].value)
}

func TestBrowser_BulkActions(t *testing.T) {
	snap := sampleSnapshot(3)
	m, stub := newTestBrowser(t, snap)

	_, cmd := press(m, "A")
	assert.Nil(t, cmd, "no selection, no action")

	snap.Selection = []string{"1", "2"}
	stub.snap = snap
	next, _ := m.Update(SnapshotMsg{Snapshot: snap})
	m = next.(Browser)
	assert.Contains(t, m.View(), "2 selected")

	m, cmd = press(m, "A")
	m = runOp(t, m, cmd)

	m, cmd = press(m, "D")
	assert.Nil(t, cmd)
	assert.Equal(t, table.ActionDelete, m.confirm)
	assert.Contains(t, m.View(), "Delete 2 records? (y/N)")

	m, cmd = press(m, "x")
	assert.Nil(t, cmd, "anything but y cancels")
	assert.Empty(t, m.confirm)

	m, _ = press(m, "D")
	m, cmd = press(m, "y")
	m = runOp(t, m, cmd)

	m, cmd = press(m, "X")
	_ = runOp(t, m, cmd)

	assert.Equal(t, []table.ActionID{table.ActionActivate, table.ActionDelete, table.ActionDeactivate}, stub.bulks)
}

func TestBrowser_NoticesAndErrors(t *testing.T) {
	m, stub := newTestBrowser(t, sampleSnapshot(1))

	next, _ := m.Update(NotificationMsg{Notification: notify.Notification{
		Title:       "Success",
		Description: "3 records deleted.",
		Variant:     notify.VariantSuccess,
	}})
	m = next.(Browser)
	assert.Contains(t, m.View(), "Success: 3 records deleted.")

	stub.bulkErr = table.ErrBulkInProgress
	stub.snap.Selection = []string{"1"}
	m.snap.Selection = []string{"1"}
	m, cmd := press(m, "A")
	m = runOp(t, m, cmd)
	assert.ErrorIs(t, m.lastErr, table.ErrBulkInProgress)
	assert.Contains(t, m.View(), "Error: ")

	next, _ = m.Update(opDoneMsg{op: "reload", err: context.Canceled})
	m = next.(Browser)
	assert.NoError(t, m.lastErr, "cancellation is not an error")
}

func TestBrowser_EmptyAndLoading(t *testing.T) {
	m, _ := newTestBrowser(t, table.Snapshot{Page: 1})
	assert.Contains(t, m.View(), "No records found.")

	next, _ := m.Update(SnapshotMsg{Snapshot: table.Snapshot{Page: 1, IsLoading: true}})
	m = next.(Browser)
	assert.Contains(t, m.View(), "Loading...")

	quit := m
	quit.quitting = true
	assert.Empty(t, quit.View())
}

func TestRelay(t *testing.T) {
	r := NewRelay()
	// Unattached relays drop messages without blocking.
	done := make(chan struct{})
	go func() {
		r.Send(SnapshotMsg{})
		r.Notifier().Notify(notify.Notification{Title: "x"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("unattached relay blocked")
	}
	assert.NotNil(t, r.OnChange())
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "1,234,567", formatCount(1234567))
	assert.Equal(t, "record", plural(1, "record", "records"))
	assert.Equal(t, "records", plural(0, "record", "records"))
	assert.Equal(t, "abc   ", fit("abc", 6))
	assert.Equal(t, "abcd…", fit("abcdefgh", 5))
	assert.Empty(t, fit("abc", 0))
}
