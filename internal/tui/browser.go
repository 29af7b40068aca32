package tui

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rshade/tablesync/internal/notify"
	"github.com/rshade/tablesync/internal/remote"
	"github.com/rshade/tablesync/internal/table"
	listview "github.com/rshade/tablesync/internal/tui/list"
)

// Controller is the subset of *table.Controller the browser drives.
type Controller interface {
	Start(ctx context.Context) error
	Snapshot() table.Snapshot
	SetFilter(ctx context.Context, key string, value any, immediate bool) error
	SetSort(ctx context.Context, column string) error
	LoadMore(ctx context.Context) (table.LoadResult, error)
	Reload(ctx context.Context) error
	Toggle(id string) bool
	SelectVisible()
	ClearSelection()
	Action(id table.ActionID) (table.BulkAction, bool)
	PerformBulkAction(ctx context.Context, id table.ActionID, cb table.BulkCallbacks) error
}

// SnapshotMsg carries fresh controller state.
type SnapshotMsg struct {
	Snapshot table.Snapshot
}

// NotificationMsg carries a controller notification.
type NotificationMsg struct {
	Notification notify.Notification
}

// opDoneMsg reports a finished controller call.
type opDoneMsg struct {
	op   string
	err  error
	snap table.Snapshot
}

// rowItem is one rendered row.
type rowItem struct {
	record  remote.Record
	checked bool
}

// rowLayout is shared by every copy of a Browser so the list's render
// function sees the current geometry.
type rowLayout struct {
	columns  []string
	colWidth int
}

// latestSearch serialises search updates so the newest text always lands last.
type latestSearch struct {
	mu    sync.Mutex
	value string
}

// Browser is the Bubble Tea model of the interactive table browser.
// Every controller call runs inside a tea.Cmd, never in Update, so the
// controller's OnChange hook may call Program.Send.
//
//nolint:recvcheck // Bubble Tea requires value receivers for Init/Update/View interface methods.
type Browser struct {
	ctx   context.Context
	ctrl  Controller
	title string

	layout  *rowLayout
	list    *listview.VirtualListModel[rowItem]
	input   textinput.Model
	spinner spinner.Model
	search  *latestSearch

	snap      table.Snapshot
	notice    *notify.Notification
	lastErr   error
	confirm   table.ActionID
	searching bool
	quitting  bool

	width  int
	height int
}

// NewBrowser creates a browser over ctrl. columns are the sortable columns
// shown, in order; keys 1-9 sort by the matching column.
func NewBrowser(ctx context.Context, ctrl Controller, title string, columns []string) Browser {
	layout := &rowLayout{columns: columns}
	input := textinput.New()
	input.Prompt = "Search: "
	input.Placeholder = "type to filter"
	input.CharLimit = 200

	snap := ctrl.Snapshot()
	input.SetValue(snap.Search)

	m := Browser{
		ctx:     ctx,
		ctrl:    ctrl,
		title:   title,
		layout:  layout,
		input:   input,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		search:  &latestSearch{value: snap.Search},
		snap:    snap,
		width:   defaultWidth,
		height:  defaultHeight,
	}
	m.list = listview.NewVirtualListModel(rowItems(snap), m.listHeight(), m.width, layout.render)
	m.resize(m.width, m.height)
	return m
}

// Init starts the controller and the spinner.
func (m Browser) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.run("start", func(ctx context.Context) error {
		if err := m.ctrl.Start(ctx); err != nil && !errors.Is(err, table.ErrAlreadyStarted) {
			return err
		}
		return nil
	}))
}

// Update implements tea.Model.
func (m Browser) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil
	case SnapshotMsg:
		m.apply(msg.Snapshot)
		return m, nil
	case NotificationMsg:
		n := msg.Notification
		m.notice = &n
		if n.Variant == notify.VariantSuccess {
			m.lastErr = nil
		}
		return m, nil
	case opDoneMsg:
		m.apply(msg.snap)
		m.lastErr = nil
		if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
			m.lastErr = msg.err
		}
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		switch {
		case m.confirm != "":
			return m.handleConfirm(msg)
		case m.searching:
			return m.handleSearchInput(msg)
		default:
			return m.handleListKeypress(msg)
		}
	}
	return m, nil
}

func (m Browser) handleListKeypress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case keyQuit, keyCtrlC:
		m.quitting = true
		return m, tea.Quit
	case keySlash:
		m.searching = true
		return m, m.input.Focus()
	case keyEsc:
		return m, m.run("clear_selection", func(context.Context) error {
			m.ctrl.ClearSelection()
			return nil
		})
	case keyMore:
		return m, m.loadMore()
	case keyReload:
		return m, m.run("reload", m.ctrl.Reload)
	case keyAll:
		return m, m.run("select_visible", func(context.Context) error {
			m.ctrl.SelectVisible()
			return nil
		})
	case keySpace:
		item := m.list.CurrentItem()
		if item == nil {
			return m, nil
		}
		id := item.record.ID()
		return m, m.run("toggle", func(context.Context) error {
			m.ctrl.Toggle(id)
			return nil
		})
	case keyDelete:
		return m.requestBulk(table.ActionDelete)
	case keyActive:
		return m.requestBulk(table.ActionActivate)
	case keyOff:
		return m.requestBulk(table.ActionDeactivate)
	}

	if n, err := strconv.Atoi(key); err == nil && n >= 1 && n <= 9 {
		if n > len(m.layout.columns) {
			return m, nil
		}
		column := m.layout.columns[n-1]
		return m, m.run("sort", func(ctx context.Context) error {
			return m.ctrl.SetSort(ctx, column)
		})
	}

	m.list.Update(msg)
	if m.list.AtEnd() && m.snap.HasMoreData && !m.snap.Busy() {
		return m, m.loadMore()
	}
	return m, nil
}

func (m Browser) handleSearchInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case keyCtrlC:
		m.quitting = true
		return m, tea.Quit
	case keyEnter:
		m.searching = false
		m.input.Blur()
		return m, m.applySearch(m.input.Value(), true)
	case keyEsc:
		m.searching = false
		m.input.Blur()
		return m, nil
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if after := m.input.Value(); after != before {
		return m, tea.Batch(cmd, m.applySearch(after, false))
	}
	return m, cmd
}

func (m Browser) handleConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	id := m.confirm
	m.confirm = ""
	if msg.String() != keyYes {
		return m, nil
	}
	return m, m.bulk(id)
}

// requestBulk runs a bulk action, asking first when it is destructive.
func (m Browser) requestBulk(id table.ActionID) (tea.Model, tea.Cmd) {
	if len(m.snap.Selection) == 0 {
		return m, nil
	}
	action, ok := m.ctrl.Action(id)
	if !ok {
		return m, nil
	}
	if action.Destructive {
		m.confirm = id
		return m, nil
	}
	return m, m.bulk(id)
}

func (m Browser) bulk(id table.ActionID) tea.Cmd {
	return m.run("bulk_"+string(id), func(ctx context.Context) error {
		return m.ctrl.PerformBulkAction(ctx, id, table.BulkCallbacks{})
	})
}

func (m Browser) loadMore() tea.Cmd {
	return m.run("load_more", func(ctx context.Context) error {
		_, err := m.ctrl.LoadMore(ctx)
		return err
	})
}

// applySearch records text as the latest search and pushes it to the controller.
func (m Browser) applySearch(text string, immediate bool) tea.Cmd {
	box := m.search
	box.mu.Lock()
	box.value = text
	box.mu.Unlock()

	return m.run("search", func(ctx context.Context) error {
		box.mu.Lock()
		defer box.mu.Unlock()
		return m.ctrl.SetFilter(ctx, "search", box.value, immediate)
	})
}

// run wraps a controller call in a command that reports back with a fresh snapshot.
func (m Browser) run(op string, fn func(ctx context.Context) error) tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		err := fn(ctx)
		return opDoneMsg{op: op, err: err, snap: ctrl.Snapshot()}
	}
}

func (m *Browser) apply(snap table.Snapshot) {
	m.snap = snap
	m.list.SetItems(rowItems(snap))
}

func (m *Browser) resize(width, height int) {
	m.width, m.height = width, height
	m.input.Width = max(width-len(m.input.Prompt)-2, 10)

	n := max(len(m.layout.columns), 1)
	// Four cells for the selection mark, one separator per column.
	m.layout.colWidth = min(max((width-4-n)/n, minColWidth), maxColWidth)
	m.list.SetSize(m.listHeight(), width)
}

func (m Browser) listHeight() int {
	return max(m.height-chromeHeight, minListHeight)
}

// Snapshot returns the last snapshot the browser rendered.
func (m Browser) Snapshot() table.Snapshot {
	return m.snap
}

func rowItems(snap table.Snapshot) []rowItem {
	selected := make(map[string]bool, len(snap.Selection))
	for _, id := range snap.Selection {
		selected[id] = true
	}
	items := make([]rowItem, len(snap.Rows))
	for i, r := range snap.Rows {
		items[i] = rowItem{record: r, checked: selected[r.ID()]}
	}
	return items
}
