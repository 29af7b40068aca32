package listview

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// defaultBufferSize is the number of extra rows rendered above/below the viewport.
const defaultBufferSize = 5

// RenderFunc renders one item. cursor reports whether the item is under the cursor.
type RenderFunc[T any] func(item T, cursor bool) string

// VirtualListModel is a cursor-driven list that renders only its visible window.
type VirtualListModel[T any] struct {
	items      []T
	renderFunc RenderFunc[T]

	cursor      int
	visibleFrom int
	visibleTo   int

	height     int
	width      int
	bufferSize int
}

// NewVirtualListModel creates a list over items with a viewport of height rows.
func NewVirtualListModel[T any](items []T, height, width int, renderFunc RenderFunc[T]) *VirtualListModel[T] {
	m := &VirtualListModel[T]{
		items:      items,
		renderFunc: renderFunc,
		height:     height,
		width:      width,
		bufferSize: defaultBufferSize,
	}
	m.updateVisibleRange()
	return m
}

// Init implements tea.Model.
func (m *VirtualListModel[T]) Init() tea.Cmd {
	return nil
}

// Update handles navigation keys and resizes.
func (m *VirtualListModel[T]) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.SetSize(msg.Height, msg.Width)
	}
	return m, nil
}

// handleKey moves the cursor. Unknown keys are ignored.
//
//nolint:exhaustive // Only navigation keys matter.
func (m *VirtualListModel[T]) handleKey(msg tea.KeyMsg) {
	if len(m.items) == 0 {
		return
	}

	switch msg.Type {
	case tea.KeyUp:
		m.move(-1)
	case tea.KeyDown:
		m.move(1)
	case tea.KeyPgUp:
		m.move(-max(m.height, 1))
	case tea.KeyPgDown:
		m.move(max(m.height, 1))
	case tea.KeyHome:
		m.SetCursor(0)
	case tea.KeyEnd:
		m.SetCursor(len(m.items) - 1)
	case tea.KeyRunes:
		if len(msg.Runes) == 1 {
			switch msg.Runes[0] {
			case 'j':
				m.move(1)
			case 'k':
				m.move(-1)
			case 'g':
				m.SetCursor(0)
			case 'G':
				m.SetCursor(len(m.items) - 1)
			}
		}
	}
}

func (m *VirtualListModel[T]) move(delta int) {
	m.SetCursor(m.cursor + delta)
}

// updateVisibleRange keeps the cursor inside [visibleFrom, visibleTo),
// centring it when the list is longer than the viewport.
func (m *VirtualListModel[T]) updateVisibleRange() {
	if len(m.items) == 0 {
		m.visibleFrom, m.visibleTo = 0, 0
		return
	}

	half := m.height / 2
	from := m.cursor - half
	to := from + m.height

	if from < 0 {
		from = 0
		to = m.height
	}
	if to > len(m.items) {
		to = len(m.items)
		from = max(to-m.height, 0)
	}

	m.visibleFrom, m.visibleTo = from, to
}

// View renders the visible window plus the buffer.
func (m *VirtualListModel[T]) View() string {
	if len(m.items) == 0 {
		return ""
	}

	from := max(m.visibleFrom-m.bufferSize, 0)
	to := min(m.visibleTo+m.bufferSize, len(m.items))

	lines := make([]string, 0, to-from)
	for i := from; i < to; i++ {
		lines = append(lines, m.renderFunc(m.items[i], i == m.cursor))
	}
	return strings.Join(lines, "\n")
}

// SetItems replaces the items. The cursor stays on the same index, clamped
// to the new length.
func (m *VirtualListModel[T]) SetItems(items []T) {
	m.items = items
	m.SetCursor(m.cursor)
}

// Items returns the current items.
func (m *VirtualListModel[T]) Items() []T {
	return m.items
}

// SetSize changes the viewport dimensions.
func (m *VirtualListModel[T]) SetSize(height, width int) {
	m.height = max(height, 0)
	m.width = width
	m.updateVisibleRange()
}

// SetBufferSize changes how many rows outside the viewport are rendered.
func (m *VirtualListModel[T]) SetBufferSize(n int) {
	m.bufferSize = max(n, 0)
}

// ItemCount returns the number of items.
func (m *VirtualListModel[T]) ItemCount() int {
	return len(m.items)
}

// Cursor returns the cursor index.
func (m *VirtualListModel[T]) Cursor() int {
	return m.cursor
}

// SetCursor moves the cursor, clamped to valid bounds.
func (m *VirtualListModel[T]) SetCursor(index int) {
	switch {
	case len(m.items) == 0, index < 0:
		m.cursor = 0
	case index >= len(m.items):
		m.cursor = len(m.items) - 1
	default:
		m.cursor = index
	}
	m.updateVisibleRange()
}

// AtEnd reports whether the cursor is on the last item.
func (m *VirtualListModel[T]) AtEnd() bool {
	return len(m.items) > 0 && m.cursor == len(m.items)-1
}

// VisibleFrom returns the first visible item index (inclusive).
func (m *VirtualListModel[T]) VisibleFrom() int {
	return m.visibleFrom
}

// VisibleTo returns the last visible item index (exclusive).
func (m *VirtualListModel[T]) VisibleTo() int {
	return m.visibleTo
}

// Height returns the viewport height.
func (m *VirtualListModel[T]) Height() int {
	return m.height
}

// Width returns the viewport width.
func (m *VirtualListModel[T]) Width() int {
	return m.width
}

// CurrentItem returns the item under the cursor, or nil when the list is empty.
func (m *VirtualListModel[T]) CurrentItem() *T {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return nil
	}
	return &m.items[m.cursor]
}
