package pagination

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sort directions.
const (
	SortOrderAsc  = "asc"
	SortOrderDesc = "desc"
)

// Sort errors.
var (
	ErrInvalidSortOrder  = errors.New("sort order must be 'asc' or 'desc'")
	ErrInvalidSortFormat = errors.New("invalid sort format: use 'column' or 'column:order' (e.g., 'name:desc')")
	ErrEmptySortField    = errors.New("sort column cannot be empty")
	ErrInvalidSortField  = errors.New("invalid sort column")
)

// sortPartsMax is the maximum number of parts in a sort string (column:order).
const sortPartsMax = 2

// SortState is the current sort column and direction. An empty Column means
// the server default ordering.
type SortState struct {
	Column    string `json:"column"    yaml:"column"`
	Direction string `json:"direction" yaml:"direction"`
}

// Toggle returns the state after the user picks column. Picking the current
// column while ascending flips to descending; anything else sorts the picked
// column ascending.
func (s SortState) Toggle(column string) SortState {
	if column == s.Column && s.Direction == SortOrderAsc {
		return SortState{Column: column, Direction: SortOrderDesc}
	}
	return SortState{Column: column, Direction: SortOrderAsc}
}

// IsZero reports whether no column is selected.
func (s SortState) IsZero() bool {
	return s.Column == ""
}

// String renders the state as "column:direction".
func (s SortState) String() string {
	if s.IsZero() {
		return ""
	}
	return s.Column + ":" + s.Direction
}

// ParseSort parses "column" or "column:order". The order defaults to asc.
func ParseSort(sortStr string) (SortState, error) {
	if strings.TrimSpace(sortStr) == "" {
		return SortState{}, nil
	}

	parts := strings.Split(sortStr, ":")
	var state SortState
	switch len(parts) {
	case 1:
		state.Column = strings.TrimSpace(parts[0])
		state.Direction = SortOrderAsc
	case sortPartsMax:
		state.Column = strings.TrimSpace(parts[0])
		state.Direction = strings.ToLower(strings.TrimSpace(parts[1]))
	default:
		return SortState{}, fmt.Errorf("%w: %q", ErrInvalidSortFormat, sortStr)
	}

	if state.Column == "" {
		return SortState{}, ErrEmptySortField
	}
	if state.Direction != SortOrderAsc && state.Direction != SortOrderDesc {
		return SortState{}, fmt.Errorf("%w: got %q", ErrInvalidSortOrder, state.Direction)
	}

	return state, nil
}

// Columns is the set of columns a list can be sorted by, in display order.
type Columns struct {
	order []string
	valid map[string]bool
}

// NewColumns creates a column set. Duplicates are ignored.
func NewColumns(names ...string) *Columns {
	c := &Columns{valid: make(map[string]bool, len(names))}
	for _, n := range names {
		if n == "" || c.valid[n] {
			continue
		}
		c.valid[n] = true
		c.order = append(c.order, n)
	}
	return c
}

// IsValid reports whether column may be sorted on. An empty set accepts any column.
func (c *Columns) IsValid(column string) bool {
	if c == nil || len(c.valid) == 0 {
		return true
	}
	return c.valid[column]
}

// Validate returns ErrInvalidSortField when column is not sortable.
func (c *Columns) Validate(column string) error {
	if !c.IsValid(column) {
		return fmt.Errorf("%w: %q (valid: %s)", ErrInvalidSortField, column, strings.Join(c.Sorted(), ", "))
	}
	return nil
}

// Names returns the columns in display order.
func (c *Columns) Names() []string {
	if c == nil {
		return nil
	}
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Sorted returns the columns alphabetically.
func (c *Columns) Sorted() []string {
	out := c.Names()
	sort.Strings(out)
	return out
}

// At returns the column at a 0-based display index.
func (c *Columns) At(i int) (string, bool) {
	if c == nil || i < 0 || i >= len(c.order) {
		return "", false
	}
	return c.order[i], true
}
