package pagination

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Pagination defaults and limits.
const (
	DefaultPage    = 1
	MinPage        = 1
	DefaultPerPage = 15
	MaxPerPage     = 500
)

// Wire parameter names.
const (
	ParamSearch    = "search"
	ParamSort      = "sort"
	ParamDirection = "direction"
	ParamPage      = "page"
	ParamPerPage   = "per_page"
)

// Validation errors.
var (
	ErrInvalidPage    = errors.New("page must be >= 1")
	ErrInvalidPerPage = fmt.Errorf("per_page must be between 1 and %d", MaxPerPage)
)

// reservedKeys are the whitelisted wire keys managed by the controller itself.
// Filters using these names are ignored by Clean.
//
//nolint:gochecknoglobals // Lookup table.
var reservedKeys = map[string]bool{
	ParamSearch:    true,
	ParamSort:      true,
	ParamDirection: true,
	ParamPage:      true,
	ParamPerPage:   true,
}

// IsReserved reports whether key is one of the whitelisted wire keys.
func IsReserved(key string) bool {
	return reservedKeys[key]
}

// RequestParams is the cleaned parameter set sent to the remote list fetcher.
// Values are scalars, slices, or map[string]any for structured range filters.
type RequestParams map[string]any

// Query describes the list state to clean.
type Query struct {
	Filters map[string]any
	Search  string
	Sort    SortState
	Page    int
	PerPage int
}

// Clean derives RequestParams from q. Empty values are dropped; structured
// filters (maps) are kept only when at least one sub-value is non-empty and
// lose their empty sub-values. Page is always present and at least 1.
func Clean(q Query) RequestParams {
	out := make(RequestParams, len(q.Filters)+4)

	for key, value := range q.Filters {
		if key == "" || IsReserved(key) {
			continue
		}
		if cleaned, ok := cleanValue(value); ok {
			out[key] = cleaned
		}
	}

	if search := strings.TrimSpace(q.Search); search != "" {
		out[ParamSearch] = q.Search
	}

	if !q.Sort.IsZero() {
		out[ParamSort] = q.Sort.Column
		dir := q.Sort.Direction
		if dir == "" {
			dir = SortOrderAsc
		}
		out[ParamDirection] = dir
	}

	page := q.Page
	if page < MinPage {
		page = DefaultPage
	}
	out[ParamPage] = page

	if q.PerPage > 0 {
		out[ParamPerPage] = q.PerPage
	}

	return out
}

// cleanValue returns the value to transmit and whether it is non-empty.
func cleanValue(value any) (any, bool) {
	switch v := value.(type) {
	case nil:
		return nil, false
	case string:
		return v, v != ""
	case map[string]any:
		sub := make(map[string]any, len(v))
		for k, sv := range v {
			if cleaned, ok := cleanValue(sv); ok {
				sub[k] = cleaned
			}
		}
		return sub, len(sub) > 0
	case map[string]string:
		sub := make(map[string]any, len(v))
		for k, sv := range v {
			if sv != "" {
				sub[k] = sv
			}
		}
		return sub, len(sub) > 0
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return value, rv.Len() > 0
	case reflect.Map:
		return value, rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil, false
		}
		return cleanValue(rv.Elem().Interface())
	default:
		return value, true
	}
}

// IsEmpty reports whether a filter value would be dropped by Clean.
func IsEmpty(value any) bool {
	_, ok := cleanValue(value)
	return !ok
}

// Page returns the page number carried by p, or DefaultPage.
func (p RequestParams) Page() int {
	if n, ok := p[ParamPage].(int); ok && n >= MinPage {
		return n
	}
	return DefaultPage
}

// WithPage returns a copy of p with the page set.
func (p RequestParams) WithPage(page int) RequestParams {
	out := p.Clone()
	out[ParamPage] = page
	return out
}

// Clone returns a shallow copy of p.
func (p RequestParams) Clone() RequestParams {
	out := make(RequestParams, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Values converts p to url.Values. Maps encode as key[sub]=v and slices as key[]=v.
func (p RequestParams) Values() url.Values {
	vals := url.Values{}
	for key, value := range p {
		addValue(vals, key, value)
	}
	return vals
}

// Encode renders p as a query string with keys in sorted order.
func (p RequestParams) Encode() string {
	return p.Values().Encode()
}

func addValue(vals url.Values, key string, value any) {
	switch v := value.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			addValue(vals, key+"["+k+"]", v[k])
		}
		return
	case []string:
		for _, s := range v {
			vals.Add(key+"[]", s)
		}
		return
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		for i := range rv.Len() {
			vals.Add(key+"[]", formatScalar(rv.Index(i).Interface()))
		}
		return
	}
	vals.Add(key, formatScalar(value))
}

func formatScalar(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// ValidatePage checks a page number.
func ValidatePage(page int) error {
	if page < MinPage {
		return fmt.Errorf("%w: got %d", ErrInvalidPage, page)
	}
	return nil
}

// ValidatePerPage checks a page size. Zero means "server default" and is valid.
func ValidatePerPage(perPage int) error {
	if perPage < 0 || perPage > MaxPerPage {
		return fmt.Errorf("%w: got %d", ErrInvalidPerPage, perPage)
	}
	return nil
}

// ParseFilter parses a "key=value" CLI filter expression. Range filters use
// "key.sub=value" and are returned as a nested map by MergeFilter.
func ParseFilter(expr string) (string, string, error) {
	key, value, ok := strings.Cut(expr, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", "", fmt.Errorf("invalid filter %q: expected key=value", expr)
	}
	return key, strings.TrimSpace(value), nil
}

// MergeFilter stores value under key in filters, expanding "key.sub" into a
// nested range map.
func MergeFilter(filters map[string]any, key, value string) {
	parent, sub, nested := strings.Cut(key, ".")
	if !nested {
		filters[key] = value
		return
	}
	m, ok := filters[parent].(map[string]any)
	if !ok {
		m = map[string]any{}
		filters[parent] = m
	}
	m[sub] = value
}
