package pagination

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Watermark is an opaque freshness token. Servers send it as a string or a
// number; both decode to the same textual form so tokens compare with ==.
type Watermark string

// UnmarshalJSON accepts strings, numbers and null.
func (w *Watermark) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*w = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*w = Watermark(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*w = Watermark(n.String())
	return nil
}

// Meta is the server-supplied pagination and freshness metadata.
type Meta struct {
	CurrentPage  int       `json:"current_page,omitempty"   yaml:"current_page,omitempty"`
	LastPage     int       `json:"last_page,omitempty"      yaml:"last_page,omitempty"`
	PerPage      int       `json:"per_page,omitempty"       yaml:"per_page,omitempty"`
	Total        int       `json:"total,omitempty"          yaml:"total,omitempty"`
	HasMorePages *bool     `json:"has_more_pages,omitempty" yaml:"has_more_pages,omitempty"`
	LastUpdated  Watermark `json:"last_updated,omitempty"   yaml:"last_updated,omitempty"`
}

// Merge returns m with every non-zero field of other applied on top.
func (m Meta) Merge(other Meta) Meta {
	if other.CurrentPage != 0 {
		m.CurrentPage = other.CurrentPage
	}
	if other.LastPage != 0 {
		m.LastPage = other.LastPage
	}
	if other.PerPage != 0 {
		m.PerPage = other.PerPage
	}
	if other.Total != 0 {
		m.Total = other.Total
	}
	if other.HasMorePages != nil {
		v := *other.HasMorePages
		m.HasMorePages = &v
	}
	if other.LastUpdated != "" {
		m.LastUpdated = other.LastUpdated
	}
	return m
}

// HasMore decides whether another page exists. An explicit has_more_pages
// flag wins; otherwise the payload's current/last page numbers are compared,
// then the meta's own page numbers.
func HasMore(meta Meta, current, last int) bool {
	if meta.HasMorePages != nil {
		return *meta.HasMorePages
	}
	if last > 0 {
		return current < last
	}
	if meta.LastPage > 0 {
		return meta.CurrentPage < meta.LastPage
	}
	return false
}

// Bool returns a pointer to b, for building Meta literals.
func Bool(b bool) *bool {
	return &b
}

// Summary renders "page X of Y" for status lines.
func (m Meta) Summary() string {
	if m.LastPage == 0 {
		if m.CurrentPage == 0 {
			return ""
		}
		return "page " + strconv.Itoa(m.CurrentPage)
	}
	return "page " + strconv.Itoa(m.CurrentPage) + " of " + strconv.Itoa(m.LastPage)
}

// NewMeta computes metadata for a page of a total-count result set.
func NewMeta(page, perPage, total int) Meta {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if page < MinPage {
		page = DefaultPage
	}
	lastPage := (total + perPage - 1) / perPage
	if lastPage == 0 {
		lastPage = 1
	}
	return Meta{
		CurrentPage:  page,
		LastPage:     lastPage,
		PerPage:      perPage,
		Total:        total,
		HasMorePages: Bool(page < lastPage),
	}
}
