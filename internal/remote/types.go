package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rshade/tablesync/internal/pagination"
)

// DefaultDataKey is the props field holding rows when none is configured.
const DefaultDataKey = "data"

// MetaKey is the props field holding pagination metadata.
const MetaKey = "meta"

// PollingKey is the props field holding server polling configuration.
const PollingKey = "polling"

// Record is one row as decoded from JSON.
type Record map[string]any

// ID returns the record identifier as a string, or "" when absent.
func (r Record) ID() string {
	switch v := r["id"].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case json.Number:
		return v.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// String returns the field value formatted for display.
func (r Record) String(field string) string {
	switch v := r[field].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// PagePayload is one page of rows plus the paginator's own page numbers.
type PagePayload struct {
	Data        []Record `json:"data"`
	CurrentPage int      `json:"current_page,omitempty"`
	LastPage    int      `json:"last_page,omitempty"`
	PerPage     int      `json:"per_page,omitempty"`
	Total       int      `json:"total,omitempty"`
}

// UnmarshalJSON accepts either a paginator object or a bare array of rows.
func (p *PagePayload) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		return json.Unmarshal(data, &p.Data)
	}
	type alias PagePayload
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*p = PagePayload(a)
	return nil
}

// PollingConfig is the server-supplied polling configuration.
type PollingConfig struct {
	// IntervalMS is the polling interval in milliseconds. Zero disables polling.
	IntervalMS int `json:"interval"`

	// Endpoint overrides the URL polled; empty means the list route.
	Endpoint string `json:"endpoint,omitempty"`
}

// Interval returns the polling interval as a duration.
func (p *PollingConfig) Interval() time.Duration {
	if p == nil || p.IntervalMS <= 0 {
		return 0
	}
	return time.Duration(p.IntervalMS) * time.Millisecond
}

// Response is a decoded list response.
type Response struct {
	Rows    PagePayload
	Meta    pagination.Meta
	Polling *PollingConfig

	// HasRows reports whether the rows field was present. Partial responses may omit it.
	HasRows bool
}

// ErrMalformedResponse is returned when a body is not a props envelope.
var ErrMalformedResponse = errors.New("malformed list response")

// DecodeResponse decodes a `{"props": {...}}` body. Bodies without a props
// envelope are treated as the props object itself.
func DecodeResponse(body []byte, dataKey string) (*Response, error) {
	if dataKey == "" {
		dataKey = DefaultDataKey
	}

	var envelope struct {
		Props map[string]json.RawMessage `json:"props"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	props := envelope.Props
	if props == nil {
		if err := json.Unmarshal(body, &props); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
		}
	}

	resp := &Response{}
	if raw, ok := props[dataKey]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &resp.Rows); err != nil {
			return nil, fmt.Errorf("%w: decode %q: %w", ErrMalformedResponse, dataKey, err)
		}
		resp.HasRows = true
	}
	if raw, ok := props[MetaKey]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &resp.Meta); err != nil {
			return nil, fmt.Errorf("%w: decode meta: %w", ErrMalformedResponse, err)
		}
	}
	if raw, ok := props[PollingKey]; ok && !isNull(raw) {
		var polling PollingConfig
		if err := json.Unmarshal(raw, &polling); err != nil {
			return nil, fmt.Errorf("%w: decode polling: %w", ErrMalformedResponse, err)
		}
		resp.Polling = &polling
	}

	return resp, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// FetchOptions tunes a list fetch.
type FetchOptions struct {
	// Only lists the props fields to return (partial fetch). Empty means all.
	Only []string

	// PreserveState and PreserveScroll are UI hints carried with the request.
	PreserveState  bool
	PreserveScroll bool
}

// MutationResult is the server's answer to a bulk mutation.
type MutationResult struct {
	Message  string `json:"message,omitempty"`
	Affected int    `json:"affected,omitempty"`
}

// Fetcher is the remote list service a table controller talks to.
type Fetcher interface {
	// FetchList performs a partial, state-preserving fetch of a list route.
	FetchList(ctx context.Context, route string, params pagination.RequestParams, opts FetchOptions) (*Response, error)

	// FetchListRaw fetches an arbitrary URL (polling, prefetch) with extra headers.
	FetchListRaw(ctx context.Context, url string, headers http.Header) (*Response, error)

	// BulkDelete deletes the given ids.
	BulkDelete(ctx context.Context, route string, ids []string) (*MutationResult, error)

	// BulkUpdateStatus applies fields (for example {"status": "active"}) to the given ids.
	BulkUpdateStatus(ctx context.Context, route string, ids []string, fields map[string]any) (*MutationResult, error)
}
