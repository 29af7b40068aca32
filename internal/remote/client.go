package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/rshade/tablesync/internal/logging"
	"github.com/rshade/tablesync/internal/pagination"
)

// Request headers understood by list servers.
const (
	HeaderPartialData    = "X-Partial-Data"
	HeaderPreserveState  = "X-Preserve-State"
	HeaderPreserveScroll = "X-Preserve-Scroll"
	HeaderRequestID      = "X-Request-Id"
	HeaderRequestedWith  = "X-Requested-With"
	HeaderAPIVersion     = "X-Api-Version"
)

// Client defaults.
const (
	DefaultTimeout  = 30 * time.Second
	DefaultRetryMax = 3
	retryWaitMin    = 250 * time.Millisecond
	retryWaitMax    = 5 * time.Second

	// maxResponseBytes bounds how much of a response body is read.
	maxResponseBytes = 32 << 20
)

// ClientConfig configures an HTTPClient.
type ClientConfig struct {
	// BaseURL is the scheme and host (plus optional prefix) of the list server.
	BaseURL string

	// DataKey is the props field holding rows.
	DataKey string

	// APIToken is sent as a bearer token when set.
	APIToken string

	// APIVersion is a semver constraint (e.g. ">= 1.2, < 2") checked against
	// the server's X-Api-Version header. Empty disables the check.
	APIVersion string

	// RetryMax is the number of retries for retryable failures. Negative means none.
	RetryMax int

	// Timeout bounds each attempt.
	Timeout time.Duration

	// Logger receives request and retry logs.
	Logger zerolog.Logger
}

// HTTPClient implements Fetcher over HTTP with retries.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	dataKey    string
	token      string
	constraint *semver.Constraints
	logger     zerolog.Logger

	// rawGroup coalesces identical concurrent raw fetches (overlapping poll ticks).
	rawGroup singleflight.Group
}

var _ Fetcher = (*HTTPClient)(nil)

// retryLogger adapts zerolog to retryablehttp.LeveledLogger.
type retryLogger struct {
	logger zerolog.Logger
}

func (l retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(keysAndValues).Msg(msg)
}

func (l retryLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Trace().Fields(keysAndValues).Msg(msg)
}

func (l retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}

// NewHTTPClient creates an HTTP fetcher.
func NewHTTPClient(cfg ClientConfig) (*HTTPClient, error) {
	baseURL := strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, ErrEmptyBaseURL
	}

	var constraint *semver.Constraints
	if cfg.APIVersion != "" {
		c, err := semver.NewConstraint(cfg.APIVersion)
		if err != nil {
			return nil, fmt.Errorf("invalid API version constraint %q: %w", cfg.APIVersion, err)
		}
		constraint = c
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	retryMax := cfg.RetryMax
	if retryMax < 0 {
		retryMax = 0
	}

	logger := logging.ComponentLogger(cfg.Logger, "remote")

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Timeout = timeout
	retryClient.RetryMax = retryMax
	retryClient.RetryWaitMin = retryWaitMin
	retryClient.RetryWaitMax = retryWaitMax
	retryClient.Logger = retryLogger{logger: logger}
	// Hand the final response back so server error messages reach the caller.
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	dataKey := cfg.DataKey
	if dataKey == "" {
		dataKey = DefaultDataKey
	}

	return &HTTPClient{
		httpClient: retryClient.StandardClient(),
		baseURL:    baseURL,
		dataKey:    dataKey,
		token:      cfg.APIToken,
		constraint: constraint,
		logger:     logger,
	}, nil
}

// RoutePath converts a dotted route name ("admin.products") into a URL path
// ("/admin/products"). Values that already start with "/" are returned as-is.
func RoutePath(route string) string {
	route = strings.TrimSpace(route)
	if route == "" || strings.HasPrefix(route, "/") {
		return route
	}
	return "/" + strings.ReplaceAll(route, ".", "/")
}

// ListURL returns the absolute list URL for route with params encoded.
func (c *HTTPClient) ListURL(route string, params pagination.RequestParams) string {
	u := c.baseURL + RoutePath(route)
	if q := params.Encode(); q != "" {
		u += "?" + q
	}
	return u
}

// FetchList implements Fetcher.
func (c *HTTPClient) FetchList(
	ctx context.Context,
	route string,
	params pagination.RequestParams,
	opts FetchOptions,
) (*Response, error) {
	if route == "" {
		return nil, ErrEmptyRoute
	}

	headers := http.Header{}
	if len(opts.Only) > 0 {
		headers.Set(HeaderPartialData, strings.Join(opts.Only, ","))
	}
	if opts.PreserveState {
		headers.Set(HeaderPreserveState, "true")
	}
	if opts.PreserveScroll {
		headers.Set(HeaderPreserveScroll, "true")
	}

	body, err := c.do(ctx, http.MethodGet, c.ListURL(route, params), nil, headers)
	if err != nil {
		return nil, err
	}
	return DecodeResponse(body, c.dataKey)
}

// FetchListRaw implements Fetcher. Relative URLs are resolved against the base URL.
// Concurrent calls for the same URL and headers share one request and one *Response,
// which callers must treat as read-only.
func (c *HTTPClient) FetchListRaw(ctx context.Context, rawURL string, headers http.Header) (*Response, error) {
	target := rawURL
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = c.baseURL + RoutePath(target)
	}

	key := target + "|" + headers.Get(HeaderPartialData)
	v, err, _ := c.rawGroup.Do(key, func() (interface{}, error) {
		body, doErr := c.do(ctx, http.MethodGet, target, nil, headers)
		if doErr != nil {
			return nil, doErr
		}
		return DecodeResponse(body, c.dataKey)
	})
	if err != nil {
		return nil, err
	}
	resp, _ := v.(*Response)
	return resp, nil
}

// BulkDelete implements Fetcher: DELETE {route}/bulk with {"ids": [...]}.
func (c *HTTPClient) BulkDelete(ctx context.Context, route string, ids []string) (*MutationResult, error) {
	if route == "" {
		return nil, ErrEmptyRoute
	}
	payload := map[string]any{"ids": ids}
	return c.mutate(ctx, http.MethodDelete, c.baseURL+RoutePath(route)+"/bulk", payload)
}

// BulkUpdateStatus implements Fetcher: PATCH {route}/bulk-status with {"ids": [...], ...fields}.
func (c *HTTPClient) BulkUpdateStatus(
	ctx context.Context,
	route string,
	ids []string,
	fields map[string]any,
) (*MutationResult, error) {
	if route == "" {
		return nil, ErrEmptyRoute
	}
	payload := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		payload[k] = v
	}
	payload["ids"] = ids
	return c.mutate(ctx, http.MethodPatch, c.baseURL+RoutePath(route)+"/bulk-status", payload)
}

func (c *HTTPClient) mutate(ctx context.Context, method, target string, payload any) (*MutationResult, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")

	body, err := c.do(ctx, method, target, data, headers)
	if err != nil {
		return nil, err
	}

	result := &MutationResult{}
	if len(bytes.TrimSpace(body)) == 0 {
		return result, nil
	}
	if unmarshalErr := json.Unmarshal(body, result); unmarshalErr != nil {
		return nil, fmt.Errorf("failed to decode mutation response: %w", unmarshalErr)
	}
	return result, nil
}

// do performs one request and returns the body of a 2xx response.
func (c *HTTPClient) do(ctx context.Context, method, target string, body []byte, headers http.Header) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	requestID := logging.GetOrGenerateRequestID(ctx)
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderRequestedWith, "XMLHttpRequest")
	req.Header.Set(HeaderRequestID, requestID)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, vals := range headers {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().
			Str("operation", "request").
			Str("method", method).
			Str("url", target).
			Str("request_id", requestID).
			Err(err).
			Msg("request failed")
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	c.logger.Debug().
		Str("operation", "request").
		Str("method", method).
		Str("url", target).
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("request completed")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newAPIError(resp.StatusCode, data)
	}

	if versionErr := c.checkAPIVersion(resp.Header.Get(HeaderAPIVersion)); versionErr != nil {
		return nil, versionErr
	}

	return data, nil
}

// checkAPIVersion validates the server version header against the configured constraint.
// Servers that do not announce a version are accepted.
func (c *HTTPClient) checkAPIVersion(header string) error {
	if c.constraint == nil || header == "" {
		return nil
	}
	v, err := semver.NewVersion(header)
	if err != nil {
		return fmt.Errorf("%w: invalid version %q: %w", ErrIncompatibleAPI, header, err)
	}
	if !c.constraint.Check(v) {
		return fmt.Errorf("%w: server %s does not satisfy %s", ErrIncompatibleAPI, v, c.constraint)
	}
	return nil
}
