package remote

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Errors returned by the HTTP fetcher.
var (
	ErrIncompatibleAPI = errors.New("server API version is not compatible")
	ErrEmptyBaseURL    = errors.New("remote base URL cannot be empty")
	ErrEmptyRoute      = errors.New("route cannot be empty")
)

// APIError is a non-2xx response from the list server.
type APIError struct {
	// StatusCode is the HTTP status.
	StatusCode int

	// Message is the server-provided message, if any.
	Message string

	// Errors holds field validation errors keyed by field name.
	Errors map[string][]string
}

// Error implements error.
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("server returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// newAPIError builds an APIError from a response body. Bodies are expected to
// look like {"message": "...", "errors": {"field": ["..."]}} but anything is tolerated.
func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}

	var payload struct {
		Message string              `json:"message"`
		Error   string              `json:"error"`
		Errors  map[string][]string `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		apiErr.Message = payload.Message
		if apiErr.Message == "" {
			apiErr.Message = payload.Error
		}
		apiErr.Errors = payload.Errors
		return apiErr
	}

	if text := strings.TrimSpace(string(body)); text != "" && len(text) < maxPlainErrorLen {
		apiErr.Message = text
	}
	return apiErr
}

// maxPlainErrorLen caps how much of a non-JSON error body becomes a message.
const maxPlainErrorLen = 200

// ServerMessage extracts the most specific user-facing message carried by err:
// the server message, else the first field error, else "".
func ServerMessage(err error) string {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return ""
	}
	if apiErr.Message != "" {
		return apiErr.Message
	}
	fields := make([]string, 0, len(apiErr.Errors))
	for field := range apiErr.Errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		if msgs := apiErr.Errors[field]; len(msgs) > 0 {
			return msgs[0]
		}
	}
	return ""
}
