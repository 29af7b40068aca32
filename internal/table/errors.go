package table

import "errors"

// Controller errors.
var (
	ErrEmptyRoute       = errors.New("table route cannot be empty")
	ErrNilFetcher       = errors.New("table fetcher cannot be nil")
	ErrClosed           = errors.New("table controller is closed")
	ErrAlreadyStarted   = errors.New("table controller already started")
	ErrUnknownAction    = errors.New("unknown bulk action")
	ErrBulkInProgress   = errors.New("a bulk action is already running")
	ErrPageNotLoaded    = errors.New("page has not been loaded")
	ErrInvalidPollDelay = errors.New("polling interval cannot be negative")
)
