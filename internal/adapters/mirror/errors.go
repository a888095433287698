package mirror

import (
	"errors"
	"fmt"
)

// Sentinel kinds for mirror errors.
var (
	ErrNotConfigured = errors.New("mirror not configured")
	ErrAppendFailed  = errors.New("mirror append failed")
)

// APIError is a non-2xx answer from the spreadsheet API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("spreadsheet api error: %d: %s", e.StatusCode, e.Body)
}

// Unwrap lets callers match ErrAppendFailed.
func (e *APIError) Unwrap() error { return ErrAppendFailed }

// Retryable reports whether the request may succeed if repeated.
func (e *APIError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
