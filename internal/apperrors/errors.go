package apperrors

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrMissingConfig is returned when a required setting is absent or empty
	ErrMissingConfig = errors.New("missing required configuration")

	// ErrRequestFailed is the default cause of a RequestError
	ErrRequestFailed = errors.New("request failed")

	// ErrLookupFailed marks a failed destination query, as opposed to an empty result
	ErrLookupFailed = errors.New("destination lookup failed")

	// ErrRunNotFound is returned by run-report storage when no report matches
	ErrRunNotFound = errors.New("sync run not found")
)

// RequestError describes a non-2xx response from an upstream API
type RequestError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *RequestError) Error() string {
	msg := fmt.Sprintf("%s %s returned status %d", e.Method, e.URL, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func (e *RequestError) Unwrap() error {
	if e.Err == nil {
		return ErrRequestFailed
	}
	return e.Err
}

// StatusCode extracts the HTTP status of a RequestError anywhere in err's chain, or 0
func StatusCode(err error) int {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.StatusCode
	}
	return 0
}
