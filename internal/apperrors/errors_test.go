package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestError_Error(t *testing.T) {
	err := &RequestError{Method: "GET", URL: "https://canvas.test/api/v1/courses", StatusCode: 401, Body: `{"errors":"unauthorized"}`}

	assert.Equal(t, `GET https://canvas.test/api/v1/courses returned status 401: {"errors":"unauthorized"}`, err.Error())
}

func TestRequestError_Unwrap(t *testing.T) {
	plain := &RequestError{StatusCode: 500}
	assert.ErrorIs(t, plain, ErrRequestFailed)
	assert.False(t, errors.Is(plain, ErrLookupFailed))

	lookup := &RequestError{StatusCode: 502, Err: ErrLookupFailed}
	assert.ErrorIs(t, lookup, ErrLookupFailed)
}

func TestStatusCode(t *testing.T) {
	wrapped := fmt.Errorf("failed to list courses: %w", &RequestError{StatusCode: 403})

	assert.Equal(t, 403, StatusCode(wrapped))
	assert.Equal(t, 0, StatusCode(errors.New("boom")))
}
