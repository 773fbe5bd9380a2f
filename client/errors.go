package client

import (
	"errors"
	"fmt"
)

const streamErrorMessage = "failed to fetch suggestions"

var (
	// ErrSuggestionsInFlight is returned when a refresh is requested while
	// another one is still running.
	ErrSuggestionsInFlight = errors.New("client: suggestion fetch already in progress")
	// ErrSubmissionInFlight is carried by the Failure outcome of a send
	// attempted while another send is still running.
	ErrSubmissionInFlight = errors.New("client: submission already in progress")
)

// StreamError reports that a suggestion batch could not be produced. Its
// message is safe to show to users; the cause is available through Unwrap.
type StreamError struct {
	Err error
}

func (e *StreamError) Error() string {
	return streamErrorMessage
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// StatusError is the cause attached to outcomes and stream errors produced by
// a non-2xx response.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("client: unexpected status %d", e.StatusCode)
}

func (e *StatusError) HTTPStatusCode() int {
	return e.StatusCode
}
