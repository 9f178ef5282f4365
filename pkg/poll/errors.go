package poll

import (
	"errors"
	"fmt"
)

var (
	// ErrCancelled is returned when the caller cancels before a terminal status is observed
	ErrCancelled = errors.New("poll cancelled before terminal status")

	// ErrTimeout is returned when a deadline or attempt limit is hit before a terminal status
	ErrTimeout = errors.New("poll deadline exceeded before terminal status")

	// ErrNilFetch is returned when no fetch function is supplied
	ErrNilFetch = errors.New("poll fetch function is required")
)

// FetchError wraps a failure of the injected fetch function
type FetchError struct {
	Handle  Handle
	Attempt int
	Err     error
}

// Error implements the error interface
func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching status of %s failed on attempt %d: %v", e.Handle, e.Attempt, e.Err)
}

// Unwrap returns the fetch function's error
func (e *FetchError) Unwrap() error {
	return e.Err
}
