package foundry

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go/v2"
)

// CodeContentFilter is the error code the service reports when a prompt or
// completion was blocked by the content filter.
const CodeContentFilter = "content_filter"

var (
	// ErrNotFound matches APIErrors with a 404 status
	ErrNotFound = errors.New("foundry: resource not found")

	// ErrUnauthorized matches APIErrors with a 401 or 403 status
	ErrUnauthorized = errors.New("foundry: unauthorized")
)

// APIError is a failed call to the service
type APIError struct {
	Operation  string
	StatusCode int
	Code       string
	Type       string
	Param      string
	Message    string
	Cause      error
}

// Error implements the error interface
func (e *APIError) Error() string {
	msg := fmt.Sprintf("foundry: %s failed", e.Operation)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d", e.StatusCode)
		if e.Code != "" {
			msg += ", code " + e.Code
		}
		msg += ")"
	}
	if e.Message != "" {
		return msg + ": " + e.Message
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *APIError) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is match the status sentinels
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	}
	return false
}

// IsRetryable reports whether the call might succeed if repeated
func (e *APIError) IsRetryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// IsContentFilter reports whether the request was rejected by the content filter
func (e *APIError) IsContentFilter() bool {
	return e.Code == CodeContentFilter
}

// IsContentFilter reports whether err carries the content filter code
func IsContentFilter(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsContentFilter()
}

// wrapError converts SDK errors into APIError. Context errors pass through
// untouched so callers can still test them with errors.Is.
func wrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var sdkErr *openai.Error
	if errors.As(err, &sdkErr) {
		return &APIError{
			Operation:  operation,
			StatusCode: sdkErr.StatusCode,
			Code:       sdkErr.Code,
			Type:       sdkErr.Type,
			Param:      sdkErr.Param,
			Message:    sdkErr.Message,
			Cause:      err,
		}
	}

	return &APIError{Operation: operation, Cause: err}
}
