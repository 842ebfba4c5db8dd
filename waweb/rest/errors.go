package rest

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// APIError is the one error shape every failure normalizes to: thrown
// before a response, timed out, or returned with an error status.
// Callers branch on the flags, never on transport-specific error types.
type APIError struct {
	Message    string
	Status     int    // 0 when no response was received
	StatusText string // empty when no response was received
	IsNetwork  bool   // no response reached the caller
	IsTimeout  bool   // request exceeded its deadline
	IsServer   bool   // response status was 5xx
	Cause      error  // original failure, for diagnostics
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("api error (status %d %s): %s", e.Status, e.StatusText, e.Message)
	}
	return fmt.Sprintf("api error: %s", e.Message)
}

// Unwrap returns the original cause for errors.Unwrap support.
func (e *APIError) Unwrap() error {
	return e.Cause
}

// AsAPIError extracts an *APIError from err if present.
func AsAPIError(err error) (*APIError, bool) {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// IsNetworkError reports whether err represents a failure with no
// response at all.
func IsNetworkError(err error) bool {
	ae, ok := AsAPIError(err)
	return ok && ae.IsNetwork
}

// IsTimeoutError reports whether err represents a deadline failure.
func IsTimeoutError(err error) bool {
	ae, ok := AsAPIError(err)
	return ok && ae.IsTimeout
}

// IsServerError reports whether err carries a 5xx response status.
func IsServerError(err error) bool {
	ae, ok := AsAPIError(err)
	return ok && ae.IsServer
}

// normalizeTransportError maps a failure that produced no response.
func normalizeTransportError(err error) *APIError {
	timeout := errors.Is(err, context.DeadlineExceeded)
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		timeout = true
	}
	msg := "network error"
	if timeout {
		msg = "request timed out"
	}
	return &APIError{
		Message:   msg,
		IsNetwork: true,
		IsTimeout: timeout,
		Cause:     err,
	}
}

// normalizeStatusError maps an error response into the common shape.
func normalizeStatusError(status int, statusText, body string) *APIError {
	msg := body
	if msg == "" {
		msg = statusText
	}
	return &APIError{
		Message:    msg,
		Status:     status,
		StatusText: statusText,
		IsServer:   status >= 500,
	}
}
