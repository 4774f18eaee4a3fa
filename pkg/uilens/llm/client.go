// Package llm provides multimodal capability clients for uilens.
//
// The pipeline talks to a vision-capable model twice: once to identify
// components on a screenshot, and once (optionally) to suggest refinements
// for a comparison result. Both go through the Client interface so tests
// and alternative providers can swap in without touching pipeline code.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// Client is a multimodal completion client.
// Implementations must be safe for concurrent use.
type Client interface {
	// Complete sends a completion request and returns the full response.
	// Transport and authorization failures are returned as *Error.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// Error wraps a failed capability call.
type Error struct {
	// Op is the operation that failed ("complete").
	Op string
	// Err is the underlying error.
	Err error
	// Retryable indicates the error is likely transient.
	Retryable bool
}

// NewError creates a capability call error.
func NewError(op string, err error, retryable bool) *Error {
	return &Error{Op: op, Err: err, Retryable: retryable}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("llm %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// isRetryableError checks if an error message indicates a transient error.
func isRetryableError(errMsg string) bool {
	errLower := strings.ToLower(errMsg)
	return strings.Contains(errLower, "rate limit") ||
		strings.Contains(errLower, "timeout") ||
		strings.Contains(errLower, "overloaded") ||
		strings.Contains(errLower, "503") ||
		strings.Contains(errLower, "529")
}
