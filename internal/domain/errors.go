package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the upstream error taxonomy. Typed wrappers below
// unwrap to these so callers can classify with errors.Is.
var (
	// ErrRateLimited indicates the upstream rejected the call with HTTP 429.
	ErrRateLimited = errors.New("rate limited")

	// ErrNotFound indicates a requested resource does not exist upstream.
	ErrNotFound = errors.New("not found")

	// ErrAuthenticationFailed indicates the API key was rejected (401/403).
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrServerError indicates an upstream 5xx response.
	ErrServerError = errors.New("server error")

	// ErrConnectivity indicates the request never produced an HTTP response
	// (timeout, connection refused, DNS failure).
	ErrConnectivity = errors.New("connectivity failure")

	// ErrInvalidInput indicates the caller supplied invalid arguments.
	ErrInvalidInput = errors.New("invalid input")
)

// RateLimitError is returned for HTTP 429 responses. RetryAfter carries the
// server-suggested delay from the Retry-After header, or zero when the
// header was absent or unparseable.
type RateLimitError struct {
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// NotFoundError is returned for HTTP 404 responses, naming the resource that
// was requested.
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ServerError is returned for HTTP 5xx responses.
type ServerError struct {
	StatusCode int
}

// Error implements the error interface.
func (e *ServerError) Error() string {
	return fmt.Sprintf("upstream server error: status %d", e.StatusCode)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ServerError) Unwrap() error { return ErrServerError }

// ConnectivityError is returned when the transport call fails before an HTTP
// status is available. These failures are eligible to trip the circuit
// breaker, unlike the status-carrying kinds above.
type ConnectivityError struct {
	Op    string
	Cause error
}

// Error implements the error interface.
func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("connectivity failure during %s: %v", e.Op, e.Cause)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ConnectivityError) Unwrap() error { return ErrConnectivity }

// ExternalAPIError is returned for 4xx statuses that have no dedicated kind.
// It carries the raw response body for diagnostics.
type ExternalAPIError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *ExternalAPIError) Error() string {
	return fmt.Sprintf("API request failed with status %d: %s", e.StatusCode, e.Body)
}

// ValidationError reports an invalid argument to a tool operation.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ValidationError) Unwrap() error { return ErrInvalidInput }
