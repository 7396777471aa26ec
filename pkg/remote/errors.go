package remote

import (
	"errors"
	"fmt"
)

// AuthenticationError indicates the server rejected our identity. Distinct
// from connectivity failures: cached data must never be served on its
// strength, since the trust behind it is gone.
type AuthenticationError struct {
	Err error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("could not authenticate with server: %v", e.Err)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// ConnectionError indicates a network-level failure reaching the server.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("unable to reach server: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// RateLimitError indicates the server is refusing requests for now. Treated
// like a connectivity failure by callers: back off and use cached data.
type RateLimitError struct {
	RetryAfter string
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter != "" {
		return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter)
	}
	return "rate limit exceeded"
}

// UnsupportedResourceError indicates the server (typically an old version)
// does not provide the requested resource. Callers skip silently.
type UnsupportedResourceError struct {
	Resource string
}

func (e *UnsupportedResourceError) Error() string {
	return fmt.Sprintf("server does not support resource %q", e.Resource)
}

// APIError is a structured business error returned by the server. It is
// always re-raised to the caller unmodified; no cache layer may catch or
// rewrite it.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("server returned status %d", e.StatusCode)
}

// IsAuthError reports whether err is an authentication/identity failure.
func IsAuthError(err error) bool {
	var authErr *AuthenticationError
	return errors.As(err, &authErr)
}

// IsConnectionError reports whether err is a transient connectivity
// failure, including rate limiting.
func IsConnectionError(err error) bool {
	var connErr *ConnectionError
	var rateErr *RateLimitError
	return errors.As(err, &connErr) || errors.As(err, &rateErr)
}

// IsUnsupported reports whether err means the server lacks the resource.
func IsUnsupported(err error) bool {
	var unsupported *UnsupportedResourceError
	return errors.As(err, &unsupported)
}

// IsAPIError reports whether err is a structured server error.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}
