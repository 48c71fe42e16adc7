package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNoAPIKey indicates the provider was constructed without credentials.
	ErrNoAPIKey = errors.New("llm: api key not configured")

	// Transient upstream conditions. Callers retry these with backoff.
	ErrRateLimited      = errors.New("llm: rate limited")
	ErrUnavailable      = errors.New("llm: service unavailable")
	ErrDeadlineExceeded = errors.New("llm: deadline exceeded")
	// ErrEmptyResponse marks a success status with no usable text. Treated
	// as transient so the executor retries instead of giving up.
	ErrEmptyResponse = errors.New("llm: empty response")
)

// APIError is a non-2xx response from a generation backend.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

// NewAPIError creates an APIError for the given provider and status.
func NewAPIError(provider string, statusCode int, body string) *APIError {
	return &APIError{Provider: provider, StatusCode: statusCode, Body: body}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: api error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

// Unwrap maps retryable status codes onto the transient sentinels so that
// errors.Is classification works through wrapping.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusInternalServerError:
		return ErrUnavailable
	case http.StatusGatewayTimeout, http.StatusRequestTimeout:
		return ErrDeadlineExceeded
	}
	return nil
}

// WrapError annotates an error with the provider name.
func WrapError(provider string, err error) error {
	return fmt.Errorf("%s: %w", provider, err)
}

// IsTransient reports whether the error is a momentary upstream condition
// worth retrying: rate limiting, unavailability, deadline expiry, or an
// empty response. Everything else is fatal for the current call.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrDeadlineExceeded) ||
		errors.Is(err, ErrEmptyResponse) ||
		errors.Is(err, context.DeadlineExceeded)
}
