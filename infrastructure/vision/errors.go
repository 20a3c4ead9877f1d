package vision

import (
	"context"
	"errors"
	"fmt"
)

// Common errors returned by vision providers.
var (
	// ErrEmptyAPIKey indicates that an API key was required but not provided.
	ErrEmptyAPIKey = errors.New("API key cannot be empty")

	// ErrEmptyResponse indicates that the provider returned an empty body.
	ErrEmptyResponse = errors.New("empty response from provider")

	// ErrNoResponseChoice indicates that the provider response contained
	// no candidates.
	ErrNoResponseChoice = errors.New("no response choices returned")
)

// ErrorType classifies a provider error for retry decisions.
type ErrorType int

const (
	// ErrorTypeUnknown indicates an error of undetermined category.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeAuthentication indicates an invalid or rejected API key.
	ErrorTypeAuthentication
	// ErrorTypeRateLimit indicates the provider throttled the request.
	ErrorTypeRateLimit
	// ErrorTypeBadRequest indicates malformed parameters.
	ErrorTypeBadRequest
	// ErrorTypeNotFound indicates an unknown model or resource.
	ErrorTypeNotFound
	// ErrorTypeServerError indicates a failure on the provider's side.
	ErrorTypeServerError
	// ErrorTypeContentPolicy indicates the image or prompt was blocked.
	ErrorTypeContentPolicy
	// ErrorTypeNetwork indicates a client-side network problem.
	ErrorTypeNetwork
	// ErrorTypeTimeout indicates the request timed out.
	ErrorTypeTimeout
)

// ProviderError normalizes provider-specific failures into a common
// shape carrying a classified type and the original error.
type ProviderError struct {
	Type         ErrorType
	Provider     string
	StatusCode   int
	Message      string
	WrappedError error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	base := fmt.Sprintf("%s error", e.Provider)
	if e.StatusCode > 0 {
		base += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Message != "" {
		base += ": " + e.Message
	}
	if e.WrappedError != nil {
		base += fmt.Sprintf(": %v", e.WrappedError)
	}
	return base
}

// Unwrap returns the underlying error for errors.Is/As inspection.
func (e *ProviderError) Unwrap() error { return e.WrappedError }

// IsRetryable reports whether a request failing with this error should be
// retried. Transient conditions qualify; authentication and bad-request
// failures do not.
func (e *ProviderError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeRateLimit, ErrorTypeServerError, ErrorTypeNetwork, ErrorTypeTimeout:
		return true
	default:
		return false
	}
}

// NewProviderError builds a classified ProviderError.
func NewProviderError(provider string, errType ErrorType, statusCode int, message string, wrapped error) *ProviderError {
	return &ProviderError{
		Type:         errType,
		Provider:     provider,
		StatusCode:   statusCode,
		Message:      message,
		WrappedError: wrapped,
	}
}

// ErrorClassifier standardizes provider errors by HTTP status or context
// condition.
type ErrorClassifier struct {
	// Provider is the backend name this classifier reports.
	Provider string
}

// ClassifyHTTPError maps an HTTP status code to a ProviderError.
func (ec *ErrorClassifier) ClassifyHTTPError(statusCode int, message string, err error) *ProviderError {
	var errType ErrorType
	switch statusCode {
	case 401, 403:
		errType = ErrorTypeAuthentication
		message = fmt.Sprintf("%s authentication failed", ec.Provider)
	case 429:
		errType = ErrorTypeRateLimit
		message = fmt.Sprintf("%s rate limit exceeded", ec.Provider)
	case 400:
		errType = ErrorTypeBadRequest
	case 404:
		errType = ErrorTypeNotFound
	case 500, 502, 503, 504:
		errType = ErrorTypeServerError
	default:
		switch {
		case statusCode >= 400 && statusCode < 500:
			errType = ErrorTypeBadRequest
		case statusCode >= 500:
			errType = ErrorTypeServerError
		default:
			errType = ErrorTypeUnknown
		}
	}
	return NewProviderError(ec.Provider, errType, statusCode, message, err)
}

// ClassifyContextError maps context cancellation and deadline errors.
func (ec *ErrorClassifier) ClassifyContextError(err error) *ProviderError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewProviderError(ec.Provider, ErrorTypeTimeout, 0, "request deadline exceeded", err)
	case errors.Is(err, context.Canceled):
		return NewProviderError(ec.Provider, ErrorTypeNetwork, 0, "request canceled", err)
	default:
		return NewProviderError(ec.Provider, ErrorTypeUnknown, 0, "", err)
	}
}
