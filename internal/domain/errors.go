package domain

import (
	"errors"
	"fmt"
)

// Common domain errors that can occur during verification operations.
// Each maps to a stable code surfaced to API callers via ErrorCode.
var (
	// ErrValidation indicates a malformed or incomplete request.
	// Never retried; the client must fix and resend.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidConfig indicates that a verification config is invalid,
	// for example an empty criteria list.
	ErrInvalidConfig = errors.New("invalid verification config")

	// ErrNotFound indicates that a referenced task is absent or not owned
	// by the caller's tenant.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTaskType indicates that the referenced task is not a
	// photo verification task.
	ErrInvalidTaskType = errors.New("task is not a photo verification task")

	// ErrForbidden indicates the caller's role is insufficient for the
	// requested action.
	ErrForbidden = errors.New("forbidden")

	// ErrRateLimited indicates the tenant's quota was exceeded.
	// Retryable after the signaled reset.
	ErrRateLimited = errors.New("rate limited")

	// ErrMalformedResponse indicates the provider returned output that
	// could not be parsed into a VisionAnalysis. Treated as a provider
	// error for retry purposes.
	ErrMalformedResponse = errors.New("malformed provider response")

	// ErrVerificationExhausted indicates every provider attempt failed
	// and manual-review fallback was disabled.
	ErrVerificationExhausted = errors.New("verification attempts exhausted")

	// ErrTaskTerminal indicates the task already reached a terminal
	// status and cannot be verified again.
	ErrTaskTerminal = errors.New("task is in a terminal status")
)

// Stable error codes returned to API callers. These never change once
// published; clients branch on them.
const (
	CodeValidation  = "VALIDATION_ERROR"
	CodeNotFound    = "NOT_FOUND"
	CodeForbidden   = "FORBIDDEN"
	CodeRateLimited = "RATE_LIMITED"
	CodeProvider    = "PROVIDER_ERROR"
	CodeMalformed   = "MALFORMED_RESPONSE"
	CodeExhausted   = "VERIFICATION_EXHAUSTED"
	CodePersistence = "PERSISTENCE_ERROR"
	CodeInternal    = "INTERNAL_ERROR"
)

// ErrorCode maps an error to its stable API code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidConfig), errors.Is(err, ErrInvalidTaskType), errors.Is(err, ErrTaskTerminal):
		return CodeValidation
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	case errors.Is(err, ErrRateLimited):
		return CodeRateLimited
	case errors.Is(err, ErrMalformedResponse):
		return CodeMalformed
	case errors.Is(err, ErrVerificationExhausted):
		return CodeExhausted
	default:
		var pe *PersistenceError
		if errors.As(err, &pe) {
			return CodePersistence
		}
		return CodeInternal
	}
}

// PersistenceError wraps a storage failure. It always surfaces to the
// caller: an unrecorded verification is never presented as a success.
type PersistenceError struct {
	// Operation names the storage operation that failed.
	Operation string

	// Err is the underlying storage error.
	Err error
}

// Error implements the error interface for PersistenceError.
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error: operation=%s, err=%v", e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *PersistenceError) Unwrap() error { return e.Err }

// NewPersistenceError creates a PersistenceError for the given operation.
func NewPersistenceError(operation string, err error) *PersistenceError {
	return &PersistenceError{Operation: operation, Err: err}
}
