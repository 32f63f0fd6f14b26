package relengine

import (
	"errors"
	"fmt"
)

// ──────────────────────────────────────────────
// Error taxonomy — stable codes + retryability flag
// ──────────────────────────────────────────────

// ErrorCode identifies a failure class. Codes are stable: callers may
// switch on them to distinguish "try again" from "fix the input".
type ErrorCode string

const (
	// ErrCodeValidation covers malformed or out-of-range input:
	// credibility outside [0,10], sentiment outside [0,1], missing
	// required context fields. Never retryable; nothing is persisted.
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"

	// ErrCodeContextNotFound means a context was expected but missing.
	// Not retryable at the engine layer; the caller may recover by
	// creating a default context.
	ErrCodeContextNotFound ErrorCode = "CONTEXT_NOT_FOUND"

	// ErrCodeTransientStore covers store timeouts and unavailability.
	// Retried per the engine's backoff policy, then surfaced.
	ErrCodeTransientStore ErrorCode = "TRANSIENT_STORE_ERROR"

	// ErrCodeInvalidTransition marks a pipeline-stage jump that is not
	// in the adjacency table. Non-recoverable configuration error.
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
)

// EngineError is the single error type surfaced by the engine.
type EngineError struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Err       error // wrapped cause, may be nil
}

func (e *EngineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *EngineError) Unwrap() error { return e.Err }

// NewValidationError creates a non-retryable validation failure.
func NewValidationError(msg string) *EngineError {
	return &EngineError{Code: ErrCodeValidation, Message: msg}
}

// NewContextNotFoundError reports a context that was expected but missing.
func NewContextNotFoundError(userID string) *EngineError {
	return &EngineError{
		Code:    ErrCodeContextNotFound,
		Message: fmt.Sprintf("no relationship context for user %s", userID),
	}
}

// NewTransientStoreError wraps a retryable store failure.
func NewTransientStoreError(msg string, cause error) *EngineError {
	return &EngineError{Code: ErrCodeTransientStore, Message: msg, Retryable: true, Err: cause}
}

// NewInvalidTransitionError reports an illegal pipeline-stage jump.
func NewInvalidTransitionError(from, to PipelineStage) *EngineError {
	return &EngineError{
		Code:    ErrCodeInvalidTransition,
		Message: fmt.Sprintf("pipeline stage transition %s -> %s is not permitted", from, to),
	}
}

// CodeOf extracts the stable code from err, or "" when err is not an
// EngineError.
func CodeOf(err error) ErrorCode {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}

// IsRetryable reports whether err may succeed on a retry.
func IsRetryable(err error) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Retryable
	}
	return false
}

// IsContextNotFound reports whether err means "no context yet".
func IsContextNotFound(err error) bool {
	return CodeOf(err) == ErrCodeContextNotFound
}
