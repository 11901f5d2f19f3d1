// Package utils provides logging, error handling, and URL utilities
// shared across the bypass pipeline.
package utils

import (
	"fmt"
	"time"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity int

const (
	SeverityInfo ErrorSeverity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

// String returns string representation of error severity
func (s ErrorSeverity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ErrorCode represents predefined error codes for categorization
type ErrorCode string

const (
	// Input related errors
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// Network related errors
	ErrCodeNetworkTimeout     ErrorCode = "NETWORK_TIMEOUT"
	ErrCodeNetworkUnreachable ErrorCode = "NETWORK_UNREACHABLE"
	ErrCodeTransportFailure   ErrorCode = "TRANSPORT_FAILURE"

	// Extraction related errors
	ErrCodeParseFailure     ErrorCode = "PARSE_FAILURE"
	ErrCodeNoCandidateFound ErrorCode = "NO_CANDIDATE_FOUND"
	ErrCodeMethodExhausted  ErrorCode = "ALL_METHODS_EXHAUSTED"

	// AI related errors
	ErrCodeAIUnavailable       ErrorCode = "AI_UNAVAILABLE"
	ErrCodeAIAnalysisFailed    ErrorCode = "AI_ANALYSIS_FAILED"
	ErrCodeUntrustedCodeBlocked ErrorCode = "UNTRUSTED_CODE_BLOCKED"

	// Persistence related errors
	ErrCodeStoreFailure ErrorCode = "STORE_FAILURE"
	ErrCodeCacheFailure ErrorCode = "CACHE_FAILURE"

	// Generic errors
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	ErrCodeCanceled ErrorCode = "CONTEXT_CANCELED"
)

// StructuredError provides rich error information for better debugging and handling
type StructuredError struct {
	Code        ErrorCode              `json:"code"`
	Message     string                 `json:"message"`
	Severity    ErrorSeverity          `json:"severity"`
	Context     map[string]interface{} `json:"context,omitempty"`
	Cause       error                  `json:"-"`
	Timestamp   time.Time              `json:"timestamp"`
	Retryable   bool                   `json:"retryable"`
	UserMessage string                 `json:"user_message,omitempty"`
}

// Error implements the error interface
func (e *StructuredError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error unwrapping
func (e *StructuredError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches a target error code
func (e *StructuredError) Is(target error) bool {
	if se, ok := target.(*StructuredError); ok {
		return e.Code == se.Code
	}
	return false
}

// WithContext adds contextual information to the error
func (e *StructuredError) WithContext(key string, value interface{}) *StructuredError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithCause attaches the underlying cause
func (e *StructuredError) WithCause(cause error) *StructuredError {
	e.Cause = cause
	return e
}

// WithSeverity overrides the default severity
func (e *StructuredError) WithSeverity(severity ErrorSeverity) *StructuredError {
	e.Severity = severity
	return e
}

// WithRetryable marks whether the failed operation may be retried
func (e *StructuredError) WithRetryable(retryable bool) *StructuredError {
	e.Retryable = retryable
	return e
}

// WithUserMessage sets a user-friendly error message. Callers surface this
// instead of internal error text, which may contain URLs or upstream
// responses that should not reach end users.
func (e *StructuredError) WithUserMessage(message string) *StructuredError {
	e.UserMessage = message
	return e
}

// NewError creates a new structured error
func NewError(code ErrorCode, message string) *StructuredError {
	return &StructuredError{
		Code:      code,
		Message:   message,
		Severity:  SeverityError,
		Timestamp: time.Now(),
	}
}

// WrapError wraps an existing error with a code and message
func WrapError(code ErrorCode, message string, cause error) *StructuredError {
	return NewError(code, message).WithCause(cause)
}

// CodeOf extracts the error code from an error, returning ErrCodeInternal
// for errors that are not structured.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	if se, ok := err.(*StructuredError); ok {
		return se.Code
	}
	return ErrCodeInternal
}
