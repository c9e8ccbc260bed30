// Package errors provides the standardized error taxonomy shared by the API and the exam workers.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeExamNotFound     ErrorCode = "EXAM_NOT_FOUND"
	ErrCodeJobNotFound      ErrorCode = "JOB_NOT_FOUND"
	ErrCodeInvalidExamData  ErrorCode = "INVALID_EXAM_DATA"
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	ErrCodeCSVFileNotFound  ErrorCode = "CSV_FILE_NOT_FOUND"
	ErrCodeCSVFileReadError ErrorCode = "CSV_FILE_READ_ERROR"
	ErrCodeConfiguration    ErrorCode = "CONFIGURATION_ERROR"

	ErrCodeUpstreamFailed ErrorCode = "UPSTREAM_FAILED"

	ErrCodeQueryExecutionFailed ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeSearchQueryFailed    ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeDispatchFailed       ErrorCode = "DISPATCH_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *StandardError) Unwrap() error {
	return e.cause
}

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewNotFoundError creates a non-retryable missing-resource error.
func NewNotFoundError(code ErrorCode, message, details string) *StandardError {
	return newError(code, message, details, false, nil)
}

// NewInvalidDataError creates a non-retryable error for malformed stored data.
func NewInvalidDataError(message, details string) *StandardError {
	return newError(ErrCodeInvalidExamData, message, details, false, nil)
}

// NewValidationError creates a non-retryable request validation error. fields maps each
// offending field to its messages.
func NewValidationError(message string, fields map[string][]string) *StandardError {
	e := newError(ErrCodeValidationFailed, message, "", false, nil)
	if len(fields) > 0 {
		e.Metadata = map[string]interface{}{"fields": fields}
	}
	return e
}

// NewConfigurationError creates a non-retryable deployment error (missing file, bad setting).
func NewConfigurationError(code ErrorCode, message string, err error) *StandardError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return newError(code, message, details, false, err)
}

// NewUpstreamError creates a retryable error for a failed call to an external service.
// statusCode is 0 for transport failures.
func NewUpstreamError(service string, statusCode int, message string, err error) *StandardError {
	e := newError(ErrCodeUpstreamFailed, message, "", true, err)
	if err != nil {
		e.Details = err.Error()
	}
	e.Metadata = map[string]interface{}{
		"service":     service,
		"status_code": statusCode,
	}
	return e
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	return newError(ErrCodeQueryExecutionFailed, "Database query execution error",
		fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()), true, err)
}

// NewSearchQueryFailedError creates a retryable search query error.
func NewSearchQueryFailedError(index string, err error) *StandardError {
	return newError(ErrCodeSearchQueryFailed, "Elasticsearch query error",
		fmt.Sprintf("index: %s, error: %s", index, err.Error()), true, err)
}

// NewDispatchFailedError creates a retryable queue publish error.
func NewDispatchFailedError(err error) *StandardError {
	return newError(ErrCodeDispatchFailed, "Failed to dispatch job", err.Error(), true, err)
}

// NewInternalError wraps an unexpected error.
func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false, err)
}

// As extracts a *StandardError from err's chain.
func As(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// HTTPStatus maps an error to the status code the API answers with.
func HTTPStatus(err error) int {
	stdErr, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch stdErr.Code {
	case ErrCodeExamNotFound, ErrCodeJobNotFound:
		return http.StatusNotFound
	case ErrCodeInvalidExamData, ErrCodeValidationFailed:
		return http.StatusUnprocessableEntity
	case ErrCodeUpstreamFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the human-readable message carried by err. A StandardError yields its
// Message; anything else yields err.Error().
func Message(err error) string {
	if err == nil {
		return ""
	}
	if stdErr, ok := As(err); ok && stdErr.Message != "" {
		return stdErr.Message
	}
	return err.Error()
}

// IsRetryable reports whether err is a StandardError marked retryable.
func IsRetryable(err error) bool {
	stdErr, ok := As(err)
	return ok && stdErr.Retryable
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "NOT_FOUND") && !strings.HasPrefix(codeStr, "CSV"):
		return "NOT_FOUND"
	case strings.HasPrefix(codeStr, "CSV") || code == ErrCodeConfiguration:
		return "CONFIGURATION"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "UPSTREAM"):
		return "UPSTREAM"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
