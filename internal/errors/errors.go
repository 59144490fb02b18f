// Package errors provides structured error types for the connector.
// All errors include a category, code, message, and retryable flag so
// the host engine can decide whether a failed plan is worth retrying.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by connector component.
type ErrorCategory string

const (
	ErrCategoryConfig   ErrorCategory = "CONFIG"
	ErrCategoryCatalog  ErrorCategory = "CATALOG"
	ErrCategoryStorage  ErrorCategory = "STORAGE"
	ErrCategoryPlan     ErrorCategory = "PLAN"
	ErrCategoryInternal ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Config codes
	CodeMissingKey         = "MISSING_KEY"
	CodeInvalidValue       = "INVALID_VALUE"
	CodeUnknownBackend     = "UNKNOWN_BACKEND"
	CodeNoResolutionSource = "NO_RESOLUTION_SOURCE"

	// Catalog codes
	CodeConnectionFailed = "CONNECTION_FAILED"
	CodeQueryFailed      = "QUERY_FAILED"
	CodePublishFailed    = "PUBLISH_FAILED"
	CodeMalformedPayload = "MALFORMED_PAYLOAD"

	// Storage codes
	CodeFetchFailed    = "FETCH_FAILED"
	CodeObjectNotFound = "OBJECT_NOT_FOUND"

	// Plan codes
	CodeInvalidProjection = "INVALID_PROJECTION"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// ConnectorError is the structured error type used throughout the
// connector.
type ConnectorError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *ConnectorError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *ConnectorError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *ConnectorError) Is(target error) bool {
	var t *ConnectorError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new ConnectorError.
func New(category ErrorCategory, code, message string) *ConnectorError {
	return &ConnectorError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new ConnectorError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *ConnectorError {
	return &ConnectorError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *ConnectorError) WithDetails(details map[string]interface{}) *ConnectorError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var ce *ConnectorError
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a ConnectorError.
func GetCategory(err error) ErrorCategory {
	var ce *ConnectorError
	if errors.As(err, &ce) {
		return ce.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a ConnectorError.
func GetCode(err error) string {
	var ce *ConnectorError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// isRetryable reports whether an error class is worth a caller retry.
// Configuration errors never are; transient I/O may be.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryCatalog && code == CodeConnectionFailed:
		return true
	case category == ErrCategoryCatalog && code == CodeQueryFailed:
		return true
	case category == ErrCategoryStorage && code == CodeFetchFailed:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewConfigError(code, message string) *ConnectorError {
	return New(ErrCategoryConfig, code, message)
}

func NewCatalogError(code, message string, cause error) *ConnectorError {
	return Wrap(ErrCategoryCatalog, code, message, cause)
}

func NewStorageError(code, message string, cause error) *ConnectorError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewPlanError(code, message string) *ConnectorError {
	return New(ErrCategoryPlan, code, message)
}

func NewInternalError(message string, cause error) *ConnectorError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
