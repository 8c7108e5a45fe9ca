package errors

import (
	"fmt"
	"net/http"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrTypeNetwork represents network-related errors
	ErrTypeNetwork ErrorType = "network"
	// ErrTypeDecode represents media decode errors
	ErrTypeDecode ErrorType = "decode"
	// ErrTypeTimeout represents timed-out operations
	ErrTypeTimeout ErrorType = "timeout"
	// ErrTypePermission represents platform policy errors (e.g. autoplay blocked)
	ErrTypePermission ErrorType = "permission"
	// ErrTypeStorage represents persistent store errors
	ErrTypeStorage ErrorType = "storage"
	// ErrTypeNotFound represents resource not found errors
	ErrTypeNotFound ErrorType = "not_found"
	// ErrTypeValidation represents validation errors
	ErrTypeValidation ErrorType = "validation"
	// ErrTypeUnknown represents unknown errors
	ErrTypeUnknown ErrorType = "unknown"
)

// AppError represents an application error with context
type AppError struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Retryable  bool
	Cause      error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewNetworkError creates a new network error
func NewNetworkError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrTypeNetwork,
		Message:    message,
		StatusCode: http.StatusServiceUnavailable,
		Retryable:  true,
		Cause:      cause,
	}
}

// NewDecodeError creates a new media decode error
func NewDecodeError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrTypeDecode,
		Message:    message,
		StatusCode: http.StatusUnsupportedMediaType,
		Retryable:  false, // Corrupt or unsupported sources do not fix themselves
		Cause:      cause,
	}
}

// NewTimeoutError creates a new timeout error
func NewTimeoutError(message string) *AppError {
	return &AppError{
		Type:       ErrTypeTimeout,
		Message:    message,
		StatusCode: http.StatusGatewayTimeout,
		Retryable:  true,
		Cause:      nil,
	}
}

// NewPermissionError creates a new platform permission error
func NewPermissionError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrTypePermission,
		Message:    message,
		StatusCode: http.StatusForbidden,
		Retryable:  false, // Requires a user gesture, not a retry
		Cause:      cause,
	}
}

// NewStorageError creates a new persistent store error
func NewStorageError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrTypeStorage,
		Message:    message,
		StatusCode: http.StatusInsufficientStorage,
		Retryable:  false,
		Cause:      cause,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:       ErrTypeNotFound,
		Message:    message,
		StatusCode: http.StatusNotFound,
		Retryable:  false,
		Cause:      nil,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string) *AppError {
	return &AppError{
		Type:       ErrTypeValidation,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Retryable:  false,
		Cause:      nil,
	}
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Retryable
	}
	return false
}

// GetErrorType returns the error type from an error
func GetErrorType(err error) ErrorType {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Type
	}
	return ErrTypeUnknown
}

// IsNetworkError checks if an error is a network error
func IsNetworkError(err error) bool {
	return GetErrorType(err) == ErrTypeNetwork
}

// IsDecodeError checks if an error is a media decode error
func IsDecodeError(err error) bool {
	return GetErrorType(err) == ErrTypeDecode
}

// IsTimeoutError checks if an error is a timeout error
func IsTimeoutError(err error) bool {
	return GetErrorType(err) == ErrTypeTimeout
}

// IsPermissionError checks if an error is a platform permission error
func IsPermissionError(err error) bool {
	return GetErrorType(err) == ErrTypePermission
}

// IsStorageError checks if an error is a persistent store error
func IsStorageError(err error) bool {
	return GetErrorType(err) == ErrTypeStorage
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return GetErrorType(err) == ErrTypeNotFound
}
