package errors

import (
	"fmt"
	"net/http"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name: "error without cause",
			err: &AppError{
				Type:    ErrTypeNetwork,
				Message: "connection failed",
			},
			expected: "network: connection failed",
		},
		{
			name: "error with cause",
			err: &AppError{
				Type:    ErrTypeNetwork,
				Message: "connection failed",
				Cause:   fmt.Errorf("dial tcp: timeout"),
			},
			expected: "network: connection failed (caused by: dial tcp: timeout)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("underlying error")
	err := &AppError{
		Type:  ErrTypeNetwork,
		Cause: cause,
	}

	if unwrapped := err.Unwrap(); unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}
}

func TestNewNetworkError(t *testing.T) {
	cause := fmt.Errorf("connection timeout")
	err := NewNetworkError("network failed", cause)

	if err.Type != ErrTypeNetwork {
		t.Errorf("Type = %v, want %v", err.Type, ErrTypeNetwork)
	}
	if err.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %v, want %v", err.StatusCode, http.StatusServiceUnavailable)
	}
	if !err.Retryable {
		t.Error("Expected network error to be retryable")
	}
	if err.Cause != cause {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
}

func TestNewDecodeError(t *testing.T) {
	cause := fmt.Errorf("unsupported codec")
	err := NewDecodeError("decode failed", cause)

	if err.Type != ErrTypeDecode {
		t.Errorf("Type = %v, want %v", err.Type, ErrTypeDecode)
	}
	if err.Retryable {
		t.Error("Expected decode error to be non-retryable")
	}
	if err.Cause != cause {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
}

func TestNewTimeoutError(t *testing.T) {
	err := NewTimeoutError("ready signal never fired")

	if err.Type != ErrTypeTimeout {
		t.Errorf("Type = %v, want %v", err.Type, ErrTypeTimeout)
	}
	if !err.Retryable {
		t.Error("Expected timeout error to be retryable")
	}
}

func TestNewPermissionError(t *testing.T) {
	err := NewPermissionError("autoplay blocked", nil)

	if err.Type != ErrTypePermission {
		t.Errorf("Type = %v, want %v", err.Type, ErrTypePermission)
	}
	if err.Retryable {
		t.Error("Expected permission error to be non-retryable")
	}
}

func TestNewStorageError(t *testing.T) {
	cause := fmt.Errorf("database is locked")
	err := NewStorageError("store unavailable", cause)

	if err.Type != ErrTypeStorage {
		t.Errorf("Type = %v, want %v", err.Type, ErrTypeStorage)
	}
	if err.Retryable {
		t.Error("Expected storage error to be non-retryable")
	}
}

func TestNewNotFoundError(t *testing.T) {
	err := NewNotFoundError("track not found")

	if err.Type != ErrTypeNotFound {
		t.Errorf("Type = %v, want %v", err.Type, ErrTypeNotFound)
	}
	if err.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %v, want %v", err.StatusCode, http.StatusNotFound)
	}
	if err.Retryable {
		t.Error("Expected not found error to be non-retryable")
	}
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("empty track id")

	if err.Type != ErrTypeValidation {
		t.Errorf("Type = %v, want %v", err.Type, ErrTypeValidation)
	}
	if err.Retryable {
		t.Error("Expected validation error to be non-retryable")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"network error", NewNetworkError("failed", nil), true},
		{"timeout error", NewTimeoutError("timed out"), true},
		{"decode error", NewDecodeError("bad source", nil), false},
		{"storage error", NewStorageError("no store", nil), false},
		{"plain error", fmt.Errorf("plain"), false},
		{"nil error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.expected {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGetErrorType(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorType
	}{
		{"network", NewNetworkError("failed", nil), ErrTypeNetwork},
		{"decode", NewDecodeError("bad", nil), ErrTypeDecode},
		{"timeout", NewTimeoutError("slow"), ErrTypeTimeout},
		{"permission", NewPermissionError("blocked", nil), ErrTypePermission},
		{"storage", NewStorageError("gone", nil), ErrTypeStorage},
		{"not found", NewNotFoundError("missing"), ErrTypeNotFound},
		{"validation", NewValidationError("bad input"), ErrTypeValidation},
		{"plain error", fmt.Errorf("plain"), ErrTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetErrorType(tt.err); got != tt.expected {
				t.Errorf("GetErrorType() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestTypePredicates(t *testing.T) {
	if !IsNetworkError(NewNetworkError("x", nil)) {
		t.Error("IsNetworkError failed")
	}
	if !IsDecodeError(NewDecodeError("x", nil)) {
		t.Error("IsDecodeError failed")
	}
	if !IsTimeoutError(NewTimeoutError("x")) {
		t.Error("IsTimeoutError failed")
	}
	if !IsPermissionError(NewPermissionError("x", nil)) {
		t.Error("IsPermissionError failed")
	}
	if !IsStorageError(NewStorageError("x", nil)) {
		t.Error("IsStorageError failed")
	}
	if !IsNotFoundError(NewNotFoundError("x")) {
		t.Error("IsNotFoundError failed")
	}
	if IsNetworkError(NewDecodeError("x", nil)) {
		t.Error("IsNetworkError matched a decode error")
	}
}
