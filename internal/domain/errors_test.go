package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestAPIError(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		message   string
		details   string
		requestID string
	}{
		{
			name:      "Invalid input",
			code:      ErrCodeInvalidInput,
			message:   "no modality results provided",
			details:   "at least one modality result is required",
			requestID: "req-123",
		},
		{
			name:      "Database error",
			code:      ErrCodeDatabaseError,
			message:   "Database connection failed",
			details:   "Unable to connect to PostgreSQL",
			requestID: "req-456",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewAPIError(tt.code, tt.message, tt.details, tt.requestID)

			if err.Code != tt.code {
				t.Errorf("Expected code %s, got %s", tt.code, err.Code)
			}
			if err.Message != tt.message {
				t.Errorf("Expected message %s, got %s", tt.message, err.Message)
			}
			if err.RequestID != tt.requestID {
				t.Errorf("Expected requestID %s, got %s", tt.requestID, err.RequestID)
			}
			if time.Since(err.Timestamp) > time.Minute {
				t.Errorf("Timestamp should be recent, got %v", err.Timestamp)
			}

			expectedError := tt.code + ": " + tt.message
			if err.Error() != expectedError {
				t.Errorf("Expected error string %s, got %s", expectedError, err.Error())
			}
		})
	}
}

func TestInvalidInputError(t *testing.T) {
	tests := []struct {
		name     string
		err      *InvalidInputError
		expected string
	}{
		{
			name:     "Set level",
			err:      NewInvalidInputError("no modality results provided"),
			expected: "invalid input: no modality results provided",
		},
		{
			name:     "Field level",
			err:      NewFieldError(VOICE, "confidence", "must lie in [0,1]", 1.3),
			expected: "invalid input for VOICE.confidence: must lie in [0,1]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, tt.err.Error())
			}
			wrapped := fmt.Errorf("fusion: %w", tt.err)
			if !errors.Is(wrapped, ErrInvalidInput) {
				t.Errorf("Expected wrapped error to match ErrInvalidInput")
			}
			if errors.Is(wrapped, ErrConfiguration) {
				t.Errorf("Invalid input must not match ErrConfiguration")
			}
			var target *InvalidInputError
			if !errors.As(wrapped, &target) {
				t.Errorf("Expected errors.As to find InvalidInputError")
			}
		})
	}
}

func TestConfigurationError(t *testing.T) {
	err := NewConfigurationError(MOTOR, "no base weight configured")

	if err.Error() != "configuration error for MOTOR: no base weight configured" {
		t.Errorf("Unexpected message: %s", err.Error())
	}
	if !errors.Is(err, ErrConfiguration) {
		t.Errorf("Expected ErrConfiguration match")
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"invalid input", NewInvalidInputError("x"), ErrCodeInvalidInput},
		{"invalid modality", fmt.Errorf("%w: x", ErrInvalidModality), ErrCodeInvalidInput},
		{"configuration", NewConfigurationError("", "x"), ErrCodeConfiguration},
		{"not found", fmt.Errorf("assessment: %w", ErrNotFound), ErrCodeNotFound},
		{"unavailable", ErrAnalysisUnavailable, ErrCodeAnalysisUnavailable},
		{"other", errors.New("boom"), ErrCodeInternalServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorCode(tt.err); got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}
