package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors. Typed errors below match them through errors.Is so callers
// can branch on the kind without type assertions.
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrConfiguration       = errors.New("configuration error")
	ErrAnalysisUnavailable = errors.New("analysis unavailable")
	ErrInvalidModality     = errors.New("invalid modality")
	ErrInvalidPrediction   = errors.New("invalid prediction")
)

// InvalidInputError reports malformed or out-of-range modality data, or an
// empty result set. It is a caller error and never retryable.
type InvalidInputError struct {
	Modality Modality `json:"modality,omitempty"`
	Field    string   `json:"field,omitempty"`
	Message  string   `json:"message"`
	Value    any      `json:"value,omitempty"`
}

// Error implements the error interface
func (e *InvalidInputError) Error() string {
	switch {
	case e.Modality != "" && e.Field != "":
		return fmt.Sprintf("invalid input for %s.%s: %s", e.Modality, e.Field, e.Message)
	case e.Modality != "":
		return fmt.Sprintf("invalid input for %s: %s", e.Modality, e.Message)
	default:
		return fmt.Sprintf("invalid input: %s", e.Message)
	}
}

// Is lets errors.Is(err, ErrInvalidInput) match.
func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// ConfigurationError reports missing or degenerate fusion weights.
type ConfigurationError struct {
	Modality Modality `json:"modality,omitempty"`
	Message  string   `json:"message"`
}

// Error implements the error interface
func (e *ConfigurationError) Error() string {
	if e.Modality != "" {
		return fmt.Sprintf("configuration error for %s: %s", e.Modality, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Is lets errors.Is(err, ErrConfiguration) match.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// NewInvalidInputError creates an InvalidInputError not tied to a modality.
func NewInvalidInputError(message string) *InvalidInputError {
	return &InvalidInputError{Message: message}
}

// NewFieldError creates an InvalidInputError for one field of a modality result.
func NewFieldError(modality Modality, field, message string, value any) *InvalidInputError {
	return &InvalidInputError{
		Modality: modality,
		Field:    field,
		Message:  message,
		Value:    value,
	}
}

// NewConfigurationError creates a ConfigurationError.
func NewConfigurationError(modality Modality, message string) *ConfigurationError {
	return &ConfigurationError{Modality: modality, Message: message}
}

// APIError represents a standardized error response
type APIError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	ErrCodeInvalidInput        = "INVALID_INPUT"
	ErrCodeConfiguration       = "CONFIGURATION_ERROR"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeAnalysisUnavailable = "ANALYSIS_UNAVAILABLE"
	ErrCodeDatabaseError       = "DATABASE_ERROR"
	ErrCodeRateLimit           = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternalServer      = "INTERNAL_SERVER_ERROR"
)

// NewAPIError creates a new APIError with timestamp
func NewAPIError(code, message, details, requestID string) *APIError {
	return &APIError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// ErrorCode classifies err into one of the API error codes.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidModality), errors.Is(err, ErrInvalidPrediction):
		return ErrCodeInvalidInput
	case errors.Is(err, ErrConfiguration):
		return ErrCodeConfiguration
	case errors.Is(err, ErrNotFound):
		return ErrCodeNotFound
	case errors.Is(err, ErrAnalysisUnavailable):
		return ErrCodeAnalysisUnavailable
	default:
		return ErrCodeInternalServer
	}
}
