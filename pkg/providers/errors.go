package providers

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownKind is returned when a provider kind is not recognized.
var ErrUnknownKind = errors.New("unknown provider kind")

// ProviderError represents a general provider error.
// It includes the provider kind, HTTP status code, and underlying error.
type ProviderError struct {
	// Provider is the kind of the provider that returned the error
	Provider Kind

	// StatusCode is the HTTP status code (0 if not applicable)
	StatusCode int

	// Message is the error message
	Message string

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %q error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider %q error: %s", e.Provider, e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// TimeoutError represents an invocation that exceeded its deadline.
type TimeoutError struct {
	// Provider is the kind of the provider where the timeout occurred
	Provider Kind

	// Timeout is the configured timeout duration (0 if the deadline came
	// from the caller's context)
	Timeout time.Duration

	// Cause is the underlying context error
	Cause error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	if e.Timeout > 0 {
		return fmt.Sprintf("provider %q request timeout after %s", e.Provider, e.Timeout)
	}
	return fmt.Sprintf("provider %q request deadline exceeded", e.Provider)
}

// Unwrap returns the underlying error for error chain support.
func (e *TimeoutError) Unwrap() error {
	return e.Cause
}

// ParseError represents a response parsing failure.
type ParseError struct {
	// Provider is the kind of the provider that returned the malformed response
	Provider Kind

	// RawResponse is the raw response body that failed to parse
	RawResponse string

	// Cause is the underlying parse error
	Cause error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("provider %q response parse error: %v", e.Provider, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// ValidationError represents a request or deployment validation failure.
type ValidationError struct {
	// Field is the name of the invalid field
	Field string

	// Message describes what is invalid about the field
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field %q: %s", e.Field, e.Message)
}

// ConfigError represents a provider configuration error.
type ConfigError struct {
	// Provider is the kind of the provider with invalid configuration
	Provider Kind

	// Field is the configuration field that is invalid
	Field string

	// Message describes the configuration error
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("provider %q configuration error for field %q: %s",
		e.Provider, e.Field, e.Message)
}

// IsTimeout reports whether err is a provider timeout.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}
