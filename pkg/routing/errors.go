package routing

import (
	"errors"
	"fmt"
	"strings"

	"utrix-hq/quotaflow/pkg/providers"
)

// Common routing errors that can be checked with errors.Is().
var (
	// ErrNoHealthyProviders is returned when every provider's circuit is open.
	ErrNoHealthyProviders = errors.New("no healthy providers available")

	// ErrNoEligibleProviders is returned by quota-gated strategies when no
	// healthy provider has headroom. The load balancer turns it into a
	// fallback selection.
	ErrNoEligibleProviders = errors.New("no eligible providers within quota")

	// ErrInvalidStrategy is returned when an unknown strategy is configured.
	ErrInvalidStrategy = errors.New("invalid load balancing strategy")

	// ErrNoProvidersConfigured is returned when no providers are available.
	ErrNoProvidersConfigured = errors.New("no providers configured")

	// ErrInvalidRequest is returned for a request without a function name.
	ErrInvalidRequest = errors.New("invalid function request")
)

// NoHealthyProvidersError is returned when no healthy providers are available
// for routing a request.
type NoHealthyProvidersError struct {
	// AttemptedProviders contains the providers that were checked.
	AttemptedProviders []providers.Kind

	// FunctionName is the requested function.
	FunctionName string
}

// Error implements the error interface.
func (e *NoHealthyProvidersError) Error() string {
	names := make([]string, len(e.AttemptedProviders))
	for i, k := range e.AttemptedProviders {
		names[i] = string(k)
	}
	return fmt.Sprintf("no healthy providers available for function %q (attempted: %s)",
		e.FunctionName, strings.Join(names, ", "))
}

// Is implements error matching for errors.Is().
func (e *NoHealthyProvidersError) Is(target error) bool {
	return target == ErrNoHealthyProviders
}

// InvalidStrategyError is returned when the configured strategy is not
// recognized.
type InvalidStrategyError struct {
	// Strategy is the invalid strategy name.
	Strategy string

	// AvailableStrategies contains the valid strategy names.
	AvailableStrategies []string
}

// Error implements the error interface.
func (e *InvalidStrategyError) Error() string {
	return fmt.Sprintf("invalid load balancing strategy %q (available strategies: %s)",
		e.Strategy, strings.Join(e.AvailableStrategies, ", "))
}

// Is implements error matching for errors.Is().
func (e *InvalidStrategyError) Is(target error) bool {
	return target == ErrInvalidStrategy
}

// ExhaustedRetriesError records the last failure after every attempt
// against the selected provider failed.
type ExhaustedRetriesError struct {
	Provider  providers.Kind
	Attempts  int
	LastError error
}

// Error implements the error interface.
func (e *ExhaustedRetriesError) Error() string {
	return fmt.Sprintf("provider %s failed after %d attempts: %v", e.Provider, e.Attempts, e.LastError)
}

// Unwrap returns the wrapped error for error chain traversal.
func (e *ExhaustedRetriesError) Unwrap() error {
	return e.LastError
}
