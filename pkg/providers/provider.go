package providers

import "context"

// Provider is the uniform capability surface over a compute provider.
// The three kinds differ only in pricing constants, limits and the shape of
// their invoke API.
//
// All blocking methods accept a context.Context and must return promptly
// once it is cancelled.
type Provider interface {
	// GetKind returns the provider kind.
	GetKind() Kind

	// GetName returns a display name for logs and status output.
	GetName() string

	// GetLimits returns the provider's static quota ceilings.
	GetLimits() QuotaLimits

	// GetUsageStats reads current month-to-date consumption. Callers fall
	// back to their last cached snapshot when this fails.
	GetUsageStats(ctx context.Context) (*QuotaUsage, error)

	// InvokeFunction executes a function and returns its JSON response.
	// The router may retry a failed invocation, so callers treat it as
	// idempotent.
	InvokeFunction(ctx context.Context, name string, payload map[string]any) (map[string]any, error)

	// GetCostEstimate is a pure cost calculation for the given workload.
	GetCostEstimate(executions, durationMs, memoryMB int64) float64

	// DeployFunction registers a function. It is not on the execution path.
	DeployFunction(ctx context.Context, fn FunctionConfig) (bool, error)

	// Close releases any resources (HTTP connections, etc.).
	Close() error
}
