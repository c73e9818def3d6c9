package routing

import (
	"context"
	"time"

	"utrix-hq/quotaflow/pkg/health"
	"utrix-hq/quotaflow/pkg/providers"
)

// Router is the main interface for routing function executions to
// providers. It orchestrates the routing decision process by:
//   - Filtering providers by circuit-breaker health
//   - Gating candidates by current and projected quota headroom
//   - Scoring candidates with the configured strategy
//   - Executing with retry and recording the outcome
//
// Router implementations must be thread-safe for concurrent use.
type Router interface {
	// SelectProvider returns a routing decision without executing.
	// It fails only when no provider is healthy.
	SelectProvider(ctx context.Context, req *FunctionRequest) (*Decision, error)

	// ExecuteFunction routes and executes the request. Provider failures
	// are reported in the result, not as an error.
	ExecuteFunction(ctx context.Context, req *FunctionRequest) (*ExecutionResult, error)

	// HealthCheckAllProviders probes every healthy provider and records failures.
	HealthCheckAllProviders(ctx context.Context) map[providers.Kind]health.ProviderHealth

	// GetStatus returns a dashboard snapshot.
	GetStatus(ctx context.Context) *Status

	// GetStrategy returns the name of the active strategy.
	GetStrategy() string

	// SetStrategy swaps the active strategy.
	SetStrategy(s Strategy)

	// GetStats returns current routing statistics.
	GetStats() *RoutingStats
}

// Strategy selects one candidate for a request.
//
// Candidates are healthy and in configuration order. Quota-gated
// strategies consider only candidates with WithinQuota set and return
// ErrNoEligibleProviders when none qualify.
//
// Implementations must be thread-safe.
type Strategy interface {
	SelectProvider(req *FunctionRequest, candidates []Candidate) (*Selection, error)

	// GetName returns the strategy name for logging and statistics.
	GetName() string

	// Reset clears internal state. It is primarily used in tests.
	Reset()
}

// QuotaSource reports the quota position of a provider.
type QuotaSource interface {
	QuotaStatus(ctx context.Context, kind providers.Kind) QuotaStatus
}

// ExecutionRecorder receives successful executions for the usage series.
type ExecutionRecorder interface {
	RecordExecution(ctx context.Context, kind providers.Kind, at time.Time, executions int64, cost float64) error
}

// MetricsRecorder receives execution and routing metrics.
type MetricsRecorder interface {
	RecordExecution(provider string, success bool, latency time.Duration, cost float64)
	RecordRetry(provider string)
	RecordDecision(strategy, provider string, fallback bool)
	SetProviderHealth(provider string, healthy bool)
}
