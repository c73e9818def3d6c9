package routing

import (
	"encoding/json"
	"fmt"
	"time"

	"utrix-hq/quotaflow/pkg/health"
	"utrix-hq/quotaflow/pkg/providers"
)

// Strategy names.
const (
	StrategyCostOptimized        = "cost_optimized"
	StrategyPerformanceOptimized = "performance_optimized"
	StrategyBalanced             = "balanced"
	StrategyRoundRobin           = "round_robin"
	StrategyLeastConnections     = "least_connections"
)

// StrategyNames returns every strategy name.
func StrategyNames() []string {
	return []string{
		StrategyCostOptimized,
		StrategyPerformanceOptimized,
		StrategyBalanced,
		StrategyRoundRobin,
		StrategyLeastConnections,
	}
}

// FunctionRequest is one function execution to route.
type FunctionRequest struct {
	// RequestID identifies the execution. A UUID is generated when empty.
	RequestID string `json:"request_id,omitempty"`

	// FunctionName is the function to invoke. Round-robin hashes it.
	FunctionName string `json:"function_name"`

	// FunctionType is a free-form category used in logs.
	FunctionType string `json:"function_type,omitempty"`

	Payload  map[string]any `json:"payload,omitempty"`
	Priority int            `json:"priority,omitempty"`

	// Timeout bounds each attempt. Zero means no per-attempt deadline.
	// On the wire it is timeout_seconds.
	Timeout time.Duration `json:"-"`

	// RetryCount is the attempt budget. Zero uses the configured default.
	RetryCount int `json:"retry_count,omitempty"`

	// ExpectedDurationMs and MemoryMB drive cost estimates. Zero uses the
	// configured defaults.
	ExpectedDurationMs int64 `json:"expected_duration_ms,omitempty"`
	MemoryMB           int64 `json:"memory_mb,omitempty"`

	// PreferredProvider pins the execution to a provider when it is healthy
	// and within quota headroom.
	PreferredProvider providers.Kind `json:"preferred_provider,omitempty"`
}

// MarshalJSON encodes Timeout as timeout_seconds.
func (r FunctionRequest) MarshalJSON() ([]byte, error) {
	type alias FunctionRequest
	return json.Marshal(struct {
		alias
		TimeoutSeconds float64 `json:"timeout_seconds,omitempty"`
	}{alias(r), r.Timeout.Seconds()})
}

// UnmarshalJSON decodes timeout_seconds into Timeout.
func (r *FunctionRequest) UnmarshalJSON(data []byte) error {
	type alias FunctionRequest
	aux := struct {
		*alias
		TimeoutSeconds float64 `json:"timeout_seconds"`
	}{alias: (*alias)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout_seconds must not be negative, got %g", aux.TimeoutSeconds)
	}
	r.Timeout = time.Duration(aux.TimeoutSeconds * float64(time.Second))
	return nil
}

// QuotaStatus is the quota position of a provider as seen by the router.
type QuotaStatus struct {
	// UsagePercent is the highest of the month-to-date percentages.
	UsagePercent float64 `json:"usage_percent"`

	// ProjectedPercent is projected monthly executions against the limit.
	ProjectedPercent float64 `json:"projected_percent"`

	Executions           int64 `json:"executions"`
	ConcurrentExecutions int   `json:"concurrent_executions"`
}

// Candidate is a healthy provider under consideration for one request.
type Candidate struct {
	Provider providers.Provider
	Kind     providers.Kind
	Health   health.ProviderHealth
	Quota    QuotaStatus

	// CostEstimate is the cost of one execution of the request.
	CostEstimate float64

	// WithinQuota is true when both current and projected usage are below
	// the warning threshold.
	WithinQuota bool
}

// Selection is a strategy's choice among candidates.
type Selection struct {
	Provider   providers.Kind
	Reason     string
	Confidence float64

	// Scores holds the per-provider score for scoring strategies.
	Scores map[providers.Kind]float64
}

// Decision is the outcome of one routing call.
type Decision struct {
	SelectedProvider providers.Kind             `json:"selected_provider"`
	Reason           string                     `json:"reason"`
	Confidence       float64                    `json:"confidence"`
	Alternatives     []providers.Kind           `json:"alternatives"`
	EstimatedCost    float64                    `json:"estimated_cost"`
	Strategy         string                     `json:"strategy"`
	IsFallback       bool                       `json:"is_fallback"`
	Scores           map[providers.Kind]float64 `json:"scores,omitempty"`
}

// ExecutionResult is the outcome of ExecuteFunction.
type ExecutionResult struct {
	RequestID    string         `json:"request_id"`
	Success      bool           `json:"success"`
	Provider     providers.Kind `json:"provider,omitempty"`
	LatencyMs    float64        `json:"latency_ms"`
	Response     map[string]any `json:"response,omitempty"`
	Error        string         `json:"error,omitempty"`
	CostEstimate float64        `json:"cost_estimate"`

	// Retries is the number of attempts after the first.
	Retries   int       `json:"retries"`
	Decision  *Decision `json:"decision,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ProviderStatus is the per-provider part of Status.
type ProviderStatus struct {
	Health      health.ProviderHealth `json:"health"`
	Quota       QuotaStatus           `json:"quota"`
	WithinQuota bool                  `json:"within_quota"`
}

// Status is a dashboard snapshot of the load balancer.
type Status struct {
	Strategy         string                            `json:"strategy"`
	OverallHealth    string                            `json:"overall_health"`
	HealthyProviders int                               `json:"healthy_providers"`
	TotalProviders   int                               `json:"total_providers"`
	Providers        map[providers.Kind]ProviderStatus `json:"providers"`
	Stats            *RoutingStats                     `json:"stats"`
	Timestamp        time.Time                         `json:"timestamp"`
}

// RoutingStats contains statistics about routing decisions.
// All counters are updated atomically for thread safety.
type RoutingStats struct {
	// TotalRequests is the total number of routing requests processed.
	TotalRequests int64 `json:"total_requests"`

	// RequestsPerProvider tracks requests routed to each provider.
	RequestsPerProvider map[string]int64 `json:"requests_per_provider"`

	// StrategyUseCount tracks how many times each strategy was used.
	StrategyUseCount map[string]int64 `json:"strategy_use_count"`

	// HealthFilteredCount is the number of requests where unhealthy providers were filtered.
	HealthFilteredCount int64 `json:"health_filtered_count"`

	// QuotaFilteredCount is the number of requests where providers were excluded by the quota gate.
	QuotaFilteredCount int64 `json:"quota_filtered_count"`

	// FallbackCount is the number of low-confidence fallback selections.
	FallbackCount int64 `json:"fallback_count"`

	// ManualOverrideCount is the number of preferred-provider selections.
	ManualOverrideCount int64 `json:"manual_override_count"`

	// Retries is the total number of retried attempts.
	Retries int64 `json:"retries"`

	// FailedExecutions is the number of executions that exhausted their retries.
	FailedExecutions int64 `json:"failed_executions"`

	// Errors is the total number of routing errors.
	Errors int64 `json:"errors"`

	// LastResetTime is when statistics were last reset.
	LastResetTime time.Time `json:"last_reset_time"`
}
