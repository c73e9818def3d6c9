package providers

import (
	"fmt"
	"time"
)

// Kind identifies one of the supported compute providers.
type Kind string

const (
	// KindAWSLambda is AWS Lambda.
	KindAWSLambda Kind = "aws_lambda"

	// KindGCPFunctions is Google Cloud Functions.
	KindGCPFunctions Kind = "gcp_functions"

	// KindAzureFunctions is Azure Functions.
	KindAzureFunctions Kind = "azure_functions"
)

// Kinds returns every supported provider kind in canonical order.
func Kinds() []Kind {
	return []Kind{KindAWSLambda, KindGCPFunctions, KindAzureFunctions}
}

// ParseKind converts a configuration key into a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindAWSLambda, KindGCPFunctions, KindAzureFunctions:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// String returns the kind identifier.
func (k Kind) String() string {
	return string(k)
}

// QuotaLimits is the static monthly ceiling for a provider's free tier.
// Limits are set once at construction and never mutated.
type QuotaLimits struct {
	// MonthlyExecutions is the number of invocations included per month.
	MonthlyExecutions int64 `json:"monthly_executions"`

	// MonthlyComputeSeconds is the included compute in GB-seconds.
	MonthlyComputeSeconds float64 `json:"monthly_compute_seconds"`

	// MonthlyRequests is the number of requests included per month.
	MonthlyRequests int64 `json:"monthly_requests"`

	// MaxConcurrency is the concurrent execution ceiling.
	MaxConcurrency int `json:"max_concurrency"`

	// MaxMemoryMB is the largest memory size a function may request.
	MaxMemoryMB int `json:"max_memory_mb"`

	// MaxTimeout is the longest a single execution may run.
	MaxTimeout time.Duration `json:"max_timeout"`

	// StorageGB is the included deployment storage.
	StorageGB float64 `json:"storage_gb"`
}

// QuotaUsage is a point-in-time view of a provider's month-to-date consumption.
type QuotaUsage struct {
	Provider             Kind      `json:"provider"`
	Executions           int64     `json:"executions"`
	ComputeSeconds       float64   `json:"compute_seconds"`
	Requests             int64     `json:"requests"`
	ConcurrentExecutions int       `json:"concurrent_executions"`
	StorageGB            float64   `json:"storage_gb"`
	Cost                 float64   `json:"cost"`
	Timestamp            time.Time `json:"timestamp"`

	// Stale is set when the value is a cached fallback rather than a live read.
	Stale bool `json:"stale,omitempty"`
}

// FunctionConfig describes a function deployment.
type FunctionConfig struct {
	Name        string            `json:"name"`
	Runtime     string            `json:"runtime,omitempty"`
	Handler     string            `json:"handler,omitempty"`
	MemoryMB    int               `json:"memory_mb"`
	Timeout     time.Duration     `json:"timeout"`
	Environment map[string]string `json:"environment,omitempty"`
}

// UsagePercentages is month-to-date consumption as a percentage of each
// monthly limit.
type UsagePercentages struct {
	Executions float64 `json:"executions"`
	Compute    float64 `json:"compute"`
	Requests   float64 `json:"requests"`
}

// Max returns the highest of the three percentages.
func (p UsagePercentages) Max() float64 {
	return max(p.Executions, p.Compute, p.Requests)
}

// Percentages computes usage against the limits. A zero limit yields 0%.
func (l QuotaLimits) Percentages(u QuotaUsage) UsagePercentages {
	return UsagePercentages{
		Executions: percent(float64(u.Executions), float64(l.MonthlyExecutions)),
		Compute:    percent(u.ComputeSeconds, l.MonthlyComputeSeconds),
		Requests:   percent(float64(u.Requests), float64(l.MonthlyRequests)),
	}
}

func percent(used, limit float64) float64 {
	if limit <= 0 {
		return 0
	}
	return used / limit * 100
}
