package config

import "time"

// Config is the root configuration structure for quotaflow.
// It contains all configuration sections for the compute providers, quota
// thresholds, load balancing, projections, usage tracking, monitoring, the
// status server and telemetry.
type Config struct {
	// Providers contains configuration for each compute provider.
	// Keys are provider kinds ("aws_lambda", "gcp_functions", "azure_functions").
	Providers map[string]ProviderConfig `yaml:"providers"`

	// Quota contains the warning and critical usage thresholds.
	Quota QuotaConfig `yaml:"quota"`

	// LoadBalancing contains strategy selection, retry and circuit breaker settings.
	LoadBalancing LoadBalancingConfig `yaml:"load_balancing"`

	// Projection contains monthly execution projection settings.
	Projection ProjectionConfig `yaml:"projection"`

	// Usage contains usage tracking, retention and persistence settings.
	Usage UsageConfig `yaml:"usage"`

	// Monitoring contains alerting and notification settings.
	Monitoring MonitoringConfig `yaml:"monitoring"`

	// Server contains the status HTTP server configuration.
	Server ServerConfig `yaml:"server"`

	// Telemetry contains logging and metrics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ProviderConfig contains configuration for a single compute provider.
type ProviderConfig struct {
	// Enabled controls whether the provider takes part in routing.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Mode selects the adapter implementation.
	// Options: "simulated", "http"
	// Default: "simulated"
	Mode string `yaml:"mode"`

	// BaseURL is the invoke endpoint base URL (http mode only).
	// Example: "https://lambda.eu-central-1.amazonaws.com"
	BaseURL string `yaml:"base_url"`

	// CredentialsEnv is the name of the environment variable holding the
	// provider credential. The value is sent as a bearer token in http mode.
	CredentialsEnv string `yaml:"credentials_env"`

	// Timeout is the per-invocation HTTP timeout.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// Order is the provider's position in candidate ordering. Lower first.
	// Ties are broken by kind name.
	Order int `yaml:"order"`

	// Limits overrides the built-in free-tier limits for this provider.
	// Zero values keep the built-in default.
	Limits LimitsConfig `yaml:"limits"`

	// Simulation tunes the simulated adapter.
	Simulation SimulationConfig `yaml:"simulation"`
}

// IsEnabled reports whether the provider is enabled. Providers are enabled
// unless explicitly disabled.
func (p ProviderConfig) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

// LimitsConfig contains per-provider quota ceilings.
type LimitsConfig struct {
	MonthlyExecutions     int64         `yaml:"monthly_executions"`
	MonthlyComputeSeconds float64       `yaml:"monthly_compute_seconds"`
	MonthlyRequests       int64         `yaml:"monthly_requests"`
	MaxConcurrency        int           `yaml:"max_concurrency"`
	MaxMemoryMB           int           `yaml:"max_memory_mb"`
	MaxTimeout            time.Duration `yaml:"max_timeout"`
	StorageGB             float64       `yaml:"storage_gb"`
}

// SimulationConfig tunes the in-memory simulated adapter.
type SimulationConfig struct {
	// Latency is the artificial invocation latency.
	// Default: 0
	Latency time.Duration `yaml:"latency"`

	// FailureRate is the probability (0.0-1.0) that an invocation fails.
	// Default: 0
	FailureRate float64 `yaml:"failure_rate"`
}

// QuotaConfig contains quota usage thresholds in percent (0-100).
type QuotaConfig struct {
	// WarningThreshold is the usage percentage at which a provider is
	// excluded by the quota gate and a warning alert is raised.
	// Default: 80
	WarningThreshold float64 `yaml:"warning_threshold"`

	// CriticalThreshold is the usage percentage at which a critical alert
	// is raised.
	// Default: 95
	CriticalThreshold float64 `yaml:"critical_threshold"`
}

// LoadBalancingConfig contains routing configuration.
type LoadBalancingConfig struct {
	// Strategy is the load-balancing strategy.
	// Options: "cost_optimized", "performance_optimized", "balanced",
	// "round_robin", "least_connections"
	// Default: "balanced"
	Strategy string `yaml:"strategy"`

	// RetryCount is the number of execution attempts per request.
	// Default: 3
	RetryCount int `yaml:"retry_count"`

	// RetryBaseDelay is the base backoff delay. Attempt n waits base * 2^n.
	// Default: 1s
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`

	// CircuitBreakerThreshold is the number of consecutive failures that
	// mark a provider unhealthy.
	// Default: 5
	CircuitBreakerThreshold int `yaml:"circuit_breaker_threshold"`

	// CircuitBreakerTimeout is the cool-down after which an unhealthy
	// provider becomes selectable again.
	// Default: 300s
	CircuitBreakerTimeout time.Duration `yaml:"circuit_breaker_timeout"`

	// PerformanceWindowMinutes is the trailing window for error rates.
	// Default: 60
	PerformanceWindowMinutes int `yaml:"performance_window_minutes"`

	// ResponseTimeCeilingMs normalizes response times in performance scores.
	// Default: 5000
	ResponseTimeCeilingMs float64 `yaml:"response_time_ceiling_ms"`

	// CostScoreScale scales the balanced strategy cost score:
	// max(0, 1 - cost*scale).
	// Default: 10000
	CostScoreScale float64 `yaml:"cost_score_scale"`

	// Weights contains the balanced strategy weights.
	Weights BalancedWeights `yaml:"weights"`

	// DefaultDurationMs is the expected duration used when a request does
	// not specify one.
	// Default: 1000
	DefaultDurationMs int64 `yaml:"default_duration_ms"`

	// DefaultMemoryMB is the memory size used when a request does not
	// specify one.
	// Default: 128
	DefaultMemoryMB int64 `yaml:"default_memory_mb"`
}

// BalancedWeights contains the balanced strategy score weights.
type BalancedWeights struct {
	// Cost is the cost score weight. Default: 0.4
	Cost float64 `yaml:"cost"`

	// Performance is the performance score weight. Default: 0.3
	Performance float64 `yaml:"performance"`

	// Quota is the quota headroom score weight. Default: 0.3
	Quota float64 `yaml:"quota"`
}

// ProjectionConfig contains projection engine configuration.
type ProjectionConfig struct {
	// Method is the primary projection method.
	// Options: "simple_average", "weighted_average", "linear_regression",
	// "exponential_smoothing"
	// Default: "weighted_average"
	Method string `yaml:"method"`

	// FallbackMethod is used when the primary method cannot produce a value.
	// Default: "simple_average"
	FallbackMethod string `yaml:"fallback_method"`

	// AdvancedMethods lists the methods evaluated when comparing methods.
	// Default: all four methods
	AdvancedMethods []string `yaml:"advanced_methods"`

	// MinDataPoints is the minimum number of daily points required for a
	// non-fallback projection.
	// Default: 3
	MinDataPoints int `yaml:"min_data_points"`

	// FallbackExecutions is the conservative projection used when there is
	// not enough data.
	// Default: 1000
	FallbackExecutions int64 `yaml:"fallback_executions"`

	// TrendWindowDays is the trailing window for trend analysis.
	// Default: 30
	TrendWindowDays int `yaml:"trend_window_days"`

	// SeasonalWindowDays is the trailing window for seasonal analysis.
	// Default: 90
	SeasonalWindowDays int `yaml:"seasonal_window_days"`

	// TrendAdjustmentWeight scales the trend adjustment.
	// Default: 0.2
	TrendAdjustmentWeight float64 `yaml:"trend_adjustment_weight"`

	// SeasonalAdjustmentWeight scales the seasonal adjustment.
	// Default: 0.15
	SeasonalAdjustmentWeight float64 `yaml:"seasonal_adjustment_weight"`

	// ConfidenceThreshold flags projections below this confidence.
	// Default: 0.6
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`

	// VolatilityThreshold is the coefficient of variation above which a
	// trend is classified as volatile.
	// Default: 0.5
	VolatilityThreshold float64 `yaml:"volatility_threshold"`

	// SmoothingAlpha is the exponential smoothing factor.
	// Default: 0.3
	SmoothingAlpha float64 `yaml:"smoothing_alpha"`
}

// UsageConfig contains usage tracking configuration.
type UsageConfig struct {
	// DataRetentionDays bounds the usage snapshot history.
	// Default: 30
	DataRetentionDays int `yaml:"data_retention_days"`

	// PollSchedule is the cron schedule for usage polling.
	// Default: "@every 1m"
	PollSchedule string `yaml:"poll_schedule"`

	// PruneSchedule is the cron schedule for pruning persisted history.
	// Default: "0 3 * * *"
	PruneSchedule string `yaml:"prune_schedule"`

	// Storage selects the persistence backend.
	Storage StorageConfig `yaml:"storage"`
}

// StorageConfig selects a row storage backend.
type StorageConfig struct {
	// Backend is the storage backend.
	// Options: "memory", "sqlite"
	// Default: "memory"
	Backend string `yaml:"backend"`

	// Path is the SQLite database file path.
	Path string `yaml:"path"`

	// BusyTimeout is how long SQLite waits on locks.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// MonitoringConfig contains alerting configuration.
type MonitoringConfig struct {
	// Enabled controls whether the alert monitor runs.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// CheckSchedule is the cron schedule for alert checks.
	// Default: "@every 5m"
	CheckSchedule string `yaml:"check_schedule"`

	// WebhookURL receives alert notifications as JSON when set.
	WebhookURL string `yaml:"webhook_url"`

	// WebhookTimeout is the notification request timeout.
	// Default: 10s
	WebhookTimeout time.Duration `yaml:"webhook_timeout"`

	// Storage selects the alert persistence backend.
	Storage StorageConfig `yaml:"storage"`
}

// IsEnabled reports whether alert monitoring is enabled.
func (m MonitoringConfig) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// ServerConfig contains the status HTTP server configuration.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Default: "127.0.0.1:8090"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request.
	// Default: 15s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response. It must
	// exceed the longest expected function execution including retries.
	// Default: 60s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// Default: 15s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains OpenTelemetry tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether the metrics endpoint is served.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Path is the HTTP path for the metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "quotaflow"
	Namespace string `yaml:"namespace"`

	// LatencyBuckets defines histogram buckets for execution latency (seconds).
	// Default: [0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30]
	LatencyBuckets []float64 `yaml:"latency_buckets"`
}

// IsEnabled reports whether the metrics endpoint is enabled.
func (m MetricsConfig) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// TracingConfig contains OpenTelemetry tracing configuration.
type TracingConfig struct {
	// Enabled controls whether spans are exported.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP gRPC collector address.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS to the collector.
	// Default: false
	Insecure bool `yaml:"insecure"`

	// Timeout bounds each export request.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`

	// Sampler selects the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "always"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces kept by the "ratio" sampler.
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// ServiceName is reported as the service.name resource attribute.
	// Default: "quotaflow"
	ServiceName string `yaml:"service_name"`
}
