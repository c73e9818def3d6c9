package config

import "time"

// Default values for configuration fields.
const (
	// Provider defaults
	DefaultProviderMode    = "simulated"
	DefaultProviderTimeout = 30 * time.Second

	// Quota defaults
	DefaultWarningThreshold  = 80.0
	DefaultCriticalThreshold = 95.0

	// Load balancing defaults
	DefaultStrategy                 = "balanced"
	DefaultRetryCount               = 3
	DefaultRetryBaseDelay           = 1 * time.Second
	DefaultCircuitBreakerThreshold  = 5
	DefaultCircuitBreakerTimeout    = 300 * time.Second
	DefaultPerformanceWindowMinutes = 60
	DefaultResponseTimeCeilingMs    = 5000.0
	DefaultCostScoreScale           = 10000.0
	DefaultCostWeight               = 0.4
	DefaultPerformanceWeight        = 0.3
	DefaultQuotaWeight              = 0.3
	DefaultDurationMs               = 1000
	DefaultMemoryMB                 = 128

	// Projection defaults
	DefaultProjectionMethod         = "weighted_average"
	DefaultFallbackMethod           = "simple_average"
	DefaultMinDataPoints            = 3
	DefaultFallbackExecutions       = 1000
	DefaultTrendWindowDays          = 30
	DefaultSeasonalWindowDays       = 90
	DefaultTrendAdjustmentWeight    = 0.2
	DefaultSeasonalAdjustmentWeight = 0.15
	DefaultConfidenceThreshold      = 0.6
	DefaultVolatilityThreshold      = 0.5
	DefaultSmoothingAlpha           = 0.3

	// Usage defaults
	DefaultDataRetentionDays = 30
	DefaultPollSchedule      = "@every 1m"
	DefaultPruneSchedule     = "0 3 * * *"
	DefaultStorageBackend    = "memory"
	DefaultBusyTimeout       = 5 * time.Second

	// Monitoring defaults
	DefaultCheckSchedule  = "@every 5m"
	DefaultWebhookTimeout = 10 * time.Second

	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8090"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultShutdownTimeout = 15 * time.Second

	// Telemetry defaults
	DefaultLoggingLevel     = "info"
	DefaultLoggingFormat    = "json"
	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "quotaflow"
	DefaultTracingEndpoint  = "localhost:4317"
	DefaultTracingTimeout   = 10 * time.Second
	DefaultTracingSampler   = "always"
	DefaultSampleRatio      = 1.0
	DefaultServiceName      = "quotaflow"
)

// DefaultLatencyBuckets are the execution latency histogram buckets in seconds.
var DefaultLatencyBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// DefaultAdvancedMethods lists every projection method.
var DefaultAdvancedMethods = []string{
	"simple_average",
	"weighted_average",
	"linear_regression",
	"exponential_smoothing",
}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Provider defaults
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}
	for name, provider := range cfg.Providers {
		if provider.Mode == "" {
			provider.Mode = DefaultProviderMode
		}
		if provider.Timeout == 0 {
			provider.Timeout = DefaultProviderTimeout
		}
		cfg.Providers[name] = provider
	}

	// Quota defaults
	if cfg.Quota.WarningThreshold == 0 {
		cfg.Quota.WarningThreshold = DefaultWarningThreshold
	}
	if cfg.Quota.CriticalThreshold == 0 {
		cfg.Quota.CriticalThreshold = DefaultCriticalThreshold
	}

	applyLoadBalancingDefaults(&cfg.LoadBalancing)
	applyProjectionDefaults(&cfg.Projection)

	// Usage defaults
	if cfg.Usage.DataRetentionDays == 0 {
		cfg.Usage.DataRetentionDays = DefaultDataRetentionDays
	}
	if cfg.Usage.PollSchedule == "" {
		cfg.Usage.PollSchedule = DefaultPollSchedule
	}
	if cfg.Usage.PruneSchedule == "" {
		cfg.Usage.PruneSchedule = DefaultPruneSchedule
	}
	applyStorageDefaults(&cfg.Usage.Storage)

	// Monitoring defaults
	if cfg.Monitoring.CheckSchedule == "" {
		cfg.Monitoring.CheckSchedule = DefaultCheckSchedule
	}
	if cfg.Monitoring.WebhookTimeout == 0 {
		cfg.Monitoring.WebhookTimeout = DefaultWebhookTimeout
	}
	applyStorageDefaults(&cfg.Monitoring.Storage)

	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if len(cfg.Telemetry.Metrics.LatencyBuckets) == 0 {
		cfg.Telemetry.Metrics.LatencyBuckets = append([]float64(nil), DefaultLatencyBuckets...)
	}
	applyTracingDefaults(&cfg.Telemetry.Tracing)
}

func applyTracingDefaults(t *TracingConfig) {
	if t.Endpoint == "" {
		t.Endpoint = DefaultTracingEndpoint
	}
	if t.Timeout == 0 {
		t.Timeout = DefaultTracingTimeout
	}
	if t.Sampler == "" {
		t.Sampler = DefaultTracingSampler
	}
	if t.SampleRatio == 0 {
		t.SampleRatio = DefaultSampleRatio
	}
	if t.ServiceName == "" {
		t.ServiceName = DefaultServiceName
	}
}

func applyLoadBalancingDefaults(lb *LoadBalancingConfig) {
	if lb.Strategy == "" {
		lb.Strategy = DefaultStrategy
	}
	if lb.RetryCount == 0 {
		lb.RetryCount = DefaultRetryCount
	}
	if lb.RetryBaseDelay == 0 {
		lb.RetryBaseDelay = DefaultRetryBaseDelay
	}
	if lb.CircuitBreakerThreshold == 0 {
		lb.CircuitBreakerThreshold = DefaultCircuitBreakerThreshold
	}
	if lb.CircuitBreakerTimeout == 0 {
		lb.CircuitBreakerTimeout = DefaultCircuitBreakerTimeout
	}
	if lb.PerformanceWindowMinutes == 0 {
		lb.PerformanceWindowMinutes = DefaultPerformanceWindowMinutes
	}
	if lb.ResponseTimeCeilingMs == 0 {
		lb.ResponseTimeCeilingMs = DefaultResponseTimeCeilingMs
	}
	if lb.CostScoreScale == 0 {
		lb.CostScoreScale = DefaultCostScoreScale
	}
	// Weights are applied as a group so a partially specified set is kept.
	if lb.Weights == (BalancedWeights{}) {
		lb.Weights = BalancedWeights{
			Cost:        DefaultCostWeight,
			Performance: DefaultPerformanceWeight,
			Quota:       DefaultQuotaWeight,
		}
	}
	if lb.DefaultDurationMs == 0 {
		lb.DefaultDurationMs = DefaultDurationMs
	}
	if lb.DefaultMemoryMB == 0 {
		lb.DefaultMemoryMB = DefaultMemoryMB
	}
}

func applyProjectionDefaults(p *ProjectionConfig) {
	if p.Method == "" {
		p.Method = DefaultProjectionMethod
	}
	if p.FallbackMethod == "" {
		p.FallbackMethod = DefaultFallbackMethod
	}
	if len(p.AdvancedMethods) == 0 {
		p.AdvancedMethods = append([]string(nil), DefaultAdvancedMethods...)
	}
	if p.MinDataPoints == 0 {
		p.MinDataPoints = DefaultMinDataPoints
	}
	if p.FallbackExecutions == 0 {
		p.FallbackExecutions = DefaultFallbackExecutions
	}
	if p.TrendWindowDays == 0 {
		p.TrendWindowDays = DefaultTrendWindowDays
	}
	if p.SeasonalWindowDays == 0 {
		p.SeasonalWindowDays = DefaultSeasonalWindowDays
	}
	if p.TrendAdjustmentWeight == 0 {
		p.TrendAdjustmentWeight = DefaultTrendAdjustmentWeight
	}
	if p.SeasonalAdjustmentWeight == 0 {
		p.SeasonalAdjustmentWeight = DefaultSeasonalAdjustmentWeight
	}
	if p.ConfidenceThreshold == 0 {
		p.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if p.VolatilityThreshold == 0 {
		p.VolatilityThreshold = DefaultVolatilityThreshold
	}
	if p.SmoothingAlpha == 0 {
		p.SmoothingAlpha = DefaultSmoothingAlpha
	}
}

func applyStorageDefaults(s *StorageConfig) {
	if s.Backend == "" {
		s.Backend = DefaultStorageBackend
	}
	if s.BusyTimeout == 0 {
		s.BusyTimeout = DefaultBusyTimeout
	}
}

// Default returns a configuration with every default applied and all three
// providers enabled in simulated mode.
func Default() *Config {
	cfg := &Config{
		Providers: map[string]ProviderConfig{
			"aws_lambda":      {Order: 0},
			"gcp_functions":   {Order: 1},
			"azure_functions": {Order: 2},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}
