package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "quota.warning_threshold").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

var (
	validKinds = map[string]bool{
		"aws_lambda":      true,
		"gcp_functions":   true,
		"azure_functions": true,
	}
	validStrategies = map[string]bool{
		"cost_optimized":        true,
		"performance_optimized": true,
		"balanced":              true,
		"round_robin":           true,
		"least_connections":     true,
	}
	validMethods = map[string]bool{
		"simple_average":        true,
		"weighted_average":      true,
		"linear_regression":     true,
		"exponential_smoothing": true,
	}
)

// IsValidStrategy reports whether name is a known load-balancing strategy.
func IsValidStrategy(name string) bool {
	return validStrategies[name]
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateProviders(cfg.Providers)...)
	errs = append(errs, validateQuota(&cfg.Quota)...)
	errs = append(errs, validateLoadBalancing(&cfg.LoadBalancing)...)
	errs = append(errs, validateProjection(&cfg.Projection)...)
	errs = append(errs, validateUsage(&cfg.Usage)...)
	errs = append(errs, validateMonitoring(&cfg.Monitoring)...)
	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

// validateProviders validates provider configurations.
func validateProviders(providers map[string]ProviderConfig) []FieldError {
	var errs []FieldError

	if len(providers) == 0 {
		return append(errs, FieldError{
			Field:   "providers",
			Message: "at least one provider must be configured",
		})
	}

	enabled := 0
	for name, p := range providers {
		prefix := "providers." + name

		if !validKinds[name] {
			errs = append(errs, FieldError{
				Field:   prefix,
				Message: "unknown provider kind (must be aws_lambda, gcp_functions or azure_functions)",
			})
			continue
		}
		if p.IsEnabled() {
			enabled++
		}

		switch p.Mode {
		case "simulated":
		case "http":
			if p.BaseURL == "" {
				errs = append(errs, FieldError{
					Field:   prefix + ".base_url",
					Message: "base URL is required in http mode",
				})
			} else if u, err := url.Parse(p.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
				errs = append(errs, FieldError{
					Field:   prefix + ".base_url",
					Message: "base URL must be an absolute URL",
				})
			}
		default:
			errs = append(errs, FieldError{
				Field:   prefix + ".mode",
				Message: fmt.Sprintf("invalid mode %q (must be simulated or http)", p.Mode),
			})
		}

		if p.Timeout < 0 {
			errs = append(errs, FieldError{
				Field:   prefix + ".timeout",
				Message: "timeout must be positive",
			})
		}
		if p.Simulation.FailureRate < 0 || p.Simulation.FailureRate > 1 {
			errs = append(errs, FieldError{
				Field:   prefix + ".simulation.failure_rate",
				Message: "failure rate must be between 0 and 1",
			})
		}
		if p.Simulation.Latency < 0 {
			errs = append(errs, FieldError{
				Field:   prefix + ".simulation.latency",
				Message: "latency must be non-negative",
			})
		}
		if p.Limits.MonthlyExecutions < 0 || p.Limits.MonthlyComputeSeconds < 0 ||
			p.Limits.MaxConcurrency < 0 || p.Limits.MaxMemoryMB < 0 {
			errs = append(errs, FieldError{
				Field:   prefix + ".limits",
				Message: "limits must be non-negative",
			})
		}
	}

	if enabled == 0 {
		errs = append(errs, FieldError{
			Field:   "providers",
			Message: "at least one provider must be enabled",
		})
	}

	return errs
}

func validateQuota(cfg *QuotaConfig) []FieldError {
	var errs []FieldError

	if cfg.WarningThreshold <= 0 || cfg.WarningThreshold > 100 {
		errs = append(errs, FieldError{
			Field:   "quota.warning_threshold",
			Message: "warning threshold must be in (0, 100]",
		})
	}
	if cfg.CriticalThreshold <= 0 || cfg.CriticalThreshold > 100 {
		errs = append(errs, FieldError{
			Field:   "quota.critical_threshold",
			Message: "critical threshold must be in (0, 100]",
		})
	}
	if cfg.WarningThreshold >= cfg.CriticalThreshold {
		errs = append(errs, FieldError{
			Field:   "quota.warning_threshold",
			Message: "warning threshold must be below critical threshold",
		})
	}

	return errs
}

func validateLoadBalancing(cfg *LoadBalancingConfig) []FieldError {
	var errs []FieldError

	if !validStrategies[cfg.Strategy] {
		errs = append(errs, FieldError{
			Field:   "load_balancing.strategy",
			Message: fmt.Sprintf("unknown strategy %q", cfg.Strategy),
		})
	}
	if cfg.RetryCount < 1 {
		errs = append(errs, FieldError{
			Field:   "load_balancing.retry_count",
			Message: "retry count must be at least 1",
		})
	}
	if cfg.RetryBaseDelay < 0 {
		errs = append(errs, FieldError{
			Field:   "load_balancing.retry_base_delay",
			Message: "retry base delay must be non-negative",
		})
	}
	if cfg.CircuitBreakerThreshold < 1 {
		errs = append(errs, FieldError{
			Field:   "load_balancing.circuit_breaker_threshold",
			Message: "circuit breaker threshold must be at least 1",
		})
	}
	if cfg.CircuitBreakerTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "load_balancing.circuit_breaker_timeout",
			Message: "circuit breaker timeout must be positive",
		})
	}
	if cfg.PerformanceWindowMinutes < 1 {
		errs = append(errs, FieldError{
			Field:   "load_balancing.performance_window_minutes",
			Message: "performance window must be at least 1 minute",
		})
	}

	w := cfg.Weights
	if w.Cost < 0 || w.Performance < 0 || w.Quota < 0 {
		errs = append(errs, FieldError{
			Field:   "load_balancing.weights",
			Message: "weights must be non-negative",
		})
	} else if w.Cost+w.Performance+w.Quota == 0 {
		errs = append(errs, FieldError{
			Field:   "load_balancing.weights",
			Message: "at least one weight must be positive",
		})
	}

	return errs
}

func validateProjection(cfg *ProjectionConfig) []FieldError {
	var errs []FieldError

	if !validMethods[cfg.Method] {
		errs = append(errs, FieldError{
			Field:   "projection.method",
			Message: fmt.Sprintf("unknown projection method %q", cfg.Method),
		})
	}
	if !validMethods[cfg.FallbackMethod] {
		errs = append(errs, FieldError{
			Field:   "projection.fallback_method",
			Message: fmt.Sprintf("unknown projection method %q", cfg.FallbackMethod),
		})
	}
	for i, m := range cfg.AdvancedMethods {
		if !validMethods[m] {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("projection.advanced_methods[%d]", i),
				Message: fmt.Sprintf("unknown projection method %q", m),
			})
		}
	}
	if cfg.MinDataPoints < 1 {
		errs = append(errs, FieldError{
			Field:   "projection.min_data_points",
			Message: "min data points must be at least 1",
		})
	}
	if cfg.FallbackExecutions < 0 {
		errs = append(errs, FieldError{
			Field:   "projection.fallback_executions",
			Message: "fallback executions must be non-negative",
		})
	}
	if cfg.SmoothingAlpha <= 0 || cfg.SmoothingAlpha > 1 {
		errs = append(errs, FieldError{
			Field:   "projection.smoothing_alpha",
			Message: "smoothing alpha must be in (0, 1]",
		})
	}
	if cfg.ConfidenceThreshold < 0 || cfg.ConfidenceThreshold > 1 {
		errs = append(errs, FieldError{
			Field:   "projection.confidence_threshold",
			Message: "confidence threshold must be between 0 and 1",
		})
	}

	return errs
}

func validateUsage(cfg *UsageConfig) []FieldError {
	var errs []FieldError

	if cfg.DataRetentionDays < 1 {
		errs = append(errs, FieldError{
			Field:   "usage.data_retention_days",
			Message: "retention must be at least 1 day",
		})
	}
	errs = append(errs, validateSchedule("usage.poll_schedule", cfg.PollSchedule)...)
	errs = append(errs, validateSchedule("usage.prune_schedule", cfg.PruneSchedule)...)
	errs = append(errs, validateStorage("usage.storage", &cfg.Storage)...)

	return errs
}

func validateMonitoring(cfg *MonitoringConfig) []FieldError {
	var errs []FieldError

	errs = append(errs, validateSchedule("monitoring.check_schedule", cfg.CheckSchedule)...)
	if cfg.WebhookURL != "" {
		if u, err := url.Parse(cfg.WebhookURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, FieldError{
				Field:   "monitoring.webhook_url",
				Message: "webhook URL must be an absolute URL",
			})
		}
	}
	errs = append(errs, validateStorage("monitoring.storage", &cfg.Storage)...)

	return errs
}

func validateSchedule(field, spec string) []FieldError {
	if _, err := cron.ParseStandard(spec); err != nil {
		return []FieldError{{
			Field:   field,
			Message: fmt.Sprintf("invalid cron schedule %q: %v", spec, err),
		}}
	}
	return nil
}

func validateStorage(prefix string, cfg *StorageConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory":
	case "sqlite":
		if cfg.Path == "" {
			errs = append(errs, FieldError{
				Field:   prefix + ".path",
				Message: "path is required for the sqlite backend",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   prefix + ".backend",
			Message: fmt.Sprintf("invalid backend %q (must be memory or sqlite)", cfg.Backend),
		})
	}

	return errs
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	}
	if cfg.ReadTimeout < 0 || cfg.WriteTimeout < 0 || cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server",
			Message: "timeouts must be positive",
		})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid log level %q (must be debug, info, warn or error)", cfg.Logging.Level),
		})
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid log format %q (must be json or text)", cfg.Logging.Format),
		})
	}
	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path must start with /",
		})
	}
	for i := 1; i < len(cfg.Metrics.LatencyBuckets); i++ {
		if cfg.Metrics.LatencyBuckets[i] <= cfg.Metrics.LatencyBuckets[i-1] {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.latency_buckets",
				Message: "latency buckets must be strictly increasing",
			})
			break
		}
	}

	switch cfg.Tracing.Sampler {
	case "always", "never":
	case "ratio":
		if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sample_ratio",
				Message: fmt.Sprintf("sample ratio %g must be between 0 and 1", cfg.Tracing.SampleRatio),
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q (must be always, never or ratio)", cfg.Tracing.Sampler),
		})
	}
	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "endpoint is required when tracing is enabled",
		})
	}

	return errs
}
