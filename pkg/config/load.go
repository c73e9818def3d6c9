package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "QUOTAFLOW_"

// knownProviders are the provider kinds checked for environment overrides
// even when absent from the file.
var knownProviders = []string{"aws_lambda", "gcp_functions", "azure_functions"}

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// The configuration is not modified by environment variables; use LoadConfigWithEnvOverrides
// for that functionality.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML configuration and applies defaults without validating.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)
	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention QUOTAFLOW_SECTION_FIELD (e.g., QUOTAFLOW_SERVER_LISTEN_ADDRESS).
// Environment variables always take precedence over file-based configuration.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	applyEnvOverrides(cfg)
	// Overrides may introduce providers that need defaults.
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Quota overrides
	setFloat("QUOTA_WARNING_THRESHOLD", &cfg.Quota.WarningThreshold)
	setFloat("QUOTA_CRITICAL_THRESHOLD", &cfg.Quota.CriticalThreshold)

	// Load balancing overrides
	setString("LOAD_BALANCING_STRATEGY", &cfg.LoadBalancing.Strategy)
	setInt("LOAD_BALANCING_RETRY_COUNT", &cfg.LoadBalancing.RetryCount)
	setDuration("LOAD_BALANCING_RETRY_BASE_DELAY", &cfg.LoadBalancing.RetryBaseDelay)
	setInt("LOAD_BALANCING_CIRCUIT_BREAKER_THRESHOLD", &cfg.LoadBalancing.CircuitBreakerThreshold)
	setDuration("LOAD_BALANCING_CIRCUIT_BREAKER_TIMEOUT", &cfg.LoadBalancing.CircuitBreakerTimeout)

	// Projection overrides
	setString("PROJECTION_METHOD", &cfg.Projection.Method)
	setString("PROJECTION_FALLBACK_METHOD", &cfg.Projection.FallbackMethod)
	setInt("PROJECTION_MIN_DATA_POINTS", &cfg.Projection.MinDataPoints)

	// Usage overrides
	setInt("USAGE_DATA_RETENTION_DAYS", &cfg.Usage.DataRetentionDays)
	setString("USAGE_STORAGE_BACKEND", &cfg.Usage.Storage.Backend)
	setString("USAGE_STORAGE_PATH", &cfg.Usage.Storage.Path)

	// Monitoring overrides
	setBoolPtr("MONITORING_ENABLED", &cfg.Monitoring.Enabled)
	setString("MONITORING_CHECK_SCHEDULE", &cfg.Monitoring.CheckSchedule)
	setString("MONITORING_WEBHOOK_URL", &cfg.Monitoring.WebhookURL)
	setString("MONITORING_STORAGE_BACKEND", &cfg.Monitoring.Storage.Backend)
	setString("MONITORING_STORAGE_PATH", &cfg.Monitoring.Storage.Path)

	// Server overrides
	setString("SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	setDuration("SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	setDuration("SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)

	// Telemetry overrides
	setString("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	setString("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	setBoolPtr("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	setString("TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	setBool("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	setString("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	setString("TELEMETRY_TRACING_SAMPLER", &cfg.Telemetry.Tracing.Sampler)
	setFloat("TELEMETRY_TRACING_SAMPLE_RATIO", &cfg.Telemetry.Tracing.SampleRatio)

	for _, name := range knownProviders {
		applyProviderEnvOverrides(cfg, name)
	}
}

// applyProviderEnvOverrides applies environment variable overrides for a specific provider.
// Provider environment variables follow the format QUOTAFLOW_PROVIDERS_<KIND>_<FIELD>
// where KIND is the uppercase provider kind.
func applyProviderEnvOverrides(cfg *Config, providerName string) {
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}

	provider, exists := cfg.Providers[providerName]
	prefix := fmt.Sprintf("PROVIDERS_%s_", strings.ToUpper(providerName))

	modified := false
	modified = setBoolPtr(prefix+"ENABLED", &provider.Enabled) || modified
	modified = setString(prefix+"MODE", &provider.Mode) || modified
	modified = setString(prefix+"BASE_URL", &provider.BaseURL) || modified
	modified = setDuration(prefix+"TIMEOUT", &provider.Timeout) || modified

	// Only update the map if we found at least one override
	if modified || exists {
		cfg.Providers[providerName] = provider
	}
}

func lookup(key string) (string, bool) {
	val := os.Getenv(EnvPrefix + key)
	return val, val != ""
}

func setString(key string, dst *string) bool {
	if val, ok := lookup(key); ok {
		*dst = val
		return true
	}
	return false
}

func setInt(key string, dst *int) bool {
	if val, ok := lookup(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
			return true
		}
	}
	return false
}

func setFloat(key string, dst *float64) bool {
	if val, ok := lookup(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			*dst = f
			return true
		}
	}
	return false
}

func setDuration(key string, dst *time.Duration) bool {
	if val, ok := lookup(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
			return true
		}
	}
	return false
}

func setBool(key string, dst *bool) bool {
	if val, ok := lookup(key); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
			return true
		}
	}
	return false
}

func setBoolPtr(key string, dst **bool) bool {
	if val, ok := lookup(key); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = &b
			return true
		}
	}
	return false
}
