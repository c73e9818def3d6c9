package config

import (
	"errors"
	"strings"
	"testing"
)

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.LoadBalancing.Strategy = "fastest"
	cfg.Quota.WarningThreshold = 99

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation to fail")
	}

	var validationErr ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if len(validationErr.Errors) < 3 {
		t.Errorf("expected at least 3 errors, got %d: %v", len(validationErr.Errors), validationErr.Errors)
	}
	if !strings.Contains(validationErr.Error(), "validation failed with") {
		t.Errorf("error message should mention multiple errors: %s", validationErr.Error())
	}
}

func TestValidate_Fields(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*Config)
		errorField string
	}{
		{
			name:       "unknown provider kind",
			mutate:     func(c *Config) { c.Providers["cloudflare_workers"] = ProviderConfig{Mode: "simulated"} },
			errorField: "providers.cloudflare_workers",
		},
		{
			name: "http mode without base url",
			mutate: func(c *Config) {
				c.Providers["aws_lambda"] = ProviderConfig{Mode: "http"}
			},
			errorField: "providers.aws_lambda.base_url",
		},
		{
			name: "invalid mode",
			mutate: func(c *Config) {
				c.Providers["aws_lambda"] = ProviderConfig{Mode: "grpc"}
			},
			errorField: "providers.aws_lambda.mode",
		},
		{
			name: "failure rate out of range",
			mutate: func(c *Config) {
				p := c.Providers["gcp_functions"]
				p.Simulation.FailureRate = 1.5
				c.Providers["gcp_functions"] = p
			},
			errorField: "providers.gcp_functions.simulation.failure_rate",
		},
		{
			name: "all providers disabled",
			mutate: func(c *Config) {
				off := false
				for k, p := range c.Providers {
					p.Enabled = &off
					c.Providers[k] = p
				}
			},
			errorField: "providers",
		},
		{
			name:       "warning above critical",
			mutate:     func(c *Config) { c.Quota.WarningThreshold = 96 },
			errorField: "quota.warning_threshold",
		},
		{
			name:       "critical above 100",
			mutate:     func(c *Config) { c.Quota.CriticalThreshold = 120 },
			errorField: "quota.critical_threshold",
		},
		{
			name:       "unknown strategy",
			mutate:     func(c *Config) { c.LoadBalancing.Strategy = "random" },
			errorField: "load_balancing.strategy",
		},
		{
			name:       "negative weight",
			mutate:     func(c *Config) { c.LoadBalancing.Weights.Cost = -1 },
			errorField: "load_balancing.weights",
		},
		{
			name:       "unknown projection method",
			mutate:     func(c *Config) { c.Projection.Method = "arima" },
			errorField: "projection.method",
		},
		{
			name:       "bad advanced method",
			mutate:     func(c *Config) { c.Projection.AdvancedMethods = []string{"simple_average", "prophet"} },
			errorField: "projection.advanced_methods[1]",
		},
		{
			name:       "invalid cron schedule",
			mutate:     func(c *Config) { c.Monitoring.CheckSchedule = "every five minutes" },
			errorField: "monitoring.check_schedule",
		},
		{
			name:       "sqlite without path",
			mutate:     func(c *Config) { c.Usage.Storage.Backend = "sqlite" },
			errorField: "usage.storage.path",
		},
		{
			name:       "relative webhook url",
			mutate:     func(c *Config) { c.Monitoring.WebhookURL = "/hooks/alerts" },
			errorField: "monitoring.webhook_url",
		},
		{
			name:       "invalid log level",
			mutate:     func(c *Config) { c.Telemetry.Logging.Level = "verbose" },
			errorField: "telemetry.logging.level",
		},
		{
			name:       "unsorted latency buckets",
			mutate:     func(c *Config) { c.Telemetry.Metrics.LatencyBuckets = []float64{1, 0.5} },
			errorField: "telemetry.metrics.latency_buckets",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			var validationErr ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected ValidationError, got %T", err)
			}
			found := false
			for _, fe := range validationErr.Errors {
				if fe.Field == tt.errorField {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("expected error for field %q, got %v", tt.errorField, validationErr.Errors)
			}
		})
	}
}

func TestIsValidStrategy(t *testing.T) {
	for _, name := range []string{"cost_optimized", "performance_optimized", "balanced", "round_robin", "least_connections"} {
		if !IsValidStrategy(name) {
			t.Errorf("expected %q to be valid", name)
		}
	}
	if IsValidStrategy("weighted") {
		t.Error("expected weighted to be invalid")
	}
}
