package config

import (
	"testing"
	"time"
)

func TestApplyDefaults(t *testing.T) {
	tests := []struct {
		name  string
		input Config
		check func(*testing.T, *Config)
	}{
		{
			name:  "empty config gets all defaults",
			input: Config{},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Quota.WarningThreshold != DefaultWarningThreshold {
					t.Errorf("expected warning threshold %v, got %v", DefaultWarningThreshold, cfg.Quota.WarningThreshold)
				}
				if cfg.Quota.CriticalThreshold != DefaultCriticalThreshold {
					t.Errorf("expected critical threshold %v, got %v", DefaultCriticalThreshold, cfg.Quota.CriticalThreshold)
				}
				if cfg.LoadBalancing.Strategy != DefaultStrategy {
					t.Errorf("expected strategy %q, got %q", DefaultStrategy, cfg.LoadBalancing.Strategy)
				}
				if cfg.LoadBalancing.CircuitBreakerTimeout != 300*time.Second {
					t.Errorf("expected circuit breaker timeout 300s, got %v", cfg.LoadBalancing.CircuitBreakerTimeout)
				}
				if cfg.LoadBalancing.Weights != (BalancedWeights{Cost: 0.4, Performance: 0.3, Quota: 0.3}) {
					t.Errorf("unexpected weights %+v", cfg.LoadBalancing.Weights)
				}
				if cfg.Projection.Method != "weighted_average" || cfg.Projection.FallbackMethod != "simple_average" {
					t.Errorf("unexpected projection methods %q/%q", cfg.Projection.Method, cfg.Projection.FallbackMethod)
				}
				if cfg.Projection.MinDataPoints != 3 {
					t.Errorf("expected min data points 3, got %d", cfg.Projection.MinDataPoints)
				}
				if len(cfg.Projection.AdvancedMethods) != 4 {
					t.Errorf("expected 4 advanced methods, got %d", len(cfg.Projection.AdvancedMethods))
				}
				if cfg.Usage.Storage.Backend != "memory" || cfg.Monitoring.Storage.Backend != "memory" {
					t.Errorf("expected memory storage backends")
				}
				if cfg.Monitoring.CheckSchedule != "@every 5m" {
					t.Errorf("expected check schedule @every 5m, got %q", cfg.Monitoring.CheckSchedule)
				}
				if !cfg.Monitoring.IsEnabled() || !cfg.Telemetry.Metrics.IsEnabled() {
					t.Errorf("monitoring and metrics should default to enabled")
				}
				if cfg.Server.ListenAddress != DefaultListenAddress {
					t.Errorf("expected listen address %q, got %q", DefaultListenAddress, cfg.Server.ListenAddress)
				}
			},
		},
		{
			name: "existing values are preserved",
			input: Config{
				Providers: map[string]ProviderConfig{
					"aws_lambda": {Mode: "http", BaseURL: "http://localhost:9000", Timeout: 5 * time.Second},
				},
				Quota:         QuotaConfig{WarningThreshold: 70, CriticalThreshold: 90},
				LoadBalancing: LoadBalancingConfig{Strategy: "cost_optimized", Weights: BalancedWeights{Cost: 1}},
			},
			check: func(t *testing.T, cfg *Config) {
				p := cfg.Providers["aws_lambda"]
				if p.Mode != "http" || p.Timeout != 5*time.Second {
					t.Errorf("provider settings overwritten: %+v", p)
				}
				if cfg.Quota.WarningThreshold != 70 || cfg.Quota.CriticalThreshold != 90 {
					t.Errorf("thresholds overwritten: %+v", cfg.Quota)
				}
				if cfg.LoadBalancing.Strategy != "cost_optimized" {
					t.Errorf("strategy overwritten: %q", cfg.LoadBalancing.Strategy)
				}
				if cfg.LoadBalancing.Weights != (BalancedWeights{Cost: 1}) {
					t.Errorf("partial weights overwritten: %+v", cfg.LoadBalancing.Weights)
				}
			},
		},
		{
			name: "provider defaults applied per provider",
			input: Config{
				Providers: map[string]ProviderConfig{"gcp_functions": {}},
			},
			check: func(t *testing.T, cfg *Config) {
				p := cfg.Providers["gcp_functions"]
				if p.Mode != DefaultProviderMode {
					t.Errorf("expected mode %q, got %q", DefaultProviderMode, p.Mode)
				}
				if p.Timeout != DefaultProviderTimeout {
					t.Errorf("expected timeout %v, got %v", DefaultProviderTimeout, p.Timeout)
				}
				if !p.IsEnabled() {
					t.Error("provider should default to enabled")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.input
			ApplyDefaults(&cfg)
			tt.check(t, &cfg)
		})
	}
}

func TestApplyDefaults_Idempotent(t *testing.T) {
	cfg := Default()
	before := cfg.LoadBalancing
	ApplyDefaults(cfg)
	if cfg.LoadBalancing != before {
		t.Errorf("second ApplyDefaults changed load balancing config: %+v -> %+v", before, cfg.LoadBalancing)
	}
}

func TestDefault_IsValid(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}
