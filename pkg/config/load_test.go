package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testConfigYAML = `
providers:
  aws_lambda:
    mode: simulated
    order: 0
    limits:
      monthly_executions: 500000
  gcp_functions:
    mode: http
    base_url: "http://127.0.0.1:9100"
    timeout: "5s"
  azure_functions:
    enabled: false

quota:
  warning_threshold: 75
  critical_threshold: 90

load_balancing:
  strategy: cost_optimized
  retry_count: 2
  retry_base_delay: "200ms"

projection:
  method: linear_regression

telemetry:
  logging:
    level: debug
    format: text
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quotaflow.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig_ValidFile(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, testConfigYAML))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	aws := cfg.Providers["aws_lambda"]
	if aws.Limits.MonthlyExecutions != 500000 {
		t.Errorf("expected monthly executions 500000, got %d", aws.Limits.MonthlyExecutions)
	}
	gcp := cfg.Providers["gcp_functions"]
	if gcp.Mode != "http" || gcp.Timeout != 5*time.Second {
		t.Errorf("unexpected gcp config %+v", gcp)
	}
	if cfg.Providers["azure_functions"].IsEnabled() {
		t.Error("azure should be disabled")
	}
	if cfg.LoadBalancing.RetryBaseDelay != 200*time.Millisecond {
		t.Errorf("expected retry delay 200ms, got %v", cfg.LoadBalancing.RetryBaseDelay)
	}
	if cfg.Projection.Method != "linear_regression" {
		t.Errorf("expected linear_regression, got %q", cfg.Projection.Method)
	}
	if cfg.Projection.FallbackMethod != DefaultFallbackMethod {
		t.Errorf("expected default fallback, got %q", cfg.Projection.FallbackMethod)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		path    func(t *testing.T) string
		wantMsg string
	}{
		{
			name:    "missing file",
			path:    func(t *testing.T) string { return filepath.Join(t.TempDir(), "missing.yaml") },
			wantMsg: "failed to read",
		},
		{
			name:    "malformed yaml",
			path:    func(t *testing.T) string { return writeConfig(t, "providers: [") },
			wantMsg: "failed to parse",
		},
		{
			name:    "invalid values",
			path:    func(t *testing.T) string { return writeConfig(t, "providers:\n  aws_lambda:\n    mode: ftp\n") },
			wantMsg: "validation failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(tt.path(t))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("expected error containing %q, got %v", tt.wantMsg, err)
			}
		})
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, testConfigYAML)

	t.Setenv("QUOTAFLOW_LOAD_BALANCING_STRATEGY", "round_robin")
	t.Setenv("QUOTAFLOW_QUOTA_WARNING_THRESHOLD", "60")
	t.Setenv("QUOTAFLOW_PROVIDERS_AZURE_FUNCTIONS_ENABLED", "true")
	t.Setenv("QUOTAFLOW_PROVIDERS_GCP_FUNCTIONS_BASE_URL", "http://127.0.0.1:9200")
	t.Setenv("QUOTAFLOW_SERVER_LISTEN_ADDRESS", "0.0.0.0:9999")
	t.Setenv("QUOTAFLOW_LOAD_BALANCING_RETRY_COUNT", "not-a-number")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.LoadBalancing.Strategy != "round_robin" {
		t.Errorf("expected round_robin, got %q", cfg.LoadBalancing.Strategy)
	}
	if cfg.Quota.WarningThreshold != 60 {
		t.Errorf("expected warning threshold 60, got %v", cfg.Quota.WarningThreshold)
	}
	if !cfg.Providers["azure_functions"].IsEnabled() {
		t.Error("expected azure to be enabled by override")
	}
	if cfg.Providers["gcp_functions"].BaseURL != "http://127.0.0.1:9200" {
		t.Errorf("unexpected gcp base url %q", cfg.Providers["gcp_functions"].BaseURL)
	}
	if cfg.Server.ListenAddress != "0.0.0.0:9999" {
		t.Errorf("unexpected listen address %q", cfg.Server.ListenAddress)
	}
	// Unparseable values are ignored.
	if cfg.LoadBalancing.RetryCount != 2 {
		t.Errorf("expected retry count 2, got %d", cfg.LoadBalancing.RetryCount)
	}
}

func TestLoadConfigWithEnvOverrides_InvalidOverride(t *testing.T) {
	path := writeConfig(t, testConfigYAML)
	t.Setenv("QUOTAFLOW_LOAD_BALANCING_STRATEGY", "fastest")

	if _, err := LoadConfigWithEnvOverrides(path); err == nil {
		t.Fatal("expected validation error for invalid override")
	}
}
