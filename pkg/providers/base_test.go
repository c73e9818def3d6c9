package providers

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBase_DeployFunction(t *testing.T) {
	tests := []struct {
		name      string
		kind      Kind
		fn        FunctionConfig
		wantField string
	}{
		{"valid", KindAWSLambda, FunctionConfig{Name: "resize", MemoryMB: 512, Timeout: time.Minute}, ""},
		{"default memory", KindGCPFunctions, FunctionConfig{Name: "hello"}, ""},
		{"missing name", KindAWSLambda, FunctionConfig{MemoryMB: 128}, "name"},
		{"azure memory cap", KindAzureFunctions, FunctionConfig{Name: "big", MemoryMB: 2048}, "memory_mb"},
		{"gcp timeout cap", KindGCPFunctions, FunctionConfig{Name: "slow", Timeout: 10 * time.Minute}, "timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBase(tt.kind, "", QuotaLimits{}, nil)
			ok, err := b.DeployFunction(context.Background(), tt.fn)

			if tt.wantField == "" {
				if err != nil || !ok {
					t.Fatalf("expected success, got %v, %v", ok, err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tt.wantField {
				t.Errorf("expected field %q, got %q", tt.wantField, ve.Field)
			}
			if ok {
				t.Error("expected ok=false on validation failure")
			}
		})
	}
}

func TestBase_CountersAndRollover(t *testing.T) {
	now := time.Date(2026, 3, 31, 23, 0, 0, 0, time.UTC)
	b := NewBase(KindAWSLambda, "", QuotaLimits{}, nil)
	b.SetClock(func() time.Time { return now })

	if _, err := b.DeployFunction(context.Background(), FunctionConfig{Name: "f", MemoryMB: 1024}); err != nil {
		t.Fatalf("deploy: %v", err)
	}

	b.Begin()
	b.Finish("f", time.Second, true)
	b.Begin()
	b.Finish("f", time.Second, false)

	u := b.Usage()
	if u.Executions != 1 || u.Requests != 2 {
		t.Errorf("expected 1 execution and 2 requests, got %d/%d", u.Executions, u.Requests)
	}
	if u.ComputeSeconds != 1.0 {
		t.Errorf("expected 1 GB-s, got %v", u.ComputeSeconds)
	}
	if u.Cost != 0.0000166667 {
		t.Errorf("expected cost 0.0000166667, got %v", u.Cost)
	}
	if u.ConcurrentExecutions != 0 {
		t.Errorf("expected no in-flight executions, got %d", u.ConcurrentExecutions)
	}

	now = now.Add(2 * time.Hour) // April
	u = b.Usage()
	if u.Executions != 0 || u.Requests != 0 || u.Cost != 0 {
		t.Errorf("expected counters reset in new month, got %+v", u)
	}
}

func TestBase_RolloverUsesUTC(t *testing.T) {
	zone := time.FixedZone("UTC+2", 2*60*60)
	now := time.Date(2026, 3, 31, 23, 30, 0, 0, zone)
	b := NewBase(KindAzureFunctions, "", QuotaLimits{}, nil)
	b.SetClock(func() time.Time { return now })
	b.AddUsage(10, 10, 1)

	now = now.Add(time.Hour) // April locally, still March in UTC
	if u := b.Usage(); u.Executions != 10 {
		t.Errorf("counters reset on a local month change: %+v", u)
	}

	now = now.Add(2 * time.Hour) // April in UTC
	if u := b.Usage(); u.Executions != 0 {
		t.Errorf("expected counters reset in the new UTC month, got %+v", u)
	}
}

func TestBase_AddUsage(t *testing.T) {
	b := NewBase(KindGCPFunctions, "gcp-eu", QuotaLimits{}, nil)
	b.AddUsage(100, 120, 40)

	u := b.Usage()
	if u.Executions != 100 || u.Requests != 120 || u.ComputeSeconds != 40 {
		t.Errorf("unexpected usage %+v", u)
	}
	if u.Cost != 0.0001 {
		t.Errorf("expected cost 0.0001, got %v", u.Cost)
	}
	if b.GetName() != "gcp-eu" {
		t.Errorf("expected name gcp-eu, got %s", b.GetName())
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds() {
		got, err := ParseKind(string(k))
		if err != nil || got != k {
			t.Errorf("ParseKind(%q) = %q, %v", k, got, err)
		}
	}
	if _, err := ParseKind("oracle_functions"); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("expected ErrUnknownKind, got %v", err)
	}
}

func TestQuotaLimits_Percentages(t *testing.T) {
	limits := QuotaLimits{MonthlyExecutions: 1000, MonthlyComputeSeconds: 400, MonthlyRequests: 0}
	got := limits.Percentages(QuotaUsage{Executions: 960, ComputeSeconds: 100, Requests: 5000})

	if got.Executions != 96 {
		t.Errorf("expected 96%% executions, got %f", got.Executions)
	}
	if got.Compute != 25 {
		t.Errorf("expected 25%% compute, got %f", got.Compute)
	}
	if got.Requests != 0 {
		t.Errorf("zero limit must yield 0%%, got %f", got.Requests)
	}
	if got.Max() != 96 {
		t.Errorf("expected max 96, got %f", got.Max())
	}
}
