package providers

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestEstimateCost_Exact(t *testing.T) {
	tests := []struct {
		name       string
		kind       Kind
		executions int64
		durationMs int64
		memoryMB   int64
		want       string
	}{
		{"aws one GB-second", KindAWSLambda, 1, 1000, 1024, "0.0000166667"},
		{"gcp one GB-second", KindGCPFunctions, 1, 1000, 1024, "0.0000025"},
		{"azure one GB-second", KindAzureFunctions, 1, 1000, 1024, "0.000016"},
		{"aws 1000 x 1s x 256MB", KindAWSLambda, 1000, 1000, 256, "0.004166675"},
		{"gcp 1000 x 1s x 256MB", KindGCPFunctions, 1000, 1000, 256, "0.000625"},
		{"zero executions", KindAWSLambda, 0, 1000, 256, "0"},
		{"negative duration clamps", KindAWSLambda, 10, -5, 256, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EstimateCost(Rate(tt.kind), tt.executions, tt.durationMs, tt.memoryMB)
			want := decimal.RequireFromString(tt.want)
			if !got.Equal(want) {
				t.Errorf("expected %s, got %s", want, got)
			}
		})
	}
}

func TestEstimateCost_Monotonic(t *testing.T) {
	rate := Rate(KindAWSLambda)

	prev := decimal.Zero
	for executions := int64(0); executions <= 5000; executions += 250 {
		got := EstimateCost(rate, executions, 800, 512)
		if got.LessThan(prev) {
			t.Fatalf("cost decreased at executions=%d: %s < %s", executions, got, prev)
		}
		prev = got
	}

	prev = decimal.Zero
	for duration := int64(0); duration <= 60000; duration += 1500 {
		got := EstimateCost(rate, 100, duration, 512)
		if got.LessThan(prev) {
			t.Fatalf("cost decreased at duration=%d: %s < %s", duration, got, prev)
		}
		prev = got
	}
}

func TestGetCostEstimate_LowerRateIsCheaper(t *testing.T) {
	gcp := NewBase(KindGCPFunctions, "", QuotaLimits{}, nil)
	azure := NewBase(KindAzureFunctions, "", QuotaLimits{}, nil)
	aws := NewBase(KindAWSLambda, "", QuotaLimits{}, nil)

	// gcp < azure < aws
	g := gcp.GetCostEstimate(1000, 1000, 256)
	z := azure.GetCostEstimate(1000, 1000, 256)
	a := aws.GetCostEstimate(1000, 1000, 256)

	if !(g < z && z < a) {
		t.Errorf("expected gcp < azure < aws, got %v, %v, %v", g, z, a)
	}
}

func TestMergeLimits(t *testing.T) {
	base := DefaultLimits(KindAzureFunctions)
	merged := MergeLimits(base, QuotaLimits{MaxConcurrency: 50})

	if merged.MaxConcurrency != 50 {
		t.Errorf("expected concurrency 50, got %d", merged.MaxConcurrency)
	}
	if merged.MonthlyExecutions != base.MonthlyExecutions {
		t.Errorf("expected executions %d, got %d", base.MonthlyExecutions, merged.MonthlyExecutions)
	}
}

func TestGBSeconds(t *testing.T) {
	if got := GBSeconds(2000, 512); got != 1.0 {
		t.Errorf("expected 1.0 GB-s, got %v", got)
	}
	if got := GBSeconds(-1, 512); got != 0 {
		t.Errorf("expected 0 for negative duration, got %v", got)
	}
}
