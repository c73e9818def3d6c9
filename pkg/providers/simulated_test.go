package providers

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSimulatedProvider_Invoke(t *testing.T) {
	p := NewSimulatedProvider(NewBase(KindGCPFunctions, "", QuotaLimits{}, nil), SimulatedOptions{})

	resp, err := p.InvokeFunction(context.Background(), "thumbnail", map[string]any{"id": 1})
	if err != nil {
		t.Fatalf("InvokeFunction() failed: %v", err)
	}
	if resp["status"] != "ok" || resp["function"] != "thumbnail" {
		t.Errorf("unexpected response %v", resp)
	}

	usage, err := p.GetUsageStats(context.Background())
	if err != nil {
		t.Fatalf("GetUsageStats() failed: %v", err)
	}
	if usage.Executions != 1 || usage.Provider != KindGCPFunctions {
		t.Errorf("unexpected usage %+v", usage)
	}
}

func TestSimulatedProvider_AlwaysFails(t *testing.T) {
	p := NewSimulatedProvider(NewBase(KindAWSLambda, "", QuotaLimits{}, nil), SimulatedOptions{FailureRate: 1})

	_, err := p.InvokeFunction(context.Background(), "f", nil)
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProviderError, got %v", err)
	}

	usage := p.Usage()
	if usage.Executions != 0 || usage.Requests != 1 {
		t.Errorf("failed invocation should count a request only, got %+v", usage)
	}
}

func TestSimulatedProvider_ContextCancelledDuringLatency(t *testing.T) {
	p := NewSimulatedProvider(NewBase(KindAzureFunctions, "", QuotaLimits{}, nil), SimulatedOptions{Latency: time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := p.InvokeFunction(ctx, "f", nil)
	if !IsTimeout(err) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("invocation did not honor context cancellation")
	}
}

func TestSimulatedProvider_GetUsageStatsCancelled(t *testing.T) {
	p := NewSimulatedProvider(NewBase(KindAWSLambda, "", QuotaLimits{}, nil), SimulatedOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.GetUsageStats(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
