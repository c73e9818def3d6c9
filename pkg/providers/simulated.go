package providers

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// SimulatedOptions tunes a SimulatedProvider.
type SimulatedOptions struct {
	// Latency is slept on every invocation.
	Latency time.Duration

	// FailureRate is the probability (0.0-1.0) that an invocation fails.
	FailureRate float64
}

// SimulatedProvider is an in-memory adapter. It keeps real month-to-date
// counters so routing, projections and alerts behave as they would against
// a live provider.
type SimulatedProvider struct {
	*Base
	opts SimulatedOptions

	rngMu sync.Mutex
	rng   *rand.Rand
}

var _ Provider = (*SimulatedProvider)(nil)

// NewSimulatedProvider creates a simulated adapter for kind.
func NewSimulatedProvider(base *Base, opts SimulatedOptions) *SimulatedProvider {
	return &SimulatedProvider{
		Base: base,
		opts: opts,
		rng:  rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(len(base.kind)))),
	}
}

// GetUsageStats returns the in-memory counters.
func (p *SimulatedProvider) GetUsageStats(ctx context.Context) (*QuotaUsage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.Usage(), nil
}

// InvokeFunction sleeps for the configured latency and succeeds or fails
// according to the failure rate.
func (p *SimulatedProvider) InvokeFunction(ctx context.Context, name string, payload map[string]any) (map[string]any, error) {
	start := time.Now()
	p.Begin()

	if p.opts.Latency > 0 {
		timer := time.NewTimer(p.opts.Latency)
		select {
		case <-ctx.Done():
			timer.Stop()
			p.Finish(name, time.Since(start), false)
			return nil, &TimeoutError{Provider: p.kind, Cause: ctx.Err()}
		case <-timer.C:
		}
	}

	if p.shouldFail() {
		p.Finish(name, time.Since(start), false)
		return nil, &ProviderError{
			Provider:   p.kind,
			StatusCode: 503,
			Message:    "simulated invocation failure",
		}
	}

	p.Finish(name, time.Since(start), true)
	return map[string]any{
		"function":   name,
		"provider":   string(p.kind),
		"status":     "ok",
		"input_keys": len(payload),
	}, nil
}

// Close is a no-op.
func (p *SimulatedProvider) Close() error {
	return nil
}

func (p *SimulatedProvider) shouldFail() bool {
	switch {
	case p.opts.FailureRate <= 0:
		return false
	case p.opts.FailureRate >= 1:
		return true
	}
	p.rngMu.Lock()
	defer p.rngMu.Unlock()
	return p.rng.Float64() < p.opts.FailureRate
}
