package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"utrix-hq/quotaflow/pkg/health"
	"utrix-hq/quotaflow/pkg/providers"
	"utrix-hq/quotaflow/pkg/telemetry/tracing"
)

const (
	// fallbackConfidence marks a forced selection made when no provider
	// passed the quota gate.
	fallbackConfidence = 0.1

	// preferredConfidence is reported for a pinned provider.
	preferredConfidence = 1.0
)

// Config configures a LoadBalancer.
type Config struct {
	// RetryCount is the default attempt budget per execution.
	RetryCount int

	// RetryBaseDelay is the backoff base. Attempt i is followed by a sleep
	// of RetryBaseDelay * 2^i.
	RetryBaseDelay time.Duration

	// WarningThreshold is the quota gate in percent.
	WarningThreshold float64

	DefaultDurationMs int64
	DefaultMemoryMB   int64
}

func (c *Config) applyDefaults() {
	if c.RetryCount <= 0 {
		c.RetryCount = 3
	}
	if c.RetryBaseDelay < 0 {
		c.RetryBaseDelay = 0
	}
	if c.WarningThreshold <= 0 {
		c.WarningThreshold = 80
	}
	if c.DefaultDurationMs <= 0 {
		c.DefaultDurationMs = 1000
	}
	if c.DefaultMemoryMB <= 0 {
		c.DefaultMemoryMB = providers.DefaultMemoryMB
	}
}

// LoadBalancer implements Router over a fixed set of providers.
type LoadBalancer struct {
	selector *ProviderSelector
	monitor  *health.Monitor
	quota    QuotaSource
	config   Config
	stats    *AtomicRoutingStats
	logger   *slog.Logger

	recorder ExecutionRecorder
	metrics  MetricsRecorder
	tracer   trace.Tracer
	sleep    func(ctx context.Context, d time.Duration) error
	now      func() time.Time

	mu       sync.RWMutex
	strategy Strategy
}

// NewLoadBalancer creates a load balancer. quota may be nil, in which case
// every provider is treated as having full headroom.
func NewLoadBalancer(ps []providers.Provider, monitor *health.Monitor, quota QuotaSource, strategy Strategy, cfg Config, logger *slog.Logger) (*LoadBalancer, error) {
	if len(ps) == 0 {
		return nil, ErrNoProvidersConfigured
	}
	if monitor == nil {
		return nil, fmt.Errorf("health monitor cannot be nil")
	}
	if strategy == nil {
		return nil, fmt.Errorf("load balancing strategy cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()

	for _, p := range ps {
		monitor.Register(p.GetKind())
	}

	lb := &LoadBalancer{
		monitor:  monitor,
		quota:    quota,
		config:   cfg,
		stats:    NewAtomicRoutingStats(),
		logger:   logger.With("component", "routing"),
		tracer:   noop.NewTracerProvider().Tracer(tracing.InstrumentationName),
		sleep:    sleepContext,
		now:      time.Now,
		strategy: strategy,
	}
	lb.selector = NewProviderSelector(ps, monitor, lb.logger)
	return lb, nil
}

// SetExecutionRecorder registers where successful executions are recorded.
func (lb *LoadBalancer) SetExecutionRecorder(r ExecutionRecorder) {
	lb.recorder = r
}

// SetMetrics registers a metrics recorder.
func (lb *LoadBalancer) SetMetrics(m MetricsRecorder) {
	lb.metrics = m
}

// SetTracer registers the tracer used for execution spans.
func (lb *LoadBalancer) SetTracer(t trace.Tracer) {
	if t != nil {
		lb.tracer = t
	}
}

// SetSleep replaces the backoff sleep. It is intended for tests.
func (lb *LoadBalancer) SetSleep(fn func(ctx context.Context, d time.Duration) error) {
	lb.sleep = fn
}

// GetStrategy returns the name of the active strategy.
func (lb *LoadBalancer) GetStrategy() string {
	return lb.currentStrategy().GetName()
}

// SetStrategy swaps the active strategy.
func (lb *LoadBalancer) SetStrategy(s Strategy) {
	if s == nil {
		return
	}
	lb.mu.Lock()
	old := lb.strategy
	lb.strategy = s
	lb.mu.Unlock()

	if old.GetName() != s.GetName() {
		lb.logger.Info("load balancing strategy changed",
			"from", old.GetName(),
			"to", s.GetName(),
		)
	}
}

func (lb *LoadBalancer) currentStrategy() Strategy {
	lb.mu.RLock()
	defer lb.mu.RUnlock()
	return lb.strategy
}

// GetStats returns current routing statistics.
func (lb *LoadBalancer) GetStats() *RoutingStats {
	return lb.stats.Snapshot()
}

// ResetStats clears routing statistics.
func (lb *LoadBalancer) ResetStats() {
	lb.stats.Reset()
}

// SelectProvider returns a routing decision for req.
func (lb *LoadBalancer) SelectProvider(ctx context.Context, req *FunctionRequest) (*Decision, error) {
	lb.stats.IncrementTotal()

	if err := ctx.Err(); err != nil {
		lb.stats.IncrementErrors()
		return nil, err
	}
	if req == nil || req.FunctionName == "" {
		lb.stats.IncrementErrors()
		return nil, fmt.Errorf("%w: function name is required", ErrInvalidRequest)
	}

	all := lb.selector.GetAvailableProviders()
	healthy := lb.selector.FilterByHealth(all)
	if len(healthy) < len(all) {
		lb.stats.IncrementHealthFiltered()
	}
	if len(healthy) == 0 {
		lb.stats.IncrementErrors()
		return nil, &NoHealthyProvidersError{
			AttemptedProviders: kindsOf(all),
			FunctionName:       req.FunctionName,
		}
	}

	candidates := lb.candidates(ctx, req, healthy)
	strategy := lb.currentStrategy()

	decision, err := lb.decide(req, strategy, candidates)
	if err != nil {
		lb.stats.IncrementErrors()
		return nil, err
	}

	lb.stats.IncrementProvider(string(decision.SelectedProvider))
	lb.stats.IncrementStrategy(decision.Strategy)
	if decision.IsFallback {
		lb.stats.IncrementFallback()
	}
	if lb.metrics != nil {
		lb.metrics.RecordDecision(decision.Strategy, string(decision.SelectedProvider), decision.IsFallback)
	}

	lb.logger.Debug("routing decision",
		"request_id", req.RequestID,
		"function", req.FunctionName,
		"provider", decision.SelectedProvider,
		"strategy", decision.Strategy,
		"confidence", decision.Confidence,
		"fallback", decision.IsFallback,
	)
	return decision, nil
}

func (lb *LoadBalancer) decide(req *FunctionRequest, strategy Strategy, candidates []Candidate) (*Decision, error) {
	if req.PreferredProvider != "" {
		reason := "not healthy"
		for _, c := range candidates {
			if c.Kind != req.PreferredProvider {
				continue
			}
			if c.WithinQuota {
				lb.stats.IncrementManualOverride()
				return newDecision(c.Kind, "preferred provider", preferredConfidence, "preferred", false, nil, candidates), nil
			}
			reason = "outside quota headroom"
		}
		lb.logger.Warn("preferred provider not available, using strategy",
			"request_id", req.RequestID,
			"preferred_provider", req.PreferredProvider,
			"reason", reason,
		)
	}

	if len(FilterWithinQuota(candidates)) < len(candidates) {
		lb.stats.IncrementQuotaFiltered()
	}

	sel, err := strategy.SelectProvider(req, candidates)
	switch {
	case errors.Is(err, ErrNoEligibleProviders):
		fb := lowestExecutions(candidates)
		lb.logger.Warn("no provider within quota headroom, using fallback",
			"request_id", req.RequestID,
			"strategy", strategy.GetName(),
			"provider", fb.Kind,
		)
		reason := fmt.Sprintf("fallback: no provider within quota headroom under %s; lowest current executions (%d)",
			strategy.GetName(), fb.Quota.Executions)
		return newDecision(fb.Kind, reason, fallbackConfidence, strategy.GetName(), true, nil, candidates), nil
	case err != nil:
		return nil, fmt.Errorf("strategy selection failed: %w", err)
	}

	return newDecision(sel.Provider, sel.Reason, sel.Confidence, strategy.GetName(), false, sel.Scores, candidates), nil
}

func newDecision(selected providers.Kind, reason string, confidence float64, strategy string, fallback bool, scores map[providers.Kind]float64, candidates []Candidate) *Decision {
	d := &Decision{
		SelectedProvider: selected,
		Reason:           reason,
		Confidence:       confidence,
		Strategy:         strategy,
		IsFallback:       fallback,
		Scores:           scores,
		Alternatives:     []providers.Kind{},
	}
	for _, c := range candidates {
		if c.Kind == selected {
			d.EstimatedCost = c.CostEstimate
			continue
		}
		d.Alternatives = append(d.Alternatives, c.Kind)
	}
	return d
}

// lowestExecutions picks the candidate with the fewest month-to-date
// executions, ignoring the quota gate. The first minimum wins.
func lowestExecutions(candidates []Candidate) Candidate {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Quota.Executions < best.Quota.Executions {
			best = c
		}
	}
	return best
}

func (lb *LoadBalancer) candidates(ctx context.Context, req *FunctionRequest, healthy []providers.Provider) []Candidate {
	duration, memory := lb.workload(req)

	out := make([]Candidate, 0, len(healthy))
	for _, p := range healthy {
		kind := p.GetKind()
		c := Candidate{
			Provider:     p,
			Kind:         kind,
			CostEstimate: p.GetCostEstimate(1, duration, memory),
		}
		if snap, ok := lb.monitor.Snapshot(kind); ok {
			c.Health = snap
		}
		if lb.quota != nil {
			c.Quota = lb.quota.QuotaStatus(ctx, kind)
		}
		c.WithinQuota = c.Quota.UsagePercent < lb.config.WarningThreshold &&
			c.Quota.ProjectedPercent < lb.config.WarningThreshold
		out = append(out, c)
	}
	return out
}

func (lb *LoadBalancer) workload(req *FunctionRequest) (durationMs, memoryMB int64) {
	durationMs = req.ExpectedDurationMs
	if durationMs <= 0 {
		durationMs = lb.config.DefaultDurationMs
	}
	memoryMB = req.MemoryMB
	if memoryMB <= 0 {
		memoryMB = lb.config.DefaultMemoryMB
	}
	return durationMs, memoryMB
}

// ExecuteFunction routes req and invokes the selected provider, retrying
// the same provider with exponential backoff. It returns an error only when
// no decision could be made; provider failures are reported in the result.
func (lb *LoadBalancer) ExecuteFunction(ctx context.Context, req *FunctionRequest) (*ExecutionResult, error) {
	if req != nil && req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	ctx, span := lb.tracer.Start(ctx, "routing.execute")
	defer span.End()
	if req != nil {
		span.SetAttributes(
			attribute.String("quotaflow.request_id", req.RequestID),
			attribute.String("quotaflow.function", req.FunctionName),
		)
	}

	decision, err := lb.SelectProvider(ctx, req)
	if err != nil {
		tracing.SetStatus(span, err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("quotaflow.provider", string(decision.SelectedProvider)),
		attribute.String("quotaflow.strategy", decision.Strategy),
		attribute.Bool("quotaflow.fallback", decision.IsFallback),
	)

	p := lb.selector.GetProvider(decision.SelectedProvider)
	result := &ExecutionResult{
		RequestID: req.RequestID,
		Provider:  decision.SelectedProvider,
		Decision:  decision,
		Timestamp: lb.now(),
	}

	budget := req.RetryCount
	if budget <= 0 {
		budget = lb.config.RetryCount
	}
	_, memory := lb.workload(req)

	var lastErr error
	attempts := 0
	for attempt := 0; attempt < budget; attempt++ {
		attempts++
		response, elapsed, err := lb.attempt(ctx, p, req, attempt+1)
		if err == nil {
			lb.monitor.RecordSuccess(decision.SelectedProvider, elapsed)

			cost := p.GetCostEstimate(1, elapsed.Milliseconds(), memory)
			result.Success = true
			result.Response = response
			result.LatencyMs = float64(elapsed) / float64(time.Millisecond)
			result.CostEstimate = cost
			result.Retries = attempt

			lb.recordSuccess(ctx, decision.SelectedProvider, elapsed, cost)
			break
		}

		lastErr = err
		result.LatencyMs = float64(elapsed) / float64(time.Millisecond)
		if ctx.Err() != nil {
			// Caller cancellation is not a provider failure.
			break
		}
		lb.monitor.RecordFailure(decision.SelectedProvider, elapsed, err)
		lb.logger.Warn("execution attempt failed",
			"request_id", req.RequestID,
			"function", req.FunctionName,
			"provider", decision.SelectedProvider,
			"attempt", attempt+1,
			"max_attempts", budget,
			"error", err,
		)
		if lb.metrics != nil {
			lb.metrics.RecordExecution(string(decision.SelectedProvider), false, elapsed, 0)
		}

		if attempt == budget-1 {
			break
		}
		if lb.metrics != nil {
			lb.metrics.RecordRetry(string(decision.SelectedProvider))
		}
		delay := lb.config.RetryBaseDelay * time.Duration(1<<attempt)
		if err := lb.sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}

	if lb.metrics != nil {
		lb.metrics.SetProviderHealth(string(decision.SelectedProvider), lb.monitor.IsHealthy(decision.SelectedProvider))
	}
	if !result.Success {
		result.Retries = attempts - 1
		exhausted := &ExhaustedRetriesError{
			Provider:  decision.SelectedProvider,
			Attempts:  attempts,
			LastError: lastErr,
		}
		result.Error = exhausted.Error()
		tracing.SetStatus(span, exhausted)
		lb.stats.IncrementFailedExecutions()
		lb.logger.Error("execution failed",
			"request_id", req.RequestID,
			"function", req.FunctionName,
			"provider", decision.SelectedProvider,
			"attempts", attempts,
			"error", lastErr,
		)
	}
	lb.stats.AddRetries(result.Retries)
	span.SetAttributes(attribute.Int("quotaflow.retries", result.Retries))
	if result.Success {
		tracing.SetStatus(span, nil)
	}

	return result, nil
}

func (lb *LoadBalancer) attempt(ctx context.Context, p providers.Provider, req *FunctionRequest, n int) (map[string]any, time.Duration, error) {
	ctx, span := lb.tracer.Start(ctx, "routing.attempt",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("quotaflow.provider", string(p.GetKind())),
			attribute.Int("quotaflow.attempt", n),
		),
	)
	defer span.End()

	attemptCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	start := time.Now()
	response, err := p.InvokeFunction(attemptCtx, req.FunctionName, req.Payload)
	elapsed := time.Since(start)
	if err == nil && attemptCtx.Err() != nil {
		err = &providers.TimeoutError{Provider: p.GetKind(), Timeout: req.Timeout, Cause: attemptCtx.Err()}
	}
	tracing.SetStatus(span, err)
	return response, elapsed, err
}

func (lb *LoadBalancer) recordSuccess(ctx context.Context, kind providers.Kind, elapsed time.Duration, cost float64) {
	if lb.metrics != nil {
		lb.metrics.RecordExecution(string(kind), true, elapsed, cost)
	}
	if lb.recorder == nil {
		return
	}
	if err := lb.recorder.RecordExecution(ctx, kind, lb.now(), 1, cost); err != nil {
		lb.logger.Error("failed to record execution",
			"provider", kind,
			"error", err,
		)
	}
}

// HealthCheckAllProviders probes each provider with a usage read, serially.
// A failed read counts toward the provider's failure streak. A successful
// read is not recorded: it says nothing about invocations, so it neither
// resets the streak nor closes an open circuit. Providers with an open
// circuit are not probed and recover only through the cool-down.
func (lb *LoadBalancer) HealthCheckAllProviders(ctx context.Context) map[providers.Kind]health.ProviderHealth {
	out := make(map[providers.Kind]health.ProviderHealth)
	for _, p := range lb.selector.GetAvailableProviders() {
		kind := p.GetKind()
		if lb.monitor.IsHealthy(kind) {
			start := time.Now()
			_, err := p.GetUsageStats(ctx)
			elapsed := time.Since(start)
			if err != nil && ctx.Err() == nil {
				lb.monitor.RecordFailure(kind, elapsed, err)
				lb.logger.Warn("health check failed", "provider", kind, "error", err)
			}
		}

		healthy := lb.monitor.IsHealthy(kind)
		if lb.metrics != nil {
			lb.metrics.SetProviderHealth(string(kind), healthy)
		}
		if snap, ok := lb.monitor.Snapshot(kind); ok {
			out[kind] = snap
		}
	}
	return out
}

// GetStatus returns a dashboard snapshot of strategy, health and quota.
func (lb *LoadBalancer) GetStatus(ctx context.Context) *Status {
	all := lb.selector.GetAvailableProviders()
	status := &Status{
		Strategy:       lb.GetStrategy(),
		TotalProviders: len(all),
		Providers:      make(map[providers.Kind]ProviderStatus, len(all)),
		Stats:          lb.stats.Snapshot(),
		Timestamp:      lb.now(),
	}

	for _, p := range all {
		kind := p.GetKind()
		ps := ProviderStatus{}
		healthy := lb.monitor.IsHealthy(kind)
		if snap, ok := lb.monitor.Snapshot(kind); ok {
			ps.Health = snap
		}
		if lb.quota != nil {
			ps.Quota = lb.quota.QuotaStatus(ctx, kind)
		}
		ps.WithinQuota = ps.Quota.UsagePercent < lb.config.WarningThreshold &&
			ps.Quota.ProjectedPercent < lb.config.WarningThreshold
		if healthy {
			status.HealthyProviders++
		}
		status.Providers[kind] = ps
	}

	switch {
	case status.HealthyProviders == status.TotalProviders:
		status.OverallHealth = "healthy"
	case status.HealthyProviders > 0:
		status.OverallHealth = "degraded"
	default:
		status.OverallHealth = "unhealthy"
	}
	return status
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ Router = (*LoadBalancer)(nil)
