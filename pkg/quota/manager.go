package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"utrix-hq/quotaflow/pkg/config"
	"utrix-hq/quotaflow/pkg/health"
	"utrix-hq/quotaflow/pkg/monitoring"
	alertstorage "utrix-hq/quotaflow/pkg/monitoring/storage"
	"utrix-hq/quotaflow/pkg/projection"
	"utrix-hq/quotaflow/pkg/providerfactory"
	"utrix-hq/quotaflow/pkg/providers"
	"utrix-hq/quotaflow/pkg/routing"
	"utrix-hq/quotaflow/pkg/routing/strategies"
	"utrix-hq/quotaflow/pkg/telemetry/metrics"
	"utrix-hq/quotaflow/pkg/telemetry/readiness"
	"utrix-hq/quotaflow/pkg/usage"
	usagestorage "utrix-hq/quotaflow/pkg/usage/storage"
)

// Scheduled job names.
const (
	JobPollUsage   = "poll_usage"
	JobCheckAlerts = "check_alerts"
	JobPrune       = "prune_history"
)

// ErrMonitoringDisabled is returned by alert operations when monitoring is
// turned off in configuration.
var ErrMonitoringDisabled = errors.New("monitoring is disabled")

// Options supplies collaborators that are normally built from configuration.
type Options struct {
	Logger *slog.Logger

	// Providers replaces the adapters built by providerfactory.
	Providers []providers.Provider

	// Registry receives the metrics. Nil creates a private registry.
	Registry *prometheus.Registry

	// Tracer is used for execution spans. Nil disables spans.
	Tracer trace.Tracer
}

// Manager owns every component of the quota system and wires them
// together: usage feeds projections, projections feed the load balancer's
// quota gate, and the monitor observes all of them.
type Manager struct {
	logger     *slog.Logger
	providers  []providers.Provider
	registry   *Registry
	tracker    *usage.Tracker
	calculator *projection.Calculator
	health     *health.Monitor
	balancer   *routing.LoadBalancer
	monitor    *monitoring.Monitor
	metrics    *metrics.Collector
	scheduler  *monitoring.Scheduler

	usageBackend usagestorage.Backend
	alertBackend alertstorage.Backend

	mu  sync.Mutex
	cfg *config.Config

	closeOnce sync.Once
}

// NewManager builds every component from cfg. Only misconfiguration is an
// error; provider failures are handled at runtime.
func NewManager(cfg *config.Config, opts Options) (*Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ps := opts.Providers
	if ps == nil {
		var err error
		ps, err = providerfactory.LoadFromConfig(cfg, logger)
		if err != nil {
			return nil, err
		}
	}
	if len(ps) == 0 {
		return nil, routing.ErrNoProvidersConfigured
	}

	m := &Manager{
		logger:    logger.With("component", "quota.manager"),
		providers: ps,
		registry:  NewRegistry(ps),
		metrics:   metrics.NewCollector(cfg.Telemetry.Metrics, opts.Registry),
		scheduler: monitoring.NewScheduler(logger),
		cfg:       cfg,
	}
	kinds := m.registry.Kinds()

	usageBackend, err := newUsageBackend(cfg.Usage.Storage)
	if err != nil {
		return nil, err
	}
	m.usageBackend = usageBackend
	m.tracker = usage.NewTracker(ps, usageBackend, usage.Config{
		RetentionDays:       cfg.Usage.DataRetentionDays,
		SeriesRetentionDays: cfg.Projection.SeasonalWindowDays,
	}, logger)

	m.calculator = projection.NewCalculator(m.tracker, kinds, projectionConfig(cfg.Projection), logger)

	m.health = health.NewMonitor(health.Config{
		FailureThreshold: cfg.LoadBalancing.CircuitBreakerThreshold,
		CoolDown:         cfg.LoadBalancing.CircuitBreakerTimeout,
		Window:           time.Duration(cfg.LoadBalancing.PerformanceWindowMinutes) * time.Minute,
	}, kinds, logger)
	m.health.OnTransition(func(kind providers.Kind, healthy bool) {
		m.metrics.RecordCircuitTransition(string(kind), healthy)
	})

	strategy, err := newStrategy(cfg.LoadBalancing)
	if err != nil {
		_ = m.tracker.Close()
		return nil, err
	}
	m.balancer, err = routing.NewLoadBalancer(ps, m.health, m, strategy, routing.Config{
		RetryCount:        cfg.LoadBalancing.RetryCount,
		RetryBaseDelay:    cfg.LoadBalancing.RetryBaseDelay,
		WarningThreshold:  cfg.Quota.WarningThreshold,
		DefaultDurationMs: cfg.LoadBalancing.DefaultDurationMs,
		DefaultMemoryMB:   cfg.LoadBalancing.DefaultMemoryMB,
	}, logger)
	if err != nil {
		_ = m.tracker.Close()
		return nil, err
	}
	m.balancer.SetExecutionRecorder(m.tracker)
	m.balancer.SetMetrics(m.metrics)
	m.balancer.SetTracer(opts.Tracer)

	if cfg.Monitoring.IsEnabled() {
		alertBackend, err := newAlertBackend(cfg.Monitoring.Storage, logger)
		if err != nil {
			_ = m.tracker.Close()
			return nil, err
		}
		m.alertBackend = alertBackend
		m.monitor = monitoring.NewMonitor(monitoring.Sources{
			Usage:       m.tracker,
			Limits:      m.registry,
			Projections: m.calculator,
			Health:      m.health,
		}, alertBackend, monitoring.Config{
			WarningThreshold:  cfg.Quota.WarningThreshold,
			CriticalThreshold: cfg.Quota.CriticalThreshold,
		}, logger)
		m.monitor.SetMetrics(m.metrics)
		m.monitor.AddNotifier(monitoring.NewLogNotifier(logger))
		if cfg.Monitoring.WebhookURL != "" {
			m.monitor.AddNotifier(monitoring.NewWebhookNotifier(cfg.Monitoring.WebhookURL, cfg.Monitoring.WebhookTimeout))
		}
	}

	m.logger.Info("quota manager initialized",
		"providers", len(ps),
		"strategy", strategy.GetName(),
		"usage_storage", cfg.Usage.Storage.Backend,
		"monitoring", cfg.Monitoring.IsEnabled(),
	)
	return m, nil
}

func newUsageBackend(cfg config.StorageConfig) (usagestorage.Backend, error) {
	switch cfg.Backend {
	case "", "memory":
		return usagestorage.NewMemoryBackend(), nil
	case "sqlite":
		b, err := usagestorage.NewSQLiteBackendWithConfig(usagestorage.SQLiteBackendConfig{
			DBPath:      cfg.Path,
			BusyTimeout: cfg.BusyTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open usage storage: %w", err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unsupported usage storage backend: %q", cfg.Backend)
	}
}

func newAlertBackend(cfg config.StorageConfig, logger *slog.Logger) (alertstorage.Backend, error) {
	switch cfg.Backend {
	case "", "memory":
		return alertstorage.NewMemoryBackend(), nil
	case "sqlite":
		b, err := alertstorage.NewSQLiteBackend(alertstorage.SQLiteConfig{
			Path:        cfg.Path,
			BusyTimeout: cfg.BusyTimeout,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open alert storage: %w", err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unsupported alert storage backend: %q", cfg.Backend)
	}
}

func newStrategy(cfg config.LoadBalancingConfig) (routing.Strategy, error) {
	return strategies.New(cfg.Strategy, strategies.Options{
		ResponseTimeCeilingMs: cfg.ResponseTimeCeilingMs,
		CostScoreScale:        cfg.CostScoreScale,
		Weights: strategies.Weights{
			Cost:        cfg.Weights.Cost,
			Performance: cfg.Weights.Performance,
			Quota:       cfg.Weights.Quota,
		},
	})
}

func projectionConfig(p config.ProjectionConfig) projection.Config {
	methods := make([]projection.Method, 0, len(p.AdvancedMethods))
	for _, name := range p.AdvancedMethods {
		methods = append(methods, projection.Method(name))
	}
	return projection.Config{
		Method:                   projection.Method(p.Method),
		FallbackMethod:           projection.Method(p.FallbackMethod),
		AdvancedMethods:          methods,
		MinDataPoints:            p.MinDataPoints,
		FallbackExecutions:       p.FallbackExecutions,
		TrendWindowDays:          p.TrendWindowDays,
		SeasonalWindowDays:       p.SeasonalWindowDays,
		TrendAdjustmentWeight:    p.TrendAdjustmentWeight,
		SeasonalAdjustmentWeight: p.SeasonalAdjustmentWeight,
		ConfidenceThreshold:      p.ConfidenceThreshold,
		VolatilityThreshold:      p.VolatilityThreshold,
		SmoothingAlpha:           p.SmoothingAlpha,
	}
}

// Start restores persisted state, takes a first usage poll and projection,
// and starts the scheduled jobs. The jobs stop when ctx is cancelled.
func (m *Manager) Start(ctx context.Context) error {
	if err := m.Restore(ctx); err != nil {
		return err
	}
	if err := m.Refresh(ctx); err != nil {
		return err
	}

	cfg := m.config()
	if err := m.scheduler.AddJob(ctx, JobPollUsage, cfg.Usage.PollSchedule, m.Refresh); err != nil {
		return err
	}
	if err := m.scheduler.AddJob(ctx, JobPrune, cfg.Usage.PruneSchedule, m.prune); err != nil {
		return err
	}
	if m.monitor != nil {
		if err := m.scheduler.AddJob(ctx, JobCheckAlerts, cfg.Monitoring.CheckSchedule, m.checkAlerts); err != nil {
			return err
		}
	}
	m.scheduler.Start(ctx)
	return nil
}

// Restore loads persisted usage history and active alerts. One-shot
// commands call it instead of Start.
func (m *Manager) Restore(ctx context.Context) error {
	if err := m.tracker.Restore(ctx); err != nil {
		return fmt.Errorf("failed to restore usage history: %w", err)
	}
	if m.monitor != nil {
		if err := m.monitor.Restore(ctx); err != nil {
			return fmt.Errorf("failed to restore alerts: %w", err)
		}
	}
	return nil
}

// Refresh polls usage, probes provider health and recomputes projections.
func (m *Manager) Refresh(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.tracker.GetCurrentUsage(ctx)
	m.balancer.HealthCheckAllProviders(ctx)
	projections := m.calculator.CalculateAll(ctx, "")
	m.logger.Debug("usage refreshed", "projections", len(projections))
	return nil
}

func (m *Manager) checkAlerts(ctx context.Context) error {
	_, err := m.CheckAlerts(ctx)
	return err
}

func (m *Manager) prune(ctx context.Context) error {
	n, err := m.tracker.Prune(ctx)
	if err != nil {
		return fmt.Errorf("failed to prune usage history: %w", err)
	}
	removed := n
	if m.monitor != nil {
		a, err := m.monitor.Prune(ctx)
		if err != nil {
			return fmt.Errorf("failed to prune alerts: %w", err)
		}
		removed += a
	}
	m.logger.Info("history pruned", "removed", removed)
	return nil
}

// RunJob runs a scheduled job immediately.
func (m *Manager) RunJob(name string) error {
	return m.scheduler.RunNow(name)
}

// NextRun returns the next scheduled time of a job.
func (m *Manager) NextRun(name string) (time.Time, bool) {
	return m.scheduler.NextRun(name)
}

func (m *Manager) config() *config.Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// ApplyConfig applies the hot-reloadable parts of cfg: the routing strategy
// and the balanced weights. Other changes take effect on restart.
func (m *Manager) ApplyConfig(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	strategy, err := newStrategy(cfg.LoadBalancing)
	if err != nil {
		return err
	}
	m.balancer.SetStrategy(strategy)

	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()

	m.logger.Info("configuration applied",
		"strategy", strategy.GetName(),
		"cost_weight", cfg.LoadBalancing.Weights.Cost,
		"performance_weight", cfg.LoadBalancing.Weights.Performance,
		"quota_weight", cfg.LoadBalancing.Weights.Quota,
	)
	return nil
}

// QuotaStatus reports the cached quota position of kind. Providers are
// polled only when no usage has been collected yet.
func (m *Manager) QuotaStatus(ctx context.Context, kind providers.Kind) routing.QuotaStatus {
	var qs routing.QuotaStatus
	if u, ok := m.tracker.CurrentFor(ctx, kind); ok {
		qs.UsagePercent = m.registry.UsagePercent(u)
		qs.Executions = u.Executions
		qs.ConcurrentExecutions = u.ConcurrentExecutions
	}
	if p, ok := m.calculator.Latest(kind); ok {
		qs.ProjectedPercent = m.registry.ProjectedPercent(kind, p.ProjectedMonthlyExecutions)
	}
	return qs
}

// Kinds returns the configured providers in routing order.
func (m *Manager) Kinds() []providers.Kind {
	return m.registry.Kinds()
}

// Limits returns the quota ceilings of kind.
func (m *Manager) Limits(kind providers.Kind) (providers.QuotaLimits, bool) {
	return m.registry.Limits(kind)
}

// GetCurrentUsage polls every provider and returns fresh usage.
func (m *Manager) GetCurrentUsage(ctx context.Context) map[providers.Kind]providers.QuotaUsage {
	return m.tracker.GetCurrentUsage(ctx)
}

// CachedUsage returns the most recent usage without polling.
func (m *Manager) CachedUsage(ctx context.Context) map[providers.Kind]providers.QuotaUsage {
	return m.tracker.Current(ctx)
}

// UsagePercentages returns per-metric usage percentages of u.
func (m *Manager) UsagePercentages(u providers.QuotaUsage) providers.UsagePercentages {
	return m.registry.Percentages(u)
}

// CalculateProjection computes and caches a projection. An empty method
// uses the configured primary method.
func (m *Manager) CalculateProjection(ctx context.Context, kind providers.Kind, method string) (*projection.ExecutionProjection, error) {
	return m.calculator.Calculate(ctx, kind, projection.Method(method))
}

// CalculateAllProjections computes projections for every provider.
func (m *Manager) CalculateAllProjections(ctx context.Context, method string) map[providers.Kind]*projection.ExecutionProjection {
	return m.calculator.CalculateAll(ctx, projection.Method(method))
}

// CompareProjectionMethods runs every configured projection method for kind.
func (m *Manager) CompareProjectionMethods(ctx context.Context, kind providers.Kind) (map[projection.Method]*projection.ExecutionProjection, error) {
	return m.calculator.CompareMethods(ctx, kind)
}

// AnalyzeTrend returns the usage trend of kind.
func (m *Manager) AnalyzeTrend(ctx context.Context, kind providers.Kind) (*projection.TrendAnalysis, error) {
	return m.calculator.AnalyzeTrend(ctx, kind)
}

// AnalyzeSeasonal returns the seasonal usage pattern of kind.
func (m *Manager) AnalyzeSeasonal(ctx context.Context, kind providers.Kind) (*projection.SeasonalPattern, error) {
	return m.calculator.AnalyzeSeasonal(ctx, kind)
}

// RecordExecutions imports executions into the usage series, for
// backfilling history recorded elsewhere.
func (m *Manager) RecordExecutions(ctx context.Context, kind providers.Kind, at time.Time, executions int64, cost float64) error {
	if _, ok := m.registry.Limits(kind); !ok {
		return fmt.Errorf("%w: %q", providers.ErrUnknownKind, kind)
	}
	return m.tracker.RecordExecution(ctx, kind, at, executions, cost)
}

// ExecuteFunction routes and runs one function execution.
func (m *Manager) ExecuteFunction(ctx context.Context, req *routing.FunctionRequest) (*routing.ExecutionResult, error) {
	return m.balancer.ExecuteFunction(ctx, req)
}

// SelectProvider returns the routing decision for req without executing it.
func (m *Manager) SelectProvider(ctx context.Context, req *routing.FunctionRequest) (*routing.Decision, error) {
	return m.balancer.SelectProvider(ctx, req)
}

// GetLoadBalancerStatus returns the routing dashboard snapshot.
func (m *Manager) GetLoadBalancerStatus(ctx context.Context) *routing.Status {
	return m.balancer.GetStatus(ctx)
}

// HealthCheck probes every provider.
func (m *Manager) HealthCheck(ctx context.Context) map[providers.Kind]health.ProviderHealth {
	return m.balancer.HealthCheckAllProviders(ctx)
}

// HealthyProviders returns how many providers currently accept traffic.
func (m *Manager) HealthyProviders() int {
	n := 0
	for _, kind := range m.registry.Kinds() {
		if m.health.IsHealthy(kind) {
			n++
		}
	}
	return n
}

// CheckAlerts evaluates alert conditions once.
func (m *Manager) CheckAlerts(ctx context.Context) (*monitoring.CheckResult, error) {
	if m.monitor == nil {
		return nil, ErrMonitoringDisabled
	}
	return m.monitor.Check(ctx)
}

// ActiveAlerts returns unresolved alerts. It is empty when monitoring is
// disabled.
func (m *Manager) ActiveAlerts() []monitoring.Alert {
	if m.monitor == nil {
		return []monitoring.Alert{}
	}
	return m.monitor.ActiveAlerts()
}

// Alerts queries alert history.
func (m *Manager) Alerts(ctx context.Context, q *alertstorage.Query) ([]monitoring.Alert, error) {
	if m.monitor == nil {
		return nil, ErrMonitoringDisabled
	}
	return m.monitor.Alerts(ctx, q)
}

// Metrics returns the metrics collector.
func (m *Manager) Metrics() *metrics.Collector {
	return m.metrics
}

// RegisterReadinessChecks adds the manager's readiness checks to c.
func (m *Manager) RegisterReadinessChecks(c *readiness.Checker) {
	c.RegisterCheck("providers", func(ctx context.Context) error {
		if m.HealthyProviders() == 0 {
			return routing.ErrNoHealthyProviders
		}
		return nil
	})
	c.RegisterCheck("usage_storage", func(ctx context.Context) error {
		_, err := m.usageBackend.LoadSnapshots(ctx, time.Now())
		return err
	})
	if m.alertBackend != nil {
		c.RegisterCheck("alert_storage", func(ctx context.Context) error {
			_, err := m.alertBackend.List(ctx, &alertstorage.Query{Limit: 1})
			return err
		})
	}
}

// Close stops the scheduled jobs and releases providers and storage.
func (m *Manager) Close() error {
	var errs []error
	m.closeOnce.Do(func() {
		m.scheduler.Stop()
		for _, p := range m.providers {
			if err := p.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close provider %s: %w", p.GetKind(), err))
			}
		}
		if err := m.tracker.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close usage storage: %w", err))
		}
		if m.monitor != nil {
			if err := m.monitor.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close alert storage: %w", err))
			}
		}
		m.logger.Info("quota manager closed")
	})
	return errors.Join(errs...)
}

var _ routing.QuotaSource = (*Manager)(nil)
