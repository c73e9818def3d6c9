package monitoring

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"utrix-hq/quotaflow/pkg/health"
	"utrix-hq/quotaflow/pkg/monitoring/storage"
	"utrix-hq/quotaflow/pkg/projection"
	"utrix-hq/quotaflow/pkg/providers"
)

// DefaultAlertRetention is how long resolved alerts are kept.
const DefaultAlertRetention = 30 * 24 * time.Hour

// UsageSource returns the cached month-to-date usage of every provider.
type UsageSource interface {
	Current(ctx context.Context) map[providers.Kind]providers.QuotaUsage
}

// LimitSource converts usage and projections into limit percentages.
type LimitSource interface {
	Percentages(u providers.QuotaUsage) providers.UsagePercentages
	ProjectedPercent(kind providers.Kind, executions int64) float64
}

// ProjectionSource returns the most recent projection for a provider.
type ProjectionSource interface {
	Latest(kind providers.Kind) (*projection.ExecutionProjection, bool)
}

// HealthSource reports provider health.
type HealthSource interface {
	Snapshots() []health.ProviderHealth
	IsHealthy(kind providers.Kind) bool
}

// MetricsRecorder receives gauge updates computed during a check.
type MetricsRecorder interface {
	SetQuotaUsage(provider, metric string, percent float64)
	SetProjectedUsage(provider string, percent float64)
	SetActiveAlerts(level string, n int)
}

// Sources are the collaborators a Monitor observes. Nil sources are skipped.
type Sources struct {
	Usage       UsageSource
	Limits      LimitSource
	Projections ProjectionSource
	Health      HealthSource
}

// Config configures a Monitor.
type Config struct {
	// WarningThreshold and CriticalThreshold are percentages (0-100).
	WarningThreshold  float64
	CriticalThreshold float64

	// AlertRetention bounds how long resolved alerts are kept.
	AlertRetention time.Duration
}

func (c *Config) applyDefaults() {
	if c.WarningThreshold <= 0 {
		c.WarningThreshold = 80
	}
	if c.CriticalThreshold <= 0 {
		c.CriticalThreshold = 95
	}
	if c.AlertRetention <= 0 {
		c.AlertRetention = DefaultAlertRetention
	}
}

// Monitor evaluates alert conditions and tracks active alerts.
type Monitor struct {
	sources   Sources
	backend   storage.Backend
	config    Config
	logger    *slog.Logger
	notifiers []Notifier
	metrics   MetricsRecorder
	now       func() time.Time

	// checkMu serializes Check runs.
	checkMu sync.Mutex

	mu     sync.RWMutex
	active map[alertKey]*Alert
}

type alertKey struct {
	provider providers.Kind
	typ      AlertType
}

// NewMonitor creates a monitor. A nil backend keeps alerts in memory.
func NewMonitor(sources Sources, backend storage.Backend, cfg Config, logger *slog.Logger) *Monitor {
	cfg.applyDefaults()
	if backend == nil {
		backend = storage.NewMemoryBackend()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		sources: sources,
		backend: backend,
		config:  cfg,
		logger:  logger.With("component", "monitoring"),
		now:     time.Now,
		active:  make(map[alertKey]*Alert),
	}
}

// AddNotifier registers a notifier. It must be called before Check runs
// concurrently.
func (m *Monitor) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// SetMetrics registers a metrics recorder.
func (m *Monitor) SetMetrics(r MetricsRecorder) {
	m.metrics = r
}

// SetClock replaces the time source. It is intended for tests.
func (m *Monitor) SetClock(now func() time.Time) {
	m.now = now
}

// Restore reloads active alerts from the backend.
func (m *Monitor) Restore(ctx context.Context) error {
	recs, err := m.backend.List(ctx, &storage.Query{ActiveOnly: true})
	if err != nil {
		return fmt.Errorf("failed to load active alerts: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range recs {
		a := alertFromRecord(rec)
		m.active[alertKey{a.Provider, a.Type}] = a
	}
	m.logger.Info("active alerts restored", "count", len(recs))
	return nil
}

type evaluation struct {
	provider providers.Kind
	typ      AlertType
	metric   string
	value    float64
	level    Level
	message  string
}

// Check evaluates every alert condition once and returns what changed.
func (m *Monitor) Check(ctx context.Context) (*CheckResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.checkMu.Lock()
	defer m.checkMu.Unlock()

	evals, seen := m.collect(ctx)
	now := m.now()
	result := &CheckResult{Timestamp: now}

	var notes []Notification
	m.mu.Lock()
	for _, ev := range evals {
		notes = append(notes, m.apply(ev, now, result)...)
	}
	result.Active = len(m.active)
	counts := m.countByLevelLocked()
	m.mu.Unlock()

	for _, n := range notes {
		a := n.Alert
		if err := m.backend.Save(ctx, a.record()); err != nil {
			m.logger.Error("failed to persist alert",
				"alert_id", a.ID,
				"provider", a.Provider,
				"error", err,
			)
		}
	}
	m.dispatch(ctx, notes)

	if m.metrics != nil {
		m.metrics.SetActiveAlerts(string(LevelWarning), counts[LevelWarning])
		m.metrics.SetActiveAlerts(string(LevelCritical), counts[LevelCritical])
	}

	m.logger.Debug("alert check completed",
		"providers", len(seen),
		"raised", result.Raised,
		"escalated", result.Escalated,
		"resolved", result.Resolved,
		"active", result.Active,
	)
	return result, nil
}

// collect gathers the current value of every alert metric.
func (m *Monitor) collect(ctx context.Context) ([]evaluation, []providers.Kind) {
	var evals []evaluation
	var kinds []providers.Kind

	if m.sources.Usage != nil && m.sources.Limits != nil {
		current := m.sources.Usage.Current(ctx)
		for kind := range current {
			kinds = append(kinds, kind)
		}
		sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

		for _, kind := range kinds {
			pct := m.sources.Limits.Percentages(current[kind])
			evals = append(evals,
				m.threshold(kind, AlertQuotaExecutions, "executions", pct.Executions),
				m.threshold(kind, AlertQuotaCompute, "compute", pct.Compute),
				m.threshold(kind, AlertQuotaRequests, "requests", pct.Requests),
			)
			if m.metrics != nil {
				m.metrics.SetQuotaUsage(string(kind), "executions", pct.Executions)
				m.metrics.SetQuotaUsage(string(kind), "compute", pct.Compute)
				m.metrics.SetQuotaUsage(string(kind), "requests", pct.Requests)
			}

			if m.sources.Projections == nil {
				continue
			}
			p, ok := m.sources.Projections.Latest(kind)
			if !ok || p.IsFallback {
				continue
			}
			projected := m.sources.Limits.ProjectedPercent(kind, p.ProjectedMonthlyExecutions)
			evals = append(evals, m.threshold(kind, AlertProjection, "projected executions", projected))
			if m.metrics != nil {
				m.metrics.SetProjectedUsage(string(kind), projected)
			}
		}
	}

	if m.sources.Health != nil {
		for _, h := range m.sources.Health.Snapshots() {
			ev := evaluation{
				provider: h.Provider,
				typ:      AlertProviderHealth,
				metric:   "provider health",
				value:    h.ErrorRate * 100,
			}
			if !m.sources.Health.IsHealthy(h.Provider) {
				ev.level = LevelCritical
				ev.message = fmt.Sprintf("%s circuit open after %d consecutive failures: %s",
					h.Provider, h.ConsecutiveFailures, h.LastError)
			}
			evals = append(evals, ev)
		}
	}
	return evals, kinds
}

func (m *Monitor) threshold(kind providers.Kind, typ AlertType, metric string, value float64) evaluation {
	ev := evaluation{provider: kind, typ: typ, metric: metric, value: value}
	switch {
	case value >= m.config.CriticalThreshold:
		ev.level = LevelCritical
	case value >= m.config.WarningThreshold:
		ev.level = LevelWarning
	}
	if ev.level != "" {
		ev.message = fmt.Sprintf("%s %s at %.1f%% of monthly limit", kind, metric, value)
	}
	return ev
}

func (m *Monitor) thresholdFor(l Level) float64 {
	if l == LevelCritical {
		return m.config.CriticalThreshold
	}
	return m.config.WarningThreshold
}

// apply updates the active alert set for one evaluation and returns the
// resulting notifications. m.mu must be held.
func (m *Monitor) apply(ev evaluation, now time.Time, result *CheckResult) []Notification {
	key := alertKey{ev.provider, ev.typ}
	existing := m.active[key]

	switch {
	case existing == nil && ev.level == "":
		return nil

	case existing == nil:
		a := m.raise(ev, now)
		m.active[key] = a
		result.Raised++
		return []Notification{{Event: EventRaised, Alert: *a}}

	case ev.level.rank() > existing.Level.rank():
		existing.Level = ev.level
		existing.Value = ev.value
		existing.Threshold = m.thresholdFor(ev.level)
		existing.Message = ev.message
		existing.UpdatedAt = now
		result.Escalated++
		m.logger.Warn("alert escalated",
			"alert_id", existing.ID,
			"provider", existing.Provider,
			"type", existing.Type,
			"level", existing.Level,
			"value", ev.value,
		)
		return []Notification{{Event: EventEscalated, Alert: *existing}}

	case ev.level.rank() < existing.Level.rank():
		m.resolve(existing, ev, now)
		delete(m.active, key)
		result.Resolved++
		notes := []Notification{{Event: EventResolved, Alert: *existing}}
		if ev.level != "" {
			// Dropping from critical to warning opens a new warning alert.
			a := m.raise(ev, now)
			m.active[key] = a
			result.Raised++
			notes = append(notes, Notification{Event: EventRaised, Alert: *a})
		}
		return notes

	default:
		existing.Value = ev.value
		existing.UpdatedAt = now
		return nil
	}
}

func (m *Monitor) raise(ev evaluation, now time.Time) *Alert {
	a := &Alert{
		ID:        uuid.NewString(),
		Provider:  ev.provider,
		Type:      ev.typ,
		Level:     ev.level,
		Message:   ev.message,
		Value:     ev.value,
		Threshold: m.thresholdFor(ev.level),
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if ev.typ == AlertProviderHealth {
		a.Threshold = 0
	}
	m.logger.Warn("alert raised",
		"alert_id", a.ID,
		"provider", a.Provider,
		"type", a.Type,
		"level", a.Level,
		"value", a.Value,
	)
	return a
}

func (m *Monitor) resolve(a *Alert, ev evaluation, now time.Time) {
	resolvedAt := now
	a.Active = false
	a.ResolvedAt = &resolvedAt
	a.UpdatedAt = now
	a.Value = ev.value
	a.Resolution = fmt.Sprintf("%s returned to normal (%.1f%%)", ev.metric, ev.value)
	m.logger.Info("alert resolved",
		"alert_id", a.ID,
		"provider", a.Provider,
		"type", a.Type,
		"resolution", a.Resolution,
	)
}

func (m *Monitor) countByLevelLocked() map[Level]int {
	counts := map[Level]int{}
	for _, a := range m.active {
		counts[a.Level]++
	}
	return counts
}

func (m *Monitor) dispatch(ctx context.Context, notes []Notification) {
	for _, n := range notes {
		for _, notifier := range m.notifiers {
			if err := notifier.Notify(ctx, n); err != nil {
				m.logger.Error("alert notification failed",
					"notifier", notifier.Name(),
					"alert_id", n.Alert.ID,
					"event", n.Event,
					"error", err,
				)
			}
		}
	}
}

// ActiveAlerts returns the active alerts ordered by provider and type.
func (m *Monitor) ActiveAlerts() []Alert {
	m.mu.RLock()
	out := make([]Alert, 0, len(m.active))
	for _, a := range m.active {
		out = append(out, *a)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		return out[i].Type < out[j].Type
	})
	return out
}

// Alerts returns persisted alerts, active and resolved, newest first.
func (m *Monitor) Alerts(ctx context.Context, q *storage.Query) ([]Alert, error) {
	recs, err := m.backend.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	out := make([]Alert, 0, len(recs))
	for _, rec := range recs {
		out = append(out, *alertFromRecord(rec))
	}
	return out, nil
}

// Prune deletes resolved alerts older than the retention period.
func (m *Monitor) Prune(ctx context.Context) (int, error) {
	return m.backend.Cleanup(ctx, m.now().Add(-m.config.AlertRetention))
}

// Close closes the backend.
func (m *Monitor) Close() error {
	return m.backend.Close()
}
