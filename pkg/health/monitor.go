package health

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"utrix-hq/quotaflow/pkg/providers"
)

// Default circuit breaker and smoothing settings.
const (
	DefaultFailureThreshold = 5
	DefaultCoolDown         = 300 * time.Second
	DefaultWindow           = 60 * time.Minute
	DefaultEMAAlpha         = 0.1
)

// Config configures a Monitor.
type Config struct {
	// FailureThreshold is the number of consecutive failures that opens the
	// circuit.
	FailureThreshold int

	// CoolDown is how long after the last check an open circuit closes again.
	CoolDown time.Duration

	// Window is the trailing window for the error rate.
	Window time.Duration

	// EMAAlpha is the response time smoothing factor.
	EMAAlpha float64
}

func (c *Config) applyDefaults() {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = DefaultFailureThreshold
	}
	if c.CoolDown <= 0 {
		c.CoolDown = DefaultCoolDown
	}
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.EMAAlpha <= 0 || c.EMAAlpha > 1 {
		c.EMAAlpha = DefaultEMAAlpha
	}
}

// ProviderHealth is a snapshot of one provider's live health state.
type ProviderHealth struct {
	Provider            providers.Kind `json:"provider"`
	IsHealthy           bool           `json:"is_healthy"`
	ResponseTimeMs      float64        `json:"response_time_ms"`
	ErrorRate           float64        `json:"error_rate"`
	ConsecutiveFailures int            `json:"consecutive_failures"`
	LastCheck           time.Time      `json:"last_check"`
	LastSuccess         time.Time      `json:"last_success,omitempty"`
	TotalRequests       int64          `json:"total_requests"`
	FailedRequests      int64          `json:"failed_requests"`
	LastError           string         `json:"last_error,omitempty"`
}

// TransitionFunc is called when a provider's health flips.
type TransitionFunc func(kind providers.Kind, healthy bool)

// Monitor owns the health state of every provider. Each provider's state
// is guarded by its own mutex so concurrent executions against different
// providers never contend.
type Monitor struct {
	cfg    Config
	logger *slog.Logger

	mu           sync.RWMutex
	states       map[providers.Kind]*providerState
	now          func() time.Time
	onTransition TransitionFunc
}

type providerState struct {
	mu        sync.Mutex
	health    ProviderHealth
	window    *outcomeWindow
	emaSeeded bool
}

// NewMonitor creates a monitor tracking kinds. Every provider starts healthy.
func NewMonitor(cfg Config, kinds []providers.Kind, logger *slog.Logger) *Monitor {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	m := &Monitor{
		cfg:    cfg,
		logger: logger.With("component", "health"),
		states: make(map[providers.Kind]*providerState, len(kinds)),
		now:    time.Now,
	}
	for _, k := range kinds {
		m.Register(k)
	}
	return m
}

// SetClock replaces the time source. It is intended for tests.
func (m *Monitor) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// OnTransition registers a callback for health flips.
func (m *Monitor) OnTransition(fn TransitionFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTransition = fn
}

// Register adds a provider if it is not tracked yet.
func (m *Monitor) Register(kind providers.Kind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.states[kind]; ok {
		return
	}
	m.states[kind] = &providerState{
		health: ProviderHealth{
			Provider:  kind,
			IsHealthy: true,
			LastCheck: m.now(),
		},
		window: newOutcomeWindow(m.cfg.Window, time.Minute),
	}
}

// Config returns the monitor configuration.
func (m *Monitor) Config() Config {
	return m.cfg
}

// RecordSuccess records a successful attempt. It resets the failure streak
// and closes the circuit.
func (m *Monitor) RecordSuccess(kind providers.Kind, latency time.Duration) {
	m.record(kind, latency, nil)
}

// RecordFailure records a failed attempt. The circuit opens once the
// consecutive failure count reaches the threshold.
func (m *Monitor) RecordFailure(kind providers.Kind, latency time.Duration, err error) {
	if err == nil {
		err = errUnknownFailure
	}
	m.record(kind, latency, err)
}

func (m *Monitor) record(kind providers.Kind, latency time.Duration, err error) {
	s, now, hook := m.lookup(kind)
	if s == nil {
		return
	}

	s.mu.Lock()
	wasHealthy := s.health.IsHealthy
	h := &s.health

	ms := float64(latency) / float64(time.Millisecond)
	if !s.emaSeeded {
		h.ResponseTimeMs = ms
		s.emaSeeded = true
	} else {
		h.ResponseTimeMs = m.cfg.EMAAlpha*ms + (1-m.cfg.EMAAlpha)*h.ResponseTimeMs
	}

	h.LastCheck = now
	h.TotalRequests++
	success := err == nil
	s.window.add(now, success)
	h.ErrorRate = s.window.errorRate(now)

	if success {
		h.ConsecutiveFailures = 0
		h.IsHealthy = true
		h.LastSuccess = now
		h.LastError = ""
	} else {
		h.FailedRequests++
		h.ConsecutiveFailures++
		h.LastError = err.Error()
		if h.ConsecutiveFailures >= m.cfg.FailureThreshold {
			h.IsHealthy = false
		}
	}
	isHealthy := h.IsHealthy
	failures := h.ConsecutiveFailures
	s.mu.Unlock()

	if wasHealthy != isHealthy {
		if isHealthy {
			m.logger.Info("provider marked healthy", "provider", string(kind))
		} else {
			m.logger.Warn("provider marked unhealthy",
				"provider", string(kind),
				"consecutive_failures", failures,
				"error", err,
			)
		}
		if hook != nil {
			hook(kind, isHealthy)
		}
	}
}

// IsHealthy reports whether kind may receive traffic. An open circuit
// closes once the cool-down has elapsed since the last check.
func (m *Monitor) IsHealthy(kind providers.Kind) bool {
	s, now, hook := m.lookup(kind)
	if s == nil {
		return false
	}

	s.mu.Lock()
	if s.health.IsHealthy {
		s.mu.Unlock()
		return true
	}
	if now.Sub(s.health.LastCheck) < m.cfg.CoolDown {
		s.mu.Unlock()
		return false
	}
	s.health.IsHealthy = true
	s.health.ConsecutiveFailures = 0
	s.health.LastCheck = now
	s.mu.Unlock()

	m.logger.Info("provider cool-down elapsed, circuit closed", "provider", string(kind))
	if hook != nil {
		hook(kind, true)
	}
	return true
}

// ForceHealthy closes the circuit for kind immediately.
func (m *Monitor) ForceHealthy(kind providers.Kind) {
	s, now, hook := m.lookup(kind)
	if s == nil {
		return
	}

	s.mu.Lock()
	was := s.health.IsHealthy
	s.health.IsHealthy = true
	s.health.ConsecutiveFailures = 0
	s.health.LastCheck = now
	s.mu.Unlock()

	if !was {
		m.logger.Info("provider forced healthy", "provider", string(kind))
		if hook != nil {
			hook(kind, true)
		}
	}
}

// Reset clears all recorded state for kind.
func (m *Monitor) Reset(kind providers.Kind) {
	s, now, _ := m.lookup(kind)
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.health = ProviderHealth{Provider: kind, IsHealthy: true, LastCheck: now}
	s.window.reset()
	s.emaSeeded = false
}

// Snapshot returns the current health of kind.
func (m *Monitor) Snapshot(kind providers.Kind) (ProviderHealth, bool) {
	s, now, _ := m.lookup(kind)
	if s == nil {
		return ProviderHealth{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.health.ErrorRate = s.window.errorRate(now)
	return s.health, true
}

// Snapshots returns the health of every tracked provider, sorted by kind.
func (m *Monitor) Snapshots() []ProviderHealth {
	m.mu.RLock()
	kinds := make([]providers.Kind, 0, len(m.states))
	for k := range m.states {
		kinds = append(kinds, k)
	}
	m.mu.RUnlock()

	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	out := make([]ProviderHealth, 0, len(kinds))
	for _, k := range kinds {
		if h, ok := m.Snapshot(k); ok {
			out = append(out, h)
		}
	}
	return out
}

func (m *Monitor) lookup(kind providers.Kind) (*providerState, time.Time, TransitionFunc) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.states[kind], m.now(), m.onTransition
}
