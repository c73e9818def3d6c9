package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"utrix-hq/quotaflow/pkg/config"
)

// ProviderMetrics tracks circuit breaker state per provider.
type ProviderMetrics struct {
	// 1 while the provider accepts traffic, 0 while its circuit is open.
	health *prometheus.GaugeVec

	// Circuit flips, labeled by the state entered ("open" or "closed").
	transitions *prometheus.CounterVec
}

// NewProviderMetrics creates and registers provider metrics.
func NewProviderMetrics(cfg config.MetricsConfig, registry *prometheus.Registry) *ProviderMetrics {
	pm := &ProviderMetrics{
		health: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "provider_health",
				Help:      "Provider health status (1=healthy, 0=circuit open)",
			},
			[]string{"provider"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "circuit_transitions_total",
				Help:      "Circuit breaker state changes by provider and entered state",
			},
			[]string{"provider", "state"},
		),
	}
	registry.MustRegister(pm.health, pm.transitions)
	return pm
}

// UpdateHealth sets the health gauge of a provider.
func (pm *ProviderMetrics) UpdateHealth(provider string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	pm.health.WithLabelValues(provider).Set(value)
}

// RecordTransition counts a circuit flip and updates the health gauge.
func (pm *ProviderMetrics) RecordTransition(provider string, healthy bool) {
	state := "open"
	if healthy {
		state = "closed"
	}
	pm.transitions.WithLabelValues(provider, state).Inc()
	pm.UpdateHealth(provider, healthy)
}
