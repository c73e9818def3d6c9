package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"utrix-hq/quotaflow/pkg/config"
)

// Collector is the entry point for recording metrics. A disabled collector
// accepts every call and records nothing.
type Collector struct {
	enabled  bool
	registry *prometheus.Registry

	executionMetrics *ExecutionMetrics
	providerMetrics  *ProviderMetrics
	quotaMetrics     *QuotaMetrics
}

// NewCollector creates a collector registering into registry, or into a
// new private registry when registry is nil.
func NewCollector(cfg config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = config.DefaultLatencyBuckets
	}

	return &Collector{
		enabled:          cfg.IsEnabled(),
		registry:         registry,
		executionMetrics: NewExecutionMetrics(cfg, registry),
		providerMetrics:  NewProviderMetrics(cfg, registry),
		quotaMetrics:     NewQuotaMetrics(cfg, registry),
	}
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordExecution records one execution attempt. cost is only added for
// successful attempts.
func (c *Collector) RecordExecution(provider string, success bool, latency time.Duration, cost float64) {
	if !c.enabled {
		return
	}
	c.executionMetrics.RecordAttempt(provider, success, latency)
	if success {
		c.executionMetrics.RecordCost(provider, cost)
	}
}

// RecordRetry records a retried attempt.
func (c *Collector) RecordRetry(provider string) {
	if !c.enabled {
		return
	}
	c.executionMetrics.RecordRetry(provider)
}

// RecordDecision records a routing decision.
func (c *Collector) RecordDecision(strategy, provider string, fallback bool) {
	if !c.enabled {
		return
	}
	c.executionMetrics.RecordDecision(strategy, provider, fallback)
}

// SetProviderHealth records whether provider accepts traffic.
func (c *Collector) SetProviderHealth(provider string, healthy bool) {
	if !c.enabled {
		return
	}
	c.providerMetrics.UpdateHealth(provider, healthy)
}

// RecordCircuitTransition records a provider's circuit opening or closing.
func (c *Collector) RecordCircuitTransition(provider string, healthy bool) {
	if !c.enabled {
		return
	}
	c.providerMetrics.RecordTransition(provider, healthy)
}

// SetQuotaUsage records a month-to-date usage percentage.
func (c *Collector) SetQuotaUsage(provider, metric string, percent float64) {
	if !c.enabled {
		return
	}
	c.quotaMetrics.usage.WithLabelValues(provider, metric).Set(percent)
}

// SetProjectedUsage records projected monthly executions as a percentage
// of the limit.
func (c *Collector) SetProjectedUsage(provider string, percent float64) {
	if !c.enabled {
		return
	}
	c.quotaMetrics.projected.WithLabelValues(provider).Set(percent)
}

// SetActiveAlerts records the number of active alerts at level.
func (c *Collector) SetActiveAlerts(level string, n int) {
	if !c.enabled {
		return
	}
	c.quotaMetrics.alerts.WithLabelValues(level).Set(float64(n))
}
