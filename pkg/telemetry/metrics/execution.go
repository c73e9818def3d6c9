package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"utrix-hq/quotaflow/pkg/config"
)

// ExecutionMetrics tracks function executions and routing decisions.
type ExecutionMetrics struct {
	executions *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	cost       *prometheus.CounterVec
	retries    *prometheus.CounterVec
	decisions  *prometheus.CounterVec
}

// NewExecutionMetrics creates and registers execution metrics.
func NewExecutionMetrics(cfg config.MetricsConfig, registry *prometheus.Registry) *ExecutionMetrics {
	em := &ExecutionMetrics{
		executions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "executions_total",
				Help:      "Total number of execution attempts by provider and status",
			},
			[]string{"provider", "status"},
		),

		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "execution_duration_seconds",
				Help:      "Execution attempt latency in seconds",
				Buckets:   cfg.LatencyBuckets,
			},
			[]string{"provider"},
		),

		cost: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "execution_cost_usd_total",
				Help:      "Estimated cost of successful executions in USD",
			},
			[]string{"provider"},
		),

		retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "retries_total",
				Help:      "Total number of retried execution attempts",
			},
			[]string{"provider"},
		),

		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "routing_decisions_total",
				Help:      "Total number of routing decisions by strategy and provider",
			},
			[]string{"strategy", "provider", "fallback"},
		),
	}

	registry.MustRegister(
		em.executions,
		em.duration,
		em.cost,
		em.retries,
		em.decisions,
	)
	return em
}

// RecordAttempt records one execution attempt.
func (em *ExecutionMetrics) RecordAttempt(provider string, success bool, latency time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	em.executions.WithLabelValues(provider, status).Inc()
	em.duration.WithLabelValues(provider).Observe(latency.Seconds())
}

// RecordCost adds cost in USD. Negative values are ignored.
func (em *ExecutionMetrics) RecordCost(provider string, cost float64) {
	if cost > 0 {
		em.cost.WithLabelValues(provider).Add(cost)
	}
}

// RecordRetry records a retried attempt.
func (em *ExecutionMetrics) RecordRetry(provider string) {
	em.retries.WithLabelValues(provider).Inc()
}

// RecordDecision records a routing decision.
func (em *ExecutionMetrics) RecordDecision(strategy, provider string, fallback bool) {
	em.decisions.WithLabelValues(strategy, provider, strconv.FormatBool(fallback)).Inc()
}
