package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"utrix-hq/quotaflow/pkg/config"
)

// QuotaMetrics tracks quota usage, projections and alerts.
type QuotaMetrics struct {
	usage     *prometheus.GaugeVec
	projected *prometheus.GaugeVec
	alerts    *prometheus.GaugeVec
}

// NewQuotaMetrics creates and registers quota metrics.
func NewQuotaMetrics(cfg config.MetricsConfig, registry *prometheus.Registry) *QuotaMetrics {
	qm := &QuotaMetrics{
		usage: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "quota_usage_percent",
				Help:      "Month-to-date usage as a percentage of the monthly limit",
			},
			[]string{"provider", "metric"},
		),

		projected: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "quota_projected_percent",
				Help:      "Projected monthly executions as a percentage of the limit",
			},
			[]string{"provider"},
		),

		alerts: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "alerts_active",
				Help:      "Number of active alerts by level",
			},
			[]string{"level"},
		),
	}
	registry.MustRegister(qm.usage, qm.projected, qm.alerts)
	return qm
}
