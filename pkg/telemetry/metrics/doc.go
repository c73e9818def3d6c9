// Package metrics exposes quotaflow's Prometheus metrics.
//
// A Collector owns a private prometheus.Registry and the metric families
// below, all prefixed with the configured namespace (default "quotaflow"):
//
//	executions_total{provider,status}             execution attempts
//	execution_duration_seconds{provider}          attempt latency histogram
//	execution_cost_usd_total{provider}            estimated cost of successes
//	retries_total{provider}                       retried attempts
//	routing_decisions_total{strategy,provider,fallback}
//	provider_health{provider}                     1 healthy, 0 circuit open
//	quota_usage_percent{provider,metric}          month-to-date usage
//	quota_projected_percent{provider}             projected monthly usage
//	alerts_active{level}                          active alerts
//
// The Collector satisfies the metrics hooks of the routing and monitoring
// packages. Handler serves the registry in the Prometheus exposition format.
package metrics
