// Package telemetry groups quotaflow's observability packages:
//
//   - logging: slog handler construction, request context fields and redaction
//   - metrics: Prometheus collector for executions, routing, quota and alerts
//   - tracing: OpenTelemetry tracer and W3C trace propagation
//   - readiness: liveness, readiness and version probes
package telemetry
