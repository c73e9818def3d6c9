// Package tracing provides OpenTelemetry tracing for quotaflow.
//
// A Tracer exports spans over OTLP gRPC when enabled and hands out a noop
// tracer otherwise, so instrumented code never checks whether tracing is on.
// W3C trace context is extracted from status API requests by HTTPMiddleware
// and injected into outgoing provider calls by Inject.
//
// Configuration:
//
//	telemetry:
//	  tracing:
//	    enabled: true
//	    endpoint: otel-collector:4317
//	    insecure: true
//	    sampler: ratio
//	    sample_ratio: 0.1
package tracing
