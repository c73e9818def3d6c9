// Package server provides the status HTTP API for the quota manager.
//
// Routes are served with julienschmidt/httprouter:
//
//	GET  /health                  liveness
//	GET  /ready                   readiness (providers and storage)
//	GET  /version                 build information
//	GET  /status                  load balancer snapshot
//	GET  /usage?refresh=          usage, limits and percentages per provider
//	GET  /projections?method=     projections for every provider
//	GET  /projections/:provider   one projection, ?method= or ?compare=true
//	GET  /trends/:provider        trend analysis
//	GET  /seasonal/:provider      weekday pattern
//	GET  /alerts                  alert history, filtered by provider, type,
//	                              active, since and limit
//	POST /alerts/check            run one alert evaluation
//	POST /execute                 route and run a function execution;
//	                              the per-attempt deadline is timeout_seconds
//
// Prometheus metrics are mounted at the configured metrics path when
// enabled.
//
// Every request passes through recovery, logging, request ID and trace
// context middleware, in that order. Errors are returned as JSON bodies of
// the form {"error": "...", "request_id": "..."}.
package server
