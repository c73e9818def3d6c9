// Package routing selects a compute provider for each function execution
// and runs the execution with retries.
//
// A LoadBalancer filters providers through the health monitor's circuit
// breaker, builds a Candidate per healthy provider with its cost estimate
// and quota status, and hands the candidates to the active Strategy.
// Strategies live in the strategies subpackage. When a quota-aware strategy
// finds no provider below the warning threshold, the provider with the
// fewest month-to-date executions is chosen as a low-confidence fallback.
//
// Failed attempts are retried against the same provider with exponential
// backoff and reported to the health monitor.
package routing
