// Package monitoring raises, escalates and resolves threshold alerts over
// provider quota usage, monthly projections and provider health.
//
// Monitor.Check evaluates every metric against the warning and critical
// thresholds. An alert is keyed by provider and alert type: crossing a
// higher threshold escalates it in place, and falling below the alert's
// level resolves it with a "returned to normal" note. Every change is
// persisted through a storage.Backend and pushed to the registered
// notifiers.
//
// Scheduler runs the periodic jobs (alert checks, usage polling and
// history pruning) on cron schedules.
package monitoring
