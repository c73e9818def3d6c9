// Package usage tracks serverless consumption per provider.
//
// A Tracker polls each provider adapter for month-to-date usage and keeps
// the results as a history bounded by the retention window. When an adapter
// fails, the last known snapshot is reused and flagged stale so callers can
// keep routing.
//
// The tracker also keeps an hourly execution series fed by the router after
// every successful execution. Daily totals derived from it drive the
// projection engine.
package usage
