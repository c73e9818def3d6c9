// Package storage persists usage history for the usage tracker.
//
// Two backends are provided:
//
//   - MemoryBackend: the default, nothing survives a restart.
//   - SQLiteBackend: pure-Go SQLite (modernc.org/sqlite) in WAL mode with
//     prepared statements and periodic checkpoints.
//
// Snapshots are JSON documents keyed by provider and timestamp. Hourly
// execution buckets are flat rows keyed by provider and hour and are
// upserted as executions accumulate.
package storage
