// Package storage persists alert history for the monitoring package.
//
// Two backends are provided. MemoryBackend keeps rows in a map and loses
// them on exit. SQLiteBackend stores one row per alert in a SQLite database
// (github.com/mattn/go-sqlite3) with WAL enabled; raising, escalating and
// resolving an alert all upsert the same row keyed by alert ID.
package storage
