package storage

// SchemaVersion is the current alert database schema version.
const SchemaVersion = 1

// Schema creates the alert tables.
const Schema = `
CREATE TABLE IF NOT EXISTS alerts (
    id TEXT PRIMARY KEY,
    provider TEXT NOT NULL,
    type TEXT NOT NULL,
    level TEXT NOT NULL,
    message TEXT NOT NULL,
    value REAL NOT NULL,
    threshold REAL NOT NULL,
    active BOOLEAN NOT NULL,
    resolution TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    resolved_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_alerts_active ON alerts(active);
CREATE INDEX IF NOT EXISTS idx_alerts_provider ON alerts(provider, type);
CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON alerts(created_at DESC);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY
);
`

// InsertSchemaVersion records the schema version once.
const InsertSchemaVersion = `INSERT OR IGNORE INTO schema_version (version) VALUES (?)`

// GetSchemaVersion reads the highest recorded schema version.
const GetSchemaVersion = `SELECT MAX(version) FROM schema_version`

const upsertAlert = `
INSERT INTO alerts (
    id, provider, type, level, message, value, threshold,
    active, resolution, created_at, updated_at, resolved_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    level = excluded.level,
    message = excluded.message,
    value = excluded.value,
    threshold = excluded.threshold,
    active = excluded.active,
    resolution = excluded.resolution,
    updated_at = excluded.updated_at,
    resolved_at = excluded.resolved_at
`

const selectColumns = `
SELECT id, provider, type, level, message, value, threshold,
       active, resolution, created_at, updated_at, resolved_at
FROM alerts
`
