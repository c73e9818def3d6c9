package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"utrix-hq/quotaflow/pkg/providers"
)

// SQLiteBackend implements Backend using SQLite for persistence.
// Usage snapshots are stored as JSON documents keyed by provider and
// timestamp; hourly buckets are flat rows keyed by (provider, hour).
//
// SQLiteBackend uses a write-ahead log (WAL) and periodic checkpoints.
type SQLiteBackend struct {
	db                 *sql.DB
	dbPath             string
	checkpointInterval time.Duration
	done               chan struct{}
	mu                 sync.RWMutex
	closeOnce          sync.Once

	saveSnapshotStmt   *sql.Stmt
	saveBucketStmt     *sql.Stmt
	loadSnapshotsStmt  *sql.Stmt
	loadBucketsStmt    *sql.Stmt
	cleanupSnapshotsSt *sql.Stmt
	cleanupBucketsStmt *sql.Stmt
}

// SQLiteBackendConfig configures the SQLite backend.
type SQLiteBackendConfig struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// CheckpointInterval is how often to checkpoint the WAL.
	// Default: 5 minutes
	CheckpointInterval time.Duration

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// NewSQLiteBackend creates a new SQLite storage backend with default settings.
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	return NewSQLiteBackendWithConfig(SQLiteBackendConfig{DBPath: dbPath})
}

// NewSQLiteBackendWithConfig creates a new SQLite backend with custom configuration.
func NewSQLiteBackendWithConfig(cfg SQLiteBackendConfig) (*SQLiteBackend, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.CheckpointInterval == 0 {
		cfg.CheckpointInterval = 5 * time.Minute
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		cfg.DBPath, int(cfg.BusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	backend := &SQLiteBackend{
		db:                 db,
		dbPath:             cfg.DBPath,
		checkpointInterval: cfg.CheckpointInterval,
		done:               make(chan struct{}),
	}

	if err := backend.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := backend.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	go backend.checkpointLoop()

	return backend, nil
}

func (s *SQLiteBackend) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS usage_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		provider TEXT NOT NULL,
		recorded_at INTEGER NOT NULL,
		usage TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_usage_snapshots_recorded_at ON usage_snapshots(recorded_at);

	CREATE TABLE IF NOT EXISTS execution_buckets (
		provider TEXT NOT NULL,
		hour INTEGER NOT NULL,
		executions INTEGER NOT NULL,
		cost REAL NOT NULL,
		PRIMARY KEY (provider, hour)
	);

	CREATE INDEX IF NOT EXISTS idx_execution_buckets_hour ON execution_buckets(hour);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteBackend) prepareStatements() error {
	var err error

	s.saveSnapshotStmt, err = s.db.Prepare(`
		INSERT INTO usage_snapshots (provider, recorded_at, usage)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare save snapshot statement: %w", err)
	}

	s.saveBucketStmt, err = s.db.Prepare(`
		INSERT INTO execution_buckets (provider, hour, executions, cost)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (provider, hour) DO UPDATE SET
			executions = excluded.executions,
			cost = excluded.cost
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare save bucket statement: %w", err)
	}

	s.loadSnapshotsStmt, err = s.db.Prepare(`
		SELECT provider, recorded_at, usage
		FROM usage_snapshots
		WHERE recorded_at >= ?
		ORDER BY recorded_at, id
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare load snapshots statement: %w", err)
	}

	s.loadBucketsStmt, err = s.db.Prepare(`
		SELECT provider, hour, executions, cost
		FROM execution_buckets
		WHERE hour >= ?
		ORDER BY hour, provider
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare load buckets statement: %w", err)
	}

	s.cleanupSnapshotsSt, err = s.db.Prepare(`DELETE FROM usage_snapshots WHERE recorded_at < ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare cleanup snapshots statement: %w", err)
	}

	s.cleanupBucketsStmt, err = s.db.Prepare(`DELETE FROM execution_buckets WHERE hour < ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare cleanup buckets statement: %w", err)
	}

	return nil
}

// SaveSnapshot appends one polled usage snapshot.
func (s *SQLiteBackend) SaveSnapshot(ctx context.Context, rec *SnapshotRecord) error {
	if err := validateSnapshot(rec); err != nil {
		return err
	}

	usageJSON, err := json.Marshal(rec.Usage)
	if err != nil {
		return fmt.Errorf("failed to marshal usage: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.saveSnapshotStmt.ExecContext(ctx,
		string(rec.Provider),
		rec.RecordedAt.UnixNano(),
		string(usageJSON),
	); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// SaveBucket upserts the hourly execution bucket.
func (s *SQLiteBackend) SaveBucket(ctx context.Context, rec *BucketRecord) error {
	if err := validateBucket(rec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.saveBucketStmt.ExecContext(ctx,
		string(rec.Provider),
		rec.Hour.Unix(),
		rec.Executions,
		rec.Cost,
	); err != nil {
		return fmt.Errorf("failed to save bucket: %w", err)
	}
	return nil
}

// LoadSnapshots returns snapshots recorded at or after since, oldest first.
func (s *SQLiteBackend) LoadSnapshots(ctx context.Context, since time.Time) ([]*SnapshotRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.loadSnapshotsStmt.QueryContext(ctx, since.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshots: %w", err)
	}
	defer rows.Close()

	var out []*SnapshotRecord
	for rows.Next() {
		var (
			provider   string
			recordedAt int64
			usageJSON  string
		)
		if err := rows.Scan(&provider, &recordedAt, &usageJSON); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		rec := &SnapshotRecord{
			Provider:   providers.Kind(provider),
			RecordedAt: time.Unix(0, recordedAt).UTC(),
		}
		if err := json.Unmarshal([]byte(usageJSON), &rec.Usage); err != nil {
			return nil, fmt.Errorf("failed to unmarshal usage: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

// LoadBuckets returns buckets starting at or after since, oldest first.
func (s *SQLiteBackend) LoadBuckets(ctx context.Context, since time.Time) ([]*BucketRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.loadBucketsStmt.QueryContext(ctx, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to load buckets: %w", err)
	}
	defer rows.Close()

	var out []*BucketRecord
	for rows.Next() {
		var (
			provider string
			hour     int64
			rec      BucketRecord
		)
		if err := rows.Scan(&provider, &hour, &rec.Executions, &rec.Cost); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		rec.Provider = providers.Kind(provider)
		rec.Hour = time.Unix(hour, 0).UTC()
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

// Cleanup removes expired rows.
func (s *SQLiteBackend) Cleanup(ctx context.Context, snapshotsBefore, bucketsBefore time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.cleanupSnapshotsSt.ExecContext(ctx, snapshotsBefore.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup snapshots: %w", err)
	}
	snapshots, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	res, err = s.cleanupBucketsStmt.ExecContext(ctx, bucketsBefore.Unix())
	if err != nil {
		return int(snapshots), fmt.Errorf("failed to cleanup buckets: %w", err)
	}
	buckets, err := res.RowsAffected()
	if err != nil {
		return int(snapshots), fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(snapshots + buckets), nil
}

// Close releases any resources held by the backend.
// Close is idempotent and safe to call multiple times.
func (s *SQLiteBackend) Close() error {
	var closeErr error

	s.closeOnce.Do(func() {
		close(s.done)

		for _, stmt := range []*sql.Stmt{
			s.saveSnapshotStmt,
			s.saveBucketStmt,
			s.loadSnapshotsStmt,
			s.loadBucketsStmt,
			s.cleanupSnapshotsSt,
			s.cleanupBucketsStmt,
		} {
			if stmt != nil {
				stmt.Close()
			}
		}

		if s.db != nil {
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
			closeErr = s.db.Close()
		}
	})

	return closeErr
}

// checkpointLoop runs periodic WAL checkpoints.
func (s *SQLiteBackend) checkpointLoop() {
	ticker := time.NewTicker(s.checkpointInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(PASSIVE)")
		case <-s.done:
			return
		}
	}
}
