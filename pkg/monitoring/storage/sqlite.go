package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const backendSQLite = "sqlite"

// SQLiteConfig contains configuration for the SQLite alert backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 4
	MaxOpenConns int

	// BusyTimeout is how long to wait when the database is locked.
	// Default: 5s
	BusyTimeout time.Duration
}

// SQLiteBackend implements Backend on SQLite.
type SQLiteBackend struct {
	db     *sql.DB
	config SQLiteConfig
	logger *slog.Logger

	mu     sync.RWMutex
	upsert *sql.Stmt
	get    *sql.Stmt

	closeOnce sync.Once
	closeErr  error
}

// NewSQLiteBackend opens (creating if needed) the alert database at
// cfg.Path.
func NewSQLiteBackend(cfg SQLiteConfig, logger *slog.Logger) (*SQLiteBackend, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite alert storage requires a path")
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 4
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "monitoring.storage.sqlite")

	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, newStorageError(backendSQLite, "open", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)

	s := &SQLiteBackend{db: db, config: cfg, logger: logger}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite alert storage initialized",
		"path", cfg.Path,
		"max_open_conns", cfg.MaxOpenConns,
	)
	return s, nil
}

func (s *SQLiteBackend) initialize() error {
	if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return newStorageError(backendSQLite, "enable_wal", err)
	}
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())); err != nil {
		return newStorageError(backendSQLite, "set_busy_timeout", err)
	}
	if _, err := s.db.Exec(Schema); err != nil {
		return newStorageError(backendSQLite, "create_schema", err)
	}
	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return newStorageError(backendSQLite, "insert_schema_version", err)
	}

	var version int
	if err := s.db.QueryRow(GetSchemaVersion).Scan(&version); err != nil {
		return newStorageError(backendSQLite, "get_schema_version", err)
	}
	if version != SchemaVersion {
		return newStorageError(backendSQLite, "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	var err error
	if s.upsert, err = s.db.Prepare(upsertAlert); err != nil {
		return newStorageError(backendSQLite, "prepare_upsert", err)
	}
	if s.get, err = s.db.Prepare(selectColumns + " WHERE id = ?"); err != nil {
		s.upsert.Close()
		return newStorageError(backendSQLite, "prepare_get", err)
	}
	return nil
}

// Save inserts or replaces the alert.
func (s *SQLiteBackend) Save(ctx context.Context, rec *AlertRecord) error {
	if err := validate(rec); err != nil {
		return err
	}

	var resolvedAt any
	if !rec.ResolvedAt.IsZero() {
		resolvedAt = rec.ResolvedAt.UTC()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.upsert == nil {
		return newStorageError(backendSQLite, "save", sql.ErrConnDone)
	}

	_, err := s.upsert.ExecContext(ctx,
		rec.ID, rec.Provider, rec.Type, rec.Level, rec.Message, rec.Value, rec.Threshold,
		rec.Active, rec.Resolution, rec.CreatedAt.UTC(), rec.UpdatedAt.UTC(), resolvedAt,
	)
	if err != nil {
		return newStorageError(backendSQLite, "save", err)
	}
	return nil
}

// Get returns the alert with id, or nil.
func (s *SQLiteBackend) Get(ctx context.Context, id string) (*AlertRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.get == nil {
		return nil, newStorageError(backendSQLite, "get", sql.ErrConnDone)
	}

	rec, err := scanAlert(s.get.QueryRowContext(ctx, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, newStorageError(backendSQLite, "get", err)
	}
	return rec, nil
}

// List returns matching alerts, newest first.
func (s *SQLiteBackend) List(ctx context.Context, q *Query) ([]*AlertRecord, error) {
	if q == nil {
		q = &Query{}
	}

	var where []string
	var args []any
	if q.Provider != "" {
		where = append(where, "provider = ?")
		args = append(args, q.Provider)
	}
	if q.Type != "" {
		where = append(where, "type = ?")
		args = append(args, q.Type)
	}
	if q.ActiveOnly {
		where = append(where, "active = 1")
	}
	if !q.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, q.Since.UTC())
	}

	query := selectColumns
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id ASC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, newStorageError(backendSQLite, "list", err)
	}
	defer rows.Close()

	var out []*AlertRecord
	for rows.Next() {
		rec, err := scanAlert(rows)
		if err != nil {
			return nil, newStorageError(backendSQLite, "scan", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, newStorageError(backendSQLite, "list", err)
	}
	return out, nil
}

// Cleanup deletes alerts resolved before the cutoff.
func (s *SQLiteBackend) Cleanup(ctx context.Context, resolvedBefore time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM alerts WHERE active = 0 AND resolved_at IS NOT NULL AND resolved_at < ?`,
		resolvedBefore.UTC(),
	)
	if err != nil {
		return 0, newStorageError(backendSQLite, "cleanup", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, newStorageError(backendSQLite, "cleanup", err)
	}
	if n > 0 {
		s.logger.Info("resolved alerts pruned", "deleted_count", n)
	}
	return int(n), nil
}

// Close closes prepared statements and the database. It is safe to call
// more than once.
func (s *SQLiteBackend) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, stmt := range []*sql.Stmt{s.upsert, s.get} {
			if stmt != nil {
				stmt.Close()
			}
		}
		s.upsert, s.get = nil, nil
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (*AlertRecord, error) {
	var (
		rec        AlertRecord
		resolution sql.NullString
		resolvedAt sql.NullTime
	)
	err := row.Scan(
		&rec.ID, &rec.Provider, &rec.Type, &rec.Level, &rec.Message, &rec.Value, &rec.Threshold,
		&rec.Active, &resolution, &rec.CreatedAt, &rec.UpdatedAt, &resolvedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Resolution = resolution.String
	if resolvedAt.Valid {
		rec.ResolvedAt = resolvedAt.Time
	}
	return &rec, nil
}

var _ Backend = (*SQLiteBackend)(nil)
