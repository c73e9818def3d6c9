package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidRecord is returned when a record is missing required fields.
var ErrInvalidRecord = errors.New("invalid alert record")

// Backend defines the interface for alert persistence.
// Implementations must be safe for concurrent use.
type Backend interface {
	// Save inserts or replaces the alert with rec.ID.
	Save(ctx context.Context, rec *AlertRecord) error

	// Get returns the alert with id, or nil if none exists.
	Get(ctx context.Context, id string) (*AlertRecord, error)

	// List returns alerts matching q, newest first.
	List(ctx context.Context, q *Query) ([]*AlertRecord, error)

	// Cleanup deletes resolved alerts resolved before the cutoff and returns
	// the number of rows deleted. Active alerts are never deleted.
	Cleanup(ctx context.Context, resolvedBefore time.Time) (int, error)

	// Close releases resources. The backend must not be used afterwards.
	Close() error
}

// AlertRecord is one persisted alert row.
type AlertRecord struct {
	ID         string
	Provider   string
	Type       string
	Level      string
	Message    string
	Value      float64
	Threshold  float64
	Active     bool
	Resolution string
	CreatedAt  time.Time
	UpdatedAt  time.Time

	// ResolvedAt is zero while the alert is active.
	ResolvedAt time.Time
}

// Query filters List results. Zero fields match everything.
type Query struct {
	Provider   string
	Type       string
	ActiveOnly bool

	// Since matches alerts created at or after the time.
	Since time.Time

	// Limit caps the number of rows returned. Zero means no limit.
	Limit int
}

// StorageError represents an error from a storage backend.
type StorageError struct {
	Backend   string
	Operation string
	Cause     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("alert storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

func (e *StorageError) Unwrap() error {
	return e.Cause
}

func newStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{Backend: backend, Operation: operation, Cause: cause}
}

func validate(rec *AlertRecord) error {
	switch {
	case rec == nil:
		return fmt.Errorf("%w: record is nil", ErrInvalidRecord)
	case rec.ID == "":
		return fmt.Errorf("%w: id is required", ErrInvalidRecord)
	case rec.Type == "":
		return fmt.Errorf("%w: type is required", ErrInvalidRecord)
	case rec.Level == "":
		return fmt.Errorf("%w: level is required", ErrInvalidRecord)
	}
	return nil
}

func (q *Query) matches(rec *AlertRecord) bool {
	if q == nil {
		return true
	}
	if q.Provider != "" && rec.Provider != q.Provider {
		return false
	}
	if q.Type != "" && rec.Type != q.Type {
		return false
	}
	if q.ActiveOnly && !rec.Active {
		return false
	}
	if !q.Since.IsZero() && rec.CreatedAt.Before(q.Since) {
		return false
	}
	return true
}
