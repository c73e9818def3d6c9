package storage

import (
	"context"
	"time"

	"utrix-hq/quotaflow/pkg/providers"
)

// Backend defines the interface for usage history persistence.
// Implementations must be thread-safe and support concurrent access.
type Backend interface {
	// SaveSnapshot appends one polled usage snapshot.
	SaveSnapshot(ctx context.Context, rec *SnapshotRecord) error

	// SaveBucket upserts the hourly execution bucket for (provider, hour).
	SaveBucket(ctx context.Context, rec *BucketRecord) error

	// LoadSnapshots returns snapshots recorded at or after since, oldest first.
	LoadSnapshots(ctx context.Context, since time.Time) ([]*SnapshotRecord, error)

	// LoadBuckets returns buckets starting at or after since, oldest first.
	LoadBuckets(ctx context.Context, since time.Time) ([]*BucketRecord, error)

	// Cleanup removes snapshots older than snapshotsBefore and buckets older
	// than bucketsBefore. Returns the number of rows deleted.
	Cleanup(ctx context.Context, snapshotsBefore, bucketsBefore time.Time) (int, error)

	// Close releases any resources held by the backend.
	// The backend should not be used after calling Close.
	Close() error
}

// SnapshotRecord is one persisted usage snapshot for a provider.
type SnapshotRecord struct {
	// Provider is the provider kind.
	Provider providers.Kind

	// Usage is the polled usage, stored as a JSON document.
	Usage providers.QuotaUsage

	// RecordedAt is when the snapshot was taken.
	RecordedAt time.Time
}

// BucketRecord is an hourly execution total for a provider.
type BucketRecord struct {
	// Provider is the provider kind.
	Provider providers.Kind

	// Hour is the start of the hour, truncated.
	Hour time.Time

	// Executions is the number of successful executions in the hour.
	Executions int64

	// Cost is the estimated cost of those executions in USD.
	Cost float64
}
