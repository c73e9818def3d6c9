package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryBackend implements Backend using in-memory storage.
// This is the default backend and provides fast access with no persistence.
// All data is lost when the process exits.
type MemoryBackend struct {
	mu        sync.RWMutex
	snapshots []*SnapshotRecord
	buckets   map[string]*BucketRecord
}

// NewMemoryBackend creates a new in-memory storage backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		buckets: make(map[string]*BucketRecord),
	}
}

// SaveSnapshot appends one polled usage snapshot.
func (m *MemoryBackend) SaveSnapshot(ctx context.Context, rec *SnapshotRecord) error {
	if err := validateSnapshot(rec); err != nil {
		return err
	}
	cp := *rec

	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, &cp)
	return nil
}

// SaveBucket upserts the hourly execution bucket.
func (m *MemoryBackend) SaveBucket(ctx context.Context, rec *BucketRecord) error {
	if err := validateBucket(rec); err != nil {
		return err
	}
	cp := *rec

	m.mu.Lock()
	defer m.mu.Unlock()
	m.buckets[bucketKey(rec)] = &cp
	return nil
}

// LoadSnapshots returns snapshots recorded at or after since, oldest first.
func (m *MemoryBackend) LoadSnapshots(ctx context.Context, since time.Time) ([]*SnapshotRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*SnapshotRecord
	for _, s := range m.snapshots {
		if !s.RecordedAt.Before(since) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RecordedAt.Before(out[j].RecordedAt) })
	return out, nil
}

// LoadBuckets returns buckets starting at or after since, oldest first.
func (m *MemoryBackend) LoadBuckets(ctx context.Context, since time.Time) ([]*BucketRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*BucketRecord
	for _, b := range m.buckets {
		if !b.Hour.Before(since) {
			cp := *b
			out = append(out, &cp)
		}
	}
	sortBuckets(out)
	return out, nil
}

// Cleanup removes expired rows.
func (m *MemoryBackend) Cleanup(ctx context.Context, snapshotsBefore, bucketsBefore time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	deleted := 0
	kept := m.snapshots[:0]
	for _, s := range m.snapshots {
		if s.RecordedAt.Before(snapshotsBefore) {
			deleted++
			continue
		}
		kept = append(kept, s)
	}
	m.snapshots = kept

	for key, b := range m.buckets {
		if b.Hour.Before(bucketsBefore) {
			delete(m.buckets, key)
			deleted++
		}
	}
	return deleted, nil
}

// Close is a no-op for the memory backend.
func (m *MemoryBackend) Close() error {
	return nil
}

// Size returns the number of stored snapshots and buckets.
func (m *MemoryBackend) Size() (snapshots, buckets int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.snapshots), len(m.buckets)
}

func bucketKey(rec *BucketRecord) string {
	return fmt.Sprintf("%s:%d", rec.Provider, rec.Hour.Unix())
}

func sortBuckets(out []*BucketRecord) {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Hour.Equal(out[j].Hour) {
			return out[i].Hour.Before(out[j].Hour)
		}
		return out[i].Provider < out[j].Provider
	})
}

func validateSnapshot(rec *SnapshotRecord) error {
	if rec == nil {
		return fmt.Errorf("snapshot cannot be nil")
	}
	if rec.Provider == "" {
		return fmt.Errorf("provider cannot be empty")
	}
	if rec.RecordedAt.IsZero() {
		return fmt.Errorf("recorded_at cannot be zero")
	}
	return nil
}

func validateBucket(rec *BucketRecord) error {
	if rec == nil {
		return fmt.Errorf("bucket cannot be nil")
	}
	if rec.Provider == "" {
		return fmt.Errorf("provider cannot be empty")
	}
	if rec.Hour.IsZero() {
		return fmt.Errorf("hour cannot be zero")
	}
	return nil
}
