package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryBackend keeps alerts in memory. All data is lost when the process
// exits.
type MemoryBackend struct {
	mu     sync.RWMutex
	alerts map[string]*AlertRecord
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{alerts: make(map[string]*AlertRecord)}
}

// Save inserts or replaces the alert.
func (m *MemoryBackend) Save(ctx context.Context, rec *AlertRecord) error {
	if err := validate(rec); err != nil {
		return err
	}
	cp := *rec

	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts[rec.ID] = &cp
	return nil
}

// Get returns the alert with id, or nil.
func (m *MemoryBackend) Get(ctx context.Context, id string) (*AlertRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.alerts[id]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

// List returns matching alerts, newest first.
func (m *MemoryBackend) List(ctx context.Context, q *Query) ([]*AlertRecord, error) {
	m.mu.RLock()
	out := make([]*AlertRecord, 0, len(m.alerts))
	for _, rec := range m.alerts {
		if q.matches(rec) {
			cp := *rec
			out = append(out, &cp)
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if q != nil && q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Cleanup deletes alerts resolved before the cutoff.
func (m *MemoryBackend) Cleanup(ctx context.Context, resolvedBefore time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	deleted := 0
	for id, rec := range m.alerts {
		if !rec.Active && !rec.ResolvedAt.IsZero() && rec.ResolvedAt.Before(resolvedBefore) {
			delete(m.alerts, id)
			deleted++
		}
	}
	return deleted, nil
}

// Close is a no-op.
func (m *MemoryBackend) Close() error {
	return nil
}

var _ Backend = (*MemoryBackend)(nil)
