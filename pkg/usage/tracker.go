package usage

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"utrix-hq/quotaflow/pkg/providers"
	"utrix-hq/quotaflow/pkg/usage/storage"
)

// Tracker polls providers for usage, keeps a bounded snapshot history and
// an hourly execution series per provider.
//
// Adapter failures never propagate out of GetCurrentUsage: the last known
// snapshot for the provider (or a zeroed one) is substituted and marked
// stale.
type Tracker struct {
	providers []providers.Provider
	backend   storage.Backend
	config    Config
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.RWMutex
	current map[providers.Kind]providers.QuotaUsage
	history []Entry
	buckets map[providers.Kind]map[int64]*Point
}

// NewTracker creates a tracker for the given providers. A nil backend keeps
// history in memory only.
func NewTracker(ps []providers.Provider, backend storage.Backend, cfg Config, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	if backend == nil {
		backend = storage.NewMemoryBackend()
	}
	return &Tracker{
		providers: ps,
		backend:   backend,
		config:    cfg,
		logger:    logger.With("component", "usage.tracker"),
		now:       time.Now,
		current:   make(map[providers.Kind]providers.QuotaUsage),
		buckets:   make(map[providers.Kind]map[int64]*Point),
	}
}

// SetClock replaces the time source. It is intended for tests.
func (t *Tracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}

func (t *Tracker) clock() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.now()
}

// GetCurrentUsage polls every provider, records the result as one history
// entry and returns it.
func (t *Tracker) GetCurrentUsage(ctx context.Context) map[providers.Kind]providers.QuotaUsage {
	now := t.clock()
	polled := make(map[providers.Kind]providers.QuotaUsage, len(t.providers))

	for _, p := range t.providers {
		kind := p.GetKind()
		u, err := p.GetUsageStats(ctx)
		if err != nil || u == nil {
			t.logger.Warn("usage poll failed, using last known snapshot",
				"provider", kind,
				"error", err,
			)
			polled[kind] = t.fallback(kind, now)
			continue
		}
		snap := *u
		snap.Provider = kind
		if snap.Timestamp.IsZero() {
			snap.Timestamp = now
		}
		polled[kind] = snap
	}

	t.mu.Lock()
	for kind, u := range polled {
		t.current[kind] = u
	}
	t.history = append(t.history, Entry{Timestamp: now, Usage: copyUsage(polled)})
	t.trimHistoryLocked(now)
	t.mu.Unlock()

	for kind, u := range polled {
		rec := &storage.SnapshotRecord{Provider: kind, Usage: u, RecordedAt: now}
		if err := t.backend.SaveSnapshot(ctx, rec); err != nil {
			t.logger.Error("failed to persist usage snapshot",
				"provider", kind,
				"error", err,
			)
		}
	}

	return polled
}

func (t *Tracker) fallback(kind providers.Kind, now time.Time) providers.QuotaUsage {
	t.mu.RLock()
	last, ok := t.current[kind]
	t.mu.RUnlock()

	if !ok {
		return providers.QuotaUsage{Provider: kind, Timestamp: now, Stale: true}
	}
	last.Stale = true
	return last
}

// Current returns the most recent usage per provider, polling once if
// nothing has been recorded yet.
func (t *Tracker) Current(ctx context.Context) map[providers.Kind]providers.QuotaUsage {
	t.mu.RLock()
	empty := len(t.current) == 0
	out := copyUsage(t.current)
	t.mu.RUnlock()

	if empty {
		return t.GetCurrentUsage(ctx)
	}
	return out
}

// CurrentFor returns the most recent usage for one provider.
func (t *Tracker) CurrentFor(ctx context.Context, kind providers.Kind) (providers.QuotaUsage, bool) {
	u, ok := t.Current(ctx)[kind]
	return u, ok
}

// History returns the retained entries, oldest first.
func (t *Tracker) History() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Entry, len(t.history))
	for i, e := range t.history {
		out[i] = Entry{Timestamp: e.Timestamp, Usage: copyUsage(e.Usage)}
	}
	return out
}

// RecordExecution adds executions and their cost to the hourly bucket
// containing at.
func (t *Tracker) RecordExecution(ctx context.Context, kind providers.Kind, at time.Time, executions int64, cost float64) error {
	if executions < 0 {
		return fmt.Errorf("executions must be non-negative, got %d", executions)
	}
	hour := at.UTC().Truncate(time.Hour)

	t.mu.Lock()
	series, ok := t.buckets[kind]
	if !ok {
		series = make(map[int64]*Point)
		t.buckets[kind] = series
	}
	p, ok := series[hour.Unix()]
	if !ok {
		p = &Point{Start: hour}
		series[hour.Unix()] = p
	}
	p.Executions += executions
	p.Cost += cost
	rec := &storage.BucketRecord{Provider: kind, Hour: hour, Executions: p.Executions, Cost: p.Cost}
	t.mu.Unlock()

	if err := t.backend.SaveBucket(ctx, rec); err != nil {
		return fmt.Errorf("failed to persist execution bucket: %w", err)
	}
	return nil
}

// HourlySeries returns the hourly buckets for kind starting at or after
// since, oldest first.
func (t *Tracker) HourlySeries(kind providers.Kind, since time.Time) []Point {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []Point
	for _, p := range t.buckets[kind] {
		if !p.Start.Before(since) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// DailySeries returns per-calendar-day (UTC) totals for kind, oldest first.
// Days without any recorded execution are omitted.
func (t *Tracker) DailySeries(kind providers.Kind, since time.Time) []Point {
	hourly := t.HourlySeries(kind, since)

	var out []Point
	for _, p := range hourly {
		day := time.Date(p.Start.Year(), p.Start.Month(), p.Start.Day(), 0, 0, 0, 0, time.UTC)
		if n := len(out); n > 0 && out[n-1].Start.Equal(day) {
			out[n-1].Executions += p.Executions
			out[n-1].Cost += p.Cost
			continue
		}
		out = append(out, Point{Start: day, Executions: p.Executions, Cost: p.Cost})
	}
	return out
}

// Restore reloads retained snapshots and buckets from the backend.
func (t *Tracker) Restore(ctx context.Context) error {
	now := t.clock()

	snaps, err := t.backend.LoadSnapshots(ctx, now.Add(-t.config.retention()))
	if err != nil {
		return fmt.Errorf("failed to load usage snapshots: %w", err)
	}
	buckets, err := t.backend.LoadBuckets(ctx, now.Add(-t.config.seriesRetention()))
	if err != nil {
		return fmt.Errorf("failed to load execution buckets: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.history = t.history[:0]
	for _, s := range snaps {
		n := len(t.history)
		if n == 0 || !t.history[n-1].Timestamp.Equal(s.RecordedAt) {
			t.history = append(t.history, Entry{
				Timestamp: s.RecordedAt,
				Usage:     make(map[providers.Kind]providers.QuotaUsage),
			})
			n++
		}
		t.history[n-1].Usage[s.Provider] = s.Usage
		t.current[s.Provider] = s.Usage
	}

	t.buckets = make(map[providers.Kind]map[int64]*Point)
	for _, b := range buckets {
		series, ok := t.buckets[b.Provider]
		if !ok {
			series = make(map[int64]*Point)
			t.buckets[b.Provider] = series
		}
		series[b.Hour.Unix()] = &Point{Start: b.Hour.UTC(), Executions: b.Executions, Cost: b.Cost}
	}

	t.logger.Info("usage history restored",
		"snapshots", len(snaps),
		"buckets", len(buckets),
	)
	return nil
}

// Prune drops history and buckets older than their retention, in memory and
// in the backend. It returns the number of persisted rows removed.
func (t *Tracker) Prune(ctx context.Context) (int, error) {
	now := t.clock()
	seriesCutoff := now.Add(-t.config.seriesRetention())

	t.mu.Lock()
	t.trimHistoryLocked(now)
	for _, series := range t.buckets {
		for key, p := range series {
			if p.Start.Before(seriesCutoff) {
				delete(series, key)
			}
		}
	}
	t.mu.Unlock()

	deleted, err := t.backend.Cleanup(ctx, now.Add(-t.config.retention()), seriesCutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune usage history: %w", err)
	}
	if deleted > 0 {
		t.logger.Info("pruned usage history", "rows", deleted)
	}
	return deleted, nil
}

func (t *Tracker) trimHistoryLocked(now time.Time) {
	cutoff := now.Add(-t.config.retention())
	i := 0
	for i < len(t.history) && t.history[i].Timestamp.Before(cutoff) {
		i++
	}
	if i > 0 {
		t.history = append(t.history[:0], t.history[i:]...)
	}
}

// Close releases the storage backend.
func (t *Tracker) Close() error {
	return t.backend.Close()
}

func copyUsage(in map[providers.Kind]providers.QuotaUsage) map[providers.Kind]providers.QuotaUsage {
	out := make(map[providers.Kind]providers.QuotaUsage, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
