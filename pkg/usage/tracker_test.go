package usage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"utrix-hq/quotaflow/internal/testutil"
	"utrix-hq/quotaflow/pkg/providers"
	"utrix-hq/quotaflow/pkg/usage/storage"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestTracker(t *testing.T, backend storage.Backend, ps ...providers.Provider) (*Tracker, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 3, 21, 12, 0, 0, 0, time.UTC)}
	tr := NewTracker(ps, backend, Config{RetentionDays: 30, SeriesRetentionDays: 90}, nil)
	tr.SetClock(clock.now)
	return tr, clock
}

func TestTracker_GetCurrentUsage(t *testing.T) {
	aws := testutil.NewMockProvider(providers.KindAWSLambda)
	gcp := testutil.NewMockProvider(providers.KindGCPFunctions)
	aws.SetUsage(providers.QuotaUsage{Executions: 100, Requests: 120})
	gcp.SetUsage(providers.QuotaUsage{Executions: 7})

	tr, _ := newTestTracker(t, nil, aws, gcp)

	got := tr.GetCurrentUsage(context.Background())
	if len(got) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(got))
	}
	if got[providers.KindAWSLambda].Executions != 100 {
		t.Errorf("expected 100 executions, got %d", got[providers.KindAWSLambda].Executions)
	}
	if got[providers.KindGCPFunctions].Stale {
		t.Error("live read must not be stale")
	}
	if got[providers.KindAWSLambda].Timestamp.IsZero() {
		t.Error("expected timestamp to be filled in")
	}
	if n := len(tr.History()); n != 1 {
		t.Errorf("expected 1 history entry, got %d", n)
	}
}

func TestTracker_FallbackOnAdapterFailure(t *testing.T) {
	aws := testutil.NewMockProvider(providers.KindAWSLambda)
	azure := testutil.NewMockProvider(providers.KindAzureFunctions)
	aws.SetUsage(providers.QuotaUsage{Executions: 500})
	azure.SetUsageError(errors.New("billing api down"))

	tr, clock := newTestTracker(t, nil, aws, azure)
	ctx := context.Background()

	first := tr.GetCurrentUsage(ctx)
	zeroed := first[providers.KindAzureFunctions]
	if !zeroed.Stale || zeroed.Executions != 0 {
		t.Errorf("expected zeroed stale snapshot, got %+v", zeroed)
	}

	clock.advance(time.Minute)
	aws.SetUsageError(errors.New("timeout"))

	second := tr.GetCurrentUsage(ctx)
	cached := second[providers.KindAWSLambda]
	if !cached.Stale {
		t.Error("expected cached snapshot to be marked stale")
	}
	if cached.Executions != 500 {
		t.Errorf("expected last known 500 executions, got %d", cached.Executions)
	}
	if n := len(tr.History()); n != 2 {
		t.Errorf("expected 2 history entries, got %d", n)
	}
}

func TestTracker_HistoryRetention(t *testing.T) {
	aws := testutil.NewMockProvider(providers.KindAWSLambda)
	tr, clock := newTestTracker(t, nil, aws)
	ctx := context.Background()

	tr.GetCurrentUsage(ctx)
	clock.advance(20 * 24 * time.Hour)
	tr.GetCurrentUsage(ctx)
	clock.advance(11 * 24 * time.Hour)
	tr.GetCurrentUsage(ctx)

	history := tr.History()
	if len(history) != 2 {
		t.Fatalf("expected the 31-day-old entry to be trimmed, got %d entries", len(history))
	}
	if !history[0].Timestamp.Equal(clock.t.Add(-11 * 24 * time.Hour)) {
		t.Errorf("unexpected oldest entry %v", history[0].Timestamp)
	}
}

func TestTracker_CurrentPollsWhenEmpty(t *testing.T) {
	aws := testutil.NewMockProvider(providers.KindAWSLambda)
	aws.SetUsage(providers.QuotaUsage{Executions: 3})
	tr, _ := newTestTracker(t, nil, aws)

	u, ok := tr.CurrentFor(context.Background(), providers.KindAWSLambda)
	if !ok || u.Executions != 3 {
		t.Fatalf("expected polled usage, got %+v (ok=%v)", u, ok)
	}

	aws.SetUsage(providers.QuotaUsage{Executions: 9})
	u, _ = tr.CurrentFor(context.Background(), providers.KindAWSLambda)
	if u.Executions != 3 {
		t.Errorf("Current must return the cached value, got %d", u.Executions)
	}
}

func TestTracker_DailySeries(t *testing.T) {
	tr, _ := newTestTracker(t, nil)
	ctx := context.Background()
	kind := providers.KindGCPFunctions

	day1 := time.Date(2026, 3, 11, 9, 15, 0, 0, time.UTC)
	records := []struct {
		at   time.Time
		n    int64
		cost float64
	}{
		{day1, 10, 0.01},
		{day1.Add(30 * time.Minute), 5, 0.005},
		{day1.Add(5 * time.Hour), 20, 0.02},
		{day1.Add(24 * time.Hour), 7, 0.007},
	}
	for _, r := range records {
		if err := tr.RecordExecution(ctx, kind, r.at, r.n, r.cost); err != nil {
			t.Fatalf("RecordExecution() failed: %v", err)
		}
	}

	hourly := tr.HourlySeries(kind, time.Time{})
	if len(hourly) != 3 {
		t.Fatalf("expected 3 hourly buckets, got %d", len(hourly))
	}
	if hourly[0].Executions != 15 {
		t.Errorf("expected first bucket to hold 15, got %d", hourly[0].Executions)
	}

	daily := tr.DailySeries(kind, time.Time{})
	if len(daily) != 2 {
		t.Fatalf("expected 2 days, got %d", len(daily))
	}
	if daily[0].Executions != 35 || daily[1].Executions != 7 {
		t.Errorf("unexpected daily totals: %d, %d", daily[0].Executions, daily[1].Executions)
	}
	if got := daily[0].CostPerExecution(); got < 0.00099 || got > 0.00101 {
		t.Errorf("expected cost per execution 0.001, got %f", got)
	}

	since := tr.DailySeries(kind, day1.Add(24*time.Hour).Truncate(24*time.Hour))
	if len(since) != 1 {
		t.Errorf("expected 1 day after cutoff, got %d", len(since))
	}

	if err := tr.RecordExecution(ctx, kind, day1, -1, 0); err == nil {
		t.Error("expected error for negative executions")
	}
}

func TestTracker_RestoreAndPrune(t *testing.T) {
	backend, err := storage.NewSQLiteBackend(filepath.Join(t.TempDir(), "usage.db"))
	if err != nil {
		t.Fatalf("NewSQLiteBackend() failed: %v", err)
	}
	defer backend.Close()

	aws := testutil.NewMockProvider(providers.KindAWSLambda)
	aws.SetUsage(providers.QuotaUsage{Executions: 42})

	tr, clock := newTestTracker(t, backend, aws)
	ctx := context.Background()

	tr.GetCurrentUsage(ctx)
	if err := tr.RecordExecution(ctx, providers.KindAWSLambda, clock.t.Add(-100*24*time.Hour), 1, 0); err != nil {
		t.Fatalf("RecordExecution() failed: %v", err)
	}
	if err := tr.RecordExecution(ctx, providers.KindAWSLambda, clock.t, 4, 0); err != nil {
		t.Fatalf("RecordExecution() failed: %v", err)
	}

	restored, _ := newTestTracker(t, backend, aws)
	if err := restored.Restore(ctx); err != nil {
		t.Fatalf("Restore() failed: %v", err)
	}
	if n := len(restored.History()); n != 1 {
		t.Errorf("expected 1 restored entry, got %d", n)
	}
	u, ok := restored.CurrentFor(ctx, providers.KindAWSLambda)
	if !ok || u.Executions != 42 {
		t.Errorf("expected restored current usage, got %+v", u)
	}
	// The 100-day-old bucket is outside the series retention.
	if got := restored.HourlySeries(providers.KindAWSLambda, time.Time{}); len(got) != 1 || got[0].Executions != 4 {
		t.Errorf("unexpected restored series %+v", got)
	}

	deleted, err := tr.Prune(ctx)
	if err != nil {
		t.Fatalf("Prune() failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 pruned row, got %d", deleted)
	}
	if got := tr.HourlySeries(providers.KindAWSLambda, time.Time{}); len(got) != 1 {
		t.Errorf("expected in-memory series pruned to 1 bucket, got %d", len(got))
	}
}
