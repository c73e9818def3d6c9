package monitoring

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"utrix-hq/quotaflow/pkg/health"
	"utrix-hq/quotaflow/pkg/monitoring/storage"
	"utrix-hq/quotaflow/pkg/projection"
	"utrix-hq/quotaflow/pkg/providers"
)

var testNow = time.Date(2026, 3, 21, 12, 0, 0, 0, time.UTC)

type fakeUsage struct {
	mu    sync.Mutex
	usage map[providers.Kind]providers.QuotaUsage
}

func (f *fakeUsage) Current(ctx context.Context) map[providers.Kind]providers.QuotaUsage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[providers.Kind]providers.QuotaUsage, len(f.usage))
	for k, v := range f.usage {
		out[k] = v
	}
	return out
}

func (f *fakeUsage) setExecutions(kind providers.Kind, n int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.usage == nil {
		f.usage = make(map[providers.Kind]providers.QuotaUsage)
	}
	f.usage[kind] = providers.QuotaUsage{Provider: kind, Executions: n}
}

// fixedLimits uses 1000 executions and no compute or request limits.
type fixedLimits struct{}

func (fixedLimits) Percentages(u providers.QuotaUsage) providers.UsagePercentages {
	return providers.QuotaLimits{MonthlyExecutions: 1000}.Percentages(u)
}

func (fixedLimits) ProjectedPercent(kind providers.Kind, executions int64) float64 {
	return float64(executions) / 1000 * 100
}

type fakeProjections map[providers.Kind]*projection.ExecutionProjection

func (f fakeProjections) Latest(kind providers.Kind) (*projection.ExecutionProjection, bool) {
	p, ok := f[kind]
	return p, ok
}

type recordingNotifier struct {
	mu    sync.Mutex
	notes []Notification
}

func (r *recordingNotifier) Name() string { return "recording" }

func (r *recordingNotifier) Notify(ctx context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
	return nil
}

func (r *recordingNotifier) events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.notes))
	for i, n := range r.notes {
		out[i] = n.Event
	}
	return out
}

func newTestMonitor(t *testing.T, src Sources, backend storage.Backend) (*Monitor, *recordingNotifier) {
	t.Helper()
	m := NewMonitor(src, backend, Config{WarningThreshold: 80, CriticalThreshold: 95}, nil)
	m.SetClock(func() time.Time { return testNow })
	rec := &recordingNotifier{}
	m.AddNotifier(rec)
	return m, rec
}

func mustCheck(t *testing.T, m *Monitor) *CheckResult {
	t.Helper()
	res, err := m.Check(context.Background())
	if err != nil {
		t.Fatalf("Check() failed: %v", err)
	}
	return res
}

func TestCheck_CriticalQuotaAlertResolves(t *testing.T) {
	usage := &fakeUsage{}
	usage.setExecutions(providers.KindAWSLambda, 960)
	m, rec := newTestMonitor(t, Sources{Usage: usage, Limits: fixedLimits{}}, nil)

	res := mustCheck(t, m)
	if res.Raised != 1 || res.Active != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	active := m.ActiveAlerts()
	if active[0].Level != LevelCritical || active[0].Type != AlertQuotaExecutions {
		t.Fatalf("expected critical executions alert, got %+v", active[0])
	}
	if active[0].Threshold != 95 || active[0].Value != 96 {
		t.Errorf("unexpected value/threshold %v/%v", active[0].Value, active[0].Threshold)
	}
	id := active[0].ID

	usage.setExecutions(providers.KindAWSLambda, 500)
	res = mustCheck(t, m)
	if res.Resolved != 1 || res.Active != 0 {
		t.Fatalf("expected resolution, got %+v", res)
	}

	alerts, err := m.Alerts(context.Background(), nil)
	if err != nil {
		t.Fatalf("Alerts() failed: %v", err)
	}
	if len(alerts) != 1 || alerts[0].ID != id {
		t.Fatalf("expected persisted alert %s, got %+v", id, alerts)
	}
	got := alerts[0]
	if got.Active || got.ResolvedAt == nil {
		t.Errorf("alert not resolved: %+v", got)
	}
	if got.Resolution != "executions returned to normal (50.0%)" {
		t.Errorf("resolution = %q", got.Resolution)
	}

	want := []Event{EventRaised, EventResolved}
	if ev := rec.events(); len(ev) != 2 || ev[0] != want[0] || ev[1] != want[1] {
		t.Errorf("events = %v, want %v", ev, want)
	}
}

func TestCheck_Escalation(t *testing.T) {
	usage := &fakeUsage{}
	usage.setExecutions(providers.KindGCPFunctions, 850)
	m, rec := newTestMonitor(t, Sources{Usage: usage, Limits: fixedLimits{}}, nil)

	mustCheck(t, m)
	first := m.ActiveAlerts()[0]
	if first.Level != LevelWarning || first.Threshold != 80 {
		t.Fatalf("expected warning alert, got %+v", first)
	}

	// Unchanged level: no new notification.
	usage.setExecutions(providers.KindGCPFunctions, 870)
	if res := mustCheck(t, m); res.Raised+res.Escalated+res.Resolved != 0 {
		t.Errorf("expected no change, got %+v", res)
	}

	usage.setExecutions(providers.KindGCPFunctions, 990)
	res := mustCheck(t, m)
	if res.Escalated != 1 {
		t.Fatalf("expected escalation, got %+v", res)
	}
	escalated := m.ActiveAlerts()[0]
	if escalated.ID != first.ID || escalated.Level != LevelCritical || escalated.Threshold != 95 {
		t.Errorf("expected alert %s escalated in place, got %+v", first.ID, escalated)
	}

	// Back to warning: the critical alert resolves and a warning opens.
	usage.setExecutions(providers.KindGCPFunctions, 900)
	res = mustCheck(t, m)
	if res.Resolved != 1 || res.Raised != 1 || res.Active != 1 {
		t.Fatalf("unexpected de-escalation result %+v", res)
	}
	current := m.ActiveAlerts()[0]
	if current.ID == first.ID || current.Level != LevelWarning {
		t.Errorf("expected a new warning alert, got %+v", current)
	}

	want := []Event{EventRaised, EventEscalated, EventResolved, EventRaised}
	got := rec.events()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestCheck_ProjectionAlerts(t *testing.T) {
	usage := &fakeUsage{}
	usage.setExecutions(providers.KindAWSLambda, 100)
	usage.setExecutions(providers.KindAzureFunctions, 100)

	projections := fakeProjections{
		providers.KindAWSLambda:      {Provider: providers.KindAWSLambda, ProjectedMonthlyExecutions: 900},
		providers.KindAzureFunctions: {Provider: providers.KindAzureFunctions, ProjectedMonthlyExecutions: 5000, IsFallback: true},
	}
	m, _ := newTestMonitor(t, Sources{Usage: usage, Limits: fixedLimits{}, Projections: projections}, nil)

	mustCheck(t, m)
	active := m.ActiveAlerts()
	if len(active) != 1 {
		t.Fatalf("expected one projection alert, got %+v", active)
	}
	if active[0].Provider != providers.KindAWSLambda || active[0].Type != AlertProjection || active[0].Level != LevelWarning {
		t.Errorf("unexpected alert %+v", active[0])
	}
	if !strings.Contains(active[0].Message, "projected executions at 90.0%") {
		t.Errorf("message = %q", active[0].Message)
	}
}

func TestCheck_ProviderHealthAlert(t *testing.T) {
	monitor := health.NewMonitor(health.Config{FailureThreshold: 2}, []providers.Kind{providers.KindAzureFunctions}, nil)
	m, _ := newTestMonitor(t, Sources{Health: monitor}, nil)

	monitor.RecordFailure(providers.KindAzureFunctions, time.Millisecond, errString("503"))
	monitor.RecordFailure(providers.KindAzureFunctions, time.Millisecond, errString("503"))

	mustCheck(t, m)
	active := m.ActiveAlerts()
	if len(active) != 1 || active[0].Type != AlertProviderHealth || active[0].Level != LevelCritical {
		t.Fatalf("expected provider health alert, got %+v", active)
	}
	if !strings.Contains(active[0].Message, "2 consecutive failures") {
		t.Errorf("message = %q", active[0].Message)
	}

	monitor.ForceHealthy(providers.KindAzureFunctions)
	res := mustCheck(t, m)
	if res.Resolved != 1 {
		t.Fatalf("expected health alert to resolve, got %+v", res)
	}
}

type errString string

func (e errString) Error() string { return string(e) }

func TestMonitor_RestoreAndPrune(t *testing.T) {
	ctx := context.Background()
	backend, err := storage.NewSQLiteBackend(storage.SQLiteConfig{Path: filepath.Join(t.TempDir(), "alerts.db")}, nil)
	if err != nil {
		t.Fatalf("NewSQLiteBackend() failed: %v", err)
	}
	defer backend.Close()

	usage := &fakeUsage{}
	usage.setExecutions(providers.KindAWSLambda, 850)
	usage.setExecutions(providers.KindGCPFunctions, 990)
	m, _ := newTestMonitor(t, Sources{Usage: usage, Limits: fixedLimits{}}, backend)
	mustCheck(t, m)

	restored, _ := newTestMonitor(t, Sources{Usage: usage, Limits: fixedLimits{}}, backend)
	if err := restored.Restore(ctx); err != nil {
		t.Fatalf("Restore() failed: %v", err)
	}
	if got := len(restored.ActiveAlerts()); got != 2 {
		t.Fatalf("restored %d alerts, want 2", got)
	}

	// A restored alert resolves instead of being raised twice.
	usage.setExecutions(providers.KindAWSLambda, 10)
	res := mustCheck(t, restored)
	if res.Raised != 0 || res.Resolved != 1 {
		t.Errorf("unexpected result after restore %+v", res)
	}

	later := testNow.Add(DefaultAlertRetention + time.Hour)
	restored.SetClock(func() time.Time { return later })
	deleted, err := restored.Prune(ctx)
	if err != nil {
		t.Fatalf("Prune() failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	active, err := restored.Alerts(ctx, &storage.Query{ActiveOnly: true})
	if err != nil {
		t.Fatalf("Alerts() failed: %v", err)
	}
	if len(active) != 1 || active[0].Provider != providers.KindGCPFunctions {
		t.Errorf("unexpected active alerts %+v", active)
	}
}

type fakeMetrics struct {
	quota  map[string]float64
	alerts map[string]int
}

func (f *fakeMetrics) SetQuotaUsage(provider, metric string, pct float64) {
	f.quota[provider+"/"+metric] = pct
}

func (f *fakeMetrics) SetProjectedUsage(provider string, pct float64) {
	f.quota[provider+"/projected"] = pct
}

func (f *fakeMetrics) SetActiveAlerts(level string, n int) {
	f.alerts[level] = n
}

func TestCheck_Metrics(t *testing.T) {
	usage := &fakeUsage{}
	usage.setExecutions(providers.KindAWSLambda, 960)
	projections := fakeProjections{
		providers.KindAWSLambda: {ProjectedMonthlyExecutions: 1200},
	}
	m, _ := newTestMonitor(t, Sources{Usage: usage, Limits: fixedLimits{}, Projections: projections}, nil)
	fm := &fakeMetrics{quota: map[string]float64{}, alerts: map[string]int{}}
	m.SetMetrics(fm)

	mustCheck(t, m)
	if fm.quota["aws_lambda/executions"] != 96 || fm.quota["aws_lambda/projected"] != 120 {
		t.Errorf("unexpected quota gauges %v", fm.quota)
	}
	if fm.alerts["critical"] != 2 || fm.alerts["warning"] != 0 {
		t.Errorf("unexpected alert gauges %v", fm.alerts)
	}
}

func TestCheck_CancelledContext(t *testing.T) {
	m, _ := newTestMonitor(t, Sources{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Check(ctx); err == nil {
		t.Error("expected error for cancelled context")
	}
}
