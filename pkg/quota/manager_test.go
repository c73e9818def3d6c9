package quota

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"utrix-hq/quotaflow/internal/testutil"
	"utrix-hq/quotaflow/pkg/config"
	"utrix-hq/quotaflow/pkg/monitoring"
	alertstorage "utrix-hq/quotaflow/pkg/monitoring/storage"
	"utrix-hq/quotaflow/pkg/providers"
	"utrix-hq/quotaflow/pkg/routing"
	"utrix-hq/quotaflow/pkg/telemetry/readiness"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type managerFixture struct {
	manager *Manager
	mocks   map[providers.Kind]*testutil.MockProvider
}

// newManagerFixture builds a manager over mock providers. setup runs before
// the manager is created, so provider limits set there are registered.
func newManagerFixture(t *testing.T, mutate func(cfg *config.Config), setup func(mocks map[providers.Kind]*testutil.MockProvider), kinds ...providers.Kind) *managerFixture {
	t.Helper()

	cfg := config.Default()
	cfg.LoadBalancing.Strategy = routing.StrategyCostOptimized
	if mutate != nil {
		mutate(cfg)
	}
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("invalid test config: %v", err)
	}

	if len(kinds) == 0 {
		kinds = providers.Kinds()
	}
	f := &managerFixture{mocks: make(map[providers.Kind]*testutil.MockProvider)}
	var ps []providers.Provider
	for _, k := range kinds {
		m := testutil.NewMockProvider(k)
		f.mocks[k] = m
		ps = append(ps, m)
	}
	if setup != nil {
		setup(f.mocks)
	}

	m, err := NewManager(cfg, Options{Logger: discardLogger(), Providers: ps})
	if err != nil {
		t.Fatalf("NewManager() failed: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	f.manager = m
	return f
}

func TestNewManager_Errors(t *testing.T) {
	if _, err := NewManager(nil, Options{}); err == nil {
		t.Error("expected error for nil config")
	}

	cfg := config.Default()
	_, err := NewManager(cfg, Options{Logger: discardLogger(), Providers: []providers.Provider{}})
	if !errors.Is(err, routing.ErrNoProvidersConfigured) {
		t.Errorf("error = %v, want ErrNoProvidersConfigured", err)
	}

	cfg.Usage.Storage.Backend = "postgres"
	_, err = NewManager(cfg, Options{Logger: discardLogger(), Providers: []providers.Provider{testutil.NewMockProvider(providers.KindAWSLambda)}})
	if err == nil {
		t.Error("expected error for unsupported usage storage backend")
	}
}

func TestManager_ExecuteRecordsUsage(t *testing.T) {
	f := newManagerFixture(t, nil, nil)
	ctx := context.Background()

	if err := f.manager.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() failed: %v", err)
	}

	res, err := f.manager.ExecuteFunction(ctx, &routing.FunctionRequest{FunctionName: "thumbnail"})
	if err != nil {
		t.Fatalf("ExecuteFunction() failed: %v", err)
	}
	if !res.Success || res.Provider != providers.KindGCPFunctions {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.RequestID == "" {
		t.Error("request ID was not assigned")
	}

	series := f.manager.tracker.DailySeries(providers.KindGCPFunctions, time.Now().Add(-24*time.Hour))
	var total int64
	for _, p := range series {
		total += p.Executions
	}
	if total != 1 {
		t.Errorf("recorded executions = %d, want 1", total)
	}

	status := f.manager.GetLoadBalancerStatus(ctx)
	if status.Strategy != routing.StrategyCostOptimized || status.TotalProviders != 3 || status.OverallHealth != "healthy" {
		t.Errorf("unexpected status %+v", status)
	}
}

func TestManager_QuotaStatus(t *testing.T) {
	f := newManagerFixture(t, nil, nil)
	ctx := context.Background()

	aws := f.mocks[providers.KindAWSLambda]
	aws.SetUsage(providers.QuotaUsage{Executions: 500_000, ConcurrentExecutions: 7})

	if err := f.manager.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() failed: %v", err)
	}

	qs := f.manager.QuotaStatus(ctx, providers.KindAWSLambda)
	if qs.UsagePercent != 50 {
		t.Errorf("UsagePercent = %v, want 50", qs.UsagePercent)
	}
	if qs.Executions != 500_000 || qs.ConcurrentExecutions != 7 {
		t.Errorf("unexpected quota status %+v", qs)
	}

	if got := f.manager.QuotaStatus(ctx, providers.KindGCPFunctions); got.UsagePercent != 0 {
		t.Errorf("gcp UsagePercent = %v, want 0", got.UsagePercent)
	}
}

func TestManager_QuotaGateSkipsExhaustedProvider(t *testing.T) {
	f := newManagerFixture(t, nil, func(mocks map[providers.Kind]*testutil.MockProvider) {
		gcp := mocks[providers.KindGCPFunctions]
		gcp.SetLimits(providers.QuotaLimits{MonthlyExecutions: 1000, MonthlyComputeSeconds: 1000, MonthlyRequests: 1000})
		gcp.SetUsage(providers.QuotaUsage{Executions: 900})
	})
	ctx := context.Background()

	if err := f.manager.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() failed: %v", err)
	}
	decision, err := f.manager.SelectProvider(ctx, &routing.FunctionRequest{FunctionName: "thumbnail"})
	if err != nil {
		t.Fatalf("SelectProvider() failed: %v", err)
	}
	if decision.SelectedProvider != providers.KindAzureFunctions {
		t.Errorf("selected %s, want azure_functions (gcp is over the warning threshold)", decision.SelectedProvider)
	}
}

func TestManager_Alerts(t *testing.T) {
	f := newManagerFixture(t, nil, func(mocks map[providers.Kind]*testutil.MockProvider) {
		aws := mocks[providers.KindAWSLambda]
		aws.SetLimits(providers.QuotaLimits{MonthlyExecutions: 1000, MonthlyComputeSeconds: 1000, MonthlyRequests: 10000})
		aws.SetUsage(providers.QuotaUsage{Executions: 960})
	}, providers.KindAWSLambda, providers.KindGCPFunctions)
	ctx := context.Background()

	if err := f.manager.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() failed: %v", err)
	}
	res, err := f.manager.CheckAlerts(ctx)
	if err != nil {
		t.Fatalf("CheckAlerts() failed: %v", err)
	}
	if res.Raised != 1 || res.Active != 1 {
		t.Fatalf("unexpected check result %+v", res)
	}

	active := f.manager.ActiveAlerts()
	if len(active) != 1 || active[0].Level != monitoring.LevelCritical || active[0].Provider != providers.KindAWSLambda {
		t.Fatalf("unexpected active alerts %+v", active)
	}

	history, err := f.manager.Alerts(ctx, &alertstorage.Query{Provider: string(providers.KindAWSLambda)})
	if err != nil {
		t.Fatalf("Alerts() failed: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("alert history has %d entries, want 1", len(history))
	}
}

func TestManager_MonitoringDisabled(t *testing.T) {
	disabled := false
	f := newManagerFixture(t, func(cfg *config.Config) {
		cfg.Monitoring.Enabled = &disabled
	}, nil)
	ctx := context.Background()

	if _, err := f.manager.CheckAlerts(ctx); !errors.Is(err, ErrMonitoringDisabled) {
		t.Errorf("CheckAlerts() error = %v, want ErrMonitoringDisabled", err)
	}
	if _, err := f.manager.Alerts(ctx, nil); !errors.Is(err, ErrMonitoringDisabled) {
		t.Errorf("Alerts() error = %v, want ErrMonitoringDisabled", err)
	}
	if got := f.manager.ActiveAlerts(); len(got) != 0 {
		t.Errorf("ActiveAlerts() = %v, want empty", got)
	}
}

func TestManager_ApplyConfig(t *testing.T) {
	f := newManagerFixture(t, nil, nil)

	cfg := config.Default()
	cfg.LoadBalancing.Strategy = routing.StrategyRoundRobin
	if err := f.manager.ApplyConfig(cfg); err != nil {
		t.Fatalf("ApplyConfig() failed: %v", err)
	}
	if got := f.manager.GetLoadBalancerStatus(context.Background()).Strategy; got != routing.StrategyRoundRobin {
		t.Errorf("strategy = %q, want round_robin", got)
	}

	bad := config.Default()
	bad.LoadBalancing.Strategy = "random"
	if err := f.manager.ApplyConfig(bad); err == nil {
		t.Error("expected error for unknown strategy")
	}
	if got := f.manager.GetLoadBalancerStatus(context.Background()).Strategy; got != routing.StrategyRoundRobin {
		t.Errorf("strategy changed after failed apply: %q", got)
	}
}

func TestManager_Projections(t *testing.T) {
	f := newManagerFixture(t, nil, nil)
	ctx := context.Background()

	now := time.Now()
	for day := 1; day <= 10; day++ {
		at := now.AddDate(0, 0, -day)
		if err := f.manager.RecordExecutions(ctx, providers.KindGCPFunctions, at, 1000, 0.4); err != nil {
			t.Fatalf("RecordExecutions() failed: %v", err)
		}
	}

	p, err := f.manager.CalculateProjection(ctx, providers.KindGCPFunctions, "simple_average")
	if err != nil {
		t.Fatalf("CalculateProjection() failed: %v", err)
	}
	if p.IsFallback || p.DaysOfData < 10 {
		t.Errorf("unexpected projection %+v", p)
	}

	compared, err := f.manager.CompareProjectionMethods(ctx, providers.KindGCPFunctions)
	if err != nil {
		t.Fatalf("CompareProjectionMethods() failed: %v", err)
	}
	if len(compared) != len(config.DefaultAdvancedMethods) {
		t.Errorf("compared %d methods, want %d", len(compared), len(config.DefaultAdvancedMethods))
	}

	if _, err := f.manager.AnalyzeTrend(ctx, providers.KindGCPFunctions); err != nil {
		t.Errorf("AnalyzeTrend() failed: %v", err)
	}
	if _, err := f.manager.AnalyzeSeasonal(ctx, providers.KindGCPFunctions); err != nil {
		t.Errorf("AnalyzeSeasonal() failed: %v", err)
	}
}

func TestManager_RecordExecutionsUnknownProvider(t *testing.T) {
	f := newManagerFixture(t, nil, nil, providers.KindAWSLambda)

	err := f.manager.RecordExecutions(context.Background(), providers.KindAzureFunctions, time.Now(), 1, 0)
	if !errors.Is(err, providers.ErrUnknownKind) {
		t.Errorf("error = %v, want ErrUnknownKind", err)
	}
}

func TestManager_RefreshKeepsOpenCircuit(t *testing.T) {
	f := newManagerFixture(t, func(cfg *config.Config) {
		cfg.LoadBalancing.RetryCount = 5
		cfg.LoadBalancing.RetryBaseDelay = time.Millisecond
	}, nil)
	ctx := context.Background()
	f.mocks[providers.KindGCPFunctions].SetInvokeError(errors.New("function crashed"))

	res, err := f.manager.ExecuteFunction(ctx, &routing.FunctionRequest{FunctionName: "thumbnail"})
	if err != nil {
		t.Fatalf("ExecuteFunction() failed: %v", err)
	}
	if res.Success || res.Provider != providers.KindGCPFunctions {
		t.Fatalf("expected failed execution on gcp_functions, got %+v", res)
	}

	if err := f.manager.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() failed: %v", err)
	}

	snap, _ := f.manager.health.Snapshot(providers.KindGCPFunctions)
	if snap.IsHealthy || snap.ConsecutiveFailures != 5 {
		t.Fatalf("Refresh closed the circuit: %+v", snap)
	}
	d, err := f.manager.SelectProvider(ctx, &routing.FunctionRequest{FunctionName: "thumbnail"})
	if err != nil {
		t.Fatalf("SelectProvider() failed: %v", err)
	}
	if d.SelectedProvider == providers.KindGCPFunctions {
		t.Error("provider with an open circuit was selected after Refresh")
	}
}

func TestManager_Readiness(t *testing.T) {
	f := newManagerFixture(t, nil, nil)
	ctx := context.Background()

	checker := readiness.New(time.Second)
	f.manager.RegisterReadinessChecks(checker)

	if report := checker.CheckReadiness(ctx); !report.Ready() {
		t.Fatalf("expected ready, got %+v", report)
	}

	for _, m := range f.mocks {
		m.SetUsageError(errors.New("throttled"))
	}
	for i := 0; i < config.DefaultCircuitBreakerThreshold; i++ {
		f.manager.HealthCheck(ctx)
	}
	if f.manager.HealthyProviders() != 0 {
		t.Fatalf("HealthyProviders() = %d, want 0", f.manager.HealthyProviders())
	}

	report := checker.CheckReadiness(ctx)
	if report.Ready() || report.Checks["providers"].Status != readiness.StatusUnhealthy {
		t.Errorf("expected providers check to fail, got %+v", report)
	}
	if report.Checks["usage_storage"].Status != readiness.StatusOK {
		t.Errorf("usage storage check = %+v", report.Checks["usage_storage"])
	}
}

func TestManager_StartAndCloseWithSQLite(t *testing.T) {
	dir := t.TempDir()
	f := newManagerFixture(t, func(cfg *config.Config) {
		cfg.Usage.Storage = config.StorageConfig{Backend: "sqlite", Path: filepath.Join(dir, "usage.db")}
		cfg.Monitoring.Storage = config.StorageConfig{Backend: "sqlite", Path: filepath.Join(dir, "alerts.db")}
		config.ApplyDefaults(cfg)
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := f.manager.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	for _, job := range []string{JobPollUsage, JobCheckAlerts, JobPrune} {
		if _, ok := f.manager.NextRun(job); !ok {
			t.Errorf("job %q is not scheduled", job)
		}
	}
	if err := f.manager.RunJob(JobCheckAlerts); err != nil {
		t.Errorf("RunJob() failed: %v", err)
	}

	if err := f.manager.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	for kind, m := range f.mocks {
		if !m.Closed() {
			t.Errorf("provider %s was not closed", kind)
		}
	}
	if err := f.manager.Close(); err != nil {
		t.Errorf("second Close() failed: %v", err)
	}
}
