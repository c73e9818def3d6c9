package projection

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"utrix-hq/quotaflow/pkg/providers"
	"utrix-hq/quotaflow/pkg/usage"
)

var testNow = time.Date(2026, 3, 21, 12, 0, 0, 0, time.UTC)

// seedDaily records perDay executions at noon for each day in [from, to].
func seedDaily(t *testing.T, tr *usage.Tracker, kind providers.Kind, from, to time.Time, perDay func(day int) int64, costPerExec float64) {
	t.Helper()
	day := 0
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		n := perDay(day)
		if err := tr.RecordExecution(context.Background(), kind, d.Add(12*time.Hour), n, float64(n)*costPerExec); err != nil {
			t.Fatalf("RecordExecution() failed: %v", err)
		}
		day++
	}
}

func newTestCalculator(source SeriesSource, cfg Config) *Calculator {
	c := NewCalculator(source, providers.Kinds(), cfg, nil)
	c.SetClock(func() time.Time { return testNow })
	return c
}

func TestCalculate_FlatSeriesSimpleAverage(t *testing.T) {
	tr := usage.NewTracker(nil, nil, usage.Config{}, nil)
	from := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)
	for _, kind := range providers.Kinds() {
		seedDaily(t, tr, kind, from, to, func(int) int64 { return 50 }, 0.0001)
	}

	calc := newTestCalculator(tr, Config{})

	for _, kind := range providers.Kinds() {
		t.Run(string(kind), func(t *testing.T) {
			p, err := calc.Calculate(context.Background(), kind, MethodSimpleAverage)
			if err != nil {
				t.Fatalf("Calculate() failed: %v", err)
			}
			if p.ProjectedMonthlyExecutions != 1500 {
				t.Errorf("projected = %d, want 1500", p.ProjectedMonthlyExecutions)
			}
			if p.DaysOfData != 10 {
				t.Errorf("days of data = %d, want 10", p.DaysOfData)
			}
			if p.IsFallback {
				t.Error("unexpected fallback")
			}
			// 0.5*(10/30) + 0.3*1 (exact fit) + 0.2*1 (capped strength)
			want := 0.5*(10.0/30.0) + 0.3 + 0.2
			if math.Abs(p.ConfidenceLevel-want) > 1e-9 {
				t.Errorf("confidence = %f, want %f", p.ConfidenceLevel, want)
			}
			if math.Abs(p.ProjectedMonthlyCost-0.15) > 1e-9 {
				t.Errorf("projected cost = %f, want 0.15", p.ProjectedMonthlyCost)
			}
			if p.TrendAdjustment != 0 || p.SeasonalAdjustment != 0 {
				t.Errorf("expected no adjustments, got trend=%f seasonal=%f", p.TrendAdjustment, p.SeasonalAdjustment)
			}

			latest, ok := calc.Latest(kind)
			if !ok || latest != p {
				t.Error("expected projection to be cached")
			}
		})
	}
}

func TestCalculate_InsufficientData(t *testing.T) {
	tr := usage.NewTracker(nil, nil, usage.Config{}, nil)
	seedDaily(t, tr, providers.KindAWSLambda, testNow.AddDate(0, 0, -2).Truncate(24*time.Hour), testNow.AddDate(0, 0, -1).Truncate(24*time.Hour), func(int) int64 { return 900 }, 0)

	calc := newTestCalculator(tr, Config{MinDataPoints: 3, FallbackExecutions: 1000})

	p, err := calc.Calculate(context.Background(), providers.KindAWSLambda, "")
	if err != nil {
		t.Fatalf("Calculate() failed: %v", err)
	}
	if !p.IsFallback {
		t.Fatal("expected fallback projection")
	}
	if p.ConfidenceLevel != 0 {
		t.Errorf("confidence = %f, want 0", p.ConfidenceLevel)
	}
	if p.ProjectedMonthlyExecutions != 1000 {
		t.Errorf("projected = %d, want 1000", p.ProjectedMonthlyExecutions)
	}
	if len(p.RiskFactors) == 0 {
		t.Error("expected an insufficient data risk factor")
	}
	if p.DaysOfData != 2 {
		t.Errorf("days of data = %d, want 2", p.DaysOfData)
	}
}

func TestCalculate_UnknownMethodUsesFallback(t *testing.T) {
	tr := usage.NewTracker(nil, nil, usage.Config{}, nil)
	seedDaily(t, tr, providers.KindGCPFunctions, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC), func(int) int64 { return 10 }, 0)

	calc := newTestCalculator(tr, Config{})
	p, err := calc.Calculate(context.Background(), providers.KindGCPFunctions, "holt_winters")
	if err != nil {
		t.Fatalf("Calculate() failed: %v", err)
	}
	if p.Method != MethodSimpleAverage {
		t.Errorf("method = %s, want fallback %s", p.Method, MethodSimpleAverage)
	}
	if p.ProjectedMonthlyExecutions != 300 {
		t.Errorf("projected = %d, want 300", p.ProjectedMonthlyExecutions)
	}
}

func TestCalculate_TrendAdjustment(t *testing.T) {
	tr := usage.NewTracker(nil, nil, usage.Config{}, nil)
	from := time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 21, 0, 0, 0, 0, time.UTC)
	seedDaily(t, tr, providers.KindAzureFunctions, from, to, func(day int) int64 { return int64(100 + 10*day) }, 0)

	calc := newTestCalculator(tr, Config{})
	p, err := calc.Calculate(context.Background(), providers.KindAzureFunctions, MethodSimpleAverage)
	if err != nil {
		t.Fatalf("Calculate() failed: %v", err)
	}
	if p.TrendAdjustment <= 0 {
		t.Fatalf("expected positive trend adjustment, got %f", p.TrendAdjustment)
	}
	want := int64(p.BaseProjection * (1 + p.TrendAdjustment + p.SeasonalAdjustment))
	if p.ProjectedMonthlyExecutions != want {
		t.Errorf("projected = %d, want %d", p.ProjectedMonthlyExecutions, want)
	}

	trend, ok := calc.LatestTrend(providers.KindAzureFunctions)
	if !ok || trend.Direction != DirectionIncreasing {
		t.Errorf("expected cached increasing trend, got %+v", trend)
	}
}

func TestCalculate_UnknownProvider(t *testing.T) {
	calc := NewCalculator(usage.NewTracker(nil, nil, usage.Config{}, nil), []providers.Kind{providers.KindAWSLambda}, Config{}, nil)

	_, err := calc.Calculate(context.Background(), providers.KindGCPFunctions, "")
	if !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("expected ErrUnknownProvider, got %v", err)
	}
	if _, err := calc.AnalyzeTrend(context.Background(), providers.KindGCPFunctions); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("expected ErrUnknownProvider from AnalyzeTrend, got %v", err)
	}
}

func TestCompareMethods(t *testing.T) {
	tr := usage.NewTracker(nil, nil, usage.Config{}, nil)
	seedDaily(t, tr, providers.KindAWSLambda, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC), func(day int) int64 { return int64(20 + day) }, 0)

	calc := newTestCalculator(tr, Config{})
	results, err := calc.CompareMethods(context.Background(), providers.KindAWSLambda)
	if err != nil {
		t.Fatalf("CompareMethods() failed: %v", err)
	}
	if len(results) != len(Methods()) {
		t.Fatalf("expected %d results, got %d", len(Methods()), len(results))
	}
	if results[MethodWeightedAverage].BaseProjection <= results[MethodSimpleAverage].BaseProjection {
		t.Error("weighted average should exceed simple average on a rising series")
	}
	if _, ok := calc.Latest(providers.KindAWSLambda); ok {
		t.Error("CompareMethods must not replace the cached projection")
	}
}

func TestCalculateAll(t *testing.T) {
	tr := usage.NewTracker(nil, nil, usage.Config{}, nil)
	calc := newTestCalculator(tr, Config{})

	all := calc.CalculateAll(context.Background(), "")
	if len(all) != 3 {
		t.Fatalf("expected 3 projections, got %d", len(all))
	}
	for kind, p := range all {
		if !p.IsFallback {
			t.Errorf("%s: expected fallback without history", kind)
		}
	}
}

func TestAnalyzeSeasonal_Cached(t *testing.T) {
	tr := usage.NewTracker(nil, nil, usage.Config{}, nil)
	seedDaily(t, tr, providers.KindAWSLambda, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), func(int) int64 { return 10 }, 0)

	calc := newTestCalculator(tr, Config{})
	sp, err := calc.AnalyzeSeasonal(context.Background(), providers.KindAWSLambda)
	if err != nil {
		t.Fatalf("AnalyzeSeasonal() failed: %v", err)
	}
	// Two full weeks: every weekday gets the same share.
	for i, v := range sp.DayOfWeek {
		if math.Abs(v-1) > 1e-9 {
			t.Errorf("weekday %d = %f, want 1", i, v)
		}
	}
	if math.Abs(sp.HourOfDay[12]-24) > 1e-9 {
		t.Errorf("noon multiplier = %f, want 24", sp.HourOfDay[12])
	}
	if sp.WindowDays != 90 {
		t.Errorf("window = %d, want 90", sp.WindowDays)
	}
}
