package projection

import (
	"math"
	"testing"
	"time"

	"utrix-hq/quotaflow/pkg/usage"
)

func TestAnalyzeTrend(t *testing.T) {
	tests := []struct {
		name      string
		values    []float64
		direction Direction
	}{
		{"flat", []float64{50, 50, 50, 50}, DirectionStable},
		{"increasing", []float64{40, 45, 50, 55, 60}, DirectionIncreasing},
		{"decreasing", []float64{60, 55, 50, 45, 40}, DirectionDecreasing},
		{"volatile", []float64{5, 200, 3, 180, 1}, DirectionVolatile},
		{"single point", []float64{10}, DirectionStable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ta := analyzeTrend(tt.values, 0.5)
			if ta.Direction != tt.direction {
				t.Errorf("direction = %s, want %s", ta.Direction, tt.direction)
			}
			if ta.Strength < 0 || ta.Strength > 1 {
				t.Errorf("strength %f outside [0, 1]", ta.Strength)
			}
		})
	}
}

func TestAnalyzeTrend_Values(t *testing.T) {
	ta := analyzeTrend([]float64{40, 45, 50, 55, 60}, 0.5)
	if ta.Slope != 5 {
		t.Errorf("slope = %f, want 5", ta.Slope)
	}
	// 5 * 4 / 50
	if math.Abs(ta.Strength-0.4) > 1e-12 {
		t.Errorf("strength = %f, want 0.4", ta.Strength)
	}
	if math.Abs(ta.Confidence-1) > 1e-12 {
		t.Errorf("confidence = %f, want 1", ta.Confidence)
	}
	if got := trendAdjustment(ta, 0.2, 0.5); math.Abs(got-0.08) > 1e-12 {
		t.Errorf("trend adjustment = %f, want 0.08", got)
	}

	weak := TrendAnalysis{Direction: DirectionIncreasing, Strength: 1, Confidence: 0.4}
	if got := trendAdjustment(weak, 0.2, 0.5); got != 0 {
		t.Errorf("low-confidence trend must not adjust, got %f", got)
	}
}

func hourlyPoints(start time.Time, hours int, perHour func(time.Time) int64) []usage.Point {
	var out []usage.Point
	for i := 0; i < hours; i++ {
		at := start.Add(time.Duration(i) * time.Hour)
		out = append(out, usage.Point{Start: at, Executions: perHour(at)})
	}
	return out
}

func TestAnalyzeSeasonal_DayOfWeekMeanIsOne(t *testing.T) {
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	points := hourlyPoints(start, 24*45, func(at time.Time) int64 {
		if at.Weekday() == time.Saturday || at.Weekday() == time.Sunday {
			return 2
		}
		return int64(10 + at.Hour())
	})

	sp := analyzeSeasonal(points)

	for name, pattern := range map[string][]float64{
		"day_of_week": sp.DayOfWeek[:],
		"hour_of_day": sp.HourOfDay[:],
	} {
		if m := mean(pattern); math.Abs(m-1) > 1e-9 {
			t.Errorf("%s mean = %f, want 1", name, m)
		}
	}
	if sp.DayOfWeek[time.Saturday] >= sp.DayOfWeek[time.Wednesday] {
		t.Error("expected weekend multiplier below midweek")
	}
	if sp.Month[time.June-1] != 1 {
		t.Errorf("uncovered month must stay 1.0, got %f", sp.Month[time.June-1])
	}
	if sp.Strength <= 0 {
		t.Error("expected positive pattern strength")
	}
}

func TestAnalyzeSeasonal_Empty(t *testing.T) {
	sp := analyzeSeasonal(nil)
	if sp.Strength != 0 {
		t.Errorf("expected zero strength, got %f", sp.Strength)
	}
	for i, v := range sp.DayOfWeek {
		if v != 1 {
			t.Errorf("day %d = %f, want 1", i, v)
		}
	}
	if got := seasonalAdjustment(sp, time.March, 0.15, 0.1); got != 0 {
		t.Errorf("weak pattern must not adjust, got %f", got)
	}
}

func TestSeasonalAdjustment(t *testing.T) {
	var sp SeasonalPattern
	for i := range sp.Month {
		sp.Month[i] = 1
	}
	sp.Month[time.December-1] = 1.4
	sp.Strength = 0.3

	if got := seasonalAdjustment(sp, time.December, 0.15, 0.1); math.Abs(got-0.06) > 1e-12 {
		t.Errorf("seasonal adjustment = %f, want 0.06", got)
	}
	if got := seasonalAdjustment(sp, time.March, 0.15, 0.1); got != 0 {
		t.Errorf("neutral month must not adjust, got %f", got)
	}
}
