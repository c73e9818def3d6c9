package projection

import (
	"time"

	"utrix-hq/quotaflow/pkg/usage"
)

// analyzeSeasonal buckets hourly points by weekday, hour and month and
// normalizes each bucket against an even share of the total. Months that
// have no data keep a multiplier of 1.0 and the month baseline is spread
// over covered months only.
func analyzeSeasonal(points []usage.Point) SeasonalPattern {
	var sp SeasonalPattern
	for i := range sp.DayOfWeek {
		sp.DayOfWeek[i] = 1
	}
	for i := range sp.HourOfDay {
		sp.HourOfDay[i] = 1
	}
	for i := range sp.Month {
		sp.Month[i] = 1
	}
	sp.DataPoints = len(points)

	var (
		weekday [7]float64
		hour    [24]float64
		month   [12]float64
		covered [12]bool
		total   float64
	)
	for _, p := range points {
		t := p.Start.UTC()
		n := float64(p.Executions)
		weekday[t.Weekday()] += n
		hour[t.Hour()] += n
		month[t.Month()-time.January] += n
		covered[t.Month()-time.January] = true
		total += n
	}
	if total <= 0 {
		return sp
	}

	for i, v := range weekday {
		sp.DayOfWeek[i] = v / (total / 7)
	}
	for i, v := range hour {
		sp.HourOfDay[i] = v / (total / 24)
	}

	coveredMonths := 0
	for _, c := range covered {
		if c {
			coveredMonths++
		}
	}
	for i, v := range month {
		if covered[i] {
			sp.Month[i] = v / (total / float64(coveredMonths))
		}
	}

	sp.Strength = (variance(sp.DayOfWeek[:]) + variance(sp.HourOfDay[:]) + variance(sp.Month[:])) / 3
	return sp
}

// seasonalAdjustment is the fractional change for the given month. Weak
// patterns are ignored.
func seasonalAdjustment(sp SeasonalPattern, month time.Month, weight, minStrength float64) float64 {
	if sp.Strength < minStrength {
		return 0
	}
	return (sp.Month[month-time.January] - 1) * weight
}
