package usage

import (
	"time"

	"utrix-hq/quotaflow/pkg/providers"
)

// DefaultRetentionDays is how long polled snapshots are kept.
const DefaultRetentionDays = 30

// Config configures a Tracker.
type Config struct {
	// RetentionDays bounds the snapshot history.
	RetentionDays int

	// SeriesRetentionDays bounds the hourly execution series. It is never
	// shorter than RetentionDays.
	SeriesRetentionDays int
}

func (c Config) retention() time.Duration {
	days := c.RetentionDays
	if days <= 0 {
		days = DefaultRetentionDays
	}
	return time.Duration(days) * 24 * time.Hour
}

func (c Config) seriesRetention() time.Duration {
	r := c.retention()
	s := time.Duration(c.SeriesRetentionDays) * 24 * time.Hour
	if s < r {
		return r
	}
	return s
}

// Entry is one poll of every configured provider.
type Entry struct {
	Timestamp time.Time                               `json:"timestamp"`
	Usage     map[providers.Kind]providers.QuotaUsage `json:"usage"`
}

// Point is an aggregated execution total over an hour or a calendar day.
type Point struct {
	Start      time.Time `json:"start"`
	Executions int64     `json:"executions"`
	Cost       float64   `json:"cost"`
}

// CostPerExecution returns the mean cost of one execution in the period,
// or zero when nothing executed.
func (p Point) CostPerExecution() float64 {
	if p.Executions <= 0 {
		return 0
	}
	return p.Cost / float64(p.Executions)
}
