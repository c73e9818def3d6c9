package projection

import (
	"errors"
	"time"

	"utrix-hq/quotaflow/pkg/providers"
	"utrix-hq/quotaflow/pkg/usage"
)

// ErrUnknownProvider is returned for a provider the calculator was not
// configured with.
var ErrUnknownProvider = errors.New("unknown provider")

// SeriesSource supplies historical execution series. usage.Tracker
// implements it.
type SeriesSource interface {
	DailySeries(kind providers.Kind, since time.Time) []usage.Point
	HourlySeries(kind providers.Kind, since time.Time) []usage.Point
}

// Direction is the direction of a usage trend.
type Direction string

const (
	DirectionIncreasing Direction = "increasing"
	DirectionDecreasing Direction = "decreasing"
	DirectionStable     Direction = "stable"
	DirectionVolatile   Direction = "volatile"
)

// ExecutionProjection is a monthly execution forecast for one provider.
type ExecutionProjection struct {
	Provider                   providers.Kind `json:"provider"`
	ProjectedMonthlyExecutions int64          `json:"projected_monthly_executions"`
	ProjectedMonthlyCost       float64        `json:"projected_monthly_cost"`

	// ConfidenceLevel is in [0, 1]. It is 0 for fallback projections.
	ConfidenceLevel float64 `json:"confidence_level"`

	// DaysOfData is the number of daily points the projection is based on.
	DaysOfData int    `json:"days_of_data"`
	Method     Method `json:"method"`

	// BaseProjection is the method's output before adjustments.
	BaseProjection     float64   `json:"base_projection"`
	TrendAdjustment    float64   `json:"trend_adjustment"`
	SeasonalAdjustment float64   `json:"seasonal_adjustment"`
	RiskFactors        []string  `json:"risk_factors,omitempty"`
	IsFallback         bool      `json:"is_fallback"`
	Timestamp          time.Time `json:"timestamp"`
}

// TrendAnalysis describes the slope of daily executions over a trailing
// window.
type TrendAnalysis struct {
	Provider  providers.Kind `json:"provider"`
	Direction Direction      `json:"direction"`

	// Strength is the relative change across the window, capped at 1.
	Strength float64 `json:"strength"`

	// Volatility is the coefficient of variation of daily executions.
	Volatility float64 `json:"volatility"`

	// Confidence is the R² of the least-squares fit.
	Confidence float64 `json:"confidence"`

	Slope      float64   `json:"slope"`
	WindowDays int       `json:"window_days"`
	DataPoints int       `json:"data_points"`
	Timestamp  time.Time `json:"timestamp"`
}

// SeasonalPattern holds usage multipliers against an even baseline. A
// multiplier of 1.0 means no seasonal deviation.
type SeasonalPattern struct {
	Provider providers.Kind `json:"provider"`

	// DayOfWeek is indexed by time.Weekday (Sunday is 0).
	DayOfWeek [7]float64 `json:"day_of_week_pattern"`

	// HourOfDay is indexed by UTC hour.
	HourOfDay [24]float64 `json:"hour_of_day_pattern"`

	// Month is indexed by month-1.
	Month [12]float64 `json:"month_pattern"`

	// Strength is the mean of the three patterns' variances.
	Strength   float64   `json:"pattern_strength"`
	WindowDays int       `json:"window_days"`
	DataPoints int       `json:"data_points"`
	Timestamp  time.Time `json:"timestamp"`
}
