package projection

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"utrix-hq/quotaflow/pkg/providers"
	"utrix-hq/quotaflow/pkg/usage"
)

const (
	// minTrendConfidence is the fit quality required before a trend
	// adjusts a projection.
	minTrendConfidence = 0.5

	// minSeasonalStrength is the pattern strength required before a
	// seasonal adjustment applies.
	minSeasonalStrength = 0.1

	highSeasonalStrength = 0.5
	highTrendStrength    = 0.8
)

// Config controls the projection engine. Zero values take the defaults
// applied by NewCalculator.
type Config struct {
	Method                   Method
	FallbackMethod           Method
	AdvancedMethods          []Method
	MinDataPoints            int
	FallbackExecutions       int64
	TrendWindowDays          int
	SeasonalWindowDays       int
	TrendAdjustmentWeight    float64
	SeasonalAdjustmentWeight float64
	ConfidenceThreshold      float64
	VolatilityThreshold      float64
	SmoothingAlpha           float64
}

func (c *Config) applyDefaults() {
	if c.Method == "" {
		c.Method = MethodWeightedAverage
	}
	if c.FallbackMethod == "" {
		c.FallbackMethod = MethodSimpleAverage
	}
	if len(c.AdvancedMethods) == 0 {
		c.AdvancedMethods = Methods()
	}
	if c.MinDataPoints <= 0 {
		c.MinDataPoints = 3
	}
	if c.FallbackExecutions <= 0 {
		c.FallbackExecutions = 1000
	}
	if c.TrendWindowDays <= 0 {
		c.TrendWindowDays = 30
	}
	if c.SeasonalWindowDays <= 0 {
		c.SeasonalWindowDays = 90
	}
	if c.TrendAdjustmentWeight == 0 {
		c.TrendAdjustmentWeight = 0.2
	}
	if c.SeasonalAdjustmentWeight == 0 {
		c.SeasonalAdjustmentWeight = 0.15
	}
	if c.ConfidenceThreshold == 0 {
		c.ConfidenceThreshold = 0.6
	}
	if c.VolatilityThreshold == 0 {
		c.VolatilityThreshold = 0.5
	}
	if c.SmoothingAlpha <= 0 || c.SmoothingAlpha > 1 {
		c.SmoothingAlpha = 0.3
	}
}

// Calculator derives projections, trends and seasonal patterns from a
// SeriesSource. Results are cached per provider until the next explicit
// recomputation.
type Calculator struct {
	source SeriesSource
	config Config
	kinds  map[providers.Kind]bool
	logger *slog.Logger
	now    func() time.Time

	mu          sync.RWMutex
	projections map[providers.Kind]*ExecutionProjection
	trends      map[providers.Kind]*TrendAnalysis
	patterns    map[providers.Kind]*SeasonalPattern
}

// NewCalculator creates a calculator for the given providers.
func NewCalculator(source SeriesSource, kinds []providers.Kind, cfg Config, logger *slog.Logger) *Calculator {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()

	known := make(map[providers.Kind]bool, len(kinds))
	for _, k := range kinds {
		known[k] = true
	}

	return &Calculator{
		source:      source,
		config:      cfg,
		kinds:       known,
		logger:      logger.With("component", "projection"),
		now:         time.Now,
		projections: make(map[providers.Kind]*ExecutionProjection),
		trends:      make(map[providers.Kind]*TrendAnalysis),
		patterns:    make(map[providers.Kind]*SeasonalPattern),
	}
}

// SetClock replaces the time source. It is intended for tests.
func (c *Calculator) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Config returns the effective configuration.
func (c *Calculator) Config() Config {
	return c.config
}

func (c *Calculator) clock() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now()
}

func (c *Calculator) checkKind(kind providers.Kind) error {
	if !c.kinds[kind] {
		return fmt.Errorf("%w: %q", ErrUnknownProvider, kind)
	}
	return nil
}

// windowStart returns midnight UTC days-1 days before now, so the window
// covers days calendar days including today.
func windowStart(now time.Time, days int) time.Time {
	d := now.UTC()
	today := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return today.AddDate(0, 0, -(days - 1))
}

// Calculate computes and caches a projection for kind. An empty method
// selects the configured primary method; an unknown one falls back to the
// configured fallback method.
func (c *Calculator) Calculate(ctx context.Context, kind providers.Kind, method Method) (*ExecutionProjection, error) {
	p, err := c.compute(ctx, kind, method)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.projections[kind] = p
	c.mu.Unlock()

	c.logger.Debug("projection calculated",
		"provider", kind,
		"method", p.Method,
		"executions", p.ProjectedMonthlyExecutions,
		"confidence", p.ConfidenceLevel,
		"fallback", p.IsFallback,
	)
	return p, nil
}

func (c *Calculator) compute(ctx context.Context, kind providers.Kind, method Method) (*ExecutionProjection, error) {
	if err := c.checkKind(kind); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if method == "" {
		method = c.config.Method
	}

	now := c.clock()
	daily := c.source.DailySeries(kind, windowStart(now, c.config.TrendWindowDays))
	if len(daily) < c.config.MinDataPoints {
		return c.fallbackProjection(kind, method, len(daily), now), nil
	}

	values := executions(daily)
	base, ok := baseProjection(method, values, c.config.SmoothingAlpha)
	if !ok {
		c.logger.Warn("projection method unavailable, using fallback method",
			"provider", kind,
			"method", method,
			"fallback_method", c.config.FallbackMethod,
		)
		method = c.config.FallbackMethod
		base, ok = baseProjection(method, values, c.config.SmoothingAlpha)
		if !ok {
			return c.fallbackProjection(kind, method, len(daily), now), nil
		}
	}

	trend := c.trend(kind, now)
	pattern := c.seasonal(kind, now)

	trendAdj := trendAdjustment(trend, c.config.TrendAdjustmentWeight, minTrendConfidence)
	seasonalAdj := seasonalAdjustment(pattern, now.UTC().Month(), c.config.SeasonalAdjustmentWeight, minSeasonalStrength)

	projected := int64(base * (1 + trendAdj + seasonalAdj))
	if projected < 0 {
		projected = 0
	}

	coverage := math.Min(1, float64(len(daily))/daysPerMonth)
	confidence := 0.5*coverage + 0.3*trend.Confidence + 0.2*math.Min(1, pattern.Strength)

	p := &ExecutionProjection{
		Provider:                   kind,
		ProjectedMonthlyExecutions: projected,
		ProjectedMonthlyCost:       float64(projected) * meanCostPerExecution(daily),
		ConfidenceLevel:            confidence,
		DaysOfData:                 len(daily),
		Method:                     method,
		BaseProjection:             base,
		TrendAdjustment:            trendAdj,
		SeasonalAdjustment:         seasonalAdj,
		Timestamp:                  now,
	}
	p.RiskFactors = c.riskFactors(p, trend, pattern)
	return p, nil
}

func (c *Calculator) fallbackProjection(kind providers.Kind, method Method, days int, now time.Time) *ExecutionProjection {
	return &ExecutionProjection{
		Provider:                   kind,
		ProjectedMonthlyExecutions: c.config.FallbackExecutions,
		ConfidenceLevel:            0,
		DaysOfData:                 days,
		Method:                     method,
		BaseProjection:             float64(c.config.FallbackExecutions),
		IsFallback:                 true,
		RiskFactors: []string{
			fmt.Sprintf("insufficient data: %d of %d daily data points", days, c.config.MinDataPoints),
		},
		Timestamp: now,
	}
}

func (c *Calculator) riskFactors(p *ExecutionProjection, trend TrendAnalysis, pattern SeasonalPattern) []string {
	var risks []string
	if p.ConfidenceLevel < c.config.ConfidenceThreshold {
		risks = append(risks, fmt.Sprintf("low confidence: %.2f below %.2f", p.ConfidenceLevel, c.config.ConfidenceThreshold))
	}
	if trend.Volatility > c.config.VolatilityThreshold {
		risks = append(risks, fmt.Sprintf("high volatility: coefficient of variation %.2f", trend.Volatility))
	}
	if trend.Direction == DirectionVolatile {
		risks = append(risks, "volatile usage trend")
	}
	if pattern.Strength > highSeasonalStrength {
		risks = append(risks, fmt.Sprintf("strong seasonal pattern: strength %.2f", pattern.Strength))
	}
	if trend.Strength > highTrendStrength {
		risks = append(risks, fmt.Sprintf("very strong %s trend: projection may over- or under-shoot", trend.Direction))
	}
	return risks
}

func (c *Calculator) trend(kind providers.Kind, now time.Time) TrendAnalysis {
	daily := c.source.DailySeries(kind, windowStart(now, c.config.TrendWindowDays))
	ta := analyzeTrend(executions(daily), c.config.VolatilityThreshold)
	ta.Provider = kind
	ta.WindowDays = c.config.TrendWindowDays
	ta.Timestamp = now

	c.mu.Lock()
	c.trends[kind] = &ta
	c.mu.Unlock()
	return ta
}

func (c *Calculator) seasonal(kind providers.Kind, now time.Time) SeasonalPattern {
	hourly := c.source.HourlySeries(kind, windowStart(now, c.config.SeasonalWindowDays))
	sp := analyzeSeasonal(hourly)
	sp.Provider = kind
	sp.WindowDays = c.config.SeasonalWindowDays
	sp.Timestamp = now

	c.mu.Lock()
	c.patterns[kind] = &sp
	c.mu.Unlock()
	return sp
}

// Latest returns the cached projection for kind.
func (c *Calculator) Latest(kind providers.Kind) (*ExecutionProjection, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.projections[kind]
	return p, ok
}

// CalculateAll recomputes projections for every configured provider.
func (c *Calculator) CalculateAll(ctx context.Context, method Method) map[providers.Kind]*ExecutionProjection {
	out := make(map[providers.Kind]*ExecutionProjection, len(c.kinds))
	for kind := range c.kinds {
		p, err := c.Calculate(ctx, kind, method)
		if err != nil {
			c.logger.Warn("projection failed", "provider", kind, "error", err)
			continue
		}
		out[kind] = p
	}
	return out
}

// CompareMethods computes a projection with every advanced method without
// replacing the cached projection.
func (c *Calculator) CompareMethods(ctx context.Context, kind providers.Kind) (map[Method]*ExecutionProjection, error) {
	out := make(map[Method]*ExecutionProjection, len(c.config.AdvancedMethods))
	for _, m := range c.config.AdvancedMethods {
		p, err := c.compute(ctx, kind, m)
		if err != nil {
			return nil, err
		}
		out[m] = p
	}
	return out, nil
}

// AnalyzeTrend recomputes the trend for kind.
func (c *Calculator) AnalyzeTrend(ctx context.Context, kind providers.Kind) (*TrendAnalysis, error) {
	if err := c.checkKind(kind); err != nil {
		return nil, err
	}
	ta := c.trend(kind, c.clock())
	return &ta, nil
}

// AnalyzeSeasonal recomputes the seasonal pattern for kind.
func (c *Calculator) AnalyzeSeasonal(ctx context.Context, kind providers.Kind) (*SeasonalPattern, error) {
	if err := c.checkKind(kind); err != nil {
		return nil, err
	}
	sp := c.seasonal(kind, c.clock())
	return &sp, nil
}

// LatestTrend returns the cached trend for kind.
func (c *Calculator) LatestTrend(kind providers.Kind) (*TrendAnalysis, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ta, ok := c.trends[kind]
	return ta, ok
}

func executions(points []usage.Point) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = float64(p.Executions)
	}
	return out
}

func meanCostPerExecution(points []usage.Point) float64 {
	var sum float64
	var n int
	for _, p := range points {
		if p.Executions > 0 {
			sum += p.CostPerExecution()
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
