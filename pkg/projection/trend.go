package projection

import "math"

// stableThreshold is the relative change below which a trend is stable.
const stableThreshold = 0.05

// analyzeTrend fits a line to daily totals. Volatility above
// volatilityThreshold forces DirectionVolatile regardless of the slope.
func analyzeTrend(values []float64, volatilityThreshold float64) TrendAnalysis {
	ta := TrendAnalysis{Direction: DirectionStable, DataPoints: len(values)}
	if len(values) < 2 {
		return ta
	}

	slope, intercept := leastSquares(values)
	m := mean(values)

	ta.Slope = slope
	ta.Confidence = rSquared(values, slope, intercept)

	if m > 0 {
		rel := slope * float64(len(values)-1) / m
		ta.Strength = math.Min(1, math.Abs(rel))
		ta.Volatility = math.Sqrt(variance(values)) / m

		switch {
		case math.Abs(rel) < stableThreshold:
			ta.Direction = DirectionStable
		case slope > 0:
			ta.Direction = DirectionIncreasing
		default:
			ta.Direction = DirectionDecreasing
		}
	}

	if ta.Volatility > volatilityThreshold {
		ta.Direction = DirectionVolatile
	}
	return ta
}

// trendAdjustment is the signed fractional change applied to the base
// projection. Fits with confidence below minConfidence are ignored.
func trendAdjustment(ta TrendAnalysis, weight, minConfidence float64) float64 {
	if ta.Confidence < minConfidence {
		return 0
	}
	switch ta.Direction {
	case DirectionIncreasing:
		return ta.Strength * weight
	case DirectionDecreasing:
		return -ta.Strength * weight
	}
	return 0
}
