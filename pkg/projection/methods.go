package projection

import "math"

// Method selects how the base monthly projection is computed.
type Method string

const (
	MethodSimpleAverage        Method = "simple_average"
	MethodWeightedAverage      Method = "weighted_average"
	MethodLinearRegression     Method = "linear_regression"
	MethodExponentialSmoothing Method = "exponential_smoothing"
)

// daysPerMonth scales a daily rate to a monthly projection.
const daysPerMonth = 30

type baseFunc func(values []float64, alpha float64) float64

var methods = map[Method]baseFunc{
	MethodSimpleAverage:        simpleAverage,
	MethodWeightedAverage:      weightedAverage,
	MethodLinearRegression:     linearRegression,
	MethodExponentialSmoothing: exponentialSmoothing,
}

// Methods returns every supported method.
func Methods() []Method {
	return []Method{
		MethodSimpleAverage,
		MethodWeightedAverage,
		MethodLinearRegression,
		MethodExponentialSmoothing,
	}
}

// IsValidMethod reports whether name is a supported method.
func IsValidMethod(name string) bool {
	_, ok := methods[Method(name)]
	return ok
}

// baseProjection applies m to values. ok is false when m is unknown or the
// result is not finite.
func baseProjection(m Method, values []float64, alpha float64) (float64, bool) {
	fn, found := methods[m]
	if !found || len(values) == 0 {
		return 0, false
	}
	v := fn(values, alpha)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func simpleAverage(values []float64, _ float64) float64 {
	return mean(values) * daysPerMonth
}

// weightedAverage weights day i by i+1 so recent days count most.
func weightedAverage(values []float64, _ float64) float64 {
	var sum, weights float64
	for i, v := range values {
		w := float64(i + 1)
		sum += v * w
		weights += w
	}
	return sum / weights * daysPerMonth
}

// linearRegression projects the fitted daily rate 30 days past the last
// point. The result is floored at zero.
func linearRegression(values []float64, _ float64) float64 {
	slope, intercept := leastSquares(values)
	x := float64(len(values)-1) + daysPerMonth
	return math.Max(0, (slope*x+intercept)*daysPerMonth)
}

func exponentialSmoothing(values []float64, alpha float64) float64 {
	s := values[0]
	for _, v := range values[1:] {
		s = alpha*v + (1-alpha)*s
	}
	return s * daysPerMonth
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// variance is the population variance.
func variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	var ss float64
	for _, v := range values {
		ss += (v - m) * (v - m)
	}
	return ss / float64(len(values))
}

// leastSquares fits y = slope*x + intercept with x = 0..n-1.
func leastSquares(values []float64) (slope, intercept float64) {
	n := float64(len(values))
	if n == 0 {
		return 0, 0
	}
	if n == 1 {
		return 0, values[0]
	}
	xMean := (n - 1) / 2
	yMean := mean(values)

	var sxy, sxx float64
	for i, y := range values {
		dx := float64(i) - xMean
		sxy += dx * (y - yMean)
		sxx += dx * dx
	}
	slope = sxy / sxx
	return slope, yMean - slope*xMean
}

// rSquared returns the coefficient of determination of the fit. A constant
// series is fitted exactly and yields 1.
func rSquared(values []float64, slope, intercept float64) float64 {
	yMean := mean(values)
	var ssRes, ssTot float64
	for i, y := range values {
		pred := slope*float64(i) + intercept
		ssRes += (y - pred) * (y - pred)
		ssTot += (y - yMean) * (y - yMean)
	}
	if ssTot == 0 {
		return 1
	}
	return math.Min(1, math.Max(0, 1-ssRes/ssTot))
}
