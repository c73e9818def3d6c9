package strategies

import (
	"math"

	"utrix-hq/quotaflow/pkg/routing"
)

// Default scoring parameters.
const (
	DefaultResponseTimeCeilingMs = 5000.0
	DefaultCostScoreScale        = 10000.0

	// performance score weights
	responseTimeWeight = 0.4
	reliabilityWeight  = 0.6
)

// Weights are the balanced strategy score weights.
type Weights struct {
	Cost        float64
	Performance float64
	Quota       float64
}

// DefaultWeights returns the 0.4/0.3/0.3 cost/performance/quota split.
func DefaultWeights() Weights {
	return Weights{Cost: 0.4, Performance: 0.3, Quota: 0.3}
}

// Options parameterizes the scoring strategies.
type Options struct {
	// ResponseTimeCeilingMs normalizes response times into [0, 1].
	ResponseTimeCeilingMs float64

	// CostScoreScale shapes the balanced cost score max(0, 1 - cost*scale).
	CostScoreScale float64

	Weights Weights
}

func (o *Options) applyDefaults() {
	if o.ResponseTimeCeilingMs <= 0 {
		o.ResponseTimeCeilingMs = DefaultResponseTimeCeilingMs
	}
	if o.CostScoreScale <= 0 {
		o.CostScoreScale = DefaultCostScoreScale
	}
	if o.Weights == (Weights{}) {
		o.Weights = DefaultWeights()
	}
}

// New creates the strategy registered under name.
func New(name string, opts Options) (routing.Strategy, error) {
	opts.applyDefaults()

	switch name {
	case routing.StrategyCostOptimized:
		return NewCostOptimizedStrategy(), nil
	case routing.StrategyPerformanceOptimized:
		return NewPerformanceOptimizedStrategy(opts.ResponseTimeCeilingMs), nil
	case routing.StrategyBalanced:
		return NewBalancedStrategy(opts.Weights, opts.CostScoreScale, opts.ResponseTimeCeilingMs), nil
	case routing.StrategyRoundRobin:
		return NewRoundRobinStrategy(), nil
	case routing.StrategyLeastConnections:
		return NewLeastConnectionsStrategy(), nil
	}
	return nil, &routing.InvalidStrategyError{
		Strategy:            name,
		AvailableStrategies: routing.StrategyNames(),
	}
}

// performanceScore rewards low response time and low error rate.
func performanceScore(c routing.Candidate, ceilingMs float64) float64 {
	normalized := math.Min(c.Health.ResponseTimeMs/ceilingMs, 1)
	return responseTimeWeight*(1-normalized) + reliabilityWeight*(1-c.Health.ErrorRate)
}

// argmax returns the index of the highest score. The first maximum wins.
func argmax(scores []float64) int {
	best := 0
	for i, s := range scores[1:] {
		if s > scores[best] {
			best = i + 1
		}
	}
	return best
}
