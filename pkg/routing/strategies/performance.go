package strategies

import (
	"fmt"

	"utrix-hq/quotaflow/pkg/providers"
	"utrix-hq/quotaflow/pkg/routing"
)

// PerformanceOptimizedStrategy picks the provider with the best blend of
// response time and reliability among those with quota headroom.
type PerformanceOptimizedStrategy struct {
	ceilingMs float64
}

// NewPerformanceOptimizedStrategy creates a new performance strategy.
// Response times at or above ceilingMs score zero.
func NewPerformanceOptimizedStrategy(ceilingMs float64) *PerformanceOptimizedStrategy {
	if ceilingMs <= 0 {
		ceilingMs = DefaultResponseTimeCeilingMs
	}
	return &PerformanceOptimizedStrategy{ceilingMs: ceilingMs}
}

// SelectProvider scores each eligible candidate as
// 0.4*(1 - min(rt/ceiling, 1)) + 0.6*(1 - error_rate).
func (s *PerformanceOptimizedStrategy) SelectProvider(req *routing.FunctionRequest, candidates []routing.Candidate) (*routing.Selection, error) {
	eligible := routing.FilterWithinQuota(candidates)
	if len(eligible) == 0 {
		return nil, routing.ErrNoEligibleProviders
	}

	scores := make([]float64, len(eligible))
	byKind := make(map[providers.Kind]float64, len(eligible))
	for i, c := range eligible {
		scores[i] = performanceScore(c, s.ceilingMs)
		byKind[c.Kind] = scores[i]
	}
	best := argmax(scores)
	c := eligible[best]

	return &routing.Selection{
		Provider: c.Kind,
		Reason: fmt.Sprintf("best performance score %.3f (%.0fms, %.1f%% errors)",
			scores[best], c.Health.ResponseTimeMs, c.Health.ErrorRate*100),
		Confidence: scores[best],
		Scores:     byKind,
	}, nil
}

// GetName returns the strategy name.
func (s *PerformanceOptimizedStrategy) GetName() string {
	return routing.StrategyPerformanceOptimized
}

// Reset is a no-op; the strategy is stateless.
func (s *PerformanceOptimizedStrategy) Reset() {}
