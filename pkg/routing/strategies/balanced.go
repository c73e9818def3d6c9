package strategies

import (
	"fmt"
	"math"
	"sync"

	"utrix-hq/quotaflow/pkg/providers"
	"utrix-hq/quotaflow/pkg/routing"
)

// BalancedStrategy combines cost, performance and quota headroom scores.
// Weights can be changed at runtime.
type BalancedStrategy struct {
	costScale float64
	ceilingMs float64

	mu      sync.RWMutex
	weights Weights
}

// NewBalancedStrategy creates a new balanced strategy.
func NewBalancedStrategy(weights Weights, costScale, ceilingMs float64) *BalancedStrategy {
	if costScale <= 0 {
		costScale = DefaultCostScoreScale
	}
	if ceilingMs <= 0 {
		ceilingMs = DefaultResponseTimeCeilingMs
	}
	if weights == (Weights{}) {
		weights = DefaultWeights()
	}
	return &BalancedStrategy{costScale: costScale, ceilingMs: ceilingMs, weights: weights}
}

// SetWeights replaces the score weights.
func (s *BalancedStrategy) SetWeights(w Weights) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.weights = w
}

// Weights returns the current score weights.
func (s *BalancedStrategy) Weights() Weights {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.weights
}

// Score returns the combined score of one candidate.
func (s *BalancedStrategy) Score(c routing.Candidate) float64 {
	w := s.Weights()
	return w.Cost*s.costScore(c) + w.Performance*performanceScore(c, s.ceilingMs) + w.Quota*quotaScore(c)
}

func (s *BalancedStrategy) costScore(c routing.Candidate) float64 {
	return math.Max(0, 1-c.CostEstimate*s.costScale)
}

// quotaScore is the remaining headroom against the higher of current and
// projected usage.
func quotaScore(c routing.Candidate) float64 {
	used := math.Max(c.Quota.UsagePercent, c.Quota.ProjectedPercent)
	return math.Max(0, math.Min(1, 1-used/100))
}

// SelectProvider picks the eligible candidate with the highest combined
// score.
func (s *BalancedStrategy) SelectProvider(req *routing.FunctionRequest, candidates []routing.Candidate) (*routing.Selection, error) {
	eligible := routing.FilterWithinQuota(candidates)
	if len(eligible) == 0 {
		return nil, routing.ErrNoEligibleProviders
	}

	scores := make([]float64, len(eligible))
	byKind := make(map[providers.Kind]float64, len(eligible))
	for i, c := range eligible {
		scores[i] = s.Score(c)
		byKind[c.Kind] = scores[i]
	}
	best := argmax(scores)
	c := eligible[best]

	return &routing.Selection{
		Provider: c.Kind,
		Reason: fmt.Sprintf("best balanced score %.3f (cost %.3f, performance %.3f, quota %.3f)",
			scores[best], s.costScore(c), performanceScore(c, s.ceilingMs), quotaScore(c)),
		Confidence: math.Min(1, scores[best]),
		Scores:     byKind,
	}, nil
}

// GetName returns the strategy name.
func (s *BalancedStrategy) GetName() string {
	return routing.StrategyBalanced
}

// Reset is a no-op; weights are configuration, not state.
func (s *BalancedStrategy) Reset() {}
