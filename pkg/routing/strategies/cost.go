package strategies

import (
	"fmt"

	"utrix-hq/quotaflow/pkg/routing"
)

// costConfidence is reported for a cost-optimized selection.
const costConfidence = 0.9

// CostOptimizedStrategy picks the cheapest provider with quota headroom.
type CostOptimizedStrategy struct{}

// NewCostOptimizedStrategy creates a new cost-optimized strategy.
func NewCostOptimizedStrategy() *CostOptimizedStrategy {
	return &CostOptimizedStrategy{}
}

// SelectProvider ranks eligible candidates by the cost of one execution.
// Ties keep configuration order.
func (s *CostOptimizedStrategy) SelectProvider(req *routing.FunctionRequest, candidates []routing.Candidate) (*routing.Selection, error) {
	eligible := routing.FilterWithinQuota(candidates)
	if len(eligible) == 0 {
		return nil, routing.ErrNoEligibleProviders
	}

	best := eligible[0]
	for _, c := range eligible[1:] {
		if c.CostEstimate < best.CostEstimate {
			best = c
		}
	}

	return &routing.Selection{
		Provider:   best.Kind,
		Reason:     fmt.Sprintf("lowest estimated cost $%.10f", best.CostEstimate),
		Confidence: costConfidence,
	}, nil
}

// GetName returns the strategy name.
func (s *CostOptimizedStrategy) GetName() string {
	return routing.StrategyCostOptimized
}

// Reset is a no-op; the strategy is stateless.
func (s *CostOptimizedStrategy) Reset() {}
