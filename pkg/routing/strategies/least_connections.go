package strategies

import (
	"fmt"

	"utrix-hq/quotaflow/pkg/routing"
)

// leastConnectionsConfidence is reported for least-connections selections.
const leastConnectionsConfidence = 0.8

// LeastConnectionsStrategy picks the provider with the fewest concurrent
// executions. The quota gate does not apply.
type LeastConnectionsStrategy struct{}

// NewLeastConnectionsStrategy creates a new least-connections strategy.
func NewLeastConnectionsStrategy() *LeastConnectionsStrategy {
	return &LeastConnectionsStrategy{}
}

// SelectProvider returns the first candidate with the smallest concurrency.
func (s *LeastConnectionsStrategy) SelectProvider(req *routing.FunctionRequest, candidates []routing.Candidate) (*routing.Selection, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no providers available for least-connections selection")
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Quota.ConcurrentExecutions < best.Quota.ConcurrentExecutions {
			best = c
		}
	}

	return &routing.Selection{
		Provider:   best.Kind,
		Reason:     fmt.Sprintf("fewest concurrent executions (%d)", best.Quota.ConcurrentExecutions),
		Confidence: leastConnectionsConfidence,
	}, nil
}

// GetName returns the strategy name.
func (s *LeastConnectionsStrategy) GetName() string {
	return routing.StrategyLeastConnections
}

// Reset is a no-op; the strategy is stateless.
func (s *LeastConnectionsStrategy) Reset() {}
