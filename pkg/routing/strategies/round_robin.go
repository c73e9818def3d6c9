package strategies

import (
	"fmt"
	"hash/fnv"

	"utrix-hq/quotaflow/pkg/routing"
)

// roundRobinConfidence is reported for hash-based selections.
const roundRobinConfidence = 0.7

// RoundRobinStrategy spreads functions across healthy providers by hashing
// the function name. The same name always maps to the same provider until
// the healthy set changes. The quota gate does not apply.
type RoundRobinStrategy struct{}

// NewRoundRobinStrategy creates a new round-robin strategy.
func NewRoundRobinStrategy() *RoundRobinStrategy {
	return &RoundRobinStrategy{}
}

// SelectProvider returns candidates[fnv1a(function) % len(candidates)].
func (s *RoundRobinStrategy) SelectProvider(req *routing.FunctionRequest, candidates []routing.Candidate) (*routing.Selection, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no providers available for round-robin selection")
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(req.FunctionName))
	index := int(h.Sum32() % uint32(len(candidates)))

	return &routing.Selection{
		Provider:   candidates[index].Kind,
		Reason:     fmt.Sprintf("function %q hashed to slot %d of %d", req.FunctionName, index, len(candidates)),
		Confidence: roundRobinConfidence,
	}, nil
}

// GetName returns the strategy name.
func (s *RoundRobinStrategy) GetName() string {
	return routing.StrategyRoundRobin
}

// Reset is a no-op; selection is a pure function of its inputs.
func (s *RoundRobinStrategy) Reset() {}
