package routing

import (
	"log/slog"

	"utrix-hq/quotaflow/pkg/health"
	"utrix-hq/quotaflow/pkg/providers"
)

// ProviderSelector handles filtering of providers by health and quota
// headroom. Providers keep their configuration order.
type ProviderSelector struct {
	providers []providers.Provider
	byKind    map[providers.Kind]providers.Provider
	monitor   *health.Monitor
	logger    *slog.Logger
}

// NewProviderSelector creates a new provider selector.
func NewProviderSelector(ps []providers.Provider, monitor *health.Monitor, logger *slog.Logger) *ProviderSelector {
	if logger == nil {
		logger = slog.Default()
	}
	byKind := make(map[providers.Kind]providers.Provider, len(ps))
	for _, p := range ps {
		byKind[p.GetKind()] = p
	}
	return &ProviderSelector{
		providers: ps,
		byKind:    byKind,
		monitor:   monitor,
		logger:    logger,
	}
}

// FilterByHealth filters providers to only include those whose circuit is
// closed. The cool-down reset is applied as a side effect of the check.
func (s *ProviderSelector) FilterByHealth(providerList []providers.Provider) []providers.Provider {
	if len(providerList) == 0 {
		return providerList
	}

	healthy := make([]providers.Provider, 0, len(providerList))
	for _, p := range providerList {
		if s.monitor.IsHealthy(p.GetKind()) {
			healthy = append(healthy, p)
		} else {
			s.logger.Debug("provider excluded due to health",
				"provider", p.GetKind(),
			)
		}
	}

	s.logger.Debug("filtered providers by health",
		"total", len(providerList),
		"healthy", len(healthy),
		"filtered", len(providerList)-len(healthy),
	)
	return healthy
}

// FilterWithinQuota returns the candidates that pass the quota gate.
func FilterWithinQuota(candidates []Candidate) []Candidate {
	eligible := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.WithinQuota {
			eligible = append(eligible, c)
		}
	}
	return eligible
}

// GetAvailableProviders returns all configured providers in configuration
// order.
func (s *ProviderSelector) GetAvailableProviders() []providers.Provider {
	return append([]providers.Provider(nil), s.providers...)
}

// GetProvider returns a specific provider by kind, or nil.
func (s *ProviderSelector) GetProvider(kind providers.Kind) providers.Provider {
	return s.byKind[kind]
}

// GetProviderKinds returns the kinds of all configured providers.
func (s *ProviderSelector) GetProviderKinds() []providers.Kind {
	return kindsOf(s.providers)
}

func kindsOf(ps []providers.Provider) []providers.Kind {
	kinds := make([]providers.Kind, 0, len(ps))
	for _, p := range ps {
		kinds = append(kinds, p.GetKind())
	}
	return kinds
}
