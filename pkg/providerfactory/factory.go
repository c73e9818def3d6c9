package providerfactory

import (
	"fmt"
	"log/slog"
	"os"
	"sort"

	"utrix-hq/quotaflow/pkg/config"
	"utrix-hq/quotaflow/pkg/providers"
)

// NewProvider creates a provider adapter for kind from its configuration.
//
// Supported modes:
//   - "simulated": in-memory adapter with optional latency and failure rate
//   - "http": invokes functions through the kind's HTTP invoke API
//
// The bearer token for http mode is read from the environment variable
// named by CredentialsEnv.
func NewProvider(kind providers.Kind, cfg config.ProviderConfig, logger *slog.Logger) (providers.Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}

	base := providers.NewBase(kind, string(kind), limitsFromConfig(cfg.Limits), logger)

	logger.Debug("creating provider",
		"provider", string(kind),
		"mode", cfg.Mode,
		"base_url", cfg.BaseURL,
	)

	var (
		provider providers.Provider
		err      error
	)
	switch cfg.Mode {
	case "", "simulated":
		provider = providers.NewSimulatedProvider(base, providers.SimulatedOptions{
			Latency:     cfg.Simulation.Latency,
			FailureRate: cfg.Simulation.FailureRate,
		})

	case "http":
		var token string
		if cfg.CredentialsEnv != "" {
			token = os.Getenv(cfg.CredentialsEnv)
			if token == "" {
				logger.Warn("credentials environment variable is empty",
					"provider", string(kind),
					"env", cfg.CredentialsEnv,
				)
			}
		}
		provider, err = providers.NewHTTPProvider(base, providers.HTTPOptions{
			BaseURL: cfg.BaseURL,
			Token:   token,
			Timeout: cfg.Timeout,
		})

	default:
		return nil, &providers.ConfigError{
			Provider: kind,
			Field:    "mode",
			Message:  fmt.Sprintf("unsupported provider mode: %q (supported: simulated, http)", cfg.Mode),
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create provider %q: %w", kind, err)
	}

	logger.Info("provider created", "provider", string(kind), "mode", cfg.Mode)
	return provider, nil
}

// LoadFromConfig creates every enabled provider, ordered by the configured
// order and then by kind.
func LoadFromConfig(cfg *config.Config, logger *slog.Logger) ([]providers.Provider, error) {
	type entry struct {
		kind  providers.Kind
		order int
		cfg   config.ProviderConfig
	}

	var entries []entry
	for name, pc := range cfg.Providers {
		if !pc.IsEnabled() {
			continue
		}
		kind, err := providers.ParseKind(name)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry{kind: kind, order: pc.Order, cfg: pc})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].order != entries[j].order {
			return entries[i].order < entries[j].order
		}
		return entries[i].kind < entries[j].kind
	})

	result := make([]providers.Provider, 0, len(entries))
	for _, e := range entries {
		p, err := NewProvider(e.kind, e.cfg, logger)
		if err != nil {
			for _, created := range result {
				_ = created.Close()
			}
			return nil, err
		}
		result = append(result, p)
	}
	return result, nil
}

func limitsFromConfig(l config.LimitsConfig) providers.QuotaLimits {
	return providers.QuotaLimits{
		MonthlyExecutions:     l.MonthlyExecutions,
		MonthlyComputeSeconds: l.MonthlyComputeSeconds,
		MonthlyRequests:       l.MonthlyRequests,
		MaxConcurrency:        l.MaxConcurrency,
		MaxMemoryMB:           l.MaxMemoryMB,
		MaxTimeout:            l.MaxTimeout,
		StorageGB:             l.StorageGB,
	}
}
