package quota

import (
	"utrix-hq/quotaflow/pkg/providers"
)

// Registry holds the fixed quota ceilings of every configured provider.
// It is built once at startup and is safe for concurrent reads.
type Registry struct {
	kinds  []providers.Kind
	limits map[providers.Kind]providers.QuotaLimits
}

// NewRegistry snapshots the limits of the given providers.
func NewRegistry(ps []providers.Provider) *Registry {
	r := &Registry{limits: make(map[providers.Kind]providers.QuotaLimits, len(ps))}
	for _, p := range ps {
		kind := p.GetKind()
		if _, dup := r.limits[kind]; !dup {
			r.kinds = append(r.kinds, kind)
		}
		r.limits[kind] = p.GetLimits()
	}
	return r
}

// Kinds returns the registered providers in configuration order.
func (r *Registry) Kinds() []providers.Kind {
	return append([]providers.Kind(nil), r.kinds...)
}

// Limits returns the ceilings for kind.
func (r *Registry) Limits(kind providers.Kind) (providers.QuotaLimits, bool) {
	l, ok := r.limits[kind]
	return l, ok
}

// Percentages returns usage against each monthly limit of the provider.
func (r *Registry) Percentages(u providers.QuotaUsage) providers.UsagePercentages {
	return r.limits[u.Provider].Percentages(u)
}

// UsagePercent is the highest of the executions, compute and requests
// percentages.
func (r *Registry) UsagePercent(u providers.QuotaUsage) float64 {
	return r.Percentages(u).Max()
}

// ProjectedPercent returns projected monthly executions as a percentage of
// the provider's execution limit.
func (r *Registry) ProjectedPercent(kind providers.Kind, executions int64) float64 {
	limit := r.limits[kind].MonthlyExecutions
	if limit <= 0 {
		return 0
	}
	return float64(executions) / float64(limit) * 100
}
