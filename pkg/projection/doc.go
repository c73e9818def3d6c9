// Package projection forecasts monthly executions per provider.
//
// A base projection is computed from the daily execution series with one of
// four methods (simple average, weighted average, linear regression,
// exponential smoothing). It is then adjusted by the usage trend and the
// seasonal multiplier of the current month:
//
//	final = int(base * (1 + trend_adj + seasonal_adj))
//
// Providers with fewer than the minimum number of daily points get a
// fallback projection with zero confidence. Results are cached until the
// next explicit recomputation.
package projection
