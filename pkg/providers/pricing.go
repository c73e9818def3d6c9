package providers

import (
	"time"

	"github.com/shopspring/decimal"
)

// gbSecondDivisor converts duration_ms * memory_mb into GB-seconds.
var gbSecondDivisor = decimal.NewFromInt(1000 * 1024)

// Rates are USD per GB-second.
var rates = map[Kind]decimal.Decimal{
	KindAWSLambda:      decimal.RequireFromString("0.0000166667"),
	KindGCPFunctions:   decimal.RequireFromString("0.0000025"),
	KindAzureFunctions: decimal.RequireFromString("0.000016"),
}

// Free-tier ceilings per kind.
var defaultLimits = map[Kind]QuotaLimits{
	KindAWSLambda: {
		MonthlyExecutions:     1_000_000,
		MonthlyComputeSeconds: 400_000,
		MonthlyRequests:       1_000_000,
		MaxConcurrency:        1000,
		MaxMemoryMB:           10240,
		MaxTimeout:            900 * time.Second,
		StorageGB:             75,
	},
	KindGCPFunctions: {
		MonthlyExecutions:     2_000_000,
		MonthlyComputeSeconds: 400_000,
		MonthlyRequests:       2_000_000,
		MaxConcurrency:        1000,
		MaxMemoryMB:           8192,
		MaxTimeout:            540 * time.Second,
		StorageGB:             5,
	},
	KindAzureFunctions: {
		MonthlyExecutions:     1_000_000,
		MonthlyComputeSeconds: 400_000,
		MonthlyRequests:       1_000_000,
		MaxConcurrency:        200,
		MaxMemoryMB:           1536,
		MaxTimeout:            600 * time.Second,
		StorageGB:             5,
	},
}

// Rate returns the kind's price per GB-second.
func Rate(kind Kind) decimal.Decimal {
	return rates[kind]
}

// DefaultLimits returns the built-in free-tier limits for kind.
func DefaultLimits(kind Kind) QuotaLimits {
	return defaultLimits[kind]
}

// MergeLimits returns base with every non-zero field of override applied.
func MergeLimits(base, override QuotaLimits) QuotaLimits {
	if override.MonthlyExecutions > 0 {
		base.MonthlyExecutions = override.MonthlyExecutions
	}
	if override.MonthlyComputeSeconds > 0 {
		base.MonthlyComputeSeconds = override.MonthlyComputeSeconds
	}
	if override.MonthlyRequests > 0 {
		base.MonthlyRequests = override.MonthlyRequests
	}
	if override.MaxConcurrency > 0 {
		base.MaxConcurrency = override.MaxConcurrency
	}
	if override.MaxMemoryMB > 0 {
		base.MaxMemoryMB = override.MaxMemoryMB
	}
	if override.MaxTimeout > 0 {
		base.MaxTimeout = override.MaxTimeout
	}
	if override.StorageGB > 0 {
		base.StorageGB = override.StorageGB
	}
	return base
}

// EstimateCost computes
//
//	executions * duration_ms * memory_mb / (1000*1024) * rate
//
// exactly. Negative inputs are treated as zero.
func EstimateCost(rate decimal.Decimal, executions, durationMs, memoryMB int64) decimal.Decimal {
	if executions <= 0 || durationMs <= 0 || memoryMB <= 0 {
		return decimal.Zero
	}
	work := decimal.NewFromInt(executions).
		Mul(decimal.NewFromInt(durationMs)).
		Mul(decimal.NewFromInt(memoryMB))
	return work.Mul(rate).Div(gbSecondDivisor)
}

// GBSeconds converts a single execution's duration and memory into GB-seconds.
func GBSeconds(durationMs, memoryMB int64) float64 {
	if durationMs <= 0 || memoryMB <= 0 {
		return 0
	}
	f, _ := decimal.NewFromInt(durationMs).
		Mul(decimal.NewFromInt(memoryMB)).
		Div(gbSecondDivisor).
		Float64()
	return f
}
