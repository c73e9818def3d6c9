package providers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultMemoryMB is the memory size assumed for functions that were never
// deployed through DeployFunction.
const DefaultMemoryMB = 128

// Base keeps the pricing, limits and month-to-date counters shared by every
// adapter variant. Counters reset when the calendar month changes in UTC.
type Base struct {
	kind   Kind
	name   string
	limits QuotaLimits
	rate   decimal.Decimal
	logger *slog.Logger
	now    func() time.Time

	mu             sync.Mutex
	periodYear     int
	periodMonth    time.Month
	executions     int64
	requests       int64
	computeSeconds float64
	cost           decimal.Decimal
	concurrent     int
	functions      map[string]FunctionConfig
}

// NewBase creates the shared adapter state for kind. Zero fields of limits
// keep the kind's free-tier defaults.
func NewBase(kind Kind, name string, limits QuotaLimits, logger *slog.Logger) *Base {
	if name == "" {
		name = string(kind)
	}
	if logger == nil {
		logger = slog.Default()
	}
	b := &Base{
		kind:      kind,
		name:      name,
		limits:    MergeLimits(DefaultLimits(kind), limits),
		rate:      Rate(kind),
		logger:    logger.With("component", "providers", "provider", string(kind)),
		now:       time.Now,
		cost:      decimal.Zero,
		functions: make(map[string]FunctionConfig),
	}
	t := b.now().UTC()
	b.periodYear, b.periodMonth = t.Year(), t.Month()
	return b
}

// SetClock replaces the time source. It is intended for tests.
func (b *Base) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
	t := now().UTC()
	b.periodYear, b.periodMonth = t.Year(), t.Month()
}

// GetKind returns the provider kind.
func (b *Base) GetKind() Kind { return b.kind }

// GetName returns the provider display name.
func (b *Base) GetName() string { return b.name }

// GetLimits returns the provider's static quota ceilings.
func (b *Base) GetLimits() QuotaLimits { return b.limits }

// GetCostEstimate returns the exact cost estimate as a float.
func (b *Base) GetCostEstimate(executions, durationMs, memoryMB int64) float64 {
	f, _ := EstimateCost(b.rate, executions, durationMs, memoryMB).Float64()
	return f
}

// DeployFunction validates fn against the kind's memory and timeout caps and
// records it.
func (b *Base) DeployFunction(ctx context.Context, fn FunctionConfig) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if fn.Name == "" {
		return false, &ValidationError{Field: "name", Message: "function name is required"}
	}
	if fn.MemoryMB <= 0 {
		fn.MemoryMB = DefaultMemoryMB
	}
	if fn.MemoryMB > b.limits.MaxMemoryMB {
		return false, &ValidationError{
			Field:   "memory_mb",
			Message: fmt.Sprintf("%d MB exceeds %s limit of %d MB", fn.MemoryMB, b.kind, b.limits.MaxMemoryMB),
		}
	}
	if fn.Timeout > b.limits.MaxTimeout {
		return false, &ValidationError{
			Field:   "timeout",
			Message: fmt.Sprintf("%s exceeds %s limit of %s", fn.Timeout, b.kind, b.limits.MaxTimeout),
		}
	}

	b.mu.Lock()
	b.functions[fn.Name] = fn
	b.mu.Unlock()

	b.logger.Info("function deployed", "function", fn.Name, "memory_mb", fn.MemoryMB)
	return true, nil
}

// MemoryFor returns the deployed memory size of a function.
func (b *Base) MemoryFor(name string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if fn, ok := b.functions[name]; ok && fn.MemoryMB > 0 {
		return int64(fn.MemoryMB)
	}
	return DefaultMemoryMB
}

// Begin marks an invocation as in flight.
func (b *Base) Begin() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rolloverLocked()
	b.concurrent++
}

// Finish records a completed invocation. Every invocation counts as a
// request; only successful ones count as billed executions.
func (b *Base) Finish(name string, elapsed time.Duration, success bool) {
	memoryMB := b.MemoryFor(name)
	durationMs := elapsed.Milliseconds()
	if durationMs < 1 {
		durationMs = 1
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.rolloverLocked()
	if b.concurrent > 0 {
		b.concurrent--
	}
	b.requests++
	if !success {
		return
	}
	b.executions++
	b.computeSeconds += GBSeconds(durationMs, memoryMB)
	b.cost = b.cost.Add(EstimateCost(b.rate, 1, durationMs, memoryMB))
}

// Usage returns the month-to-date counters as a QuotaUsage.
func (b *Base) Usage() *QuotaUsage {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rolloverLocked()
	cost, _ := b.cost.Float64()
	return &QuotaUsage{
		Provider:             b.kind,
		Executions:           b.executions,
		ComputeSeconds:       b.computeSeconds,
		Requests:             b.requests,
		ConcurrentExecutions: b.concurrent,
		Cost:                 cost,
		Timestamp:            b.now(),
	}
}

// AddUsage adds pre-existing consumption to the month-to-date counters,
// for example usage incurred before the process started.
func (b *Base) AddUsage(executions, requests int64, computeSeconds float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rolloverLocked()
	b.executions += executions
	b.requests += requests
	b.computeSeconds += computeSeconds
	b.cost = b.cost.Add(decimal.NewFromFloat(computeSeconds).Mul(b.rate))
}

func (b *Base) rolloverLocked() {
	t := b.now().UTC()
	if t.Year() == b.periodYear && t.Month() == b.periodMonth {
		return
	}
	b.logger.Info("usage period rolled over",
		"previous", fmt.Sprintf("%d-%02d", b.periodYear, b.periodMonth),
		"executions", b.executions,
	)
	b.periodYear, b.periodMonth = t.Year(), t.Month()
	b.executions = 0
	b.requests = 0
	b.computeSeconds = 0
	b.cost = decimal.Zero
}
