package routing

import (
	"sync"
	"sync/atomic"
	"time"
)

// AtomicRoutingStats implements thread-safe routing statistics using atomic operations.
type AtomicRoutingStats struct {
	totalRequests atomic.Int64

	// requestsPerProvider tracks requests routed to each provider
	requestsPerProvider sync.Map // map[string]*atomic.Int64

	// strategyUseCount tracks how many times each strategy was used
	strategyUseCount sync.Map // map[string]*atomic.Int64

	healthFilteredCount atomic.Int64
	quotaFilteredCount  atomic.Int64
	fallbackCount       atomic.Int64
	manualOverrideCount atomic.Int64
	retries             atomic.Int64
	failedExecutions    atomic.Int64
	errors              atomic.Int64

	// mu protects lastResetTime
	mu            sync.RWMutex
	lastResetTime time.Time
}

// NewAtomicRoutingStats creates a new atomic routing statistics tracker.
func NewAtomicRoutingStats() *AtomicRoutingStats {
	return &AtomicRoutingStats{
		lastResetTime: time.Now(),
	}
}

// IncrementTotal increments the total request counter.
func (s *AtomicRoutingStats) IncrementTotal() {
	s.totalRequests.Add(1)
}

// IncrementProvider increments the counter for a specific provider.
func (s *AtomicRoutingStats) IncrementProvider(providerName string) {
	val, _ := s.requestsPerProvider.LoadOrStore(providerName, &atomic.Int64{})
	val.(*atomic.Int64).Add(1)
}

// IncrementStrategy increments the counter for a specific strategy.
func (s *AtomicRoutingStats) IncrementStrategy(strategyName string) {
	val, _ := s.strategyUseCount.LoadOrStore(strategyName, &atomic.Int64{})
	val.(*atomic.Int64).Add(1)
}

// IncrementHealthFiltered increments the health filtered counter.
func (s *AtomicRoutingStats) IncrementHealthFiltered() {
	s.healthFilteredCount.Add(1)
}

// IncrementQuotaFiltered increments the quota filtered counter.
func (s *AtomicRoutingStats) IncrementQuotaFiltered() {
	s.quotaFilteredCount.Add(1)
}

// IncrementFallback increments the fallback selection counter.
func (s *AtomicRoutingStats) IncrementFallback() {
	s.fallbackCount.Add(1)
}

// IncrementManualOverride increments the preferred-provider counter.
func (s *AtomicRoutingStats) IncrementManualOverride() {
	s.manualOverrideCount.Add(1)
}

// AddRetries adds n retried attempts.
func (s *AtomicRoutingStats) AddRetries(n int) {
	s.retries.Add(int64(n))
}

// IncrementFailedExecutions increments the exhausted-retries counter.
func (s *AtomicRoutingStats) IncrementFailedExecutions() {
	s.failedExecutions.Add(1)
}

// IncrementErrors increments the error counter.
func (s *AtomicRoutingStats) IncrementErrors() {
	s.errors.Add(1)
}

// Snapshot returns a point-in-time snapshot of the statistics.
func (s *AtomicRoutingStats) Snapshot() *RoutingStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	providerRequests := make(map[string]int64)
	s.requestsPerProvider.Range(func(key, value any) bool {
		providerRequests[key.(string)] = value.(*atomic.Int64).Load()
		return true
	})

	strategyUse := make(map[string]int64)
	s.strategyUseCount.Range(func(key, value any) bool {
		strategyUse[key.(string)] = value.(*atomic.Int64).Load()
		return true
	})

	return &RoutingStats{
		TotalRequests:       s.totalRequests.Load(),
		RequestsPerProvider: providerRequests,
		StrategyUseCount:    strategyUse,
		HealthFilteredCount: s.healthFilteredCount.Load(),
		QuotaFilteredCount:  s.quotaFilteredCount.Load(),
		FallbackCount:       s.fallbackCount.Load(),
		ManualOverrideCount: s.manualOverrideCount.Load(),
		Retries:             s.retries.Load(),
		FailedExecutions:    s.failedExecutions.Load(),
		Errors:              s.errors.Load(),
		LastResetTime:       s.lastResetTime,
	}
}

// Reset resets all statistics to zero.
func (s *AtomicRoutingStats) Reset() {
	s.totalRequests.Store(0)
	s.healthFilteredCount.Store(0)
	s.quotaFilteredCount.Store(0)
	s.fallbackCount.Store(0)
	s.manualOverrideCount.Store(0)
	s.retries.Store(0)
	s.failedExecutions.Store(0)
	s.errors.Store(0)

	s.requestsPerProvider.Range(func(key, value any) bool {
		s.requestsPerProvider.Delete(key)
		return true
	})
	s.strategyUseCount.Range(func(key, value any) bool {
		s.strategyUseCount.Delete(key)
		return true
	})

	s.mu.Lock()
	s.lastResetTime = time.Now()
	s.mu.Unlock()
}
