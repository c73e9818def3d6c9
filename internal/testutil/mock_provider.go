// Package testutil provides test doubles shared across packages.
package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"utrix-hq/quotaflow/pkg/providers"
)

// ErrMockFailure is the default error returned by scripted failures.
var ErrMockFailure = errors.New("mock invocation failure")

// MockProvider is a scriptable providers.Provider for tests.
type MockProvider struct {
	kind   providers.Kind
	name   string
	limits providers.QuotaLimits

	mu           sync.Mutex
	usage        providers.QuotaUsage
	usageErr     error
	invokeErr    error
	failuresLeft int
	failErr      error
	delay        time.Duration
	invocations  int
	functions    []string
	closed       bool
}

// NewMockProvider creates a mock with the kind's default limits and pricing.
func NewMockProvider(kind providers.Kind) *MockProvider {
	return &MockProvider{
		kind:   kind,
		name:   "mock-" + string(kind),
		limits: providers.DefaultLimits(kind),
		usage:  providers.QuotaUsage{Provider: kind},
	}
}

// SetLimits replaces the provider limits.
func (m *MockProvider) SetLimits(l providers.QuotaLimits) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limits = l
}

// SetUsage sets the value returned by GetUsageStats.
func (m *MockProvider) SetUsage(u providers.QuotaUsage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.Provider = m.kind
	m.usage = u
}

// SetUsageError makes GetUsageStats fail with err until cleared with nil.
func (m *MockProvider) SetUsageError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usageErr = err
}

// SetInvokeError makes every invocation fail with err until cleared with nil.
func (m *MockProvider) SetInvokeError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invokeErr = err
}

// FailNext makes the next n invocations fail with err, or ErrMockFailure
// when err is nil.
func (m *MockProvider) FailNext(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		err = ErrMockFailure
	}
	m.failuresLeft = n
	m.failErr = err
}

// SetDelay makes each invocation block for d or until its context ends.
func (m *MockProvider) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Invocations returns how many times InvokeFunction was called.
func (m *MockProvider) Invocations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.invocations
}

// Functions returns the invoked function names in call order.
func (m *MockProvider) Functions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.functions...)
}

// Closed reports whether Close was called.
func (m *MockProvider) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// GetKind returns the provider kind.
func (m *MockProvider) GetKind() providers.Kind { return m.kind }

// GetName returns the mock name.
func (m *MockProvider) GetName() string { return m.name }

// GetLimits returns the configured limits.
func (m *MockProvider) GetLimits() providers.QuotaLimits {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.limits
}

// GetUsageStats returns the scripted usage.
func (m *MockProvider) GetUsageStats(ctx context.Context) (*providers.QuotaUsage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.usageErr != nil {
		return nil, m.usageErr
	}
	u := m.usage
	return &u, nil
}

// InvokeFunction records the call and returns the scripted outcome.
func (m *MockProvider) InvokeFunction(ctx context.Context, name string, payload map[string]any) (map[string]any, error) {
	m.mu.Lock()
	m.invocations++
	m.functions = append(m.functions, name)
	delay := m.delay
	var err error
	switch {
	case m.invokeErr != nil:
		err = m.invokeErr
	case m.failuresLeft > 0:
		m.failuresLeft--
		err = m.failErr
	}
	m.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, &providers.TimeoutError{Provider: m.kind, Cause: ctx.Err()}
		case <-timer.C:
		}
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{"function": name, "provider": string(m.kind)}, nil
}

// GetCostEstimate uses the kind's real rate.
func (m *MockProvider) GetCostEstimate(executions, durationMs, memoryMB int64) float64 {
	f, _ := providers.EstimateCost(providers.Rate(m.kind), executions, durationMs, memoryMB).Float64()
	return f
}

// DeployFunction accepts every function.
func (m *MockProvider) DeployFunction(ctx context.Context, fn providers.FunctionConfig) (bool, error) {
	return true, nil
}

// Close marks the mock closed.
func (m *MockProvider) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

var _ providers.Provider = (*MockProvider)(nil)
