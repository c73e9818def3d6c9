// Package health tracks per-provider health with a consecutive-failure
// circuit breaker.
//
// After every execution attempt the router records the outcome. The
// monitor keeps an exponential moving average of response time, a rolling
// error rate bucketed per minute, and a consecutive-failure counter. Once
// the counter reaches the threshold the provider is marked unhealthy and
// excluded from routing until a success is recorded or the cool-down
// measured from the last check has elapsed.
package health
