// Package providers implements the compute provider adapter layer.
//
// # Overview
//
// Every supported provider (AWS Lambda, Google Cloud Functions, Azure
// Functions) is exposed through the Provider interface. The kinds differ
// only in their pricing constant, free-tier limits and invoke URL shape.
//
// Two adapter variants are provided:
//
//   - SimulatedProvider keeps in-memory month-to-date counters and can inject
//     latency and failures.
//   - HTTPProvider POSTs JSON payloads to the kind's HTTP invoke API.
//
// Both embed Base, which owns limits, pricing and usage counters.
//
// # Cost Estimation
//
// EstimateCost computes
//
//	executions * duration_ms * memory_mb / (1000*1024) * rate_per_GB_second
//
// with github.com/shopspring/decimal so that routing decisions compare exact
// values. Rates in USD per GB-second:
//
//	aws_lambda       0.0000166667
//	gcp_functions    0.0000025
//	azure_functions  0.000016
//
// # Error Handling
//
// Adapters return typed errors (ProviderError, TimeoutError, ParseError,
// ValidationError, ConfigError). The router converts them into health
// signals instead of propagating them to its callers.
package providers
