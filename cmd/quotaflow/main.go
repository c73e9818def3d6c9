// Quotaflow tracks serverless usage against free-tier quotas and routes
// function executions across providers.
//
// It provides:
//   - Usage tracking for AWS Lambda, Google Cloud Functions and Azure Functions
//   - Monthly usage projections from trend and weekday seasonality
//   - Cost, performance, balanced, round-robin and least-connections routing
//   - Circuit breaking and retries per provider
//   - Threshold alerts with history
//
// Usage:
//
//	# Start the scheduler and status API
//	quotaflow run --config quotaflow.yaml
//
//	# Show provider health and quota usage
//	quotaflow status
//
//	# Project monthly executions with every method
//	quotaflow project --provider aws_lambda --compare
//
//	# Route one execution
//	quotaflow execute resize-image --payload '{"width":640}'
//
//	# Check a configuration file
//	quotaflow validate --config quotaflow.yaml
package main

import "os"

func main() {
	os.Exit(Execute())
}
