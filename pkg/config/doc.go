// Package config provides configuration management for quotaflow.
//
// This package handles loading, validating, and watching configuration from
// YAML files with environment variable overrides.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("quotaflow.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("quotaflow.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention QUOTAFLOW_SECTION_FIELD.
// For example:
//
//   - QUOTAFLOW_LOAD_BALANCING_STRATEGY overrides load_balancing.strategy
//   - QUOTAFLOW_PROVIDERS_AWS_LAMBDA_BASE_URL overrides providers.aws_lambda.base_url
//   - QUOTAFLOW_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// # Hot Reload
//
// Watcher observes the configuration file with fsnotify and hands each valid
// reloaded Config to a callback. Only settings that are safe to change at
// runtime (strategy, weights, thresholds) are applied by the caller.
//
// # Example Configuration
//
//	providers:
//	  aws_lambda:
//	    mode: simulated
//	  gcp_functions:
//	    mode: http
//	    base_url: "https://europe-west1-demo.cloudfunctions.net"
//	    credentials_env: GCP_FUNCTIONS_TOKEN
//
//	load_balancing:
//	  strategy: balanced
//	  retry_count: 3
//
//	projection:
//	  method: weighted_average
package config
