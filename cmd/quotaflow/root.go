package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"utrix-hq/quotaflow/pkg/cli"
)

var (
	// Global flags
	cfgFile      string
	outputFormat string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "quotaflow",
	Short: "Quotaflow - serverless quota manager and load balancer",
	Long: `Quotaflow keeps serverless workloads inside provider free tiers.

It tracks month-to-date usage per provider, projects monthly consumption
from historical trends and weekday seasonality, and routes each function
execution to the provider that best fits the configured cost, performance
and quota policy, with circuit breaking and retries.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return cli.ExitCode(err)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "quotaflow.yaml", "config file path")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "output format: text, json, csv")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
