package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"utrix-hq/quotaflow/pkg/cli"
	"utrix-hq/quotaflow/pkg/providerfactory"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load the configuration file with environment overrides, apply defaults
and validate it. Every enabled provider is also constructed, so adapter
settings such as base URLs and credentials are checked.

Examples:
  # Validate the default config file
  quotaflow validate

  # Validate a specific file and print the providers as JSON
  quotaflow validate --config /etc/quotaflow/quotaflow.yaml --output json`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg, cmd.ErrOrStderr(), true)
	if err != nil {
		return err
	}
	ps, err := providerfactory.LoadFromConfig(cfg, logger)
	if err != nil {
		return cli.NewConfigError("providers", err.Error())
	}
	defer func() {
		for _, p := range ps {
			_ = p.Close()
		}
	}()

	table := &cli.Table{Headers: []string{"PROVIDER", "ENABLED", "MODE", "ORDER", "MONTHLY_EXECUTIONS"}}
	loaded := make(map[string]int64, len(ps))
	for _, p := range ps {
		loaded[string(p.GetKind())] = p.GetLimits().MonthlyExecutions
	}
	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return cfg.Providers[names[i]].Order < cfg.Providers[names[j]].Order
	})
	for _, name := range names {
		pc := cfg.Providers[name]
		limit := "-"
		if n, ok := loaded[name]; ok {
			limit = fmt.Sprint(n)
		}
		table.AddRow(name, pc.IsEnabled(), pc.Mode, pc.Order, limit)
	}

	if outputFormat == "text" {
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration valid: %s\n", cfgFile)
		fmt.Fprintf(cmd.OutOrStdout(), "Strategy: %s, projection method: %s\n\n",
			cfg.LoadBalancing.Strategy, cfg.Projection.Method)
	}
	return render(cmd.OutOrStdout(), table)
}
