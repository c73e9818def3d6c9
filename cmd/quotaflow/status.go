package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"utrix-hq/quotaflow/pkg/cli"
	"utrix-hq/quotaflow/pkg/monitoring"
	"utrix-hq/quotaflow/pkg/providers"
	"utrix-hq/quotaflow/pkg/routing"
)

var statusFlags struct {
	alerts bool
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show provider health and quota usage",
	Long: `Poll every configured provider and print its health, month-to-date
usage against its free-tier limit and projected monthly usage.

Examples:
  # Show the status table
  quotaflow status

  # Include active alerts, as JSON
  quotaflow status --alerts --output json`,
	RunE: showStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVar(&statusFlags.alerts, "alerts", false, "evaluate and list active alerts")
}

// statusReport is the JSON form of the status command.
type statusReport struct {
	LoadBalancer *routing.Status                         `json:"load_balancer"`
	Usage        map[providers.Kind]providers.QuotaUsage `json:"usage"`
	Alerts       []monitoring.Alert                      `json:"alerts,omitempty"`
}

func showStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := cli.SetupSignalHandler(cmd.Context())
	defer cancel()

	mgr, err := openManager(ctx, cfg)
	if err != nil {
		return cli.NewCommandError("status", err)
	}
	defer mgr.Close()

	report := statusReport{
		LoadBalancer: mgr.GetLoadBalancerStatus(ctx),
		Usage:        mgr.CachedUsage(ctx),
	}
	if statusFlags.alerts {
		if _, err := mgr.CheckAlerts(ctx); err != nil {
			return cli.NewCommandError("status", err)
		}
		report.Alerts = mgr.ActiveAlerts()
	}

	table := &cli.Table{
		Headers: []string{"PROVIDER", "HEALTHY", "RESPONSE_MS", "EXECUTIONS", "USAGE", "PROJECTED", "WITHIN_QUOTA"},
		Data:    report,
	}
	for _, kind := range mgr.Kinds() {
		ps, ok := report.LoadBalancer.Providers[kind]
		if !ok {
			continue
		}
		table.AddRow(kind, ps.Health.IsHealthy,
			fmt.Sprintf("%.0f", ps.Health.ResponseTimeMs),
			ps.Quota.Executions,
			percent(ps.Quota.UsagePercent),
			percent(ps.Quota.ProjectedPercent),
			ps.WithinQuota,
		)
	}

	w := cmd.OutOrStdout()
	if outputFormat == "text" {
		fmt.Fprintf(w, "Strategy: %s, overall health: %s (%d/%d healthy)\n\n",
			report.LoadBalancer.Strategy, report.LoadBalancer.OverallHealth,
			report.LoadBalancer.HealthyProviders, report.LoadBalancer.TotalProviders)
	}
	if err := render(w, table); err != nil {
		return err
	}

	if outputFormat == "text" && statusFlags.alerts {
		alerts := &cli.Table{Headers: []string{"LEVEL", "PROVIDER", "TYPE", "VALUE", "MESSAGE"}}
		for _, a := range report.Alerts {
			alerts.AddRow(a.Level, a.Provider, a.Type, fmt.Sprintf("%.1f", a.Value), a.Message)
		}
		fmt.Fprintf(w, "\n%d active alerts\n", len(report.Alerts))
		if len(report.Alerts) > 0 {
			return render(w, alerts)
		}
	}
	return nil
}
