package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"utrix-hq/quotaflow/pkg/cli"
	"utrix-hq/quotaflow/pkg/projection"
	"utrix-hq/quotaflow/pkg/providers"
)

var projectFlags struct {
	provider string
	method   string
	compare  bool
	trend    bool
}

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Project monthly executions per provider",
	Long: `Project monthly executions and cost from the recorded daily usage series.

Projections need persisted history, so usage storage should be sqlite for
this command to see executions routed by a running service.

Examples:
  # Project every provider with the configured method
  quotaflow project

  # Compare every method for one provider
  quotaflow project --provider aws_lambda --compare

  # Show the trend and weekday pattern behind a projection
  quotaflow project --provider gcp_functions --trend --output json`,
	RunE: runProject,
}

func init() {
	rootCmd.AddCommand(projectCmd)

	projectCmd.Flags().StringVarP(&projectFlags.provider, "provider", "p", "", "provider kind (default all)")
	projectCmd.Flags().StringVarP(&projectFlags.method, "method", "m", "", "projection method: "+methodList())
	projectCmd.Flags().BoolVar(&projectFlags.compare, "compare", false, "run every projection method (requires --provider)")
	projectCmd.Flags().BoolVar(&projectFlags.trend, "trend", false, "show trend and seasonal analysis (requires --provider)")
}

func methodList() string {
	methods := projection.Methods()
	names := make([]string, len(methods))
	for i, m := range methods {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}

// analysisReport is the JSON form of project --trend.
type analysisReport struct {
	Projection *projection.ExecutionProjection `json:"projection"`
	Trend      *projection.TrendAnalysis       `json:"trend"`
	Seasonal   *projection.SeasonalPattern     `json:"seasonal"`
}

func runProject(cmd *cobra.Command, args []string) error {
	if projectFlags.method != "" && !projection.IsValidMethod(projectFlags.method) {
		return fmt.Errorf("unknown projection method %q (want one of %s)", projectFlags.method, methodList())
	}
	var kind providers.Kind
	if projectFlags.provider != "" {
		k, err := providers.ParseKind(projectFlags.provider)
		if err != nil {
			return err
		}
		kind = k
	}
	if (projectFlags.compare || projectFlags.trend) && kind == "" {
		return fmt.Errorf("--compare and --trend require --provider")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := cli.SetupSignalHandler(cmd.Context())
	defer cancel()

	mgr, err := openManager(ctx, cfg)
	if err != nil {
		return cli.NewCommandError("project", err)
	}
	defer mgr.Close()

	var results []*projection.ExecutionProjection
	var data any
	switch {
	case projectFlags.compare:
		byMethod, err := mgr.CompareProjectionMethods(ctx, kind)
		if err != nil {
			return cli.NewCommandError("project", err)
		}
		for _, p := range byMethod {
			results = append(results, p)
		}
		sort.Slice(results, func(i, j int) bool { return results[i].Method < results[j].Method })
		data = byMethod
	case kind != "":
		p, err := mgr.CalculateProjection(ctx, kind, projectFlags.method)
		if err != nil {
			return cli.NewCommandError("project", err)
		}
		results = append(results, p)
		data = p
	default:
		all := mgr.CalculateAllProjections(ctx, projectFlags.method)
		for _, k := range mgr.Kinds() {
			if p, ok := all[k]; ok {
				results = append(results, p)
			}
		}
		data = all
	}

	var report *analysisReport
	if projectFlags.trend {
		trend, err := mgr.AnalyzeTrend(ctx, kind)
		if err != nil {
			return cli.NewCommandError("project", err)
		}
		seasonal, err := mgr.AnalyzeSeasonal(ctx, kind)
		if err != nil {
			return cli.NewCommandError("project", err)
		}
		report = &analysisReport{Trend: trend, Seasonal: seasonal}
		if len(results) > 0 {
			report.Projection = results[0]
		}
		data = report
	}

	table := &cli.Table{
		Headers: []string{"PROVIDER", "METHOD", "EXECUTIONS", "COST", "CONFIDENCE", "DAYS", "FALLBACK", "RISKS"},
		Data:    data,
	}
	for _, p := range results {
		table.AddRow(p.Provider, p.Method, p.ProjectedMonthlyExecutions,
			fmt.Sprintf("$%.2f", p.ProjectedMonthlyCost),
			fmt.Sprintf("%.2f", p.ConfidenceLevel),
			p.DaysOfData, p.IsFallback, strings.Join(p.RiskFactors, "; "))
	}

	w := cmd.OutOrStdout()
	if err := render(w, table); err != nil {
		return err
	}
	if report != nil && outputFormat == "text" {
		t := report.Trend
		fmt.Fprintf(w, "\nTrend: %s (strength %.2f, volatility %.2f, R² %.2f over %d days)\n",
			t.Direction, t.Strength, t.Volatility, t.Confidence, t.DataPoints)
		days := make([]string, len(report.Seasonal.DayOfWeek))
		for d, m := range report.Seasonal.DayOfWeek {
			days[d] = fmt.Sprintf("%s %.2f", time.Weekday(d).String()[:3], m)
		}
		fmt.Fprintf(w, "Weekday pattern (strength %.3f): %s\n", report.Seasonal.Strength, strings.Join(days, ", "))
	}
	return nil
}
