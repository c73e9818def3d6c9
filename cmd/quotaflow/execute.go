package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"utrix-hq/quotaflow/pkg/cli"
	"utrix-hq/quotaflow/pkg/providers"
	"utrix-hq/quotaflow/pkg/routing"
)

var executeFlags struct {
	payload    string
	provider   string
	count      int
	retries    int
	timeout    time.Duration
	durationMs int64
	memoryMB   int64
	dryRun     bool
}

var executeCmd = &cobra.Command{
	Use:   "execute FUNCTION",
	Short: "Route and run a function execution",
	Long: `Route one or more executions of FUNCTION through the load balancer.

The provider is picked by the configured strategy after filtering unhealthy
providers and providers without quota headroom. Failed attempts are retried
against the same provider with exponential backoff.

Examples:
  # Run once with a JSON payload
  quotaflow execute resize-image --payload '{"width":640}'

  # Show the routing decision without executing
  quotaflow execute resize-image --dry-run

  # Run 100 executions and report progress
  quotaflow execute resize-image --count 100`,
	Args: cobra.ExactArgs(1),
	RunE: runExecute,
}

func init() {
	rootCmd.AddCommand(executeCmd)

	executeCmd.Flags().StringVar(&executeFlags.payload, "payload", "", "JSON object passed to the function")
	executeCmd.Flags().StringVarP(&executeFlags.provider, "provider", "p", "", "preferred provider kind")
	executeCmd.Flags().IntVarP(&executeFlags.count, "count", "n", 1, "number of executions")
	executeCmd.Flags().IntVar(&executeFlags.retries, "retries", 0, "attempt budget per execution (default from config)")
	executeCmd.Flags().DurationVar(&executeFlags.timeout, "timeout", 0, "per-attempt timeout")
	executeCmd.Flags().Int64Var(&executeFlags.durationMs, "duration-ms", 0, "expected duration for cost estimates")
	executeCmd.Flags().Int64Var(&executeFlags.memoryMB, "memory-mb", 0, "memory size for cost estimates")
	executeCmd.Flags().BoolVar(&executeFlags.dryRun, "dry-run", false, "print the routing decision without executing")
}

func buildRequest(function string) (*routing.FunctionRequest, error) {
	req := &routing.FunctionRequest{
		FunctionName:       function,
		Timeout:            executeFlags.timeout,
		RetryCount:         executeFlags.retries,
		ExpectedDurationMs: executeFlags.durationMs,
		MemoryMB:           executeFlags.memoryMB,
	}
	if executeFlags.payload != "" {
		if err := json.Unmarshal([]byte(executeFlags.payload), &req.Payload); err != nil {
			return nil, fmt.Errorf("invalid --payload: %w", err)
		}
	}
	if executeFlags.provider != "" {
		kind, err := providers.ParseKind(executeFlags.provider)
		if err != nil {
			return nil, err
		}
		req.PreferredProvider = kind
	}
	return req, nil
}

func runExecute(cmd *cobra.Command, args []string) error {
	if executeFlags.count < 1 {
		return fmt.Errorf("--count must be at least 1")
	}
	req, err := buildRequest(args[0])
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := cli.SetupSignalHandler(cmd.Context())
	defer cancel()

	mgr, err := openManager(ctx, cfg)
	if err != nil {
		return cli.NewCommandError("execute", err)
	}
	defer mgr.Close()

	w := cmd.OutOrStdout()
	if executeFlags.dryRun {
		decision, err := mgr.SelectProvider(ctx, req)
		if err != nil {
			return cli.NewCommandError("execute", err)
		}
		table := &cli.Table{
			Headers: []string{"PROVIDER", "STRATEGY", "CONFIDENCE", "ESTIMATED_COST", "FALLBACK", "REASON"},
			Data:    decision,
		}
		table.AddRow(decision.SelectedProvider, decision.Strategy,
			fmt.Sprintf("%.2f", decision.Confidence),
			fmt.Sprintf("$%.8f", decision.EstimatedCost),
			decision.IsFallback, decision.Reason)
		return render(w, table)
	}

	results, err := executeBatch(ctx, mgr, req, executeFlags.count)
	if err != nil {
		return cli.NewCommandError("execute", err)
	}

	table := &cli.Table{
		Headers: []string{"REQUEST_ID", "PROVIDER", "SUCCESS", "LATENCY_MS", "RETRIES", "COST", "ERROR"},
		Data:    results,
	}
	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
		table.AddRow(r.RequestID, r.Provider, r.Success,
			fmt.Sprintf("%.1f", r.LatencyMs), r.Retries,
			fmt.Sprintf("$%.8f", r.CostEstimate), r.Error)
	}
	if err := render(w, table); err != nil {
		return err
	}
	if failed > 0 {
		return cli.NewCommandError("execute", fmt.Errorf("%d of %d executions failed", failed, len(results)))
	}
	return nil
}

// executor is the part of the quota manager execute needs.
type executor interface {
	ExecuteFunction(ctx context.Context, req *routing.FunctionRequest) (*routing.ExecutionResult, error)
}

// executeBatch runs count executions of req sequentially. A progress bar is
// shown on stderr for batches.
func executeBatch(ctx context.Context, ex executor, req *routing.FunctionRequest, count int) ([]*routing.ExecutionResult, error) {
	var progress cli.ProgressReporter
	if count > 1 {
		progress = cli.NewProgressReporter(nil)
		progress.Start(int64(count))
	}

	results := make([]*routing.ExecutionResult, 0, count)
	var failed int64
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			if progress != nil {
				progress.Error(err)
			}
			return results, err
		}

		r := *req
		r.RequestID = ""
		result, err := ex.ExecuteFunction(ctx, &r)
		if err != nil {
			if progress != nil {
				progress.Error(err)
			}
			return results, err
		}
		if !result.Success {
			failed++
		}
		results = append(results, result)
		if progress != nil {
			progress.Update(int64(i+1), failed)
		}
	}
	if progress != nil {
		progress.Finish()
	}
	return results, nil
}
