package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"utrix-hq/quotaflow/pkg/cli"
	"utrix-hq/quotaflow/pkg/config"
	"utrix-hq/quotaflow/pkg/quota"
	"utrix-hq/quotaflow/pkg/server"
	"utrix-hq/quotaflow/pkg/telemetry/readiness"
	"utrix-hq/quotaflow/pkg/telemetry/tracing"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
	noWatch       bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the quota manager and status API",
	Long: `Start the quota manager with the specified configuration.

The manager polls provider usage, recomputes projections and evaluates
alerts on the configured schedules, and serves the status API. Changes to
the load balancing strategy and weights in the config file are applied
without a restart.

Examples:
  # Start with default config
  quotaflow run

  # Start with custom config
  quotaflow run --config /etc/quotaflow/quotaflow.yaml

  # Override listen address
  quotaflow run --listen 0.0.0.0:8090

  # Validate config and build every component without serving
  quotaflow run --dry-run`,
	RunE: runService,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "build every component without serving")
	runCmd.Flags().BoolVar(&runFlags.noWatch, "no-watch", false, "disable config hot reload")
}

func runService(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}

	logger, err := newLogger(cfg, os.Stderr, false)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	tracer, err := tracing.New(cfg.Telemetry.Tracing, Version)
	if err != nil {
		return cli.NewConfigError("telemetry.tracing", err.Error())
	}
	defer func() {
		if err := tracer.Shutdown(context.Background()); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	mgr, err := quota.NewManager(cfg, quota.Options{
		Logger: logger,
		Tracer: tracer.Tracer(),
	})
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer func() {
		if err := mgr.Close(); err != nil {
			logger.Error("failed to close quota manager", "error", err)
		}
	}()

	if runFlags.dryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration valid, %d providers ready\n", len(mgr.Kinds()))
		return nil
	}

	ctx, cancel := cli.SetupSignalHandler(cmd.Context())
	defer cancel()

	if err := mgr.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}

	if !runFlags.noWatch {
		watcher, err := config.NewWatcher(cfgFile, 0, func(next *config.Config) {
			if err := mgr.ApplyConfig(next); err != nil {
				logger.Error("failed to apply reloaded config", "error", err)
			}
		}, logger)
		if err != nil {
			return cli.NewCommandError("run", err)
		}
		defer watcher.Stop()
		go func() {
			if err := watcher.Watch(ctx); err != nil {
				logger.Error("config watcher stopped", "error", err)
			}
		}()
	}

	checker := readiness.New(0)
	mgr.RegisterReadinessChecks(checker)

	var metricsHandler http.Handler
	if cfg.Telemetry.Metrics.IsEnabled() {
		metricsHandler = mgr.Metrics().Handler()
	}

	srv := server.NewServer(cfg.Server, mgr, server.Options{
		Readiness:   checker,
		Version:     readiness.NewVersionInfo(Version, GitCommit, BuildDate),
		Metrics:     metricsHandler,
		MetricsPath: cfg.Telemetry.Metrics.Path,
		Tracer:      tracer.Tracer(),
		Logger:      logger,
	})

	logger.Info("quotaflow started",
		"version", Version,
		"config", cfgFile,
		"providers", len(mgr.Kinds()),
		"strategy", cfg.LoadBalancing.Strategy,
		"tracing", tracer.Enabled(),
	)
	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	logger.Info("quotaflow stopped")
	return nil
}
