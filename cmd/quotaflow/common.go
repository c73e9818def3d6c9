package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"utrix-hq/quotaflow/pkg/cli"
	"utrix-hq/quotaflow/pkg/config"
	"utrix-hq/quotaflow/pkg/quota"
	"utrix-hq/quotaflow/pkg/telemetry/logging"
)

// loadConfig reads the --config file with environment overrides applied.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		var verr config.ValidationError
		if errors.As(err, &verr) {
			return nil, cli.NewConfigError(cfgFile, verr.Error())
		}
		return nil, cli.NewConfigError("", err.Error())
	}
	return cfg, nil
}

// newLogger builds the process logger. One-shot commands log to stderr at
// warn level unless --verbose is set.
func newLogger(cfg *config.Config, w io.Writer, oneShot bool) (*slog.Logger, error) {
	logCfg := cfg.Telemetry.Logging
	if oneShot && !verbose {
		logCfg.Level = "warn"
	}
	if verbose {
		logCfg.Level = "debug"
	}
	logger, err := logging.New(logCfg, w)
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	return logger, nil
}

// openManager builds a manager for a one-shot command, restores persisted
// history and takes a usage poll.
func openManager(ctx context.Context, cfg *config.Config) (*quota.Manager, error) {
	logger, err := newLogger(cfg, os.Stderr, true)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	mgr, err := quota.NewManager(cfg, quota.Options{Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("failed to create quota manager: %w", err)
	}
	if err := mgr.Restore(ctx); err != nil {
		_ = mgr.Close()
		return nil, err
	}
	if err := mgr.Refresh(ctx); err != nil {
		_ = mgr.Close()
		return nil, err
	}
	return mgr, nil
}

// render writes data in the --output format.
func render(w io.Writer, data any) error {
	format, err := cli.ParseOutputFormat(outputFormat)
	if err != nil {
		return err
	}
	return cli.NewFormatter(format).FormatTo(w, data)
}

func percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}
