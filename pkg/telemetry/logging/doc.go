// Package logging builds the process-wide structured logger.
//
// New returns a *slog.Logger writing JSON or text at the configured level.
// The handler it installs does two things on top of the standard slog
// handlers:
//
//   - Request-scoped fields stored with WithRequestID and WithProvider are
//     added to every record logged with a context carrying them.
//   - Attributes whose key names a credential (token, secret, password,
//     authorization, credentials) are replaced with "***", and bearer
//     tokens are masked inside string values.
//
// Usage:
//
//	logger, err := logging.New(cfg.Telemetry.Logging, os.Stderr)
//	if err != nil {
//	    return err
//	}
//	slog.SetDefault(logger)
//
//	ctx = logging.WithRequestID(ctx, "3f1c...")
//	logger.InfoContext(ctx, "execution started", "function", "resize")
package logging
