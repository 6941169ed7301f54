// Package logger builds the slog loggers used across canopy.
//
// Records are JSON (or text) on stdout. The handler runs context
// extractors on every call, so request-scoped values such as the request id
// and the dispatched mode appear without being passed around:
//
//	log := logger.New(cfg.Log, logger.RequestIDExtractor(), logger.ModeExtractor())
//	ctx = logger.WithMode(ctx, "user.response:profile")
//	log.InfoContext(ctx, "dispatched")
//	// {"level":"INFO","msg":"dispatched","mode":"user.response:profile"}
//
// When Config.Sentry.DSN is set, errors become Sentry issues and warnings are
// kept as Sentry logs, with the same request_id and mode attributes. A failed Sentry init falls back to stdout only.
//
// NewNope returns a logger that discards output. Components use it when no
// logger is configured.
package logger
