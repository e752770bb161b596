// Package logging provides structured logging with OpenTelemetry integration.
//
// The Logger wraps Zap with:
//   - a Trace level (-2, below Debug)
//   - stdout and OpenTelemetry outputs
//   - session, request and trace correlation fields taken from the context
//   - encoder-level redaction of sensitive field names and value patterns
//   - level-aware sampling (errors are never sampled)
//
// Create a logger from the loaded configuration:
//
//	cfg, err := logging.ConfigFrom(appCfg.Logging)
//	logger, err := logging.NewLogger(cfg, tel.LoggerProvider())
//	defer logger.Sync()
//
// Log with context:
//
//	ctx = logging.WithSessionID(ctx, sessionID)
//	logger.Info(ctx, "answer produced", zap.Duration("duration", d))
//
// Components that accept a plain *zap.Logger receive Underlying().
//
// Tests use TestLogger:
//
//	tl := logging.NewTestLogger()
//	tl.Info(ctx, "stage fallback", zap.String("stage", "planner"))
//	tl.AssertLogged(t, zapcore.InfoLevel, "stage fallback")
//
// Logger is safe for concurrent use.
package logging
