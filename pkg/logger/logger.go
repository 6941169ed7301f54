package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/getsentry/sentry-go"
	sentryslog "github.com/getsentry/sentry-go/slog"
)

// Config selects the output level and format. Sentry fan-out is enabled
// when Sentry.DSN is set.
type Config struct {
	Level  string       `yaml:"level" env:"LOG_LEVEL" envDefault:"info"`
	Format string       `yaml:"format" env:"LOG_FORMAT" envDefault:"json"`
	Sentry SentryConfig `yaml:"sentry"`
}

// SentryConfig holds Sentry integration configuration.
type SentryConfig struct {
	DSN         string `yaml:"dsn" env:"SENTRY_DSN"`
	Environment string `yaml:"environment" env:"SENTRY_ENVIRONMENT" envDefault:"production"`

	// Errors only when true, warnings and errors otherwise.
	ErrorsOnly bool `yaml:"errors_only" env:"SENTRY_ERRORS_ONLY"`
}

// New builds a logger writing to stdout.
func New(cfg Config, extractors ...ContextExtractor) *slog.Logger {
	return NewWriter(os.Stdout, cfg, extractors...)
}

// NewWriter builds a logger writing to w. Context extractors apply to every
// destination, including Sentry.
func NewWriter(w io.Writer, cfg Config, extractors ...ContextExtractor) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var out slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		out = slog.NewTextHandler(w, opts)
	} else {
		out = slog.NewJSONHandler(w, opts)
	}

	if cfg.Sentry.DSN == "" {
		return slog.New(newHandler(out, nil, 0, extractors...))
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.Sentry.DSN,
		Environment: cfg.Sentry.Environment,
		EnableLogs:  true,
	}); err != nil {
		slog.New(out).Error("failed to initialize sentry", slog.String("error", err.Error()))
		return slog.New(newHandler(out, nil, 0, extractors...))
	}

	alertLevel := slog.LevelWarn
	logLevel := []slog.Level{slog.LevelWarn, slog.LevelError}
	if cfg.Sentry.ErrorsOnly {
		alertLevel = slog.LevelError
		logLevel = []slog.Level{slog.LevelError}
	}
	sh := sentryslog.Option{
		EventLevel: []slog.Level{slog.LevelError},
		LogLevel:   logLevel,
	}.NewSentryHandler(context.Background())

	return slog.New(newHandler(out, sh, alertLevel, extractors...))
}

// NewNope creates a logger that discards everything.
func NewNope() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel maps debug, info, warn and error to slog levels. Anything
// else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
