package internal

import (
	"log/slog"

	"github.com/canopyhq/canopy/pkg/health"
	"github.com/canopyhq/canopy/pkg/job"
	"github.com/canopyhq/canopy/pkg/metrics"
	"github.com/canopyhq/canopy/pkg/session"
	"github.com/canopyhq/canopy/pkg/storage"
)

// Option configures an App.
type Option func(*App)

// WithMiddleware adds global middleware, run in the order given.
func WithMiddleware(mw ...Middleware) Option {
	return func(a *App) {
		a.middlewares = append(a.middlewares, mw...)
	}
}

func WithHandlers(h ...Handler) Option {
	return func(a *App) {
		a.handlers = append(a.handlers, h...)
	}
}

func WithErrorHandler(h ErrorHandler) Option {
	return func(a *App) {
		a.errorHandler = h
	}
}

// WithHealthChecks mounts the liveness and readiness endpoints.
func WithHealthChecks(opts ...HealthOption) Option {
	return func(a *App) {
		cfg := &healthConfig{
			livenessPath:  defaultLivenessPath,
			readinessPath: defaultReadinessPath,
			checks:        make(health.Checks),
		}
		for _, opt := range opts {
			opt(cfg)
		}
		a.healthConfig = cfg
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.logger = l
		}
	}
}

func WithSession(store session.Store, opts ...SessionOption) Option {
	return func(a *App) {
		a.sessionManager = NewSessionManager(store, opts...)
	}
}

// WithJobs makes m available to handlers and runs its workers with the server.
func WithJobs(m *job.Manager) Option {
	return func(a *App) {
		if m != nil {
			a.jobs = m
			a.worker = m
		}
	}
}

// WithJobEnqueuer only enqueues; workers run elsewhere.
func WithJobEnqueuer(e job.Enqueuer) Option {
	return func(a *App) {
		a.jobs = e
	}
}

func WithStorage(s storage.Storage) Option {
	return func(a *App) {
		a.storage = s
	}
}

// WithMetrics mounts rec at /metrics, or at path when given.
func WithMetrics(rec *metrics.Recorder, path ...string) Option {
	return func(a *App) {
		a.metrics = rec
		if len(path) > 0 && path[0] != "" {
			a.metricsPath = path[0]
		}
	}
}
