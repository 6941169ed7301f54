package internal

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/canopyhq/canopy/pkg/health"
	"github.com/canopyhq/canopy/pkg/job"
	"github.com/canopyhq/canopy/pkg/logger"
	"github.com/canopyhq/canopy/pkg/metrics"
	"github.com/canopyhq/canopy/pkg/storage"
)

// Server timeouts. Uploads go through the file manager, hence the long write timeout.
const (
	defaultReadTimeout       = 30 * time.Second
	defaultWriteTimeout      = 60 * time.Second
	defaultIdleTimeout       = 120 * time.Second
	defaultReadHeaderTimeout = 5 * time.Second
	defaultMaxHeaderBytes    = 1 << 20
	defaultShutdownTimeout   = 30 * time.Second
	defaultMetricsPath       = "/metrics"
)

// worker is the part of the job manager the server lifecycle drives.
type worker interface {
	StartFunc() func(context.Context) error
	Shutdown() func(context.Context) error
}

// App wires routing, sessions, jobs and storage together.
// It is immutable after New.
type App struct {
	router         chi.Router
	errorHandler   ErrorHandler
	healthConfig   *healthConfig
	logger         *slog.Logger
	sessionManager *SessionManager
	jobs           job.Enqueuer
	worker         worker
	storage        storage.Storage
	metrics        *metrics.Recorder
	metricsPath    string
	middlewares    []Middleware
	handlers       []Handler
}

// New creates an application from opts.
//
//	app := canopy.New(
//	    canopy.WithLogger(log),
//	    canopy.WithSession(store),
//	    canopy.WithHandlers(dispatcher),
//	)
func New(opts ...Option) *App {
	a := &App{
		router:      chi.NewRouter(),
		logger:      logger.NewNope(),
		metricsPath: defaultMetricsPath,
	}

	for _, opt := range opts {
		opt(a)
	}

	if a.sessionManager != nil {
		a.sessionManager.SetLogger(a.logger)
	}
	if a.errorHandler == nil {
		a.errorHandler = DefaultErrorHandler
	}

	a.setupRoutes()
	return a
}

// Router returns the underlying chi router. Tests serve it directly.
func (a *App) Router() chi.Router {
	return a.router
}

// ServeHTTP makes App an http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

// Run serves on addr until SIGINT, SIGTERM or the base context ends.
// Job workers start before the listener opens and stop after it closes.
func (a *App) Run(addr string, opts ...RunOption) error {
	cfg := buildRunConfig(opts...)

	startupHooks := cfg.startupHooks
	shutdownHooks := cfg.shutdownHooks
	if a.worker != nil {
		startupHooks = append([]func(context.Context) error{a.worker.StartFunc()}, startupHooks...)
		shutdownHooks = append([]func(context.Context) error{a.worker.Shutdown()}, shutdownHooks...)
	}

	log := cfg.logger
	if log == nil {
		log = a.logger
	}

	return runServer(runtimeConfig{
		handler:         a.router,
		address:         addr,
		logger:          log,
		shutdownTimeout: cfg.shutdownTimeout,
		startupHooks:    startupHooks,
		shutdownHooks:   shutdownHooks,
		baseCtx:         cfg.baseCtx,
	})
}

func (a *App) setupRoutes() {
	for _, mw := range a.middlewares {
		a.router.Use(a.adaptMiddleware(mw))
	}

	if a.healthConfig != nil {
		a.router.Get(a.healthConfig.livenessPath, health.LivenessHandler())
		a.router.Get(a.healthConfig.readinessPath, health.ReadinessHandler(
			a.healthConfig.checks,
			health.WithLogger(a.logger),
		))
	}

	if a.metrics != nil {
		a.router.Handle(a.metricsPath, a.metrics.Handler())
	}

	r := &routerAdapter{router: a.router, app: a}
	for _, h := range a.handlers {
		h.Routes(r)
	}
}

func (a *App) wrapHandler(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := newContext(w, r, a)
		if err := h(c); err != nil {
			a.handleError(c, err)
		}
	}
}

func (a *App) handleError(c Context, err error) {
	if c.Written() {
		c.LogWarn("error after response was written", slog.Any("error", err))
		return
	}
	if herr := a.errorHandler(c, err); herr != nil {
		c.LogError("error handler failed", slog.Any("error", herr))
		http.Error(c.Response(), http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error     string `json:"error"`
	Detail    string `json:"detail,omitempty"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// DefaultErrorHandler answers with the HTTPError in err's chain, or a bare
// 500 for anything else. Server faults are logged with their cause.
func DefaultErrorHandler(c Context, err error) error {
	herr := AsHTTPError(err)
	if herr == nil {
		herr = ErrInternal("system error", WithError(err))
	}
	if herr.Code >= http.StatusInternalServerError {
		c.LogError("request failed", slog.Int("status", herr.Code), slog.Any("error", err))
	}
	if herr.RequestID == "" {
		herr.RequestID, _ = c.Get(logger.RequestIDKey{}).(string)
	}
	return c.JSON(herr.Code, errorBody{
		Error:     herr.Message,
		Detail:    herr.Detail,
		Code:      herr.ErrorCode,
		RequestID: herr.RequestID,
	})
}

type healthConfig struct {
	checks        health.Checks
	livenessPath  string
	readinessPath string
}

const (
	defaultLivenessPath  = "/health/live"
	defaultReadinessPath = "/health/ready"
)

type HealthOption func(*healthConfig)

func WithLivenessPath(path string) HealthOption {
	return func(c *healthConfig) {
		if path != "" {
			c.livenessPath = path
		}
	}
}

func WithReadinessPath(path string) HealthOption {
	return func(c *healthConfig) {
		if path != "" {
			c.readinessPath = path
		}
	}
}

// WithReadinessCheck adds a named check to the readiness endpoint.
// Nil functions are skipped so optional backends can be passed as is.
func WithReadinessCheck(name string, fn health.CheckFunc) HealthOption {
	return func(c *healthConfig) {
		if fn == nil {
			return
		}
		if c.checks == nil {
			c.checks = make(health.Checks)
		}
		c.checks[name] = fn
	}
}
