package canopy

import (
	"context"
	"log/slog"
	"time"

	"github.com/canopyhq/canopy/internal"
	"github.com/canopyhq/canopy/pkg/cookie"
	"github.com/canopyhq/canopy/pkg/health"
	"github.com/canopyhq/canopy/pkg/job"
	"github.com/canopyhq/canopy/pkg/metrics"
	"github.com/canopyhq/canopy/pkg/mode"
	"github.com/canopyhq/canopy/pkg/session"
	"github.com/canopyhq/canopy/pkg/storage"
)

type (
	// App wires routing, sessions, jobs and storage together.
	App = internal.App

	// Context is what units and handlers see of a request.
	Context = internal.Context

	Router       = internal.Router
	Handler      = internal.Handler
	HandlerFunc  = internal.HandlerFunc
	Middleware   = internal.Middleware
	ErrorHandler = internal.ErrorHandler

	// Option configures the application.
	Option = internal.Option

	// RunOption configures the server runtime.
	RunOption = internal.RunOption

	HealthOption  = internal.HealthOption
	SessionOption = internal.SessionOption

	// Dispatcher serves mode requests at the site root.
	Dispatcher       = internal.Dispatcher
	DispatcherOption = internal.DispatcherOption
	DispatchConfig   = internal.DispatchConfig
	DefaultModeHook  = internal.DefaultModeHook
	Authenticator    = internal.Authenticator

	// Registry holds the units a Dispatcher can resolve.
	Registry = mode.Registry[internal.Context]

	HTTPError       = internal.HTTPError
	HTTPErrorOption = internal.HTTPErrorOption
)

// ErrInvalidCredentials is returned by an Authenticator on a mismatch.
var ErrInvalidCredentials = internal.ErrInvalidCredentials

// New creates an application. The App is immutable after creation.
func New(opts ...Option) *App {
	return internal.New(opts...)
}

// NewRegistry creates a unit registry whose built-in units live in ns.
func NewRegistry(ns string) *Registry {
	return mode.NewRegistry[internal.Context](ns)
}

// NewDispatcher creates the mode dispatcher.
//
//	d := canopy.NewDispatcher(
//	    mode.NewResolver(reg, mode.WithAllowList([]string{"canopy", "hello"})),
//	    canopy.WithAuthenticator(users),
//	    canopy.WithLoginDelay(3*time.Second),
//	)
func NewDispatcher(r *mode.Resolver[Context], opts ...DispatcherOption) *Dispatcher {
	return internal.NewDispatcher(r, opts...)
}

// App options

func WithMiddleware(mw ...Middleware) Option {
	return internal.WithMiddleware(mw...)
}

// WithHandlers registers handlers that declare routes. A Dispatcher is one.
func WithHandlers(h ...Handler) Option {
	return internal.WithHandlers(h...)
}

func WithErrorHandler(h ErrorHandler) Option {
	return internal.WithErrorHandler(h)
}

// WithHealthChecks mounts /health/live and /health/ready.
//
//	canopy.WithHealthChecks(
//	    canopy.WithReadinessCheck("db", db.Healthcheck(pool)),
//	)
func WithHealthChecks(opts ...HealthOption) Option {
	return internal.WithHealthChecks(opts...)
}

func WithLogger(l *slog.Logger) Option {
	return internal.WithLogger(l)
}

// WithSession enables sessions over store. Without a session store every
// caller is anonymous.
func WithSession(store session.Store, opts ...SessionOption) Option {
	return internal.WithSession(store, opts...)
}

// WithJobs makes m available to units and runs its workers with the server.
func WithJobs(m *job.Manager) Option {
	return internal.WithJobs(m)
}

// WithJobEnqueuer only enqueues; workers run elsewhere.
func WithJobEnqueuer(e job.Enqueuer) Option {
	return internal.WithJobEnqueuer(e)
}

// WithStorage backs the file manager.
func WithStorage(s storage.Storage) Option {
	return internal.WithStorage(s)
}

// WithMetrics mounts rec at /metrics, or at path when given.
func WithMetrics(rec *metrics.Recorder, path ...string) Option {
	return internal.WithMetrics(rec, path...)
}

// Dispatcher options

func WithAuthenticator(a Authenticator) DispatcherOption {
	return internal.WithAuthenticator(a)
}

// WithLoginDelay sets the pause after a failed sign-in. Zero disables it.
func WithLoginDelay(d time.Duration) DispatcherOption {
	return internal.WithLoginDelay(d)
}

func WithDispatchConfig(cfg DispatchConfig) DispatcherOption {
	return internal.WithDispatchConfig(cfg)
}

func WithDispatchObserver(o internal.DispatchObserver) DispatcherOption {
	return internal.WithDispatchObserver(o)
}

// Session options

func WithSessionCookieName(name string) SessionOption {
	return internal.WithSessionCookieName(name)
}

func WithSessionMaxAge(d time.Duration) SessionOption {
	return internal.WithSessionMaxAge(d)
}

// WithSessionCookies sets the jar writing the session cookie. A signed jar
// rejects forged tokens before they reach the store.
func WithSessionCookies(jar *cookie.Jar) SessionOption {
	return internal.WithSessionCookies(jar)
}

// Health check options

func WithLivenessPath(path string) HealthOption {
	return internal.WithLivenessPath(path)
}

func WithReadinessPath(path string) HealthOption {
	return internal.WithReadinessPath(path)
}

// WithReadinessCheck adds a named readiness check. Checks run in parallel.
func WithReadinessCheck(name string, fn health.CheckFunc) HealthOption {
	return internal.WithReadinessCheck(name, fn)
}

// Run options

func Logger(l *slog.Logger) RunOption {
	return internal.Logger(l)
}

// ShutdownTimeout bounds the HTTP drain and the shutdown hooks. Default 30s.
func ShutdownTimeout(d time.Duration) RunOption {
	return internal.ShutdownTimeout(d)
}

// StartupHook runs after the port is bound and before serving. A failing
// hook stops the server.
func StartupHook(fn func(context.Context) error) RunOption {
	return internal.StartupHook(fn)
}

// ShutdownHook runs during shutdown, in registration order.
//
//	canopy.ShutdownHook(db.Shutdown(pool))
func ShutdownHook(fn func(context.Context) error) RunOption {
	return internal.ShutdownHook(fn)
}

// WithContext sets the base context watched for cancellation.
func WithContext(ctx context.Context) RunOption {
	return internal.WithContext(ctx)
}

// Unit helpers

// Arg converts the i-th mode argument.
//
//	id, ok := canopy.Arg[int64](args, 0)
func Arg[T string | int | int64 | bool](args []string, i int) (T, bool) {
	return internal.Arg[T](args, i)
}

// ContextValue retrieves a typed value stored with Context.Set.
func ContextValue[T any](c Context, key any) T {
	return internal.ContextValue[T](c, key)
}

// Deny reports a missing permission as a 403.
func Deny(key string) error {
	return internal.Deny(key)
}

func NewHTTPError(code int, message string, opts ...HTTPErrorOption) *HTTPError {
	return internal.NewHTTPError(code, message, opts...)
}
