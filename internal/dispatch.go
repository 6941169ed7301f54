package internal

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/canopyhq/canopy/pkg/logger"
	"github.com/canopyhq/canopy/pkg/mode"
	"github.com/canopyhq/canopy/pkg/session"
)

const (
	fallbackDefaultMode = "user.response"
	defaultLoginDelay   = 3 * time.Second
	sessionAppKey       = "application"
)

// Authenticator checks form credentials and returns the user id.
// A mismatch is reported as ErrInvalidCredentials.
type Authenticator interface {
	Authenticate(ctx context.Context, uname, upass string) (string, error)
}

// DispatchObserver receives one call per dispatched request.
type DispatchObserver interface {
	ObserveDispatch(kind, outcome string, d time.Duration)
}

// DefaultModeHook may replace the default mode. An empty result keeps it.
type DefaultModeHook func(c Context, mode string) string

// DispatchConfig holds the application settings the dispatcher reads.
type DispatchConfig struct {
	// DefaultMode serves requests without a valid mode. Default "user.response".
	DefaultMode string

	// ModeFilter, when set, is a prefix every requested mode must carry.
	ModeFilter string

	// AuthenticationFailed replaces the mode for unauthenticated callers
	// asking for something guests may not run. Default mode.DefaultResponse.
	AuthenticationFailed string

	// AllowGuest signs unauthenticated callers in as the anonymous guest.
	AllowGuest bool
}

type resolvedKey struct{}

// CurrentMode returns the descriptor being served, as resolved.
func CurrentMode(c Context) (mode.Descriptor, bool) {
	d, ok := c.Get(resolvedKey{}).(mode.Descriptor)
	return d, ok
}

// Dispatcher serves every mode request: it signs callers in or out, picks
// the mode, resolves it and invokes the unit.
type Dispatcher struct {
	resolver   *mode.Resolver[Context]
	auth       Authenticator
	observer   DispatchObserver
	modes      Extractor
	hooks      []DefaultModeHook
	cfg        DispatchConfig
	loginDelay time.Duration
	mu         sync.RWMutex
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

func WithAuthenticator(a Authenticator) DispatcherOption {
	return func(d *Dispatcher) {
		d.auth = a
	}
}

func WithDispatchObserver(o DispatchObserver) DispatcherOption {
	return func(d *Dispatcher) {
		d.observer = o
	}
}

func WithDispatchConfig(cfg DispatchConfig) DispatcherOption {
	return func(d *Dispatcher) {
		d.cfg = cfg
	}
}

// WithLoginDelay sets the pause after a failed sign-in. Zero disables it.
func WithLoginDelay(delay time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if delay >= 0 {
			d.loginDelay = delay
		}
	}
}

// NewDispatcher creates a dispatcher over r.
func NewDispatcher(r *mode.Resolver[Context], opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		resolver:   r,
		modes:      NewExtractor(FromForm("swap_mode"), FromForm("mode")),
		loginDelay: defaultLoginDelay,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Resolver returns the resolver the dispatcher serves from.
func (d *Dispatcher) Resolver() *mode.Resolver[Context] {
	return d.resolver
}

// OverrideDefaultMode registers a hook consulted by DefaultMode. Plugins
// register here during startup. The first hook returning a value wins.
func (d *Dispatcher) OverrideDefaultMode(hook DefaultModeHook) {
	if hook == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hooks = append(d.hooks, hook)
}

// Routes mounts the dispatcher at the site root.
func (d *Dispatcher) Routes(r Router) {
	r.GET("/", d.Serve)
	r.POST("/", d.Serve)
}

// DefaultMode is the mode served when the request names none.
func (d *Dispatcher) DefaultMode(c Context) string {
	m := d.cfg.DefaultMode
	if m == "" {
		m = fallbackDefaultMode
	}

	d.mu.RLock()
	hooks := d.hooks
	d.mu.RUnlock()
	for _, hook := range hooks {
		if override := hook(c, m); override != "" {
			return override
		}
	}
	return m
}

// Mode reads the requested mode. swap_mode wins over mode. Anything that
// fails the wire grammar or the configured filter gets a default.
func (d *Dispatcher) Mode(c Context) string {
	m, _ := d.modes.Extract(c)
	if !mode.Valid(m) {
		if m != "" {
			c.LogDebug("malformed mode, using default", slog.String("requested", m))
		}
		m = d.DefaultMode(c)
	}
	if f := d.cfg.ModeFilter; f != "" && !strings.HasPrefix(m, f) {
		m = d.cfg.DefaultMode
		if m == "" {
			m = fallbackDefaultMode
		}
	}
	return m
}

// Serve handles one mode request.
func (d *Dispatcher) Serve(c Context) error {
	start := time.Now()

	if d.signingOut(c) {
		if err := c.DestroySession(); err != nil && !errors.Is(err, session.ErrNotConfigured) {
			return err
		}
		c.LogInfo("signed out")
		return c.Redirect(http.StatusSeeOther, c.Request().URL.Path)
	}

	rc, err := d.authenticate(c)
	if err != nil {
		return err
	}

	desc := mode.Parse(d.Mode(c))
	if !rc.Authenticated && !d.resolver.IsGuestExecutable(rc, desc) {
		failed := d.cfg.AuthenticationFailed
		if failed == "" {
			failed = mode.DefaultResponse
		}
		desc = mode.Parse(failed)
	}

	kind := "unresolved"
	res, err := d.resolver.Resolve(rc, desc)
	if err == nil {
		kind = res.Kind().String()
		c.Set(resolvedKey{}, res.Descriptor)
		c.Set(logger.ModeKey{}, res.Descriptor.String())
		err = res.Invoke(c)
	} else {
		c.Set(logger.ModeKey{}, desc.String())
	}

	outcome := strconv.Itoa(http.StatusOK)
	if err != nil {
		err = DispatchError(err)
		outcome = strconv.Itoa(AsHTTPError(err).Code)
	} else if rw := c.ResponseWriter(); rw.Written() {
		outcome = strconv.Itoa(rw.Status())
	}
	if d.observer != nil {
		d.observer.ObserveDispatch(kind, outcome, time.Since(start))
	}
	c.LogDebug("dispatched", slog.String("kind", kind), slog.String("outcome", outcome))
	return err
}

// signingOut reports a "?logout" request, or a POST whose stub does not
// match the session ticket.
func (d *Dispatcher) signingOut(c Context) bool {
	r := c.Request()
	if r.URL.Query().Has("logout") {
		return true
	}
	if r.Method != http.MethodPost {
		return false
	}
	var ticket string
	if sess, err := c.Session(); err == nil && sess != nil {
		ticket = sess.Ticket
	}
	return c.Form("stub") != ticket
}

func (d *Dispatcher) authenticate(c Context) (mode.RequestContext, error) {
	app, _ := c.SessionValue(sessionAppKey)
	rc := mode.RequestContext{
		UserID:        c.UserID(),
		Application:   app,
		Authenticated: c.IsAuthenticated(),
	}
	if rc.Authenticated {
		return rc, nil
	}

	if uname := c.Form("uname"); d.auth != nil && uname != "" && c.Request().Method == http.MethodPost {
		uid, err := d.auth.Authenticate(c, uname, c.Form("upass"))
		switch {
		case err == nil:
			if err := c.AuthenticateSession(uid); err != nil {
				return rc, err
			}
			c.LogInfo("signed in", slog.String("user_id", uid))
			rc.UserID, rc.Authenticated = uid, true
			return rc, nil
		case errors.Is(err, ErrInvalidCredentials):
			c.LogWarn("sign-in failed", slog.String("uname", uname))
			d.pause(c)
		default:
			return rc, err
		}
	}

	if d.cfg.AllowGuest {
		if err := c.AuthenticateGuest(); err != nil {
			return rc, err
		}
		rc.Authenticated = true
	}
	return rc, nil
}

// pause slows down password guessing.
func (d *Dispatcher) pause(ctx context.Context) {
	if d.loginDelay <= 0 {
		return
	}
	t := time.NewTimer(d.loginDelay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// DispatchError maps unit and resolver errors onto HTTP errors.
func DispatchError(err error) error {
	var perm *PermitError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &perm):
		return ErrForbidden("permission denied", WithErrorCode("permission-denied"), WithError(err))
	case IsHTTPError(err):
		return err
	case errors.Is(err, mode.ErrMethodNotFound):
		return ErrNotFound("not found", WithError(err))
	case errors.Is(err, mode.ErrNamespaceNotEnabled):
		return ErrForbidden("namespace is not enabled", WithErrorCode("namespace-disabled"), WithError(err))
	default:
		return ErrInternal("system error", WithError(err))
	}
}
