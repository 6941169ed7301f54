package internal

import (
	"context"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/canopyhq/canopy/pkg/id"
	"github.com/canopyhq/canopy/pkg/job"
	"github.com/canopyhq/canopy/pkg/session"
	"github.com/canopyhq/canopy/pkg/storage"
)

const ticketBytes = 16

// Context is what handlers, middleware and units see of a request.
// It also implements context.Context by delegating to the request context.
type Context interface {
	context.Context

	Request() *http.Request
	Response() http.ResponseWriter
	ResponseWriter() *ResponseWriter

	// Context returns the request context, including values added with Set.
	Context() context.Context

	Param(name string) string
	Query(name string) string
	Form(name string) string
	FormFile(name string) (multipart.File, *multipart.FileHeader, error)
	Header(name string) string
	SetHeader(name, value string)

	JSON(code int, v any) error
	String(code int, s string) error
	NoContent(code int) error
	Redirect(code int, url string) error
	Error(code int, message string, opts ...HTTPErrorOption) *HTTPError
	Written() bool

	Logger() *slog.Logger
	LogDebug(msg string, attrs ...any)
	LogInfo(msg string, attrs ...any)
	LogWarn(msg string, attrs ...any)
	LogError(msg string, attrs ...any)

	// Set stores a value on the request context, visible to later middleware
	// and to loggers reading the context.
	Set(key, value any)
	Get(key any) any

	// Session loads the session lazily. It returns nil, nil for a request
	// without one.
	Session() (*session.Session, error)
	UserID() string
	IsGuest() bool
	IsAuthenticated() bool
	AuthenticateSession(userID string) error
	AuthenticateGuest() error
	SessionValue(key string) (string, bool)
	SetSessionValue(key, val string) error
	DestroySession() error

	// Ticket returns the session's sign-in ticket, issuing one if needed.
	// POSTs must echo it back in the "stub" field.
	Ticket() (string, error)

	Enqueue(name string, payload any, opts ...job.EnqueueOption) error
	EnqueueTx(tx pgx.Tx, name string, payload any, opts ...job.EnqueueOption) error

	Storage() (storage.Storage, error)
}

type requestContext struct {
	request        *http.Request
	responseWriter *ResponseWriter
	logger         *slog.Logger
	sessionManager *SessionManager
	session        *session.Session
	jobs           job.Enqueuer
	storage        storage.Storage

	sessionLoaded         bool
	sessionHookRegistered bool
}

func newContext(w http.ResponseWriter, r *http.Request, app *App) *requestContext {
	rw, ok := w.(*ResponseWriter)
	if !ok {
		rw = NewResponseWriter(w)
	}
	return &requestContext{
		request:        r,
		responseWriter: rw,
		logger:         app.logger,
		sessionManager: app.sessionManager,
		jobs:           app.jobs,
		storage:        app.storage,
	}
}

func (c *requestContext) Request() *http.Request            { return c.request }
func (c *requestContext) Response() http.ResponseWriter     { return c.responseWriter }
func (c *requestContext) ResponseWriter() *ResponseWriter   { return c.responseWriter }
func (c *requestContext) Context() context.Context          { return c.request.Context() }
func (c *requestContext) Deadline() (time.Time, bool)       { return c.request.Context().Deadline() }
func (c *requestContext) Done() <-chan struct{}             { return c.request.Context().Done() }
func (c *requestContext) Err() error                        { return c.request.Context().Err() }
func (c *requestContext) Value(key any) any                 { return c.request.Context().Value(key) }
func (c *requestContext) Param(name string) string          { return chi.URLParam(c.request, name) }
func (c *requestContext) Query(name string) string          { return c.request.URL.Query().Get(name) }
func (c *requestContext) Form(name string) string           { return c.request.FormValue(name) }
func (c *requestContext) Header(name string) string         { return c.request.Header.Get(name) }
func (c *requestContext) SetHeader(name, value string)      { c.responseWriter.Header().Set(name, value) }
func (c *requestContext) Written() bool                     { return c.responseWriter.Written() }
func (c *requestContext) Logger() *slog.Logger              { return c.logger }
func (c *requestContext) Get(key any) any                   { return c.request.Context().Value(key) }
func (c *requestContext) LogDebug(msg string, attrs ...any) { c.logger.DebugContext(c.Context(), msg, attrs...) }
func (c *requestContext) LogInfo(msg string, attrs ...any)  { c.logger.InfoContext(c.Context(), msg, attrs...) }
func (c *requestContext) LogWarn(msg string, attrs ...any)  { c.logger.WarnContext(c.Context(), msg, attrs...) }
func (c *requestContext) LogError(msg string, attrs ...any) { c.logger.ErrorContext(c.Context(), msg, attrs...) }

func (c *requestContext) FormFile(name string) (multipart.File, *multipart.FileHeader, error) {
	return c.request.FormFile(name)
}

func (c *requestContext) Set(key, value any) {
	c.request = c.request.WithContext(context.WithValue(c.request.Context(), key, value))
}

func (c *requestContext) JSON(code int, v any) error {
	c.SetHeader("Content-Type", "application/json; charset=utf-8")
	c.responseWriter.WriteHeader(code)
	return json.NewEncoder(c.responseWriter).Encode(v)
}

func (c *requestContext) String(code int, s string) error {
	c.SetHeader("Content-Type", "text/plain; charset=utf-8")
	c.responseWriter.WriteHeader(code)
	_, err := c.responseWriter.Write([]byte(s))
	return err
}

func (c *requestContext) NoContent(code int) error {
	c.responseWriter.WriteHeader(code)
	return nil
}

func (c *requestContext) Redirect(code int, url string) error {
	http.Redirect(c.responseWriter, c.request, url, code)
	return nil
}

func (c *requestContext) Error(code int, message string, opts ...HTTPErrorOption) *HTTPError {
	return NewHTTPError(code, message, opts...)
}

// registerSessionHook saves a dirty session right before the response is
// written. A failed save is logged; the response still goes out.
func (c *requestContext) registerSessionHook() {
	if c.sessionHookRegistered || c.sessionManager == nil {
		return
	}
	c.sessionHookRegistered = true
	c.responseWriter.OnBeforeWrite(func() {
		if c.session == nil || !c.session.IsDirty() {
			return
		}
		c.session.LastActiveAt = time.Now()
		if err := c.sessionManager.Store().Update(c.Context(), c.session); err != nil {
			c.LogError("failed to save session", slog.Any("error", err))
			return
		}
		c.session.ClearDirty()
	})
}

func (c *requestContext) Session() (*session.Session, error) {
	if c.sessionManager == nil {
		return nil, session.ErrNotConfigured
	}
	c.registerSessionHook()

	if c.sessionLoaded {
		return c.session, nil
	}

	sess, err := c.sessionManager.LoadSession(c.Context(), c.request)
	if err != nil {
		return nil, err
	}
	c.session = sess
	c.sessionLoaded = true
	return sess, nil
}

// currentSession loads the session and treats a stale cookie as none.
func (c *requestContext) currentSession() *session.Session {
	sess, err := c.Session()
	if err != nil {
		c.sessionLoaded = true
		c.session = nil
		return nil
	}
	return sess
}

// ensureSession returns the current session, creating one when missing.
func (c *requestContext) ensureSession() (*session.Session, error) {
	if c.sessionManager == nil {
		return nil, session.ErrNotConfigured
	}
	if sess := c.currentSession(); sess != nil {
		return sess, nil
	}

	sess, err := c.sessionManager.CreateSession(c.Context(), c.request)
	if err != nil {
		return nil, err
	}
	c.session = sess
	c.sessionLoaded = true
	c.sessionManager.SaveSession(c.responseWriter, sess)
	return sess, nil
}

func (c *requestContext) UserID() string {
	if sess := c.currentSession(); sess != nil {
		return sess.UserID
	}
	return ""
}

func (c *requestContext) IsGuest() bool {
	sess := c.currentSession()
	return sess != nil && sess.Guest
}

func (c *requestContext) IsAuthenticated() bool {
	sess := c.currentSession()
	return sess != nil && sess.IsAuthenticated()
}

// AuthenticateSession binds userID to the session and rotates the token so
// a token seen before sign-in is useless afterwards.
func (c *requestContext) AuthenticateSession(userID string) error {
	sess, err := c.ensureSession()
	if err != nil {
		return err
	}
	sess.SignIn(userID)
	if err := c.sessionManager.RotateToken(c.Context(), sess); err != nil {
		return err
	}
	c.sessionManager.SaveSession(c.responseWriter, sess)
	return nil
}

func (c *requestContext) AuthenticateGuest() error {
	sess, err := c.ensureSession()
	if err != nil {
		return err
	}
	sess.SignInGuest()
	return nil
}

func (c *requestContext) SessionValue(key string) (string, bool) {
	sess := c.currentSession()
	if sess == nil {
		return "", false
	}
	return sess.GetValue(key)
}

func (c *requestContext) SetSessionValue(key, val string) error {
	sess, err := c.ensureSession()
	if err != nil {
		return err
	}
	sess.SetValue(key, val)
	return nil
}

func (c *requestContext) Ticket() (string, error) {
	sess, err := c.ensureSession()
	if err != nil {
		return "", err
	}
	if sess.Ticket == "" {
		sess.Ticket = id.NewToken(ticketBytes)
		sess.MarkDirty()
	}
	return sess.Ticket, nil
}

func (c *requestContext) DestroySession() error {
	if c.sessionManager == nil {
		return session.ErrNotConfigured
	}
	if sess := c.currentSession(); sess != nil {
		if err := c.sessionManager.Store().Delete(c.Context(), sess.ID); err != nil {
			return err
		}
	}
	c.sessionManager.DeleteSession(c.responseWriter)
	c.session = nil
	c.sessionLoaded = true
	return nil
}

func (c *requestContext) Enqueue(name string, payload any, opts ...job.EnqueueOption) error {
	if c.jobs == nil {
		return job.ErrNotConfigured
	}
	return c.jobs.Enqueue(c.Context(), name, payload, opts...)
}

// EnqueueTx adds a job that only becomes visible when tx commits.
func (c *requestContext) EnqueueTx(tx pgx.Tx, name string, payload any, opts ...job.EnqueueOption) error {
	if c.jobs == nil {
		return job.ErrNotConfigured
	}
	return c.jobs.EnqueueTx(c.Context(), tx, name, payload, opts...)
}

func (c *requestContext) Storage() (storage.Storage, error) {
	if c.storage == nil {
		return nil, storage.ErrNotConfigured
	}
	return c.storage, nil
}
