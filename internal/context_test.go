package internal_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canopyhq/canopy/internal"
	"github.com/canopyhq/canopy/pkg/job"
	"github.com/canopyhq/canopy/pkg/session"
	"github.com/canopyhq/canopy/pkg/storage"
)

// requestVia registers fn at GET and POST / on a fresh App and serves req.
// It exercises the real requestContext without reaching into internals.
func requestVia(t *testing.T, req *http.Request, opts []internal.Option, fn func(c internal.Context)) *httptest.ResponseRecorder {
	t.Helper()

	h := &captureHandler{fn: fn}
	opts = append(opts, internal.WithHandlers(h))
	app := internal.New(opts...)

	w := httptest.NewRecorder()
	app.ServeHTTP(w, req)
	return w
}

type captureHandler struct {
	fn func(c internal.Context)
}

func (h *captureHandler) Routes(r internal.Router) {
	serve := func(c internal.Context) error {
		h.fn(c)
		return nil
	}
	r.GET("/", serve)
	r.POST("/", serve)
}

func cookieFrom(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies[len(cookies)-1]
}

type recordingEnqueuer struct {
	names []string
}

func (r *recordingEnqueuer) Enqueue(_ context.Context, name string, _ any, _ ...job.EnqueueOption) error {
	r.names = append(r.names, name)
	return nil
}

func (r *recordingEnqueuer) EnqueueTx(ctx context.Context, _ pgx.Tx, name string, payload any, opts ...job.EnqueueOption) error {
	return r.Enqueue(ctx, name, payload, opts...)
}

func TestContext_RequestHelpers(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/?q=canopy", nil)
	req.Header.Set("X-Test", "yes")

	w := requestVia(t, req, nil, func(c internal.Context) {
		assert.Equal(t, "canopy", c.Query("q"))
		assert.Equal(t, "canopy", c.Form("q"))
		assert.Equal(t, "yes", c.Header("X-Test"))

		c.Set("key", "value")
		assert.Equal(t, "value", c.Get("key"))
		assert.Equal(t, "value", c.Value("key"))
		assert.Equal(t, "value", internal.ContextValue[string](c, "key"))
		assert.Zero(t, internal.ContextValue[int](c, "key"))

		assert.False(t, c.Written())
		require.NoError(t, c.JSON(http.StatusAccepted, map[string]string{"ok": "yes"}))
		assert.True(t, c.Written())
	})

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"ok":"yes"}`, w.Body.String())
}

func TestContext_NotConfigured(t *testing.T) {
	t.Parallel()

	requestVia(t, httptest.NewRequest(http.MethodGet, "/", nil), nil, func(c internal.Context) {
		_, err := c.Session()
		assert.ErrorIs(t, err, session.ErrNotConfigured)
		assert.ErrorIs(t, c.AuthenticateSession("1"), session.ErrNotConfigured)
		assert.ErrorIs(t, c.DestroySession(), session.ErrNotConfigured)
		_, err = c.Ticket()
		assert.ErrorIs(t, err, session.ErrNotConfigured)
		assert.False(t, c.IsAuthenticated())
		assert.Empty(t, c.UserID())

		assert.ErrorIs(t, c.Enqueue("task", nil), job.ErrNotConfigured)
		_, err = c.Storage()
		assert.ErrorIs(t, err, storage.ErrNotConfigured)
	})
}

func TestContext_SessionLifecycle(t *testing.T) {
	t.Parallel()

	store := session.NewMemoryStore()
	opts := []internal.Option{internal.WithSession(store, internal.WithSessionCookieName("sid"))}

	// anonymous request: no session yet
	w := requestVia(t, httptest.NewRequest(http.MethodGet, "/", nil), opts, func(c internal.Context) {
		sess, err := c.Session()
		require.NoError(t, err)
		assert.Nil(t, sess)

		ticket, err := c.Ticket()
		require.NoError(t, err)
		assert.NotEmpty(t, ticket)
		again, err := c.Ticket()
		require.NoError(t, err)
		assert.Equal(t, ticket, again)

		require.NoError(t, c.String(http.StatusOK, "ok"))
	})
	anon := cookieFrom(t, w)

	// sign in rotates the token
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(anon)
	w = requestVia(t, req, opts, func(c internal.Context) {
		sess, err := c.Session()
		require.NoError(t, err)
		require.NotNil(t, sess)
		assert.NotEmpty(t, sess.Ticket, "ticket was flushed before the first response")

		require.NoError(t, c.AuthenticateSession("7"))
		assert.Equal(t, "7", c.UserID())
		assert.True(t, c.IsAuthenticated())
		assert.False(t, c.IsGuest())
		require.NoError(t, c.SetSessionValue("application", "admin"))
		require.NoError(t, c.NoContent(http.StatusNoContent))
	})
	signedIn := cookieFrom(t, w)
	assert.NotEqual(t, anon.Value, signedIn.Value)

	_, err := store.Get(context.Background(), anon.Value)
	assert.ErrorIs(t, err, session.ErrNotFound, "pre sign-in token must stop working")

	// the new token carries the user and values
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(signedIn)
	requestVia(t, req, opts, func(c internal.Context) {
		assert.Equal(t, "7", c.UserID())
		v, ok := c.SessionValue("application")
		assert.True(t, ok)
		assert.Equal(t, "admin", v)

		require.NoError(t, c.DestroySession())
		assert.False(t, c.IsAuthenticated())
	})

	_, err = store.Get(context.Background(), signedIn.Value)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestContext_StaleCookieIsAnonymous(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: "gone"})
	opts := []internal.Option{internal.WithSession(session.NewMemoryStore(), internal.WithSessionCookieName("sid"))}

	requestVia(t, req, opts, func(c internal.Context) {
		assert.False(t, c.IsAuthenticated())
		require.NoError(t, c.AuthenticateGuest())
		assert.True(t, c.IsGuest())
		assert.True(t, c.IsAuthenticated())
	})
}

func TestContext_JobsAndStorage(t *testing.T) {
	t.Parallel()

	jobs := &recordingEnqueuer{}
	mem := storage.NewMemory()
	opts := []internal.Option{internal.WithJobEnqueuer(jobs), internal.WithStorage(mem)}

	requestVia(t, httptest.NewRequest(http.MethodGet, "/", nil), opts, func(c internal.Context) {
		require.NoError(t, c.Enqueue("user_reminder", map[string]string{"uname": "root"}))
		s, err := c.Storage()
		require.NoError(t, err)
		assert.Same(t, mem, s)
	})
	assert.Equal(t, []string{"user_reminder"}, jobs.names)
}
