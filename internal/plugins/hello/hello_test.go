package hello_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canopyhq/canopy/internal"
	"github.com/canopyhq/canopy/internal/plugins/hello"
	"github.com/canopyhq/canopy/pkg/mode"
	"github.com/canopyhq/canopy/pkg/session"
)

type fallback struct{}

func (*fallback) Init(internal.Context) error { return nil }

func newApp(t *testing.T, guests bool) *internal.App {
	t.Helper()

	reg := mode.NewRegistry[internal.Context](mode.DefaultNamespace)
	mode.MustRegister(reg, mode.Spec[internal.Context, *fallback]{
		Package: "system.response",
		Kind:    mode.KindSystemResponse,
		New:     func() *fallback { return &fallback{} },
		Methods: map[string]mode.Method[internal.Context, *fallback]{
			"failed": func(_ *fallback, c internal.Context, _ ...string) error {
				return c.String(http.StatusUnauthorized, "failed")
			},
			"default-view": func(_ *fallback, c internal.Context, _ ...string) error {
				return c.String(http.StatusOK, "system")
			},
		},
	})

	d := internal.NewDispatcher(
		mode.NewResolver(reg, mode.WithAllowList([]string{mode.DefaultNamespace, hello.Namespace})),
		internal.WithDispatchConfig(internal.DispatchConfig{AllowGuest: guests, DefaultMode: "system.response"}),
	)
	require.NoError(t, hello.Register(reg, d))
	require.NoError(t, reg.Validate())

	return internal.New(internal.WithSession(session.NewMemoryStore()), internal.WithHandlers(d))
}

func get(app http.Handler, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	app.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestGreeting(t *testing.T) {
	t.Parallel()

	app := newApp(t, true)

	w := get(app, "/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"greeting":"Hello, guest"}`, w.Body.String(), "guests land on the greeting")

	w = get(app, "/?mode="+"hello~greeting:echo(a,b)")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"args":["a","b"]}`, w.Body.String())

	assert.Equal(t, "system", get(app, "/?mode=system.response").Body.String())
}

func TestGreeting_NoGuests(t *testing.T) {
	t.Parallel()

	app := newApp(t, false)
	assert.Equal(t, "failed", get(app, "/").Body.String())
	assert.Equal(t, "failed", get(app, "/?mode=hello~greeting").Body.String())
}
