package internal

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canopyhq/canopy/pkg/cookie"
	"github.com/canopyhq/canopy/pkg/session"
)

type failingUpdateStore struct {
	*session.MemoryStore
	err error
}

func (s *failingUpdateStore) Update(context.Context, *session.Session) error {
	return s.err
}

func TestSessionManager_CreateAndLoad(t *testing.T) {
	t.Parallel()

	store := session.NewMemoryStore()
	sm := NewSessionManager(store, WithSessionCookieName("sid"), WithSessionMaxAge(time.Hour))
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.7:5555"
	req.Header.Set("User-Agent", "canopy-test")

	sess, err := sm.CreateSession(ctx, req)
	require.NoError(t, err)
	assert.False(t, sess.IsNew())
	assert.False(t, sess.IsDirty())
	assert.Equal(t, "10.0.0.7", sess.IP)
	assert.Equal(t, "canopy-test", sess.UserAgent)
	assert.InDelta(t, time.Hour.Seconds(), sess.TTL().Seconds(), 5)

	w := httptest.NewRecorder()
	sm.SaveSession(w, sess)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "sid", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, 3600, cookies[0].MaxAge)

	next := httptest.NewRequest(http.MethodGet, "/", nil)
	next.AddCookie(cookies[0])
	loaded, err := sm.LoadSession(ctx, next)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, sess.ID, loaded.ID)
}

func TestSessionManager_LoadWithoutCookie(t *testing.T) {
	t.Parallel()

	sm := NewSessionManager(session.NewMemoryStore())
	sess, err := sm.LoadSession(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NoError(t, err)
	assert.Nil(t, sess)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: defaultSessionCookieName, Value: "unknown"})
	_, err = sm.LoadSession(context.Background(), req)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestSessionManager_RotateToken(t *testing.T) {
	t.Parallel()

	store := session.NewMemoryStore()
	sm := NewSessionManager(store)
	ctx := context.Background()

	sess, err := sm.CreateSession(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	old := sess.Token

	require.NoError(t, sm.RotateToken(ctx, sess))
	assert.NotEqual(t, old, sess.Token)
	assert.False(t, sess.IsDirty())

	_, err = store.Get(ctx, old)
	assert.ErrorIs(t, err, session.ErrNotFound)
	got, err := store.Get(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
}

func TestSessionManager_RotateTokenRollsBack(t *testing.T) {
	t.Parallel()

	boom := errors.New("store down")
	store := &failingUpdateStore{MemoryStore: session.NewMemoryStore(), err: boom}
	sm := NewSessionManager(store)

	sess, err := sm.CreateSession(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	old := sess.Token

	err = sm.RotateToken(context.Background(), sess)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, old, sess.Token)
}

func TestSessionManager_DeleteSession(t *testing.T) {
	t.Parallel()

	jar, err := cookie.New(cookie.WithSecure(true))
	require.NoError(t, err)
	sm := NewSessionManager(session.NewMemoryStore(), WithSessionCookies(jar))
	w := httptest.NewRecorder()
	sm.DeleteSession(w)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Empty(t, cookies[0].Value)
	assert.Negative(t, cookies[0].MaxAge)
	assert.True(t, cookies[0].Secure)
}

func TestSessionManager_SignedCookie(t *testing.T) {
	t.Parallel()

	jar, err := cookie.New(cookie.WithSecret("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	store := session.NewMemoryStore()
	sm := NewSessionManager(store, WithSessionCookies(jar))
	ctx := context.Background()

	sess, err := sm.CreateSession(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	w := httptest.NewRecorder()
	sm.SaveSession(w, sess)
	signed := w.Result().Cookies()[0]
	assert.NotEqual(t, sess.Token, signed.Value)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(signed)
	loaded, err := sm.LoadSession(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, loaded.ID)

	// the bare token without a signature is rejected
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: defaultSessionCookieName, Value: sess.Token})
	_, err = sm.LoadSession(ctx, req)
	assert.ErrorIs(t, err, cookie.ErrBadSig)
}
