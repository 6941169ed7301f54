package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canopyhq/canopy/pkg/session"
)

func TestSession_Flags(t *testing.T) {
	t.Parallel()

	s := session.New("id", "tok", time.Now().Add(time.Hour))
	assert.True(t, s.IsNew())
	assert.True(t, s.IsDirty())
	assert.False(t, s.IsAuthenticated())

	s.ClearDirty()
	s.ClearNew()
	assert.False(t, s.IsDirty())
	assert.False(t, s.IsNew())

	s.SignIn("42")
	assert.True(t, s.IsDirty())
	assert.True(t, s.IsAuthenticated())

	s.SignInGuest()
	assert.True(t, s.IsAuthenticated())
	assert.Empty(t, s.UserID)

	s.Ticket = "t"
	s.SetValue("k", "v")
	s.SignOut()
	assert.False(t, s.IsAuthenticated())
	assert.Empty(t, s.Ticket)
	assert.Empty(t, s.Values)
}

func TestSession_Values(t *testing.T) {
	t.Parallel()

	s := session.New("id", "tok", time.Now().Add(time.Hour))
	s.ClearDirty()

	s.DeleteValue("missing")
	assert.False(t, s.IsDirty())

	s.SetValue("k", "v")
	assert.True(t, s.IsDirty())
	v, ok := s.GetValue("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	s.ClearDirty()
	s.SetValue("k", "v")
	assert.False(t, s.IsDirty(), "same value keeps the session clean")

	s.DeleteValue("k")
	assert.True(t, s.IsDirty())
}

func TestSession_Expiry(t *testing.T) {
	t.Parallel()

	s := session.New("id", "tok", time.Now().Add(-time.Second))
	assert.True(t, s.IsExpired())
	assert.Zero(t, s.TTL())
}

func stores(t *testing.T) map[string]session.Store {
	t.Helper()

	srv := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return map[string]session.Store{
		"memory": session.NewMemoryStore(),
		"redis":  session.NewRedisStore(client, session.WithRedisPrefix("test:")),
	}
}

func TestStore_Lifecycle(t *testing.T) {
	t.Parallel()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			s := session.New("s1", "tok-1", time.Now().Add(time.Hour))
			s.SetValue("lang", "en")
			require.NoError(t, store.Create(ctx, s))

			got, err := store.Get(ctx, "tok-1")
			require.NoError(t, err)
			assert.Equal(t, "s1", got.ID)
			assert.Equal(t, "en", got.Values["lang"])

			_, err = store.Get(ctx, "nope")
			assert.ErrorIs(t, err, session.ErrNotFound)

			// rotation invalidates the old token
			got.Token = "tok-2"
			got.SignIn("7")
			require.NoError(t, store.Update(ctx, got))

			_, err = store.Get(ctx, "tok-1")
			assert.ErrorIs(t, err, session.ErrNotFound)
			rotated, err := store.Get(ctx, "tok-2")
			require.NoError(t, err)
			assert.Equal(t, "7", rotated.UserID)

			require.NoError(t, store.Delete(ctx, "s1"))
			_, err = store.Get(ctx, "tok-2")
			assert.ErrorIs(t, err, session.ErrNotFound)
			assert.NoError(t, store.Delete(ctx, "s1"))
		})
	}
}

func TestStore_DeleteByUserID(t *testing.T) {
	t.Parallel()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			for _, id := range []string{"a", "b", "c"} {
				s := session.New(id, "tok-"+id, time.Now().Add(time.Hour))
				if id != "c" {
					s.SignIn("u1")
				}
				require.NoError(t, store.Create(ctx, s))
			}

			require.NoError(t, store.DeleteByUserID(ctx, "u1"))

			_, err := store.Get(ctx, "tok-a")
			assert.ErrorIs(t, err, session.ErrNotFound)
			_, err = store.Get(ctx, "tok-b")
			assert.ErrorIs(t, err, session.ErrNotFound)
			_, err = store.Get(ctx, "tok-c")
			assert.NoError(t, err)
		})
	}
}

func TestMemoryStore_Expired(t *testing.T) {
	t.Parallel()

	store := session.NewMemoryStore()
	ctx := context.Background()

	s := session.New("x", "tok-x", time.Now().Add(-time.Minute))
	require.NoError(t, store.Create(ctx, s))

	_, err := store.Get(ctx, "tok-x")
	assert.ErrorIs(t, err, session.ErrExpired)
}

func TestRedisStore_TTL(t *testing.T) {
	t.Parallel()

	srv := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := session.NewRedisStore(client)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, session.New("x", "tok-x", time.Now().Add(time.Minute))))
	assert.True(t, srv.Exists("canopy:session:id:x"))
	assert.Greater(t, srv.TTL("canopy:session:id:x"), time.Duration(0))

	srv.FastForward(2 * time.Minute)
	_, err := store.Get(ctx, "tok-x")
	assert.ErrorIs(t, err, session.ErrNotFound)

	err = store.Create(ctx, session.New("y", "tok-y", time.Now().Add(-time.Minute)))
	assert.ErrorIs(t, err, session.ErrExpired)
}
