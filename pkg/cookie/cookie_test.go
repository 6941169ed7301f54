package cookie_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canopyhq/canopy/pkg/cookie"
)

const secret = "0123456789abcdef0123456789abcdef"

func roundTrip(t *testing.T, jar *cookie.Jar, name, value string) (*http.Cookie, *http.Request) {
	t.Helper()

	w := httptest.NewRecorder()
	jar.Write(w, name, value, 60)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(cookies[0])
	return cookies[0], r
}

func TestJar_Plain(t *testing.T) {
	t.Parallel()

	jar, err := cookie.New(cookie.WithDomain("example.com"), cookie.WithSecure(true), cookie.WithSameSite(http.SameSiteStrictMode))
	require.NoError(t, err)
	assert.False(t, jar.Signed())

	c, r := roundTrip(t, jar, "sid", "token")
	assert.Equal(t, "token", c.Value)
	assert.Equal(t, "/", c.Path)
	assert.Equal(t, "example.com", c.Domain)
	assert.Equal(t, 60, c.MaxAge)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteStrictMode, c.SameSite)

	v, err := jar.Read(r, "sid")
	require.NoError(t, err)
	assert.Equal(t, "token", v)

	_, err = jar.Read(httptest.NewRequest(http.MethodGet, "/", nil), "sid")
	assert.ErrorIs(t, err, cookie.ErrNotFound)
}

func TestJar_Signed(t *testing.T) {
	t.Parallel()

	jar, err := cookie.New(cookie.WithSecret(secret))
	require.NoError(t, err)
	assert.True(t, jar.Signed())

	c, r := roundTrip(t, jar, "sid", "abc.def")
	assert.True(t, strings.HasPrefix(c.Value, "abc.def."))

	v, err := jar.Read(r, "sid")
	require.NoError(t, err)
	assert.Equal(t, "abc.def", v)

	tests := map[string]string{
		"tampered value": strings.Replace(c.Value, "abc", "abd", 1),
		"no signature":   "abc",
		"bad encoding":   "abc.!!!",
	}
	for name, value := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: "sid", Value: value})
		_, err := jar.Read(r, "sid")
		assert.ErrorIs(t, err, cookie.ErrBadSig, name)
	}

	// a value signed for one name does not verify under another
	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "other", Value: c.Value})
	_, err = jar.Read(r, "other")
	assert.ErrorIs(t, err, cookie.ErrBadSig)
}

func TestJar_ShortSecret(t *testing.T) {
	t.Parallel()

	_, err := cookie.New(cookie.WithSecret("short"))
	assert.ErrorIs(t, err, cookie.ErrBadSecret)
}

func TestJar_Expire(t *testing.T) {
	t.Parallel()

	jar, err := cookie.New()
	require.NoError(t, err)

	w := httptest.NewRecorder()
	jar.Expire(w, "sid")
	c := w.Result().Cookies()
	require.Len(t, c, 1)
	assert.Empty(t, c[0].Value)
	assert.Negative(t, c[0].MaxAge)
}
