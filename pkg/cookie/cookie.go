package cookie

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
)

// MinSecretLength is the shortest secret WithSecret accepts.
const MinSecretLength = 32

var (
	ErrNotFound  = errors.New("cookie: not found")
	ErrBadSecret = errors.New("cookie: secret must be at least 32 bytes")
	ErrBadSig    = errors.New("cookie: invalid signature")
)

// Jar reads and writes cookies with one set of attributes. With a secret,
// every value is signed and tampered values read as ErrBadSig.
type Jar struct {
	secret   []byte
	domain   string
	path     string
	sameSite http.SameSite
	secure   bool
}

type Option func(*Jar)

// WithSecret enables signing. Secrets shorter than MinSecretLength are
// rejected by New.
func WithSecret(secret string) Option {
	return func(j *Jar) {
		j.secret = []byte(secret)
	}
}

func WithDomain(domain string) Option {
	return func(j *Jar) {
		j.domain = domain
	}
}

func WithPath(path string) Option {
	return func(j *Jar) {
		if path != "" {
			j.path = path
		}
	}
}

func WithSecure(secure bool) Option {
	return func(j *Jar) {
		j.secure = secure
	}
}

func WithSameSite(ss http.SameSite) Option {
	return func(j *Jar) {
		j.sameSite = ss
	}
}

// New creates a Jar. Cookies are HttpOnly, SameSite=Lax and scoped to "/"
// unless configured otherwise.
func New(opts ...Option) (*Jar, error) {
	j := &Jar{path: "/", sameSite: http.SameSiteLaxMode}
	for _, opt := range opts {
		opt(j)
	}
	if j.secret != nil && len(j.secret) < MinSecretLength {
		return nil, ErrBadSecret
	}
	return j, nil
}

// Signed reports whether values are signed.
func (j *Jar) Signed() bool {
	return j.secret != nil
}

// Read returns the value of the named cookie, verifying its signature when
// the jar is signed.
func (j *Jar) Read(r *http.Request, name string) (string, error) {
	c, err := r.Cookie(name)
	if err != nil || c.Value == "" {
		return "", ErrNotFound
	}
	if !j.Signed() {
		return c.Value, nil
	}

	i := strings.LastIndexByte(c.Value, '.')
	if i < 0 {
		return "", ErrBadSig
	}
	value, sig := c.Value[:i], c.Value[i+1:]
	want, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil || !hmac.Equal(want, j.sign(name, value)) {
		return "", ErrBadSig
	}
	return value, nil
}

// Write sets the named cookie for maxAge seconds.
func (j *Jar) Write(w http.ResponseWriter, name, value string, maxAge int) {
	if j.Signed() {
		value += "." + base64.RawURLEncoding.EncodeToString(j.sign(name, value))
	}
	http.SetCookie(w, j.cookie(name, value, maxAge))
}

// Expire tells the client to drop the named cookie.
func (j *Jar) Expire(w http.ResponseWriter, name string) {
	http.SetCookie(w, j.cookie(name, "", -1))
}

// sign binds the value to the cookie name, so a signed value cannot be
// replayed under another name.
func (j *Jar) sign(name, value string) []byte {
	mac := hmac.New(sha256.New, j.secret)
	mac.Write([]byte(name))
	mac.Write([]byte{'='})
	mac.Write([]byte(value))
	return mac.Sum(nil)
}

func (j *Jar) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     j.path,
		Domain:   j.domain,
		MaxAge:   maxAge,
		Secure:   j.secure,
		HttpOnly: true,
		SameSite: j.sameSite,
	}
}
