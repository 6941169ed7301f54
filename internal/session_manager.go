package internal

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/canopyhq/canopy/pkg/cookie"
	"github.com/canopyhq/canopy/pkg/id"
	"github.com/canopyhq/canopy/pkg/logger"
	"github.com/canopyhq/canopy/pkg/session"
)

const (
	defaultSessionCookieName = "canopy_sid"
	defaultSessionMaxAge     = 86400 * 7
	sessionTokenBytes        = 32
)

// SessionManager moves sessions between the store and the cookie.
type SessionManager struct {
	store      session.Store
	jar        *cookie.Jar
	logger     *slog.Logger
	cookieName string
	maxAge     int
}

// SessionOption configures the SessionManager.
type SessionOption func(*SessionManager)

// NewSessionManager creates a SessionManager over store. Without
// WithSessionCookies the cookie is unsigned, HttpOnly and SameSite=Lax.
func NewSessionManager(store session.Store, opts ...SessionOption) *SessionManager {
	sm := &SessionManager{
		store:      store,
		logger:     logger.NewNope(),
		cookieName: defaultSessionCookieName,
		maxAge:     defaultSessionMaxAge,
	}

	for _, opt := range opts {
		opt(sm)
	}

	if sm.jar == nil {
		sm.jar, _ = cookie.New()
	}
	return sm
}

func WithSessionCookieName(name string) SessionOption {
	return func(sm *SessionManager) {
		if name != "" {
			sm.cookieName = name
		}
	}
}

// WithSessionMaxAge sets both the cookie lifetime and the store TTL.
func WithSessionMaxAge(d time.Duration) SessionOption {
	return func(sm *SessionManager) {
		if d >= time.Second {
			sm.maxAge = int(d / time.Second)
		}
	}
}

// WithSessionCookies sets the jar that writes the session cookie. A signed
// jar makes forged tokens fail before they reach the store.
func WithSessionCookies(jar *cookie.Jar) SessionOption {
	return func(sm *SessionManager) {
		if jar != nil {
			sm.jar = jar
		}
	}
}

// SetLogger is called by App after its own logger is configured.
func (sm *SessionManager) SetLogger(l *slog.Logger) {
	if l != nil {
		sm.logger = l
	}
}

// LoadSession returns the session named by the request cookie, or nil, nil
// when there is no cookie.
func (sm *SessionManager) LoadSession(ctx context.Context, r *http.Request) (*session.Session, error) {
	token, err := sm.jar.Read(r, sm.cookieName)
	if errors.Is(err, cookie.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		sm.logger.WarnContext(ctx, "session cookie rejected", slog.Any("error", err))
		return nil, err
	}
	return sm.store.Get(ctx, token)
}

// CreateSession stores a fresh anonymous session.
func (sm *SessionManager) CreateSession(ctx context.Context, r *http.Request) (*session.Session, error) {
	expiresAt := time.Now().Add(time.Duration(sm.maxAge) * time.Second)
	sess := session.New(id.NewULID(), id.NewToken(sessionTokenBytes), expiresAt)
	sess.IP = remoteIP(r)
	sess.UserAgent = r.UserAgent()

	if err := sm.store.Create(ctx, sess); err != nil {
		return nil, err
	}

	sess.ClearNew()
	sess.ClearDirty()
	return sess, nil
}

// SaveSession writes the session cookie.
func (sm *SessionManager) SaveSession(w http.ResponseWriter, sess *session.Session) {
	sm.jar.Write(w, sm.cookieName, sess.Token, sm.maxAge)
}

// RotateToken issues a new token and saves the session. The old token stops
// resolving as soon as the store is updated.
func (sm *SessionManager) RotateToken(ctx context.Context, sess *session.Session) error {
	oldToken := sess.Token
	sess.Token = id.NewToken(sessionTokenBytes)
	sess.MarkDirty()

	if err := sm.store.Update(ctx, sess); err != nil {
		sess.Token = oldToken
		return err
	}
	sess.ClearDirty()
	return nil
}

// DeleteSession expires the cookie.
func (sm *SessionManager) DeleteSession(w http.ResponseWriter) {
	sm.jar.Expire(w, sm.cookieName)
}

func (sm *SessionManager) Store() session.Store {
	return sm.store
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
