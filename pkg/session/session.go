package session

import (
	"time"
)

// Session is the server-side state behind a session cookie.
type Session struct {
	CreatedAt    time.Time         `json:"created_at"`
	LastActiveAt time.Time         `json:"last_active_at"`
	ExpiresAt    time.Time         `json:"expires_at"`
	Values       map[string]string `json:"values,omitempty"`
	ID           string            `json:"id"`

	// Token is what the cookie carries. It changes on sign-in, the ID does not.
	Token     string `json:"token"`
	UserID    string `json:"user_id,omitempty"`
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`

	// Ticket is the per-session CSRF value that POSTs echo back as "stub".
	Ticket string `json:"ticket,omitempty"`
	Guest  bool   `json:"guest,omitempty"`

	dirty bool
	isNew bool
}

// New creates a session that is both new and dirty.
func New(id, token string, expiresAt time.Time) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		Token:        token,
		Values:       make(map[string]string),
		CreatedAt:    now,
		LastActiveAt: now,
		ExpiresAt:    expiresAt,
		isNew:        true,
		dirty:        true,
	}
}

// IsAuthenticated reports whether a user or a guest is signed in.
func (s *Session) IsAuthenticated() bool {
	return s.UserID != "" || s.Guest
}

// SignIn binds the session to a user.
func (s *Session) SignIn(userID string) {
	s.UserID = userID
	s.Guest = false
	s.dirty = true
}

// SignInGuest binds the session to the anonymous guest.
func (s *Session) SignInGuest() {
	s.UserID = ""
	s.Guest = true
	s.dirty = true
}

// SignOut drops the user binding and all values.
func (s *Session) SignOut() {
	s.UserID = ""
	s.Guest = false
	s.Ticket = ""
	clear(s.Values)
	s.dirty = true
}

func (s *Session) SetValue(key, val string) {
	if s.Values == nil {
		s.Values = make(map[string]string)
	}
	if cur, ok := s.Values[key]; ok && cur == val {
		return
	}
	s.Values[key] = val
	s.dirty = true
}

func (s *Session) GetValue(key string) (string, bool) {
	val, ok := s.Values[key]
	return val, ok
}

// DeleteValue removes key. The session only becomes dirty if key existed.
func (s *Session) DeleteValue(key string) {
	if _, ok := s.Values[key]; ok {
		delete(s.Values, key)
		s.dirty = true
	}
}

func (s *Session) IsDirty() bool { return s.dirty }
func (s *Session) ClearDirty()   { s.dirty = false }
func (s *Session) MarkDirty()    { s.dirty = true }
func (s *Session) IsNew() bool   { return s.isNew }
func (s *Session) ClearNew()     { s.isNew = false }

// IsExpired reports whether ExpiresAt has passed.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// TTL is the time left until expiry, never negative.
func (s *Session) TTL() time.Duration {
	return max(time.Until(s.ExpiresAt), 0)
}
