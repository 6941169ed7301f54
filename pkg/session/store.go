package session

import (
	"context"
)

// Store persists sessions. Lookups go by token and must not return a
// session whose current token differs from the one asked for.
type Store interface {
	Create(ctx context.Context, s *Session) error
	// Get returns ErrNotFound or ErrExpired.
	Get(ctx context.Context, token string) (*Session, error)
	// Update saves s, including a rotated token.
	Update(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
	DeleteByUserID(ctx context.Context, userID string) error
}
