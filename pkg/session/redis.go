package session

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "canopy:session:"

// RedisStore keeps sessions in Redis with a TTL matching their expiry.
//
// Layout under the prefix:
//
//	<prefix>id:<id>        JSON-encoded session
//	<prefix>token:<token>  session id
//	<prefix>user:<uid>     set of session ids
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisPrefix replaces the key prefix.
func WithRedisPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// NewRedisStore creates a store on top of client.
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, prefix: defaultRedisPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (r *RedisStore) idKey(id string) string       { return r.prefix + "id:" + id }
func (r *RedisStore) tokenKey(token string) string { return r.prefix + "token:" + token }
func (r *RedisStore) userKey(uid string) string    { return r.prefix + "user:" + uid }

func (r *RedisStore) Create(ctx context.Context, s *Session) error {
	return r.Update(ctx, s)
}

func (r *RedisStore) Get(ctx context.Context, token string) (*Session, error) {
	id, err := r.client.Get(ctx, r.tokenKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Join(ErrStoreFailed, err)
	}

	s, err := r.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Token != token {
		return nil, ErrNotFound
	}
	if s.IsExpired() {
		return nil, ErrExpired
	}
	return s, nil
}

func (r *RedisStore) Update(ctx context.Context, s *Session) error {
	ttl := s.TTL()
	if ttl <= 0 {
		return ErrExpired
	}

	data, err := json.Marshal(s)
	if err != nil {
		return errors.Join(ErrStoreFailed, err)
	}

	prev, err := r.load(ctx, s.ID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		if prev != nil && prev.Token != s.Token {
			p.Del(ctx, r.tokenKey(prev.Token))
		}
		if prev != nil && prev.UserID != "" && prev.UserID != s.UserID {
			p.SRem(ctx, r.userKey(prev.UserID), s.ID)
		}
		p.Set(ctx, r.idKey(s.ID), data, ttl)
		p.Set(ctx, r.tokenKey(s.Token), s.ID, ttl)
		if s.UserID != "" {
			p.SAdd(ctx, r.userKey(s.UserID), s.ID)
		}
		return nil
	})
	if err != nil {
		return errors.Join(ErrStoreFailed, err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	s, err := r.load(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, r.idKey(id), r.tokenKey(s.Token))
		if s.UserID != "" {
			p.SRem(ctx, r.userKey(s.UserID), id)
		}
		return nil
	})
	if err != nil {
		return errors.Join(ErrStoreFailed, err)
	}
	return nil
}

func (r *RedisStore) DeleteByUserID(ctx context.Context, userID string) error {
	ids, err := r.client.SMembers(ctx, r.userKey(userID)).Result()
	if err != nil {
		return errors.Join(ErrStoreFailed, err)
	}
	for _, id := range ids {
		if err := r.Delete(ctx, id); err != nil {
			return err
		}
	}
	if err := r.client.Del(ctx, r.userKey(userID)).Err(); err != nil {
		return errors.Join(ErrStoreFailed, err)
	}
	return nil
}

func (r *RedisStore) load(ctx context.Context, id string) (*Session, error) {
	data, err := r.client.Get(ctx, r.idKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Join(ErrStoreFailed, err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Join(ErrStoreFailed, err)
	}
	if s.Values == nil {
		s.Values = make(map[string]string)
	}
	return &s, nil
}
