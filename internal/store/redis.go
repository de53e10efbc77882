package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/quillstash/hybridauth/internal/observability"
)

// Redis key layout:
//
//	<prefix>user:<id>            -> user JSON
//	<prefix>username:<username>  -> user ID
//	<prefix>subject:<sub>        -> user ID
const (
	redisUserKey     = "user:"
	redisUsernameKey = "username:"
	redisSubjectKey  = "subject:"
)

// RedisStore is a Redis-backed UserStore.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	logger    observability.Logger
}

// RedisStoreOption is a functional option for the Redis store.
type RedisStoreOption func(*RedisStore)

// WithRedisKeyPrefix sets the key prefix.
func WithRedisKeyPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) {
		s.keyPrefix = prefix
	}
}

// WithRedisLogger sets the logger.
func WithRedisLogger(logger observability.Logger) RedisStoreOption {
	return func(s *RedisStore) {
		s.logger = logger
	}
}

// NewRedisStore creates a new Redis-backed user store.
func NewRedisStore(client *redis.Client, opts ...RedisStoreOption) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}

	s := &RedisStore{
		client:    client,
		keyPrefix: "authd:",
		logger:    observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// FindByUsername returns the user with the given username.
func (s *RedisStore) FindByUsername(ctx context.Context, username string) (*User, error) {
	return s.findByIndex(ctx, s.keyPrefix+redisUsernameKey+username)
}

// FindBySubject returns the user with the given federated subject.
func (s *RedisStore) FindBySubject(ctx context.Context, sub string) (*User, error) {
	return s.findByIndex(ctx, s.keyPrefix+redisSubjectKey+sub)
}

func (s *RedisStore) findByIndex(ctx context.Context, indexKey string) (*User, error) {
	id, err := s.client.Get(ctx, indexKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read user index: %w", err)
	}

	data, err := s.client.Get(ctx, s.keyPrefix+redisUserKey+id).Result()
	if errors.Is(err, redis.Nil) {
		// Dangling index entry. Treat as not found.
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read user record: %w", err)
	}

	var user User
	if err := json.Unmarshal([]byte(data), &user); err != nil {
		return nil, fmt.Errorf("failed to decode user record: %w", err)
	}
	return &user, nil
}

// Create inserts a new user. Uniqueness is enforced with SETNX on the
// username and subject index keys; a lost race surfaces as ErrUserExists
// so the caller can fall back to a lookup.
func (s *RedisStore) Create(ctx context.Context, user *User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user record: %w", err)
	}

	usernameKey := s.keyPrefix + redisUsernameKey + user.Username

	ok, err := s.client.SetNX(ctx, usernameKey, user.ID, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to claim username: %w", err)
	}
	if !ok {
		return ErrUserExists
	}

	if user.OIDCSub != "" {
		subjectKey := s.keyPrefix + redisSubjectKey + user.OIDCSub
		ok, err = s.client.SetNX(ctx, subjectKey, user.ID, 0).Result()
		if err != nil || !ok {
			// Release the username claim before reporting the conflict.
			if delErr := s.client.Del(ctx, usernameKey).Err(); delErr != nil {
				s.logger.Warn("failed to roll back username index",
					observability.String("username", user.Username),
					observability.Error(delErr),
				)
			}
			if err != nil {
				return fmt.Errorf("failed to claim subject: %w", err)
			}
			return ErrUserExists
		}
	}

	if err := s.client.Set(ctx, s.keyPrefix+redisUserKey+user.ID, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write user record: %w", err)
	}

	s.logger.Debug("user created",
		observability.String("id", user.ID),
		observability.String("username", user.Username),
		observability.String("auth_provider", user.AuthProvider),
	)

	return nil
}

// Close closes the underlying Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ensure RedisStore implements UserStore.
var _ UserStore = (*RedisStore)(nil)
