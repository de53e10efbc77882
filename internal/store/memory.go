package store

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory UserStore, used for tests and single-node
// deployments without external storage.
type MemoryStore struct {
	mu         sync.RWMutex
	byUsername map[string]*User
	bySubject  map[string]*User
}

// NewMemoryStore creates a new in-memory user store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byUsername: make(map[string]*User),
		bySubject:  make(map[string]*User),
	}
}

// FindByUsername returns the user with the given username.
func (s *MemoryStore) FindByUsername(_ context.Context, username string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byUsername[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	return copyUser(user), nil
}

// FindBySubject returns the user with the given federated subject.
func (s *MemoryStore) FindBySubject(_ context.Context, sub string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.bySubject[sub]
	if !ok {
		return nil, ErrUserNotFound
	}
	return copyUser(user), nil
}

// Create inserts a new user. Username and subject uniqueness are enforced
// atomically under one lock.
func (s *MemoryStore) Create(_ context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byUsername[user.Username]; ok {
		return ErrUserExists
	}
	if user.OIDCSub != "" {
		if _, ok := s.bySubject[user.OIDCSub]; ok {
			return ErrUserExists
		}
	}

	stored := copyUser(user)
	s.byUsername[stored.Username] = stored
	if stored.OIDCSub != "" {
		s.bySubject[stored.OIDCSub] = stored
	}
	return nil
}

// Close releases store resources.
func (s *MemoryStore) Close() error {
	return nil
}

func copyUser(u *User) *User {
	c := *u
	return &c
}

// Ensure MemoryStore implements UserStore.
var _ UserStore = (*MemoryStore)(nil)
