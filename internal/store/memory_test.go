package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUser(username, sub string) *User {
	return &User{
		ID:           "id-" + username,
		Username:     username,
		AuthProvider: AuthProviderOIDC,
		OIDCSub:      sub,
		Email:        username + "@example.com",
		CreatedAt:    time.Now(),
	}
}

func TestMemoryStoreCreateAndFind(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	user := newTestUser("alice", "sub-alice")
	require.NoError(t, s.Create(ctx, user))

	byName, err := s.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byName.ID)

	bySub, err := s.FindBySubject(ctx, "sub-alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, bySub.ID)
}

func TestMemoryStoreNotFound(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.FindByUsername(ctx, "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = s.FindBySubject(ctx, "no-such-sub")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestMemoryStoreUniqueness(t *testing.T) {
	t.Parallel()

	t.Run("duplicate username", func(t *testing.T) {
		t.Parallel()

		s := NewMemoryStore()
		ctx := context.Background()

		require.NoError(t, s.Create(ctx, newTestUser("bob", "sub-1")))
		err := s.Create(ctx, newTestUser("bob", "sub-2"))
		assert.ErrorIs(t, err, ErrUserExists)
	})

	t.Run("duplicate subject", func(t *testing.T) {
		t.Parallel()

		s := NewMemoryStore()
		ctx := context.Background()

		require.NoError(t, s.Create(ctx, newTestUser("carol", "sub-shared")))
		err := s.Create(ctx, newTestUser("carol2", "sub-shared"))
		assert.ErrorIs(t, err, ErrUserExists)
	})

	t.Run("local users without subject do not collide", func(t *testing.T) {
		t.Parallel()

		s := NewMemoryStore()
		ctx := context.Background()

		u1 := newTestUser("dave", "")
		u1.AuthProvider = AuthProviderLocal
		u2 := newTestUser("erin", "")
		u2.AuthProvider = AuthProviderLocal

		require.NoError(t, s.Create(ctx, u1))
		require.NoError(t, s.Create(ctx, u2))
	})
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, newTestUser("frank", "sub-frank")))

	first, err := s.FindByUsername(ctx, "frank")
	require.NoError(t, err)
	first.Email = "tampered@example.com"

	second, err := s.FindByUsername(ctx, "frank")
	require.NoError(t, err)
	assert.Equal(t, "frank@example.com", second.Email)
}

func TestUserIsFederated(t *testing.T) {
	t.Parallel()

	assert.True(t, (&User{AuthProvider: AuthProviderOIDC}).IsFederated())
	assert.False(t, (&User{AuthProvider: AuthProviderLocal}).IsFederated())
}
