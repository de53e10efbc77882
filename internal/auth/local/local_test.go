package local

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVerifier(t *testing.T, opts ...VerifierOption) *Verifier {
	t.Helper()

	v, err := NewVerifier(Config{
		Secret: "test-secret-please-rotate",
		Issuer: "https://auth.example",
	}, opts...)
	require.NoError(t, err)
	return v
}

func TestNewVerifier(t *testing.T) {
	t.Parallel()

	t.Run("missing secret returns error", func(t *testing.T) {
		t.Parallel()

		v, err := NewVerifier(Config{Issuer: "https://auth.example"})
		assert.Error(t, err)
		assert.Nil(t, v)
	})

	t.Run("missing issuer returns error", func(t *testing.T) {
		t.Parallel()

		v, err := NewVerifier(Config{Secret: "s"})
		assert.Error(t, err)
		assert.Nil(t, v)
	})
}

func TestIssueAndVerify(t *testing.T) {
	t.Parallel()

	v := newTestVerifier(t)

	token, err := v.Issue("alice")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	subject, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "alice", subject)
}

func TestIssueEmptySubject(t *testing.T) {
	t.Parallel()

	v := newTestVerifier(t)

	_, err := v.Issue("")
	assert.ErrorIs(t, err, ErrMissingSubject)
}

func TestVerifyRejections(t *testing.T) {
	t.Parallel()

	t.Run("garbage token", func(t *testing.T) {
		t.Parallel()

		v := newTestVerifier(t)
		_, err := v.Verify(context.Background(), "not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		t.Parallel()

		issuer, err := NewVerifier(Config{Secret: "other-secret", Issuer: "https://auth.example"})
		require.NoError(t, err)

		token, err := issuer.Issue("alice")
		require.NoError(t, err)

		v := newTestVerifier(t)
		_, err = v.Verify(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		t.Parallel()

		other, err := NewVerifier(Config{Secret: "test-secret-please-rotate", Issuer: "https://evil.example"})
		require.NoError(t, err)

		token, err := other.Issue("alice")
		require.NoError(t, err)

		v := newTestVerifier(t)
		_, err = v.Verify(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired token", func(t *testing.T) {
		t.Parallel()

		past := time.Now().Add(-2 * time.Hour)
		issuer := newTestVerifier(t, WithClock(func() time.Time { return past }))

		token, err := issuer.Issue("alice")
		require.NoError(t, err)

		v := newTestVerifier(t)
		_, err = v.Verify(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
