package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillstash/hybridauth/internal/auth"
	"github.com/quillstash/hybridauth/internal/store"
)

// stubResolver resolves a fixed set of tokens.
type stubResolver struct {
	users map[string]*store.User
}

func (s *stubResolver) Resolve(_ context.Context, bearer string) (*store.User, error) {
	if user, ok := s.users[bearer]; ok {
		return user, nil
	}
	return nil, auth.ErrAuthenticationFailed
}

func newAuthRouter(resolver IdentityResolver, skipPaths ...string) *gin.Engine {
	router := gin.New()
	router.Use(Auth(AuthConfig{Resolver: resolver, SkipPaths: skipPaths}))
	router.GET("/me", func(c *gin.Context) {
		user, ok := UserFromContext(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"username": user.Username})
	})
	router.GET("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func TestAuthMiddlewareSuccess(t *testing.T) {
	t.Parallel()

	resolver := &stubResolver{users: map[string]*store.User{
		"good-token": {ID: "u1", Username: "alice"},
	}}
	router := newAuthRouter(resolver)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer good-token")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alice")
}

func TestAuthMiddlewareRejectsInvalidToken(t *testing.T) {
	t.Parallel()

	router := newAuthRouter(&stubResolver{})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer bad-token")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// The response body reveals nothing about the failure.
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "authentication failed", body["error"])
}

func TestAuthMiddlewareMissingHeader(t *testing.T) {
	t.Parallel()

	router := newAuthRouter(&stubResolver{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareSkipPaths(t *testing.T) {
	t.Parallel()

	router := newAuthRouter(&stubResolver{}, "/healthz")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUserFromContextAbsent(t *testing.T) {
	t.Parallel()

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, ok := UserFromContext(c)
	assert.False(t, ok)
}

// failingResolver always errors, regardless of token.
type failingResolver struct{}

func (failingResolver) Resolve(context.Context, string) (*store.User, error) {
	return nil, errors.New("store unavailable")
}

func TestAuthMiddlewareUniformFailureBody(t *testing.T) {
	t.Parallel()

	router := newAuthRouter(failingResolver{})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer whatever")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotContains(t, rec.Body.String(), "store unavailable")
}
