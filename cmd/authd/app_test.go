package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillstash/hybridauth/internal/config"
	"github.com/quillstash/hybridauth/internal/observability"
	"github.com/quillstash/hybridauth/internal/store"
)

func writeTestConfigFile(t *testing.T) string {
	t.Helper()

	content := `
auth:
  oidc:
    issuer: https://idp.example.com
    audience: test-client
`
	path := filepath.Join(t.TempDir(), "authd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Auth.OIDC.Issuer = "https://idp.example.com"
	cfg.Auth.OIDC.Audience = "test-client"
	cfg.Auth.Local.Enabled = true
	cfg.Auth.Local.Secret = "0123456789abcdef0123456789abcdef"
	return cfg
}

func TestNewApplication(t *testing.T) {
	t.Parallel()

	app, err := newApplication(testConfig(), observability.NopLogger())
	require.NoError(t, err)
	require.NotNil(t, app.router)
	require.NotNil(t, app.resolver)
	t.Cleanup(func() { _ = app.users.Close() })
}

func TestNewApplicationInvalidStore(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Store.Type = "bogus"

	_, err := newApplication(cfg, observability.NopLogger())
	require.Error(t, err)
}

func TestRouterHealthz(t *testing.T) {
	t.Parallel()

	app, err := newApplication(testConfig(), observability.NopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.users.Close() })

	rec := httptest.NewRecorder()
	app.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestRouterMetrics(t *testing.T) {
	t.Parallel()

	app, err := newApplication(testConfig(), observability.NopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.users.Close() })

	rec := httptest.NewRecorder()
	app.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterMeRequiresAuth(t *testing.T) {
	t.Parallel()

	app, err := newApplication(testConfig(), observability.NopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.users.Close() })

	rec := httptest.NewRecorder()
	app.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/me", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRunShutsDownOnContextCancel(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Server.ListenAddress = "127.0.0.1:0"
	cfg.Server.ShutdownTimeout = config.Duration(time.Second)

	app, err := newApplication(cfg, observability.NopLogger())
	require.NoError(t, err)

	// Seed a user so the store is exercised on the way down.
	require.NoError(t, app.users.Create(context.Background(), &store.User{
		ID:           "u1",
		Username:     "alice",
		AuthProvider: store.AuthProviderLocal,
		CreatedAt:    time.Now(),
	}))

	path := writeTestConfigFile(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- app.run(ctx, path)
	}()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancellation")
	}
}
