package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Auth.OIDC.Issuer = "https://idp.example.com"
	cfg.Auth.OIDC.Audience = "my-client"
	return cfg
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing listen address",
			mutate:  func(c *Config) { c.Server.ListenAddress = "" },
			wantErr: "listen address",
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "invalid level",
		},
		{
			name:    "invalid log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "invalid format",
		},
		{
			name:    "local enabled without secret",
			mutate:  func(c *Config) { c.Auth.Local.Enabled = true },
			wantErr: "secret is required",
		},
		{
			name:    "missing oidc issuer",
			mutate:  func(c *Config) { c.Auth.OIDC.Issuer = "" },
			wantErr: "issuer is required",
		},
		{
			name:    "missing oidc audience",
			mutate:  func(c *Config) { c.Auth.OIDC.Audience = "" },
			wantErr: "audience is required",
		},
		{
			name:    "invalid store type",
			mutate:  func(c *Config) { c.Store.Type = "postgres" },
			wantErr: "invalid type",
		},
		{
			name: "redis store without address",
			mutate: func(c *Config) {
				c.Store.Type = StoreTypeRedis
				c.Store.Redis.Address = ""
			},
			wantErr: "address is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	assert.Equal(t, ":8080", cfg.Server.ListenAddress)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, StoreTypeMemory, cfg.Store.Type)
	assert.Equal(t, "preferred_username", cfg.Auth.OIDC.UsernameClaim)
	assert.Equal(t, 20, cfg.Auth.OIDC.OpaqueTokenMinLength)
	assert.False(t, cfg.Auth.Local.Enabled)

	// Provider identity has no default.
	assert.Empty(t, cfg.Auth.OIDC.Issuer)
	assert.Empty(t, cfg.Auth.OIDC.Audience)
}
