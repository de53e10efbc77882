package config

import (
	"fmt"
	"time"
)

// Store backend types.
const (
	StoreTypeMemory = "memory"
	StoreTypeRedis  = "redis"
)

// Config is the top-level service configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server" json:"server"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
	Auth    AuthConfig    `yaml:"auth" json:"auth"`
	Store   StoreConfig   `yaml:"store" json:"store"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// ListenAddress is the address the HTTP server binds to.
	ListenAddress string `yaml:"listenAddress" json:"listenAddress"`

	// ReadTimeout is the maximum duration for reading a request.
	ReadTimeout Duration `yaml:"readTimeout" json:"readTimeout"`

	// WriteTimeout is the maximum duration for writing a response.
	WriteTimeout Duration `yaml:"writeTimeout" json:"writeTimeout"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout Duration `yaml:"shutdownTimeout" json:"shutdownTimeout"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level" json:"level"`

	// Format is the log encoding (json or console).
	Format string `yaml:"format" json:"format"`
}

// AuthConfig groups the two token validation paths.
type AuthConfig struct {
	Local LocalAuthConfig `yaml:"local" json:"local"`
	OIDC  OIDCConfig      `yaml:"oidc" json:"oidc"`
}

// LocalAuthConfig configures local session token verification.
type LocalAuthConfig struct {
	// Enabled turns the local fast path on.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Secret is the HMAC signing secret for local tokens.
	Secret string `yaml:"secret" json:"secret"`

	// Issuer is the issuer claim on local tokens.
	Issuer string `yaml:"issuer" json:"issuer"`

	// TokenTTL is the lifetime of issued tokens.
	TokenTTL Duration `yaml:"tokenTTL" json:"tokenTTL"`
}

// OIDCConfig configures the federated identity provider.
type OIDCConfig struct {
	// Issuer is the externally advertised issuer URL.
	Issuer string `yaml:"issuer" json:"issuer"`

	// DiscoveryBaseURL overrides where discovery is fetched from, for
	// routing discovery calls over an internal network path.
	DiscoveryBaseURL string `yaml:"discoveryBaseURL" json:"discoveryBaseURL"`

	// Audience is the expected audience or client ID.
	Audience string `yaml:"audience" json:"audience"`

	// UsernameClaim is consulted first when deriving a username.
	UsernameClaim string `yaml:"usernameClaim" json:"usernameClaim"`

	// OpaqueTokenPrefix, when set, is required of opaque token candidates.
	OpaqueTokenPrefix string `yaml:"opaqueTokenPrefix" json:"opaqueTokenPrefix"`

	// OpaqueTokenMinLength is the minimum length for opaque candidates.
	OpaqueTokenMinLength int `yaml:"opaqueTokenMinLength" json:"opaqueTokenMinLength"`

	// CacheTTL is the TTL for the discovery and key-set caches.
	CacheTTL Duration `yaml:"cacheTTL" json:"cacheTTL"`

	// HTTPTimeout is the timeout for each individual provider call.
	HTTPTimeout Duration `yaml:"httpTimeout" json:"httpTimeout"`

	// RefreshDeadline bounds one whole key-set refresh.
	RefreshDeadline Duration `yaml:"refreshDeadline" json:"refreshDeadline"`

	// AllowedAlgorithms restricts accepted signing algorithms.
	AllowedAlgorithms []string `yaml:"allowedAlgorithms" json:"allowedAlgorithms"`
}

// StoreConfig configures user persistence.
type StoreConfig struct {
	// Type selects the backend (memory or redis).
	Type string `yaml:"type" json:"type"`

	// Redis configures the redis backend.
	Redis RedisConfig `yaml:"redis" json:"redis"`
}

// RedisConfig configures the redis user store.
type RedisConfig struct {
	// Address is the redis server address.
	Address string `yaml:"address" json:"address"`

	// Password is the redis password, when required.
	Password string `yaml:"password" json:"password"`

	// DB is the redis database number.
	DB int `yaml:"db" json:"db"`

	// KeyPrefix namespaces all keys written by the store.
	KeyPrefix string `yaml:"keyPrefix" json:"keyPrefix"`
}

// DefaultConfig returns a configuration with sensible defaults. The OIDC
// issuer and audience have no defaults and must be set explicitly.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddress:   ":8080",
			ReadTimeout:     Duration(10 * time.Second),
			WriteTimeout:    Duration(10 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Auth: AuthConfig{
			Local: LocalAuthConfig{
				Issuer:   "authd",
				TokenTTL: Duration(30 * time.Minute),
			},
			OIDC: OIDCConfig{
				UsernameClaim:        "preferred_username",
				OpaqueTokenMinLength: 20,
				CacheTTL:             Duration(time.Hour),
				HTTPTimeout:          Duration(10 * time.Second),
				RefreshDeadline:      Duration(15 * time.Second),
			},
		},
		Store: StoreConfig{
			Type: StoreTypeMemory,
			Redis: RedisConfig{
				Address:   "localhost:6379",
				KeyPrefix: "authd:",
			},
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.ListenAddress == "" {
		return fmt.Errorf("server: listen address is required")
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging: invalid level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("logging: invalid format %q", c.Logging.Format)
	}

	if c.Auth.Local.Enabled {
		if c.Auth.Local.Secret == "" {
			return fmt.Errorf("auth.local: secret is required when enabled")
		}
		if c.Auth.Local.Issuer == "" {
			return fmt.Errorf("auth.local: issuer is required when enabled")
		}
	}

	if c.Auth.OIDC.Issuer == "" {
		return fmt.Errorf("auth.oidc: issuer is required")
	}
	if c.Auth.OIDC.Audience == "" {
		return fmt.Errorf("auth.oidc: audience is required")
	}

	switch c.Store.Type {
	case StoreTypeMemory:
	case StoreTypeRedis:
		if c.Store.Redis.Address == "" {
			return fmt.Errorf("store.redis: address is required")
		}
	default:
		return fmt.Errorf("store: invalid type %q", c.Store.Type)
	}

	return nil
}
