package oidc

import (
	"errors"
	"strings"
	"time"

	"github.com/quillstash/hybridauth/internal/auth/token"
)

// Defaults for provider configuration.
const (
	// DefaultCacheTTL is the TTL for cached discovery documents and key sets.
	DefaultCacheTTL = time.Hour

	// DefaultHTTPTimeout is the timeout for each individual provider call.
	DefaultHTTPTimeout = 10 * time.Second

	// DefaultRefreshDeadline bounds a whole key-set refresh, covering both
	// the discovery fetch and the key fetch.
	DefaultRefreshDeadline = 15 * time.Second

	// DefaultUsernameClaim is the claim consulted first for a username.
	DefaultUsernameClaim = "preferred_username"
)

// defaultAllowedAlgorithms are the signing algorithms accepted on the
// remote path. Symmetric algorithms are excluded: provider keys are
// public keys, and accepting HS* would let a token be forged with the
// published key material.
var defaultAllowedAlgorithms = []string{
	"RS256", "RS384", "RS512",
	"PS256", "PS384", "PS512",
	"ES256", "ES384", "ES512",
	"EdDSA",
}

// Config represents the OIDC provider configuration.
type Config struct {
	// Issuer is the externally advertised issuer URL, required of every
	// validated token.
	Issuer string

	// DiscoveryBaseURL overrides where the discovery document is fetched
	// from, allowing discovery calls to be routed over an internal network
	// path. Defaults to Issuer.
	DiscoveryBaseURL string

	// Audience is the expected audience or client ID.
	Audience string

	// UsernameClaim is the claim consulted first when deriving a username.
	UsernameClaim string

	// OpaqueTokenPrefix, when set, is required of opaque token candidates.
	OpaqueTokenPrefix string

	// OpaqueTokenMinLength is the minimum length for opaque candidates.
	OpaqueTokenMinLength int

	// CacheTTL is the TTL for the discovery and key-set caches.
	CacheTTL time.Duration

	// HTTPTimeout is the timeout for each individual provider call.
	HTTPTimeout time.Duration

	// RefreshDeadline bounds one whole key-set refresh.
	RefreshDeadline time.Duration

	// AllowedAlgorithms restricts accepted signing algorithms.
	AllowedAlgorithms []string
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Issuer == "" {
		return errors.New("issuer is required")
	}
	if c.Audience == "" {
		return errors.New("audience is required")
	}
	return nil
}

// SetDefaults fills in unset fields.
func (c *Config) SetDefaults() {
	if c.DiscoveryBaseURL == "" {
		c.DiscoveryBaseURL = c.Issuer
	}
	if c.UsernameClaim == "" {
		c.UsernameClaim = DefaultUsernameClaim
	}
	if c.OpaqueTokenMinLength <= 0 {
		c.OpaqueTokenMinLength = token.DefaultMinOpaqueLength
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = DefaultHTTPTimeout
	}
	if c.RefreshDeadline <= 0 {
		c.RefreshDeadline = DefaultRefreshDeadline
	}
	if len(c.AllowedAlgorithms) == 0 {
		c.AllowedAlgorithms = append([]string(nil), defaultAllowedAlgorithms...)
	}
}

// DiscoveryURL returns the full discovery document URL.
func (c *Config) DiscoveryURL() string {
	base := c.DiscoveryBaseURL
	if base == "" {
		base = c.Issuer
	}
	return strings.TrimSuffix(base, "/") + "/.well-known/openid-configuration"
}

// AlgorithmAllowed reports whether alg is in the allowed set.
func (c *Config) AlgorithmAllowed(alg string) bool {
	for _, allowed := range c.AllowedAlgorithms {
		if alg == allowed {
			return true
		}
	}
	return false
}
