package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quillstash/hybridauth/internal/observability"
)

// DiscoveryDocument represents an OIDC discovery document.
type DiscoveryDocument struct {
	// Issuer is the issuer identifier.
	Issuer string `json:"issuer"`

	// AuthorizationEndpoint is the authorization endpoint URL.
	AuthorizationEndpoint string `json:"authorization_endpoint,omitempty"`

	// TokenEndpoint is the token endpoint URL.
	TokenEndpoint string `json:"token_endpoint,omitempty"`

	// UserinfoEndpoint is the userinfo endpoint URL.
	UserinfoEndpoint string `json:"userinfo_endpoint,omitempty"`

	// JWKSURI is the key-set endpoint URL.
	JWKSURI string `json:"jwks_uri,omitempty"`

	// IntrospectionEndpoint is the token introspection endpoint URL.
	IntrospectionEndpoint string `json:"introspection_endpoint,omitempty"`

	// EndSessionEndpoint is the end session endpoint URL.
	EndSessionEndpoint string `json:"end_session_endpoint,omitempty"`

	// ScopesSupported is the list of supported scopes.
	ScopesSupported []string `json:"scopes_supported,omitempty"`

	// ClaimsSupported is the list of supported claims.
	ClaimsSupported []string `json:"claims_supported,omitempty"`
}

type discoveryEntry struct {
	document  *DiscoveryDocument
	fetchedAt time.Time
}

// DiscoveryCache fetches and caches the provider's discovery document.
//
// Reads are lock-free; a briefly stale read during a concurrent refresh is
// acceptable. Refreshes run under a mutex with a freshness re-check after
// acquisition, so racing callers trigger at most one upstream fetch.
type DiscoveryCache struct {
	url        string
	ttl        time.Duration
	httpClient *http.Client
	breaker    *providerBreaker
	logger     observability.Logger
	metrics    *Metrics
	now        func() time.Time

	entry atomic.Pointer[discoveryEntry]
	mu    sync.Mutex
}

// DiscoveryCacheOption is a functional option for the discovery cache.
type DiscoveryCacheOption func(*DiscoveryCache)

// WithDiscoveryHTTPClient sets the HTTP client.
func WithDiscoveryHTTPClient(client *http.Client) DiscoveryCacheOption {
	return func(c *DiscoveryCache) {
		c.httpClient = client
	}
}

// WithDiscoveryLogger sets the logger.
func WithDiscoveryLogger(logger observability.Logger) DiscoveryCacheOption {
	return func(c *DiscoveryCache) {
		c.logger = logger
	}
}

// WithDiscoveryMetrics sets the metrics.
func WithDiscoveryMetrics(metrics *Metrics) DiscoveryCacheOption {
	return func(c *DiscoveryCache) {
		c.metrics = metrics
	}
}

// WithDiscoveryClock sets the clock used for TTL checks.
func WithDiscoveryClock(now func() time.Time) DiscoveryCacheOption {
	return func(c *DiscoveryCache) {
		c.now = now
	}
}

// NewDiscoveryCache creates a new discovery cache.
func NewDiscoveryCache(config *Config, opts ...DiscoveryCacheOption) (*DiscoveryCache, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	ttl := config.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	timeout := config.HTTPTimeout
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}

	c := &DiscoveryCache{
		url:        config.DiscoveryURL(),
		ttl:        ttl,
		httpClient: &http.Client{Timeout: timeout},
		logger:     observability.NopLogger(),
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.metrics == nil {
		c.metrics = NewMetrics("authd")
	}
	if c.breaker == nil {
		c.breaker = newProviderBreaker("oidc-discovery", c.logger)
	}

	return c, nil
}

// Document returns the cached discovery document, refreshing it when its
// age exceeds the TTL.
func (c *DiscoveryCache) Document(ctx context.Context) (*DiscoveryDocument, error) {
	if entry := c.entry.Load(); entry != nil && c.now().Sub(entry.fetchedAt) < c.ttl {
		c.metrics.RecordDiscovery("cache_hit")
		return entry.document, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Re-check after acquiring the lock: a racing caller may have
	// refreshed the cache already.
	if entry := c.entry.Load(); entry != nil && c.now().Sub(entry.fetchedAt) < c.ttl {
		c.metrics.RecordDiscovery("cache_hit")
		return entry.document, nil
	}

	doc, err := c.fetch(ctx)
	if err != nil {
		c.metrics.RecordDiscovery("error")
		return nil, err
	}

	c.entry.Store(&discoveryEntry{document: doc, fetchedAt: c.now()})
	c.metrics.RecordDiscovery("success")

	return doc, nil
}

// fetch performs one discovery document fetch. Any failure leaves the
// cache unchanged.
func (c *DiscoveryCache) fetch(ctx context.Context) (*DiscoveryDocument, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, http.NoBody)
	if err != nil {
		return nil, NewFetchError(c.url, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.breaker.Do(c.httpClient, req)
	if err != nil {
		return nil, NewFetchError(c.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, NewFetchError(c.url, fmt.Errorf("discovery endpoint returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024*1024))
	if err != nil {
		return nil, NewFetchError(c.url, fmt.Errorf("failed to read response: %w", err))
	}

	var doc DiscoveryDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, NewFetchError(c.url, fmt.Errorf("failed to parse discovery document: %w", err))
	}

	c.logger.Debug("discovery document fetched",
		observability.String("url", c.url),
		observability.String("issuer", doc.Issuer),
		observability.Duration("duration", time.Since(start)),
	)

	return &doc, nil
}
