package oidc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"

	"github.com/quillstash/hybridauth/internal/observability"
)

type keySetEntry struct {
	set       jwk.Set
	fetchedAt time.Time
}

// KeySetCache fetches and caches the provider's signing keys, using the
// discovery cache for the key-set URI.
//
// It follows the same caching discipline as DiscoveryCache with an
// independent lock. One whole refresh (discovery + key fetch) runs under
// a single overall deadline, so two slow sequential calls cannot jointly
// exceed the budget.
type KeySetCache struct {
	discovery       *DiscoveryCache
	ttl             time.Duration
	refreshDeadline time.Duration
	httpClient      *http.Client
	breaker         *providerBreaker
	logger          observability.Logger
	metrics         *Metrics
	now             func() time.Time

	entry atomic.Pointer[keySetEntry]
	mu    sync.Mutex
}

// KeySetCacheOption is a functional option for the key-set cache.
type KeySetCacheOption func(*KeySetCache)

// WithKeySetHTTPClient sets the HTTP client.
func WithKeySetHTTPClient(client *http.Client) KeySetCacheOption {
	return func(c *KeySetCache) {
		c.httpClient = client
	}
}

// WithKeySetLogger sets the logger.
func WithKeySetLogger(logger observability.Logger) KeySetCacheOption {
	return func(c *KeySetCache) {
		c.logger = logger
	}
}

// WithKeySetMetrics sets the metrics.
func WithKeySetMetrics(metrics *Metrics) KeySetCacheOption {
	return func(c *KeySetCache) {
		c.metrics = metrics
	}
}

// WithKeySetClock sets the clock used for TTL checks.
func WithKeySetClock(now func() time.Time) KeySetCacheOption {
	return func(c *KeySetCache) {
		c.now = now
	}
}

// NewKeySetCache creates a new key-set cache.
func NewKeySetCache(config *Config, discovery *DiscoveryCache, opts ...KeySetCacheOption) (*KeySetCache, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if discovery == nil {
		return nil, fmt.Errorf("discovery cache is required")
	}

	ttl := config.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	deadline := config.RefreshDeadline
	if deadline <= 0 {
		deadline = DefaultRefreshDeadline
	}

	timeout := config.HTTPTimeout
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}

	c := &KeySetCache{
		discovery:       discovery,
		ttl:             ttl,
		refreshDeadline: deadline,
		httpClient:      &http.Client{Timeout: timeout},
		logger:          observability.NopLogger(),
		now:             time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.metrics == nil {
		c.metrics = NewMetrics("authd")
	}
	if c.breaker == nil {
		c.breaker = newProviderBreaker("oidc-keyset", c.logger)
	}

	return c, nil
}

// Key returns the signing key with the given key id from the (possibly
// refreshed) key set. A kid absent from the current set fails with
// ErrUnknownKeyID; no fallback refresh is attempted.
func (c *KeySetCache) Key(ctx context.Context, kid string) (jwk.Key, error) {
	set, err := c.Set(ctx)
	if err != nil {
		return nil, err
	}

	key, ok := set.LookupKeyID(kid)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKeyID, kid)
	}

	return key, nil
}

// Set returns the cached key set, refreshing it when its age exceeds the
// TTL.
func (c *KeySetCache) Set(ctx context.Context) (jwk.Set, error) {
	if entry := c.entry.Load(); entry != nil && c.now().Sub(entry.fetchedAt) < c.ttl {
		c.metrics.RecordKeySet("cache_hit")
		return entry.set, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if entry := c.entry.Load(); entry != nil && c.now().Sub(entry.fetchedAt) < c.ttl {
		c.metrics.RecordKeySet("cache_hit")
		return entry.set, nil
	}

	set, err := c.refresh(ctx)
	if err != nil {
		c.metrics.RecordKeySet("error")
		return nil, err
	}

	c.entry.Store(&keySetEntry{set: set, fetchedAt: c.now()})
	c.metrics.RecordKeySet("success")

	return set, nil
}

// refresh performs one whole key-set refresh under the overall deadline.
// Any failure leaves the cache unchanged.
func (c *KeySetCache) refresh(ctx context.Context) (jwk.Set, error) {
	start := time.Now()

	rctx, cancel := context.WithTimeout(ctx, c.refreshDeadline)
	defer cancel()

	doc, err := c.discovery.Document(rctx)
	if err != nil {
		return nil, c.deadlineOr(rctx, err)
	}

	if doc.JWKSURI == "" {
		return nil, NewConfigError("jwks_uri", "discovery document has no key-set URI")
	}

	req, err := http.NewRequestWithContext(rctx, http.MethodGet, doc.JWKSURI, http.NoBody)
	if err != nil {
		return nil, NewFetchError(doc.JWKSURI, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.breaker.Do(c.httpClient, req)
	if err != nil {
		return nil, c.deadlineOr(rctx, NewFetchError(doc.JWKSURI, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, NewFetchError(doc.JWKSURI, fmt.Errorf("key set endpoint returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024*1024))
	if err != nil {
		return nil, c.deadlineOr(rctx, NewFetchError(doc.JWKSURI, fmt.Errorf("failed to read response: %w", err)))
	}

	set, err := jwk.Parse(body)
	if err != nil {
		return nil, NewFetchError(doc.JWKSURI, fmt.Errorf("failed to parse key set: %w", err))
	}

	c.logger.Debug("key set refreshed",
		observability.String("url", doc.JWKSURI),
		observability.Int("keys", set.Len()),
		observability.Duration("duration", time.Since(start)),
	)

	return set, nil
}

// deadlineOr maps refresh-deadline exhaustion to ErrRefreshDeadline so it
// stays distinguishable from an ordinary fetch failure.
func (c *KeySetCache) deadlineOr(rctx context.Context, err error) error {
	if errors.Is(rctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrRefreshDeadline, c.refreshDeadline)
	}
	return err
}
