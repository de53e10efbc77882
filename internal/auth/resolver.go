// Package auth resolves bearer tokens to user records. Local session
// tokens are checked first without any network traffic; everything else
// goes through the federated validator, with users auto-provisioned on
// their first federated login.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/quillstash/hybridauth/internal/auth/local"
	"github.com/quillstash/hybridauth/internal/auth/oidc"
	"github.com/quillstash/hybridauth/internal/observability"
	"github.com/quillstash/hybridauth/internal/store"
)

// Resolution outcomes recorded in metrics.
const (
	outcomeLocal       = "local"
	outcomeFederated   = "federated"
	outcomeProvisioned = "provisioned"
	outcomeFailed      = "failed"
)

// Resolver turns a bearer token into a user record.
type Resolver struct {
	local     *local.Verifier
	validator *oidc.Validator
	store     store.UserStore
	logger    observability.Logger
	metrics   *Metrics
	tracer    trace.Tracer
	now       func() time.Time
}

// ResolverOption is a functional option for the resolver.
type ResolverOption func(*Resolver)

// WithLocalVerifier enables the local token fast path.
func WithLocalVerifier(verifier *local.Verifier) ResolverOption {
	return func(r *Resolver) {
		r.local = verifier
	}
}

// WithResolverLogger sets the logger.
func WithResolverLogger(logger observability.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithResolverMetrics sets the metrics.
func WithResolverMetrics(metrics *Metrics) ResolverOption {
	return func(r *Resolver) {
		r.metrics = metrics
	}
}

// WithResolverClock sets the clock used for record timestamps.
func WithResolverClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		r.now = now
	}
}

// NewResolver creates a new identity resolver.
func NewResolver(validator *oidc.Validator, users store.UserStore, opts ...ResolverOption) (*Resolver, error) {
	if validator == nil {
		return nil, fmt.Errorf("token validator is required")
	}
	if users == nil {
		return nil, fmt.Errorf("user store is required")
	}

	r := &Resolver{
		validator: validator,
		store:     users,
		logger:    observability.NopLogger(),
		tracer:    otel.Tracer("hybridauth/auth"),
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.metrics == nil {
		r.metrics = NewMetrics("authd")
	}

	return r, nil
}

// Resolve verifies the bearer token and returns the matching user. Local
// tokens are tried first so the common case never pays federation
// latency. All failures collapse into ErrAuthenticationFailed; the
// underlying cause is logged, never returned.
func (r *Resolver) Resolve(ctx context.Context, bearer string) (*store.User, error) {
	start := time.Now()

	ctx, span := r.tracer.Start(ctx, "auth.resolve")
	defer span.End()

	if bearer == "" {
		r.metrics.RecordResolve(outcomeFailed, time.Since(start))
		return nil, ErrAuthenticationFailed
	}

	if user, ok := r.resolveLocal(ctx, bearer); ok {
		r.metrics.RecordResolve(outcomeLocal, time.Since(start))
		return user, nil
	}

	user, provisioned, err := r.resolveFederated(ctx, bearer)
	if err != nil {
		span.RecordError(err)
		r.logger.WithContext(ctx).Debug("authentication failed",
			observability.Error(err),
		)
		r.metrics.RecordResolve(outcomeFailed, time.Since(start))
		return nil, ErrAuthenticationFailed
	}

	outcome := outcomeFederated
	if provisioned {
		outcome = outcomeProvisioned
	}
	r.metrics.RecordResolve(outcome, time.Since(start))

	return user, nil
}

// resolveLocal tries the token as a locally issued session token. Any
// failure here simply falls through to the federated path.
func (r *Resolver) resolveLocal(ctx context.Context, bearer string) (*store.User, bool) {
	if r.local == nil {
		return nil, false
	}

	username, err := r.local.Verify(ctx, bearer)
	if err != nil {
		return nil, false
	}

	user, err := r.store.FindByUsername(ctx, username)
	if err != nil {
		return nil, false
	}
	if user.IsFederated() {
		// A local token naming a federated user is not honored.
		return nil, false
	}

	return user, true
}

// resolveFederated validates the token against the identity provider and
// returns the matching user, provisioning one on first login when a
// username is derivable.
func (r *Resolver) resolveFederated(ctx context.Context, bearer string) (*store.User, bool, error) {
	claims, err := r.validator.Validate(ctx, bearer)
	if err != nil {
		return nil, false, err
	}

	user, err := r.store.FindBySubject(ctx, claims.Subject)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, store.ErrUserNotFound) {
		return nil, false, err
	}

	if claims.Username == "" {
		return nil, false, fmt.Errorf("no username derivable for subject %q", claims.Subject)
	}

	user = &store.User{
		ID:           uuid.NewString(),
		Username:     claims.Username,
		AuthProvider: store.AuthProviderOIDC,
		OIDCSub:      claims.Subject,
		Email:        claims.Email,
		CreatedAt:    r.now(),
	}

	if err := r.store.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrUserExists) {
			// Lost a first-login race; the row exists now, so retry as
			// a lookup.
			existing, lookupErr := r.store.FindBySubject(ctx, claims.Subject)
			if lookupErr != nil {
				return nil, false, fmt.Errorf("user exists but lookup failed: %w", lookupErr)
			}
			return existing, false, nil
		}
		return nil, false, err
	}

	r.logger.WithContext(ctx).Info("user auto-provisioned on first federated login",
		observability.String("user_id", user.ID),
		observability.String("username", user.Username),
	)
	r.metrics.RecordProvisioned()

	return user, true, nil
}
