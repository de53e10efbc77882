// Package local issues and verifies the service's own short-lived session
// tokens. Verification is purely local and never touches the network.
package local

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/quillstash/hybridauth/internal/observability"
)

// DefaultTokenTTL is the default lifetime for issued tokens.
const DefaultTokenTTL = 30 * time.Minute

// Sentinel errors for local token operations.
var (
	// ErrInvalidToken indicates the token failed signature or claim checks.
	ErrInvalidToken = errors.New("invalid local token")

	// ErrMissingSubject indicates the token carries no subject.
	ErrMissingSubject = errors.New("local token has no subject")
)

// Config configures the local token signer/verifier.
type Config struct {
	// Secret is the shared HMAC signing secret.
	Secret string

	// Issuer is the issuer claim stamped on and required of local tokens.
	Issuer string

	// TokenTTL is the lifetime of issued tokens.
	TokenTTL time.Duration
}

// Verifier issues and verifies local HS256 tokens.
type Verifier struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
	logger observability.Logger
}

// VerifierOption is a functional option for the verifier.
type VerifierOption func(*Verifier)

// WithClock sets the clock used for issuance and validation.
func WithClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) {
		v.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) VerifierOption {
	return func(v *Verifier) {
		v.logger = logger
	}
}

// NewVerifier creates a new local token verifier.
func NewVerifier(cfg Config, opts ...VerifierOption) (*Verifier, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("signing secret is required")
	}
	if cfg.Issuer == "" {
		return nil, fmt.Errorf("issuer is required")
	}

	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	v := &Verifier{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    ttl,
		now:    time.Now,
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(v)
	}

	return v, nil
}

// Issue creates a signed token for the given subject.
func (v *Verifier) Issue(subject string) (string, error) {
	if subject == "" {
		return "", ErrMissingSubject
	}

	now := v.now()
	tok, err := jwt.NewBuilder().
		Issuer(v.issuer).
		Subject(subject).
		IssuedAt(now).
		Expiration(now.Add(v.ttl)).
		Build()
	if err != nil {
		return "", fmt.Errorf("failed to build token: %w", err)
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, v.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return string(signed), nil
}

// Verify checks the token's signature, issuer, and expiry, and returns the
// subject. All failures collapse to ErrInvalidToken; the detail is logged.
func (v *Verifier) Verify(ctx context.Context, token string) (string, error) {
	tok, err := jwt.Parse([]byte(token),
		jwt.WithKey(jwa.HS256, v.secret),
		jwt.WithValidate(true),
		jwt.WithIssuer(v.issuer),
		jwt.WithClock(jwt.ClockFunc(v.now)),
	)
	if err != nil {
		v.logger.WithContext(ctx).Debug("local token verification failed",
			observability.Error(err),
		)
		return "", ErrInvalidToken
	}

	subject := tok.Subject()
	if subject == "" {
		return "", ErrMissingSubject
	}

	return subject, nil
}
