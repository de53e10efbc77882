package oidc

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"
)

// testProvider is an in-process identity provider serving a discovery
// document, a key set, and a userinfo endpoint.
type testProvider struct {
	server *httptest.Server

	privateKey jwk.Key
	publicSet  jwk.Set

	userinfoStatus int
	userinfoBody   map[string]interface{}
	omitUserinfo   bool
	omitJWKSURI    bool

	discoveryCalls atomic.Int32
	jwksCalls      atomic.Int32
	userinfoCalls  atomic.Int32
}

func newSigningKey(t *testing.T, kid string) jwk.Key {
	t.Helper()

	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	key, err := jwk.FromRaw(raw)
	require.NoError(t, err)
	require.NoError(t, key.Set(jwk.KeyIDKey, kid))
	require.NoError(t, key.Set(jwk.AlgorithmKey, jwa.RS256))

	return key
}

func newTestProvider(t *testing.T) *testProvider {
	t.Helper()

	p := &testProvider{
		privateKey:     newSigningKey(t, "test-key"),
		userinfoStatus: http.StatusOK,
	}

	pub, err := p.privateKey.PublicKey()
	require.NoError(t, err)
	p.publicSet = jwk.NewSet()
	require.NoError(t, p.publicSet.AddKey(pub))

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		p.discoveryCalls.Add(1)

		doc := DiscoveryDocument{Issuer: p.server.URL}
		if !p.omitJWKSURI {
			doc.JWKSURI = p.server.URL + "/keys"
		}
		if !p.omitUserinfo {
			doc.UserinfoEndpoint = p.server.URL + "/userinfo"
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(doc)
	})
	mux.HandleFunc("/keys", func(w http.ResponseWriter, r *http.Request) {
		p.jwksCalls.Add(1)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(p.publicSet)
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		p.userinfoCalls.Add(1)

		if p.userinfoStatus != http.StatusOK {
			w.WriteHeader(p.userinfoStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(p.userinfoBody)
	})

	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)

	return p
}

func (p *testProvider) config() *Config {
	cfg := &Config{
		Issuer:   p.server.URL,
		Audience: "test-client",
	}
	cfg.SetDefaults()
	return cfg
}

// signToken signs a token with the provider's key. Standard claims default
// to a currently valid token for the provider's issuer and the test
// audience; overrides replace or, when nil, remove a claim.
func (p *testProvider) signToken(t *testing.T, overrides map[string]interface{}) string {
	t.Helper()

	claims := map[string]interface{}{
		"iss":                p.server.URL,
		"sub":                "user-123",
		"aud":                "test-client",
		"iat":                time.Now().Add(-time.Minute),
		"exp":                time.Now().Add(time.Hour),
		"preferred_username": "alice",
		"email":              "alice@example.com",
	}
	for k, v := range overrides {
		if v == nil {
			delete(claims, k)
			continue
		}
		claims[k] = v
	}

	builder := jwt.NewBuilder()
	for k, v := range claims {
		builder = builder.Claim(k, v)
	}
	tok, err := builder.Build()
	require.NoError(t, err)

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, p.privateKey))
	require.NoError(t, err)

	return string(signed)
}
