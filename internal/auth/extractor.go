package auth

import (
	"net/http"
	"strings"
)

// DefaultAuthorizationHeader is the header the extractor reads by default.
const DefaultAuthorizationHeader = "Authorization"

const bearerScheme = "bearer"

// Extractor pulls the bearer credential out of an HTTP request.
type Extractor struct {
	header string
}

// ExtractorOption is a functional option for the extractor.
type ExtractorOption func(*Extractor)

// WithAuthorizationHeader overrides the header the credential is read from.
func WithAuthorizationHeader(header string) ExtractorOption {
	return func(e *Extractor) {
		e.header = header
	}
}

// NewExtractor creates a new bearer token extractor.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{header: DefaultAuthorizationHeader}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the bearer token from the request, or false when the
// header is absent or not a bearer credential.
func (e *Extractor) Extract(r *http.Request) (string, bool) {
	value := strings.TrimSpace(r.Header.Get(e.header))
	if value == "" {
		return "", false
	}

	scheme, token, found := strings.Cut(value, " ")
	if !found || !strings.EqualFold(scheme, bearerScheme) {
		return "", false
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}

	return token, true
}
