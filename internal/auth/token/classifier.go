// Package token classifies inbound bearer tokens by shape so that no
// network call is spent on obvious garbage.
package token

import "strings"

// DefaultMinOpaqueLength is the minimum length for an opaque token candidate.
const DefaultMinOpaqueLength = 20

// Kind is the shape classification of a bearer token.
type Kind int

const (
	// KindInvalid indicates the token matches no recognized shape.
	KindInvalid Kind = iota

	// KindStructured indicates a three-segment signed token whose claims
	// can be inspected and verified locally.
	KindStructured

	// KindOpaque indicates a candidate provider token with no inspectable
	// structure, resolvable only by asking the issuing provider.
	KindOpaque
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindStructured:
		return "structured"
	case KindOpaque:
		return "opaque"
	default:
		return "invalid"
	}
}

// Classifier decides whether a token is structured, an opaque candidate,
// or invalid. It never performs I/O.
type Classifier struct {
	minOpaqueLength int
	opaquePrefix    string
}

// ClassifierOption is a functional option for the classifier.
type ClassifierOption func(*Classifier)

// WithMinOpaqueLength sets the minimum opaque-candidate length.
func WithMinOpaqueLength(n int) ClassifierOption {
	return func(c *Classifier) {
		if n > 0 {
			c.minOpaqueLength = n
		}
	}
}

// WithOpaquePrefix requires opaque candidates to start with the given prefix.
func WithOpaquePrefix(prefix string) ClassifierOption {
	return func(c *Classifier) {
		c.opaquePrefix = prefix
	}
}

// NewClassifier creates a new token classifier.
func NewClassifier(opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		minOpaqueLength: DefaultMinOpaqueLength,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Classify returns the shape classification for a token.
//
// A token is structured iff splitting on "." yields exactly three non-empty
// segments. Otherwise it is an opaque candidate only when it meets the
// minimum length and, when a prefix is configured, starts with it.
func (c *Classifier) Classify(token string) Kind {
	if token == "" {
		return KindInvalid
	}

	parts := strings.Split(token, ".")
	if len(parts) == 3 && parts[0] != "" && parts[1] != "" && parts[2] != "" {
		return KindStructured
	}

	if len(token) < c.minOpaqueLength {
		return KindInvalid
	}
	if c.opaquePrefix != "" && !strings.HasPrefix(token, c.opaquePrefix) {
		return KindInvalid
	}

	return KindOpaque
}
