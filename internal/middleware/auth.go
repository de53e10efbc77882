package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quillstash/hybridauth/internal/auth"
	"github.com/quillstash/hybridauth/internal/observability"
	"github.com/quillstash/hybridauth/internal/store"
)

// UserContextKey is the gin context key the authenticated user is stored
// under.
const UserContextKey = "auth_user"

// IdentityResolver resolves a bearer token to a user record.
type IdentityResolver interface {
	Resolve(ctx context.Context, bearer string) (*store.User, error)
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	// Resolver resolves bearer tokens to users. Required.
	Resolver IdentityResolver

	// Extractor pulls the credential out of the request. Defaults to the
	// standard Authorization bearer header.
	Extractor *auth.Extractor

	// SkipPaths are request paths that bypass authentication.
	SkipPaths []string

	// Logger is used for failure logging.
	Logger observability.Logger
}

// Auth returns a middleware that authenticates every request. Failures
// produce one uniform 401 body regardless of cause.
func Auth(config AuthConfig) gin.HandlerFunc {
	extractor := config.Extractor
	if extractor == nil {
		extractor = auth.NewExtractor()
	}
	logger := config.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}

	skip := make(map[string]bool, len(config.SkipPaths))
	for _, path := range config.SkipPaths {
		skip[path] = true
	}

	return func(c *gin.Context) {
		if skip[c.Request.URL.Path] {
			c.Next()
			return
		}

		bearer, ok := extractor.Extract(c.Request)
		if !ok {
			unauthorized(c)
			return
		}

		user, err := config.Resolver.Resolve(c.Request.Context(), bearer)
		if err != nil {
			logger.WithContext(c.Request.Context()).Debug("request authentication failed",
				observability.String("path", c.Request.URL.Path),
			)
			unauthorized(c)
			return
		}

		c.Set(UserContextKey, user)
		c.Next()
	}
}

// UserFromContext returns the authenticated user stored by the auth
// middleware.
func UserFromContext(c *gin.Context) (*store.User, bool) {
	value, exists := c.Get(UserContextKey)
	if !exists {
		return nil, false
	}
	user, ok := value.(*store.User)
	return user, ok
}

func unauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": "authentication failed",
	})
}
