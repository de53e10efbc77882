package oidc

// Claims carries the identity assertions extracted from a validated token
// or userinfo response.
type Claims struct {
	// Subject is the federated subject identifier.
	Subject string

	// Issuer is the token issuer, when known.
	Issuer string

	// Username is the derived candidate username. Empty when no username
	// is derivable.
	Username string

	// Email is the subject's email address, when present.
	Email string

	// Extra holds provider-specific claims not mapped to a named field.
	Extra map[string]interface{}
}

// StringClaim returns a claim value from Extra as a string.
func (c *Claims) StringClaim(name string) string {
	if c.Extra == nil {
		return ""
	}
	if s, ok := c.Extra[name].(string); ok {
		return s
	}
	return ""
}

// DeriveUsername picks a candidate username from a raw claim set: the
// named claim when non-empty, else the email claim, else empty.
func DeriveUsername(raw map[string]interface{}, usernameClaim string) string {
	if usernameClaim != "" {
		if s, ok := raw[usernameClaim].(string); ok && s != "" {
			return s
		}
	}
	if s, ok := raw["email"].(string); ok && s != "" {
		return s
	}
	return ""
}

// claimsFromRaw builds Claims from a raw claim map.
func claimsFromRaw(raw map[string]interface{}, usernameClaim string) *Claims {
	c := &Claims{
		Extra: make(map[string]interface{}, len(raw)),
	}

	for k, v := range raw {
		switch k {
		case "sub":
			if s, ok := v.(string); ok {
				c.Subject = s
			}
		case "iss":
			if s, ok := v.(string); ok {
				c.Issuer = s
			}
		case "email":
			if s, ok := v.(string); ok {
				c.Email = s
			}
		default:
			c.Extra[k] = v
		}
	}

	c.Username = DeriveUsername(raw, usernameClaim)

	return c
}
