package auth

import (
	"time"

	"github.com/lestrrat-go/jwx/v3/jwt"
)

// Token types carried in the "typ" claim
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims wraps a parsed token with typed accessors for the custom claims
type Claims struct {
	Token jwt.Token
}

func (c *Claims) Subject() string {
	sub, _ := c.Token.Subject()
	return sub
}

func (c *Claims) Issuer() string {
	iss, _ := c.Token.Issuer()
	return iss
}

func (c *Claims) Expiration() time.Time {
	exp, _ := c.Token.Expiration()
	return exp
}

// SessionID returns the "sid" claim
func (c *Claims) SessionID() string {
	var sid any
	if c.Token.Get("sid", &sid) == nil {
		if s, ok := sid.(string); ok {
			return s
		}
	}
	return ""
}

// Role returns the "role" claim
func (c *Claims) Role() string {
	var role any
	if c.Token.Get("role", &role) == nil {
		if s, ok := role.(string); ok {
			return s
		}
	}
	return ""
}

// TokenType returns the "typ" claim
func (c *Claims) TokenType() string {
	var typ any
	if c.Token.Get("typ", &typ) == nil {
		if s, ok := typ.(string); ok {
			return s
		}
	}
	return ""
}

// Expired reports whether the token's expiration has passed
func (c *Claims) Expired() bool {
	exp := c.Expiration()
	return !exp.IsZero() && time.Now().After(exp)
}

// Validate checks the standard claims apart from the signature, which the
// KeyStore already verified.
func (c *Claims) Validate(issuer string) error {
	exp := c.Expiration()
	if exp.IsZero() {
		return ErrInvalidToken
	}
	if time.Now().After(exp) {
		return ErrTokenExpired
	}
	if issuer != "" && c.Issuer() != issuer {
		return ErrInvalidToken
	}
	return nil
}

// Identity is the verified request identity attached by the middleware
type Identity struct {
	UserID    string
	Role      string
	SessionID string
}
