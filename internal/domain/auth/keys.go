package auth

import (
	"crypto/rsa"
	"fmt"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"
)

// KeyStore holds the RSA signing key pair as JWKs
type KeyStore struct {
	private jwk.Key
	public  jwk.Key
}

// NewKeyStore wraps an RSA private key for RS256 signing and verification
func NewKeyStore(priv *rsa.PrivateKey, kid string) (*KeyStore, error) {
	key, err := jwk.Import(priv)
	if err != nil {
		return nil, fmt.Errorf("failed to import private key: %w", err)
	}

	if err := key.Set(jwk.KeyIDKey, kid); err != nil {
		return nil, fmt.Errorf("failed to set key ID: %w", err)
	}
	if err := key.Set(jwk.AlgorithmKey, jwa.RS256()); err != nil {
		return nil, fmt.Errorf("failed to set algorithm: %w", err)
	}

	pub, err := jwk.PublicKeyOf(key)
	if err != nil {
		return nil, fmt.Errorf("failed to derive public key: %w", err)
	}

	return &KeyStore{private: key, public: pub}, nil
}

// Sign signs a built token with RS256
func (ks *KeyStore) Sign(token jwt.Token) (string, error) {
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.RS256(), ks.private))
	if err != nil {
		return "", err
	}
	return string(signed), nil
}

// Parse verifies the signature and returns the token. Expiry and issuer are
// checked separately by Claims.Validate so callers can tell an expired token
// from a forged one.
func (ks *KeyStore) Parse(raw string) (jwt.Token, error) {
	token, err := jwt.Parse([]byte(raw),
		jwt.WithKey(jwa.RS256(), ks.public),
		jwt.WithValidate(false),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return token, nil
}
