// FILE: tracewisp/src/internal/auth/token.go
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const maxTokenLength = 512

// GenerateToken returns a random bearer token of length bytes, URL-safe
// base64 encoded without padding
func GenerateToken(length int) (string, error) {
	if length <= 0 || length > maxTokenLength {
		return "", fmt.Errorf("token length must be between 1 and %d bytes", maxTokenLength)
	}
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// TokenClaims describes a JWT minted for the status endpoint
type TokenClaims struct {
	Subject  string
	Issuer   string
	Audience string
	TTL      time.Duration
}

// MintToken signs an HS256 JWT carrying the registered claims the status
// endpoint validates. An expiry is always set.
func MintToken(signingKey []byte, c TokenClaims) (string, error) {
	if len(signingKey) == 0 {
		return "", errors.New("signing key required")
	}
	if c.TTL <= 0 {
		return "", errors.New("token ttl must be positive")
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   c.Subject,
		Issuer:    c.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.TTL)),
	}
	if c.Audience != "" {
		claims.Audience = jwt.ClaimStrings{c.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
