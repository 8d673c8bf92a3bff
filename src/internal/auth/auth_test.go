// FILE: tracewisp/src/internal/auth/auth_test.go
package auth

import (
	"encoding/base64"
	"fmt"
	"strings"
	"testing"
	"time"

	"tracewisp/src/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cheapParams = Params{Time: 1, Memory: 1024, Threads: 1}

func basicHeader(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

func newTestAuthenticator(t *testing.T, cfg *config.AuthConfig) *Authenticator {
	t.Helper()
	a, err := New(cfg, log.NewLogger())
	require.NoError(t, err)
	require.NotNil(t, a)
	a.failureDelay = 0
	t.Cleanup(a.Close)
	return a
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("s3cret", cheapParams)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=1$"))

	ok, err := VerifyPassword(hash, "s3cret")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword(hash, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	other, err := HashPassword("s3cret", cheapParams)
	require.NoError(t, err)
	assert.NotEqual(t, hash, other, "salts must differ")

	for _, bad := range []string{"", "$2a$10$bcrypt", "$argon2id$v=19$m=x$a$b", "$argon2id$v=18$m=1,t=1,p=1$YQ$YQ"} {
		_, err := VerifyPassword(bad, "s3cret")
		assert.ErrorIs(t, err, ErrInvalidPHC, bad)
	}
}

func TestGenerateToken(t *testing.T) {
	tok, err := GenerateToken(32)
	require.NoError(t, err)
	raw, err := base64.RawURLEncoding.DecodeString(tok)
	require.NoError(t, err)
	assert.Len(t, raw, 32)

	_, err = GenerateToken(0)
	assert.Error(t, err)
	_, err = GenerateToken(maxTokenLength + 1)
	assert.Error(t, err)
}

func TestNew_Disabled(t *testing.T) {
	for _, cfg := range []*config.AuthConfig{nil, {Type: ""}, {Type: "none"}} {
		a, err := New(cfg, log.NewLogger())
		require.NoError(t, err)
		assert.Nil(t, a)

		id, err := a.Authenticate("", "10.0.0.1:1")
		require.NoError(t, err)
		assert.Equal(t, "none", id.Method)
	}

	_, err := New(&config.AuthConfig{Type: "digest"}, log.NewLogger())
	assert.Error(t, err)
}

func TestAuthenticate_Basic(t *testing.T) {
	hash, err := HashPassword("hunter2", cheapParams)
	require.NoError(t, err)

	a := newTestAuthenticator(t, &config.AuthConfig{
		Type: "basic",
		BasicAuth: &config.BasicAuthConfig{
			Realm: "ops",
			Users: []config.BasicAuthUser{{Username: "admin", PasswordHash: hash}},
		},
	})
	assert.Equal(t, `Basic realm="ops"`, a.Challenge())

	id, err := a.Authenticate(basicHeader("admin", "hunter2"), "10.0.0.1:5000")
	require.NoError(t, err)
	assert.Equal(t, "admin", id.Username)
	assert.Equal(t, "basic", id.Method)

	testCases := []struct {
		name   string
		header string
	}{
		{name: "WrongPassword", header: basicHeader("admin", "nope")},
		{name: "UnknownUser", header: basicHeader("ghost", "hunter2")},
		{name: "NotBasic", header: "Bearer abc"},
		{name: "BadEncoding", header: "Basic !!!"},
	}
	for i, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := a.Authenticate(tc.header, fmt.Sprintf("10.0.1.%d:5000", i+1))
			assert.ErrorIs(t, err, ErrInvalidCredentials)
		})
	}
}

func TestAuthenticate_BasicRejectsBadHash(t *testing.T) {
	_, err := New(&config.AuthConfig{
		Type: "basic",
		BasicAuth: &config.BasicAuthConfig{
			Users: []config.BasicAuthUser{{Username: "admin", PasswordHash: "plaintext"}},
		},
	}, log.NewLogger())
	assert.ErrorIs(t, err, ErrInvalidPHC)
}

func TestAuthenticate_Bearer(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	a := newTestAuthenticator(t, &config.AuthConfig{
		Type: "bearer",
		BearerAuth: &config.BearerAuthConfig{
			Tokens: []string{"static-token"},
			JWT: &config.JWTConfig{
				SigningKey: string(key),
				Issuer:     "tracewisp",
				Audience:   "status",
			},
		},
	})
	assert.Equal(t, "Bearer", a.Challenge())

	t.Run("StaticToken", func(t *testing.T) {
		id, err := a.Authenticate("Bearer static-token", "10.1.0.1:1")
		require.NoError(t, err)
		assert.Equal(t, "bearer", id.Method)
	})

	t.Run("ValidJWT", func(t *testing.T) {
		tok, err := MintToken(key, TokenClaims{Subject: "ci", Issuer: "tracewisp", Audience: "status", TTL: time.Minute})
		require.NoError(t, err)

		id, err := a.Authenticate("Bearer "+tok, "10.1.0.2:1")
		require.NoError(t, err)
		assert.Equal(t, "jwt", id.Method)
		assert.Equal(t, "ci", id.Username)
	})

	t.Run("WrongAudience", func(t *testing.T) {
		tok, err := MintToken(key, TokenClaims{Subject: "ci", Issuer: "tracewisp", Audience: "other", TTL: time.Minute})
		require.NoError(t, err)

		_, err = a.Authenticate("Bearer "+tok, "10.1.0.3:1")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("MissingExpiry", func(t *testing.T) {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject:  "ci",
			Issuer:   "tracewisp",
			Audience: jwt.ClaimStrings{"status"},
		}).SignedString(key)
		require.NoError(t, err)

		_, err = a.Authenticate("Bearer "+tok, "10.1.0.4:1")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("WrongKey", func(t *testing.T) {
		tok, err := MintToken([]byte("another-key"), TokenClaims{Issuer: "tracewisp", Audience: "status", TTL: time.Minute})
		require.NoError(t, err)

		_, err = a.Authenticate("Bearer "+tok, "10.1.0.5:1")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("UnknownToken", func(t *testing.T) {
		_, err := a.Authenticate("Bearer nope", "10.1.0.6:1")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestAuthenticate_BruteForceBlocking(t *testing.T) {
	a := newTestAuthenticator(t, &config.AuthConfig{
		Type:       "bearer",
		BearerAuth: &config.BearerAuthConfig{Tokens: []string{"good"}},
	})

	const addr = "192.0.2.10:4000"
	for i := 0; i < 3; i++ {
		_, err := a.Authenticate("Bearer bad", addr)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}

	_, err := a.Authenticate("Bearer good", addr)
	assert.ErrorIs(t, err, ErrTooManyAttempts)

	// Other clients are unaffected
	_, err = a.Authenticate("Bearer good", "192.0.2.11:4000")
	assert.NoError(t, err)

	assert.Equal(t, 2, a.GetStats()["tracked_ips"])
}

func TestMintToken_Validation(t *testing.T) {
	_, err := MintToken(nil, TokenClaims{TTL: time.Minute})
	assert.Error(t, err)
	_, err = MintToken([]byte("k"), TokenClaims{})
	assert.Error(t, err)
}
