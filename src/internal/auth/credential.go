// FILE: tracewisp/src/internal/auth/credential.go
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"tracewisp/src/internal/core"

	"golang.org/x/crypto/argon2"
)

var ErrInvalidPHC = errors.New("invalid argon2id PHC hash")

// Params are the Argon2id cost parameters encoded in a PHC hash
type Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
}

// DefaultParams returns the cost used for generated credentials
func DefaultParams() Params {
	return Params{Time: core.Argon2Time, Memory: core.Argon2Memory, Threads: core.Argon2Threads}
}

// HashPassword derives an Argon2id hash with a random salt and encodes it in
// PHC format: $argon2id$v=19$m=65536,t=3,p=4$salt$hash
func HashPassword(password string, p Params) (string, error) {
	salt := make([]byte, core.Argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return encodePHC(password, salt, p), nil
}

func encodePHC(password string, salt []byte, p Params) string {
	hash := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, core.Argon2KeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.Memory, p.Time, p.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash))
}

// VerifyPassword checks a password against a PHC hash in constant time
func VerifyPassword(phcHash, password string) (bool, error) {
	p, salt, expected, err := parsePHC(phcHash)
	if err != nil {
		return false, err
	}
	computed := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, uint32(len(expected)))
	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}

func parsePHC(phcHash string) (Params, []byte, []byte, error) {
	var p Params

	parts := strings.Split(phcHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return p, nil, nil, ErrInvalidPHC
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return p, nil, nil, fmt.Errorf("%w: unsupported version", ErrInvalidPHC)
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Threads); err != nil {
		return p, nil, nil, fmt.Errorf("%w: parameters: %v", ErrInvalidPHC, err)
	}
	if p.Time == 0 || p.Memory == 0 || p.Threads == 0 {
		return p, nil, nil, fmt.Errorf("%w: zero parameter", ErrInvalidPHC)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return p, nil, nil, fmt.Errorf("%w: salt encoding: %v", ErrInvalidPHC, err)
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(hash) == 0 {
		return p, nil, nil, fmt.Errorf("%w: hash encoding", ErrInvalidPHC)
	}
	return p, salt, hash, nil
}
