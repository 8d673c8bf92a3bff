// FILE: tracewisp/src/internal/auth/authenticator.go
package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"tracewisp/src/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lixenwraith/log"
	"golang.org/x/time/rate"
)

// Prevent unbounded map growth
const maxAuthTrackedIPs = 10000

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTooManyAttempts    = errors.New("too many authentication attempts")
)

// Identity describes an authenticated status request
type Identity struct {
	Username string
	Method   string // none, basic, bearer, jwt
	Claims   jwt.MapClaims
}

// Authenticator validates the Authorization header of status requests
type Authenticator struct {
	config       *config.AuthConfig
	logger       *log.Logger
	basicUsers   map[string]string // username -> PHC hash
	bearerTokens map[string]bool
	jwtParser    *jwt.Parser
	jwtKey       []byte
	dummyHash    string

	// Brute-force protection
	ipAuthAttempts map[string]*ipAuthState
	authMu         sync.Mutex
	failureDelay   time.Duration

	done      chan struct{}
	closeOnce sync.Once
}

type ipAuthState struct {
	limiter      *rate.Limiter
	failCount    int
	lastAttempt  time.Time
	blockedUntil time.Time
}

// New creates an authenticator, or nil when authentication is disabled
func New(cfg *config.AuthConfig, logger *log.Logger) (*Authenticator, error) {
	if cfg == nil || cfg.Type == "" || cfg.Type == "none" {
		return nil, nil
	}

	a := &Authenticator{
		config:         cfg,
		logger:         logger,
		basicUsers:     make(map[string]string),
		bearerTokens:   make(map[string]bool),
		ipAuthAttempts: make(map[string]*ipAuthState),
		failureDelay:   500 * time.Millisecond,
		done:           make(chan struct{}),
	}

	switch cfg.Type {
	case "basic":
		if cfg.BasicAuth == nil || len(cfg.BasicAuth.Users) == 0 {
			return nil, fmt.Errorf("basic auth requires at least one user")
		}
		for _, user := range cfg.BasicAuth.Users {
			if _, _, _, err := parsePHC(user.PasswordHash); err != nil {
				return nil, fmt.Errorf("user %q: %w", user.Username, err)
			}
			a.basicUsers[user.Username] = user.PasswordHash
		}
		// Unknown users are verified against this so timing does not reveal them
		dummy, err := HashPassword("", DefaultParams())
		if err != nil {
			return nil, err
		}
		a.dummyHash = dummy

	case "bearer":
		if cfg.BearerAuth == nil {
			return nil, fmt.Errorf("bearer auth requires tokens or jwt configuration")
		}
		for _, token := range cfg.BearerAuth.Tokens {
			a.bearerTokens[token] = true
		}
		if jwtCfg := cfg.BearerAuth.JWT; jwtCfg != nil && jwtCfg.SigningKey != "" {
			opts := []jwt.ParserOption{
				jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
				jwt.WithLeeway(5 * time.Second),
				jwt.WithExpirationRequired(),
			}
			if jwtCfg.Issuer != "" {
				opts = append(opts, jwt.WithIssuer(jwtCfg.Issuer))
			}
			if jwtCfg.Audience != "" {
				opts = append(opts, jwt.WithAudience(jwtCfg.Audience))
			}
			a.jwtParser = jwt.NewParser(opts...)
			a.jwtKey = []byte(jwtCfg.SigningKey)
		}

	default:
		return nil, fmt.Errorf("unsupported auth type: %s", cfg.Type)
	}

	go a.authAttemptCleanup()

	logger.Info("msg", "Authenticator initialized",
		"component", "auth",
		"type", cfg.Type)

	return a, nil
}

// Type returns the configured authentication type
func (a *Authenticator) Type() string {
	if a == nil {
		return "none"
	}
	return a.config.Type
}

// Challenge returns the WWW-Authenticate header value for rejected requests
func (a *Authenticator) Challenge() string {
	if a == nil {
		return ""
	}
	if a.config.Type == "basic" {
		realm := "tracewisp"
		if a.config.BasicAuth != nil && a.config.BasicAuth.Realm != "" {
			realm = a.config.BasicAuth.Realm
		}
		return fmt.Sprintf("Basic realm=%q", realm)
	}
	return "Bearer"
}

// Authenticate validates an Authorization header value
func (a *Authenticator) Authenticate(authHeader, remoteAddr string) (*Identity, error) {
	if a == nil {
		return &Identity{Method: "none"}, nil
	}

	if err := a.checkRateLimit(remoteAddr); err != nil {
		return nil, err
	}

	var id *Identity
	var err error
	switch a.config.Type {
	case "basic":
		id, err = a.authenticateBasic(authHeader)
	case "bearer":
		id, err = a.authenticateBearer(authHeader)
	}

	if err != nil {
		a.recordFailure(remoteAddr)
		a.logger.Debug("msg", "Authentication failed",
			"component", "auth",
			"remote_addr", remoteAddr,
			"error", err)
		if a.failureDelay > 0 {
			time.Sleep(a.failureDelay)
		}
		return nil, err
	}

	a.recordSuccess(remoteAddr)
	return id, nil
}

func (a *Authenticator) authenticateBasic(authHeader string) (*Identity, error) {
	payload, ok := strings.CutPrefix(authHeader, "Basic ")
	if !ok {
		return nil, fmt.Errorf("%w: missing basic credentials", ErrInvalidCredentials)
	}
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64 encoding", ErrInvalidCredentials)
	}
	username, password, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return nil, fmt.Errorf("%w: invalid credentials format", ErrInvalidCredentials)
	}

	hash, exists := a.basicUsers[username]
	if !exists {
		_, _ = VerifyPassword(a.dummyHash, password)
		return nil, ErrInvalidCredentials
	}
	match, err := VerifyPassword(hash, password)
	if err != nil || !match {
		return nil, ErrInvalidCredentials
	}
	return &Identity{Username: username, Method: "basic"}, nil
}

func (a *Authenticator) authenticateBearer(authHeader string) (*Identity, error) {
	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok || token == "" {
		return nil, fmt.Errorf("%w: missing bearer token", ErrInvalidCredentials)
	}

	for static := range a.bearerTokens {
		if subtle.ConstantTimeCompare([]byte(static), []byte(token)) == 1 {
			return &Identity{Method: "bearer"}, nil
		}
	}

	if a.jwtParser == nil {
		return nil, ErrInvalidCredentials
	}

	claims := jwt.MapClaims{}
	parsed, err := a.jwtParser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.jwtKey, nil
	})
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: jwt: %v", ErrInvalidCredentials, err)
	}

	subject, _ := claims.GetSubject()
	return &Identity{Username: subject, Method: "jwt", Claims: claims}, nil
}

// checkRateLimit enforces per-IP attempt limits with progressive blocking
func (a *Authenticator) checkRateLimit(remoteAddr string) error {
	ip := hostOf(remoteAddr)
	now := time.Now()

	a.authMu.Lock()
	defer a.authMu.Unlock()

	state, exists := a.ipAuthAttempts[ip]
	if !exists {
		if len(a.ipAuthAttempts) >= maxAuthTrackedIPs {
			a.evictOldestLocked()
		}
		// 5 attempts per minute, burst of 3
		state = &ipAuthState{
			limiter:     rate.NewLimiter(rate.Every(12*time.Second), 3),
			lastAttempt: now,
		}
		a.ipAuthAttempts[ip] = state
	}

	if now.Before(state.blockedUntil) {
		return fmt.Errorf("%w: blocked for %v", ErrTooManyAttempts, state.blockedUntil.Sub(now).Round(time.Second))
	}

	if !state.limiter.Allow() {
		state.failCount++
		blockMinutes := 1 << min(state.failCount, 6) // Cap at 64 minutes
		state.blockedUntil = now.Add(time.Duration(blockMinutes) * time.Minute)
		a.logger.Warn("msg", "Authentication rate limit exceeded, blocking IP",
			"component", "auth",
			"ip", ip,
			"fail_count", state.failCount,
			"block_duration", time.Duration(blockMinutes)*time.Minute)
		return ErrTooManyAttempts
	}

	state.lastAttempt = now
	return nil
}

// evictOldestLocked samples entries and evicts the least recently seen
func (a *Authenticator) evictOldestLocked() {
	const sampleSize = 20
	var oldestIP string
	oldestTime := time.Now()
	sampled := 0
	for ip, state := range a.ipAuthAttempts {
		if state.lastAttempt.Before(oldestTime) {
			oldestIP = ip
			oldestTime = state.lastAttempt
		}
		sampled++
		if sampled >= sampleSize {
			break
		}
	}
	if oldestIP != "" {
		delete(a.ipAuthAttempts, oldestIP)
	}
}

func (a *Authenticator) recordFailure(remoteAddr string) {
	a.authMu.Lock()
	defer a.authMu.Unlock()

	if state, exists := a.ipAuthAttempts[hostOf(remoteAddr)]; exists {
		state.failCount++
		state.lastAttempt = time.Now()
	}
}

func (a *Authenticator) recordSuccess(remoteAddr string) {
	a.authMu.Lock()
	defer a.authMu.Unlock()

	if state, exists := a.ipAuthAttempts[hostOf(remoteAddr)]; exists {
		state.failCount = 0
		state.blockedUntil = time.Time{}
	}
}

func (a *Authenticator) authAttemptCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-a.done:
			return
		case <-ticker.C:
			a.authMu.Lock()
			now := time.Now()
			for ip, state := range a.ipAuthAttempts {
				if now.Sub(state.lastAttempt) > time.Hour {
					delete(a.ipAuthAttempts, ip)
				}
			}
			a.authMu.Unlock()
		}
	}
}

// Close stops the background cleanup
func (a *Authenticator) Close() {
	if a == nil {
		return
	}
	a.closeOnce.Do(func() { close(a.done) })
}

// GetStats returns authentication statistics
func (a *Authenticator) GetStats() map[string]any {
	if a == nil {
		return map[string]any{"enabled": false}
	}

	a.authMu.Lock()
	tracked := len(a.ipAuthAttempts)
	a.authMu.Unlock()

	return map[string]any{
		"enabled":       true,
		"type":          a.config.Type,
		"basic_users":   len(a.basicUsers),
		"static_tokens": len(a.bearerTokens),
		"jwt":           a.jwtParser != nil,
		"tracked_ips":   tracked,
	}
}

func hostOf(remoteAddr string) string {
	ip, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return ip
}
