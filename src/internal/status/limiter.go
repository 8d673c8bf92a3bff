// FILE: tracewisp/src/internal/status/limiter.go
package status

import (
	"sync"
	"time"

	"tracewisp/src/internal/config"

	"golang.org/x/time/rate"
)

// RateLimiter provides per-client request limiting
type RateLimiter struct {
	clients         sync.Map // map[string]*clientLimiter
	limit           rate.Limit
	burst           int
	cleanupInterval time.Duration
	done            chan struct{}
	stopOnce        sync.Once
}

type clientLimiter struct {
	limiter  *rate.Limiter
	mu       sync.Mutex
	lastSeen time.Time
}

// NewRateLimiter returns nil when the configuration disables limiting
func NewRateLimiter(cfg *config.RateLimitConfig) *RateLimiter {
	if cfg == nil || cfg.RequestsPerSecond <= 0 {
		return nil
	}

	burst := int(cfg.Burst)
	if burst <= 0 {
		burst = max(1, int(cfg.RequestsPerSecond))
	}
	interval := time.Duration(cfg.CleanupIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}

	rl := &RateLimiter{
		limit:           rate.Limit(cfg.RequestsPerSecond),
		burst:           burst,
		cleanupInterval: interval,
		done:            make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// Allow reports whether the client may make a request now
func (rl *RateLimiter) Allow(clientIP string) bool {
	if rl == nil {
		return true
	}
	return rl.getLimiter(clientIP).Allow()
}

func (rl *RateLimiter) getLimiter(clientIP string) *rate.Limiter {
	now := time.Now()
	if val, ok := rl.clients.Load(clientIP); ok {
		client := val.(*clientLimiter)
		client.touch(now)
		return client.limiter
	}

	client := &clientLimiter{
		limiter:  rate.NewLimiter(rl.limit, rl.burst),
		lastSeen: now,
	}
	actual, _ := rl.clients.LoadOrStore(clientIP, client)
	return actual.(*clientLimiter).limiter
}

func (c *clientLimiter) touch(now time.Time) {
	c.mu.Lock()
	c.lastSeen = now
	c.mu.Unlock()
}

func (c *clientLimiter) idleSince(threshold time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeen.Before(threshold)
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.removeOldClients(time.Now())
		}
	}
}

// removeOldClients forgets limiters idle for two cleanup intervals
func (rl *RateLimiter) removeOldClients(now time.Time) {
	threshold := now.Add(-rl.cleanupInterval * 2)
	rl.clients.Range(func(key, value any) bool {
		if value.(*clientLimiter).idleSince(threshold) {
			rl.clients.Delete(key)
		}
		return true
	})
}

// Stop ends the cleanup routine
func (rl *RateLimiter) Stop() {
	if rl == nil {
		return
	}
	rl.stopOnce.Do(func() { close(rl.done) })
}

// ActiveClients returns the number of tracked clients
func (rl *RateLimiter) ActiveClients() int {
	if rl == nil {
		return 0
	}
	count := 0
	rl.clients.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}
