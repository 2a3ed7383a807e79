// Package ratelimit throttles outbound calls to external vendors (the
// vision verifier, notification channels) ahead of the
// infrastructure/resilience circuit breaker that wraps the same call,
// per spec.md §5's cancellation/timeout section. Adapted from the
// teacher's infrastructure/ratelimit.RateLimiter, trimmed to the single
// per-vendor token bucket this layer needs (the teacher's HTTP-client
// wrapper and per-minute secondary limiter served an inbound API-gateway
// concern this module doesn't have).
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Config bounds one vendor's outbound call rate.
type Config struct {
	RequestsPerSecond float64
	Burst             int
}

// DefaultConfig is a conservative default for a single external vendor.
func DefaultConfig() Config {
	return Config{RequestsPerSecond: 10, Burst: 20}
}

// Limiter wraps a token-bucket limiter for one vendor.
type Limiter struct {
	mu      sync.RWMutex
	limiter *rate.Limiter
	config  Config
}

// New constructs a Limiter. A non-positive rate becomes 10 requests per
// second, and a non-positive burst becomes twice the rate.
func New(cfg Config) *Limiter {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = int(cfg.RequestsPerSecond * 2)
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst), config: cfg}
}

// Wait blocks until a token is available or ctx is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.RLock()
	limiter := l.limiter
	l.mu.RUnlock()
	return limiter.Wait(ctx)
}

// Allow reports whether a call may proceed right now without blocking.
func (l *Limiter) Allow() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.limiter.Allow()
}

// Reset replaces the limiter's internal bucket, discarding any
// accumulated debt. Used by admin tooling after a vendor outage clears.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limiter = rate.NewLimiter(rate.Limit(l.config.RequestsPerSecond), l.config.Burst)
}

// Registry holds one Limiter per named vendor (e.g. "vision_liveness",
// "vision_logistics", "email"), so each outbound dependency gets its own
// bucket without the caller threading configuration through every
// collaborator constructor.
type Registry struct {
	mu       sync.Mutex
	limiters map[string]*Limiter
	defaults Config
}

// NewRegistry constructs a Registry whose limiters are created lazily on
// first use with the given default Config.
func NewRegistry(defaults Config) *Registry {
	return &Registry{limiters: make(map[string]*Limiter), defaults: defaults}
}

// For returns the named vendor's Limiter, creating it with the
// registry's default Config on first access.
func (r *Registry) For(vendor string) *Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.limiters[vendor]
	if !ok {
		l = New(r.defaults)
		r.limiters[vendor] = l
	}
	return l
}
