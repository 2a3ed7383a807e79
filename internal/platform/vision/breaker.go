package vision

import (
	"context"

	apperrors "github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/errors"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/resilience"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/platform/ratelimit"
)

// BreakerLiveness wraps a LivenessClient with an outbound rate limiter and
// its own circuit breaker so a vendor outage surfaces AI_UNAVAILABLE
// instead of blocking indefinitely or being silently treated as an accept.
type BreakerLiveness struct {
	client  LivenessClient
	limiter *ratelimit.Limiter
	cb      *resilience.CircuitBreaker
	vendor  string
}

// NewBreakerLiveness wraps client with rate limiting and a circuit
// breaker using cfg. limiter may be nil to skip rate limiting.
func NewBreakerLiveness(client LivenessClient, limiter *ratelimit.Limiter, vendor string, cfg resilience.Config) *BreakerLiveness {
	return &BreakerLiveness{client: client, limiter: limiter, cb: resilience.New(cfg), vendor: vendor}
}

func (b *BreakerLiveness) CheckLiveness(ctx context.Context, storageKey string) (Result, error) {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return Result{}, apperrors.AIUnavailable(b.vendor)
		}
	}
	var out Result
	err := b.cb.Execute(ctx, func() error {
		r, err := b.client.CheckLiveness(ctx, storageKey)
		out = r
		return err
	})
	if err == resilience.ErrCircuitOpen || err == resilience.ErrTooManyRequests {
		return Result{}, apperrors.AIUnavailable(b.vendor)
	}
	if err != nil {
		return Result{}, apperrors.ExternalService(b.vendor, err)
	}
	return out, nil
}

// BreakerLogistics wraps a LogisticsClient the same way.
type BreakerLogistics struct {
	client  LogisticsClient
	limiter *ratelimit.Limiter
	cb      *resilience.CircuitBreaker
	vendor  string
}

// NewBreakerLogistics wraps client with rate limiting and a circuit
// breaker using cfg. limiter may be nil to skip rate limiting.
func NewBreakerLogistics(client LogisticsClient, limiter *ratelimit.Limiter, vendor string, cfg resilience.Config) *BreakerLogistics {
	return &BreakerLogistics{client: client, limiter: limiter, cb: resilience.New(cfg), vendor: vendor}
}

func (b *BreakerLogistics) CheckLogistics(ctx context.Context, storageKey, taskID string) (Result, error) {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return Result{}, apperrors.AIUnavailable(b.vendor)
		}
	}
	var out Result
	err := b.cb.Execute(ctx, func() error {
		r, err := b.client.CheckLogistics(ctx, storageKey, taskID)
		out = r
		return err
	})
	if err == resilience.ErrCircuitOpen || err == resilience.ErrTooManyRequests {
		return Result{}, apperrors.AIUnavailable(b.vendor)
	}
	if err != nil {
		return Result{}, apperrors.ExternalService(b.vendor, err)
	}
	return out, nil
}
