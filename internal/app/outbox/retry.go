package outbox

import (
	"context"

	"github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/fallback"
)

// RetryPolicy wraps infrastructure/fallback's exponential-backoff config for
// a single outbox queue. fallback.Handler.Execute treats its first call as
// the primary and every further call as a named fallback, so a same-fn
// retry is built by passing fn again as each of the remaining attempts.
type RetryPolicy struct {
	handler *fallback.Handler
	cfg     fallback.Config
}

// DefaultRetryPolicy mirrors fallback.DefaultConfig: 3 attempts, 100ms base
// delay doubling up to 5s, 10% jitter.
func DefaultRetryPolicy() RetryPolicy {
	cfg := fallback.DefaultConfig()
	return RetryPolicy{handler: fallback.NewHandler(cfg), cfg: cfg}
}

// NewRetryPolicy builds a RetryPolicy with an explicit backoff config.
func NewRetryPolicy(cfg fallback.Config) RetryPolicy {
	return RetryPolicy{handler: fallback.NewHandler(cfg), cfg: cfg}
}

// Do runs fn, retrying on error per the policy's backoff schedule. It
// returns the last error once the schedule is exhausted.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.handler == nil {
		p.handler = fallback.NewHandler(fallback.DefaultConfig())
		p.cfg = fallback.DefaultConfig()
	}
	wrapped := func(ctx context.Context) (interface{}, error) {
		return nil, fn(ctx)
	}
	attempts := p.cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	retries := make([]fallback.Func, 0, attempts-1)
	for i := 1; i < attempts; i++ {
		retries = append(retries, wrapped)
	}
	result := p.handler.Execute(ctx, wrapped, retries...)
	return result.Err
}
