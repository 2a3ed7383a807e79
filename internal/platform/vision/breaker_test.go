package vision

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/errors"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/resilience"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/platform/ratelimit"
)

type failingLiveness struct{}

func (failingLiveness) CheckLiveness(ctx context.Context, storageKey string) (Result, error) {
	return Result{}, errors.New("vendor down")
}

func TestBreakerLiveness_TripsOpenAfterMaxFailures(t *testing.T) {
	cfg := resilience.Config{MaxFailures: 2, Timeout: time.Minute, HalfOpenMax: 1}
	b := NewBreakerLiveness(failingLiveness{}, nil, "acme_vision", cfg)

	for i := 0; i < 2; i++ {
		if _, err := b.CheckLiveness(context.Background(), "key"); err == nil {
			t.Fatalf("expected vendor failure to surface on attempt %d", i)
		}
	}

	_, err := b.CheckLiveness(context.Background(), "key")
	if err == nil {
		t.Fatalf("expected circuit to be open after max failures")
	}
	var svcErr *apperrors.ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected a *ServiceError, got %T: %v", err, err)
	}
	if svcErr.Code != apperrors.ErrCodeAIUnavailable {
		t.Fatalf("expected AI_UNAVAILABLE once the circuit opens, got %s", svcErr.Code)
	}
}

func TestBreakerLiveness_WaitsOnRateLimiter(t *testing.T) {
	limiter := ratelimit.New(ratelimit.Config{RequestsPerSecond: 100, Burst: 5})
	b := NewBreakerLiveness(acceptingLiveness{}, limiter, "acme_vision", resilience.DefaultConfig())

	result, err := b.CheckLiveness(context.Background(), "key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Verdict != VerdictAccept {
		t.Fatalf("expected accept, got %s", result.Verdict)
	}
}

type acceptingLiveness struct{}

func (acceptingLiveness) CheckLiveness(ctx context.Context, storageKey string) (Result, error) {
	return Result{Verdict: VerdictAccept, Score: 1}, nil
}
