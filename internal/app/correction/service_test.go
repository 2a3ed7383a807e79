package correction_test

import (
	"context"
	"testing"
	"time"

	"github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/logging"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/correction"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/storage/memory"
	domcorrection "github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/correction"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/platform/analytics"
)

func testLogger() *logging.Logger {
	return logging.New("correction_test", "error", "text")
}

// TestApply_RejectsTypesOutsideTheNonFinancialAllowList covers P10: the
// correction engine must never accept a Type outside its closed,
// non-financial allow-list, keeping escrow/payout/dispute/trust/revenue
// structurally unreachable.
func TestApply_RejectsTypesOutsideTheNonFinancialAllowList(t *testing.T) {
	store := memory.New()
	svc := correction.New(store, store, analytics.Noop{}, testLogger())
	ctx := context.Background()
	now := time.Now().UTC()

	for _, typ := range []domcorrection.TargetEntity{
		domcorrection.TargetTaskRouting,
		domcorrection.TargetFrictionNudge,
		domcorrection.TargetSupplyHint,
	} {
		c := domcorrection.Correction{Type: typ, Scope: domcorrection.ScopeGlobal, ExpiresAt: now.Add(time.Hour)}
		if _, err := svc.Apply(ctx, c, now); err != nil {
			t.Fatalf("expected allow-listed type %s to be accepted: %v", typ, err)
		}
	}

	disallowed := domcorrection.TargetEntity("escrow")
	c := domcorrection.Correction{Type: disallowed, Scope: domcorrection.ScopeGlobal, ExpiresAt: now.Add(time.Hour)}
	if _, err := svc.Apply(ctx, c, now); err == nil {
		t.Fatalf("expected a non-allow-listed type to be rejected")
	}
}

// TestApply_RejectsExpiryBeyondMaxLifetime covers the 24h max-lifetime
// guard that keeps a correction from silently becoming permanent.
func TestApply_RejectsExpiryBeyondMaxLifetime(t *testing.T) {
	store := memory.New()
	svc := correction.New(store, store, analytics.Noop{}, testLogger())
	ctx := context.Background()
	now := time.Now().UTC()

	c := domcorrection.Correction{
		Type:      domcorrection.TargetSupplyHint,
		Scope:     domcorrection.ScopeGlobal,
		ExpiresAt: now.Add(domcorrection.MaxLifetime + time.Hour),
	}
	if _, err := svc.Apply(ctx, c, now); err == nil {
		t.Fatalf("expected an expiry beyond MaxLifetime to be rejected")
	}
}

// TestReverse_IsIdempotent covers P10's other half: reversing an
// already-reversed correction must be a no-op, never erroring and never
// mutating PriorValue/Adjustment.
func TestReverse_IsIdempotent(t *testing.T) {
	store := memory.New()
	svc := correction.New(store, store, analytics.Noop{}, testLogger())
	ctx := context.Background()
	now := time.Now().UTC()

	applied, err := svc.Apply(ctx, domcorrection.Correction{
		Type:       domcorrection.TargetTaskRouting,
		Scope:      domcorrection.ScopeGlobal,
		ExpiresAt:  now.Add(time.Hour),
		PriorValue: map[string]interface{}{"rank": 3},
		Adjustment: map[string]interface{}{"rank": 1},
	}, now)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	first, err := svc.Reverse(ctx, applied.ID, now)
	if err != nil {
		t.Fatalf("first reverse: %v", err)
	}
	if first.Reversal != domcorrection.ReversalReversed {
		t.Fatalf("expected reversed, got %s", first.Reversal)
	}

	second, err := svc.Reverse(ctx, applied.ID, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("second reverse should be a no-op, not an error: %v", err)
	}
	if second.ReversedAt != first.ReversedAt {
		t.Fatalf("expected reversed_at to stay at the first reversal's time, got %v vs %v", second.ReversedAt, first.ReversedAt)
	}
	if second.PriorValue["rank"] != first.PriorValue["rank"] {
		t.Fatalf("prior_value must not change on a repeat reversal")
	}
}

// TestApply_BudgetExhaustedStopsAdmissionWithinScope covers the per-scope
// hourly budget cap: once a scope's cap is spent, further applies in the
// same window must fail rather than silently exceeding the budget.
func TestApply_BudgetExhaustedStopsAdmissionWithinScope(t *testing.T) {
	store := memory.New()
	svc := correction.New(store, store, analytics.Noop{}, testLogger())
	ctx := context.Background()
	now := time.Now().UTC()

	var lastErr error
	for i := 0; i < domcorrection.DefaultBudget.Category+1; i++ {
		c := domcorrection.Correction{
			Type:      domcorrection.TargetFrictionNudge,
			Scope:     domcorrection.ScopeCategory,
			Category:  "handyman",
			ExpiresAt: now.Add(time.Hour),
		}
		_, lastErr = svc.Apply(ctx, c, now)
	}
	if lastErr == nil {
		t.Fatalf("expected the category budget to exhaust after %d applies in the same window", domcorrection.DefaultBudget.Category)
	}
}
