package identity

import (
	"context"
	"testing"
	"time"

	"github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/logging"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/storage/memory"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/user"
)

func testLogger() *logging.Logger {
	return logging.New("identity_test", "error", "text")
}

func TestAwardBadge_IdempotentOnSourceEvent(t *testing.T) {
	store := memory.New()
	svc := New(store, store, testLogger())
	ctx := context.Background()
	now := time.Now().UTC()

	b1, created1, err := svc.AwardBadge(ctx, "user1", "first_task", "evt1", now)
	if err != nil {
		t.Fatalf("award badge: %v", err)
	}
	if !created1 {
		t.Fatalf("expected first award to be new")
	}

	b2, created2, err := svc.AwardBadge(ctx, "user1", "first_task", "evt1", now)
	if err != nil {
		t.Fatalf("award badge replay: %v", err)
	}
	if created2 {
		t.Fatalf("replay of the same source event should not create a new badge")
	}
	if b1.ID != b2.ID {
		t.Fatalf("replay should return the original badge, got different IDs %s vs %s", b1.ID, b2.ID)
	}

	_, created3, err := svc.AwardBadge(ctx, "user1", "first_task", "evt2", now)
	if err != nil {
		t.Fatalf("award badge with new source event: %v", err)
	}
	if !created3 {
		t.Fatalf("a different source event for the same badge code should create a new award")
	}
}

func TestActivatePlanAndCancelPlan(t *testing.T) {
	store := memory.New()
	svc := New(store, store, testLogger())
	ctx := context.Background()

	if _, err := store.CreateUser(ctx, store.Queryer(), user.User{ID: "user1", Plan: user.PlanFree}); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	expiresAt := time.Now().UTC().Add(30 * 24 * time.Hour)
	updated, err := svc.ActivatePlan(ctx, "user1", user.PlanPremium, expiresAt)
	if err != nil {
		t.Fatalf("activate plan: %v", err)
	}
	if updated.Plan != user.PlanPremium {
		t.Fatalf("expected premium plan, got %s", updated.Plan)
	}
	if !updated.PlanExpiresAt.Equal(expiresAt) {
		t.Fatalf("expiry not set: %v", updated.PlanExpiresAt)
	}

	cancelled, err := svc.CancelPlan(ctx, "user1")
	if err != nil {
		t.Fatalf("cancel plan: %v", err)
	}
	if cancelled.Plan != user.PlanFree {
		t.Fatalf("expected free plan after cancel, got %s", cancelled.Plan)
	}
	if !cancelled.PlanExpiresAt.IsZero() {
		t.Fatalf("expiry should be cleared after cancel, got %v", cancelled.PlanExpiresAt)
	}
}

func TestExpirePlan(t *testing.T) {
	store := memory.New()
	svc := New(store, store, testLogger())
	ctx := context.Background()
	past := time.Now().UTC().Add(-time.Hour)
	future := time.Now().UTC().Add(time.Hour)

	if _, err := store.CreateUser(ctx, store.Queryer(), user.User{ID: "lapsed", Plan: user.PlanPremium, PlanExpiresAt: past}); err != nil {
		t.Fatalf("seed lapsed user: %v", err)
	}
	if _, err := store.CreateUser(ctx, store.Queryer(), user.User{ID: "current", Plan: user.PlanPremium, PlanExpiresAt: future}); err != nil {
		t.Fatalf("seed current user: %v", err)
	}

	now := time.Now().UTC()
	lapsed, err := svc.ExpirePlan(ctx, "lapsed", now)
	if err != nil {
		t.Fatalf("expire lapsed plan: %v", err)
	}
	if lapsed.Plan != user.PlanFree {
		t.Fatalf("expected lapsed plan to downgrade to free, got %s", lapsed.Plan)
	}

	current, err := svc.ExpirePlan(ctx, "current", now)
	if err != nil {
		t.Fatalf("expire current plan: %v", err)
	}
	if current.Plan != user.PlanPremium {
		t.Fatalf("plan not yet expired should be left alone, got %s", current.Plan)
	}
}
