package supply_test

import (
	"context"
	"testing"
	"time"

	"github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/logging"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/storage/memory"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/supply"
	domsupply "github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/supply"
)

func testLogger() *logging.Logger {
	return logging.New("supply_test", "error", "text")
}

func seedCapacity(t *testing.T, store *memory.Store, c domsupply.Capacity) {
	t.Helper()
	if _, err := store.UpdateCapacity(context.Background(), store.Queryer(), c, 0); err != nil {
		t.Fatalf("seed capacity: %v", err)
	}
}

// TestGate_AdmitsWithinCapacityAndRatio covers the admit path and P7: an
// admission must increase CurrentWeight/ActiveHustlers by exactly the
// admitted slot's weight, never more.
func TestGate_AdmitsWithinCapacityAndRatio(t *testing.T) {
	store := memory.New()
	svc := supply.New(store, store, store, testLogger())
	ctx := context.Background()
	now := time.Now().UTC()

	seedCapacity(t, store, domsupply.Capacity{
		ExpertiseCode:        "plumbing",
		ZoneID:               "zone1",
		MaxWeightCapacity:    10,
		MinTaskToSupplyRatio: 0.5,
		CurrentWeight:        0,
		ActiveHustlers:       0,
		LiquidityRatio:       1,
	})

	result, _, err := svc.Gate(ctx, "user1", "plumbing", "zone1", domsupply.PrimaryWeight, now)
	if err != nil {
		t.Fatalf("gate: %v", err)
	}
	if result != domsupply.AdmissionAdmitted {
		t.Fatalf("expected ADMITTED, got %s", result)
	}

	gotCapacity, err := store.GetCapacityForUpdate(ctx, store.Queryer(), "plumbing", "zone1")
	if err != nil {
		t.Fatalf("get capacity: %v", err)
	}
	if gotCapacity.CurrentWeight != domsupply.PrimaryWeight {
		t.Fatalf("expected current_weight to increase by exactly the admitted weight, got %f", gotCapacity.CurrentWeight)
	}
	if gotCapacity.ActiveHustlers != 1 {
		t.Fatalf("expected active_hustlers to increase by exactly one, got %d", gotCapacity.ActiveHustlers)
	}
}

// TestGate_WaitlistsOnCapacity covers P8: an admission that would push
// CurrentWeight past EffectiveMax must be waitlisted, never admitted, and
// capacity must stay untouched.
func TestGate_WaitlistsOnCapacity(t *testing.T) {
	store := memory.New()
	svc := supply.New(store, store, store, testLogger())
	ctx := context.Background()
	now := time.Now().UTC()

	seedCapacity(t, store, domsupply.Capacity{
		ExpertiseCode:        "plumbing",
		ZoneID:               "zone1",
		MaxWeightCapacity:    1,
		MinTaskToSupplyRatio: 0.5,
		CurrentWeight:        0.9,
		ActiveHustlers:       1,
		LiquidityRatio:       1,
	})

	result, reason, err := svc.Gate(ctx, "user1", "plumbing", "zone1", domsupply.PrimaryWeight, now)
	if err != nil {
		t.Fatalf("gate: %v", err)
	}
	if result != domsupply.AdmissionWaitlisted {
		t.Fatalf("expected WAITLISTED, got %s", result)
	}
	if reason != string(domsupply.GateReasonCapacity) {
		t.Fatalf("expected capacity reason, got %s", reason)
	}

	gotCapacity, err := store.GetCapacityForUpdate(ctx, store.Queryer(), "plumbing", "zone1")
	if err != nil {
		t.Fatalf("get capacity: %v", err)
	}
	if gotCapacity.CurrentWeight > gotCapacity.EffectiveMax(now) {
		t.Fatalf("capacity safety violated: current_weight %f > effective_max %f", gotCapacity.CurrentWeight, gotCapacity.EffectiveMax(now))
	}
	if gotCapacity.CurrentWeight != 0.9 {
		t.Fatalf("a waitlisted admission must not touch current_weight, got %f", gotCapacity.CurrentWeight)
	}
}

// TestGate_WaitlistsOnThroughputRatio covers the second half of P8: enough
// spare capacity but a starved liquidity ratio must also waitlist.
func TestGate_WaitlistsOnThroughputRatio(t *testing.T) {
	store := memory.New()
	svc := supply.New(store, store, store, testLogger())
	ctx := context.Background()
	now := time.Now().UTC()

	seedCapacity(t, store, domsupply.Capacity{
		ExpertiseCode:        "plumbing",
		ZoneID:               "zone1",
		MaxWeightCapacity:    10,
		MinTaskToSupplyRatio: 0.9,
		CurrentWeight:        1,
		ActiveHustlers:       5,
		LiquidityRatio:       0.1,
	})

	result, reason, err := svc.Gate(ctx, "user1", "plumbing", "zone1", domsupply.PrimaryWeight, now)
	if err != nil {
		t.Fatalf("gate: %v", err)
	}
	if result != domsupply.AdmissionWaitlisted {
		t.Fatalf("expected WAITLISTED, got %s", result)
	}
	if reason != string(domsupply.GateReasonThroughput) {
		t.Fatalf("expected throughput reason, got %s", reason)
	}
}

// TestGate_RejectsDuplicateActiveExpertise covers the duplicate-admission
// rejection step ahead of the capacity gate.
func TestGate_RejectsDuplicateActiveExpertise(t *testing.T) {
	store := memory.New()
	svc := supply.New(store, store, store, testLogger())
	ctx := context.Background()
	now := time.Now().UTC()

	seedCapacity(t, store, domsupply.Capacity{ExpertiseCode: "plumbing", ZoneID: "zone1", MaxWeightCapacity: 10, MinTaskToSupplyRatio: 0.1, LiquidityRatio: 1})
	if _, err := store.InsertExpertise(ctx, store.Queryer(), domsupply.UserExpertise{UserID: "user1", ExpertiseCode: "plumbing", ZoneID: "zone1", Active: true}); err != nil {
		t.Fatalf("seed existing expertise: %v", err)
	}

	result, _, err := svc.Gate(ctx, "user1", "plumbing", "zone1", domsupply.PrimaryWeight, now)
	if err != nil {
		t.Fatalf("gate: %v", err)
	}
	if result != domsupply.AdmissionRejectedDuplicate {
		t.Fatalf("expected DUPLICATE, got %s", result)
	}
}

// TestGate_RejectsMaxTwoActiveExpertise covers the at-most-two-expertise
// rule (I8).
func TestGate_RejectsMaxTwoActiveExpertise(t *testing.T) {
	store := memory.New()
	svc := supply.New(store, store, store, testLogger())
	ctx := context.Background()
	now := time.Now().UTC()

	seedCapacity(t, store, domsupply.Capacity{ExpertiseCode: "electrical", ZoneID: "zone1", MaxWeightCapacity: 10, MinTaskToSupplyRatio: 0.1, LiquidityRatio: 1})
	if _, err := store.InsertExpertise(ctx, store.Queryer(), domsupply.UserExpertise{UserID: "user1", ExpertiseCode: "plumbing", ZoneID: "zone1", Active: true}); err != nil {
		t.Fatalf("seed expertise 1: %v", err)
	}
	if _, err := store.InsertExpertise(ctx, store.Queryer(), domsupply.UserExpertise{UserID: "user1", ExpertiseCode: "hvac", ZoneID: "zone1", Active: true}); err != nil {
		t.Fatalf("seed expertise 2: %v", err)
	}

	result, _, err := svc.Gate(ctx, "user1", "electrical", "zone1", domsupply.PrimaryWeight, now)
	if err != nil {
		t.Fatalf("gate: %v", err)
	}
	if result != domsupply.AdmissionRejectedMax {
		t.Fatalf("expected MAX, got %s", result)
	}
}

// TestGate_RejectsWithinCooldown covers the decay cooldown step: removing
// an expertise and immediately re-admitting the same one must fail until
// DecayCooldownDays has elapsed.
func TestGate_RejectsWithinCooldown(t *testing.T) {
	store := memory.New()
	svc := supply.New(store, store, store, testLogger())
	ctx := context.Background()
	now := time.Now().UTC()

	seedCapacity(t, store, domsupply.Capacity{ExpertiseCode: "plumbing", ZoneID: "zone1", MaxWeightCapacity: 10, MinTaskToSupplyRatio: 0.1, LiquidityRatio: 1})
	if _, err := store.InsertExpertise(ctx, store.Queryer(), domsupply.UserExpertise{
		UserID:        "user1",
		ExpertiseCode: "plumbing",
		ZoneID:        "zone1",
		Active:        false,
		RemovedAt:     now.Add(-24 * time.Hour),
	}); err != nil {
		t.Fatalf("seed inactive expertise: %v", err)
	}

	result, _, err := svc.Gate(ctx, "user1", "plumbing", "zone1", domsupply.PrimaryWeight, now)
	if err != nil {
		t.Fatalf("gate: %v", err)
	}
	if result != domsupply.AdmissionRejectedCooldown {
		t.Fatalf("expected COOLDOWN, got %s", result)
	}
}
