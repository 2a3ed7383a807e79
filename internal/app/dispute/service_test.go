package dispute_test

import (
	"context"
	"testing"
	"time"

	"github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/logging"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/dispute"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/outbox"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/storage/memory"
	domdispute "github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/dispute"
	domescrow "github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/escrow"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/ledger"
	domoutbox "github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/outbox"
	domtask "github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/task"
)

func testLogger() *logging.Logger {
	return logging.New("dispute_test", "error", "text")
}

func seedDisputableTask(t *testing.T, store *memory.Store, now time.Time) {
	t.Helper()
	ctx := context.Background()
	tsk := domtask.Task{
		ID:          "task1",
		PosterID:    "poster1",
		WorkerID:    "worker1",
		Lifecycle:   domtask.LifecycleAccepted,
		Progress:    domtask.ProgressWorking,
		CompletedAt: now.Add(-time.Hour),
	}
	if _, err := store.CreateTask(ctx, store.Queryer(), tsk); err != nil {
		t.Fatalf("seed task: %v", err)
	}
	e := domescrow.Escrow{ID: "escrow1", TaskID: "task1", AmountMinor: 1000, State: domescrow.StateFunded}
	if _, err := store.CreateEscrow(ctx, store.Queryer(), e); err != nil {
		t.Fatalf("seed escrow: %v", err)
	}
}

// TestCreate_LocksEscrowAndDisputesTask covers the component-D wiring: a
// dispute opening must move its task ACCEPTED/PROOF_SUBMITTED->DISPUTED,
// not just lock the escrow.
func TestCreate_LocksEscrowAndDisputesTask(t *testing.T) {
	store := memory.New()
	writer := outbox.NewWriter(store)
	svc := dispute.New(store, store, store, store, store, writer, testLogger())
	ctx := context.Background()
	now := time.Now().UTC()
	seedDisputableTask(t, store, now)

	d, err := svc.Create(ctx, "task1", "poster1", now)
	if err != nil {
		t.Fatalf("create dispute: %v", err)
	}
	if d.State != domdispute.StateOpen {
		t.Fatalf("expected dispute OPEN, got %s", d.State)
	}

	e, err := store.GetEscrow(ctx, store.Queryer(), "escrow1")
	if err != nil {
		t.Fatalf("get escrow: %v", err)
	}
	if e.State != domescrow.StateLockedDispute {
		t.Fatalf("expected escrow LOCKED_DISPUTE, got %s", e.State)
	}

	tsk, err := store.GetTask(ctx, store.Queryer(), "task1")
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if tsk.Lifecycle != domtask.LifecycleDisputed {
		t.Fatalf("expected task DISPUTED, got %s", tsk.Lifecycle)
	}
}

// TestResolve_ReleaseCompletesTaskAndRequestsEscrowAction covers the other
// half of the wiring gap: resolving RELEASE must request the escrow
// release and drive the task to COMPLETED, with exactly one outbox event
// and one trust-ledger row per participant (P4/P5-adjacent uniqueness).
func TestResolve_ReleaseCompletesTaskAndRequestsEscrowAction(t *testing.T) {
	store := memory.New()
	writer := outbox.NewWriter(store)
	svc := dispute.New(store, store, store, store, store, writer, testLogger())
	ctx := context.Background()
	now := time.Now().UTC()
	seedDisputableTask(t, store, now)

	d, err := svc.Create(ctx, "task1", "poster1", now)
	if err != nil {
		t.Fatalf("create dispute: %v", err)
	}

	resolved, err := svc.Resolve(ctx, d.ID, domdispute.OutcomeRelease, 0, 1000, now)
	if err != nil {
		t.Fatalf("resolve dispute: %v", err)
	}
	if resolved.State != domdispute.StateResolved {
		t.Fatalf("expected dispute RESOLVED, got %s", resolved.State)
	}

	tsk, err := store.GetTask(ctx, store.Queryer(), "task1")
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if tsk.Lifecycle != domtask.LifecycleCompleted {
		t.Fatalf("expected task COMPLETED after a RELEASE resolution, got %s", tsk.Lifecycle)
	}

	rows, err := store.ClaimPending(ctx, store.Queryer(), 10)
	if err != nil {
		t.Fatalf("claim pending outbox rows: %v", err)
	}
	releaseRequests := 0
	for _, r := range rows {
		if r.EventType == domoutbox.EventEscrowReleaseRequested {
			releaseRequests++
		}
	}
	if releaseRequests != 1 {
		t.Fatalf("expected exactly one escrow.release_requested row, got %d", releaseRequests)
	}

	for _, role := range []domdispute.Role{domdispute.RolePoster, domdispute.RoleWorker} {
		key := "trust.dispute_resolved." + string(role) + ":" + resolved.ID + ":1"
		_, inserted, err := store.AppendTrust(ctx, store.Queryer(), ledger.TrustEntry{IdempotencyKey: key})
		if err != nil {
			t.Fatalf("probe trust row: %v", err)
		}
		if inserted {
			t.Fatalf("expected a trust row to already exist for key %s", key)
		}
	}
}

// TestResolve_RefundCancelsTask covers the REFUND outcome's task-lifecycle
// side: a pure refund means the task never completed.
func TestResolve_RefundCancelsTask(t *testing.T) {
	store := memory.New()
	writer := outbox.NewWriter(store)
	svc := dispute.New(store, store, store, store, store, writer, testLogger())
	ctx := context.Background()
	now := time.Now().UTC()
	seedDisputableTask(t, store, now)

	d, err := svc.Create(ctx, "task1", "poster1", now)
	if err != nil {
		t.Fatalf("create dispute: %v", err)
	}

	if _, err := svc.Resolve(ctx, d.ID, domdispute.OutcomeRefund, 1000, 0, now); err != nil {
		t.Fatalf("resolve dispute: %v", err)
	}

	tsk, err := store.GetTask(ctx, store.Queryer(), "task1")
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if tsk.Lifecycle != domtask.LifecycleCancelled {
		t.Fatalf("expected task CANCELLED after a REFUND resolution, got %s", tsk.Lifecycle)
	}
}

// TestResolve_SplitRequiresAmountsToSumToEscrow covers the SPLIT outcome's
// own invariant, unrelated to task wiring but guarding the same method.
func TestResolve_SplitRequiresAmountsToSumToEscrow(t *testing.T) {
	store := memory.New()
	writer := outbox.NewWriter(store)
	svc := dispute.New(store, store, store, store, store, writer, testLogger())
	ctx := context.Background()
	now := time.Now().UTC()
	seedDisputableTask(t, store, now)

	d, err := svc.Create(ctx, "task1", "poster1", now)
	if err != nil {
		t.Fatalf("create dispute: %v", err)
	}

	if _, err := svc.Resolve(ctx, d.ID, domdispute.OutcomeSplit, 200, 500, now); err == nil {
		t.Fatalf("expected split amounts that don't sum to the escrow amount to be rejected")
	}
}
