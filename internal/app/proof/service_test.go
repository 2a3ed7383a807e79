package proof

import (
	"context"
	"testing"

	"github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/logging"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/storage/memory"
	domtask "github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/task"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/platform/vision"
)

func testLogger() *logging.Logger {
	return logging.New("proof_test", "error", "text")
}

func seedProofSubmittedTask(t *testing.T, store *memory.Store, id string) domtask.Task {
	t.Helper()
	tsk := domtask.Task{ID: id, Lifecycle: domtask.LifecycleProofSubmitted, Progress: domtask.ProgressWorking}
	created, err := store.CreateTask(context.Background(), store.Queryer(), tsk)
	if err != nil {
		t.Fatalf("seed task: %v", err)
	}
	return created
}

// TestReview_AcceptCompletesTask covers P1: a proof reaching ACCEPTED must
// bring its task to COMPLETED in the same call, never leaving the
// escrow.Release precondition unreachable.
func TestReview_AcceptCompletesTask(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, vision.NoopLiveness{}, vision.NoopLogistics{}, testLogger())
	ctx := context.Background()

	seedProofSubmittedTask(t, store, "task1")
	submitted, err := svc.Submit(ctx, "task1", "worker1", nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	reviewed, err := svc.Review(ctx, submitted.ID, "reviewer1", DecisionAccept, "")
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if reviewed.State != "ACCEPTED" {
		t.Fatalf("expected proof ACCEPTED, got %s", reviewed.State)
	}

	tsk, err := store.GetTask(ctx, store.Queryer(), "task1")
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if tsk.Lifecycle != domtask.LifecycleCompleted {
		t.Fatalf("expected task COMPLETED after proof acceptance, got %s", tsk.Lifecycle)
	}
	if tsk.CompletedAt.IsZero() {
		t.Fatalf("expected completed_at to be set")
	}
}

// TestReview_RejectLeavesTaskLifecycleUntouched covers the negative half of
// P1: a rejected proof never advances the task's lifecycle.
func TestReview_RejectLeavesTaskLifecycleUntouched(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, vision.NoopLiveness{}, vision.NoopLogistics{}, testLogger())
	ctx := context.Background()

	seedProofSubmittedTask(t, store, "task1")
	submitted, err := svc.Submit(ctx, "task1", "worker1", nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if _, err := svc.Review(ctx, submitted.ID, "reviewer1", DecisionReject, "blurry photo"); err != nil {
		t.Fatalf("review: %v", err)
	}

	tsk, err := store.GetTask(ctx, store.Queryer(), "task1")
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if tsk.Lifecycle != domtask.LifecycleProofSubmitted {
		t.Fatalf("expected task lifecycle unchanged at PROOF_SUBMITTED, got %s", tsk.Lifecycle)
	}
}

// TestReview_AcceptRejectsWhenTaskCannotReachCompleted covers the edge case
// where the proof transition is legal but the task's current lifecycle has
// no COMPLETED edge (e.g. it was already cancelled out from under the
// proof) — the whole review must fail rather than complete half the work.
func TestReview_AcceptRejectsWhenTaskCannotReachCompleted(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, vision.NoopLiveness{}, vision.NoopLogistics{}, testLogger())
	ctx := context.Background()

	tsk := seedProofSubmittedTask(t, store, "task1")
	submitted, err := svc.Submit(ctx, "task1", "worker1", nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	tsk.Lifecycle = domtask.LifecycleCancelled
	if _, err := store.UpdateTask(ctx, store.Queryer(), tsk); err != nil {
		t.Fatalf("cancel task out of band: %v", err)
	}

	if _, err := svc.Review(ctx, submitted.ID, "reviewer1", DecisionAccept, ""); err == nil {
		t.Fatalf("expected review to fail when the task can no longer reach COMPLETED")
	}

	p, err := store.GetProof(ctx, store.Queryer(), submitted.ID)
	if err != nil {
		t.Fatalf("get proof: %v", err)
	}
	if p.State != "SUBMITTED" {
		t.Fatalf("expected proof to remain SUBMITTED after a failed review, got %s", p.State)
	}
}
