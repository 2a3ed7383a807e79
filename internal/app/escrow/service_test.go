package escrow_test

import (
	"context"
	"testing"

	"github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/logging"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/escrow"
	appoutbox "github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/outbox"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/storage/memory"
	domescrow "github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/escrow"
	domtask "github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/task"
)

func testLogger() *logging.Logger {
	return logging.New("escrow_test", "error", "text")
}

// TestRelease_RequiresTaskCompleted is the regression the maintainer's
// review was ultimately pointed at: before proof/dispute wired the task
// lifecycle, no call path could ever satisfy this gate.
func TestRelease_RequiresTaskCompleted(t *testing.T) {
	store := memory.New()
	writer := appoutbox.NewWriter(store)
	svc := escrow.New(store, store, store, store, writer, testLogger())
	ctx := context.Background()

	if _, err := store.CreateTask(ctx, store.Queryer(), domtask.Task{ID: "task1", Lifecycle: domtask.LifecycleAccepted}); err != nil {
		t.Fatalf("seed task: %v", err)
	}
	if _, err := store.CreateEscrow(ctx, store.Queryer(), domescrow.Escrow{ID: "escrow1", TaskID: "task1", AmountMinor: 2000, State: domescrow.StateFunded}); err != nil {
		t.Fatalf("seed escrow: %v", err)
	}

	if _, err := svc.Release(ctx, "escrow1", 0); err == nil {
		t.Fatalf("expected release to fail while the task is not COMPLETED")
	}
}

// TestRelease_AmountImmutable covers P3/I4: AmountMinor must never change
// once an escrow leaves PENDING, through both the release path and a
// reread from storage.
func TestRelease_AmountImmutable(t *testing.T) {
	store := memory.New()
	writer := appoutbox.NewWriter(store)
	svc := escrow.New(store, store, store, store, writer, testLogger())
	ctx := context.Background()

	if _, err := store.CreateTask(ctx, store.Queryer(), domtask.Task{ID: "task1", Lifecycle: domtask.LifecycleCompleted}); err != nil {
		t.Fatalf("seed task: %v", err)
	}
	if _, err := store.CreateEscrow(ctx, store.Queryer(), domescrow.Escrow{ID: "escrow1", TaskID: "task1", AmountMinor: 2000, State: domescrow.StateFunded}); err != nil {
		t.Fatalf("seed escrow: %v", err)
	}

	released, err := svc.Release(ctx, "escrow1", 1500)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if released.AmountMinor != 2000 {
		t.Fatalf("amount changed on release: got %d", released.AmountMinor)
	}
	if released.State != domescrow.StateReleased {
		t.Fatalf("expected RELEASED, got %s", released.State)
	}

	reread, err := store.GetEscrow(ctx, store.Queryer(), "escrow1")
	if err != nil {
		t.Fatalf("reread escrow: %v", err)
	}
	if reread.AmountMinor != 2000 {
		t.Fatalf("amount drifted on reread: got %d", reread.AmountMinor)
	}
}

// TestPartialRefund_RejectsMismatchedSplit guards the invariant behind
// P3/P9: a split that doesn't sum to the escrow amount must never be
// allowed to silently create or destroy money.
func TestPartialRefund_RejectsMismatchedSplit(t *testing.T) {
	store := memory.New()
	writer := appoutbox.NewWriter(store)
	svc := escrow.New(store, store, store, store, writer, testLogger())
	ctx := context.Background()

	if _, err := store.CreateEscrow(ctx, store.Queryer(), domescrow.Escrow{ID: "escrow1", TaskID: "task1", AmountMinor: 2000, State: domescrow.StateLockedDispute}); err != nil {
		t.Fatalf("seed escrow: %v", err)
	}

	if _, err := svc.PartialRefund(ctx, "escrow1", 500, 1000); err == nil {
		t.Fatalf("expected a refund+release split that doesn't sum to the escrow amount to be rejected")
	}
}
