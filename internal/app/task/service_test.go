package task_test

import (
	"context"
	"testing"

	"github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/logging"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/storage/memory"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/task"
	domtask "github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/task"
)

func testLogger() *logging.Logger {
	return logging.New("task_test", "error", "text")
}

// TestTransitionProgress_OnlyOneStepForward covers P6: progress is a
// strictly monotonic axis, exactly one step forward, no skips and no
// reversals.
func TestTransitionProgress_OnlyOneStepForward(t *testing.T) {
	cases := []struct {
		name    string
		from    domtask.ProgressState
		to      domtask.ProgressState
		wantErr bool
	}{
		{"next step is allowed", domtask.ProgressPosted, domtask.ProgressAccepted, false},
		{"skipping a step is rejected", domtask.ProgressPosted, domtask.ProgressTraveling, true},
		{"reversal is rejected", domtask.ProgressWorking, domtask.ProgressAccepted, true},
		{"staying put is rejected", domtask.ProgressAccepted, domtask.ProgressAccepted, true},
		{"last legal step is allowed", domtask.ProgressCompleted, domtask.ProgressClosed, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := memory.New()
			svc := task.New(store, store, testLogger())
			ctx := context.Background()
			seed := domtask.Task{ID: "seed", Lifecycle: domtask.LifecycleAccepted, Progress: tc.from}
			if _, err := store.CreateTask(ctx, store.Queryer(), seed); err != nil {
				t.Fatalf("seed task: %v", err)
			}

			updated, err := svc.TransitionProgress(ctx, seed.ID, tc.to)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected %s->%s to be rejected", tc.from, tc.to)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if updated.Progress != tc.to {
				t.Fatalf("expected progress %s, got %s", tc.to, updated.Progress)
			}
		})
	}
}

// TestTransitionLifecycle_OnlyFixedAdjacencyAllowed covers the lifecycle
// half of §4.D's state machine: every edge not present in the fixed
// adjacency map must be rejected, and a terminal state can never move.
func TestTransitionLifecycle_OnlyFixedAdjacencyAllowed(t *testing.T) {
	cases := []struct {
		name    string
		from    domtask.LifecycleState
		to      domtask.LifecycleState
		wantErr bool
	}{
		{"open to matching", domtask.LifecycleOpen, domtask.LifecycleMatching, false},
		{"open to completed is not a direct edge", domtask.LifecycleOpen, domtask.LifecycleCompleted, true},
		{"accepted to disputed", domtask.LifecycleAccepted, domtask.LifecycleDisputed, false},
		{"proof_submitted to completed", domtask.LifecycleProofSubmitted, domtask.LifecycleCompleted, false},
		{"disputed to proof_submitted is not an edge", domtask.LifecycleDisputed, domtask.LifecycleProofSubmitted, true},
		{"completed is terminal", domtask.LifecycleCompleted, domtask.LifecycleDisputed, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := memory.New()
			svc := task.New(store, store, testLogger())
			ctx := context.Background()
			seed := domtask.Task{ID: "seed", Lifecycle: tc.from, Progress: domtask.ProgressPosted}
			if _, err := store.CreateTask(ctx, store.Queryer(), seed); err != nil {
				t.Fatalf("seed task: %v", err)
			}

			updated, err := svc.TransitionLifecycle(ctx, seed.ID, tc.to)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected %s->%s to be rejected", tc.from, tc.to)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if updated.Lifecycle != tc.to {
				t.Fatalf("expected lifecycle %s, got %s", tc.to, updated.Lifecycle)
			}
		})
	}
}
