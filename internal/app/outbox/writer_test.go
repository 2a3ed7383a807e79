package outbox_test

import (
	"context"
	"testing"

	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/outbox"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/storage/memory"
	domoutbox "github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/outbox"
)

// TestEmit_DuplicateIdempotencyKeyRejected covers P4/I9: the same
// event_type:aggregate_id:version tuple can never produce two rows.
func TestEmit_DuplicateIdempotencyKeyRejected(t *testing.T) {
	store := memory.New()
	w := outbox.NewWriter(store)
	ctx := context.Background()
	q := store.Queryer()

	if _, err := w.Emit(ctx, q, domoutbox.EventEscrowReleased, "escrow", "escrow1", 3, domoutbox.QueueCriticalPayments, map[string]string{"a": "b"}); err != nil {
		t.Fatalf("first emit: %v", err)
	}

	if _, err := w.Emit(ctx, q, domoutbox.EventEscrowReleased, "escrow", "escrow1", 3, domoutbox.QueueCriticalPayments, map[string]string{"a": "c"}); err == nil {
		t.Fatalf("expected a second emit with the same event_type/aggregate_id/version to be rejected")
	}
}

// TestEmit_DifferentVersionOrAggregateSucceeds is the negative control for
// the above: the key must be scoped to the full tuple, not over-broad.
func TestEmit_DifferentVersionOrAggregateSucceeds(t *testing.T) {
	store := memory.New()
	w := outbox.NewWriter(store)
	ctx := context.Background()
	q := store.Queryer()

	if _, err := w.Emit(ctx, q, domoutbox.EventEscrowReleased, "escrow", "escrow1", 3, domoutbox.QueueCriticalPayments, nil); err != nil {
		t.Fatalf("emit v3: %v", err)
	}
	if _, err := w.Emit(ctx, q, domoutbox.EventEscrowReleased, "escrow", "escrow1", 4, domoutbox.QueueCriticalPayments, nil); err != nil {
		t.Fatalf("emit v4 for the same aggregate should succeed: %v", err)
	}
	if _, err := w.Emit(ctx, q, domoutbox.EventEscrowReleased, "escrow", "escrow2", 3, domoutbox.QueueCriticalPayments, nil); err != nil {
		t.Fatalf("emit v3 for a different aggregate should succeed: %v", err)
	}

	rows, err := store.ClaimPending(ctx, q, 10)
	if err != nil {
		t.Fatalf("claim pending: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 distinct rows, got %d", len(rows))
	}
}
