package webhook

import (
	"context"
	"testing"
	"time"

	"github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/logging"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/outbox"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/storage/memory"
	domoutbox "github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/outbox"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/stripeevent"
)

func testLogger() *logging.Logger {
	return logging.New("webhook_test", "error", "text")
}

// TestIngest_SameExternalIDAtMostOnce covers P5: redelivering the same
// provider event id must store exactly one event row and emit exactly one
// stripe.event_received outbox row, no matter how many times it arrives.
func TestIngest_SameExternalIDAtMostOnce(t *testing.T) {
	store := memory.New()
	writer := outbox.NewWriter(store)
	ing := NewIngestor(store, store, writer, "test-secret", testLogger())
	ctx := context.Background()

	ev := stripeevent.Event{
		ExternalID:      "evt_123",
		Type:            stripeevent.TypePaymentIntentSucceeded,
		ExternalCreated: time.Now().UTC(),
	}

	var storedCount int
	for i := 0; i < 3; i++ {
		stored, err := ing.ingest(ctx, ev)
		if err != nil {
			t.Fatalf("ingest attempt %d: %v", i, err)
		}
		if stored {
			storedCount++
		}
	}
	if storedCount != 1 {
		t.Fatalf("expected exactly one delivery to report stored=true, got %d", storedCount)
	}

	rows, err := store.ClaimPending(ctx, store.Queryer(), 10)
	if err != nil {
		t.Fatalf("claim pending: %v", err)
	}
	var received int
	for _, r := range rows {
		if r.EventType == domoutbox.EventStripeEventReceived && r.AggregateID == ev.ExternalID {
			received++
		}
	}
	if received != 1 {
		t.Fatalf("expected exactly one stripe.event_received row, got %d", received)
	}
}

// TestIngest_DifferentExternalIDsBothStored is the negative control: the
// at-most-once guard is keyed on external id, not global.
func TestIngest_DifferentExternalIDsBothStored(t *testing.T) {
	store := memory.New()
	writer := outbox.NewWriter(store)
	ing := NewIngestor(store, store, writer, "test-secret", testLogger())
	ctx := context.Background()

	for _, id := range []string{"evt_a", "evt_b"} {
		stored, err := ing.ingest(ctx, stripeevent.Event{ExternalID: id, Type: stripeevent.TypeChargeRefunded, ExternalCreated: time.Now().UTC()})
		if err != nil {
			t.Fatalf("ingest %s: %v", id, err)
		}
		if !stored {
			t.Fatalf("expected %s to be newly stored", id)
		}
	}
}
