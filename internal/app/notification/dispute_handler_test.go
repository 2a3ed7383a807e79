package notification

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/storage/memory"
	domdispute "github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/dispute"
	domoutbox "github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/outbox"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/platform/cache"
)

func disputeRow(t *testing.T, d domdispute.Dispute) domoutbox.Row {
	t.Helper()
	payload, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal dispute: %v", err)
	}
	return domoutbox.Row{EventType: domoutbox.EventDisputeCreated, Payload: payload}
}

func TestHandleDisputeCreated_NotifiesNonInitiatingParty(t *testing.T) {
	store := memory.New()
	svc := New(store, store, cache.NewInMemory(), testLogger())
	ctx := context.Background()

	d := domdispute.Dispute{
		ID:          "dispute1",
		TaskID:      "task1",
		PosterID:    "poster1",
		WorkerID:    "worker1",
		InitiatorID: "poster1",
	}

	if err := svc.HandleDisputeCreated(ctx, disputeRow(t, d)); err != nil {
		t.Fatalf("handle dispute created: %v", err)
	}

	claimed, err := store.ClaimPendingEmails(ctx, store.Queryer(), 10)
	if err != nil {
		t.Fatalf("claim email outbox: %v", err)
	}
	if len(claimed) != 1 {
		t.Fatalf("expected a dispute_update notification to queue one email, got %d", len(claimed))
	}
	if claimed[0].ToAddress != "worker1" {
		t.Fatalf("expected the non-initiating worker to be notified, got %s", claimed[0].ToAddress)
	}
}

func TestHandleDisputeCreated_NotifiesPosterWhenWorkerInitiated(t *testing.T) {
	store := memory.New()
	svc := New(store, store, cache.NewInMemory(), testLogger())
	ctx := context.Background()

	d := domdispute.Dispute{
		ID:          "dispute2",
		TaskID:      "task2",
		PosterID:    "poster2",
		WorkerID:    "worker2",
		InitiatorID: "worker2",
	}

	if err := svc.HandleDisputeCreated(ctx, disputeRow(t, d)); err != nil {
		t.Fatalf("handle dispute created: %v", err)
	}

	claimed, err := store.ClaimPendingEmails(ctx, store.Queryer(), 10)
	if err != nil {
		t.Fatalf("claim email outbox: %v", err)
	}
	if len(claimed) != 1 {
		t.Fatalf("expected one queued email, got %d", len(claimed))
	}
	if claimed[0].ToAddress != "poster2" {
		t.Fatalf("expected the non-initiating poster to be notified, got %s", claimed[0].ToAddress)
	}
}
