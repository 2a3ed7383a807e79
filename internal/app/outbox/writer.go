// Package outbox implements the transactional outbox writer, typed queue
// routing and dispatcher described in spec.md §4.B, grounded on the
// teacher's direct-call webhook firing in
// services/automation/automation_triggers.go, generalized into a durable
// row the caller appends in the same transaction as its domain writes
// (the teacher has no outbox of its own — this is new code built in its
// idiom, reusing its storage.Queryer/TxRunner primitive).
package outbox

import (
	"context"
	"encoding/json"

	apperrors "github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/errors"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/storage"
	domoutbox "github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/outbox"
	"github.com/google/uuid"
)

// Writer appends durable outbox rows inside the caller's transaction.
type Writer struct {
	store storage.OutboxStore
}

// NewWriter builds a Writer over the given OutboxStore.
func NewWriter(store storage.OutboxStore) *Writer {
	return &Writer{store: store}
}

// Emit marshals payload and inserts a pending outbox row with the canonical
// idempotency key {event_type}:{aggregate_id}:{version} (§4.B). Callers must
// invoke this from inside the same storage.TxRunner.WithTx scope as the
// domain write it describes, so the row commits atomically with it.
func (w *Writer) Emit(ctx context.Context, q storage.Queryer, eventType domoutbox.EventType, aggregateType, aggregateID string, version int, queue domoutbox.Queue, payload interface{}) (domoutbox.Row, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return domoutbox.Row{}, apperrors.Internal("marshal outbox payload", err)
	}
	row := domoutbox.Row{
		ID:             uuid.NewString(),
		EventType:      eventType,
		AggregateType:  aggregateType,
		AggregateID:    aggregateID,
		EventVersion:   version,
		IdempotencyKey: domoutbox.Key(eventType, aggregateID, version),
		Payload:        raw,
		Queue:          queue,
		Status:         domoutbox.StatusPending,
	}
	return w.store.Insert(ctx, q, row)
}
