// Package outbox holds the transactional outbox row and the typed payload
// envelope shared by every writer (§4.B).
package outbox

import (
	"encoding/json"
	"fmt"
	"time"
)

// Queue is a logical partition with its own concurrency cap and retry
// policy (§4.B).
type Queue string

const (
	QueueCriticalPayments Queue = "critical_payments"
	QueueCriticalTrust    Queue = "critical_trust"
	QueueUserNotif        Queue = "user_notifications"
	QueueExports          Queue = "exports"
	QueueMaintenance      Queue = "maintenance"
)

// Status is the row's delivery lifecycle.
type Status string

const (
	StatusPending   Status = "pending"
	StatusEnqueued  Status = "enqueued"
	StatusProcessed Status = "processed"
	StatusFailed    Status = "failed"
)

// EventType is a stable discriminator over every domain event this module
// emits. New types should be added here, never invented ad hoc at call
// sites, so the dispatcher's type switch stays exhaustive.
type EventType string

const (
	EventEscrowFunded           EventType = "escrow.funded"
	EventEscrowReleased         EventType = "escrow.released"
	EventEscrowRefunded         EventType = "escrow.refunded"
	EventEscrowPartialRefunded EventType = "escrow.partial_refunded"
	// The three "_requested" events are emitted only by dispute resolution
	// (internal/app/dispute.Service.Resolve), which never writes the
	// escrow row itself. A dedicated worker converts each into the
	// matching escrow.Service call, which then emits the corresponding
	// completed event above for the payout worker to act on.
	EventEscrowReleaseRequested       EventType = "escrow.release_requested"
	EventEscrowRefundRequested        EventType = "escrow.refund_requested"
	EventEscrowPartialRefundRequested EventType = "escrow.partial_refund_requested"
	EventDisputeCreated               EventType = "dispute.created"
	EventStripeEventReceived           EventType = "stripe.event_received"
	// EventTrustDisputeResolved, EventNotificationDispatch and
	// EventSupplyWaitlistInvite are reserved but unemitted: the ledger
	// write on dispute resolution, the notification insert, and the
	// waitlist invite insert each happen in the same transaction as
	// their trigger rather than through a second outbox hop, so there is
	// no producer for these three (see DESIGN.md).
	EventTrustDisputeResolved EventType = "trust.dispute_resolved"
	EventNotificationDispatch EventType = "notification.dispatch"
	EventSupplyWaitlistInvite EventType = "supply.waitlist_invite"
)

// Row is one durable outbox record, written in the same transaction as the
// domain rows it describes (§4.B).
type Row struct {
	ID             string
	EventType      EventType
	AggregateType  string
	AggregateID    string
	EventVersion   int
	IdempotencyKey string // unique (I9)
	Payload        json.RawMessage
	Queue          Queue
	Status         Status
	Attempts       int
	CreatedAt      time.Time
	EnqueuedAt     time.Time
	ProcessedAt    time.Time
}

// Key builds the canonical idempotency key from spec.md §4.B:
// {event_type}:{aggregate_id}:{version}.
func Key(eventType EventType, aggregateID string, version int) string {
	return fmt.Sprintf("%s:%s:%d", eventType, aggregateID, version)
}
