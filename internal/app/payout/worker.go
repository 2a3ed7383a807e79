// Package payout consumes escrow outbox events and drives the two
// operations spec.md §4.F/§6 reserve for effect workers: converting a
// dispute's resolution request into the actual escrow write, and, once an
// escrow is released/refunded/partially-refunded, calling out to the
// payment processor to move the money. Grounded on
// internal/app/webhook/effects's Worker shape (a struct with one Handle
// method matching outbox.Handler, dispatching on event type).
package payout

import (
	"context"
	"encoding/json"

	apperrors "github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/errors"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/logging"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/escrow"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/storage"
	domoutbox "github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/outbox"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/platform/paymentprocessor"
)

// DefaultCurrency is used absent a task/escrow-level currency override,
// mirroring domain/ledger.DecomposePlatformFee's default.
const DefaultCurrency = "usd"

// DisputeActionWorker converts a dispute resolution's outbox request into
// the corresponding escrow.Service call. Registered against
// domoutbox.EventEscrowReleaseRequested/RefundRequested/PartialRefundRequested.
type DisputeActionWorker struct {
	escrows *escrow.Service
	log     *logging.Logger
}

// NewDisputeActionWorker constructs a DisputeActionWorker.
func NewDisputeActionWorker(escrows *escrow.Service, log *logging.Logger) *DisputeActionWorker {
	return &DisputeActionWorker{escrows: escrows, log: log}
}

// escrowActionRequest mirrors internal/app/dispute's private payload
// shape; the two packages don't share a type to avoid a dependency cycle
// (dispute depends on nothing in this package), so the JSON tags here
// must stay in sync with dispute.Service.Resolve's emitted payload.
type escrowActionRequest struct {
	EscrowID     string `json:"escrow_id"`
	DisputeID    string `json:"dispute_id"`
	RefundMinor  int64  `json:"refund_minor"`
	ReleaseMinor int64  `json:"release_minor"`
}

// Handle satisfies outbox.Handler's func(ctx, domoutbox.Row) error shape.
func (w *DisputeActionWorker) Handle(ctx context.Context, row domoutbox.Row) error {
	var req escrowActionRequest
	if err := json.Unmarshal(row.Payload, &req); err != nil {
		return apperrors.Internal("unmarshal escrow action request", err)
	}

	var err error
	switch row.EventType {
	case domoutbox.EventEscrowReleaseRequested:
		_, err = w.escrows.Release(ctx, req.EscrowID, escrow.DefaultFeeBasisPoints)
	case domoutbox.EventEscrowRefundRequested:
		_, err = w.escrows.Refund(ctx, req.EscrowID, "dispute_resolution:"+req.DisputeID)
	case domoutbox.EventEscrowPartialRefundRequested:
		_, err = w.escrows.PartialRefund(ctx, req.EscrowID, req.RefundMinor, req.ReleaseMinor)
	default:
		w.log.WithFields(map[string]interface{}{"type": row.EventType}).Warn("dispute action worker: unhandled event type")
		return nil
	}
	if apperrors.Is(err, apperrors.ErrCodeEscrowTerminal) {
		// A retried delivery after the escrow already transitioned: the
		// terminal-state guard makes this a safe no-op.
		return nil
	}
	return err
}

// Reconciler calls the payment processor once an escrow has actually
// transitioned, per spec.md §6 ("called by effect workers only"). This is
// the PayoutReconciler named in the expanded spec for the transfer.paid
// settlement path; here it initiates the transfer/refund the provider
// later confirms via that webhook event.
type Reconciler struct {
	runner    storage.TxRunner
	escrows   storage.EscrowStore
	tasks     storage.TaskStore
	processor paymentprocessor.Processor
	log       *logging.Logger
}

// NewReconciler constructs a payout Reconciler.
func NewReconciler(runner storage.TxRunner, escrows storage.EscrowStore, tasks storage.TaskStore, processor paymentprocessor.Processor, log *logging.Logger) *Reconciler {
	return &Reconciler{runner: runner, escrows: escrows, tasks: tasks, processor: processor, log: log}
}

// Handle satisfies outbox.Handler's func(ctx, domoutbox.Row) error shape.
// Registered against domoutbox.EventEscrowReleased/EventEscrowRefunded/
// EventEscrowPartialRefunded.
func (r *Reconciler) Handle(ctx context.Context, row domoutbox.Row) error {
	idempotencyKey := row.IdempotencyKey

	return r.runner.WithTx(ctx, func(ctx context.Context, q storage.Queryer) error {
		e, err := r.escrows.GetEscrow(ctx, q, row.AggregateID)
		if err != nil {
			return err
		}
		t, err := r.tasks.GetTask(ctx, q, e.TaskID)
		if err != nil {
			return err
		}

		switch row.EventType {
		case domoutbox.EventEscrowReleased:
			if e.ReleaseMinor > 0 {
				_, err = r.processor.CreateTransfer(ctx, idempotencyKey, e.ID, t.WorkerID, e.ReleaseMinor, DefaultCurrency)
			}
		case domoutbox.EventEscrowRefunded:
			if e.RefundMinor > 0 {
				_, err = r.processor.IssueRefund(ctx, idempotencyKey, e.ChargeID, e.RefundMinor)
			}
		case domoutbox.EventEscrowPartialRefunded:
			if e.RefundMinor > 0 {
				if _, rErr := r.processor.IssueRefund(ctx, idempotencyKey+":refund", e.ChargeID, e.RefundMinor); rErr != nil {
					return rErr
				}
			}
			if e.ReleaseMinor > 0 {
				_, err = r.processor.CreateTransfer(ctx, idempotencyKey+":transfer", e.ID, t.WorkerID, e.ReleaseMinor, DefaultCurrency)
			}
		default:
			r.log.WithFields(map[string]interface{}{"type": row.EventType}).Warn("payout reconciler: unhandled event type")
			return nil
		}
		if err != nil {
			return err
		}
		r.log.WithFields(map[string]interface{}{"escrow_id": e.ID, "event_type": row.EventType}).Info("payout reconciled")
		return nil
	})
}
