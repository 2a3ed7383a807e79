// Package dispute implements create/resolve for the dispute pipeline of
// spec.md §4.E, grounded on internal/app/services/gasbank/service.go's
// store-backed Service shape (same as escrow/task). create locks the
// escrow and writes the dispute row in one transaction, reaching into
// storage.EscrowStore directly rather than calling the escrow service, the
// same way escrow.Service.Release reaches into storage.TaskStore directly
// — a single domain write belongs in one transactional scope, not a
// cross-service call chain. resolve never writes the escrow: it only
// emits the outbox request a separate worker later converts into the
// actual transition, preserving the "resolver and actor" separation the
// spec calls out by name.
package dispute

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/errors"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/logging"
	core "github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/core/service"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/outbox"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/storage"
	domdispute "github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/dispute"
	domescrow "github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/escrow"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/ledger"
	domoutbox "github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/outbox"
	domtask "github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/task"
)

// Service implements dispute creation and resolution.
type Service struct {
	runner   storage.TxRunner
	disputes storage.DisputeStore
	escrows  storage.EscrowStore
	tasks    storage.TaskStore
	ledgers  storage.LedgerStore
	outbox   *outbox.Writer
	log      *logging.Logger
}

// New constructs a dispute Service.
func New(runner storage.TxRunner, disputes storage.DisputeStore, escrows storage.EscrowStore, tasks storage.TaskStore, ledgers storage.LedgerStore, writer *outbox.Writer, log *logging.Logger) *Service {
	return &Service{runner: runner, disputes: disputes, escrows: escrows, tasks: tasks, ledgers: ledgers, outbox: writer, log: log}
}

// Descriptor advertises the service's placement and capabilities.
func (s *Service) Descriptor() core.Descriptor {
	return core.Descriptor{
		Name:         "dispute",
		Domain:       "marketplace",
		Layer:        core.LayerEngine,
		Capabilities: []string{"create", "resolve"},
	}
}

// Create opens a dispute: task.completed_at must still be within the
// 48-hour window, the initiator must be the poster or worker, and the
// escrow must be FUNDED. Locks the escrow (FUNDED->LOCKED_DISPUTE) and
// creates the dispute row atomically with the outbox emit.
func (s *Service) Create(ctx context.Context, taskID, initiatorID string, now time.Time) (domdispute.Dispute, error) {
	var out domdispute.Dispute
	err := s.runner.WithTx(ctx, func(ctx context.Context, q storage.Queryer) error {
		t, err := s.tasks.GetTaskForUpdate(ctx, q, taskID)
		if err != nil {
			return err
		}
		if !domdispute.WithinWindow(t.CompletedAt, now) {
			return apperrors.InvalidInput("task_id", "outside the dispute eligibility window")
		}
		if initiatorID != t.PosterID && initiatorID != t.WorkerID {
			return apperrors.Forbidden("only the poster or assigned worker may open a dispute")
		}

		byTask, err := s.escrows.GetEscrowByTask(ctx, q, t.ID)
		if err != nil {
			return err
		}
		e, err := s.escrows.GetEscrowForUpdate(ctx, q, byTask.ID)
		if err != nil {
			return err
		}
		if e.State != domescrow.StateFunded {
			if e.State.IsTerminal() {
				return apperrors.EscrowTerminal(e.ID)
			}
			return apperrors.InvalidState("escrow", string(e.State))
		}
		e.State = domescrow.StateLockedDispute
		if _, err := s.escrows.UpdateEscrow(ctx, q, e, e.Version); err != nil {
			return err
		}

		if !domtask.CanTransitionLifecycle(t.Lifecycle, domtask.LifecycleDisputed) {
			return apperrors.InvalidTransition(string(t.Lifecycle), string(domtask.LifecycleDisputed))
		}
		t.Lifecycle = domtask.LifecycleDisputed
		if _, err := s.tasks.UpdateTask(ctx, q, t); err != nil {
			return err
		}

		d := domdispute.Dispute{
			TaskID:      t.ID,
			EscrowID:    e.ID,
			InitiatorID: initiatorID,
			PosterID:    t.PosterID,
			WorkerID:    t.WorkerID,
			State:       domdispute.StateOpen,
			Version:     1,
		}
		created, err := s.disputes.CreateDispute(ctx, q, d)
		if err != nil {
			return err
		}
		if _, err := s.outbox.Emit(ctx, q, domoutbox.EventDisputeCreated, "dispute", created.ID, created.Version, domoutbox.QueueCriticalTrust, created); err != nil {
			return err
		}
		out = created
		return nil
	})
	if err != nil {
		return domdispute.Dispute{}, err
	}
	s.log.WithFields(map[string]interface{}{"dispute_id": out.ID, "task_id": out.TaskID}).Info("dispute created")
	return out, nil
}

// Resolve decides an OPEN/EVIDENCE_REQUESTED/ESCALATED dispute under admin
// authority. The escrow must be LOCKED_DISPUTE; SPLIT requires
// refundMinor+releaseMinor == escrow.amount. Resolve writes the dispute
// row, appends two trust-ledger entries (one per role) and emits exactly
// one escrow-action-request outbox event — it never touches the escrow
// itself.
func (s *Service) Resolve(ctx context.Context, disputeID string, outcome domdispute.Outcome, refundMinor, releaseMinor int64, now time.Time) (domdispute.Dispute, error) {
	var out domdispute.Dispute
	err := s.runner.WithTx(ctx, func(ctx context.Context, q storage.Queryer) error {
		d, err := s.disputes.GetDisputeForUpdate(ctx, q, disputeID)
		if err != nil {
			return err
		}
		if d.State.IsTerminal() {
			return apperrors.InvalidState("dispute", string(d.State))
		}
		if !domdispute.CanTransition(d.State, domdispute.StateResolved) {
			return apperrors.InvalidTransition(string(d.State), string(domdispute.StateResolved))
		}

		e, err := s.escrows.GetEscrow(ctx, q, d.EscrowID)
		if err != nil {
			return err
		}
		if e.State != domescrow.StateLockedDispute {
			return apperrors.InvalidState("escrow", string(e.State))
		}

		var eventType domoutbox.EventType
		var taskOutcome domtask.LifecycleState
		switch outcome {
		case domdispute.OutcomeRelease:
			eventType = domoutbox.EventEscrowReleaseRequested
			taskOutcome = domtask.LifecycleCompleted
		case domdispute.OutcomeRefund:
			eventType = domoutbox.EventEscrowRefundRequested
			taskOutcome = domtask.LifecycleCancelled
		case domdispute.OutcomeSplit:
			if refundMinor+releaseMinor != e.AmountMinor {
				return apperrors.InvalidInput("refund_amount/release_amount", "must sum to escrow amount")
			}
			eventType = domoutbox.EventEscrowPartialRefundRequested
			// A split still recognizes that work was performed, so the task
			// closes out COMPLETED rather than CANCELLED (DESIGN.md).
			taskOutcome = domtask.LifecycleCompleted
		default:
			return apperrors.InvalidInput("outcome", "unrecognized dispute outcome")
		}

		t, err := s.tasks.GetTaskForUpdate(ctx, q, d.TaskID)
		if err != nil {
			return err
		}
		if !domtask.CanTransitionLifecycle(t.Lifecycle, taskOutcome) {
			return apperrors.InvalidTransition(string(t.Lifecycle), string(taskOutcome))
		}
		t.Lifecycle = taskOutcome
		if taskOutcome == domtask.LifecycleCompleted {
			t.CompletedAt = now
		}
		if _, err := s.tasks.UpdateTask(ctx, q, t); err != nil {
			return err
		}

		d.State = domdispute.StateResolved
		d.Outcome = outcome
		d.RefundMinor = refundMinor
		d.ReleaseMinor = releaseMinor
		d.ResolvedAt = now
		updated, err := s.disputes.UpdateDispute(ctx, q, d, d.Version)
		if err != nil {
			return err
		}

		if _, err := s.outbox.Emit(ctx, q, eventType, "escrow", e.ID, e.Version, domoutbox.QueueCriticalPayments, escrowActionRequest{
			EscrowID:     e.ID,
			DisputeID:    updated.ID,
			RefundMinor:  refundMinor,
			ReleaseMinor: releaseMinor,
		}); err != nil {
			return err
		}

		for _, participant := range []struct {
			role   domdispute.Role
			userID string
		}{
			{domdispute.RolePoster, updated.PosterID},
			{domdispute.RoleWorker, updated.WorkerID},
		} {
			entry := ledger.TrustEntry{
				UserID:         participant.userID,
				Reason:         ledger.TrustReasonDisputeResolved,
				SourceEventID:  updated.ID,
				IdempotencyKey: fmt.Sprintf("trust.dispute_resolved.%s:%s:1", participant.role, updated.ID),
			}
			if _, _, err := s.ledgers.AppendTrust(ctx, q, entry); err != nil {
				return err
			}
		}

		out = updated
		return nil
	})
	if err != nil {
		return domdispute.Dispute{}, err
	}
	s.log.WithFields(map[string]interface{}{"dispute_id": out.ID, "outcome": out.Outcome}).Info("dispute resolved")
	return out, nil
}

// escrowActionRequest is the outbox payload a later worker reads to
// perform the actual escrow release/refund/partial_refund on the
// resolver's behalf.
type escrowActionRequest struct {
	EscrowID     string `json:"escrow_id"`
	DisputeID    string `json:"dispute_id"`
	RefundMinor  int64  `json:"refund_minor"`
	ReleaseMinor int64  `json:"release_minor"`
}
