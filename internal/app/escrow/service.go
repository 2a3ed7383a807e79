// Package escrow implements the fund/release/refund/partial_refund/
// lock_for_dispute operations of spec.md §4.C, grounded on the teacher's
// internal/app/services/gasbank.Service shape (store-backed struct, one
// receiver method per operation, structured logging on every state
// change).
package escrow

import (
	"context"

	apperrors "github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/errors"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/logging"
	core "github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/core/service"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/metrics"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/outbox"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/storage"
	domescrow "github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/escrow"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/ledger"
	domoutbox "github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/outbox"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/task"
)

// DefaultFeeBasisPoints is the platform's take rate absent a task-specific
// override, expressed in basis points (1500 = 15%).
const DefaultFeeBasisPoints = 1500

// Service implements the escrow state machine.
type Service struct {
	runner  storage.TxRunner
	escrows storage.EscrowStore
	tasks   storage.TaskStore
	ledgers storage.LedgerStore
	outbox  *outbox.Writer
	log     *logging.Logger
}

// New constructs an escrow Service.
func New(runner storage.TxRunner, escrows storage.EscrowStore, tasks storage.TaskStore, ledgers storage.LedgerStore, writer *outbox.Writer, log *logging.Logger) *Service {
	return &Service{runner: runner, escrows: escrows, tasks: tasks, ledgers: ledgers, outbox: writer, log: log}
}

// Descriptor advertises the service's placement and capabilities.
func (s *Service) Descriptor() core.Descriptor {
	return core.Descriptor{
		Name:         "escrow",
		Domain:       "marketplace",
		Layer:        core.LayerEngine,
		Capabilities: []string{"fund", "release", "refund", "partial_refund", "lock_for_dispute"},
	}
}

// Fund transitions PENDING->FUNDED, records the payment-intent reference
// and emits escrow.funded.
func (s *Service) Fund(ctx context.Context, escrowID, paymentIntentID, chargeID string) (domescrow.Escrow, error) {
	var out domescrow.Escrow
	err := s.runner.WithTx(ctx, func(ctx context.Context, q storage.Queryer) error {
		e, err := s.escrows.GetEscrowForUpdate(ctx, q, escrowID)
		if err != nil {
			return err
		}
		if e.State != domescrow.StatePending {
			if e.State.IsTerminal() {
				return apperrors.EscrowTerminal(e.ID)
			}
			return apperrors.InvalidState("escrow", string(e.State))
		}
		e.State = domescrow.StateFunded
		e.PaymentIntentID = paymentIntentID
		e.ChargeID = chargeID
		updated, err := s.escrows.UpdateEscrow(ctx, q, e, e.Version)
		if err != nil {
			return err
		}
		if _, err := s.outbox.Emit(ctx, q, domoutbox.EventEscrowFunded, "escrow", updated.ID, updated.Version, domoutbox.QueueCriticalPayments, updated); err != nil {
			return err
		}
		out = updated
		return nil
	})
	if err != nil {
		return domescrow.Escrow{}, err
	}
	metrics.RecordEscrowTransition(string(out.State))
	s.log.WithFields(map[string]interface{}{"escrow_id": out.ID, "task_id": out.TaskID}).Info("escrow funded")
	return out, nil
}

// Release transitions FUNDED->RELEASED once the task is COMPLETED (I2),
// decomposes the platform fee into a revenue-ledger row and emits
// escrow.released.
func (s *Service) Release(ctx context.Context, escrowID string, feeBasisPoints int) (domescrow.Escrow, error) {
	if feeBasisPoints <= 0 {
		feeBasisPoints = DefaultFeeBasisPoints
	}
	var out domescrow.Escrow
	err := s.runner.WithTx(ctx, func(ctx context.Context, q storage.Queryer) error {
		e, err := s.escrows.GetEscrowForUpdate(ctx, q, escrowID)
		if err != nil {
			return err
		}
		if e.State != domescrow.StateFunded {
			if e.State.IsTerminal() {
				return apperrors.EscrowTerminal(e.ID)
			}
			return apperrors.InvalidState("escrow", string(e.State))
		}
		t, err := s.tasks.GetTaskForUpdate(ctx, q, e.TaskID)
		if err != nil {
			return err
		}
		if t.Lifecycle != task.LifecycleCompleted {
			if t.Lifecycle.IsTerminal() {
				return apperrors.TaskTerminal(t.ID)
			}
			return apperrors.InvalidState("task", string(t.Lifecycle))
		}

		e.State = domescrow.StateReleased
		e.ReleaseMinor = e.AmountMinor
		updated, err := s.escrows.UpdateEscrow(ctx, q, e, e.Version)
		if err != nil {
			return err
		}

		revenue := ledger.DecomposePlatformFee(updated.ID, updated.AmountMinor, feeBasisPoints)
		if _, err := s.ledgers.AppendRevenue(ctx, q, revenue); err != nil {
			return err
		}

		if _, err := s.outbox.Emit(ctx, q, domoutbox.EventEscrowReleased, "escrow", updated.ID, updated.Version, domoutbox.QueueCriticalPayments, updated); err != nil {
			return err
		}
		out = updated
		return nil
	})
	if err != nil {
		return domescrow.Escrow{}, err
	}
	metrics.RecordEscrowTransition(string(out.State))
	s.log.WithFields(map[string]interface{}{"escrow_id": out.ID, "task_id": out.TaskID}).Info("escrow released")
	return out, nil
}

// Refund transitions FUNDED or LOCKED_DISPUTE to REFUNDED.
func (s *Service) Refund(ctx context.Context, escrowID, reason string) (domescrow.Escrow, error) {
	var out domescrow.Escrow
	err := s.runner.WithTx(ctx, func(ctx context.Context, q storage.Queryer) error {
		e, err := s.escrows.GetEscrowForUpdate(ctx, q, escrowID)
		if err != nil {
			return err
		}
		if e.State != domescrow.StateFunded && e.State != domescrow.StateLockedDispute {
			if e.State.IsTerminal() {
				return apperrors.EscrowTerminal(e.ID)
			}
			return apperrors.InvalidState("escrow", string(e.State))
		}
		e.State = domescrow.StateRefunded
		e.RefundMinor = e.AmountMinor
		updated, err := s.escrows.UpdateEscrow(ctx, q, e, e.Version)
		if err != nil {
			return err
		}
		if _, err := s.outbox.Emit(ctx, q, domoutbox.EventEscrowRefunded, "escrow", updated.ID, updated.Version, domoutbox.QueueCriticalPayments, refundPayload{Escrow: updated, Reason: reason}); err != nil {
			return err
		}
		out = updated
		return nil
	})
	if err != nil {
		return domescrow.Escrow{}, err
	}
	metrics.RecordEscrowTransition(string(out.State))
	s.log.WithFields(map[string]interface{}{"escrow_id": out.ID, "reason": reason}).Info("escrow refunded")
	return out, nil
}

// PartialRefund splits a LOCKED_DISPUTE escrow's amount between a refund to
// the poster and a release to the worker; refundMinor+releaseMinor must
// equal the escrow amount exactly.
func (s *Service) PartialRefund(ctx context.Context, escrowID string, refundMinor, releaseMinor int64) (domescrow.Escrow, error) {
	var out domescrow.Escrow
	err := s.runner.WithTx(ctx, func(ctx context.Context, q storage.Queryer) error {
		e, err := s.escrows.GetEscrowForUpdate(ctx, q, escrowID)
		if err != nil {
			return err
		}
		if e.State != domescrow.StateLockedDispute {
			if e.State.IsTerminal() {
				return apperrors.EscrowTerminal(e.ID)
			}
			return apperrors.InvalidState("escrow", string(e.State))
		}
		if refundMinor+releaseMinor != e.AmountMinor {
			return apperrors.InvalidInput("refund_amount/release_amount", "must sum to escrow amount")
		}
		e.State = domescrow.StateRefundPartial
		e.RefundMinor = refundMinor
		e.ReleaseMinor = releaseMinor
		updated, err := s.escrows.UpdateEscrow(ctx, q, e, e.Version)
		if err != nil {
			return err
		}
		if releaseMinor > 0 {
			revenue := ledger.DecomposePlatformFee(updated.ID, releaseMinor, DefaultFeeBasisPoints)
			if _, err := s.ledgers.AppendRevenue(ctx, q, revenue); err != nil {
				return err
			}
		}
		if _, err := s.outbox.Emit(ctx, q, domoutbox.EventEscrowPartialRefunded, "escrow", updated.ID, updated.Version, domoutbox.QueueCriticalPayments, updated); err != nil {
			return err
		}
		out = updated
		return nil
	})
	if err != nil {
		return domescrow.Escrow{}, err
	}
	metrics.RecordEscrowTransition(string(out.State))
	s.log.WithFields(map[string]interface{}{"escrow_id": out.ID}).Info("escrow partially refunded")
	return out, nil
}

// LockForDispute transitions FUNDED->LOCKED_DISPUTE.
func (s *Service) LockForDispute(ctx context.Context, escrowID string) (domescrow.Escrow, error) {
	var out domescrow.Escrow
	err := s.runner.WithTx(ctx, func(ctx context.Context, q storage.Queryer) error {
		e, err := s.escrows.GetEscrowForUpdate(ctx, q, escrowID)
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
		updated, err := s.escrows.UpdateEscrow(ctx, q, e, e.Version)
		if err != nil {
			return err
		}
		out = updated
		return nil
	})
	if err != nil {
		return domescrow.Escrow{}, err
	}
	metrics.RecordEscrowTransition(string(out.State))
	s.log.WithFields(map[string]interface{}{"escrow_id": out.ID}).Info("escrow locked for dispute")
	return out, nil
}

type refundPayload struct {
	Escrow domescrow.Escrow `json:"escrow"`
	Reason string           `json:"reason"`
}
