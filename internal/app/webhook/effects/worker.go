// Package effects implements the Stripe effect workers of spec.md §4.F:
// consumers of the outbox's stripe.event_received events that perform the
// actual plan transitions, revenue-ledger appends and payout
// reconciliation the ingest path deliberately avoids. Grounded on
// internal/app/outbox's Handler shape — each function here is registered
// against outbox.Router the same way any other queue consumer is.
//
// Every handler is idempotent on (provider_event_id, effect_kind): the
// escrow state machine's version-checked preconditions already make
// Fund/Refund re-entrant (a retried Fund on an already-FUNDED escrow fails
// loudly instead of re-charging), and revenue-ledger appends additionally
// check HasRevenueForExternalEvent before writing.
package effects

import (
	"context"
	"encoding/json"
	"time"

	apperrors "github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/errors"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/logging"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/escrow"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/identity"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/storage"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/ledger"
	domoutbox "github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/outbox"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/stripeevent"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/user"
)

// Worker applies the side effects of ingested Stripe events.
type Worker struct {
	runner  storage.TxRunner
	ledgers storage.LedgerStore
	escrows *escrow.Service
	plans   *identity.Service
	log     *logging.Logger
}

// New constructs an effects Worker.
func New(runner storage.TxRunner, ledgers storage.LedgerStore, escrows *escrow.Service, plans *identity.Service, log *logging.Logger) *Worker {
	return &Worker{runner: runner, ledgers: ledgers, escrows: escrows, plans: plans, log: log}
}

// intentMetadata is the subset of a Stripe object's metadata this module
// threads through payment-intent creation (escrow.Fund) so effect workers
// can recover the escrow id without a dedicated lookup table.
type intentMetadata struct {
	Object struct {
		ID       string `json:"id"`
		Metadata struct {
			EscrowID string `json:"escrow_id"`
		} `json:"metadata"`
	} `json:"data"`
}

// Handle dispatches on the stripe event's type and applies its effect.
// Satisfies outbox.Handler's func(ctx, domoutbox.Row) error shape.
func (w *Worker) Handle(ctx context.Context, row domoutbox.Row) error {
	var ev stripeevent.Event
	if err := json.Unmarshal(row.Payload, &ev); err != nil {
		return apperrors.Internal("unmarshal stripe event outbox payload", err)
	}

	switch ev.Type {
	case stripeevent.TypePaymentIntentSucceeded:
		return w.handlePaymentIntentSucceeded(ctx, ev)
	case stripeevent.TypePaymentIntentFailed:
		w.log.WithFields(map[string]interface{}{"external_id": ev.ExternalID}).Warn("stripe: payment intent failed")
		return nil
	case stripeevent.TypeChargeRefunded:
		return w.handleChargeRefunded(ctx, ev)
	case stripeevent.TypeTransferPaid:
		w.log.WithFields(map[string]interface{}{"external_id": ev.ExternalID}).Info("stripe: transfer settled")
		return nil
	case stripeevent.TypeSubscriptionCreated, stripeevent.TypeSubscriptionUpdated:
		if err := w.handleSubscriptionRevenue(ctx, ev); err != nil {
			return err
		}
		return w.handleSubscriptionActivated(ctx, ev)
	case stripeevent.TypeSubscriptionCanceled, stripeevent.TypeSubscriptionExpired:
		return w.handleSubscriptionEnded(ctx, ev)
	default:
		w.log.WithFields(map[string]interface{}{"type": ev.Type}).Warn("stripe: unhandled event type")
		return nil
	}
}

func (w *Worker) handlePaymentIntentSucceeded(ctx context.Context, ev stripeevent.Event) error {
	var meta intentMetadata
	if err := json.Unmarshal(ev.RawPayload, &meta); err != nil {
		return apperrors.Internal("unmarshal payment_intent payload", err)
	}
	if meta.Object.Metadata.EscrowID == "" {
		return apperrors.InvalidInput("metadata.escrow_id", "payment intent carries no escrow reference")
	}
	_, err := w.escrows.Fund(ctx, meta.Object.Metadata.EscrowID, meta.Object.ID, "")
	if apperrors.Is(err, apperrors.ErrCodeInvalidState) {
		// Already funded by an earlier delivery of this event: the
		// version-checked precondition makes this a safe no-op.
		return nil
	}
	return err
}

func (w *Worker) handleChargeRefunded(ctx context.Context, ev stripeevent.Event) error {
	var meta intentMetadata
	if err := json.Unmarshal(ev.RawPayload, &meta); err != nil {
		return apperrors.Internal("unmarshal charge payload", err)
	}
	if meta.Object.Metadata.EscrowID == "" {
		return apperrors.InvalidInput("metadata.escrow_id", "charge carries no escrow reference")
	}
	_, err := w.escrows.Refund(ctx, meta.Object.Metadata.EscrowID, "stripe_charge_refunded")
	if apperrors.Is(err, apperrors.ErrCodeInvalidState) {
		return nil
	}
	return err
}

// handleSubscriptionRevenue appends a subscription revenue row, guarded by
// HasRevenueForExternalEvent so a retried delivery never double-counts.
func (w *Worker) handleSubscriptionRevenue(ctx context.Context, ev stripeevent.Event) error {
	return w.runner.WithTx(ctx, func(ctx context.Context, q storage.Queryer) error {
		exists, err := w.ledgers.HasRevenueForExternalEvent(ctx, q, ev.ExternalID, ledger.RevenueSubscription)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
		var plan struct {
			Object struct {
				Plan struct {
					AmountMinor int64  `json:"amount"`
					Currency    string `json:"currency"`
				} `json:"plan"`
			} `json:"data"`
		}
		if err := json.Unmarshal(ev.RawPayload, &plan); err != nil {
			return apperrors.Internal("unmarshal subscription payload", err)
		}
		entry := ledger.RevenueEntry{
			EventType:       ledger.RevenueSubscription,
			Currency:        plan.Object.Plan.Currency,
			GrossMinor:      plan.Object.Plan.AmountMinor,
			NetMinor:        plan.Object.Plan.AmountMinor,
			ExternalEventID: ev.ExternalID,
		}
		_, err = w.ledgers.AppendRevenue(ctx, q, entry)
		return err
	})
}

// subscriptionMetadata carries the plan tier and user reference Stripe
// subscription objects echo back via metadata, mirroring intentMetadata's
// shape for payment intents.
type subscriptionMetadata struct {
	Object struct {
		Metadata struct {
			UserID string `json:"user_id"`
		} `json:"metadata"`
		Plan struct {
			Nickname string `json:"nickname"`
		} `json:"plan"`
		CurrentPeriodEnd int64 `json:"current_period_end"`
	} `json:"data"`
}

func planFromNickname(nickname string) user.Plan {
	switch user.Plan(nickname) {
	case user.PlanPremium, user.PlanPro:
		return user.Plan(nickname)
	default:
		return user.PlanPremium
	}
}

// handleSubscriptionActivated sets the user's plan tier and expiry on
// customer.subscription.created/updated.
func (w *Worker) handleSubscriptionActivated(ctx context.Context, ev stripeevent.Event) error {
	var meta subscriptionMetadata
	if err := json.Unmarshal(ev.RawPayload, &meta); err != nil {
		return apperrors.Internal("unmarshal subscription metadata", err)
	}
	if meta.Object.Metadata.UserID == "" {
		return apperrors.InvalidInput("metadata.user_id", "subscription carries no user reference")
	}
	expiresAt := time.Unix(meta.Object.CurrentPeriodEnd, 0).UTC()
	_, err := w.plans.ActivatePlan(ctx, meta.Object.Metadata.UserID, planFromNickname(meta.Object.Plan.Nickname), expiresAt)
	return err
}

// handleSubscriptionEnded downgrades the user to the free tier on
// customer.subscription.deleted/paused.
func (w *Worker) handleSubscriptionEnded(ctx context.Context, ev stripeevent.Event) error {
	var meta subscriptionMetadata
	if err := json.Unmarshal(ev.RawPayload, &meta); err != nil {
		return apperrors.Internal("unmarshal subscription metadata", err)
	}
	if meta.Object.Metadata.UserID == "" {
		w.log.WithFields(map[string]interface{}{"external_id": ev.ExternalID}).Warn("stripe: subscription ended event carries no user reference")
		return nil
	}
	_, err := w.plans.CancelPlan(ctx, meta.Object.Metadata.UserID)
	return err
}
