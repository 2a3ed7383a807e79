// Package identity implements the two user-aggregate operations
// SPEC_FULL supplements around spec.md's data model: badge awards (I7,
// named in spec.md's glossary-adjacent text but never given an owning
// operation) and plan/subscription transitions (named in the data model,
// driven by the Stripe effect worker on subscription.* webhook events).
// Grounded on the same gasbank.Service shape as escrow/task.
package identity

import (
	"context"
	"time"

	"github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/logging"
	core "github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/core/service"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/storage"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/user"
	"github.com/google/uuid"
)

// Service implements badge awards and plan transitions.
type Service struct {
	runner storage.TxRunner
	users  storage.UserStore
	log    *logging.Logger
}

// New constructs an identity Service.
func New(runner storage.TxRunner, users storage.UserStore, log *logging.Logger) *Service {
	return &Service{runner: runner, users: users, log: log}
}

// Descriptor advertises the service's placement and capabilities.
func (s *Service) Descriptor() core.Descriptor {
	return core.Descriptor{
		Name:         "identity",
		Domain:       "marketplace",
		Layer:        core.LayerEngine,
		Capabilities: []string{"award_badge", "activate_plan", "cancel_plan", "expire_plan"},
	}
}

// AwardBadge records a badge award, idempotent on
// (user_id, badge_code, source_event_id) per I7.
func (s *Service) AwardBadge(ctx context.Context, userID, code, sourceEventID string, now time.Time) (user.Badge, bool, error) {
	var (
		out     user.Badge
		created bool
	)
	err := s.runner.WithTx(ctx, func(ctx context.Context, q storage.Queryer) error {
		b := user.Badge{ID: uuid.NewString(), UserID: userID, Code: code, AwardedAt: now, SourceEventID: sourceEventID}
		awarded, wasNew, err := s.users.AwardBadge(ctx, q, b)
		if err != nil {
			return err
		}
		out, created = awarded, wasNew
		return nil
	})
	if err != nil {
		return user.Badge{}, false, err
	}
	if created {
		s.log.WithFields(map[string]interface{}{"user_id": userID, "badge_code": code}).Info("badge awarded")
	}
	return out, created, nil
}

// ActivatePlan sets the user's plan and expiry, called by the Stripe
// effect worker on customer.subscription.created/updated.
func (s *Service) ActivatePlan(ctx context.Context, userID string, plan user.Plan, expiresAt time.Time) (user.User, error) {
	var out user.User
	err := s.runner.WithTx(ctx, func(ctx context.Context, q storage.Queryer) error {
		u, err := s.users.GetUser(ctx, q, userID)
		if err != nil {
			return err
		}
		u.Plan = plan
		u.PlanExpiresAt = expiresAt
		updated, err := s.users.UpdateUser(ctx, q, u)
		if err != nil {
			return err
		}
		out = updated
		return nil
	})
	if err != nil {
		return user.User{}, err
	}
	s.log.WithFields(map[string]interface{}{"user_id": userID, "plan": plan}).Info("plan activated")
	return out, nil
}

// CancelPlan downgrades the user to the free tier immediately, called on
// customer.subscription.deleted.
func (s *Service) CancelPlan(ctx context.Context, userID string) (user.User, error) {
	return s.ActivatePlan(ctx, userID, user.PlanFree, time.Time{})
}

// ExpirePlan downgrades any user whose PlanExpiresAt has elapsed back to
// the free tier; intended for a periodic sweep rather than per-event
// dispatch, since the provider doesn't always emit an explicit cancel
// event for a lapsed renewal.
func (s *Service) ExpirePlan(ctx context.Context, userID string, now time.Time) (user.User, error) {
	var out user.User
	err := s.runner.WithTx(ctx, func(ctx context.Context, q storage.Queryer) error {
		u, err := s.users.GetUser(ctx, q, userID)
		if err != nil {
			return err
		}
		if u.Plan == user.PlanFree || u.PlanExpiresAt.IsZero() || now.Before(u.PlanExpiresAt) {
			out = u
			return nil
		}
		u.Plan = user.PlanFree
		u.PlanExpiresAt = time.Time{}
		updated, err := s.users.UpdateUser(ctx, q, u)
		if err != nil {
			return err
		}
		out = updated
		return nil
	})
	if err != nil {
		return user.User{}, err
	}
	return out, nil
}
