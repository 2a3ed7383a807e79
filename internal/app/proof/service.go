// Package proof implements proof submission and review, including the
// dual external-verifier consult of spec.md §4.E. Grounded on
// internal/app/services/gasbank/service.go's shape. The circuit-breaker
// wrapping that turns a vendor outage into AI_UNAVAILABLE lives in the
// vision.LivenessClient/LogisticsClient implementations this service is
// handed, not here: this package only decides when a verdict gates a
// review outcome.
package proof

import (
	"context"
	"time"

	apperrors "github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/errors"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/logging"
	core "github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/core/service"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/storage"
	domproof "github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/proof"
	domtask "github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/task"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/platform/vision"
)

// Service implements proof submission and review.
type Service struct {
	runner    storage.TxRunner
	proofs    storage.ProofStore
	tasks     storage.TaskStore
	liveness  vision.LivenessClient
	logistics vision.LogisticsClient
	log       *logging.Logger
}

// New constructs a proof Service. liveness and logistics are expected to
// already be circuit-breaker wrapped (see vision.NewBreakerLiveness /
// vision.NewBreakerLogistics) so a vendor outage surfaces as
// AI_UNAVAILABLE through the ordinary error path.
func New(runner storage.TxRunner, proofs storage.ProofStore, tasks storage.TaskStore, liveness vision.LivenessClient, logistics vision.LogisticsClient, log *logging.Logger) *Service {
	return &Service{
		runner:    runner,
		proofs:    proofs,
		tasks:     tasks,
		liveness:  liveness,
		logistics: logistics,
		log:       log,
	}
}

// Descriptor advertises the service's placement and capabilities.
func (s *Service) Descriptor() core.Descriptor {
	return core.Descriptor{
		Name:         "proof",
		Domain:       "marketplace",
		Layer:        core.LayerEngine,
		Capabilities: []string{"submit", "review"},
	}
}

// Submit transitions a proof PENDING->SUBMITTED and records its photos.
func (s *Service) Submit(ctx context.Context, taskID, submitterID string, photos []domproof.Photo) (domproof.Proof, error) {
	var out domproof.Proof
	err := s.runner.WithTx(ctx, func(ctx context.Context, q storage.Queryer) error {
		p, err := s.proofs.GetProofByTask(ctx, q, taskID)
		if apperrors.Is(err, apperrors.ErrCodeNotFound) {
			p = domproof.Proof{TaskID: taskID, SubmitterID: submitterID, State: domproof.StatePending}
			p, err = s.proofs.CreateProof(ctx, q, p)
		}
		if err != nil {
			return err
		}
		if !domproof.CanTransition(p.State, domproof.StateSubmitted) {
			return apperrors.InvalidTransition(string(p.State), string(domproof.StateSubmitted))
		}
		p.State = domproof.StateSubmitted
		p, err = s.proofs.UpdateProof(ctx, q, p)
		if err != nil {
			return err
		}
		for i := range photos {
			photos[i].ProofID = p.ID
			if _, err := s.proofs.AddPhoto(ctx, q, photos[i]); err != nil {
				return err
			}
		}
		out = p
		return nil
	})
	return out, err
}

// ReviewDecision is the review operation's outcome.
type ReviewDecision string

const (
	DecisionAccept ReviewDecision = "ACCEPTED"
	DecisionReject ReviewDecision = "REJECTED"
)

// Review decides a submitted proof. On DecisionAccept, if any photo
// carries biometric or GPS artifacts, both external verifiers must accept
// (or flag manual_review); either rejecting fails the review and leaves
// the proof SUBMITTED (§4.E). High-risk tasks (RequiresDualVerification)
// always consult both verifiers regardless of artifact type (SPEC_FULL
// §4.D). Acceptance also unlocks the task PROOF_SUBMITTED->COMPLETED in
// the same transaction (I3: a task only reaches COMPLETED once its proof
// has reached ACCEPTED), leaving escrow.Service.Release's
// task.Lifecycle==COMPLETED precondition satisfiable by the review call
// that caused it.
func (s *Service) Review(ctx context.Context, proofID, reviewerID string, decision ReviewDecision, rejectionReason string) (domproof.Proof, error) {
	var out domproof.Proof
	err := s.runner.WithTx(ctx, func(ctx context.Context, q storage.Queryer) error {
		p, err := s.proofs.GetProof(ctx, q, proofID)
		if err != nil {
			return err
		}
		if p.State.IsTerminal() {
			return apperrors.InvalidState("proof", string(p.State))
		}
		if !domproof.CanTransition(p.State, domproof.State(decision)) {
			return apperrors.InvalidTransition(string(p.State), string(decision))
		}

		t, err := s.tasks.GetTaskForUpdate(ctx, q, p.TaskID)
		if err != nil {
			return err
		}

		if decision == DecisionAccept {
			photos, err := s.proofs.ListPhotos(ctx, q, p.ID)
			if err != nil {
				return err
			}
			if domproof.HasArtifacts(photos) || t.RequiresDualVerification() {
				manual, err := s.consultVerifiers(ctx, photos, t.ID)
				if err != nil {
					return err
				}
				p.ManualReview = manual
			}
			if !domtask.CanTransitionLifecycle(t.Lifecycle, domtask.LifecycleCompleted) {
				return apperrors.InvalidTransition(string(t.Lifecycle), string(domtask.LifecycleCompleted))
			}
		}

		p.State = domproof.State(decision)
		p.ReviewerID = reviewerID
		if decision == DecisionReject {
			p.RejectionReason = rejectionReason
		}
		updated, err := s.proofs.UpdateProof(ctx, q, p)
		if err != nil {
			return err
		}

		if decision == DecisionAccept {
			t.Lifecycle = domtask.LifecycleCompleted
			t.CompletedAt = time.Now().UTC()
			if _, err := s.tasks.UpdateTask(ctx, q, t); err != nil {
				return err
			}
		}

		out = updated
		return nil
	})
	if err != nil {
		return domproof.Proof{}, err
	}
	s.log.WithFields(map[string]interface{}{"proof_id": out.ID, "state": out.State}).Info("proof reviewed")
	return out, nil
}

// consultVerifiers runs the liveness and logistics checks across every
// photo. A reject from either fails the review outright; a manual_review
// verdict flags the proof instead of blocking it. An AI_UNAVAILABLE or
// other error from either client propagates unchanged, so an open breaker
// never gets silently treated as an accept.
func (s *Service) consultVerifiers(ctx context.Context, photos []domproof.Photo, taskID string) (bool, error) {
	manual := false
	for _, ph := range photos {
		liveness, err := s.liveness.CheckLiveness(ctx, ph.StorageKey)
		if err != nil {
			return false, err
		}
		switch liveness.Verdict {
		case vision.VerdictReject:
			return false, apperrors.VerificationFailed(liveness.Reason)
		case vision.VerdictManualReview:
			manual = true
		}

		logistics, err := s.logistics.CheckLogistics(ctx, ph.StorageKey, taskID)
		if err != nil {
			return false, err
		}
		switch logistics.Verdict {
		case vision.VerdictReject:
			return false, apperrors.VerificationFailed(logistics.Reason)
		case vision.VerdictManualReview:
			manual = true
		}
	}
	return manual, nil
}
