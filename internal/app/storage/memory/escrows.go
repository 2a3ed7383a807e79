package memory

import (
	"context"

	apperrors "github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/errors"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/storage"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/escrow"
)

func (s *Store) CreateEscrow(ctx context.Context, q storage.Queryer, e escrow.Escrow) (escrow.Escrow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.escrows[e.ID]; ok {
		return escrow.Escrow{}, apperrors.AlreadyExists("escrow", e.ID)
	}
	if _, ok := s.escrowsByTask[e.TaskID]; ok {
		return escrow.Escrow{}, apperrors.AlreadyExists("escrow_for_task", e.TaskID)
	}
	e.Version = 1
	s.escrows[e.ID] = e
	s.escrowsByTask[e.TaskID] = e.ID
	return e, nil
}

func (s *Store) GetEscrow(ctx context.Context, q storage.Queryer, id string) (escrow.Escrow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.escrows[id]
	if !ok {
		return escrow.Escrow{}, apperrors.NotFound("escrow", id)
	}
	return e, nil
}

func (s *Store) GetEscrowByTask(ctx context.Context, q storage.Queryer, taskID string) (escrow.Escrow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.escrowsByTask[taskID]
	if !ok {
		return escrow.Escrow{}, apperrors.NotFound("escrow_for_task", taskID)
	}
	return s.escrows[id], nil
}

func (s *Store) GetEscrowForUpdate(ctx context.Context, q storage.Queryer, id string) (escrow.Escrow, error) {
	e, ok := s.escrows[id]
	if !ok {
		return escrow.Escrow{}, apperrors.NotFound("escrow", id)
	}
	return e, nil
}

// UpdateEscrow enforces I4 (amount immutable once non-PENDING) and
// optimistic locking via expectedVersion.
func (s *Store) UpdateEscrow(ctx context.Context, q storage.Queryer, e escrow.Escrow, expectedVersion int) (escrow.Escrow, error) {
	existing, ok := s.escrows[e.ID]
	if !ok {
		return escrow.Escrow{}, apperrors.NotFound("escrow", e.ID)
	}
	if existing.Version != expectedVersion {
		return escrow.Escrow{}, apperrors.VersionConflict("escrow", expectedVersion, existing.Version)
	}
	if existing.State != escrow.StatePending && e.AmountMinor != existing.AmountMinor {
		return escrow.Escrow{}, apperrors.InvariantViolation(
			apperrors.ErrCodeInvariantAmountImmutable, "escrow amount is immutable once non-pending")
	}
	e.Version = existing.Version + 1
	s.escrows[e.ID] = e
	return e, nil
}

var _ storage.EscrowStore = (*Store)(nil)
