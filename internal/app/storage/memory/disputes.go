package memory

import (
	"context"

	apperrors "github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/errors"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/storage"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/dispute"
)

func (s *Store) CreateDispute(ctx context.Context, q storage.Queryer, d dispute.Dispute) (dispute.Dispute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.disputes[d.ID]; ok {
		return dispute.Dispute{}, apperrors.AlreadyExists("dispute", d.ID)
	}
	d.Version = 1
	s.disputes[d.ID] = d
	return d, nil
}

func (s *Store) GetDispute(ctx context.Context, q storage.Queryer, id string) (dispute.Dispute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.disputes[id]
	if !ok {
		return dispute.Dispute{}, apperrors.NotFound("dispute", id)
	}
	return d, nil
}

func (s *Store) GetDisputeForUpdate(ctx context.Context, q storage.Queryer, id string) (dispute.Dispute, error) {
	d, ok := s.disputes[id]
	if !ok {
		return dispute.Dispute{}, apperrors.NotFound("dispute", id)
	}
	return d, nil
}

func (s *Store) UpdateDispute(ctx context.Context, q storage.Queryer, d dispute.Dispute, expectedVersion int) (dispute.Dispute, error) {
	existing, ok := s.disputes[d.ID]
	if !ok {
		return dispute.Dispute{}, apperrors.NotFound("dispute", d.ID)
	}
	if existing.Version != expectedVersion {
		return dispute.Dispute{}, apperrors.VersionConflict("dispute", expectedVersion, existing.Version)
	}
	d.Version = existing.Version + 1
	s.disputes[d.ID] = d
	return d, nil
}

var _ storage.DisputeStore = (*Store)(nil)
