package memory

import (
	"context"

	apperrors "github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/errors"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/storage"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/proof"
)

func (s *Store) CreateProof(ctx context.Context, q storage.Queryer, p proof.Proof) (proof.Proof, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.proofs[p.ID]; ok {
		return proof.Proof{}, apperrors.AlreadyExists("proof", p.ID)
	}
	s.proofs[p.ID] = p
	s.proofsByTask[p.TaskID] = p.ID
	return p, nil
}

func (s *Store) GetProof(ctx context.Context, q storage.Queryer, id string) (proof.Proof, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.proofs[id]
	if !ok {
		return proof.Proof{}, apperrors.NotFound("proof", id)
	}
	return p, nil
}

func (s *Store) GetProofByTask(ctx context.Context, q storage.Queryer, taskID string) (proof.Proof, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.proofsByTask[taskID]
	if !ok {
		return proof.Proof{}, apperrors.NotFound("proof_for_task", taskID)
	}
	return s.proofs[id], nil
}

func (s *Store) UpdateProof(ctx context.Context, q storage.Queryer, p proof.Proof) (proof.Proof, error) {
	if _, ok := s.proofs[p.ID]; !ok {
		return proof.Proof{}, apperrors.NotFound("proof", p.ID)
	}
	s.proofs[p.ID] = p
	return p, nil
}

func (s *Store) AddPhoto(ctx context.Context, q storage.Queryer, ph proof.Photo) (proof.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ph.ID == "" {
		ph.ID = s.nextID("photo")
	}
	ph.Sequence = len(s.photos[ph.ProofID]) + 1
	s.photos[ph.ProofID] = append(s.photos[ph.ProofID], ph)
	return ph, nil
}

func (s *Store) ListPhotos(ctx context.Context, q storage.Queryer, proofID string) ([]proof.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]proof.Photo, len(s.photos[proofID]))
	copy(out, s.photos[proofID])
	return out, nil
}

var _ storage.ProofStore = (*Store)(nil)
