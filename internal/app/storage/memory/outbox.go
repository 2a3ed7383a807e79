package memory

import (
	"context"
	"sort"

	apperrors "github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/errors"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/storage"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/outbox"
)

// Insert enforces I9: idempotency_key is globally unique.
func (s *Store) Insert(ctx context.Context, q storage.Queryer, row outbox.Row) (outbox.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.outboxKeys[row.IdempotencyKey]; ok {
		return outbox.Row{}, apperrors.InvariantViolation(
			apperrors.ErrCodeInvariantOutboxKey, "duplicate outbox idempotency key")
	}
	if row.ID == "" {
		row.ID = s.nextID("outbox")
	}
	row.Status = outbox.StatusPending
	s.outboxRows[row.ID] = row
	s.outboxKeys[row.IdempotencyKey] = row.ID
	return row, nil
}

func (s *Store) ClaimPending(ctx context.Context, q storage.Queryer, limit int) ([]outbox.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pending []outbox.Row
	for _, r := range s.outboxRows {
		if r.Status == outbox.StatusPending {
			pending = append(pending, r)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt.Before(pending[j].CreatedAt) })
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	for _, r := range pending {
		r.Status = outbox.StatusEnqueued
		s.outboxRows[r.ID] = r
	}
	return pending, nil
}

func (s *Store) MarkEnqueued(ctx context.Context, q storage.Queryer, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.outboxRows[id]
	if !ok {
		return apperrors.NotFound("outbox_row", id)
	}
	r.Status = outbox.StatusEnqueued
	s.outboxRows[id] = r
	return nil
}

func (s *Store) MarkProcessed(ctx context.Context, q storage.Queryer, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.outboxRows[id]
	if !ok {
		return apperrors.NotFound("outbox_row", id)
	}
	r.Status = outbox.StatusProcessed
	s.outboxRows[id] = r
	return nil
}

func (s *Store) MarkFailed(ctx context.Context, q storage.Queryer, id string, attempts int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.outboxRows[id]
	if !ok {
		return apperrors.NotFound("outbox_row", id)
	}
	r.Status = outbox.StatusFailed
	r.Attempts = attempts
	s.outboxRows[id] = r
	return nil
}

var _ storage.OutboxStore = (*Store)(nil)
