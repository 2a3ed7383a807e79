package memory

import (
	"context"
	"time"

	apperrors "github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/errors"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/storage"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/correction"
)

func budgetKey(scope, scopeID string, windowStart time.Time) string {
	return scope + "|" + scopeID + "|" + windowStart.UTC().Format(time.RFC3339)
}

func (s *Store) GetBudgetCounter(ctx context.Context, q storage.Queryer, scope, scopeID string, windowStart time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.budgetCounters[budgetKey(scope, scopeID, windowStart)], nil
}

// ConsumeBudget increments and returns the post-increment counter. The
// caller compares it against the scope's cap (§4.H); the memory store does
// not know the cap.
func (s *Store) ConsumeBudget(ctx context.Context, q storage.Queryer, scope, scopeID string, windowStart time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := budgetKey(scope, scopeID, windowStart)
	s.budgetCounters[key]++
	return s.budgetCounters[key], nil
}

func (s *Store) InsertCorrection(ctx context.Context, q storage.Queryer, c correction.Correction) (correction.Correction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = s.nextID("correction")
	}
	s.corrections[c.ID] = c
	return c, nil
}

func (s *Store) GetCorrection(ctx context.Context, q storage.Queryer, id string) (correction.Correction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.corrections[id]
	if !ok {
		return correction.Correction{}, apperrors.NotFound("correction", id)
	}
	return c, nil
}

func (s *Store) UpdateCorrection(ctx context.Context, q storage.Queryer, c correction.Correction) (correction.Correction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.corrections[c.ID]; !ok {
		return correction.Correction{}, apperrors.NotFound("correction", c.ID)
	}
	s.corrections[c.ID] = c
	return c, nil
}

func (s *Store) ListExpired(ctx context.Context, q storage.Queryer, now time.Time) ([]correction.Correction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []correction.Correction
	for _, c := range s.corrections {
		if c.Reversal == correction.ReversalNone && !c.ExpiresAt.IsZero() && !c.ExpiresAt.After(now) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) ListForAnalysis(ctx context.Context, q storage.Queryer, before time.Time) ([]correction.Correction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []correction.Correction
	for _, c := range s.corrections {
		if c.AppliedAt.Before(before) {
			out = append(out, c)
		}
	}
	return out, nil
}

var _ storage.CorrectionStore = (*Store)(nil)
