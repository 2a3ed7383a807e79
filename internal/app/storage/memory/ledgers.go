package memory

import (
	"context"

	apperrors "github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/errors"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/storage"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/ledger"
)

// AppendXP enforces I5: at most one XP row per (user, escrow).
func (s *Store) AppendXP(ctx context.Context, q storage.Queryer, e ledger.XPEntry) (ledger.XPEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.xpByEscrow[e.EscrowID]; ok {
		return ledger.XPEntry{}, apperrors.InvariantViolation(
			apperrors.ErrCodeInvariantDuplicateXP, "xp already recorded for this escrow")
	}
	if e.ID == "" {
		e.ID = s.nextID("xp")
	}
	s.xpByEscrow[e.EscrowID] = e
	return e, nil
}

func (s *Store) HasXPForEscrow(ctx context.Context, q storage.Queryer, escrowID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.xpByEscrow[escrowID]
	return ok, nil
}

// AppendTrust is idempotent on IdempotencyKey: a retry returns the
// already-stored row with inserted=false instead of appending twice.
func (s *Store) AppendTrust(ctx context.Context, q storage.Queryer, e ledger.TrustEntry) (ledger.TrustEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.trustByKey[e.IdempotencyKey]; ok {
		return existing, false, nil
	}
	if e.ID == "" {
		e.ID = s.nextID("trust")
	}
	s.trustByKey[e.IdempotencyKey] = e
	return e, true, nil
}

func (s *Store) AppendRevenue(ctx context.Context, q storage.Queryer, e ledger.RevenueEntry) (ledger.RevenueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = s.nextID("revenue")
	}
	s.revenue = append(s.revenue, e)
	return e, nil
}

func (s *Store) HasRevenueForExternalEvent(ctx context.Context, q storage.Queryer, externalEventID string, eventType ledger.RevenueEventType) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.revenue {
		if e.ExternalEventID == externalEventID && e.EventType == eventType {
			return true, nil
		}
	}
	return false, nil
}

var _ storage.LedgerStore = (*Store)(nil)
