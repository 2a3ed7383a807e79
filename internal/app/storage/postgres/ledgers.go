package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	apperrors "github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/errors"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/storage"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/ledger"
	"github.com/google/uuid"
)

// AppendXP relies on a unique index over escrow_id to enforce I5.
func (s *Store) AppendXP(ctx context.Context, q storage.Queryer, e ledger.XPEntry) (ledger.XPEntry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = now()
	_, err := q.ExecContext(ctx, `
		INSERT INTO xp_ledger (id, user_id, task_id, escrow_id, base_xp, streak_mult, decay_factor,
			effective_xp, xp_before, xp_after, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, e.ID, e.UserID, e.TaskID, e.EscrowID, e.BaseXP, e.StreakMult, e.DecayFactor,
		e.EffectiveXP, e.XPBefore, e.XPAfter, e.CreatedAt)
	if isUniqueViolation(err) {
		return ledger.XPEntry{}, apperrors.InvariantViolation(
			apperrors.ErrCodeInvariantDuplicateXP, "xp already recorded for this escrow")
	}
	if err != nil {
		return ledger.XPEntry{}, apperrors.DatabaseError("append_xp", err)
	}
	return e, nil
}

func (s *Store) HasXPForEscrow(ctx context.Context, q storage.Queryer, escrowID string) (bool, error) {
	var exists bool
	row := q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM xp_ledger WHERE escrow_id = $1)`, escrowID)
	if err := row.Scan(&exists); err != nil {
		return false, apperrors.DatabaseError("has_xp_for_escrow", err)
	}
	return exists, nil
}

// AppendTrust is idempotent on idempotency_key, so a retried dispute
// resolution never double-writes a trust transition.
func (s *Store) AppendTrust(ctx context.Context, q storage.Queryer, e ledger.TrustEntry) (ledger.TrustEntry, bool, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = now()
	res, err := q.ExecContext(ctx, `
		INSERT INTO trust_ledger (id, user_id, old_tier, new_tier, reason, source_event_id, idempotency_key, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (idempotency_key) DO NOTHING
	`, e.ID, e.UserID, e.OldTier, e.NewTier, e.Reason, toNullString(e.SourceEventID), e.IdempotencyKey, e.CreatedAt)
	if err != nil {
		return ledger.TrustEntry{}, false, apperrors.DatabaseError("append_trust", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		row := q.QueryRowContext(ctx, `
			SELECT id, user_id, old_tier, new_tier, reason, source_event_id, idempotency_key, created_at
			FROM trust_ledger WHERE idempotency_key = $1
		`, e.IdempotencyKey)
		existing, err := scanTrustEntry(row)
		if err != nil {
			return ledger.TrustEntry{}, false, apperrors.DatabaseError("append_trust_lookup", err)
		}
		return existing, false, nil
	}
	return e, true, nil
}

func (s *Store) AppendRevenue(ctx context.Context, q storage.Queryer, e ledger.RevenueEntry) (ledger.RevenueEntry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = now()
	metaJSON, err := json.Marshal(e.Metadata)
	if err != nil {
		return ledger.RevenueEntry{}, apperrors.Internal("marshal revenue metadata", err)
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO revenue_ledger (id, event_type, currency, gross_minor, platform_fee_minor, net_minor,
			fee_basis_points, processor_fee_minor, escrow_id, external_charge_id, external_event_id, metadata, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, e.ID, e.EventType, e.Currency, e.GrossMinor, e.PlatformFeeMinor, e.NetMinor,
		e.FeeBasisPoints, e.ProcessorFeeMinor, toNullString(e.EscrowID), toNullString(e.ExternalChargeID),
		toNullString(e.ExternalEventID), metaJSON, e.CreatedAt)
	if err != nil {
		return ledger.RevenueEntry{}, apperrors.DatabaseError("append_revenue", err)
	}
	return e, nil
}

func (s *Store) HasRevenueForExternalEvent(ctx context.Context, q storage.Queryer, externalEventID string, eventType ledger.RevenueEventType) (bool, error) {
	var exists bool
	row := q.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM revenue_ledger WHERE external_event_id = $1 AND event_type = $2)
	`, externalEventID, eventType)
	if err := row.Scan(&exists); err != nil {
		return false, apperrors.DatabaseError("has_revenue_for_external_event", err)
	}
	return exists, nil
}

func scanTrustEntry(sc rowScanner) (ledger.TrustEntry, error) {
	var (
		e             ledger.TrustEntry
		sourceEventID sql.NullString
	)
	if err := sc.Scan(&e.ID, &e.UserID, &e.OldTier, &e.NewTier, &e.Reason, &sourceEventID, &e.IdempotencyKey, &e.CreatedAt); err != nil {
		return ledger.TrustEntry{}, err
	}
	if sourceEventID.Valid {
		e.SourceEventID = sourceEventID.String
	}
	return e, nil
}
