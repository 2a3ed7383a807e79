package postgres

import (
	"context"
	"database/sql"

	apperrors "github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/errors"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/storage"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/escrow"
	"github.com/google/uuid"
)

func (s *Store) CreateEscrow(ctx context.Context, q storage.Queryer, e escrow.Escrow) (escrow.Escrow, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	n := now()
	e.CreatedAt, e.UpdatedAt = n, n
	e.Version = 1

	_, err := q.ExecContext(ctx, `
		INSERT INTO escrows (id, task_id, amount_minor, state, refund_minor, release_minor,
			payment_intent_id, charge_id, version, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, e.ID, e.TaskID, e.AmountMinor, e.State, e.RefundMinor, e.ReleaseMinor,
		toNullString(e.PaymentIntentID), toNullString(e.ChargeID), e.Version, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return escrow.Escrow{}, apperrors.DatabaseError("create_escrow", err)
	}
	return e, nil
}

func (s *Store) GetEscrow(ctx context.Context, q storage.Queryer, id string) (escrow.Escrow, error) {
	row := q.QueryRowContext(ctx, escrowSelect+` WHERE id = $1`, id)
	return scanEscrowOrNotFound(row, id)
}

func (s *Store) GetEscrowByTask(ctx context.Context, q storage.Queryer, taskID string) (escrow.Escrow, error) {
	row := q.QueryRowContext(ctx, escrowSelect+` WHERE task_id = $1`, taskID)
	return scanEscrowOrNotFound(row, taskID)
}

func (s *Store) GetEscrowForUpdate(ctx context.Context, q storage.Queryer, id string) (escrow.Escrow, error) {
	row := q.QueryRowContext(ctx, escrowSelect+` WHERE id = $1 FOR UPDATE`, id)
	return scanEscrowOrNotFound(row, id)
}

// UpdateEscrow enforces optimistic locking; I4 (amount immutability once
// non-PENDING) is additionally enforced by the
// trg_escrow_release_requires_completed_task trigger in the migration, not
// re-derived here.
func (s *Store) UpdateEscrow(ctx context.Context, q storage.Queryer, e escrow.Escrow, expectedVersion int) (escrow.Escrow, error) {
	e.UpdatedAt = now()
	res, err := q.ExecContext(ctx, `
		UPDATE escrows SET task_id=$2, amount_minor=$3, state=$4, refund_minor=$5, release_minor=$6,
			payment_intent_id=$7, charge_id=$8, updated_at=$9, version=version+1
		WHERE id = $1 AND version = $10
	`, e.ID, e.TaskID, e.AmountMinor, e.State, e.RefundMinor, e.ReleaseMinor,
		toNullString(e.PaymentIntentID), toNullString(e.ChargeID), e.UpdatedAt, expectedVersion)
	if err != nil {
		return escrow.Escrow{}, apperrors.DatabaseError("update_escrow", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		existing, getErr := s.GetEscrow(ctx, q, e.ID)
		if getErr != nil {
			return escrow.Escrow{}, getErr
		}
		return escrow.Escrow{}, apperrors.VersionConflict("escrow", expectedVersion, existing.Version)
	}
	e.Version = expectedVersion + 1
	return e, nil
}

const escrowSelect = `
	SELECT id, task_id, amount_minor, state, refund_minor, release_minor,
		payment_intent_id, charge_id, version, created_at, updated_at
	FROM escrows`

func scanEscrowOrNotFound(sc rowScanner, key string) (escrow.Escrow, error) {
	e, err := scanEscrow(sc)
	if err == sql.ErrNoRows {
		return escrow.Escrow{}, apperrors.NotFound("escrow", key)
	}
	if err != nil {
		return escrow.Escrow{}, apperrors.DatabaseError("scan_escrow", err)
	}
	return e, nil
}

func scanEscrow(sc rowScanner) (escrow.Escrow, error) {
	var (
		e               escrow.Escrow
		paymentIntentID sql.NullString
		chargeID        sql.NullString
	)
	if err := sc.Scan(&e.ID, &e.TaskID, &e.AmountMinor, &e.State, &e.RefundMinor, &e.ReleaseMinor,
		&paymentIntentID, &chargeID, &e.Version, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return escrow.Escrow{}, err
	}
	if paymentIntentID.Valid {
		e.PaymentIntentID = paymentIntentID.String
	}
	if chargeID.Valid {
		e.ChargeID = chargeID.String
	}
	return e, nil
}
