package postgres

import (
	"context"
	"database/sql"

	apperrors "github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/errors"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/storage"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/dispute"
	"github.com/google/uuid"
)

const disputeSelect = `
	SELECT id, task_id, escrow_id, initiator_id, poster_id, worker_id, state, outcome,
		refund_minor, release_minor, version, created_at, updated_at, resolved_at
	FROM disputes`

func (s *Store) CreateDispute(ctx context.Context, q storage.Queryer, d dispute.Dispute) (dispute.Dispute, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	n := now()
	d.CreatedAt, d.UpdatedAt = n, n
	d.Version = 1
	_, err := q.ExecContext(ctx, `
		INSERT INTO disputes (id, task_id, escrow_id, initiator_id, poster_id, worker_id, state, outcome,
			refund_minor, release_minor, version, created_at, updated_at, resolved_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, d.ID, d.TaskID, d.EscrowID, d.InitiatorID, d.PosterID, d.WorkerID, d.State, d.Outcome,
		d.RefundMinor, d.ReleaseMinor, d.Version, d.CreatedAt, d.UpdatedAt, toNullTime(d.ResolvedAt))
	if err != nil {
		return dispute.Dispute{}, apperrors.DatabaseError("create_dispute", err)
	}
	return d, nil
}

func (s *Store) GetDispute(ctx context.Context, q storage.Queryer, id string) (dispute.Dispute, error) {
	row := q.QueryRowContext(ctx, disputeSelect+` WHERE id = $1`, id)
	return scanDisputeOrNotFound(row, id)
}

func (s *Store) GetDisputeForUpdate(ctx context.Context, q storage.Queryer, id string) (dispute.Dispute, error) {
	row := q.QueryRowContext(ctx, disputeSelect+` WHERE id = $1 FOR UPDATE`, id)
	return scanDisputeOrNotFound(row, id)
}

func (s *Store) UpdateDispute(ctx context.Context, q storage.Queryer, d dispute.Dispute, expectedVersion int) (dispute.Dispute, error) {
	d.UpdatedAt = now()
	res, err := q.ExecContext(ctx, `
		UPDATE disputes SET state=$2, outcome=$3, refund_minor=$4, release_minor=$5,
			updated_at=$6, resolved_at=$7, version=version+1
		WHERE id = $1 AND version = $8
	`, d.ID, d.State, d.Outcome, d.RefundMinor, d.ReleaseMinor, d.UpdatedAt, toNullTime(d.ResolvedAt), expectedVersion)
	if err != nil {
		return dispute.Dispute{}, apperrors.DatabaseError("update_dispute", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		existing, getErr := s.GetDispute(ctx, q, d.ID)
		if getErr != nil {
			return dispute.Dispute{}, getErr
		}
		return dispute.Dispute{}, apperrors.VersionConflict("dispute", expectedVersion, existing.Version)
	}
	d.Version = expectedVersion + 1
	return d, nil
}

func scanDisputeOrNotFound(sc rowScanner, key string) (dispute.Dispute, error) {
	var (
		d          dispute.Dispute
		resolvedAt sql.NullTime
	)
	err := sc.Scan(&d.ID, &d.TaskID, &d.EscrowID, &d.InitiatorID, &d.PosterID, &d.WorkerID, &d.State, &d.Outcome,
		&d.RefundMinor, &d.ReleaseMinor, &d.Version, &d.CreatedAt, &d.UpdatedAt, &resolvedAt)
	if err == sql.ErrNoRows {
		return dispute.Dispute{}, apperrors.NotFound("dispute", key)
	}
	if err != nil {
		return dispute.Dispute{}, apperrors.DatabaseError("scan_dispute", err)
	}
	d.ResolvedAt = fromNullTime(resolvedAt)
	return d, nil
}
