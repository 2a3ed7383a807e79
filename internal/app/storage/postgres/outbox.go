package postgres

import (
	"context"
	"database/sql"

	apperrors "github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/errors"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/storage"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/outbox"
	"github.com/google/uuid"
)

// Insert relies on a unique index over idempotency_key to enforce I9.
func (s *Store) Insert(ctx context.Context, q storage.Queryer, row outbox.Row) (outbox.Row, error) {
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	row.Status = outbox.StatusPending
	row.CreatedAt = now()
	_, err := q.ExecContext(ctx, `
		INSERT INTO outbox_rows (id, event_type, aggregate_type, aggregate_id, event_version,
			idempotency_key, payload, queue, status, attempts, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, row.ID, row.EventType, row.AggregateType, row.AggregateID, row.EventVersion,
		row.IdempotencyKey, []byte(row.Payload), row.Queue, row.Status, row.Attempts, row.CreatedAt)
	if isUniqueViolation(err) {
		return outbox.Row{}, apperrors.InvariantViolation(
			apperrors.ErrCodeInvariantOutboxKey, "duplicate outbox idempotency key")
	}
	if err != nil {
		return outbox.Row{}, apperrors.DatabaseError("insert_outbox", err)
	}
	return row, nil
}

// ClaimPending uses FOR UPDATE SKIP LOCKED so concurrent dispatcher
// instances never double-claim a row (§4.B).
func (s *Store) ClaimPending(ctx context.Context, q storage.Queryer, limit int) ([]outbox.Row, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, event_type, aggregate_type, aggregate_id, event_version, idempotency_key,
			payload, queue, status, attempts, created_at, enqueued_at, processed_at
		FROM outbox_rows
		WHERE status = $1
		ORDER BY created_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, outbox.StatusPending, limit)
	if err != nil {
		return nil, apperrors.DatabaseError("claim_pending", err)
	}
	defer rows.Close()

	var claimed []outbox.Row
	for rows.Next() {
		r, err := scanOutboxRow(rows)
		if err != nil {
			return nil, apperrors.DatabaseError("scan_outbox_row", err)
		}
		claimed = append(claimed, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.DatabaseError("claim_pending_iter", err)
	}
	for _, r := range claimed {
		if _, err := q.ExecContext(ctx, `UPDATE outbox_rows SET status=$2, enqueued_at=$3 WHERE id=$1`,
			r.ID, outbox.StatusEnqueued, now()); err != nil {
			return nil, apperrors.DatabaseError("mark_enqueued_on_claim", err)
		}
	}
	return claimed, nil
}

func (s *Store) MarkEnqueued(ctx context.Context, q storage.Queryer, id string) error {
	return s.setOutboxStatus(ctx, q, id, outbox.StatusEnqueued, `enqueued_at`)
}

func (s *Store) MarkProcessed(ctx context.Context, q storage.Queryer, id string) error {
	return s.setOutboxStatus(ctx, q, id, outbox.StatusProcessed, `processed_at`)
}

func (s *Store) setOutboxStatus(ctx context.Context, q storage.Queryer, id string, status outbox.Status, timestampCol string) error {
	res, err := q.ExecContext(ctx, `UPDATE outbox_rows SET status=$2, `+timestampCol+`=$3 WHERE id=$1`, id, status, now())
	if err != nil {
		return apperrors.DatabaseError("update_outbox_status", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return apperrors.NotFound("outbox_row", id)
	}
	return nil
}

func (s *Store) MarkFailed(ctx context.Context, q storage.Queryer, id string, attempts int) error {
	res, err := q.ExecContext(ctx, `UPDATE outbox_rows SET status=$2, attempts=$3 WHERE id=$1`,
		id, outbox.StatusFailed, attempts)
	if err != nil {
		return apperrors.DatabaseError("mark_failed", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return apperrors.NotFound("outbox_row", id)
	}
	return nil
}

func scanOutboxRow(sc rowScanner) (outbox.Row, error) {
	var (
		r           outbox.Row
		payload     []byte
		enqueuedAt  sql.NullTime
		processedAt sql.NullTime
	)
	if err := sc.Scan(&r.ID, &r.EventType, &r.AggregateType, &r.AggregateID, &r.EventVersion, &r.IdempotencyKey,
		&payload, &r.Queue, &r.Status, &r.Attempts, &r.CreatedAt, &enqueuedAt, &processedAt); err != nil {
		return outbox.Row{}, err
	}
	r.Payload = payload
	r.EnqueuedAt = fromNullTime(enqueuedAt)
	r.ProcessedAt = fromNullTime(processedAt)
	return r, nil
}
