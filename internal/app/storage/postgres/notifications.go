package postgres

import (
	"context"
	"database/sql"
	"time"

	apperrors "github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/errors"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/storage"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/notification"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

func (s *Store) InsertNotification(ctx context.Context, q storage.Queryer, n notification.Notification) (notification.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now()
	}
	channels := make([]string, len(n.Channels))
	for i, c := range n.Channels {
		channels[i] = string(c)
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, task_id, category, priority, title, body, channels, created_at, read_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, n.ID, n.UserID, toNullString(n.TaskID), n.Category, n.Priority, n.Title, n.Body,
		pq.Array(channels), n.CreatedAt, toNullTime(n.ReadAt))
	if err != nil {
		return notification.Notification{}, apperrors.DatabaseError("insert_notification", err)
	}
	return n, nil
}

func (s *Store) InsertEmailOutbox(ctx context.Context, q storage.Queryer, e notification.EmailOutboxRow) (notification.EmailOutboxRow, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	n := now()
	e.CreatedAt, e.UpdatedAt = n, n
	_, err := q.ExecContext(ctx, `
		INSERT INTO email_outbox (id, notification_id, to_address, state, provider_id, next_retry_at, attempts, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, e.ID, e.NotificationID, e.ToAddress, e.State, toNullString(e.ProviderID), toNullTime(e.NextRetryAt), e.Attempts, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return notification.EmailOutboxRow{}, apperrors.DatabaseError("insert_email_outbox", err)
	}
	return e, nil
}

// ClaimPendingEmails claims up to limit due rows under FOR UPDATE SKIP
// LOCKED, flipping them to "sending" in the same statement so concurrent
// dispatchers never race on the same row.
func (s *Store) ClaimPendingEmails(ctx context.Context, q storage.Queryer, limit int) ([]notification.EmailOutboxRow, error) {
	n := now()
	rows, err := q.QueryContext(ctx, `
		UPDATE email_outbox
		SET state = 'sending', updated_at = $1
		WHERE id IN (
			SELECT id FROM email_outbox
			WHERE state = 'pending' OR (state = 'failed' AND next_retry_at IS NOT NULL AND next_retry_at <= $1)
			ORDER BY created_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, notification_id, to_address, state, provider_id, next_retry_at, attempts, created_at, updated_at
	`, n, limit)
	if err != nil {
		return nil, apperrors.DatabaseError("claim_pending_emails", err)
	}
	defer rows.Close()

	var claimed []notification.EmailOutboxRow
	for rows.Next() {
		var (
			e          notification.EmailOutboxRow
			providerID sql.NullString
			nextRetry  sql.NullTime
		)
		if err := rows.Scan(&e.ID, &e.NotificationID, &e.ToAddress, &e.State, &providerID, &nextRetry, &e.Attempts, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, apperrors.DatabaseError("scan_pending_email", err)
		}
		e.ProviderID = providerID.String
		e.NextRetryAt = fromNullTime(nextRetry)
		claimed = append(claimed, e)
	}
	return claimed, rows.Err()
}

// MarkEmailResult records the outcome of a send attempt.
func (s *Store) MarkEmailResult(ctx context.Context, q storage.Queryer, id string, state notification.EmailState, providerID string, nextRetryAt time.Time) error {
	_, err := q.ExecContext(ctx, `
		UPDATE email_outbox
		SET state = $2, provider_id = $3, next_retry_at = $4, attempts = attempts + 1, updated_at = $5
		WHERE id = $1
	`, id, state, toNullString(providerID), toNullTime(nextRetryAt), now())
	if err != nil {
		return apperrors.DatabaseError("mark_email_result", err)
	}
	return nil
}

func (s *Store) ListAdminUserIDs(ctx context.Context, q storage.Queryer) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT id FROM users WHERE account_status = 'ACTIVE' AND is_admin`)
	if err != nil {
		return nil, apperrors.DatabaseError("list_admin_user_ids", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.DatabaseError("scan_admin_user_id", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
