package postgres

import (
	"context"
	"database/sql"

	apperrors "github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/errors"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/storage"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/stripeevent"
)

// InsertIfAbsent is the ON CONFLICT DO NOTHING primitive backing at-most-once
// webhook ingest (§4.F step 2).
func (s *Store) InsertIfAbsent(ctx context.Context, q storage.Queryer, ev stripeevent.Event) (bool, error) {
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = now()
	}
	res, err := q.ExecContext(ctx, `
		INSERT INTO stripe_events (external_id, type, external_created, raw_payload, received_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (external_id) DO NOTHING
	`, ev.ExternalID, ev.Type, ev.ExternalCreated, []byte(ev.RawPayload), ev.ReceivedAt)
	if err != nil {
		return false, apperrors.DatabaseError("insert_stripe_event", err)
	}
	rows, _ := res.RowsAffected()
	return rows > 0, nil
}

func (s *Store) Get(ctx context.Context, q storage.Queryer, externalID string) (stripeevent.Event, error) {
	row := q.QueryRowContext(ctx, `
		SELECT external_id, type, external_created, raw_payload, received_at
		FROM stripe_events WHERE external_id = $1
	`, externalID)
	var (
		ev      stripeevent.Event
		payload []byte
	)
	if err := row.Scan(&ev.ExternalID, &ev.Type, &ev.ExternalCreated, &payload, &ev.ReceivedAt); err != nil {
		if err == sql.ErrNoRows {
			return stripeevent.Event{}, apperrors.NotFound("stripe_event", externalID)
		}
		return stripeevent.Event{}, apperrors.DatabaseError("get_stripe_event", err)
	}
	ev.RawPayload = payload
	return ev, nil
}
