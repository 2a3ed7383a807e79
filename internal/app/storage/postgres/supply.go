package postgres

import (
	"context"
	"database/sql"
	"time"

	apperrors "github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/errors"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/storage"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/supply"
	"github.com/google/uuid"
)

func (s *Store) GetActiveExpertiseCount(ctx context.Context, q storage.Queryer, userID string) (int, error) {
	var n int
	row := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_expertise WHERE user_id=$1 AND active`, userID)
	if err := row.Scan(&n); err != nil {
		return 0, apperrors.DatabaseError("get_active_expertise_count", err)
	}
	return n, nil
}

func (s *Store) GetActiveExpertise(ctx context.Context, q storage.Queryer, userID, expertiseCode string) (supply.UserExpertise, bool, error) {
	row := q.QueryRowContext(ctx, expertiseSelect+`
		WHERE user_id=$1 AND expertise_code=$2 AND active LIMIT 1`, userID, expertiseCode)
	ue, err := scanUserExpertise(row)
	if err == sql.ErrNoRows {
		return supply.UserExpertise{}, false, nil
	}
	if err != nil {
		return supply.UserExpertise{}, false, apperrors.DatabaseError("get_active_expertise", err)
	}
	return ue, true, nil
}

func (s *Store) GetLatestInactiveExpertise(ctx context.Context, q storage.Queryer, userID, expertiseCode string) (supply.UserExpertise, bool, error) {
	row := q.QueryRowContext(ctx, expertiseSelect+`
		WHERE user_id=$1 AND expertise_code=$2 AND NOT active
		ORDER BY removed_at DESC LIMIT 1`, userID, expertiseCode)
	ue, err := scanUserExpertise(row)
	if err == sql.ErrNoRows {
		return supply.UserExpertise{}, false, nil
	}
	if err != nil {
		return supply.UserExpertise{}, false, apperrors.DatabaseError("get_latest_inactive_expertise", err)
	}
	return ue, true, nil
}

func (s *Store) HasFutureLock(ctx context.Context, q storage.Queryer, userID string, t time.Time) (bool, error) {
	var exists bool
	row := q.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM user_expertise WHERE user_id=$1 AND active AND locked_until > $2)
	`, userID, t)
	if err := row.Scan(&exists); err != nil {
		return false, apperrors.DatabaseError("has_future_lock", err)
	}
	return exists, nil
}

func (s *Store) DeleteExpertise(ctx context.Context, q storage.Queryer, id string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM user_expertise WHERE id=$1`, id); err != nil {
		return apperrors.DatabaseError("delete_expertise", err)
	}
	return nil
}

func (s *Store) InsertExpertise(ctx context.Context, q storage.Queryer, ue supply.UserExpertise) (supply.UserExpertise, error) {
	if ue.ID == "" {
		ue.ID = uuid.NewString()
	}
	if ue.CreatedAt.IsZero() {
		ue.CreatedAt = now()
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO user_expertise (id, user_id, expertise_code, zone_id, slot, slot_weight,
			effective_weight, active, locked_until, last_accepted_at, created_at, removed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, ue.ID, ue.UserID, ue.ExpertiseCode, ue.ZoneID, ue.Slot, ue.SlotWeight, ue.EffectiveWeight,
		ue.Active, toNullTime(ue.LockedUntil), toNullTime(ue.LastAcceptedAt), ue.CreatedAt, toNullTime(ue.RemovedAt))
	if err != nil {
		return supply.UserExpertise{}, apperrors.DatabaseError("insert_expertise", err)
	}
	return ue, nil
}

func (s *Store) GetCapacityForUpdate(ctx context.Context, q storage.Queryer, expertiseCode, zoneID string) (supply.Capacity, error) {
	row := q.QueryRowContext(ctx, capacitySelect+`
		WHERE expertise_code=$1 AND zone_id=$2 FOR UPDATE`, expertiseCode, zoneID)
	c, err := scanCapacity(row)
	if err == sql.ErrNoRows {
		return supply.Capacity{}, apperrors.NotFound("capacity", expertiseCode+"|"+zoneID)
	}
	if err != nil {
		return supply.Capacity{}, apperrors.DatabaseError("get_capacity_for_update", err)
	}
	return c, nil
}

func (s *Store) UpdateCapacity(ctx context.Context, q storage.Queryer, c supply.Capacity, expectedVersion int) (supply.Capacity, error) {
	res, err := q.ExecContext(ctx, `
		INSERT INTO supply_capacity (id, expertise_code, zone_id, max_weight_capacity, min_task_to_supply_ratio,
			current_weight, active_hustlers, open_tasks_7d, completed_tasks_7d, liquidity_ratio, open_ratio,
			auto_expand_pct, auto_expand_expires_at, version)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,1)
		ON CONFLICT (expertise_code, zone_id) DO UPDATE SET
			max_weight_capacity=$4, min_task_to_supply_ratio=$5, current_weight=$6, active_hustlers=$7,
			open_tasks_7d=$8, completed_tasks_7d=$9, liquidity_ratio=$10, open_ratio=$11,
			auto_expand_pct=$12, auto_expand_expires_at=$13, version=supply_capacity.version+1
		WHERE supply_capacity.version = $14
	`, firstNonEmpty(c.ID, uuid.NewString()), c.ExpertiseCode, c.ZoneID, c.MaxWeightCapacity, c.MinTaskToSupplyRatio,
		c.CurrentWeight, c.ActiveHustlers, c.OpenTasks7d, c.CompletedTasks7d, c.LiquidityRatio, c.OpenRatio,
		c.AutoExpandPct, toNullTime(c.AutoExpandExpiresAt), expectedVersion)
	if err != nil {
		return supply.Capacity{}, apperrors.DatabaseError("update_capacity", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		existing, getErr := s.GetCapacityForUpdate(ctx, q, c.ExpertiseCode, c.ZoneID)
		if getErr != nil {
			return supply.Capacity{}, getErr
		}
		return supply.Capacity{}, apperrors.VersionConflict("capacity", expectedVersion, existing.Version)
	}
	return s.GetCapacityForUpdate(ctx, q, c.ExpertiseCode, c.ZoneID)
}

func (s *Store) InsertWaitlist(ctx context.Context, q storage.Queryer, w supply.WaitlistEntry) (supply.WaitlistEntry, error) {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = now()
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO supply_waitlist (id, user_id, expertise_code, zone_id, slot, position, reason,
			invited_at, invite_expires_at, cancelled, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, w.ID, w.UserID, w.ExpertiseCode, w.ZoneID, w.Slot, w.Position, w.Reason,
		toNullTime(w.InvitedAt), toNullTime(w.InviteExpiresAt), w.Cancelled, w.CreatedAt)
	if err != nil {
		return supply.WaitlistEntry{}, apperrors.DatabaseError("insert_waitlist", err)
	}
	return w, nil
}

func (s *Store) ListWaitlistFIFO(ctx context.Context, q storage.Queryer, expertiseCode, zoneID string) ([]supply.WaitlistEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, user_id, expertise_code, zone_id, slot, position, reason,
			invited_at, invite_expires_at, cancelled, created_at
		FROM supply_waitlist
		WHERE expertise_code=$1 AND zone_id=$2 AND NOT cancelled
		ORDER BY position
	`, expertiseCode, zoneID)
	if err != nil {
		return nil, apperrors.DatabaseError("list_waitlist", err)
	}
	defer rows.Close()
	var out []supply.WaitlistEntry
	for rows.Next() {
		w, err := scanWaitlistEntry(rows)
		if err != nil {
			return nil, apperrors.DatabaseError("scan_waitlist", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *Store) UpdateWaitlist(ctx context.Context, q storage.Queryer, w supply.WaitlistEntry) (supply.WaitlistEntry, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE supply_waitlist SET position=$2, reason=$3, invited_at=$4, invite_expires_at=$5, cancelled=$6
		WHERE id=$1
	`, w.ID, w.Position, w.Reason, toNullTime(w.InvitedAt), toNullTime(w.InviteExpiresAt), w.Cancelled)
	if err != nil {
		return supply.WaitlistEntry{}, apperrors.DatabaseError("update_waitlist", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return supply.WaitlistEntry{}, apperrors.NotFound("waitlist_entry", w.ID)
	}
	return w, nil
}

func (s *Store) ListAllExpertise(ctx context.Context, q storage.Queryer) ([]supply.UserExpertise, error) {
	rows, err := q.QueryContext(ctx, expertiseSelect)
	if err != nil {
		return nil, apperrors.DatabaseError("list_all_expertise", err)
	}
	defer rows.Close()
	var out []supply.UserExpertise
	for rows.Next() {
		ue, err := scanUserExpertise(rows)
		if err != nil {
			return nil, apperrors.DatabaseError("scan_expertise", err)
		}
		out = append(out, ue)
	}
	return out, rows.Err()
}

func (s *Store) ListAllCapacity(ctx context.Context, q storage.Queryer) ([]supply.Capacity, error) {
	rows, err := q.QueryContext(ctx, capacitySelect)
	if err != nil {
		return nil, apperrors.DatabaseError("list_all_capacity", err)
	}
	defer rows.Close()
	var out []supply.Capacity
	for rows.Next() {
		c, err := scanCapacity(rows)
		if err != nil {
			return nil, apperrors.DatabaseError("scan_capacity", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// AppendChangeLog is best-effort: a logging failure is swallowed rather
// than surfaced, since it must never roll back the gate decision it records.
func (s *Store) AppendChangeLog(ctx context.Context, q storage.Queryer, entry supply.ChangeLogEntry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now()
	}
	_, _ = q.ExecContext(ctx, `
		INSERT INTO supply_change_log (id, user_id, expertise_code, zone_id, outcome, reason, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, entry.ID, entry.UserID, entry.ExpertiseCode, entry.ZoneID, entry.Outcome, entry.Reason, entry.CreatedAt)
}

const expertiseSelect = `
	SELECT id, user_id, expertise_code, zone_id, slot, slot_weight, effective_weight,
		active, locked_until, last_accepted_at, created_at, removed_at
	FROM user_expertise`

const capacitySelect = `
	SELECT id, expertise_code, zone_id, max_weight_capacity, min_task_to_supply_ratio, current_weight,
		active_hustlers, open_tasks_7d, completed_tasks_7d, liquidity_ratio, open_ratio,
		auto_expand_pct, auto_expand_expires_at, version
	FROM supply_capacity`

func scanUserExpertise(sc rowScanner) (supply.UserExpertise, error) {
	var (
		ue             supply.UserExpertise
		lockedUntil    sql.NullTime
		lastAcceptedAt sql.NullTime
		removedAt      sql.NullTime
	)
	if err := sc.Scan(&ue.ID, &ue.UserID, &ue.ExpertiseCode, &ue.ZoneID, &ue.Slot, &ue.SlotWeight, &ue.EffectiveWeight,
		&ue.Active, &lockedUntil, &lastAcceptedAt, &ue.CreatedAt, &removedAt); err != nil {
		return supply.UserExpertise{}, err
	}
	ue.LockedUntil = fromNullTime(lockedUntil)
	ue.LastAcceptedAt = fromNullTime(lastAcceptedAt)
	ue.RemovedAt = fromNullTime(removedAt)
	return ue, nil
}

func scanCapacity(sc rowScanner) (supply.Capacity, error) {
	var (
		c              supply.Capacity
		autoExpandExp  sql.NullTime
	)
	if err := sc.Scan(&c.ID, &c.ExpertiseCode, &c.ZoneID, &c.MaxWeightCapacity, &c.MinTaskToSupplyRatio, &c.CurrentWeight,
		&c.ActiveHustlers, &c.OpenTasks7d, &c.CompletedTasks7d, &c.LiquidityRatio, &c.OpenRatio,
		&c.AutoExpandPct, &autoExpandExp, &c.Version); err != nil {
		return supply.Capacity{}, err
	}
	c.AutoExpandExpiresAt = fromNullTime(autoExpandExp)
	return c, nil
}

func scanWaitlistEntry(sc rowScanner) (supply.WaitlistEntry, error) {
	var (
		w               supply.WaitlistEntry
		invitedAt       sql.NullTime
		inviteExpiresAt sql.NullTime
	)
	if err := sc.Scan(&w.ID, &w.UserID, &w.ExpertiseCode, &w.ZoneID, &w.Slot, &w.Position, &w.Reason,
		&invitedAt, &inviteExpiresAt, &w.Cancelled, &w.CreatedAt); err != nil {
		return supply.WaitlistEntry{}, err
	}
	w.InvitedAt = fromNullTime(invitedAt)
	w.InviteExpiresAt = fromNullTime(inviteExpiresAt)
	return w, nil
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
