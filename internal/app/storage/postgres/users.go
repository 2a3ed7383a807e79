package postgres

import (
	"context"
	"database/sql"

	apperrors "github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/errors"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/storage"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/user"
	"github.com/google/uuid"
)

func (s *Store) CreateUser(ctx context.Context, q storage.Queryer, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	n := now()
	u.CreatedAt, u.UpdatedAt = n, n

	_, err := q.ExecContext(ctx, `
		INSERT INTO users (id, default_mode, trust_tier, xp_total, streak, verified, plan,
			plan_expires_at, account_status, live_session_id, live_session_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, u.ID, u.DefaultMode, u.TrustTier, u.XPTotal, u.Streak, u.Verified, u.Plan,
		toNullTime(u.PlanExpiresAt), u.AccountStatus, toNullString(u.LiveSessionID), toNullTime(u.LiveSessionAt), u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return user.User{}, apperrors.DatabaseError("create_user", err)
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, q storage.Queryer, id string) (user.User, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, default_mode, trust_tier, xp_total, streak, verified, plan,
			plan_expires_at, account_status, live_session_id, live_session_at, created_at, updated_at
		FROM users WHERE id = $1
	`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return user.User{}, apperrors.NotFound("user", id)
	}
	if err != nil {
		return user.User{}, apperrors.DatabaseError("get_user", err)
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, q storage.Queryer, u user.User) (user.User, error) {
	u.UpdatedAt = now()
	res, err := q.ExecContext(ctx, `
		UPDATE users SET default_mode=$2, trust_tier=$3, xp_total=$4, streak=$5, verified=$6,
			plan=$7, plan_expires_at=$8, account_status=$9, live_session_id=$10, live_session_at=$11, updated_at=$12
		WHERE id = $1
	`, u.ID, u.DefaultMode, u.TrustTier, u.XPTotal, u.Streak, u.Verified, u.Plan,
		toNullTime(u.PlanExpiresAt), u.AccountStatus, toNullString(u.LiveSessionID), toNullTime(u.LiveSessionAt), u.UpdatedAt)
	if err != nil {
		return user.User{}, apperrors.DatabaseError("update_user", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return user.User{}, apperrors.NotFound("user", u.ID)
	}
	return u, nil
}

// AwardBadge relies on a unique index over (user_id, code, source_event_id)
// for idempotent badge awards on outbox replay (I7).
func (s *Store) AwardBadge(ctx context.Context, q storage.Queryer, b user.Badge) (user.Badge, bool, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.AwardedAt.IsZero() {
		b.AwardedAt = now()
	}
	res, err := q.ExecContext(ctx, `
		INSERT INTO user_badges (id, user_id, code, awarded_at, source_event_id)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (user_id, code, source_event_id) DO NOTHING
	`, b.ID, b.UserID, b.Code, b.AwardedAt, b.SourceEventID)
	if err != nil {
		return user.Badge{}, false, apperrors.DatabaseError("award_badge", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		row := q.QueryRowContext(ctx, `
			SELECT id, user_id, code, awarded_at, source_event_id
			FROM user_badges WHERE user_id=$1 AND code=$2 AND source_event_id=$3
		`, b.UserID, b.Code, b.SourceEventID)
		var existing user.Badge
		if err := row.Scan(&existing.ID, &existing.UserID, &existing.Code, &existing.AwardedAt, &existing.SourceEventID); err != nil {
			return user.Badge{}, false, apperrors.DatabaseError("award_badge_lookup", err)
		}
		return existing, false, nil
	}
	return b, true, nil
}

func scanUser(s rowScanner) (user.User, error) {
	var (
		u             user.User
		planExpiresAt sql.NullTime
		liveSessionID sql.NullString
		liveSessionAt sql.NullTime
	)
	if err := s.Scan(&u.ID, &u.DefaultMode, &u.TrustTier, &u.XPTotal, &u.Streak, &u.Verified, &u.Plan,
		&planExpiresAt, &u.AccountStatus, &liveSessionID, &liveSessionAt, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return user.User{}, err
	}
	u.PlanExpiresAt = fromNullTime(planExpiresAt)
	u.LiveSessionAt = fromNullTime(liveSessionAt)
	if liveSessionID.Valid {
		u.LiveSessionID = liveSessionID.String
	}
	return u, nil
}
