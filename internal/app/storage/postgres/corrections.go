package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	apperrors "github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/errors"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/storage"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/correction"
	"github.com/google/uuid"
)

func (s *Store) GetBudgetCounter(ctx context.Context, q storage.Queryer, scope, scopeID string, windowStart time.Time) (int, error) {
	var n int
	row := q.QueryRowContext(ctx, `
		SELECT COALESCE(count, 0) FROM correction_budget_counters
		WHERE scope=$1 AND scope_id=$2 AND window_start=$3
	`, scope, scopeID, windowStart)
	if err := row.Scan(&n); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, apperrors.DatabaseError("get_budget_counter", err)
	}
	return n, nil
}

// ConsumeBudget upserts the per-window counter atomically, so concurrent
// correction attempts never both observe room under the cap (§4.H).
func (s *Store) ConsumeBudget(ctx context.Context, q storage.Queryer, scope, scopeID string, windowStart time.Time) (int, error) {
	var n int
	row := q.QueryRowContext(ctx, `
		INSERT INTO correction_budget_counters (scope, scope_id, window_start, count)
		VALUES ($1,$2,$3,1)
		ON CONFLICT (scope, scope_id, window_start) DO UPDATE SET count = correction_budget_counters.count + 1
		RETURNING count
	`, scope, scopeID, windowStart)
	if err := row.Scan(&n); err != nil {
		return 0, apperrors.DatabaseError("consume_budget", err)
	}
	return n, nil
}

func (s *Store) InsertCorrection(ctx context.Context, q storage.Queryer, c correction.Correction) (correction.Correction, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now()
	}
	adjJSON, err := json.Marshal(c.Adjustment)
	if err != nil {
		return correction.Correction{}, apperrors.Internal("marshal correction adjustment", err)
	}
	priorJSON, err := json.Marshal(c.PriorValue)
	if err != nil {
		return correction.Correction{}, apperrors.Internal("marshal correction prior value", err)
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO corrections (id, type, target_id, scope, zone_id, city_id, category, reason_code,
			adjustment, prior_value, expires_at, reversal, applied_at, reversed_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`, c.ID, c.Type, c.TargetID, c.Scope, toNullString(c.ZoneID), toNullString(c.CityID), toNullString(c.Category),
		c.ReasonCode, adjJSON, priorJSON, toNullTime(c.ExpiresAt), c.Reversal, toNullTime(c.AppliedAt), toNullTime(c.ReversedAt), c.CreatedAt)
	if err != nil {
		return correction.Correction{}, apperrors.DatabaseError("insert_correction", err)
	}
	return c, nil
}

func (s *Store) GetCorrection(ctx context.Context, q storage.Queryer, id string) (correction.Correction, error) {
	row := q.QueryRowContext(ctx, correctionSelect+` WHERE id=$1`, id)
	c, err := scanCorrection(row)
	if err == sql.ErrNoRows {
		return correction.Correction{}, apperrors.NotFound("correction", id)
	}
	if err != nil {
		return correction.Correction{}, apperrors.DatabaseError("get_correction", err)
	}
	return c, nil
}

func (s *Store) UpdateCorrection(ctx context.Context, q storage.Queryer, c correction.Correction) (correction.Correction, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE corrections SET reversal=$2, reversed_at=$3 WHERE id=$1
	`, c.ID, c.Reversal, toNullTime(c.ReversedAt))
	if err != nil {
		return correction.Correction{}, apperrors.DatabaseError("update_correction", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return correction.Correction{}, apperrors.NotFound("correction", c.ID)
	}
	return c, nil
}

func (s *Store) ListExpired(ctx context.Context, q storage.Queryer, t time.Time) ([]correction.Correction, error) {
	rows, err := q.QueryContext(ctx, correctionSelect+`
		WHERE reversal='none' AND expires_at IS NOT NULL AND expires_at <= $1
	`, t)
	if err != nil {
		return nil, apperrors.DatabaseError("list_expired_corrections", err)
	}
	defer rows.Close()
	var out []correction.Correction
	for rows.Next() {
		c, err := scanCorrection(rows)
		if err != nil {
			return nil, apperrors.DatabaseError("scan_correction", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) ListForAnalysis(ctx context.Context, q storage.Queryer, before time.Time) ([]correction.Correction, error) {
	rows, err := q.QueryContext(ctx, correctionSelect+` WHERE applied_at < $1`, before)
	if err != nil {
		return nil, apperrors.DatabaseError("list_for_analysis", err)
	}
	defer rows.Close()
	var out []correction.Correction
	for rows.Next() {
		c, err := scanCorrection(rows)
		if err != nil {
			return nil, apperrors.DatabaseError("scan_correction", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const correctionSelect = `
	SELECT id, type, target_id, scope, zone_id, city_id, category, reason_code,
		adjustment, prior_value, expires_at, reversal, applied_at, reversed_at, created_at
	FROM corrections`

func scanCorrection(sc rowScanner) (correction.Correction, error) {
	var (
		c                                      correction.Correction
		zoneID, cityID, category               sql.NullString
		adjRaw, priorRaw                        []byte
		expiresAt, appliedAt, reversedAt        sql.NullTime
	)
	if err := sc.Scan(&c.ID, &c.Type, &c.TargetID, &c.Scope, &zoneID, &cityID, &category, &c.ReasonCode,
		&adjRaw, &priorRaw, &expiresAt, &c.Reversal, &appliedAt, &reversedAt, &c.CreatedAt); err != nil {
		return correction.Correction{}, err
	}
	if zoneID.Valid {
		c.ZoneID = zoneID.String
	}
	if cityID.Valid {
		c.CityID = cityID.String
	}
	if category.Valid {
		c.Category = category.String
	}
	if len(adjRaw) > 0 {
		_ = json.Unmarshal(adjRaw, &c.Adjustment)
	}
	if len(priorRaw) > 0 {
		_ = json.Unmarshal(priorRaw, &c.PriorValue)
	}
	c.ExpiresAt = fromNullTime(expiresAt)
	c.AppliedAt = fromNullTime(appliedAt)
	c.ReversedAt = fromNullTime(reversedAt)
	return c, nil
}
