package postgres

import (
	"context"
	"database/sql"

	apperrors "github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/errors"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/storage"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/task"
	"github.com/google/uuid"
)

func (s *Store) CreateTask(ctx context.Context, q storage.Queryer, t task.Task) (task.Task, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	n := now()
	t.CreatedAt, t.UpdatedAt = n, n
	t.Version = 1

	_, err := q.ExecContext(ctx, `
		INSERT INTO tasks (id, poster_id, worker_id, price_minor, category, mode, instant_mode,
			risk_level, lifecycle, progress, created_at, updated_at, completed_at, version)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, t.ID, t.PosterID, toNullString(t.WorkerID), t.PriceMinor, t.Category, t.Mode, t.InstantMode,
		t.RiskLevel, t.Lifecycle, t.Progress, t.CreatedAt, t.UpdatedAt, toNullTime(t.CompletedAt), t.Version)
	if err != nil {
		return task.Task{}, apperrors.DatabaseError("create_task", err)
	}
	return t, nil
}

func (s *Store) GetTask(ctx context.Context, q storage.Queryer, id string) (task.Task, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, poster_id, worker_id, price_minor, category, mode, instant_mode,
			risk_level, lifecycle, progress, created_at, updated_at, completed_at, version
		FROM tasks WHERE id = $1
	`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return task.Task{}, apperrors.NotFound("task", id)
	}
	if err != nil {
		return task.Task{}, apperrors.DatabaseError("get_task", err)
	}
	return t, nil
}

// GetTaskForUpdate row-locks the task for the duration of the caller's
// transaction (FOR UPDATE), the Postgres equivalent of the in-memory
// store's single-mutex WithTx scope.
func (s *Store) GetTaskForUpdate(ctx context.Context, q storage.Queryer, id string) (task.Task, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, poster_id, worker_id, price_minor, category, mode, instant_mode,
			risk_level, lifecycle, progress, created_at, updated_at, completed_at, version
		FROM tasks WHERE id = $1 FOR UPDATE
	`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return task.Task{}, apperrors.NotFound("task", id)
	}
	if err != nil {
		return task.Task{}, apperrors.DatabaseError("get_task_for_update", err)
	}
	return t, nil
}

func (s *Store) UpdateTask(ctx context.Context, q storage.Queryer, t task.Task) (task.Task, error) {
	expectedVersion := t.Version
	t.UpdatedAt = now()
	res, err := q.ExecContext(ctx, `
		UPDATE tasks SET poster_id=$2, worker_id=$3, price_minor=$4, category=$5, mode=$6,
			instant_mode=$7, risk_level=$8, lifecycle=$9, progress=$10, updated_at=$11,
			completed_at=$12, version=version+1
		WHERE id = $1 AND version = $13
	`, t.ID, t.PosterID, toNullString(t.WorkerID), t.PriceMinor, t.Category, t.Mode,
		t.InstantMode, t.RiskLevel, t.Lifecycle, t.Progress, t.UpdatedAt, toNullTime(t.CompletedAt), expectedVersion)
	if err != nil {
		return task.Task{}, apperrors.DatabaseError("update_task", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		existing, getErr := s.GetTask(ctx, q, t.ID)
		if getErr != nil {
			return task.Task{}, getErr
		}
		return task.Task{}, apperrors.VersionConflict("task", expectedVersion, existing.Version)
	}
	t.Version = expectedVersion + 1
	return t, nil
}

func scanTask(sc rowScanner) (task.Task, error) {
	var (
		t           task.Task
		workerID    sql.NullString
		completedAt sql.NullTime
	)
	if err := sc.Scan(&t.ID, &t.PosterID, &workerID, &t.PriceMinor, &t.Category, &t.Mode, &t.InstantMode,
		&t.RiskLevel, &t.Lifecycle, &t.Progress, &t.CreatedAt, &t.UpdatedAt, &completedAt, &t.Version); err != nil {
		return task.Task{}, err
	}
	if workerID.Valid {
		t.WorkerID = workerID.String
	}
	t.CompletedAt = fromNullTime(completedAt)
	return t, nil
}
