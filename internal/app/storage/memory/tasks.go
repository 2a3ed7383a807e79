package memory

import (
	"context"

	apperrors "github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/errors"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/storage"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/task"
)

func (s *Store) CreateTask(ctx context.Context, q storage.Queryer, t task.Task) (task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[t.ID]; ok {
		return task.Task{}, apperrors.AlreadyExists("task", t.ID)
	}
	t.Version = 1
	s.tasks[t.ID] = t
	return t, nil
}

func (s *Store) GetTask(ctx context.Context, q storage.Queryer, id string) (task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return task.Task{}, apperrors.NotFound("task", id)
	}
	return t, nil
}

// GetTaskForUpdate is GetTask without the per-call lock in the memory
// store: WithTx already serializes the whole scope.
func (s *Store) GetTaskForUpdate(ctx context.Context, q storage.Queryer, id string) (task.Task, error) {
	t, ok := s.tasks[id]
	if !ok {
		return task.Task{}, apperrors.NotFound("task", id)
	}
	return t, nil
}

func (s *Store) UpdateTask(ctx context.Context, q storage.Queryer, t task.Task) (task.Task, error) {
	existing, ok := s.tasks[t.ID]
	if !ok {
		return task.Task{}, apperrors.NotFound("task", t.ID)
	}
	if existing.Version != t.Version {
		return task.Task{}, apperrors.VersionConflict("task", t.Version, existing.Version)
	}
	t.Version++
	s.tasks[t.ID] = t
	return t, nil
}

var _ storage.TaskStore = (*Store)(nil)
