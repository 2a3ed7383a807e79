// Package task implements the task lifecycle/progress transition
// operations of spec.md §4.D, grounded on
// internal/app/services/gasbank/service.go's store-backed Service shape.
package task

import (
	"context"
	"time"

	apperrors "github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/errors"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/logging"
	core "github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/core/service"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/storage"
	domtask "github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/task"
)

// Service implements the task's two orthogonal state machines.
type Service struct {
	runner storage.TxRunner
	tasks  storage.TaskStore
	log    *logging.Logger
}

// New constructs a task Service.
func New(runner storage.TxRunner, tasks storage.TaskStore, log *logging.Logger) *Service {
	return &Service{runner: runner, tasks: tasks, log: log}
}

// Descriptor advertises the service's placement and capabilities.
func (s *Service) Descriptor() core.Descriptor {
	return core.Descriptor{
		Name:         "task",
		Domain:       "marketplace",
		Layer:        core.LayerEngine,
		Capabilities: []string{"lifecycle_transition", "progress_transition"},
	}
}

// Create inserts a new task in its initial OPEN/POSTED state.
func (s *Service) Create(ctx context.Context, t domtask.Task) (domtask.Task, error) {
	t.Lifecycle = domtask.LifecycleOpen
	t.Progress = domtask.ProgressPosted
	var out domtask.Task
	err := s.runner.WithTx(ctx, func(ctx context.Context, q storage.Queryer) error {
		created, err := s.tasks.CreateTask(ctx, q, t)
		if err != nil {
			return err
		}
		out = created
		return nil
	})
	return out, err
}

// TransitionLifecycle moves a task along its primary state machine,
// rejecting any edge not present in the fixed adjacency (§4.D).
func (s *Service) TransitionLifecycle(ctx context.Context, taskID string, to domtask.LifecycleState) (domtask.Task, error) {
	var out domtask.Task
	err := s.runner.WithTx(ctx, func(ctx context.Context, q storage.Queryer) error {
		t, err := s.tasks.GetTaskForUpdate(ctx, q, taskID)
		if err != nil {
			return err
		}
		if t.Lifecycle.IsTerminal() {
			return apperrors.TaskTerminal(t.ID)
		}
		if !domtask.CanTransitionLifecycle(t.Lifecycle, to) {
			return apperrors.InvalidTransition(string(t.Lifecycle), string(to))
		}
		t.Lifecycle = to
		if to == domtask.LifecycleCompleted {
			t.CompletedAt = time.Now().UTC()
		}
		updated, err := s.tasks.UpdateTask(ctx, q, t)
		if err != nil {
			return err
		}
		out = updated
		return nil
	})
	if err != nil {
		return domtask.Task{}, err
	}
	s.log.WithFields(map[string]interface{}{"task_id": out.ID, "lifecycle": out.Lifecycle}).Info("task lifecycle transitioned")
	return out, nil
}

// TransitionProgress advances a task's orthogonal progress axis by exactly
// one step; skips and reversals fail INVALID_TRANSITION (I6).
func (s *Service) TransitionProgress(ctx context.Context, taskID string, to domtask.ProgressState) (domtask.Task, error) {
	var out domtask.Task
	err := s.runner.WithTx(ctx, func(ctx context.Context, q storage.Queryer) error {
		t, err := s.tasks.GetTaskForUpdate(ctx, q, taskID)
		if err != nil {
			return err
		}
		if !domtask.CanTransitionProgress(t.Progress, to) {
			return apperrors.InvalidTransition(string(t.Progress), string(to))
		}
		t.Progress = to
		updated, err := s.tasks.UpdateTask(ctx, q, t)
		if err != nil {
			return err
		}
		out = updated
		return nil
	})
	if err != nil {
		return domtask.Task{}, err
	}
	s.log.WithFields(map[string]interface{}{"task_id": out.ID, "progress": out.Progress}).Info("task progress transitioned")
	return out, nil
}

// Get returns the task as currently stored.
func (s *Service) Get(ctx context.Context, taskID string) (domtask.Task, error) {
	return s.tasks.GetTask(ctx, s.runner.Queryer(), taskID)
}
