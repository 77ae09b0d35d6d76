package task

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/planloop/backend/domain"
	"github.com/planloop/backend/repository"
	"github.com/planloop/backend/usecase"
)

type UseCase struct {
	tasks      repository.TaskRepository
	activities repository.ActivityRepository
	buffer     usecase.CompletionBuffer
	logger     *zap.Logger
}

func New(tasks repository.TaskRepository, activities repository.ActivityRepository, buffer usecase.CompletionBuffer, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		tasks:      tasks,
		activities: activities,
		buffer:     buffer,
		logger:     logger,
	}
}

func (uc *UseCase) ListByActivity(ctx context.Context, userID, activityID string) ([]domain.Task, error) {
	if _, err := uc.ownedActivity(ctx, userID, activityID); err != nil {
		return nil, err
	}
	return uc.tasks.ListByActivity(ctx, activityID)
}

func (uc *UseCase) Get(ctx context.Context, userID, taskID string) (*domain.Task, error) {
	task, err := uc.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if _, err := uc.ownedActivity(ctx, userID, task.ActivityID); err != nil {
		return nil, err
	}
	return task, nil
}

// SetCompleted toggles a task's completion state. Idempotent: completing an
// already-completed task keeps its original completion timestamp.
func (uc *UseCase) SetCompleted(ctx context.Context, userID, taskID string, completed bool) (*domain.Task, error) {
	task, err := uc.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if _, err := uc.ownedActivity(ctx, userID, task.ActivityID); err != nil {
		return nil, err
	}

	updated, err := uc.tasks.SetCompleted(ctx, taskID, completed)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrCodeNotFound) {
			return nil, err
		}
		if uc.shouldBuffer(ctx, taskID, completed) {
			task.Completed = completed
			if completed && task.CompletedAt == nil {
				now := time.Now()
				task.CompletedAt = &now
			}
			if !completed {
				task.CompletedAt = nil
			}
			return task, nil
		}
		return nil, err
	}
	return updated, nil
}

func (uc *UseCase) shouldBuffer(ctx context.Context, taskID string, completed bool) bool {
	if uc.buffer == nil {
		return false
	}
	if err := uc.buffer.BufferCompletion(ctx, taskID, completed); err != nil {
		uc.logger.Error("failed to buffer completion", zap.String("task_id", taskID), zap.Error(err))
		return false
	}
	uc.logger.Warn("task completion buffered", zap.String("task_id", taskID))
	return true
}

func (uc *UseCase) ownedActivity(ctx context.Context, userID, activityID string) (*domain.Activity, error) {
	activity, err := uc.activities.GetByID(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if !activity.IsOwnedBy(userID) {
		return nil, domain.ErrForbidden
	}
	return activity, nil
}
