package repository

import (
	"context"

	"github.com/planloop/backend/domain"
)

// TaskRepository persists tasks belonging to activities.
type TaskRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Task, error)
	ListByActivity(ctx context.Context, activityID string) ([]domain.Task, error)
	CreateMany(ctx context.Context, activityID string, seeds []domain.TaskSeed) ([]domain.Task, error)
	// FindByOriginalTaskID looks a task up by its lineage back-reference
	// within one activity. Returns domain.ErrTaskNotFound on miss.
	FindByOriginalTaskID(ctx context.Context, activityID, originalTaskID string) (*domain.Task, error)
	SetCompleted(ctx context.Context, id string, completed bool) (*domain.Task, error)
}
