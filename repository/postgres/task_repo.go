package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/planloop/backend/domain"
	"github.com/planloop/backend/repository"
)

type taskRepository struct {
	db DB
}

// NewTaskRepository returns a Postgres-backed implementation of TaskRepository.
func NewTaskRepository(db DB) repository.TaskRepository {
	return &taskRepository{db: db}
}

const taskColumns = `id, activity_id, title, description, category, completed, completed_at, original_task_id, due_date, position, created_at, updated_at`

func (r *taskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	const query = `
	SELECT ` + taskColumns + `
	FROM tasks
	WHERE id = $1
	`
	row := r.db.QueryRow(ctx, query, id)
	return scanTask(row)
}

func (r *taskRepository) ListByActivity(ctx context.Context, activityID string) ([]domain.Task, error) {
	const query = `
	SELECT ` + taskColumns + `
	FROM tasks
	WHERE activity_id = $1
	ORDER BY position ASC, created_at ASC
	`
	rows, err := r.db.Query(ctx, query, activityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func (r *taskRepository) CreateMany(ctx context.Context, activityID string, seeds []domain.TaskSeed) ([]domain.Task, error) {
	if activityID == "" {
		return nil, domain.ErrInvalidPayload
	}
	return insertTasks(ctx, r.db, activityID, seeds)
}

func (r *taskRepository) FindByOriginalTaskID(ctx context.Context, activityID, originalTaskID string) (*domain.Task, error) {
	if originalTaskID == "" {
		return nil, domain.ErrTaskNotFound
	}
	const query = `
	SELECT ` + taskColumns + `
	FROM tasks
	WHERE activity_id = $1 AND original_task_id = $2
	`
	row := r.db.QueryRow(ctx, query, activityID, originalTaskID)
	return scanTask(row)
}

func (r *taskRepository) SetCompleted(ctx context.Context, id string, completed bool) (*domain.Task, error) {
	const query = `
	UPDATE tasks
	SET completed = $2,
		completed_at = CASE WHEN $2 THEN COALESCE(completed_at, NOW()) ELSE NULL END,
		updated_at = NOW()
	WHERE id = $1
	RETURNING ` + taskColumns + `
	`
	row := r.db.QueryRow(ctx, query, id, completed)
	return scanTask(row)
}

// rowQuerier is satisfied by both DB and pgx.Tx so task inserts can run
// standalone or inside an activity transaction.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func insertTasks(ctx context.Context, q rowQuerier, activityID string, seeds []domain.TaskSeed) ([]domain.Task, error) {
	const query = `
	INSERT INTO tasks (id, activity_id, title, description, category, completed, completed_at, original_task_id, due_date, position)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	RETURNING created_at, updated_at
	`

	tasks := make([]domain.Task, 0, len(seeds))
	for pos, seed := range seeds {
		task := domain.Task{
			ID:             uuid.NewString(),
			ActivityID:     activityID,
			Title:          seed.Title,
			Description:    seed.Description,
			Category:       seed.Category,
			Completed:      seed.Completed,
			CompletedAt:    seed.CompletedAt,
			OriginalTaskID: seed.OriginalTaskID,
			DueDate:        seed.DueDate,
			Position:       pos,
		}
		if task.Completed && task.CompletedAt == nil {
			now := time.Now()
			task.CompletedAt = &now
		}

		var completedAt interface{}
		if task.CompletedAt != nil {
			completedAt = *task.CompletedAt
		}
		var due interface{}
		if task.DueDate != nil {
			due = *task.DueDate
		}

		if err := q.QueryRow(ctx, query,
			task.ID,
			task.ActivityID,
			task.Title,
			task.Description,
			task.Category,
			task.Completed,
			completedAt,
			nullString(task.OriginalTaskID),
			due,
			task.Position,
		).Scan(&task.CreatedAt, &task.UpdatedAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func scanTask(row interface {
	Scan(dest ...interface{}) error
}) (*domain.Task, error) {
	var task domain.Task
	var (
		completedAt *time.Time
		original    *string
		due         *time.Time
	)

	if err := row.Scan(
		&task.ID,
		&task.ActivityID,
		&task.Title,
		&task.Description,
		&task.Category,
		&task.Completed,
		&completedAt,
		&original,
		&due,
		&task.Position,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, err
	}

	task.CompletedAt = completedAt
	task.OriginalTaskID = stringValue(original)
	task.DueDate = due

	return &task, nil
}
