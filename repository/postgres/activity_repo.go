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

type activityRepository struct {
	db DB
}

// NewActivityRepository returns a Postgres-backed implementation of ActivityRepository.
func NewActivityRepository(db DB) repository.ActivityRepository {
	return &activityRepository{db: db}
}

const activityColumns = `id, user_id, title, description, category, status, share_token, content_hash, copied_from_share_token, is_archived, view_count, adoption_count, created_at, updated_at, completed_at`

func (r *activityRepository) GetByID(ctx context.Context, id string) (*domain.Activity, error) {
	const query = `
	SELECT ` + activityColumns + `
	FROM activities
	WHERE id = $1
	`
	row := r.db.QueryRow(ctx, query, id)
	return scanActivity(row)
}

func (r *activityRepository) FindByShareToken(ctx context.Context, token string) (*domain.Activity, error) {
	if token == "" {
		return nil, domain.ErrShareTokenNotFound
	}
	const query = `
	SELECT ` + activityColumns + `
	FROM activities
	WHERE share_token = $1
	`
	row := r.db.QueryRow(ctx, query, token)
	activity, err := scanActivity(row)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrCodeNotFound) {
			return nil, domain.ErrShareTokenNotFound
		}
		return nil, err
	}
	return activity, nil
}

func (r *activityRepository) FindByOwnerAndContentHash(ctx context.Context, userID, contentHash string) (*domain.Activity, error) {
	const query = `
	SELECT ` + activityColumns + `
	FROM activities
	WHERE user_id = $1 AND content_hash = $2 AND NOT is_archived
	`
	row := r.db.QueryRow(ctx, query, userID, contentHash)
	return scanActivity(row)
}

func (r *activityRepository) List(ctx context.Context, filter repository.ActivityFilter) ([]domain.Activity, error) {
	const query = `
	SELECT ` + activityColumns + `
	FROM activities
	WHERE ($1 = '' OR user_id = $1)
	  AND ($2 = '' OR status = $2)
	  AND ($3 = '' OR category = $3)
	  AND is_archived = $4
	ORDER BY updated_at DESC
	LIMIT $5 OFFSET $6
	`
	rows, err := r.db.Query(ctx, query,
		filter.UserID,
		filter.Status,
		filter.Category,
		filter.Archived,
		clampLimit(filter.Limit),
		filter.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var activities []domain.Activity
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		activities = append(activities, *activity)
	}
	return activities, rows.Err()
}

func (r *activityRepository) Create(ctx context.Context, activity *domain.Activity, seeds []domain.TaskSeed) (*domain.Activity, []domain.Task, error) {
	return r.createInTx(ctx, activity, seeds, "")
}

func (r *activityRepository) CreateAndArchive(ctx context.Context, activity *domain.Activity, seeds []domain.TaskSeed, archiveActivityID string) (*domain.Activity, []domain.Task, error) {
	return r.createInTx(ctx, activity, seeds, archiveActivityID)
}

func (r *activityRepository) createInTx(ctx context.Context, activity *domain.Activity, seeds []domain.TaskSeed, archiveActivityID string) (*domain.Activity, []domain.Task, error) {
	if activity == nil || activity.Title == "" {
		return nil, nil, domain.ErrInvalidPayload
	}
	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	if activity.Status == "" {
		activity.Status = domain.ActivityStatusPlanning
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	// The superseded copy must leave the (user_id, content_hash) unique
	// index before the replacement is inserted: the partial index is
	// checked per row at insert time and cannot be deferred.
	if archiveActivityID != "" {
		if err := archiveInTx(ctx, tx, archiveActivityID); err != nil {
			return nil, nil, err
		}
	}

	const insert = `
	INSERT INTO activities (id, user_id, title, description, category, status, share_token, content_hash, copied_from_share_token)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	RETURNING created_at, updated_at
	`
	if err := tx.QueryRow(ctx, insert,
		activity.ID,
		nullString(activity.UserID),
		activity.Title,
		activity.Description,
		activity.Category,
		activity.Status,
		nullString(activity.ShareToken),
		nullString(activity.ContentHash),
		nullString(activity.CopiedFromShareToken),
	).Scan(&activity.CreatedAt, &activity.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, nil, domain.ErrDuplicateActivity
		}
		return nil, nil, err
	}

	tasks, err := insertTasks(ctx, tx, activity.ID, seeds)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return activity, tasks, nil
}

func (r *activityRepository) Archive(ctx context.Context, id string) error {
	const query = `
	UPDATE activities
	SET is_archived = TRUE, updated_at = NOW()
	WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrActivityNotFound
	}
	return nil
}

func (r *activityRepository) SetShareToken(ctx context.Context, id, token string) error {
	const query = `
	UPDATE activities
	SET share_token = $2, updated_at = NOW()
	WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, id, nullString(token))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.WrapError(domain.ErrCodeConflict, "share token already in use", err)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrActivityNotFound
	}
	return nil
}

func (r *activityRepository) IncrementViewCount(ctx context.Context, id string) error {
	const query = `UPDATE activities SET view_count = view_count + 1 WHERE id = $1`
	_, err := r.db.Exec(ctx, query, id)
	return err
}

func (r *activityRepository) IncrementAdoptionCount(ctx context.Context, id string) error {
	const query = `UPDATE activities SET adoption_count = adoption_count + 1 WHERE id = $1`
	_, err := r.db.Exec(ctx, query, id)
	return err
}

func archiveInTx(ctx context.Context, tx pgx.Tx, id string) error {
	const query = `
	UPDATE activities
	SET is_archived = TRUE, updated_at = NOW()
	WHERE id = $1
	`
	tag, err := tx.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrActivityNotFound
	}
	return nil
}

func scanActivity(row interface {
	Scan(dest ...interface{}) error
}) (*domain.Activity, error) {
	var activity domain.Activity
	var (
		userID      *string
		shareToken  *string
		contentHash *string
		copiedFrom  *string
		completedAt *time.Time
	)

	if err := row.Scan(
		&activity.ID,
		&userID,
		&activity.Title,
		&activity.Description,
		&activity.Category,
		&activity.Status,
		&shareToken,
		&contentHash,
		&copiedFrom,
		&activity.IsArchived,
		&activity.ViewCount,
		&activity.AdoptionCount,
		&activity.CreatedAt,
		&activity.UpdatedAt,
		&completedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrActivityNotFound
		}
		return nil, err
	}

	activity.UserID = stringValue(userID)
	activity.ShareToken = stringValue(shareToken)
	activity.ContentHash = stringValue(contentHash)
	activity.CopiedFromShareToken = stringValue(copiedFrom)
	activity.CompletedAt = completedAt

	return &activity, nil
}
