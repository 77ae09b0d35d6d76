package repository

import (
	"context"

	"github.com/planloop/backend/domain"
)

type ActivityFilter struct {
	UserID   string
	Status   string
	Category string
	Archived bool
	Limit    int
	Offset   int
}

// ActivityRepository persists activities and their task batches.
//
// Create and CreateAndArchive must be atomic: the activity and its tasks
// appear together or not at all. Both surface domain.ErrDuplicateActivity
// when the (user_id, content_hash) uniqueness guard rejects the insert,
// which is how a losing concurrent copier is detected.
type ActivityRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Activity, error)
	FindByShareToken(ctx context.Context, token string) (*domain.Activity, error)
	FindByOwnerAndContentHash(ctx context.Context, userID, contentHash string) (*domain.Activity, error)
	List(ctx context.Context, filter ActivityFilter) ([]domain.Activity, error)
	Create(ctx context.Context, activity *domain.Activity, seeds []domain.TaskSeed) (*domain.Activity, []domain.Task, error)
	// CreateAndArchive additionally marks archiveActivityID archived in the
	// same transaction. Used by forced re-copy so a crash cannot leave the
	// user with the old copy archived and no replacement.
	CreateAndArchive(ctx context.Context, activity *domain.Activity, seeds []domain.TaskSeed, archiveActivityID string) (*domain.Activity, []domain.Task, error)
	Archive(ctx context.Context, id string) error
	SetShareToken(ctx context.Context, id, token string) error
	IncrementViewCount(ctx context.Context, id string) error
	IncrementAdoptionCount(ctx context.Context, id string) error
}
