package activity

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/planloop/backend/domain"
	"github.com/planloop/backend/pkg/fingerprint"
	"github.com/planloop/backend/repository"
	"github.com/planloop/backend/usecase"
)

type UseCase struct {
	activities repository.ActivityRepository
	tasks      repository.TaskRepository
	counters   usecase.CounterSink
	logger     *zap.Logger
}

func New(activities repository.ActivityRepository, tasks repository.TaskRepository, counters usecase.CounterSink, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		activities: activities,
		tasks:      tasks,
		counters:   counters,
		logger:     logger,
	}
}

// Create persists a new plan with its task batch. The content hash is
// computed here so manually recreated plans hit the same duplicate guard
// as copies.
func (uc *UseCase) Create(ctx context.Context, activity *domain.Activity, seeds []domain.TaskSeed) (*domain.Activity, []domain.Task, error) {
	if activity == nil || activity.Title == "" || activity.UserID == "" {
		return nil, nil, domain.ErrInvalidPayload
	}

	titles := make([]string, 0, len(seeds))
	for _, seed := range seeds {
		titles = append(titles, seed.Title)
	}
	activity.ContentHash = fingerprint.Compute(activity.Title, activity.Description, titles)

	return uc.activities.Create(ctx, activity, seeds)
}

func (uc *UseCase) Get(ctx context.Context, userID, id string) (*domain.Activity, []domain.Task, error) {
	activity, err := uc.activities.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !activity.IsOwnedBy(userID) {
		return nil, nil, domain.ErrForbidden
	}

	tasks, err := uc.tasks.ListByActivity(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return activity, tasks, nil
}

func (uc *UseCase) List(ctx context.Context, filter repository.ActivityFilter) ([]domain.Activity, error) {
	return uc.activities.List(ctx, filter)
}

func (uc *UseCase) Archive(ctx context.Context, userID, id string) error {
	activity, err := uc.activities.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !activity.IsOwnedBy(userID) {
		return domain.ErrForbidden
	}
	return uc.activities.Archive(ctx, id)
}

// Share publishes the plan under a share token, minting one on first call.
// Sharing is idempotent: the existing token is returned unchanged.
func (uc *UseCase) Share(ctx context.Context, userID, id string) (string, error) {
	activity, err := uc.activities.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if !activity.IsOwnedBy(userID) {
		return "", domain.ErrForbidden
	}
	if activity.IsShareable() {
		return activity.ShareToken, nil
	}

	token := uuid.NewString()
	if err := uc.activities.SetShareToken(ctx, id, token); err != nil {
		return "", err
	}
	return token, nil
}

// GetShared resolves a public plan by share token and records the view.
func (uc *UseCase) GetShared(ctx context.Context, token string) (*domain.Activity, []domain.Task, error) {
	activity, err := uc.activities.FindByShareToken(ctx, token)
	if err != nil {
		return nil, nil, err
	}

	tasks, err := uc.tasks.ListByActivity(ctx, activity.ID)
	if err != nil {
		return nil, nil, err
	}

	uc.recordView(ctx, activity.ID)
	return activity, tasks, nil
}

func (uc *UseCase) recordView(ctx context.Context, activityID string) {
	var err error
	if uc.counters != nil {
		err = uc.counters.IncrementView(ctx, activityID)
	} else {
		err = uc.activities.IncrementViewCount(ctx, activityID)
	}
	if err != nil {
		uc.logger.Warn("view counter increment failed",
			zap.String("activity_id", activityID),
			zap.Error(err))
	}
}
