package plancopy

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/planloop/backend/domain"
	"github.com/planloop/backend/pkg/fingerprint"
	"github.com/planloop/backend/repository"
	"github.com/planloop/backend/usecase"
)

// CopyResult is the outcome of a copy request.
//
// RequiresConfirmation is the two-phase-confirmation signal: the target user
// already owns a copy of this plan and must retry with force=true before any
// progress is overwritten. It is a deliberate result, not a failure.
type CopyResult struct {
	Activity             *domain.Activity `json:"activity,omitempty"`
	Tasks                []domain.Task    `json:"tasks,omitempty"`
	IsUpdate             bool             `json:"is_update"`
	PreservedProgress    int              `json:"preserved_progress,omitempty"`
	RequiresConfirmation bool             `json:"requires_confirmation,omitempty"`
	ExistingActivityID   string           `json:"existing_activity_id,omitempty"`
	ExistingTitle        string           `json:"existing_title,omitempty"`
}

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

// Copy resolves shareToken and copies the plan into targetUserID's account.
//
// Without force, an existing copy (same owner, same content hash) short-
// circuits into RequiresConfirmation. With force, the existing copy is
// replaced: completion state is reconciled onto the fresh task set and the
// old activity is archived in the same transaction as the new insert.
func (uc *UseCase) Copy(ctx context.Context, shareToken, targetUserID string, force bool) (*CopyResult, error) {
	if shareToken == "" || targetUserID == "" {
		return nil, domain.ErrInvalidPayload
	}

	source, err := uc.activities.FindByShareToken(ctx, shareToken)
	if err != nil {
		return nil, err
	}

	sourceTasks, err := uc.tasks.ListByActivity(ctx, source.ID)
	if err != nil {
		return nil, err
	}

	titles := make([]string, 0, len(sourceTasks))
	for _, t := range sourceTasks {
		titles = append(titles, t.Title)
	}
	contentHash := fingerprint.Compute(source.Title, source.Description, titles)

	existing, err := uc.activities.FindByOwnerAndContentHash(ctx, targetUserID, contentHash)
	if err != nil && !domain.IsDomainError(err, domain.ErrCodeNotFound) {
		return nil, err
	}

	if existing != nil && !force {
		return duplicateResult(existing), nil
	}

	copyActivity := &domain.Activity{
		UserID:               targetUserID,
		Title:                source.Title,
		Description:          source.Description,
		Category:             source.Category,
		Status:               domain.ActivityStatusPlanning,
		ContentHash:          contentHash,
		CopiedFromShareToken: shareToken,
	}

	if existing == nil {
		seeds := seedsFromSource(sourceTasks)
		created, tasks, err := uc.activities.Create(ctx, copyActivity, seeds)
		if err != nil {
			if domain.IsDomainError(err, domain.ErrCodeConflict) {
				// Lost a race with a concurrent copy of the same plan.
				// Equivalent to finding the duplicate up front.
				return uc.duplicateAfterConflict(ctx, targetUserID, contentHash), nil
			}
			return nil, err
		}
		uc.recordAdoption(ctx, source.ID)
		return &CopyResult{Activity: created, Tasks: tasks}, nil
	}

	// Forced update: reconcile completion state from the old copy.
	oldTasks, err := uc.tasks.ListByActivity(ctx, existing.ID)
	if err != nil {
		return nil, err
	}

	seeds := seedsFromSource(sourceTasks)
	preserved := reconcileCompletion(seeds, sourceTasks, oldTasks)

	created, tasks, err := uc.activities.CreateAndArchive(ctx, copyActivity, seeds, existing.ID)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrCodeConflict) {
			return uc.duplicateAfterConflict(ctx, targetUserID, contentHash), nil
		}
		return nil, err
	}

	uc.recordAdoption(ctx, source.ID)
	return &CopyResult{
		Activity:          created,
		Tasks:             tasks,
		IsUpdate:          true,
		PreservedProgress: preserved,
	}, nil
}

func seedsFromSource(sourceTasks []domain.Task) []domain.TaskSeed {
	seeds := make([]domain.TaskSeed, 0, len(sourceTasks))
	for _, src := range sourceTasks {
		seeds = append(seeds, domain.TaskSeed{
			Title:       src.Title,
			Description: src.Description,
			Category:    src.Category,
			DueDate:     src.DueDate,
			// Lineage for any future re-copy of the same plan.
			OriginalTaskID: src.ID,
		})
	}
	return seeds
}

// reconcileCompletion carries completed/completedAt from the old copy onto
// the new seeds. Lineage ids are matched first; normalized titles are the
// fallback because source plans may be regenerated with fresh task ids while
// titles stay stable. A renamed task intentionally loses its progress.
func reconcileCompletion(seeds []domain.TaskSeed, sourceTasks, oldTasks []domain.Task) int {
	byLineage := make(map[string]domain.Task, len(oldTasks))
	byTitle := make(map[string]domain.Task, len(oldTasks))
	for _, old := range oldTasks {
		if old.OriginalTaskID != "" {
			byLineage[old.OriginalTaskID] = old
		}
		byTitle[normalizeTitle(old.Title)] = old
	}

	preserved := 0
	for i := range seeds {
		src := sourceTasks[i]
		old, ok := byLineage[src.ID]
		if !ok {
			old, ok = byTitle[normalizeTitle(src.Title)]
		}
		if !ok || !old.Completed {
			continue
		}
		seeds[i].Completed = true
		seeds[i].CompletedAt = old.CompletedAt
		preserved++
	}
	return preserved
}

func normalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

func duplicateResult(existing *domain.Activity) *CopyResult {
	return &CopyResult{
		RequiresConfirmation: true,
		ExistingActivityID:   existing.ID,
		ExistingTitle:        existing.Title,
	}
}

// duplicateAfterConflict reloads the winning copy so the confirmation prompt
// can name it. The reload is best-effort: the conflict signal alone is enough
// for the caller to retry with force.
func (uc *UseCase) duplicateAfterConflict(ctx context.Context, targetUserID, contentHash string) *CopyResult {
	result := &CopyResult{RequiresConfirmation: true}
	existing, err := uc.activities.FindByOwnerAndContentHash(ctx, targetUserID, contentHash)
	if err != nil {
		uc.logger.Warn("duplicate copy lookup after conflict failed", zap.Error(err))
		return result
	}
	result.ExistingActivityID = existing.ID
	result.ExistingTitle = existing.Title
	return result
}

// recordAdoption bumps the source plan's adoption counter. Failures are
// swallowed: counters never fail a copy.
func (uc *UseCase) recordAdoption(ctx context.Context, sourceActivityID string) {
	var err error
	if uc.counters != nil {
		err = uc.counters.IncrementAdoption(ctx, sourceActivityID)
	} else {
		err = uc.activities.IncrementAdoptionCount(ctx, sourceActivityID)
	}
	if err != nil {
		uc.logger.Warn("adoption counter increment failed",
			zap.String("activity_id", sourceActivityID),
			zap.Error(err))
	}
}
