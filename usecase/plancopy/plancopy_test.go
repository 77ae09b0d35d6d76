package plancopy

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/planloop/backend/domain"
	"github.com/planloop/backend/pkg/fingerprint"
	"github.com/planloop/backend/repository"
)

// In-memory stores mimicking the Postgres behavior the reconciler depends
// on, including the (owner, content_hash) uniqueness guard on create.

type fakeStore struct {
	activities map[string]*domain.Activity
	tasks      map[string][]domain.Task
	adoptions  map[string]int
	views      map[string]int

	createErr  error
	adoptErr   error
	listErrFor string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		activities: make(map[string]*domain.Activity),
		tasks:      make(map[string][]domain.Task),
		adoptions:  make(map[string]int),
		views:      make(map[string]int),
	}
}

func (s *fakeStore) GetByID(_ context.Context, id string) (*domain.Activity, error) {
	if a, ok := s.activities[id]; ok {
		copied := *a
		return &copied, nil
	}
	return nil, domain.ErrActivityNotFound
}

func (s *fakeStore) FindByShareToken(_ context.Context, token string) (*domain.Activity, error) {
	for _, a := range s.activities {
		if a.ShareToken == token {
			copied := *a
			return &copied, nil
		}
	}
	return nil, domain.ErrShareTokenNotFound
}

func (s *fakeStore) FindByOwnerAndContentHash(_ context.Context, userID, hash string) (*domain.Activity, error) {
	for _, a := range s.activities {
		if a.UserID == userID && a.ContentHash == hash && !a.IsArchived {
			copied := *a
			return &copied, nil
		}
	}
	return nil, domain.ErrActivityNotFound
}

func (s *fakeStore) List(_ context.Context, filter repository.ActivityFilter) ([]domain.Activity, error) {
	var out []domain.Activity
	for _, a := range s.activities {
		if filter.UserID != "" && a.UserID != filter.UserID {
			continue
		}
		if a.IsArchived != filter.Archived {
			continue
		}
		out = append(out, *a)
	}
	return out, nil
}

func (s *fakeStore) Create(ctx context.Context, activity *domain.Activity, seeds []domain.TaskSeed) (*domain.Activity, []domain.Task, error) {
	return s.CreateAndArchive(ctx, activity, seeds, "")
}

func (s *fakeStore) CreateAndArchive(_ context.Context, activity *domain.Activity, seeds []domain.TaskSeed, archiveID string) (*domain.Activity, []domain.Task, error) {
	if s.createErr != nil {
		return nil, nil, s.createErr
	}

	// The archive update runs before the insert, exactly as the real
	// transaction does. The superseded row must have left the live set
	// before the uniqueness guard is checked.
	if archiveID != "" {
		old, ok := s.activities[archiveID]
		if !ok {
			return nil, nil, domain.ErrActivityNotFound
		}
		old.IsArchived = true
	}

	// Insert-time uniqueness guard on (owner, content hash) over live
	// rows, with no exemptions. A failure rolls the archive back the
	// way an aborted transaction would.
	for _, a := range s.activities {
		if a.UserID == activity.UserID && a.ContentHash == activity.ContentHash && !a.IsArchived {
			if archiveID != "" {
				s.activities[archiveID].IsArchived = false
			}
			return nil, nil, domain.ErrDuplicateActivity
		}
	}

	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	activity.CreatedAt = time.Now()
	activity.UpdatedAt = activity.CreatedAt
	stored := *activity
	s.activities[activity.ID] = &stored

	tasks := make([]domain.Task, 0, len(seeds))
	for pos, seed := range seeds {
		task := domain.Task{
			ID:             fmt.Sprintf("%s-task-%d", activity.ID, pos),
			ActivityID:     activity.ID,
			Title:          seed.Title,
			Description:    seed.Description,
			Category:       seed.Category,
			Completed:      seed.Completed,
			CompletedAt:    seed.CompletedAt,
			OriginalTaskID: seed.OriginalTaskID,
			DueDate:        seed.DueDate,
			Position:       pos,
		}
		tasks = append(tasks, task)
	}
	s.tasks[activity.ID] = tasks

	return activity, tasks, nil
}

func (s *fakeStore) Archive(_ context.Context, id string) error {
	a, ok := s.activities[id]
	if !ok {
		return domain.ErrActivityNotFound
	}
	a.IsArchived = true
	return nil
}

func (s *fakeStore) SetShareToken(_ context.Context, id, token string) error {
	a, ok := s.activities[id]
	if !ok {
		return domain.ErrActivityNotFound
	}
	a.ShareToken = token
	return nil
}

func (s *fakeStore) IncrementViewCount(_ context.Context, id string) error {
	s.views[id]++
	return nil
}

func (s *fakeStore) IncrementAdoptionCount(_ context.Context, id string) error {
	if s.adoptErr != nil {
		return s.adoptErr
	}
	s.adoptions[id]++
	return nil
}

// task repository view over the same fake state

type fakeTasks struct {
	store *fakeStore
}

func (f *fakeTasks) GetByID(_ context.Context, id string) (*domain.Task, error) {
	for _, tasks := range f.store.tasks {
		for _, t := range tasks {
			if t.ID == id {
				copied := t
				return &copied, nil
			}
		}
	}
	return nil, domain.ErrTaskNotFound
}

func (f *fakeTasks) ListByActivity(_ context.Context, activityID string) ([]domain.Task, error) {
	if f.store.listErrFor == activityID {
		return nil, domain.WrapError(domain.ErrCodeInternal, "list failed", nil)
	}
	out := make([]domain.Task, len(f.store.tasks[activityID]))
	copy(out, f.store.tasks[activityID])
	return out, nil
}

func (f *fakeTasks) CreateMany(_ context.Context, activityID string, seeds []domain.TaskSeed) ([]domain.Task, error) {
	panic("not used by the reconciler")
}

func (f *fakeTasks) FindByOriginalTaskID(_ context.Context, activityID, originalTaskID string) (*domain.Task, error) {
	for _, t := range f.store.tasks[activityID] {
		if t.OriginalTaskID == originalTaskID && originalTaskID != "" {
			copied := t
			return &copied, nil
		}
	}
	return nil, domain.ErrTaskNotFound
}

func (f *fakeTasks) SetCompleted(_ context.Context, id string, completed bool) (*domain.Task, error) {
	for activityID, tasks := range f.store.tasks {
		for i, t := range tasks {
			if t.ID != id {
				continue
			}
			tasks[i].Completed = completed
			if completed && tasks[i].CompletedAt == nil {
				now := time.Now()
				tasks[i].CompletedAt = &now
			}
			if !completed {
				tasks[i].CompletedAt = nil
			}
			f.store.tasks[activityID] = tasks
			copied := tasks[i]
			return &copied, nil
		}
	}
	return nil, domain.ErrTaskNotFound
}

func seedSource(store *fakeStore, token string, taskTitles ...string) *domain.Activity {
	titles := make([]string, len(taskTitles))
	copy(titles, taskTitles)

	source := &domain.Activity{
		ID:          "src-" + token,
		Title:       "Trip to Lisbon",
		Description: "Week-long trip",
		Category:    "travel",
		Status:      domain.ActivityStatusActive,
		ShareToken:  token,
		ContentHash: fingerprint.Compute("Trip to Lisbon", "Week-long trip", titles),
	}
	store.activities[source.ID] = source

	tasks := make([]domain.Task, 0, len(taskTitles))
	for i, title := range taskTitles {
		tasks = append(tasks, domain.Task{
			ID:         fmt.Sprintf("src-%s-t%d", token, i),
			ActivityID: source.ID,
			Title:      title,
			Position:   i,
		})
	}
	store.tasks[source.ID] = tasks
	return source
}

func newCopyUseCase(store *fakeStore) *UseCase {
	return New(store, &fakeTasks{store: store}, nil, zap.NewNop())
}

func TestCopyCreatesNewCopy(t *testing.T) {
	store := newFakeStore()
	source := seedSource(store, "tok1", "Pack bags", "Book flight", "Buy tickets")
	uc := newCopyUseCase(store)

	result, err := uc.Copy(context.Background(), "tok1", "user-1", false)
	if err != nil {
		t.Fatalf("Copy: %v", err)
	}
	if result.IsUpdate {
		t.Error("first copy reported IsUpdate")
	}
	if result.RequiresConfirmation {
		t.Error("first copy reported RequiresConfirmation")
	}
	if result.Activity == nil || result.Activity.UserID != "user-1" {
		t.Fatalf("copy not owned by target user: %+v", result.Activity)
	}
	if result.Activity.CopiedFromShareToken != "tok1" {
		t.Errorf("CopiedFromShareToken = %q, want tok1", result.Activity.CopiedFromShareToken)
	}
	if len(result.Tasks) != 3 {
		t.Fatalf("copied %d tasks, want 3", len(result.Tasks))
	}
	for i, task := range result.Tasks {
		want := store.tasks[source.ID][i].ID
		if task.OriginalTaskID != want {
			t.Errorf("task %d lineage = %q, want %q", i, task.OriginalTaskID, want)
		}
		if task.Completed {
			t.Errorf("fresh copy task %d is completed", i)
		}
	}
	if store.adoptions[source.ID] != 1 {
		t.Errorf("adoption count = %d, want 1", store.adoptions[source.ID])
	}
}

func TestCopyUnknownTokenNotFound(t *testing.T) {
	uc := newCopyUseCase(newFakeStore())

	_, err := uc.Copy(context.Background(), "missing", "user-1", false)
	if !domain.IsDomainError(err, domain.ErrCodeNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestCopyDuplicateWithoutForce(t *testing.T) {
	store := newFakeStore()
	seedSource(store, "tok1", "Pack bags", "Book flight")
	uc := newCopyUseCase(store)

	first, err := uc.Copy(context.Background(), "tok1", "user-1", false)
	if err != nil {
		t.Fatalf("first Copy: %v", err)
	}

	for i := 0; i < 2; i++ {
		result, err := uc.Copy(context.Background(), "tok1", "user-1", false)
		if err != nil {
			t.Fatalf("repeat Copy: %v", err)
		}
		if !result.RequiresConfirmation {
			t.Fatal("duplicate copy did not require confirmation")
		}
		if result.ExistingActivityID != first.Activity.ID {
			t.Errorf("existing id = %q, want %q", result.ExistingActivityID, first.Activity.ID)
		}
		if result.ExistingTitle != "Trip to Lisbon" {
			t.Errorf("existing title = %q", result.ExistingTitle)
		}
	}

	owned, _ := store.List(context.Background(), repository.ActivityFilter{UserID: "user-1"})
	if len(owned) != 1 {
		t.Fatalf("user owns %d activities, want 1", len(owned))
	}
}

func TestCopyForcePreservesCompletion(t *testing.T) {
	store := newFakeStore()
	source := seedSource(store, "tok1", "Pack bags", "Book flight", "Buy tickets")
	uc := newCopyUseCase(store)
	tasks := &fakeTasks{store: store}

	first, err := uc.Copy(context.Background(), "tok1", "user-1", false)
	if err != nil {
		t.Fatalf("first Copy: %v", err)
	}
	// Complete "Pack bags" and "Buy tickets".
	if _, err := tasks.SetCompleted(context.Background(), first.Tasks[0].ID, true); err != nil {
		t.Fatalf("SetCompleted: %v", err)
	}
	if _, err := tasks.SetCompleted(context.Background(), first.Tasks[2].ID, true); err != nil {
		t.Fatalf("SetCompleted: %v", err)
	}

	result, err := uc.Copy(context.Background(), "tok1", "user-1", true)
	if err != nil {
		t.Fatalf("forced Copy: %v", err)
	}
	// The live old copy occupies the same (owner, content hash) slot; the
	// forced update must still go through, not bounce back as a duplicate.
	if result.RequiresConfirmation {
		t.Fatal("forced update bounced back as requiring confirmation")
	}
	if !result.IsUpdate {
		t.Error("forced copy did not report IsUpdate")
	}
	if result.PreservedProgress != 2 {
		t.Errorf("PreservedProgress = %d, want 2", result.PreservedProgress)
	}
	if result.Activity.ID == first.Activity.ID {
		t.Error("forced copy reused the old activity id")
	}

	byTitle := map[string]domain.Task{}
	for _, task := range result.Tasks {
		byTitle[task.Title] = task
	}
	if !byTitle["Pack bags"].Completed || byTitle["Pack bags"].CompletedAt == nil {
		t.Error("Pack bags lost completion")
	}
	if !byTitle["Buy tickets"].Completed {
		t.Error("Buy tickets lost completion")
	}
	if byTitle["Book flight"].Completed {
		t.Error("Book flight gained completion it never had")
	}

	// Old copy is archived, not deleted, tasks intact with original state.
	old := store.activities[first.Activity.ID]
	if old == nil || !old.IsArchived {
		t.Fatal("old copy was not archived")
	}
	oldTasks, _ := tasks.ListByActivity(context.Background(), first.Activity.ID)
	if len(oldTasks) != 3 {
		t.Fatalf("old copy has %d tasks, want 3", len(oldTasks))
	}
	if !oldTasks[0].Completed || oldTasks[1].Completed || !oldTasks[2].Completed {
		t.Error("old copy completion state changed")
	}

	if store.adoptions[source.ID] != 2 {
		t.Errorf("adoption count = %d, want 2", store.adoptions[source.ID])
	}
}

func TestCopyForceMatchesByLineageWhenTitlesRegenerated(t *testing.T) {
	store := newFakeStore()
	seedSource(store, "tok1", "Pack bags", "Book flight")
	uc := newCopyUseCase(store)
	tasks := &fakeTasks{store: store}

	first, err := uc.Copy(context.Background(), "tok1", "user-1", false)
	if err != nil {
		t.Fatalf("first Copy: %v", err)
	}
	if _, err := tasks.SetCompleted(context.Background(), first.Tasks[1].ID, true); err != nil {
		t.Fatalf("SetCompleted: %v", err)
	}

	// Old tasks keep lineage to the source ids even if their titles were
	// edited locally; lineage matching must win over titles.
	store.tasks[first.Activity.ID][1].Title = "Book flight (renamed locally)"

	result, err := uc.Copy(context.Background(), "tok1", "user-1", true)
	if err != nil {
		t.Fatalf("forced Copy: %v", err)
	}
	if result.PreservedProgress != 1 {
		t.Fatalf("PreservedProgress = %d, want 1", result.PreservedProgress)
	}
	if !result.Tasks[1].Completed {
		t.Error("lineage-matched task lost completion")
	}
}

func TestCopyForceConflictMapsToDuplicate(t *testing.T) {
	store := newFakeStore()
	seedSource(store, "tok1", "Pack bags")
	uc := newCopyUseCase(store)

	if _, err := uc.Copy(context.Background(), "tok1", "user-1", false); err != nil {
		t.Fatalf("first Copy: %v", err)
	}

	// A concurrent copier wins the insert race: the uniqueness guard
	// rejects ours even though the duplicate lookup saw nothing.
	store.createErr = domain.ErrDuplicateActivity
	result, err := uc.Copy(context.Background(), "tok1", "user-2", false)
	if err != nil {
		t.Fatalf("racing Copy returned error: %v", err)
	}
	if !result.RequiresConfirmation {
		t.Fatal("conflict was not mapped to requires-confirmation")
	}
}

func TestCopyStorePassthroughErrors(t *testing.T) {
	store := newFakeStore()
	source := seedSource(store, "tok1", "Pack bags")
	store.listErrFor = source.ID
	uc := newCopyUseCase(store)

	_, err := uc.Copy(context.Background(), "tok1", "user-1", false)
	if !domain.IsDomainError(err, domain.ErrCodeInternal) {
		t.Fatalf("expected internal error passthrough, got %v", err)
	}
}

func TestCopyAdoptionFailureDoesNotFailCopy(t *testing.T) {
	store := newFakeStore()
	seedSource(store, "tok1", "Pack bags")
	store.adoptErr = domain.WrapError(domain.ErrCodeInternal, "counter down", nil)
	uc := newCopyUseCase(store)

	result, err := uc.Copy(context.Background(), "tok1", "user-1", false)
	if err != nil {
		t.Fatalf("Copy failed because of counter: %v", err)
	}
	if result.Activity == nil {
		t.Fatal("copy missing activity")
	}
}

func TestCopyEmptyInputsRejected(t *testing.T) {
	uc := newCopyUseCase(newFakeStore())

	if _, err := uc.Copy(context.Background(), "", "user-1", false); !domain.IsDomainError(err, domain.ErrCodeInvalid) {
		t.Errorf("empty token: got %v", err)
	}
	if _, err := uc.Copy(context.Background(), "tok1", "", false); !domain.IsDomainError(err, domain.ErrCodeInvalid) {
		t.Errorf("empty user: got %v", err)
	}
}

func TestReconcileCompletionTitleFallback(t *testing.T) {
	now := time.Now()
	sourceTasks := []domain.Task{
		{ID: "new-1", Title: "Pack bags"},
		{ID: "new-2", Title: "Book flights"}, // renamed from "Book flight"
		{ID: "new-3", Title: "  buy TICKETS  "},
	}
	seeds := seedsFromSource(sourceTasks)
	oldTasks := []domain.Task{
		{ID: "old-1", Title: "Pack bags", Completed: true, CompletedAt: &now},
		{ID: "old-2", Title: "Book flight", Completed: true, CompletedAt: &now},
		{ID: "old-3", Title: "Buy tickets", Completed: true, CompletedAt: &now},
	}

	preserved := reconcileCompletion(seeds, sourceTasks, oldTasks)

	if preserved != 2 {
		t.Fatalf("preserved = %d, want 2", preserved)
	}
	if !seeds[0].Completed {
		t.Error("exact title match lost completion")
	}
	if seeds[1].Completed {
		t.Error("renamed task must not inherit completion")
	}
	if !seeds[2].Completed {
		t.Error("case/whitespace-normalized title match lost completion")
	}
	if seeds[0].CompletedAt == nil || !seeds[0].CompletedAt.Equal(now) {
		t.Error("completion timestamp not carried over")
	}
}

func TestReconcileCompletionIgnoresIncompleteOldTasks(t *testing.T) {
	sourceTasks := []domain.Task{{ID: "new-1", Title: "Pack bags"}}
	seeds := seedsFromSource(sourceTasks)
	oldTasks := []domain.Task{{ID: "old-1", Title: "Pack bags", Completed: false}}

	if preserved := reconcileCompletion(seeds, sourceTasks, oldTasks); preserved != 0 {
		t.Fatalf("preserved = %d, want 0", preserved)
	}
	if seeds[0].Completed {
		t.Error("incomplete old task marked the new one completed")
	}
}

// Full walkthrough of the copy → progress → forced re-copy flow.
func TestCopyEndToEndScenario(t *testing.T) {
	store := newFakeStore()
	seedSource(store, "tok1", "Pack bags", "Book flight", "Buy tickets")
	uc := newCopyUseCase(store)
	tasks := &fakeTasks{store: store}
	ctx := context.Background()

	first, err := uc.Copy(ctx, "tok1", "user-1", false)
	if err != nil {
		t.Fatalf("copy: %v", err)
	}
	if first.IsUpdate || len(first.Tasks) != 3 {
		t.Fatalf("unexpected first copy: isUpdate=%v tasks=%d", first.IsUpdate, len(first.Tasks))
	}

	for _, task := range first.Tasks {
		if task.Title == "Pack bags" || task.Title == "Buy tickets" {
			if _, err := tasks.SetCompleted(ctx, task.ID, true); err != nil {
				t.Fatalf("SetCompleted: %v", err)
			}
		}
	}

	second, err := uc.Copy(ctx, "tok1", "user-1", true)
	if err != nil {
		t.Fatalf("forced copy: %v", err)
	}
	if second.RequiresConfirmation {
		t.Fatal("forced copy bounced back as requiring confirmation")
	}
	if !second.IsUpdate || second.PreservedProgress != 2 {
		t.Fatalf("unexpected forced copy: isUpdate=%v preserved=%d", second.IsUpdate, second.PreservedProgress)
	}

	completed := map[string]bool{}
	for _, task := range second.Tasks {
		completed[task.Title] = task.Completed
	}
	if !completed["Pack bags"] || !completed["Buy tickets"] || completed["Book flight"] {
		t.Errorf("completion state wrong after reconcile: %+v", completed)
	}

	archived, _ := store.List(ctx, repository.ActivityFilter{UserID: "user-1", Archived: true})
	if len(archived) != 1 || archived[0].ID != first.Activity.ID {
		t.Fatalf("old copy not in archive view: %+v", archived)
	}
}
