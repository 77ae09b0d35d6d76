package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/planloop/backend/domain"
	"github.com/planloop/backend/internal/infrastructure/buffer"
	"github.com/planloop/backend/repository"
)

type stubActivities struct {
	views     map[string]int
	adoptions map[string]int
	incErr    error
}

func newStubActivities() *stubActivities {
	return &stubActivities{views: map[string]int{}, adoptions: map[string]int{}}
}

func (s *stubActivities) GetByID(ctx context.Context, id string) (*domain.Activity, error) {
	return nil, domain.ErrActivityNotFound
}

func (s *stubActivities) FindByShareToken(ctx context.Context, token string) (*domain.Activity, error) {
	return nil, domain.ErrShareTokenNotFound
}

func (s *stubActivities) FindByOwnerAndContentHash(ctx context.Context, userID, hash string) (*domain.Activity, error) {
	return nil, domain.ErrActivityNotFound
}

func (s *stubActivities) List(ctx context.Context, filter repository.ActivityFilter) ([]domain.Activity, error) {
	return nil, nil
}

func (s *stubActivities) Create(ctx context.Context, activity *domain.Activity, seeds []domain.TaskSeed) (*domain.Activity, []domain.Task, error) {
	return nil, nil, errors.New("unexpected Create call")
}

func (s *stubActivities) CreateAndArchive(ctx context.Context, activity *domain.Activity, seeds []domain.TaskSeed, archiveID string) (*domain.Activity, []domain.Task, error) {
	return nil, nil, errors.New("unexpected CreateAndArchive call")
}

func (s *stubActivities) Archive(ctx context.Context, id string) error { return nil }

func (s *stubActivities) SetShareToken(ctx context.Context, id, token string) error { return nil }

func (s *stubActivities) IncrementViewCount(ctx context.Context, id string) error {
	if s.incErr != nil {
		return s.incErr
	}
	s.views[id]++
	return nil
}

func (s *stubActivities) IncrementAdoptionCount(ctx context.Context, id string) error {
	if s.incErr != nil {
		return s.incErr
	}
	s.adoptions[id]++
	return nil
}

type stubTasks struct {
	completions map[string]bool
}

func newStubTasks() *stubTasks {
	return &stubTasks{completions: map[string]bool{}}
}

func (s *stubTasks) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	return nil, domain.ErrTaskNotFound
}

func (s *stubTasks) ListByActivity(ctx context.Context, activityID string) ([]domain.Task, error) {
	return nil, nil
}

func (s *stubTasks) CreateMany(ctx context.Context, activityID string, seeds []domain.TaskSeed) ([]domain.Task, error) {
	return nil, errors.New("unexpected CreateMany call")
}

func (s *stubTasks) FindByOriginalTaskID(ctx context.Context, activityID, originalTaskID string) (*domain.Task, error) {
	return nil, domain.ErrTaskNotFound
}

func (s *stubTasks) SetCompleted(ctx context.Context, id string, completed bool) (*domain.Task, error) {
	s.completions[id] = completed
	return &domain.Task{ID: id, Completed: completed}, nil
}

type stubMonitor struct {
	online bool
}

func (m *stubMonitor) IsOnline() bool { return m.online }

func newTestStore(t *testing.T) *buffer.Store {
	t.Helper()
	store, err := buffer.Open(filepath.Join(t.TempDir(), "deferred.db"), "deferred")
	if err != nil {
		t.Fatalf("buffer.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestDeferredPipelineDeliversCounters(t *testing.T) {
	store := newTestStore(t)
	activities := newStubActivities()
	tasks := newStubTasks()
	dp := NewDeferredProcessor(store, &stubMonitor{online: true}, activities, tasks, nil, ProcessorConfig{})
	bridge := NewDeferredBridge(dp)
	ctx := context.Background()

	if err := bridge.IncrementView(ctx, "act-1"); err != nil {
		t.Fatalf("IncrementView: %v", err)
	}
	if err := bridge.IncrementAdoption(ctx, "act-1"); err != nil {
		t.Fatalf("IncrementAdoption: %v", err)
	}
	if dp.Size() != 2 {
		t.Fatalf("buffered size = %d, want 2", dp.Size())
	}

	if err := dp.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if activities.views["act-1"] != 1 || activities.adoptions["act-1"] != 1 {
		t.Errorf("counters = views %d, adoptions %d", activities.views["act-1"], activities.adoptions["act-1"])
	}
	if dp.Size() != 0 {
		t.Errorf("buffer not drained, size = %d", dp.Size())
	}
}

func TestDeferredPipelineReplaysCompletions(t *testing.T) {
	store := newTestStore(t)
	activities := newStubActivities()
	tasks := newStubTasks()
	dp := NewDeferredProcessor(store, &stubMonitor{online: true}, activities, tasks, nil, ProcessorConfig{})
	bridge := NewDeferredBridge(dp)
	ctx := context.Background()

	if err := bridge.BufferCompletion(ctx, "task-1", true); err != nil {
		t.Fatalf("BufferCompletion: %v", err)
	}
	if err := dp.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	completed, ok := tasks.completions["task-1"]
	if !ok || !completed {
		t.Errorf("completion not replayed: %+v", tasks.completions)
	}
}

func TestDrainSkipsWhenOffline(t *testing.T) {
	store := newTestStore(t)
	activities := newStubActivities()
	monitor := &stubMonitor{online: false}
	dp := NewDeferredProcessor(store, monitor, activities, newStubTasks(), nil, ProcessorConfig{})
	bridge := NewDeferredBridge(dp)
	ctx := context.Background()

	if err := bridge.IncrementView(ctx, "act-1"); err != nil {
		t.Fatalf("IncrementView: %v", err)
	}
	if err := dp.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if dp.Size() != 1 {
		t.Fatalf("offline drain consumed the buffer, size = %d", dp.Size())
	}
	if len(activities.views) != 0 {
		t.Error("offline drain reached the repository")
	}

	monitor.online = true
	if err := dp.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if activities.views["act-1"] != 1 {
		t.Errorf("views = %d after reconnect, want 1", activities.views["act-1"])
	}
}

func TestDrainDropsAfterMaxRetries(t *testing.T) {
	store := newTestStore(t)
	activities := newStubActivities()
	activities.incErr = errors.New("postgres down")
	dp := NewDeferredProcessor(store, &stubMonitor{online: true}, activities, newStubTasks(), nil, ProcessorConfig{MaxRetries: 2})
	bridge := NewDeferredBridge(dp)
	ctx := context.Background()

	if err := bridge.IncrementView(ctx, "act-1"); err != nil {
		t.Fatalf("IncrementView: %v", err)
	}

	if err := dp.Drain(ctx); err != nil {
		t.Fatalf("first Drain: %v", err)
	}
	if dp.Size() != 1 {
		t.Fatalf("failed item not requeued, size = %d", dp.Size())
	}

	if err := dp.Drain(ctx); err != nil {
		t.Fatalf("second Drain: %v", err)
	}
	if dp.Size() != 0 {
		t.Fatalf("item not dropped at max retries, size = %d", dp.Size())
	}
}

func TestBridgeRejectsEmptyIdentifiers(t *testing.T) {
	store := newTestStore(t)
	dp := NewDeferredProcessor(store, &stubMonitor{online: true}, newStubActivities(), newStubTasks(), nil, ProcessorConfig{})
	bridge := NewDeferredBridge(dp)
	ctx := context.Background()

	if err := bridge.IncrementView(ctx, ""); err != domain.ErrInvalidPayload {
		t.Errorf("empty activity id: %v", err)
	}
	if err := bridge.BufferCompletion(ctx, "", true); err != domain.ErrInvalidPayload {
		t.Errorf("empty task id: %v", err)
	}
}
