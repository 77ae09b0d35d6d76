package usecase

import "context"

// CounterSink abstracts fire-and-forget counter delivery so use cases stay
// decoupled from how increments reach the database. Implementations must
// never block the calling operation on datastore health.
type CounterSink interface {
	IncrementView(ctx context.Context, activityID string) error
	IncrementAdoption(ctx context.Context, activityID string) error
}

// CompletionBuffer absorbs task-completion writes that failed against
// primary storage so they can be replayed once it recovers.
type CompletionBuffer interface {
	BufferCompletion(ctx context.Context, taskID string, completed bool) error
}
