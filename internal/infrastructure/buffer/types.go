package buffer

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EntityCounter    = "counter"
	EntityCompletion = "completion"

	OperationIncrementView     = "increment_view"
	OperationIncrementAdoption = "increment_adoption"
	OperationSetCompleted      = "set_completed"
)

// Item is a deferred write: either a fire-and-forget counter increment or a
// task-completion update that could not reach Postgres immediately.
type Item struct {
	ID        string          `json:"id"`
	Entity    string          `json:"entity"`
	Operation string          `json:"operation"`
	Data      json.RawMessage `json:"data"`
	Priority  int             `json:"priority"`
	Retries   int             `json:"retries"`
	Timestamp time.Time       `json:"timestamp"`

	bucketKey []byte
}

// CounterPayload targets an activity counter column.
type CounterPayload struct {
	ActivityID string `json:"activity_id"`
}

// CompletionPayload replays a task completion toggle.
type CompletionPayload struct {
	TaskID    string `json:"task_id"`
	Completed bool   `json:"completed"`
}

func (i *Item) normalize() {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.Priority <= 0 || i.Priority > 5 {
		i.Priority = 3
	}
	if i.Timestamp.IsZero() {
		i.Timestamp = time.Now()
	}
}
