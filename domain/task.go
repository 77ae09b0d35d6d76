package domain

import "time"

// Task is an actionable item belonging to exactly one activity.
// OriginalTaskID is a weak back-reference to the task this one was copied
// from; it is a lineage hint for re-copy reconciliation, never an ownership
// edge, and carries no referential-integrity guarantee.
type Task struct {
	ID             string     `json:"id"`
	ActivityID     string     `json:"activity_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Category       string     `json:"category,omitempty"`
	Completed      bool       `json:"completed"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	OriginalTaskID string     `json:"original_task_id,omitempty"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	Position       int        `json:"position"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (t *Task) HasLineage() bool {
	return t != nil && t.OriginalTaskID != ""
}
