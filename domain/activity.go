package domain

import "time"

// Activity lifecycle statuses.
const (
	ActivityStatusPlanning  = "planning"
	ActivityStatusActive    = "active"
	ActivityStatusCompleted = "completed"
	ActivityStatusCancelled = "cancelled"
)

// Activity represents a plan: a goal with an ordered list of tasks.
// UserID is empty for community-seeded content.
type Activity struct {
	ID                   string     `json:"id"`
	UserID               string     `json:"user_id,omitempty"`
	Title                string     `json:"title"`
	Description          string     `json:"description,omitempty"`
	Category             string     `json:"category,omitempty"`
	Status               string     `json:"status"`
	ShareToken           string     `json:"share_token,omitempty"`
	ContentHash          string     `json:"content_hash,omitempty"`
	CopiedFromShareToken string     `json:"copied_from_share_token,omitempty"`
	IsArchived           bool       `json:"is_archived"`
	ViewCount            int        `json:"view_count"`
	AdoptionCount        int        `json:"adoption_count"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
}

func (a *Activity) IsShareable() bool {
	return a != nil && a.ShareToken != ""
}

func (a *Activity) IsOwnedBy(userID string) bool {
	return a != nil && userID != "" && a.UserID == userID
}

// TaskSeed carries the caller-controlled fields for a task created as part
// of an activity. OriginalTaskID records lineage when the task is seeded
// from another copy of the same plan.
type TaskSeed struct {
	Title          string
	Description    string
	Category       string
	OriginalTaskID string
	DueDate        *time.Time
	Completed      bool
	CompletedAt    *time.Time
}
