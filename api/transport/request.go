package transport

type ProfileUpdateRequest struct {
	Email  string            `json:"email"`
	Role   string            `json:"role"`
	Status string            `json:"status"`
	Meta   map[string]string `json:"metadata"`
}

type AuthLoginRequest struct {
	UserID string `json:"user_id"`
	TTL    int    `json:"ttl_seconds"`
}

type RefreshRequest struct {
	SessionID string `json:"session_id"`
	TTL       int    `json:"ttl_seconds"`
}

type TaskSeedRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	DueDate     string `json:"due_date"`
}

type ActivityCreateRequest struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Category    string            `json:"category"`
	Status      string            `json:"status"`
	Tasks       []TaskSeedRequest `json:"tasks"`
}

// CopyRequest is the body of POST /api/v1/shared/{token}/copy. ForceUpdate
// confirms replacing an existing copy after a 409 response.
type CopyRequest struct {
	ForceUpdate bool `json:"force_update"`
}

type CompleteTaskRequest struct {
	Completed bool `json:"completed"`
}
