package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// content is the canonical shape hashed for duplicate detection. Task titles
// keep their order; incidental fields (ids, timestamps) never participate.
type content struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tasks       []string `json:"tasks"`
}

// Compute returns a stable hex digest of a plan's semantic content.
// Identical (title, description, task titles) input always yields the same
// digest regardless of how the plan was produced.
func Compute(title, description string, taskTitles []string) string {
	c := content{
		Title:       strings.TrimSpace(title),
		Description: strings.TrimSpace(description),
		Tasks:       make([]string, 0, len(taskTitles)),
	}
	for _, t := range taskTitles {
		c.Tasks = append(c.Tasks, strings.TrimSpace(t))
	}

	// Struct field order is fixed, so encoding/json is canonical here.
	payload, _ := json.Marshal(c)
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
