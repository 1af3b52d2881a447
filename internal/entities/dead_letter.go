package entities

import (
	"encoding/json"
	"time"
)

type DeadLetter struct {
	ID         int             `json:"id"`
	Source     string          `json:"source"`
	Payload    json.RawMessage `json:"payload"`
	Error      string          `json:"error"`
	Attempts   int             `json:"attempts"`
	CreatedAt  time.Time       `json:"created_at"`
	ReplayedAt *time.Time      `json:"replayed_at,omitempty"`
}
