package entities

import "time"

// User is a dashboard operator.
type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"` // "admin" or "agent"
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}
