package model

import "time"

const (
	EventUserRegistered         = "user.registered"
	EventPasswordResetRequested = "password.reset_requested"
	EventPasswordChanged        = "password.changed"
)

// Event is published to the account topic for downstream consumers
// (notification service, analytics).
type Event struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	UserID     int64             `json:"user_id"`
	Email      string            `json:"email"`
	OccurredAt time.Time         `json:"occurred_at"`
	Data       map[string]string `json:"data,omitempty"`
}
