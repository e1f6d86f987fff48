package session

import "time"

// Info describes a signed-in session.
type Info struct {
	UserID     string    `json:"user_id"`
	Email      string    `json:"email,omitempty"`
	Realtime   bool      `json:"realtime"`
	CreatedAt  time.Time `json:"created_at"`
	Activities int       `json:"activities"`
}
