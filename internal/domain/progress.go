package domain

import "time"

// Progress tracks a user's state at one location. There is at most one row
// per (user, location) pair and it is never deleted. A completed row keeps
// its points; completion is one-way.
type Progress struct {
	UserID      string     `json:"user_id"`
	LocationID  string     `json:"location_id"`
	CurrentHint int        `json:"current_hint"`
	Completed   bool       `json:"completed"`
	Points      int        `json:"points_earned"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// AccessToken is a short-lived challenge credential bound to one
// (user, location) pair, minted when the user scans the location's QR code.
// Several live tokens may exist for the same pair; a new scan mints a new one.
type AccessToken struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	LocationID string    `json:"location_id"`
	Token      string    `json:"token"`
	ExpiresAt  time.Time `json:"expires_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// Expired reports whether the token is past its expiry at the given instant.
func (t *AccessToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// Participation is an immutable audit record of a user's action at a location
type Participation struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	LocationID string    `json:"location_id"`
	Action     string    `json:"action"`
	CreatedAt  time.Time `json:"created_at"`
}

// Participation actions
const (
	ActionCompletedChallenge = "completed the challenge"
)
