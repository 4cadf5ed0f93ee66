package domain

import "time"

// LeaderboardEntry is a user's aggregate of points across all completed
// locations. Totals are monotonically non-decreasing.
type LeaderboardEntry struct {
	UserID      string    `json:"user_id"`
	TotalPoints int       `json:"total_points"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RankedPlayer is one row of the public ranking
type RankedPlayer struct {
	Rank   int    `json:"rank"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Points int    `json:"points"`
}

// GameEvent is published to Kafka when a user scans a QR code or completes
// a challenge, for downstream analytics consumers
type GameEvent struct {
	EventType  string    `json:"event_type"`
	UserID     string    `json:"user_id"`
	LocationID string    `json:"location_id"`
	Points     int       `json:"points,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Game event types
const (
	EventQRScanned          = "qr_scanned"
	EventChallengeCompleted = "challenge_completed"
)
