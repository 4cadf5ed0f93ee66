package service

import (
	"context"

	"github.com/campus-hunt/internal/domain"
)

// UserStore provides access to user records
type UserStore interface {
	CreateUser(ctx context.Context, u *domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
}

// LocationStore provides access to location records
type LocationStore interface {
	GetLocation(ctx context.Context, id string) (*domain.Location, error)
	GetLocationByQR(ctx context.Context, qrCode string) (*domain.Location, error)
}

// ChallengeStore provides access to challenge records
type ChallengeStore interface {
	// GetChallengeByLocation returns the location's active challenge, or
	// domain.ErrNoChallenge if the location has none.
	GetChallengeByLocation(ctx context.Context, locationID string) (*domain.Challenge, error)
}

// TokenStore provides access to challenge access tokens
type TokenStore interface {
	// CreateAccessToken persists the token and, in the same transaction,
	// creates the (user, location) progress row if it does not exist yet.
	CreateAccessToken(ctx context.Context, t *domain.AccessToken) error
	// GetAccessToken resolves a token value, or returns domain.ErrInvalidToken.
	GetAccessToken(ctx context.Context, token string) (*domain.AccessToken, error)
}

// ProgressStore provides access to per-user per-location progress.
// The state transitions are atomic with respect to concurrent requests for
// the same (user, location) pair.
type ProgressStore interface {
	// GetProgress returns the progress row, or (nil, nil) if the user has
	// not scanned the location yet.
	GetProgress(ctx context.Context, userID, locationID string) (*domain.Progress, error)
	// CompleteChallenge marks the progress completed, adds the points, updates
	// the user's leaderboard total and appends the participation record, all in
	// one transaction holding a lock on the progress row. Returns
	// domain.ErrLocationCompleted if the row is already completed.
	CompleteChallenge(ctx context.Context, userID, locationID string, points int) (*domain.Progress, error)
	// DispenseHint returns the hint at the user's current cursor and advances
	// the cursor by one, atomically. It returns (nil, nil) when no hint exists
	// past the cursor, and domain.ErrNoProgress when the user has no progress
	// row for the location.
	DispenseHint(ctx context.Context, userID, locationID string) (*domain.Hint, error)
}

// LeaderboardStore provides access to the per-user point aggregates
type LeaderboardStore interface {
	// CreateLeaderboardEntry creates a zero-point aggregate for a new user.
	CreateLeaderboardEntry(ctx context.Context, userID string) error
	// Ranking returns all entries ordered by points descending, ties broken by
	// entry creation order, with 1-indexed ranks filled in.
	Ranking(ctx context.Context) ([]domain.RankedPlayer, error)
	// GetTotalPoints returns a user's current total, zero if no entry exists.
	GetTotalPoints(ctx context.Context, userID string) (int, error)
}

// Store aggregates the repositories the hunt service consumes
type Store interface {
	UserStore
	LocationStore
	ChallengeStore
	TokenStore
	ProgressStore
	LeaderboardStore
}

// RankingCache caches the computed ranking between completions
type RankingCache interface {
	// GetRanking returns the cached ranking, or (nil, nil) on a miss.
	GetRanking(ctx context.Context) ([]domain.RankedPlayer, error)
	SetRanking(ctx context.Context, ranking []domain.RankedPlayer) error
	Invalidate(ctx context.Context) error
}

// EventPublisher publishes game events for downstream consumers.
// Publishing is fire-and-forget; failures never fail the request.
type EventPublisher interface {
	Publish(event domain.GameEvent)
}

// Broadcaster pushes ranking updates to connected websocket clients
type Broadcaster interface {
	BroadcastRanking(ranking []domain.RankedPlayer)
}
