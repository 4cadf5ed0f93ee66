package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/campus-hunt/internal/config"
	"github.com/campus-hunt/internal/domain"
	"github.com/google/uuid"
)

// GameService provides the QR-token-gated challenge progression workflow
type GameService struct {
	store  Store
	cache  RankingCache
	events EventPublisher
	hub    Broadcaster
	cfg    *config.GameConfig
	logger *slog.Logger
}

// NewGameService creates a new game service
func NewGameService(store Store, cache RankingCache, cfg *config.GameConfig, logger *slog.Logger) *GameService {
	return &GameService{
		store:  store,
		cache:  cache,
		cfg:    cfg,
		logger: logger,
	}
}

// SetHub sets the websocket hub used to broadcast ranking updates
func (s *GameService) SetHub(hub Broadcaster) {
	s.hub = hub
}

// SetPublisher sets the event publisher for game events
func (s *GameService) SetPublisher(p EventPublisher) {
	s.events = p
}

// ScanResult is returned when a QR code is scanned successfully
type ScanResult struct {
	Location string `json:"location"`
	Token    string `json:"token"`
}

// ChallengeView is the challenge as shown to the player. The correct answer
// is never included.
type ChallengeView struct {
	Question string   `json:"question"`
	Points   int      `json:"points"`
	Options  []string `json:"options"`
}

// AnswerResult is the outcome of an answer submission
type AnswerResult struct {
	Correct bool `json:"correct"`
	Points  int  `json:"points,omitempty"`
}

// HintResult is the outcome of a hint request. HasHint is false once the
// user has consumed every hint for the location, or the location has none.
type HintResult struct {
	Hint    string `json:"hint,omitempty"`
	HasHint bool   `json:"-"`
}

// ScanQR resolves a scanned QR code to its location and mints a challenge
// access token bound to (user, location), valid for the configured TTL.
// The user's progress row is created lazily on first scan. Re-scanning a
// completed location is rejected. Earlier tokens for the same pair stay
// live until they expire on their own.
func (s *GameService) ScanQR(ctx context.Context, userID, qrCode string) (*ScanResult, error) {
	if qrCode == "" {
		return nil, domain.ErrQRCodeRequired
	}

	location, err := s.store.GetLocationByQR(ctx, qrCode)
	if err != nil {
		return nil, err
	}

	progress, err := s.store.GetProgress(ctx, userID, location.ID)
	if err != nil {
		return nil, fmt.Errorf("getting progress: %w", err)
	}
	if progress != nil && progress.Completed {
		return nil, domain.ErrLocationCompleted
	}

	value, err := generateTokenValue()
	if err != nil {
		return nil, fmt.Errorf("generating token: %w", err)
	}

	now := time.Now()
	token := &domain.AccessToken{
		ID:         uuid.New().String(),
		UserID:     userID,
		LocationID: location.ID,
		Token:      value,
		ExpiresAt:  now.Add(s.cfg.TokenTTL),
		CreatedAt:  now,
	}
	if err := s.store.CreateAccessToken(ctx, token); err != nil {
		return nil, fmt.Errorf("creating access token: %w", err)
	}

	s.publish(domain.EventQRScanned, userID, location.ID, 0)

	return &ScanResult{
		Location: location.Name,
		Token:    value,
	}, nil
}

// Challenge returns the challenge gated behind a valid access token.
// Read-only; no state changes.
func (s *GameService) Challenge(ctx context.Context, userID, token string) (*ChallengeView, error) {
	t, err := s.resolveToken(ctx, token)
	if err != nil {
		return nil, err
	}

	progress, err := s.store.GetProgress(ctx, userID, t.LocationID)
	if err != nil {
		return nil, fmt.Errorf("getting progress: %w", err)
	}
	if progress != nil && progress.Completed {
		return nil, domain.ErrLocationCompleted
	}

	challenge, err := s.store.GetChallengeByLocation(ctx, t.LocationID)
	if err != nil {
		return nil, err
	}

	return &ChallengeView{
		Question: challenge.Question,
		Points:   challenge.Points,
		Options:  challenge.Options,
	}, nil
}

// SubmitAnswer validates a submitted answer against the challenge's correct
// answer (case-insensitive exact match). A correct answer is the single
// point-awarding event: the progress row, the leaderboard aggregate and the
// participation record are all updated in one store transaction. An
// incorrect answer changes nothing and may be resubmitted while the token
// remains valid.
func (s *GameService) SubmitAnswer(ctx context.Context, userID, token, answer string) (*AnswerResult, error) {
	t, err := s.resolveToken(ctx, token)
	if err != nil {
		return nil, err
	}

	progress, err := s.store.GetProgress(ctx, userID, t.LocationID)
	if err != nil {
		return nil, fmt.Errorf("getting progress: %w", err)
	}
	if progress != nil && progress.Completed {
		return nil, domain.ErrLocationCompleted
	}

	challenge, err := s.store.GetChallengeByLocation(ctx, t.LocationID)
	if err != nil {
		return nil, err
	}

	if answer == "" || !strings.EqualFold(answer, challenge.CorrectAnswer) {
		return &AnswerResult{Correct: false}, nil
	}

	// The row lock inside CompleteChallenge closes the double-submit race:
	// the second of two concurrent correct submissions sees the completed
	// flag and is rejected.
	if _, err := s.store.CompleteChallenge(ctx, userID, t.LocationID, challenge.Points); err != nil {
		return nil, err
	}

	s.publish(domain.EventChallengeCompleted, userID, t.LocationID, challenge.Points)
	s.afterCompletion(ctx)

	return &AnswerResult{Correct: true, Points: challenge.Points}, nil
}

// CommitProgress acknowledges a completed challenge. Kept for clients that
// still call the explicit commit endpoint after validating an answer; point
// awarding happens entirely inside SubmitAnswer, so this never mutates state.
func (s *GameService) CommitProgress(ctx context.Context, userID, token string) error {
	t, err := s.resolveToken(ctx, token)
	if err != nil {
		return err
	}

	if _, err := s.store.GetChallengeByLocation(ctx, t.LocationID); err != nil {
		return err
	}

	return nil
}

// NextHint dispenses the hint at the user's current cursor and advances the
// cursor, exactly once per successful dispense. Past the last hint (or for a
// location without hints) it returns a terminal no-more-hints result.
func (s *GameService) NextHint(ctx context.Context, userID, token string) (*HintResult, error) {
	t, err := s.resolveToken(ctx, token)
	if err != nil {
		return nil, err
	}

	hint, err := s.store.DispenseHint(ctx, userID, t.LocationID)
	if err != nil {
		return nil, err
	}
	if hint == nil {
		return &HintResult{HasHint: false}, nil
	}

	return &HintResult{Hint: hint.Text, HasHint: true}, nil
}

// Ranking returns the leaderboard: users ordered by total points descending,
// ties broken by entry creation order, ranks 1-indexed. Served from the cache
// when warm, recomputed from the store otherwise.
func (s *GameService) Ranking(ctx context.Context) ([]domain.RankedPlayer, error) {
	if s.cache != nil {
		cached, err := s.cache.GetRanking(ctx)
		if err != nil {
			s.logger.Warn("failed to read ranking cache", "error", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	ranking, err := s.store.Ranking(ctx)
	if err != nil {
		return nil, fmt.Errorf("computing ranking: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.SetRanking(ctx, ranking); err != nil {
			s.logger.Warn("failed to write ranking cache", "error", err)
		}
	}

	return ranking, nil
}

// RefreshRanking recomputes the ranking, refreshes the cache and broadcasts
// the result to connected websocket clients
func (s *GameService) RefreshRanking(ctx context.Context) ([]domain.RankedPlayer, error) {
	ranking, err := s.store.Ranking(ctx)
	if err != nil {
		return nil, fmt.Errorf("computing ranking: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.SetRanking(ctx, ranking); err != nil {
			s.logger.Warn("failed to write ranking cache", "error", err)
		}
	}
	if s.hub != nil {
		s.hub.BroadcastRanking(ranking)
	}

	return ranking, nil
}

// resolveToken resolves a token value to its binding and rejects expired ones
func (s *GameService) resolveToken(ctx context.Context, token string) (*domain.AccessToken, error) {
	if token == "" {
		return nil, domain.ErrInvalidToken
	}

	t, err := s.store.GetAccessToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if t.Expired(time.Now()) {
		return nil, domain.ErrTokenExpired
	}
	return t, nil
}

// afterCompletion pushes the new ranking to cache and websocket clients.
// Best effort; the points are already committed.
func (s *GameService) afterCompletion(ctx context.Context) {
	if _, err := s.RefreshRanking(ctx); err != nil {
		s.logger.Warn("failed to refresh ranking after completion", "error", err)
	}
}

// publish sends a game event if a publisher is configured
func (s *GameService) publish(eventType, userID, locationID string, points int) {
	if s.events == nil {
		return
	}
	s.events.Publish(domain.GameEvent{
		EventType:  eventType,
		UserID:     userID,
		LocationID: locationID,
		Points:     points,
		Timestamp:  time.Now(),
	})
}

// generateTokenValue returns a new unguessable token value with 256 bits of
// entropy from the platform CSPRNG
func generateTokenValue() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
