package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/campus-hunt/internal/auth"
	"github.com/campus-hunt/internal/domain"
	"github.com/google/uuid"
)

// AuthService handles registration, login and account data
type AuthService struct {
	store  Store
	tokens *auth.TokenProvider
	hasher *auth.PasswordHasher
	logger *slog.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(store Store, tokens *auth.TokenProvider, hasher *auth.PasswordHasher, logger *slog.Logger) *AuthService {
	return &AuthService{
		store:  store,
		tokens: tokens,
		hasher: hasher,
		logger: logger,
	}
}

// RegisterRequest is the payload for account creation
type RegisterRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// UserData is the authenticated user's profile summary
type UserData struct {
	Name   string `json:"name"`
	Points int    `json:"points"`
}

// Register creates a user with a hashed password and a zero-point leaderboard
// entry, then issues a token pair
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*auth.TokenPair, error) {
	if req.FirstName == "" || req.LastName == "" || req.Email == "" || req.Password == "" {
		return nil, domain.ErrInvalidRequest
	}

	email := strings.ToLower(req.Email)
	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return nil, domain.ErrEmailTaken
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("checking email: %w", err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	now := time.Now()
	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	if err := s.store.CreateLeaderboardEntry(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("creating leaderboard entry: %w", err)
	}

	pair, err := s.tokens.IssuePair(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("issuing tokens: %w", err)
	}
	return pair, nil
}

// Login verifies credentials and issues a token pair
func (s *AuthService) Login(ctx context.Context, email, password string) (*auth.TokenPair, error) {
	user, err := s.store.GetUserByEmail(ctx, strings.ToLower(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("finding user: %w", err)
	}

	if !s.hasher.Verify(user.PasswordHash, password) {
		return nil, domain.ErrInvalidCredentials
	}

	pair, err := s.tokens.IssuePair(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("issuing tokens: %w", err)
	}
	return pair, nil
}

// UserData returns the user's display name and current point total
func (s *AuthService) UserData(ctx context.Context, userID string) (*UserData, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	points, err := s.store.GetTotalPoints(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("getting total points: %w", err)
	}

	return &UserData{Name: user.FullName(), Points: points}, nil
}
