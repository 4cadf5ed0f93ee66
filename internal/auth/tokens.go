package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/campus-hunt/internal/config"
	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidBearerToken is returned when a bearer token is malformed,
// expired, or signed with the wrong key.
var ErrInvalidBearerToken = errors.New("invalid or expired bearer token")

// Claims holds the JWT claims for identity tokens
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// TokenPair is an access/refresh token pair issued on register and login
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// TokenProvider issues and validates HS256 identity tokens
type TokenProvider struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenProvider creates a token provider from the auth configuration
func NewTokenProvider(cfg *config.AuthConfig) *TokenProvider {
	return &TokenProvider{
		secret:     []byte(cfg.JWTSecret),
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
	}
}

// IssuePair issues an access and a refresh token for the user
func (p *TokenProvider) IssuePair(userID, email string) (*TokenPair, error) {
	access, err := p.sign(userID, email, p.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("signing access token: %w", err)
	}
	refresh, err := p.sign(userID, email, p.refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("signing refresh token: %w", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Parse validates a bearer token and returns its claims
func (p *TokenProvider) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return p.secret, nil
	}, jwt.WithIssuer(p.issuer), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, ErrInvalidBearerToken
	}
	return claims, nil
}

func (p *TokenProvider) sign(userID, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: email,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}
