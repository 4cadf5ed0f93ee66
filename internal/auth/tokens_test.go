package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/campus-hunt/internal/config"
)

func testProvider() *TokenProvider {
	return NewTokenProvider(&config.AuthConfig{
		JWTSecret:  "test-secret",
		Issuer:     "campus-hunt",
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
	})
}

func TestTokenProvider_IssueAndParse(t *testing.T) {
	p := testProvider()

	pair, err := p.IssuePair("u-1", "alice@example.com")
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}
	if pair.AccessToken == pair.RefreshToken {
		t.Error("access and refresh tokens should differ")
	}

	claims, err := p.Parse(pair.AccessToken)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Subject != "u-1" {
		t.Errorf("subject: want u-1, got %q", claims.Subject)
	}
	if claims.Email != "alice@example.com" {
		t.Errorf("email: want alice@example.com, got %q", claims.Email)
	}
}

func TestTokenProvider_ParseRejects(t *testing.T) {
	p := testProvider()

	if _, err := p.Parse("not-a-token"); !errors.Is(err, ErrInvalidBearerToken) {
		t.Errorf("garbage token: want ErrInvalidBearerToken, got %v", err)
	}

	// Signed with a different secret
	other := NewTokenProvider(&config.AuthConfig{
		JWTSecret: "other-secret",
		Issuer:    "campus-hunt",
		AccessTTL: time.Hour,
	})
	otherPair, _ := other.IssuePair("u-1", "alice@example.com")
	if _, err := p.Parse(otherPair.AccessToken); !errors.Is(err, ErrInvalidBearerToken) {
		t.Errorf("wrong secret: want ErrInvalidBearerToken, got %v", err)
	}

	// Wrong issuer
	foreign := NewTokenProvider(&config.AuthConfig{
		JWTSecret: "test-secret",
		Issuer:    "someone-else",
		AccessTTL: time.Hour,
	})
	foreignPair, _ := foreign.IssuePair("u-1", "alice@example.com")
	if _, err := p.Parse(foreignPair.AccessToken); !errors.Is(err, ErrInvalidBearerToken) {
		t.Errorf("wrong issuer: want ErrInvalidBearerToken, got %v", err)
	}

	// Already expired
	expired := NewTokenProvider(&config.AuthConfig{
		JWTSecret: "test-secret",
		Issuer:    "campus-hunt",
		AccessTTL: -time.Minute,
	})
	expiredPair, _ := expired.IssuePair("u-1", "alice@example.com")
	if _, err := p.Parse(expiredPair.AccessToken); !errors.Is(err, ErrInvalidBearerToken) {
		t.Errorf("expired token: want ErrInvalidBearerToken, got %v", err)
	}
}

func TestPasswordHasher(t *testing.T) {
	h := NewPasswordHasher(4)

	hash, err := h.Hash("hunter2hunter2")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if hash == "hunter2hunter2" {
		t.Fatal("hash must not equal the plaintext")
	}
	if !h.Verify(hash, "hunter2hunter2") {
		t.Error("correct password should verify")
	}
	if h.Verify(hash, "wrong-password") {
		t.Error("wrong password should not verify")
	}
}

func TestMiddleware_Authenticate(t *testing.T) {
	p := testProvider()
	mw := NewMiddleware(p)

	var gotUserID string
	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := UserID(r.Context())
		if !ok {
			t.Error("expected user id in context")
		}
		gotUserID = id
		w.WriteHeader(http.StatusOK)
	}))

	pair, _ := p.IssuePair("u-1", "alice@example.com")

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"valid token", "Bearer " + pair.AccessToken, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc123", http.StatusUnauthorized},
		{"garbage token", "Bearer garbage", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/user-data", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status: want %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}

	if gotUserID != "u-1" {
		t.Errorf("user id: want u-1, got %q", gotUserID)
	}
}
