package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/campus-hunt/internal/auth"
	"github.com/campus-hunt/internal/config"
	"github.com/campus-hunt/internal/domain"
	"github.com/campus-hunt/internal/service/storetest"
)

func newTestAuth(t *testing.T) (*AuthService, *storetest.Store) {
	t.Helper()
	st := storetest.NewStore()
	tokens := auth.NewTokenProvider(&config.AuthConfig{
		JWTSecret: "test-secret",
		Issuer:    "campus-hunt",
		AccessTTL: time.Hour,
	})
	hasher := auth.NewPasswordHasher(4)
	return NewAuthService(st, tokens, hasher, discardLogger()), st
}

func TestAuthService_Register(t *testing.T) {
	svc, st := newTestAuth(t)
	ctx := context.Background()

	pair, err := svc.Register(ctx, RegisterRequest{
		FirstName: "Alice",
		LastName:  "Adams",
		Email:     "Alice@Example.com",
		Password:  "correct horse battery",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected a token pair")
	}

	// Email is stored lowercased and the password is hashed
	user, err := st.GetUserByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if user.PasswordHash == "correct horse battery" {
		t.Error("password stored in plaintext")
	}

	// Registration creates a zero-point leaderboard entry
	points, _ := st.GetTotalPoints(ctx, user.ID)
	if points != 0 {
		t.Errorf("initial points: want 0, got %d", points)
	}
}

func TestAuthService_RegisterValidation(t *testing.T) {
	svc, _ := newTestAuth(t)
	ctx := context.Background()

	reqs := []RegisterRequest{
		{LastName: "Adams", Email: "a@b.co", Password: "pw"},
		{FirstName: "Alice", Email: "a@b.co", Password: "pw"},
		{FirstName: "Alice", LastName: "Adams", Password: "pw"},
		{FirstName: "Alice", LastName: "Adams", Email: "a@b.co"},
	}
	for _, req := range reqs {
		if _, err := svc.Register(ctx, req); !errors.Is(err, domain.ErrInvalidRequest) {
			t.Errorf("Register(%+v): want ErrInvalidRequest, got %v", req, err)
		}
	}
}

func TestAuthService_RegisterDuplicateEmail(t *testing.T) {
	svc, _ := newTestAuth(t)
	ctx := context.Background()

	req := RegisterRequest{FirstName: "Alice", LastName: "Adams", Email: "alice@example.com", Password: "pw123456"}
	if _, err := svc.Register(ctx, req); err != nil {
		t.Fatalf("first Register: %v", err)
	}

	// Same email, different case
	req.Email = "ALICE@example.com"
	if _, err := svc.Register(ctx, req); !errors.Is(err, domain.ErrEmailTaken) {
		t.Errorf("duplicate email: want ErrEmailTaken, got %v", err)
	}
}

func TestAuthService_Login(t *testing.T) {
	svc, _ := newTestAuth(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{
		FirstName: "Alice", LastName: "Adams", Email: "alice@example.com", Password: "pw123456",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	pair, err := svc.Login(ctx, "Alice@Example.com", "pw123456")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if pair.AccessToken == "" {
		t.Fatal("expected an access token")
	}

	if _, err := svc.Login(ctx, "alice@example.com", "wrong"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Errorf("wrong password: want ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody@example.com", "pw123456"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Errorf("unknown email: want ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_UserData(t *testing.T) {
	svc, st := newTestAuth(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterRequest{
		FirstName: "Alice", LastName: "Adams", Email: "alice@example.com", Password: "pw123456",
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	user, _ := st.GetUserByEmail(ctx, "alice@example.com")

	data, err := svc.UserData(ctx, user.ID)
	if err != nil {
		t.Fatalf("UserData: %v", err)
	}
	if data.Name != "Alice Adams" || data.Points != 0 {
		t.Errorf("user data: got %+v", data)
	}

	if _, err := svc.UserData(ctx, "nonexistent"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("unknown user: want ErrUserNotFound, got %v", err)
	}
}
