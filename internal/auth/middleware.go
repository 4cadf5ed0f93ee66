package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type contextKey string

const userIDKey contextKey = "user_id"

// UserID extracts the authenticated user's id from the request context
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok
}

// Middleware authenticates requests with a bearer identity token
type Middleware struct {
	tokens *TokenProvider
}

// NewMiddleware creates an authentication middleware
func NewMiddleware(tokens *TokenProvider) *Middleware {
	return &Middleware{tokens: tokens}
}

// Authenticate rejects requests without a valid Authorization: Bearer header
// and puts the user id in the request context for downstream handlers
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			unauthorized(w, "missing bearer token")
			return
		}

		value, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			unauthorized(w, "malformed authorization header")
			return
		}

		claims, err := m.tokens.Parse(value)
		if err != nil {
			unauthorized(w, "invalid or expired bearer token")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
