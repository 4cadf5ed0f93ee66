package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/campus-hunt/internal/auth"
	"github.com/campus-hunt/internal/domain"
	"github.com/campus-hunt/internal/service"
	"github.com/campus-hunt/internal/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handler provides HTTP handlers for the hunt API
type Handler struct {
	game   *service.GameService
	auth   *service.AuthService
	authMW *auth.Middleware
	hub    *websocket.Hub
	logger *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(game *service.GameService, authSvc *service.AuthService, authMW *auth.Middleware, hub *websocket.Hub, logger *slog.Logger) *Handler {
	return &Handler{
		game:   game,
		auth:   authSvc,
		authMW: authMW,
		hub:    hub,
		logger: logger,
	}
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// WebSocket scoreboard
	r.Get("/ws", h.HandleWebSocket)

	// Public auth routes
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)

	// Bearer-authenticated game routes
	r.Group(func(r chi.Router) {
		r.Use(h.authMW.Authenticate)

		r.Get("/user-data", h.UserData)
		r.Get("/leaderboard", h.Leaderboard)
		r.Post("/scan-qr", h.ScanQR)
		r.Get("/get_challenge/{token}", h.GetChallenge)
		r.Post("/validate_answer/{token}", h.ValidateAnswer)
		r.Post("/update_user_progress/{token}", h.UpdateUserProgress)
		r.Get("/get_next_hint/{token}", h.GetNextHint)
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a domain error with its HTTP status
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var status int
	switch {
	case domain.IsValidation(err) || errors.Is(err, domain.ErrEmailTaken):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case domain.IsForbidden(err):
		status = http.StatusForbidden
	case domain.IsNotFound(err):
		status = http.StatusNotFound
	default:
		h.logger.Error("internal error", "error", err)
		status = http.StatusInternalServerError
		err = domain.ErrInternalError
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// userID extracts the authenticated user from the request context
func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := auth.UserID(r.Context())
	if !ok {
		h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
		return "", false
	}
	return id, true
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ReadyCheck returns service readiness status
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Register handles account creation
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.ErrInvalidRequest)
		return
	}

	pair, err := h.auth.Register(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]string{
		"message":       "user registered successfully",
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

// Login handles credential authentication
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.ErrInvalidRequest)
		return
	}

	pair, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, pair)
}

// UserData returns the authenticated user's name and points
func (h *Handler) UserData(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	data, err := h.auth.UserData(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, data)
}

// Leaderboard returns the ranking ordered by points descending
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.userID(w, r); !ok {
		return
	}

	ranking, err := h.game.Ranking(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if ranking == nil {
		ranking = []domain.RankedPlayer{}
	}

	h.writeJSON(w, http.StatusOK, ranking)
}

// ScanQR mints a challenge access token for a scanned QR code
func (h *Handler) ScanQR(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req struct {
		QRCode string `json:"qr_code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.ErrQRCodeRequired)
		return
	}

	result, err := h.game.ScanQR(r.Context(), userID, req.QRCode)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"message":  "QR code scanned successfully",
		"location": result.Location,
		"token":    result.Token,
	})
}

// GetChallenge returns the challenge gated behind an access token
func (h *Handler) GetChallenge(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	view, err := h.game.Challenge(r.Context(), userID, chi.URLParam(r, "token"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, view)
}

// ValidateAnswer checks a submitted answer and awards points on a match
func (h *Handler) ValidateAnswer(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req struct {
		Answer string `json:"answer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.ErrInvalidRequest)
		return
	}

	result, err := h.game.SubmitAnswer(r.Context(), userID, chi.URLParam(r, "token"), req.Answer)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if result.Correct {
		h.writeJSON(w, http.StatusOK, map[string]interface{}{
			"message": "correct answer",
			"correct": true,
			"points":  result.Points,
		})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "incorrect answer",
		"correct": false,
	})
}

// UpdateUserProgress acknowledges a completed challenge. Points are awarded
// by ValidateAnswer; this endpoint exists for clients that still call the
// explicit commit step.
func (h *Handler) UpdateUserProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	if err := h.game.CommitProgress(r.Context(), userID, chi.URLParam(r, "token")); err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"message": "user progress updated successfully",
	})
}

// GetNextHint dispenses the next hint for the token's location
func (h *Handler) GetNextHint(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	result, err := h.game.NextHint(r.Context(), userID, chi.URLParam(r, "token"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	if !result.HasHint {
		h.writeJSON(w, http.StatusOK, map[string]string{
			"message": "no more hints available for this location",
		})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"hint": result.Hint})
}
