package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/campus-hunt/internal/auth"
	"github.com/campus-hunt/internal/config"
	"github.com/campus-hunt/internal/domain"
	"github.com/campus-hunt/internal/service"
	"github.com/campus-hunt/internal/service/storetest"
	"github.com/campus-hunt/internal/websocket"
)

type testServer struct {
	router http.Handler
	store  *storetest.Store
	bearer string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st := storetest.NewStore()
	cache := storetest.NewCache()
	tokens := auth.NewTokenProvider(&config.AuthConfig{
		JWTSecret: "test-secret",
		Issuer:    "campus-hunt",
		AccessTTL: time.Hour,
	})
	hasher := auth.NewPasswordHasher(4)

	gameCfg := &config.GameConfig{TokenTTL: 15 * time.Minute, RankingCacheTTL: 30 * time.Second}
	gameSvc := service.NewGameService(st, cache, gameCfg, logger)
	authSvc := service.NewAuthService(st, tokens, hasher, logger)

	hub := websocket.NewHub(logger)
	h := NewHandler(gameSvc, authSvc, auth.NewMiddleware(tokens), hub, logger)

	st.AddLocation(
		&domain.Location{ID: "loc-1", Name: "Main Library", QRCode: "qr-library"},
		&domain.Challenge{
			ID:            "ch-1",
			LocationID:    "loc-1",
			Question:      "In which year was the library founded?",
			CorrectAnswer: "1897",
			Points:        100,
			Options:       []string{"1897", "1905", "1923"},
		},
		domain.Hint{ID: "h-1", LocationID: "loc-1", Order: 0, Text: "Check the cornerstone."},
	)

	return &testServer{router: h.Router(), store: st}
}

// registerAndLogin creates an account and stores its bearer token for
// subsequent requests
func (ts *testServer) registerAndLogin(t *testing.T, email string) {
	t.Helper()
	status, body := ts.do(t, http.MethodPost, "/register", map[string]string{
		"first_name": "Alice",
		"last_name":  "Adams",
		"email":      email,
		"password":   "pw123456",
	})
	if status != http.StatusCreated {
		t.Fatalf("register: status %d body %v", status, body)
	}
	ts.bearer = body["access_token"].(string)
}

func (ts *testServer) do(t *testing.T, method, path string, payload interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshaling payload: %v", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reqBody)
	if ts.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+ts.bearer)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	var body map[string]interface{}
	if rec.Body.Len() > 0 && rec.Body.Bytes()[0] == '{' {
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("unmarshaling response %q: %v", rec.Body.String(), err)
		}
	}
	return rec.Code, body
}

func (ts *testServer) scan(t *testing.T, qrCode string) string {
	t.Helper()
	status, body := ts.do(t, http.MethodPost, "/scan-qr", map[string]string{"qr_code": qrCode})
	if status != http.StatusOK {
		t.Fatalf("scan-qr: status %d body %v", status, body)
	}
	return body["token"].(string)
}

func TestHandler_Register(t *testing.T) {
	ts := newTestServer(t)

	status, body := ts.do(t, http.MethodPost, "/register", map[string]string{
		"first_name": "Alice",
		"last_name":  "Adams",
		"email":      "alice@example.com",
		"password":   "pw123456",
	})
	if status != http.StatusCreated {
		t.Fatalf("status: want 201, got %d", status)
	}
	if body["access_token"] == nil || body["refresh_token"] == nil {
		t.Errorf("want token pair, got %v", body)
	}

	// Duplicate registration
	status, body = ts.do(t, http.MethodPost, "/register", map[string]string{
		"first_name": "Alice",
		"last_name":  "Adams",
		"email":      "alice@example.com",
		"password":   "pw123456",
	})
	if status != http.StatusBadRequest {
		t.Errorf("duplicate: want 400, got %d body %v", status, body)
	}

	// Missing fields
	status, _ = ts.do(t, http.MethodPost, "/register", map[string]string{"email": "x@y.z"})
	if status != http.StatusBadRequest {
		t.Errorf("missing fields: want 400, got %d", status)
	}
}

func TestHandler_Login(t *testing.T) {
	ts := newTestServer(t)
	ts.registerAndLogin(t, "alice@example.com")
	ts.bearer = ""

	status, body := ts.do(t, http.MethodPost, "/login", map[string]string{
		"email":    "alice@example.com",
		"password": "pw123456",
	})
	if status != http.StatusOK || body["access_token"] == nil {
		t.Errorf("login: status %d body %v", status, body)
	}

	status, _ = ts.do(t, http.MethodPost, "/login", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong",
	})
	if status != http.StatusUnauthorized {
		t.Errorf("bad password: want 401, got %d", status)
	}
}

func TestHandler_RequiresBearer(t *testing.T) {
	ts := newTestServer(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/scan-qr"},
		{http.MethodGet, "/get_challenge/some-token"},
		{http.MethodPost, "/validate_answer/some-token"},
		{http.MethodPost, "/update_user_progress/some-token"},
		{http.MethodGet, "/get_next_hint/some-token"},
		{http.MethodGet, "/leaderboard"},
		{http.MethodGet, "/user-data"},
	}
	for _, p := range paths {
		status, _ := ts.do(t, p.method, p.path, nil)
		if status != http.StatusUnauthorized {
			t.Errorf("%s %s without bearer: want 401, got %d", p.method, p.path, status)
		}
	}
}

func TestHandler_ScanQR(t *testing.T) {
	ts := newTestServer(t)
	ts.registerAndLogin(t, "alice@example.com")

	status, body := ts.do(t, http.MethodPost, "/scan-qr", map[string]string{"qr_code": "qr-library"})
	if status != http.StatusOK {
		t.Fatalf("status: want 200, got %d body %v", status, body)
	}
	if body["location"] != "Main Library" {
		t.Errorf("location: got %v", body["location"])
	}
	if body["token"] == "" || body["token"] == nil {
		t.Error("expected a token")
	}
	if body["message"] == nil {
		t.Error("expected a message")
	}

	status, _ = ts.do(t, http.MethodPost, "/scan-qr", map[string]string{"qr_code": ""})
	if status != http.StatusBadRequest {
		t.Errorf("empty qr: want 400, got %d", status)
	}

	status, _ = ts.do(t, http.MethodPost, "/scan-qr", map[string]string{"qr_code": "qr-nowhere"})
	if status != http.StatusNotFound {
		t.Errorf("unknown qr: want 404, got %d", status)
	}
}

func TestHandler_GetChallenge(t *testing.T) {
	ts := newTestServer(t)
	ts.registerAndLogin(t, "alice@example.com")
	token := ts.scan(t, "qr-library")

	status, body := ts.do(t, http.MethodGet, "/get_challenge/"+token, nil)
	if status != http.StatusOK {
		t.Fatalf("status: want 200, got %d body %v", status, body)
	}
	if body["question"] == nil || body["points"].(float64) != 100 {
		t.Errorf("challenge body: got %v", body)
	}
	if _, ok := body["correct_answer"]; ok {
		t.Error("response must not leak the correct answer")
	}

	status, _ = ts.do(t, http.MethodGet, "/get_challenge/bogus-token", nil)
	if status != http.StatusNotFound {
		t.Errorf("bogus token: want 404, got %d", status)
	}

	ts.store.ExpireToken(token)
	status, _ = ts.do(t, http.MethodGet, "/get_challenge/"+token, nil)
	if status != http.StatusForbidden {
		t.Errorf("expired token: want 403, got %d", status)
	}
}

func TestHandler_ValidateAnswer(t *testing.T) {
	ts := newTestServer(t)
	ts.registerAndLogin(t, "alice@example.com")
	token := ts.scan(t, "qr-library")

	status, body := ts.do(t, http.MethodPost, "/validate_answer/"+token, map[string]string{"answer": "1905"})
	if status != http.StatusOK {
		t.Fatalf("wrong answer: status %d body %v", status, body)
	}
	if body["correct"] != false {
		t.Errorf("wrong answer: got %v", body)
	}
	if _, ok := body["points"]; ok {
		t.Error("wrong answer must not carry points")
	}

	status, body = ts.do(t, http.MethodPost, "/validate_answer/"+token, map[string]string{"answer": "1897"})
	if status != http.StatusOK {
		t.Fatalf("right answer: status %d body %v", status, body)
	}
	if body["correct"] != true || body["points"].(float64) != 100 {
		t.Errorf("right answer: got %v", body)
	}

	// Completed location rejects further submissions
	status, _ = ts.do(t, http.MethodPost, "/validate_answer/"+token, map[string]string{"answer": "1897"})
	if status != http.StatusForbidden {
		t.Errorf("resubmission: want 403, got %d", status)
	}
}

func TestHandler_UpdateUserProgress(t *testing.T) {
	ts := newTestServer(t)
	ts.registerAndLogin(t, "alice@example.com")
	token := ts.scan(t, "qr-library")

	status, body := ts.do(t, http.MethodPost, "/update_user_progress/"+token, nil)
	if status != http.StatusOK || body["message"] == nil {
		t.Errorf("commit: status %d body %v", status, body)
	}

	status, _ = ts.do(t, http.MethodPost, "/update_user_progress/bogus", nil)
	if status != http.StatusNotFound {
		t.Errorf("bogus token: want 404, got %d", status)
	}
}

func TestHandler_GetNextHint(t *testing.T) {
	ts := newTestServer(t)
	ts.registerAndLogin(t, "alice@example.com")
	token := ts.scan(t, "qr-library")

	status, body := ts.do(t, http.MethodGet, "/get_next_hint/"+token, nil)
	if status != http.StatusOK {
		t.Fatalf("status: want 200, got %d body %v", status, body)
	}
	if body["hint"] != "Check the cornerstone." {
		t.Errorf("hint: got %v", body)
	}

	// The only hint is spent; the next request is the terminal message
	status, body = ts.do(t, http.MethodGet, "/get_next_hint/"+token, nil)
	if status != http.StatusOK {
		t.Fatalf("status: want 200, got %d", status)
	}
	if body["hint"] != nil || body["message"] == nil {
		t.Errorf("exhausted hints: got %v", body)
	}
}

func TestHandler_Leaderboard(t *testing.T) {
	ts := newTestServer(t)
	ts.registerAndLogin(t, "alice@example.com")
	token := ts.scan(t, "qr-library")
	ts.do(t, http.MethodPost, "/validate_answer/"+token, map[string]string{"answer": "1897"})

	req := httptest.NewRequest(http.MethodGet, "/leaderboard", nil)
	req.Header.Set("Authorization", "Bearer "+ts.bearer)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: want 200, got %d", rec.Code)
	}
	var ranking []domain.RankedPlayer
	if err := json.Unmarshal(rec.Body.Bytes(), &ranking); err != nil {
		t.Fatalf("unmarshaling ranking %q: %v", rec.Body.String(), err)
	}
	if len(ranking) != 1 {
		t.Fatalf("ranking size: want 1, got %d", len(ranking))
	}
	got := ranking[0]
	if got.Rank != 1 || got.Name != "Alice Adams" || got.Email != "alice@example.com" || got.Points != 100 {
		t.Errorf("ranking row: got %+v", got)
	}
}

func TestHandler_UserData(t *testing.T) {
	ts := newTestServer(t)
	ts.registerAndLogin(t, "alice@example.com")
	token := ts.scan(t, "qr-library")
	ts.do(t, http.MethodPost, "/validate_answer/"+token, map[string]string{"answer": "1897"})

	status, body := ts.do(t, http.MethodGet, "/user-data", nil)
	if status != http.StatusOK {
		t.Fatalf("status: want 200, got %d", status)
	}
	if body["name"] != "Alice Adams" || body["points"].(float64) != 100 {
		t.Errorf("user data: got %v", body)
	}
}

func TestHandler_Health(t *testing.T) {
	ts := newTestServer(t)

	status, body := ts.do(t, http.MethodGet, "/health", nil)
	if status != http.StatusOK || body["status"] != "healthy" {
		t.Errorf("health: status %d body %v", status, body)
	}
	status, body = ts.do(t, http.MethodGet, "/ready", nil)
	if status != http.StatusOK || body["status"] != "ready" {
		t.Errorf("ready: status %d body %v", status, body)
	}
}

func TestHandler_CORS(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/scan-qr", nil)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("preflight status: want 200, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS origin header")
	}
}
