package worker

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/campus-hunt/internal/config"
	"github.com/campus-hunt/internal/domain"
	"github.com/campus-hunt/internal/service"
	"github.com/campus-hunt/internal/service/storetest"
)

func newTestWorker(t *testing.T, interval time.Duration) (*RefreshWorker, *storetest.Store, *storetest.Cache) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := storetest.NewStore()
	cache := storetest.NewCache()
	game := service.NewGameService(st, cache, &config.GameConfig{
		TokenTTL:        15 * time.Minute,
		RankingCacheTTL: time.Minute,
	}, logger)
	w := NewRefreshWorker(game, &config.RefreshConfig{Interval: interval, Enabled: true}, logger)
	return w, st, cache
}

func TestRefreshWorker_RunOnce(t *testing.T) {
	w, st, cache := newTestWorker(t, time.Minute)
	ctx := context.Background()

	if err := st.CreateUser(ctx, &domain.User{ID: "u-1", Email: "alice@example.com", FirstName: "Alice", LastName: "Adams"}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := st.CreateLeaderboardEntry(ctx, "u-1"); err != nil {
		t.Fatalf("CreateLeaderboardEntry: %v", err)
	}

	w.RunOnce(ctx)

	cached, err := cache.GetRanking(ctx)
	if err != nil {
		t.Fatalf("GetRanking: %v", err)
	}
	if len(cached) != 1 || cached[0].Name != "Alice Adams" {
		t.Errorf("warmed cache: got %+v", cached)
	}
}

func TestRefreshWorker_StartStop(t *testing.T) {
	w, _, cache := newTestWorker(t, 10*time.Millisecond)
	ctx := context.Background()

	if w.IsRunning() {
		t.Fatal("worker should not run before Start")
	}
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !w.IsRunning() {
		t.Fatal("worker should report running")
	}

	// Starting again is a no-op
	if err := w.Start(ctx); err != nil {
		t.Fatalf("second Start: %v", err)
	}

	// Let at least one tick land
	deadline := time.Now().Add(time.Second)
	for cache.SetCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if cache.SetCount() == 0 {
		t.Error("expected at least one refresh tick")
	}

	if err := w.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if w.IsRunning() {
		t.Error("worker should report stopped")
	}
}
