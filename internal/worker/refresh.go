package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/campus-hunt/internal/config"
	"github.com/campus-hunt/internal/service"
)

// RefreshWorker periodically recomputes the leaderboard ranking so the Redis
// cache stays warm and connected scoreboard clients see updates even when the
// last completion happened on another instance.
type RefreshWorker struct {
	game    *service.GameService
	config  *config.RefreshConfig
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewRefreshWorker creates a new ranking refresh worker
func NewRefreshWorker(game *service.GameService, cfg *config.RefreshConfig, logger *slog.Logger) *RefreshWorker {
	return &RefreshWorker{
		game:   game,
		config: cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins the background refresh loop
func (w *RefreshWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("ranking refresh worker started", "interval", w.config.Interval)

	go w.run(ctx)
	return nil
}

// Stop stops the background refresh loop
func (w *RefreshWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("ranking refresh worker stopped")
	return nil
}

// IsRunning returns whether the worker is currently running
func (w *RefreshWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// RunOnce runs a single refresh cycle (used at startup for cache warming)
func (w *RefreshWorker) RunOnce(ctx context.Context) {
	w.refresh(ctx)
}

// run is the main worker loop
func (w *RefreshWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.refresh(ctx)
		}
	}
}

func (w *RefreshWorker) refresh(ctx context.Context) {
	startTime := time.Now()

	ranking, err := w.game.RefreshRanking(ctx)
	if err != nil {
		w.logger.Error("failed to refresh ranking", "error", err)
		return
	}

	w.logger.Debug("ranking refreshed",
		"duration", time.Since(startTime),
		"players", len(ranking),
	)
}
