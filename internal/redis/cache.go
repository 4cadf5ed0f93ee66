package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/campus-hunt/internal/config"
	"github.com/campus-hunt/internal/domain"
	"github.com/redis/go-redis/v9"
)

const rankingKey = "hunt:leaderboard:ranking"

// RankingCache caches the computed leaderboard ranking in Redis. Postgres
// stays the source of truth; the cache only absorbs repeated reads between
// completions.
type RankingCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRankingCache creates a ranking cache backed by Redis
func NewRankingCache(cfg *config.RedisConfig, ttl time.Duration, logger *slog.Logger) (*RankingCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &RankingCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}, nil
}

// Close closes the Redis connection
func (c *RankingCache) Close() error {
	return c.client.Close()
}

// GetRanking returns the cached ranking, or (nil, nil) on a miss
func (c *RankingCache) GetRanking(ctx context.Context) ([]domain.RankedPlayer, error) {
	data, err := c.client.Get(ctx, rankingKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting cached ranking: %w", err)
	}

	var ranking []domain.RankedPlayer
	if err := json.Unmarshal(data, &ranking); err != nil {
		return nil, fmt.Errorf("unmarshaling cached ranking: %w", err)
	}
	return ranking, nil
}

// SetRanking stores the ranking with the configured TTL
func (c *RankingCache) SetRanking(ctx context.Context, ranking []domain.RankedPlayer) error {
	data, err := json.Marshal(ranking)
	if err != nil {
		return fmt.Errorf("marshaling ranking: %w", err)
	}
	if err := c.client.Set(ctx, rankingKey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("setting cached ranking: %w", err)
	}
	return nil
}

// Invalidate drops the cached ranking so the next read recomputes it
func (c *RankingCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, rankingKey).Err(); err != nil {
		return fmt.Errorf("invalidating cached ranking: %w", err)
	}
	return nil
}
