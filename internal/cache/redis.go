package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	scoresKeyFormat      = "golfpools:scores:%s"
	leaderboardKeyFormat = "golfpools:leaderboard:%d"

	// ScoresChangedChannel carries tour names whenever a poll cycle
	// writes new scores, so API nodes can push live updates.
	ScoresChangedChannel = "golfpools:scores_changed"
)

// Cache invalidates cached score views and broadcasts change events.
// All operations are best-effort: a dead Redis never fails a poll cycle.
type Cache struct {
	client *redis.Client
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, addr, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Cache{client: client}, nil
}

// NewFromClient wraps an existing client, sharing the lock manager's connection.
func NewFromClient(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// InvalidateScores drops the cached live-score view for a tour.
func (c *Cache) InvalidateScores(ctx context.Context, tour string) {
	key := fmt.Sprintf(scoresKeyFormat, tour)
	if err := c.client.Del(ctx, key).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to invalidate score cache")
	}
}

// InvalidateLeaderboard drops the cached leaderboard for a league.
func (c *Cache) InvalidateLeaderboard(ctx context.Context, leagueID int) {
	key := fmt.Sprintf(leaderboardKeyFormat, leagueID)
	if err := c.client.Del(ctx, key).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to invalidate leaderboard cache")
	}
}

// PublishScoresChanged notifies subscribers that a tour's scores moved.
func (c *Cache) PublishScoresChanged(ctx context.Context, tour string) {
	if err := c.client.Publish(ctx, ScoresChangedChannel, tour).Err(); err != nil {
		log.Warn().Err(err).Str("tour", tour).Msg("Failed to publish score change event")
	}
}

// Close releases the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}
