// Command manualfinalize runs one finalizer pass from the command line.
// Useful when a league's tie-breaker answer was entered late and the
// operator wants winners computed now instead of on the next cron tick.
package main

import (
	"context"
	"fmt"
	"strconv"

	"golfpools/worker/internal/cache"
	"golfpools/worker/internal/config"
	"golfpools/worker/internal/feed"
	"golfpools/worker/internal/lock"
	"golfpools/worker/internal/notify"
	"golfpools/worker/internal/repository"
	"golfpools/worker/internal/tasks"

	"github.com/rs/zerolog/log"
)

func main() {
	ctx := context.Background()
	cfg := config.MustLoad()

	db, err := repository.NewDatabase(ctx, repository.Config{
		Host:     cfg.DatabaseHost,
		Port:     strconv.Itoa(cfg.DatabasePort),
		User:     cfg.DatabaseUser,
		Password: cfg.DatabasePassword,
		Database: cfg.DatabaseName,
		SSLMode:  cfg.DatabaseSSLMode,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	log.Info().Msg("Validating service health...")
	if err := db.Health(ctx); err != nil {
		log.Fatal().Err(err).Msg("Database health check failed")
	}

	var invalidator tasks.Invalidator = cache.NoopCache{}
	if redisCache, err := cache.New(ctx, cfg.RedisAddr(), cfg.RedisPassword, cfg.RedisDB); err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, skipping cache invalidation")
	} else {
		defer redisCache.Close()
		invalidator = redisCache
	}

	deps := &tasks.Deps{
		Cfg:      cfg,
		Locker:   lock.NewMemoryLocker(),
		Queue:    noQueue{},
		Feed:     feed.NewClient(cfg.DataGolfBaseURL, cfg.DataGolfAPIKey, cfg.DataGolfTimeout),
		Leagues:  db.Leagues,
		Players:  db.Players,
		Entries:  db.Entries,
		Scores:   db.Scores,
		Tracker:  db.Tracker,
		Buckets:  db.Buckets,
		Notifier: notify.NewLogNotifier(),
		Cache:    invalidator,
	}

	pending, err := db.Leagues.EndedUnfinalized(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list ended leagues")
	}
	if len(pending) == 0 {
		log.Info().Msg("No leagues awaiting finalization. Exiting.")
		return
	}

	log.Info().Int("count", len(pending)).Msg("Leagues awaiting finalization")

	if err := deps.FinalizeLeagues(ctx); err != nil {
		log.Fatal().Err(err).Msg("Finalizer pass failed")
	}

	log.Info().Msg(fmt.Sprintf("Finalizer pass complete (%d leagues examined)", len(pending)))
}

// noQueue rejects scheduling; the finalizer never enqueues work.
type noQueue struct{}

func (noQueue) Enqueue(name string, _ tasks.Func, _ tasks.Options) {
	log.Warn().Str("task", name).Msg("Scheduling is disabled in manualfinalize")
}
