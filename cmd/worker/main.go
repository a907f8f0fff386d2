package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golfpools/worker/internal/cache"
	"golfpools/worker/internal/config"
	"golfpools/worker/internal/feed"
	"golfpools/worker/internal/lock"
	"golfpools/worker/internal/metrics"
	"golfpools/worker/internal/notify"
	"golfpools/worker/internal/repository"
	"golfpools/worker/internal/scheduler"
	"golfpools/worker/internal/tasks"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	setupLogger()

	log.Info().Msg("Starting GolfPools Scoring Worker")

	cfg := config.MustLoad()
	log.Info().
		Str("env", cfg.AppEnv).
		Str("log_level", cfg.LogLevel).
		Strs("tours", cfg.Tours).
		Msg("Configuration loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("Received shutdown signal, gracefully shutting down...")
		cancel()
	}()

	// Data Golf feed client
	feedClient := feed.NewClient(cfg.DataGolfBaseURL, cfg.DataGolfAPIKey, cfg.DataGolfTimeout)
	log.Info().Msg("Data Golf client initialized")

	// Database connection
	dbConfig := repository.Config{
		Host:     cfg.DatabaseHost,
		Port:     strconv.Itoa(cfg.DatabasePort),
		User:     cfg.DatabaseUser,
		Password: cfg.DatabasePassword,
		Database: cfg.DatabaseName,
		SSLMode:  cfg.DatabaseSSLMode,
	}

	db, err := repository.NewDatabase(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("Database connection established")

	// Redis backs both the distributed lock store and cache invalidation.
	// Without it a single worker falls back to in-process locks; running
	// multiple workers in that state would break mutual exclusion.
	var locker lock.Locker
	var invalidator tasks.Invalidator

	redisLocker, err := lock.NewRedisLocker(ctx, cfg.RedisAddr(), cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to connect to Redis - falling back to in-process locks")
		locker = lock.NewMemoryLocker()
		invalidator = cache.NoopCache{}
	} else {
		defer redisLocker.Close()
		locker = redisLocker

		redisCache, err := cache.New(ctx, cfg.RedisAddr(), cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to connect Redis cache - continuing without invalidation")
			invalidator = cache.NoopCache{}
		} else {
			defer redisCache.Close()
			invalidator = redisCache
		}
		log.Info().Msg("Redis connected")
	}

	// Task queue and the shared dependency context
	queue := tasks.NewQueue(cfg.QueueWorkers)

	deps := &tasks.Deps{
		Cfg:      cfg,
		Locker:   locker,
		Queue:    queue,
		Feed:     feedClient,
		Leagues:  db.Leagues,
		Players:  db.Players,
		Entries:  db.Entries,
		Scores:   db.Scores,
		Tracker:  db.Tracker,
		Buckets:  db.Buckets,
		Notifier: notify.NewLogNotifier(),
		Cache:    invalidator,
	}

	queue.Start(ctx)

	// Metrics HTTP server
	if cfg.EnableMetrics {
		go startMetricsServer(cfg.MetricsPort)
	}

	// System uptime and pool gauges
	startTime := time.Now()
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				metrics.SystemUptime.Set(time.Since(startTime).Seconds())
				stats := db.Pool.Stat()
				metrics.DBConnectionsActive.Set(float64(stats.AcquiredConns()))
				metrics.DBConnectionsIdle.Set(float64(stats.IdleConns()))
			case <-ctx.Done():
				return
			}
		}
	}()

	// Cron-driven triggers
	sched := scheduler.NewScheduler(cfg, deps, queue)
	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}

	// Catch up immediately if today's bootstrap was missed while the
	// worker was down, instead of waiting for the first supervisor tick.
	queue.Enqueue(tasks.TaskSupervisor, deps.Supervise, tasks.Options{})

	<-ctx.Done()

	log.Info().Msg("Shutting down scheduler...")
	sched.Stop()
	queue.Stop()

	log.Info().Msg("Worker shutdown complete")
}

// setupLogger configures the zerolog logger
func setupLogger() {
	// Pretty console logging in development
	if os.Getenv("APP_ENV") == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}

	// Set log level
	level := zerolog.InfoLevel
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		parsedLevel, err := zerolog.ParseLevel(lvl)
		if err == nil {
			level = parsedLevel
		}
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("level", level.String()).
		Msg("Logger initialized")
}

// startMetricsServer starts the Prometheus metrics HTTP server
func startMetricsServer(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	addr := fmt.Sprintf(":%d", port)
	log.Info().Str("addr", addr).Msg("Metrics server listening")

	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error().Err(err).Msg("Metrics server failed")
	}
}
