package tasks

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"golfpools/worker/internal/lock"
	"golfpools/worker/internal/metrics"
)

// Supervise is the watchdog that runs every minute. It verifies the
// daily bootstrap happened on tournament days (and triggers it if not)
// and checks that a live poller lock exists for every tour with active
// leagues. The second check is diagnostic only: restarting a poller
// here would race the lock TTL of a poller that is merely slow.
func (d *Deps) Supervise(ctx context.Context) error {
	// Short-TTL self-lock so overlapping supervisor runs don't duplicate
	// the bootstrap trigger.
	key := lock.Key(TaskSupervisor)
	owner := uuid.NewString()

	acquired, err := d.Locker.Acquire(ctx, key, owner, d.Cfg.SupervisorLockTTL)
	if err != nil {
		return fmt.Errorf("acquire supervisor lock: %w: %w", ErrStoreUnavailable, err)
	}
	if !acquired {
		log.Debug().Msg("Supervisor already running elsewhere, skipping")
		return nil
	}
	defer func() {
		if err := d.Locker.Release(ctx, key, owner); err != nil {
			log.Warn().Err(err).Msg("Failed to release supervisor lock")
		}
	}()

	now := d.now()

	if d.Cfg.TournamentWeekdays()[now.Weekday()] {
		if err := d.checkDailyBootstrap(ctx); err != nil {
			metrics.RecordError("supervisor", "bootstrap_check")
			log.Error().Err(err).Msg("Daily bootstrap check failed")
		}
	}

	if err := d.checkLivePollers(ctx); err != nil {
		metrics.RecordError("supervisor", "poller_check")
		log.Error().Err(err).Msg("Live poller check failed")
	}

	return nil
}

// checkDailyBootstrap self-heals a missed daily schedule: if today's
// tracker row is absent on a tournament day, the bootstrap is enqueued.
// The tracker insert inside DailySchedule keeps this exactly-once even
// if two supervisors race past the read.
func (d *Deps) checkDailyBootstrap(ctx context.Context) error {
	today := d.now().UTC()

	ran, err := d.Tracker.RanOn(ctx, TaskDailySchedule, today)
	if err != nil {
		return fmt.Errorf("check tracker: %w: %w", ErrStoreUnavailable, err)
	}
	if ran {
		return nil
	}

	log.Warn().
		Str("date", today.Format("2006-01-02")).
		Msg("Daily schedule missing on tournament day, triggering bootstrap")

	d.Queue.Enqueue(TaskDailySchedule, d.DailySchedule, Options{
		MaxRetries: 1,
		RetryDelay: defaultRetryDelay,
	})
	return nil
}

// checkLivePollers warns when a tour has active leagues but no live
// poller lock. It never restarts the poller itself.
func (d *Deps) checkLivePollers(ctx context.Context) error {
	tours, err := d.Leagues.ActiveTours(ctx)
	if err != nil {
		return fmt.Errorf("load active tours: %w: %w", ErrStoreUnavailable, err)
	}

	for _, tour := range tours {
		held, err := d.Locker.AnyHeld(ctx, lock.KeyPrefix(TaskPollScores, tour))
		if err != nil {
			log.Warn().Err(err).Str("tour", tour).Msg("Could not inspect poller locks")
			continue
		}
		if !held {
			log.Warn().
				Str("tour", tour).
				Msg("Active leagues on tour but no live poller lock found")
		}
	}
	return nil
}
