package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"golfpools/worker/internal/config"
	"golfpools/worker/internal/tasks"
)

// Scheduler drives the fixed-cadence jobs: the supervisor every minute,
// the daily bootstrap, finalizer, substitution engine and the weekly
// housekeeping. Each trigger enqueues the job onto the shared worker
// pool rather than running inline, so a slow job never stalls cron.
type Scheduler struct {
	cfg   *config.Config
	deps  *tasks.Deps
	queue *tasks.Queue
	cron  *cron.Cron
}

// NewScheduler creates a new scheduler instance
func NewScheduler(cfg *config.Config, deps *tasks.Deps, queue *tasks.Queue) *Scheduler {
	return &Scheduler{
		cfg:   cfg,
		deps:  deps,
		queue: queue,
		cron:  cron.New(),
	}
}

// Start registers every cadenced job and starts the cron loop.
func (s *Scheduler) Start() error {
	jobs := []struct {
		name string
		spec string
		fn   tasks.Func
		opts tasks.Options
	}{
		{
			name: tasks.TaskSupervisor,
			spec: s.cfg.SupervisorCron,
			fn:   s.deps.Supervise,
			// The supervisor must never pile up behind itself.
			opts: tasks.Options{HardLimit: 50 * time.Second},
		},
		{
			name: tasks.TaskDailySchedule,
			spec: s.cfg.DailyCron,
			fn:   s.deps.DailySchedule,
			opts: tasks.Options{MaxRetries: 2, RetryDelay: time.Minute},
		},
		{
			name: "finalize_leagues",
			spec: s.cfg.FinalizerCron,
			fn:   s.deps.FinalizeLeagues,
			opts: tasks.Options{MaxRetries: 2, RetryDelay: time.Minute},
		},
		{
			name: "substitute_withdrawn",
			spec: s.cfg.SubstitutionCron,
			fn:   s.deps.SubstituteWithdrawn,
			opts: tasks.Options{MaxRetries: 2, RetryDelay: time.Minute},
		},
		{
			name: "deadline_reminders",
			spec: s.cfg.ReminderCron,
			fn:   s.deps.SendDeadlineReminders,
			opts: tasks.Options{MaxRetries: 1},
		},
		{
			name: "weekly_score_reset",
			spec: s.cfg.ScoreResetCron,
			fn:   s.deps.ResetWeeklyScores,
			opts: tasks.Options{MaxRetries: 2, RetryDelay: time.Minute},
		},
		{
			name: "refresh_buckets",
			spec: s.cfg.BucketCron,
			fn:   s.deps.RefreshBuckets,
			opts: tasks.Options{MaxRetries: 2, RetryDelay: time.Minute},
		},
	}

	for _, j := range jobs {
		j := j
		if _, err := s.cron.AddFunc(j.spec, func() {
			s.queue.Enqueue(j.name, j.fn, j.opts)
		}); err != nil {
			return fmt.Errorf("failed to schedule %s: %w", j.name, err)
		}
		log.Info().Str("job", j.name).Str("schedule", j.spec).Msg("Job scheduled")
	}

	s.cron.Start()
	log.Info().Msg("Scheduler started")
	return nil
}

// Stop halts the cron loop. Jobs already on the queue drain normally.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info().Msg("Scheduler stopped")
}
