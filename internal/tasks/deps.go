package tasks

import (
	"context"
	"time"

	"golfpools/worker/internal/config"
	"golfpools/worker/internal/feed"
	"golfpools/worker/internal/lock"
	"golfpools/worker/internal/models"
	"golfpools/worker/internal/notify"
)

// Task names used for lock keys and tracker rows.
const (
	TaskPollScores    = "poll_scores"
	TaskDailySchedule = "daily_schedule"
	TaskSupervisor    = "supervisor"
)

// LeagueStore is the slice of league persistence the tasks need.
type LeagueStore interface {
	ActiveByTour(ctx context.Context, tour string) ([]*models.League, error)
	ActiveTours(ctx context.Context) ([]string, error)
	EndedUnfinalized(ctx context.Context) ([]*models.League, error)
	OpenForSubstitution(ctx context.Context) ([]*models.League, error)
	NeedingReminder(ctx context.Context, window time.Duration) ([]*models.League, error)
	MarkReminderSent(ctx context.Context, leagueID int) error
	SetWinners(ctx context.Context, leagueID int, winnerUserIDs []int) error
}

type PlayerStore interface {
	Upsert(ctx context.Context, player *models.Player) error
	ByDGIDs(ctx context.Context, dgIDs []int64) (map[int64]*models.Player, error)
	ByIDs(ctx context.Context, ids []int) (map[int]*models.Player, error)
	UpdateScores(ctx context.Context, updates []models.ScoreUpdate) error
	ResetScores(ctx context.Context) (int64, error)
}

type EntryStore interface {
	ByLeague(ctx context.Context, leagueID int) ([]*models.Entry, error)
	SwapPlayer(ctx context.Context, entryID, fromPlayerID, toPlayerID int, totalOdds float64) error
}

type ScoreStore interface {
	ExistsForLeague(ctx context.Context, leagueID int) (bool, error)
	ArchiveLeague(ctx context.Context, leagueID int, scores []models.HistoricalScore) error
	ByLeague(ctx context.Context, leagueID int) (map[int]int, error)
}

type TrackerStore interface {
	MarkRan(ctx context.Context, taskName string, day time.Time) (bool, error)
	RanOn(ctx context.Context, taskName string, day time.Time) (bool, error)
}

type BucketStore interface {
	ExistsByName(ctx context.Context, name string) (bool, error)
	Create(ctx context.Context, bucket *models.Bucket, playerIDs []int) error
	PlayersForLeague(ctx context.Context, leagueID int) ([]*models.Player, error)
	DeleteStale(ctx context.Context, before time.Time) (int64, error)
}

// Feed is the external sports-data client.
type Feed interface {
	LiveStats(ctx context.Context, tour string) ([]feed.LiveStat, error)
	FieldUpdates(ctx context.Context, tour string) (*feed.FieldUpdate, error)
}

// Invalidator drops read-side caches after score writes. Fire-and-forget.
type Invalidator interface {
	InvalidateScores(ctx context.Context, tour string)
	InvalidateLeaderboard(ctx context.Context, leagueID int)
	PublishScoresChanged(ctx context.Context, tour string)
}

// Deps is the explicit context object every task runs against. It is
// constructed once per process and passed into each invocation, so no
// task touches hidden shared state.
type Deps struct {
	Cfg      *config.Config
	Locker   lock.Locker
	Queue    Enqueuer
	Feed     Feed
	Leagues  LeagueStore
	Players  PlayerStore
	Entries  EntryStore
	Scores   ScoreStore
	Tracker  TrackerStore
	Buckets  BucketStore
	Notifier notify.Notifier
	Cache    Invalidator

	// Clock override for tests. Nil means time.Now.
	Clock func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Clock != nil {
		return d.Clock()
	}
	return time.Now()
}

// pollOptions are the queue options every poller invocation (first or
// continuation) runs with, minus scheduling fields.
func (d *Deps) pollOptions() Options {
	return Options{
		MaxRetries: d.Cfg.PollMaxRetries,
		RetryDelay: d.Cfg.PollRetryBackoff,
		SoftLimit:  d.Cfg.PollSoftTimeout,
		HardLimit:  d.Cfg.PollHardTimeout,
	}
}
