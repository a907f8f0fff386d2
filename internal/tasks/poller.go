package tasks

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"golfpools/worker/internal/feed"
	"golfpools/worker/internal/lock"
	"golfpools/worker/internal/metrics"
	"golfpools/worker/internal/models"
)

// SchedulePoller enqueues one poller invocation for (tour, deadline).
// The deadline doubles as the task's absolute expiry, so a stale
// continuation never fires past its window.
func (d *Deps) SchedulePoller(tour string, deadline time.Time, eta time.Time, source string) {
	opts := d.pollOptions()
	opts.ETA = eta
	opts.ExpiresAt = deadline

	d.Queue.Enqueue(TaskPollScores, func(ctx context.Context) error {
		return d.PollScores(ctx, tour, deadline)
	}, opts)

	metrics.PollersScheduled.WithLabelValues(tour, source).Inc()
	log.Info().
		Str("tour", tour).
		Time("eta", eta).
		Time("deadline", deadline).
		Str("source", source).
		Msg("Poller scheduled")
}

// PollScores runs one cycle of the self-rescheduling score poller for a
// tour. Each cycle carries only (tour, deadline); everything else is
// rebuilt from persisted state, so a crashed worker loses at most one
// cycle.
func (d *Deps) PollScores(ctx context.Context, tour string, deadline time.Time) error {
	key := pollLockKey(tour, deadline)
	owner := uuid.NewString()

	acquired, err := d.Locker.Acquire(ctx, key, owner, d.Cfg.PollLockTTL)
	if err != nil {
		return fmt.Errorf("acquire poll lock: %w: %w", ErrStoreUnavailable, err)
	}
	if !acquired {
		metrics.RecordLockAttempt(TaskPollScores, "held")
		log.Info().
			Str("tour", tour).
			Time("deadline", deadline).
			Msg("Skipped duplicate poll cycle, lock held elsewhere")
		return nil
	}
	metrics.RecordLockAttempt(TaskPollScores, "acquired")

	// Release on every exit path, on a context detached from the task's
	// cancellation: a cycle cut short by its time limit must still drop
	// the lock, or the queued retry finds it held and skips itself. The
	// owner token makes a late release harmless: it never drops a lock a
	// newer cycle has since acquired.
	releaseCtx := context.WithoutCancel(ctx)
	released := false
	defer func() {
		if released {
			return
		}
		if err := d.Locker.Release(releaseCtx, key, owner); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to release poll lock, TTL will expire it")
		}
	}()

	start := d.now()
	if err := d.pollCycle(ctx, tour); err != nil {
		metrics.RecordPollCycle(tour, "error", d.now().Sub(start).Seconds())
		return err
	}
	metrics.RecordPollCycle(tour, "ok", d.now().Sub(start).Seconds())
	metrics.LastSuccessfulPoll.SetToCurrentTime()

	// Reschedule decision: continue only while some league on the tour
	// is still being scored and the window has not closed.
	leagues, err := d.Leagues.ActiveByTour(ctx, tour)
	if err != nil {
		return fmt.Errorf("check active leagues: %w: %w", ErrStoreUnavailable, err)
	}

	now := d.now()
	switch {
	case len(leagues) == 0:
		log.Info().Str("tour", tour).Msg("No active leagues remain, poller stopping")
		return nil
	case !now.Before(deadline):
		log.Info().Str("tour", tour).Time("deadline", deadline).Msg("Poll window closed, poller stopping")
		return nil
	}

	// Release before enqueueing the continuation so it never collides
	// with our own lock.
	if err := d.Locker.Release(releaseCtx, key, owner); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to release poll lock before reschedule")
	}
	released = true

	d.SchedulePoller(tour, deadline, now.Add(d.Cfg.PollInterval), "reschedule")
	return nil
}

// pollCycle fetches live stats for a tour, writes changed scores and
// emits rank-change notifications. A feed with no data is not an error;
// the next cycle sees a fresh response.
func (d *Deps) pollCycle(ctx context.Context, tour string) error {
	stats, err := d.Feed.LiveStats(ctx, tour)
	if err != nil {
		return fmt.Errorf("fetch live stats for %s: %w", tour, err)
	}
	if len(stats) == 0 {
		log.Debug().Str("tour", tour).Msg("Feed has no live data for tour")
		return nil
	}

	dgIDs := make([]int64, 0, len(stats))
	for _, s := range stats {
		dgIDs = append(dgIDs, s.DGID)
	}
	players, err := d.Players.ByDGIDs(ctx, dgIDs)
	if err != nil {
		return fmt.Errorf("load players: %w: %w", ErrStoreUnavailable, err)
	}

	updates := buildScoreUpdates(stats, players, d.Cfg.StatusPenalty)
	if len(updates) == 0 {
		log.Debug().Str("tour", tour).Msg("No score changes this cycle")
		return nil
	}

	leagues, err := d.Leagues.ActiveByTour(ctx, tour)
	if err != nil {
		return fmt.Errorf("load active leagues: %w: %w", ErrStoreUnavailable, err)
	}

	// Snapshot per-league ranks before the write so we can diff after.
	// Entries only compete within their own league.
	before, entriesByLeague, err := d.snapshotRanks(ctx, leagues)
	if err != nil {
		return err
	}

	if err := d.Players.UpdateScores(ctx, updates); err != nil {
		return fmt.Errorf("write scores: %w: %w", ErrStoreUnavailable, err)
	}
	metrics.ScoresUpdated.WithLabelValues(tour).Add(float64(len(updates)))

	log.Info().
		Str("tour", tour).
		Int("updated", len(updates)).
		Msg("Player scores updated")

	d.Cache.InvalidateScores(ctx, tour)
	d.Cache.PublishScoresChanged(ctx, tour)

	after, _, err := d.snapshotRanks(ctx, leagues)
	if err != nil {
		return err
	}

	for _, league := range leagues {
		d.Cache.InvalidateLeaderboard(ctx, league.ID)
		d.notifyRankChanges(ctx, league.ID, entriesByLeague[league.ID], before[league.ID], after[league.ID])
	}

	return nil
}

// pollLockKey derives the lock key for one (tour, deadline) poll window.
// Tour and deadline are plain segments so the supervisor can scan per
// tour with a prefix match.
func pollLockKey(tour string, deadline time.Time) string {
	return lock.Key(TaskPollScores, tour, strconv.FormatInt(deadline.Unix(), 10))
}

// buildScoreUpdates maps feed stats to batched writes, skipping players
// whose recorded state already matches. Withdrawn, cut and disqualified
// players take the fixed penalty on top of their feed total.
func buildScoreUpdates(stats []feed.LiveStat, players map[int64]*models.Player, penalty int) []models.ScoreUpdate {
	updates := make([]models.ScoreUpdate, 0, len(stats))
	for _, s := range stats {
		p, ok := players[s.DGID]
		if !ok {
			continue
		}

		status := s.PlayerStatus()
		score := s.Total
		if status.CarriesPenalty() {
			score += penalty
		}

		thru := p.Thru
		if s.Thru != nil {
			thru = sql.NullInt32{Int32: int32(*s.Thru), Valid: true}
		}

		if score == p.CurrentScore && status == p.Status && thru == p.Thru {
			continue
		}

		updates = append(updates, models.ScoreUpdate{
			PlayerID: p.ID,
			Score:    score,
			Status:   status,
			Thru:     thru,
		})
	}
	return updates
}

// snapshotRanks computes each league's per-entry rank from the players'
// current scores. It returns ranks keyed by league then entry id, plus
// the loaded entries for reuse.
func (d *Deps) snapshotRanks(ctx context.Context, leagues []*models.League) (map[int]map[int]int, map[int][]*models.Entry, error) {
	ranks := make(map[int]map[int]int, len(leagues))
	entriesByLeague := make(map[int][]*models.Entry, len(leagues))

	for _, league := range leagues {
		entries, err := d.Entries.ByLeague(ctx, league.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("load entries for league %d: %w: %w", league.ID, ErrStoreUnavailable, err)
		}
		entriesByLeague[league.ID] = entries

		ids := make([]int, 0, len(entries)*3)
		for _, e := range entries {
			ids = append(ids, e.PlayerIDs[:]...)
		}
		players, err := d.Players.ByIDs(ctx, ids)
		if err != nil {
			return nil, nil, fmt.Errorf("load players for league %d: %w: %w", league.ID, ErrStoreUnavailable, err)
		}

		scores := make(map[int]int, len(players))
		for id, p := range players {
			scores[id] = p.CurrentScore
		}
		ranks[league.ID] = entryRanks(entries, scores)
	}

	return ranks, entriesByLeague, nil
}

// entryRanks ranks entries within one league, ascending total score.
// Tied totals share a rank (competition ranking).
func entryRanks(entries []*models.Entry, scores map[int]int) map[int]int {
	totals := make(map[int]int, len(entries))
	for _, e := range entries {
		total := 0
		for _, pid := range e.PlayerIDs {
			total += scores[pid]
		}
		totals[e.ID] = total
	}

	ranks := make(map[int]int, len(entries))
	for _, e := range entries {
		rank := 1
		for _, other := range entries {
			if totals[other.ID] < totals[e.ID] {
				rank++
			}
		}
		ranks[e.ID] = rank
	}
	return ranks
}

// notifyRankChanges emits a notification for every entry that moved by
// at least the configured threshold or that entered or left first place.
func (d *Deps) notifyRankChanges(ctx context.Context, leagueID int, entries []*models.Entry, before, after map[int]int) {
	for _, e := range entries {
		old, ok := before[e.ID]
		if !ok {
			continue
		}
		now, ok := after[e.ID]
		if !ok || now == old {
			continue
		}

		moved := now - old
		if moved < 0 {
			moved = -moved
		}
		crossedFirst := (old == 1) != (now == 1)

		if moved >= d.Cfg.RankChangeThreshold || crossedFirst {
			d.Notifier.RankChanged(ctx, leagueID, e.ID, e.EntryName, old, now)
		}
	}
}
