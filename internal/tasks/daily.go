package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"golfpools/worker/internal/feed"
	"golfpools/worker/internal/metrics"
)

// DailySchedule is the once-per-tournament-day bootstrap. It marks the
// tracker row for today (the insert doubles as the dedupe: whichever
// run claims the row first proceeds, racers back off), then computes
// each tour's poll window from tee times and launches the first poller.
func (d *Deps) DailySchedule(ctx context.Context) error {
	today := d.now().UTC()

	first, err := d.Tracker.MarkRan(ctx, TaskDailySchedule, today)
	if err != nil {
		return fmt.Errorf("mark daily schedule: %w: %w", ErrStoreUnavailable, err)
	}
	if !first {
		log.Info().Str("date", today.Format("2006-01-02")).Msg("Daily schedule already ran today")
		return nil
	}

	log.Info().
		Str("date", today.Format("2006-01-02")).
		Strs("tours", d.Cfg.Tours).
		Msg("Running daily schedule")

	// Per-tour failures are isolated: one tour's feed outage must not
	// block the others.
	for _, tour := range d.Cfg.Tours {
		if err := d.scheduleTour(ctx, tour); err != nil {
			metrics.RecordError("daily_scheduler", "tour_schedule")
			log.Error().Err(err).Str("tour", tour).Msg("Failed to schedule tour, continuing with others")
		}
	}

	return nil
}

// scheduleTour computes the poll window for one tour and enqueues the
// first poller invocation. A tour with no tee times published yet is
// skipped without error.
func (d *Deps) scheduleTour(ctx context.Context, tour string) error {
	field, err := d.Feed.FieldUpdates(ctx, tour)
	if err != nil {
		return fmt.Errorf("fetch field for %s: %w", tour, err)
	}
	if field == nil || len(field.Players) == 0 {
		log.Info().Str("tour", tour).Msg("No field data for tour, skipping")
		return nil
	}

	earliest, latest, ok := teeTimeWindow(field.Players)
	if !ok {
		log.Info().Str("tour", tour).Str("event", field.EventName).Msg("No tee times published yet, skipping tour")
		return nil
	}

	start := earliest.Add(d.Cfg.PollStartOffset)
	deadline := latest.Add(d.Cfg.PollWindowAfter)

	now := d.now()
	if !deadline.After(now) {
		log.Info().
			Str("tour", tour).
			Time("deadline", deadline).
			Msg("Poll window already closed, skipping tour")
		return nil
	}
	if start.Before(now) {
		start = now
	}

	log.Info().
		Str("tour", tour).
		Str("event", field.EventName).
		Int("round", field.CurrentRound).
		Time("first_poll", start).
		Time("deadline", deadline).
		Msg("Scheduling poller for tour")

	d.SchedulePoller(tour, deadline, start, "daily")
	return nil
}

// teeTimeWindow returns the earliest and latest published tee time for
// the current round. ok is false when no player has one yet.
func teeTimeWindow(players []feed.FieldPlayer) (earliest, latest time.Time, ok bool) {
	for _, p := range players {
		t, valid := p.RoundTeeTime()
		if !valid {
			continue
		}
		if !ok {
			earliest, latest, ok = t, t, true
			continue
		}
		if t.Before(earliest) {
			earliest = t
		}
		if t.After(latest) {
			latest = t
		}
	}
	return
}
