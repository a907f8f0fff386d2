package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"golfpools/worker/internal/metrics"
)

// SendDeadlineReminders notifies every entrant of a league whose entry
// deadline falls inside the reminder window. Each league is reminded
// once: the sent flag is persisted before the next run.
func (d *Deps) SendDeadlineReminders(ctx context.Context) error {
	leagues, err := d.Leagues.NeedingReminder(ctx, d.Cfg.ReminderWindow)
	if err != nil {
		return fmt.Errorf("load leagues needing reminder: %w: %w", ErrStoreUnavailable, err)
	}

	now := d.now()
	for _, league := range leagues {
		hoursLeft := int(league.EntryDeadline().Sub(now) / time.Hour)
		if hoursLeft < 0 {
			continue
		}

		entries, err := d.Entries.ByLeague(ctx, league.ID)
		if err != nil {
			metrics.RecordError("reminders", "load_entries")
			log.Error().Err(err).Int("league_id", league.ID).Msg("Failed to load entries for reminder")
			continue
		}

		// Every entrant hears about the closing deadline. A league with
		// no entries yet still gets its sent flag, so it is not re-checked
		// every hour.
		for _, entry := range entries {
			d.Notifier.DeadlineReminder(ctx, entry.UserID, league.ID, league.Name, hoursLeft)
		}

		if err := d.Leagues.MarkReminderSent(ctx, league.ID); err != nil {
			metrics.RecordError("reminders", "mark_sent")
			log.Error().Err(err).Int("league_id", league.ID).Msg("Failed to mark reminder sent")
			continue
		}

		log.Info().
			Int("league_id", league.ID).
			Str("league", league.Name).
			Int("entrants", len(entries)).
			Int("hours_left", hoursLeft).
			Msg("Deadline reminders sent")
	}
	return nil
}
