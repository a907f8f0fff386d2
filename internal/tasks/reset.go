package tasks

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// ResetWeeklyScores zeroes every player's live score between tournament
// weeks. Finalized leagues are unaffected: their totals read from the
// archived snapshot, never from live scores.
func (d *Deps) ResetWeeklyScores(ctx context.Context) error {
	n, err := d.Players.ResetScores(ctx)
	if err != nil {
		return fmt.Errorf("reset scores: %w: %w", ErrStoreUnavailable, err)
	}

	for _, tour := range d.Cfg.Tours {
		d.Cache.InvalidateScores(ctx, tour)
	}

	log.Info().Int64("players", n).Msg("Weekly score reset complete")
	return nil
}
