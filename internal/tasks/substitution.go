package tasks

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/rs/zerolog/log"

	"golfpools/worker/internal/feed"
	"golfpools/worker/internal/metrics"
	"golfpools/worker/internal/models"
)

// SubstituteWithdrawn swaps withdrawn players out of entries in leagues
// whose entry deadline has passed but which have not ended. A player is
// replaced only if they are absent from the current field AND have no
// recorded progress: someone who withdrew mid-round keeps their score.
func (d *Deps) SubstituteWithdrawn(ctx context.Context) error {
	leagues, err := d.Leagues.OpenForSubstitution(ctx)
	if err != nil {
		return fmt.Errorf("load leagues: %w: %w", ErrStoreUnavailable, err)
	}
	if len(leagues) == 0 {
		return nil
	}

	// One field fetch per tour covers every league on it.
	fields := make(map[string]*feed.FieldUpdate)
	for _, league := range leagues {
		if _, ok := fields[league.Tour]; ok {
			continue
		}
		field, err := d.Feed.FieldUpdates(ctx, league.Tour)
		if err != nil {
			metrics.RecordError("substitution", "field_fetch")
			log.Error().Err(err).Str("tour", league.Tour).Msg("Failed to fetch field, skipping tour")
			continue
		}
		fields[league.Tour] = field
	}

	for _, league := range leagues {
		field := fields[league.Tour]
		if field == nil || len(field.Players) == 0 {
			continue
		}
		if err := d.substituteLeague(ctx, league, field); err != nil {
			metrics.RecordError("substitution", "league")
			log.Error().Err(err).Int("league_id", league.ID).Msg("Substitution failed for league, continuing")
		}
	}
	return nil
}

func (d *Deps) substituteLeague(ctx context.Context, league *models.League, field *feed.FieldUpdate) error {
	entries, err := d.Entries.ByLeague(ctx, league.ID)
	if err != nil {
		return fmt.Errorf("load entries: %w: %w", ErrStoreUnavailable, err)
	}
	if len(entries) == 0 {
		return nil
	}

	pool, err := d.Buckets.PlayersForLeague(ctx, league.ID)
	if err != nil {
		return fmt.Errorf("load player pool: %w: %w", ErrStoreUnavailable, err)
	}

	ids := make([]int, 0, len(entries)*3)
	for _, e := range entries {
		ids = append(ids, e.PlayerIDs[:]...)
	}
	players, err := d.Players.ByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("load entry players: %w: %w", ErrStoreUnavailable, err)
	}

	for _, entry := range entries {
		for _, pid := range entry.PlayerIDs {
			p := players[pid]
			if p == nil {
				continue
			}
			if field.HasPlayer(p.DGID) || p.HasProgress() {
				continue
			}

			sub := pickReplacement(p, entry, pool, field, d.Cfg.OddsWindow)
			if sub == nil {
				metrics.SubstitutionsTotal.WithLabelValues("no_candidate").Inc()
				log.Warn().
					Int("league_id", league.ID).
					Int("entry_id", entry.ID).
					Str("player", p.FullName()).
					Msg("Withdrawn player has no eligible replacement")
				continue
			}

			newOdds := entry.TotalOdds - p.Odds + sub.Odds
			if err := d.Entries.SwapPlayer(ctx, entry.ID, p.ID, sub.ID, newOdds); err != nil {
				metrics.SubstitutionsTotal.WithLabelValues("failed").Inc()
				log.Error().
					Err(err).
					Int("entry_id", entry.ID).
					Msg("Failed to persist substitution")
				continue
			}

			// Keep the in-memory entry current so a second withdrawal in
			// the same entry sees the swap.
			for i, id := range entry.PlayerIDs {
				if id == p.ID {
					entry.PlayerIDs[i] = sub.ID
				}
			}
			entry.TotalOdds = newOdds
			players[sub.ID] = sub

			metrics.SubstitutionsTotal.WithLabelValues("substituted").Inc()
			log.Info().
				Int("league_id", league.ID).
				Int("entry_id", entry.ID).
				Str("out", p.FullName()).
				Str("in", sub.FullName()).
				Float64("out_odds", p.Odds).
				Float64("in_odds", sub.Odds).
				Msg("Substituted withdrawn player")

			d.Notifier.PlayerSubstituted(ctx, league.ID, entry.ID, p.ID, sub.ID)
		}
	}
	return nil
}

// pickReplacement selects a substitute from the league's player pool:
// in the field, not already on the entry, odds within the configured
// window of the outgoing player (random among matches), else the single
// closest-odds candidate.
func pickReplacement(out *models.Player, entry *models.Entry, pool []*models.Player, field *feed.FieldUpdate, window float64) *models.Player {
	var inWindow []*models.Player
	var closest *models.Player
	closestDiff := math.MaxFloat64

	for _, cand := range pool {
		if cand.ID == out.ID || entry.HasPlayer(cand.ID) || !field.HasPlayer(cand.DGID) {
			continue
		}

		diff := math.Abs(cand.Odds - out.Odds)
		if diff <= window*out.Odds {
			inWindow = append(inWindow, cand)
		}
		if diff < closestDiff {
			closestDiff = diff
			closest = cand
		}
	}

	if len(inWindow) > 0 {
		return inWindow[rand.Intn(len(inWindow))]
	}
	return closest
}
