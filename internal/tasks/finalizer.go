package tasks

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"golfpools/worker/internal/metrics"
	"golfpools/worker/internal/models"
)

// FinalizeLeagues computes winners for every ended, unfinalized league.
// Each league is processed independently so one bad league cannot abort
// the batch, and the whole routine is idempotent: archived scores are
// written at most once and a finalized league is never selected again.
func (d *Deps) FinalizeLeagues(ctx context.Context) error {
	leagues, err := d.Leagues.EndedUnfinalized(ctx)
	if err != nil {
		return fmt.Errorf("load ended leagues: %w: %w", ErrStoreUnavailable, err)
	}
	if len(leagues) == 0 {
		return nil
	}

	log.Info().Int("count", len(leagues)).Msg("Finalizing ended leagues")

	for _, league := range leagues {
		if err := d.finalizeLeague(ctx, league); err != nil {
			metrics.RecordError("finalizer", "league")
			log.Error().
				Err(err).
				Int("league_id", league.ID).
				Str("league", league.Name).
				Msg("Failed to finalize league, continuing with others")
		}
	}
	return nil
}

func (d *Deps) finalizeLeague(ctx context.Context, league *models.League) error {
	entries, err := d.Entries.ByLeague(ctx, league.ID)
	if err != nil {
		return fmt.Errorf("load entries: %w: %w", ErrStoreUnavailable, err)
	}

	if err := d.archiveScores(ctx, league, entries); err != nil {
		return err
	}

	archived, err := d.Scores.ByLeague(ctx, league.ID)
	if err != nil {
		return fmt.Errorf("load archived scores: %w: %w", ErrStoreUnavailable, err)
	}

	winners := determineWinners(league, entries, archived)

	winnerUserIDs := make([]int, 0, len(winners))
	seen := make(map[int]bool, len(winners))
	for _, w := range winners {
		if !seen[w.UserID] {
			seen[w.UserID] = true
			winnerUserIDs = append(winnerUserIDs, w.UserID)
		}
	}

	if err := d.Leagues.SetWinners(ctx, league.ID, winnerUserIDs); err != nil {
		return fmt.Errorf("persist winners: %w: %w", ErrStoreUnavailable, err)
	}

	metrics.LeaguesFinalized.Inc()
	d.Cache.InvalidateLeaderboard(ctx, league.ID)

	log.Info().
		Int("league_id", league.ID).
		Str("league", league.Name).
		Ints("winner_user_ids", winnerUserIDs).
		Msg("League finalized")

	// Notifications are best-effort; the notifier logs its own failures.
	d.Notifier.LeagueFinalized(ctx, league.ID, league.Name, winnerUserIDs)
	return nil
}

// archiveScores snapshots every distinct player's current score for the
// league, exactly once. Re-running after the archive exists is a no-op.
func (d *Deps) archiveScores(ctx context.Context, league *models.League, entries []*models.Entry) error {
	exists, err := d.Scores.ExistsForLeague(ctx, league.ID)
	if err != nil {
		return fmt.Errorf("check archive: %w: %w", ErrStoreUnavailable, err)
	}
	if exists {
		log.Debug().Int("league_id", league.ID).Msg("Scores already archived for league")
		return nil
	}

	distinct := make(map[int]bool)
	ids := make([]int, 0, len(entries)*3)
	for _, e := range entries {
		for _, pid := range e.PlayerIDs {
			if !distinct[pid] {
				distinct[pid] = true
				ids = append(ids, pid)
			}
		}
	}

	players, err := d.Players.ByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("load players: %w: %w", ErrStoreUnavailable, err)
	}

	snapshot := make([]models.HistoricalScore, 0, len(players))
	for _, p := range players {
		snapshot = append(snapshot, models.HistoricalScore{
			PlayerID: p.ID,
			LeagueID: league.ID,
			Score:    p.CurrentScore,
		})
	}

	if err := d.Scores.ArchiveLeague(ctx, league.ID, snapshot); err != nil {
		return fmt.Errorf("archive scores: %w: %w", ErrStoreUnavailable, err)
	}

	log.Info().
		Int("league_id", league.ID).
		Int("players", len(snapshot)).
		Msg("Archived league scores")
	return nil
}

// determineWinners picks the entries with the minimum total archived
// score. Ties resolve by closest tie-breaker guess; entries equally
// close (or a league with no recorded answer) split the win.
func determineWinners(league *models.League, entries []*models.Entry, archived map[int]int) []*models.Entry {
	if len(entries) == 0 {
		return nil
	}

	best := math.MaxInt
	var leaders []*models.Entry
	for _, e := range entries {
		total := 0
		for _, pid := range e.PlayerIDs {
			total += archived[pid]
		}
		switch {
		case total < best:
			best = total
			leaders = []*models.Entry{e}
		case total == best:
			leaders = append(leaders, e)
		}
	}

	if len(leaders) <= 1 || !league.TieBreakerActualAnswer.Valid {
		return leaders
	}

	actual := int(league.TieBreakerActualAnswer.Int32)
	bestDiff := math.MaxInt
	var winners []*models.Entry
	for _, e := range leaders {
		// An entry with no recorded guess can still win, but only when
		// every tied entry is guessless.
		diff := math.MaxInt
		if e.TieBreakerAnswer.Valid {
			diff = actual - int(e.TieBreakerAnswer.Int32)
			if diff < 0 {
				diff = -diff
			}
		}
		switch {
		case diff < bestDiff:
			bestDiff = diff
			winners = []*models.Entry{e}
		case diff == bestDiff:
			winners = append(winners, e)
		}
	}
	return winners
}
