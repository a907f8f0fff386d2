package repository

import (
	"context"
	"fmt"

	"golfpools/worker/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// ScoreRepository handles archived (player, league) score snapshots
type ScoreRepository struct {
	db *Database
}

// ExistsForLeague reports whether the league's scores were already archived
func (r *ScoreRepository) ExistsForLeague(ctx context.Context, leagueID int) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM player_scores WHERE league_id = $1)`

	var exists bool
	if err := r.db.Pool.QueryRow(ctx, query, leagueID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check archived scores: %w", err)
	}

	return exists, nil
}

// ArchiveLeague writes the league's score snapshots in one batch. The
// unique (player_id, league_id) constraint makes re-archiving a no-op.
func (r *ScoreRepository) ArchiveLeague(ctx context.Context, leagueID int, scores []models.HistoricalScore) error {
	if len(scores) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, s := range scores {
		batch.Queue(`
			INSERT INTO player_scores (player_id, league_id, score)
			VALUES ($1, $2, $3)
			ON CONFLICT (player_id, league_id) DO NOTHING
		`, s.PlayerID, leagueID, s.Score)
	}

	results := r.db.Pool.SendBatch(ctx, batch)
	defer results.Close()

	for range scores {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to archive scores: %w", err)
		}
	}

	log.Info().
		Int("league_id", leagueID).
		Int("count", len(scores)).
		Msg("League scores archived")

	return nil
}

// ByLeague retrieves the archived scores for a league keyed by player id
func (r *ScoreRepository) ByLeague(ctx context.Context, leagueID int) (map[int]int, error) {
	query := `SELECT player_id, score FROM player_scores WHERE league_id = $1`

	rows, err := r.db.Pool.Query(ctx, query, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to query archived scores: %w", err)
	}
	defer rows.Close()

	scores := make(map[int]int)
	for rows.Next() {
		var playerID, score int
		if err := rows.Scan(&playerID, &score); err != nil {
			return nil, fmt.Errorf("failed to scan archived score: %w", err)
		}
		scores[playerID] = score
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating archived scores: %w", err)
	}

	return scores, nil
}
