package repository

import (
	"context"
	"fmt"

	"golfpools/worker/internal/models"
)

// EntryRepository handles league entry database operations
type EntryRepository struct {
	db *Database
}

// ByLeague retrieves all entries for a league
func (r *EntryRepository) ByLeague(ctx context.Context, leagueID int) ([]*models.Entry, error) {
	query := `
		SELECT id, league_id, user_id, entry_name,
		       player1_id, player2_id, player3_id,
		       tie_breaker_answer, total_odds, created_at
		FROM league_entries
		WHERE league_id = $1
		ORDER BY id
	`

	rows, err := r.db.Pool.Query(ctx, query, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.Entry
	for rows.Next() {
		var e models.Entry
		err := rows.Scan(
			&e.ID, &e.LeagueID, &e.UserID, &e.EntryName,
			&e.PlayerIDs[0], &e.PlayerIDs[1], &e.PlayerIDs[2],
			&e.TieBreakerAnswer, &e.TotalOdds, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entries: %w", err)
	}

	return entries, nil
}

// SwapPlayer replaces one of an entry's three players and stores the
// recomputed aggregate odds
func (r *EntryRepository) SwapPlayer(ctx context.Context, entryID, fromPlayerID, toPlayerID int, totalOdds float64) error {
	query := `
		UPDATE league_entries
		SET player1_id = CASE WHEN player1_id = $2 THEN $3 ELSE player1_id END,
		    player2_id = CASE WHEN player2_id = $2 THEN $3 ELSE player2_id END,
		    player3_id = CASE WHEN player3_id = $2 THEN $3 ELSE player3_id END,
		    total_odds = $4
		WHERE id = $1
		  AND (player1_id = $2 OR player2_id = $2 OR player3_id = $2)
	`

	result, err := r.db.Pool.Exec(ctx, query, entryID, fromPlayerID, toPlayerID, totalOdds)
	if err != nil {
		return fmt.Errorf("failed to swap entry player: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("entry %d does not hold player %d", entryID, fromPlayerID)
	}

	return nil
}
