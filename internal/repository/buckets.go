package repository

import (
	"context"
	"fmt"
	"time"

	"golfpools/worker/internal/models"

	"github.com/rs/zerolog/log"
)

// BucketRepository handles player bucket database operations
type BucketRepository struct {
	db *Database
}

// ExistsByName reports whether a bucket for the event already exists
func (r *BucketRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM buckets WHERE name = $1)`

	var exists bool
	if err := r.db.Pool.QueryRow(ctx, query, name).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check bucket: %w", err)
	}

	return exists, nil
}

// Create inserts a bucket and its player memberships in one transaction
func (r *BucketRepository) Create(ctx context.Context, bucket *models.Bucket, playerIDs []int) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO buckets (name, tour, event_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, bucket.Name, bucket.Tour, bucket.EventID).Scan(&bucket.ID, &bucket.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	for _, playerID := range playerIDs {
		_, err := tx.Exec(ctx, `
			INSERT INTO bucket_players (bucket_id, player_id)
			VALUES ($1, $2)
			ON CONFLICT (bucket_id, player_id) DO NOTHING
		`, bucket.ID, playerID)
		if err != nil {
			return fmt.Errorf("failed to add player to bucket: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit bucket: %w", err)
	}

	log.Info().
		Str("name", bucket.Name).
		Str("tour", bucket.Tour).
		Int("players", len(playerIDs)).
		Msg("Bucket created")

	return nil
}

// PlayersForLeague retrieves the player pool of the league's bucket
func (r *BucketRepository) PlayersForLeague(ctx context.Context, leagueID int) ([]*models.Player, error) {
	query := `
		SELECT p.id, p.dg_id, p.name, p.surname, p.odds, p.current_score,
		       p.status, p.thru, p.tee_time, p.created_at, p.updated_at
		FROM players p
		JOIN bucket_players bp ON bp.player_id = p.id
		JOIN leagues l ON l.bucket_id = bp.bucket_id
		WHERE l.id = $1
		ORDER BY p.odds
	`

	rows, err := r.db.Pool.Query(ctx, query, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bucket players: %w", err)
	}
	defer rows.Close()

	var players []*models.Player
	for rows.Next() {
		player, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bucket player: %w", err)
		}
		players = append(players, player)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bucket players: %w", err)
	}

	return players, nil
}

// DeleteStale removes buckets created before the cutoff that no
// unfinalized league still references. Returns the number deleted.
func (r *BucketRepository) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM buckets b
		WHERE b.created_at < $1
		  AND NOT EXISTS (
			SELECT 1 FROM leagues l
			WHERE l.bucket_id = b.id AND l.is_finalized = FALSE
		  )
	`

	result, err := r.db.Pool.Exec(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale buckets: %w", err)
	}

	return result.RowsAffected(), nil
}
