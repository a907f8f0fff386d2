package repository

import (
	"context"
	"fmt"

	"golfpools/worker/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// PlayerRepository handles player database operations
type PlayerRepository struct {
	db *Database
}

const playerColumns = `
	id, dg_id, name, surname, odds, current_score, status, thru, tee_time,
	created_at, updated_at
`

func scanPlayer(row pgx.Row) (*models.Player, error) {
	var p models.Player
	err := row.Scan(
		&p.ID, &p.DGID, &p.Name, &p.Surname, &p.Odds, &p.CurrentScore,
		&p.Status, &p.Thru, &p.TeeTime, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Upsert inserts or updates a player keyed by their feed id
func (r *PlayerRepository) Upsert(ctx context.Context, player *models.Player) error {
	query := `
		INSERT INTO players (dg_id, name, surname, odds, current_score, status, thru, tee_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (dg_id) DO UPDATE SET
			name = EXCLUDED.name,
			surname = EXCLUDED.surname,
			odds = EXCLUDED.odds,
			tee_time = EXCLUDED.tee_time,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	err := r.db.Pool.QueryRow(
		ctx, query,
		player.DGID, player.Name, player.Surname, player.Odds,
		player.CurrentScore, player.Status, player.Thru, player.TeeTime,
	).Scan(&player.ID, &player.CreatedAt, &player.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert player: %w", err)
	}

	return nil
}

// ByDGIDs retrieves players by their external feed ids
func (r *PlayerRepository) ByDGIDs(ctx context.Context, dgIDs []int64) (map[int64]*models.Player, error) {
	if len(dgIDs) == 0 {
		return map[int64]*models.Player{}, nil
	}

	query := `SELECT ` + playerColumns + ` FROM players WHERE dg_id = ANY($1)`

	rows, err := r.db.Pool.Query(ctx, query, dgIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query players by dg_id: %w", err)
	}
	defer rows.Close()

	players := make(map[int64]*models.Player, len(dgIDs))
	for rows.Next() {
		player, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		players[player.DGID] = player
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating players: %w", err)
	}

	return players, nil
}

// ByIDs retrieves players by their database ids
func (r *PlayerRepository) ByIDs(ctx context.Context, ids []int) (map[int]*models.Player, error) {
	if len(ids) == 0 {
		return map[int]*models.Player{}, nil
	}

	query := `SELECT ` + playerColumns + ` FROM players WHERE id = ANY($1)`

	rows, err := r.db.Pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query players by id: %w", err)
	}
	defer rows.Close()

	players := make(map[int]*models.Player, len(ids))
	for rows.Next() {
		player, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		players[player.ID] = player
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating players: %w", err)
	}

	return players, nil
}

// UpdateScores applies a batch of score updates in a single round trip.
// The poller batches rather than writing per row.
func (r *PlayerRepository) UpdateScores(ctx context.Context, updates []models.ScoreUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, u := range updates {
		batch.Queue(`
			UPDATE players
			SET current_score = $1, status = $2, thru = $3, updated_at = NOW()
			WHERE id = $4
		`, u.Score, u.Status, u.Thru, u.PlayerID)
	}

	results := r.db.Pool.SendBatch(ctx, batch)
	defer results.Close()

	for range updates {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to apply score batch: %w", err)
		}
	}

	log.Debug().Int("count", len(updates)).Msg("Player scores updated")
	return nil
}

// ResetScores zeroes every player's live score ahead of a new tournament
// week. Returns the number of rows touched.
func (r *PlayerRepository) ResetScores(ctx context.Context) (int64, error) {
	query := `
		UPDATE players
		SET current_score = 0, status = 'active', thru = NULL, tee_time = NULL,
		    updated_at = NOW()
	`

	result, err := r.db.Pool.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to reset player scores: %w", err)
	}

	return result.RowsAffected(), nil
}
