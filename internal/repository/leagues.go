package repository

import (
	"context"
	"fmt"
	"time"

	"golfpools/worker/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// LeagueRepository handles league database operations
type LeagueRepository struct {
	db *Database
}

const leagueColumns = `
	id, name, tour, creator_id, start_date, end_date, is_finalized,
	reminder_sent, bucket_id, tie_breaker_question, tie_breaker_actual_answer,
	created_at, updated_at
`

func scanLeague(row pgx.Row) (*models.League, error) {
	var l models.League
	err := row.Scan(
		&l.ID, &l.Name, &l.Tour, &l.CreatorID, &l.StartDate, &l.EndDate, &l.IsFinalized,
		&l.ReminderSent, &l.BucketID, &l.TieBreakerQuestion, &l.TieBreakerActualAnswer,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *LeagueRepository) queryLeagues(ctx context.Context, query string, args ...interface{}) ([]*models.League, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query leagues: %w", err)
	}
	defer rows.Close()

	var leagues []*models.League
	for rows.Next() {
		league, err := scanLeague(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan league: %w", err)
		}
		leagues = append(leagues, league)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leagues: %w", err)
	}

	return leagues, nil
}

// GetByID retrieves a league by its database ID
func (r *LeagueRepository) GetByID(ctx context.Context, id int) (*models.League, error) {
	query := `SELECT ` + leagueColumns + ` FROM leagues WHERE id = $1`

	league, err := scanLeague(r.db.Pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("league not found: id=%d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get league: %w", err)
	}

	return league, nil
}

// ActiveByTour retrieves the leagues currently being scored on a tour:
// started, not ended, not finalized.
func (r *LeagueRepository) ActiveByTour(ctx context.Context, tour string) ([]*models.League, error) {
	query := `
		SELECT ` + leagueColumns + `
		FROM leagues
		WHERE tour = $1 AND is_finalized = FALSE
		  AND start_date <= NOW() AND end_date > NOW()
		ORDER BY end_date
	`

	leagues, err := r.queryLeagues(ctx, query, tour)
	if err != nil {
		return nil, err
	}

	log.Debug().Str("tour", tour).Int("count", len(leagues)).Msg("Retrieved active leagues")
	return leagues, nil
}

// ActiveTours returns the distinct tours that have at least one active league
func (r *LeagueRepository) ActiveTours(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT tour FROM leagues
		WHERE is_finalized = FALSE
		  AND start_date <= NOW() AND end_date > NOW()
		ORDER BY tour
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active tours: %w", err)
	}
	defer rows.Close()

	var tours []string
	for rows.Next() {
		var tour string
		if err := rows.Scan(&tour); err != nil {
			return nil, fmt.Errorf("failed to scan tour: %w", err)
		}
		tours = append(tours, tour)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tours: %w", err)
	}

	return tours, nil
}

// EndedUnfinalized retrieves leagues whose end date has passed but which
// have not been finalized yet
func (r *LeagueRepository) EndedUnfinalized(ctx context.Context) ([]*models.League, error) {
	query := `
		SELECT ` + leagueColumns + `
		FROM leagues
		WHERE is_finalized = FALSE AND end_date < NOW()
		ORDER BY end_date
	`
	return r.queryLeagues(ctx, query)
}

// OpenForSubstitution retrieves leagues whose entry deadline has passed but
// which have not ended. The entry deadline is 12 hours before start.
func (r *LeagueRepository) OpenForSubstitution(ctx context.Context) ([]*models.League, error) {
	query := `
		SELECT ` + leagueColumns + `
		FROM leagues
		WHERE is_finalized = FALSE
		  AND start_date - INTERVAL '12 hours' <= NOW()
		  AND end_date > NOW()
		ORDER BY start_date
	`
	return r.queryLeagues(ctx, query)
}

// NeedingReminder retrieves leagues whose entry deadline falls within the
// window and which have not been reminded yet
func (r *LeagueRepository) NeedingReminder(ctx context.Context, window time.Duration) ([]*models.League, error) {
	query := `
		SELECT ` + leagueColumns + `
		FROM leagues
		WHERE reminder_sent = FALSE
		  AND start_date - INTERVAL '12 hours' BETWEEN NOW() AND NOW() + $1
		ORDER BY start_date
	`
	return r.queryLeagues(ctx, query, window)
}

// MarkReminderSent flags a league so deadline reminders are not re-sent
func (r *LeagueRepository) MarkReminderSent(ctx context.Context, leagueID int) error {
	query := `UPDATE leagues SET reminder_sent = TRUE, updated_at = NOW() WHERE id = $1`

	result, err := r.db.Pool.Exec(ctx, query, leagueID)
	if err != nil {
		return fmt.Errorf("failed to mark reminder sent: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("league not found: id=%d", leagueID)
	}

	return nil
}

// SetWinners persists the winner set and flips the finalized flag in one
// transaction. Safe to call once per league; the finalizer never reaches
// here twice because it only selects unfinalized leagues.
func (r *LeagueRepository) SetWinners(ctx context.Context, leagueID int, winnerUserIDs []int) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, userID := range winnerUserIDs {
		_, err := tx.Exec(ctx, `
			INSERT INTO league_winners (league_id, user_id)
			VALUES ($1, $2)
			ON CONFLICT (league_id, user_id) DO NOTHING
		`, leagueID, userID)
		if err != nil {
			return fmt.Errorf("failed to insert winner: %w", err)
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE leagues SET is_finalized = TRUE, updated_at = NOW() WHERE id = $1
	`, leagueID)
	if err != nil {
		return fmt.Errorf("failed to finalize league: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit winners: %w", err)
	}

	log.Info().
		Int("league_id", leagueID).
		Ints("winner_ids", winnerUserIDs).
		Msg("League finalized with winners")

	return nil
}
