package repository

import (
	"context"
	"fmt"
	"time"
)

// TrackerRepository handles the daily task tracker markers
type TrackerRepository struct {
	db *Database
}

// MarkRan records that the named task ran on the given date. The insert is
// an upsert-with-conflict-ignore on the (task_name, run_date) unique
// constraint: zero rows affected means another run already recorded it, so
// two racing schedulers cannot both believe they are first.
func (r *TrackerRepository) MarkRan(ctx context.Context, taskName string, day time.Time) (bool, error) {
	query := `
		INSERT INTO daily_task_tracker (task_name, run_date, ran_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (task_name, run_date) DO NOTHING
	`

	result, err := r.db.Pool.Exec(ctx, query, taskName, day.UTC().Truncate(24*time.Hour))
	if err != nil {
		return false, fmt.Errorf("failed to record task run: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// RanOn reports whether the named task already ran on the given date
func (r *TrackerRepository) RanOn(ctx context.Context, taskName string, day time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM daily_task_tracker
			WHERE task_name = $1 AND run_date = $2
		)
	`

	var exists bool
	err := r.db.Pool.QueryRow(ctx, query, taskName, day.UTC().Truncate(24*time.Hour)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check task run: %w", err)
	}

	return exists, nil
}
