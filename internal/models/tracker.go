package models

import "time"

// DailyTaskTracker marks that a named daily task ran on a calendar date.
// At most one row exists per (task, date); the supervisor treats a missing
// row on a tournament day as its trigger to re-run the daily bootstrap.
type DailyTaskTracker struct {
	ID       int       `db:"id"`
	TaskName string    `db:"task_name"`
	RunDate  time.Time `db:"run_date"`
	RanAt    time.Time `db:"ran_at"`
}
