package models

import (
	"database/sql"
	"time"
)

// League represents one scoring competition on a single tour.
// Mutated by the finalizer (finalized flag, winner set) and, indirectly,
// by score updates; immutable once finalized except payout bookkeeping.
type League struct {
	ID           int           `db:"id"`
	Name         string        `db:"name"`
	Tour         string        `db:"tour"`
	CreatorID    int           `db:"creator_id"`
	StartDate    time.Time     `db:"start_date"`
	EndDate      time.Time     `db:"end_date"`
	IsFinalized  bool          `db:"is_finalized"`
	ReminderSent bool          `db:"reminder_sent"`
	BucketID     sql.NullInt32 `db:"bucket_id"`

	TieBreakerQuestion     string        `db:"tie_breaker_question"`
	TieBreakerActualAnswer sql.NullInt32 `db:"tie_breaker_actual_answer"`

	// WinnerIDs is populated from the league_winners join table.
	WinnerIDs []int `db:"-"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// EntryDeadline is 12 hours before the league starts.
func (l *League) EntryDeadline() time.Time {
	return l.StartDate.Add(-12 * time.Hour)
}

// IsActive reports whether the league is currently being scored.
func (l *League) IsActive(now time.Time) bool {
	return !l.IsFinalized && now.Before(l.EndDate) && !now.Before(l.StartDate)
}

// HasEnded reports whether the league's end date has passed.
func (l *League) HasEnded(now time.Time) bool {
	return !now.Before(l.EndDate)
}

// Entry is a user's selection of exactly three players plus a numeric
// tie-breaker answer within one league.
type Entry struct {
	ID               int           `db:"id"`
	LeagueID         int           `db:"league_id"`
	UserID           int           `db:"user_id"`
	EntryName        string        `db:"entry_name"`
	PlayerIDs        [3]int        `db:"-"` // player1_id, player2_id, player3_id
	TieBreakerAnswer sql.NullInt32 `db:"tie_breaker_answer"`
	TotalOdds        float64       `db:"total_odds"`
	CreatedAt        time.Time     `db:"created_at"`
}

// HasPlayer reports whether the entry already holds the given player.
func (e *Entry) HasPlayer(playerID int) bool {
	for _, id := range e.PlayerIDs {
		if id == playerID {
			return true
		}
	}
	return false
}
