package models

import "time"

// HistoricalScore is one archived (player, league) score snapshot, written
// exactly once per player per league when the league is finalized. After
// finalization it is the source of truth for entry totals instead of the
// live, mutable Player.CurrentScore.
type HistoricalScore struct {
	ID        int       `db:"id"`
	PlayerID  int       `db:"player_id"`
	LeagueID  int       `db:"league_id"`
	Score     int       `db:"score"`
	CreatedAt time.Time `db:"created_at"`
}
