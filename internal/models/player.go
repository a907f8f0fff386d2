package models

import (
	"database/sql"
	"time"
)

// PlayerStatus is the player's current tournament status code from the feed.
type PlayerStatus string

const (
	StatusActive       PlayerStatus = "active"
	StatusWithdrawn    PlayerStatus = "wd"
	StatusCut          PlayerStatus = "cut"
	StatusDisqualified PlayerStatus = "dq"
)

// CarriesPenalty reports whether the status adds the fixed score penalty
// at the next update (withdrawn, cut and disqualified players).
func (s PlayerStatus) CarriesPenalty() bool {
	return s == StatusWithdrawn || s == StatusCut || s == StatusDisqualified
}

// Player represents a tournament player tracked against the external feed.
// Mutated only by the score poller.
type Player struct {
	ID           int            `db:"id"`
	DGID         int64          `db:"dg_id"`
	Name         string         `db:"name"`
	Surname      string         `db:"surname"`
	Odds         float64        `db:"odds"`
	CurrentScore int            `db:"current_score"`
	Status       PlayerStatus   `db:"status"`
	Thru         sql.NullInt32  `db:"thru"`
	TeeTime      sql.NullString `db:"tee_time"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

// FullName returns the player's display name.
func (p *Player) FullName() string {
	return p.Name + " " + p.Surname
}

// HasProgress reports whether the player has recorded any progress in the
// current tournament. A player with progress is never substituted.
func (p *Player) HasProgress() bool {
	return (p.Thru.Valid && p.Thru.Int32 > 0) || p.CurrentScore != 0
}

// ScoreUpdate is one row of a batched score write.
type ScoreUpdate struct {
	PlayerID int
	Score    int
	Status   PlayerStatus
	Thru     sql.NullInt32
}
