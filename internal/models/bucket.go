package models

import "time"

// Bucket is the pool of eligible players a league's entries are drawn
// from, built from one tournament's field.
type Bucket struct {
	ID        int       `db:"id"`
	Name      string    `db:"name"`
	Tour      string    `db:"tour"`
	EventID   string    `db:"event_id"`
	CreatedAt time.Time `db:"created_at"`
}
