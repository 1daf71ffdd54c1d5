package store

import (
	"database/sql"
	"time"
)

// SQLStore persists users, subscriptions and resources with database/sql.
// Queries use $n placeholders, which both lib/pq and go-sqlite3 accept.
type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a store over an open database handle
func New(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

// Times are bound in UTC so that SQLite's textual comparisons order them
// correctly.
func utc(t time.Time) time.Time {
	return t.UTC()
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
