package database

import "fmt"

// ResourceTables are the per-user tables counted for usage quotas
var ResourceTables = []string{"projects", "stories", "images", "exports"}

type dialect struct {
	serial    string
	timestamp string
}

var dialects = map[string]dialect{
	DriverPostgres: {serial: "SERIAL PRIMARY KEY", timestamp: "TIMESTAMPTZ"},
	DriverSQLite:   {serial: "INTEGER PRIMARY KEY AUTOINCREMENT", timestamp: "DATETIME"},
}

func schema(driver string) []string {
	d := dialects[driver]

	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS users (
	id %s,
	email TEXT NOT NULL UNIQUE,
	username TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL DEFAULT '',
	subscription_tier TEXT NOT NULL DEFAULT 'free',
	subscription_status TEXT NOT NULL DEFAULT 'active',
	subscription_expires_at %s NULL,
	stripe_customer_id TEXT NOT NULL DEFAULT '',
	stripe_subscription_id TEXT NOT NULL DEFAULT '',
	last_login_at %s NULL,
	created_at %s NOT NULL
)`, d.serial, d.timestamp, d.timestamp, d.timestamp),
		`CREATE INDEX IF NOT EXISTS idx_users_stripe_customer ON users (stripe_customer_id)`,
	}

	for _, table := range ResourceTables {
		stmts = append(stmts,
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id %s,
	user_id INTEGER NOT NULL REFERENCES users (id) ON DELETE CASCADE,
	title TEXT NOT NULL,
	created_at %s NOT NULL,
	updated_at %s NOT NULL
)`, table, d.serial, d.timestamp, d.timestamp),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_user_created ON %s (user_id, created_at)`, table, table),
		)
	}

	return stmts
}
