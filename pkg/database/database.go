package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Supported database/sql driver names
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Client holds the database handle
type Client struct {
	DB     *sql.DB
	Driver string
}

// NewClient opens a connection, verifies it and applies the schema
func NewClient(ctx context.Context, driver, databaseURL string) (*Client, error) {
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed opening connection to %s: %w", driver, err)
	}

	// SQLite serializes writers; a single connection also keeps in-memory
	// databases alive for the lifetime of the pool.
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	client := &Client{DB: db, Driver: driver}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed connecting to %s: %w", driver, err)
	}

	if err := client.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return client, nil
}

// Close closes the database connection
func (c *Client) Close() error {
	return c.DB.Close()
}

// Ping checks if the database is reachable
func (c *Client) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// Migrate creates any missing tables and indexes. Statements are idempotent.
func (c *Client) Migrate(ctx context.Context) error {
	for _, stmt := range schema(c.Driver) {
		if _, err := c.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed creating schema resources: %w", err)
		}
	}
	return nil
}
