// Package sqlite implements the local durable store: the key-value table
// backing the sync cache and queue, the dunning ledger, and local accounts.
// One file per workshop; WAL keeps readers and the single writer apart.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS mahnungen (
	id         TEXT PRIMARY KEY,
	invoice_id TEXT NOT NULL,
	tier_id    TEXT NOT NULL,
	fee        TEXT NOT NULL,
	total_due  TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	UNIQUE (invoice_id, tier_id)
);

CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	name          TEXT NOT NULL,
	role          TEXT NOT NULL,
	status        TEXT NOT NULL,
	created_at    TIMESTAMP NOT NULL,
	updated_at    TIMESTAMP NOT NULL
);
`

// Open opens (or creates) the local database and applies the schema.
// Use ":memory:" in tests.
func Open(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open local db: %w", err)
	}
	// The driver is not safe for concurrent writes on one connection pool
	// beyond what busy_timeout covers; a single connection serializes them.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply local schema: %w", err)
	}
	return db, nil
}
