package sqlite

import (
	"database/sql"
	"fmt"

	// Import the SQLite driver.
	_ "github.com/mattn/go-sqlite3"
)

// InitDB opens the ledger database at path and creates the uploads table if it
// doesn't exist. Use ":memory:" for a throwaway ledger.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	// Upload workers write concurrently; sqlite serialises writers anyway and a
	// single connection keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS uploads (
		id INTEGER PRIMARY KEY,
		run_id TEXT NOT NULL,
		filename TEXT NOT NULL,
		object_key TEXT NOT NULL,
		size INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		error TEXT,
		recorded_at TEXT NOT NULL
	)`)
	if err != nil {
		db.Close()

		return nil, fmt.Errorf("failed to create uploads table: %w", err)
	}

	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_uploads_run_id ON uploads (run_id)`); err != nil {
		db.Close()

		return nil, fmt.Errorf("failed to create uploads index: %w", err)
	}

	return db, nil
}

// timeLayout has a fixed width so recorded_at sorts correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
