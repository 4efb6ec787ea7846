package storage

import (
	"database/sql"
	"fmt"
)

// InitDB initializes the fixture database schema.
// PRE: db is a valid database connection
// POST: All tables are created, WAL mode enabled
func InitDB(db *sql.DB) error {
	// In-memory databases ignore WAL and report "memory"; that is not an error.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS territory (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT '',
		publisher TEXT NOT NULL DEFAULT '',
		start_date TEXT NOT NULL DEFAULT '',
		end_date TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		image TEXT NOT NULL DEFAULT '',
		map_url TEXT NOT NULL DEFAULT '',
		position INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS territory_assignment (
		id TEXT PRIMARY KEY,
		territory_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		publisher TEXT NOT NULL DEFAULT '',
		start_date TEXT NOT NULL DEFAULT '',
		end_date TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		UNIQUE (territory_id, seq),
		FOREIGN KEY (territory_id) REFERENCES territory(id)
	);

	CREATE INDEX IF NOT EXISTS idx_territory_assignment_territory
		ON territory_assignment(territory_id, seq);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
