package db

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

var ErrEntityNotFound = errors.New("entity not found")

const schema = `
CREATE TABLE IF NOT EXISTS entity_states (
	entity_id TEXT PRIMARY KEY,
	state TEXT NOT NULL,
	unit TEXT NOT NULL DEFAULT '',
	last_updated TEXT NOT NULL
);`

// Open opens the sqlite entity registry at dbPath and makes sure the schema
// exists. ":memory:" is accepted for tests.
func Open(dbPath string) (*sql.DB, error) {
	dbConn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single connection keeps ":memory:" databases shared across callers
	dbConn.SetMaxOpenConns(1)

	if err := ApplySchema(dbConn); err != nil {
		dbConn.Close()
		return nil, err
	}

	log.Info().Str("path", dbPath).Msg("Entity registry opened")
	return dbConn, nil
}

func ApplySchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
