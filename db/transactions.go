package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SetEntityState upserts the state of an entity and stamps last_updated.
func SetEntityState(ctx context.Context, db *sql.DB, entityID, state, unit string, now time.Time) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("start transaction: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO entity_states (entity_id, state, unit, last_updated) VALUES (?, ?, ?, ?)
		ON CONFLICT(entity_id) DO UPDATE SET state = excluded.state, unit = excluded.unit, last_updated = excluded.last_updated`,
		entityID, state, unit, now.UTC().Format(time.RFC3339))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("update entity state: %w", err)
	}
	return tx.Commit()
}

func DeleteEntityState(ctx context.Context, db *sql.DB, entityID string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("start transaction: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM entity_states WHERE entity_id = ?`, entityID)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("delete entity state: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		tx.Rollback()
		return fmt.Errorf("entity %s: %w", entityID, ErrEntityNotFound)
	}
	return tx.Commit()
}

// SetEntityStateCLI opens the registry at dbPath for a one-off write.
func SetEntityStateCLI(dbPath, entityID, state, unit string) error {
	dbConn, err := Open(dbPath)
	if err != nil {
		return err
	}
	defer dbConn.Close()
	return SetEntityState(context.Background(), dbConn, entityID, state, unit, time.Now())
}
