package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/thatsimonsguy/tesy-convector/internal/model"
)

// GetEntityState retrieves the registry row for a single entity.
func GetEntityState(ctx context.Context, db *sql.DB, entityID string) (*model.EntityState, error) {
	var s model.EntityState
	err := db.QueryRowContext(ctx, `SELECT entity_id, state, unit, last_updated FROM entity_states WHERE entity_id = ?`, entityID).
		Scan(&s.EntityID, &s.State, &s.Unit, &s.LastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("entity %s: %w", entityID, ErrEntityNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entity %s: %w", entityID, err)
	}
	return &s, nil
}

// ListEntityStates retrieves every entity in the registry ordered by id.
func ListEntityStates(ctx context.Context, db *sql.DB) ([]model.EntityState, error) {
	rows, err := db.QueryContext(ctx, `SELECT entity_id, state, unit, last_updated FROM entity_states ORDER BY entity_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query entity states: %w", err)
	}
	defer rows.Close()

	states := []model.EntityState{}
	for rows.Next() {
		var s model.EntityState
		if err := rows.Scan(&s.EntityID, &s.State, &s.Unit, &s.LastUpdated); err != nil {
			return nil, fmt.Errorf("failed to scan entity state: %w", err)
		}
		states = append(states, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entity states: %w", err)
	}
	return states, nil
}
