package temperature

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/tesy-convector/db"
)

// EntitySource reads temperatures published by other entities into the
// host's state registry.
type EntitySource struct {
	dbConn *sql.DB
}

func NewEntitySource(dbConn *sql.DB) *EntitySource {
	return &EntitySource{dbConn: dbConn}
}

// Temperature returns the numeric state of entityID. ok is false when the
// entity is missing, reports unavailable/unknown or holds a non-numeric state.
func (s *EntitySource) Temperature(ctx context.Context, entityID string) (float64, bool) {
	state, err := db.GetEntityState(ctx, s.dbConn, entityID)
	if err != nil {
		if errors.Is(err, db.ErrEntityNotFound) {
			log.Debug().Str("entity_id", entityID).Msg("Temperature entity not found")
		} else {
			log.Warn().Err(err).Str("entity_id", entityID).Msg("Could not read temperature entity")
		}
		return 0, false
	}

	raw := strings.TrimSpace(state.State)
	switch strings.ToLower(raw) {
	case "", "unavailable", "unknown":
		log.Debug().Str("entity_id", entityID).Str("state", raw).Msg("Temperature entity unavailable")
		return 0, false
	}

	temp, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(temp) || math.IsInf(temp, 0) {
		log.Debug().Str("entity_id", entityID).Str("state", raw).Msg("Temperature entity state is not numeric")
		return 0, false
	}
	return temp, true
}
