package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/tesy-convector/db"
	"github.com/thatsimonsguy/tesy-convector/internal/convector"
	"github.com/thatsimonsguy/tesy-convector/internal/dispatcher"
	"github.com/thatsimonsguy/tesy-convector/internal/model"
)

// Climate is the host-facing side of a convector adapter.
type Climate interface {
	EntityID() string
	Snapshot() model.ClimateState
	SetHVACMode(ctx context.Context, mode model.HVACMode) error
	SetTemperature(ctx context.Context, value *float64) error
	SetOpenedWindow(ctx context.Context, status bool) error
}

type Server struct {
	db         *sql.DB
	events     *dispatcher.Dispatcher
	climates   map[string]Climate
	httpServer *http.Server
	now        func() time.Time
}

type HVACModeRequest struct {
	HVACMode string `json:"hvac_mode"`
}

// TemperatureRequest mirrors the host's set_temperature call: both fields
// are optional and hvac_mode is applied first.
type TemperatureRequest struct {
	Temperature *float64 `json:"temperature"`
	HVACMode    string   `json:"hvac_mode"`
}

type OpenedWindowRequest struct {
	EntityID string `json:"entity_id" binding:"required"`
	Status   *bool  `json:"status" binding:"required"`
}

type EntityStateRequest struct {
	State string `json:"state" binding:"required"`
	Unit  string `json:"unit"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func NewServer(database *sql.DB, events *dispatcher.Dispatcher, climates ...Climate) *Server {
	s := &Server{
		db:       database,
		events:   events,
		climates: make(map[string]Climate, len(climates)),
		now:      time.Now,
	}
	for _, c := range climates {
		s.climates[c.EntityID()] = c
	}
	return s
}

func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		api.GET("/climate", s.listClimates)
		api.GET("/climate/:entity_id", s.getClimate)
		api.PUT("/climate/:entity_id/hvac_mode", s.setHVACMode)
		api.PUT("/climate/:entity_id/temperature", s.setTemperature)

		api.POST("/services/tesy_convector/set_opened_window", s.setOpenedWindow)

		api.GET("/states", s.listStates)
		api.GET("/states/:entity_id", s.getState)
		api.PUT("/states/:entity_id", s.putState)

		api.GET("/ws", s.wsConnect)
	}
	return router
}

func (s *Server) Start(port int) error {
	addr := fmt.Sprintf("0.0.0.0:%d", port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info().Str("address", addr).Msg("Starting REST API server")

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) listClimates(c *gin.Context) {
	ids := make([]string, 0, len(s.climates))
	for id := range s.climates {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	states := make([]model.ClimateState, 0, len(ids))
	for _, id := range ids {
		states = append(states, s.climates[id].Snapshot())
	}
	c.JSON(http.StatusOK, states)
}

func (s *Server) climate(c *gin.Context, entityID string) (Climate, bool) {
	climate, ok := s.climates[entityID]
	if !ok {
		writeError(c, http.StatusNotFound, fmt.Sprintf("Unknown climate entity %s", entityID))
	}
	return climate, ok
}

func (s *Server) getClimate(c *gin.Context) {
	climate, ok := s.climate(c, c.Param("entity_id"))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, climate.Snapshot())
}

func (s *Server) setHVACMode(c *gin.Context) {
	climate, ok := s.climate(c, c.Param("entity_id"))
	if !ok {
		return
	}

	var req HVACModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	mode := model.HVACMode(req.HVACMode)
	if !mode.Valid() {
		writeError(c, http.StatusBadRequest, "Invalid hvac mode. Valid modes: heat, off, auto")
		return
	}

	if err := climate.SetHVACMode(c.Request.Context(), mode); err != nil {
		s.commandFailed(c, climate, err, "Failed to set hvac mode")
		return
	}

	log.Info().Str("entity_id", climate.EntityID()).Str("mode", string(mode)).Msg("HVAC mode updated via API")
	c.JSON(http.StatusOK, climate.Snapshot())
}

func (s *Server) setTemperature(c *gin.Context) {
	climate, ok := s.climate(c, c.Param("entity_id"))
	if !ok {
		return
	}

	var req TemperatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	state := climate.Snapshot()
	if req.Temperature != nil && (*req.Temperature < state.MinTemp || *req.Temperature > state.MaxTemp) {
		writeError(c, http.StatusBadRequest, fmt.Sprintf("Invalid temperature. Must be between %.1f%s and %.1f%s",
			state.MinTemp, state.TemperatureUnit, state.MaxTemp, state.TemperatureUnit))
		return
	}

	if req.HVACMode != "" {
		mode := model.HVACMode(req.HVACMode)
		if !mode.Valid() {
			writeError(c, http.StatusBadRequest, "Invalid hvac mode. Valid modes: heat, off, auto")
			return
		}
		if err := climate.SetHVACMode(c.Request.Context(), mode); err != nil {
			s.commandFailed(c, climate, err, "Failed to set hvac mode")
			return
		}
	}

	if err := climate.SetTemperature(c.Request.Context(), req.Temperature); err != nil {
		s.commandFailed(c, climate, err, "Failed to set temperature")
		return
	}

	if req.Temperature != nil {
		log.Info().Str("entity_id", climate.EntityID()).Float64("temperature", *req.Temperature).Msg("Temperature updated via API")
	}
	c.JSON(http.StatusOK, climate.Snapshot())
}

func (s *Server) setOpenedWindow(c *gin.Context) {
	var req OpenedWindowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "Invalid JSON payload: entity_id and status are required")
		return
	}

	climate, ok := s.climate(c, req.EntityID)
	if !ok {
		return
	}

	if err := climate.SetOpenedWindow(c.Request.Context(), *req.Status); err != nil {
		s.commandFailed(c, climate, err, "Failed to set opened window")
		return
	}

	log.Info().Str("entity_id", req.EntityID).Bool("status", *req.Status).Msg("Opened window override set via API")
	c.Status(http.StatusOK)
}

func (s *Server) commandFailed(c *gin.Context, climate Climate, err error, msg string) {
	if errors.Is(err, convector.ErrUnsupportedMode) {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	log.Error().Err(err).Str("entity_id", climate.EntityID()).Msg(msg)
	writeError(c, http.StatusBadGateway, err.Error())
}

func (s *Server) listStates(c *gin.Context) {
	states, err := db.ListEntityStates(c.Request.Context(), s.db)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list entity states")
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, states)
}

func (s *Server) getState(c *gin.Context) {
	entityID := c.Param("entity_id")
	state, err := db.GetEntityState(c.Request.Context(), s.db, entityID)
	if err != nil {
		if errors.Is(err, db.ErrEntityNotFound) {
			writeError(c, http.StatusNotFound, "Entity not found")
		} else {
			log.Error().Err(err).Str("entity_id", entityID).Msg("Failed to get entity state")
			writeError(c, http.StatusInternalServerError, err.Error())
		}
		return
	}
	c.JSON(http.StatusOK, state)
}

func (s *Server) putState(c *gin.Context) {
	entityID := c.Param("entity_id")

	var req EntityStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "Invalid JSON payload: state is required")
		return
	}

	if err := db.SetEntityState(c.Request.Context(), s.db, entityID, req.State, req.Unit, s.now()); err != nil {
		log.Error().Err(err).Str("entity_id", entityID).Msg("Failed to update entity state")
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}

	log.Debug().Str("entity_id", entityID).Str("state", req.State).Msg("Entity state updated via API")
	s.getState(c)
}

func writeError(c *gin.Context, statusCode int, message string) {
	c.AbortWithStatusJSON(statusCode, ErrorResponse{Error: message})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("API request")
	}
}
