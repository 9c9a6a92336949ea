package main

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/tesy-convector/db"
	"github.com/thatsimonsguy/tesy-convector/internal/api"
	"github.com/thatsimonsguy/tesy-convector/internal/config"
	"github.com/thatsimonsguy/tesy-convector/internal/convector"
	"github.com/thatsimonsguy/tesy-convector/internal/datadog"
	"github.com/thatsimonsguy/tesy-convector/internal/dispatcher"
	"github.com/thatsimonsguy/tesy-convector/internal/logging"
	"github.com/thatsimonsguy/tesy-convector/internal/model"
	"github.com/thatsimonsguy/tesy-convector/internal/notifications"
	"github.com/thatsimonsguy/tesy-convector/internal/temperature"
	"github.com/thatsimonsguy/tesy-convector/internal/tesy"
	"github.com/thatsimonsguy/tesy-convector/system/shutdown"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()
	logging.Init(cfg.LogLevel, cfg.LogFile)

	log.Info().
		Str("config_file", cfg.ConfigFile).
		Str("entity_id", cfg.EntityID).
		Str("device", cfg.Device.Address).
		Msg("Starting Tesy convector adapter")

	if cfg.Datadog.Enabled {
		datadog.InitMetrics(cfg.Datadog.AgentAddr, cfg.Datadog.Namespace, cfg.Datadog.Tags)
	}

	dbConn, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("Failed to open entity registry")
	}

	ctx, cancel := context.WithCancel(context.Background())
	events := dispatcher.New(ctx)

	monitor := notifications.NewReachabilityMonitor(
		notifications.New(cfg.Notifications.Server, cfg.Notifications.Topic),
		cfg.EntityID,
		cfg.Notifications.FailureThreshold,
	)

	client := tesy.NewClient(cfg.Device.Address, cfg.Device.Model, cfg.DeviceTimeout())
	adapter := convector.New(client, temperature.NewEntitySource(dbConn), convector.Options{
		EntityID:          cfg.EntityID,
		Name:              cfg.Name,
		Model:             cfg.Device.Model,
		TemperatureEntity: cfg.TemperatureEntity,
		PollInterval:      cfg.PollInterval(),
		SettleDelay:       cfg.SettleDelay(),
		MinTemp:           cfg.MinTemp,
		MaxTemp:           cfg.MaxTemp,
		TempStep:          cfg.TempStep,
		OnUpdate: func(state model.ClimateState) {
			events.BroadcastEvent(state.EntityID, state)
		},
		OnRefresh: monitor.Observe,
	})
	stopPoller := adapter.Start(ctx)

	server := api.NewServer(dbConn, events, adapter)

	hooks := []shutdown.Hook{
		{Name: "metrics", Fn: func(context.Context) error { datadog.Close(); return nil }},
		{Name: "registry", Fn: func(context.Context) error { return dbConn.Close() }},
		{Name: "dispatcher", Fn: func(context.Context) error { cancel(); return nil }},
		{Name: "poller", Fn: func(context.Context) error { stopPoller(); return nil }},
		{Name: "api", Fn: server.Shutdown},
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start(cfg.APIPort)
	}()

	signalled := make(chan struct{})
	go func() {
		shutdown.WaitForSignal(ctx)
		close(signalled)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			shutdown.ShutdownWithError(err, "REST API server failed", hooks...)
		}
		shutdown.Shutdown(shutdownTimeout, hooks...)
	case <-signalled:
		shutdown.Shutdown(shutdownTimeout, hooks...)
	}
}
