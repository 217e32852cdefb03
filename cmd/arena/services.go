package main

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/techclash/arena/internal/bus"
	"github.com/techclash/arena/internal/engine"
	"github.com/techclash/arena/internal/gateway"
	"github.com/techclash/arena/internal/roster"
	"github.com/techclash/arena/internal/round"
	"github.com/techclash/arena/internal/scoring"
)

type Services struct {
	Publisher  *bus.JetStreamPublisher
	Engine     *engine.Engine
	Gateway    *gateway.Service
	Controller *round.Controller
	Handler    *round.Handler
}

func setupServices(database *sql.DB, config *Config) (*Services, error) {
	// Wire up dependency injection chain
	// Database layer → Repository layer → Engine → Controller/Gateway

	natsURL := getEnv("NATS_URL", "nats://localhost:4222")

	busConfig := bus.DefaultJetStreamConfig()
	busConfig.URL = natsURL
	publisher, err := bus.NewJetStreamPublisher(busConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create event publisher: %w", err)
	}

	registry := engine.NewRegistry(config.Games.Catalog)
	tickInterval := time.Duration(config.Games.TickIntervalSeconds) * time.Second
	eng := engine.NewEngine(registry, publisher, clockwork.NewRealClock(), tickInterval)

	rosterRepo := roster.NewRepository(database)
	scoringRepo := scoring.NewRepository(database)

	controller := round.NewController(eng, rosterRepo, scoringRepo, config.Games.Catalog)
	handler := round.NewHandler(controller)

	gatewayConfig := gateway.DefaultConfig()
	gatewayConfig.JetStreamConfig.URL = natsURL
	gatewayService, err := gateway.NewService(gatewayConfig, eng)
	if err != nil {
		publisher.Close()
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}

	return &Services{
		Publisher:  publisher,
		Engine:     eng,
		Gateway:    gatewayService,
		Controller: controller,
		Handler:    handler,
	}, nil
}
