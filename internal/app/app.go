package app

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/archiletras/fichas-backend/internal/cards"
	"github.com/archiletras/fichas-backend/internal/data/graph"
	"github.com/archiletras/fichas-backend/internal/data/repos/fichas"
	"github.com/archiletras/fichas-backend/internal/db"
	"github.com/archiletras/fichas-backend/internal/http/handlers"
	"github.com/archiletras/fichas-backend/internal/platform/envutil"
	"github.com/archiletras/fichas-backend/internal/platform/logger"
	"github.com/archiletras/fichas-backend/internal/services"
)

// App bundles everything cmd/main.go needs to run and shut down the server.
type App struct {
	Log     *logger.Logger
	Router  *gin.Engine
	clients Clients
}

func New() (*App, error) {
	log, err := logger.New(envutil.Str("LOG_MODE", "development"))
	if err != nil {
		return nil, err
	}

	cfg := LoadConfig(log)

	pg, err := db.NewPostgresService(log)
	if err != nil {
		return nil, err
	}
	if err := pg.AutoMigrateAll(); err != nil {
		return nil, err
	}

	clients, err := wireClients(log, cfg)
	if err != nil {
		return nil, err
	}

	repo := fichas.NewFichaRepo(pg.DB(), log)
	syncer := graph.NewFichaGraph(clients.Neo4j, log)
	detector := cards.NewDuplicateDetector(pg.DB(), log, cfg.DuplicateMode)

	lifecycle := services.NewLifecycleService(log, repo, clients.Gateway, syncer, detector, clients.Locker, cfg.PromptTemplates)
	recovery := services.NewRecoveryService(log, repo, syncer)

	fichaHandler := handlers.NewFichaHandler(log, lifecycle, repo)
	healthHandler := handlers.NewHealthHandler(clients.Gateway)
	maintenanceHandler := handlers.NewMaintenanceHandler(log, recovery)

	router := buildRouter(log, fichaHandler, healthHandler, maintenanceHandler)

	return &App{Log: log, Router: router, clients: clients}, nil
}

func (a *App) Close(ctx context.Context) {
	a.clients.Close()
	if err := a.clients.Neo4j.Close(ctx); err != nil {
		a.Log.Warn("neo4j close failed", "error", err)
	}
}
