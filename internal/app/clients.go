package app

import (
	"os"
	"strings"

	"github.com/archiletras/fichas-backend/internal/ai"
	"github.com/archiletras/fichas-backend/internal/clients/deepseek"
	"github.com/archiletras/fichas-backend/internal/clients/ollama"
	"github.com/archiletras/fichas-backend/internal/clients/openai"
	"github.com/archiletras/fichas-backend/internal/platform/logger"
	"github.com/archiletras/fichas-backend/internal/platform/neo4jdb"
	"github.com/archiletras/fichas-backend/internal/platform/redisdb"
)

type Clients struct {
	Gateway *ai.Gateway
	Neo4j   *neo4jdb.Client
	Locker  redisdb.LeaseLocker
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	gateway := ai.NewGateway(log, cfg.DefaultProvider, cfg.RequestTimeout, cfg.ProbeTimeout,
		openai.NewClient(log),
		deepseek.NewClient(log),
		ollama.NewClient(log),
	)

	neo, err := neo4jdb.NewFromEnv(log)
	if err != nil {
		return Clients{}, err
	}
	if neo == nil {
		log.Warn("NEO4J_URI not set, graph sync disabled")
	}

	var locker redisdb.LeaseLocker
	if strings.TrimSpace(os.Getenv("REDIS_ADDR")) != "" {
		l, err := redisdb.NewLeaseLocker(log)
		if err != nil {
			return Clients{}, err
		}
		locker = l
	} else {
		log.Warn("REDIS_ADDR not set, transition leases disabled (conditional updates still guard status)")
	}

	return Clients{Gateway: gateway, Neo4j: neo, Locker: locker}, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Locker != nil {
		_ = c.Locker.Close()
	}
}
