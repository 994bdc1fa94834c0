package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/archiletras/fichas-backend/internal/data/graph"
	"github.com/archiletras/fichas-backend/internal/data/repos/fichas"
	"github.com/archiletras/fichas-backend/internal/platform/dbctx"
	"github.com/archiletras/fichas-backend/internal/platform/logger"
)

// RecoveryService repairs the document/graph split that a crash between the
// status commit and the graph sync leaves behind: validated fichas whose
// projection is older than their status change get re-synced.
type RecoveryService interface {
	Sweep(ctx context.Context) ([]uuid.UUID, error)
}

type recoveryService struct {
	log   *logger.Logger
	repo  fichas.FichaRepo
	graph graph.Syncer
}

func NewRecoveryService(baseLog *logger.Logger, repo fichas.FichaRepo, syncer graph.Syncer) RecoveryService {
	return &recoveryService{
		log:   baseLog.With("service", "RecoveryService"),
		repo:  repo,
		graph: syncer,
	}
}

// Sweep re-syncs every stale validated ficha and returns the repaired ids. A
// single ficha failing does not stop the sweep.
func (s *recoveryService) Sweep(ctx context.Context) ([]uuid.UUID, error) {
	const op = "Recovery.Sweep"

	stale, err := s.repo.ListStaleValidated(dbctx.Context{Ctx: ctx})
	if err != nil {
		return nil, fichas.MapError(op, err)
	}

	var repaired []uuid.UUID
	for _, f := range stale {
		if ctx.Err() != nil {
			break
		}
		if err := s.graph.Sync(ctx, f); err != nil {
			s.log.Warn("graph repair failed", "ficha_id", f.ID.String(), "error", err)
			continue
		}
		now := time.Now().UTC()
		if err := s.repo.UpdateFields(dbctx.Context{Ctx: ctx}, f.ID, map[string]any{"graph_synced_at": now}); err != nil {
			s.log.Warn("graph repair stamp failed", "ficha_id", f.ID.String(), "error", err)
			continue
		}
		repaired = append(repaired, f.ID)
	}

	s.log.Info("graph repair sweep done", "stale", len(stale), "repaired", len(repaired))
	return repaired, nil
}
