package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/archiletras/fichas-backend/internal/platform/dbctx"
	"github.com/archiletras/fichas-backend/internal/platform/logger"
	"github.com/archiletras/fichas-backend/internal/types"
)

func staleValidated(repo *memRepo, title string) uuid.UUID {
	f := &types.Ficha{
		ID:              uuid.New(),
		Subtype:         types.SubtypeAuthor,
		Title:           title,
		Status:          types.StatusValidated,
		Attrs:           []byte(`{"full_name":"` + title + `"}`),
		StatusChangedAt: time.Now().UTC(),
	}
	repo.rows[f.ID] = f
	return f.ID
}

func TestSweepRepairsStaleProjections(t *testing.T) {
	repo := newMemRepo()
	syncer := &fakeSyncer{}

	a := staleValidated(repo, "Gabriela Mistral")
	b := staleValidated(repo, "Pablo de Rokha")

	// A freshly synced card and a draft are both out of scope.
	synced := time.Now().UTC().Add(time.Minute)
	freshID := staleValidated(repo, "Vicente Huidobro")
	repo.rows[freshID].GraphSyncedAt = &synced
	draft := &types.Ficha{ID: uuid.New(), Subtype: types.SubtypeAuthor, Status: types.StatusDraft}
	repo.rows[draft.ID] = draft

	svc := NewRecoveryService(logger.NewNop(), repo, syncer)
	repaired, err := svc.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(repaired) != 2 {
		t.Fatalf("repaired %d fichas, want 2: %v", len(repaired), repaired)
	}
	for _, id := range []uuid.UUID{a, b} {
		row, _ := repo.FindByID(dbctx.Context{}, id)
		if row.GraphSyncedAt == nil {
			t.Fatalf("ficha %s not stamped after repair", id)
		}
	}
	if syncer.syncCount() != 2 {
		t.Fatalf("graph synced %d times, want 2", syncer.syncCount())
	}
}

func TestSweepContinuesPastFailures(t *testing.T) {
	repo := newMemRepo()
	syncer := &fakeSyncer{failIDs: map[uuid.UUID]bool{}}

	bad := staleValidated(repo, "Broken Card")
	good := staleValidated(repo, "Gabriela Mistral")
	syncer.failIDs[bad] = true

	svc := NewRecoveryService(logger.NewNop(), repo, syncer)
	repaired, err := svc.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(repaired) != 1 || repaired[0] != good {
		t.Fatalf("repaired %v, want just %s", repaired, good)
	}

	row, _ := repo.FindByID(dbctx.Context{}, bad)
	if row.GraphSyncedAt != nil {
		t.Fatalf("failed sync was stamped anyway")
	}
}
