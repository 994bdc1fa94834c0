package fichas

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/archiletras/fichas-backend/internal/platform/dbctx"
	"github.com/archiletras/fichas-backend/internal/platform/logger"
	"github.com/archiletras/fichas-backend/internal/types"
)

// FichaRepo is the document-store surface the lifecycle needs: lookups,
// creation, field patches, a conditional status update and a transaction
// scope.
type FichaRepo interface {
	FindByID(dbc dbctx.Context, id uuid.UUID) (*types.Ficha, error)
	Create(dbc dbctx.Context, f *types.Ficha) (*types.Ficha, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, fields map[string]any) error

	// ConditionalUpdate applies fields only while the ficha's status is one of
	// expectedStatuses. Returns false when no row matched: the caller lost a
	// race or the ficha is in the wrong state.
	ConditionalUpdate(dbc dbctx.Context, id uuid.UUID, expectedStatuses []string, fields map[string]any) (bool, error)

	// ListStaleValidated returns validated fichas whose graph projection
	// predates their last status change (or was never written).
	ListStaleValidated(dbc dbctx.Context) ([]*types.Ficha, error)

	// Transaction wraps fn in one document-store transaction.
	Transaction(ctx context.Context, fn func(dbc dbctx.Context) error) error
}

type fichaRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFichaRepo(db *gorm.DB, baseLog *logger.Logger) FichaRepo {
	return &fichaRepo{db: db, log: baseLog.With("repo", "FichaRepo")}
}

func (r *fichaRepo) handle(dbc dbctx.Context) *gorm.DB {
	tx := dbc.Tx
	if tx == nil {
		tx = r.db
	}
	ctx := dbc.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	return tx.WithContext(ctx)
}

func (r *fichaRepo) FindByID(dbc dbctx.Context, id uuid.UUID) (*types.Ficha, error) {
	var f types.Ficha
	err := r.handle(dbc).Where("id = ?", id).First(&f).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *fichaRepo) Create(dbc dbctx.Context, f *types.Ficha) (*types.Ficha, error) {
	if err := r.handle(dbc).Create(f).Error; err != nil {
		return nil, err
	}
	return f, nil
}

func (r *fichaRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, fields map[string]any) error {
	return r.handle(dbc).
		Model(&types.Ficha{}).
		Where("id = ?", id).
		Updates(withUpdatedAt(fields)).Error
}

func (r *fichaRepo) ConditionalUpdate(dbc dbctx.Context, id uuid.UUID, expectedStatuses []string, fields map[string]any) (bool, error) {
	res := r.handle(dbc).
		Model(&types.Ficha{}).
		Where("id = ? AND status IN ?", id, expectedStatuses).
		Updates(withUpdatedAt(fields))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// withUpdatedAt stamps the update time onto a copy so the caller's map is
// never mutated.
func withUpdatedAt(fields map[string]any) map[string]any {
	patch := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		patch[k] = v
	}
	patch["updated_at"] = time.Now().UTC()
	return patch
}

func (r *fichaRepo) ListStaleValidated(dbc dbctx.Context) ([]*types.Ficha, error) {
	var out []*types.Ficha
	err := r.handle(dbc).
		Where("status = ?", types.StatusValidated).
		Where("graph_synced_at IS NULL OR graph_synced_at < status_changed_at").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *fichaRepo) Transaction(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(dbctx.Context{Ctx: ctx, Tx: tx})
	})
}
