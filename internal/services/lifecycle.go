package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/archiletras/fichas-backend/internal/ai"
	"github.com/archiletras/fichas-backend/internal/cards"
	"github.com/archiletras/fichas-backend/internal/data/graph"
	"github.com/archiletras/fichas-backend/internal/data/repos/fichas"
	"github.com/archiletras/fichas-backend/internal/domain"
	"github.com/archiletras/fichas-backend/internal/platform/dbctx"
	"github.com/archiletras/fichas-backend/internal/platform/logger"
	"github.com/archiletras/fichas-backend/internal/platform/redisdb"
	"github.com/archiletras/fichas-backend/internal/types"
)

// TextGateway is the slice of the AI gateway the lifecycle consumes.
type TextGateway interface {
	Generate(ctx context.Context, prompt string, opts ai.GenerateOptions) (ai.GenerateResult, error)
}

// DuplicateFinder is the pre-create duplicate check.
type DuplicateFinder interface {
	FindPossibleDuplicates(ctx context.Context, tag string, payload map[string]any) ([]string, error)
}

// CreateInput carries the creation fields for a new card.
type CreateInput struct {
	Subtype   string   `json:"subtype"`
	Title     string   `json:"title"`
	CreatorID string   `json:"creator_id"`
	Editors   []string `json:"editors"`
	Reviewers []string `json:"reviewers"`
}

// AutoOrchestrateInput drives the composite create/save/review/validate flow.
type AutoOrchestrateInput struct {
	Subtype          string         `json:"subtype"`
	ID               *uuid.UUID     `json:"id,omitempty"`
	Payload          map[string]any `json:"payload"`
	AutoReview       bool           `json:"auto_review"`
	AutoUpload       bool           `json:"auto_upload"`
	ProviderOverride string         `json:"provider_override,omitempty"`
	Creation         *CreateInput   `json:"creation,omitempty"`
}

// LifecycleService owns the card status state machine. Status never moves
// except through these operations.
type LifecycleService interface {
	Create(ctx context.Context, in CreateInput) (*types.Ficha, error)
	Save(ctx context.Context, id uuid.UUID, payload map[string]any) (*types.Ficha, error)
	RequestReview(ctx context.Context, id uuid.UUID, providerOverride string) (*types.Ficha, error)
	Validate(ctx context.Context, id uuid.UUID) (*types.Ficha, error)
	Reject(ctx context.Context, id uuid.UUID, observation string) (*types.Ficha, error)
	Reopen(ctx context.Context, id uuid.UUID) (*types.Ficha, error)
	AutoOrchestrate(ctx context.Context, in AutoOrchestrateInput) (*types.Ficha, error)
}

type lifecycleService struct {
	log       *logger.Logger
	repo      fichas.FichaRepo
	gateway   TextGateway
	graph     graph.Syncer
	detector  DuplicateFinder
	locker    redisdb.LeaseLocker
	templates cards.Templates
}

func NewLifecycleService(
	baseLog *logger.Logger,
	repo fichas.FichaRepo,
	gateway TextGateway,
	syncer graph.Syncer,
	detector DuplicateFinder,
	locker redisdb.LeaseLocker,
	templates cards.Templates,
) LifecycleService {
	return &lifecycleService{
		log:       baseLog.With("service", "LifecycleService"),
		repo:      repo,
		gateway:   gateway,
		graph:     syncer,
		detector:  detector,
		locker:    locker,
		templates: templates,
	}
}

// lock takes the per-ficha transition lease when Redis is configured. The
// conditional status updates below remain the correctness backstop either way.
func (s *lifecycleService) lock(ctx context.Context, op string, id uuid.UUID) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	release, err := s.locker.Acquire(ctx, id)
	if err != nil {
		if errors.Is(err, redisdb.ErrLeaseHeld) {
			return nil, domain.NewError(domain.CodeConflict, op, "another transition is in progress for this ficha", err)
		}
		// A broken lock backend must not block editorial work; the
		// conditional update still guards the status write.
		s.log.Warn("lease acquire failed, continuing without lease", "ficha_id", id.String(), "error", err)
		return func() {}, nil
	}
	return release, nil
}

// retryOnce retries fn one time with backoff when the store reports a
// transient failure. Gate failures and conflicts are never retried, and a
// cancelled caller does not wait out the backoff.
func (s *lifecycleService) retryOnce(ctx context.Context, op string, fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}
	mapped := fichas.MapError(op, err)
	if !domain.IsCode(mapped, domain.CodeRetryable) {
		return mapped
	}
	select {
	case <-ctx.Done():
		return mapped
	case <-time.After(250 * time.Millisecond):
	}
	if err := fn(); err != nil {
		return fichas.MapError(op, err)
	}
	return nil
}

func (s *lifecycleService) load(ctx context.Context, op string, id uuid.UUID) (*types.Ficha, error) {
	var f *types.Ficha
	err := s.retryOnce(ctx, op, func() error {
		var ferr error
		f, ferr = s.repo.FindByID(dbctx.Context{Ctx: ctx}, id)
		return ferr
	})
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, domain.NewError(domain.CodeNotFound, op, fmt.Sprintf("ficha not found: %s", id.String()), nil)
	}
	return f, nil
}

func (s *lifecycleService) Create(ctx context.Context, in CreateInput) (*types.Ficha, error) {
	const op = "Lifecycle.Create"

	subtype := strings.ToLower(strings.TrimSpace(in.Subtype))
	if !types.KnownSubtype(subtype) {
		return nil, domain.NewError(domain.CodeValidation, op, fmt.Sprintf("unknown subtype %q", in.Subtype), nil)
	}
	title := cards.CollapseWhitespace(in.Title)
	if title == "" {
		return nil, domain.NewError(domain.CodeValidation, op, "missing title", nil)
	}

	editors, _ := json.Marshal(emptyIfNil(in.Editors))
	reviewers, _ := json.Marshal(emptyIfNil(in.Reviewers))
	now := time.Now().UTC()
	f := &types.Ficha{
		ID:              uuid.New(),
		Subtype:         subtype,
		Title:           title,
		Status:          types.StatusDraft,
		CreatorID:       strings.TrimSpace(in.CreatorID),
		Editors:         editors,
		Reviewers:       reviewers,
		Attrs:           []byte(`{}`),
		StatusChangedAt: now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err := s.retryOnce(ctx, op, func() error {
		_, cerr := s.repo.Create(dbctx.Context{Ctx: ctx}, f)
		return cerr
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("ficha created", "ficha_id", f.ID.String(), "subtype", subtype)
	return f, nil
}

func (s *lifecycleService) Save(ctx context.Context, id uuid.UUID, payload map[string]any) (*types.Ficha, error) {
	const op = "Lifecycle.Save"

	f, err := s.load(ctx, op, id)
	if err != nil {
		return nil, err
	}

	// Subtype is immutable: a payload naming a different subtype is refused
	// before normalization strips the tag.
	if raw, ok := payload["subtype"].(string); ok {
		if tag := strings.ToLower(strings.TrimSpace(raw)); tag != "" && tag != f.Subtype {
			return nil, domain.NewError(domain.CodeTypeMismatch, op,
				fmt.Sprintf("payload subtype %q does not match ficha subtype %q", tag, f.Subtype), nil)
		}
	}

	normalized := cards.NormalizePayload(payload)
	attrs, title, err := cards.MergeAttrs(f.Attrs, normalized)
	if err != nil {
		return nil, domain.Wrap(domain.CodeValidation, op, err)
	}

	fields := map[string]any{"attrs": attrs}
	if title != "" {
		fields["title"] = title
	}
	err = s.retryOnce(ctx, op, func() error {
		return s.repo.UpdateFields(dbctx.Context{Ctx: ctx}, id, fields)
	})
	if err != nil {
		return nil, err
	}
	return s.load(ctx, op, id)
}

// RequestReview enriches every free-text section and moves the card to
// pending review. Generation runs concurrently per section; one failure
// cancels the siblings and aborts the transition with nothing written.
func (s *lifecycleService) RequestReview(ctx context.Context, id uuid.UUID, providerOverride string) (*types.Ficha, error) {
	const op = "Lifecycle.RequestReview"

	release, err := s.lock(ctx, op, id)
	if err != nil {
		return nil, err
	}
	defer release()

	f, err := s.load(ctx, op, id)
	if err != nil {
		return nil, err
	}
	if f.Status == types.StatusValidated || f.Status == types.StatusRejected {
		return nil, domain.NewError(domain.CodeConflict, op,
			fmt.Sprintf("cannot request review while status is %q", f.Status), nil)
	}

	sub, err := cards.ForTag(f.Subtype)
	if err != nil {
		return nil, domain.Wrap(domain.CodeValidation, op, err)
	}
	if missing := sub.MissingFields(f, cards.ToReview); len(missing) > 0 {
		return nil, domain.NotReady(op, missing)
	}

	sections, err := sub.Sections(f, s.templates)
	if err != nil {
		return nil, domain.Wrap(domain.CodeInternal, op, err)
	}

	outputs, err := s.generateSections(ctx, sections, providerOverride)
	if err != nil {
		return nil, err
	}

	attrs, err := sub.ApplySections(f.Attrs, outputs)
	if err != nil {
		return nil, domain.Wrap(domain.CodeInternal, op, err)
	}

	// All generated fields and the status move land in one conditional write;
	// a lost race leaves the card untouched.
	now := time.Now().UTC()
	var updated bool
	err = s.retryOnce(ctx, op, func() error {
		var uerr error
		updated, uerr = s.repo.ConditionalUpdate(dbctx.Context{Ctx: ctx}, id,
			[]string{types.StatusDraft, types.StatusPendingReview},
			map[string]any{
				"attrs":             attrs,
				"status":            types.StatusPendingReview,
				"status_changed_at": now,
			})
		return uerr
	})
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, domain.NewError(domain.CodeConflict, op, "ficha status changed concurrently", nil)
	}

	s.log.Info("ficha moved to pending review", "ficha_id", id.String(), "sections", len(sections))
	return s.load(ctx, op, id)
}

// generateSections runs all section prompts concurrently and joins the
// results. The first failure cancels in-flight siblings.
func (s *lifecycleService) generateSections(ctx context.Context, sections []cards.Section, providerOverride string) (map[string]string, error) {
	const op = "Lifecycle.RequestReview"

	outputs := make(map[string]string, len(sections))
	var mu sync.Mutex

	eg, gctx := errgroup.WithContext(ctx)
	for _, section := range sections {
		eg.Go(func() error {
			res, err := s.gateway.Generate(gctx, section.Prompt, ai.GenerateOptions{
				ProviderOverride: providerOverride,
			})
			if err != nil {
				return err
			}
			mu.Lock()
			outputs[section.ID] = res.Output
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		if domain.CodeOf(err) != "" {
			return nil, err
		}
		return nil, domain.Wrap(domain.CodeInternal, op, err)
	}
	return outputs, nil
}

// Validate moves the card to validated and synchronizes its graph projection
// inside one document-store transaction: a sync failure rolls the status back.
func (s *lifecycleService) Validate(ctx context.Context, id uuid.UUID) (*types.Ficha, error) {
	const op = "Lifecycle.Validate"

	release, err := s.lock(ctx, op, id)
	if err != nil {
		return nil, err
	}
	defer release()

	f, err := s.load(ctx, op, id)
	if err != nil {
		return nil, err
	}

	sub, err := cards.ForTag(f.Subtype)
	if err != nil {
		return nil, domain.Wrap(domain.CodeValidation, op, err)
	}
	if missing := sub.MissingFields(f, cards.ToValidated); len(missing) > 0 {
		return nil, domain.NotReady(op, missing)
	}

	now := time.Now().UTC()

	// Re-validating an already validated card re-syncs to an identical
	// projection; the MERGE keys make that a node-count no-op.
	if f.Status == types.StatusValidated {
		if err := s.syncGraph(ctx, op, f, now); err != nil {
			return nil, err
		}
		return s.load(ctx, op, id)
	}
	if f.Status != types.StatusPendingReview {
		return nil, domain.NewError(domain.CodeConflict, op,
			fmt.Sprintf("cannot validate from status %q", f.Status), nil)
	}

	err = s.repo.Transaction(ctx, func(dbc dbctx.Context) error {
		updated, uerr := s.repo.ConditionalUpdate(dbc, id,
			[]string{types.StatusPendingReview},
			map[string]any{
				"status":            types.StatusValidated,
				"status_changed_at": now,
			})
		if uerr != nil {
			return fichas.MapError(op, uerr)
		}
		if !updated {
			return domain.NewError(domain.CodeConflict, op, "ficha was validated concurrently", nil)
		}

		f.Status = types.StatusValidated
		if serr := s.graph.Sync(dbc.Ctx, f); serr != nil {
			// Returning rolls the status write back; the graph write
			// transaction already unwound on its side.
			return domain.NewError(domain.CodeSyncFailed, op, "graph synchronization failed", serr)
		}

		synced := time.Now().UTC()
		if uerr := s.repo.UpdateFields(dbc, id, map[string]any{"graph_synced_at": synced}); uerr != nil {
			return fichas.MapError(op, uerr)
		}
		return nil
	})
	if err != nil {
		if domain.CodeOf(err) != "" {
			return nil, err
		}
		return nil, fichas.MapError(op, err)
	}

	s.log.Info("ficha validated", "ficha_id", id.String())
	return s.load(ctx, op, id)
}

func (s *lifecycleService) syncGraph(ctx context.Context, op string, f *types.Ficha, now time.Time) error {
	if err := s.graph.Sync(ctx, f); err != nil {
		return domain.NewError(domain.CodeSyncFailed, op, "graph synchronization failed", err)
	}
	return s.retryOnce(ctx, op, func() error {
		return s.repo.UpdateFields(dbctx.Context{Ctx: ctx}, f.ID, map[string]any{"graph_synced_at": now})
	})
}

func (s *lifecycleService) Reject(ctx context.Context, id uuid.UUID, observation string) (*types.Ficha, error) {
	const op = "Lifecycle.Reject"

	f, err := s.load(ctx, op, id)
	if err != nil {
		return nil, err
	}
	if f.Status == types.StatusValidated {
		return nil, domain.NewError(domain.CodeConflict, op, "cannot reject a validated ficha", nil)
	}

	var updated bool
	err = s.retryOnce(ctx, op, func() error {
		var uerr error
		updated, uerr = s.repo.ConditionalUpdate(dbctx.Context{Ctx: ctx}, id,
			[]string{types.StatusDraft, types.StatusPendingReview, types.StatusRejected},
			map[string]any{
				"status":            types.StatusRejected,
				"rejection_note":    cards.CollapseWhitespace(observation),
				"status_changed_at": time.Now().UTC(),
			})
		return uerr
	})
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, domain.NewError(domain.CodeConflict, op, "ficha status changed concurrently", nil)
	}
	return s.load(ctx, op, id)
}

// Reopen is the only escape from the two terminal states, and only ever by
// explicit request. A reopened card is a draft again, so its published graph
// projection comes down with it.
func (s *lifecycleService) Reopen(ctx context.Context, id uuid.UUID) (*types.Ficha, error) {
	const op = "Lifecycle.Reopen"

	var updated bool
	err := s.retryOnce(ctx, op, func() error {
		var uerr error
		updated, uerr = s.repo.ConditionalUpdate(dbctx.Context{Ctx: ctx}, id,
			[]string{types.StatusValidated, types.StatusRejected},
			map[string]any{
				"status":            types.StatusDraft,
				"rejection_note":    "",
				"graph_synced_at":   nil,
				"status_changed_at": time.Now().UTC(),
			})
		return uerr
	})
	if err != nil {
		return nil, err
	}
	if !updated {
		f, lerr := s.load(ctx, op, id)
		if lerr != nil {
			return nil, lerr
		}
		return nil, domain.NewError(domain.CodeConflict, op,
			fmt.Sprintf("cannot reopen from status %q", f.Status), nil)
	}

	if err := s.graph.DeleteProjection(ctx, id); err != nil {
		// The card is already a draft; a leftover projection is logged, not
		// fatal, and disappears on the next validate.
		s.log.Warn("projection delete failed after reopen", "ficha_id", id.String(), "error", err)
	}
	return s.load(ctx, op, id)
}

// AutoOrchestrate is the composite flow: duplicate check and create when no id
// is given, then save, then the optional gated transitions in order. The first
// error short-circuits.
func (s *lifecycleService) AutoOrchestrate(ctx context.Context, in AutoOrchestrateInput) (*types.Ficha, error) {
	const op = "Lifecycle.AutoOrchestrate"

	var f *types.Ficha
	if in.ID == nil {
		normalized := cards.NormalizePayload(in.Payload)
		if s.detector != nil {
			hits, err := s.detector.FindPossibleDuplicates(ctx, strings.ToLower(strings.TrimSpace(in.Subtype)), normalized)
			if err != nil {
				return nil, fichas.MapError(op, err)
			}
			if len(hits) > 0 {
				return nil, domain.Duplicate(op, hits)
			}
		}

		create := CreateInput{Subtype: in.Subtype}
		if in.Creation != nil {
			create = *in.Creation
			create.Subtype = in.Subtype
		}
		if create.Title == "" {
			if title, ok := normalized["title"].(string); ok {
				create.Title = title
			}
		}
		created, err := s.Create(ctx, create)
		if err != nil {
			return nil, err
		}
		f = created
	} else {
		loaded, err := s.load(ctx, op, *in.ID)
		if err != nil {
			return nil, err
		}
		f = loaded
	}

	if len(in.Payload) > 0 {
		saved, err := s.Save(ctx, f.ID, in.Payload)
		if err != nil {
			return nil, err
		}
		f = saved
	}

	if in.AutoReview {
		reviewed, err := s.RequestReview(ctx, f.ID, in.ProviderOverride)
		if err != nil {
			return nil, err
		}
		f = reviewed
	}

	if in.AutoUpload {
		validated, err := s.Validate(ctx, f.ID)
		if err != nil {
			return nil, err
		}
		f = validated
	}

	return f, nil
}

func emptyIfNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
