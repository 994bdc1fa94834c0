package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/archiletras/fichas-backend/internal/domain"
	"github.com/archiletras/fichas-backend/internal/platform/dbctx"
	"github.com/archiletras/fichas-backend/internal/platform/logger"
	"github.com/archiletras/fichas-backend/internal/services"

	fichasrepo "github.com/archiletras/fichas-backend/internal/data/repos/fichas"
)

// FichaHandler exposes the lifecycle operations over HTTP. Handlers stay
// thin: decode, call the service, map the error.
type FichaHandler struct {
	log       *logger.Logger
	lifecycle services.LifecycleService
	repo      fichasrepo.FichaRepo
}

func NewFichaHandler(baseLog *logger.Logger, lifecycle services.LifecycleService, repo fichasrepo.FichaRepo) *FichaHandler {
	return &FichaHandler{
		log:       baseLog.With("handler", "FichaHandler"),
		lifecycle: lifecycle,
		repo:      repo,
	}
}

func (h *FichaHandler) Create(c *gin.Context) {
	var in services.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, domain.NewError(domain.CodeValidation, "http.Create", "invalid request body", err))
		return
	}
	f, err := h.lifecycle.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, f)
}

func (h *FichaHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	f, err := h.repo.FindByID(dbctx.Context{Ctx: c.Request.Context()}, id)
	if err != nil {
		respondError(c, fichasrepo.MapError("http.Get", err))
		return
	}
	if f == nil {
		respondError(c, domain.NewError(domain.CodeNotFound, "http.Get", "ficha not found", nil))
		return
	}
	c.JSON(http.StatusOK, f)
}

func (h *FichaHandler) Save(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var payload map[string]any
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondError(c, domain.NewError(domain.CodeValidation, "http.Save", "invalid request body", err))
		return
	}
	f, err := h.lifecycle.Save(c.Request.Context(), id, payload)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

func (h *FichaHandler) RequestReview(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var body struct {
		ProviderOverride string `json:"provider_override"`
	}
	_ = c.ShouldBindJSON(&body)
	f, err := h.lifecycle.RequestReview(c.Request.Context(), id, body.ProviderOverride)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

func (h *FichaHandler) Validate(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	f, err := h.lifecycle.Validate(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

func (h *FichaHandler) Reject(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var body struct {
		Observation string `json:"observation"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, domain.NewError(domain.CodeValidation, "http.Reject", "invalid request body", err))
		return
	}
	f, err := h.lifecycle.Reject(c.Request.Context(), id, body.Observation)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

func (h *FichaHandler) Reopen(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	f, err := h.lifecycle.Reopen(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

func (h *FichaHandler) AutoOrchestrate(c *gin.Context) {
	var in services.AutoOrchestrateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, domain.NewError(domain.CodeValidation, "http.AutoOrchestrate", "invalid request body", err))
		return
	}
	f, err := h.lifecycle.AutoOrchestrate(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, domain.NewError(domain.CodeValidation, "http", "invalid ficha id", err))
		return uuid.Nil, false
	}
	return id, true
}
