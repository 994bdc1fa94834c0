package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/archiletras/fichas-backend/internal/ai"
)

type HealthHandler struct {
	gateway *ai.Gateway
}

func NewHealthHandler(gateway *ai.Gateway) *HealthHandler {
	return &HealthHandler{gateway: gateway}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// AIHealth reports per-provider configured/reachable state. No side effects.
func (h *HealthHandler) AIHealth(c *gin.Context) {
	c.JSON(http.StatusOK, h.gateway.Health(c.Request.Context()))
}
