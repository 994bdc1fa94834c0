package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/archiletras/fichas-backend/internal/platform/logger"
	"github.com/archiletras/fichas-backend/internal/services"
)

type MaintenanceHandler struct {
	log      *logger.Logger
	recovery services.RecoveryService
}

func NewMaintenanceHandler(baseLog *logger.Logger, recovery services.RecoveryService) *MaintenanceHandler {
	return &MaintenanceHandler{
		log:      baseLog.With("handler", "MaintenanceHandler"),
		recovery: recovery,
	}
}

// GraphRepair runs the stale-projection sweep and reports the repaired ids.
func (h *MaintenanceHandler) GraphRepair(c *gin.Context) {
	repaired, err := h.recovery.Sweep(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"repaired": repaired})
}
