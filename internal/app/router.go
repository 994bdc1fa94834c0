package app

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/archiletras/fichas-backend/internal/http/handlers"
	"github.com/archiletras/fichas-backend/internal/http/middleware"
	"github.com/archiletras/fichas-backend/internal/platform/envutil"
	"github.com/archiletras/fichas-backend/internal/platform/logger"
)

func buildRouter(
	log *logger.Logger,
	ficha *handlers.FichaHandler,
	health *handlers.HealthHandler,
	maintenance *handlers.MaintenanceHandler,
) *gin.Engine {
	if envutil.Str("LOG_MODE", "development") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(log))

	origins := strings.Split(envutil.Str("CORS_ALLOWED_ORIGINS", "http://localhost:5173"), ",")
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api := r.Group("/api")
	{
		api.GET("/health", health.HealthCheck)
		api.GET("/health/ai", health.AIHealth)

		f := api.Group("/fichas")
		{
			f.POST("", ficha.Create)
			f.POST("/orchestrate", ficha.AutoOrchestrate)
			f.GET("/:id", ficha.Get)
			f.PUT("/:id", ficha.Save)
			f.POST("/:id/review", ficha.RequestReview)
			f.POST("/:id/validate", ficha.Validate)
			f.POST("/:id/reject", ficha.Reject)
			f.POST("/:id/reopen", ficha.Reopen)
		}

		api.POST("/maintenance/graph-repair", maintenance.GraphRepair)
	}

	return r
}
