package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/stemsi/exam-engine/internal/config"
	"github.com/stemsi/exam-engine/internal/handler"
	"github.com/stemsi/exam-engine/internal/middleware"
	"github.com/stemsi/exam-engine/internal/response"
	"github.com/stemsi/exam-engine/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Session *handler.SessionHandler
	WS      *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for execution routes (30 requests per minute per IP).
	// The judge has its own rate limit; this keeps a single client from
	// burning the shared quota.
	runLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Attempt Group (Candidate JWT) ──────────────────────────────
	attempts := router.Group("/api/v1/attempts")
	attempts.Use(middleware.RequireCandidateJWT(authService))
	{
		attempts.POST("/:assessment_id/open", handlers.Session.OpenAttempt)
		attempts.GET("/:assessment_id/state", handlers.Session.GetState)
		attempts.PUT("/:assessment_id/answers/mcq", handlers.Session.RecordMCQ)
		attempts.PUT("/:assessment_id/answers/code", handlers.Session.RecordCode)
		attempts.POST("/:assessment_id/submit", handlers.Session.Submit)

		runs := attempts.Group("")
		runs.Use(runLimiter.Middleware())
		{
			runs.POST("/:assessment_id/questions/:question_id/run", handlers.Session.RunSample)
			runs.POST("/:assessment_id/questions/:question_id/evaluate", handlers.Session.Evaluate)
		}
	}

	// ─── 2. WebSocket Group (Candidate WS Auth) ────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireCandidateWSAuth(authService))
	{
		ws.GET("/attempts/:assessment_id/stream", handlers.WS.ClockStream)
	}

	return router
}
