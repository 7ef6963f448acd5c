package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-live/internal/config"
	"github.com/stemsi/exstem-live/internal/handler"
	"github.com/stemsi/exstem-live/internal/middleware"
	"github.com/stemsi/exstem-live/internal/response"
	"github.com/stemsi/exstem-live/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Session     *handler.SessionHandler
	Participant *handler.ParticipantHandler
	Results     *handler.ResultsHandler
	System      *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	tokens *service.TokenService,
	joinLimiter *middleware.RateLimiter,
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
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", handlers.System.Health)

	api := router.Group("/api/v1")

	// ─── 1. Operator (session authoring) ───────────────────────────────
	api.POST("/sessions", handlers.Session.CreateSession)
	api.GET("/sessions", middleware.Compress(middleware.DefaultCompressMinLength), handlers.Session.ListSessions)

	// ─── 2. Join (public, rate limited) ────────────────────────────────
	api.GET("/join", middleware.NoStore(), handlers.Participant.ResolveJoin)
	api.POST("/join", joinLimiter.Middleware(), handlers.Participant.Join)

	sessionAPI := api.Group("/sessions/:session_id")

	// ─── 3. Poll (public, snapshot carries no answer key) ──────────────
	sessionAPI.GET("/state", middleware.NoStore(), handlers.Participant.State)

	// ─── 4. Participant (participant token bound to the session) ───────
	participant := sessionAPI.Group("")
	participant.Use(middleware.RequireParticipant(tokens))
	{
		participant.POST("/responses", handlers.Participant.Submit)
		participant.GET("/standing", middleware.NoStore(), handlers.Participant.Standing)
	}

	// ─── 5. Host (host token bound to the session) ─────────────────────
	host := sessionAPI.Group("")
	host.Use(middleware.RequireHost(tokens))
	// Rosters and result sheets grow with the audience.
	report := middleware.Compress(middleware.DefaultCompressMinLength)
	{
		host.GET("", handlers.Session.GetSession)
		host.POST("/questions", handlers.Session.AddQuestion)
		host.POST("/activate", handlers.Session.Activate)
		host.POST("/start", handlers.Session.Start)
		host.POST("/complete", handlers.Session.Complete)
		host.POST("/deactivate", handlers.Session.Deactivate)
		host.POST("/next", handlers.Session.Next)
		host.POST("/previous", handlers.Session.Previous)
		host.GET("/join-link", handlers.Session.JoinLink)
		host.GET("/host-state", middleware.NoStore(), report, handlers.Results.HostState)
		host.GET("/results", report, handlers.Results.Results)
		host.GET("/questions/:question_id/tally", middleware.NoStore(), handlers.Results.QuestionTally)
	}

	return router
}
