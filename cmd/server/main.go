package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-live/internal/config"
	"github.com/stemsi/exstem-live/internal/database"
	"github.com/stemsi/exstem-live/internal/handler"
	"github.com/stemsi/exstem-live/internal/live"
	"github.com/stemsi/exstem-live/internal/logger"
	"github.com/stemsi/exstem-live/internal/middleware"
	"github.com/stemsi/exstem-live/internal/repository"
	"github.com/stemsi/exstem-live/internal/router"
	"github.com/stemsi/exstem-live/internal/service"
	"github.com/stemsi/exstem-live/internal/validator"
	"github.com/stemsi/exstem-live/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("store", cfg.StoreBackend).
		Str("auto_advance", cfg.AutoAdvance).
		Dur("poll_interval", cfg.PollInterval).
		Msg("Starting ExStem Live")

	policy, err := live.ParseAutoAdvancePolicy(cfg.AutoAdvance)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid AUTO_ADVANCE")
	}

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Open Store ────────────────────────────────────────────────────
	backend, err := database.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer backend.Close()

	// ─── Connect to Redis (optional) ───────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	if rdb != nil {
		defer rdb.Close()
	}

	// ─── Initialize Services ──────────────────────────────────────────
	cache := service.NewSnapshotCache(rdb, cfg.SnapshotTTL, log)
	publisher := service.NewScorePublisher(rdb, log)

	sessionService := service.NewSessionService(backend.Store, service.NewSessionLocks(), cache, publisher, log)
	pacingService := service.NewPacingService(sessionService, log)
	joinService := service.NewJoinService(sessionService, cfg.JoinBaseURL, log)
	answerService := service.NewAnswerService(backend.Store, cache, log)
	resultsService := service.NewResultsService(sessionService)
	syncService := service.NewSyncService(sessionService)
	tokenService := service.NewTokenService(cfg.JWTSecret, cfg.TokenExpiry)

	// ─── Host Consoles ────────────────────────────────────────────────
	// Timed questions advance on the server even when no host device polls.
	supervisor := live.NewSupervisor(syncService, pacingService, live.LoopConfig{
		Clock:        clockwork.NewRealClock(),
		PollInterval: cfg.PollInterval,
		Policy:       policy,
	}, log)
	sessionService.AddHook(supervisor)
	syncService.SetCountdowns(supervisor)

	if err := supervisor.Resume(ctx, sessionService); err != nil {
		log.Warn().Err(err).Msg("Host console resume failed")
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	joinLimiter := middleware.NewRateLimiter(cfg.JoinRatePerMinute, time.Minute, clockwork.NewRealClock(), rdb, log)
	workers.Add(1)
	go func() {
		defer workers.Done()
		joinLimiter.Run(workerCtx)
	}()

	if rdb != nil && backend.Pool != nil {
		scoringWorker := worker.NewScoringWorker(rdb, repository.NewScoreRepository(backend.Pool), log)
		workers.Add(1)
		go func() {
			defer workers.Done()
			scoringWorker.Start(workerCtx)
		}()
	} else if rdb != nil {
		log.Warn().Str("store", backend.Name).Msg("Score queue has no consumer outside postgres")
	}

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Session:     handler.NewSessionHandler(sessionService, pacingService, joinService, tokenService),
		Participant: handler.NewParticipantHandler(joinService, answerService, syncService, resultsService, tokenService),
		Results:     handler.NewResultsHandler(syncService, resultsService),
		System:      handler.NewSystemHandler(rdb, backend.Name, log),
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(tokenService, joinLimiter, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop host consoles before the store goes away.
	if err := supervisor.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Host console shutdown error")
	}

	// 3. Stop background workers and wait for the score queue to drain.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
