package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/exam-engine/internal/authoring"
	"github.com/stemsi/exam-engine/internal/clockwork"
	"github.com/stemsi/exam-engine/internal/config"
	"github.com/stemsi/exam-engine/internal/database"
	"github.com/stemsi/exam-engine/internal/engine"
	"github.com/stemsi/exam-engine/internal/handler"
	"github.com/stemsi/exam-engine/internal/logger"
	"github.com/stemsi/exam-engine/internal/resultstore"
	"github.com/stemsi/exam-engine/internal/router"
	"github.com/stemsi/exam-engine/internal/service"
	"github.com/stemsi/exam-engine/internal/timerstore"
	"github.com/stemsi/exam-engine/internal/validator"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("result_sink", cfg.ResultSink).
		Msg("Starting Exam Engine")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wallclock := clockwork.NewReal()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	timerStore := timerstore.NewRedisStore(rdb, wallclock, cfg.TimerStaleness)

	// ─── Select Result Sink ────────────────────────────────────────────
	// Postgres mode owns the attempt history; HTTP mode delegates both
	// persistence and the attempt limit to the collaborator.
	var (
		sink     engine.ResultSink
		attempts resultstore.AttemptCounter
	)
	if cfg.ResultSink == "http" {
		sink = resultstore.NewHTTPSink(cfg.ResultSinkURL, cfg.HTTPTimeout, log)
	} else {
		pool, err := database.NewPostgresPool(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer pool.Close()

		pgStore := resultstore.NewPostgresStore(pool)
		sink = pgStore
		attempts = pgStore
	}

	// ─── Initialize Collaborator Clients ──────────────────────────────
	provider := authoring.NewHTTPProvider(cfg.AuthoringBaseURL, cfg.HTTPTimeout, log)
	judgeFactory := service.NewJudgeFactory(cfg, wallclock, log)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg)
	sessionService := service.NewSessionService(
		provider,
		timerStore,
		sink,
		attempts,
		judgeFactory,
		wallclock,
		cfg,
		log,
	)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Session: handler.NewSessionHandler(sessionService),
		WS:      handler.NewWSHandler(sessionService, log, cfg.AllowedOrigins),
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
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

	// 2. Stop live session clocks. Remaining time is already persisted on
	// every tick, so open attempts resume after restart.
	sessionService.Shutdown()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
