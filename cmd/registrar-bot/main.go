// Command registrar-bot runs the registration and note-taking bot: a
// long-polling Telegram transport in front of the conversation core, plus a
// small HTTP server exposing health, metrics, and read-only listings.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/mkraev/registrar-bot/internal/config"
	"github.com/mkraev/registrar-bot/internal/conversation"
	httpapi "github.com/mkraev/registrar-bot/internal/http"
	"github.com/mkraev/registrar-bot/internal/observability"
	"github.com/mkraev/registrar-bot/internal/repo"
	"github.com/mkraev/registrar-bot/internal/services"
	"github.com/mkraev/registrar-bot/internal/sysutil"
	"github.com/mkraev/registrar-bot/internal/telegram"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Load .env in dev; absence is fine in containers.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	logger := sysutil.NewLogger(cfg.LogPretty)
	sysutil.SetLogLevel(cfg.LogLevel)
	log.Logger = logger

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		logger.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.OpenSQLite(cfg.DBPath, cfg.OTEL.Enabled)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		logger.Fatal().Err(err).Msg("migration failed")
	}

	userSvc := &services.UserService{DB: db}
	arcSvc := &services.ArchiveService{DB: db, RecentLimit: cfg.RecentNotesLimit}

	machine := conversation.NewMachine(userSvc, arcSvc, conversation.NewStateStore(), logger)

	api := telegram.NewClient(&http.Client{Timeout: cfg.PollTimeout + 10*time.Second}, cfg.TelegramBaseURL, cfg.BotToken)
	sender := &telegram.Sender{API: api, Log: logger}

	dispatcher := conversation.NewDispatcher(machine, sender, logger, conversation.DispatcherOptions{
		QueueSize:      cfg.QueueSize,
		MaxConcurrency: cfg.MaxConcurrency,
		TaskTimeout:    cfg.TaskTimeout,
	})

	poller := &telegram.Poller{
		API:         api,
		Dispatcher:  dispatcher,
		Log:         logger,
		PollTimeout: cfg.PollTimeout,
	}

	pollErr := make(chan error, 1)
	go func() { pollErr <- poller.Run(ctx) }()

	gin.SetMode(cfg.GinMode)
	engine := gin.New()
	httpapi.RegisterRoutes(engine, db, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("version", version).Msg("ops server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("ops server failed")
			cancel()
		}
	}()

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigch:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-pollErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("polling stopped")
		}
	case <-ctx.Done():
	}

	// Stop polling first so no new events arrive, then drain in-flight
	// events, then close the ops server and flush traces.
	cancel()
	dispatcher.Close()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("ops server shutdown failed")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("tracer shutdown failed")
	}

	logger.Info().Msg("bye")
}
