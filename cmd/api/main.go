package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/kami-operation/kamiops/internal/buildinfo"
	"github.com/kami-operation/kamiops/internal/cache"
	"github.com/kami-operation/kamiops/internal/config"
	"github.com/kami-operation/kamiops/internal/database"
	"github.com/kami-operation/kamiops/internal/handlers"
	"github.com/kami-operation/kamiops/internal/logger"
	"github.com/kami-operation/kamiops/internal/models"
	"github.com/kami-operation/kamiops/internal/repository"
	"github.com/kami-operation/kamiops/internal/services/access"
	"github.com/kami-operation/kamiops/internal/services/catalog"
	"github.com/kami-operation/kamiops/internal/services/dashboard"
	"github.com/kami-operation/kamiops/internal/services/notify"
	"github.com/kami-operation/kamiops/internal/services/signatures"
	"github.com/kami-operation/kamiops/internal/services/templates"
	"github.com/kami-operation/kamiops/internal/services/workflow"
	"github.com/kami-operation/kamiops/internal/storage"
	"github.com/kami-operation/kamiops/internal/utils"
	"github.com/kami-operation/kamiops/internal/websocket"
	"github.com/kami-operation/kamiops/web"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
		boot.Fatal().Err(err).Msg("failed to load configuration")
	}
	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	log.Info().
		Str("env", cfg.NodeEnv).
		Str("commit", buildinfo.CommitHash).
		Str("build_time", buildinfo.BuildTime).
		Msg("starting kamiops")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// 2. Initialize database (Detects Embedded vs External automatically)
	db, err := database.Connect(cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	// Note: db.Close() is called manually in shutdown handler below

	// 3. Auto-Migrate Schema
	log.Info().Msg("synchronizing database schema")
	if err := db.AutoMigrate(models.Tables()...); err != nil {
		log.Fatal().Err(err).Msg("schema migration failed")
	}

	// 4. Artifacts: storage and seal key
	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise storage")
	}
	sealer, err := utils.LoadOrGenerateSealer(cfg.Seal.KeyPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load seal key")
	}

	// 5. Real-time events, fanned out through Redis when configured
	hub := websocket.NewHub(log)
	go hub.Run(ctx)

	var publisher websocket.Publisher = hub
	if cfg.Redis.Addr != "" {
		rdb, err := websocket.ConnectRedis(ctx, cfg.Redis.Addr, cfg.Redis.DB)
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unavailable, events stay on this instance")
		} else {
			defer rdb.Close()
			broker := websocket.NewBroker(rdb, cfg.Redis.Channel, hub, log)
			go broker.Run(ctx)
			publisher = broker
		}
	}

	// 6. Services
	repos := repository.New(db.DB)
	accessSvc := access.NewService(repos, cache.New(cache.DefaultExpiration), utils.TokenConfig{
		Secret:     cfg.JWTSecret,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	}, log)
	if err := accessSvc.Bootstrap(ctx, cfg.Bootstrap); err != nil {
		log.Fatal().Err(err).Msg("bootstrap failed")
	}

	notifySvc := notify.NewService(repos, publisher, log)
	signatureSvc := signatures.NewService(repos, store, log)
	workflowSvc := workflow.NewService(workflow.Params{
		Repos:         repos,
		Storage:       store,
		Sealer:        sealer,
		Notifier:      notifySvc,
		Signatures:    signatureSvc,
		Publisher:     publisher,
		PublicBaseURL: cfg.PublicBaseURL,
		Logger:        log,
	})
	go workflowSvc.RunExpirySweep(ctx, cfg.Workflow.ExpirySweepInterval)

	// 7. Set up HTTP router
	static, err := web.GetFileSystem(cfg.FrontendDir)
	if err != nil {
		log.Warn().Err(err).Msg("dashboard bundle unavailable")
		static = nil
	}
	router := handlers.NewRouter(handlers.Services{
		Access:     accessSvc,
		Catalog:    catalog.NewService(repos, log),
		Templates:  templates.NewService(repos, store, log),
		Signatures: signatureSvc,
		Workflow:   workflowSvc,
		Notify:     notifySvc,
		Dashboard:  dashboard.NewService(repos, log),
	}, handlers.Options{
		JWTSecret: cfg.JWTSecret,
		NodeEnv:   cfg.NodeEnv,
		Hub:       hub,
		Static:    static,
		Logger:    log,
	})

	// 8. Start server with graceful shutdown
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info().Str("port", cfg.Port).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	sig := <-shutdown
	log.Info().Str("signal", sig.String()).Msg("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// Stops the hub, the broker and the expiry sweep
	stop()

	// Close database (this also stops embedded PostgreSQL)
	log.Info().Msg("closing database connection")
	if err := db.Close(); err != nil {
		log.Error().Err(err).Msg("database close error")
	}

	log.Info().Msg("shutdown complete")
}
