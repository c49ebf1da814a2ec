package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"github.com/sudo-init-do/gighub/internal/alerts"
	"github.com/sudo-init-do/gighub/internal/auth"
	"github.com/sudo-init-do/gighub/internal/config"
	"github.com/sudo-init-do/gighub/internal/db"
	"github.com/sudo-init-do/gighub/internal/logger"
	"github.com/sudo-init-do/gighub/internal/marketplace"
	"github.com/sudo-init-do/gighub/internal/payments"
	"github.com/sudo-init-do/gighub/internal/server"
	"github.com/sudo-init-do/gighub/internal/store"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config")
	memory := flag.Bool("memory", false, "keep data in memory instead of Postgres")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	lg := logger.Setup(cfg.Log.Level, cfg.Log.Pretty)

	ctx := context.Background()

	// Storage
	var st store.Store
	if *memory || cfg.Server.Memory {
		lg.Warn().Msg("Using in-memory store, data is lost on exit")
		st = store.NewMemoryStore()
	} else {
		pool, err := db.Connect(ctx, cfg.Database, lg)
		if err != nil {
			lg.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer pool.Close()
		if err := db.EnsureSchema(ctx, pool, lg); err != nil {
			lg.Fatal().Err(err).Msg("Failed to apply schema")
		}
		st = store.NewPGStore(pool)
	}

	// Alerts go through Redis when it is configured
	var notifier alerts.Notifier = alerts.NopNotifier{}
	if cfg.Redis.Addr != "" {
		opt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}
		an := alerts.NewAsynqNotifier(opt, lg)
		defer an.Close()
		notifier = an

		proc := alerts.NewProcessor(opt, lg)
		if err := proc.Start(); err != nil {
			lg.Fatal().Err(err).Msg("Failed to start alert processor")
		}
		defer proc.Shutdown()
		lg.Info().Str("redis", cfg.Redis.Addr).Msg("Alert queue enabled")
	}

	e := server.New(server.Deps{
		Store:    st,
		Tokens:   auth.NewTokens(cfg.JWT.Secret, cfg.JWT.TTL),
		Provider: payments.NewHostedProvider(cfg.Checkout.BaseURL, cfg.Checkout.APIKey, 15*time.Second),
		Notifier: notifier,
		Market: marketplace.Options{
			AppURL:        cfg.Checkout.AppURL,
			WebhookSecret: cfg.Checkout.WebhookSecret,
		},
		Log: lg,
	})

	srv := &http.Server{
		Addr:        cfg.Server.Addr(),
		Handler:     e,
		ReadTimeout: 15 * time.Second,
		// no WriteTimeout: message websockets are long-lived
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		lg.Info().Str("addr", srv.Addr).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	lg.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error().Err(err).Msg("Server forced to shutdown")
	}
	lg.Info().Msg("Server exited")
}
