// Command checkoutsim runs a local stand-in for the hosted payment processor.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sudo-init-do/gighub/internal/checkoutsim"
	"github.com/sudo-init-do/gighub/internal/config"
	"github.com/sudo-init-do/gighub/internal/logger"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	lg := logger.Setup(cfg.Log.Level, cfg.Log.Pretty).With().Str("component", "checkoutsim").Logger()

	sim := checkoutsim.New(checkoutsim.Config{
		PublicURL:     cfg.Checkout.BaseURL,
		APIKey:        cfg.Checkout.APIKey,
		WebhookURL:    cfg.Checkout.WebhookURL,
		WebhookSecret: cfg.Checkout.WebhookSecret,
	}, lg)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Checkout.ListenPort),
		Handler:      sim.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	go func() {
		lg.Info().Str("addr", srv.Addr).Str("webhook", cfg.Checkout.WebhookURL).Msg("Checkout simulator listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal().Err(err).Msg("Simulator failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		lg.Error().Err(err).Msg("Simulator forced to shutdown")
	}
	sim.Wait()
}
