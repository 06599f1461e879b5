package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"barber_booking_echo/internal/config"
	"barber_booking_echo/internal/handlers"
	"barber_booking_echo/internal/logger"
	"barber_booking_echo/internal/services"
	"barber_booking_echo/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	logger.Init(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	infra, err := services.Bootstrap(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize infrastructure")
	}
	defer infra.Close()

	gateway, err := services.NewGateway(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize payment gateway")
	}

	deps := handlers.Deps{
		Store:         infra.Store,
		Gateway:       gateway,
		Payments:      services.NewPaymentService(infra.Store, gateway),
		Reconciler:    services.NewReconciler(gateway, infra.Store, infra.Publisher),
		AdminClaim:    cfg.AdminClaim,
		SecureCookies: cfg.IsProduction(),
	}
	if infra.DB != nil {
		deps.History = store.NewCallbackHistory(infra.DB)
	} else {
		log.Warn().Msg("DATABASE_URL not set, payment callback history disabled")
	}
	if infra.Firebase != nil {
		deps.TokenVerifier = infra.Firebase.Auth
		deps.SessionIssuer = infra.Firebase.Auth
	} else {
		log.Warn().Msg("Firebase not configured, admin routes will answer 503")
	}

	e := handlers.NewRouter(deps)

	go func() {
		log.Info().
			Str("port", cfg.Port).
			Str("store", cfg.StoreBackend).
			Str("gateway", cfg.GatewayProvider).
			Msg("Server starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}
