package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/alimda/cryptofolio/internal/adapter/httpapi"
	"github.com/alimda/cryptofolio/internal/adapter/marketdata"
	"github.com/alimda/cryptofolio/internal/adapter/persistence/sqlite"
	"github.com/alimda/cryptofolio/internal/config"
	"github.com/alimda/cryptofolio/internal/realtime"
	"github.com/alimda/cryptofolio/internal/scheduler"
	"github.com/alimda/cryptofolio/internal/usecase/alerts"
	"github.com/alimda/cryptofolio/internal/usecase/ledger"
	"github.com/alimda/cryptofolio/internal/usecase/reporting"
	"github.com/alimda/cryptofolio/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting cryptofolio")

	// Initialize persistence gateway
	gateway, err := sqlite.Open(cfg.DatabasePath, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer gateway.Close()

	// Initialize core services. A broken or empty database degrades to empty
	// state inside the constructors rather than failing startup.
	ctx := context.Background()
	ledgerSvc := ledger.NewService(ctx, gateway, log)
	alertStore := alerts.NewStore(ctx, gateway, log)
	reportingSvc := reporting.NewService(ledgerSvc)

	// Market data provider and websocket hub
	provider := marketdata.NewProvider(cfg.CoinGeckoBaseURL, log)
	hub := realtime.NewHub(log)

	// Initialize scheduler and register background jobs
	sched := scheduler.New(log)
	if err := registerJobs(sched, cfg, provider, alertStore, hub, log); err != nil {
		log.Fatal().Err(err).Msg("Failed to register jobs")
	}
	sched.Start()
	defer sched.Stop()

	// Prime market data so the read endpoints have something to serve.
	refresh := &scheduler.MarketRefreshJob{Source: provider}
	if err := sched.RunNow(refresh); err != nil {
		log.Warn().Err(err).Msg("Initial market refresh failed, continuing without data")
	}

	// Initialize HTTP server
	srv := httpapi.New(httpapi.Config{
		Port:      cfg.Port,
		APIToken:  cfg.APIToken,
		DevMode:   cfg.DevMode,
		Log:       log,
		Ledger:    ledgerSvc,
		Alerts:    alertStore,
		Market:    provider,
		Reporting: reportingSvc,
		Hub:       hub,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

func registerJobs(
	sched *scheduler.Scheduler,
	cfg *config.Config,
	provider *marketdata.Provider,
	alertStore *alerts.Store,
	hub *realtime.Hub,
	log zerolog.Logger,
) error {
	if err := sched.AddJob(
		fmt.Sprintf("@every %s", cfg.MarketRefreshInterval),
		&scheduler.MarketRefreshJob{Source: provider},
	); err != nil {
		return err
	}

	return sched.AddJob(
		fmt.Sprintf("@every %s", cfg.AlertCheckInterval),
		&scheduler.AlertSweepJob{
			Source:    provider,
			Evaluator: alertStore,
			Notifier:  hub,
			Log:       log,
		},
	)
}
