package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eddiefleurent/zero-dte-bot/internal/config"
	"github.com/eddiefleurent/zero-dte-bot/internal/dashboard"
	"github.com/eddiefleurent/zero-dte-bot/internal/engine"
	"github.com/eddiefleurent/zero-dte-bot/internal/execution"
	"github.com/eddiefleurent/zero-dte-bot/internal/marketdata"
	"github.com/eddiefleurent/zero-dte-bot/internal/risk"
	"github.com/eddiefleurent/zero-dte-bot/internal/storage"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Pick up a local .env for things like ${DASHBOARD_AUTH_TOKEN}; absence
	// is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := log.New(os.Stdout, "[ZDTE] ", log.LstdFlags|log.Lshortfile)
	logger.Printf("Starting 0DTE backtest in %s mode: %s from %s to %s (seed %d)",
		cfg.Environment.Mode, cfg.Backtest.Symbol,
		cfg.Backtest.StartDate, cfg.Backtest.EndDate, cfg.Backtest.Seed)

	store, err := storage.NewStorage(cfg.Storage.Path)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	// Market data stack: deterministic simulated tape, retried on transient
	// faults, behind a circuit breaker. Each consumer of randomness gets
	// its own source derived from the run seed.
	sim := marketdata.NewSimProvider(cfg.Backtest.Symbol, cfg.Backtest.Seed, 5000, 18, cfg.RegimeLocation())
	retrying := marketdata.NewRetryProvider(sim, logger, rand.New(rand.NewSource(cfg.Backtest.Seed+1))) // #nosec G404
	provider := marketdata.NewCircuitBreakerProvider(retrying)

	estimator := execution.NewEstimator(cfg)
	gate := risk.NewGate(cfg, estimator, store, logger)
	eng := engine.NewEngine(cfg, provider, gate, store, logger,
		rand.New(rand.NewSource(cfg.Backtest.Seed+2))) // #nosec G404

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Println("Shutdown signal received, stopping...")
		cancel()
	}()

	g, gctx := errgroup.WithContext(ctx)

	var dash *dashboard.Server
	if cfg.Dashboard.Enabled {
		dashLogger := logrus.New()
		dashLogger.SetLevel(logrusLevel(cfg.Environment.LogLevel))
		dash = dashboard.NewServer(dashboard.Config{
			Port:      cfg.Dashboard.Port,
			AuthToken: cfg.Dashboard.AuthToken,
		}, store, gate, dashLogger)

		g.Go(func() error {
			if err := dash.Start(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			return dash.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		defer cancel()
		return eng.Run(gctx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Fatalf("Backtest error: %v", err)
	}

	if err := store.Save(); err != nil {
		logger.Printf("Saving ledger: %v", err)
	}
	logger.Println("Backtest stopped successfully")
}

func logrusLevel(level string) logrus.Level {
	switch level {
	case "debug":
		return logrus.DebugLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
