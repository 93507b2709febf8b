// Command server runs the wheel-strategy analytics API.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/wheelhouse-dev/wheelhouse/internal/config"
	"github.com/wheelhouse-dev/wheelhouse/internal/dashboard"
	"github.com/wheelhouse-dev/wheelhouse/internal/marketdata"
	"github.com/wheelhouse-dev/wheelhouse/internal/mock"
	"github.com/wheelhouse-dev/wheelhouse/internal/normalize"
	"github.com/wheelhouse-dev/wheelhouse/internal/retry"
	"github.com/wheelhouse-dev/wheelhouse/internal/strategy"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Optional .env for the vendor API token; absence is fine.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: could not load .env: %v", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.Environment.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	logger.Infof("Starting wheelhouse in %s mode with %s provider",
		cfg.Environment.Mode, cfg.Vendor.Provider)

	var provider marketdata.Provider
	switch cfg.Vendor.Provider {
	case "tradier":
		provider = marketdata.NewTradierClient(cfg.Vendor.APIKey, cfg.Vendor.APIEndpoint, cfg.Vendor.Sandbox)
	default:
		provider = mock.NewProvider()
	}
	provider = marketdata.NewCircuitBreakerProvider(provider)
	provider = retry.NewClient(provider, log.New(os.Stdout, "[FETCH] ", log.LstdFlags))

	cache := marketdata.NewCache(cfg.CacheTTLDuration())
	if cfg.Fetch.CachePath != "" {
		if err := cache.LoadFrom(cfg.Fetch.CachePath); err != nil {
			logger.WithError(err).Warn("Could not restore quote cache snapshot")
		}
	}

	fetcher := marketdata.NewBatchFetcher(provider, cache,
		log.New(os.Stdout, "[FETCH] ", log.LstdFlags),
		marketdata.BatchFetcherConfig{
			RateLimit:  cfg.Fetch.RateLimit,
			RateWindow: cfg.RateWindowDuration(),
			Deadline:   cfg.BatchDeadlineDuration(),
		})

	normalizer := normalize.NewNormalizer(normalize.Options{
		PerShareThreshold: cfg.Normalize.PerShareThreshold,
	})

	strategyCfg := strategy.Config{
		RollPriceRatio:     cfg.Strategy.RollPriceRatio,
		RollDeltaThreshold: cfg.Strategy.RollDeltaThreshold,
		MoneynessProxyPct:  cfg.Strategy.MoneynessProxyPct,
		LetExpireDTE:       cfg.Strategy.LetExpireDTE,
		CallZoneRatio:      cfg.Strategy.CallZoneRatio,
		PutZoneRatio:       cfg.Strategy.PutZoneRatio,
		DefaultCallRatio:   cfg.Strategy.DefaultCallRatio,
		DefaultPutRatio:    cfg.Strategy.DefaultPutRatio,
	}.Normalize()

	analyzer := dashboard.NewAnalyzer(normalizer, fetcher, provider, strategyCfg)

	server := dashboard.NewServer(dashboard.Config{
		Port:          cfg.Server.Port,
		AuthToken:     cfg.Server.AuthToken,
		PortfolioPath: cfg.Portfolio.Path,
	}, analyzer, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Infof("Received %s, shutting down", sig)
	case err := <-errCh:
		if err != nil {
			logger.WithError(err).Error("Server stopped")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Graceful shutdown failed")
	}

	if cfg.Fetch.CachePath != "" {
		if err := cache.SaveTo(cfg.Fetch.CachePath); err != nil {
			logger.WithError(err).Warn("Could not persist quote cache snapshot")
		}
	}
}
