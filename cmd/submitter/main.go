package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"

	"github.com/feral-file/ff-mint-reconciler/internal/adapter"
	"github.com/feral-file/ff-mint-reconciler/internal/config"
	"github.com/feral-file/ff-mint-reconciler/internal/logger"
	"github.com/feral-file/ff-mint-reconciler/internal/metrics"
	"github.com/feral-file/ff-mint-reconciler/internal/mintapi"
	"github.com/feral-file/ff-mint-reconciler/internal/minting"
	"github.com/feral-file/ff-mint-reconciler/internal/ratelimit"
	"github.com/feral-file/ff-mint-reconciler/internal/store"
	"github.com/feral-file/ff-mint-reconciler/internal/sweeper"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadSubmitterConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service": "mint-submitter",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Mint Submitter")

	// Connect to database
	db, err := store.OpenDatabase(cfg.Database.Driver, cfg.Database.DSN(), cfg.Database.SQLitePath, &gorm.Config{})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err), zap.String("driver", cfg.Database.Driver))
	}

	// Configure connection pool
	if cfg.Database.Driver == config.DriverPostgres {
		if err := store.ConfigureConnectionPool(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime); err != nil {
			logger.FatalCtx(ctx, "Failed to configure connection pool", zap.Error(err))
		}
	}
	logger.InfoCtx(ctx, "Connected to database", zap.String("driver", cfg.Database.Driver))

	// Initialize store
	dataStore := store.NewPGStore(db)

	// Initialize adapters
	clock := adapter.NewClock()
	httpClient := adapter.NewHTTPClient(cfg.Minting.CallTimeout)
	mintClient := mintapi.NewClient(httpClient, mintapi.Config{
		BaseURL:   cfg.MintAPI.BaseURL,
		APIKey:    cfg.MintAPI.APIKey,
		ChainName: cfg.MintAPI.ChainName,
	})

	// Pace mint requests across submitter replicas
	var limiter ratelimit.Limiter
	if cfg.RateLimit.RequestsPerSecond > 0 {
		var redisClient adapter.RedisClient
		if cfg.RateLimit.RedisAddr != "" {
			redisClient = adapter.NewRedisClient(cfg.RateLimit.RedisAddr, cfg.RateLimit.RedisPassword, cfg.RateLimit.RedisDB)
		}
		limiter, err = ratelimit.NewLimiter(ratelimit.Config{
			Key:                 cfg.RateLimit.RedisKey,
			RequestsPerSecond:   cfg.RateLimit.RequestsPerSecond,
			Burst:               cfg.RateLimit.Burst,
			MaxWait:             cfg.RateLimit.MaxWait,
			EnableLocalFallback: cfg.RateLimit.EnableLocalFallback,
		}, redisClient, clock)
		if err != nil {
			logger.FatalCtx(ctx, "Failed to create mint request limiter", zap.Error(err))
		}
		mintClient = mintapi.NewPacedClient(mintClient, limiter)
	}
	m := metrics.New("mint-submitter")

	submitter := minting.NewSubmitter(minting.SubmitterConfig{
		Interval:         cfg.Minting.Interval,
		BatchSize:        cfg.Minting.BatchSize,
		ChunkSize:        cfg.Minting.ChunkSize,
		MaxNumberOfTries: cfg.Minting.MaxNumberOfTries,
		CallTimeout:      cfg.Minting.CallTimeout,
		WorkerPoolSize:   cfg.Minting.WorkerPoolSize,
	}, dataStore, mintClient, clock, m)

	staleClaimSweeper := sweeper.NewStaleClaimSweeper(sweeper.StaleClaimSweeperConfig{
		StaleAfter: cfg.Minting.StaleClaimAfter,
	}, dataStore, clock, m)

	sweepers := []sweeper.Sweeper{submitter, staleClaimSweeper}

	// Serve metrics
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorCtx(ctx, fmt.Errorf("metrics server failed: %w", err))
		}
	}()

	// Start every sweeper in its own goroutine
	errChan := make(chan error, len(sweepers))
	var wg sync.WaitGroup
	for _, s := range sweepers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Start(ctx); err != nil {
				errChan <- fmt.Errorf("%s: %w", s.Name(), err)
			}
		}()
	}

	// Wait for interrupt signal or error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errChan:
		logger.ErrorCtx(ctx, err)
	}

	// Stop claiming; in-flight chunks still persist their outcome
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer shutdownCancel()

	for _, s := range sweepers {
		if err := s.Stop(shutdownCtx); err != nil {
			logger.ErrorCtx(shutdownCtx, err, zap.String("sweeper", s.Name()))
		}
	}
	cancel()
	wg.Wait()

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.ErrorCtx(shutdownCtx, err)
	}

	if limiter != nil {
		if err := limiter.Close(); err != nil {
			logger.ErrorCtx(shutdownCtx, err)
		}
	}

	logger.Info("Mint submitter stopped")
}
