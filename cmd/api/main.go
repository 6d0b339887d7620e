package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"

	"github.com/feral-file/ff-mint-reconciler/internal/adapter"
	"github.com/feral-file/ff-mint-reconciler/internal/api/middleware"
	"github.com/feral-file/ff-mint-reconciler/internal/api/server"
	"github.com/feral-file/ff-mint-reconciler/internal/config"
	"github.com/feral-file/ff-mint-reconciler/internal/logger"
	"github.com/feral-file/ff-mint-reconciler/internal/messaging"
	"github.com/feral-file/ff-mint-reconciler/internal/metrics"
	"github.com/feral-file/ff-mint-reconciler/internal/store"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadAPIConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service": "mint-api",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Feral File Mint API")

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
	logger.InfoCtx(ctx, "Connected to database",
		zap.String("driver", cfg.Database.Driver),
		zap.Int("max_open_conns", cfg.Database.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.Database.MaxIdleConns),
	)

	// Initialize store
	dataStore := store.NewPGStore(db)

	// Webhook events are queued on JetStream when NATS is configured
	var publisher messaging.Publisher
	if cfg.NATS.URL != "" {
		natsCfg := messagingConfig(cfg.NATS)
		nc, js, err := messaging.Connect(natsCfg)
		if err != nil {
			logger.FatalCtx(ctx, "Failed to connect to NATS", zap.Error(err), zap.String("url", cfg.NATS.URL))
		}
		publisher, err = messaging.NewPublisher(ctx, natsCfg, nc, js)
		if err != nil {
			logger.FatalCtx(ctx, "Failed to create publisher", zap.Error(err))
		}
		defer publisher.Close()
		logger.InfoCtx(ctx, "Connected to NATS", zap.String("url", nc.ConnectedUrl()), zap.String("stream", cfg.NATS.StreamName))
	} else {
		logger.WarnCtx(ctx, "NATS not configured, webhook events will be applied inline")
	}

	if cfg.Webhook.Secret == "" {
		logger.WarnCtx(ctx, "Webhook secret not configured, deliveries will not be verified")
	}

	// Create server config
	serverConfig := server.Config{
		Debug:        cfg.Debug,
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
		Auth: middleware.AuthConfig{
			JWTPublicKey: cfg.Auth.JWTPublicKey,
			APIKeys:      cfg.Auth.APIKeys,
		},
		WebhookSecret:    cfg.Webhook.Secret,
		WebhookTolerance: cfg.Webhook.Tolerance,
	}

	srv := server.New(serverConfig, dataStore, adapter.NewCanonicalizer(), publisher, adapter.NewClock(), metrics.New("mint-api"))

	// Start server in a goroutine
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	case err := <-errCh:
		logger.ErrorCtx(ctx, err, zap.String("component", "server"))
		cancel()
	}

	// Create shutdown context with timeout (don't use canceled ctx)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorCtx(shutdownCtx, err)
	}

	logger.Info("API server stopped")
}

func messagingConfig(c config.NATSConfig) messaging.Config {
	return messaging.Config{
		URL:            c.URL,
		StreamName:     c.StreamName,
		ConsumerName:   c.ConsumerName,
		MaxReconnects:  c.MaxReconnects,
		ReconnectWait:  c.ReconnectWait,
		ConnectionName: c.ConnectionName,
		AckWait:        c.AckWait,
		MaxDeliver:     c.MaxDeliver,
	}
}
