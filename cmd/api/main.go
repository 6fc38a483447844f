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
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/bnc-guild/attendance-engine/internal/adapter"
	"github.com/bnc-guild/attendance-engine/internal/allocator"
	"github.com/bnc-guild/attendance-engine/internal/api/middleware"
	"github.com/bnc-guild/attendance-engine/internal/api/rest"
	"github.com/bnc-guild/attendance-engine/internal/api/server"
	"github.com/bnc-guild/attendance-engine/internal/config"
	"github.com/bnc-guild/attendance-engine/internal/events"
	"github.com/bnc-guild/attendance-engine/internal/ledger"
	"github.com/bnc-guild/attendance-engine/internal/logger"
	"github.com/bnc-guild/attendance-engine/internal/loot"
	"github.com/bnc-guild/attendance-engine/internal/recalc"
	"github.com/bnc-guild/attendance-engine/internal/roster"
	"github.com/bnc-guild/attendance-engine/internal/store"
	"github.com/bnc-guild/attendance-engine/internal/tickflow"
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
			"service": "attendance-api",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting attendance engine API", zap.Uint64("guild_id", cfg.Guild.ID))

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{TranslateError: true})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err))
	}

	// Configure connection pool
	if err := store.ConfigureConnectionPool(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime); err != nil {
		logger.FatalCtx(ctx, "Failed to configure connection pool", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Connected to database",
		zap.Int("max_open_conns", cfg.Database.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.Database.MaxIdleConns),
	)

	// Initialize store
	dataStore := store.NewPGStore(db)

	// Recalculation notifier; an empty URL disables it
	httpClient := adapter.NewHTTPClient(cfg.Recalc.Timeout)
	notifier := recalc.NewNotifier(httpClient, cfg.Recalc.URL, cfg.Recalc.Timeout)
	if cfg.Recalc.URL == "" {
		logger.WarnCtx(ctx, "Recalc URL not configured, attendance recalculation calls disabled")
	}

	// Event publisher; deployments without NATS run with a no-op
	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.NATS.URL != "" {
		publisher, err = events.NewPublisher(events.Config{
			URL:            cfg.NATS.URL,
			StreamName:     cfg.NATS.StreamName,
			MaxReconnects:  cfg.NATS.MaxReconnects,
			ReconnectWait:  cfg.NATS.ReconnectWait,
			ConnectionName: cfg.NATS.ConnectionName,
		})
		if err != nil {
			logger.FatalCtx(ctx, "Failed to connect to NATS", zap.Error(err))
		}
		logger.InfoCtx(ctx, "Connected to NATS", zap.String("url", cfg.NATS.URL))
	} else {
		logger.WarnCtx(ctx, "NATS URL not configured, decision events disabled")
	}
	defer publisher.Close()

	// Build the engine services
	rosterSvc := roster.NewService(dataStore, cfg.Guild.ID)
	ledgerSvc := ledger.NewService(dataStore, rosterSvc)
	raidSvc := ledger.NewRaidService(dataStore, cfg.Guild.ID)
	tickflowSvc := tickflow.NewService(dataStore, ledgerSvc, notifier, publisher, cfg.Guild.ID, cfg.Guild.TickSkew)
	splitter := allocator.NewSplitter(dataStore, rosterSvc)
	lootSvc := loot.NewService(dataStore, rosterSvc, cfg.Guild.ID, cfg.Guild.PassTokenItemID)

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
	}

	// Create and start server
	srv := server.New(serverConfig, rest.Services{
		Roster:    rosterSvc,
		Ledger:    ledgerSvc,
		Raids:     raidSvc,
		Tickflow:  tickflowSvc,
		Splitter:  splitter,
		Loot:      lootSvc,
		Audit:     dataStore,
		Notifier:  notifier,
		Publisher: publisher,
		GuildID:   cfg.Guild.ID,
	})

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

	logger.InfoCtx(shutdownCtx, "Shutting down server...")

	// Shutdown server
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.FatalCtx(shutdownCtx, "Server forced to shutdown", zap.Error(err))
	}

	// Let in-flight recalculation calls finish before the process exits
	notifier.Drain()

	// Use non-context logger for final message since original ctx is canceled
	logger.Info("API server stopped")
}
