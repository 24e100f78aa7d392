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

	"github.com/feral-file/ff-settlement/internal/adapter"
	"github.com/feral-file/ff-settlement/internal/config"
	"github.com/feral-file/ff-settlement/internal/logger"
	"github.com/feral-file/ff-settlement/internal/messaging"
	"github.com/feral-file/ff-settlement/internal/providers/jetstream"
	ledger "github.com/feral-file/ff-settlement/internal/providers/solana"
	"github.com/feral-file/ff-settlement/internal/ratelimit"
	"github.com/feral-file/ff-settlement/internal/settlement"
	"github.com/feral-file/ff-settlement/internal/store"
	"github.com/feral-file/ff-settlement/internal/sweeper"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadSweeperConfig(*configFile, *envPath)
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
			"service": "settlement-sweeper",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Sweeper")

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err), zap.String("host", cfg.Database.Host))
	}
	if err := store.ConfigureConnectionPool(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime); err != nil {
		logger.FatalCtx(ctx, "Failed to configure connection pool", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Connected to database",
		zap.Int("max_open_conns", cfg.Database.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.Database.MaxIdleConns),
	)
	dataStore := store.NewPGStore(db)

	jsonAdapter := adapter.NewJSON()
	clock := adapter.NewClock()

	ledgerClient := ledger.NewClient(ledger.Config{
		Network:        cfg.Solana.Network,
		Commitment:     cfg.Solana.Commitment,
		MaxReadRetries: cfg.Solana.ReadRetries,
	}, ratelimit.NewSolanaRPC(ratelimit.Config{
		RequestsPerSecond: cfg.Solana.RequestsPerSecond,
		Burst:             cfg.Solana.Burst,
	}, adapter.NewSolanaRPC(cfg.Solana.Endpoint())), jsonAdapter)
	defer ledgerClient.Close()

	var publisher messaging.Publisher
	if cfg.NATS.Enabled() {
		publisher, err = jetstream.NewPublisher(ctx, jetstream.Config{
			URL:            cfg.NATS.URL,
			StreamName:     cfg.NATS.StreamName,
			MaxReconnects:  cfg.NATS.MaxReconnects,
			ReconnectWait:  cfg.NATS.ReconnectWait,
			ConnectionName: cfg.NATS.ConnectionName,
			MaxAge:         cfg.NATS.MaxAge,
		}, adapter.NewNatsJetStream(), jsonAdapter)
		if err != nil {
			logger.FatalCtx(ctx, "Failed to connect to NATS", zap.Error(err), zap.String("url", cfg.NATS.URL))
		}
		defer publisher.Close()
	}

	// Reconciliation reads statuses once per order, it never waits on a signature
	verifier := settlement.NewVerifier(settlement.VerifierConfig{Network: cfg.Solana.Network}, ledgerClient, dataStore, publisher, clock)

	sweeperConfig := &sweeper.ReconciliationSweeperConfig{
		BatchSize:      cfg.ReconciliationSweeper.BatchSize,
		WorkerPoolSize: cfg.ReconciliationSweeper.Worker.WorkerPoolSize,
		StaleAfter:     cfg.ReconciliationSweeper.StaleAfter,
		ExpireAfter:    cfg.ReconciliationSweeper.ExpireAfter,
		Interval:       cfg.ReconciliationSweeper.Interval,
	}
	reconciliationSweeper := sweeper.NewReconciliationSweeper(sweeperConfig, dataStore, verifier, clock)

	logger.InfoCtx(ctx, "Initialized reconciliation sweeper",
		zap.Int("batch_size", sweeperConfig.BatchSize),
		zap.Int("worker_pool_size", sweeperConfig.WorkerPoolSize),
		zap.Duration("stale_after", sweeperConfig.StaleAfter),
		zap.Duration("expire_after", sweeperConfig.ExpireAfter),
	)

	errChan := make(chan error, 1)
	go func() {
		if err := reconciliationSweeper.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	// Wait for interrupt signal or error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errChan:
		logger.ErrorCtx(ctx, err)
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := reconciliationSweeper.Stop(shutdownCtx); err != nil {
		logger.ErrorCtx(shutdownCtx, err)
	}

	logger.InfoCtx(shutdownCtx, "Sweeper stopped")
}
