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
	"github.com/feral-file/ff-settlement/internal/api/middleware"
	"github.com/feral-file/ff-settlement/internal/api/server"
	"github.com/feral-file/ff-settlement/internal/api/shared/executor"
	"github.com/feral-file/ff-settlement/internal/config"
	"github.com/feral-file/ff-settlement/internal/logger"
	"github.com/feral-file/ff-settlement/internal/messaging"
	"github.com/feral-file/ff-settlement/internal/providers/jetstream"
	ledger "github.com/feral-file/ff-settlement/internal/providers/solana"
	"github.com/feral-file/ff-settlement/internal/ratelimit"
	"github.com/feral-file/ff-settlement/internal/settlement"
	"github.com/feral-file/ff-settlement/internal/store"
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
			"service": "settlement-api",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Feral File Settlement API", zap.String("network", string(cfg.Solana.Network)))

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err), zap.String("host", cfg.Database.Host))
	}
	if err := store.ConfigureConnectionPool(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime); err != nil {
		logger.FatalCtx(ctx, "Failed to configure connection pool", zap.Error(err))
	}
	dataStore := store.NewPGStore(db)

	// Initialize adapters
	jsonAdapter := adapter.NewJSON()
	clock := adapter.NewClock()

	// Connect to the ledger
	rpcClient := ratelimit.NewSolanaRPC(ratelimit.Config{
		RequestsPerSecond: cfg.Solana.RequestsPerSecond,
		Burst:             cfg.Solana.Burst,
	}, adapter.NewSolanaRPC(cfg.Solana.Endpoint()))
	ledgerClient := ledger.NewClient(ledger.Config{
		Network:        cfg.Solana.Network,
		Commitment:     cfg.Solana.Commitment,
		MaxReadRetries: cfg.Solana.ReadRetries,
	}, rpcClient, jsonAdapter)
	defer ledgerClient.Close()
	logger.InfoCtx(ctx, "Connected to Solana RPC", zap.String("endpoint", cfg.Solana.Endpoint()))

	// Settlement events are optional
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
	} else {
		logger.WarnCtx(ctx, "NATS URL not configured, settlement events will not be published")
	}

	mint, err := settlement.ParseAddress(cfg.Solana.MintAddress())
	if err != nil {
		logger.FatalCtx(ctx, "Invalid mint address", zap.Error(err))
	}
	platform, err := settlement.ParseAddress(cfg.Solana.PlatformAddress())
	if err != nil {
		logger.FatalCtx(ctx, "Invalid platform address", zap.Error(err))
	}

	verifier := settlement.NewVerifier(settlement.VerifierConfig{
		Network:         cfg.Solana.Network,
		Mint:            mint,
		PlatformAddress: platform,
		Attempts:        cfg.Verifier.Attempts,
		Interval:        cfg.Verifier.Interval,
	}, ledgerClient, dataStore, publisher, clock)

	serverConfig := server.Config{
		Debug:          cfg.Debug,
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:    time.Duration(cfg.Server.IdleTimeout) * time.Second,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Auth: middleware.AuthConfig{
			JWTPublicKey: cfg.Auth.JWTPublicKey,
			APIKeys:      cfg.Auth.APIKeys,
		},
	}
	srv := server.New(serverConfig, executor.NewExecutor(dataStore, verifier))

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
	case err := <-errCh:
		logger.ErrorCtx(ctx, err, zap.String("component", "server"))
	}
	cancel()

	// The original ctx is canceled at this point
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	logger.InfoCtx(shutdownCtx, "Shutting down server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorCtx(shutdownCtx, err, zap.String("component", "server"))
	}

	logger.Info("API server stopped")
}
