package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/feral-file/ff-settlement/internal/adapter"
	"github.com/feral-file/ff-settlement/internal/config"
	"github.com/feral-file/ff-settlement/internal/domain"
	"github.com/feral-file/ff-settlement/internal/logger"
	"github.com/feral-file/ff-settlement/internal/messaging"
	"github.com/feral-file/ff-settlement/internal/providers/jetstream"
	ledger "github.com/feral-file/ff-settlement/internal/providers/solana"
	"github.com/feral-file/ff-settlement/internal/ratelimit"
	"github.com/feral-file/ff-settlement/internal/settlement"
	"github.com/feral-file/ff-settlement/internal/store"
	"github.com/feral-file/ff-settlement/internal/wallet"
)

var (
	configFile  = flag.String("config", "", "Path to configuration file")
	envPath     = flag.String("env", "config/", "Path to environment files")
	keypairPath = flag.String("keypair", "", "Path to a keygen keypair file, overrides keypair_path")
	amount      = flag.String("amount", "", "Price in USDC, e.g. 33.33")
	payee       = flag.String("payee", "", "Payee address, the whole amount goes to the platform when empty")
	buyer       = flag.String("buyer", "", "Buyer account id")
	items       = flag.String("items", "", "Comma separated item ids")
	batch       = flag.Bool("batch", false, "Settle every item as its own transaction, each priced at -amount")
	license     = flag.String("license", "", "License type granted on the items")
)

func main() {
	flag.Parse()

	config.ChdirRepoRoot()
	cfg, err := config.LoadSettlerConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service": "settler",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)

	price, err := decimal.NewFromString(*amount)
	if err != nil {
		logger.FatalCtx(ctx, "Invalid amount", zap.String("amount", *amount), zap.Error(err))
	}
	itemIDs := splitItems(*items)
	if len(itemIDs) == 0 {
		logger.FatalCtx(ctx, "At least one item id is required")
	}

	path := cfg.KeypairPath
	if *keypairPath != "" {
		path = *keypairPath
	}
	w, err := wallet.LoadKeypairWallet(path)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to load keypair", zap.String("path", path), zap.Error(err))
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err), zap.String("host", cfg.Database.Host))
	}
	dataStore := store.NewPGStore(db)

	jsonAdapter := adapter.NewJSON()
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

	// Validated by the config loader
	schedule, _ := cfg.Split.Schedule()
	mint, err := settlement.ParseAddress(cfg.Solana.MintAddress())
	if err != nil {
		logger.FatalCtx(ctx, "Invalid mint address", zap.Error(err))
	}
	platform, err := settlement.ParseAddress(cfg.Solana.PlatformAddress())
	if err != nil {
		logger.FatalCtx(ctx, "Invalid platform address", zap.Error(err))
	}

	orchestrator := settlement.NewOrchestrator(settlement.Config{
		Network:             cfg.Solana.Network,
		Mint:                mint,
		PlatformAddress:     platform,
		Ratios:              schedule,
		SendOptions:         cfg.Solana.SendOptions(),
		PollInterval:        cfg.Solana.PollInterval,
		ConfirmationTimeout: cfg.Solana.ConfirmationTimeout,
		ProvisioningTimeout: cfg.Solana.ProvisioningTimeout,
		BatchItemSpacing:    cfg.Solana.BatchItemSpacing,
	}, ledgerClient, dataStore, publisher, adapter.NewClock())

	var payeeAddress *string
	if *payee != "" {
		payeeAddress = payee
	}

	logger.InfoCtx(ctx, "Settling payment",
		zap.String("network", string(cfg.Solana.Network)),
		zap.String("signer", w.PublicKey().String()),
		zap.String("amount", price.String()),
		zap.Strings("item_ids", itemIDs),
	)

	if *batch {
		intent := settlement.BatchIntent{BuyerID: *buyer}
		for _, id := range itemIDs {
			intent.Items = append(intent.Items, settlement.BatchItem{
				ItemID:       id,
				Amount:       price,
				PayeeAddress: payeeAddress,
				LicenseType:  *license,
			})
		}

		result, err := orchestrator.SettleMany(ctx, w, intent)
		if err != nil {
			describeAttempt(ctx, orchestrator, err)
			fail(err)
		}
		for _, s := range result.Settlements {
			fmt.Printf("%s %s\n", strings.Join(s.ItemIDs, ","), s.Signature)
		}
		report(result.OrderID, result.RecordingErr)
		return
	}

	result, err := orchestrator.Settle(ctx, w, domain.PaymentIntent{
		Amount:       price,
		PayeeAddress: payeeAddress,
		ItemIDs:      itemIDs,
		BuyerID:      *buyer,
		LicenseType:  *license,
	})
	if err != nil {
		describeAttempt(ctx, orchestrator, err)
		fail(err)
	}
	if result.ProvisioningSignature != nil {
		fmt.Printf("provisioning %s\n", result.ProvisioningSignature)
	}
	fmt.Printf("settlement %s\n", result.Signature)
	fmt.Println(result.ExplorerURL)
	if result.Fallback != nil {
		fmt.Printf("routed to platform: %s\n", result.Fallback.Kind)
	}
	report(result.OrderID, result.RecordingErr)
}

func splitItems(s string) []string {
	var ids []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func report(orderID string, recordingErr error) {
	if recordingErr != nil {
		fmt.Fprintln(os.Stderr, "warning: funds settled but the order was not recorded:", recordingErr)
		return
	}
	fmt.Printf("order %s\n", orderID)
	fmt.Println(settlement.UserMessage(nil))
}

// describeAttempt prints the persisted state of the attempt a settlement error refers to
func describeAttempt(ctx context.Context, orchestrator *settlement.Orchestrator, err error) {
	var key string
	var timeoutErr *settlement.ConfirmationTimeoutError
	var batchErr *settlement.BatchSettlementError
	switch {
	case errors.As(err, &timeoutErr):
		key = timeoutErr.AttemptKey
		if timeoutErr.OrderID != "" {
			fmt.Fprintf(os.Stderr, "pending order %s\n", timeoutErr.OrderID)
		}
	case errors.As(err, &batchErr):
		key = batchErr.AttemptKey
	}
	if key == "" {
		return
	}

	state, stateErr := orchestrator.AttemptState(ctx, key)
	if stateErr != nil {
		logger.WarnCtx(ctx, "Failed to read settlement state", zap.String("attempt", key), zap.Error(stateErr))
		return
	}
	fmt.Fprintf(os.Stderr, "attempt %s: %s\n", key, state)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, settlement.UserMessage(err))
	if sig := settlement.SubmittedSignature(err); sig != nil {
		fmt.Fprintln(os.Stderr, "submitted signature:", sig.String())
	}
	logger.Error(err)
	logger.Flush(2 * time.Second)
	os.Exit(1)
}
