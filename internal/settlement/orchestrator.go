package settlement

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/feral-file/ff-settlement/internal/adapter"
	"github.com/feral-file/ff-settlement/internal/domain"
	"github.com/feral-file/ff-settlement/internal/logger"
	"github.com/feral-file/ff-settlement/internal/messaging"
	"github.com/feral-file/ff-settlement/internal/metrics"
	ledger "github.com/feral-file/ff-settlement/internal/providers/solana"
	"github.com/feral-file/ff-settlement/internal/store"
	"github.com/feral-file/ff-settlement/internal/wallet"
)

const (
	pathSplit    = "split"
	pathFallback = "fallback"
	pathBatch    = "batch"

	outcomeSettled  = "settled"
	outcomePending  = "pending"
	outcomeFailed   = "failed"
	outcomeRejected = "rejected"
)

// Config holds the orchestrator configuration
type Config struct {
	Network         domain.Network
	Mint            solana.PublicKey
	PlatformAddress solana.PublicKey
	Ratios          RatioSchedule
	SendOptions     domain.SendOptions

	// PollInterval is the delay between signature status reads
	PollInterval time.Duration
	// ConfirmationTimeout bounds the wait for a settlement transfer
	ConfirmationTimeout time.Duration
	// ProvisioningTimeout bounds the wait for the account provisioning transaction
	ProvisioningTimeout time.Duration
	// BatchItemSpacing is the pause between consecutive batch transactions
	BatchItemSpacing time.Duration
}

// SettlementResult is the outcome of a successful single settlement
type SettlementResult struct {
	Signature             solana.Signature
	ProvisioningSignature *solana.Signature
	Plan                  *SplitPlan
	Fallback              *domain.FallbackReason
	OrderID               string
	ExplorerURL           string
	// AttemptKey addresses the persisted settlement state of the transfer
	AttemptKey string
	// RecordingErr is a *LedgerRecordingError when the funds moved but the order was not recorded
	RecordingErr error
}

// Orchestrator runs settlements end to end: validation, balance check, account provisioning,
// transfer, confirmation and order recording.
// Settlements of the same signer are serialized.
type Orchestrator struct {
	config      Config
	store       store.Store
	publisher   messaging.Publisher
	clock       adapter.Clock
	resolver    *AccountResolver
	provisioner *AccountProvisioner
	builder     *TransferBuilder
	confirmer   *Confirmer

	signerLocks sync.Map
}

// NewOrchestrator creates a new orchestrator. The publisher may be nil.
func NewOrchestrator(cfg Config, client ledger.Client, st store.Store, publisher messaging.Publisher, clock adapter.Clock) *Orchestrator {
	if cfg.Network == "" {
		cfg.Network = domain.NetworkMainnetBeta
	}
	if cfg.Ratios.Base == (domain.SplitRatio{}) {
		cfg.Ratios.Base = domain.DefaultSplitRatio
	}
	if cfg.SendOptions.PreflightCommitment == "" {
		cfg.SendOptions = domain.DefaultSendOptions
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.ConfirmationTimeout <= 0 {
		cfg.ConfirmationTimeout = 90 * time.Second
	}
	if cfg.ProvisioningTimeout <= 0 {
		cfg.ProvisioningTimeout = 60 * time.Second
	}
	if cfg.BatchItemSpacing < 0 {
		cfg.BatchItemSpacing = 0
	}

	resolver := NewAccountResolver(client)
	confirmer := NewConfirmer(ConfirmerConfig{
		Network:      cfg.Network,
		PollInterval: cfg.PollInterval,
		SendOptions:  cfg.SendOptions,
	}, client, clock)

	return &Orchestrator{
		config:      cfg,
		store:       st,
		publisher:   publisher,
		clock:       clock,
		resolver:    resolver,
		provisioner: NewAccountProvisioner(resolver, client, confirmer, cfg.ProvisioningTimeout),
		builder:     NewTransferBuilder(client),
		confirmer:   confirmer,
	}
}

// Settle settles a single payment intent.
// A missing payee address routes the full amount to the platform and is reported in the result.
// A confirmation timeout returns a *ConfirmationTimeoutError after recording a pending order.
func (o *Orchestrator) Settle(ctx context.Context, w wallet.Wallet, intent domain.PaymentIntent) (*SettlementResult, error) {
	if w == nil || !w.Connected() {
		return nil, domain.ErrWalletNotConnected
	}
	if len(intent.ItemIDs) == 0 {
		return nil, fmt.Errorf("%w: payment intent has no items", domain.ErrInvalidAmount)
	}

	total, err := ToMinorUnits(intent.Amount)
	if err != nil {
		return nil, err
	}

	signer := w.PublicKey()
	info := logger.SettlementInfo{
		Network: string(o.config.Network),
		Signer:  signer.String(),
		Path:    pathSplit,
	}

	var plan *SplitPlan
	var fallback *domain.FallbackReason
	if intent.PayeeAddress == nil {
		info.Path = pathFallback
		fallback = &domain.FallbackReason{
			Kind:    domain.FallbackReasonMissingPayee,
			ItemIDs: slices.Clone(intent.ItemIDs),
		}
		plan = FallbackPlan(total, o.config.PlatformAddress)
	} else {
		payee, err := ParseAddress(*intent.PayeeAddress)
		if err != nil {
			metrics.RecordSettlement(info.Path, outcomeRejected)
			return nil, err
		}
		plan, err = ComputeSplitPlan(total, payee, o.config.PlatformAddress, o.config.Ratios.Current(o.clock.Now()))
		if err != nil {
			metrics.RecordSettlement(info.Path, outcomeRejected)
			return nil, err
		}
	}

	unlock := o.lockSigner(signer)
	defer unlock()

	ctx = logger.WithSettlement(ctx, info)
	if fallback != nil {
		logger.WarnSettlement(ctx, info, "Payee address missing, routing full amount to platform",
			zap.String("fallback_reason", string(fallback.Kind)),
			zap.Strings("item_ids", fallback.ItemIDs),
		)
	}

	exec, err := o.execute(ctx, w, plan, o.newAttempt())
	if err != nil {
		return nil, o.failSettle(ctx, info, intent, plan, fallback, err)
	}

	signatures := []string{exec.signature.String()}
	orderID, recordingErr := o.record(ctx, info, store.CreateOrderInput{
		BuyerID:      intent.BuyerID,
		Network:      o.config.Network,
		TotalPrice:   FromMinorUnits(total),
		Status:       domain.OrderStatusCompleted,
		Signatures:   signatures,
		Ratio:        plan.Ratio,
		Fallback:     fallback,
		Items:        intentItems(intent, total),
		GrantItemIDs: intent.ItemIDs,
	})
	info.OrderID = orderID

	eventType := domain.SettlementEventCompleted
	if fallback != nil {
		eventType = domain.SettlementEventFallback
	}
	o.publish(ctx, o.newEvent(eventType, orderID, intent.BuyerID, intent.ItemIDs, signatures, total, fallback))

	metrics.RecordSettlement(info.Path, outcomeSettled)
	logger.InfoSettlement(ctx, info, "Settlement completed",
		zap.Stringer("signature", exec.signature),
		zap.String("total", FormatUnits(total)),
		zap.String("ratio", plan.Ratio.String()),
	)

	return &SettlementResult{
		Signature:             exec.signature,
		ProvisioningSignature: exec.provisioning,
		Plan:                  plan,
		Fallback:              fallback,
		OrderID:               orderID,
		ExplorerURL:           o.config.Network.ExplorerTxURL(exec.signature.String()),
		AttemptKey:            exec.attempt,
		RecordingErr:          recordingErr,
	}, nil
}

// AttemptState reads the persisted state of a settlement attempt
func (o *Orchestrator) AttemptState(ctx context.Context, key string) (domain.SettlementState, error) {
	return o.store.GetSettlementState(ctx, key)
}

func (o *Orchestrator) newAttempt() *StateMachine {
	return NewStateMachine(ulid.MustNewDefault(o.clock.Now()).String(), o.store)
}

// failSettle records what is known about a failed single settlement and returns err
func (o *Orchestrator) failSettle(ctx context.Context, info logger.SettlementInfo, intent domain.PaymentIntent, plan *SplitPlan, fallback *domain.FallbackReason, err error) error {
	var timeoutErr *ConfirmationTimeoutError
	if errors.As(err, &timeoutErr) {
		signatures := []string{timeoutErr.Signature.String()}
		orderID, _ := o.record(ctx, info, store.CreateOrderInput{
			BuyerID:    intent.BuyerID,
			Network:    o.config.Network,
			TotalPrice: FromMinorUnits(plan.Total),
			Status:     domain.OrderStatusPending,
			Signatures: signatures,
			Ratio:      plan.Ratio,
			Fallback:   fallback,
			Items:      intentItems(intent, plan.Total),
		})
		timeoutErr.OrderID = orderID
		info.OrderID = orderID

		o.publish(ctx, o.newEvent(domain.SettlementEventPendingVerification, orderID, intent.BuyerID, intent.ItemIDs, signatures, plan.Total, fallback))
		metrics.RecordSettlement(info.Path, outcomePending)
		logger.WarnSettlement(ctx, info, "Settlement submitted but not confirmed, pending verification",
			zap.Stringer("signature", timeoutErr.Signature),
			zap.String("explorer_url", timeoutErr.ExplorerURL),
		)
		return err
	}

	if signature := SubmittedSignature(err); signature != nil {
		o.publish(ctx, o.newEvent(domain.SettlementEventFailed, "", intent.BuyerID, intent.ItemIDs, []string{signature.String()}, plan.Total, fallback))
	}

	metrics.RecordSettlement(info.Path, outcomeFailed)
	logger.ErrorSettlement(ctx, info, err, zap.String("total", FormatUnits(plan.Total)))
	return err
}

type execution struct {
	attempt      string
	signature    solana.Signature
	provisioning *solana.Signature
}

// execute moves the funds of one plan: balance check, provisioning, build, simulate,
// submit and confirm. Progress is persisted under the attempt key.
// The returned execution is non-nil once a transfer was submitted.
func (o *Orchestrator) execute(ctx context.Context, w wallet.Wallet, plan *SplitPlan, attempt *StateMachine) (*execution, error) {
	signer := w.PublicKey()

	if err := o.checkBalance(ctx, signer, plan.Total); err != nil {
		attempt.Fail(ctx)
		return nil, err
	}

	owners := []solana.PublicKey{signer}
	for _, entry := range plan.Entries {
		if entry.Amount > 0 {
			owners = append(owners, entry.Recipient)
		}
	}

	provisioning, err := o.provisioner.EnsureAccounts(ctx, w, o.config.Mint, owners)
	if err != nil {
		attempt.Fail(ctx)
		return nil, err
	}

	tx, err := o.builder.BuildSplitTransfer(ctx, o.config.Mint, signer, plan)
	if err != nil {
		attempt.Fail(ctx)
		return nil, err
	}

	if err := o.builder.Simulate(ctx, tx); err != nil {
		attempt.Fail(ctx)
		return nil, err
	}

	if err := attempt.Transition(ctx, domain.SettlementStateAwaitingSignature); err != nil {
		return nil, err
	}
	signature, err := o.confirmer.Submit(ctx, w, tx)
	if err != nil {
		attempt.Fail(ctx)
		return nil, err
	}

	exec := &execution{attempt: attempt.Key(), signature: signature, provisioning: provisioning}
	advance(ctx, attempt, domain.SettlementStateSubmitted)
	advance(ctx, attempt, domain.SettlementStateConfirming)
	if err := o.confirmer.WaitForConfirmation(ctx, signature, o.config.ConfirmationTimeout); err != nil {
		// a timed out attempt stays confirming until reconciled
		var timeoutErr *ConfirmationTimeoutError
		if errors.As(err, &timeoutErr) {
			timeoutErr.AttemptKey = attempt.Key()
		} else {
			attempt.Fail(ctx)
		}
		return exec, err
	}
	advance(ctx, attempt, domain.SettlementStateSettled)

	for _, entry := range plan.Entries {
		metrics.RecordSettledUnits(string(entry.Role), entry.Amount)
	}

	return exec, nil
}

// advance moves a submitted attempt forward; a rejected transition is logged
func advance(ctx context.Context, attempt *StateMachine, to domain.SettlementState) {
	if err := attempt.Transition(ctx, to); err != nil {
		logger.ErrorCtx(ctx, err,
			zap.String("attempt", attempt.Key()),
			zap.String("from", string(attempt.State())),
			zap.String("to", string(to)),
		)
	}
}

func (o *Orchestrator) checkBalance(ctx context.Context, signer solana.PublicKey, required uint64) error {
	balance, err := o.resolver.CheckBalance(ctx, signer, o.config.Mint)
	if err != nil {
		return err
	}
	if balance.Amount < required {
		return &InsufficientBalanceError{Available: balance.Amount, Required: required}
	}
	return nil
}

// record writes the order ledger entry. A failure is logged, counted and returned
// as a *LedgerRecordingError; it never undoes the settlement.
func (o *Orchestrator) record(ctx context.Context, info logger.SettlementInfo, input store.CreateOrderInput) (string, error) {
	order, err := o.store.CreateOrder(ctx, input)
	if err != nil {
		fields := []zap.Field{
			zap.Strings("signatures", input.Signatures),
			zap.String("status", string(input.Status)),
			zap.Error(err),
		}
		if input.Fallback != nil {
			fields = append(fields, zap.String("fallback_reason", string(input.Fallback.Kind)))
		}
		logger.WarnSettlement(ctx, info, "Funds settled but the order could not be recorded", fields...)
		metrics.RecordLedgerRecordingFailure()

		return "", &LedgerRecordingError{Signatures: input.Signatures, Err: err}
	}

	return order.ID.String(), nil
}

func (o *Orchestrator) newEvent(eventType domain.SettlementEventType, orderID, buyerID string, itemIDs, signatures []string, total uint64, fallback *domain.FallbackReason) *domain.SettlementEvent {
	now := o.clock.Now()
	return &domain.SettlementEvent{
		EventID:     ulid.MustNewDefault(now).String(),
		EventType:   eventType,
		Network:     o.config.Network,
		OrderID:     orderID,
		BuyerID:     buyerID,
		ItemIDs:     itemIDs,
		Signatures:  signatures,
		TotalAmount: strconv.FormatUint(total, 10),
		Fallback:    fallback,
		Timestamp:   now,
	}
}

func (o *Orchestrator) publish(ctx context.Context, event *domain.SettlementEvent) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.PublishSettlementEvent(ctx, event); err != nil {
		logger.WarnCtx(ctx, "Failed to publish settlement event",
			zap.String("event_type", string(event.EventType)),
			zap.String("order_id", event.OrderID),
			zap.Error(err),
		)
	}
}

// pause waits between consecutive transactions of the same signer
func (o *Orchestrator) pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-o.clock.After(d):
		return nil
	}
}

func (o *Orchestrator) lockSigner(signer solana.PublicKey) func() {
	v, _ := o.signerLocks.LoadOrStore(signer, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// intentItems spreads the intent total over its items; the first item absorbs the remainder
func intentItems(intent domain.PaymentIntent, total uint64) []store.CreateOrderItemInput {
	n := uint64(len(intent.ItemIDs))
	share := total / n
	remainder := total % n

	var title *string
	if intent.Title != "" {
		title = &intent.Title
	}

	items := make([]store.CreateOrderItemInput, 0, len(intent.ItemIDs))
	for i, itemID := range intent.ItemIDs {
		amount := share
		if i == 0 {
			amount += remainder
		}
		items = append(items, store.CreateOrderItemInput{
			ItemID:       itemID,
			PayeeAddress: intent.PayeeAddress,
			AmountMinor:  amount,
			Price:        FromMinorUnits(amount),
			Title:        title,
			LicenseType:  intent.License(),
		})
	}
	return items
}
