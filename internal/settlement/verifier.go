package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/feral-file/ff-settlement/internal/adapter"
	"github.com/feral-file/ff-settlement/internal/domain"
	"github.com/feral-file/ff-settlement/internal/logger"
	"github.com/feral-file/ff-settlement/internal/messaging"
	ledger "github.com/feral-file/ff-settlement/internal/providers/solana"
	"github.com/feral-file/ff-settlement/internal/store"
	"github.com/feral-file/ff-settlement/internal/store/schema"
)

// VerifierConfig holds the payment verification configuration
type VerifierConfig struct {
	Network domain.Network
	// Mint is the token a verified payment must move, the network's USDC mint when zero
	Mint solana.PublicKey
	// PlatformAddress receives the platform share, the default treasury when zero
	PlatformAddress solana.PublicKey
	// Attempts is the number of signature status reads before giving up
	Attempts int
	// Interval is the delay between two reads
	Interval time.Duration
}

// VerificationResult is the outcome of a payment verification
type VerificationResult struct {
	OrderID          string
	Status           domain.OrderStatus
	GrantsCreated    int
	AlreadyCompleted bool
}

// ReconcileAction is what reconciliation did with an order
type ReconcileAction string

const (
	ReconcileActionFinalized ReconcileAction = "finalized"
	ReconcileActionFailed    ReconcileAction = "failed"
	ReconcileActionExpired   ReconcileAction = "expired"
	ReconcileActionRepaired  ReconcileAction = "repaired"
	ReconcileActionPending   ReconcileAction = "pending"
	// ReconcileActionHeld leaves an order that moved funds for some but not all of its signatures
	ReconcileActionHeld ReconcileAction = "held"
	ReconcileActionNone      ReconcileAction = "none"
)

// Verifier confirms submitted payments against the ledger and completes their orders.
// It backs the verify endpoint and the reconciliation sweeper.
type Verifier struct {
	config    VerifierConfig
	ledger    ledger.Client
	store     store.Store
	publisher messaging.Publisher
	clock     adapter.Clock
}

// NewVerifier creates a new verifier. The publisher may be nil.
func NewVerifier(cfg VerifierConfig, client ledger.Client, st store.Store, publisher messaging.Publisher, clock adapter.Clock) *Verifier {
	if cfg.Network == "" {
		cfg.Network = domain.NetworkMainnetBeta
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 20
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 3 * time.Second
	}
	if cfg.Mint.IsZero() {
		cfg.Mint = solana.MustPublicKeyFromBase58(cfg.Network.DefaultUSDCMint())
	}
	if cfg.PlatformAddress.IsZero() {
		cfg.PlatformAddress = solana.MustPublicKeyFromBase58(domain.DEFAULT_PLATFORM_ADDRESS)
	}
	return &Verifier{
		config:    cfg,
		ledger:    client,
		store:     st,
		publisher: publisher,
		clock:     clock,
	}
}

// VerifyPayment waits for a signature submitted for an order, then attaches it and completes the order.
// The signature must not settle another order and its transaction must credit the order total
// to the order's payees and the platform. Verifying an already completed order only repairs missing grants.
func (v *Verifier) VerifyPayment(ctx context.Context, orderID, signature string) (*VerificationResult, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidSignature, signature)
	}

	order, err := v.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	switch order.Status {
	case domain.OrderStatusCompleted:
		created, err := v.store.FinalizeOrder(ctx, orderID)
		if err != nil {
			return nil, err
		}
		return &VerificationResult{
			OrderID:          orderID,
			Status:           domain.OrderStatusCompleted,
			GrantsCreated:    created,
			AlreadyCompleted: true,
		}, nil
	case domain.OrderStatusFailed:
		return nil, fmt.Errorf("%w: order %s already failed", domain.ErrInvalidStateTransition, orderID)
	}

	if err := v.checkUnused(ctx, orderID, signature); err != nil {
		return nil, err
	}

	if err := v.awaitSignature(ctx, orderID, sig); err != nil {
		var failedErr *TransactionFailedError
		if errors.As(err, &failedErr) {
			if markErr := v.store.MarkOrderFailed(ctx, orderID, failedErr.Payload); markErr != nil {
				logger.ErrorCtx(ctx, markErr, zap.String("order_id", orderID))
			}
			v.publish(ctx, domain.SettlementEventFailed, order)
		}
		return nil, err
	}

	if err := v.checkPayment(ctx, order, sig); err != nil {
		logger.WarnCtx(ctx, "Signature does not pay the order",
			zap.String("order_id", orderID),
			zap.String("signature", signature),
			zap.Error(err),
		)
		return nil, err
	}

	if err := v.store.AttachOrderSignature(ctx, orderID, signature); err != nil {
		return nil, err
	}

	created, err := v.store.FinalizeOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	order.TransactionSignatures = appendMissing(order.TransactionSignatures, signature)
	v.publish(ctx, domain.SettlementEventCompleted, order)

	logger.InfoCtx(ctx, "Payment verified",
		zap.String("order_id", orderID),
		zap.String("signature", signature),
		zap.Int("grants_created", created),
	)

	return &VerificationResult{
		OrderID:       orderID,
		Status:        domain.OrderStatusCompleted,
		GrantsCreated: created,
	}, nil
}

// checkUnused rejects a signature already recorded on another order
func (v *Verifier) checkUnused(ctx context.Context, orderID, signature string) error {
	owner, err := v.store.GetOrderBySignature(ctx, signature)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return nil
		}
		return err
	}
	if owner.ID.String() != orderID {
		return fmt.Errorf("%w: %s settles order %s", domain.ErrSignatureAlreadyUsed, signature, owner.ID)
	}
	return nil
}

// checkPayment sums what the transaction credited in the settlement mint to the order's recipients
func (v *Verifier) checkPayment(ctx context.Context, order *schema.Order, signature solana.Signature) error {
	orderID := order.ID.String()
	required, err := ToMinorUnits(order.TotalPrice)
	if err != nil {
		return err
	}

	items, err := v.store.GetOrderItems(ctx, orderID)
	if err != nil {
		return err
	}
	recipients := map[solana.PublicKey]struct{}{v.config.PlatformAddress: {}}
	for _, item := range items {
		if item.PayeeAddress == nil {
			continue
		}
		payee, err := ParseAddress(*item.PayeeAddress)
		if err != nil {
			return err
		}
		recipients[payee] = struct{}{}
	}

	changes, err := v.ledger.GetTokenBalanceChanges(ctx, signature)
	if err != nil {
		return err
	}

	var received uint64
	for _, change := range changes {
		if !change.Mint.Equals(v.config.Mint) {
			continue
		}
		if _, ok := recipients[change.Owner]; ok {
			received += change.Received()
		}
	}

	if received < required {
		return &PaymentMismatchError{
			Signature: signature,
			OrderID:   orderID,
			Required:  required,
			Received:  received,
		}
	}
	return nil
}

// awaitSignature polls a signature until it is confirmed or failed, up to the configured attempts
func (v *Verifier) awaitSignature(ctx context.Context, orderID string, signature solana.Signature) error {
	timeout := time.Duration(v.config.Attempts) * v.config.Interval
	timeoutErr := func(cause error) error {
		return &ConfirmationTimeoutError{
			Signature:   signature,
			ExplorerURL: v.config.Network.ExplorerTxURL(signature.String()),
			Timeout:     timeout,
			OrderID:     orderID,
			Cause:       cause,
		}
	}

	for attempt := 1; ; attempt++ {
		status, err := v.ledger.GetSignatureStatus(ctx, signature)
		if err != nil {
			logger.WarnCtx(ctx, "Failed to read signature status",
				zap.Stringer("signature", signature),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		} else if status.Failed() {
			sig := signature
			return &TransactionFailedError{Signature: &sig, Payload: status.Err}
		} else if status.Confirmed() {
			return nil
		}

		if attempt >= v.config.Attempts {
			return timeoutErr(nil)
		}

		select {
		case <-ctx.Done():
			return timeoutErr(ctx.Err())
		case <-v.clock.After(v.config.Interval):
		}
	}
}

// ReconcileOrder settles the ledger view of a recorded order without waiting.
// Pending orders are finalized when every signature is confirmed and failed when a signature failed
// and none confirmed. A pending order whose signatures are still unknown is expired once expired is true.
// An order with confirmed transfers is never failed or expired; a mix of confirmed and failed or
// unknown signatures is held pending for manual review.
// Completed orders get their missing grants written.
func (v *Verifier) ReconcileOrder(ctx context.Context, order *schema.Order, expired bool) (ReconcileAction, error) {
	orderID := order.ID.String()

	switch order.Status {
	case domain.OrderStatusCompleted:
		created, err := v.store.FinalizeOrder(ctx, orderID)
		if err != nil {
			return ReconcileActionNone, err
		}
		if created > 0 {
			return ReconcileActionRepaired, nil
		}
		return ReconcileActionNone, nil
	case domain.OrderStatusPending:
	default:
		return ReconcileActionNone, nil
	}

	signatures := make([]solana.Signature, 0, len(order.TransactionSignatures))
	for _, s := range order.TransactionSignatures {
		sig, err := solana.SignatureFromBase58(s)
		if err != nil {
			return ReconcileActionNone, fmt.Errorf("%w: order %s carries %q", domain.ErrInvalidSignature, orderID, s)
		}
		signatures = append(signatures, sig)
	}

	if len(signatures) == 0 {
		if expired {
			return v.expire(ctx, order, "no transaction signature recorded")
		}
		return ReconcileActionPending, nil
	}

	statuses, err := v.ledger.GetSignatureStatuses(ctx, signatures)
	if err != nil {
		return ReconcileActionNone, err
	}

	confirmed := 0
	failed := -1
	for i, status := range statuses {
		switch {
		case status.Failed():
			if failed < 0 {
				failed = i
			}
		case status.Confirmed():
			confirmed++
		}
	}

	switch {
	case confirmed == len(signatures):
		created, err := v.store.FinalizeOrder(ctx, orderID)
		if err != nil {
			return ReconcileActionNone, err
		}
		logger.InfoCtx(ctx, "Pending order finalized",
			zap.String("order_id", orderID),
			zap.Int("grants_created", created),
		)
		v.publish(ctx, domain.SettlementEventCompleted, order)
		return ReconcileActionFinalized, nil

	case confirmed > 0 && (failed >= 0 || expired):
		logger.ErrorCtx(ctx, fmt.Errorf("order %s is partially settled", orderID),
			zap.Int("confirmed", confirmed),
			zap.Int("signatures", len(signatures)),
			zap.Bool("expired", expired),
		)
		return ReconcileActionHeld, nil

	case failed >= 0:
		status := statuses[failed]
		if err := v.store.MarkOrderFailed(ctx, orderID, status.Err); err != nil {
			return ReconcileActionNone, err
		}
		logger.WarnCtx(ctx, "Pending order failed on-chain",
			zap.String("order_id", orderID),
			zap.Stringer("signature", signatures[failed]),
			zap.String("error", status.Err),
		)
		v.publish(ctx, domain.SettlementEventFailed, order)
		return ReconcileActionFailed, nil

	case expired:
		return v.expire(ctx, order, "transaction signature not confirmed before expiry")
	}

	return ReconcileActionPending, nil
}

func (v *Verifier) expire(ctx context.Context, order *schema.Order, reason string) (ReconcileAction, error) {
	if err := v.store.MarkOrderFailed(ctx, order.ID.String(), reason); err != nil {
		return ReconcileActionNone, err
	}
	logger.WarnCtx(ctx, "Pending order expired",
		zap.String("order_id", order.ID.String()),
		zap.String("reason", reason),
	)
	v.publish(ctx, domain.SettlementEventFailed, order)
	return ReconcileActionExpired, nil
}

func (v *Verifier) publish(ctx context.Context, eventType domain.SettlementEventType, order *schema.Order) {
	if v.publisher == nil {
		return
	}

	now := v.clock.Now()
	event := &domain.SettlementEvent{
		EventID:     ulid.MustNewDefault(now).String(),
		EventType:   eventType,
		Network:     order.Network,
		OrderID:     order.ID.String(),
		BuyerID:     order.BuyerID,
		Signatures:  order.TransactionSignatures,
		TotalAmount: order.TotalPrice.Shift(domain.USDC_DECIMALS).StringFixed(0),
		Timestamp:   now,
	}
	if order.FallbackKind != nil {
		event.Fallback = &domain.FallbackReason{Kind: domain.FallbackReasonKind(*order.FallbackKind)}
	}

	if err := v.publisher.PublishSettlementEvent(ctx, event); err != nil {
		logger.WarnCtx(ctx, "Failed to publish settlement event",
			zap.String("event_type", string(eventType)),
			zap.String("order_id", event.OrderID),
			zap.Error(err),
		)
	}
}

func appendMissing(signatures []string, signature string) []string {
	for _, s := range signatures {
		if s == signature {
			return signatures
		}
	}
	return append(signatures, signature)
}
