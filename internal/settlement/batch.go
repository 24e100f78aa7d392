package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/feral-file/ff-settlement/internal/domain"
	"github.com/feral-file/ff-settlement/internal/logger"
	"github.com/feral-file/ff-settlement/internal/metrics"
	"github.com/feral-file/ff-settlement/internal/store"
	"github.com/feral-file/ff-settlement/internal/wallet"
)

// BatchItem is one priced item of a multi-item purchase
type BatchItem struct {
	ItemID       string
	Amount       decimal.Decimal
	PayeeAddress *string
	LicenseType  string
	Title        string
}

// BatchIntent is a purchase of several items by one buyer
type BatchIntent struct {
	BuyerID string
	Items   []BatchItem
}

// ItemSettlement is one landed transaction of a batch.
// Fallback settlements cover every item without a payee address.
type ItemSettlement struct {
	ItemIDs               []string
	Signature             solana.Signature
	ProvisioningSignature *solana.Signature
	Plan                  *SplitPlan
	Fallback              bool
	AttemptKey            string
}

// BatchResult is the outcome of a fully settled batch
type BatchResult struct {
	Settlements []ItemSettlement
	Fallback    *domain.FallbackReason
	OrderID     string
	// RecordingErr is a *LedgerRecordingError when the funds moved but the order was not recorded
	RecordingErr error
}

// Signatures returns the signatures of every settlement in order
func (r *BatchResult) Signatures() []solana.Signature {
	signatures := make([]solana.Signature, 0, len(r.Settlements))
	for _, s := range r.Settlements {
		signatures = append(signatures, s.Signature)
	}
	return signatures
}

type preparedItem struct {
	BatchItem
	index int
	units uint64
	payee *solana.PublicKey
}

func (p preparedItem) license() string {
	if p.LicenseType == "" {
		return domain.DEFAULT_LICENSE_TYPE
	}
	return p.LicenseType
}

// SettleMany settles a batch sequentially: one split transaction per item with a payee,
// in input order, then one combined platform transaction for the items without a payee.
// The batch stops at the first failure; settlements that already landed are kept, recorded
// and reported in a *BatchSettlementError.
func (o *Orchestrator) SettleMany(ctx context.Context, w wallet.Wallet, intent BatchIntent) (*BatchResult, error) {
	if w == nil || !w.Connected() {
		return nil, domain.ErrWalletNotConnected
	}
	if len(intent.Items) == 0 {
		return nil, fmt.Errorf("%w: empty batch", domain.ErrInvalidAmount)
	}

	items, total, err := prepareBatch(intent.Items)
	if err != nil {
		metrics.RecordSettlement(pathBatch, outcomeRejected)
		return nil, err
	}

	signer := w.PublicKey()
	info := logger.SettlementInfo{
		Network: string(o.config.Network),
		Signer:  signer.String(),
		Path:    pathBatch,
	}

	unlock := o.lockSigner(signer)
	defer unlock()

	ctx = logger.WithSettlement(ctx, info)

	if err := o.checkBalance(ctx, signer, total); err != nil {
		metrics.RecordSettlement(info.Path, outcomeFailed)
		logger.ErrorSettlement(ctx, info, err, zap.String("total", FormatUnits(total)))
		return nil, err
	}

	ratio := o.config.Ratios.Current(o.clock.Now())

	var addressed, unaddressed []preparedItem
	for _, item := range items {
		if item.payee == nil {
			unaddressed = append(unaddressed, item)
		} else {
			addressed = append(addressed, item)
		}
	}

	b := &batchRun{
		o:       o,
		info:    info,
		buyerID: intent.BuyerID,
		ratio:   ratio,
	}

	for _, item := range addressed {
		if err := b.spacing(ctx); err != nil {
			return nil, b.fail(ctx, []preparedItem{item}, "", err)
		}

		plan, err := ComputeSplitPlan(item.units, *item.payee, o.config.PlatformAddress, ratio)
		if err != nil {
			return nil, b.fail(ctx, []preparedItem{item}, "", err)
		}

		attempt := o.newAttempt()
		exec, err := o.execute(ctx, w, plan, attempt)
		if err != nil {
			return nil, b.fail(ctx, []preparedItem{item}, attempt.Key(), err)
		}

		b.settle(ItemSettlement{
			ItemIDs:               []string{item.ItemID},
			Signature:             exec.signature,
			ProvisioningSignature: exec.provisioning,
			Plan:                  plan,
			AttemptKey:            exec.attempt,
		}, item)
	}

	var fallback *domain.FallbackReason
	if len(unaddressed) > 0 {
		fallback = fallbackReason(unaddressed)
		logger.WarnSettlement(ctx, info, "Payee address missing, routing items to platform",
			zap.String("fallback_reason", string(fallback.Kind)),
			zap.Strings("item_ids", fallback.ItemIDs),
		)

		if err := b.spacing(ctx); err != nil {
			return nil, b.fail(ctx, unaddressed, "", err)
		}

		var units uint64
		for _, item := range unaddressed {
			units += item.units
		}

		plan := FallbackPlan(units, o.config.PlatformAddress)
		attempt := o.newAttempt()
		exec, err := o.execute(ctx, w, plan, attempt)
		if err != nil {
			return nil, b.fail(ctx, unaddressed, attempt.Key(), err)
		}

		b.settle(ItemSettlement{
			ItemIDs:               fallback.ItemIDs,
			Signature:             exec.signature,
			ProvisioningSignature: exec.provisioning,
			Plan:                  plan,
			Fallback:              true,
			AttemptKey:            exec.attempt,
		}, unaddressed...)
	}

	orderID, recordingErr := o.record(ctx, info,
		b.orderInput(b.settled, b.signatures(), domain.OrderStatusCompleted, itemIDs(b.settled)))
	info.OrderID = orderID

	o.publish(ctx, o.newEvent(domain.SettlementEventCompleted, orderID, intent.BuyerID, itemIDs(b.settled), b.signatures(), total, fallback))
	metrics.RecordSettlement(info.Path, outcomeSettled)
	logger.InfoSettlement(ctx, info, "Batch settlement completed",
		zap.Int("transactions", len(b.completed)),
		zap.Int("items", len(b.settled)),
		zap.String("total", FormatUnits(total)),
	)

	return &BatchResult{
		Settlements:  b.completed,
		Fallback:     fallback,
		OrderID:      orderID,
		RecordingErr: recordingErr,
	}, nil
}

// batchRun accumulates the settlements of one batch
type batchRun struct {
	o       *Orchestrator
	info    logger.SettlementInfo
	buyerID string
	ratio   domain.SplitRatio

	completed []ItemSettlement
	settled   []preparedItem
}

func (b *batchRun) settle(s ItemSettlement, items ...preparedItem) {
	b.completed = append(b.completed, s)
	b.settled = append(b.settled, items...)
}

// spacing pauses before every transaction but the first
func (b *batchRun) spacing(ctx context.Context) error {
	if len(b.completed) == 0 {
		return nil
	}
	return b.o.pause(ctx, b.o.config.BatchItemSpacing)
}

func (b *batchRun) signatures() []string {
	signatures := make([]string, 0, len(b.completed))
	for _, s := range b.completed {
		signatures = append(signatures, s.Signature.String())
	}
	return signatures
}

// fail records the landed part of the batch and wraps err.
// Confirmed transfers are recorded as a completed order with their grants. On a confirmation
// timeout the unconfirmed items get their own pending order carrying only the unconfirmed
// signature, so reconciling it never touches confirmed funds.
func (b *batchRun) fail(ctx context.Context, failed []preparedItem, attempt string, err error) error {
	batchErr := &BatchSettlementError{
		Completed:   b.completed,
		FailedIndex: failed[0].index,
		FailedItem:  failed[0].ItemID,
		AttemptKey:  attempt,
		Err:         err,
	}

	if len(b.completed) > 0 {
		orderID, _ := b.o.record(ctx, b.info, b.orderInput(b.settled, b.signatures(), domain.OrderStatusCompleted, itemIDs(b.settled)))
		batchErr.OrderID = orderID

		b.o.publish(ctx, b.o.newEvent(domain.SettlementEventCompleted, orderID, b.buyerID,
			itemIDs(b.settled), b.signatures(), sumUnits(b.settled), fallbackReason(b.settled)))
	}

	var timeoutErr *ConfirmationTimeoutError
	if errors.As(err, &timeoutErr) {
		signatures := []string{timeoutErr.Signature.String()}
		orderID, _ := b.o.record(ctx, b.info, b.orderInput(failed, signatures, domain.OrderStatusPending, nil))
		timeoutErr.OrderID = orderID
		batchErr.PendingOrderID = orderID

		b.o.publish(ctx, b.o.newEvent(domain.SettlementEventPendingVerification, orderID, b.buyerID,
			itemIDs(failed), signatures, sumUnits(failed), fallbackReason(failed)))
		metrics.RecordSettlement(b.info.Path, outcomePending)
	} else {
		metrics.RecordSettlement(b.info.Path, outcomeFailed)
	}

	logger.ErrorSettlement(ctx, b.info, batchErr,
		zap.Int("completed", len(b.completed)),
		zap.String("failed_item", batchErr.FailedItem),
		zap.String("order_id", batchErr.OrderID),
		zap.String("pending_order_id", batchErr.PendingOrderID),
	)

	return batchErr
}

// orderInput builds the order of a batch. A batch made only of fallback items records the platform-only ratio.
func (b *batchRun) orderInput(items []preparedItem, signatures []string, status domain.OrderStatus, grants []string) store.CreateOrderInput {
	ratio := b.ratio
	fallback := fallbackReason(items)
	if fallback != nil && len(fallback.ItemIDs) == len(items) {
		ratio = domain.SplitRatio{PayeeBasisPoints: 0, PlatformBasisPoints: domain.BASIS_POINTS_DENOMINATOR}
	}

	inputs := make([]store.CreateOrderItemInput, 0, len(items))
	for _, item := range items {
		var title *string
		if item.Title != "" {
			t := item.Title
			title = &t
		}
		inputs = append(inputs, store.CreateOrderItemInput{
			ItemID:       item.ItemID,
			PayeeAddress: item.PayeeAddress,
			AmountMinor:  item.units,
			Price:        FromMinorUnits(item.units),
			Title:        title,
			LicenseType:  item.license(),
		})
	}

	return store.CreateOrderInput{
		BuyerID:      b.buyerID,
		Network:      b.o.config.Network,
		TotalPrice:   FromMinorUnits(sumUnits(items)),
		Status:       status,
		Signatures:   signatures,
		Ratio:        ratio,
		Fallback:     fallback,
		Items:        inputs,
		GrantItemIDs: grants,
	}
}

// prepareBatch validates every item before anything is submitted
func prepareBatch(batch []BatchItem) ([]preparedItem, uint64, error) {
	items := make([]preparedItem, 0, len(batch))
	var total uint64
	for i, item := range batch {
		units, err := ToMinorUnits(item.Amount)
		if err != nil {
			return nil, 0, fmt.Errorf("item %s: %w", item.ItemID, err)
		}
		if total+units < total {
			return nil, 0, fmt.Errorf("%w: batch total overflows", domain.ErrInvalidAmount)
		}
		total += units

		prepared := preparedItem{BatchItem: item, index: i, units: units}
		if item.PayeeAddress != nil {
			payee, err := ParseAddress(*item.PayeeAddress)
			if err != nil {
				return nil, 0, fmt.Errorf("item %s: %w", item.ItemID, err)
			}
			prepared.payee = &payee
		}
		items = append(items, prepared)
	}
	return items, total, nil
}

func fallbackReason(items []preparedItem) *domain.FallbackReason {
	var ids []string
	for _, item := range items {
		if item.payee == nil {
			ids = append(ids, item.ItemID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	return &domain.FallbackReason{Kind: domain.FallbackReasonMissingPayee, ItemIDs: ids}
}

func itemIDs(items []preparedItem) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ItemID)
	}
	return ids
}

func sumUnits(items []preparedItem) uint64 {
	var total uint64
	for _, item := range items {
		total += item.units
	}
	return total
}
