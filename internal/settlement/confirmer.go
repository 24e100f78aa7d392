package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/feral-file/ff-settlement/internal/adapter"
	"github.com/feral-file/ff-settlement/internal/domain"
	"github.com/feral-file/ff-settlement/internal/logger"
	"github.com/feral-file/ff-settlement/internal/metrics"
	ledger "github.com/feral-file/ff-settlement/internal/providers/solana"
	"github.com/feral-file/ff-settlement/internal/wallet"
)

// ConfirmationState is the progress of a single submitted transaction
type ConfirmationState string

const (
	ConfirmationStateSubmitted ConfirmationState = "submitted"
	ConfirmationStatePolling   ConfirmationState = "polling"
	ConfirmationStateConfirmed ConfirmationState = "confirmed"
	ConfirmationStateFailed    ConfirmationState = "failed"
	ConfirmationStateTimedOut  ConfirmationState = "timed_out"
)

// ConfirmerConfig holds the submission and polling configuration
type ConfirmerConfig struct {
	Network      domain.Network
	PollInterval time.Duration
	SendOptions  domain.SendOptions
}

// Confirmer submits transactions through a wallet and polls them to confirmation
type Confirmer struct {
	config ConfirmerConfig
	ledger ledger.Client
	clock  adapter.Clock
}

// NewConfirmer creates a new confirmer
func NewConfirmer(cfg ConfirmerConfig, client ledger.Client, clock adapter.Clock) *Confirmer {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.SendOptions.PreflightCommitment == "" {
		cfg.SendOptions = domain.DefaultSendOptions
	}
	return &Confirmer{config: cfg, ledger: client, clock: clock}
}

// Submit signs and submits a transaction through the wallet
func (c *Confirmer) Submit(ctx context.Context, w wallet.Wallet, tx *solana.Transaction) (solana.Signature, error) {
	signature, err := w.SendTransaction(ctx, tx, c.ledger, c.config.SendOptions)
	if err != nil {
		if errors.Is(err, domain.ErrWalletNotConnected) {
			return solana.Signature{}, err
		}
		return solana.Signature{}, &TransactionFailedError{Err: err}
	}

	logger.DebugCtx(ctx, "Transaction submitted", zap.Stringer("signature", signature))
	return signature, nil
}

// WaitForConfirmation polls the signature until it is confirmed, fails or the timeout elapses.
// Transient status read errors are retried on the next tick.
func (c *Confirmer) WaitForConfirmation(ctx context.Context, signature solana.Signature, timeout time.Duration) error {
	start := c.clock.Now()
	state := ConfirmationStatePolling
	defer func() {
		metrics.ObserveConfirmation(string(state), c.clock.Since(start))
	}()

	for {
		status, err := c.ledger.GetSignatureStatus(ctx, signature)
		if err != nil {
			logger.WarnCtx(ctx, "Failed to read signature status, retrying",
				zap.Stringer("signature", signature),
				zap.Error(err),
			)
		} else if status.Failed() {
			state = ConfirmationStateFailed
			sig := signature
			return &TransactionFailedError{Signature: &sig, Payload: status.Err}
		} else if status.Confirmed() {
			state = ConfirmationStateConfirmed
			return nil
		}

		if c.clock.Since(start) >= timeout {
			state = ConfirmationStateTimedOut
			return c.timeoutError(signature, timeout, nil)
		}

		select {
		case <-ctx.Done():
			state = ConfirmationStateTimedOut
			return c.timeoutError(signature, timeout, ctx.Err())
		case <-c.clock.After(c.config.PollInterval):
		}
	}
}

// SubmitAndConfirm submits a transaction and waits for its confirmation
func (c *Confirmer) SubmitAndConfirm(ctx context.Context, w wallet.Wallet, tx *solana.Transaction, timeout time.Duration) (solana.Signature, error) {
	signature, err := c.Submit(ctx, w, tx)
	if err != nil {
		return solana.Signature{}, err
	}

	if err := c.WaitForConfirmation(ctx, signature, timeout); err != nil {
		return signature, err
	}

	return signature, nil
}

func (c *Confirmer) timeoutError(signature solana.Signature, timeout time.Duration, cause error) error {
	return &ConfirmationTimeoutError{
		Signature:   signature,
		ExplorerURL: c.config.Network.ExplorerTxURL(signature.String()),
		Timeout:     timeout,
		Cause:       cause,
	}
}
