package solana

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/feral-file/ff-settlement/internal/adapter"
	"github.com/feral-file/ff-settlement/internal/domain"
	"github.com/feral-file/ff-settlement/internal/logger"
)

// Client is the ledger connection used by the settlement core.
// Read calls are retried on transport errors, SendTransaction never is.
//
//go:generate mockgen -source=client.go -destination=../../mocks/solana_client.go -package=mocks -mock_names=Client=MockSolanaClient
type Client interface {
	// GetLatestBlockhash returns a fresh blockhash at the configured commitment
	GetLatestBlockhash(ctx context.Context) (solana.Hash, error)

	// GetTokenAccount fetches and decodes a token account.
	// Returns domain.ErrAccountNotFound when the account does not exist and
	// domain.ErrInvalidAccountOwner when it is not owned by the token program.
	GetTokenAccount(ctx context.Context, address solana.PublicKey) (*domain.TokenAccount, error)

	// GetSignatureStatus returns the status of a signature, nil when the ledger has not seen it yet
	GetSignatureStatus(ctx context.Context, signature solana.Signature) (*domain.SignatureStatus, error)

	// GetSignatureStatuses returns the statuses of several signatures in input order
	GetSignatureStatuses(ctx context.Context, signatures []solana.Signature) ([]*domain.SignatureStatus, error)

	// GetTokenBalanceChanges returns the token balances a confirmed transaction changed.
	// Returns domain.ErrTransactionNotFound when the ledger has no record of the transaction.
	GetTokenBalanceChanges(ctx context.Context, signature solana.Signature) ([]domain.TokenBalanceChange, error)

	// SimulateTransaction dry-runs a transaction without signature verification
	SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*domain.SimulationResult, error)

	// SendTransaction submits a signed transaction
	SendTransaction(ctx context.Context, tx *solana.Transaction, opts domain.SendOptions) (solana.Signature, error)

	// Close closes the connection
	Close()
}

// Config holds the ledger client configuration
type Config struct {
	Network    domain.Network
	Commitment domain.Commitment
	// MaxReadRetries is the number of retries for read calls after the first attempt
	MaxReadRetries uint64
	// RetryInitialInterval is the first backoff interval between read retries
	RetryInitialInterval time.Duration
}

type client struct {
	config Config
	rpc    adapter.SolanaRPC
	json   adapter.JSON
}

// NewClient creates a new ledger client
func NewClient(cfg Config, rpcClient adapter.SolanaRPC, jsonAdapter adapter.JSON) Client {
	if cfg.Commitment == "" {
		cfg.Commitment = domain.CommitmentConfirmed
	}
	if cfg.RetryInitialInterval == 0 {
		cfg.RetryInitialInterval = 250 * time.Millisecond
	}
	return &client{config: cfg, rpc: rpcClient, json: jsonAdapter}
}

func (c *client) commitment() rpc.CommitmentType {
	return rpc.CommitmentType(c.config.Commitment)
}

// retryRead runs a read operation with exponential backoff.
// Errors wrapped with backoff.Permanent stop the retry loop immediately.
func (c *client) retryRead(ctx context.Context, name string, operation func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.config.RetryInitialInterval
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 10 * time.Second

	notify := func(err error, next time.Duration) {
		logger.WarnCtx(ctx, "Ledger read failed, retrying",
			zap.String("call", name),
			zap.Error(err),
			zap.Duration("next_retry_in", next),
		)
	}

	return backoff.RetryNotify(operation,
		backoff.WithContext(backoff.WithMaxRetries(b, c.config.MaxReadRetries), ctx),
		notify)
}

// GetLatestBlockhash returns a fresh blockhash
func (c *client) GetLatestBlockhash(ctx context.Context) (solana.Hash, error) {
	var blockhash solana.Hash
	err := c.retryRead(ctx, "getLatestBlockhash", func() error {
		out, err := c.rpc.GetLatestBlockhash(ctx, c.commitment())
		if err != nil {
			return err
		}
		if out == nil || out.Value == nil {
			return backoff.Permanent(errors.New("empty blockhash response"))
		}
		blockhash = out.Value.Blockhash
		return nil
	})
	if err != nil {
		return solana.Hash{}, fmt.Errorf("failed to get latest blockhash: %w", err)
	}

	return blockhash, nil
}

// GetTokenAccount fetches and decodes a token account
func (c *client) GetTokenAccount(ctx context.Context, address solana.PublicKey) (*domain.TokenAccount, error) {
	var account *domain.TokenAccount
	err := c.retryRead(ctx, "getAccountInfo", func() error {
		out, err := c.rpc.GetAccountInfoWithOpts(ctx, address, &rpc.GetAccountInfoOpts{
			Encoding:   solana.EncodingBase64,
			Commitment: c.commitment(),
		})
		if err != nil {
			if errors.Is(err, rpc.ErrNotFound) {
				return backoff.Permanent(domain.ErrAccountNotFound)
			}
			return err
		}
		if out == nil || out.Value == nil {
			return backoff.Permanent(domain.ErrAccountNotFound)
		}
		if !out.Value.Owner.Equals(solana.TokenProgramID) {
			return backoff.Permanent(fmt.Errorf("%w: %s is owned by %s", domain.ErrInvalidAccountOwner, address, out.Value.Owner))
		}

		var decoded token.Account
		if err := decoded.UnmarshalWithDecoder(bin.NewBinDecoder(out.Value.Data.GetBinary())); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode token account %s: %w", address, err))
		}

		account = &domain.TokenAccount{
			Address: address,
			Mint:    decoded.Mint,
			Owner:   decoded.Owner,
			Amount:  decoded.Amount,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return account, nil
}

// GetSignatureStatus returns the status of a single signature
func (c *client) GetSignatureStatus(ctx context.Context, signature solana.Signature) (*domain.SignatureStatus, error) {
	statuses, err := c.GetSignatureStatuses(ctx, []solana.Signature{signature})
	if err != nil {
		return nil, err
	}
	if len(statuses) == 0 {
		return nil, nil
	}
	return statuses[0], nil
}

// GetSignatureStatuses returns the statuses of several signatures.
// A nil entry means the ledger does not know the signature yet.
func (c *client) GetSignatureStatuses(ctx context.Context, signatures []solana.Signature) ([]*domain.SignatureStatus, error) {
	if len(signatures) == 0 {
		return nil, nil
	}

	var statuses []*domain.SignatureStatus
	err := c.retryRead(ctx, "getSignatureStatuses", func() error {
		out, err := c.rpc.GetSignatureStatuses(ctx, true, signatures...)
		if err != nil {
			return err
		}

		statuses = make([]*domain.SignatureStatus, len(signatures))
		if out == nil {
			return nil
		}
		for i, value := range out.Value {
			if i >= len(signatures) || value == nil {
				continue
			}
			status := &domain.SignatureStatus{
				Signature:          signatures[i],
				Slot:               value.Slot,
				ConfirmationStatus: domain.Commitment(value.ConfirmationStatus),
			}
			if value.Err != nil {
				status.Err = c.errorPayload(value.Err)
			}
			statuses[i] = status
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get signature statuses: %w", err)
	}

	return statuses, nil
}

// GetTokenBalanceChanges reads the pre and post token balances of a confirmed transaction
func (c *client) GetTokenBalanceChanges(ctx context.Context, signature solana.Signature) ([]domain.TokenBalanceChange, error) {
	// getTransaction rejects processed commitment
	commitment := c.commitment()
	if commitment == rpc.CommitmentProcessed {
		commitment = rpc.CommitmentConfirmed
	}
	maxVersion := uint64(0)

	var changes []domain.TokenBalanceChange
	err := c.retryRead(ctx, "getTransaction", func() error {
		out, err := c.rpc.GetTransaction(ctx, signature, &rpc.GetTransactionOpts{
			Encoding:                       solana.EncodingBase64,
			Commitment:                     commitment,
			MaxSupportedTransactionVersion: &maxVersion,
		})
		if err != nil {
			if errors.Is(err, rpc.ErrNotFound) {
				return backoff.Permanent(fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, signature))
			}
			return err
		}
		if out == nil || out.Meta == nil {
			return backoff.Permanent(fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, signature))
		}

		changes, err = tokenBalanceChanges(out.Meta.PreTokenBalances, out.Meta.PostTokenBalances)
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return changes, nil
}

// tokenBalanceChanges pairs pre and post balances by account index, in order of first appearance.
// An account created by the transaction has no pre balance.
func tokenBalanceChanges(pre, post []rpc.TokenBalance) ([]domain.TokenBalanceChange, error) {
	byIndex := make(map[uint16]int)
	var changes []domain.TokenBalanceChange

	collect := func(balances []rpc.TokenBalance, after bool) error {
		for _, b := range balances {
			if b.Owner == nil || b.UiTokenAmount == nil {
				continue
			}
			amount, err := strconv.ParseUint(b.UiTokenAmount.Amount, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid token amount %q at account %d: %w", b.UiTokenAmount.Amount, b.AccountIndex, err)
			}

			i, ok := byIndex[b.AccountIndex]
			if !ok {
				i = len(changes)
				byIndex[b.AccountIndex] = i
				changes = append(changes, domain.TokenBalanceChange{Owner: *b.Owner, Mint: b.Mint})
			}
			if after {
				changes[i].Post = amount
			} else {
				changes[i].Pre = amount
			}
		}
		return nil
	}

	if err := collect(pre, false); err != nil {
		return nil, err
	}
	if err := collect(post, true); err != nil {
		return nil, err
	}

	return changes, nil
}

// SimulateTransaction dry-runs a transaction.
// Unsigned transactions get placeholder signatures since verification is disabled.
func (c *client) SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*domain.SimulationResult, error) {
	simulated := *tx
	if len(simulated.Signatures) == 0 {
		simulated.Signatures = make([]solana.Signature, tx.Message.Header.NumRequiredSignatures)
	}

	out, err := c.rpc.SimulateTransactionWithOpts(ctx, &simulated, &rpc.SimulateTransactionOpts{
		SigVerify:  false,
		Commitment: c.commitment(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to simulate transaction: %w", err)
	}
	if out == nil || out.Value == nil {
		return nil, errors.New("empty simulation response")
	}

	result := &domain.SimulationResult{
		Logs: out.Value.Logs,
	}
	if out.Value.UnitsConsumed != nil {
		result.UnitsConsumed = *out.Value.UnitsConsumed
	}
	if out.Value.Err != nil {
		result.Err = c.errorPayload(out.Value.Err)
	}

	return result, nil
}

// SendTransaction submits a signed transaction
func (c *client) SendTransaction(ctx context.Context, tx *solana.Transaction, opts domain.SendOptions) (solana.Signature, error) {
	maxRetries := opts.MaxRetries
	preflight := opts.PreflightCommitment
	if preflight == "" {
		preflight = c.config.Commitment
	}

	signature, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       opts.SkipPreflight,
		PreflightCommitment: rpc.CommitmentType(preflight),
		MaxRetries:          &maxRetries,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}

	return signature, nil
}

// Close closes the connection
func (c *client) Close() {
	if err := c.rpc.Close(); err != nil {
		logger.Warn("Failed to close ledger connection", zap.Error(err))
	}
}

// errorPayload renders a ledger error object as JSON text
func (c *client) errorPayload(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := c.json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
