package ratelimit

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"golang.org/x/time/rate"

	"github.com/feral-file/ff-settlement/internal/adapter"
)

// Config holds the request budget of an RPC endpoint
type Config struct {
	// RequestsPerSecond is the sustained rate, zero disables limiting
	RequestsPerSecond float64
	// Burst is the number of requests allowed at once
	Burst int
}

// limitedRPC waits for a token before every JSON-RPC call.
// Public endpoints throttle aggressively and answer 429 once the budget is exceeded.
type limitedRPC struct {
	rpc     adapter.SolanaRPC
	limiter *rate.Limiter
}

// NewSolanaRPC wraps an RPC client with a local token bucket.
// The client is returned unchanged when limiting is disabled.
func NewSolanaRPC(cfg Config, inner adapter.SolanaRPC) adapter.SolanaRPC {
	if cfg.RequestsPerSecond <= 0 {
		return inner
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &limitedRPC{
		rpc:     inner,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
	}
}

func (l *limitedRPC) wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	return nil
}

func (l *limitedRPC) GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	if err := l.wait(ctx); err != nil {
		return nil, err
	}
	return l.rpc.GetLatestBlockhash(ctx, commitment)
}

func (l *limitedRPC) GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error) {
	if err := l.wait(ctx); err != nil {
		return nil, err
	}
	return l.rpc.GetAccountInfoWithOpts(ctx, account, opts)
}

func (l *limitedRPC) GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, transactionSignatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	if err := l.wait(ctx); err != nil {
		return nil, err
	}
	return l.rpc.GetSignatureStatuses(ctx, searchTransactionHistory, transactionSignatures...)
}

func (l *limitedRPC) SimulateTransactionWithOpts(ctx context.Context, transaction *solana.Transaction, opts *rpc.SimulateTransactionOpts) (*rpc.SimulateTransactionResponse, error) {
	if err := l.wait(ctx); err != nil {
		return nil, err
	}
	return l.rpc.SimulateTransactionWithOpts(ctx, transaction, opts)
}

// SendTransactionWithOpts is limited like every other call; a send rejected here never reached the ledger
func (l *limitedRPC) SendTransactionWithOpts(ctx context.Context, transaction *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error) {
	if err := l.wait(ctx); err != nil {
		return solana.Signature{}, err
	}
	return l.rpc.SendTransactionWithOpts(ctx, transaction, opts)
}

func (l *limitedRPC) GetTransaction(ctx context.Context, txSig solana.Signature, opts *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error) {
	if err := l.wait(ctx); err != nil {
		return nil, err
	}
	return l.rpc.GetTransaction(ctx, txSig, opts)
}

func (l *limitedRPC) Close() error {
	return l.rpc.Close()
}
