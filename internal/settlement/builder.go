package settlement

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"

	"github.com/feral-file/ff-settlement/internal/domain"
	ledger "github.com/feral-file/ff-settlement/internal/providers/solana"
)

// TransferBuilder assembles and dry-runs settlement transactions
type TransferBuilder struct {
	ledger ledger.Client
}

// NewTransferBuilder creates a new transfer builder
func NewTransferBuilder(client ledger.Client) *TransferBuilder {
	return &TransferBuilder{ledger: client}
}

// BuildSplitTransfer builds one unsigned transaction with a token transfer per non-zero plan entry,
// from the signer's token account to each recipient's. The blockhash is fetched last.
func (b *TransferBuilder) BuildSplitTransfer(ctx context.Context, mint, signer solana.PublicKey, plan *SplitPlan) (*solana.Transaction, error) {
	source, err := AssociatedTokenAddress(signer, mint)
	if err != nil {
		return nil, err
	}

	instructions := make([]solana.Instruction, 0, len(plan.Entries))
	for _, entry := range plan.Entries {
		if entry.Amount == 0 {
			continue
		}

		destination, err := AssociatedTokenAddress(entry.Recipient, mint)
		if err != nil {
			return nil, err
		}

		instructions = append(instructions,
			token.NewTransferInstruction(entry.Amount, source, destination, signer, []solana.PublicKey{}).Build())
	}

	if len(instructions) == 0 {
		return nil, fmt.Errorf("%w: plan has no transfers", domain.ErrInvalidAmount)
	}

	blockhash, err := b.ledger.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(signer))
	if err != nil {
		return nil, fmt.Errorf("failed to build transfer transaction: %w", err)
	}

	return tx, nil
}

// Simulate dry-runs a transaction; any reported error aborts the settlement before submission
func (b *TransferBuilder) Simulate(ctx context.Context, tx *solana.Transaction) error {
	result, err := b.ledger.SimulateTransaction(ctx, tx)
	if err != nil {
		return &SimulationError{Err: err}
	}
	if result.Err != "" {
		return &SimulationError{Payload: result.Err, Logs: result.Logs}
	}
	return nil
}
