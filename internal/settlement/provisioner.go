package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"go.uber.org/zap"

	"github.com/feral-file/ff-settlement/internal/domain"
	"github.com/feral-file/ff-settlement/internal/logger"
	"github.com/feral-file/ff-settlement/internal/metrics"
	ledger "github.com/feral-file/ff-settlement/internal/providers/solana"
	"github.com/feral-file/ff-settlement/internal/wallet"
)

// AccountProvisioner creates missing associated token accounts in one batched transaction
type AccountProvisioner struct {
	resolver  *AccountResolver
	ledger    ledger.Client
	confirmer *Confirmer
	timeout   time.Duration
}

// NewAccountProvisioner creates a new account provisioner
func NewAccountProvisioner(resolver *AccountResolver, client ledger.Client, confirmer *Confirmer, timeout time.Duration) *AccountProvisioner {
	return &AccountProvisioner{
		resolver:  resolver,
		ledger:    client,
		confirmer: confirmer,
		timeout:   timeout,
	}
}

// EnsureAccounts makes sure every owner has a token account for mint, paid for by the wallet.
// Returns a nil signature without submitting anything when all accounts exist.
func (p *AccountProvisioner) EnsureAccounts(ctx context.Context, w wallet.Wallet, mint solana.PublicKey, owners []solana.PublicKey) (*solana.Signature, error) {
	seen := make(map[solana.PublicKey]struct{}, len(owners))
	var missing []solana.PublicKey
	for _, owner := range owners {
		if _, ok := seen[owner]; ok {
			continue
		}
		seen[owner] = struct{}{}

		account, err := p.resolver.ResolveAccount(ctx, mint, owner)
		if err != nil {
			return nil, err
		}
		if !account.Exists {
			missing = append(missing, owner)
		}
	}

	if len(missing) == 0 {
		return nil, nil
	}

	payer := w.PublicKey()
	instructions := make([]solana.Instruction, 0, len(missing))
	for _, owner := range missing {
		instructions = append(instructions, associatedtokenaccount.NewCreateInstruction(payer, owner, mint).Build())
	}

	blockhash, err := p.ledger.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(payer))
	if err != nil {
		return nil, fmt.Errorf("failed to build provisioning transaction: %w", err)
	}

	logger.InfoCtx(ctx, "Provisioning token accounts",
		zap.Int("count", len(missing)),
		zap.Stringer("payer", payer),
	)

	signature, err := p.confirmer.SubmitAndConfirm(ctx, w, tx, p.timeout)
	if err != nil {
		if errors.Is(err, domain.ErrWalletNotConnected) {
			return nil, err
		}
		logger.WarnCtx(ctx, "Provisioning transaction did not land",
			zap.Int("count", len(missing)),
			zap.Error(err),
		)
		return SubmittedSignature(err), &ProvisioningError{
			Owner:     missing[0],
			Signature: SubmittedSignature(err),
			Reason:    err.Error(),
		}
	}

	for _, owner := range missing {
		account, err := p.resolver.ResolveAccount(ctx, mint, owner)
		if err != nil {
			return &signature, err
		}
		if !account.Exists {
			return &signature, &ProvisioningError{Owner: owner, Signature: &signature}
		}
	}

	metrics.RecordProvisionedAccounts(len(missing))
	logger.InfoCtx(ctx, "Provisioned token accounts",
		zap.Int("count", len(missing)),
		zap.Stringer("signature", signature),
	)

	return &signature, nil
}
