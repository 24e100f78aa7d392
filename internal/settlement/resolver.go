package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/feral-file/ff-settlement/internal/domain"
	ledger "github.com/feral-file/ff-settlement/internal/providers/solana"
)

// ResolvedAccount is the token account address of an owner and whether it exists
type ResolvedAccount struct {
	Address solana.PublicKey
	Exists  bool
}

// Balance is an owner's token balance
type Balance struct {
	Amount     uint64
	HasAccount bool
}

// AccountResolver resolves associated token accounts. Results are never cached.
type AccountResolver struct {
	ledger ledger.Client
}

// NewAccountResolver creates a new account resolver
func NewAccountResolver(client ledger.Client) *AccountResolver {
	return &AccountResolver{ledger: client}
}

// AssociatedTokenAddress derives the associated token account of (owner, mint)
func AssociatedTokenAddress(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	address, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive token account of %s: %w", owner, err)
	}
	return address, nil
}

// ResolveAccount returns the token account of owner for mint.
// Only a missing account maps to Exists=false; every other read error is returned.
func (r *AccountResolver) ResolveAccount(ctx context.Context, mint, owner solana.PublicKey) (ResolvedAccount, error) {
	address, err := AssociatedTokenAddress(owner, mint)
	if err != nil {
		return ResolvedAccount{}, err
	}

	_, err = r.ledger.GetTokenAccount(ctx, address)
	switch {
	case err == nil:
		return ResolvedAccount{Address: address, Exists: true}, nil
	case errors.Is(err, domain.ErrAccountNotFound):
		return ResolvedAccount{Address: address, Exists: false}, nil
	default:
		return ResolvedAccount{Address: address}, fmt.Errorf("failed to resolve token account of %s: %w", owner, err)
	}
}

// CheckBalance returns the owner's balance for mint.
// A missing account or one not owned by the token program reads as zero without an account.
func (r *AccountResolver) CheckBalance(ctx context.Context, owner, mint solana.PublicKey) (Balance, error) {
	address, err := AssociatedTokenAddress(owner, mint)
	if err != nil {
		return Balance{}, err
	}

	account, err := r.ledger.GetTokenAccount(ctx, address)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) || errors.Is(err, domain.ErrInvalidAccountOwner) {
			return Balance{Amount: 0, HasAccount: false}, nil
		}
		return Balance{}, fmt.Errorf("failed to check balance of %s: %w", owner, err)
	}

	return Balance{Amount: account.Amount, HasAccount: true}, nil
}
