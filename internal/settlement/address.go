package settlement

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/feral-file/ff-settlement/internal/domain"
)

// IsValidAddress reports whether candidate parses as a ledger public key.
// It never touches the network.
func IsValidAddress(candidate string) bool {
	_, err := solana.PublicKeyFromBase58(candidate)
	return err == nil
}

// ParseAddress parses a ledger public key
func ParseAddress(candidate string) (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(candidate)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %q", domain.ErrInvalidAddress, candidate)
	}
	return key, nil
}
