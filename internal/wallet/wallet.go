package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"

	"github.com/feral-file/ff-settlement/internal/domain"
)

// Sender submits signed transactions to the ledger
type Sender interface {
	SendTransaction(ctx context.Context, tx *solana.Transaction, opts domain.SendOptions) (solana.Signature, error)
}

// Wallet is the signer authorizing settlements.
// A wallet is a single sequential resource: callers must not submit concurrently through it.
//
//go:generate mockgen -source=wallet.go -destination=../mocks/wallet.go -package=mocks -mock_names=Wallet=MockWallet
type Wallet interface {
	// Connected reports whether the wallet can sign
	Connected() bool

	// PublicKey returns the signer's address
	PublicKey() solana.PublicKey

	// SendTransaction signs the transaction and submits it through the sender
	SendTransaction(ctx context.Context, tx *solana.Transaction, sender Sender, opts domain.SendOptions) (solana.Signature, error)
}

type keypairWallet struct {
	mu  sync.Mutex
	key solana.PrivateKey
}

// NewKeypairWallet creates a wallet backed by a local private key
func NewKeypairWallet(key solana.PrivateKey) Wallet {
	return &keypairWallet{key: key}
}

// LoadKeypairWallet loads a wallet from a solana-keygen JSON file
func LoadKeypairWallet(path string) (Wallet, error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load keypair from %s: %w", path, err)
	}
	return NewKeypairWallet(key), nil
}

func (w *keypairWallet) Connected() bool {
	return len(w.key) == 64
}

func (w *keypairWallet) PublicKey() solana.PublicKey {
	if !w.Connected() {
		return solana.PublicKey{}
	}
	return w.key.PublicKey()
}

func (w *keypairWallet) SendTransaction(ctx context.Context, tx *solana.Transaction, sender Sender, opts domain.SendOptions) (solana.Signature, error) {
	if !w.Connected() {
		return solana.Signature{}, domain.ErrWalletNotConnected
	}
	if tx == nil {
		return solana.Signature{}, errors.New("nil transaction")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	signer := w.key.PublicKey()
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(signer) {
			return &w.key
		}
		return nil
	}); err != nil {
		return solana.Signature{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	return sender.SendTransaction(ctx, tx, opts)
}
