package wallet_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/ff-settlement/internal/domain"
	"github.com/feral-file/ff-settlement/internal/mocks"
	"github.com/feral-file/ff-settlement/internal/wallet"
)

func newTransferTx(t *testing.T, payer solana.PublicKey) *solana.Transaction {
	t.Helper()
	tx, err := solana.NewTransaction(
		[]solana.Instruction{solana.NewInstruction(solana.MemoProgramID, solana.AccountMetaSlice{
			solana.Meta(payer).SIGNER().WRITE(),
		}, []byte("memo"))},
		solana.Hash{1},
		solana.TransactionPayer(payer),
	)
	require.NoError(t, err)
	return tx
}

func TestKeypairWallet_SignsAndSends(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	key := solana.NewWallet().PrivateKey
	w := wallet.NewKeypairWallet(key)
	sender := mocks.NewMockSender(ctrl)

	require.True(t, w.Connected())
	assert.Equal(t, key.PublicKey(), w.PublicKey())

	tx := newTransferTx(t, key.PublicKey())
	sender.EXPECT().SendTransaction(gomock.Any(), tx, domain.DefaultSendOptions).
		DoAndReturn(func(_ context.Context, tx *solana.Transaction, _ domain.SendOptions) (solana.Signature, error) {
			require.Len(t, tx.Signatures, 1)
			assert.NoError(t, tx.VerifySignatures())
			return tx.Signatures[0], nil
		})

	sig, err := w.SendTransaction(context.Background(), tx, sender, domain.DefaultSendOptions)
	require.NoError(t, err)
	assert.Equal(t, tx.Signatures[0], sig)
}

func TestKeypairWallet_SenderError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	key := solana.NewWallet().PrivateKey
	w := wallet.NewKeypairWallet(key)
	sender := mocks.NewMockSender(ctrl)

	sender.EXPECT().SendTransaction(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(solana.Signature{}, errors.New("node is behind"))

	_, err := w.SendTransaction(context.Background(), newTransferTx(t, key.PublicKey()), sender, domain.DefaultSendOptions)
	assert.EqualError(t, err, "node is behind")
}

func TestKeypairWallet_NotConnected(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	w := wallet.NewKeypairWallet(nil)
	assert.False(t, w.Connected())
	assert.True(t, w.PublicKey().IsZero())

	_, err := w.SendTransaction(context.Background(), &solana.Transaction{}, mocks.NewMockSender(ctrl), domain.DefaultSendOptions)
	assert.ErrorIs(t, err, domain.ErrWalletNotConnected)
}

func TestKeypairWallet_NilTransaction(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	w := wallet.NewKeypairWallet(solana.NewWallet().PrivateKey)
	_, err := w.SendTransaction(context.Background(), nil, mocks.NewMockSender(ctrl), domain.DefaultSendOptions)
	assert.Error(t, err)
}

func TestLoadKeypairWallet(t *testing.T) {
	key := solana.NewWallet().PrivateKey
	// keygen files are a JSON array of numbers, not base64
	ints := make([]int, len(key))
	for i, b := range key {
		ints[i] = int(b)
	}
	data, err := json.Marshal(ints)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "keypair.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	w, err := wallet.LoadKeypairWallet(path)
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey(), w.PublicKey())

	_, err = wallet.LoadKeypairWallet(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
