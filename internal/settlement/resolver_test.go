package settlement_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/ff-settlement/internal/domain"
	"github.com/feral-file/ff-settlement/internal/mocks"
	"github.com/feral-file/ff-settlement/internal/settlement"
)

func TestAccountResolver(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := mocks.NewMockSolanaClient(ctrl)
	resolver := settlement.NewAccountResolver(client)

	mint := solana.MustPublicKeyFromBase58(domain.USDC_MINT_MAINNET)
	owner := solana.NewWallet().PublicKey()
	address, err := settlement.AssociatedTokenAddress(owner, mint)
	require.NoError(t, err)

	t.Run("existing account", func(t *testing.T) {
		client.EXPECT().GetTokenAccount(gomock.Any(), address).
			Return(&domain.TokenAccount{Address: address, Mint: mint, Owner: owner, Amount: 42}, nil).Times(2)

		account, err := resolver.ResolveAccount(context.Background(), mint, owner)
		require.NoError(t, err)
		assert.Equal(t, settlement.ResolvedAccount{Address: address, Exists: true}, account)

		balance, err := resolver.CheckBalance(context.Background(), owner, mint)
		require.NoError(t, err)
		assert.Equal(t, settlement.Balance{Amount: 42, HasAccount: true}, balance)
	})

	t.Run("missing account", func(t *testing.T) {
		client.EXPECT().GetTokenAccount(gomock.Any(), address).
			Return(nil, domain.ErrAccountNotFound).Times(2)

		account, err := resolver.ResolveAccount(context.Background(), mint, owner)
		require.NoError(t, err)
		assert.False(t, account.Exists)
		assert.Equal(t, address, account.Address)

		balance, err := resolver.CheckBalance(context.Background(), owner, mint)
		require.NoError(t, err)
		assert.Equal(t, settlement.Balance{Amount: 0, HasAccount: false}, balance)
	})

	t.Run("account with foreign owner", func(t *testing.T) {
		ownerErr := fmt.Errorf("%w: owned by system program", domain.ErrInvalidAccountOwner)
		client.EXPECT().GetTokenAccount(gomock.Any(), address).Return(nil, ownerErr).Times(2)

		_, err := resolver.ResolveAccount(context.Background(), mint, owner)
		assert.ErrorIs(t, err, domain.ErrInvalidAccountOwner)

		balance, err := resolver.CheckBalance(context.Background(), owner, mint)
		require.NoError(t, err)
		assert.False(t, balance.HasAccount)
	})

	t.Run("transport error", func(t *testing.T) {
		client.EXPECT().GetTokenAccount(gomock.Any(), address).Return(nil, errors.New("connection reset")).Times(2)

		_, err := resolver.ResolveAccount(context.Background(), mint, owner)
		assert.Error(t, err)

		_, err = resolver.CheckBalance(context.Background(), owner, mint)
		assert.Error(t, err)
	})
}

func TestAddressValidation(t *testing.T) {
	valid := solana.NewWallet().PublicKey().String()

	assert.True(t, settlement.IsValidAddress(valid))
	assert.True(t, settlement.IsValidAddress(domain.USDC_MINT_MAINNET))
	assert.True(t, settlement.IsValidAddress(solana.SystemProgramID.String()))
	assert.False(t, settlement.IsValidAddress("1111111111111111111111111111111"))
	assert.False(t, settlement.IsValidAddress(""))
	assert.False(t, settlement.IsValidAddress("0x52908400098527886E0F7030069857D2E4169EE7"))

	key, err := settlement.ParseAddress(valid)
	require.NoError(t, err)
	assert.Equal(t, valid, key.String())

	_, err = settlement.ParseAddress("not base58 0OIl")
	assert.ErrorIs(t, err, domain.ErrInvalidAddress)
}
