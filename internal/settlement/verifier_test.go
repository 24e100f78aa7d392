package settlement_test

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/feral-file/ff-settlement/internal/domain"
	"github.com/feral-file/ff-settlement/internal/settlement"
	"github.com/feral-file/ff-settlement/internal/store/schema"
)

func newTestVerifier(tm *testSettlementMocks) *settlement.Verifier {
	return settlement.NewVerifier(settlement.VerifierConfig{
		Network:         domain.NetworkDevnet,
		Mint:            tm.mint,
		PlatformAddress: tm.platform,
		Attempts:        3,
		Interval:        time.Second,
	}, tm.ledger, tm.store, tm.publisher, tm.clock)
}

// expectUnusedSignature makes the signature unknown to every order
func (tm *testSettlementMocks) expectUnusedSignature(sig solana.Signature) {
	tm.store.EXPECT().GetOrderBySignature(gomock.Any(), sig.String()).Return(nil, domain.ErrOrderNotFound)
}

// expectOrderPayment serves one payee item for the order and the balance changes of sig
func (tm *testSettlementMocks) expectOrderPayment(order *schema.Order, sig solana.Signature, changes []domain.TokenBalanceChange) {
	payee := tm.payee.String()
	tm.store.EXPECT().GetOrderItems(gomock.Any(), order.ID.String()).
		Return([]schema.OrderItem{{OrderID: order.ID, ItemID: "item-1", PayeeAddress: &payee}}, nil)
	tm.ledger.EXPECT().GetTokenBalanceChanges(gomock.Any(), sig).Return(changes, nil)
}

// splitChanges moves 12.5 USDC from the signer, 10 to the payee and 2.5 to the platform
func (tm *testSettlementMocks) splitChanges() []domain.TokenBalanceChange {
	return []domain.TokenBalanceChange{
		{Owner: tm.signer, Mint: tm.mint, Pre: 100_000_000, Post: 87_500_000},
		{Owner: tm.payee, Mint: tm.mint, Pre: 0, Post: 10_000_000},
		{Owner: tm.platform, Mint: tm.mint, Pre: 1_000_000, Post: 3_500_000},
	}
}

func testOrder(status domain.OrderStatus, signatures ...string) *schema.Order {
	return &schema.Order{
		ID:                    uuid.New(),
		BuyerID:               "buyer-1",
		Network:               domain.NetworkDevnet,
		TotalPrice:            decimal.RequireFromString("12.5"),
		Status:                status,
		TransactionSignatures: datatypes.JSONSlice[string](signatures),
	}
}

func TestVerifyPayment_Confirmed(t *testing.T) {
	tm := setupTestSettlement(t)
	defer tearDownTestSettlement(tm)

	sig := solana.Signature{41}
	order := testOrder(domain.OrderStatusPending)
	orderID := order.ID.String()

	tm.store.EXPECT().GetOrderByID(gomock.Any(), orderID).Return(order, nil)
	tm.expectUnusedSignature(sig)
	gomock.InOrder(
		tm.ledger.EXPECT().GetSignatureStatus(gomock.Any(), sig).Return(nil, nil),
		tm.ledger.EXPECT().GetSignatureStatus(gomock.Any(), sig).
			Return(&domain.SignatureStatus{Signature: sig, ConfirmationStatus: domain.CommitmentConfirmed}, nil),
	)
	tm.expectOrderPayment(order, sig, tm.splitChanges())
	tm.store.EXPECT().AttachOrderSignature(gomock.Any(), orderID, sig.String()).Return(nil)
	tm.store.EXPECT().FinalizeOrder(gomock.Any(), orderID).Return(2, nil)
	events := tm.expectEvents()

	result, err := newTestVerifier(tm).VerifyPayment(context.Background(), orderID, sig.String())

	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCompleted, result.Status)
	assert.Equal(t, 2, result.GrantsCreated)
	assert.False(t, result.AlreadyCompleted)

	require.Len(t, *events, 1)
	assert.Equal(t, domain.SettlementEventCompleted, (*events)[0].EventType)
	assert.Equal(t, []string{sig.String()}, (*events)[0].Signatures)
	assert.Equal(t, "12500000", (*events)[0].TotalAmount)
}

func TestVerifyPayment_AlreadyCompletedRepairsGrants(t *testing.T) {
	tm := setupTestSettlement(t)
	defer tearDownTestSettlement(tm)

	sig := solana.Signature{42}
	order := testOrder(domain.OrderStatusCompleted, sig.String())
	orderID := order.ID.String()

	tm.store.EXPECT().GetOrderByID(gomock.Any(), orderID).Return(order, nil)
	tm.store.EXPECT().FinalizeOrder(gomock.Any(), orderID).Return(1, nil)

	result, err := newTestVerifier(tm).VerifyPayment(context.Background(), orderID, sig.String())

	require.NoError(t, err)
	assert.True(t, result.AlreadyCompleted)
	assert.Equal(t, 1, result.GrantsCreated)
}

func TestVerifyPayment_FailedOnChain(t *testing.T) {
	tm := setupTestSettlement(t)
	defer tearDownTestSettlement(tm)

	sig := solana.Signature{43}
	order := testOrder(domain.OrderStatusPending)
	orderID := order.ID.String()

	tm.store.EXPECT().GetOrderByID(gomock.Any(), orderID).Return(order, nil)
	tm.expectUnusedSignature(sig)
	tm.ledger.EXPECT().GetSignatureStatus(gomock.Any(), sig).
		Return(&domain.SignatureStatus{Signature: sig, Err: "InsufficientFunds"}, nil)
	tm.store.EXPECT().MarkOrderFailed(gomock.Any(), orderID, "InsufficientFunds").Return(nil)
	events := tm.expectEvents()

	_, err := newTestVerifier(tm).VerifyPayment(context.Background(), orderID, sig.String())

	assert.ErrorIs(t, err, domain.ErrTransactionFailed)
	require.Len(t, *events, 1)
	assert.Equal(t, domain.SettlementEventFailed, (*events)[0].EventType)
}

func TestVerifyPayment_NotConfirmedInTime(t *testing.T) {
	tm := setupTestSettlement(t)
	defer tearDownTestSettlement(tm)

	sig := solana.Signature{44}
	order := testOrder(domain.OrderStatusPending)
	orderID := order.ID.String()

	tm.store.EXPECT().GetOrderByID(gomock.Any(), orderID).Return(order, nil)
	tm.expectUnusedSignature(sig)
	tm.ledger.EXPECT().GetSignatureStatus(gomock.Any(), sig).Return(nil, nil).Times(3)

	_, err := newTestVerifier(tm).VerifyPayment(context.Background(), orderID, sig.String())

	var timeoutErr *settlement.ConfirmationTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, orderID, timeoutErr.OrderID)
	assert.Equal(t, 3*time.Second, timeoutErr.Timeout)
}

func TestVerifyPayment_RecordedSignatureOfTheSameOrder(t *testing.T) {
	tm := setupTestSettlement(t)
	defer tearDownTestSettlement(tm)

	// a pending order recorded after a confirmation timeout already carries its signature
	sig := solana.Signature{45}
	order := testOrder(domain.OrderStatusPending, sig.String())
	orderID := order.ID.String()

	tm.store.EXPECT().GetOrderByID(gomock.Any(), orderID).Return(order, nil)
	tm.store.EXPECT().GetOrderBySignature(gomock.Any(), sig.String()).Return(order, nil)
	tm.expectConfirmedStatuses()
	tm.expectOrderPayment(order, sig, tm.splitChanges())
	tm.store.EXPECT().AttachOrderSignature(gomock.Any(), orderID, sig.String()).Return(nil)
	tm.store.EXPECT().FinalizeOrder(gomock.Any(), orderID).Return(1, nil)
	events := tm.expectEvents()

	result, err := newTestVerifier(tm).VerifyPayment(context.Background(), orderID, sig.String())

	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCompleted, result.Status)
	require.Len(t, *events, 1)
	assert.Equal(t, []string{sig.String()}, (*events)[0].Signatures)
}

func TestVerifyPayment_SignatureOfAnotherOrder(t *testing.T) {
	tm := setupTestSettlement(t)
	defer tearDownTestSettlement(tm)

	sig := solana.Signature{46}
	order := testOrder(domain.OrderStatusPending)
	other := testOrder(domain.OrderStatusCompleted, sig.String())

	// no status read, attach or finalize is expected
	tm.store.EXPECT().GetOrderByID(gomock.Any(), order.ID.String()).Return(order, nil)
	tm.store.EXPECT().GetOrderBySignature(gomock.Any(), sig.String()).Return(other, nil)

	_, err := newTestVerifier(tm).VerifyPayment(context.Background(), order.ID.String(), sig.String())

	assert.ErrorIs(t, err, domain.ErrSignatureAlreadyUsed)
	assert.Contains(t, err.Error(), other.ID.String())
	assert.Equal(t, "This transaction was already used for another order.", settlement.UserMessage(err))
}

func TestVerifyPayment_TransactionMustPayTheOrder(t *testing.T) {
	stranger := solana.NewWallet().PublicKey()
	otherMint := solana.NewWallet().PublicKey()

	testCases := []struct {
		name     string
		changes  func(tm *testSettlementMocks) []domain.TokenBalanceChange
		received uint64
	}{
		{
			name: "underpays the recipients",
			changes: func(tm *testSettlementMocks) []domain.TokenBalanceChange {
				return []domain.TokenBalanceChange{
					{Owner: tm.signer, Mint: tm.mint, Pre: 100_000_000, Post: 99_000_000},
					{Owner: tm.payee, Mint: tm.mint, Pre: 0, Post: 800_000},
					{Owner: tm.platform, Mint: tm.mint, Pre: 0, Post: 200_000},
				}
			},
			received: 1_000_000,
		},
		{
			name: "pays someone else",
			changes: func(tm *testSettlementMocks) []domain.TokenBalanceChange {
				return []domain.TokenBalanceChange{
					{Owner: tm.signer, Mint: tm.mint, Pre: 100_000_000, Post: 87_500_000},
					{Owner: stranger, Mint: tm.mint, Pre: 0, Post: 12_500_000},
				}
			},
			received: 0,
		},
		{
			name: "pays in another token",
			changes: func(tm *testSettlementMocks) []domain.TokenBalanceChange {
				return []domain.TokenBalanceChange{
					{Owner: tm.payee, Mint: otherMint, Pre: 0, Post: 10_000_000},
					{Owner: tm.platform, Mint: otherMint, Pre: 0, Post: 2_500_000},
				}
			},
			received: 0,
		},
		{
			name: "moves no tokens",
			changes: func(tm *testSettlementMocks) []domain.TokenBalanceChange {
				return nil
			},
			received: 0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tm := setupTestSettlement(t)
			defer tearDownTestSettlement(tm)

			sig := solana.Signature{47}
			order := testOrder(domain.OrderStatusPending)
			orderID := order.ID.String()

			// the order is neither attached, finalized nor failed
			tm.store.EXPECT().GetOrderByID(gomock.Any(), orderID).Return(order, nil)
			tm.expectUnusedSignature(sig)
			tm.expectConfirmedStatuses()
			tm.expectOrderPayment(order, sig, tc.changes(tm))

			result, err := newTestVerifier(tm).VerifyPayment(context.Background(), orderID, sig.String())

			assert.Nil(t, result)
			var mismatchErr *settlement.PaymentMismatchError
			require.ErrorAs(t, err, &mismatchErr)
			assert.Equal(t, uint64(12_500_000), mismatchErr.Required)
			assert.Equal(t, tc.received, mismatchErr.Received)
			assert.Equal(t, orderID, mismatchErr.OrderID)
			assert.ErrorIs(t, err, domain.ErrPaymentMismatch)
			assert.Equal(t, "The transaction does not pay this order.", settlement.UserMessage(err))
		})
	}
}

func TestVerifyPayment_Rejections(t *testing.T) {
	tm := setupTestSettlement(t)
	defer tearDownTestSettlement(tm)

	verifier := newTestVerifier(tm)

	_, err := verifier.VerifyPayment(context.Background(), uuid.NewString(), "not-a-signature")
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)

	missing := uuid.NewString()
	tm.store.EXPECT().GetOrderByID(gomock.Any(), missing).Return(nil, domain.ErrOrderNotFound)
	_, err = verifier.VerifyPayment(context.Background(), missing, solana.Signature{1}.String())
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	failed := testOrder(domain.OrderStatusFailed)
	tm.store.EXPECT().GetOrderByID(gomock.Any(), failed.ID.String()).Return(failed, nil)
	_, err = verifier.VerifyPayment(context.Background(), failed.ID.String(), solana.Signature{1}.String())
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)
}

func TestReconcileOrder(t *testing.T) {
	sigA, sigB := solana.Signature{51}, solana.Signature{52}
	confirmed := func(sig solana.Signature) *domain.SignatureStatus {
		return &domain.SignatureStatus{Signature: sig, ConfirmationStatus: domain.CommitmentFinalized}
	}

	t.Run("all confirmed finalizes", func(t *testing.T) {
		tm := setupTestSettlement(t)
		defer tearDownTestSettlement(tm)

		order := testOrder(domain.OrderStatusPending, sigA.String(), sigB.String())
		tm.ledger.EXPECT().GetSignatureStatuses(gomock.Any(), []solana.Signature{sigA, sigB}).
			Return([]*domain.SignatureStatus{confirmed(sigA), confirmed(sigB)}, nil)
		tm.store.EXPECT().FinalizeOrder(gomock.Any(), order.ID.String()).Return(1, nil)
		tm.expectEvents()

		action, err := newTestVerifier(tm).ReconcileOrder(context.Background(), order, false)
		require.NoError(t, err)
		assert.Equal(t, settlement.ReconcileActionFinalized, action)
	})

	t.Run("unknown signature stays pending", func(t *testing.T) {
		tm := setupTestSettlement(t)
		defer tearDownTestSettlement(tm)

		order := testOrder(domain.OrderStatusPending, sigA.String(), sigB.String())
		tm.ledger.EXPECT().GetSignatureStatuses(gomock.Any(), gomock.Any()).
			Return([]*domain.SignatureStatus{confirmed(sigA), nil}, nil)

		action, err := newTestVerifier(tm).ReconcileOrder(context.Background(), order, false)
		require.NoError(t, err)
		assert.Equal(t, settlement.ReconcileActionPending, action)
	})

	t.Run("unknown signature past expiry fails the order", func(t *testing.T) {
		tm := setupTestSettlement(t)
		defer tearDownTestSettlement(tm)

		order := testOrder(domain.OrderStatusPending, sigA.String())
		tm.ledger.EXPECT().GetSignatureStatuses(gomock.Any(), gomock.Any()).
			Return([]*domain.SignatureStatus{nil}, nil)
		tm.store.EXPECT().MarkOrderFailed(gomock.Any(), order.ID.String(), gomock.Any()).Return(nil)
		tm.expectEvents()

		action, err := newTestVerifier(tm).ReconcileOrder(context.Background(), order, true)
		require.NoError(t, err)
		assert.Equal(t, settlement.ReconcileActionExpired, action)
	})

	t.Run("failed signature fails the order", func(t *testing.T) {
		tm := setupTestSettlement(t)
		defer tearDownTestSettlement(tm)

		order := testOrder(domain.OrderStatusPending, sigA.String(), sigB.String())
		tm.ledger.EXPECT().GetSignatureStatuses(gomock.Any(), gomock.Any()).
			Return([]*domain.SignatureStatus{nil, {Signature: sigB, Err: "Custom(1)"}}, nil)
		tm.store.EXPECT().MarkOrderFailed(gomock.Any(), order.ID.String(), "Custom(1)").Return(nil)
		events := tm.expectEvents()

		action, err := newTestVerifier(tm).ReconcileOrder(context.Background(), order, false)
		require.NoError(t, err)
		assert.Equal(t, settlement.ReconcileActionFailed, action)
		assert.Equal(t, domain.SettlementEventFailed, (*events)[0].EventType)
	})

	// no MarkOrderFailed, FinalizeOrder or publish is expected for partially settled orders
	t.Run("confirmed and failed signatures hold the order", func(t *testing.T) {
		tm := setupTestSettlement(t)
		defer tearDownTestSettlement(tm)

		order := testOrder(domain.OrderStatusPending, sigA.String(), sigB.String())
		tm.ledger.EXPECT().GetSignatureStatuses(gomock.Any(), gomock.Any()).
			Return([]*domain.SignatureStatus{confirmed(sigA), {Signature: sigB, Err: "Custom(1)"}}, nil)

		action, err := newTestVerifier(tm).ReconcileOrder(context.Background(), order, false)
		require.NoError(t, err)
		assert.Equal(t, settlement.ReconcileActionHeld, action)
	})

	t.Run("confirmed signature past expiry holds the order", func(t *testing.T) {
		tm := setupTestSettlement(t)
		defer tearDownTestSettlement(tm)

		order := testOrder(domain.OrderStatusPending, sigA.String(), sigB.String())
		tm.ledger.EXPECT().GetSignatureStatuses(gomock.Any(), gomock.Any()).
			Return([]*domain.SignatureStatus{confirmed(sigA), nil}, nil)

		action, err := newTestVerifier(tm).ReconcileOrder(context.Background(), order, true)
		require.NoError(t, err)
		assert.Equal(t, settlement.ReconcileActionHeld, action)
	})

	t.Run("completed order gets missing grants", func(t *testing.T) {
		tm := setupTestSettlement(t)
		defer tearDownTestSettlement(tm)

		order := testOrder(domain.OrderStatusCompleted, sigA.String())
		tm.store.EXPECT().FinalizeOrder(gomock.Any(), order.ID.String()).Return(2, nil)

		action, err := newTestVerifier(tm).ReconcileOrder(context.Background(), order, false)
		require.NoError(t, err)
		assert.Equal(t, settlement.ReconcileActionRepaired, action)
	})
}
