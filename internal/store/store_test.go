package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/ff-settlement/internal/domain"
)

// =============================================================================
// Test Data Builders
// =============================================================================

func strPtr(s string) *string {
	return &s
}

// buildTestOrder creates a two-item split order input
func buildTestOrder(buyerID string, status domain.OrderStatus) CreateOrderInput {
	payee := "7YttLkHDoNj9wyDur5pM1ejNaAvT9X4eqaYcHQqtj2G5"
	return CreateOrderInput{
		BuyerID:    buyerID,
		Network:    domain.NetworkDevnet,
		TotalPrice: decimal.RequireFromString("33.33"),
		Status:     status,
		Signatures: []string{"5VERv8NMvzbJMEkV8xnrLkEaWRtSz9CosKDYjCJjBRnbJLgp8uirBgmQpjKhoR4tjF3ZpRzrFmBV6UjKdiSZkQUW"},
		Ratio:      domain.DefaultSplitRatio,
		Items: []CreateOrderItemInput{
			{ItemID: "beat-1", PayeeAddress: &payee, AmountMinor: 20000000, Price: decimal.RequireFromString("20")},
			{ItemID: "beat-2", PayeeAddress: &payee, AmountMinor: 13330000, Price: decimal.RequireFromString("13.33"), Title: strPtr("Night Drive")},
		},
		GrantItemIDs: []string{"beat-1", "beat-2"},
	}
}

// =============================================================================
// Test: CreateOrder
// =============================================================================

func testCreateOrder(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("completed order writes items and grants", func(t *testing.T) {
		order, err := store.CreateOrder(ctx, buildTestOrder("buyer-1", domain.OrderStatusCompleted))
		require.NoError(t, err)
		require.NotNil(t, order)
		assert.NotEqual(t, uuid.Nil, order.ID)
		assert.Equal(t, domain.OrderStatusCompleted, order.Status)
		assert.Equal(t, domain.PAYMENT_METHOD_SOLANA_USDC, order.PaymentMethod)
		assert.Equal(t, 8000, order.PayeeBasisPoints)
		assert.Equal(t, 2000, order.PlatformBasisPoints)
		assert.NotNil(t, order.CompletedAt)
		assert.Nil(t, order.FallbackKind)

		items, err := store.GetOrderItems(ctx, order.ID.String())
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, "beat-1", items[0].ItemID)
		assert.Equal(t, int64(20000000), items[0].AmountMinor)
		assert.Equal(t, domain.DEFAULT_LICENSE_TYPE, items[0].LicenseType)
		assert.Equal(t, "Night Drive", *items[1].Title)

		grants, err := store.GetPurchaseGrantsByOrderID(ctx, order.ID.String())
		require.NoError(t, err)
		require.Len(t, grants, 2)
		for _, grant := range grants {
			assert.Equal(t, "buyer-1", grant.BuyerID)
			assert.Equal(t, domain.CURRENCY_CODE_USDC, grant.CurrencyCode)
		}
	})

	t.Run("fallback order records the reason", func(t *testing.T) {
		input := buildTestOrder("buyer-2", domain.OrderStatusCompleted)
		input.Ratio = domain.SplitRatio{PayeeBasisPoints: 0, PlatformBasisPoints: 10000}
		input.Items[0].PayeeAddress = nil
		input.Items[1].PayeeAddress = nil
		input.Fallback = &domain.FallbackReason{
			Kind:    domain.FallbackReasonMissingPayee,
			ItemIDs: []string{"beat-1", "beat-2"},
		}

		order, err := store.CreateOrder(ctx, input)
		require.NoError(t, err)
		require.NotNil(t, order.FallbackKind)
		assert.Equal(t, string(domain.FallbackReasonMissingPayee), *order.FallbackKind)
		assert.JSONEq(t, `{"kind":"missing_payee_address","item_ids":["beat-1","beat-2"]}`, string(order.FallbackDetails))

		stored, err := store.GetOrderByID(ctx, order.ID.String())
		require.NoError(t, err)
		assert.Equal(t, 10000, stored.PlatformBasisPoints)
		assert.Equal(t, []string(input.Signatures), []string(stored.TransactionSignatures))
	})

	t.Run("pending order grants only settled items", func(t *testing.T) {
		input := buildTestOrder("buyer-3", domain.OrderStatusPending)
		input.GrantItemIDs = []string{"beat-1"}

		order, err := store.CreateOrder(ctx, input)
		require.NoError(t, err)
		assert.Nil(t, order.CompletedAt)

		grants, err := store.GetPurchaseGrantsByOrderID(ctx, order.ID.String())
		require.NoError(t, err)
		require.Len(t, grants, 1)
		assert.Equal(t, "beat-1", grants[0].ItemID)
	})

	t.Run("order without items is rejected", func(t *testing.T) {
		input := buildTestOrder("buyer-4", domain.OrderStatusCompleted)
		input.Items = nil

		_, err := store.CreateOrder(ctx, input)
		assert.Error(t, err)
	})
}

// =============================================================================
// Test: GetOrderByID
// =============================================================================

func testGetOrderByID(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("unknown order", func(t *testing.T) {
		_, err := store.GetOrderByID(ctx, uuid.New().String())
		assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	})

	t.Run("malformed id", func(t *testing.T) {
		_, err := store.GetOrderByID(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	})
}

// =============================================================================
// Test: AttachOrderSignature
// =============================================================================

func testAttachOrderSignature(t *testing.T, store Store) {
	ctx := context.Background()

	input := buildTestOrder("buyer-sig", domain.OrderStatusPending)
	input.Signatures = nil
	order, err := store.CreateOrder(ctx, input)
	require.NoError(t, err)
	assert.Empty(t, order.TransactionSignatures)

	require.NoError(t, store.AttachOrderSignature(ctx, order.ID.String(), "sig-1"))
	require.NoError(t, store.AttachOrderSignature(ctx, order.ID.String(), "sig-1"))
	require.NoError(t, store.AttachOrderSignature(ctx, order.ID.String(), "sig-2"))

	stored, err := store.GetOrderByID(ctx, order.ID.String())
	require.NoError(t, err)
	assert.Equal(t, []string{"sig-1", "sig-2"}, []string(stored.TransactionSignatures))
}

// =============================================================================
// Test: GetOrderBySignature
// =============================================================================

func testGetOrderBySignature(t *testing.T, store Store) {
	ctx := context.Background()

	input := buildTestOrder("buyer-lookup", domain.OrderStatusPending)
	input.Signatures = []string{"lookup-sig-1", "lookup-sig-2"}
	order, err := store.CreateOrder(ctx, input)
	require.NoError(t, err)

	t.Run("any carried signature finds the order", func(t *testing.T) {
		found, err := store.GetOrderBySignature(ctx, "lookup-sig-2")
		require.NoError(t, err)
		assert.Equal(t, order.ID, found.ID)
	})

	t.Run("attached signature finds the order", func(t *testing.T) {
		require.NoError(t, store.AttachOrderSignature(ctx, order.ID.String(), "lookup-sig-3"))

		found, err := store.GetOrderBySignature(ctx, "lookup-sig-3")
		require.NoError(t, err)
		assert.Equal(t, order.ID, found.ID)
	})

	t.Run("unknown signature", func(t *testing.T) {
		_, err := store.GetOrderBySignature(ctx, "lookup-sig")
		assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	})
}

// =============================================================================
// Test: FinalizeOrder
// =============================================================================

func testFinalizeOrder(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("pending order is completed and grants are written once", func(t *testing.T) {
		input := buildTestOrder("buyer-fin", domain.OrderStatusPending)
		input.GrantItemIDs = []string{"beat-1"}
		order, err := store.CreateOrder(ctx, input)
		require.NoError(t, err)

		created, err := store.FinalizeOrder(ctx, order.ID.String())
		require.NoError(t, err)
		assert.Equal(t, 1, created)

		stored, err := store.GetOrderByID(ctx, order.ID.String())
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusCompleted, stored.Status)
		assert.NotNil(t, stored.CompletedAt)

		created, err = store.FinalizeOrder(ctx, order.ID.String())
		require.NoError(t, err)
		assert.Equal(t, 0, created)

		grants, err := store.GetPurchaseGrantsByOrderID(ctx, order.ID.String())
		require.NoError(t, err)
		assert.Len(t, grants, 2)
	})

	t.Run("completed order missing grants is repaired", func(t *testing.T) {
		input := buildTestOrder("buyer-repair", domain.OrderStatusCompleted)
		input.GrantItemIDs = nil
		order, err := store.CreateOrder(ctx, input)
		require.NoError(t, err)

		created, err := store.FinalizeOrder(ctx, order.ID.String())
		require.NoError(t, err)
		assert.Equal(t, 2, created)
	})

	t.Run("failed order cannot be finalized", func(t *testing.T) {
		order, err := store.CreateOrder(ctx, buildTestOrder("buyer-failed", domain.OrderStatusPending))
		require.NoError(t, err)
		require.NoError(t, store.MarkOrderFailed(ctx, order.ID.String(), `{"InstructionError":[0,"Custom"]}`))

		_, err = store.FinalizeOrder(ctx, order.ID.String())
		assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)
	})
}

// =============================================================================
// Test: MarkOrderFailed
// =============================================================================

func testMarkOrderFailed(t *testing.T, store Store) {
	ctx := context.Background()

	order, err := store.CreateOrder(ctx, buildTestOrder("buyer-mark", domain.OrderStatusPending))
	require.NoError(t, err)

	require.NoError(t, store.MarkOrderFailed(ctx, order.ID.String(), "custom program error: 0x1"))

	stored, err := store.GetOrderByID(ctx, order.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusFailed, stored.Status)
	require.NotNil(t, stored.FailureReason)
	assert.Equal(t, "custom program error: 0x1", *stored.FailureReason)

	err = store.MarkOrderFailed(ctx, order.ID.String(), "again")
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)

	err = store.MarkOrderFailed(ctx, uuid.New().String(), "missing")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

// =============================================================================
// Test: GetStaleOrders
// =============================================================================

func testGetStaleOrders(t *testing.T, store Store) {
	ctx := context.Background()

	pending, err := store.CreateOrder(ctx, buildTestOrder("buyer-stale", domain.OrderStatusPending))
	require.NoError(t, err)
	_, err = store.CreateOrder(ctx, buildTestOrder("buyer-stale", domain.OrderStatusCompleted))
	require.NoError(t, err)

	orders, err := store.GetStaleOrders(ctx, domain.OrderStatusPending, time.Now().Add(time.Minute), 20)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, pending.ID, orders[0].ID)

	orders, err = store.GetStaleOrders(ctx, domain.OrderStatusPending, time.Now().Add(-time.Hour), 20)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

// =============================================================================
// Test: GetCompletedOrdersMissingGrants
// =============================================================================

func testGetCompletedOrdersMissingGrants(t *testing.T, store Store) {
	ctx := context.Background()

	_, err := store.CreateOrder(ctx, buildTestOrder("buyer-ok", domain.OrderStatusCompleted))
	require.NoError(t, err)

	partial := buildTestOrder("buyer-gap", domain.OrderStatusCompleted)
	partial.GrantItemIDs = []string{"beat-2"}
	gap, err := store.CreateOrder(ctx, partial)
	require.NoError(t, err)

	orders, err := store.GetCompletedOrdersMissingGrants(ctx, 10)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, gap.ID, orders[0].ID)

	_, err = store.FinalizeOrder(ctx, gap.ID.String())
	require.NoError(t, err)

	orders, err = store.GetCompletedOrdersMissingGrants(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

// =============================================================================
// Test: SettlementState
// =============================================================================

func testSettlementState(t *testing.T, store Store) {
	ctx := context.Background()

	state, err := store.GetSettlementState(ctx, "attempt-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SettlementStateIdle, state)

	require.NoError(t, store.SetSettlementState(ctx, "attempt-1", domain.SettlementStateSubmitted))
	require.NoError(t, store.SetSettlementState(ctx, "attempt-1", domain.SettlementStateSettled))

	state, err = store.GetSettlementState(ctx, "attempt-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SettlementStateSettled, state)
}
