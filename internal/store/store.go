package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/feral-file/ff-settlement/internal/domain"
	"github.com/feral-file/ff-settlement/internal/store/schema"
)

// CreateOrderItemInput represents one purchased item of an order
type CreateOrderItemInput struct {
	ItemID       string
	PayeeAddress *string
	AmountMinor  uint64
	Price        decimal.Decimal
	Title        *string
	LicenseType  string
}

// CreateOrderInput represents the data needed to record a settlement in the order ledger
type CreateOrderInput struct {
	BuyerID    string
	Network    domain.Network
	TotalPrice decimal.Decimal
	Status     domain.OrderStatus
	Signatures []string
	Ratio      domain.SplitRatio
	Fallback   *domain.FallbackReason
	Items      []CreateOrderItemInput
	// GrantItemIDs are the items whose purchase grants are written together with the order.
	// Pending orders grant only what is already settled; the rest is granted on finalization.
	GrantItemIDs []string
}

// Store defines the interface for the order ledger
//
//go:generate mockgen -source=store.go -destination=../mocks/store.go -package=mocks -mock_names=Store=MockStore
type Store interface {
	// CreateOrder writes an order, its items and the requested purchase grants in one transaction
	CreateOrder(ctx context.Context, input CreateOrderInput) (*schema.Order, error)
	// GetOrderByID retrieves an order by ID, returns domain.ErrOrderNotFound when absent
	GetOrderByID(ctx context.Context, orderID string) (*schema.Order, error)
	// GetOrderBySignature retrieves the order carrying a transaction signature, returns domain.ErrOrderNotFound when none does
	GetOrderBySignature(ctx context.Context, signature string) (*schema.Order, error)
	// GetOrderItems retrieves the items of an order
	GetOrderItems(ctx context.Context, orderID string) ([]schema.OrderItem, error)
	// GetPurchaseGrantsByOrderID retrieves the grants written for an order
	GetPurchaseGrantsByOrderID(ctx context.Context, orderID string) ([]schema.PurchaseGrant, error)
	// AttachOrderSignature appends a transaction signature to an order if it is not present yet
	AttachOrderSignature(ctx context.Context, orderID string, signature string) error
	// FinalizeOrder marks an order completed and writes any missing purchase grants.
	// It is idempotent and returns the number of grants created.
	FinalizeOrder(ctx context.Context, orderID string) (int, error)
	// MarkOrderFailed marks a pending order as failed with the ledger error payload
	MarkOrderFailed(ctx context.Context, orderID string, reason string) error
	// GetStaleOrders retrieves orders in a status created before the given time, oldest first
	GetStaleOrders(ctx context.Context, status domain.OrderStatus, createdBefore time.Time, limit int) ([]schema.Order, error)
	// GetCompletedOrdersMissingGrants retrieves completed orders with at least one item lacking a grant
	GetCompletedOrdersMissingGrants(ctx context.Context, limit int) ([]schema.Order, error)
	// GetSettlementState retrieves a persisted settlement state, idle when unknown
	GetSettlementState(ctx context.Context, key string) (domain.SettlementState, error)
	// SetSettlementState persists a settlement state
	SetSettlementState(ctx context.Context, key string, state domain.SettlementState) error
}
