package domain

import (
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// Network represents the ledger cluster a settlement runs against
type Network string

const (
	NetworkMainnetBeta Network = "mainnet-beta"
	NetworkDevnet      Network = "devnet"
	NetworkTestnet     Network = "testnet"
)

// IsValidNetwork checks if a network is known
func IsValidNetwork(network Network) bool {
	return network == NetworkMainnetBeta ||
		network == NetworkDevnet ||
		network == NetworkTestnet
}

// DefaultRPCURL returns the public RPC endpoint of the network
func (n Network) DefaultRPCURL() string {
	switch n {
	case NetworkMainnetBeta:
		return "https://api.mainnet-beta.solana.com"
	case NetworkTestnet:
		return "https://api.testnet.solana.com"
	default:
		return "https://api.devnet.solana.com"
	}
}

// DefaultUSDCMint returns the USDC mint of the network.
// Testnet has no canonical USDC and shares the devnet faucet mint.
func (n Network) DefaultUSDCMint() string {
	if n == NetworkMainnetBeta {
		return USDC_MINT_MAINNET
	}
	return USDC_MINT_DEVNET
}

// ExplorerTxURL returns the block explorer link for a transaction signature
func (n Network) ExplorerTxURL(signature string) string {
	if n == NetworkMainnetBeta || n == "" {
		return fmt.Sprintf("%s/tx/%s", EXPLORER_BASE_URL, signature)
	}
	return fmt.Sprintf("%s/tx/%s?cluster=%s", EXPLORER_BASE_URL, signature, n)
}

// Commitment is the ledger confirmation level
type Commitment string

const (
	CommitmentProcessed Commitment = "processed"
	CommitmentConfirmed Commitment = "confirmed"
	CommitmentFinalized Commitment = "finalized"
)

// SplitRatio is the payee/platform division of a payment expressed in basis points
type SplitRatio struct {
	PayeeBasisPoints    uint16 `json:"payee_bps"`
	PlatformBasisPoints uint16 `json:"platform_bps"`
}

// DefaultSplitRatio is the producer 80% / platform 20% split
var DefaultSplitRatio = SplitRatio{PayeeBasisPoints: 8000, PlatformBasisPoints: 2000}

// Validate checks that the ratio sums to 100%
func (r SplitRatio) Validate() error {
	if uint32(r.PayeeBasisPoints)+uint32(r.PlatformBasisPoints) != BASIS_POINTS_DENOMINATOR {
		return fmt.Errorf("%w: payee %d bps + platform %d bps != %d",
			ErrInvalidSplitRatio, r.PayeeBasisPoints, r.PlatformBasisPoints, BASIS_POINTS_DENOMINATOR)
	}
	return nil
}

// String returns the ratio as "payee/platform" percentages
func (r SplitRatio) String() string {
	return fmt.Sprintf("%s/%s",
		decimal.New(int64(r.PayeeBasisPoints), -2).String(),
		decimal.New(int64(r.PlatformBasisPoints), -2).String())
}

// SplitRole identifies the recipient of a split entry
type SplitRole string

const (
	SplitRolePayee    SplitRole = "payee"
	SplitRolePlatform SplitRole = "platform"
)

// PaymentIntent is the input to a settlement
type PaymentIntent struct {
	// Amount is the price in whole currency units (e.g. 33.33 USDC)
	Amount decimal.Decimal
	// PayeeAddress is the producer's ledger address, nil when the item has none on file
	PayeeAddress *string
	// ItemIDs are the catalogue items paid for by this intent
	ItemIDs []string
	// BuyerID is the off-chain account of the buyer
	BuyerID string
	// LicenseType is granted on every item, DEFAULT_LICENSE_TYPE when empty
	LicenseType string
	// Title is an optional human readable label recorded on the order items
	Title string
}

// License returns the license type of the intent, defaulting to DEFAULT_LICENSE_TYPE
func (p PaymentIntent) License() string {
	if p.LicenseType == "" {
		return DEFAULT_LICENSE_TYPE
	}
	return p.LicenseType
}

// FallbackReasonKind tags why a settlement bypassed the payee split
type FallbackReasonKind string

const (
	FallbackReasonMissingPayee FallbackReasonKind = "missing_payee_address"
)

// FallbackReason records why the full amount was routed to the platform
type FallbackReason struct {
	Kind    FallbackReasonKind `json:"kind"`
	ItemIDs []string           `json:"item_ids"`
}

// OrderStatus represents the status of an order ledger entry
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusFailed    OrderStatus = "failed"
)

// SettlementState is the lifecycle state of a single settlement attempt
type SettlementState string

const (
	SettlementStateIdle              SettlementState = "idle"
	SettlementStateAwaitingSignature SettlementState = "awaiting_signature"
	SettlementStateSubmitted         SettlementState = "submitted"
	SettlementStateConfirming        SettlementState = "confirming"
	SettlementStateSettled           SettlementState = "settled"
	SettlementStateFailed            SettlementState = "failed"
)

// IsTerminal reports whether no further transitions are expected
func (s SettlementState) IsTerminal() bool {
	return s == SettlementStateSettled || s == SettlementStateFailed
}

// SendOptions controls transaction submission
type SendOptions struct {
	MaxRetries          uint
	SkipPreflight       bool
	PreflightCommitment Commitment
}

// DefaultSendOptions are the submission options used for settlements
var DefaultSendOptions = SendOptions{
	MaxRetries:          5,
	SkipPreflight:       false,
	PreflightCommitment: CommitmentConfirmed,
}

// TokenAccount is a decoded token account
type TokenAccount struct {
	Address solana.PublicKey
	Mint    solana.PublicKey
	Owner   solana.PublicKey
	Amount  uint64
}

// SignatureStatus is the ledger's view of a submitted transaction
type SignatureStatus struct {
	Signature          solana.Signature
	Slot               uint64
	ConfirmationStatus Commitment
	// Err is the ledger's execution error payload, empty when the transaction succeeded
	Err string
}

// Failed reports whether the transaction executed with an error
func (s *SignatureStatus) Failed() bool {
	return s != nil && s.Err != ""
}

// Confirmed reports whether the transaction reached confirmed or finalized commitment without error
func (s *SignatureStatus) Confirmed() bool {
	if s == nil || s.Failed() {
		return false
	}
	return s.ConfirmationStatus == CommitmentConfirmed || s.ConfirmationStatus == CommitmentFinalized
}

// TokenBalanceChange is one token account balance before and after a confirmed transaction
type TokenBalanceChange struct {
	Owner solana.PublicKey
	Mint  solana.PublicKey
	Pre   uint64
	Post  uint64
}

// Received returns the units credited to the account, zero when its balance did not grow
func (c TokenBalanceChange) Received() uint64 {
	if c.Post <= c.Pre {
		return 0
	}
	return c.Post - c.Pre
}

// SimulationResult is the outcome of a dry run
type SimulationResult struct {
	Err           string
	Logs          []string
	UnitsConsumed uint64
}

// SettlementEventType represents the type of settlement event published to the bus
type SettlementEventType string

const (
	SettlementEventCompleted           SettlementEventType = "completed"
	SettlementEventFallback            SettlementEventType = "fallback"
	SettlementEventPendingVerification SettlementEventType = "pending_verification"
	SettlementEventFailed              SettlementEventType = "failed"
)

// SettlementEvent is the notification published after a settlement outcome is known
type SettlementEvent struct {
	EventID     string              `json:"event_id"`
	EventType   SettlementEventType `json:"event_type"`
	Network     Network             `json:"network"`
	OrderID     string              `json:"order_id,omitempty"`
	BuyerID     string              `json:"buyer_id"`
	ItemIDs     []string            `json:"item_ids"`
	Signatures  []string            `json:"signatures"`
	TotalAmount string              `json:"total_amount"` // minor units
	Fallback    *FallbackReason     `json:"fallback,omitempty"`
	Timestamp   time.Time           `json:"timestamp"`
}
