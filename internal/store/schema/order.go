package schema

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/feral-file/ff-settlement/internal/domain"
)

// Order represents the orders table
// One row per settlement (single or batch), written after the ledger outcome is known
type Order struct {
	// ID is the order identifier
	ID uuid.UUID `gorm:"column:id;primaryKey;type:uuid;default:gen_random_uuid()"`

	// BuyerID is the off-chain account of the buyer
	BuyerID string `gorm:"column:buyer_id;not null;type:text"`

	// Network is the ledger cluster the payment was settled on
	Network domain.Network `gorm:"column:network;not null;type:text"`

	// TotalPrice is the total paid in whole currency units
	TotalPrice decimal.Decimal `gorm:"column:total_price;not null;type:numeric(20,6)"`

	// CurrencyCode is the settlement currency (USDC)
	CurrencyCode string `gorm:"column:currency_code;not null;type:text;default:USDC"`

	// PaymentMethod identifies the payment rail (solana_usdc)
	PaymentMethod string `gorm:"column:payment_method;not null;type:text"`

	// Status is the order status: pending, completed, failed
	Status domain.OrderStatus `gorm:"column:status;not null;type:order_status"`

	// TransactionSignatures are the ledger signatures of every transfer that settled this order
	TransactionSignatures datatypes.JSONSlice[string] `gorm:"column:transaction_signatures;not null;type:jsonb;default:'[]'"`

	// PayeeBasisPoints and PlatformBasisPoints are the split ratio in effect at settlement time
	PayeeBasisPoints    int `gorm:"column:payee_bps;not null"`
	PlatformBasisPoints int `gorm:"column:platform_bps;not null"`

	// FallbackKind is set when the full amount was routed to the platform
	FallbackKind *string `gorm:"column:fallback_kind;type:text"`

	// FallbackDetails holds the serialized fallback reason (kind and item IDs)
	FallbackDetails datatypes.JSON `gorm:"column:fallback_details;type:jsonb"`

	// FailureReason holds the ledger error payload for failed orders
	FailureReason *string `gorm:"column:failure_reason;type:text"`

	// CompletedAt is when the order reached completed status
	CompletedAt *time.Time `gorm:"column:completed_at;type:timestamptz"`

	// Timestamps
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the Order model
func (Order) TableName() string {
	return "orders"
}
