package schema

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderItem represents the order_items table
type OrderItem struct {
	// ID is the internal database primary key
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`

	// OrderID is the foreign key to orders table
	OrderID uuid.UUID `gorm:"column:order_id;not null;type:uuid"`

	// ItemID is the catalogue item purchased
	ItemID string `gorm:"column:item_id;not null;type:text"`

	// PayeeAddress is the producer's ledger address, NULL when the item was settled through the fallback path
	PayeeAddress *string `gorm:"column:payee_address;type:text"`

	// AmountMinor is the item price in token minor units
	AmountMinor int64 `gorm:"column:amount_minor;not null"`

	// Price is the item price in whole currency units
	Price decimal.Decimal `gorm:"column:price;not null;type:numeric(20,6)"`

	// Title is an optional display label
	Title *string `gorm:"column:title;type:text"`

	// LicenseType is the license granted with the item
	LicenseType string `gorm:"column:license_type;not null;type:text;default:basic"`

	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the OrderItem model
func (OrderItem) TableName() string {
	return "order_items"
}
