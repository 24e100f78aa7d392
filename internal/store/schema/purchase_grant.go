package schema

import (
	"time"

	"github.com/google/uuid"
)

// PurchaseGrant represents the purchase_grants table
// Entitles a buyer to an item; unique per (buyer_id, item_id, order_id)
type PurchaseGrant struct {
	ID           uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	BuyerID      string    `gorm:"column:buyer_id;not null;type:text"`
	ItemID       string    `gorm:"column:item_id;not null;type:text"`
	OrderID      uuid.UUID `gorm:"column:order_id;not null;type:uuid"`
	LicenseType  string    `gorm:"column:license_type;not null;type:text"`
	CurrencyCode string    `gorm:"column:currency_code;not null;type:text"`
	CreatedAt    time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the PurchaseGrant model
func (PurchaseGrant) TableName() string {
	return "purchase_grants"
}
