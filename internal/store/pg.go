package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/feral-file/ff-settlement/internal/domain"
	"github.com/feral-file/ff-settlement/internal/logger"
	"github.com/feral-file/ff-settlement/internal/store/schema"
)

type pgStore struct {
	db *gorm.DB
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// ConfigureConnectionPool configures the connection pool settings for a GORM database connection.
// If any of the pool settings are 0 or empty, reasonable defaults are used:
//   - MaxOpenConns: 20 (if 0)
//   - MaxIdleConns: 5 (if 0)
//   - ConnMaxLifetime: 5 minutes (if 0)
//   - ConnMaxIdleTime: 10 minutes (if 0)
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime =
		NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime)

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// NormalizeConnectionPoolSettings applies defaults and clamps pool settings into safe values.
//
// Notes:
//   - database/sql treats MaxOpenConns=0 as "unlimited"
//   - database/sql treats MaxIdleConns=0 as "no idle connections"
func NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (int, int, time.Duration, time.Duration) {
	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}

	// Ensure MaxIdleConns doesn't exceed MaxOpenConns
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	return maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime
}

// parseOrderID parses an order ID, mapping malformed IDs to domain.ErrOrderNotFound
func parseOrderID(orderID string) (uuid.UUID, error) {
	id, err := uuid.Parse(orderID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
	}
	return id, nil
}

// CreateOrder writes an order, its items and the requested purchase grants in one transaction
func (s *pgStore) CreateOrder(ctx context.Context, input CreateOrderInput) (*schema.Order, error) {
	if len(input.Items) == 0 {
		return nil, errors.New("order must contain at least one item")
	}
	if input.BuyerID == "" {
		return nil, errors.New("order must have a buyer")
	}

	signatures := input.Signatures
	if signatures == nil {
		signatures = []string{}
	}

	order := schema.Order{
		ID:                    uuid.New(),
		BuyerID:               input.BuyerID,
		Network:               input.Network,
		TotalPrice:            input.TotalPrice,
		CurrencyCode:          domain.CURRENCY_CODE_USDC,
		PaymentMethod:         domain.PAYMENT_METHOD_SOLANA_USDC,
		Status:                input.Status,
		TransactionSignatures: datatypes.JSONSlice[string](signatures),
		PayeeBasisPoints:      int(input.Ratio.PayeeBasisPoints),
		PlatformBasisPoints:   int(input.Ratio.PlatformBasisPoints),
	}

	if input.Fallback != nil {
		details, err := json.Marshal(input.Fallback)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal fallback reason: %w", err)
		}
		kind := string(input.Fallback.Kind)
		order.FallbackKind = &kind
		order.FallbackDetails = datatypes.JSON(details)
	}

	if input.Status == domain.OrderStatusCompleted {
		now := time.Now().UTC()
		order.CompletedAt = &now
	}

	items := make([]schema.OrderItem, 0, len(input.Items))
	for _, item := range input.Items {
		if item.AmountMinor > math.MaxInt64 {
			return nil, fmt.Errorf("item %s amount %d overflows", item.ItemID, item.AmountMinor)
		}
		licenseType := item.LicenseType
		if licenseType == "" {
			licenseType = domain.DEFAULT_LICENSE_TYPE
		}
		items = append(items, schema.OrderItem{
			OrderID:      order.ID,
			ItemID:       item.ItemID,
			PayeeAddress: item.PayeeAddress,
			AmountMinor:  int64(item.AmountMinor),
			Price:        item.Price,
			Title:        item.Title,
			LicenseType:  licenseType,
		})
	}

	var grants []schema.PurchaseGrant
	for _, item := range items {
		if slices.Contains(input.GrantItemIDs, item.ItemID) {
			grants = append(grants, buildPurchaseGrant(order, item))
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&order).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		if err := tx.Create(&items).Error; err != nil {
			return fmt.Errorf("failed to create order items: %w", err)
		}

		if len(grants) > 0 {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&grants).Error; err != nil {
				return fmt.Errorf("failed to create purchase grants: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &order, nil
}

// buildPurchaseGrant creates the grant entitling the order's buyer to an item
func buildPurchaseGrant(order schema.Order, item schema.OrderItem) schema.PurchaseGrant {
	return schema.PurchaseGrant{
		BuyerID:      order.BuyerID,
		ItemID:       item.ItemID,
		OrderID:      order.ID,
		LicenseType:  item.LicenseType,
		CurrencyCode: order.CurrencyCode,
	}
}

// GetOrderByID retrieves an order by ID
func (s *pgStore) GetOrderByID(ctx context.Context, orderID string) (*schema.Order, error) {
	id, err := parseOrderID(orderID)
	if err != nil {
		return nil, err
	}

	var order schema.Order
	err = s.db.WithContext(ctx).Where("id = ?", id).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	return &order, nil
}

// GetOrderBySignature retrieves the oldest order carrying a transaction signature
func (s *pgStore) GetOrderBySignature(ctx context.Context, signature string) (*schema.Order, error) {
	filter, err := json.Marshal([]string{signature})
	if err != nil {
		return nil, fmt.Errorf("failed to encode signature filter: %w", err)
	}

	var order schema.Order
	err = s.db.WithContext(ctx).
		Where("transaction_signatures @> ?::jsonb", string(filter)).
		Order("created_at ASC").
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no order carries %s", domain.ErrOrderNotFound, signature)
		}
		return nil, fmt.Errorf("failed to get order by signature: %w", err)
	}

	return &order, nil
}

// GetOrderItems retrieves the items of an order
func (s *pgStore) GetOrderItems(ctx context.Context, orderID string) ([]schema.OrderItem, error) {
	id, err := parseOrderID(orderID)
	if err != nil {
		return nil, err
	}

	var items []schema.OrderItem
	if err := s.db.WithContext(ctx).Where("order_id = ?", id).Order("id ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}

	return items, nil
}

// GetPurchaseGrantsByOrderID retrieves the grants written for an order
func (s *pgStore) GetPurchaseGrantsByOrderID(ctx context.Context, orderID string) ([]schema.PurchaseGrant, error) {
	id, err := parseOrderID(orderID)
	if err != nil {
		return nil, err
	}

	var grants []schema.PurchaseGrant
	if err := s.db.WithContext(ctx).Where("order_id = ?", id).Order("id ASC").Find(&grants).Error; err != nil {
		return nil, fmt.Errorf("failed to get purchase grants: %w", err)
	}

	return grants, nil
}

// lockOrder loads an order with a row lock inside a transaction
func lockOrder(tx *gorm.DB, id uuid.UUID) (*schema.Order, error) {
	var order schema.Order
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
		}
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}
	return &order, nil
}

// AttachOrderSignature appends a transaction signature to an order if it is not present yet
func (s *pgStore) AttachOrderSignature(ctx context.Context, orderID string, signature string) error {
	id, err := parseOrderID(orderID)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := lockOrder(tx, id)
		if err != nil {
			return err
		}

		if slices.Contains(order.TransactionSignatures, signature) {
			return nil
		}

		signatures := append(slices.Clone([]string(order.TransactionSignatures)), signature)
		err = tx.Model(&schema.Order{}).Where("id = ?", id).Updates(map[string]interface{}{
			"transaction_signatures": datatypes.JSONSlice[string](signatures),
			"updated_at":             time.Now().UTC(),
		}).Error
		if err != nil {
			return fmt.Errorf("failed to attach signature: %w", err)
		}

		return nil
	})
}

// FinalizeOrder marks an order completed and writes any missing purchase grants
func (s *pgStore) FinalizeOrder(ctx context.Context, orderID string) (int, error) {
	id, err := parseOrderID(orderID)
	if err != nil {
		return 0, err
	}

	var created int
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := lockOrder(tx, id)
		if err != nil {
			return err
		}

		switch order.Status {
		case domain.OrderStatusFailed:
			return fmt.Errorf("%w: order %s has failed on-chain", domain.ErrInvalidStateTransition, orderID)
		case domain.OrderStatusPending:
			now := time.Now().UTC()
			err := tx.Model(&schema.Order{}).Where("id = ?", id).Updates(map[string]interface{}{
				"status":       domain.OrderStatusCompleted,
				"completed_at": now,
				"updated_at":   now,
			}).Error
			if err != nil {
				return fmt.Errorf("failed to complete order: %w", err)
			}
		}

		var items []schema.OrderItem
		if err := tx.Where("order_id = ?", id).Find(&items).Error; err != nil {
			return fmt.Errorf("failed to get order items: %w", err)
		}
		if len(items) == 0 {
			return nil
		}

		grants := make([]schema.PurchaseGrant, 0, len(items))
		for _, item := range items {
			grants = append(grants, buildPurchaseGrant(*order, item))
		}

		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&grants)
		if result.Error != nil {
			return fmt.Errorf("failed to create purchase grants: %w", result.Error)
		}
		created = int(result.RowsAffected)

		return nil
	})
	if err != nil {
		return 0, err
	}

	if created > 0 {
		logger.InfoCtx(ctx, "Recovered purchase grants", zap.String("order_id", orderID), zap.Int("count", created))
	}

	return created, nil
}

// MarkOrderFailed marks a pending order as failed
func (s *pgStore) MarkOrderFailed(ctx context.Context, orderID string, reason string) error {
	id, err := parseOrderID(orderID)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := lockOrder(tx, id)
		if err != nil {
			return err
		}

		if order.Status != domain.OrderStatusPending {
			return fmt.Errorf("%w: order %s is %s", domain.ErrInvalidStateTransition, orderID, order.Status)
		}

		err = tx.Model(&schema.Order{}).Where("id = ?", id).Updates(map[string]interface{}{
			"status":         domain.OrderStatusFailed,
			"failure_reason": reason,
			"updated_at":     time.Now().UTC(),
		}).Error
		if err != nil {
			return fmt.Errorf("failed to mark order failed: %w", err)
		}

		return nil
	})
}

// GetStaleOrders retrieves orders in a status created before the given time, oldest first
func (s *pgStore) GetStaleOrders(ctx context.Context, status domain.OrderStatus, createdBefore time.Time, limit int) ([]schema.Order, error) {
	var orders []schema.Order
	err := s.db.WithContext(ctx).
		Where("status = ? AND payment_method = ? AND created_at < ?", status, domain.PAYMENT_METHOD_SOLANA_USDC, createdBefore).
		Order("created_at ASC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get stale orders: %w", err)
	}

	return orders, nil
}

// GetCompletedOrdersMissingGrants retrieves completed orders with at least one item lacking a grant
func (s *pgStore) GetCompletedOrdersMissingGrants(ctx context.Context, limit int) ([]schema.Order, error) {
	var orders []schema.Order
	err := s.db.WithContext(ctx).
		Where("status = ?", domain.OrderStatusCompleted).
		Where(`EXISTS (
			SELECT 1 FROM order_items oi
			WHERE oi.order_id = orders.id
			AND NOT EXISTS (
				SELECT 1 FROM purchase_grants pg
				WHERE pg.order_id = orders.id
				AND pg.item_id = oi.item_id
				AND pg.buyer_id = orders.buyer_id
			)
		)`).
		Order("created_at ASC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get orders missing grants: %w", err)
	}

	return orders, nil
}
