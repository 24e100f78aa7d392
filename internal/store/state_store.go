package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/feral-file/ff-settlement/internal/domain"
	"github.com/feral-file/ff-settlement/internal/store/schema"
)

func settlementStateKey(key string) string {
	return fmt.Sprintf("settlement_state:%s", key)
}

// GetSettlementState retrieves a persisted settlement state
func (s *pgStore) GetSettlementState(ctx context.Context, key string) (domain.SettlementState, error) {
	var kv schema.KeyValueStore
	err := s.db.WithContext(ctx).Where("key = ?", settlementStateKey(key)).First(&kv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.SettlementStateIdle, nil
		}
		return "", fmt.Errorf("failed to get settlement state: %w", err)
	}

	return domain.SettlementState(kv.Value), nil
}

// SetSettlementState persists a settlement state
func (s *pgStore) SetSettlementState(ctx context.Context, key string, state domain.SettlementState) error {
	kv := schema.KeyValueStore{
		Key:   settlementStateKey(key),
		Value: string(state),
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&kv).Error
	if err != nil {
		return fmt.Errorf("failed to set settlement state: %w", err)
	}

	return nil
}
