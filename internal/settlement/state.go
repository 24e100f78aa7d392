package settlement

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/feral-file/ff-settlement/internal/domain"
	"github.com/feral-file/ff-settlement/internal/logger"
)

// StateStore persists settlement states so a caller can observe progress
type StateStore interface {
	GetSettlementState(ctx context.Context, key string) (domain.SettlementState, error)
	SetSettlementState(ctx context.Context, key string, state domain.SettlementState) error
}

var settlementTransitions = map[domain.SettlementState][]domain.SettlementState{
	domain.SettlementStateIdle:              {domain.SettlementStateAwaitingSignature, domain.SettlementStateFailed},
	domain.SettlementStateAwaitingSignature: {domain.SettlementStateSubmitted, domain.SettlementStateFailed},
	domain.SettlementStateSubmitted:         {domain.SettlementStateConfirming, domain.SettlementStateFailed},
	domain.SettlementStateConfirming:        {domain.SettlementStateSettled, domain.SettlementStateFailed},
}

// CanTransition reports whether a settlement may move from one state to another
func CanTransition(from, to domain.SettlementState) bool {
	return slices.Contains(settlementTransitions[from], to)
}

// StateMachine tracks one settlement attempt
type StateMachine struct {
	mu    sync.Mutex
	key   string
	state domain.SettlementState
	store StateStore
}

// NewStateMachine creates an idle state machine persisted under key.
// A nil store keeps the state in memory only.
func NewStateMachine(key string, store StateStore) *StateMachine {
	return &StateMachine{
		key:   key,
		state: domain.SettlementStateIdle,
		store: store,
	}
}

// Key returns the attempt key
func (m *StateMachine) Key() string {
	return m.key
}

// State returns the current state
func (m *StateMachine) State() domain.SettlementState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Transition moves to the next state. Persistence failures are logged and do not fail the settlement.
func (m *StateMachine) Transition(ctx context.Context, to domain.SettlementState) error {
	m.mu.Lock()
	from := m.state
	if !CanTransition(from, to) {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidStateTransition, from, to)
	}
	m.state = to
	m.mu.Unlock()

	if m.store == nil {
		return nil
	}

	if err := m.store.SetSettlementState(ctx, m.key, to); err != nil {
		logger.WarnCtx(ctx, "Failed to persist settlement state",
			zap.String("key", m.key),
			zap.String("state", string(to)),
			zap.Error(err),
		)
	}

	return nil
}

// Fail moves to the failed state unless the attempt already ended
func (m *StateMachine) Fail(ctx context.Context) {
	if m.State().IsTerminal() {
		return
	}
	if err := m.Transition(ctx, domain.SettlementStateFailed); err != nil {
		logger.WarnCtx(ctx, "Failed to mark settlement attempt failed", zap.String("key", m.key), zap.Error(err))
	}
}
