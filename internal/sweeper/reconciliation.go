package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/feral-file/ff-settlement/internal/adapter"
	"github.com/feral-file/ff-settlement/internal/domain"
	"github.com/feral-file/ff-settlement/internal/logger"
	"github.com/feral-file/ff-settlement/internal/metrics"
	"github.com/feral-file/ff-settlement/internal/settlement"
	"github.com/feral-file/ff-settlement/internal/store"
	"github.com/feral-file/ff-settlement/internal/store/schema"
)

const (
	SWEEP_CYCLE_INTERVAL = time.Minute // Time to sleep between sweep cycles
)

// OrderReconciler settles the ledger view of a recorded order
//
//go:generate mockgen -source=reconciliation.go -destination=../mocks/reconciler.go -package=mocks -mock_names=OrderReconciler=MockOrderReconciler
type OrderReconciler interface {
	ReconcileOrder(ctx context.Context, order *schema.Order, expired bool) (settlement.ReconcileAction, error)
}

// ReconciliationSweeperConfig holds configuration for the reconciliation sweeper
type ReconciliationSweeperConfig struct {
	BatchSize      int           // Orders to load per status per cycle
	WorkerPoolSize int           // Concurrent reconciliations
	StaleAfter     time.Duration // Only reconcile pending orders older than this
	ExpireAfter    time.Duration // Pending orders older than this are failed when still unconfirmed
	Interval       time.Duration // Sleep between cycles, SWEEP_CYCLE_INTERVAL when zero
}

// reconciliationSweeper implements the Sweeper interface for stuck order reconciliation
type reconciliationSweeper struct {
	config     *ReconciliationSweeperConfig
	store      store.Store
	reconciler OrderReconciler
	pool       pond.Pool
	clock      adapter.Clock
	running    atomic.Bool
	stopChan   chan struct{}
	stoppedCh  chan struct{}
}

// NewReconciliationSweeper creates a new reconciliation sweeper
func NewReconciliationSweeper(
	config *ReconciliationSweeperConfig,
	st store.Store,
	reconciler OrderReconciler,
	clock adapter.Clock,
) Sweeper {
	if config.Interval <= 0 {
		config.Interval = SWEEP_CYCLE_INTERVAL
	}
	return &reconciliationSweeper{
		config:     config,
		store:      st,
		reconciler: reconciler,
		clock:      clock,
		stopChan:   make(chan struct{}),
		stoppedCh:  make(chan struct{}),
	}
}

// Name returns the sweeper's name
func (s *reconciliationSweeper) Name() string {
	return "reconciliation-sweeper"
}

// Start begins the sweeper's main loop
func (s *reconciliationSweeper) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("sweeper already running")
	}
	defer func() {
		s.running.Store(false)
		close(s.stoppedCh)
	}()

	logger.InfoCtx(ctx, "Starting reconciliation sweeper",
		zap.Int("batch_size", s.config.BatchSize),
		zap.Int("worker_pool_size", s.config.WorkerPoolSize),
		zap.Duration("stale_after", s.config.StaleAfter),
		zap.Duration("expire_after", s.config.ExpireAfter),
	)

	s.pool = s.newPool(ctx)

	for {
		select {
		case <-ctx.Done():
			logger.InfoCtx(ctx, "Reconciliation sweeper stopping due to context cancellation", zap.Error(ctx.Err()))
			s.cleanup()
			return nil
		case <-s.stopChan:
			logger.InfoCtx(ctx, "Reconciliation sweeper stop requested")
			s.cleanup()
			return nil
		default:
			if err := s.runSweepCycle(ctx); err != nil {
				if !errors.Is(err, context.Canceled) {
					logger.ErrorCtx(ctx, err)
				}
				s.sleep(ctx, s.config.Interval)
			}
		}
	}
}

func (s *reconciliationSweeper) newPool(ctx context.Context) pond.Pool {
	return pond.NewPool(
		s.config.WorkerPoolSize,
		pond.WithQueueSize(s.config.BatchSize*2),
		pond.WithContext(ctx),
	)
}

// cleanup stops the worker pool and waits for tasks to complete
func (s *reconciliationSweeper) cleanup() {
	if s.pool != nil {
		s.pool.StopAndWait()
	}
}

// Stop gracefully stops the sweeper with timeout support
func (s *reconciliationSweeper) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	logger.InfoCtx(ctx, "Stopping reconciliation sweeper")

	close(s.stopChan)

	select {
	case <-s.stoppedCh:
		logger.InfoCtx(ctx, "Reconciliation sweeper stopped gracefully")
		return nil
	case <-ctx.Done():
		logger.WarnCtx(ctx, "Reconciliation sweeper stop interrupted by context timeout")
		return ctx.Err()
	}
}

// runSweepCycle reconciles one batch of stale pending orders and completed orders missing grants
func (s *reconciliationSweeper) runSweepCycle(ctx context.Context) error {
	startTime := s.clock.Now()

	var pending, ungranted []schema.Order
	err := s.withRetry(ctx, "load stale orders", func() error {
		var err error
		pending, err = s.store.GetStaleOrders(ctx, domain.OrderStatusPending, startTime.Add(-s.config.StaleAfter), s.config.BatchSize)
		if err != nil {
			return fmt.Errorf("failed to get stale orders: %w", err)
		}
		ungranted, err = s.store.GetCompletedOrdersMissingGrants(ctx, s.config.BatchSize)
		if err != nil {
			return fmt.Errorf("failed to get orders missing grants: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	orders := append(pending, ungranted...)
	if len(orders) == 0 {
		logger.DebugCtx(ctx, "No orders need reconciliation")
		if !s.sleep(ctx, s.config.Interval) {
			return ctx.Err()
		}
		return nil
	}

	logger.InfoCtx(ctx, "Found orders to reconcile",
		zap.Int("pending", len(pending)),
		zap.Int("missing_grants", len(ungranted)),
	)

	var finalized, failed, held, errored atomic.Int32
	for i := range orders {
		order := &orders[i]
		expired := s.config.ExpireAfter > 0 && startTime.Sub(order.CreatedAt) >= s.config.ExpireAfter
		s.pool.Submit(func() {
			action, err := s.reconciler.ReconcileOrder(ctx, order, expired)
			if err != nil {
				errored.Add(1)
				logger.ErrorCtx(ctx, fmt.Errorf("failed to reconcile order: %w", err),
					zap.String("order_id", order.ID.String()),
				)
				return
			}
			metrics.RecordReconciliation(string(action))
			switch action {
			case settlement.ReconcileActionFinalized, settlement.ReconcileActionRepaired:
				finalized.Add(1)
			case settlement.ReconcileActionFailed, settlement.ReconcileActionExpired:
				failed.Add(1)
			case settlement.ReconcileActionHeld:
				held.Add(1)
			}
		})
	}

	s.pool.StopAndWait()
	s.pool = s.newPool(ctx)

	logger.InfoCtx(ctx, "Sweep cycle completed",
		zap.Duration("duration", s.clock.Since(startTime)),
		zap.Int("total_checked", len(orders)),
		zap.Int32("finalized", finalized.Load()),
		zap.Int32("failed", failed.Load()),
		zap.Int32("held", held.Load()),
		zap.Int32("errors", errored.Load()),
	)

	if !s.sleep(ctx, s.config.Interval) {
		return ctx.Err()
	}
	return nil
}

// sleep sleeps for the given duration but can be interrupted by context cancellation or stop.
// Returns true if the sleep completed.
func (s *reconciliationSweeper) sleep(ctx context.Context, duration time.Duration) bool {
	select {
	case <-s.clock.After(duration):
		return true
	case <-ctx.Done():
		return false
	case <-s.stopChan:
		return false
	}
}

// withRetry runs a store read with exponential backoff
func (s *reconciliationSweeper) withRetry(ctx context.Context, what string, operation func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	var attemptCount int
	notifyOnError := func(err error, duration time.Duration) {
		attemptCount++
		logger.WarnCtx(ctx, "Store read failed, retrying",
			zap.String("operation", what),
			zap.Error(err),
			zap.Int("attempt", attemptCount),
			zap.Duration("next_retry_in", duration),
		)
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notifyOnError); err != nil {
		return fmt.Errorf("failed to %s after %d attempts: %w", what, attemptCount+1, err)
	}
	return nil
}
