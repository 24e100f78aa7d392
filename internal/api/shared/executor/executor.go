package executor

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/feral-file/ff-settlement/internal/api/shared/dto"
	apierrors "github.com/feral-file/ff-settlement/internal/api/shared/errors"
	"github.com/feral-file/ff-settlement/internal/domain"
	"github.com/feral-file/ff-settlement/internal/logger"
	"github.com/feral-file/ff-settlement/internal/settlement"
	"github.com/feral-file/ff-settlement/internal/store"
)

// Executor is the interface for the API executor
//
//go:generate mockgen -source=executor.go -destination=../../../mocks/api_executor.go -package=mocks -mock_names=Executor=MockAPIExecutor,PaymentVerifier=MockPaymentVerifier
type Executor interface {
	// GetOrder retrieves an order with its items and grants, nil when absent
	GetOrder(ctx context.Context, orderID string) (*dto.OrderResponse, error)

	// VerifyPayment confirms a submitted payment and completes its order
	VerifyPayment(ctx context.Context, orderID string, signature string) (*dto.VerifyPaymentResponse, error)
}

// PaymentVerifier confirms payments against the ledger
type PaymentVerifier interface {
	VerifyPayment(ctx context.Context, orderID, signature string) (*settlement.VerificationResult, error)
}

type executor struct {
	store    store.Store
	verifier PaymentVerifier
}

func NewExecutor(store store.Store, verifier PaymentVerifier) Executor {
	return &executor{store: store, verifier: verifier}
}

func (e *executor) GetOrder(ctx context.Context, orderID string) (*dto.OrderResponse, error) {
	order, err := e.store.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return nil, nil
		}
		return nil, apierrors.NewDatabaseError(fmt.Sprintf("Failed to get order: %v", err))
	}

	items, err := e.store.GetOrderItems(ctx, orderID)
	if err != nil {
		return nil, apierrors.NewDatabaseError(fmt.Sprintf("Failed to get order items: %v", err))
	}

	grants, err := e.store.GetPurchaseGrantsByOrderID(ctx, orderID)
	if err != nil {
		return nil, apierrors.NewDatabaseError(fmt.Sprintf("Failed to get purchase grants: %v", err))
	}

	return dto.MapOrderToDTO(order, items, grants), nil
}

func (e *executor) VerifyPayment(ctx context.Context, orderID string, signature string) (*dto.VerifyPaymentResponse, error) {
	result, err := e.verifier.VerifyPayment(ctx, orderID, signature)
	if err == nil {
		return &dto.VerifyPaymentResponse{
			OrderID:          result.OrderID,
			Status:           result.Status,
			GrantsCreated:    result.GrantsCreated,
			AlreadyCompleted: result.AlreadyCompleted,
		}, nil
	}

	// an unconfirmed signature leaves the order pending for the sweeper
	var timeoutErr *settlement.ConfirmationTimeoutError
	if errors.As(err, &timeoutErr) {
		return &dto.VerifyPaymentResponse{
			OrderID:     orderID,
			Status:      domain.OrderStatusPending,
			Message:     settlement.UserMessage(err),
			ExplorerURL: timeoutErr.ExplorerURL,
		}, nil
	}

	switch {
	case errors.Is(err, domain.ErrInvalidSignature):
		return nil, apierrors.NewValidationError(err.Error())
	case errors.Is(err, domain.ErrOrderNotFound):
		return nil, apierrors.NewNotFoundError("Order not found")
	case errors.Is(err, domain.ErrInvalidStateTransition):
		return nil, apierrors.NewConflictError("Order cannot be verified", err.Error())
	case errors.Is(err, domain.ErrSignatureAlreadyUsed):
		return nil, apierrors.NewConflictError(settlement.UserMessage(err), err.Error())
	case errors.Is(err, domain.ErrTransactionFailed), errors.Is(err, domain.ErrPaymentMismatch):
		return nil, apierrors.NewPaymentFailedError(settlement.UserMessage(err), err.Error())
	default:
		logger.ErrorCtx(ctx, err, zap.String("order_id", orderID), zap.String("signature", signature))
		return nil, apierrors.NewServiceError(fmt.Sprintf("Failed to verify payment: %v", err))
	}
}
