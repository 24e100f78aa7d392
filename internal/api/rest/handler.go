package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feral-file/ff-settlement/internal/api/shared/dto"
	apierrors "github.com/feral-file/ff-settlement/internal/api/shared/errors"
	"github.com/feral-file/ff-settlement/internal/api/shared/executor"
	"github.com/feral-file/ff-settlement/internal/domain"
)

// Handler defines the interface for REST API handlers
type Handler interface {
	// GetOrder retrieves an order with its items and grants
	// GET /api/v1/orders/:id
	GetOrder(c *gin.Context)

	// VerifyPayment confirms a submitted payment and completes the order (requires authentication)
	// POST /api/v1/orders/:id/verify
	VerifyPayment(c *gin.Context)

	// HealthCheck returns the health status of the API
	// GET /health
	HealthCheck(c *gin.Context)
}

// handler implements the Handler interface
type handler struct {
	debug    bool
	executor executor.Executor
}

// NewHandler creates a new REST API handler using the shared executor
func NewHandler(debug bool, exec executor.Executor) Handler {
	return &handler{
		debug:    debug,
		executor: exec,
	}
}

// GetOrder retrieves an order by its ID
func (h *handler) GetOrder(c *gin.Context) {
	orderID := c.Param("id")
	if orderID == "" {
		respondBadRequest(c, "Order ID is required")
		return
	}

	order, err := h.executor.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		respondExecutorError(c, err, "Failed to get order")
		return
	}

	if order == nil {
		respondNotFound(c, "Order not found")
		return
	}

	c.JSON(http.StatusOK, order)
}

// VerifyPayment verifies a transaction signature for an order
func (h *handler) VerifyPayment(c *gin.Context) {
	orderID := c.Param("id")
	if orderID == "" {
		respondBadRequest(c, "Order ID is required")
		return
	}

	var req dto.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body", err.Error())
		return
	}

	resp, err := h.executor.VerifyPayment(c.Request.Context(), orderID, req.Signature)
	if err != nil {
		respondExecutorError(c, err, "Failed to verify payment")
		return
	}

	// still waiting on the ledger
	if resp.Status == domain.OrderStatusPending {
		c.JSON(http.StatusAccepted, resp)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// HealthCheck returns the health status
func (h *handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "ff-settlement-api",
	})
}

// respondExecutorError responds with the executor's API error, or an internal error for anything else
func respondExecutorError(c *gin.Context, err error, message string) {
	var apiErr *apierrors.APIError
	if errors.As(err, &apiErr) {
		c.JSON(apiErr.StatusCode(), apiErr)
		return
	}
	respondInternalError(c, err, message)
}
