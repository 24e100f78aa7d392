package dto

import (
	"time"

	"github.com/feral-file/ff-settlement/internal/domain"
	"github.com/feral-file/ff-settlement/internal/store/schema"
)

// OrderResponse is an order with its items and grants
type OrderResponse struct {
	ID                  string                  `json:"id"`
	BuyerID             string                  `json:"buyer_id"`
	Network             domain.Network          `json:"network"`
	Status              domain.OrderStatus      `json:"status"`
	TotalPrice          string                  `json:"total_price"`
	CurrencyCode        string                  `json:"currency_code"`
	PaymentMethod       string                  `json:"payment_method"`
	Signatures          []string                `json:"transaction_signatures"`
	ExplorerURLs        []string                `json:"explorer_urls"`
	PayeeBasisPoints    int                     `json:"payee_bps"`
	PlatformBasisPoints int                     `json:"platform_bps"`
	FallbackKind        *string                 `json:"fallback_kind,omitempty"`
	FailureReason       *string                 `json:"failure_reason,omitempty"`
	Items               []OrderItemResponse     `json:"items"`
	Grants              []PurchaseGrantResponse `json:"grants"`
	CreatedAt           time.Time               `json:"created_at"`
	CompletedAt         *time.Time              `json:"completed_at,omitempty"`
}

// OrderItemResponse is one purchased item
type OrderItemResponse struct {
	ItemID       string  `json:"item_id"`
	PayeeAddress *string `json:"payee_address,omitempty"`
	Price        string  `json:"price"`
	Title        *string `json:"title,omitempty"`
	LicenseType  string  `json:"license_type"`
}

// PurchaseGrantResponse is the buyer's right to an item
type PurchaseGrantResponse struct {
	ItemID      string    `json:"item_id"`
	LicenseType string    `json:"license_type"`
	CreatedAt   time.Time `json:"created_at"`
}

// VerifyPaymentRequest is the body of a verification request
type VerifyPaymentRequest struct {
	Signature string `json:"signature" binding:"required"`
}

// VerifyPaymentResponse is the outcome of a verification request
type VerifyPaymentResponse struct {
	OrderID          string             `json:"order_id"`
	Status           domain.OrderStatus `json:"status"`
	GrantsCreated    int                `json:"grants_created"`
	AlreadyCompleted bool               `json:"already_completed"`
	Message          string             `json:"message,omitempty"`
	ExplorerURL      string             `json:"explorer_url,omitempty"`
}

// MapOrderToDTO maps an order and its rows to the response
func MapOrderToDTO(order *schema.Order, items []schema.OrderItem, grants []schema.PurchaseGrant) *OrderResponse {
	resp := &OrderResponse{
		ID:                  order.ID.String(),
		BuyerID:             order.BuyerID,
		Network:             order.Network,
		Status:              order.Status,
		TotalPrice:          order.TotalPrice.StringFixed(domain.USDC_DECIMALS),
		CurrencyCode:        order.CurrencyCode,
		PaymentMethod:       order.PaymentMethod,
		Signatures:          make([]string, 0, len(order.TransactionSignatures)),
		ExplorerURLs:        make([]string, 0, len(order.TransactionSignatures)),
		PayeeBasisPoints:    order.PayeeBasisPoints,
		PlatformBasisPoints: order.PlatformBasisPoints,
		FallbackKind:        order.FallbackKind,
		FailureReason:       order.FailureReason,
		Items:               make([]OrderItemResponse, 0, len(items)),
		Grants:              make([]PurchaseGrantResponse, 0, len(grants)),
		CreatedAt:           order.CreatedAt,
		CompletedAt:         order.CompletedAt,
	}

	for _, sig := range order.TransactionSignatures {
		resp.Signatures = append(resp.Signatures, sig)
		resp.ExplorerURLs = append(resp.ExplorerURLs, order.Network.ExplorerTxURL(sig))
	}
	for _, item := range items {
		resp.Items = append(resp.Items, OrderItemResponse{
			ItemID:       item.ItemID,
			PayeeAddress: item.PayeeAddress,
			Price:        item.Price.StringFixed(domain.USDC_DECIMALS),
			Title:        item.Title,
			LicenseType:  item.LicenseType,
		})
	}
	for _, grant := range grants {
		resp.Grants = append(resp.Grants, PurchaseGrantResponse{
			ItemID:      grant.ItemID,
			LicenseType: grant.LicenseType,
			CreatedAt:   grant.CreatedAt,
		})
	}

	return resp
}
