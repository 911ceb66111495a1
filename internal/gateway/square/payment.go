package square

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/voxelpay/payments/internal/config"
	"github.com/voxelpay/payments/internal/gateway"
	"github.com/voxelpay/payments/internal/models"
)

// Detail keys under the "square" namespace
const (
	detailOrderID       = "square.order_id"
	detailPaymentLinkID = "square.payment_link_id"
	detailPaymentID     = "square.payment_id"
)

// PaymentMethod drives one-time Square payments through hosted payment
// links. The order correlation rides in the Square order's reference_id.
type PaymentMethod struct {
	client *Client
	env    *gateway.Env
	cfg    config.SquareConfig
}

// NewPaymentMethod creates the Square one-time payment method.
func NewPaymentMethod(client *Client, cfg config.SquareConfig, env *gateway.Env) *PaymentMethod {
	return &PaymentMethod{client: client, cfg: cfg, env: env}
}

// Checkout creates a payment link wrapping a Square order and returns its
// hosted URL.
func (m *PaymentMethod) Checkout(ctx context.Context, order *models.Order, split *models.FeeSplit) (*gateway.Checkout, error) {
	lineItems := make([]map[string]any, 0, len(order.Items))
	for _, item := range order.Items {
		lineItems = append(lineItems, map[string]any{
			"name":     item.Product,
			"quantity": fmt.Sprintf("%d", item.Quantity),
			"base_price_money": map[string]any{
				"amount":   item.AmountCents,
				"currency": strings.ToUpper(order.Currency),
			},
		})
	}

	body := map[string]any{
		"idempotency_key": uuid.NewString(),
		"order": map[string]any{
			"location_id":  m.cfg.LocationID,
			"reference_id": gateway.OrderRef(order.ID),
			"line_items":   lineItems,
		},
		"checkout_options": map[string]any{
			"redirect_url": m.env.ReturnURL(gateway.KeySquare) + fmt.Sprintf("?order_id=%d", order.ID),
		},
	}
	if m.env.CaptureMethod == config.CaptureManual {
		body["payment_note"] = "authorization hold"
	}

	result, err := m.client.Request(ctx, http.MethodPost, "/v2/online-checkout/payment-links", body)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, fmt.Errorf("square payment link creation failed: %s", result.ErrorMessage)
	}

	var created struct {
		PaymentLink struct {
			ID      string `json:"id"`
			URL     string `json:"url"`
			OrderID string `json:"order_id"`
		} `json:"payment_link"`
	}
	if err := result.Decode(&created); err != nil {
		return nil, err
	}

	order.SetDetail(detailPaymentLinkID, created.PaymentLink.ID)
	order.SetDetail(detailOrderID, created.PaymentLink.OrderID)

	if created.PaymentLink.URL == "" {
		return nil, fmt.Errorf("square payment link %s has no url", created.PaymentLink.ID)
	}
	return &gateway.Checkout{RedirectURL: created.PaymentLink.URL}, nil
}

// Fetch retrieves the payment payload. With only the Square order id on
// file the payment is found through the order's tenders.
func (m *PaymentMethod) Fetch(ctx context.Context, order *models.Order) (json.RawMessage, error) {
	if paymentID := order.GetDetailString(detailPaymentID); paymentID != "" {
		return m.fetchPayment(ctx, paymentID)
	}

	squareOrderID := order.GetDetailString(detailOrderID)
	if squareOrderID == "" {
		return nil, models.ErrNotFound
	}

	result, err := m.client.Request(ctx, http.MethodGet, "/v2/orders/"+squareOrderID, nil)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, fmt.Errorf("square order fetch failed: %s", result.ErrorMessage)
	}

	var envelope struct {
		Order struct {
			Tenders []struct {
				PaymentID string `json:"payment_id"`
			} `json:"tenders"`
		} `json:"order"`
	}
	if err := result.Decode(&envelope); err != nil {
		return nil, err
	}
	if len(envelope.Order.Tenders) == 0 {
		return nil, models.ErrNotFound
	}
	return m.fetchPayment(ctx, envelope.Order.Tenders[0].PaymentID)
}

func (m *PaymentMethod) fetchPayment(ctx context.Context, paymentID string) (json.RawMessage, error) {
	result, err := m.client.Request(ctx, http.MethodGet, "/v2/payments/"+paymentID, nil)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, fmt.Errorf("square payment fetch failed: %s", result.ErrorMessage)
	}

	var envelope struct {
		Payment json.RawMessage `json:"payment"`
	}
	if err := result.Decode(&envelope); err != nil {
		return nil, err
	}
	return envelope.Payment, nil
}

// Apply projects a payment payload onto the order.
func (m *PaymentMethod) Apply(order *models.Order, payload json.RawMessage) error {
	doc, err := gateway.StorePayload(order, gateway.KeySquare, "payment", payload)
	if err != nil {
		return err
	}

	if paymentID, _ := doc["id"].(string); paymentID != "" {
		order.SetDetail(detailPaymentID, paymentID)
		gateway.SetTransactionID(order, gateway.KeySquare, paymentID)
	}
	if squareOrderID, _ := doc["order_id"].(string); squareOrderID != "" {
		order.SetDetail(detailOrderID, squareOrderID)
	}

	status, _ := doc["status"].(string)
	order.Status = mapPaymentStatus(status, refundedAmount(doc) > 0)
	return nil
}

// Capture completes an approved (authorized) payment.
func (m *PaymentMethod) Capture(ctx context.Context, order *models.Order) (json.RawMessage, error) {
	paymentID := order.GetDetailString(detailPaymentID)
	if paymentID == "" {
		return nil, models.ErrNotFound
	}

	result, err := m.client.Request(ctx, http.MethodPost, "/v2/payments/"+paymentID+"/complete", struct{}{})
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, fmt.Errorf("square payment complete failed: %s", result.ErrorMessage)
	}

	return m.fetchPayment(ctx, paymentID)
}

// Refund refunds the payment in full.
func (m *PaymentMethod) Refund(ctx context.Context, order *models.Order) (json.RawMessage, error) {
	paymentID := order.GetDetailString(detailPaymentID)
	if paymentID == "" {
		return nil, models.ErrNotFound
	}

	body := map[string]any{
		"idempotency_key": uuid.NewString(),
		"payment_id":      paymentID,
		"amount_money": map[string]any{
			"amount":   order.Total(),
			"currency": strings.ToUpper(order.Currency),
		},
	}

	result, err := m.client.Request(ctx, http.MethodPost, "/v2/refunds", body)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, fmt.Errorf("square refund failed: %s", result.ErrorMessage)
	}

	return m.fetchPayment(ctx, paymentID)
}

// ShouldSync reports whether the order holds provider state worth
// re-fetching.
func (m *PaymentMethod) ShouldSync(order *models.Order) bool {
	hasRef := order.GetDetailString(detailPaymentID) != "" || order.GetDetailString(detailOrderID) != ""
	return hasRef && !order.Status.IsTerminal()
}

func mapPaymentStatus(status string, refunded bool) models.OrderStatus {
	if refunded {
		return models.OrderStatusRefunded
	}
	switch strings.ToUpper(status) {
	case "COMPLETED":
		return models.OrderStatusCompleted
	case "APPROVED":
		return models.OrderStatusPendingApproval
	case "PENDING":
		return models.OrderStatusPendingPayment
	case "CANCELED", "FAILED":
		return models.OrderStatusCanceled
	default:
		return models.OrderStatusPendingPayment
	}
}

func refundedAmount(doc map[string]any) float64 {
	refunded, ok := doc["refunded_money"].(map[string]any)
	if !ok {
		return 0
	}
	amount, _ := refunded["amount"].(float64)
	return amount
}
