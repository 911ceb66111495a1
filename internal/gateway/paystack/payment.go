package paystack

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/voxelpay/payments/internal/gateway"
	"github.com/voxelpay/payments/internal/models"
)

// Detail keys under the "paystack" namespace
const (
	detailReference     = "paystack.reference"
	detailTransactionID = "paystack.transaction_id"
)

// PaymentMethod drives one-time Paystack payments through hosted
// transaction pages. The order correlation rides in the transaction
// reference; vendor splitting is attached as a subaccount on the charge.
type PaymentMethod struct {
	client *Client
	env    *gateway.Env
}

// NewPaymentMethod creates the Paystack one-time payment method.
func NewPaymentMethod(client *Client, env *gateway.Env) *PaymentMethod {
	return &PaymentMethod{client: client, env: env}
}

// Checkout initializes a transaction and returns its authorization URL.
// Amounts are sent in the currency's subunit, which matches the cents the
// ledger already holds.
func (m *PaymentMethod) Checkout(ctx context.Context, order *models.Order, split *models.FeeSplit) (*gateway.Checkout, error) {
	reference := gateway.OrderRef(order.ID)
	body := map[string]any{
		"email":        order.CustomerEmail,
		"amount":       order.Total(),
		"currency":     strings.ToUpper(order.Currency),
		"reference":    reference,
		"callback_url": m.env.ReturnURL(gateway.KeyPaystack) + fmt.Sprintf("?order_id=%d", order.ID),
		"metadata": map[string]any{
			"order_id": order.ID,
		},
	}

	if split != nil && split.SubaccountCode != "" {
		body["subaccount"] = split.SubaccountCode
		body["transaction_charge"] = split.PlatformFeeCents
		body["bearer"] = "subaccount"
	}

	result, err := m.client.Request(ctx, http.MethodPost, "/transaction/initialize", body)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, fmt.Errorf("paystack transaction initialize failed: %s", result.ErrorMessage)
	}

	var envelope struct {
		Data struct {
			AuthorizationURL string `json:"authorization_url"`
			Reference        string `json:"reference"`
		} `json:"data"`
	}
	if err := result.Decode(&envelope); err != nil {
		return nil, err
	}

	order.SetDetail(detailReference, envelope.Data.Reference)
	if envelope.Data.AuthorizationURL == "" {
		return nil, fmt.Errorf("paystack transaction %s has no authorization url", envelope.Data.Reference)
	}
	return &gateway.Checkout{RedirectURL: envelope.Data.AuthorizationURL}, nil
}

// Fetch verifies the stored reference and returns the transaction data.
func (m *PaymentMethod) Fetch(ctx context.Context, order *models.Order) (json.RawMessage, error) {
	reference := order.GetDetailString(detailReference)
	if reference == "" {
		return nil, models.ErrNotFound
	}

	result, err := m.client.Request(ctx, http.MethodGet, "/transaction/verify/"+reference, nil)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, fmt.Errorf("paystack transaction verify failed: %s", result.ErrorMessage)
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := result.Decode(&envelope); err != nil {
		return nil, err
	}
	return envelope.Data, nil
}

// Apply projects a transaction payload onto the order.
func (m *PaymentMethod) Apply(order *models.Order, payload json.RawMessage) error {
	doc, err := gateway.StorePayload(order, gateway.KeyPaystack, "transaction", payload)
	if err != nil {
		return err
	}

	if reference, _ := doc["reference"].(string); reference != "" {
		order.SetDetail(detailReference, reference)
		gateway.SetTransactionID(order, gateway.KeyPaystack, reference)
	}

	status, _ := doc["status"].(string)
	order.Status = mapTransactionStatus(status)
	return nil
}

// Capture is not supported: Paystack charges settle immediately.
func (m *PaymentMethod) Capture(ctx context.Context, order *models.Order) (json.RawMessage, error) {
	return nil, gateway.ErrUnsupported
}

// Refund refunds the transaction in full.
func (m *PaymentMethod) Refund(ctx context.Context, order *models.Order) (json.RawMessage, error) {
	reference := order.GetDetailString(detailReference)
	if reference == "" {
		return nil, models.ErrNotFound
	}

	result, err := m.client.Request(ctx, http.MethodPost, "/refund", map[string]any{"transaction": reference})
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, fmt.Errorf("paystack refund failed: %s", result.ErrorMessage)
	}

	return m.Fetch(ctx, order)
}

// ShouldSync reports whether the order holds a transaction worth
// re-verifying.
func (m *PaymentMethod) ShouldSync(order *models.Order) bool {
	return order.GetDetailString(detailReference) != "" && !order.Status.IsTerminal()
}

func mapTransactionStatus(status string) models.OrderStatus {
	switch strings.ToLower(status) {
	case "success":
		return models.OrderStatusCompleted
	case "abandoned", "failed":
		return models.OrderStatusCanceled
	case "reversed", "refunded":
		return models.OrderStatusRefunded
	case "pending", "ongoing", "queued":
		return models.OrderStatusPendingPayment
	default:
		return models.OrderStatusPendingPayment
	}
}
