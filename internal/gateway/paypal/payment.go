package paypal

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
	"github.com/voxelpay/payments/internal/money"
)

// Detail keys under the "paypal" namespace
const (
	detailOrderID       = "paypal.order_id"
	detailTransactionID = "paypal.transaction_id"
	detailPayload       = "order"
)

// PaymentMethod drives one-time PayPal checkout orders. Automatic capture
// creates CAPTURE-intent orders captured on return; manual capture creates
// AUTHORIZE-intent orders that hold in pending_approval until the vendor
// approves.
type PaymentMethod struct {
	client *Client
	env    *gateway.Env
}

// NewPaymentMethod creates the PayPal one-time payment method.
func NewPaymentMethod(client *Client, env *gateway.Env) *PaymentMethod {
	return &PaymentMethod{client: client, env: env}
}

// Checkout creates a PayPal checkout order carrying the order reference in
// custom_id and returns the approve link.
func (m *PaymentMethod) Checkout(ctx context.Context, order *models.Order, _ *models.FeeSplit) (*gateway.Checkout, error) {
	intent := "CAPTURE"
	if m.env.CaptureMethod == config.CaptureManual {
		intent = "AUTHORIZE"
	}

	body := map[string]any{
		"intent": intent,
		"purchase_units": []map[string]any{{
			"reference_id": "default",
			"custom_id":    gateway.OrderRef(order.ID),
			"amount": map[string]any{
				"currency_code": order.Currency,
				"value":         money.ToDecimalString(order.Total()),
			},
		}},
		"application_context": map[string]any{
			"return_url": m.env.ReturnURL(gateway.KeyPayPal) + fmt.Sprintf("?order_id=%d", order.ID),
			"cancel_url": m.env.CancelURL(gateway.KeyPayPal) + fmt.Sprintf("?order_id=%d", order.ID),
			"user_action": "PAY_NOW",
		},
	}

	result, err := m.client.Request(ctx, http.MethodPost, "/v2/checkout/orders", body,
		gateway.WithHeader("PayPal-Request-Id", uuid.NewString()),
	)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, fmt.Errorf("paypal order creation failed: %s", result.ErrorMessage)
	}

	var created struct {
		ID    string `json:"id"`
		Links []struct {
			Href string `json:"href"`
			Rel  string `json:"rel"`
		} `json:"links"`
	}
	if err := result.Decode(&created); err != nil {
		return nil, err
	}

	order.SetDetail(detailOrderID, created.ID)

	for _, link := range created.Links {
		if link.Rel == "approve" || link.Rel == "payer-action" {
			return &gateway.Checkout{RedirectURL: link.Href}, nil
		}
	}

	return nil, fmt.Errorf("paypal order %s has no approve link", created.ID)
}

// Fetch retrieves the full checkout order payload. Under automatic capture
// a customer-approved order nobody captured yet is captured first, so the
// return URL and the CHECKOUT.ORDER.APPROVED webhook (whichever lands
// first) settle the payment instead of parking it in pending_approval.
func (m *PaymentMethod) Fetch(ctx context.Context, order *models.Order) (json.RawMessage, error) {
	paypalOrderID := order.GetDetailString(detailOrderID)
	if paypalOrderID == "" {
		return nil, models.ErrNotFound
	}

	payload, err := m.fetchOrder(ctx, paypalOrderID)
	if err != nil {
		return nil, err
	}

	if m.env.CaptureMethod == config.CaptureAutomatic && awaitingCapture(payload) {
		result, err := m.client.Request(ctx, http.MethodPost, "/v2/checkout/orders/"+paypalOrderID+"/capture", struct{}{},
			gateway.WithHeader("PayPal-Request-Id", gateway.OrderRef(order.ID)+":capture"),
		)
		if err != nil {
			return nil, err
		}
		// 422 ORDER_ALREADY_CAPTURED means a racing delivery won.
		if !result.Success && result.StatusCode != http.StatusUnprocessableEntity {
			return nil, fmt.Errorf("paypal capture failed: %s", result.ErrorMessage)
		}
		return m.fetchOrder(ctx, paypalOrderID)
	}

	return payload, nil
}

func (m *PaymentMethod) fetchOrder(ctx context.Context, paypalOrderID string) (json.RawMessage, error) {
	result, err := m.client.Request(ctx, http.MethodGet, "/v2/checkout/orders/"+paypalOrderID, nil)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, fmt.Errorf("paypal order fetch failed: %s", result.ErrorMessage)
	}
	return result.Data, nil
}

// awaitingCapture reports an APPROVED checkout order with no captures yet.
func awaitingCapture(payload json.RawMessage) bool {
	var doc map[string]any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return false
	}
	if !strings.EqualFold(stringField(doc, "status"), "APPROVED") {
		return false
	}
	captureID, _ := firstPayment(doc, "captures")
	return captureID == ""
}

// Apply projects a checkout order payload onto the order.
func (m *PaymentMethod) Apply(order *models.Order, payload json.RawMessage) error {
	doc, err := gateway.StorePayload(order, gateway.KeyPayPal, detailPayload, payload)
	if err != nil {
		return err
	}

	if captureID, _ := firstPayment(doc, "captures"); captureID != "" {
		gateway.SetTransactionID(order, gateway.KeyPayPal, captureID)
	}

	order.Status = mapOrderStatus(doc)
	return nil
}

// Capture moves an approved order toward completion. For CAPTURE-intent
// orders this captures directly; for AUTHORIZE-intent orders the first call
// (from the return URL) creates the authorization hold and the second (from
// the vendor approve action) captures it.
func (m *PaymentMethod) Capture(ctx context.Context, order *models.Order) (json.RawMessage, error) {
	paypalOrderID := order.GetDetailString(detailOrderID)
	if paypalOrderID == "" {
		return nil, models.ErrNotFound
	}

	var path string
	if m.env.CaptureMethod == config.CaptureManual {
		if authID := storedAuthorizationID(order); authID != "" {
			path = "/v2/payments/authorizations/" + authID + "/capture"
		} else {
			path = "/v2/checkout/orders/" + paypalOrderID + "/authorize"
		}
	} else {
		path = "/v2/checkout/orders/" + paypalOrderID + "/capture"
	}

	result, err := m.client.Request(ctx, http.MethodPost, path, struct{}{},
		gateway.WithHeader("PayPal-Request-Id", gateway.OrderRef(order.ID)+":capture"),
	)
	if err != nil {
		return nil, err
	}
	// 422 ORDER_ALREADY_CAPTURED arrives when the webhook won the race;
	// fall through to a fresh fetch either way.
	if !result.Success && result.StatusCode != http.StatusUnprocessableEntity {
		return nil, fmt.Errorf("paypal capture failed: %s", result.ErrorMessage)
	}

	return m.Fetch(ctx, order)
}

// Refund refunds the captured payment in full.
func (m *PaymentMethod) Refund(ctx context.Context, order *models.Order) (json.RawMessage, error) {
	captureID := order.GetDetailString(detailTransactionID)
	if captureID == "" {
		return nil, models.ErrNotFound
	}

	result, err := m.client.Request(ctx, http.MethodPost, "/v2/payments/captures/"+captureID+"/refund", struct{}{},
		gateway.WithHeader("PayPal-Request-Id", gateway.OrderRef(order.ID)+":refund"),
	)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, fmt.Errorf("paypal refund failed: %s", result.ErrorMessage)
	}

	return m.Fetch(ctx, order)
}

// ShouldSync reports whether the order holds PayPal state worth re-fetching.
func (m *PaymentMethod) ShouldSync(order *models.Order) bool {
	return order.GetDetailString(detailOrderID) != "" && !order.Status.IsTerminal()
}

// firstPayment walks purchase_units[0].payments.<kind>[0] and returns its
// id and status.
func firstPayment(doc map[string]any, kind string) (id, status string) {
	units, _ := doc["purchase_units"].([]any)
	if len(units) == 0 {
		return "", ""
	}
	unit, _ := units[0].(map[string]any)
	payments, _ := unit["payments"].(map[string]any)
	entries, _ := payments[kind].([]any)
	if len(entries) == 0 {
		return "", ""
	}
	entry, _ := entries[0].(map[string]any)
	id, _ = entry["id"].(string)
	status, _ = entry["status"].(string)
	return id, status
}

func storedAuthorizationID(order *models.Order) string {
	payload, ok := order.GetDetail(gateway.KeyPayPal + "." + detailPayload)
	if !ok {
		return ""
	}
	doc, ok := payload.(map[string]any)
	if !ok {
		return ""
	}
	id, _ := firstPayment(doc, "authorizations")
	return id
}

// mapOrderStatus maps PayPal's checkout order vocabulary onto the order
// status enum. Capture state wins over the top-level order status.
func mapOrderStatus(doc map[string]any) models.OrderStatus {
	if _, captureStatus := firstPayment(doc, "captures"); captureStatus != "" {
		switch strings.ToUpper(captureStatus) {
		case "COMPLETED":
			return models.OrderStatusCompleted
		case "REFUNDED", "PARTIALLY_REFUNDED":
			return models.OrderStatusRefunded
		case "DECLINED", "FAILED":
			return models.OrderStatusCanceled
		default:
			return models.OrderStatusPendingPayment
		}
	}

	if _, authStatus := firstPayment(doc, "authorizations"); authStatus != "" {
		switch strings.ToUpper(authStatus) {
		case "VOIDED":
			return models.OrderStatusCanceled
		default:
			return models.OrderStatusPendingApproval
		}
	}

	switch strings.ToUpper(stringField(doc, "status")) {
	case "COMPLETED":
		return models.OrderStatusCompleted
	case "APPROVED":
		return models.OrderStatusPendingApproval
	case "VOIDED":
		return models.OrderStatusCanceled
	default:
		return models.OrderStatusPendingPayment
	}
}

func stringField(doc map[string]any, key string) string {
	value, _ := doc[key].(string)
	return value
}
