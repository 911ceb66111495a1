package mercadopago

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/voxelpay/payments/internal/config"
	"github.com/voxelpay/payments/internal/gateway"
	"github.com/voxelpay/payments/internal/models"
)

// Detail keys under the "mercadopago" namespace
const (
	detailPreferenceID  = "mercadopago.preference_id"
	detailPaymentID     = "mercadopago.payment_id"
	detailTransactionID = "mercadopago.transaction_id"
)

// PaymentMethod drives one-time Mercado Pago payments through hosted
// checkout preferences. The order correlation rides in external_reference;
// vendor splitting is embedded as marketplace_fee on the preference.
type PaymentMethod struct {
	client *Client
	env    *gateway.Env
	cfg    config.MercadoPagoConfig
}

// NewPaymentMethod creates the Mercado Pago one-time payment method.
func NewPaymentMethod(client *Client, cfg config.MercadoPagoConfig, env *gateway.Env) *PaymentMethod {
	return &PaymentMethod{client: client, cfg: cfg, env: env}
}

// Checkout creates the checkout preference and returns its init point.
func (m *PaymentMethod) Checkout(ctx context.Context, order *models.Order, split *models.FeeSplit) (*gateway.Checkout, error) {
	items := make([]map[string]any, 0, len(order.Items))
	for _, item := range order.Items {
		unitPrice, _ := decimal.New(item.AmountCents, -2).Round(2).Float64()
		items = append(items, map[string]any{
			"title":       item.Product,
			"quantity":    item.Quantity,
			"unit_price":  unitPrice,
			"currency_id": order.Currency,
		})
	}

	returnURL := m.env.ReturnURL(gateway.KeyMercadoPago) + fmt.Sprintf("?order_id=%d", order.ID)
	body := map[string]any{
		"items":              items,
		"external_reference": gateway.OrderRef(order.ID),
		"back_urls": map[string]any{
			"success": returnURL,
			"pending": returnURL,
			"failure": m.env.CancelURL(gateway.KeyMercadoPago) + fmt.Sprintf("?order_id=%d", order.ID),
		},
		"auto_return":      "approved",
		"notification_url": m.env.BaseURL + "/webhooks/" + gateway.KeyMercadoPago,
	}

	if split != nil && split.PlatformFeeCents > 0 {
		fee, _ := decimal.New(split.PlatformFeeCents, -2).Round(2).Float64()
		body["marketplace_fee"] = fee
	}
	if m.env.CaptureMethod == config.CaptureManual {
		body["binary_mode"] = false
	}

	result, err := m.client.Request(ctx, http.MethodPost, "/checkout/preferences", body)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, fmt.Errorf("mercadopago preference creation failed: %s", result.ErrorMessage)
	}

	var created struct {
		ID               string `json:"id"`
		InitPoint        string `json:"init_point"`
		SandboxInitPoint string `json:"sandbox_init_point"`
	}
	if err := result.Decode(&created); err != nil {
		return nil, err
	}

	order.SetDetail(detailPreferenceID, created.ID)

	redirectURL := created.InitPoint
	if m.cfg.Sandbox && created.SandboxInitPoint != "" {
		redirectURL = created.SandboxInitPoint
	}
	if redirectURL == "" {
		return nil, fmt.Errorf("mercadopago preference %s has no init point", created.ID)
	}

	return &gateway.Checkout{RedirectURL: redirectURL}, nil
}

// Fetch retrieves the full payment payload for the stored payment id.
func (m *PaymentMethod) Fetch(ctx context.Context, order *models.Order) (json.RawMessage, error) {
	paymentID := order.GetDetailString(detailPaymentID)
	if paymentID == "" {
		return nil, models.ErrNotFound
	}
	return m.FetchByID(ctx, paymentID)
}

// FetchByID retrieves a payment payload by payment id.
func (m *PaymentMethod) FetchByID(ctx context.Context, paymentID string) (json.RawMessage, error) {
	result, err := m.client.Request(ctx, http.MethodGet, "/v1/payments/"+paymentID, nil)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, fmt.Errorf("mercadopago payment fetch failed: %s", result.ErrorMessage)
	}
	return result.Data, nil
}

// Apply projects a payment payload onto the order.
func (m *PaymentMethod) Apply(order *models.Order, payload json.RawMessage) error {
	doc, err := gateway.StorePayload(order, gateway.KeyMercadoPago, "payment", payload)
	if err != nil {
		return err
	}

	if paymentID := numericID(doc["id"]); paymentID != "" {
		order.SetDetail(detailPaymentID, paymentID)
		gateway.SetTransactionID(order, gateway.KeyMercadoPago, paymentID)
	}

	status, _ := doc["status"].(string)
	order.Status = mapPaymentStatus(status, m.env.CaptureMethod)
	return nil
}

// Capture captures an authorized payment.
func (m *PaymentMethod) Capture(ctx context.Context, order *models.Order) (json.RawMessage, error) {
	paymentID := order.GetDetailString(detailPaymentID)
	if paymentID == "" {
		return nil, models.ErrNotFound
	}

	result, err := m.client.Request(ctx, http.MethodPut, "/v1/payments/"+paymentID, map[string]any{"capture": true})
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, fmt.Errorf("mercadopago capture failed: %s", result.ErrorMessage)
	}

	return m.FetchByID(ctx, paymentID)
}

// Refund refunds the payment in full.
func (m *PaymentMethod) Refund(ctx context.Context, order *models.Order) (json.RawMessage, error) {
	paymentID := order.GetDetailString(detailPaymentID)
	if paymentID == "" {
		return nil, models.ErrNotFound
	}

	result, err := m.client.Request(ctx, http.MethodPost, "/v1/payments/"+paymentID+"/refunds", struct{}{})
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, fmt.Errorf("mercadopago refund failed: %s", result.ErrorMessage)
	}

	return m.FetchByID(ctx, paymentID)
}

// ShouldSync reports whether the order holds a payment worth re-fetching.
func (m *PaymentMethod) ShouldSync(order *models.Order) bool {
	return order.GetDetailString(detailPaymentID) != "" && !order.Status.IsTerminal()
}

// mapPaymentStatus maps Mercado Pago's payment vocabulary onto the order
// status enum.
func mapPaymentStatus(status string, captureMethod config.CaptureMethod) models.OrderStatus {
	switch strings.ToLower(status) {
	case "approved":
		if captureMethod == config.CaptureManual {
			return models.OrderStatusPendingApproval
		}
		return models.OrderStatusCompleted
	case "authorized":
		return models.OrderStatusPendingApproval
	case "pending", "in_process", "in_mediation":
		return models.OrderStatusPendingPayment
	case "rejected", "cancelled":
		return models.OrderStatusCanceled
	case "refunded", "charged_back":
		return models.OrderStatusRefunded
	default:
		return models.OrderStatusPendingPayment
	}
}

// numericID renders Mercado Pago's numeric ids (JSON numbers) as strings.
func numericID(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatInt(int64(v), 10)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}
