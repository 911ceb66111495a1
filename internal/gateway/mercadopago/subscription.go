package mercadopago

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/voxelpay/payments/internal/config"
	"github.com/voxelpay/payments/internal/gateway"
	"github.com/voxelpay/payments/internal/models"
)

const (
	detailPreapprovalID = "mercadopago.preapproval_id"
	detailFrequency     = "mercadopago.frequency"
	detailFrequencyType = "mercadopago.frequency_type"
)

// SubscriptionMethod drives recurring payments through Mercado Pago
// preapprovals.
type SubscriptionMethod struct {
	client *Client
	env    *gateway.Env
	cfg    config.MercadoPagoConfig
}

// NewSubscriptionMethod creates the Mercado Pago subscription method.
func NewSubscriptionMethod(client *Client, cfg config.MercadoPagoConfig, env *gateway.Env) *SubscriptionMethod {
	return &SubscriptionMethod{client: client, cfg: cfg, env: env}
}

// Checkout creates a preapproval and returns its init point. The billing
// cadence is read from order details (defaults to monthly).
func (m *SubscriptionMethod) Checkout(ctx context.Context, order *models.Order) (*gateway.Checkout, error) {
	frequency := 1
	if f, ok := order.GetDetail(detailFrequency); ok {
		if n, ok := f.(float64); ok && n > 0 {
			frequency = int(n)
		}
	}
	frequencyType := order.GetDetailString(detailFrequencyType)
	if frequencyType == "" {
		frequencyType = "months"
	}

	amount, _ := decimal.New(order.Total(), -2).Round(2).Float64()
	body := map[string]any{
		"reason":             subscriptionReason(order),
		"external_reference": gateway.OrderRef(order.ID),
		"back_url":           m.env.ReturnURL(gateway.KeyMercadoPago) + fmt.Sprintf("?order_id=%d", order.ID),
		"auto_recurring": map[string]any{
			"frequency":          frequency,
			"frequency_type":     frequencyType,
			"transaction_amount": amount,
			"currency_id":        order.Currency,
		},
	}

	result, err := m.client.Request(ctx, http.MethodPost, "/preapproval", body)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, fmt.Errorf("mercadopago preapproval creation failed: %s", result.ErrorMessage)
	}

	var created struct {
		ID        string `json:"id"`
		InitPoint string `json:"init_point"`
	}
	if err := result.Decode(&created); err != nil {
		return nil, err
	}

	order.SetDetail(detailPreapprovalID, created.ID)
	if created.InitPoint == "" {
		return nil, fmt.Errorf("mercadopago preapproval %s has no init point", created.ID)
	}
	return &gateway.Checkout{RedirectURL: created.InitPoint}, nil
}

// Fetch retrieves the preapproval payload.
func (m *SubscriptionMethod) Fetch(ctx context.Context, order *models.Order) (json.RawMessage, error) {
	preapprovalID := order.GetDetailString(detailPreapprovalID)
	if preapprovalID == "" {
		return nil, models.ErrNotFound
	}

	result, err := m.client.Request(ctx, http.MethodGet, "/preapproval/"+preapprovalID, nil)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, fmt.Errorf("mercadopago preapproval fetch failed: %s", result.ErrorMessage)
	}
	return result.Data, nil
}

// Apply projects a preapproval payload onto the order.
func (m *SubscriptionMethod) Apply(order *models.Order, payload json.RawMessage) error {
	doc, err := gateway.StorePayload(order, gateway.KeyMercadoPago, "preapproval", payload)
	if err != nil {
		return err
	}

	if id := numericID(doc["id"]); id != "" {
		order.SetDetail(detailPreapprovalID, id)
		gateway.SetTransactionID(order, gateway.KeyMercadoPago, id)
	}

	status, _ := doc["status"].(string)
	order.Status = mapPreapprovalStatus(status)
	return nil
}

// Cancel cancels the preapproval.
func (m *SubscriptionMethod) Cancel(ctx context.Context, order *models.Order) (json.RawMessage, error) {
	preapprovalID := order.GetDetailString(detailPreapprovalID)
	if preapprovalID == "" {
		return nil, models.ErrNotFound
	}

	result, err := m.client.Request(ctx, http.MethodPut, "/preapproval/"+preapprovalID, map[string]any{"status": "cancelled"})
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, fmt.Errorf("mercadopago preapproval cancel failed: %s", result.ErrorMessage)
	}
	return result.Data, nil
}

func subscriptionReason(order *models.Order) string {
	if len(order.Items) > 0 {
		return order.Items[0].Product
	}
	return gateway.OrderRef(order.ID)
}

func mapPreapprovalStatus(status string) models.OrderStatus {
	switch strings.ToLower(status) {
	case "authorized":
		return models.OrderStatusSubActive
	case "paused":
		return models.OrderStatusSubPaused
	case "cancelled":
		return models.OrderStatusSubCanceled
	case "pending":
		return models.OrderStatusPendingPayment
	default:
		return models.OrderStatusPendingPayment
	}
}
