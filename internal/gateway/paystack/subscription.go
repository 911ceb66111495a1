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

const (
	detailPlanCode         = "paystack.plan_code"
	detailSubscriptionCode = "paystack.subscription_code"
	detailEmailToken       = "paystack.email_token"
)

// SubscriptionMethod drives recurring Paystack payments. The first charge
// goes through a plan-bound transaction; the subscription record that
// Paystack creates from it is tracked through webhooks.
type SubscriptionMethod struct {
	client *Client
	env    *gateway.Env
}

// NewSubscriptionMethod creates the Paystack subscription method.
func NewSubscriptionMethod(client *Client, env *gateway.Env) *SubscriptionMethod {
	return &SubscriptionMethod{client: client, env: env}
}

// Checkout initializes a plan-bound transaction. The plan code must be set
// on the order before checkout.
func (m *SubscriptionMethod) Checkout(ctx context.Context, order *models.Order) (*gateway.Checkout, error) {
	planCode := order.GetDetailString(detailPlanCode)
	if planCode == "" {
		return nil, fmt.Errorf("order %d has no paystack plan code", order.ID)
	}

	body := map[string]any{
		"email":        order.CustomerEmail,
		"amount":       order.Total(),
		"currency":     strings.ToUpper(order.Currency),
		"plan":         planCode,
		"reference":    gateway.OrderRef(order.ID),
		"callback_url": m.env.ReturnURL(gateway.KeyPaystack) + fmt.Sprintf("?order_id=%d", order.ID),
		"metadata": map[string]any{
			"order_id": order.ID,
		},
	}

	result, err := m.client.Request(ctx, http.MethodPost, "/transaction/initialize", body)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, fmt.Errorf("paystack subscription initialize failed: %s", result.ErrorMessage)
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

// Fetch retrieves the subscription record by its code.
func (m *SubscriptionMethod) Fetch(ctx context.Context, order *models.Order) (json.RawMessage, error) {
	code := order.GetDetailString(detailSubscriptionCode)
	if code == "" {
		return nil, models.ErrNotFound
	}

	result, err := m.client.Request(ctx, http.MethodGet, "/subscription/"+code, nil)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, fmt.Errorf("paystack subscription fetch failed: %s", result.ErrorMessage)
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := result.Decode(&envelope); err != nil {
		return nil, err
	}
	return envelope.Data, nil
}

// Apply projects a subscription payload onto the order.
func (m *SubscriptionMethod) Apply(order *models.Order, payload json.RawMessage) error {
	doc, err := gateway.StorePayload(order, gateway.KeyPaystack, "subscription", payload)
	if err != nil {
		return err
	}

	if code, _ := doc["subscription_code"].(string); code != "" {
		order.SetDetail(detailSubscriptionCode, code)
		gateway.SetTransactionID(order, gateway.KeyPaystack, code)
	}
	if token, _ := doc["email_token"].(string); token != "" {
		order.SetDetail(detailEmailToken, token)
	}

	status, _ := doc["status"].(string)
	order.Status = mapSubscriptionStatus(status)
	return nil
}

// Cancel disables the subscription.
func (m *SubscriptionMethod) Cancel(ctx context.Context, order *models.Order) (json.RawMessage, error) {
	code := order.GetDetailString(detailSubscriptionCode)
	token := order.GetDetailString(detailEmailToken)
	if code == "" || token == "" {
		return nil, models.ErrNotFound
	}

	result, err := m.client.Request(ctx, http.MethodPost, "/subscription/disable", map[string]any{
		"code":  code,
		"token": token,
	})
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, fmt.Errorf("paystack subscription disable failed: %s", result.ErrorMessage)
	}

	return m.Fetch(ctx, order)
}

func mapSubscriptionStatus(status string) models.OrderStatus {
	switch strings.ToLower(status) {
	case "active", "non-renewing":
		return models.OrderStatusSubActive
	case "attention":
		return models.OrderStatusSubPaused
	case "cancelled", "completed":
		return models.OrderStatusSubCanceled
	default:
		return models.OrderStatusPendingPayment
	}
}
