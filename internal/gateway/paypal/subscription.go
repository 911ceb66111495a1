package paypal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/voxelpay/payments/internal/gateway"
	"github.com/voxelpay/payments/internal/models"
)

const (
	detailSubscriptionID = "paypal.subscription_id"
	detailPlanID         = "paypal.plan_id"
)

// SubscriptionMethod drives PayPal billing subscriptions. The billing plan
// id is expected on the order at paypal.plan_id, set when the host created
// the order from a recurring-priced product.
type SubscriptionMethod struct {
	client *Client
	env    *gateway.Env
}

// NewSubscriptionMethod creates the PayPal subscription method.
func NewSubscriptionMethod(client *Client, env *gateway.Env) *SubscriptionMethod {
	return &SubscriptionMethod{client: client, env: env}
}

// Checkout creates the subscription and returns the approval link.
func (m *SubscriptionMethod) Checkout(ctx context.Context, order *models.Order) (*gateway.Checkout, error) {
	planID := order.GetDetailString(detailPlanID)
	if planID == "" {
		return nil, fmt.Errorf("order %d has no paypal billing plan", order.ID)
	}

	body := map[string]any{
		"plan_id":   planID,
		"custom_id": gateway.OrderRef(order.ID),
		"application_context": map[string]any{
			"return_url": m.env.ReturnURL(gateway.KeyPayPal) + fmt.Sprintf("?order_id=%d&subscription=1", order.ID),
			"cancel_url": m.env.CancelURL(gateway.KeyPayPal) + fmt.Sprintf("?order_id=%d", order.ID),
		},
	}

	result, err := m.client.Request(ctx, http.MethodPost, "/v1/billing/subscriptions", body,
		gateway.WithHeader("PayPal-Request-Id", uuid.NewString()),
	)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, fmt.Errorf("paypal subscription creation failed: %s", result.ErrorMessage)
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

	order.SetDetail(detailSubscriptionID, created.ID)

	for _, link := range created.Links {
		if link.Rel == "approve" {
			return &gateway.Checkout{RedirectURL: link.Href}, nil
		}
	}

	return nil, fmt.Errorf("paypal subscription %s has no approve link", created.ID)
}

// Fetch retrieves the full subscription payload.
func (m *SubscriptionMethod) Fetch(ctx context.Context, order *models.Order) (json.RawMessage, error) {
	subscriptionID := order.GetDetailString(detailSubscriptionID)
	if subscriptionID == "" {
		return nil, models.ErrNotFound
	}

	result, err := m.client.Request(ctx, http.MethodGet, "/v1/billing/subscriptions/"+subscriptionID, nil)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, fmt.Errorf("paypal subscription fetch failed: %s", result.ErrorMessage)
	}

	return result.Data, nil
}

// Apply projects a subscription payload onto the order.
func (m *SubscriptionMethod) Apply(order *models.Order, payload json.RawMessage) error {
	doc, err := gateway.StorePayload(order, gateway.KeyPayPal, "subscription", payload)
	if err != nil {
		return err
	}

	gateway.SetTransactionID(order, gateway.KeyPayPal, stringField(doc, "id"))
	order.Status = mapSubscriptionStatus(stringField(doc, "status"))
	return nil
}

// Cancel cancels the subscription at the provider.
func (m *SubscriptionMethod) Cancel(ctx context.Context, order *models.Order) (json.RawMessage, error) {
	subscriptionID := order.GetDetailString(detailSubscriptionID)
	if subscriptionID == "" {
		return nil, models.ErrNotFound
	}

	body := map[string]any{"reason": "Canceled by customer"}
	result, err := m.client.Request(ctx, http.MethodPost, "/v1/billing/subscriptions/"+subscriptionID+"/cancel", body)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, fmt.Errorf("paypal subscription cancel failed: %s", result.ErrorMessage)
	}

	return m.Fetch(ctx, order)
}

func mapSubscriptionStatus(status string) models.OrderStatus {
	switch strings.ToUpper(status) {
	case "ACTIVE":
		return models.OrderStatusSubActive
	case "SUSPENDED":
		return models.OrderStatusSubPaused
	case "CANCELLED", "EXPIRED":
		return models.OrderStatusSubCanceled
	default:
		return models.OrderStatusPendingPayment
	}
}
