// Package offline implements the manual payment method: orders go straight
// to pending approval and an operator completes or cancels them by hand.
// There is no external API, no webhook and no marketplace support.
package offline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/voxelpay/payments/internal/gateway"
	"github.com/voxelpay/payments/internal/models"
)

const detailNote = "offline.note"

// PaymentMethod parks orders in pending_approval until an operator acts.
type PaymentMethod struct{}

// Checkout marks the order as awaiting manual approval. There is nothing
// to redirect to; the empty RedirectURL tells the checkout handler to send
// the customer to the pending page.
func (m *PaymentMethod) Checkout(ctx context.Context, order *models.Order, split *models.FeeSplit) (*gateway.Checkout, error) {
	order.Status = models.OrderStatusPendingApproval
	order.SetDetail("offline.requested_at", time.Now().UTC().Format(time.RFC3339))
	return &gateway.Checkout{}, nil
}

// Fetch returns the locally held state; there is no provider to ask.
func (m *PaymentMethod) Fetch(ctx context.Context, order *models.Order) (json.RawMessage, error) {
	return json.Marshal(map[string]any{
		"status": string(order.Status),
		"note":   order.GetDetailString(detailNote),
	})
}

// Apply projects a local payload onto the order.
func (m *PaymentMethod) Apply(order *models.Order, payload json.RawMessage) error {
	doc, err := gateway.StorePayload(order, gateway.KeyOffline, "manual", payload)
	if err != nil {
		return err
	}
	if status, _ := doc["status"].(string); status != "" {
		order.Status = models.OrderStatus(status)
	}
	return nil
}

// Capture completes the order locally (operator approval).
func (m *PaymentMethod) Capture(ctx context.Context, order *models.Order) (json.RawMessage, error) {
	return json.Marshal(map[string]any{"status": string(models.OrderStatusCompleted)})
}

// Refund cancels the order locally; money never moved.
func (m *PaymentMethod) Refund(ctx context.Context, order *models.Order) (json.RawMessage, error) {
	return json.Marshal(map[string]any{"status": string(models.OrderStatusCanceled)})
}

// ShouldSync is always false: there is no provider state to drift from.
func (m *PaymentMethod) ShouldSync(order *models.Order) bool { return false }

// Connect rejects every marketplace operation.
type Connect struct{}

func (c *Connect) Connected(*models.VendorConnection) bool { return false }

func (c *Connect) OnboardingURL(string) (string, error) {
	return "", gateway.ErrUnsupported
}

func (c *Connect) ExchangeCode(context.Context, string) (*models.VendorConnection, error) {
	return nil, gateway.ErrUnsupported
}

func (c *Connect) RefreshToken(context.Context, *models.VendorConnection) (*models.VendorConnection, error) {
	return nil, gateway.ErrUnsupported
}

func (c *Connect) CreateSubaccount(context.Context, gateway.SubaccountDetails) (*models.VendorConnection, error) {
	return nil, gateway.ErrUnsupported
}

func (c *Connect) DispatchPayout(context.Context, *models.Order, *models.VendorConnection, models.FeeSplit) (string, error) {
	return "", gateway.ErrUnsupported
}

// Provider bundles the offline method. No subscriptions, no webhook.
type Provider struct {
	payment PaymentMethod
	connect Connect
}

// New assembles the offline provider.
func New() *Provider { return &Provider{} }

// Key returns the provider key.
func (p *Provider) Key() string { return gateway.KeyOffline }

// PaymentMethod returns the manual payment method.
func (p *Provider) PaymentMethod() gateway.PaymentMethod { return &p.payment }

// SubscriptionMethod returns nil: offline subscriptions are not supported.
func (p *Provider) SubscriptionMethod() gateway.SubscriptionMethod { return nil }

// Webhook returns nil: nothing ever calls back.
func (p *Provider) Webhook() gateway.Webhook { return nil }

// Connect returns the marketplace client.
func (p *Provider) Connect() gateway.Connect { return &p.connect }

var _ gateway.Provider = (*Provider)(nil)
