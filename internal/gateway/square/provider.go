package square

import (
	"github.com/voxelpay/payments/internal/config"
	"github.com/voxelpay/payments/internal/gateway"
)

// Provider bundles the Square integration. Square carries no subscription
// method.
type Provider struct {
	payment *PaymentMethod
	webhook *Webhook
	connect *Connect
}

// New assembles the Square provider.
func New(cfg config.SquareConfig, env *gateway.Env) *Provider {
	client := NewClient(cfg, env)
	return &Provider{
		payment: NewPaymentMethod(client, cfg, env),
		webhook: NewWebhook(cfg),
		connect: NewConnect(client, cfg, env),
	}
}

// Key returns the provider key.
func (p *Provider) Key() string { return gateway.KeySquare }

// PaymentMethod returns the one-time payment method.
func (p *Provider) PaymentMethod() gateway.PaymentMethod { return p.payment }

// SubscriptionMethod returns nil: Square subscriptions are not supported.
func (p *Provider) SubscriptionMethod() gateway.SubscriptionMethod { return nil }

// Webhook returns the webhook handler.
func (p *Provider) Webhook() gateway.Webhook { return p.webhook }

// Connect returns the marketplace client.
func (p *Provider) Connect() gateway.Connect { return p.connect }

var _ gateway.Provider = (*Provider)(nil)
